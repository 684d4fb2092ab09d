// Package dlog builds the one process-wide zap logger shared by the server
// and client binaries, and hands out named children per subsystem.
//
// Grounded on edirooss-zmux-server/cmd/zmux-server/main.go's
// zap.NewDevelopmentConfig + zap.Must + .Named(...) construction.
package dlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the root logger. verbosity mirrors the server's integer -v
// flag: 0 is Info and above, 1 enables Debug, 2+ additionally keeps
// stacktraces and caller info that the default config strips for readability.
func New(verbosity int) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = verbosity < 2
	cfg.DisableCaller = verbosity < 2
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbosity > 0 {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zap.Must(cfg.Build())
}

// Named returns a child logger tagged with the given subsystem name, e.g.
// dlog.Named(root, "transport.tcp").
func Named(root *zap.Logger, name string) *zap.Logger {
	return root.Named(name)
}
