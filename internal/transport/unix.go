package transport

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/dispatch"
)

// UnixServer listens on a Unix domain socket, sharing TCP's framing and
// per-connection lifecycle exactly (spec.md §4.4: "Same framing as
// stream socket").
type UnixServer struct {
	sl   *streamListener
	path string
}

// NewUnixServer builds a Unix-socket server bound to path, removing any
// stale socket file left behind by a previous, uncleanly-terminated run.
func NewUnixServer(path string, deadline time.Duration, admission *Admission, deps dispatch.Deps, log *zap.Logger) *UnixServer {
	_ = os.Remove(path)
	return &UnixServer{sl: newStreamListener("unix", path, deadline, admission, deps, log), path: path}
}

// Serve runs the accept loop until ctx is cancelled, removing the socket
// file on exit.
func (s *UnixServer) Serve(ctx context.Context) error {
	defer os.Remove(s.path)
	return s.sl.Serve(ctx)
}
