// Command dindexd runs the dIndex server: the sharded record store, the
// listener registry, and the four transports (TCP, Unix, UDP, WebSocket)
// serving them, behind a signal-driven graceful shutdown modeled on
// cmd/coordinator/main.go's signal.Notify/Shutdown sequence.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/config"
	"github.com/dreamware/dindex/internal/dispatch"
	"github.com/dreamware/dindex/internal/dlog"
	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/signing"
	"github.com/dreamware/dindex/internal/snapshot"
	"github.com/dreamware/dindex/internal/store"
	"github.com/dreamware/dindex/internal/transport"
)

// shutdownJoinTimeout bounds how long shutdown waits for in-flight
// handler tasks (in particular long-lived `listen` connections, which
// otherwise only unblock once their egress write fails or ctx is
// cancelled) to finish before giving up and exiting anyway.
const shutdownJoinTimeout = 5 * time.Second

func main() {
	verbosity := flag.Int("v", 0, "log verbosity level as an integer, e.g. -v=2 (0, 1, 2+); repeating -v does not add up")
	flag.Parse()

	cfg := config.ServerFromEnv()
	cfg.Verbosity = *verbosity
	log := dlog.New(cfg.Verbosity)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("dindexd exited with error", zap.Error(err))
	}
}

func run(cfg config.Server, log *zap.Logger) error {
	reg := listener.NewRegistry(cfg.MaxListeners, dlog.Named(log, "listener"))
	st := store.New(cfg.NumShards, cfg.MaxRecords, reg)

	snap, err := snapshot.New(cfg.DatastoreURI)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if records, err := snap.Load(ctx); err != nil {
		log.Warn("snapshot load failed, starting empty", zap.Error(err))
	} else if len(records) > 0 {
		st.LoadAll(records)
		log.Info("restored records from snapshot", zap.Int("count", len(records)))
	}

	authority, err := signing.LoadAuthority(cfg.TrustedKeysFile)
	if err != nil {
		log.Warn("failed to load trusted keys file", zap.Error(err))
		authority = &signing.Authority{}
	}

	deps := dispatch.Deps{
		Store:     st,
		Listeners: reg,
		Snapshot:  snap,
		Authority: authority,
		Log:       dlog.Named(log, "dispatch"),
	}

	admission := transport.NewAdmission(cfg.ThreadsInFlight, cfg.DrainFraction)

	var servers []interface{ Serve(context.Context) error }

	if cfg.ListenTCP {
		addr := cfg.ListenIP + ":" + portString(cfg.Port)
		servers = append(servers, transport.NewTCPServer(addr, cfg.TransportDead, admission, deps, dlog.Named(log, "transport.tcp")))
	}
	if cfg.ListenUnix {
		servers = append(servers, transport.NewUnixServer(cfg.UnixSocketPath, cfg.TransportDead, admission, deps, dlog.Named(log, "transport.unix")))
	}
	if cfg.ListenWebSocket {
		addr := cfg.ListenIP + ":" + portString(cfg.WebSocketPort)
		servers = append(servers, transport.NewWebSocketServer(addr, cfg.TransportDead, admission, deps, dlog.Named(log, "transport.websocket")))
	}
	if cfg.ListenUDP {
		group := ""
		if cfg.ListenMulticast {
			group = cfg.MulticastGroup
		}
		addr := cfg.ListenIP + ":" + portString(cfg.Port)
		udpSrv, err := transport.NewUDPServer(addr, group, cfg.TransportDead, deps, dlog.Named(log, "transport.udp"))
		if err != nil {
			return err
		}
		servers = append(servers, udpSrv)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(servers))
	for _, s := range servers {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.Serve(ctx)
		}()
	}

	log.Info("dindexd started",
		zap.Uint16("port", cfg.Port),
		zap.Int("shards", cfg.NumShards),
		zap.Int("transports", len(servers)),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("transport exited with error", zap.Error(err))
		}
	}

	reg.TrimAll()
	cancel()

	// Join every transport's accept loop, then whatever handler tasks
	// (per-connection Sessions) it had outstanding, before the process
	// exits — spec.md §5/§7's orderly-drain sequence: trim_all, then
	// join outstanding handler tasks.
	wg.Wait()
	joinCtx, joinCancel := context.WithTimeout(context.Background(), shutdownJoinTimeout)
	defer joinCancel()
	if err := admission.Wait(joinCtx); err != nil {
		log.Warn("timed out joining in-flight handler tasks", zap.Error(err))
	}

	if err := snap.Save(context.Background(), st.All()); err != nil {
		log.Warn("final snapshot save failed", zap.Error(err))
	}

	log.Info("dindexd stopped")
	return nil
}

func portString(p uint16) string {
	return strconv.Itoa(int(p))
}
