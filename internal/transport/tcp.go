package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/dispatch"
)

// TCPServer listens on a TCP address, serving one Session per
// connection with 0xFF-terminated CBOR framing.
type TCPServer struct {
	sl *streamListener
}

// NewTCPServer builds a TCP server bound to addr (host:port).
func NewTCPServer(addr string, deadline time.Duration, admission *Admission, deps dispatch.Deps, log *zap.Logger) *TCPServer {
	return &TCPServer{sl: newStreamListener("tcp", addr, deadline, admission, deps, log)}
}

// Serve runs the accept loop until ctx is cancelled.
func (s *TCPServer) Serve(ctx context.Context) error { return s.sl.Serve(ctx) }
