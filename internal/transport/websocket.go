package transport

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/dispatch"
	"github.com/dreamware/dindex/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsPeer adapts a *websocket.Conn to the peer interface: one binary
// frame is one CBOR message, no 0xFF terminator needed (spec.md §4.4).
type wsPeer struct {
	conn *websocket.Conn
}

func (p *wsPeer) readMessage() (wire.Message, error) {
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return wire.Message{}, err
	}
	return wire.Decode(data)
}

func (p *wsPeer) writeMessage(m wire.Message) error {
	b, err := wire.Encode(m)
	if err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (p *wsPeer) setDeadline(t time.Time) error {
	if err := p.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return p.conn.SetWriteDeadline(t)
}

func (p *wsPeer) close() error { return p.conn.Close() }

// WebSocketServer upgrades incoming HTTP connections to WebSocket and
// serves each with the same Session lifecycle the stream transports use.
type WebSocketServer struct {
	addr      string
	deadline  time.Duration
	admission *Admission
	deps      dispatch.Deps
	log       *zap.Logger
	server    *http.Server
	exit      atomic.Bool
}

// NewWebSocketServer builds a WebSocket server bound to addr.
func NewWebSocketServer(addr string, deadline time.Duration, admission *Admission, deps dispatch.Deps, log *zap.Logger) *WebSocketServer {
	return &WebSocketServer{addr: addr, deadline: deadline, admission: admission, deps: deps, log: log}
}

// Serve runs an HTTP server upgrading every request to a WebSocket
// session until ctx is cancelled.
func (s *WebSocketServer) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade(ctx))
	s.server = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		s.exit.Store(true)
		return s.server.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *WebSocketServer) handleUpgrade(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.deps.Listeners.TrimInvalid()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			if s.log != nil {
				s.log.Warn("websocket upgrade failed", zap.Error(err))
			}
			return
		}

		release, err := s.admission.Acquire(ctx)
		if err != nil {
			conn.Close()
			return
		}

		go func() {
			defer release()
			sess := newSession(&wsPeer{conn: conn}, s.deadline, s.deps)
			sess.Run(ctx, s.log)
		}()
	}
}
