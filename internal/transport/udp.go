package transport

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/dreamware/dindex/internal/dispatch"
	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/wire"
)

// UDPServer handles one datagram per message: no per-connection task
// fan-out, just read-decode-dispatch-encode-reply on a single shared
// socket, optionally joined to a multicast group (spec.md §4.4
// "Datagram specifics"). Grounded on
// joshuafuller-beacon/internal/transport/udp.go's ipv4.PacketConn /
// net.ListenMulticastUDP pairing.
type UDPServer struct {
	addr          string
	multicastAddr *net.UDPAddr // nil disables multicast join
	deadline      time.Duration
	deps          dispatch.Deps
	log           *zap.Logger
	exit          atomic.Bool
}

// NewUDPServer builds a UDP server bound to addr. If group is non-empty,
// the socket also joins that multicast group.
func NewUDPServer(addr, group string, deadline time.Duration, deps dispatch.Deps, log *zap.Logger) (*UDPServer, error) {
	s := &UDPServer{addr: addr, deadline: deadline, deps: deps, log: log}
	if group != "" {
		maddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(group, udpPortFromAddr(addr)))
		if err != nil {
			return nil, err
		}
		s.multicastAddr = maddr
	}
	return s, nil
}

func udpPortFromAddr(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "0"
	}
	return port
}

// Serve listens for datagrams until ctx is cancelled. Each datagram is
// decoded, handed to the dispatcher on a fresh request/response channel
// pair, and any responses are written back to the sender's address —
// unlike the stream transports, there is no persistent per-peer
// connection to hold a listen subscription open across datagrams, so a
// listen action here is honored only for the lifetime of this single
// read/reply cycle's egress pump.
func (s *UDPServer) Serve(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp4", s.addr)
	if err != nil {
		return err
	}

	var conn *net.UDPConn
	if s.multicastAddr != nil {
		conn, err = net.ListenMulticastUDP("udp4", nil, s.multicastAddr)
	} else {
		conn, err = net.ListenUDP("udp4", laddr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	pconn := ipv4.NewPacketConn(conn)
	_ = pconn.SetControlMessage(ipv4.FlagInterface, true)

	go func() {
		<-ctx.Done()
		s.exit.Store(true)
		conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		if s.exit.Load() {
			return nil
		}
		s.deps.Listeners.TrimInvalid()

		if s.deadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.deadline))
		}
		n, peerAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if s.exit.Load() {
				return nil
			}
			continue
		}

		raw := append([]byte(nil), buf[:n]...)
		go s.handleDatagram(ctx, conn, peerAddr, raw)
	}
}

func (s *UDPServer) handleDatagram(ctx context.Context, conn *net.UDPConn, peerAddr *net.UDPAddr, raw []byte) {
	trimmed := trimTerminator(raw)
	req, err := wire.Decode(trimmed)
	if err != nil {
		if s.log != nil {
			s.log.Debug("udp decode failed", zap.Error(err))
		}
		return
	}

	in := make(chan wire.Message, 1)
	out := make(chan wire.Message, 8)
	in <- req
	close(in)

	registered := make(chan *listener.Listener, 1)
	go func() {
		registered <- dispatch.Handle(ctx, in, out, s.deps)
	}()

	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return
			}
			b, err := wire.Encode(msg)
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(b, peerAddr)
		case l := <-registered:
			if l == nil {
				// query/publish already closed out itself; keep
				// draining until the case above observes that close.
				continue
			}
			// UDP has no persistent connection to observe a peer
			// disconnect on, so a listen subscription here only lives
			// for this datagram's own reply cycle (spec.md §4.4
			// "Datagram specifics"), never indefinitely like the
			// stream transports' Session.
			l.Close()
			return
		}
	}
}

// trimTerminator strips a trailing 0xFF byte if present: spec.md §4.4
// says the datagram transport "tolerates" a trailing terminator even
// though it is not required to frame a one-message-per-datagram stream.
func trimTerminator(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == 0xFF {
		return b[:len(b)-1]
	}
	return b
}
