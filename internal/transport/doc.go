// Package transport hosts the four socket front-ends (TCP, Unix, UDP,
// WebSocket) that feed internal/dispatch. TCP, Unix, and WebSocket share
// one per-connection lifecycle (transport.go's Session) and one
// admission-control scheme (admission.go); UDP handles each datagram on
// its own, with neither. tcp.go and unix.go additionally share a stream-framing
// helper since their only difference is the network string passed to
// net.Listen.
package transport
