// Package dispatch is the transport-neutral request handler: one
// wire.Message in, a stream of wire.Message out, all four transports in
// internal/transport drive the same Handle function.
package dispatch
