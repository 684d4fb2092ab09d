// Package wire is the CBOR encoding of the dIndex protocol: the Action
// tags, the Message envelope, and the framing helpers the transports
// build their read/write loops on.
package wire
