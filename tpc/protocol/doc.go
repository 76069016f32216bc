// Package protocol implements the wire framing used on TPC channels and the
// identity handshake exchanged when a channel is established.
//
// Every message on a TPC channel is a frame:
//
//	+----------------+----------------+==========+
//	| length (4, LE) | flags (2, LE)  | payload  |
//	+----------------+----------------+==========+
//
// where length counts payload bytes only. The first frame on every new
// channel is an unfragmented handshake frame whose payload is the 16-byte
// client UUID, encoded as two little-endian 8-byte halves (most significant
// half first). No response is awaited before the channel is considered
// usable by the transport layer; higher layers validate the identity.
package protocol
