package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	// HeaderSize is the size of a frame header in bytes
	HeaderSize = 6

	// UUIDSizeInBytes is the size of an encoded UUID payload
	UUIDSizeInBytes = 16

	// MaxPayloadSize bounds the payload length accepted by the decoder
	MaxPayloadSize = 1 << 27
)

// Frame flags. A frame carrying both the begin and end fragment flags is a
// complete, unfragmented message.
const (
	FlagBeginFragment uint16 = 1 << 15
	FlagEndFragment   uint16 = 1 << 14

	FlagUnfragmented = FlagBeginFragment | FlagEndFragment
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// AppendFrame appends a single frame with the given flags and payload to dst
// and returns the extended slice
func AppendFrame(dst []byte, flags uint16, payload []byte) []byte {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint16(header[4:6], flags)
	dst = append(dst, header[:]...)
	return append(dst, payload...)
}

// EncodeUnfragmented encodes payload as one complete frame
func EncodeUnfragmented(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), FlagUnfragmented, payload)
}

// EncodeHandshake builds the identity handshake frame for the given client.
// The payload is the UUID as two little-endian 8-byte halves, most
// significant half first.
func EncodeHandshake(clientID uuid.UUID) []byte {
	var payload [UUIDSizeInBytes]byte
	msb := binary.BigEndian.Uint64(clientID[0:8])
	lsb := binary.BigEndian.Uint64(clientID[8:16])
	binary.LittleEndian.PutUint64(payload[0:8], msb)
	binary.LittleEndian.PutUint64(payload[8:16], lsb)
	return EncodeUnfragmented(payload[:])
}

// DecodeHandshake parses the payload of a handshake frame back into the
// client UUID
func DecodeHandshake(payload []byte) (uuid.UUID, error) {
	var id uuid.UUID
	if len(payload) != UUIDSizeInBytes {
		return id, fmt.Errorf("handshake payload must be %d bytes, got %d", UUIDSizeInBytes, len(payload))
	}
	msb := binary.LittleEndian.Uint64(payload[0:8])
	lsb := binary.LittleEndian.Uint64(payload[8:16])
	binary.BigEndian.PutUint64(id[0:8], msb)
	binary.BigEndian.PutUint64(id[8:16], lsb)
	return id, nil
}

// --------------------------------------------------------------------------
// Streaming Decoder
// --------------------------------------------------------------------------

// Frame is a single decoded frame
type Frame struct {
	Flags   uint16
	Payload []byte
}

// Unfragmented reports whether the frame is a complete message
func (f Frame) Unfragmented() bool {
	return f.Flags&FlagUnfragmented == FlagUnfragmented
}

// Decoder accumulates bytes as they arrive from a socket read callback and
// yields complete frames. It is not safe for concurrent use; it is owned by
// the reactor goroutine driving the socket.
type Decoder struct {
	buf []byte
}

// Feed appends received bytes to the internal buffer
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame, or ok=false if more bytes are
// needed. The payload is copied out of the internal buffer, so it stays
// valid after further Feed calls.
func (d *Decoder) Next() (frame Frame, ok bool, err error) {
	if len(d.buf) < HeaderSize {
		return Frame{}, false, nil
	}

	length := binary.LittleEndian.Uint32(d.buf[0:4])
	flags := binary.LittleEndian.Uint16(d.buf[4:6])

	if length > MaxPayloadSize {
		return Frame{}, false, fmt.Errorf("frame payload of %d bytes exceeds limit", length)
	}
	if len(d.buf) < HeaderSize+int(length) {
		return Frame{}, false, nil
	}

	payload := make([]byte, length)
	copy(payload, d.buf[HeaderSize:HeaderSize+length])
	d.buf = d.buf[HeaderSize+int(length):]

	return Frame{Flags: flags, Payload: payload}, true, nil
}
