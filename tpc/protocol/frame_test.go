package protocol

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestAppendFrameLayout(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	frame := AppendFrame(nil, FlagUnfragmented, payload)

	want := []byte{
		0x03, 0x00, 0x00, 0x00, // length, little endian
		0x00, 0xC0, // begin|end fragment flags
		0xAA, 0xBB, 0xCC,
	}
	if !bytes.Equal(frame, want) {
		t.Fatalf("frame layout mismatch:\n got %x\nwant %x", frame, want)
	}
}

func TestHandshakeLayout(t *testing.T) {
	// the UUID goes on the wire as two little-endian 8-byte halves, most
	// significant half first
	clientID := uuid.MustParse("00010203-0405-0607-0809-0a0b0c0d0e0f")
	frame := EncodeHandshake(clientID)

	wantPayload := []byte{
		0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, 0x00,
		0x0F, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A, 0x09, 0x08,
	}
	if len(frame) != HeaderSize+UUIDSizeInBytes {
		t.Fatalf("handshake frame is %d bytes, expected %d", len(frame), HeaderSize+UUIDSizeInBytes)
	}
	if !bytes.Equal(frame[HeaderSize:], wantPayload) {
		t.Fatalf("handshake payload mismatch:\n got %x\nwant %x", frame[HeaderSize:], wantPayload)
	}

	got, err := DecodeHandshake(frame[HeaderSize:])
	if err != nil {
		t.Fatalf("cannot decode handshake: %v", err)
	}
	if got != clientID {
		t.Errorf("round trip changed the UUID: got %s", got)
	}
}

func TestDecodeHandshakeRejectsBadLength(t *testing.T) {
	for _, size := range []int{0, 15, 17} {
		if _, err := DecodeHandshake(make([]byte, size)); err == nil {
			t.Errorf("expected an error for a %d byte payload", size)
		}
	}
}

func TestDecoderReassemblesAcrossFeeds(t *testing.T) {
	payload := []byte("split across reads")
	frame := EncodeUnfragmented(payload)

	var dec Decoder
	for i := 0; i < len(frame); i++ {
		if _, ok, err := dec.Next(); err != nil || ok {
			t.Fatalf("decoder yielded early at byte %d: ok=%v err=%v", i, ok, err)
		}
		dec.Feed(frame[i : i+1])
	}

	got, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("decoder did not yield the frame: ok=%v err=%v", ok, err)
	}
	if !got.Unfragmented() {
		t.Errorf("flags lost: %#x", got.Flags)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch: got %q", got.Payload)
	}
}

func TestDecoderYieldsMultipleFrames(t *testing.T) {
	var buf []byte
	buf = AppendFrame(buf, FlagBeginFragment, []byte("first"))
	buf = AppendFrame(buf, FlagEndFragment, []byte("second"))
	buf = AppendFrame(buf, FlagUnfragmented, nil)

	var dec Decoder
	dec.Feed(buf)

	tests := []struct {
		flags   uint16
		payload string
	}{
		{FlagBeginFragment, "first"},
		{FlagEndFragment, "second"},
		{FlagUnfragmented, ""},
	}
	for i, tt := range tests {
		frame, ok, err := dec.Next()
		if err != nil || !ok {
			t.Fatalf("frame %d missing: ok=%v err=%v", i, ok, err)
		}
		if frame.Flags != tt.flags {
			t.Errorf("frame %d flags: got %#x, want %#x", i, frame.Flags, tt.flags)
		}
		if string(frame.Payload) != tt.payload {
			t.Errorf("frame %d payload: got %q, want %q", i, frame.Payload, tt.payload)
		}
	}

	if _, ok, _ := dec.Next(); ok {
		t.Error("decoder yielded a frame beyond the input")
	}
}

func TestDecoderPayloadSurvivesFurtherFeeds(t *testing.T) {
	var dec Decoder
	dec.Feed(EncodeUnfragmented([]byte("stable")))

	frame, ok, err := dec.Next()
	if err != nil || !ok {
		t.Fatalf("decoder did not yield the frame: ok=%v err=%v", ok, err)
	}

	dec.Feed(bytes.Repeat([]byte{0xFF}, 64))
	if string(frame.Payload) != "stable" {
		t.Errorf("payload mutated by a later feed: %q", frame.Payload)
	}
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	var dec Decoder
	dec.Feed([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0xC0})

	if _, _, err := dec.Next(); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}
