package wire

import (
	"bytes"
	"testing"
)

func encodeTestFrame(t *testing.T, opcode uint16, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 6+len(payload))
	n, err := EncodeFrame(buf, opcode, payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return buf[:n]
}

func TestFramerBoundaryIndependentOfChunking(t *testing.T) {
	f1 := encodeTestFrame(t, 0x01, []byte("hello"))
	f2 := encodeTestFrame(t, 0x02, []byte("world!!"))
	stream := append(append([]byte{}, f1...), f2...)

	// Whole stream at once.
	whole := NewFramer(0)
	frames, err := whole.Feed(stream)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	// Byte-at-a-time.
	chunked := NewFramer(0)
	var got []Frame
	for i := range stream {
		fs, err := chunked.Feed(stream[i : i+1])
		if err != nil {
			t.Fatalf("Feed byte %d: %v", i, err)
		}
		got = append(got, fs...)
	}

	if len(got) != len(frames) {
		t.Fatalf("chunked produced %d frames, whole produced %d", len(got), len(frames))
	}
	for i := range frames {
		if frames[i].Opcode != got[i].Opcode || !bytes.Equal(frames[i].Payload, got[i].Payload) {
			t.Fatalf("frame %d mismatch: whole=%+v chunked=%+v", i, frames[i], got[i])
		}
	}
}

func TestFramerRejectsUndersizedFrame(t *testing.T) {
	buf := make([]byte, 6)
	buf[0] = 5 // size < 6
	f := NewFramer(0)
	if _, err := f.Feed(buf); err == nil {
		t.Fatal("expected protocol violation for size < 6")
	}
}

func TestFramerRejectsOversizedFrame(t *testing.T) {
	buf := make([]byte, 6)
	buf[0], buf[1], buf[2], buf[3] = 0xFF, 0xFF, 0xFF, 0x00 // size = 0x00FFFFFF
	f := NewFramer(65536)
	if _, err := f.Feed(buf); err == nil {
		t.Fatal("expected protocol violation for oversized frame")
	}
}

func TestFramerRetainsPartialFrame(t *testing.T) {
	full := encodeTestFrame(t, 0x42, []byte("payload"))
	f := NewFramer(0)

	frames, err := f.Feed(full[:4])
	if err != nil {
		t.Fatalf("Feed partial: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames from a partial header, want 0", len(frames))
	}

	frames, err = f.Feed(full[4:])
	if err != nil {
		t.Fatalf("Feed rest: %v", err)
	}
	if len(frames) != 1 || frames[0].Opcode != 0x42 || string(frames[0].Payload) != "payload" {
		t.Fatalf("got %+v", frames)
	}
}
