package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ionforge/wildcore/internal/constants"
)

// ErrProtocolViolation marks a transport-fatal condition: the framer
// signals fatal and the caller closes the socket.
var ErrProtocolViolation = errors.New("wire: protocol violation")

// Frame is a single length-prefixed protocol message: u32 size
// (including itself) · u16 opcode · payload.
type Frame struct {
	Opcode  uint16
	Payload []byte
}

// Framer reassembles frames out of a byte stream that may arrive in
// arbitrary chunks, and serializes outbound frames. It never blocks on
// the transport; Feed only inspects what has already been buffered.
type Framer struct {
	maxFrameBytes int
	buf           []byte
}

// NewFramer creates a Framer with the given oversized-frame cap (0
// selects constants.MaxFrameBytes).
func NewFramer(maxFrameBytes int) *Framer {
	if maxFrameBytes <= 0 {
		maxFrameBytes = constants.MaxFrameBytes
	}
	return &Framer{maxFrameBytes: maxFrameBytes}
}

// Feed appends newly read bytes to the internal buffer and returns
// every complete frame it can now extract, in arrival order. Each
// returned frame owns a copy of its payload, so it stays valid after
// later Feed calls.
func (f *Framer) Feed(data []byte) ([]Frame, error) {
	f.buf = append(f.buf, data...)

	var frames []Frame
	for {
		frame, rest, ok, err := parseOne(f.buf, f.maxFrameBytes)
		if err != nil {
			return frames, err
		}
		if !ok {
			break
		}
		frames = append(frames, frame)
		f.buf = rest
	}

	// Compact: rest always starts at offset 0 already (parseOne
	// reslices), but defend against silent growth by re-slicing to a
	// fresh backing array once the buffer empties out.
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frames, nil
}

// parseOne extracts at most one frame from buf. ok is false when buf
// doesn't yet hold a complete frame (partial read, retained for
// reassembly).
func parseOne(buf []byte, maxFrameBytes int) (frame Frame, rest []byte, ok bool, err error) {
	if len(buf) < 4 {
		return Frame{}, buf, false, nil
	}

	size := binary.LittleEndian.Uint32(buf[:4])
	if size < constants.MinFrameSize {
		return Frame{}, buf, false, fmt.Errorf("%w: size %d < %d", ErrProtocolViolation, size, constants.MinFrameSize)
	}
	if int(size) > maxFrameBytes {
		return Frame{}, buf, false, fmt.Errorf("%w: oversized frame size %d > %d", ErrProtocolViolation, size, maxFrameBytes)
	}
	if len(buf) < int(size) {
		return Frame{}, buf, false, nil
	}

	opcode := binary.LittleEndian.Uint16(buf[4:6])
	payload := buf[6:size]

	// Copy the payload out: buf will be reused/resliced on the next
	// Feed, and dispatch may outlive this call (e.g. via recursion
	// into the encrypted envelope).
	owned := make([]byte, len(payload))
	copy(owned, payload)

	return Frame{Opcode: opcode, Payload: owned}, buf[size:], true, nil
}

// EncodeFrame writes a complete frame (size · opcode · payload) to buf,
// which must be at least len(payload)+6 bytes, and returns the number
// of bytes written.
func EncodeFrame(buf []byte, opcode uint16, payload []byte) (int, error) {
	total := constants.FrameHeaderSize + len(payload)
	if len(buf) < total {
		return 0, fmt.Errorf("EncodeFrame: %w (need %d, have %d)", ErrShortBuffer, total, len(buf))
	}
	binary.LittleEndian.PutUint32(buf[:4], uint32(total))
	binary.LittleEndian.PutUint16(buf[4:6], opcode)
	copy(buf[6:], payload)
	return total, nil
}
