// Package wire implements the bit-addressable codec packet schemas are
// built on top of and the length-prefixed frame boundary
// detector.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf16"
)

// Errors returned by Cursor operations. Handlers treat these as
// handler-soft failures: log, drop the frame, keep the
// connection open.
var (
	ErrShortBuffer  = errors.New("wire: short buffer")
	ErrBitWidth     = errors.New("wire: invalid bit width")
	ErrInvalidUTF16 = errors.New("wire: odd byte count for utf16 string")
)

// Cursor is a logical read/write position within a byte buffer,
// expressed as (byteIndex, bitOffset). Bit offset 0 means the cursor
// sits on a byte boundary. Cursor is a value type: every method that
// advances position returns the updated copy explicitly so callers
// thread state the same way a parser combinator would, eliminating the
// shared mutable reader state the teacher's byte-only Reader has no
// need to avoid (it never sub-byte-addresses).
type Cursor struct {
	buf     []byte
	byteIdx int
	bitOff  uint8
}

// NewCursor wraps buf for bit-addressable reading or writing from
// position zero.
func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf}
}

// Bytes returns the underlying buffer.
func (c Cursor) Bytes() []byte { return c.buf }

// BytePos returns the current byte index (not counting a pending bit
// fraction).
func (c Cursor) BytePos() int { return c.byteIdx }

// BitOffset returns the current sub-byte bit offset, 0..7.
func (c Cursor) BitOffset() uint8 { return c.bitOff }

// Remaining returns the number of whole bytes left after the cursor,
// not counting a pending bit fraction.
func (c Cursor) Remaining() int { return len(c.buf) - c.byteIdx }

// Align advances the cursor to the next byte boundary, discarding any
// pending bit fraction. Every byte-aligned reader/writer calls this
// first.
func (c Cursor) Align() Cursor {
	if c.bitOff == 0 {
		return c
	}
	return Cursor{buf: c.buf, byteIdx: c.byteIdx + 1, bitOff: 0}
}

// ReadUint reads an n-bit (1..64) unsigned field at the current
// position and returns the value and the advanced cursor. n divisible
// by 8 with bitOff==0 leaves no bit fraction; otherwise the sub-byte
// offset is retained for the next bit operation.
func (c Cursor) ReadUint(n int) (uint64, Cursor, error) {
	if n < 1 || n > 64 {
		return 0, c, fmt.Errorf("%w: %d", ErrBitWidth, n)
	}

	var result uint64
	byteIdx, bitOff := c.byteIdx, c.bitOff
	remaining := n
	shift := 0

	for remaining > 0 {
		if byteIdx >= len(c.buf) {
			return 0, c, fmt.Errorf("ReadUint(%d): %w", n, ErrShortBuffer)
		}
		bitsLeftInByte := 8 - int(bitOff)
		take := bitsLeftInByte
		if take > remaining {
			take = remaining
		}

		mask := byte((1 << uint(take)) - 1)
		shifted := (c.buf[byteIdx] >> uint(bitsLeftInByte-take)) & mask
		result |= uint64(shifted) << uint(shift)

		shift += take
		remaining -= take
		bitOff += uint8(take)
		if bitOff == 8 {
			bitOff = 0
			byteIdx++
		}
	}

	return result, Cursor{buf: c.buf, byteIdx: byteIdx, bitOff: bitOff}, nil
}

// WriteUint writes the low n bits (1..64) of v at the current position
// and returns the advanced cursor. The destination buffer must already
// be sized to hold the written bits (callers size buffers up front, as
// the teacher's WritePacket does with its 16-byte encryption margin).
func (c Cursor) WriteUint(n int, v uint64) (Cursor, error) {
	if n < 1 || n > 64 {
		return c, fmt.Errorf("%w: %d", ErrBitWidth, n)
	}

	byteIdx, bitOff := c.byteIdx, c.bitOff
	remaining := n

	for remaining > 0 {
		if byteIdx >= len(c.buf) {
			return c, fmt.Errorf("WriteUint(%d): %w", n, ErrShortBuffer)
		}
		bitsLeftInByte := 8 - int(bitOff)
		take := bitsLeftInByte
		if take > remaining {
			take = remaining
		}

		chunk := byte(v & ((1 << uint(take)) - 1))
		v >>= uint(take)

		clearMask := byte((1 << uint(take)) - 1) << uint(bitsLeftInByte-take)
		c.buf[byteIdx] &^= clearMask
		c.buf[byteIdx] |= chunk << uint(bitsLeftInByte-take)

		remaining -= take
		bitOff += uint8(take)
		if bitOff == 8 {
			bitOff = 0
			byteIdx++
		}
	}

	return Cursor{buf: c.buf, byteIdx: byteIdx, bitOff: bitOff}, nil
}

// ReadU16 reads a byte-aligned little-endian uint16, flushing any
// pending bit fraction first.
func (c Cursor) ReadU16() (uint16, Cursor, error) {
	c = c.Align()
	if c.byteIdx+2 > len(c.buf) {
		return 0, c, fmt.Errorf("ReadU16: %w", ErrShortBuffer)
	}
	v := binary.LittleEndian.Uint16(c.buf[c.byteIdx:])
	return v, Cursor{buf: c.buf, byteIdx: c.byteIdx + 2}, nil
}

// ReadU32 reads a byte-aligned little-endian uint32.
func (c Cursor) ReadU32() (uint32, Cursor, error) {
	c = c.Align()
	if c.byteIdx+4 > len(c.buf) {
		return 0, c, fmt.Errorf("ReadU32: %w", ErrShortBuffer)
	}
	v := binary.LittleEndian.Uint32(c.buf[c.byteIdx:])
	return v, Cursor{buf: c.buf, byteIdx: c.byteIdx + 4}, nil
}

// ReadU64 reads a byte-aligned little-endian uint64.
func (c Cursor) ReadU64() (uint64, Cursor, error) {
	c = c.Align()
	if c.byteIdx+8 > len(c.buf) {
		return 0, c, fmt.Errorf("ReadU64: %w", ErrShortBuffer)
	}
	v := binary.LittleEndian.Uint64(c.buf[c.byteIdx:])
	return v, Cursor{buf: c.buf, byteIdx: c.byteIdx + 8}, nil
}

// ReadF32 reads a byte-aligned little-endian IEEE-754 float32.
func (c Cursor) ReadF32() (float32, Cursor, error) {
	v, next, err := c.ReadU32()
	if err != nil {
		return 0, c, err
	}
	return math.Float32frombits(v), next, nil
}

// ReadBytes reads n byte-aligned bytes as a zero-copy subslice of the
// underlying buffer, flushing any pending bit fraction first.
func (c Cursor) ReadBytes(n int) ([]byte, Cursor, error) {
	c = c.Align()
	if n < 0 || c.byteIdx+n > len(c.buf) {
		return nil, c, fmt.Errorf("ReadBytes(%d): %w", n, ErrShortBuffer)
	}
	return c.buf[c.byteIdx : c.byteIdx+n], Cursor{buf: c.buf, byteIdx: c.byteIdx + n}, nil
}

// ReadStringUTF16LE reads charCount UTF-16LE code units (2*charCount
// bytes) after aligning to a byte boundary. No null terminator is
// assumed — the count is carried by the schema.
func (c Cursor) ReadStringUTF16LE(charCount int) (string, Cursor, error) {
	raw, next, err := c.ReadBytes(charCount * 2)
	if err != nil {
		return "", c, fmt.Errorf("ReadStringUTF16LE: %w", err)
	}
	units := make([]uint16, charCount)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(units)), next, nil
}

// WriteU16 writes a byte-aligned little-endian uint16, flushing any
// pending bit fraction first.
func (c Cursor) WriteU16(v uint16) (Cursor, error) {
	c = c.Align()
	if c.byteIdx+2 > len(c.buf) {
		return c, fmt.Errorf("WriteU16: %w", ErrShortBuffer)
	}
	binary.LittleEndian.PutUint16(c.buf[c.byteIdx:], v)
	return Cursor{buf: c.buf, byteIdx: c.byteIdx + 2}, nil
}

// WriteU32 writes a byte-aligned little-endian uint32.
func (c Cursor) WriteU32(v uint32) (Cursor, error) {
	c = c.Align()
	if c.byteIdx+4 > len(c.buf) {
		return c, fmt.Errorf("WriteU32: %w", ErrShortBuffer)
	}
	binary.LittleEndian.PutUint32(c.buf[c.byteIdx:], v)
	return Cursor{buf: c.buf, byteIdx: c.byteIdx + 4}, nil
}

// WriteU64 writes a byte-aligned little-endian uint64.
func (c Cursor) WriteU64(v uint64) (Cursor, error) {
	c = c.Align()
	if c.byteIdx+8 > len(c.buf) {
		return c, fmt.Errorf("WriteU64: %w", ErrShortBuffer)
	}
	binary.LittleEndian.PutUint64(c.buf[c.byteIdx:], v)
	return Cursor{buf: c.buf, byteIdx: c.byteIdx + 8}, nil
}

// WriteF32 writes a byte-aligned little-endian IEEE-754 float32.
func (c Cursor) WriteF32(v float32) (Cursor, error) {
	return c.WriteU32(math.Float32bits(v))
}

// WriteBytes copies src at the current byte-aligned position.
func (c Cursor) WriteBytes(src []byte) (Cursor, error) {
	c = c.Align()
	if c.byteIdx+len(src) > len(c.buf) {
		return c, fmt.Errorf("WriteBytes(%d): %w", len(src), ErrShortBuffer)
	}
	copy(c.buf[c.byteIdx:], src)
	return Cursor{buf: c.buf, byteIdx: c.byteIdx + len(src)}, nil
}

// WriteStringUTF16LE writes s as fixed-width UTF-16LE code units,
// byte-aligned. The caller's schema is responsible for agreeing on
// charCount with the reader side (length prefixes are given
// per schema, not embedded by the codec).
func (c Cursor) WriteStringUTF16LE(s string) (Cursor, error) {
	units := utf16.Encode([]rune(s))
	c = c.Align()
	need := len(units) * 2
	if c.byteIdx+need > len(c.buf) {
		return c, fmt.Errorf("WriteStringUTF16LE: %w", ErrShortBuffer)
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(c.buf[c.byteIdx+i*2:], u)
	}
	return Cursor{buf: c.buf, byteIdx: c.byteIdx + need}, nil
}
