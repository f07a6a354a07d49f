package wire

import "testing"

func TestCursorBitRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	c := NewCursor(buf)

	c, err := c.WriteUint(5, 0x1B) // 11011
	if err != nil {
		t.Fatalf("WriteUint(5): %v", err)
	}
	c, err = c.WriteUint(3, 0x5) // 101
	if err != nil {
		t.Fatalf("WriteUint(3): %v", err)
	}
	c, err = c.WriteUint(20, 0xABCDE)
	if err != nil {
		t.Fatalf("WriteUint(20): %v", err)
	}

	r := NewCursor(buf)
	v1, r, err := r.ReadUint(5)
	if err != nil || v1 != 0x1B {
		t.Fatalf("ReadUint(5) = %d, %v; want 0x1B", v1, err)
	}
	v2, r, err := r.ReadUint(3)
	if err != nil || v2 != 0x5 {
		t.Fatalf("ReadUint(3) = %d, %v; want 0x5", v2, err)
	}
	v3, _, err := r.ReadUint(20)
	if err != nil || v3 != 0xABCDE {
		t.Fatalf("ReadUint(20) = %#x, %v; want 0xABCDE", v3, err)
	}
	_ = c
}

func TestCursorAlignFlushesBitFraction(t *testing.T) {
	buf := make([]byte, 4)
	c := NewCursor(buf)
	c, err := c.WriteUint(3, 0x7)
	if err != nil {
		t.Fatalf("WriteUint: %v", err)
	}
	c, err = c.WriteU16(0xBEEF)
	if err != nil {
		t.Fatalf("WriteU16: %v", err)
	}
	if c.BytePos() != 3 || c.BitOffset() != 0 {
		t.Fatalf("cursor position after aligned write = (%d,%d); want (3,0)", c.BytePos(), c.BitOffset())
	}

	r := NewCursor(buf)
	_, r, err = r.ReadUint(3)
	if err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	v, _, err := r.ReadU16()
	if err != nil || v != 0xBEEF {
		t.Fatalf("ReadU16 after unaligned read = %#x, %v; want 0xBEEF", v, err)
	}
}

func TestCursorIntegerRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	c := NewCursor(buf)
	c, err := c.WriteU32(0xDEADBEEF)
	if err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	c, err = c.WriteU64(0x0102030405060708)
	if err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	c, err = c.WriteF32(3.14)
	if err != nil {
		t.Fatalf("WriteF32: %v", err)
	}
	_, err = c.WriteBytes([]byte("hi"))
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	r := NewCursor(buf)
	u32, r, err := r.ReadU32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %#x, %v", u32, err)
	}
	u64, r, err := r.ReadU64()
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %#x, %v", u64, err)
	}
	f32, r, err := r.ReadF32()
	if err != nil || f32 != 3.14 {
		t.Fatalf("ReadF32 = %v, %v", f32, err)
	}
	b, _, err := r.ReadBytes(2)
	if err != nil || string(b) != "hi" {
		t.Fatalf("ReadBytes = %q, %v", b, err)
	}
}

func TestCursorStringUTF16LERoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	c := NewCursor(buf)
	c, err := c.WriteStringUTF16LE("alice@example.com")
	if err != nil {
		t.Fatalf("WriteStringUTF16LE: %v", err)
	}
	_ = c

	r := NewCursor(buf)
	s, _, err := r.ReadStringUTF16LE(len("alice@example.com"))
	if err != nil || s != "alice@example.com" {
		t.Fatalf("ReadStringUTF16LE = %q, %v", s, err)
	}
}

func TestCursorReadUintShortBufferError(t *testing.T) {
	buf := make([]byte, 1)
	c := NewCursor(buf)
	if _, _, err := c.ReadUint(64); err == nil {
		t.Fatal("expected short-buffer error reading 64 bits from a 1-byte buffer")
	}
}

func TestCursorInvalidBitWidth(t *testing.T) {
	buf := make([]byte, 8)
	c := NewCursor(buf)
	if _, _, err := c.ReadUint(0); err == nil {
		t.Fatal("expected error for 0-bit width")
	}
	if _, _, err := c.ReadUint(65); err == nil {
		t.Fatal("expected error for 65-bit width")
	}
}
