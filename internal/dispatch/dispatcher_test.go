package dispatch

import (
	"bytes"
	"context"
	"testing"

	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/streamcipher"
	"github.com/ionforge/wildcore/internal/wire"
)

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := New()
	var gotPayload []byte
	d.Register(opcode.World, opcode.CClientCharacterList, func(_ context.Context, _ *session.Session, body []byte) (Directive, error) {
		gotPayload = body
		return Ignore(), nil
	})

	s := session.New(session.ServiceWorld, "10.0.0.1")
	_, err := d.Dispatch(context.Background(), opcode.World, s, wire.Frame{Opcode: opcode.CClientCharacterList, Payload: []byte("hi")})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(gotPayload) != "hi" {
		t.Fatalf("handler got %q, want %q", gotPayload, "hi")
	}
}

func TestDispatchUnknownOpcodeErrors(t *testing.T) {
	d := New()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	_, err := d.Dispatch(context.Background(), opcode.World, s, wire.Frame{Opcode: 0xFFFF})
	if err == nil {
		t.Fatal("expected ErrUnknownOpcode")
	}
}

func TestDispatchUnwrapsClientEncryptedOneLevel(t *testing.T) {
	d := New()
	var gotOpcode uint16
	d.Register(opcode.World, opcode.CClientEnteredWorld, func(_ context.Context, _ *session.Session, body []byte) (Directive, error) {
		gotOpcode = opcode.CClientEnteredWorld
		return Ignore(), nil
	})

	ticket := bytes.Repeat([]byte{0x5}, 16)
	s := session.New(session.ServiceWorld, "10.0.0.1")
	s.InstallCiphers(streamcipher.SendState(ticket), streamcipher.ReceiveState(ticket))

	inner, err := encodeInnerFrame(opcode.CClientEnteredWorld, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("encodeInnerFrame: %v", err)
	}
	_, recv := s.Ciphers()
	recv.Encrypt(inner)

	_, err = d.Dispatch(context.Background(), opcode.World, s, wire.Frame{Opcode: opcode.CClientEncrypted, Payload: inner})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if gotOpcode != opcode.CClientEnteredWorld {
		t.Fatal("inner handler was not invoked")
	}
}

func TestDispatchRejectsDoubleEnvelopeRecursion(t *testing.T) {
	d := New()
	ticket := bytes.Repeat([]byte{0x5}, 16)
	s := session.New(session.ServiceWorld, "10.0.0.1")
	s.InstallCiphers(streamcipher.SendState(ticket), streamcipher.ReceiveState(ticket))

	// An inner frame whose "opcode" field is itself ClientEncrypted:
	// after one unwrap the dispatcher must refuse to unwrap again.
	nested, err := encodeInnerFrame(opcode.CClientEncrypted, []byte{9})
	if err != nil {
		t.Fatalf("encodeInnerFrame: %v", err)
	}
	_, recv := s.Ciphers()
	recv.Encrypt(nested)

	_, err = d.Dispatch(context.Background(), opcode.World, s, wire.Frame{Opcode: opcode.CClientEncrypted, Payload: nested})
	if err != ErrEnvelopeRecursionLimit {
		t.Fatalf("err = %v, want ErrEnvelopeRecursionLimit", err)
	}
}

func TestEncodeReplyPlain(t *testing.T) {
	frame, err := EncodeReply(Reply{Opcode: opcode.SServerHelloAuth, Payload: []byte("x"), Envelope: Plain}, nil)
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	frames, err := wire.NewFramer(0).Feed(frame)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 1 || frames[0].Opcode != opcode.SServerHelloAuth || string(frames[0].Payload) != "x" {
		t.Fatalf("got %+v", frames)
	}
}

func TestDispatchUnwrapsClientPackedWorldToRealInnerOpcode(t *testing.T) {
	d := New()
	var gotOpcode uint16
	var gotPayload []byte
	d.Register(opcode.World, opcode.CClientEnteredWorld, func(_ context.Context, _ *session.Session, body []byte) (Directive, error) {
		gotOpcode = opcode.CClientEnteredWorld
		gotPayload = body
		return Ignore(), nil
	})

	s := session.New(session.ServiceWorld, "10.0.0.1")
	// Tag 19 collides numerically with opcode.CClientEnteredWorld
	// (0x13); dispatch must still route on the real inner opcode
	// carried after the tag, not on the tag itself.
	packed, err := encodePackedWorldFrame(19, opcode.CClientEnteredWorld, []byte{7, 8, 9})
	if err != nil {
		t.Fatalf("encodePackedWorldFrame: %v", err)
	}

	_, err = d.Dispatch(context.Background(), opcode.World, s, wire.Frame{Opcode: opcode.CClientPackedWorld, Payload: packed})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if gotOpcode != opcode.CClientEnteredWorld {
		t.Fatal("ClientPackedWorld did not reach the handler for its real inner opcode")
	}
	if string(gotPayload) != "\x07\x08\x09" {
		t.Fatalf("gotPayload = %v, want [7 8 9]", gotPayload)
	}
}

func TestUnwrapPackedWorldTagDiscardsTagRegardlessOfValue(t *testing.T) {
	for _, tag := range []uint16{11, 19} {
		inner, err := encodeInnerFrame(opcode.CClientCharacterList, []byte("payload"))
		if err != nil {
			t.Fatalf("encodeInnerFrame: %v", err)
		}
		buf := make([]byte, 1+len(inner))
		c := wire.NewCursor(buf)
		c, err = c.WriteUint(5, uint64(tag))
		if err != nil {
			t.Fatalf("WriteUint: %v", err)
		}
		c = c.Align()
		if _, err := c.WriteBytes(inner); err != nil {
			t.Fatalf("WriteBytes: %v", err)
		}

		body, err := unwrapPackedWorldTag(buf)
		if err != nil {
			t.Fatalf("unwrapPackedWorldTag(tag=%d): %v", tag, err)
		}
		frame, err := decodeInnerFrame(body)
		if err != nil {
			t.Fatalf("decodeInnerFrame(tag=%d): %v", tag, err)
		}
		if frame.Opcode != opcode.CClientCharacterList || string(frame.Payload) != "payload" {
			t.Fatalf("tag=%d: got %+v", tag, frame)
		}
	}
}

func TestEncodeReplyWorldEncryptedRoundTrips(t *testing.T) {
	ticket := bytes.Repeat([]byte{0x2}, 16)
	send := streamcipher.SendState(ticket)
	// The peer decrypts server-to-client traffic with a state keyed the
	// same way as the server's send state.
	recv := streamcipher.SendState(ticket)

	frame, err := EncodeReply(Reply{Opcode: opcode.SServerWorldEnter, Payload: []byte("world"), Envelope: WorldEncrypted}, send)
	if err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}

	frames, err := wire.NewFramer(0).Feed(frame)
	if err != nil || len(frames) != 1 {
		t.Fatalf("Feed: %v frames=%v", err, frames)
	}
	if frames[0].Opcode != opcode.SServerEncrypted {
		t.Fatalf("outer opcode = %d, want SServerEncrypted", frames[0].Opcode)
	}

	plain := append([]byte(nil), frames[0].Payload...)
	recv.Decrypt(plain)
	inner, err := decodeInnerFrame(plain)
	if err != nil {
		t.Fatalf("decodeInnerFrame: %v", err)
	}
	if inner.Opcode != opcode.SServerWorldEnter || string(inner.Payload) != "world" {
		t.Fatalf("got %+v", inner)
	}
}
