// Package dispatch routes decoded frames to registered handlers and
// implements the four reply envelopes a handler's response can be
// wrapped in before it goes back on the wire.
//
// The registry shape generalizes the teacher's internal/login/handler.go
// HandlePacket switch and internal/gslistener/handler.go's state-keyed
// switch into a (service, opcode) -> Handler table, since the world
// service's opcode space is far larger than either of the teacher's two
// listeners.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/streamcipher"
	"github.com/ionforge/wildcore/internal/wire"
)

// Envelope identifies how a reply frame's payload must be wrapped
// before it is written to the socket.
type Envelope int

const (
	// Plain frames carry their payload as-is: size, opcode, bytes.
	Plain Envelope = iota
	// AuthEncrypted wraps the payload with the auth-stage session
	// cipher (used by the auth and realm services).
	AuthEncrypted
	// WorldEncrypted wraps an inner frame (its own opcode + payload)
	// inside a ServerEncrypted envelope, encrypted with the world
	// send-direction cipher.
	WorldEncrypted
	// PackedWorld tags the payload with a 5-bit type tag plus bit
	// realignment, sent unencrypted.
	PackedWorld
)

// Reply is one outbound frame a handler wants sent, alongside the
// envelope it must be wrapped in.
type Reply struct {
	Opcode   uint16
	Payload  []byte
	Envelope Envelope
	// Tag is the PackedWorld envelope's 5-bit type prefix. Unused by
	// every other envelope. spec.md §4.6(4) only documents this
	// envelope for inbound traffic; no handler in this tree emits one,
	// so Tag is left at its zero value in practice.
	Tag uint8
}

// Directive is a handler's verdict: zero or more replies to send, and
// whether the connection should stay open afterward.
type Directive struct {
	Replies   []Reply
	KeepAlive bool
	// Close signals that the connection task should tear down after
	// sending Replies — used by long-lived services (world) whose
	// handlers don't close the connection on every reply the way the
	// auth/realm handshake does. Auth and realm ignore this field and
	// decide teardown from Replies alone (spec.md §4.5).
	Close bool
}

// Ignore is the directive for "no reply, keep the connection open" —
// the common case for an unrecognized or cosmetic opcode.
func Ignore() Directive { return Directive{KeepAlive: true} }

// ErrUnknownOpcode is returned by Dispatch when no handler is
// registered for (service, opcode). Callers typically log and ignore
// rather than terminate the connection over it.
var ErrUnknownOpcode = errors.New("dispatch: unknown opcode")

// ErrEnvelopeRecursionLimit guards the meta-opcode unwrap path: an
// encrypted/packed envelope may wrap exactly one inner frame, never a
// second layer of the same kind.
var ErrEnvelopeRecursionLimit = errors.New("dispatch: envelope recursion limit exceeded")

// Handler processes one decoded frame's payload for a live session and
// returns a Directive describing the reply (if any).
type Handler func(ctx context.Context, s *session.Session, body []byte) (Directive, error)

type handlerKey struct {
	service opcode.Service
	opcode  uint16
}

// Dispatcher routes frames to registered handlers and implements
// envelope unwrap/wrap.
type Dispatcher struct {
	handlers map[handlerKey]Handler
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[handlerKey]Handler)}
}

// Register installs the handler for (service, opcode), overwriting any
// previous registration — last registration wins, matching how a
// package init-time table is expected to be assembled once per
// process, not mutated under load.
func (d *Dispatcher) Register(service opcode.Service, op uint16, h Handler) {
	d.handlers[handlerKey{service: service, opcode: op}] = h
}

// Dispatch unwraps envelope meta-opcodes (one level deep) and invokes
// the registered handler for the resulting (service, opcode). depth
// tracks recursion so a ClientEncrypted frame cannot itself wrap
// another ClientEncrypted frame.
func (d *Dispatcher) Dispatch(ctx context.Context, service opcode.Service, s *session.Session, frame wire.Frame) (Directive, error) {
	return d.dispatch(ctx, service, s, frame, 0)
}

func (d *Dispatcher) dispatch(ctx context.Context, service opcode.Service, s *session.Session, frame wire.Frame, depth int) (Directive, error) {
	if service == opcode.World {
		switch frame.Opcode {
		case opcode.CClientEncrypted, opcode.CClientPacked, opcode.CClientPackedWorld:
			if depth > 0 {
				return Directive{}, ErrEnvelopeRecursionLimit
			}
			inner, err := d.unwrapEnvelope(s, frame)
			if err != nil {
				return Directive{}, err
			}
			return d.dispatch(ctx, service, s, inner, depth+1)
		}
	}

	h, ok := d.handlers[handlerKey{service: service, opcode: frame.Opcode}]
	if !ok {
		return Directive{}, fmt.Errorf("%w: service=%d opcode=0x%02X", ErrUnknownOpcode, service, frame.Opcode)
	}
	return h(ctx, s, frame.Payload)
}

// unwrapEnvelope decrypts/unpacks a meta-opcode frame into the inner
// frame it carries.
func (d *Dispatcher) unwrapEnvelope(s *session.Session, frame wire.Frame) (wire.Frame, error) {
	switch frame.Opcode {
	case opcode.CClientEncrypted:
		_, recv := s.Ciphers()
		if recv == nil {
			return wire.Frame{}, fmt.Errorf("dispatch: ClientEncrypted received before cipher installed")
		}
		plain := append([]byte(nil), frame.Payload...)
		recv.Decrypt(plain)
		return decodeInnerFrame(plain)
	case opcode.CClientPacked:
		return decodeInnerFrame(frame.Payload)
	case opcode.CClientPackedWorld:
		body, err := unwrapPackedWorldTag(frame.Payload)
		if err != nil {
			return wire.Frame{}, err
		}
		return decodeInnerFrame(body)
	default:
		return wire.Frame{}, fmt.Errorf("dispatch: %d is not an envelope opcode", frame.Opcode)
	}
}

// decodeInnerFrame parses the inner blob format spec.md §4.6 defines
// for the World-encrypted envelope's decrypted payload and for the
// unencrypted Packed envelopes alike: u32 inner_size (counting itself,
// the same convention as the outer wire.Frame) · u16 inner_opcode ·
// inner_payload. There is no separate transport-level boundary around
// it — the caller already has exactly these bytes in hand (decrypted,
// or sliced off after a tag) — but the length field is still present
// and is validated rather than assumed.
func decodeInnerFrame(data []byte) (wire.Frame, error) {
	c := wire.NewCursor(data)
	size, c, err := c.ReadU32()
	if err != nil {
		return wire.Frame{}, fmt.Errorf("decodeInnerFrame: %w", err)
	}
	if size < 6 || int(size) > len(data) {
		return wire.Frame{}, fmt.Errorf("decodeInnerFrame: invalid inner_size %d for %d available bytes", size, len(data))
	}
	op, c, err := c.ReadU16()
	if err != nil {
		return wire.Frame{}, fmt.Errorf("decodeInnerFrame: %w", err)
	}
	payload, _, err := c.ReadBytes(int(size) - 6)
	if err != nil {
		return wire.Frame{}, fmt.Errorf("decodeInnerFrame: %w", err)
	}
	return wire.Frame{Opcode: op, Payload: payload}, nil
}

// unwrapPackedWorldTag strips the PackedWorld envelope's leading 5-bit
// type tag and realigns to the next byte boundary, returning the
// remaining bytes for decodeInnerFrame to parse as
// inner_size·inner_opcode·inner_payload (spec.md §4.6(4), §4.7 step 2).
// The tag's two observed values (11, 19) are undocumented in the
// source and carry no known dispatch meaning (spec.md §9); it is read
// and discarded here rather than substituted for the real inner
// opcode.
func unwrapPackedWorldTag(data []byte) ([]byte, error) {
	c := wire.NewCursor(data)
	_, c, err := c.ReadUint(5)
	if err != nil {
		return nil, fmt.Errorf("unwrapPackedWorldTag: %w", err)
	}
	c = c.Align()
	rest, _, err := c.ReadBytes(c.Remaining())
	if err != nil {
		return nil, fmt.Errorf("unwrapPackedWorldTag: %w", err)
	}
	return rest, nil
}

// EncodeReply serializes one Reply into a wire frame, applying its
// envelope. send is the session's send-direction cipher, required for
// AuthEncrypted/WorldEncrypted replies.
func EncodeReply(reply Reply, send *streamcipher.State) ([]byte, error) {
	switch reply.Envelope {
	case Plain:
		return encodePlainFrame(reply.Opcode, reply.Payload)
	case AuthEncrypted:
		// The auth/realm cipher wraps a single stream, not a nested
		// frame: the opcode stays visible on the outer frame and only
		// the payload bytes are encrypted in place.
		if send == nil {
			return nil, fmt.Errorf("dispatch: AuthEncrypted reply without a send cipher")
		}
		payload := append([]byte(nil), reply.Payload...)
		send.Encrypt(payload)
		return encodePlainFrame(reply.Opcode, payload)
	case WorldEncrypted:
		// World wraps a full inner frame (its own opcode) inside the
		// fixed ServerEncrypted outer opcode.
		if send == nil {
			return nil, fmt.Errorf("dispatch: WorldEncrypted reply without a send cipher")
		}
		inner, err := encodeInnerFrame(reply.Opcode, reply.Payload)
		if err != nil {
			return nil, err
		}
		send.Encrypt(inner)
		return encodePlainFrame(opcode.SServerEncrypted, inner)
	case PackedWorld:
		return encodePackedWorldFrame(uint16(reply.Tag), reply.Opcode, reply.Payload)
	default:
		return nil, fmt.Errorf("dispatch: unknown envelope %d", reply.Envelope)
	}
}

func encodePlainFrame(op uint16, payload []byte) ([]byte, error) {
	buf := make([]byte, 6+len(payload))
	n, err := wire.EncodeFrame(buf, op, payload)
	if err != nil {
		return nil, fmt.Errorf("encodePlainFrame: %w", err)
	}
	return buf[:n], nil
}

// encodeInnerFrame builds the u32 inner_size (counting itself) · u16
// inner_opcode · inner_payload shape spec.md §4.6(3) defines for the
// World-encrypted envelope's inner blob — the exact inverse of
// decodeInnerFrame.
func encodeInnerFrame(op uint16, payload []byte) ([]byte, error) {
	size := 6 + len(payload)
	buf := make([]byte, size)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(size))
	if err != nil {
		return nil, fmt.Errorf("encodeInnerFrame: %w", err)
	}
	c, err = c.WriteU16(op)
	if err != nil {
		return nil, fmt.Errorf("encodeInnerFrame: %w", err)
	}
	if _, err := c.WriteBytes(payload); err != nil {
		return nil, fmt.Errorf("encodeInnerFrame: %w", err)
	}
	return buf, nil
}

// encodePackedWorldFrame builds the PackedWorld envelope: a 5-bit tag,
// realigned to the next byte boundary, followed by the same
// inner_size·inner_opcode·inner_payload shape encodeInnerFrame builds.
// spec.md §4.6(4) documents this envelope for inbound traffic only;
// EncodeReply still implements the inverse so the shape stays
// round-trip tested from the server side too.
func encodePackedWorldFrame(tag uint16, op uint16, payload []byte) ([]byte, error) {
	inner, err := encodeInnerFrame(op, payload)
	if err != nil {
		return nil, fmt.Errorf("encodePackedWorldFrame: %w", err)
	}

	buf := make([]byte, 1+len(inner))
	c := wire.NewCursor(buf)
	c, err = c.WriteUint(5, uint64(tag))
	if err != nil {
		return nil, fmt.Errorf("encodePackedWorldFrame: %w", err)
	}
	c = c.Align()
	c, err = c.WriteBytes(inner)
	if err != nil {
		return nil, fmt.Errorf("encodePackedWorldFrame: %w", err)
	}
	return buf[:c.BytePos()], nil
}
