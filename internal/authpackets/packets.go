// Package authpackets holds the auth-service packet schemas: the
// handshake messages exchanged before a ticket is issued. Each type
// carries a Read and/or Write pair built on wire.Cursor, the same
// per-message struct shape the teacher's internal/login/serverpackets
// uses, extended with SRP-6 fields the teacher's RSA-based handshake
// never needed.
package authpackets

import (
	"fmt"

	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/wire"
)

// ClientHelloAuth is the first message on the auth connection:
// build:u32, email_char_count:u32, email:utf16le[], A:bytes[128],
// M1:bytes[32].
type ClientHelloAuth struct {
	Build uint32
	Email string
	A     [128]byte
	M1    [32]byte
}

// ReadClientHelloAuth decodes a ClientHelloAuth from a frame payload.
func ReadClientHelloAuth(payload []byte) (ClientHelloAuth, error) {
	var p ClientHelloAuth
	c := wire.NewCursor(payload)

	build, c, err := c.ReadU32()
	if err != nil {
		return p, fmt.Errorf("authpackets: ClientHelloAuth.Build: %w", err)
	}
	p.Build = build

	emailLen, c, err := c.ReadU32()
	if err != nil {
		return p, fmt.Errorf("authpackets: ClientHelloAuth.EmailLen: %w", err)
	}
	email, c, err := c.ReadStringUTF16LE(int(emailLen))
	if err != nil {
		return p, fmt.Errorf("authpackets: ClientHelloAuth.Email: %w", err)
	}
	p.Email = email

	a, c, err := c.ReadBytes(len(p.A))
	if err != nil {
		return p, fmt.Errorf("authpackets: ClientHelloAuth.A: %w", err)
	}
	copy(p.A[:], a)

	m1, _, err := c.ReadBytes(len(p.M1))
	if err != nil {
		return p, fmt.Errorf("authpackets: ClientHelloAuth.M1: %w", err)
	}
	copy(p.M1[:], m1)

	return p, nil
}

// Write encodes a ClientHelloAuth, used by tests and by any client
// harness exercising the auth service.
func (p ClientHelloAuth) Write() ([]byte, error) {
	emailBytes := len(p.Email) * 2
	buf := make([]byte, 4+4+emailBytes+len(p.A)+len(p.M1))
	c := wire.NewCursor(buf)

	c, err := c.WriteU32(p.Build)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU32(uint32(len([]rune(p.Email))))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteStringUTF16LE(p.Email)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteBytes(p.A[:])
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteBytes(p.M1[:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerHello is the unencrypted greeting sent immediately on accept.
// It carries no fields; it exists purely to move the session to
// AuthGreeted and give the client something to read before it sends
// ClientHelloAuth.
type ServerHello struct{}

// Write encodes the (empty) ServerHello payload.
func (ServerHello) Write() ([]byte, error) { return []byte{}, nil }

// ServerAuthAccepted carries the SRP-6 server proof and the freshly
// minted ticket: M2:bytes[20], ticket:bytes[16].
type ServerAuthAccepted struct {
	M2     [20]byte
	Ticket [constants.TicketSize]byte
}

// Write encodes a ServerAuthAccepted payload.
func (p ServerAuthAccepted) Write() ([]byte, error) {
	buf := make([]byte, len(p.M2)+len(p.Ticket))
	c := wire.NewCursor(buf)
	c, err := c.WriteBytes(p.M2[:])
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteBytes(p.Ticket[:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadServerAuthAccepted decodes a ServerAuthAccepted payload, used by
// test harnesses acting as the client side.
func ReadServerAuthAccepted(payload []byte) (ServerAuthAccepted, error) {
	var p ServerAuthAccepted
	c := wire.NewCursor(payload)
	m2, c, err := c.ReadBytes(len(p.M2))
	if err != nil {
		return p, fmt.Errorf("authpackets: ServerAuthAccepted.M2: %w", err)
	}
	copy(p.M2[:], m2)
	ticket, _, err := c.ReadBytes(len(p.Ticket))
	if err != nil {
		return p, fmt.Errorf("authpackets: ServerAuthAccepted.Ticket: %w", err)
	}
	copy(p.Ticket[:], ticket)
	return p, nil
}

// DenyReason enumerates ServerAuthDenied's result_code field.
type DenyReason uint32

// Result codes named in spec.md §6.
const (
	DenyUnknown           DenyReason = 0
	DenyInvalidToken      DenyReason = 16
	DenyVersionMismatch   DenyReason = 19
	DenyAccountBanned     DenyReason = 20
	DenyAccountSuspended  DenyReason = 21
	DenyDatabaseError     DenyReason = 22
	DenyNoRealmsAvailable DenyReason = 23
)

// ServerAuthDenied rejects the handshake: result_code:u32,
// error_value:u32, suspended_days:f32.
type ServerAuthDenied struct {
	ResultCode    DenyReason
	ErrorValue    uint32
	SuspendedDays float32
}

// Write encodes a ServerAuthDenied payload.
func (p ServerAuthDenied) Write() ([]byte, error) {
	buf := make([]byte, 4+4+4)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(p.ResultCode))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU32(p.ErrorValue)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteF32(p.SuspendedDays); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadServerAuthDenied decodes a ServerAuthDenied payload.
func ReadServerAuthDenied(payload []byte) (ServerAuthDenied, error) {
	var p ServerAuthDenied
	c := wire.NewCursor(payload)
	code, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.ResultCode = DenyReason(code)
	errVal, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.ErrorValue = errVal
	days, _, err := c.ReadF32()
	if err != nil {
		return p, err
	}
	p.SuspendedDays = days
	return p, nil
}
