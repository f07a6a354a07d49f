// Package realmpackets holds the realm-service packet schemas: ticket
// redemption, the realm-list handoff, and the back-button realm
// reselect. Grounded on the same per-message Read/Write shape as
// internal/authpackets, generalized for the realm handshake's
// ticket-instead-of-SRP credential.
package realmpackets

import (
	"fmt"

	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/wire"
)

// ClientHelloAuth is the realm variant: build:u32, email, ticket:bytes[16].
type ClientHelloAuth struct {
	Build  uint32
	Email  string
	Ticket [constants.TicketSize]byte
}

// ReadClientHelloAuth decodes the realm variant of ClientHelloAuth.
func ReadClientHelloAuth(payload []byte) (ClientHelloAuth, error) {
	var p ClientHelloAuth
	c := wire.NewCursor(payload)

	build, c, err := c.ReadU32()
	if err != nil {
		return p, fmt.Errorf("realmpackets: ClientHelloAuth.Build: %w", err)
	}
	p.Build = build

	emailLen, c, err := c.ReadU32()
	if err != nil {
		return p, fmt.Errorf("realmpackets: ClientHelloAuth.EmailLen: %w", err)
	}
	email, c, err := c.ReadStringUTF16LE(int(emailLen))
	if err != nil {
		return p, fmt.Errorf("realmpackets: ClientHelloAuth.Email: %w", err)
	}
	p.Email = email

	ticket, _, err := c.ReadBytes(len(p.Ticket))
	if err != nil {
		return p, fmt.Errorf("realmpackets: ClientHelloAuth.Ticket: %w", err)
	}
	copy(p.Ticket[:], ticket)
	return p, nil
}

// Write encodes a ClientHelloAuth (realm variant).
func (p ClientHelloAuth) Write() ([]byte, error) {
	buf := make([]byte, 4+4+len(p.Email)*2+len(p.Ticket))
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
	if _, err := c.WriteBytes(p.Ticket[:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// ClientRealmSelect carries the chosen realm id.
type ClientRealmSelect struct {
	RealmID uint32
}

// ReadClientRealmSelect decodes a ClientRealmSelect payload.
func ReadClientRealmSelect(payload []byte) (ClientRealmSelect, error) {
	c := wire.NewCursor(payload)
	id, _, err := c.ReadU32()
	if err != nil {
		return ClientRealmSelect{}, fmt.Errorf("realmpackets: ClientRealmSelect.RealmID: %w", err)
	}
	return ClientRealmSelect{RealmID: id}, nil
}

// Write encodes a ClientRealmSelect payload.
func (p ClientRealmSelect) Write() ([]byte, error) {
	buf := make([]byte, 4)
	_, err := wire.NewCursor(buf).WriteU32(p.RealmID)
	return buf, err
}

// ServerHello is the realm service's unencrypted greeting.
type ServerHello struct{}

// Write encodes the (empty) ServerHello payload.
func (ServerHello) Write() ([]byte, error) { return []byte{}, nil }

// ServerAuthAccepted acknowledges a validated ticket. Unlike the auth
// service's variant there is no SRP-6 proof to echo back — ticket
// redemption is a direct equality check — so this carries only a
// result marker.
type ServerAuthAccepted struct {
	Result uint32
}

// Write encodes a ServerAuthAccepted payload.
func (p ServerAuthAccepted) Write() ([]byte, error) {
	buf := make([]byte, 4)
	_, err := wire.NewCursor(buf).WriteU32(p.Result)
	return buf, err
}

// ServerRealmMessages carries the realm-list MOTD-style strings shown
// to the client before realm selection.
type ServerRealmMessages struct {
	Messages []string
}

// Write encodes a ServerRealmMessages payload: u16 count followed by
// each message as a u32 char count + UTF-16LE body.
func (p ServerRealmMessages) Write() ([]byte, error) {
	size := 2
	for _, m := range p.Messages {
		size += 4 + len(m)*2
	}
	buf := make([]byte, size)
	c := wire.NewCursor(buf)
	c, err := c.WriteU16(uint16(len(p.Messages)))
	if err != nil {
		return nil, err
	}
	for _, m := range p.Messages {
		c, err = c.WriteU32(uint32(len([]rune(m))))
		if err != nil {
			return nil, err
		}
		c, err = c.WriteStringUTF16LE(m)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// RealmType enumerates the realm.type configuration values spec.md §6
// names.
type RealmType uint8

// Realm types recognized by the config/realm-info schema.
const (
	RealmPvE    RealmType = 0
	RealmPvP    RealmType = 1
	RealmRPPvE  RealmType = 2
	RealmRPPvP  RealmType = 3
)

// ServerRealmInfo carries the chosen realm's connection details:
// address:u32 (IPv4 network order), port:u16, session_key:bytes[16],
// account_id:u64, realm_name:string, flags:u32, type:enum,
// note_text_id:u32.
type ServerRealmInfo struct {
	Address     uint32
	Port        uint16
	SessionKey  [constants.TicketSize]byte
	AccountID   uint64
	RealmName   string
	Flags       uint32
	Type        RealmType
	NoteTextID  uint32
}

// Write encodes a ServerRealmInfo payload.
func (p ServerRealmInfo) Write() ([]byte, error) {
	size := 4 + 2 + len(p.SessionKey) + 8 + 4 + len(p.RealmName)*2 + 4 + 1 + 4
	buf := make([]byte, size)
	c := wire.NewCursor(buf)

	c, err := c.WriteU32(p.Address)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU16(p.Port)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteBytes(p.SessionKey[:])
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU64(p.AccountID)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU32(uint32(len([]rune(p.RealmName))))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteStringUTF16LE(p.RealmName)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU32(p.Flags)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(8, uint64(p.Type))
	if err != nil {
		return nil, err
	}
	c = c.Align()
	if _, err := c.WriteU32(p.NoteTextID); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerNewRealm redirects an already-connected client to a different
// realm's world server after a back-button realm reselect:
// address/port/ticket.
type ServerNewRealm struct {
	Address uint32
	Port    uint16
	Ticket  [constants.TicketSize]byte
}

// Write encodes a ServerNewRealm payload.
func (p ServerNewRealm) Write() ([]byte, error) {
	buf := make([]byte, 4+2+len(p.Ticket))
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.Address)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU16(p.Port)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteBytes(p.Ticket[:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// DenyReason mirrors authpackets.DenyReason for the realm service's
// own denial replies (invalid ticket, no realms available).
type DenyReason uint32

// Result codes reused from spec.md §6.
const (
	DenyInvalidToken      DenyReason = 16
	DenyNoRealmsAvailable DenyReason = 23
)

// ServerAuthDenied rejects ticket redemption.
type ServerAuthDenied struct {
	ResultCode DenyReason
	ErrorValue uint32
}

// Write encodes a ServerAuthDenied payload.
func (p ServerAuthDenied) Write() ([]byte, error) {
	buf := make([]byte, 8)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(p.ResultCode))
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteU32(p.ErrorValue); err != nil {
		return nil, err
	}
	return buf, nil
}
