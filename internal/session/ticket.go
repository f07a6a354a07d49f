package session

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/csprng"
)

// Ticket is the opaque handoff credential an auth or realm service
// issues a client so it can prove, to the next service downstream,
// that it already completed the previous stage. It is hex-encoded on
// the wire and compared in constant time.
type Ticket [constants.TicketSize]byte

// NewTicket draws a fresh random ticket.
func NewTicket() (Ticket, error) {
	var t Ticket
	raw, err := csprng.Bytes(constants.TicketSize)
	if err != nil {
		return t, fmt.Errorf("session: generating ticket: %w", err)
	}
	copy(t[:], raw)
	return t, nil
}

// String hex-encodes the ticket for wire transmission.
func (t Ticket) String() string {
	return hex.EncodeToString(t[:])
}

// ParseTicket decodes a hex-encoded ticket received from a client.
func ParseTicket(s string) (Ticket, error) {
	var t Ticket
	raw, err := hex.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("session: decoding ticket: %w", err)
	}
	if len(raw) != constants.TicketSize {
		return t, fmt.Errorf("session: ticket has %d bytes, want %d", len(raw), constants.TicketSize)
	}
	copy(t[:], raw)
	return t, nil
}

// Equal compares two tickets in constant time.
func (t Ticket) Equal(other Ticket) bool {
	return subtle.ConstantTimeCompare(t[:], other[:]) == 1
}
