// Package streamcipher implements the per-direction keyed stream
// cipher used once a session has a ticket: a byte-oriented,
// single-pass XOR-with-feedback cipher, one independent state per
// direction, that is never rewound.
//
// The rolling XOR-with-feedback construction and the "advance the key
// by the number of bytes processed" idea are adapted from the
// teacher's internal/crypto/game_crypt.go GameCrypt, which rekeys the
// same way after every packet. Here the key material comes from a
// ticket-derived hash instead of a GS-negotiated key.
package streamcipher

import (
	"crypto/sha256"
	"encoding/binary"
)

// sendTag/recvTag make the send and receive states independent even
// though both derive from the same ticket.
var (
	sendTag = []byte("wildcore-send-v1")
	recvTag = []byte("wildcore-recv-v1")
)

// DeriveKey hashes a 16-byte ticket with a constant tag to produce a
// 16-byte stream-cipher key.
func DeriveKey(ticket []byte, tag []byte) [16]byte {
	h := sha256.New()
	h.Write(ticket)
	h.Write(tag)
	sum := h.Sum(nil)
	var key [16]byte
	copy(key[:], sum[:16])
	return key
}

// State is one directional keyed stream-cipher state. It is never
// rewound: every Encrypt/Decrypt call advances the internal key, so a
// decrypt fault downstream (an unknown opcode, a malformed payload) is
// unrecoverable — the caller must terminate the connection rather than
// retry.
type State struct {
	key [16]byte
}

// NewState creates a stream-cipher state from a 16-byte ticket and a
// direction tag. Use SendState/ReceiveState to get the two independent
// per-connection states.
func NewState(ticket []byte, tag []byte) *State {
	return &State{key: DeriveKey(ticket, tag)}
}

// SendState derives the send-direction state from a session ticket.
func SendState(ticket []byte) *State { return NewState(ticket, sendTag) }

// ReceiveState derives the receive-direction state from a session
// ticket.
func ReceiveState(ticket []byte) *State { return NewState(ticket, recvTag) }

// Encrypt encrypts plaintext in place. Each byte is XORed with the
// rolling key and the previous ciphertext byte, chaining like
// GameCrypt's feedback loop.
func (s *State) Encrypt(data []byte) {
	var prev byte
	for i := range data {
		c := data[i] ^ s.key[i&0x0F] ^ prev
		data[i] = c
		prev = c
	}
	shiftKey(&s.key, len(data))
}

// Decrypt decrypts ciphertext in place; the inverse of Encrypt.
func (s *State) Decrypt(data []byte) {
	var prev byte
	for i := range data {
		c := data[i]
		data[i] = c ^ s.key[i&0x0F] ^ prev
		prev = c
	}
	shiftKey(&s.key, len(data))
}

// shiftKey evolves the key after processing size bytes, so the
// keystream never repeats across calls within a connection's lifetime.
func shiftKey(key *[16]byte, size int) {
	old := binary.LittleEndian.Uint32(key[8:12])
	old += uint32(size)
	binary.LittleEndian.PutUint32(key[8:12], old)
}
