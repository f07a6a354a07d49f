// Package csprng provides the cryptographically secure randomness used
// for session tickets.
// No value drawn here is ever reused across sessions.
package csprng

import (
	"crypto/rand"
	"fmt"
)

// Bytes returns n cryptographically random bytes.
func Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("csprng: reading random bytes: %w", err)
	}
	return b, nil
}
