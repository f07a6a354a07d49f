// Package srp6 implements the server side of SRP-6a credential
// verification used during the auth handshake: given a stored salt and
// verifier for an account, and the client's ephemeral public key A, it
// produces a server ephemeral public key B, checks the client's proof
// M1, and emits a server proof M2 plus a shared session key.
//
// The modular-exponentiation shape, variable names (A/B/S/K/M1/M2,
// salt, verifier v), and padding convention are adapted from a
// standalone SRP-6a reference implementation; the hash function here is
// BLAKE2b-256, same choice that reference makes for its default
// environment.
package srp6

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// ErrInvalidPublicKey is returned when the client's A (or the derived
// scrambler u) reduces to zero mod N, per SRP-6a's safeguard against a
// degenerate session key.
var ErrInvalidPublicKey = errors.New("srp6: invalid public key")

// ErrProofMismatch is returned by VerifyClientProof when M1 does not
// match what the server computed: either a wrong password or a forged
// proof. Callers must not reveal which.
var ErrProofMismatch = errors.New("srp6: client proof mismatch")

// Group is the (N, g) prime field SRP-6a operates over. RFC 5054's
// 2048-bit group is used here; both client and server must agree on
// it out of band.
type Group struct {
	N *big.Int
	G *big.Int
}

// byteLen is the padded width (in bytes) used for every big.Int fed
// into a hash, so H(pad(A), pad(B)) etc. are unambiguous regardless of
// leading-zero bytes being dropped by big.Int's own encoding.
func (g Group) byteLen() int {
	return (g.N.BitLen() + 7) / 8
}

// wildstarGroup is the fixed large-prime field this server and the
// client must agree on out of band; it plays the role of the (N, g)
// pair baked into the client in the real protocol.
var wildstarGroup = mustGroup(
	"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050"+
		"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50"+
		"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8"+
		"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B"+
		"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748"+
		"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6"+
		"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6"+
		"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73",
	"02",
)

func mustGroup(nHex, gHex string) Group {
	n, ok := new(big.Int).SetString(nHex, 16)
	if !ok {
		panic("srp6: bad N constant")
	}
	g, ok := new(big.Int).SetString(gHex, 16)
	if !ok {
		panic("srp6: bad g constant")
	}
	return Group{N: n, G: g}
}

// DefaultGroup is the (N, g) used by every server instance in this
// module.
var DefaultGroup = wildstarGroup

// hash is BLAKE2b-256, matching the grounding implementation's default
// environment.
func hash(parts ...[]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a non-nil key of the wrong size;
		// we never pass one.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hash(parts...))
}

// pad left-pads x's big-endian encoding to n bytes.
func pad(x *big.Int, n int) []byte {
	b := x.Bytes()
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// ComputeVerifier derives the password verifier v = g^x mod N from a
// salt and the account's credential hash, for storage alongside the
// account (spec's AccountStore.Verifier). x = H(salt, credentialHash).
func ComputeVerifier(group Group, salt, credentialHash []byte) *big.Int {
	x := hashInt(salt, credentialHash)
	return new(big.Int).Exp(group.G, x, group.N)
}

// Server holds one in-progress SRP-6a exchange. It is created once per
// login attempt and discarded after VerifyClientProof succeeds or
// fails; it is never reused across logins.
type Server struct {
	group   Group
	salt    []byte
	v       *big.Int // verifier
	bSecret *big.Int // server secret ephemeral b
	bPub    *big.Int // server public ephemeral B
	a       *big.Int // client public ephemeral A, retained for M1/M2
	key     []byte   // derived session key K
}

// NewServer begins a server-side exchange for one login attempt, given
// the account's stored salt/verifier and the client's ephemeral public
// key A. b is the server's secret ephemeral scalar; the auth service
// passes the value DeriveServerSecret computes from the account's salt.
func NewServer(group Group, salt []byte, verifier *big.Int, a *big.Int, bSecret *big.Int) (*Server, *big.Int, error) {
	if new(big.Int).Mod(a, group.N).Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: A == 0 (mod N)", ErrInvalidPublicKey)
	}

	k := hashInt(group.N.Bytes(), pad(group.G, group.byteLen()))

	// B = (k*v + g^b) mod N
	gb := new(big.Int).Exp(group.G, bSecret, group.N)
	kv := new(big.Int).Mul(k, verifier)
	bPub := new(big.Int).Mod(new(big.Int).Add(kv, gb), group.N)

	u := hashInt(pad(a, group.byteLen()), pad(bPub, group.byteLen()))
	if u.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: u == 0", ErrInvalidPublicKey)
	}

	// S = (A * v^u)^b mod N
	vu := new(big.Int).Exp(verifier, u, group.N)
	avu := new(big.Int).Mul(a, vu)
	s := new(big.Int).Exp(avu, bSecret, group.N)

	srv := &Server{
		group:   group,
		salt:    append([]byte(nil), salt...),
		v:       verifier,
		bSecret: bSecret,
		bPub:    bPub,
		a:       a,
		key:     hash(s.Bytes()),
	}
	return srv, bPub, nil
}

// expectedM1 computes the server's view of the client's proof:
// M1 = H(K, A, B, salt, N, g).
func (s *Server) expectedM1() []byte {
	return hash(s.key, s.a.Bytes(), s.bPub.Bytes(), s.salt, s.group.N.Bytes(), s.group.G.Bytes())
}

// VerifyClientProof checks the client's M1 in constant time and, on
// success, returns the server proof M2 = H(A, M1, K).
func (s *Server) VerifyClientProof(clientM1 []byte) ([]byte, error) {
	want := s.expectedM1()
	if subtle.ConstantTimeCompare(want, clientM1) != 1 {
		return nil, ErrProofMismatch
	}
	m2 := hash(s.a.Bytes(), clientM1, s.key)
	return m2, nil
}

// SessionKey returns the shared key K. Only meaningful after
// VerifyClientProof has succeeded; callers must not derive downstream
// key material from K before the client's proof is checked.
func (s *Server) SessionKey() []byte {
	return s.key
}

// DeriveServerSecret deterministically derives the server's ephemeral
// scalar b from an account's stored salt. WildStar's ClientHelloAuth
// carries A and M1 in the same message the server first sees (spec.md
// §6) rather than across the two round trips a textbook SRP-6a
// exchange uses to hand B to the client first — so b cannot be a fresh
// random draw per attempt; it must be reproducible from data the
// server already holds before the client can have computed M1 against
// the matching B. Deriving it from the account's salt (never
// transmitted, unique per account) keeps it both reproducible and
// unguessable without the stored credentials.
func DeriveServerSecret(group Group, salt []byte) *big.Int {
	b := hashInt(salt, []byte("wildcore-srp6-b-seed"))
	return b.Mod(b, group.N)
}
