package authserver

import (
	"math/big"

	"github.com/ionforge/wildcore/internal/srp6"
	"github.com/ionforge/wildcore/internal/store"
)

// srpCrypto adapts the srp6 package to store.Crypto, so handlers depend
// only on the narrow verification contract rather than on srp6's
// big.Int-shaped API directly.
type srpCrypto struct {
	group srp6.Group
}

// NewCrypto returns a store.Crypto backed by SRP-6 over the default
// group.
func NewCrypto() store.Crypto {
	return srpCrypto{group: srp6.DefaultGroup}
}

// VerifyCredentials implements store.Crypto. The server's ephemeral
// secret b is re-derived deterministically from the account's salt
// rather than drawn fresh, since ClientHelloAuth carries A and M1 in
// one message — see srp6.DeriveServerSecret for why.
func (c srpCrypto) VerifyCredentials(acct store.Account, clientPublicA *big.Int, clientProofM1 []byte) ([]byte, []byte, error) {
	b := srp6.DeriveServerSecret(c.group, acct.Salt)
	srv, _, err := srp6.NewServer(c.group, acct.Salt, acct.Verifier, clientPublicA, b)
	if err != nil {
		return nil, nil, err
	}
	m2, err := srv.VerifyClientProof(clientProofM1)
	if err != nil {
		return nil, nil, err
	}
	return srv.SessionKey(), m2, nil
}
