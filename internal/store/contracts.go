// Package store defines the interfaces the protocol core consumes to
// reach account, character, and static-game-data collaborators it does
// not own. Session handlers depend on these interfaces, never on a
// concrete backend, the same dependency-injection shape the teacher's
// gameserver handler uses for CharacterRepository/PlayerPersister.
package store

import (
	"context"
	"errors"
	"math/big"

	"github.com/ionforge/wildcore/internal/session"
)

// Tier enumerates the subscription tiers spec.md §4.8 names: the base
// free tier reports 2 character slots, signature reports 12.
type Tier uint8

// Recognized account tiers.
const (
	TierFree      Tier = 0
	TierSignature Tier = 1
)

// Account is the subset of account data the core needs to run an SRP-6
// handshake and issue a ticket. SuspendedDays is 0 for an account in
// good standing; Ticket is the last value UpdateTicket stored, hex
// encoded, empty if none has ever been issued.
type Account struct {
	ID            string
	Login         string
	Salt          []byte
	Verifier      *big.Int
	Banned        bool
	SuspendedDays int
	Ticket        string
	Tier          Tier
}

// AccountStore resolves login names to the SRP-6 credentials and
// identity the auth and realm services need. It does not own password
// hashing policy; it stores whatever salt/verifier the account was
// provisioned with.
type AccountStore interface {
	GetAccount(ctx context.Context, login string) (*Account, error)
	GetAccountByID(ctx context.Context, id string) (*Account, error)

	// UpdateTicket overwrites the account's stored ticket.
	// Last-writer-wins: issuing a new ticket invalidates any prior one
	// (spec.md §3 Ticket).
	UpdateTicket(ctx context.Context, accountID string, ticketHex string) error

	// ValidateSession atomically checks (email, ticket, account_id)
	// together, the world service's ticket-redemption check (spec.md
	// §6 AccountStore.validate_session).
	ValidateSession(ctx context.Context, email, ticketHex, accountID string) (bool, error)
}

// CharacterSummary is the subset of character data shown in a
// character-list reply.
type CharacterSummary struct {
	CharacterID uint64
	Name        string
	Level       uint32
	ZoneID      uint32
	LastLogin   int64
}

// CharacterAttrs describes a new character's creation parameters, the
// fields store.CharacterStore.CreateCharacter persists beyond the
// bare name (spec.md §6 CharacterStore.create).
type CharacterAttrs struct {
	Sex                uint8
	Race               uint8
	Class              uint8
	Path               uint8
	CreationTemplateID uint32
}

// ErrCharacterNameTaken is returned by CharacterStore.CreateCharacter
// when another character already holds the requested name — spec.md
// §6 requires case-insensitive uniqueness, enforced by the store.
var ErrCharacterNameTaken = errors.New("store: character name already taken")

// CharacterStore resolves an account's characters and records new
// ones. The core never mutates character gameplay state itself — this
// is the boundary the world simulation persists through.
type CharacterStore interface {
	ListCharacters(ctx context.Context, accountID string) ([]CharacterSummary, error)

	// CreateCharacter persists a new character. It returns
	// ErrCharacterNameTaken if name collides case-insensitively with an
	// existing character.
	CreateCharacter(ctx context.Context, accountID, name string, attrs CharacterAttrs) (CharacterSummary, error)

	// GetOwned resolves a character by id, scoped to the requesting
	// account — ClientCharacterSelect must never select a character
	// belonging to a different account.
	GetOwned(ctx context.Context, accountID string, characterID uint64) (*CharacterSummary, error)
	UpdateLastOnline(ctx context.Context, characterID uint64) error
}

// RealmStatus is the subset of realm/world state the realm service
// reports in its realm list.
type RealmStatus struct {
	ID             int
	Name           string
	Host           string
	Port           int
	OnlinePlayers  int
	MaxPlayers     int
	Online         bool
}

// CreationTemplate is the subset of a character-creation template the
// core needs to validate and fill in a ClientCharacterCreate request:
// the race/class/sex/faction it implies and the starting items it
// grants (spec.md §4.8, up to 16).
type CreationTemplate struct {
	ID             uint32
	Race           uint8
	Class          uint8
	Sex            uint8
	Faction        uint32
	StartStage     uint32
	StartingItemID []uint32
}

// StaticData resolves read-mostly catalog data (realm status, item and
// zone tables) the core needs to answer client queries without itself
// owning the catalog.
type StaticData interface {
	RealmStatuses(ctx context.Context) ([]RealmStatus, error)

	// GetCharacterCreationTemplate resolves a creation template by id,
	// or nil if the id is unknown (spec.md §6 StaticData.
	// get_character_creation_template).
	GetCharacterCreationTemplate(ctx context.Context, id uint32) (*CreationTemplate, error)
}

// Crypto is the subset of credential-verification behavior handlers
// depend on, so auth handlers can be tested against a fake without
// pulling in the concrete SRP-6/big.Int machinery.
type Crypto interface {
	// VerifyCredentials checks a client's SRP-6 proof against an
	// account's stored verifier and, on success, returns the derived
	// session key and server proof.
	VerifyCredentials(acct Account, clientPublicA *big.Int, clientProofM1 []byte) (sessionKey []byte, serverProofM2 []byte, err error)
}

// SessionLookup is the subset of registry behavior handlers depend on,
// to find a live session by account id during ticket redemption.
type SessionLookup interface {
	LookupAccount(accountID string) (*session.Session, bool)
}
