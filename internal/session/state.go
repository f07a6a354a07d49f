package session

import (
	"io"
	"sync"
	"time"

	"github.com/ionforge/wildcore/internal/streamcipher"
)

// inboxCapacity bounds the per-session broadcast inbox. Delivery is
// non-blocking (Deliver), so a full inbox means a slow connection gets
// a dropped broadcast rather than stalling whoever is fanning one out.
const inboxCapacity = 64

// OutboundMessage is a single reply another connection's handler wants
// delivered to this session's own connection task — spec.md §5's
// "typed message, which their task consumes in FIFO order." It is
// always sent world-encrypted: broadcast is a world-service-only
// concept (spec.md §4.8 ClientEnteredWorld "broadcasts spawn to nearby
// players").
type OutboundMessage struct {
	Opcode  uint16
	Payload []byte
}

// Stage is a per-service monotonic progression. Each service has its
// own stage enum; a session never moves backward and never skips a
// stage.
type Stage int

// Each service's stages occupy their own numeric band so a bare Stage
// value prints unambiguously regardless of which service it came from.
const (
	// Auth service stages.
	AuthGreeted Stage = 100 + iota
	AuthCredentialed
	AuthTicketed
)

const (
	// Realm service stages.
	RealmValidated Stage = 200 + iota
	RealmListed
	RealmTransferring
)

const (
	// World service stages.
	WorldSessionKeyed Stage = 300 + iota
	WorldCharacterListed
	WorldInWorld
)

func (s Stage) String() string {
	switch s {
	case AuthGreeted:
		return "GREETED"
	case AuthCredentialed:
		return "CREDENTIALED"
	case AuthTicketed:
		return "TICKETED"
	case RealmValidated:
		return "VALIDATED"
	case RealmListed:
		return "REALM_LISTED"
	case RealmTransferring:
		return "TRANSFERRING"
	case WorldSessionKeyed:
		return "SESSION_KEYED"
	case WorldCharacterListed:
		return "CHARACTER_LISTED"
	case WorldInWorld:
		return "IN_WORLD"
	default:
		return "UNKNOWN"
	}
}

// Service identifies which of the three stage machines a Session is
// running.
type Service int

const (
	ServiceAuth Service = iota
	ServiceRealm
	ServiceWorld
)

// Session is the per-connection state tracked for the lifetime of one
// socket. The service role is fixed at creation; the account id is set
// once, after authentication, and never changes; the cipher is
// installed exactly once, when a ticket is
// redeemed; character/zone/instance fields are cleared on logout but
// the Session itself is not reused afterward — a new connection gets a
// new Session.
type Session struct {
	mu sync.Mutex

	service Service
	peerIP  string

	stage Stage

	accountID    string
	accountIDSet bool

	ticket    Ticket
	ticketSet bool

	sendCipher *streamcipher.State
	recvCipher *streamcipher.State

	entity      EntityHandle
	character   string
	characterID uint64
	zone        uint32
	instance    uint32
	posX        float32
	posY        float32
	posZ        float32

	conn    io.Closer
	connSet bool

	inbox chan OutboundMessage

	createdAt time.Time
}

// New creates a Session for a freshly accepted connection on the given
// service. Its stage starts at the zero Stage value (printed as
// UNKNOWN); the service's handlers advance it to the first stage.
func New(service Service, peerIP string) *Session {
	return &Session{
		service:   service,
		peerIP:    peerIP,
		inbox:     make(chan OutboundMessage, inboxCapacity),
		createdAt: time.Now(),
	}
}

// SetConn records the connection's transport so the registry can force
// -close it on eviction (spec.md §4.10: a second registration for the
// same account id "evicts the earlier entry after closing it"). Set
// once, right after accept, by the connection task that owns it.
func (s *Session) SetConn(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connSet {
		return
	}
	s.conn = c
	s.connSet = true
}

// Close closes the session's underlying transport, if one was ever
// set. A no-op for sessions that never had a connection attached
// (e.g. unit tests constructing a bare *Session).
func (s *Session) Close() error {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// Deliver enqueues msg on the session's inbox for its own connection
// task to drain and send, without blocking the caller — the sender is
// typically another connection's handler goroutine, which must never
// stall waiting on a peer's read/write loop. Returns false if the
// inbox is full, meaning the message was dropped.
func (s *Session) Deliver(msg OutboundMessage) bool {
	select {
	case s.inbox <- msg:
		return true
	default:
		return false
	}
}

// Inbox returns the channel the session's own connection task drains
// to pick up messages other connections delivered to it, in FIFO
// order (spec.md §5).
func (s *Session) Inbox() <-chan OutboundMessage {
	return s.inbox
}

// Service returns the fixed service role this session belongs to.
func (s *Session) Service() Service { return s.service }

// PeerIP returns the connection's remote address, used for rate
// limiting and logging.
func (s *Session) PeerIP() string { return s.peerIP }

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Advance moves the session to a new stage. Callers are responsible
// for only ever advancing forward; Advance itself does not enforce
// monotonicity so that tests can exercise arbitrary transitions.
func (s *Session) Advance(stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
}

// AccountID returns the authenticated account id, set exactly once
// after credential verification succeeds.
func (s *Session) AccountID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID, s.accountIDSet
}

// SetAccountID sets the account id. Calling it twice on the same
// session is a programming error — account identity never changes
// once established — so the second call is a no-op rather than a
// panic, since a misbehaving handler should not be able to crash the
// connection goroutine.
func (s *Session) SetAccountID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountIDSet {
		return
	}
	s.accountID = id
	s.accountIDSet = true
}

// Ticket returns the session's issued/redeemed ticket, if any.
func (s *Session) Ticket() (Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticket, s.ticketSet
}

// SetTicket installs the session's ticket exactly once.
func (s *Session) SetTicket(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticketSet {
		return
	}
	s.ticket = t
	s.ticketSet = true
}

// InstallCiphers sets the send/receive stream-cipher states, derived
// from the session's ticket. Installed exactly once per session, when
// the realm service redeems the auth-issued ticket or the world service
// redeems the realm-issued one.
func (s *Session) InstallCiphers(send, recv *streamcipher.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendCipher != nil || s.recvCipher != nil {
		return
	}
	s.sendCipher = send
	s.recvCipher = recv
}

// Ciphers returns the installed send/receive states, or nil, nil if
// none have been installed yet.
func (s *Session) Ciphers() (send, recv *streamcipher.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCipher, s.recvCipher
}

// Entity returns the session's entity handle once it has entered the
// world.
func (s *Session) Entity() (EntityHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entity, s.entity != 0
}

// SetEntity assigns the entity handle for a character that has
// entered the world.
func (s *Session) SetEntity(h EntityHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity = h
}

// Zone returns the (zone, instance) pair the session currently
// occupies.
func (s *Session) Zone() (zone, instance uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone, s.instance
}

// SetZone updates the session's current zone/instance.
func (s *Session) SetZone(zone, instance uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zone = zone
	s.instance = instance
}

// Position returns the session's last known world coordinates.
// Initialized to the zero vector at character select; the world
// simulation is the system that actually moves a character and mutates
// this field thereafter (spec.md §1: "the core exposes a session-state
// container the simulation mutates; it does not simulate").
func (s *Session) Position() (x, y, z float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posX, s.posY, s.posZ
}

// SetPosition updates the session's world coordinates.
func (s *Session) SetPosition(x, y, z float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posX, s.posY, s.posZ = x, y, z
}

// Character returns the selected character's name, if any.
func (s *Session) Character() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character, s.character != ""
}

// SetCharacter sets the selected character's name.
func (s *Session) SetCharacter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.character = name
}

// CharacterID returns the selected character's store id, if any.
func (s *Session) CharacterID() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.characterID, s.characterID != 0
}

// SetCharacterID sets the selected character's store id, alongside its
// display name (SetCharacter).
func (s *Session) SetCharacterID(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characterID = id
}

// ClearWorldState resets character/zone/entity fields on logout,
// leaving account id and service role untouched — a Session is never
// handed to a second account.
func (s *Session) ClearWorldState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entity = 0
	s.character = ""
	s.characterID = 0
	s.zone = 0
	s.instance = 0
	s.posX, s.posY, s.posZ = 0, 0, 0
}

// CreatedAt returns when the session was created, for idle-timeout
// bookkeeping.
func (s *Session) CreatedAt() time.Time { return s.createdAt }
