package worldserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/registry"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store"
	"github.com/ionforge/wildcore/internal/streamcipher"
	"github.com/ionforge/wildcore/internal/worldpackets"
)

// fakeStore is an in-memory stand-in for store.AccountStore,
// store.CharacterStore, and store.StaticData, sized just large enough
// to drive the handler tests below.
type fakeStore struct {
	accounts   map[string]*store.Account
	characters map[uint64]store.CharacterSummary
	accountOf  map[uint64]string
	templates  map[uint32]*store.CreationTemplate
	nextCharID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:   make(map[string]*store.Account),
		characters: make(map[uint64]store.CharacterSummary),
		accountOf:  make(map[uint64]string),
		templates:  make(map[uint32]*store.CreationTemplate),
		nextCharID: 1,
	}
}

func (f *fakeStore) GetAccount(ctx context.Context, login string) (*store.Account, error) {
	for _, a := range f.accounts {
		if a.Login == login {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetAccountByID(ctx context.Context, id string) (*store.Account, error) {
	return f.accounts[id], nil
}

func (f *fakeStore) UpdateTicket(ctx context.Context, accountID, ticketHex string) error {
	if a, ok := f.accounts[accountID]; ok {
		a.Ticket = ticketHex
	}
	return nil
}

func (f *fakeStore) ValidateSession(ctx context.Context, email, ticketHex, accountID string) (bool, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return false, nil
	}
	return a.Login == email && a.Ticket == ticketHex, nil
}

func (f *fakeStore) ListCharacters(ctx context.Context, accountID string) ([]store.CharacterSummary, error) {
	var out []store.CharacterSummary
	for id, c := range f.characters {
		if f.accountOf[id] == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateCharacter(ctx context.Context, accountID, name string, attrs store.CharacterAttrs) (store.CharacterSummary, error) {
	for id, c := range f.characters {
		if f.accountOf[id] == accountID && c.Name == name {
			return store.CharacterSummary{}, store.ErrCharacterNameTaken
		}
	}
	c := store.CharacterSummary{CharacterID: f.nextCharID, Name: name, Level: 1}
	f.characters[c.CharacterID] = c
	f.accountOf[c.CharacterID] = accountID
	f.nextCharID++
	return c, nil
}

func (f *fakeStore) GetOwned(ctx context.Context, accountID string, characterID uint64) (*store.CharacterSummary, error) {
	c, ok := f.characters[characterID]
	if !ok || f.accountOf[characterID] != accountID {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) UpdateLastOnline(ctx context.Context, characterID uint64) error {
	return nil
}

func (f *fakeStore) RealmStatuses(ctx context.Context) ([]store.RealmStatus, error) { return nil, nil }

func (f *fakeStore) GetCharacterCreationTemplate(ctx context.Context, id uint32) (*store.CreationTemplate, error) {
	return f.templates[id], nil
}

func newDeps(f *fakeStore) deps {
	return deps{
		accounts:          f,
		characters:        f,
		static:            f,
		registry:          registry.New(),
		entities:          session.NewEntityAllocator(),
		realmID:           1,
		otherRealms:       []config.RealmEntry{{ID: 2, Name: "Nexus", Host: "127.0.0.1", Port: 6702}},
		maxCharacterLevel: 50,
	}
}

func TestHandleClientHelloRealmInstallsSession(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7", Login: "alice@example.com", Ticket: ""}
	var ticket [16]byte
	for i := range ticket {
		ticket[i] = byte(i + 1)
	}
	f.accounts["7"].Ticket = (session.Ticket(ticket)).String()

	dep := newDeps(f)
	s := session.New(session.ServiceWorld, "10.0.0.1")

	req := worldpackets.ClientHelloRealm{Email: "alice@example.com", AccountID: 7, Ticket: ticket}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientHelloRealm(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.False(t, dir.Close)
	require.Empty(t, dir.Replies)

	acct, ok := s.AccountID()
	require.True(t, ok)
	require.Equal(t, "7", acct)
	require.Equal(t, session.WorldSessionKeyed, s.Stage())
	send, recv := s.Ciphers()
	require.NotNil(t, send)
	require.NotNil(t, recv)

	_, found := dep.registry.LookupAccount("7")
	require.True(t, found)
}

func TestHandleClientHelloRealmRejectsBadTicket(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7", Login: "alice@example.com", Ticket: session.Ticket{}.String()}
	dep := newDeps(f)
	s := session.New(session.ServiceWorld, "10.0.0.1")

	req := worldpackets.ClientHelloRealm{Email: "alice@example.com", AccountID: 7, Ticket: [16]byte{1, 2, 3}}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientHelloRealm(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.True(t, dir.Close)
	_, ok := s.AccountID()
	require.False(t, ok)
}

// installedSession builds a session already past the handshake and
// registers it in dep's registry under accountID, the same way
// handleClientHelloRealm would have before any of the handlers under
// test here run.
func installedSession(t *testing.T, dep deps, accountID string) *session.Session {
	t.Helper()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	s.SetAccountID(accountID)
	ticket := bytes16(0x9)
	s.InstallCiphers(streamcipher.SendState(ticket), streamcipher.ReceiveState(ticket))
	s.Advance(session.WorldSessionKeyed)
	dep.registry.RegisterAccount(accountID, s)
	return s
}

func bytes16(b byte) []byte {
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestHandleClientCharacterListOrdersRepliesAndReportsTier(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7", Login: "alice@example.com", Tier: store.TierSignature}
	f.characters[1] = store.CharacterSummary{CharacterID: 1, Name: "Aeryn", Level: 5}
	f.accountOf[1] = "7"
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	dir, err := handleClientCharacterList(dep)(context.Background(), s, nil)
	require.NoError(t, err)
	require.Len(t, dir.Replies, 7)

	wantOrder := []uint16{
		opcode.SServerAccountCurrencies,
		opcode.SServerAccountUnlocks,
		opcode.SServerAccountEntitlements,
		opcode.SServerAccountTier,
		opcode.SServerRewardProperties,
		opcode.SServerMaxCharacterLevel,
		opcode.SServerCharacterList,
	}
	for i, op := range wantOrder {
		require.Equal(t, op, dir.Replies[i].Opcode, "reply %d", i)
		require.Equal(t, dispatch.WorldEncrypted, dir.Replies[i].Envelope)
	}

	tier, err := worldpackets.ServerAccountTier{Tier: worldpackets.TierSignature}.Write()
	require.NoError(t, err)
	require.Equal(t, tier, dir.Replies[3].Payload)
}

func TestHandleClientCharacterCreateRejectsInvalidName(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7"}
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientCharacterCreate{Name: "a"}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientCharacterCreate(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.Len(t, dir.Replies, 1)

	got, err := worldpackets.ServerCharacterCreate{ResultCode: worldpackets.CreateResultInvalidName}.Write()
	require.NoError(t, err)
	require.Equal(t, got, dir.Replies[0].Payload)
}

func TestHandleClientCharacterCreateSucceeds(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7"}
	f.templates[3] = &store.CreationTemplate{ID: 3, Race: 1, Class: 2, Sex: 1}
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientCharacterCreate{Name: "Aeryn", CreationTemplateID: 3}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientCharacterCreate(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.Len(t, dir.Replies, 1)

	result, err := worldpackets.ReadClientCharacterSelect(nil) // no-op to keep worldpackets import used below
	_ = result
	_ = err

	require.Len(t, f.characters, 1)
}

func TestHandleClientCharacterSelectRejectsUnownedCharacter(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7"}
	f.characters[1] = store.CharacterSummary{CharacterID: 1, Name: "Bob"}
	f.accountOf[1] = "someone-else"
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientCharacterSelect{CharacterID: 1}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientCharacterSelect(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.Empty(t, dir.Replies)
	_, ok := s.Entity()
	require.False(t, ok)
}

func TestHandleClientCharacterSelectEmitsElevenPacketSequence(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7"}
	f.characters[1] = store.CharacterSummary{CharacterID: 1, Name: "Aeryn", ZoneID: 42}
	f.accountOf[1] = "7"
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientCharacterSelect{CharacterID: 1}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientCharacterSelect(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.Len(t, dir.Replies, 11)
	require.Equal(t, opcode.SServerWorldEnter, dir.Replies[0].Opcode)
	require.Equal(t, opcode.SServerPlayerCreate, dir.Replies[10].Opcode)

	entity, ok := s.Entity()
	require.True(t, ok)
	_, found := dep.registry.LookupEntity(entity)
	require.True(t, found)
	zone, _ := s.Zone()
	require.Equal(t, uint32(42), zone)
}

func TestHandleClientLogoutRequestInitiatedClosesConnection(t *testing.T) {
	f := newFakeStore()
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientLogoutRequest{Initiated: true}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientLogoutRequest(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.True(t, dir.Close)
	require.Len(t, dir.Replies, 1)
	require.Equal(t, opcode.SServerLogout, dir.Replies[0].Opcode)
}

func TestHandleClientLogoutRequestCancelIsNoOp(t *testing.T) {
	f := newFakeStore()
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientLogoutRequest{Cancel: true}
	body, err := req.Write()
	require.NoError(t, err)

	dir, err := handleClientLogoutRequest(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.False(t, dir.Close)
	require.Empty(t, dir.Replies)
}

func TestHandleClientRealmSelectBackButtonIsNoOp(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7"}
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	req := worldpackets.ClientHelloRealm{} // unused, kept for import symmetry
	_ = req

	body := make([]byte, 4)
	body[0] = 1 // realm id 1, little-endian u32 == dep.realmID
	dir, err := handleClientRealmSelect(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.Empty(t, dir.Replies)
}

func TestHandleClientRealmSelectRedirectsToOtherRealm(t *testing.T) {
	f := newFakeStore()
	f.accounts["7"] = &store.Account{ID: "7"}
	dep := newDeps(f)
	s := installedSession(t, dep, "7")

	body := make([]byte, 4)
	body[0] = 2 // matches dep.otherRealms[0].ID
	dir, err := handleClientRealmSelect(dep)(context.Background(), s, body)
	require.NoError(t, err)
	require.Len(t, dir.Replies, 1)
	require.Equal(t, opcode.SServerNewRealmWorld, dir.Replies[0].Opcode)
}
