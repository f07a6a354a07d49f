package worldserver

import (
	"github.com/ionforge/wildcore/internal/config"
	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/registry"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store"
)

// deps bundles the external collaborators world handlers close over.
type deps struct {
	accounts   store.AccountStore
	characters store.CharacterStore
	static     store.StaticData
	registry   *registry.Registry
	entities   *session.EntityAllocator

	realmID           int
	otherRealms       []config.RealmEntry
	maxCharacterLevel uint32
}

func registerHandlers(d *dispatch.Dispatcher, dep deps) {
	d.Register(opcode.World, opcode.CClientHelloRealmWorld, handleClientHelloRealm(dep))
	d.Register(opcode.World, opcode.CClientRealmSelect, handleClientRealmSelect(dep))
	d.Register(opcode.World, opcode.CClientPregameKeepAlive, handleClientPregameKeepAlive(dep))
	d.Register(opcode.World, opcode.CClientLogoutRequest, handleClientLogoutRequest(dep))
	d.Register(opcode.World, opcode.CClientCharacterList, handleClientCharacterList(dep))
	d.Register(opcode.World, opcode.CClientCharacterCreate, handleClientCharacterCreate(dep))
	d.Register(opcode.World, opcode.CClientCharacterSelect, handleClientCharacterSelect(dep))
	d.Register(opcode.World, opcode.CClientEnteredWorld, handleClientEnteredWorld(dep))
}
