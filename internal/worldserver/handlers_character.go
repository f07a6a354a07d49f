package worldserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ionforge/wildcore/internal/dispatch"
	"github.com/ionforge/wildcore/internal/opcode"
	"github.com/ionforge/wildcore/internal/session"
	"github.com/ionforge/wildcore/internal/store"
	"github.com/ionforge/wildcore/internal/worldpackets"
)

// handleClientCharacterList replies with the fixed seven-packet
// sequence spec.md §6 requires in this exact order: currencies,
// unlocks, entitlements, tier, reward properties, max level, and
// finally the roster itself.
func handleClientCharacterList(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		accountID, ok := s.AccountID()
		if !ok {
			slog.Warn("ClientCharacterList before session install", "peer", s.PeerIP())
			return dispatch.Directive{Close: true}, nil
		}

		acct, err := dep.accounts.GetAccountByID(ctx, accountID)
		if err != nil || acct == nil {
			slog.Error("account lookup failed for character list", "account", accountID, "err", err)
			return dispatch.Directive{Close: true}, nil
		}

		chars, err := dep.characters.ListCharacters(ctx, accountID)
		if err != nil {
			slog.Error("listing characters failed", "account", accountID, "err", err)
			return dispatch.Directive{Close: true}, nil
		}
		entries := make([]worldpackets.CharacterListEntry, len(chars))
		for i, c := range chars {
			entries[i] = worldpackets.CharacterListEntry{
				CharacterID: c.CharacterID,
				Name:        c.Name,
				Level:       c.Level,
				ZoneID:      c.ZoneID,
				LastLogin:   c.LastLogin,
			}
		}

		replies, err := characterListReplies(acct.Tier, entries, dep.maxCharacterLevel)
		if err != nil {
			return dispatch.Directive{}, err
		}

		s.Advance(session.WorldCharacterListed)
		return dispatch.Directive{Replies: replies, KeepAlive: true}, nil
	}
}

func characterListReplies(tier store.Tier, chars []worldpackets.CharacterListEntry, maxLevel uint32) ([]dispatch.Reply, error) {
	extraSlots := uint32(0)
	wireTier := worldpackets.TierFree
	if tier == store.TierSignature {
		extraSlots = worldpackets.SignatureCharacterSlots - worldpackets.BaseCharacterSlots
		wireTier = worldpackets.TierSignature
	}

	currencies, err := worldpackets.ServerAccountCurrencies{}.Write()
	if err != nil {
		return nil, err
	}
	unlocks, err := worldpackets.ServerAccountUnlocks{}.Write()
	if err != nil {
		return nil, err
	}
	entitlements, err := worldpackets.ServerAccountEntitlements{ExtraCharacterSlots: extraSlots}.Write()
	if err != nil {
		return nil, err
	}
	tierPayload, err := worldpackets.ServerAccountTier{Tier: wireTier}.Write()
	if err != nil {
		return nil, err
	}
	rewards, err := worldpackets.ServerRewardProperties{}.Write()
	if err != nil {
		return nil, err
	}
	maxLvl, err := worldpackets.ServerMaxCharacterLevel{MaxLevel: maxLevel}.Write()
	if err != nil {
		return nil, err
	}
	list, err := worldpackets.ServerCharacterList{Characters: chars}.Write()
	if err != nil {
		return nil, err
	}

	return []dispatch.Reply{
		{Opcode: opcode.SServerAccountCurrencies, Payload: currencies, Envelope: dispatch.WorldEncrypted},
		{Opcode: opcode.SServerAccountUnlocks, Payload: unlocks, Envelope: dispatch.WorldEncrypted},
		{Opcode: opcode.SServerAccountEntitlements, Payload: entitlements, Envelope: dispatch.WorldEncrypted},
		{Opcode: opcode.SServerAccountTier, Payload: tierPayload, Envelope: dispatch.WorldEncrypted},
		{Opcode: opcode.SServerRewardProperties, Payload: rewards, Envelope: dispatch.WorldEncrypted},
		{Opcode: opcode.SServerMaxCharacterLevel, Payload: maxLvl, Envelope: dispatch.WorldEncrypted},
		{Opcode: opcode.SServerCharacterList, Payload: list, Envelope: dispatch.WorldEncrypted},
	}, nil
}

// handleClientCharacterCreate validates a proposed character against
// spec.md §4.8's name/customization rules, resolves its creation
// template, checks the account's slot cap, and persists it.
func handleClientCharacterCreate(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := worldpackets.ReadClientCharacterCreate(body)
		if err != nil {
			slog.Warn("malformed ClientCharacterCreate", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}
		accountID, ok := s.AccountID()
		if !ok {
			return dispatch.Directive{Close: true}, nil
		}

		if !validateName(req.Name) {
			return createFailed(worldpackets.CreateResultInvalidName)
		}
		if !validateCustomization(req) {
			return createFailed(worldpackets.CreateResultInvalidCustom)
		}

		tmpl, err := dep.static.GetCharacterCreationTemplate(ctx, req.CreationTemplateID)
		if err != nil {
			slog.Error("creation template lookup failed", "template", req.CreationTemplateID, "err", err)
			return createFailed(worldpackets.CreateResultInvalidCustom)
		}
		if tmpl == nil {
			slog.Warn("unknown creation template requested", "template", req.CreationTemplateID, "account", accountID)
			return createFailed(worldpackets.CreateResultInvalidCustom)
		}

		acct, err := dep.accounts.GetAccountByID(ctx, accountID)
		if err != nil || acct == nil {
			slog.Error("account lookup failed for character create", "account", accountID, "err", err)
			return createFailed(worldpackets.CreateResultSlotsFull)
		}
		existing, err := dep.characters.ListCharacters(ctx, accountID)
		if err != nil {
			slog.Error("listing characters failed", "account", accountID, "err", err)
			return createFailed(worldpackets.CreateResultSlotsFull)
		}
		maxSlots := worldpackets.BaseCharacterSlots
		if acct.Tier == store.TierSignature {
			maxSlots = worldpackets.SignatureCharacterSlots
		}
		if uint32(len(existing)) >= maxSlots {
			return createFailed(worldpackets.CreateResultSlotsFull)
		}

		attrs := store.CharacterAttrs{
			Sex:                tmpl.Sex,
			Race:               tmpl.Race,
			Class:              tmpl.Class,
			Path:               req.Path,
			CreationTemplateID: req.CreationTemplateID,
		}
		created, err := dep.characters.CreateCharacter(ctx, accountID, req.Name, attrs)
		if err != nil {
			if errors.Is(err, store.ErrCharacterNameTaken) {
				return createFailed(worldpackets.CreateResultNameTaken)
			}
			slog.Error("character create failed", "account", accountID, "name", req.Name, "err", err)
			return createFailed(worldpackets.CreateResultInvalidCustom)
		}

		slog.Info("character created", "account", accountID, "name", req.Name, "character_id", created.CharacterID)
		payload, err := worldpackets.ServerCharacterCreate{ResultCode: worldpackets.CreateResultOK, CharacterID: created.CharacterID}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}
		return dispatch.Directive{
			Replies:   []dispatch.Reply{{Opcode: opcode.SServerCharacterCreate, Payload: payload, Envelope: dispatch.WorldEncrypted}},
			KeepAlive: true,
		}, nil
	}
}

// excludeSelf drops s from a zone membership slice, since a spawn
// broadcast has no business being delivered back to the spawning
// connection's own inbox.
func excludeSelf(members []*session.Session, s *session.Session) []*session.Session {
	out := members[:0:0]
	for _, m := range members {
		if m != s {
			out = append(out, m)
		}
	}
	return out
}

func createFailed(code uint32) (dispatch.Directive, error) {
	payload, err := worldpackets.ServerCharacterCreate{ResultCode: code}.Write()
	if err != nil {
		return dispatch.Directive{}, err
	}
	return dispatch.Directive{
		Replies:   []dispatch.Reply{{Opcode: opcode.SServerCharacterCreate, Payload: payload, Envelope: dispatch.WorldEncrypted}},
		KeepAlive: true,
	}, nil
}

// handleClientCharacterSelect verifies ownership, allocates an entity
// handle, registers the session in the world's entity/zone indices,
// and emits the fixed eleven-packet world-enter sequence spec.md §6
// names in order.
func handleClientCharacterSelect(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		req, err := worldpackets.ReadClientCharacterSelect(body)
		if err != nil {
			slog.Warn("malformed ClientCharacterSelect", "peer", s.PeerIP(), "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}
		accountID, ok := s.AccountID()
		if !ok {
			return dispatch.Directive{Close: true}, nil
		}

		char, err := dep.characters.GetOwned(ctx, accountID, req.CharacterID)
		if err != nil {
			slog.Error("character ownership lookup failed", "account", accountID, "character_id", req.CharacterID, "err", err)
			return dispatch.Directive{KeepAlive: true}, nil
		}
		if char == nil {
			slog.Warn("character select for unowned character", "account", accountID, "character_id", req.CharacterID, "peer", s.PeerIP())
			return dispatch.Directive{KeepAlive: true}, nil
		}

		if err := dep.characters.UpdateLastOnline(ctx, char.CharacterID); err != nil {
			slog.Error("updating last-online failed", "character_id", char.CharacterID, "err", err)
		}

		handle := dep.entities.Allocate(session.EntityPlayer)
		zone, instance := char.ZoneID, uint32(0)

		s.SetCharacter(char.Name)
		s.SetCharacterID(char.CharacterID)
		// The world simulation owns real spawn coordinates (spec.md
		// §1); the core only seeds the zero vector here so
		// nearby_in_zone has something to filter on before the first
		// movement update lands.
		s.SetPosition(0, 0, 0)

		dep.registry.SetEntityHandle(accountID, handle)
		dep.registry.UpdateZone(accountID, zone, instance)

		guid := uint32(handle)
		replies, err := characterSelectReplies(guid, zone, instance)
		if err != nil {
			return dispatch.Directive{}, err
		}

		slog.Info("character selected", "account", accountID, "character", char.Name, "peer", s.PeerIP())
		return dispatch.Directive{Replies: replies, KeepAlive: true}, nil
	}
}

func characterSelectReplies(guid, zone, instance uint32) ([]dispatch.Reply, error) {
	worldEnter, err := worldpackets.ServerWorldEnter{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}
	flags, err := worldpackets.ServerCharacterFlagsUpdated{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}
	entityCreate, err := worldpackets.ServerEntityCreate{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}
	pathType, err := worldpackets.ServerSetUnitPathType{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}
	playerChanged, err := worldpackets.ServerPlayerChanged{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}
	pathInit, err := worldpackets.ServerPathInitialise{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}
	timeOfDay, err := worldpackets.ServerTimeOfDay{}.Write()
	if err != nil {
		return nil, err
	}
	housing, err := worldpackets.ServerHousingNeighbors{}.Write()
	if err != nil {
		return nil, err
	}
	instanceSettings, err := worldpackets.ServerInstanceSettings{Zone: zone, Instance: instance}.Write()
	if err != nil {
		return nil, err
	}
	movement, err := worldpackets.ServerMovementControl{GUID: guid, Granted: true}.Write()
	if err != nil {
		return nil, err
	}
	playerCreate, err := worldpackets.ServerPlayerCreate{GUID: guid}.Write()
	if err != nil {
		return nil, err
	}

	ops := []uint16{
		opcode.SServerWorldEnter,
		opcode.SServerCharacterFlagsUpdated,
		opcode.SServerEntityCreate,
		opcode.SServerSetUnitPathType,
		opcode.SServerPlayerChanged,
		opcode.SServerPathInitialise,
		opcode.SServerTimeOfDay,
		opcode.SServerHousingNeighbors,
		opcode.SServerInstanceSettings,
		opcode.SServerMovementControl,
		opcode.SServerPlayerCreate,
	}
	payloads := [][]byte{
		worldEnter, flags, entityCreate, pathType, playerChanged,
		pathInit, timeOfDay, housing, instanceSettings, movement, playerCreate,
	}

	replies := make([]dispatch.Reply, len(ops))
	for i := range ops {
		replies[i] = dispatch.Reply{Opcode: ops[i], Payload: payloads[i], Envelope: dispatch.WorldEncrypted}
	}
	return replies, nil
}

// handleClientEnteredWorld finalizes world entry: it makes the
// character's presence visible to the rest of its zone bucket and
// dismisses the client's loading screen.
func handleClientEnteredWorld(dep deps) dispatch.Handler {
	return func(ctx context.Context, s *session.Session, body []byte) (dispatch.Directive, error) {
		accountID, ok := s.AccountID()
		if !ok {
			return dispatch.Directive{Close: true}, nil
		}
		entity, ok := s.Entity()
		if !ok {
			slog.Warn("ClientEnteredWorld before character select", "account", accountID, "peer", s.PeerIP())
			return dispatch.Directive{KeepAlive: true}, nil
		}
		zone, instance := s.Zone()
		x, y, z := s.Position()
		nearby := dep.registry.NearbyInZone(zone, instance, x, y, z, worldpackets.SpawnVisibilityRadius)
		nearby = excludeSelf(nearby, s)

		s.Advance(session.WorldInWorld)
		slog.Info("player entered world", "account", accountID, "entity", entity, "zone", zone, "instance", instance, "nearby", len(nearby))

		if len(nearby) > 0 {
			spawn, err := worldpackets.ServerEntityCreate{GUID: uint32(entity)}.Write()
			if err != nil {
				return dispatch.Directive{}, err
			}
			if err := dep.registry.Broadcast(ctx, nearby, session.OutboundMessage{
				Opcode:  opcode.SServerEntityCreate,
				Payload: spawn,
			}); err != nil {
				slog.Warn("spawn broadcast partially failed", "account", accountID, "entity", entity, "err", err)
			}
		}

		payload, err := worldpackets.ServerPlayerEnteredWorld{}.Write()
		if err != nil {
			return dispatch.Directive{}, err
		}
		return dispatch.Directive{
			Replies:   []dispatch.Reply{{Opcode: opcode.SServerPlayerEnteredWorld, Payload: payload, Envelope: dispatch.WorldEncrypted}},
			KeepAlive: true,
		}, nil
	}
}
