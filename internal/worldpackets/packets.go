// Package worldpackets holds the world-service packet schemas: session
// install, character list/create/select, world entry, and the fixed
// reply sequences spec.md §6 requires in exact order. Packets here are
// carried inside the world-encrypted envelope (internal/dispatch); the
// schemas themselves only know their own field layout, not the
// envelope that wraps them.
package worldpackets

import (
	"fmt"

	"github.com/ionforge/wildcore/internal/constants"
	"github.com/ionforge/wildcore/internal/wire"
)

// ClientHelloRealm is the world service's session-install message:
// email, account_id:u64, session_key:bytes[16].
type ClientHelloRealm struct {
	Email     string
	AccountID uint64
	Ticket    [constants.TicketSize]byte
}

// ReadClientHelloRealm decodes a ClientHelloRealm payload.
func ReadClientHelloRealm(payload []byte) (ClientHelloRealm, error) {
	var p ClientHelloRealm
	c := wire.NewCursor(payload)

	emailLen, c, err := c.ReadU32()
	if err != nil {
		return p, fmt.Errorf("worldpackets: ClientHelloRealm.EmailLen: %w", err)
	}
	email, c, err := c.ReadStringUTF16LE(int(emailLen))
	if err != nil {
		return p, fmt.Errorf("worldpackets: ClientHelloRealm.Email: %w", err)
	}
	p.Email = email

	accountID, c, err := c.ReadU64()
	if err != nil {
		return p, fmt.Errorf("worldpackets: ClientHelloRealm.AccountID: %w", err)
	}
	p.AccountID = accountID

	ticket, _, err := c.ReadBytes(len(p.Ticket))
	if err != nil {
		return p, fmt.Errorf("worldpackets: ClientHelloRealm.Ticket: %w", err)
	}
	copy(p.Ticket[:], ticket)
	return p, nil
}

// Write encodes a ClientHelloRealm payload.
func (p ClientHelloRealm) Write() ([]byte, error) {
	buf := make([]byte, 4+len(p.Email)*2+8+len(p.Ticket))
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(len([]rune(p.Email))))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteStringUTF16LE(p.Email)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU64(p.AccountID)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteBytes(p.Ticket[:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// ClientCharacterList requests the account's character roster. It
// carries no fields.
type ClientCharacterList struct{}

// ReadClientCharacterList validates the (empty) payload.
func ReadClientCharacterList(payload []byte) (ClientCharacterList, error) {
	return ClientCharacterList{}, nil
}

// ClientCharacterSelect carries the chosen character id.
type ClientCharacterSelect struct {
	CharacterID uint64
}

// ReadClientCharacterSelect decodes a ClientCharacterSelect payload.
func ReadClientCharacterSelect(payload []byte) (ClientCharacterSelect, error) {
	c := wire.NewCursor(payload)
	id, _, err := c.ReadU64()
	if err != nil {
		return ClientCharacterSelect{}, fmt.Errorf("worldpackets: ClientCharacterSelect.CharacterID: %w", err)
	}
	return ClientCharacterSelect{CharacterID: id}, nil
}

// Write encodes a ClientCharacterSelect payload.
func (p ClientCharacterSelect) Write() ([]byte, error) {
	buf := make([]byte, 8)
	_, err := wire.NewCursor(buf).WriteU64(p.CharacterID)
	return buf, err
}

// ClientCharacterCreate carries a proposed new character: name, sex,
// race, class, path, a creation template id, and the customization
// arrays (matching labels/values and bone offsets).
type ClientCharacterCreate struct {
	Name               string
	Sex                uint8
	Race               uint8
	Class              uint8
	Path               uint8
	CreationTemplateID uint32
	Labels             []string
	Values             []string
	Bones              []float32
}

// ReadClientCharacterCreate decodes a ClientCharacterCreate payload.
func ReadClientCharacterCreate(payload []byte) (ClientCharacterCreate, error) {
	var p ClientCharacterCreate
	c := wire.NewCursor(payload)

	nameLen, c, err := c.ReadU32()
	if err != nil {
		return p, fmt.Errorf("worldpackets: ClientCharacterCreate.NameLen: %w", err)
	}
	name, c, err := c.ReadStringUTF16LE(int(nameLen))
	if err != nil {
		return p, fmt.Errorf("worldpackets: ClientCharacterCreate.Name: %w", err)
	}
	p.Name = name

	sex, c, err := c.ReadUint(8)
	if err != nil {
		return p, err
	}
	p.Sex = uint8(sex)
	race, c, err := c.ReadUint(8)
	if err != nil {
		return p, err
	}
	p.Race = uint8(race)
	class, c, err := c.ReadUint(8)
	if err != nil {
		return p, err
	}
	p.Class = uint8(class)
	path, c, err := c.ReadUint(8)
	if err != nil {
		return p, err
	}
	p.Path = uint8(path)

	c = c.Align()
	templateID, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.CreationTemplateID = templateID

	labelCount, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.Labels = make([]string, labelCount)
	p.Values = make([]string, labelCount)
	for i := range p.Labels {
		ll, next, err := c.ReadU32()
		if err != nil {
			return p, err
		}
		c = next
		label, next, err := c.ReadStringUTF16LE(int(ll))
		if err != nil {
			return p, err
		}
		c = next
		p.Labels[i] = label

		vl, next, err := c.ReadU32()
		if err != nil {
			return p, err
		}
		c = next
		value, next, err := c.ReadStringUTF16LE(int(vl))
		if err != nil {
			return p, err
		}
		c = next
		p.Values[i] = value
	}

	boneCount, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.Bones = make([]float32, boneCount)
	for i := range p.Bones {
		v, next, err := c.ReadF32()
		if err != nil {
			return p, err
		}
		c = next
		p.Bones[i] = v
	}

	return p, nil
}

// Write encodes a ClientCharacterCreate payload.
func (p ClientCharacterCreate) Write() ([]byte, error) {
	size := 4 + len(p.Name)*2 + 4 + 4 + 4
	for i := range p.Labels {
		size += 4 + len(p.Labels[i])*2 + 4 + len(p.Values[i])*2
	}
	size += 4 + len(p.Bones)*4
	buf := make([]byte, size)
	c := wire.NewCursor(buf)

	c, err := c.WriteU32(uint32(len([]rune(p.Name))))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteStringUTF16LE(p.Name)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(8, uint64(p.Sex))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(8, uint64(p.Race))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(8, uint64(p.Class))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(8, uint64(p.Path))
	if err != nil {
		return nil, err
	}
	c = c.Align()
	c, err = c.WriteU32(p.CreationTemplateID)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU32(uint32(len(p.Labels)))
	if err != nil {
		return nil, err
	}
	for i := range p.Labels {
		c, err = c.WriteU32(uint32(len([]rune(p.Labels[i]))))
		if err != nil {
			return nil, err
		}
		c, err = c.WriteStringUTF16LE(p.Labels[i])
		if err != nil {
			return nil, err
		}
		c, err = c.WriteU32(uint32(len([]rune(p.Values[i]))))
		if err != nil {
			return nil, err
		}
		c, err = c.WriteStringUTF16LE(p.Values[i])
		if err != nil {
			return nil, err
		}
	}
	c, err = c.WriteU32(uint32(len(p.Bones)))
	if err != nil {
		return nil, err
	}
	for _, b := range p.Bones {
		c, err = c.WriteF32(b)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ClientEnteredWorld finalizes world entry. It carries no fields.
type ClientEnteredWorld struct{}

// ReadClientEnteredWorld validates the (empty) payload.
func ReadClientEnteredWorld(payload []byte) (ClientEnteredWorld, error) {
	return ClientEnteredWorld{}, nil
}

// ClientPregameKeepAlive refreshes the idle timer. It carries no fields.
type ClientPregameKeepAlive struct{}

// ReadClientPregameKeepAlive validates the (empty) payload.
func ReadClientPregameKeepAlive(payload []byte) (ClientPregameKeepAlive, error) {
	return ClientPregameKeepAlive{}, nil
}

// ClientLogoutRequest carries the two single-bit flags spec.md §4.8
// describes: Initiated starts teardown, Cancel aborts a pending one.
type ClientLogoutRequest struct {
	Initiated bool
	Cancel    bool
}

// ReadClientLogoutRequest decodes a ClientLogoutRequest payload.
func ReadClientLogoutRequest(payload []byte) (ClientLogoutRequest, error) {
	c := wire.NewCursor(payload)
	initiated, c, err := c.ReadUint(1)
	if err != nil {
		return ClientLogoutRequest{}, err
	}
	cancel, _, err := c.ReadUint(1)
	if err != nil {
		return ClientLogoutRequest{}, err
	}
	return ClientLogoutRequest{Initiated: initiated == 1, Cancel: cancel == 1}, nil
}

// Write encodes a ClientLogoutRequest payload.
func (p ClientLogoutRequest) Write() ([]byte, error) {
	buf := make([]byte, 1)
	c := wire.NewCursor(buf)
	c, err := c.WriteUint(1, boolBit(p.Initiated))
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteUint(1, boolBit(p.Cancel)); err != nil {
		return nil, err
	}
	return buf, nil
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// ServerCharacterCreate replies to ClientCharacterCreate: result_code,
// character_id, world_id. CharacterID/WorldID are only meaningful when
// ResultCode signals success.
type ServerCharacterCreate struct {
	ResultCode  uint32
	CharacterID uint64
	WorldID     uint32
}

// Result codes for ServerCharacterCreate.
const (
	CreateResultOK            uint32 = 0
	CreateResultInvalidName   uint32 = 1
	CreateResultNameTaken     uint32 = 2
	CreateResultSlotsFull     uint32 = 3
	CreateResultInvalidCustom uint32 = 4
)

// Write encodes a ServerCharacterCreate payload.
func (p ServerCharacterCreate) Write() ([]byte, error) {
	buf := make([]byte, 4+8+4)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.ResultCode)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU64(p.CharacterID)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteU32(p.WorldID); err != nil {
		return nil, err
	}
	return buf, nil
}

// CurrencyAmount is one entry in ServerAccountCurrencies.
type CurrencyAmount struct {
	CurrencyID uint32
	Amount     uint64
}

// ServerAccountCurrencies is the first of the fixed ClientCharacterList
// reply packets.
type ServerAccountCurrencies struct {
	Currencies []CurrencyAmount
}

// Write encodes a ServerAccountCurrencies payload.
func (p ServerAccountCurrencies) Write() ([]byte, error) {
	buf := make([]byte, 4+len(p.Currencies)*12)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(len(p.Currencies)))
	if err != nil {
		return nil, err
	}
	for _, cur := range p.Currencies {
		c, err = c.WriteU32(cur.CurrencyID)
		if err != nil {
			return nil, err
		}
		c, err = c.WriteU64(cur.Amount)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ServerAccountUnlocks lists the account's purchased unlock ids.
type ServerAccountUnlocks struct {
	UnlockIDs []uint32
}

// Write encodes a ServerAccountUnlocks payload.
func (p ServerAccountUnlocks) Write() ([]byte, error) {
	buf := make([]byte, 4+len(p.UnlockIDs)*4)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(len(p.UnlockIDs)))
	if err != nil {
		return nil, err
	}
	for _, id := range p.UnlockIDs {
		c, err = c.WriteU32(id)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Entitlement slot counts named in spec.md §4.8: free tier reports 2
// base character slots, signature tier reports 12; this packet
// delivers the delta above the 2-slot base.
const (
	BaseCharacterSlots      uint32 = 2
	SignatureCharacterSlots uint32 = 12
)

// SpawnVisibilityRadius is the distance, in world units, within which
// ClientEnteredWorld broadcasts a newly-spawned character's
// ServerEntityCreate to other players sharing the zone instance.
// spec.md §9 leaves the anti-cheat movement thresholds to a single
// future configuration source; visibility radius is the one spatial
// constant the core needs today and is kept here beside the other
// wire-level magic numbers until that configuration source exists.
const SpawnVisibilityRadius float32 = 100.0

// ServerAccountEntitlements carries the extra character slots an
// account's tier grants above the 2-slot base.
type ServerAccountEntitlements struct {
	ExtraCharacterSlots uint32
}

// Write encodes a ServerAccountEntitlements payload.
func (p ServerAccountEntitlements) Write() ([]byte, error) {
	buf := make([]byte, 4)
	_, err := wire.NewCursor(buf).WriteU32(p.ExtraCharacterSlots)
	return buf, err
}

// ServerAccountTier reports the account's subscription tier.
type ServerAccountTier struct {
	Tier uint8
}

// Account tiers.
const (
	TierFree      uint8 = 0
	TierSignature uint8 = 1
)

// Write encodes a ServerAccountTier payload.
func (p ServerAccountTier) Write() ([]byte, error) {
	return []byte{p.Tier}, nil
}

// ServerRewardProperties lists the account's active reward-track
// property ids.
type ServerRewardProperties struct {
	PropertyIDs []uint32
}

// Write encodes a ServerRewardProperties payload.
func (p ServerRewardProperties) Write() ([]byte, error) {
	buf := make([]byte, 4+len(p.PropertyIDs)*4)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(len(p.PropertyIDs)))
	if err != nil {
		return nil, err
	}
	for _, id := range p.PropertyIDs {
		c, err = c.WriteU32(id)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ServerMaxCharacterLevel reports the account's max reachable
// character level.
type ServerMaxCharacterLevel struct {
	MaxLevel uint32
}

// Write encodes a ServerMaxCharacterLevel payload.
func (p ServerMaxCharacterLevel) Write() ([]byte, error) {
	buf := make([]byte, 4)
	_, err := wire.NewCursor(buf).WriteU32(p.MaxLevel)
	return buf, err
}

// CharacterListEntry summarizes one character in ServerCharacterList.
type CharacterListEntry struct {
	CharacterID uint64
	Name        string
	Level       uint32
	ZoneID      uint32
	LastLogin   int64
}

// ServerCharacterList is the last of the fixed ClientCharacterList
// reply packets: the character roster itself.
type ServerCharacterList struct {
	Characters []CharacterListEntry
}

// Write encodes a ServerCharacterList payload.
func (p ServerCharacterList) Write() ([]byte, error) {
	size := 4
	for _, ch := range p.Characters {
		size += 8 + 4 + len(ch.Name)*2 + 4 + 4 + 8
	}
	buf := make([]byte, size)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(len(p.Characters)))
	if err != nil {
		return nil, err
	}
	for _, ch := range p.Characters {
		c, err = c.WriteU64(ch.CharacterID)
		if err != nil {
			return nil, err
		}
		c, err = c.WriteU32(uint32(len([]rune(ch.Name))))
		if err != nil {
			return nil, err
		}
		c, err = c.WriteStringUTF16LE(ch.Name)
		if err != nil {
			return nil, err
		}
		c, err = c.WriteU32(ch.Level)
		if err != nil {
			return nil, err
		}
		c, err = c.WriteU32(ch.ZoneID)
		if err != nil {
			return nil, err
		}
		c, err = c.WriteU64(uint64(ch.LastLogin))
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// worldEnterish is the shared shape of the cosmetic reply-sequence
// packets spec.md §6 requires in a fixed order but does not give
// detailed field layouts for beyond "entity/guid/zone context" — each
// carries the minimal identifying fields a real implementation would
// need to correlate with the spawned entity, with the remainder of
// their payload left as a single opaque blob the world simulation
// (out of scope per spec.md §1) would otherwise populate.
type worldEnterish struct {
	GUID uint32
	Blob []byte
}

func (p worldEnterish) write() ([]byte, error) {
	buf := make([]byte, 4+len(p.Blob))
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.GUID)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteBytes(p.Blob); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerWorldEnter begins the character-select reply sequence.
type ServerWorldEnter struct{ GUID uint32 }

// Write encodes a ServerWorldEnter payload.
func (p ServerWorldEnter) Write() ([]byte, error) { return worldEnterish{GUID: p.GUID}.write() }

// ServerCharacterFlagsUpdated is the second packet of the sequence.
type ServerCharacterFlagsUpdated struct {
	GUID  uint32
	Flags uint32
}

// Write encodes a ServerCharacterFlagsUpdated payload.
func (p ServerCharacterFlagsUpdated) Write() ([]byte, error) {
	buf := make([]byte, 8)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.GUID)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteU32(p.Flags); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerEntityCreate is the third packet of the sequence: it spawns
// the selected character's entity client-side.
type ServerEntityCreate struct{ GUID uint32 }

// Write encodes a ServerEntityCreate payload.
func (p ServerEntityCreate) Write() ([]byte, error) { return worldEnterish{GUID: p.GUID}.write() }

// ServerSetUnitPathType is the fourth packet of the sequence.
type ServerSetUnitPathType struct {
	GUID     uint32
	PathType uint8
}

// Write encodes a ServerSetUnitPathType payload.
func (p ServerSetUnitPathType) Write() ([]byte, error) {
	buf := make([]byte, 5)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.GUID)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteUint(8, uint64(p.PathType)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerPlayerChanged is the fifth packet of the sequence.
type ServerPlayerChanged struct{ GUID uint32 }

// Write encodes a ServerPlayerChanged payload.
func (p ServerPlayerChanged) Write() ([]byte, error) { return worldEnterish{GUID: p.GUID}.write() }

// ServerPathInitialise is the sixth packet of the sequence.
type ServerPathInitialise struct{ GUID uint32 }

// Write encodes a ServerPathInitialise payload.
func (p ServerPathInitialise) Write() ([]byte, error) { return worldEnterish{GUID: p.GUID}.write() }

// ServerTimeOfDay is the seventh packet of the sequence.
type ServerTimeOfDay struct {
	SecondsSinceMidnight uint32
}

// Write encodes a ServerTimeOfDay payload.
func (p ServerTimeOfDay) Write() ([]byte, error) {
	buf := make([]byte, 4)
	_, err := wire.NewCursor(buf).WriteU32(p.SecondsSinceMidnight)
	return buf, err
}

// ServerHousingNeighbors is the eighth packet of the sequence.
type ServerHousingNeighbors struct {
	NeighborIDs []uint64
}

// Write encodes a ServerHousingNeighbors payload.
func (p ServerHousingNeighbors) Write() ([]byte, error) {
	buf := make([]byte, 4+len(p.NeighborIDs)*8)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(uint32(len(p.NeighborIDs)))
	if err != nil {
		return nil, err
	}
	for _, id := range p.NeighborIDs {
		c, err = c.WriteU64(id)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ServerInstanceSettings is the ninth packet of the sequence.
type ServerInstanceSettings struct {
	Zone     uint32
	Instance uint32
}

// Write encodes a ServerInstanceSettings payload.
func (p ServerInstanceSettings) Write() ([]byte, error) {
	buf := make([]byte, 8)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.Zone)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteU32(p.Instance); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerMovementControl is the tenth packet of the sequence: it grants
// the client movement authority over its own entity.
type ServerMovementControl struct {
	GUID    uint32
	Granted bool
}

// Write encodes a ServerMovementControl payload.
func (p ServerMovementControl) Write() ([]byte, error) {
	buf := make([]byte, 5)
	c := wire.NewCursor(buf)
	c, err := c.WriteU32(p.GUID)
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteUint(8, boolBit(p.Granted)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerPlayerCreate is the eleventh and final packet of the
// character-select reply sequence.
type ServerPlayerCreate struct{ GUID uint32 }

// Write encodes a ServerPlayerCreate payload.
func (p ServerPlayerCreate) Write() ([]byte, error) { return worldEnterish{GUID: p.GUID}.write() }

// ServerPlayerEnteredWorld dismisses the client's loading screen,
// finalizing ClientEnteredWorld.
type ServerPlayerEnteredWorld struct{}

// Write encodes the (empty) ServerPlayerEnteredWorld payload.
func (ServerPlayerEnteredWorld) Write() ([]byte, error) { return []byte{}, nil }

// LogoutReason enumerates ServerLogout's reason field.
type LogoutReason uint8

// Logout reasons.
const (
	LogoutReasonNone LogoutReason = 0
)

// ServerLogout replies to a ClientLogoutRequest whose Initiated bit was
// set.
type ServerLogout struct {
	Requested bool
	Reason    LogoutReason
}

// Write encodes a ServerLogout payload.
func (p ServerLogout) Write() ([]byte, error) {
	buf := make([]byte, 1)
	c := wire.NewCursor(buf)
	c, err := c.WriteUint(1, boolBit(p.Requested))
	if err != nil {
		return nil, err
	}
	if _, err := c.WriteUint(7, uint64(p.Reason)); err != nil {
		return nil, err
	}
	return buf, nil
}

// ServerEntityCommand is a bit-packed movement-control packet, the
// shape spec.md §6 gives as an example of the protocol's densest
// bit-packing: guid:u32, time:u32, a 1-bit time-reset flag, a 1-bit
// server-controlled flag, a 5-bit command count, followed by that many
// opaque per-command blobs. Movement command interpretation belongs to
// the world simulation (out of scope per spec.md §1); this schema
// exists to exercise the codec's bit-field packing on the protocol's
// most irregular message and is not wired to a dispatcher handler.
type ServerEntityCommand struct {
	GUID             uint32
	Time             uint32
	TimeReset        bool
	ServerControlled bool
	Commands         [][]byte
}

// Write encodes a ServerEntityCommand payload. Each command blob must
// already be byte-aligned in length; the bit cursor realigns after the
// header bits before writing them.
func (p ServerEntityCommand) Write() ([]byte, error) {
	size := 4 + 4 + 1
	for _, cmd := range p.Commands {
		size += len(cmd)
	}
	buf := make([]byte, size)
	c := wire.NewCursor(buf)

	c, err := c.WriteU32(p.GUID)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteU32(p.Time)
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(1, boolBit(p.TimeReset))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(1, boolBit(p.ServerControlled))
	if err != nil {
		return nil, err
	}
	c, err = c.WriteUint(5, uint64(len(p.Commands)))
	if err != nil {
		return nil, err
	}
	c = c.Align()
	for _, cmd := range p.Commands {
		c, err = c.WriteBytes(cmd)
		if err != nil {
			return nil, err
		}
	}
	return buf[:c.BytePos()], nil
}

// ReadServerEntityCommand decodes a ServerEntityCommand payload. Since
// individual command blob lengths are a world-simulation concern, the
// remaining bytes after the header are returned as one undivided blob
// rather than split per-command.
func ReadServerEntityCommand(payload []byte) (ServerEntityCommand, error) {
	var p ServerEntityCommand
	c := wire.NewCursor(payload)

	guid, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.GUID = guid
	t, c, err := c.ReadU32()
	if err != nil {
		return p, err
	}
	p.Time = t
	reset, c, err := c.ReadUint(1)
	if err != nil {
		return p, err
	}
	p.TimeReset = reset == 1
	controlled, c, err := c.ReadUint(1)
	if err != nil {
		return p, err
	}
	p.ServerControlled = controlled == 1
	count, c, err := c.ReadUint(5)
	if err != nil {
		return p, err
	}
	c = c.Align()
	rest, _, err := c.ReadBytes(c.Remaining())
	if err != nil {
		return p, err
	}
	if count > 0 {
		p.Commands = [][]byte{rest}
	}
	return p, nil
}
