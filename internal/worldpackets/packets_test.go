package worldpackets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientHelloRealmRoundTrip(t *testing.T) {
	want := ClientHelloRealm{Email: "alice@example.com", AccountID: 42}
	for i := range want.Ticket {
		want.Ticket[i] = byte(i)
	}
	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadClientHelloRealm(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestClientCharacterSelectRoundTrip(t *testing.T) {
	want := ClientCharacterSelect{CharacterID: 1234567}
	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadClientCharacterSelect(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestClientCharacterCreateRoundTrip(t *testing.T) {
	want := ClientCharacterCreate{
		Name:               "Aeryn",
		Sex:                1,
		Race:               2,
		Class:              3,
		Path:                1,
		CreationTemplateID: 7,
		Labels:             []string{"hairColor", "eyeColor"},
		Values:             []string{"red", "blue"},
		Bones:              []float32{0.5, -1.25, 10},
	}
	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadClientCharacterCreate(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestClientLogoutRequestRoundTrip(t *testing.T) {
	want := ClientLogoutRequest{Initiated: true, Cancel: false}
	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadClientLogoutRequest(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestServerCharacterListEncodesWithoutError(t *testing.T) {
	p := ServerCharacterList{Characters: []CharacterListEntry{
		{CharacterID: 1, Name: "Aeryn", Level: 50, ZoneID: 3, LastLogin: 1690000000},
	}}
	buf, err := p.Write()
	require.NoError(t, err)
	require.NotEmpty(t, buf)
}

func TestServerEntityCommandRoundTrip(t *testing.T) {
	want := ServerEntityCommand{
		GUID:             99,
		Time:             123456,
		TimeReset:        true,
		ServerControlled: false,
		Commands:         [][]byte{{0x01, 0x02, 0x03, 0x04}},
	}
	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadServerEntityCommand(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestAccountEntitlementsEncodesDeltaAboveBase(t *testing.T) {
	p := ServerAccountEntitlements{ExtraCharacterSlots: SignatureCharacterSlots - BaseCharacterSlots}
	buf, err := p.Write()
	require.NoError(t, err)
	require.Len(t, buf, 4)
}
