package realmpackets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientHelloAuthRoundTrip(t *testing.T) {
	want := ClientHelloAuth{Build: 16042, Email: "bob@example.com"}
	for i := range want.Ticket {
		want.Ticket[i] = byte(i + 5)
	}

	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadClientHelloAuth(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestClientRealmSelectRoundTrip(t *testing.T) {
	want := ClientRealmSelect{RealmID: 7}
	buf, err := want.Write()
	require.NoError(t, err)

	got, err := ReadClientRealmSelect(buf)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestServerRealmInfoEncodesWithoutError(t *testing.T) {
	p := ServerRealmInfo{
		Address:    0x0100007F,
		Port:       6602,
		AccountID:  42,
		RealmName:  "Jabbit",
		Flags:      0,
		Type:       RealmPvE,
		NoteTextID: 0,
	}
	buf, err := p.Write()
	require.NoError(t, err)
	require.NotEmpty(t, buf)
}

func TestServerRealmMessagesEncodesCount(t *testing.T) {
	p := ServerRealmMessages{Messages: []string{"welcome", "motd"}}
	buf, err := p.Write()
	require.NoError(t, err)
	require.NotEmpty(t, buf)
	require.Equal(t, []byte{2, 0}, buf[:2])
}
