package registry

import (
	"context"
	"testing"

	"github.com/ionforge/wildcore/internal/session"
)

type fakeCloser struct{ closed bool }

func (f *fakeCloser) Close() error {
	f.closed = true
	return nil
}

func TestRegisterAccountLastWriterWins(t *testing.T) {
	r := New()
	first := session.New(session.ServiceWorld, "10.0.0.1")
	second := session.New(session.ServiceWorld, "10.0.0.2")

	r.RegisterAccount("alice", first)
	r.RegisterAccount("alice", second)

	got, ok := r.LookupAccount("alice")
	if !ok || got != second {
		t.Fatal("expected second registration to win")
	}
}

func TestUnregisterAccountOnlyRemovesMatchingSession(t *testing.T) {
	r := New()
	first := session.New(session.ServiceWorld, "10.0.0.1")
	second := session.New(session.ServiceWorld, "10.0.0.2")

	r.RegisterAccount("alice", first)
	r.RegisterAccount("alice", second)

	// Stale unregister of the displaced session must not evict the
	// newer one.
	r.UnregisterAccount("alice", first)

	got, ok := r.LookupAccount("alice")
	if !ok || got != second {
		t.Fatal("stale unregister evicted the current session")
	}
}

func TestEntityRegistration(t *testing.T) {
	r := New()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	alloc := session.NewEntityAllocator()
	h := alloc.Allocate(session.EntityPlayer)

	r.RegisterEntity(h, s)
	got, ok := r.LookupEntity(h)
	if !ok || got != s {
		t.Fatal("entity lookup failed after registration")
	}

	r.UnregisterEntity(h)
	if _, ok := r.LookupEntity(h); ok {
		t.Fatal("entity still found after unregister")
	}
}

func TestZoneMembership(t *testing.T) {
	r := New()
	a := session.New(session.ServiceWorld, "10.0.0.1")
	b := session.New(session.ServiceWorld, "10.0.0.2")

	r.EnterZone(12, 0, a)
	r.EnterZone(12, 0, b)

	members := r.ZoneMembers(12, 0)
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}

	r.LeaveZone(12, 0, a)
	members = r.ZoneMembers(12, 0)
	if len(members) != 1 || members[0] != b {
		t.Fatalf("got %+v after leave, want only b", members)
	}
}

func TestRegisterAccountClosesEvictedConnection(t *testing.T) {
	r := New()
	first := session.New(session.ServiceWorld, "10.0.0.1")
	firstConn := &fakeCloser{}
	first.SetConn(firstConn)
	second := session.New(session.ServiceWorld, "10.0.0.2")

	r.RegisterAccount("alice", first)
	r.RegisterAccount("alice", second)

	if !firstConn.closed {
		t.Fatal("evicted session's connection should have been closed")
	}
}

func TestRegisterAccountSameSessionTwiceDoesNotCloseItself(t *testing.T) {
	r := New()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	conn := &fakeCloser{}
	s.SetConn(conn)

	r.RegisterAccount("alice", s)
	r.RegisterAccount("alice", s)

	if conn.closed {
		t.Fatal("re-registering the same session must not close its own connection")
	}
}

func TestUpdateZoneMovesAccountBetweenBuckets(t *testing.T) {
	r := New()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	r.RegisterAccount("alice", s)

	if ok := r.UpdateZone("alice", 12, 0); !ok {
		t.Fatal("UpdateZone should succeed for a registered account")
	}
	if members := r.ZoneMembers(12, 0); len(members) != 1 || members[0] != s {
		t.Fatalf("got %+v, want [s] in zone 12", members)
	}

	if ok := r.UpdateZone("alice", 13, 0); !ok {
		t.Fatal("UpdateZone should succeed when moving zones again")
	}
	if members := r.ZoneMembers(12, 0); len(members) != 0 {
		t.Fatalf("old zone bucket should be empty, got %+v", members)
	}
	if members := r.ZoneMembers(13, 0); len(members) != 1 || members[0] != s {
		t.Fatalf("got %+v, want [s] in zone 13", members)
	}
}

func TestUpdateZoneUnknownAccountReturnsFalse(t *testing.T) {
	r := New()
	if ok := r.UpdateZone("ghost", 1, 0); ok {
		t.Fatal("UpdateZone for an unregistered account should return false")
	}
}

func TestSetEntityHandleIndexesByEntityAndAccount(t *testing.T) {
	r := New()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	r.RegisterAccount("alice", s)
	alloc := session.NewEntityAllocator()
	h := alloc.Allocate(session.EntityPlayer)

	if ok := r.SetEntityHandle("alice", h); !ok {
		t.Fatal("SetEntityHandle should succeed for a registered account")
	}

	got, ok := r.LookupEntity(h)
	if !ok || got != s {
		t.Fatal("entity lookup failed after SetEntityHandle")
	}
	entity, ok := s.Entity()
	if !ok || entity != h {
		t.Fatal("session's own entity field was not updated")
	}
}

func TestSetEntityHandleUnknownAccountReturnsFalse(t *testing.T) {
	r := New()
	alloc := session.NewEntityAllocator()
	if ok := r.SetEntityHandle("ghost", alloc.Allocate(session.EntityPlayer)); ok {
		t.Fatal("SetEntityHandle for an unregistered account should return false")
	}
}

func TestNearbyInZoneFiltersByRadius(t *testing.T) {
	r := New()
	near := session.New(session.ServiceWorld, "10.0.0.1")
	near.SetPosition(10, 0, 0)
	far := session.New(session.ServiceWorld, "10.0.0.2")
	far.SetPosition(1000, 0, 0)

	r.EnterZone(12, 0, near)
	r.EnterZone(12, 0, far)

	got := r.NearbyInZone(12, 0, 0, 0, 0, 50)
	if len(got) != 1 || got[0] != near {
		t.Fatalf("got %+v, want only the near session", got)
	}
}

func TestBroadcastDeliversToEveryTarget(t *testing.T) {
	r := New()
	a := session.New(session.ServiceWorld, "10.0.0.1")
	b := session.New(session.ServiceWorld, "10.0.0.2")
	msg := session.OutboundMessage{Opcode: 7, Payload: []byte("spawn")}

	if err := r.Broadcast(context.Background(), []*session.Session{a, b}, msg); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, s := range []*session.Session{a, b} {
		select {
		case got := <-s.Inbox():
			if got.Opcode != msg.Opcode {
				t.Fatalf("got opcode %d, want %d", got.Opcode, msg.Opcode)
			}
		default:
			t.Fatal("target's inbox should have received the broadcast message")
		}
	}
}

func TestBroadcastReportsFullInbox(t *testing.T) {
	r := New()
	s := session.New(session.ServiceWorld, "10.0.0.1")
	filler := session.OutboundMessage{Opcode: 1}
	for i := 0; i < 64; i++ {
		s.Deliver(filler)
	}

	err := r.Broadcast(context.Background(), []*session.Session{s}, session.OutboundMessage{Opcode: 2})
	if err == nil {
		t.Fatal("Broadcast should report an error when a target's inbox is full")
	}
}

func TestAccountCount(t *testing.T) {
	r := New()
	r.RegisterAccount("alice", session.New(session.ServiceWorld, "10.0.0.1"))
	r.RegisterAccount("bob", session.New(session.ServiceWorld, "10.0.0.2"))

	if n := r.AccountCount(); n != 2 {
		t.Fatalf("AccountCount() = %d, want 2", n)
	}
}
