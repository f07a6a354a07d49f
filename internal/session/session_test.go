package session

import "testing"

func TestSessionAccountIDSetOnce(t *testing.T) {
	s := New(ServiceAuth, "127.0.0.1")
	s.SetAccountID("alice")
	s.SetAccountID("mallory")

	id, ok := s.AccountID()
	if !ok || id != "alice" {
		t.Fatalf("AccountID() = %q, %v, want alice, true", id, ok)
	}
}

func TestSessionTicketSetOnce(t *testing.T) {
	s := New(ServiceAuth, "127.0.0.1")
	t1, err := NewTicket()
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	t2, err := NewTicket()
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}

	s.SetTicket(t1)
	s.SetTicket(t2)

	got, ok := s.Ticket()
	if !ok || !got.Equal(t1) {
		t.Fatal("ticket was overwritten after first set")
	}
}

func TestSessionStageAdvance(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	if got := s.Stage(); got != Stage(0) {
		t.Fatalf("initial stage = %v, want %v", got, Stage(0))
	}
	s.Advance(WorldCharacterListed)
	if got := s.Stage(); got != WorldCharacterListed {
		t.Fatalf("stage after Advance = %v, want %v", got, WorldCharacterListed)
	}
}

func TestSessionClearWorldStatePreservesAccount(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	s.SetAccountID("alice")
	s.SetCharacter("Questgiver")
	s.SetZone(12, 0)

	s.ClearWorldState()

	if _, ok := s.Character(); ok {
		t.Fatal("character should be cleared")
	}
	id, ok := s.AccountID()
	if !ok || id != "alice" {
		t.Fatal("account id must survive ClearWorldState")
	}
}

func TestEntityAllocatorNeverReusesCounters(t *testing.T) {
	a := NewEntityAllocator()
	seen := map[EntityHandle]bool{}
	for i := 0; i < 1000; i++ {
		h := a.Allocate(EntityPlayer)
		if seen[h] {
			t.Fatalf("handle %d reused", h)
		}
		seen[h] = true
		if h.Type() != EntityPlayer {
			t.Fatalf("handle type = %v, want EntityPlayer", h.Type())
		}
	}
}

func TestTicketParseRoundTrip(t *testing.T) {
	tk, err := NewTicket()
	if err != nil {
		t.Fatalf("NewTicket: %v", err)
	}
	parsed, err := ParseTicket(tk.String())
	if err != nil {
		t.Fatalf("ParseTicket: %v", err)
	}
	if !tk.Equal(parsed) {
		t.Fatal("ticket did not round trip through hex encoding")
	}
}

func TestTicketParseRejectsWrongLength(t *testing.T) {
	if _, err := ParseTicket("ab"); err == nil {
		t.Fatal("expected error for short ticket")
	}
}

type fakeCloser struct{ closed bool }

func (f *fakeCloser) Close() error {
	f.closed = true
	return nil
}

func TestSessionSetConnIsSetOnce(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	first := &fakeCloser{}
	second := &fakeCloser{}
	s.SetConn(first)
	s.SetConn(second)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !first.closed {
		t.Fatal("first conn should have been closed")
	}
	if second.closed {
		t.Fatal("second SetConn call should have been ignored")
	}
}

func TestSessionCloseWithoutConnIsNoOp(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	if err := s.Close(); err != nil {
		t.Fatalf("Close on bare session: %v", err)
	}
}

func TestSessionDeliverAndInboxFIFO(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	first := OutboundMessage{Opcode: 1, Payload: []byte("a")}
	second := OutboundMessage{Opcode: 2, Payload: []byte("b")}

	if !s.Deliver(first) {
		t.Fatal("Deliver should succeed with room in the inbox")
	}
	if !s.Deliver(second) {
		t.Fatal("Deliver should succeed with room in the inbox")
	}

	got := <-s.Inbox()
	if got.Opcode != first.Opcode {
		t.Fatalf("got opcode %d first, want %d", got.Opcode, first.Opcode)
	}
	got = <-s.Inbox()
	if got.Opcode != second.Opcode {
		t.Fatalf("got opcode %d second, want %d", got.Opcode, second.Opcode)
	}
}

func TestSessionDeliverReportsFullInbox(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	msg := OutboundMessage{Opcode: 1}
	for i := 0; i < inboxCapacity; i++ {
		if !s.Deliver(msg) {
			t.Fatalf("Deliver %d should have succeeded, inbox not yet full", i)
		}
	}
	if s.Deliver(msg) {
		t.Fatal("Deliver into a full inbox should report false")
	}
}

func TestSessionPositionDefaultsToZeroAndUpdates(t *testing.T) {
	s := New(ServiceWorld, "10.0.0.1")
	x, y, z := s.Position()
	if x != 0 || y != 0 || z != 0 {
		t.Fatalf("default position = (%v, %v, %v), want zero vector", x, y, z)
	}

	s.SetPosition(1, 2, 3)
	x, y, z = s.Position()
	if x != 1 || y != 2 || z != 3 {
		t.Fatalf("position after SetPosition = (%v, %v, %v), want (1, 2, 3)", x, y, z)
	}

	s.ClearWorldState()
	x, y, z = s.Position()
	if x != 0 || y != 0 || z != 0 {
		t.Fatalf("position after ClearWorldState = (%v, %v, %v), want zero vector", x, y, z)
	}
}
