package opcode

import "testing"

func TestAuthTableBidirectional(t *testing.T) {
	e, ok := AuthTable.ByID(SServerAuthAccepted)
	if !ok || e.Name != "ServerAuthAccepted" {
		t.Fatalf("ByID(%d) = %+v, %v", SServerAuthAccepted, e, ok)
	}

	back, ok := AuthTable.ByName("ServerAuthAccepted")
	if !ok || back.ID != SServerAuthAccepted {
		t.Fatalf("ByName round trip = %+v, %v", back, ok)
	}
}

func TestUnknownOpcodeIsNotFound(t *testing.T) {
	if _, ok := WorldTable.ByID(0xFFFF); ok {
		t.Fatal("expected unknown world opcode to miss")
	}
}

func TestNoTableHasDuplicateIDs(t *testing.T) {
	for _, tbl := range []*Table{AuthTable, RealmTable, WorldTable} {
		seen := map[uint16]bool{}
		for id := range tbl.byID {
			if seen[id] {
				t.Fatalf("duplicate id %d", id)
			}
			seen[id] = true
		}
	}
}
