package allocator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/enum"
)

func zoned(number, zone string, capacity int32) Table {
	t := table(number, capacity)
	t.Zone = zone
	return t
}

func TestAutoAssign_PrefersSameZone(t *testing.T) {
	ana := Server{ID: uuid.New(), Name: "Ana", Zone: "terrace", MaxTables: 3}
	ben := Server{ID: uuid.New(), Name: "Ben", Zone: "hall", MaxTables: 3}
	tables := []Table{
		zoned("H1", "hall", 4),
		zoned("T1", "terrace", 2),
		zoned("H2", "hall", 6),
		zoned("T2", "terrace", 4),
	}

	got := AutoAssign(tables, []Server{ana, ben})
	if len(got.Unassigned) != 0 {
		t.Fatalf("unassigned = %+v", got.Unassigned)
	}
	for _, tb := range got.Tables {
		want := ben.ID
		if tb.Zone == "terrace" {
			want = ana.ID
		}
		if tb.ServerID == nil || *tb.ServerID != want {
			t.Errorf("table %s assigned to %v, want %v", tb.Number, tb.ServerID, want)
		}
	}
	if got.Load[ana.ID] != 2 || got.Load[ben.ID] != 2 {
		t.Errorf("load = %v, want 2 each", got.Load)
	}
}

func TestAutoAssign_RespectsCapsAndFallsBack(t *testing.T) {
	ana := Server{ID: uuid.New(), Name: "Ana", Zone: "hall", MaxTables: 1}
	ben := Server{ID: uuid.New(), Name: "Ben", Zone: "bar", MaxTables: 2}
	tables := []Table{
		zoned("H1", "hall", 2),
		zoned("H2", "hall", 8),
		zoned("H3", "hall", 4),
		zoned("H4", "hall", 4),
	}

	got := AutoAssign(tables, []Server{ana, ben})
	if got.Load[ana.ID] > ana.MaxTables || got.Load[ben.ID] > ben.MaxTables {
		t.Fatalf("cap exceeded: %v", got.Load)
	}
	if len(got.Unassigned) != 1 {
		t.Fatalf("unassigned = %d tables, want 1", len(got.Unassigned))
	}
	// Largest table goes first and lands with the same-zone server.
	for _, tb := range got.Tables {
		if tb.Number == "H2" && (tb.ServerID == nil || *tb.ServerID != ana.ID) {
			t.Errorf("H2 assigned to %v, want Ana", tb.ServerID)
		}
	}
	if got.Unassigned[0].Number != "H1" {
		t.Errorf("leftover = %s, want smallest table H1", got.Unassigned[0].Number)
	}
}

func TestAutoAssign_SkipsOutOfOrderAndMembers(t *testing.T) {
	srv := Server{ID: uuid.New(), Zone: "main", MaxTables: 10}
	broken := table("T1", 4)
	broken.Status = enum.TableStatusOutOfOrder
	primary := table("T2", 4)
	member := table("T3", 4)
	member.MergedInto = &primary.ID

	got := AutoAssign([]Table{broken, primary, member}, []Server{srv})
	if len(got.Tables) != 1 || got.Tables[0].Number != "T2" {
		t.Fatalf("tables = %+v, want only T2", got.Tables)
	}
}

func TestAutoAssign_BalancesLoad(t *testing.T) {
	a := Server{ID: uuid.New(), Zone: "main", MaxTables: 5}
	b := Server{ID: uuid.New(), Zone: "main", MaxTables: 5}
	var tables []Table
	for _, n := range []string{"T1", "T2", "T3", "T4", "T5", "T6"} {
		tables = append(tables, table(n, 4))
	}

	got := AutoAssign(tables, []Server{a, b})
	if got.Load[a.ID] != 3 || got.Load[b.ID] != 3 {
		t.Errorf("load = %v, want 3 each", got.Load)
	}
}

func TestAutoAssign_NoServers(t *testing.T) {
	got := AutoAssign([]Table{table("T1", 2)}, nil)
	if len(got.Unassigned) != 1 {
		t.Errorf("unassigned = %d, want 1", len(got.Unassigned))
	}
}
