package allocator

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
)

func TestMerge(t *testing.T) {
	a, b, c := table("T1", 4), table("T2", 2), table("T3", 6)
	tables := []Table{a, b, c}

	merged, err := Merge(tables, []uuid.UUID{a.ID, b.ID}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("got %d members, want 2", len(merged))
	}
	if merged[0].ID != a.ID || merged[0].EffectiveCapacity() != 6 {
		t.Errorf("primary = %+v, want T1 with capacity 6", merged[0])
	}
	if merged[1].MergedInto == nil || *merged[1].MergedInto != a.ID {
		t.Errorf("member not linked to primary: %+v", merged[1])
	}
	if tables[0].CombinedCapacity != 0 {
		t.Error("input slice must not be modified")
	}
}

func TestMerge_Errors(t *testing.T) {
	a, b := table("T1", 4), table("T2", 2)
	busy := table("T3", 4)
	busy.Status = enum.TableStatusReserved
	primary := table("T4", 4)
	primary.CombinedCapacity = 8
	tables := []Table{a, b, busy, primary}

	tests := []struct {
		name    string
		ids     []uuid.UUID
		cap     int32
		wantErr error
	}{
		{"single table", []uuid.UUID{a.ID}, 0, apperr.ErrValidation},
		{"unknown table", []uuid.UUID{a.ID, uuid.New()}, 0, apperr.ErrValidation},
		{"duplicate", []uuid.UUID{a.ID, a.ID}, 0, apperr.ErrValidation},
		{"not available", []uuid.UUID{a.ID, busy.ID}, 0, apperr.ErrConflict},
		{"already merged", []uuid.UUID{a.ID, primary.ID}, 0, apperr.ErrConflict},
		{"capacity mismatch", []uuid.UUID{a.ID, b.ID}, 10, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tables, tt.ids, tt.cap)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	a, b, c := table("T1", 4), table("T2", 2), table("T3", 6)
	merged, err := Merge([]Table{a, b, c}, []uuid.UUID{a.ID, b.ID, c.ID}, 12)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	for i := range merged {
		merged[i].Status = enum.TableStatusOccupied
	}

	// Splitting through a member works the same as through the primary.
	out, err := Split(merged, c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[0].ID != a.ID {
		t.Fatalf("split returned %+v, want three tables primary first", out)
	}
	for _, m := range out {
		if m.Merged() || m.CombinedCapacity != 0 || m.Status != enum.TableStatusAvailable {
			t.Errorf("table %s not restored: %+v", m.Number, m)
		}
	}
	if out[0].EffectiveCapacity() != 4 {
		t.Errorf("primary capacity = %d, want its own 4", out[0].EffectiveCapacity())
	}
}

func TestSplit_NotMerged(t *testing.T) {
	a := table("T1", 4)
	if _, err := Split([]Table{a}, a.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
