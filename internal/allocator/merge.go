package allocator

import (
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
)

// Merge folds the tables named by ids into one logical table. The first id
// becomes the primary and carries the combined capacity. newCapacity of 0
// means the sum of the members; any other value must equal that sum.
// It returns the updated member rows, primary first.
func Merge(tables []Table, ids []uuid.UUID, newCapacity int32) ([]Table, error) {
	if len(ids) < 2 {
		return nil, apperr.Validation("at least two tables are needed to merge")
	}
	byID := index(tables)
	seen := make(map[uuid.UUID]bool, len(ids))

	members := make([]Table, 0, len(ids))
	var sum int32
	for _, id := range ids {
		if seen[id] {
			return nil, apperr.Validation("table %s listed twice", id)
		}
		seen[id] = true
		t, ok := byID[id]
		if !ok {
			return nil, apperr.Validation("table %s does not exist", id)
		}
		if t.Merged() || t.CombinedCapacity > 0 {
			return nil, apperr.Conflict("table %s is already part of a merge", t.Number)
		}
		if t.Status != enum.TableStatusAvailable {
			return nil, apperr.Conflict("table %s is %s, only available tables can be merged", t.Number, t.Status)
		}
		sum += t.Capacity
		members = append(members, t)
	}
	if newCapacity != 0 && newCapacity != sum {
		return nil, apperr.Validation("merged capacity %d does not match the members' total %d", newCapacity, sum)
	}

	primary := members[0].ID
	members[0].CombinedCapacity = sum
	for i := 1; i < len(members); i++ {
		members[i].MergedInto = &primary
	}
	return members, nil
}

// Split dissolves the merge that id belongs to, as primary or member.
// All former members come back available with their own capacity.
func Split(tables []Table, id uuid.UUID) ([]Table, error) {
	byID := index(tables)
	t, ok := byID[id]
	if !ok {
		return nil, apperr.Validation("table %s does not exist", id)
	}
	primary := t.ID
	if t.MergedInto != nil {
		primary = *t.MergedInto
	}
	p, ok := byID[primary]
	if !ok || p.CombinedCapacity == 0 {
		return nil, apperr.Validation("table %s is not merged", t.Number)
	}

	var out []Table
	for _, m := range tables {
		if m.ID != primary && (m.MergedInto == nil || *m.MergedInto != primary) {
			continue
		}
		m.MergedInto = nil
		m.CombinedCapacity = 0
		m.Status = enum.TableStatusAvailable
		if m.ID == primary {
			out = append([]Table{m}, out...)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func index(tables []Table) map[uuid.UUID]Table {
	m := make(map[uuid.UUID]Table, len(tables))
	for _, t := range tables {
		m[t.ID] = t
	}
	return m
}
