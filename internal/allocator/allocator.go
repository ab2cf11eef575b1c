// Package allocator matches parties to tables and balances tables across
// servers. Everything here is pure: callers load rows, call in, and persist
// the returned state.
package allocator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
)

// Table is the allocator's view of a physical table.
type Table struct {
	ID               uuid.UUID
	Number           string
	Capacity         int32
	Zone             string
	Status           enum.TableStatus
	ServerID         *uuid.UUID
	MergedInto       *uuid.UUID
	CombinedCapacity int32
}

// EffectiveCapacity is the combined capacity for a merge primary and the
// table's own capacity otherwise.
func (t Table) EffectiveCapacity() int32 {
	if t.CombinedCapacity > 0 {
		return t.CombinedCapacity
	}
	return t.Capacity
}

// Merged reports whether the table is a member folded into another table.
func (t Table) Merged() bool {
	return t.MergedInto != nil
}

// Server is a waiter who can be given tables.
type Server struct {
	ID        uuid.UUID
	Name      string
	Zone      string
	MaxTables int32
}

// Recommendation is the result of Recommend. Exactly one of Table or
// Combination is set when a fit exists.
type Recommendation struct {
	Table         *Table
	Alternatives  []Table
	Combination   []Table
	TotalCapacity int32
}

// Found reports whether any seating was suggested.
func (r Recommendation) Found() bool {
	return r.Table != nil || len(r.Combination) > 0
}

// Recommend picks the available table that wastes the fewest seats for the
// party, with up to two alternatives. When no single table fits it returns
// the first pair of available tables whose capacities cover the party.
func Recommend(partySize int32, tables []Table) (Recommendation, error) {
	if partySize < 1 {
		return Recommendation{}, apperr.Validation("party size must be at least 1")
	}

	var open, fits []Table
	for _, t := range tables {
		if t.Status != enum.TableStatusAvailable || t.Merged() {
			continue
		}
		open = append(open, t)
		if t.EffectiveCapacity() >= partySize {
			fits = append(fits, t)
		}
	}

	if len(fits) > 0 {
		sort.SliceStable(fits, func(i, j int) bool {
			wi := fits[i].EffectiveCapacity() - partySize
			wj := fits[j].EffectiveCapacity() - partySize
			if wi != wj {
				return wi < wj
			}
			return numberLess(fits[i].Number, fits[j].Number)
		})
		best := fits[0]
		rec := Recommendation{Table: &best, TotalCapacity: best.EffectiveCapacity()}
		if n := len(fits); n > 1 {
			rec.Alternatives = append(rec.Alternatives, fits[1:min(n, 3)]...)
		}
		return rec, nil
	}

	for i := 0; i < len(open); i++ {
		for j := i + 1; j < len(open); j++ {
			sum := open[i].EffectiveCapacity() + open[j].EffectiveCapacity()
			if sum >= partySize {
				return Recommendation{
					Combination:   []Table{open[i], open[j]},
					TotalCapacity: sum,
				}, nil
			}
		}
	}
	return Recommendation{}, nil
}

// numberLess orders table numbers with a shared prefix by their numeric
// suffix, so "T9" comes before "T10". Anything else compares as text.
func numberLess(a, b string) bool {
	pa, na, okA := splitNumber(a)
	pb, nb, okB := splitNumber(b)
	if okA && okB && pa == pb && na != nb {
		return na < nb
	}
	return a < b
}

func splitNumber(s string) (string, int, bool) {
	i := strings.LastIndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) + 1
	if i == len(s) {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, 0, false
	}
	return s[:i], n, true
}
