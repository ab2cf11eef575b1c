package allocator

import (
	"sort"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/enum"
)

// Assignment is the outcome of AutoAssign.
type Assignment struct {
	// Tables holds every considered table with ServerID set or cleared.
	Tables []Table
	// Load counts tables per server after the pass.
	Load map[uuid.UUID]int32
	// Unassigned lists tables no server had room for.
	Unassigned []Table
}

// AutoAssign spreads tables over servers: first-fit decreasing with a
// same-zone preference. Servers are considered by descending table cap;
// tables go zone by zone, largest first, to the server with the fewest
// tables below its cap. Out-of-order tables and merge members are skipped.
func AutoAssign(tables []Table, servers []Server) Assignment {
	ss := append([]Server(nil), servers...)
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].MaxTables > ss[j].MaxTables })

	var work []Table
	for _, t := range tables {
		if t.Status == enum.TableStatusOutOfOrder || t.Merged() {
			continue
		}
		work = append(work, t)
	}
	sort.SliceStable(work, func(i, j int) bool {
		if work[i].Zone != work[j].Zone {
			return work[i].Zone < work[j].Zone
		}
		if ci, cj := work[i].EffectiveCapacity(), work[j].EffectiveCapacity(); ci != cj {
			return ci > cj
		}
		return numberLess(work[i].Number, work[j].Number)
	})

	load := make(map[uuid.UUID]int32, len(ss))
	for _, s := range ss {
		load[s.ID] = 0
	}

	result := Assignment{Load: load}
	for _, t := range work {
		s := pick(ss, load, t.Zone, true)
		if s == nil {
			s = pick(ss, load, t.Zone, false)
		}
		if s == nil {
			t.ServerID = nil
			result.Unassigned = append(result.Unassigned, t)
			result.Tables = append(result.Tables, t)
			continue
		}
		id := s.ID
		t.ServerID = &id
		load[id]++
		result.Tables = append(result.Tables, t)
	}
	return result
}

// pick returns the least-loaded server below its cap, optionally limited to
// one zone. Ties keep the descending-cap order of ss.
func pick(ss []Server, load map[uuid.UUID]int32, zone string, sameZone bool) *Server {
	var best *Server
	for i := range ss {
		s := &ss[i]
		if sameZone && s.Zone != zone {
			continue
		}
		if load[s.ID] >= s.MaxTables {
			continue
		}
		if best == nil || load[s.ID] < load[best.ID] {
			best = s
		}
	}
	return best
}
