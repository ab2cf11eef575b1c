package allocator

import (
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
)

// manualTransitions lists the status changes floor staff may make by hand.
// Occupied is owned by orders: opening one sets it, payment or
// cancellation clears it.
var manualTransitions = map[enum.TableStatus][]enum.TableStatus{
	enum.TableStatusCleaning:   {enum.TableStatusAvailable},
	enum.TableStatusAvailable:  {enum.TableStatusReserved, enum.TableStatusOutOfOrder},
	enum.TableStatusReserved:   {enum.TableStatusAvailable, enum.TableStatusOutOfOrder},
	enum.TableStatusOutOfOrder: {enum.TableStatusAvailable},
}

// SetStatus moves one table to status and returns the updated row. Merge
// members follow their primary and cannot be changed on their own.
func SetStatus(tables []Table, id uuid.UUID, status enum.TableStatus) ([]Table, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown table status %q", status)
	}
	t, ok := index(tables)[id]
	if !ok {
		return nil, apperr.Validation("table %s does not exist", id)
	}
	if t.Merged() {
		return nil, apperr.Conflict("table %s is merged into another table, change the primary instead", t.Number)
	}
	if t.Status == status {
		return []Table{t}, nil
	}
	for _, next := range manualTransitions[t.Status] {
		if next == status {
			t.Status = status
			return []Table{t}, nil
		}
	}
	return nil, apperr.Conflict("table %s cannot go from %s to %s", t.Number, t.Status, status)
}
