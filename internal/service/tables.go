package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/allocator"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
)

// TableStore defines the DB methods needed by table allocation.
// Satisfied by *database.Queries.
type TableStore interface {
	ListTables(ctx context.Context, outletID uuid.UUID) ([]database.RestaurantTable, error)
	ListTablesForUpdate(ctx context.Context, outletID uuid.UUID) ([]database.RestaurantTable, error)
	UpdateTableLayout(ctx context.Context, arg database.UpdateTableLayoutParams) (database.RestaurantTable, error)
	ListServers(ctx context.Context, outletID uuid.UUID) ([]database.User, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableService loads the floor, runs the allocator and persists the result.
type TableService struct {
	pool     TxBeginner
	store    TableStore
	newStore NewTableStore
	opts     Options
}

// NewTableService creates a new TableService.
func NewTableService(pool TxBeginner, store TableStore, newStore NewTableStore, opts Options) *TableService {
	return &TableService{pool: pool, store: store, newStore: newStore, opts: opts}
}

// List returns every table of the outlet.
func (s *TableService) List(ctx context.Context, outletID uuid.UUID) ([]allocator.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	rows, err := s.store.ListTables(ctx, outletID)
	if err != nil {
		return nil, classify("list tables", fmt.Errorf("list tables: %w", err))
	}
	return tablesFromRows(rows), nil
}

// Recommend suggests seating for a party.
func (s *TableService) Recommend(ctx context.Context, outletID uuid.UUID, partySize int32) (allocator.Recommendation, error) {
	if partySize < 1 {
		return allocator.Recommendation{}, apperr.Validation("party size must be at least 1")
	}
	tables, err := s.List(ctx, outletID)
	if err != nil {
		return allocator.Recommendation{}, err
	}
	return allocator.Recommend(partySize, tables)
}

// Merge joins available tables under the first id. newCapacity 0 means the
// sum of the members.
func (s *TableService) Merge(ctx context.Context, outletID uuid.UUID, ids []uuid.UUID, newCapacity int32) ([]allocator.Table, error) {
	return s.relayout(ctx, outletID, "merge tables", func(tables []allocator.Table) ([]allocator.Table, error) {
		return allocator.Merge(tables, ids, newCapacity)
	})
}

// Split undoes the merge that id belongs to. Tables still seating an
// order cannot be split.
func (s *TableService) Split(ctx context.Context, outletID, id uuid.UUID) ([]allocator.Table, error) {
	return s.relayout(ctx, outletID, "split tables", func(tables []allocator.Table) ([]allocator.Table, error) {
		out, err := allocator.Split(tables, id)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			if (t.ID == out[0].ID || (t.MergedInto != nil && *t.MergedInto == out[0].ID)) && t.Status == enum.TableStatusOccupied {
				return nil, apperr.Conflict("table %s is seating an order, settle it before splitting", t.Number)
			}
		}
		return out, nil
	})
}

// SetStatus applies a manual floor status change, such as releasing a
// table after cleaning or taking it out of service.
func (s *TableService) SetStatus(ctx context.Context, outletID, id uuid.UUID, status enum.TableStatus) ([]allocator.Table, error) {
	return s.relayout(ctx, outletID, "set table status", func(tables []allocator.Table) ([]allocator.Table, error) {
		return allocator.SetStatus(tables, id, status)
	})
}

// AutoAssign spreads the outlet's tables over its waiters and persists the
// assignment. Tables nobody had room for lose their server.
func (s *TableService) AutoAssign(ctx context.Context, outletID uuid.UUID) (allocator.Assignment, error) {
	res, err := s.autoAssignTx(ctx, outletID)
	if err != nil {
		return allocator.Assignment{}, classify("auto-assign tables", err)
	}
	return res, nil
}

func (s *TableService) autoAssignTx(ctx context.Context, outletID uuid.UUID) (allocator.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return allocator.Assignment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	rows, err := store.ListTablesForUpdate(ctx, outletID)
	if err != nil {
		return allocator.Assignment{}, fmt.Errorf("list tables: %w", err)
	}
	users, err := store.ListServers(ctx, outletID)
	if err != nil {
		return allocator.Assignment{}, fmt.Errorf("list servers: %w", err)
	}
	servers := make([]allocator.Server, 0, len(users))
	for _, u := range users {
		servers = append(servers, allocator.Server{
			ID:        u.ID,
			Name:      u.FullName,
			Zone:      u.Zone.String,
			MaxTables: u.MaxTables,
		})
	}

	res := allocator.AutoAssign(tablesFromRows(rows), servers)
	if err := saveLayout(ctx, store, res.Tables); err != nil {
		return allocator.Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return allocator.Assignment{}, fmt.Errorf("commit tx: %w", err)
	}
	return res, nil
}

// relayout locks the floor, applies fn and writes back the tables fn
// returns, all in one transaction.
func (s *TableService) relayout(ctx context.Context, outletID uuid.UUID, op string, fn func([]allocator.Table) ([]allocator.Table, error)) ([]allocator.Table, error) {
	out, err := s.relayoutTx(ctx, outletID, fn)
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (s *TableService) relayoutTx(ctx context.Context, outletID uuid.UUID, fn func([]allocator.Table) ([]allocator.Table, error)) ([]allocator.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	rows, err := store.ListTablesForUpdate(ctx, outletID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	out, err := fn(tablesFromRows(rows))
	if err != nil {
		return nil, err
	}
	if err := saveLayout(ctx, store, out); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

func saveLayout(ctx context.Context, store TableStore, tables []allocator.Table) error {
	for _, t := range tables {
		_, err := store.UpdateTableLayout(ctx, database.UpdateTableLayoutParams{
			ID:               t.ID,
			Status:           string(t.Status),
			ServerID:         pgUUID(t.ServerID),
			MergedInto:       pgUUID(t.MergedInto),
			CombinedCapacity: t.CombinedCapacity,
		})
		if err != nil {
			return fmt.Errorf("update table %s: %w", t.Number, err)
		}
	}
	return nil
}

func tablesFromRows(rows []database.RestaurantTable) []allocator.Table {
	out := make([]allocator.Table, len(rows))
	for i, r := range rows {
		out[i] = allocator.Table{
			ID:               r.ID,
			Number:           r.Number,
			Capacity:         r.Capacity,
			Zone:             r.Zone,
			Status:           enum.TableStatus(r.Status),
			ServerID:         uuidPtr(r.ServerID),
			MergedInto:       uuidPtr(r.MergedInto),
			CombinedCapacity: r.CombinedCapacity,
		}
	}
	return out
}
