package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, outlet_id, number, capacity, zone, status, server_id, merged_into,
    combined_capacity, updated_at`

func scanTable(row interface{ Scan(...interface{}) error }) (RestaurantTable, error) {
	var i RestaurantTable
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Number,
		&i.Capacity,
		&i.Zone,
		&i.Status,
		&i.ServerID,
		&i.MergedInto,
		&i.CombinedCapacity,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + `
FROM restaurant_tables
WHERE outlet_id = $1
ORDER BY number ASC
`

func (q *Queries) ListTables(ctx context.Context, outletID uuid.UUID) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTables, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RestaurantTable
	for rows.Next() {
		i, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listTablesForUpdate = `-- name: ListTablesForUpdate :many
SELECT ` + tableColumns + `
FROM restaurant_tables
WHERE outlet_id = $1
ORDER BY number ASC
FOR UPDATE
`

// ListTablesForUpdate locks every table of the outlet for the rest of the
// transaction.
func (q *Queries) ListTablesForUpdate(ctx context.Context, outletID uuid.UUID) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, listTablesForUpdate, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RestaurantTable
	for rows.Next() {
		i, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + `
FROM restaurant_tables
WHERE id = $1 AND outlet_id = $2
`

type GetTableParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, getTable, arg.ID, arg.OutletID)
	return scanTable(row)
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE restaurant_tables
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status)
	return scanTable(row)
}

const updateTableLayout = `-- name: UpdateTableLayout :one
UPDATE restaurant_tables
SET status            = $2,
    server_id         = $3,
    merged_into       = $4,
    combined_capacity = $5,
    updated_at        = now()
WHERE id = $1
RETURNING ` + tableColumns

type UpdateTableLayoutParams struct {
	ID               uuid.UUID   `json:"id"`
	Status           string      `json:"status"`
	ServerID         pgtype.UUID `json:"server_id"`
	MergedInto       pgtype.UUID `json:"merged_into"`
	CombinedCapacity int32       `json:"combined_capacity"`
}

func (q *Queries) UpdateTableLayout(ctx context.Context, arg UpdateTableLayoutParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, updateTableLayout,
		arg.ID,
		arg.Status,
		arg.ServerID,
		arg.MergedInto,
		arg.CombinedCapacity,
	)
	return scanTable(row)
}

const createTable = `-- name: CreateTable :one
INSERT INTO restaurant_tables (outlet_id, number, capacity, zone)
VALUES ($1, $2, $3, $4)
RETURNING ` + tableColumns

type CreateTableParams struct {
	OutletID uuid.UUID `json:"outlet_id"`
	Number   string    `json:"number"`
	Capacity int32     `json:"capacity"`
	Zone     string    `json:"zone"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, createTable, arg.OutletID, arg.Number, arg.Capacity, arg.Zone)
	return scanTable(row)
}
