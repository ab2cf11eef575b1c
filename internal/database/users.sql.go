package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, outlet_id, email, hashed_password, pin_hash, full_name, role, zone,
    max_tables, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Email,
		&i.HashedPassword,
		&i.PinHash,
		&i.FullName,
		&i.Role,
		&i.Zone,
		&i.MaxTables,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active = true
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	return scanUser(row)
}

const getOutletUser = `-- name: GetOutletUser :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND outlet_id = $2 AND is_active = true
`

type GetOutletUserParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetOutletUser(ctx context.Context, arg GetOutletUserParams) (User, error) {
	row := q.db.QueryRow(ctx, getOutletUser, arg.ID, arg.OutletID)
	return scanUser(row)
}

const listServers = `-- name: ListServers :many
SELECT ` + userColumns + `
FROM users
WHERE outlet_id = $1 AND role = 'WAITER' AND is_active = true
ORDER BY full_name ASC
`

func (q *Queries) ListServers(ctx context.Context, outletID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listServers, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
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

const listPinUsers = `-- name: ListPinUsers :many
SELECT ` + userColumns + `
FROM users
WHERE outlet_id = $1 AND pin_hash IS NOT NULL AND is_active = true
`

func (q *Queries) ListPinUsers(ctx context.Context, outletID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listPinUsers, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
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

const createUser = `-- name: CreateUser :one
INSERT INTO users (outlet_id, email, hashed_password, pin_hash, full_name, role, zone, max_tables)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

type CreateUserParams struct {
	OutletID       uuid.UUID   `json:"outlet_id"`
	Email          string      `json:"email"`
	HashedPassword string      `json:"hashed_password"`
	PinHash        pgtype.Text `json:"pin_hash"`
	FullName       string      `json:"full_name"`
	Role           string      `json:"role"`
	Zone           pgtype.Text `json:"zone"`
	MaxTables      int32       `json:"max_tables"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.OutletID,
		arg.Email,
		arg.HashedPassword,
		arg.PinHash,
		arg.FullName,
		arg.Role,
		arg.Zone,
		arg.MaxTables,
	)
	return scanUser(row)
}

const createOutlet = `-- name: CreateOutlet :one
INSERT INTO outlets (name, address, phone)
VALUES ($1, $2, $3)
RETURNING id, name, address, phone, created_at
`

type CreateOutletParams struct {
	Name    string      `json:"name"`
	Address pgtype.Text `json:"address"`
	Phone   pgtype.Text `json:"phone"`
}

func (q *Queries) CreateOutlet(ctx context.Context, arg CreateOutletParams) (Outlet, error) {
	row := q.db.QueryRow(ctx, createOutlet, arg.Name, arg.Address, arg.Phone)
	var i Outlet
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.Phone,
		&i.CreatedAt,
	)
	return i, err
}
