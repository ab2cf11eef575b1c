package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT id, outlet_id, name, code, price, station, is_active, created_at, updated_at
FROM products
WHERE id = $1 AND outlet_id = $2 AND is_active = true
`

type GetProductForOrderParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetProductForOrder(ctx context.Context, arg GetProductForOrderParams) (Product, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, arg.ID, arg.OutletID)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.Code,
		&i.Price,
		&i.Station,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (outlet_id, name, code, price, station)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, outlet_id, name, code, price, station, is_active, created_at, updated_at
`

type CreateProductParams struct {
	OutletID uuid.UUID      `json:"outlet_id"`
	Name     string         `json:"name"`
	Code     string         `json:"code"`
	Price    pgtype.Numeric `json:"price"`
	Station  pgtype.Text    `json:"station"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.OutletID,
		arg.Name,
		arg.Code,
		arg.Price,
		arg.Station,
	)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.Name,
		&i.Code,
		&i.Price,
		&i.Station,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
