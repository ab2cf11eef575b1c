package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, outlet_id, order_number, order_type, table_id, server_id, guest_id,
    customer_count, status, discount_type, discount_value, subtotal, discount_amount,
    service_charge, tax_amount, total_amount, cancel_reason, version, created_by,
    created_at, updated_at, closed_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OutletID,
		&i.OrderNumber,
		&i.OrderType,
		&i.TableID,
		&i.ServerID,
		&i.GuestID,
		&i.CustomerCount,
		&i.Status,
		&i.DiscountType,
		&i.DiscountValue,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.ServiceCharge,
		&i.TaxAmount,
		&i.TotalAmount,
		&i.CancelReason,
		&i.Version,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ClosedAt,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1)::INTEGER AS next_number
FROM orders
WHERE outlet_id = $1
`

func (q *Queries) GetNextOrderNumber(ctx context.Context, outletID uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber, outletID)
	var next_number int32
	err := row.Scan(&next_number)
	return next_number, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    outlet_id, order_number, order_type, table_id, server_id, guest_id,
    customer_count, status, discount_type, discount_value, subtotal,
    discount_amount, service_charge, tax_amount, total_amount, created_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OutletID       uuid.UUID      `json:"outlet_id"`
	OrderNumber    string         `json:"order_number"`
	OrderType      string         `json:"order_type"`
	TableID        pgtype.UUID    `json:"table_id"`
	ServerID       pgtype.UUID    `json:"server_id"`
	GuestID        pgtype.Text    `json:"guest_id"`
	CustomerCount  int32          `json:"customer_count"`
	Status         string         `json:"status"`
	DiscountType   string         `json:"discount_type"`
	DiscountValue  pgtype.Numeric `json:"discount_value"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	ServiceCharge  pgtype.Numeric `json:"service_charge"`
	TaxAmount      pgtype.Numeric `json:"tax_amount"`
	TotalAmount    pgtype.Numeric `json:"total_amount"`
	CreatedBy      uuid.UUID      `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OutletID,
		arg.OrderNumber,
		arg.OrderType,
		arg.TableID,
		arg.ServerID,
		arg.GuestID,
		arg.CustomerCount,
		arg.Status,
		arg.DiscountType,
		arg.DiscountValue,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.ServiceCharge,
		arg.TaxAmount,
		arg.TotalAmount,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND outlet_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.OutletID)
	return scanOrder(row)
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND outlet_id = $2
FOR UPDATE
`

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.OutletID)
	return scanOrder(row)
}

const getActiveOrderByTable = `-- name: GetActiveOrderByTable :one
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1 AND status NOT IN ('paid', 'cancelled')
LIMIT 1
`

func (q *Queries) GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getActiveOrderByTable, tableID)
	return scanOrder(row)
}

const listActiveOrders = `-- name: ListActiveOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE outlet_id = $1 AND status NOT IN ('paid', 'cancelled')
ORDER BY created_at ASC
`

func (q *Queries) ListActiveOrders(ctx context.Context, outletID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listActiveOrders, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
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

const updateOrder = `-- name: UpdateOrder :one
UPDATE orders
SET customer_count  = $3,
    status          = $4,
    discount_type   = $5,
    discount_value  = $6,
    subtotal        = $7,
    discount_amount = $8,
    service_charge  = $9,
    tax_amount      = $10,
    total_amount    = $11,
    cancel_reason   = $12,
    version         = version + 1,
    updated_at      = now(),
    closed_at       = CASE WHEN $4 IN ('paid', 'cancelled') THEN now() ELSE closed_at END
WHERE id = $1 AND version = $2
RETURNING ` + orderColumns

type UpdateOrderParams struct {
	ID             uuid.UUID      `json:"id"`
	Version        int32          `json:"version"`
	CustomerCount  int32          `json:"customer_count"`
	Status         string         `json:"status"`
	DiscountType   string         `json:"discount_type"`
	DiscountValue  pgtype.Numeric `json:"discount_value"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	DiscountAmount pgtype.Numeric `json:"discount_amount"`
	ServiceCharge  pgtype.Numeric `json:"service_charge"`
	TaxAmount      pgtype.Numeric `json:"tax_amount"`
	TotalAmount    pgtype.Numeric `json:"total_amount"`
	CancelReason   pgtype.Text    `json:"cancel_reason"`
}

// UpdateOrder writes the mutable fields of an order if version still matches.
// A stale version returns pgx.ErrNoRows.
func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID,
		arg.Version,
		arg.CustomerCount,
		arg.Status,
		arg.DiscountType,
		arg.DiscountValue,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.ServiceCharge,
		arg.TaxAmount,
		arg.TotalAmount,
		arg.CancelReason,
	)
	return scanOrder(row)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status     = $3,
    version    = version + 1,
    updated_at = now(),
    closed_at  = CASE WHEN $3 IN ('paid', 'cancelled') THEN now() ELSE closed_at END
WHERE id = $1 AND version = $2
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID      uuid.UUID `json:"id"`
	Version int32     `json:"version"`
	Status  string    `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Version, arg.Status)
	return scanOrder(row)
}
