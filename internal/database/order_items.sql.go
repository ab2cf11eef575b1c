package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, product_id, product_name, product_code, unit_price,
    quantity, total_price, special_instructions, station, status, fire_round,
    cancel_reason, sent_at, created_at, updated_at`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.ProductCode,
		&i.UnitPrice,
		&i.Quantity,
		&i.TotalPrice,
		&i.SpecialInstructions,
		&i.Station,
		&i.Status,
		&i.FireRound,
		&i.CancelReason,
		&i.SentAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, product_id, product_name, product_code, unit_price,
    quantity, total_price, special_instructions, station, status
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID             uuid.UUID      `json:"order_id"`
	ProductID           uuid.UUID      `json:"product_id"`
	ProductName         string         `json:"product_name"`
	ProductCode         string         `json:"product_code"`
	UnitPrice           pgtype.Numeric `json:"unit_price"`
	Quantity            int32          `json:"quantity"`
	TotalPrice          pgtype.Numeric `json:"total_price"`
	SpecialInstructions pgtype.Text    `json:"special_instructions"`
	Station             pgtype.Text    `json:"station"`
	Status              string         `json:"status"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.ProductCode,
		arg.UnitPrice,
		arg.Quantity,
		arg.TotalPrice,
		arg.SpecialInstructions,
		arg.Station,
		arg.Status,
	)
	return scanOrderItem(row)
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY created_at ASC, id ASC
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const getOrderItemInOutlet = `-- name: GetOrderItemInOutlet :one
SELECT oi.id, oi.order_id, oi.product_id, oi.product_name, oi.product_code, oi.unit_price,
    oi.quantity, oi.total_price, oi.special_instructions, oi.station, oi.status, oi.fire_round,
    oi.cancel_reason, oi.sent_at, oi.created_at, oi.updated_at
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE oi.id = $1 AND o.outlet_id = $2
`

type GetOrderItemInOutletParams struct {
	ID       uuid.UUID `json:"id"`
	OutletID uuid.UUID `json:"outlet_id"`
}

func (q *Queries) GetOrderItemInOutlet(ctx context.Context, arg GetOrderItemInOutletParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, getOrderItemInOutlet, arg.ID, arg.OutletID)
	return scanOrderItem(row)
}

const updateOrderItem = `-- name: UpdateOrderItem :one
UPDATE order_items
SET quantity      = $2,
    total_price   = $3,
    status        = $4,
    fire_round    = $5,
    cancel_reason = $6,
    sent_at       = $7,
    updated_at    = now()
WHERE id = $1
RETURNING ` + orderItemColumns

type UpdateOrderItemParams struct {
	ID           uuid.UUID          `json:"id"`
	Quantity     int32              `json:"quantity"`
	TotalPrice   pgtype.Numeric     `json:"total_price"`
	Status       string             `json:"status"`
	FireRound    int32              `json:"fire_round"`
	CancelReason pgtype.Text        `json:"cancel_reason"`
	SentAt       pgtype.Timestamptz `json:"sent_at"`
}

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, updateOrderItem,
		arg.ID,
		arg.Quantity,
		arg.TotalPrice,
		arg.Status,
		arg.FireRound,
		arg.CancelReason,
		arg.SentAt,
	)
	return scanOrderItem(row)
}

const deleteOrderItem = `-- name: DeleteOrderItem :execrows
DELETE FROM order_items
WHERE id = $1 AND status = 'pending'
`

// DeleteOrderItem removes a line that has not been sent yet and reports
// how many rows went.
func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderItem, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listKitchenItems = `-- name: ListKitchenItems :many
SELECT oi.id, oi.order_id, oi.product_id, oi.product_name, oi.product_code, oi.unit_price,
    oi.quantity, oi.total_price, oi.special_instructions, oi.station, oi.status, oi.fire_round,
    oi.cancel_reason, oi.sent_at, oi.created_at, oi.updated_at,
    o.order_number, o.order_type, t.number AS table_number
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
LEFT JOIN restaurant_tables t ON t.id = o.table_id
WHERE o.outlet_id = $1
  AND o.status NOT IN ('paid', 'cancelled')
  AND oi.status IN ('sent', 'preparing', 'ready')
ORDER BY oi.sent_at ASC, o.order_number ASC, oi.fire_round ASC, oi.created_at ASC
`

type ListKitchenItemsRow struct {
	OrderItem   OrderItem   `json:"order_item"`
	OrderNumber string      `json:"order_number"`
	OrderType   string      `json:"order_type"`
	TableNumber pgtype.Text `json:"table_number"`
}

func (q *Queries) ListKitchenItems(ctx context.Context, outletID uuid.UUID) ([]ListKitchenItemsRow, error) {
	rows, err := q.db.Query(ctx, listKitchenItems, outletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListKitchenItemsRow
	for rows.Next() {
		var i ListKitchenItemsRow
		if err := rows.Scan(
			&i.OrderItem.ID,
			&i.OrderItem.OrderID,
			&i.OrderItem.ProductID,
			&i.OrderItem.ProductName,
			&i.OrderItem.ProductCode,
			&i.OrderItem.UnitPrice,
			&i.OrderItem.Quantity,
			&i.OrderItem.TotalPrice,
			&i.OrderItem.SpecialInstructions,
			&i.OrderItem.Station,
			&i.OrderItem.Status,
			&i.OrderItem.FireRound,
			&i.OrderItem.CancelReason,
			&i.OrderItem.SentAt,
			&i.OrderItem.CreatedAt,
			&i.OrderItem.UpdatedAt,
			&i.OrderNumber,
			&i.OrderType,
			&i.TableNumber,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
