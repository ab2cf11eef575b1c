package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const settlementColumns = `id, order_id, attempt_token, seq, method, amount, amount_tendered,
    change_amount, reference, folio_id, folio_charge_id, change_acknowledged_at,
    processed_by, created_at`

func scanSettlement(row interface{ Scan(...interface{}) error }) (Settlement, error) {
	var i Settlement
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.AttemptToken,
		&i.Seq,
		&i.Method,
		&i.Amount,
		&i.AmountTendered,
		&i.ChangeAmount,
		&i.Reference,
		&i.FolioID,
		&i.FolioChargeID,
		&i.ChangeAcknowledgedAt,
		&i.ProcessedBy,
		&i.CreatedAt,
	)
	return i, err
}

func collectSettlements(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]Settlement, error) {
	var items []Settlement
	for rows.Next() {
		i, err := scanSettlement(rows)
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

const createSettlement = `-- name: CreateSettlement :one
INSERT INTO settlements (
    order_id, attempt_token, seq, method, amount, amount_tendered,
    change_amount, reference, folio_id, folio_charge_id, processed_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (order_id, attempt_token, seq) DO NOTHING
RETURNING ` + settlementColumns

type CreateSettlementParams struct {
	OrderID        uuid.UUID      `json:"order_id"`
	AttemptToken   uuid.UUID      `json:"attempt_token"`
	Seq            int32          `json:"seq"`
	Method         string         `json:"method"`
	Amount         pgtype.Numeric `json:"amount"`
	AmountTendered pgtype.Numeric `json:"amount_tendered"`
	ChangeAmount   pgtype.Numeric `json:"change_amount"`
	Reference      pgtype.Text    `json:"reference"`
	FolioID        pgtype.Text    `json:"folio_id"`
	FolioChargeID  pgtype.Text    `json:"folio_charge_id"`
	ProcessedBy    uuid.UUID      `json:"processed_by"`
}

// CreateSettlement appends one instrument of an attempt. A row that already
// exists for (order, attempt, seq) is left alone and pgx.ErrNoRows returned.
func (q *Queries) CreateSettlement(ctx context.Context, arg CreateSettlementParams) (Settlement, error) {
	row := q.db.QueryRow(ctx, createSettlement,
		arg.OrderID,
		arg.AttemptToken,
		arg.Seq,
		arg.Method,
		arg.Amount,
		arg.AmountTendered,
		arg.ChangeAmount,
		arg.Reference,
		arg.FolioID,
		arg.FolioChargeID,
		arg.ProcessedBy,
	)
	return scanSettlement(row)
}

const listSettlementsByOrder = `-- name: ListSettlementsByOrder :many
SELECT ` + settlementColumns + `
FROM settlements
WHERE order_id = $1
ORDER BY created_at ASC, seq ASC
`

func (q *Queries) ListSettlementsByOrder(ctx context.Context, orderID uuid.UUID) ([]Settlement, error) {
	rows, err := q.db.Query(ctx, listSettlementsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSettlements(rows)
}

const listSettlementsByAttempt = `-- name: ListSettlementsByAttempt :many
SELECT ` + settlementColumns + `
FROM settlements
WHERE order_id = $1 AND attempt_token = $2
ORDER BY seq ASC
`

type ListSettlementsByAttemptParams struct {
	OrderID      uuid.UUID `json:"order_id"`
	AttemptToken uuid.UUID `json:"attempt_token"`
}

func (q *Queries) ListSettlementsByAttempt(ctx context.Context, arg ListSettlementsByAttemptParams) ([]Settlement, error) {
	rows, err := q.db.Query(ctx, listSettlementsByAttempt, arg.OrderID, arg.AttemptToken)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSettlements(rows)
}

const acknowledgeSettlementChange = `-- name: AcknowledgeSettlementChange :many
UPDATE settlements
SET change_acknowledged_at = now()
WHERE order_id = $1
  AND attempt_token = $2
  AND change_amount > 0
  AND change_acknowledged_at IS NULL
RETURNING ` + settlementColumns

type AcknowledgeSettlementChangeParams struct {
	OrderID      uuid.UUID `json:"order_id"`
	AttemptToken uuid.UUID `json:"attempt_token"`
}

func (q *Queries) AcknowledgeSettlementChange(ctx context.Context, arg AcknowledgeSettlementChangeParams) ([]Settlement, error) {
	rows, err := q.db.Query(ctx, acknowledgeSettlementChange, arg.OrderID, arg.AttemptToken)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSettlements(rows)
}
