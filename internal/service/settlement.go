package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/folio"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/shopspring/decimal"
)

// SettlementStore defines the DB methods needed by settlement.
// Satisfied by *database.Queries (and its WithTx variant).
type SettlementStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListSettlementsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Settlement, error)
	ListSettlementsByAttempt(ctx context.Context, arg database.ListSettlementsByAttemptParams) ([]database.Settlement, error)
	CreateSettlement(ctx context.Context, arg database.CreateSettlementParams) (database.Settlement, error)
	AcknowledgeSettlementChange(ctx context.Context, arg database.AcknowledgeSettlementChangeParams) ([]database.Settlement, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error)
}

// NewSettlementStore creates a SettlementStore from a DBTX (pool or tx).
type NewSettlementStore func(db database.DBTX) SettlementStore

// FolioPoster posts room charges to the property's billing system.
// Satisfied by *folio.Client.
type FolioPoster interface {
	PostCharge(ctx context.Context, folioID string, amount decimal.Decimal, lines []folio.Line, idempotencyKey string) (string, error)
}

// Settlement is one persisted payment instrument.
type Settlement struct {
	ID                   uuid.UUID          `json:"id"`
	OrderID              uuid.UUID          `json:"order_id"`
	AttemptToken         uuid.UUID          `json:"attempt_token"`
	Seq                  int32              `json:"seq"`
	Method               enum.PaymentMethod `json:"method"`
	Amount               decimal.Decimal    `json:"amount"`
	Tendered             decimal.Decimal    `json:"tendered"`
	Change               decimal.Decimal    `json:"change"`
	Reference            string             `json:"reference,omitempty"`
	FolioID              string             `json:"folio_id,omitempty"`
	FolioChargeID        string             `json:"folio_charge_id,omitempty"`
	ChangeAcknowledgedAt *time.Time         `json:"change_acknowledged_at,omitempty"`
	ProcessedBy          uuid.UUID          `json:"processed_by"`
	CreatedAt            time.Time          `json:"created_at"`
}

// SettleRequest pays an order. A single part with no amount covers the
// whole bill.
type SettleRequest struct {
	OrderID      uuid.UUID
	AttemptToken uuid.UUID
	Parts        []payment.Part
}

// SettleResult is the outcome of a settlement attempt. Discharged is false
// while cash change is still owed to the customer.
type SettleResult struct {
	Order       *Order                  `json:"order"`
	Settlements []Settlement            `json:"settlements"`
	Change      decimal.Decimal         `json:"change"`
	Breakdown   payment.ChangeBreakdown `json:"breakdown"`
	Discharged  bool                    `json:"discharged"`
	Replayed    bool                    `json:"replayed"`
}

// SettlementService takes payment for orders and closes them.
type SettlementService struct {
	pool     TxBeginner
	store    SettlementStore
	newStore NewSettlementStore
	opts     Options
	change   *payment.ChangeMaker
	folio    FolioPoster
	notifier Notifier
}

// NewSettlementService creates a new SettlementService. poster may be nil
// when the outlet has no folio system; room charges are then refused.
func NewSettlementService(pool TxBeginner, store SettlementStore, newStore NewSettlementStore, opts Options, change *payment.ChangeMaker, poster FolioPoster, notifier Notifier) *SettlementService {
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &SettlementService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		opts:     opts,
		change:   change,
		folio:    poster,
		notifier: notifier,
	}
}

// Settle validates the parts against the bill, posts room charges, records
// one settlement per part and marks the order paid, all or nothing.
// Resubmitting a token that already succeeded returns the recorded result.
func (s *SettlementService) Settle(ctx context.Context, outletID, staffID uuid.UUID, req SettleRequest) (*SettleResult, error) {
	if req.AttemptToken == uuid.Nil {
		return nil, ErrInvalidAttempt
	}

	o, prior, err := s.loadAttempt(ctx, outletID, req.OrderID, req.AttemptToken)
	if err != nil {
		return nil, classify("load order", err)
	}
	if len(prior) > 0 {
		res := s.result(o, prior)
		res.Replayed = true
		return res, nil
	}

	switch o.Status {
	case enum.OrderStatusPaid:
		return nil, ErrOrderAlreadyPaid
	case enum.OrderStatusCancelled:
		return nil, ErrOrderIsCancelled
	}
	if o.LiveItems() == 0 {
		return nil, ErrNothingToSettle
	}

	parts := append([]payment.Part(nil), req.Parts...)
	if len(parts) == 1 && parts[0].Amount.IsZero() {
		parts[0].Amount = o.Totals.Total
	}
	for i := range parts {
		parts[i].Reference = strings.TrimSpace(parts[i].Reference)
		parts[i].FolioID = strings.TrimSpace(parts[i].FolioID)
	}
	if err := payment.ValidateSplit(parts, o.Totals.Total); err != nil {
		return nil, err
	}

	charges, err := s.postRoomCharges(ctx, o, req.AttemptToken, parts)
	if err != nil {
		return nil, err
	}

	saved, rows, err := s.settleTx(ctx, o, staffID, req.AttemptToken, parts, charges)
	if err != nil {
		return nil, classify("settle order", err)
	}

	ev := newKitchenEvent(EventOrderPaid, saved, 0, nil)
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("ERROR: notify %s for order %s: %v", ev.Type, ev.OrderNumber, err)
	}
	return s.result(saved, rows), nil
}

func (s *SettlementService) loadAttempt(ctx context.Context, outletID, orderID, token uuid.UUID) (*Order, []database.Settlement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	o, err := loadOrder(ctx, s.store, outletID, orderID)
	if err != nil {
		return nil, nil, err
	}
	prior, err := s.store.ListSettlementsByAttempt(ctx, database.ListSettlementsByAttemptParams{
		OrderID:      orderID,
		AttemptToken: token,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list settlements by attempt: %w", err)
	}
	return o, prior, nil
}

// postRoomCharges posts every room-charge part before anything is written
// locally. The idempotency key makes a resubmitted attempt safe.
func (s *SettlementService) postRoomCharges(ctx context.Context, o *Order, token uuid.UUID, parts []payment.Part) (map[int]string, error) {
	charges := make(map[int]string)
	for i, p := range parts {
		if p.Method.Class() != enum.PaymentClassFolio {
			continue
		}
		if s.folio == nil {
			return nil, apperr.Validation("room charge is not available at this outlet")
		}
		lines := make([]folio.Line, 0, len(o.Items))
		for _, it := range o.Items {
			if it.Status == enum.ItemStatusCancelled {
				continue
			}
			lines = append(lines, folio.Line{Description: it.ProductName, Quantity: it.Quantity, Amount: it.TotalPrice})
		}
		key := fmt.Sprintf("%s-%d", token, i+1)
		chargeID, err := s.folio.PostCharge(ctx, p.FolioID, p.Amount, lines, key)
		if err != nil {
			if _, ok := apperr.As(err); ok {
				return nil, err
			}
			return nil, apperr.Unavailable("post room charge", err)
		}
		charges[i] = chargeID
	}
	return charges, nil
}

func (s *SettlementService) settleTx(ctx context.Context, o *Order, staffID, token uuid.UUID, parts []payment.Part, charges map[int]string) (*Order, []database.Settlement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	locked, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: o.ID, OutletID: o.OutletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, fmt.Errorf("lock order: %w", err)
	}
	switch enum.OrderStatus(locked.Status) {
	case enum.OrderStatusPaid:
		return nil, nil, ErrOrderAlreadyPaid
	case enum.OrderStatusCancelled:
		return nil, nil, ErrOrderIsCancelled
	}
	if locked.Version != o.Version {
		return nil, nil, apperr.Conflict("order %s changed while it was being paid, reload the bill", o.Number)
	}

	rows := make([]database.Settlement, 0, len(parts))
	for i, p := range parts {
		tendered := p.Tendered
		if p.Method.Class() != enum.PaymentClassCash {
			tendered = p.Amount
		}
		row, err := store.CreateSettlement(ctx, database.CreateSettlementParams{
			OrderID:        o.ID,
			AttemptToken:   token,
			Seq:            int32(i + 1),
			Method:         string(p.Method),
			Amount:         decimalToNumeric(p.Amount),
			AmountTendered: decimalToNumeric(tendered),
			ChangeAmount:   decimalToNumeric(p.Change()),
			Reference:      pgText(p.Reference),
			FolioID:        pgText(p.FolioID),
			FolioChargeID:  pgText(charges[i]),
			ProcessedBy:    staffID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, apperr.Conflict("payment attempt %s is already being processed", token)
			}
			return nil, nil, fmt.Errorf("create settlement: %w", err)
		}
		rows = append(rows, row)
	}

	paid, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:      o.ID,
		Version: locked.Version,
		Status:  string(enum.OrderStatusPaid),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("mark order paid: %w", err)
	}

	if o.TableID != nil {
		if _, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     *o.TableID,
			Status: string(enum.TableStatusCleaning),
		}); err != nil {
			return nil, nil, fmt.Errorf("release table: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	saved := orderFromRow(paid)
	saved.Items = o.Items
	return saved, rows, nil
}

// AcknowledgeChange records that the cashier handed back the change of an
// attempt. It is idempotent.
func (s *SettlementService) AcknowledgeChange(ctx context.Context, outletID, orderID, token uuid.UUID) (*SettleResult, error) {
	o, prior, err := s.loadAttempt(ctx, outletID, orderID, token)
	if err != nil {
		return nil, classify("load order", err)
	}
	if len(prior) == 0 {
		return nil, ErrAttemptNotFound
	}

	ackCtx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()
	acked, err := s.store.AcknowledgeSettlementChange(ackCtx, database.AcknowledgeSettlementChangeParams{
		OrderID:      orderID,
		AttemptToken: token,
	})
	if err != nil {
		return nil, classify("acknowledge change", fmt.Errorf("acknowledge settlement change: %w", err))
	}

	byID := make(map[uuid.UUID]database.Settlement, len(acked))
	for _, a := range acked {
		byID[a.ID] = a
	}
	for i, p := range prior {
		if a, ok := byID[p.ID]; ok {
			prior[i] = a
		}
	}
	return s.result(o, prior), nil
}

// Settlements lists every recorded instrument for an order.
func (s *SettlementService) Settlements(ctx context.Context, outletID, orderID uuid.UUID) ([]Settlement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout())
	defer cancel()

	if _, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OutletID: outletID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, classify("list settlements", fmt.Errorf("get order: %w", err))
	}
	rows, err := s.store.ListSettlementsByOrder(ctx, orderID)
	if err != nil {
		return nil, classify("list settlements", fmt.Errorf("list settlements: %w", err))
	}
	out := make([]Settlement, len(rows))
	for i, r := range rows {
		out[i] = settlementFromRow(r)
	}
	return out, nil
}

func (s *SettlementService) result(o *Order, rows []database.Settlement) *SettleResult {
	res := &SettleResult{Order: o, Change: decimal.Zero, Discharged: true}
	for _, r := range rows {
		st := settlementFromRow(r)
		res.Settlements = append(res.Settlements, st)
		if st.Change.IsPositive() {
			res.Change = res.Change.Add(st.Change)
			if st.ChangeAcknowledgedAt == nil {
				res.Discharged = false
			}
		}
	}
	res.Breakdown = s.change.Make(res.Change)
	return res
}

func settlementFromRow(r database.Settlement) Settlement {
	return Settlement{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		AttemptToken:         r.AttemptToken,
		Seq:                  r.Seq,
		Method:               enum.PaymentMethod(r.Method),
		Amount:               numericToDecimal(r.Amount),
		Tendered:             numericToDecimal(r.AmountTendered),
		Change:               numericToDecimal(r.ChangeAmount),
		Reference:            r.Reference.String,
		FolioID:              r.FolioID.String,
		FolioChargeID:        r.FolioChargeID.String,
		ChangeAcknowledgedAt: timePtr(r.ChangeAcknowledgedAt),
		ProcessedBy:          r.ProcessedBy,
		CreatedAt:            r.CreatedAt,
	}
}
