package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
)

// KitchenStore defines the DB methods needed by the kitchen bridge.
// Satisfied by *database.Queries.
type KitchenStore interface {
	GetOrderItemInOutlet(ctx context.Context, arg database.GetOrderItemInOutletParams) (database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ListKitchenItems(ctx context.Context, outletID uuid.UUID) ([]database.ListKitchenItemsRow, error)
}

// NewKitchenStore creates a KitchenStore from a DBTX (pool or tx).
type NewKitchenStore func(db database.DBTX) KitchenStore

// KitchenBridge batches pending lines into fire rounds and tracks their
// progress through the kitchen.
type KitchenBridge struct {
	pool     TxBeginner
	store    KitchenStore
	newStore NewKitchenStore
	opts     Options
	notifier Notifier
}

// NewKitchenBridge creates a new KitchenBridge.
func NewKitchenBridge(pool TxBeginner, store KitchenStore, newStore NewKitchenStore, opts Options, notifier Notifier) *KitchenBridge {
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &KitchenBridge{pool: pool, store: store, newStore: newStore, opts: opts, notifier: notifier}
}

// FireRound is the result of a send.
type FireRound struct {
	OrderID       uuid.UUID `json:"order_id"`
	Round         int32     `json:"round"`
	Items         []Item    `json:"items"`
	NothingToSend bool      `json:"nothing_to_send"`
}

// Ticket is one fire round of one order as a kitchen display shows it.
type Ticket struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OrderType   enum.OrderType  `json:"order_type"`
	TableNumber string          `json:"table_number,omitempty"`
	Round       int32           `json:"round"`
	Status      enum.ItemStatus `json:"status"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
	Items       []Item          `json:"items"`
}

// Send fires every pending line of the session's order as a new round.
// Sending with nothing pending writes nothing and opens no round.
func (k *KitchenBridge) Send(ctx context.Context, s *Session) (FireRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return FireRound{}, ErrNoActiveOrder
	}

	var round int32
	pending := 0
	for _, it := range s.order.Items {
		if it.FireRound > round {
			round = it.FireRound
		}
		if it.Status == enum.ItemStatusPending {
			pending++
		}
	}
	if pending == 0 {
		return FireRound{OrderID: s.order.ID, NothingToSend: true}, nil
	}
	round++

	now := time.Now().UTC()
	o, err := s.mutateLocked(ctx, "send order", func(o *Order) error {
		for i := range o.Items {
			if o.Items[i].Status != enum.ItemStatusPending {
				continue
			}
			o.Items[i].Status = enum.ItemStatusSent
			o.Items[i].FireRound = round
			o.Items[i].SentAt = &now
		}
		if o.Status == enum.OrderStatusDraft {
			o.Status = enum.OrderStatusSent
		}
		return nil
	}, nil)
	if err != nil {
		return FireRound{}, err
	}

	fr := FireRound{OrderID: o.ID, Round: round}
	for _, it := range o.Items {
		if it.FireRound == round {
			fr.Items = append(fr.Items, it)
		}
	}
	k.notify(ctx, newKitchenEvent(EventRoundFired, o, round, fr.Items))
	return fr, nil
}

// Advance moves a sent line forward through preparing, ready and served.
// Steps may be skipped but never reversed. The order follows its
// least-advanced live line and never moves back either.
func (k *KitchenBridge) Advance(ctx context.Context, outletID, itemID uuid.UUID, status enum.ItemStatus) (*Order, error) {
	if status.Rank() < enum.ItemStatusPreparing.Rank() {
		return nil, ErrInvalidItemStatus
	}

	o, changed, err := k.advanceTx(ctx, outletID, itemID, status)
	if err != nil {
		return nil, classify("advance item", err)
	}
	k.notify(ctx, newKitchenEvent(EventItemStatus, o, changed.FireRound, []Item{changed}))
	return o, nil
}

func (k *KitchenBridge) advanceTx(ctx context.Context, outletID, itemID uuid.UUID, status enum.ItemStatus) (*Order, Item, error) {
	ctx, cancel := context.WithTimeout(ctx, k.opts.timeout())
	defer cancel()

	tx, err := k.pool.Begin(ctx)
	if err != nil {
		return nil, Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := k.newStore(tx)

	row, err := store.GetOrderItemInOutlet(ctx, database.GetOrderItemInOutletParams{ID: itemID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Item{}, ErrItemNotFound
		}
		return nil, Item{}, fmt.Errorf("get order item: %w", err)
	}

	orderRow, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: row.OrderID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Item{}, ErrOrderNotFound
		}
		return nil, Item{}, fmt.Errorf("lock order: %w", err)
	}
	if enum.OrderStatus(orderRow.Status).Terminal() {
		return nil, Item{}, apperr.Conflict("order %s is %s", orderRow.OrderNumber, orderRow.Status)
	}

	// Re-read under the order lock so a concurrent cancel is seen.
	rows, err := store.ListOrderItemsByOrder(ctx, row.OrderID)
	if err != nil {
		return nil, Item{}, fmt.Errorf("list order items: %w", err)
	}
	var current Item
	found := false
	for _, r := range rows {
		if r.ID == itemID {
			current, found = itemFromRow(r), true
		}
	}
	if !found {
		return nil, Item{}, ErrItemNotFound
	}
	if current.Status == enum.ItemStatusPending {
		return nil, Item{}, apperr.Conflict("%s has not been sent to the kitchen", current.ProductName)
	}
	if current.Status.Terminal() || status.Rank() <= current.Status.Rank() {
		return nil, Item{}, apperr.Conflict("%s cannot move from %s to %s", current.ProductName, current.Status, status)
	}

	current.Status = status
	updated, err := store.UpdateOrderItem(ctx, updateItemParams(current))
	if err != nil {
		return nil, Item{}, fmt.Errorf("update order item: %w", err)
	}
	changed := itemFromRow(updated)

	o := orderFromRow(orderRow)
	for _, r := range rows {
		if r.ID == itemID {
			o.Items = append(o.Items, changed)
			continue
		}
		o.Items = append(o.Items, itemFromRow(r))
	}

	// The version moves even when the status does not, so terminals
	// holding the order see the kitchen's change.
	target := o.Status
	if next := rollForward(o); next.Rank() > target.Rank() {
		target = next
	}
	saved, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:      o.ID,
		Version: o.Version,
		Status:  string(target),
	})
	if err != nil {
		return nil, Item{}, fmt.Errorf("update order status: %w", err)
	}
	o.Status = enum.OrderStatus(saved.Status)
	o.Version = saved.Version
	o.UpdatedAt = saved.UpdatedAt

	if err := tx.Commit(ctx); err != nil {
		return nil, Item{}, fmt.Errorf("commit tx: %w", err)
	}
	return o, changed, nil
}

// rollForward returns the order status matching the least-advanced line
// the kitchen has received. Pending and cancelled lines do not count.
func rollForward(o *Order) enum.OrderStatus {
	least := -1
	var status enum.ItemStatus
	for _, it := range o.Items {
		r := it.Status.Rank()
		if r < enum.ItemStatusSent.Rank() {
			continue
		}
		if least == -1 || r < least {
			least, status = r, it.Status
		}
	}
	if least == -1 {
		return o.Status
	}
	return status.OrderStatusFor()
}

// Tickets lists the open fire rounds of an outlet, oldest first.
func (k *KitchenBridge) Tickets(ctx context.Context, outletID uuid.UUID) ([]Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, k.opts.timeout())
	defer cancel()

	rows, err := k.store.ListKitchenItems(ctx, outletID)
	if err != nil {
		return nil, classify("list kitchen tickets", fmt.Errorf("list kitchen items: %w", err))
	}

	type key struct {
		order uuid.UUID
		round int32
	}
	index := make(map[key]int)
	tickets := []Ticket{}
	for _, r := range rows {
		it := itemFromRow(r.OrderItem)
		id := key{it.OrderID, it.FireRound}
		i, ok := index[id]
		if !ok {
			i = len(tickets)
			index[id] = i
			tickets = append(tickets, Ticket{
				OrderID:     it.OrderID,
				OrderNumber: r.OrderNumber,
				OrderType:   enum.OrderType(r.OrderType),
				TableNumber: r.TableNumber.String,
				Round:       it.FireRound,
				Status:      it.Status,
				SentAt:      it.SentAt,
			})
		}
		t := &tickets[i]
		t.Items = append(t.Items, it)
		if it.Status.Rank() < t.Status.Rank() {
			t.Status = it.Status
		}
	}
	return tickets, nil
}

func (k *KitchenBridge) notify(ctx context.Context, ev KitchenEvent) {
	if err := k.notifier.Notify(ctx, ev); err != nil {
		log.Printf("ERROR: notify %s for order %s: %v", ev.Type, ev.OrderNumber, err)
	}
}
