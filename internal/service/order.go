package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// Order is an order with its lines as the engine sees it.
type Order struct {
	ID            uuid.UUID
	OutletID      uuid.UUID
	Number        string
	Type          enum.OrderType
	TableID       *uuid.UUID
	ServerID      *uuid.UUID
	GuestID       string
	CustomerCount int32
	Status        enum.OrderStatus
	Discount      pricing.DiscountSpec
	Totals        pricing.Totals
	CancelReason  string
	Version       int32
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []Item
}

// Item is one order line. Product fields are a snapshot taken when the
// line was added.
type Item struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	ProductCode  string
	UnitPrice    decimal.Decimal
	Quantity     int32
	TotalPrice   decimal.Decimal
	Instructions string
	Station      string
	Status       enum.ItemStatus
	FireRound    int32
	CancelReason string
	SentAt       *time.Time
}

func (o *Order) clone() *Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	return &c
}

func (o *Order) item(id uuid.UUID) (int, bool) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (o *Order) lines() []pricing.Line {
	lines := make([]pricing.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = pricing.Line{
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
			Cancelled:  it.Status == enum.ItemStatusCancelled,
		}
	}
	return lines
}

// LiveItems counts lines that are not cancelled.
func (o *Order) LiveItems() int {
	n := 0
	for _, it := range o.Items {
		if it.Status != enum.ItemStatusCancelled {
			n++
		}
	}
	return n
}

func (it Item) sameRow(other Item) bool {
	return it.Quantity == other.Quantity &&
		it.TotalPrice.Equal(other.TotalPrice) &&
		it.Status == other.Status &&
		it.FireRound == other.FireRound &&
		it.CancelReason == other.CancelReason &&
		((it.SentAt == nil) == (other.SentAt == nil))
}

// Override is a manager's confirmation for cancelling work the kitchen has
// already started.
type Override struct {
	ManagerID uuid.UUID
	PIN       string
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context, outletID uuid.UUID) (int32, error)
	GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) (int64, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.RestaurantTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error)
	GetOutletUser(ctx context.Context, arg database.GetOutletUserParams) (database.User, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderManager owns order persistence and hands out editing sessions.
type OrderManager struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	opts     Options
	notifier Notifier
}

// NewOrderManager creates a new OrderManager. store serves reads outside
// transactions; newStore builds the transactional store.
func NewOrderManager(pool TxBeginner, store OrderStore, newStore NewOrderStore, opts Options, notifier Notifier) *OrderManager {
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &OrderManager{pool: pool, store: store, newStore: newStore, opts: opts, notifier: notifier}
}

// CreateOrderRequest is the validated input for opening an order.
type CreateOrderRequest struct {
	Type          enum.OrderType
	CustomerCount int32
	TableID       *uuid.UUID
	GuestID       string
}

// AddItemRequest adds a product to the active order.
type AddItemRequest struct {
	ProductID    uuid.UUID
	Quantity     int32
	Instructions string
}

// Session is one terminal's editing context. It holds at most one active
// order and serializes every mutation on it.
type Session struct {
	mgr      *OrderManager
	outletID uuid.UUID
	staffID  uuid.UUID

	mu      sync.Mutex
	tableID *uuid.UUID
	order   *Order
}

// NewSession starts an editing session for a staff member in an outlet.
func (m *OrderManager) NewSession(outletID, staffID uuid.UUID) *Session {
	return &Session{mgr: m, outletID: outletID, staffID: staffID}
}

// SetTable binds the session to a table; orders created afterwards are
// dine-in orders on it.
func (s *Session) SetTable(tableID *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tableID = tableID
}

// Order returns a copy of the active order, or nil.
func (s *Session) Order() *Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return nil
	}
	return s.order.clone()
}

// Clear forgets the active order. Persisted history is untouched.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
}

// Open loads an order into the session.
func (s *Session) Open(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.mgr.load(ctx, s.outletID, orderID)
	if err != nil {
		return nil, classify("load order", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = o
	s.tableID = o.TableID
	return o.clone(), nil
}

// Refresh re-reads the active order and adopts it when it is not older
// than the local copy. It reports whether the remote snapshot was applied.
func (s *Session) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.order == nil {
		s.mu.Unlock()
		return false, ErrNoActiveOrder
	}
	id := s.order.ID
	s.mu.Unlock()

	remote, err := s.mgr.load(ctx, s.outletID, id)
	if err != nil {
		return false, classify("refresh order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil || s.order.ID != id || remote.Version < s.order.Version {
		return false, nil
	}
	s.order = remote
	return true, nil
}

// Poll refreshes the active order every interval until ctx is done,
// calling onChange with each applied snapshot whose version moved.
func (s *Session) Poll(ctx context.Context, interval time.Duration, onChange func(*Order)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := s.Order()
			applied, err := s.Refresh(ctx)
			if err != nil {
				if !errors.Is(err, ErrNoActiveOrder) && ctx.Err() == nil {
					log.Printf("WARNING: poll order: %v", err)
				}
				continue
			}
			if after := s.Order(); applied && onChange != nil && (before == nil || after.Version != before.Version) {
				onChange(after)
			}
		}
	}
}

// CreateOrder opens a new draft order. Fails with CONFLICT when the table
// already has an active order; the table becomes occupied.
func (s *Session) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.TableID == nil {
		req.TableID = s.tableID
	}
	o, err := s.mgr.create(ctx, s.outletID, s.staffID, req, nil)
	if err != nil {
		return nil, err
	}
	s.order = o
	s.tableID = o.TableID
	return o.clone(), nil
}

// AddItem adds a product line. Without an active order a draft is created
// first: dine-in when the session has a table, takeaway otherwise. A
// pending line of the same product and instructions absorbs the quantity.
func (s *Session) AddItem(ctx context.Context, req AddItemRequest) (*Order, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if req.Quantity > MaxQuantity {
		return nil, ErrQuantityTooLarge
	}
	req.Instructions = strings.TrimSpace(req.Instructions)

	s.mu.Lock()
	defer s.mu.Unlock()

	product, err := s.mgr.product(ctx, s.outletID, req.ProductID)
	if err != nil {
		return nil, err
	}
	line := s.mgr.newLine(product, req.Quantity, req.Instructions)

	if s.order == nil {
		create := CreateOrderRequest{Type: enum.OrderTypeTakeaway, CustomerCount: 1, TableID: s.tableID}
		if s.tableID != nil {
			create.Type = enum.OrderTypeDineIn
		}
		o, err := s.mgr.create(ctx, s.outletID, s.staffID, create, []Item{line})
		if err != nil {
			return nil, err
		}
		s.order = o
		s.tableID = o.TableID
		return o.clone(), nil
	}

	return s.mutateLocked(ctx, "add item", func(o *Order) error {
		for i := range o.Items {
			it := &o.Items[i]
			if it.ProductID == line.ProductID && it.Status == enum.ItemStatusPending && it.Instructions == line.Instructions {
				if it.Quantity > MaxQuantity-line.Quantity {
					return ErrQuantityTooLarge
				}
				it.Quantity += line.Quantity
				it.TotalPrice = pricing.LineTotal(it.Quantity, it.UnitPrice, s.mgr.opts.Currency)
				return nil
			}
		}
		o.Items = append(o.Items, line)
		return nil
	}, nil)
}

// UpdateQuantity sets a pending line's quantity. Zero or less removes it.
func (s *Session) UpdateQuantity(ctx context.Context, itemID uuid.UUID, qty int32) (*Order, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	if qty > MaxQuantity {
		return nil, ErrQuantityTooLarge
	}
	return s.mutate(ctx, "update quantity", func(o *Order) error {
		i, ok := o.item(itemID)
		if !ok {
			return ErrItemNotFound
		}
		it := &o.Items[i]
		if it.Status != enum.ItemStatusPending {
			return apperr.Conflict("%s was already sent to the kitchen, cancel it instead", it.ProductName)
		}
		it.Quantity = qty
		it.TotalPrice = pricing.LineTotal(qty, it.UnitPrice, s.mgr.opts.Currency)
		return nil
	})
}

// RemoveItem deletes a line that has not been sent. Sent lines must go
// through CancelItem so the kitchen keeps an audit trail.
func (s *Session) RemoveItem(ctx context.Context, itemID uuid.UUID) (*Order, error) {
	return s.mutate(ctx, "remove item", func(o *Order) error {
		i, ok := o.item(itemID)
		if !ok {
			return ErrItemNotFound
		}
		if o.Items[i].Status != enum.ItemStatusPending {
			return apperr.Conflict("%s was already sent to the kitchen, cancel it instead", o.Items[i].ProductName)
		}
		o.Items = append(o.Items[:i], o.Items[i+1:]...)
		return nil
	})
}

// CancelItem marks a line cancelled and keeps it. Lines the kitchen is
// preparing or has ready need a manager override; served and cancelled
// lines cannot change.
func (s *Session) CancelItem(ctx context.Context, itemID uuid.UUID, reason string, override *Override) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return nil, ErrNoActiveOrder
	}
	i, ok := s.order.item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	current := s.order.Items[i]
	switch current.Status {
	case enum.ItemStatusServed, enum.ItemStatusCancelled:
		return nil, apperr.Conflict("%s is already %s", current.ProductName, current.Status)
	case enum.ItemStatusPreparing, enum.ItemStatusReady:
		if err := s.mgr.verifyOverride(ctx, s.outletID, override); err != nil {
			return nil, err
		}
	}

	o, err := s.mutateLocked(ctx, "cancel item", func(o *Order) error {
		it := &o.Items[i]
		it.Status = enum.ItemStatusCancelled
		it.CancelReason = strings.TrimSpace(reason)
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	if current.Status != enum.ItemStatusPending {
		s.mgr.notify(ctx, newKitchenEvent(EventItemCancelled, o, current.FireRound, []Item{o.Items[i]}))
	}
	return o, nil
}

// SetDiscount replaces the order-level discount.
func (s *Session) SetDiscount(ctx context.Context, d pricing.DiscountSpec) (*Order, error) {
	return s.mutate(ctx, "set discount", func(o *Order) error {
		o.Discount = d
		return nil
	})
}

// SetCustomerCount changes the party size on the bill.
func (s *Session) SetCustomerCount(ctx context.Context, n int32) (*Order, error) {
	if n < 1 {
		return nil, ErrInvalidCustomers
	}
	return s.mutate(ctx, "set customer count", func(o *Order) error {
		o.CustomerCount = n
		return nil
	})
}

// CancelOrder cancels the order and its open lines and frees the table.
// Work the kitchen has started needs a manager override.
func (s *Session) CancelOrder(ctx context.Context, reason string, override *Override) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return nil, ErrNoActiveOrder
	}
	for _, it := range s.order.Items {
		if it.Status == enum.ItemStatusPreparing || it.Status == enum.ItemStatusReady {
			if err := s.mgr.verifyOverride(ctx, s.outletID, override); err != nil {
				return nil, err
			}
			break
		}
	}

	tableID := s.order.TableID
	o, err := s.mutateLocked(ctx, "cancel order", func(o *Order) error {
		o.Status = enum.OrderStatusCancelled
		o.CancelReason = strings.TrimSpace(reason)
		for i := range o.Items {
			if !o.Items[i].Status.Terminal() {
				o.Items[i].Status = enum.ItemStatusCancelled
			}
		}
		return nil
	}, func(ctx context.Context, store OrderStore) error {
		if tableID == nil {
			return nil
		}
		_, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     *tableID,
			Status: string(enum.TableStatusAvailable),
		})
		if err != nil {
			return fmt.Errorf("free table: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.mgr.notify(ctx, newKitchenEvent(EventOrderCancelled, o, 0, nil))
	return o, nil
}

// mutate runs fn on a copy of the active order under the session lock.
func (s *Session) mutate(ctx context.Context, op string, fn func(o *Order) error) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateLocked(ctx, op, fn, nil)
}

// mutateLocked applies fn to a copy, reprices it, and writes it with an
// optimistic version check. The session adopts the result only after
// commit. extra runs inside the same transaction.
func (s *Session) mutateLocked(ctx context.Context, op string, fn func(o *Order) error, extra func(context.Context, OrderStore) error) (*Order, error) {
	if s.order == nil {
		return nil, ErrNoActiveOrder
	}
	if s.order.Status.Terminal() {
		return nil, apperr.Conflict("order %s is %s", s.order.Number, s.order.Status)
	}
	next := s.order.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.Status != enum.OrderStatusCancelled {
		s.mgr.reprice(next)
	}
	saved, err := s.mgr.commit(ctx, op, s.order, next, extra)
	if err != nil {
		return nil, err
	}
	s.order = saved
	return saved.clone(), nil
}

// --- OrderManager internals ---

func (m *OrderManager) reprice(o *Order) {
	o.Totals = pricing.ComputeTotals(o.lines(), o.Discount, m.opts.ServiceChargeRate, m.opts.TaxRate, m.opts.Currency)
}

func (m *OrderManager) newLine(p database.Product, qty int32, instructions string) Item {
	price := numericToDecimal(p.Price)
	return Item{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductCode:  p.Code,
		UnitPrice:    price,
		Quantity:     qty,
		TotalPrice:   pricing.LineTotal(qty, price, m.opts.Currency),
		Instructions: instructions,
		Station:      p.Station.String,
		Status:       enum.ItemStatusPending,
	}
}

func (m *OrderManager) product(ctx context.Context, outletID, productID uuid.UUID) (database.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout())
	defer cancel()
	p, err := m.store.GetProductForOrder(ctx, database.GetProductForOrderParams{ID: productID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Product{}, ErrProductNotFound
		}
		return database.Product{}, apperr.Unavailable("load product", fmt.Errorf("get product: %w", err))
	}
	return p, nil
}

func (m *OrderManager) load(ctx context.Context, outletID, orderID uuid.UUID) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout())
	defer cancel()
	return loadOrder(ctx, m.store, outletID, orderID)
}

func loadOrder(ctx context.Context, store interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}, outletID, orderID uuid.UUID) (*Order, error) {
	row, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OutletID: outletID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	rows, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	o := orderFromRow(row)
	for _, r := range rows {
		o.Items = append(o.Items, itemFromRow(r))
	}
	return o, nil
}

// Load returns an order with its lines.
func (m *OrderManager) Load(ctx context.Context, outletID, orderID uuid.UUID) (*Order, error) {
	o, err := m.load(ctx, outletID, orderID)
	if err != nil {
		return nil, classify("load order", err)
	}
	return o, nil
}

// create inserts a draft with optional first lines. Retries up to
// maxOrderNumberRetries times on order_number unique violations.
func (m *OrderManager) create(ctx context.Context, outletID, staffID uuid.UUID, req CreateOrderRequest, items []Item) (*Order, error) {
	if !req.Type.Valid() {
		return nil, ErrInvalidOrderType
	}
	if req.CustomerCount == 0 {
		req.CustomerCount = 1
	}
	if req.CustomerCount < 1 {
		return nil, ErrInvalidCustomers
	}

	draft := &Order{
		OutletID:      outletID,
		Type:          req.Type,
		TableID:       req.TableID,
		GuestID:       strings.TrimSpace(req.GuestID),
		CustomerCount: req.CustomerCount,
		Status:        enum.OrderStatusDraft,
		Discount:      pricing.NoDiscount,
		CreatedBy:     staffID,
		Items:         items,
	}
	m.reprice(draft)

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		o, err := m.createTx(ctx, draft)
		if err == nil {
			return o, nil
		}
		if isUniqueViolation(err, "orders_outlet_id_order_number_key") {
			lastErr = err
			continue
		}
		if isUniqueViolation(err, "orders_active_table_key") {
			return nil, ErrTableHasOrder
		}
		return nil, classify("create order", err)
	}
	return nil, classify("create order", lastErr)
}

func (m *OrderManager) createTx(ctx context.Context, draft *Order) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout())
	defer cancel()

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := m.newStore(tx)

	if draft.TableID != nil {
		table, err := store.GetTable(ctx, database.GetTableParams{ID: *draft.TableID, OutletID: draft.OutletID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("get table: %w", err)
		}
		active, err := store.GetActiveOrderByTable(ctx, table.ID)
		if err == nil {
			return nil, apperr.Conflict("table %s already has active order %s", table.Number, active.OrderNumber)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get active order by table: %w", err)
		}
		if table.MergedInto.Valid {
			return nil, apperr.Conflict("table %s is merged into another table, seat the party there", table.Number)
		}
		if status := enum.TableStatus(table.Status); status != enum.TableStatusAvailable {
			return nil, apperr.Conflict("table %s is %s", table.Number, status)
		}
		if _, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     table.ID,
			Status: string(enum.TableStatusOccupied),
		}); err != nil {
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	nextNum, err := store.GetNextOrderNumber(ctx, draft.OutletID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	row, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OutletID:       draft.OutletID,
		OrderNumber:    fmt.Sprintf("ORD-%04d", nextNum),
		OrderType:      string(draft.Type),
		TableID:        pgUUID(draft.TableID),
		ServerID:       pgUUID(draft.ServerID),
		GuestID:        pgText(draft.GuestID),
		CustomerCount:  draft.CustomerCount,
		Status:         string(draft.Status),
		DiscountType:   string(enum.DiscountTypeNone),
		DiscountValue:  decimalToNumeric(decimal.Zero),
		Subtotal:       decimalToNumeric(draft.Totals.Subtotal),
		DiscountAmount: decimalToNumeric(draft.Totals.Discount),
		ServiceCharge:  decimalToNumeric(draft.Totals.ServiceCharge),
		TaxAmount:      decimalToNumeric(draft.Totals.Tax),
		TotalAmount:    decimalToNumeric(draft.Totals.Total),
		CreatedBy:      draft.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	o := orderFromRow(row)
	for _, it := range draft.Items {
		created, err := store.CreateOrderItem(ctx, createItemParams(o.ID, it))
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		o.Items = append(o.Items, itemFromRow(created))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return o, nil
}

// commit writes next over prev in one transaction: the order row first
// (guarded by prev.Version), then inserted, changed and removed lines.
func (m *OrderManager) commit(ctx context.Context, op string, prev, next *Order, extra func(context.Context, OrderStore) error) (*Order, error) {
	saved, err := m.commitTx(ctx, prev, next, extra)
	if err != nil {
		return nil, classify(op, err)
	}
	return saved, nil
}

func (m *OrderManager) commitTx(ctx context.Context, prev, next *Order, extra func(context.Context, OrderStore) error) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.timeout())
	defer cancel()

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := m.newStore(tx)

	row, err := store.UpdateOrder(ctx, updateOrderParams(prev.Version, next))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("order %s was changed on another terminal, reload it and retry", prev.Number)
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	saved := orderFromRow(row)

	before := make(map[uuid.UUID]Item, len(prev.Items))
	for _, it := range prev.Items {
		before[it.ID] = it
	}
	kept := make(map[uuid.UUID]bool, len(next.Items))

	for _, it := range next.Items {
		switch old, ok := before[it.ID]; {
		case it.ID == uuid.Nil:
			created, err := store.CreateOrderItem(ctx, createItemParams(saved.ID, it))
			if err != nil {
				return nil, fmt.Errorf("create order item: %w", err)
			}
			saved.Items = append(saved.Items, itemFromRow(created))
		case !ok:
			return nil, ErrItemNotFound
		case !old.sameRow(it):
			kept[it.ID] = true
			updated, err := store.UpdateOrderItem(ctx, updateItemParams(it))
			if err != nil {
				return nil, fmt.Errorf("update order item: %w", err)
			}
			saved.Items = append(saved.Items, itemFromRow(updated))
		default:
			kept[it.ID] = true
			saved.Items = append(saved.Items, it)
		}
	}

	for _, it := range prev.Items {
		if kept[it.ID] {
			continue
		}
		n, err := store.DeleteOrderItem(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("delete order item: %w", err)
		}
		if n == 0 {
			return nil, apperr.Conflict("%s was already sent to the kitchen, cancel it instead", it.ProductName)
		}
	}

	if extra != nil {
		if err := extra(ctx, store); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return saved, nil
}
