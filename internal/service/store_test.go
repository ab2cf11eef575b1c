package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// --- Transaction mocks ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// --- In-memory store ---

// fakeStore keeps rows in memory and mirrors the SQL guards the services
// rely on: version checks, pending-only deletes and ON CONFLICT DO NOTHING.
// It satisfies every store interface of the package. fail makes the named
// method return an error.
type fakeStore struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]database.Order
	items       []database.OrderItem
	products    map[uuid.UUID]database.Product
	tables      map[uuid.UUID]database.RestaurantTable
	users       map[uuid.UUID]database.User
	settlements []database.Settlement
	fail        map[string]error
	// onLock runs before GetOrderForUpdate reads, standing in for a
	// concurrent writer.
	onLock func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:   make(map[uuid.UUID]database.Order),
		products: make(map[uuid.UUID]database.Product),
		tables:   make(map[uuid.UUID]database.RestaurantTable),
		users:    make(map[uuid.UUID]database.User),
		fail:     make(map[string]error),
	}
}

func (f *fakeStore) failure(method string) error {
	return f.fail[method]
}

func (f *fakeStore) GetNextOrderNumber(ctx context.Context, outletID uuid.UUID) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetNextOrderNumber"); err != nil {
		return 0, err
	}
	var n int32
	for _, o := range f.orders {
		if o.OutletID == outletID {
			n++
		}
	}
	return n + 1, nil
}

func (f *fakeStore) GetProductForOrder(ctx context.Context, arg database.GetProductForOrderParams) (database.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetProductForOrder"); err != nil {
		return database.Product{}, err
	}
	p, ok := f.products[arg.ID]
	if !ok || p.OutletID != arg.OutletID || !p.IsActive {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateOrder"); err != nil {
		return database.Order{}, err
	}
	now := time.Now().UTC()
	o := database.Order{
		ID:             uuid.New(),
		OutletID:       arg.OutletID,
		OrderNumber:    arg.OrderNumber,
		OrderType:      arg.OrderType,
		TableID:        arg.TableID,
		ServerID:       arg.ServerID,
		GuestID:        arg.GuestID,
		CustomerCount:  arg.CustomerCount,
		Status:         arg.Status,
		DiscountType:   arg.DiscountType,
		DiscountValue:  arg.DiscountValue,
		Subtotal:       arg.Subtotal,
		DiscountAmount: arg.DiscountAmount,
		ServiceCharge:  arg.ServiceCharge,
		TaxAmount:      arg.TaxAmount,
		TotalAmount:    arg.TotalAmount,
		Version:        1,
		CreatedBy:      arg.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetOrder"); err != nil {
		return database.Order{}, err
	}
	o, ok := f.orders[arg.ID]
	if !ok || o.OutletID != arg.OutletID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	if err := f.failure("GetOrderForUpdate"); err != nil {
		return database.Order{}, err
	}
	if f.onLock != nil {
		f.onLock()
	}
	return f.GetOrder(ctx, arg)
}

func (f *fakeStore) GetActiveOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.TableID.Valid && uuid.UUID(o.TableID.Bytes) == tableID && !enum.OrderStatus(o.Status).Terminal() {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (f *fakeStore) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateOrder"); err != nil {
		return database.Order{}, err
	}
	o, ok := f.orders[arg.ID]
	if !ok || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.CustomerCount = arg.CustomerCount
	o.Status = arg.Status
	o.DiscountType = arg.DiscountType
	o.DiscountValue = arg.DiscountValue
	o.Subtotal = arg.Subtotal
	o.DiscountAmount = arg.DiscountAmount
	o.ServiceCharge = arg.ServiceCharge
	o.TaxAmount = arg.TaxAmount
	o.TotalAmount = arg.TotalAmount
	o.CancelReason = arg.CancelReason
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateOrderStatus"); err != nil {
		return database.Order{}, err
	}
	o, ok := f.orders[arg.ID]
	if !ok || o.Version != arg.Version {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ListOrderItemsByOrder"); err != nil {
		return nil, err
	}
	var out []database.OrderItem
	for _, it := range f.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateOrderItem"); err != nil {
		return database.OrderItem{}, err
	}
	now := time.Now().UTC()
	it := database.OrderItem{
		ID:                  uuid.New(),
		OrderID:             arg.OrderID,
		ProductID:           arg.ProductID,
		ProductName:         arg.ProductName,
		ProductCode:         arg.ProductCode,
		UnitPrice:           arg.UnitPrice,
		Quantity:            arg.Quantity,
		TotalPrice:          arg.TotalPrice,
		SpecialInstructions: arg.SpecialInstructions,
		Station:             arg.Station,
		Status:              arg.Status,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.items = append(f.items, it)
	return it, nil
}

func (f *fakeStore) UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateOrderItem"); err != nil {
		return database.OrderItem{}, err
	}
	for i := range f.items {
		if f.items[i].ID != arg.ID {
			continue
		}
		it := &f.items[i]
		it.Quantity = arg.Quantity
		it.TotalPrice = arg.TotalPrice
		it.Status = arg.Status
		it.FireRound = arg.FireRound
		it.CancelReason = arg.CancelReason
		it.SentAt = arg.SentAt
		it.UpdatedAt = time.Now().UTC()
		return *it, nil
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (f *fakeStore) DeleteOrderItem(ctx context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID == id && it.Status == string(enum.ItemStatusPending) {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeStore) GetOrderItemInOutlet(ctx context.Context, arg database.GetOrderItemInOutletParams) (database.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == arg.ID && f.orders[it.OrderID].OutletID == arg.OutletID {
			return it, nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (f *fakeStore) ListKitchenItems(ctx context.Context, outletID uuid.UUID) ([]database.ListKitchenItemsRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ListKitchenItems"); err != nil {
		return nil, err
	}
	var out []database.ListKitchenItemsRow
	for _, it := range f.items {
		o := f.orders[it.OrderID]
		if o.OutletID != outletID || enum.OrderStatus(o.Status).Terminal() {
			continue
		}
		switch enum.ItemStatus(it.Status) {
		case enum.ItemStatusSent, enum.ItemStatusPreparing, enum.ItemStatusReady:
		default:
			continue
		}
		row := database.ListKitchenItemsRow{OrderItem: it, OrderNumber: o.OrderNumber, OrderType: o.OrderType}
		if o.TableID.Valid {
			row.TableNumber = pgtype.Text{String: f.tables[uuid.UUID(o.TableID.Bytes)].Number, Valid: true}
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if a, b := out[i].OrderItem.SentAt.Time, out[j].OrderItem.SentAt.Time; !a.Equal(b) {
			return a.Before(b)
		}
		if out[i].OrderNumber != out[j].OrderNumber {
			return out[i].OrderNumber < out[j].OrderNumber
		}
		return out[i].OrderItem.FireRound < out[j].OrderItem.FireRound
	})
	return out, nil
}

func (f *fakeStore) GetTable(ctx context.Context, arg database.GetTableParams) (database.RestaurantTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[arg.ID]
	if !ok || t.OutletID != arg.OutletID {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.RestaurantTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateTableStatus"); err != nil {
		return database.RestaurantTable{}, err
	}
	t, ok := f.tables[arg.ID]
	if !ok {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	f.tables[t.ID] = t
	return t, nil
}

func (f *fakeStore) ListTables(ctx context.Context, outletID uuid.UUID) ([]database.RestaurantTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ListTables"); err != nil {
		return nil, err
	}
	var out []database.RestaurantTable
	for _, t := range f.tables {
		if t.OutletID == outletID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeStore) ListTablesForUpdate(ctx context.Context, outletID uuid.UUID) ([]database.RestaurantTable, error) {
	return f.ListTables(ctx, outletID)
}

func (f *fakeStore) UpdateTableLayout(ctx context.Context, arg database.UpdateTableLayoutParams) (database.RestaurantTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateTableLayout"); err != nil {
		return database.RestaurantTable{}, err
	}
	t, ok := f.tables[arg.ID]
	if !ok {
		return database.RestaurantTable{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.ServerID = arg.ServerID
	t.MergedInto = arg.MergedInto
	t.CombinedCapacity = arg.CombinedCapacity
	f.tables[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetOutletUser(ctx context.Context, arg database.GetOutletUserParams) (database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetOutletUser"); err != nil {
		return database.User{}, err
	}
	u, ok := f.users[arg.ID]
	if !ok || u.OutletID != arg.OutletID || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) ListServers(ctx context.Context, outletID uuid.UUID) ([]database.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.User
	for _, u := range f.users {
		if u.OutletID == outletID && u.Role == enum.UserRoleWaiter && u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeStore) ListSettlementsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.Settlement
	for _, s := range f.settlements {
		if s.OrderID == orderID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSettlementsByAttempt(ctx context.Context, arg database.ListSettlementsByAttemptParams) ([]database.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.Settlement
	for _, s := range f.settlements {
		if s.OrderID == arg.OrderID && s.AttemptToken == arg.AttemptToken {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSettlement(ctx context.Context, arg database.CreateSettlementParams) (database.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateSettlement"); err != nil {
		return database.Settlement{}, err
	}
	for _, s := range f.settlements {
		if s.OrderID == arg.OrderID && s.AttemptToken == arg.AttemptToken && s.Seq == arg.Seq {
			return database.Settlement{}, pgx.ErrNoRows
		}
	}
	s := database.Settlement{
		ID:             uuid.New(),
		OrderID:        arg.OrderID,
		AttemptToken:   arg.AttemptToken,
		Seq:            arg.Seq,
		Method:         arg.Method,
		Amount:         arg.Amount,
		AmountTendered: arg.AmountTendered,
		ChangeAmount:   arg.ChangeAmount,
		Reference:      arg.Reference,
		FolioID:        arg.FolioID,
		FolioChargeID:  arg.FolioChargeID,
		ProcessedBy:    arg.ProcessedBy,
		CreatedAt:      time.Now().UTC(),
	}
	f.settlements = append(f.settlements, s)
	return s, nil
}

func (f *fakeStore) AcknowledgeSettlementChange(ctx context.Context, arg database.AcknowledgeSettlementChangeParams) ([]database.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.Settlement
	for i := range f.settlements {
		s := &f.settlements[i]
		if s.OrderID != arg.OrderID || s.AttemptToken != arg.AttemptToken {
			continue
		}
		if !numericToDecimal(s.ChangeAmount).IsPositive() || s.ChangeAcknowledgedAt.Valid {
			continue
		}
		s.ChangeAcknowledgedAt = pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
		out = append(out, *s)
	}
	return out, nil
}

// --- Seeding helpers ---

func (f *fakeStore) addProduct(outletID uuid.UUID, name, price, station string) uuid.UUID {
	p := database.Product{
		ID:       uuid.New(),
		OutletID: outletID,
		Name:     name,
		Code:     name[:3],
		Price:    decimalToNumeric(decimal.RequireFromString(price)),
		Station:  pgText(station),
		IsActive: true,
	}
	f.products[p.ID] = p
	return p.ID
}

func (f *fakeStore) addTable(outletID uuid.UUID, number string, capacity int32, zone string) uuid.UUID {
	t := database.RestaurantTable{
		ID:       uuid.New(),
		OutletID: outletID,
		Number:   number,
		Capacity: capacity,
		Zone:     zone,
		Status:   string(enum.TableStatusAvailable),
	}
	f.tables[t.ID] = t
	return t.ID
}

func (f *fakeStore) addUser(t *testing.T, outletID uuid.UUID, name, role, pin string) uuid.UUID {
	t.Helper()
	u := database.User{
		ID:       uuid.New(),
		OutletID: outletID,
		Email:    name + "@outlet.test",
		FullName: name,
		Role:     role,
		IsActive: true,
	}
	if pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash pin: %v", err)
		}
		u.PinHash = pgText(string(hash))
	}
	f.users[u.ID] = u
	return u.ID
}

func (f *fakeStore) table(id uuid.UUID) database.RestaurantTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[id]
}

// --- Event recorder ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []KitchenEvent
}

func (r *recordingNotifier) Notify(ctx context.Context, ev KitchenEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recordingNotifier) last() KitchenEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return KitchenEvent{}
	}
	return r.events[len(r.events)-1]
}

// --- Fixture ---

// fixture wires every service over one fakeStore. Prices are FCFA with a
// 10% service charge and 18% tax.
type fixture struct {
	store    *fakeStore
	events   *recordingNotifier
	mgr      *OrderManager
	kitchen  *KitchenBridge
	settle   *SettlementService
	tables   *TableService
	outletID uuid.UUID
	staffID  uuid.UUID

	chicken uuid.UUID // 2500, grill
	juice   uuid.UUID // 500, bar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	events := &recordingNotifier{}
	pool := &mockTxBeginner{tx: &mockTx{}}
	opts := Options{
		Currency:          pricing.FCFA,
		ServiceChargeRate: decimal.RequireFromString("0.10"),
		TaxRate:           decimal.RequireFromString("0.18"),
		StoreTimeout:      time.Second,
	}
	change, err := payment.NewChangeMaker(payment.FCFADenominations)
	if err != nil {
		t.Fatalf("change maker: %v", err)
	}

	outletID := uuid.New()
	fx := &fixture{
		store:    store,
		events:   events,
		outletID: outletID,
		staffID:  store.addUser(t, outletID, "cashier", enum.UserRoleCashier, ""),
		chicken:  store.addProduct(outletID, "Poulet braise", "2500", "grill"),
		juice:    store.addProduct(outletID, "Bissap", "500", "bar"),
	}
	fx.mgr = NewOrderManager(pool, store, func(database.DBTX) OrderStore { return store }, opts, events)
	fx.kitchen = NewKitchenBridge(pool, store, func(database.DBTX) KitchenStore { return store }, opts, events)
	fx.settle = NewSettlementService(pool, store, func(database.DBTX) SettlementStore { return store }, opts, change, nil, events)
	fx.tables = NewTableService(pool, store, func(database.DBTX) TableStore { return store }, opts)
	return fx
}

func (fx *fixture) session() *Session {
	return fx.mgr.NewSession(fx.outletID, fx.staffID)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: got %s, want %s", field, got, want)
	}
}
