//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/outlet-pos/api/internal/auth"
	"github.com/outlet-pos/api/internal/config"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/outlet-pos/api/internal/router"
	"github.com/outlet-pos/api/internal/ws"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestIntegrationFlow runs a dine-in order from the first line to the
// acknowledged change against a real PostgreSQL database.
func TestIntegrationFlow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	if err := database.Migrate(connStr); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	v := viper.New()
	v.Set("DATABASE_URL", connStr)
	v.Set("JWT_SECRET", "integration-test-secret")
	cfg, err := config.FromViper(v)
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	change, err := payment.NewChangeMaker(cfg.CashDenominations)
	if err != nil {
		t.Fatalf("change maker: %v", err)
	}
	hub := ws.NewHub()
	go hub.Run(ctx)

	queries := database.New(pool)
	r := router.New(cfg, router.Deps{
		Queries:  queries,
		Pool:     pool,
		Hub:      hub,
		Notifier: hub,
		Change:   change,
	})
	server := httptest.NewServer(r)
	defer server.Close()

	fx := seedOutlet(t, ctx, queries)

	// --- 1. Owner logs in with email and password ---
	token := login(t, server, "owner@test.com", "password123")

	// --- 2. A kitchen display connects ---
	display := dialKitchen(t, server, fx.outletID, token)
	defer display.Close()

	// --- 3. Dine-in order seats the table ---
	order := doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, ""), token, map[string]any{
		"order_type":     "dine_in",
		"table_id":       fx.tableID.String(),
		"customer_count": 2,
	}, http.StatusCreated)
	orderID := uuid.MustParse(order["id"].(string))
	if order["order_number"] != "ORD-0001" {
		t.Fatalf("order number: got %v, want ORD-0001", order["order_number"])
	}
	tables := doJSONList(t, server, http.MethodGet, fmt.Sprintf("/outlets/%s/tables/", fx.outletID), token, nil, http.StatusOK)
	if tables[0]["status"] != string(enum.TableStatusOccupied) {
		t.Fatalf("table status: got %v, want occupied", tables[0]["status"])
	}

	// --- 4. A second order on the same table is refused ---
	doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, ""), token, map[string]any{
		"order_type":     "dine_in",
		"table_id":       fx.tableID.String(),
		"customer_count": 1,
	}, http.StatusConflict)

	// --- 5. Add two chickens, then a discount of 500 ---
	order = doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/items"), token, map[string]any{
		"product_id": fx.chickenID.String(),
		"quantity":   2,
	}, http.StatusCreated)
	assertAmount(t, "total after add", order["total_amount"], "6490")

	order = doJSON(t, server, http.MethodPut, ordersPath(fx.outletID, orderID.String()+"/discount"), token, map[string]any{
		"type":  "amount",
		"value": "500",
	}, http.StatusOK)
	assertAmount(t, "service charge", order["service_charge"], "450")
	assertAmount(t, "tax", order["tax_amount"], "891")
	assertAmount(t, "total after discount", order["total_amount"], "5841")

	// --- 6. Fire the round, then fire again with nothing pending ---
	round := doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/send"), token, nil, http.StatusCreated)
	if round["round"].(float64) != 1 {
		t.Fatalf("round: got %v, want 1", round["round"])
	}
	items := round["items"].([]any)
	itemID := items[0].(map[string]any)["id"].(string)

	ev := readEvent(t, display)
	if ev["type"] != "kitchen.round_fired" || ev["order_number"] != "ORD-0001" {
		t.Fatalf("kitchen event: got %v", ev)
	}

	again := doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/send"), token, nil, http.StatusOK)
	if again["nothing_to_send"] != true {
		t.Fatalf("second send: got %v, want nothing_to_send", again)
	}

	// --- 7. Kitchen tickets show the round, then the line is served ---
	tickets := doJSONList(t, server, http.MethodGet, fmt.Sprintf("/outlets/%s/kitchen/tickets", fx.outletID), token, nil, http.StatusOK)
	if len(tickets) != 1 || tickets[0]["round"].(float64) != 1 {
		t.Fatalf("tickets: got %v", tickets)
	}
	order = doJSON(t, server, http.MethodPatch, fmt.Sprintf("/outlets/%s/kitchen/items/%s", fx.outletID, itemID), token, map[string]any{
		"status": "served",
	}, http.StatusOK)
	if order["status"] != string(enum.OrderStatusServed) {
		t.Fatalf("order status after serve: got %v, want served", order["status"])
	}
	doJSON(t, server, http.MethodPatch, fmt.Sprintf("/outlets/%s/kitchen/items/%s", fx.outletID, itemID), token, map[string]any{
		"status": "preparing",
	}, http.StatusConflict)

	// --- 8. Short cash is refused, then 6000 settles with 159 change ---
	attempt := uuid.New()
	doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/settlements"), token, map[string]any{
		"attempt_token": uuid.NewString(),
		"payments":      []map[string]any{{"method": "cash", "amount": "5841", "tendered": "5000"}},
	}, http.StatusPaymentRequired)

	settleBody := map[string]any{
		"attempt_token": attempt.String(),
		"payments":      []map[string]any{{"method": "cash", "amount": "5841", "tendered": "6000"}},
	}
	settled := doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/settlements"), token, settleBody, http.StatusCreated)
	assertAmount(t, "change", settled["change"], "159")
	if settled["discharged"] != false {
		t.Fatalf("discharged before acknowledgement: got %v", settled["discharged"])
	}
	paid := settled["order"].(map[string]any)
	if paid["status"] != string(enum.OrderStatusPaid) {
		t.Fatalf("order status after settle: got %v, want paid", paid["status"])
	}
	breakdown := settled["breakdown"].(map[string]any)
	assertAmount(t, "remainder", breakdown["remainder"], "4")

	// --- 9. Replaying the same attempt returns the stored result ---
	replay := doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/settlements"), token, settleBody, http.StatusOK)
	if replay["replayed"] != true {
		t.Fatalf("replay: got %v, want replayed", replay["replayed"])
	}
	if n := len(replay["settlements"].([]any)); n != 1 {
		t.Fatalf("replay settlements: got %d, want 1", n)
	}

	// --- 10. A new attempt on the paid order conflicts ---
	doJSON(t, server, http.MethodPost, ordersPath(fx.outletID, orderID.String()+"/settlements"), token, map[string]any{
		"attempt_token": uuid.NewString(),
		"payments":      []map[string]any{{"method": "cash", "amount": "5841", "tendered": "6000"}},
	}, http.StatusConflict)

	// --- 11. The cashier hands back the change ---
	ack := doJSON(t, server, http.MethodPost,
		ordersPath(fx.outletID, fmt.Sprintf("%s/settlements/%s/acknowledge-change", orderID, attempt)), token, nil, http.StatusOK)
	if ack["discharged"] != true {
		t.Fatalf("acknowledge: got %v, want discharged", ack["discharged"])
	}

	tables = doJSONList(t, server, http.MethodGet, fmt.Sprintf("/outlets/%s/tables/", fx.outletID), token, nil, http.StatusOK)
	if tables[0]["status"] != string(enum.TableStatusCleaning) {
		t.Fatalf("table status after payment: got %v, want cleaning", tables[0]["status"])
	}
	tablePath := fmt.Sprintf("/outlets/%s/tables/%s", fx.outletID, fx.tableID)
	doJSON(t, server, http.MethodPatch, tablePath, token, map[string]any{"status": "occupied"}, http.StatusConflict)
	released := doJSON(t, server, http.MethodPatch, tablePath, token, map[string]any{"status": "available"}, http.StatusOK)
	if released["status"] != string(enum.TableStatusAvailable) {
		t.Fatalf("table status after cleaning: got %v, want available", released["status"])
	}

	// --- 12. The manager signs in with a PIN on the till ---
	pinResp := doJSON(t, server, http.MethodPost, "/auth/pin-login", "", map[string]any{
		"outlet_id": fx.outletID.String(),
		"pin":       "1111",
	}, http.StatusOK)
	user := pinResp["user"].(map[string]any)
	if user["role"] != enum.UserRoleManager {
		t.Fatalf("pin login role: got %v, want MANAGER", user["role"])
	}
	doJSON(t, server, http.MethodPost, "/auth/pin-login", "", map[string]any{
		"outlet_id": fx.outletID.String(),
		"pin":       "9999",
	}, http.StatusUnauthorized)
}

type outletFixture struct {
	outletID  uuid.UUID
	tableID   uuid.UUID
	chickenID uuid.UUID
}

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pos_test"),
		tcpostgres.WithUsername("pos"),
		tcpostgres.WithPassword("pos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	return connStr, func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}

func seedOutlet(t *testing.T, ctx context.Context, q *database.Queries) outletFixture {
	t.Helper()

	outlet, err := q.CreateOutlet(ctx, database.CreateOutletParams{Name: "Test Outlet"})
	if err != nil {
		t.Fatalf("create outlet: %v", err)
	}

	password, err := auth.HashSecret("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	pin, err := auth.HashSecret("1111")
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	if _, err := q.CreateUser(ctx, database.CreateUserParams{
		OutletID:       outlet.ID,
		Email:          "owner@test.com",
		HashedPassword: password,
		FullName:       "Test Owner",
		Role:           enum.UserRoleOwner,
	}); err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if _, err := q.CreateUser(ctx, database.CreateUserParams{
		OutletID:       outlet.ID,
		Email:          "manager@test.com",
		HashedPassword: password,
		FullName:       "Test Manager",
		Role:           enum.UserRoleManager,
		PinHash:        pgtype.Text{String: pin, Valid: true},
	}); err != nil {
		t.Fatalf("create manager: %v", err)
	}

	table, err := q.CreateTable(ctx, database.CreateTableParams{
		OutletID: outlet.ID,
		Number:   "T1",
		Capacity: 4,
		Zone:     "terrace",
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	var price pgtype.Numeric
	if err := price.Scan("2500"); err != nil {
		t.Fatalf("scan price: %v", err)
	}
	chicken, err := q.CreateProduct(ctx, database.CreateProductParams{
		OutletID: outlet.ID,
		Name:     "Poulet braisé",
		Code:     "PB01",
		Price:    price,
		Station:  pgtype.Text{String: enum.StationGrill, Valid: true},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	return outletFixture{outletID: outlet.ID, tableID: table.ID, chickenID: chicken.ID}
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK)
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login: missing access_token in %v", resp)
	}
	return token
}

func dialKitchen(t *testing.T, server *httptest.Server, outletID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + fmt.Sprintf("/ws/outlets/%s/kitchen?token=%s", outletID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial kitchen display: %v", err)
	}
	// Registration with the hub is asynchronous.
	time.Sleep(100 * time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read kitchen event: %v", err)
	}
	// Queued events share a frame, one per line.
	first, _, _ := bytes.Cut(msg, []byte{'\n'})
	var ev map[string]any
	if err := json.Unmarshal(first, &ev); err != nil {
		t.Fatalf("decode kitchen event: %v", err)
	}
	return ev
}

func ordersPath(outletID uuid.UUID, rest string) string {
	if rest == "" {
		return fmt.Sprintf("/outlets/%s/orders/", outletID)
	}
	return fmt.Sprintf("/outlets/%s/orders/%s", outletID, rest)
}

func assertAmount(t *testing.T, name string, got any, want string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("%s: got %v (%T), want a decimal string", name, got, got)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("%s: parse %q: %v", name, s, err)
	}
	if !d.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: got %s, want %s", name, s, want)
	}
}

func send(t *testing.T, server *httptest.Server, method, path, token string, body any, wantStatus int) []byte {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d, body: %s", method, path, resp.StatusCode, wantStatus, buf.String())
	}
	return buf.Bytes()
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body any, wantStatus int) map[string]any {
	t.Helper()
	raw := send(t, server, method, path, token, body, wantStatus)
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return out
}

func doJSONList(t *testing.T, server *httptest.Server, method, path, token string, body any, wantStatus int) []map[string]any {
	t.Helper()
	raw := send(t, server, method, path, token, body, wantStatus)
	var out []map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return out
}
