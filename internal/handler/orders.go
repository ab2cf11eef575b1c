package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/outlet-pos/api/internal/service"
)

// OrderSession is one request's editing session on an order.
// Satisfied by *service.Session wrapped with its kitchen bridge; narrow
// interface for testability.
type OrderSession interface {
	Open(ctx context.Context, orderID uuid.UUID) (*service.Order, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.Order, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.Order, error)
	UpdateQuantity(ctx context.Context, itemID uuid.UUID, qty int32) (*service.Order, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*service.Order, error)
	CancelItem(ctx context.Context, itemID uuid.UUID, reason string, override *service.Override) (*service.Order, error)
	SetDiscount(ctx context.Context, d pricing.DiscountSpec) (*service.Order, error)
	SetCustomerCount(ctx context.Context, n int32) (*service.Order, error)
	CancelOrder(ctx context.Context, reason string, override *service.Override) (*service.Order, error)
	Send(ctx context.Context) (service.FireRound, error)
}

// SessionFactory opens an editing session for a staff member in an outlet.
type SessionFactory func(outletID, staffID uuid.UUID) OrderSession

type liveSession struct {
	*service.Session
	kitchen *service.KitchenBridge
}

func (s liveSession) Send(ctx context.Context) (service.FireRound, error) {
	return s.kitchen.Send(ctx, s.Session)
}

// NewSessionFactory binds sessions from mgr to the kitchen bridge.
func NewSessionFactory(mgr *service.OrderManager, kitchen *service.KitchenBridge) SessionFactory {
	return func(outletID, staffID uuid.UUID) OrderSession {
		return liveSession{Session: mgr.NewSession(outletID, staffID), kitchen: kitchen}
	}
}

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	sessions SessionFactory
	currency pricing.Currency
}

// NewOrderHandler creates a new OrderHandler. Amounts are rendered with the
// decimals of cur.
func NewOrderHandler(sessions SessionFactory, cur pricing.Currency) *OrderHandler {
	return &OrderHandler{sessions: sessions, currency: cur}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.AddItem)
	r.Patch("/{id}/items/{itemId}", h.UpdateItem)
	r.Delete("/{id}/items/{itemId}", h.RemoveItem)
	r.Post("/{id}/items/{itemId}/cancel", h.CancelItem)
	r.Put("/{id}/discount", h.SetDiscount)
	r.Put("/{id}/customers", h.SetCustomers)
	r.Post("/{id}/send", h.Send)
	r.Post("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType     string `json:"order_type"`
	TableID       string `json:"table_id"`
	CustomerCount int32  `json:"customer_count"`
	GuestID       string `json:"guest_id"`
}

type addItemRequest struct {
	ProductID    string `json:"product_id"`
	Quantity     int32  `json:"quantity"`
	Instructions string `json:"instructions"`
}

type updateItemRequest struct {
	Quantity *int32 `json:"quantity"`
}

type overrideRequest struct {
	ManagerID string `json:"manager_id"`
	Pin       string `json:"pin"`
}

type cancelRequest struct {
	Reason   string           `json:"reason"`
	Override *overrideRequest `json:"override"`
}

type discountRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type customersRequest struct {
	CustomerCount int32 `json:"customer_count"`
}

type orderResponse struct {
	ID               uuid.UUID      `json:"id"`
	OutletID         uuid.UUID      `json:"outlet_id"`
	OrderNumber      string         `json:"order_number"`
	OrderType        string         `json:"order_type"`
	Status           string         `json:"status"`
	TableID          *uuid.UUID     `json:"table_id"`
	GuestID          string         `json:"guest_id,omitempty"`
	CustomerCount    int32          `json:"customer_count"`
	DiscountType     string         `json:"discount_type"`
	DiscountValue    string         `json:"discount_value"`
	Subtotal         string         `json:"subtotal"`
	DiscountAmount   string         `json:"discount_amount"`
	AdjustedSubtotal string         `json:"adjusted_subtotal"`
	ServiceCharge    string         `json:"service_charge"`
	TaxAmount        string         `json:"tax_amount"`
	TotalAmount      string         `json:"total_amount"`
	CancelReason     string         `json:"cancel_reason,omitempty"`
	Version          int32          `json:"version"`
	CreatedBy        uuid.UUID      `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Items            []itemResponse `json:"items"`
}

type itemResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	ProductName  string     `json:"product_name"`
	ProductCode  string     `json:"product_code"`
	UnitPrice    string     `json:"unit_price"`
	Quantity     int32      `json:"quantity"`
	TotalPrice   string     `json:"total_price"`
	Instructions string     `json:"instructions,omitempty"`
	Station      string     `json:"station,omitempty"`
	Status       string     `json:"status"`
	FireRound    int32      `json:"fire_round"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

type fireRoundResponse struct {
	OrderID       uuid.UUID      `json:"order_id"`
	Round         int32          `json:"round"`
	NothingToSend bool           `json:"nothing_to_send"`
	Items         []itemResponse `json:"items"`
}

func toOrderResponse(o *service.Order, cur pricing.Currency) orderResponse {
	return orderResponse{
		ID:               o.ID,
		OutletID:         o.OutletID,
		OrderNumber:      o.Number,
		OrderType:        string(o.Type),
		Status:           string(o.Status),
		TableID:          o.TableID,
		GuestID:          o.GuestID,
		CustomerCount:    o.CustomerCount,
		DiscountType:     string(o.Discount.Type),
		DiscountValue:    o.Discount.Value.String(),
		Subtotal:         cur.Format(o.Totals.Subtotal),
		DiscountAmount:   cur.Format(o.Totals.Discount),
		AdjustedSubtotal: cur.Format(o.Totals.AdjustedSubtotal),
		ServiceCharge:    cur.Format(o.Totals.ServiceCharge),
		TaxAmount:        cur.Format(o.Totals.Tax),
		TotalAmount:      cur.Format(o.Totals.Total),
		CancelReason:     o.CancelReason,
		Version:          o.Version,
		CreatedBy:        o.CreatedBy,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            toItemResponses(o.Items, cur),
	}
}

func toItemResponses(items []service.Item, cur pricing.Currency) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = itemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductCode:  it.ProductCode,
			UnitPrice:    cur.Format(it.UnitPrice),
			Quantity:     it.Quantity,
			TotalPrice:   cur.Format(it.TotalPrice),
			Instructions: it.Instructions,
			Station:      it.Station,
			Status:       string(it.Status),
			FireRound:    it.FireRound,
			CancelReason: it.CancelReason,
			SentAt:       it.SentAt,
		}
	}
	return out
}

// --- Handlers ---

// Create handles POST /outlets/{oid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	create := service.CreateOrderRequest{
		Type:          enum.OrderType(strings.TrimSpace(req.OrderType)),
		CustomerCount: req.CustomerCount,
		GuestID:       req.GuestID,
	}
	if req.TableID != "" {
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		create.TableID = &tid
	}
	if create.Type == "" {
		create.Type = enum.OrderTypeTakeaway
		if create.TableID != nil {
			create.Type = enum.OrderTypeDineIn
		}
	}

	o, err := h.sessions(outletID, claims.UserID).CreateOrder(r.Context(), create)
	if err != nil {
		writeError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o, h.currency))
}

// Get handles GET /outlets/{oid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withOrder(w, r, http.StatusOK, "get order", func(ctx context.Context, s OrderSession, o *service.Order) (*service.Order, error) {
		return o, nil
	})
}

// AddItem handles POST /outlets/{oid}/orders/{id}/items.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	h.withOrder(w, r, http.StatusCreated, "add item", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.AddItem(ctx, service.AddItemRequest{
			ProductID:    productID,
			Quantity:     req.Quantity,
			Instructions: req.Instructions,
		})
	})
}

// UpdateItem handles PATCH /outlets/{oid}/orders/{id}/items/{itemId}.
func (h *OrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemId", "item ID")
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity is required"})
		return
	}
	h.withOrder(w, r, http.StatusOK, "update item", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.UpdateQuantity(ctx, itemID, *req.Quantity)
	})
}

// RemoveItem handles DELETE /outlets/{oid}/orders/{id}/items/{itemId}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemId", "item ID")
	if !ok {
		return
	}
	h.withOrder(w, r, http.StatusOK, "remove item", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.RemoveItem(ctx, itemID)
	})
}

// CancelItem handles POST /outlets/{oid}/orders/{id}/items/{itemId}/cancel.
func (h *OrderHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "itemId", "item ID")
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	override, ok := parseOverride(w, req.Override)
	if !ok {
		return
	}
	h.withOrder(w, r, http.StatusOK, "cancel item", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.CancelItem(ctx, itemID, req.Reason, override)
	})
}

// SetDiscount handles PUT /outlets/{oid}/orders/{id}/discount.
func (h *OrderHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	spec, err := pricing.ParseDiscount(req.Type, req.Value)
	if err != nil {
		writeError(w, "set discount", err)
		return
	}
	h.withOrder(w, r, http.StatusOK, "set discount", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.SetDiscount(ctx, spec)
	})
}

// SetCustomers handles PUT /outlets/{oid}/orders/{id}/customers.
func (h *OrderHandler) SetCustomers(w http.ResponseWriter, r *http.Request) {
	var req customersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.withOrder(w, r, http.StatusOK, "set customer count", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.SetCustomerCount(ctx, req.CustomerCount)
	})
}

// Send handles POST /outlets/{oid}/orders/{id}/send. Sending an order with
// nothing pending answers 200 with nothing_to_send set.
func (h *OrderHandler) Send(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.open(w, r, "send order")
	if !ok {
		return
	}
	round, err := s.Send(r.Context())
	if err != nil {
		writeError(w, "send order", err)
		return
	}
	status := http.StatusCreated
	if round.NothingToSend {
		status = http.StatusOK
	}
	writeJSON(w, status, fireRoundResponse{
		OrderID:       round.OrderID,
		Round:         round.Round,
		NothingToSend: round.NothingToSend,
		Items:         toItemResponses(round.Items, h.currency),
	})
}

// Cancel handles POST /outlets/{oid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	override, ok := parseOverride(w, req.Override)
	if !ok {
		return
	}
	h.withOrder(w, r, http.StatusOK, "cancel order", func(ctx context.Context, s OrderSession, _ *service.Order) (*service.Order, error) {
		return s.CancelOrder(ctx, req.Reason, override)
	})
}

// --- Helpers ---

// open resolves the outlet, caller and order and loads the order into a
// fresh session.
func (h *OrderHandler) open(w http.ResponseWriter, r *http.Request, op string) (OrderSession, *service.Order, bool) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return nil, nil, false
	}
	orderID, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return nil, nil, false
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return nil, nil, false
	}
	s := h.sessions(outletID, claims.UserID)
	o, err := s.Open(r.Context(), orderID)
	if err != nil {
		writeError(w, op, err)
		return nil, nil, false
	}
	return s, o, true
}

// withOrder runs fn on a session holding the routed order and writes the
// resulting order.
func (h *OrderHandler) withOrder(w http.ResponseWriter, r *http.Request, status int, op string, fn func(context.Context, OrderSession, *service.Order) (*service.Order, error)) {
	s, current, ok := h.open(w, r, op)
	if !ok {
		return
	}
	o, err := fn(r.Context(), s, current)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, status, toOrderResponse(o, h.currency))
}

func parseOverride(w http.ResponseWriter, req *overrideRequest) (*service.Override, bool) {
	if req == nil {
		return nil, true
	}
	managerID, err := uuid.Parse(req.ManagerID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid override manager_id"})
		return nil, false
	}
	return &service.Override{ManagerID: managerID, PIN: req.Pin}, true
}
