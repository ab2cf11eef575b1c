package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/outlet-pos/api/internal/service"
)

// KitchenServicer defines the kitchen display operations.
// Satisfied by *service.KitchenBridge; narrow interface for testability.
type KitchenServicer interface {
	Tickets(ctx context.Context, outletID uuid.UUID) ([]service.Ticket, error)
	Advance(ctx context.Context, outletID, itemID uuid.UUID, status enum.ItemStatus) (*service.Order, error)
}

// KitchenHandler serves kitchen display screens.
type KitchenHandler struct {
	svc      KitchenServicer
	currency pricing.Currency
}

// NewKitchenHandler creates a new KitchenHandler.
func NewKitchenHandler(svc KitchenServicer, cur pricing.Currency) *KitchenHandler {
	return &KitchenHandler{svc: svc, currency: cur}
}

// RegisterRoutes registers kitchen endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/kitchen
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets", h.Tickets)
	r.Patch("/items/{itemId}", h.Advance)
}

type ticketResponse struct {
	OrderID     uuid.UUID      `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	OrderType   string         `json:"order_type"`
	TableNumber string         `json:"table_number,omitempty"`
	Round       int32          `json:"round"`
	Status      string         `json:"status"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	Items       []itemResponse `json:"items"`
}

type advanceRequest struct {
	Status string `json:"status"`
}

// Tickets handles GET /outlets/{oid}/kitchen/tickets. An optional
// ?station= narrows items to one station.
func (h *KitchenHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	tickets, err := h.svc.Tickets(r.Context(), outletID)
	if err != nil {
		writeError(w, "list kitchen tickets", err)
		return
	}

	station := r.URL.Query().Get("station")
	resp := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		items := t.Items
		if station != "" {
			items = nil
			for _, it := range t.Items {
				if it.Station == station {
					items = append(items, it)
				}
			}
			if len(items) == 0 {
				continue
			}
		}
		resp = append(resp, ticketResponse{
			OrderID:     t.OrderID,
			OrderNumber: t.OrderNumber,
			OrderType:   string(t.OrderType),
			TableNumber: t.TableNumber,
			Round:       t.Round,
			Status:      string(t.Status),
			SentAt:      t.SentAt,
			Items:       toItemResponses(items, h.currency),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Advance handles PATCH /outlets/{oid}/kitchen/items/{itemId}.
func (h *KitchenHandler) Advance(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId", "item ID")
	if !ok {
		return
	}
	var req advanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status := enum.ItemStatus(req.Status)
	if !status.Valid() {
		writeError(w, "advance item", service.ErrInvalidItemStatus)
		return
	}

	o, err := h.svc.Advance(r.Context(), outletID, itemID, status)
	if err != nil {
		writeError(w, "advance item", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, h.currency))
}
