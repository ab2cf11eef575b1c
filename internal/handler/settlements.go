package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/outlet-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// SettlementServicer defines the settlement operations used by the handler.
// Satisfied by *service.SettlementService; narrow interface for testability.
type SettlementServicer interface {
	Settle(ctx context.Context, outletID, staffID uuid.UUID, req service.SettleRequest) (*service.SettleResult, error)
	AcknowledgeChange(ctx context.Context, outletID, orderID, token uuid.UUID) (*service.SettleResult, error)
	Settlements(ctx context.Context, outletID, orderID uuid.UUID) ([]service.Settlement, error)
}

// SettlementHandler handles paying orders.
type SettlementHandler struct {
	svc      SettlementServicer
	currency pricing.Currency
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(svc SettlementServicer, cur pricing.Currency) *SettlementHandler {
	return &SettlementHandler{svc: svc, currency: cur}
}

// RegisterRoutes registers settlement endpoints on the given Chi router.
// Expected to be mounted alongside the order routes: /outlets/{oid}/orders
func (h *SettlementHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/settlements", h.Settle)
	r.Get("/{id}/settlements", h.List)
	r.Post("/{id}/settlements/{token}/acknowledge-change", h.AcknowledgeChange)
}

// --- Request / Response types ---

type settlePartRequest struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Tendered  decimal.Decimal `json:"tendered"`
	Reference string          `json:"reference"`
	FolioID   string          `json:"folio_id"`
}

type settleRequest struct {
	AttemptToken string              `json:"attempt_token"`
	Payments     []settlePartRequest `json:"payments"`
}

type settleResponse struct {
	Order       orderResponse           `json:"order"`
	Settlements []service.Settlement    `json:"settlements"`
	Change      decimal.Decimal         `json:"change"`
	Breakdown   payment.ChangeBreakdown `json:"breakdown"`
	Discharged  bool                    `json:"discharged"`
	Replayed    bool                    `json:"replayed"`
}

func toSettleResponse(res *service.SettleResult, cur pricing.Currency) settleResponse {
	return settleResponse{
		Order:       toOrderResponse(res.Order, cur),
		Settlements: res.Settlements,
		Change:      res.Change,
		Breakdown:   res.Breakdown,
		Discharged:  res.Discharged,
		Replayed:    res.Replayed,
	}
}

// --- Handlers ---

// Settle handles POST /outlets/{oid}/orders/{id}/settlements.
// A replayed attempt answers 200 with the recorded result.
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req settleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	token, err := uuid.Parse(req.AttemptToken)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid attempt_token"})
		return
	}
	parts := make([]payment.Part, len(req.Payments))
	for i, p := range req.Payments {
		parts[i] = payment.Part{
			Method:    enum.PaymentMethod(p.Method),
			Amount:    p.Amount,
			Tendered:  p.Tendered,
			Reference: p.Reference,
			FolioID:   p.FolioID,
		}
	}

	res, err := h.svc.Settle(r.Context(), outletID, claims.UserID, service.SettleRequest{
		OrderID:      orderID,
		AttemptToken: token,
		Parts:        parts,
	})
	if err != nil {
		writeError(w, "settle order", err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, toSettleResponse(res, h.currency))
}

// List handles GET /outlets/{oid}/orders/{id}/settlements.
func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	rows, err := h.svc.Settlements(r.Context(), outletID, orderID)
	if err != nil {
		writeError(w, "list settlements", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// AcknowledgeChange handles
// POST /outlets/{oid}/orders/{id}/settlements/{token}/acknowledge-change.
func (h *SettlementHandler) AcknowledgeChange(w http.ResponseWriter, r *http.Request) {
	outletID, ok := uuidParam(w, r, "oid", "outlet ID")
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	token, ok := uuidParam(w, r, "token", "attempt token")
	if !ok {
		return
	}
	res, err := h.svc.AcknowledgeChange(r.Context(), outletID, orderID, token)
	if err != nil {
		writeError(w, "acknowledge change", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettleResponse(res, h.currency))
}
