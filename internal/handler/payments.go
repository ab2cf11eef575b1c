package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/payment"
	"github.com/shopspring/decimal"
)

// ChangeMaker breaks a change amount into notes and coins.
// Satisfied by *payment.ChangeMaker.
type ChangeMaker interface {
	Make(amount decimal.Decimal) payment.ChangeBreakdown
}

// PaymentHandler answers tender checks for a till before anything is
// recorded.
type PaymentHandler struct {
	change ChangeMaker
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(change ChangeMaker) *PaymentHandler {
	return &PaymentHandler{change: change}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted inside an outlet-scoped subrouter: /outlets/{oid}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/validate", h.Validate)
	r.Post("/change", h.Change)
}

type validatePaymentRequest struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Tendered  decimal.Decimal `json:"tendered"`
	Reference string          `json:"reference"`
	FolioID   string          `json:"folio_id"`
}

type validatePaymentResponse struct {
	Valid     bool                    `json:"valid"`
	Change    decimal.Decimal         `json:"change"`
	Breakdown payment.ChangeBreakdown `json:"breakdown"`
}

type changeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Validate handles POST /outlets/{oid}/payments/validate.
func (h *PaymentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validatePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := payment.Part{
		Method:    enum.PaymentMethod(req.Method),
		Amount:    req.Amount,
		Tendered:  req.Tendered,
		Reference: req.Reference,
		FolioID:   req.FolioID,
	}
	if err := payment.ValidatePart(p); err != nil {
		writeError(w, "validate payment", err)
		return
	}
	change := p.Change()
	writeJSON(w, http.StatusOK, validatePaymentResponse{
		Valid:     true,
		Change:    change,
		Breakdown: h.change.Make(change),
	})
}

// Change handles POST /outlets/{oid}/payments/change.
func (h *PaymentHandler) Change(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, "make change", apperr.Validation("change amount cannot be negative"))
		return
	}
	writeJSON(w, http.StatusOK, h.change.Make(req.Amount))
}
