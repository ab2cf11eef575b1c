// Package payment validates tenders against a bill and works out change.
package payment

import (
	"strings"

	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// SplitEpsilon is the largest tolerated gap between a split's sum and the bill.
var SplitEpsilon = decimal.RequireFromString("0.01")

// Part is one instrument of a settlement. Amount is the share of the bill
// it covers; Tendered is what the customer handed over (cash only).
type Part struct {
	Method    enum.PaymentMethod `json:"method"`
	Amount    decimal.Decimal    `json:"amount"`
	Tendered  decimal.Decimal    `json:"tendered"`
	Reference string             `json:"reference,omitempty"`
	FolioID   string             `json:"folio_id,omitempty"`
}

// Change is what goes back to the customer for this part.
func (p Part) Change() decimal.Decimal {
	if p.Method.Class() != enum.PaymentClassCash {
		return decimal.Zero
	}
	c := p.Tendered.Sub(p.Amount)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// Validate checks a single tender against the amount it must cover.
func Validate(method enum.PaymentMethod, tendered, amount decimal.Decimal, reference string) error {
	if amount.IsNegative() {
		return apperr.Validation("amount cannot be negative")
	}
	switch method.Class() {
	case enum.PaymentClassCash:
		if tendered.LessThan(amount) {
			return apperr.New(apperr.KindInsufficientFunds,
				"cash tendered %s is less than amount due %s", tendered, amount)
		}
	case enum.PaymentClassMobileMoney:
		if strings.TrimSpace(reference) == "" {
			return apperr.New(apperr.KindReferenceRequired,
				"%s payments need the transaction reference", method)
		}
	case enum.PaymentClassCard, enum.PaymentClassFolio:
	default:
		return apperr.Validation("unknown payment method %q", method)
	}
	return nil
}

// ValidatePart checks one instrument of a settlement.
func ValidatePart(p Part) error {
	if p.Method.Class() == enum.PaymentClassFolio && strings.TrimSpace(p.FolioID) == "" {
		return apperr.Validation("room charge needs a folio number")
	}
	tendered := p.Tendered
	if p.Method.Class() != enum.PaymentClassCash {
		tendered = p.Amount
	}
	return Validate(p.Method, tendered, p.Amount, p.Reference)
}

// ValidateSplit checks that the parts are individually valid and add up to
// the bill within SplitEpsilon.
func ValidateSplit(parts []Part, total decimal.Decimal) error {
	if len(parts) == 0 {
		return apperr.Validation("at least one payment is required")
	}
	sum := decimal.Zero
	for i, p := range parts {
		if p.Amount.IsNegative() {
			return apperr.Validation("payment %d has a negative amount", i+1)
		}
		if p.Amount.IsZero() && total.IsPositive() {
			return apperr.Validation("payment %d has no amount", i+1)
		}
		sum = sum.Add(p.Amount)
	}
	if sum.Sub(total).Abs().GreaterThanOrEqual(SplitEpsilon) {
		return apperr.New(apperr.KindSplitMismatch,
			"payments add up to %s but the bill is %s", sum, total)
	}
	for i, p := range parts {
		if err := ValidatePart(p); err != nil {
			if e, ok := apperr.As(err); ok && len(parts) > 1 {
				return apperr.New(e.Kind, "payment %d: %s", i+1, e.Reason)
			}
			return err
		}
	}
	return nil
}

// TotalChange sums the change owed across parts.
func TotalChange(parts []Part) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p.Change())
	}
	return sum
}
