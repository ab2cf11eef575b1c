// Package pricing turns order lines and a discount into bill totals.
//
// The canonical order is: discount first, then service charge on the
// discounted subtotal, then tax on the service-inclusive amount. Every
// derived amount is rounded to the currency's minor unit as soon as it is
// computed so partial displays always add up.
package pricing

import (
	"strings"

	"github.com/outlet-pos/api/internal/apperr"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Currency describes the minor-unit resolution of amounts.
type Currency struct {
	Code       string
	MinorUnits int32
}

// FCFA is the zero-decimal West/Central African franc.
var FCFA = Currency{Code: "XOF", MinorUnits: 0}

// Round rounds d to the currency's minor unit.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.MinorUnits)
}

// Format renders d with exactly the currency's number of decimals.
func (c Currency) Format(d decimal.Decimal) string {
	return d.StringFixed(c.MinorUnits)
}

// Line is one priced order line.
type Line struct {
	Quantity   int32
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Cancelled  bool
}

// DiscountSpec is an order-level discount.
type DiscountSpec struct {
	Type  enum.DiscountType `json:"type"`
	Value decimal.Decimal   `json:"value"`
}

// NoDiscount is the zero discount.
var NoDiscount = DiscountSpec{Type: enum.DiscountTypeNone}

// Totals is the bill breakdown.
type Totals struct {
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	AdjustedSubtotal decimal.Decimal
	ServiceCharge    decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
}

// LineTotal returns quantity × unit price in the currency's resolution.
func LineTotal(qty int32, unitPrice decimal.Decimal, c Currency) decimal.Decimal {
	return c.Round(unitPrice.Mul(decimal.NewFromInt32(qty)))
}

// ComputeTotals prices the lines. Cancelled lines are ignored.
func ComputeTotals(lines []Line, discount DiscountSpec, serviceChargeRate, taxRate decimal.Decimal, c Currency) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Cancelled {
			continue
		}
		subtotal = subtotal.Add(l.TotalPrice)
	}
	subtotal = c.Round(subtotal)

	disc := c.Round(discountAmount(subtotal, discount))
	adjusted := c.Round(subtotal.Sub(disc))
	service := c.Round(adjusted.Mul(serviceChargeRate))
	tax := c.Round(adjusted.Add(service).Mul(taxRate))
	total := adjusted.Add(service).Add(tax)

	return Totals{
		Subtotal:         subtotal,
		Discount:         disc,
		AdjustedSubtotal: adjusted,
		ServiceCharge:    service,
		Tax:              tax,
		Total:            total,
	}
}

// discountAmount clamps the discount into [0, subtotal].
func discountAmount(subtotal decimal.Decimal, d DiscountSpec) decimal.Decimal {
	var amt decimal.Decimal
	switch d.Type {
	case enum.DiscountTypePercentage:
		pct := clamp(d.Value, decimal.Zero, hundred)
		amt = subtotal.Mul(pct).Div(hundred)
	case enum.DiscountTypeAmount:
		amt = d.Value
	default:
		return decimal.Zero
	}
	return clamp(amt, decimal.Zero, subtotal)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// ParseDiscount validates raw discount input from the UI.
// An empty type means no discount.
func ParseDiscount(discountType, value string) (DiscountSpec, error) {
	t := enum.DiscountType(strings.ToLower(strings.TrimSpace(discountType)))
	switch t {
	case "", enum.DiscountTypeNone:
		return NoDiscount, nil
	case enum.DiscountTypePercentage, enum.DiscountTypeAmount:
	default:
		return DiscountSpec{}, apperr.Validation("unknown discount type %q", discountType)
	}

	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return DiscountSpec{}, apperr.Validation("discount value %q is not a number", value)
	}
	if v.IsNegative() {
		return DiscountSpec{}, apperr.Validation("discount value cannot be negative")
	}
	return DiscountSpec{Type: t, Value: v}, nil
}
