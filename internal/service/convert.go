package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/outlet-pos/api/internal/database"
	"github.com/outlet-pos/api/internal/enum"
	"github.com/outlet-pos/api/internal/pricing"
	"github.com/shopspring/decimal"
)

func orderFromRow(row database.Order) *Order {
	subtotal := numericToDecimal(row.Subtotal)
	discount := numericToDecimal(row.DiscountAmount)
	return &Order{
		ID:            row.ID,
		OutletID:      row.OutletID,
		Number:        row.OrderNumber,
		Type:          enum.OrderType(row.OrderType),
		TableID:       uuidPtr(row.TableID),
		ServerID:      uuidPtr(row.ServerID),
		GuestID:       row.GuestID.String,
		CustomerCount: row.CustomerCount,
		Status:        enum.OrderStatus(row.Status),
		Discount: pricing.DiscountSpec{
			Type:  enum.DiscountType(row.DiscountType),
			Value: numericToDecimal(row.DiscountValue),
		},
		Totals: pricing.Totals{
			Subtotal:         subtotal,
			Discount:         discount,
			AdjustedSubtotal: subtotal.Sub(discount),
			ServiceCharge:    numericToDecimal(row.ServiceCharge),
			Tax:              numericToDecimal(row.TaxAmount),
			Total:            numericToDecimal(row.TotalAmount),
		},
		CancelReason: row.CancelReason.String,
		Version:      row.Version,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func itemFromRow(row database.OrderItem) Item {
	return Item{
		ID:           row.ID,
		OrderID:      row.OrderID,
		ProductID:    row.ProductID,
		ProductName:  row.ProductName,
		ProductCode:  row.ProductCode,
		UnitPrice:    numericToDecimal(row.UnitPrice),
		Quantity:     row.Quantity,
		TotalPrice:   numericToDecimal(row.TotalPrice),
		Instructions: row.SpecialInstructions.String,
		Station:      row.Station.String,
		Status:       enum.ItemStatus(row.Status),
		FireRound:    row.FireRound,
		CancelReason: row.CancelReason.String,
		SentAt:       timePtr(row.SentAt),
	}
}

func updateOrderParams(version int32, o *Order) database.UpdateOrderParams {
	return database.UpdateOrderParams{
		ID:             o.ID,
		Version:        version,
		CustomerCount:  o.CustomerCount,
		Status:         string(o.Status),
		DiscountType:   string(discountTypeOrNone(o.Discount.Type)),
		DiscountValue:  decimalToNumeric(o.Discount.Value),
		Subtotal:       decimalToNumeric(o.Totals.Subtotal),
		DiscountAmount: decimalToNumeric(o.Totals.Discount),
		ServiceCharge:  decimalToNumeric(o.Totals.ServiceCharge),
		TaxAmount:      decimalToNumeric(o.Totals.Tax),
		TotalAmount:    decimalToNumeric(o.Totals.Total),
		CancelReason:   pgText(o.CancelReason),
	}
}

func createItemParams(orderID uuid.UUID, it Item) database.CreateOrderItemParams {
	return database.CreateOrderItemParams{
		OrderID:             orderID,
		ProductID:           it.ProductID,
		ProductName:         it.ProductName,
		ProductCode:         it.ProductCode,
		UnitPrice:           decimalToNumeric(it.UnitPrice),
		Quantity:            it.Quantity,
		TotalPrice:          decimalToNumeric(it.TotalPrice),
		SpecialInstructions: pgText(it.Instructions),
		Station:             pgText(it.Station),
		Status:              string(it.Status),
	}
}

func updateItemParams(it Item) database.UpdateOrderItemParams {
	return database.UpdateOrderItemParams{
		ID:           it.ID,
		Quantity:     it.Quantity,
		TotalPrice:   decimalToNumeric(it.TotalPrice),
		Status:       string(it.Status),
		FireRound:    it.FireRound,
		CancelReason: pgText(it.CancelReason),
		SentAt:       pgTimestamptz(it.SentAt),
	}
}

func discountTypeOrNone(t enum.DiscountType) enum.DiscountType {
	if t == "" {
		return enum.DiscountTypeNone
	}
	return t
}

// --- pgtype helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func pgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func pgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
