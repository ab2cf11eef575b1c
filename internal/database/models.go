package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Outlet struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Address   pgtype.Text `json:"address"`
	Phone     pgtype.Text `json:"phone"`
	CreatedAt time.Time   `json:"created_at"`
}

type User struct {
	ID             uuid.UUID   `json:"id"`
	OutletID       uuid.UUID   `json:"outlet_id"`
	Email          string      `json:"email"`
	HashedPassword string      `json:"hashed_password"`
	PinHash        pgtype.Text `json:"pin_hash"`
	FullName       string      `json:"full_name"`
	Role           string      `json:"role"`
	Zone           pgtype.Text `json:"zone"`
	MaxTables      int32       `json:"max_tables"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type Product struct {
	ID        uuid.UUID      `json:"id"`
	OutletID  uuid.UUID      `json:"outlet_id"`
	Name      string         `json:"name"`
	Code      string         `json:"code"`
	Price     pgtype.Numeric `json:"price"`
	Station   pgtype.Text    `json:"station"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type RestaurantTable struct {
	ID               uuid.UUID   `json:"id"`
	OutletID         uuid.UUID   `json:"outlet_id"`
	Number           string      `json:"number"`
	Capacity         int32       `json:"capacity"`
	Zone             string      `json:"zone"`
	Status           string      `json:"status"`
	ServerID         pgtype.UUID `json:"server_id"`
	MergedInto       pgtype.UUID `json:"merged_into"`
	CombinedCapacity int32       `json:"combined_capacity"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type Order struct {
	ID             uuid.UUID          `json:"id"`
	OutletID       uuid.UUID          `json:"outlet_id"`
	OrderNumber    string             `json:"order_number"`
	OrderType      string             `json:"order_type"`
	TableID        pgtype.UUID        `json:"table_id"`
	ServerID       pgtype.UUID        `json:"server_id"`
	GuestID        pgtype.Text        `json:"guest_id"`
	CustomerCount  int32              `json:"customer_count"`
	Status         string             `json:"status"`
	DiscountType   string             `json:"discount_type"`
	DiscountValue  pgtype.Numeric     `json:"discount_value"`
	Subtotal       pgtype.Numeric     `json:"subtotal"`
	DiscountAmount pgtype.Numeric     `json:"discount_amount"`
	ServiceCharge  pgtype.Numeric     `json:"service_charge"`
	TaxAmount      pgtype.Numeric     `json:"tax_amount"`
	TotalAmount    pgtype.Numeric     `json:"total_amount"`
	CancelReason   pgtype.Text        `json:"cancel_reason"`
	Version        int32              `json:"version"`
	CreatedBy      uuid.UUID          `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	ClosedAt       pgtype.Timestamptz `json:"closed_at"`
}

type OrderItem struct {
	ID                  uuid.UUID          `json:"id"`
	OrderID             uuid.UUID          `json:"order_id"`
	ProductID           uuid.UUID          `json:"product_id"`
	ProductName         string             `json:"product_name"`
	ProductCode         string             `json:"product_code"`
	UnitPrice           pgtype.Numeric     `json:"unit_price"`
	Quantity            int32              `json:"quantity"`
	TotalPrice          pgtype.Numeric     `json:"total_price"`
	SpecialInstructions pgtype.Text        `json:"special_instructions"`
	Station             pgtype.Text        `json:"station"`
	Status              string             `json:"status"`
	FireRound           int32              `json:"fire_round"`
	CancelReason        pgtype.Text        `json:"cancel_reason"`
	SentAt              pgtype.Timestamptz `json:"sent_at"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type Settlement struct {
	ID                   uuid.UUID          `json:"id"`
	OrderID              uuid.UUID          `json:"order_id"`
	AttemptToken         uuid.UUID          `json:"attempt_token"`
	Seq                  int32              `json:"seq"`
	Method               string             `json:"method"`
	Amount               pgtype.Numeric     `json:"amount"`
	AmountTendered       pgtype.Numeric     `json:"amount_tendered"`
	ChangeAmount         pgtype.Numeric     `json:"change_amount"`
	Reference            pgtype.Text        `json:"reference"`
	FolioID              pgtype.Text        `json:"folio_id"`
	FolioChargeID        pgtype.Text        `json:"folio_charge_id"`
	ChangeAcknowledgedAt pgtype.Timestamptz `json:"change_acknowledged_at"`
	ProcessedBy          uuid.UUID          `json:"processed_by"`
	CreatedAt            time.Time          `json:"created_at"`
}
