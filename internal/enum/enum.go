package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusSent      OrderStatus = "sent"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusDraft:     0,
	OrderStatusSent:      1,
	OrderStatusPreparing: 2,
	OrderStatusReady:     3,
	OrderStatusServed:    4,
	OrderStatusPaid:      5,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusRank[s]
	return ok || s == OrderStatusCancelled
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

// Rank orders the forward path draft..paid. Cancelled has rank -1.
func (s OrderStatus) Rank() int {
	if r, ok := orderStatusRank[s]; ok {
		return r
	}
	return -1
}

// ItemStatus is the kitchen state of a single order line.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusSent      ItemStatus = "sent"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusServed    ItemStatus = "served"
	ItemStatusCancelled ItemStatus = "cancelled"
)

var itemStatusRank = map[ItemStatus]int{
	ItemStatusPending:   0,
	ItemStatusSent:      1,
	ItemStatusPreparing: 2,
	ItemStatusReady:     3,
	ItemStatusServed:    4,
}

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	_, ok := itemStatusRank[s]
	return ok || s == ItemStatusCancelled
}

// Terminal reports whether the item can no longer change status.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusServed || s == ItemStatusCancelled
}

// Rank orders the forward path pending..served. Cancelled has rank -1.
func (s ItemStatus) Rank() int {
	if r, ok := itemStatusRank[s]; ok {
		return r
	}
	return -1
}

// OrderStatusFor maps the kitchen progress of an item onto the order path.
func (s ItemStatus) OrderStatusFor() OrderStatus {
	switch s {
	case ItemStatusSent:
		return OrderStatusSent
	case ItemStatusPreparing:
		return OrderStatusPreparing
	case ItemStatusReady:
		return OrderStatusReady
	case ItemStatusServed:
		return OrderStatusServed
	}
	return OrderStatusDraft
}

// TableStatus is the floor state of a physical table.
type TableStatus string

const (
	TableStatusAvailable  TableStatus = "available"
	TableStatusOccupied   TableStatus = "occupied"
	TableStatusReserved   TableStatus = "reserved"
	TableStatusCleaning   TableStatus = "cleaning"
	TableStatusOutOfOrder TableStatus = "out_of_order"
)

// Valid reports whether s is a known table status.
func (s TableStatus) Valid() bool {
	switch s {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved, TableStatusCleaning, TableStatusOutOfOrder:
		return true
	}
	return false
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

// OrderType is the service mode of an order.
type OrderType string

const (
	OrderTypeDineIn      OrderType = "dine_in"
	OrderTypeTakeaway    OrderType = "takeaway"
	OrderTypeDelivery    OrderType = "delivery"
	OrderTypeRoomService OrderType = "room_service"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery, OrderTypeRoomService:
		return true
	}
	return false
}

// ── Group B: Configurable labels (no DB constraint) ──

const (
	StationGrill    = "GRILL"
	StationBeverage = "BEVERAGE"
	StationKitchen  = "KITCHEN"
	StationDessert  = "DESSERT"
)

// PaymentMethod identifies a payment instrument.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodMTNMoMo     PaymentMethod = "mtn_momo"
	PaymentMethodMoovMoney   PaymentMethod = "moov_money"
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodRoomCharge  PaymentMethod = "room_charge"
)

// PaymentClass groups methods that share validation rules.
type PaymentClass int

const (
	PaymentClassUnknown PaymentClass = iota
	PaymentClassCash
	PaymentClassCard
	PaymentClassMobileMoney
	PaymentClassFolio
)

// Class returns the validation class of the method.
func (m PaymentMethod) Class() PaymentClass {
	switch m {
	case PaymentMethodCash:
		return PaymentClassCash
	case PaymentMethodCard:
		return PaymentClassCard
	case PaymentMethodOrangeMoney, PaymentMethodMTNMoMo, PaymentMethodMoovMoney, PaymentMethodWave:
		return PaymentClassMobileMoney
	case PaymentMethodRoomCharge:
		return PaymentClassFolio
	}
	return PaymentClassUnknown
}

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountTypeNone       DiscountType = "none"
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeAmount     DiscountType = "amount"
)
