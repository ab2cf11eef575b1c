package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/enum"
)

// Kitchen event types. They double as the last segment of the broker
// routing key.
const (
	EventRoundFired     = "kitchen.round_fired"
	EventItemStatus     = "kitchen.item_status"
	EventItemCancelled  = "kitchen.item_cancelled"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)

// KitchenEvent is what kitchen displays and the broker receive after a
// committed change.
type KitchenEvent struct {
	Type        string           `json:"type"`
	OutletID    uuid.UUID        `json:"outlet_id"`
	OrderID     uuid.UUID        `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	OrderType   enum.OrderType   `json:"order_type"`
	OrderStatus enum.OrderStatus `json:"order_status"`
	Round       int32            `json:"round,omitempty"`
	Items       []EventItem      `json:"items,omitempty"`
	At          time.Time        `json:"at"`
}

// EventItem is the kitchen's view of one line.
type EventItem struct {
	ID           uuid.UUID       `json:"id"`
	ProductName  string          `json:"product_name"`
	Quantity     int32           `json:"quantity"`
	Instructions string          `json:"instructions,omitempty"`
	Station      string          `json:"station,omitempty"`
	Status       enum.ItemStatus `json:"status"`
	FireRound    int32           `json:"fire_round"`
}

func newKitchenEvent(typ string, o *Order, round int32, items []Item) KitchenEvent {
	ev := KitchenEvent{
		Type:        typ,
		OutletID:    o.OutletID,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		OrderType:   o.Type,
		OrderStatus: o.Status,
		Round:       round,
		At:          time.Now().UTC(),
	}
	for _, it := range items {
		ev.Items = append(ev.Items, EventItem{
			ID:           it.ID,
			ProductName:  it.ProductName,
			Quantity:     it.Quantity,
			Instructions: it.Instructions,
			Station:      it.Station,
			Status:       it.Status,
			FireRound:    it.FireRound,
		})
	}
	return ev
}

// Notifier delivers kitchen events. Implementations: the WebSocket hub
// adapter and the AMQP publisher.
type Notifier interface {
	Notify(ctx context.Context, ev KitchenEvent) error
}

// Notifiers fans an event out to every notifier. Delivery is best effort:
// the change is already committed, so failures are only logged.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(ctx context.Context, ev KitchenEvent) error {
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			log.Printf("ERROR: notify %s for order %s: %v", ev.Type, ev.OrderNumber, err)
		}
	}
	return nil
}

func (m *OrderManager) notify(ctx context.Context, ev KitchenEvent) {
	if err := m.notifier.Notify(ctx, ev); err != nil {
		log.Printf("ERROR: notify %s for order %s: %v", ev.Type, ev.OrderNumber, err)
	}
}
