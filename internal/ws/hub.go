// Package ws pushes kitchen events to display screens over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/outlet-pos/api/internal/service"
)

// outletEvent routes an event to one outlet's room.
type outletEvent struct {
	OutletID uuid.UUID
	Event    service.KitchenEvent
}

// Hub keeps one room of display clients per outlet and fans events out
// to them. A single goroutine (Run) owns all room changes.
type Hub struct {
	// Registered clients by outlet ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *outletEvent
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *outletEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for outletID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, outletID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.outletID] == nil {
				h.rooms[client.outletID] = make(map[*Client]bool)
			}
			h.rooms[client.outletID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.outletID]; ok {
				if _, exists := clients[client]; exists {
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// deliver marshals the event once per station filter and sends it to
// every client of the outlet whose filter it matches.
func (h *Hub) deliver(event *outletEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	encoded := make(map[string][]byte)
	for client := range h.rooms[event.OutletID] {
		message, ok := encoded[client.station]
		if !ok {
			ev, keep := forStation(event.Event, client.station)
			if keep {
				b, err := json.Marshal(ev)
				if err == nil {
					message = b
				}
			}
			encoded[client.station] = message
		}
		if message == nil {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Slow consumer: drop it rather than block the room.
			h.dropLocked(client)
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	clients := h.rooms[client.outletID]
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.outletID)
	}
}

// forStation narrows an event to the items of one station. Events without
// items (order paid or cancelled) reach every station.
func forStation(ev service.KitchenEvent, station string) (service.KitchenEvent, bool) {
	if station == "" || len(ev.Items) == 0 {
		return ev, true
	}
	var items []service.EventItem
	for _, it := range ev.Items {
		if strings.EqualFold(it.Station, station) {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return ev, false
	}
	ev.Items = items
	return ev, true
}

// Notify implements service.Notifier. It gives up when ctx ends before
// the hub accepts the event.
func (h *Hub) Notify(ctx context.Context, ev service.KitchenEvent) error {
	select {
	case h.broadcast <- &outletEvent{OutletID: ev.OutletID, Event: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return nil
	}
}
