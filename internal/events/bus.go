// Package events provides the typed publish/subscribe hub that coordinates
// the trading engine's components.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

// Kind identifies an event type on the bus.
type Kind string

const (
	KindSignal         Kind = "signal"
	KindOrderStatus    Kind = "order_status"
	KindFill           Kind = "fill"
	KindTick           Kind = "tick"
	KindPositionClosed Kind = "position_closed"
)

// Event is anything that can be published on the bus.
type Event interface {
	EventKind() Kind
}

// SignalEvent carries an inbound prediction signal.
type SignalEvent struct {
	Signal models.Signal
}

func (SignalEvent) EventKind() Kind { return KindSignal }

// OrderStatusEvent carries an order status transition.
type OrderStatusEvent struct {
	Order models.Order
}

func (OrderStatusEvent) EventKind() Kind { return KindOrderStatus }

// FillEvent carries an execution report.
type FillEvent struct {
	Fill models.Fill
}

func (FillEvent) EventKind() Kind { return KindFill }

// TickEvent is the periodic evaluation trigger.
type TickEvent struct {
	At time.Time
}

func (TickEvent) EventKind() Kind { return KindTick }

// PositionClosedEvent signals that a symbol's order group concluded.
type PositionClosedEvent struct {
	Symbol string
	Reason string
}

func (PositionClosedEvent) EventKind() Kind { return KindPositionClosed }

// Handler processes a single event.
type Handler func(Event)

// Bus delivers events to subscribed handlers. Delivery is synchronous: Emit
// returns only after every handler for the event's kind has run. A panicking
// handler is recovered and logged without affecting the others.
type Bus struct {
	logger   zerolog.Logger
	mu       sync.RWMutex
	handlers map[Kind]map[string]Handler
}

// NewBus creates an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:   logger,
		handlers: make(map[Kind]map[string]Handler),
	}
}

// Subscribe registers a handler for an event kind and returns a subscription
// id for later removal.
func (b *Bus) Subscribe(kind Kind, h Handler) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[string]Handler)
	}
	b.handlers[kind][id] = h
	return id
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(kind Kind, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers[kind], id)
}

// Emit delivers the event to every handler registered for its kind.
// Handler invocation order is unspecified.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := make([]Handler, 0, len(b.handlers[ev.EventKind()]))
	for _, h := range b.handlers[ev.EventKind()] {
		subs = append(subs, h)
	}
	b.mu.RUnlock()

	for _, h := range subs {
		b.deliver(ev, h)
	}
}

func (b *Bus) deliver(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("kind", string(ev.EventKind())).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	h(ev)
}

// SubscriberCount returns the number of handlers registered for a kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}
