// Package orders provides the order ledger: the authoritative table of
// broker-facing orders and their lifecycle.
package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"signal-trader/internal/broker"
	"signal-trader/internal/events"
	"signal-trader/internal/models"
)

// Ledger creates, cancels and queries orders through the gateway and
// republishes gateway status/fill callbacks as bus events.
type Ledger struct {
	gw     broker.Gateway
	bus    *events.Bus
	logger zerolog.Logger

	mu     sync.RWMutex
	orders map[string]*models.Order
}

// NewLedger creates an order ledger.
func NewLedger(gw broker.Gateway, bus *events.Bus, logger zerolog.Logger) *Ledger {
	return &Ledger{
		gw:     gw,
		bus:    bus,
		logger: logger,
		orders: make(map[string]*models.Order),
	}
}

// Submit sends an order to the gateway and records it. A gateway rejection
// returns an error and leaves no table residue.
func (l *Ledger) Submit(ctx context.Context, order *models.Order) (string, error) {
	id, err := l.gw.SubmitOrder(ctx, order)
	if err != nil {
		return "", fmt.Errorf("submitting order for %s: %w", order.Symbol, err)
	}

	l.mu.Lock()
	// The gateway may have reported status (or even a fill) synchronously
	// before SubmitOrder returned; do not clobber an existing record.
	if _, ok := l.orders[id]; !ok {
		rec := *order
		rec.ID = id
		rec.Status = models.OrderStatusSubmitted
		l.orders[id] = &rec
	}
	l.mu.Unlock()

	l.logger.Info().
		Str("order_id", id).
		Str("symbol", order.Symbol).
		Int("quantity", order.Quantity).
		Str("type", string(order.Type)).
		Str("tag", order.Tag).
		Msg("order submitted")
	return id, nil
}

// Cancel cancels an order through the gateway.
func (l *Ledger) Cancel(ctx context.Context, orderID, reason string) error {
	if err := l.gw.CancelOrder(ctx, orderID, reason); err != nil {
		return fmt.Errorf("cancelling order %s: %w", orderID, err)
	}
	l.logger.Info().Str("order_id", orderID).Str("reason", reason).Msg("order cancelled")
	return nil
}

// Get returns a copy of an order record.
func (l *Ledger) Get(orderID string) (models.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	order, ok := l.orders[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// ActiveOrders returns non-terminal orders for a symbol.
func (l *Ledger) ActiveOrders(symbol string) []models.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Order
	for _, o := range l.orders {
		if o.Symbol == symbol && !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// IsActive reports whether an order exists and is non-terminal.
func (l *Ledger) IsActive(orderID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[orderID]
	return ok && !o.Status.Terminal()
}

// HandleOrderStatus updates the table from a gateway status callback and
// republishes it on the bus. Terminal statuses are final: a late update for
// a terminal order is dropped.
func (l *Ledger) HandleOrderStatus(order models.Order) {
	l.mu.Lock()
	existing, ok := l.orders[order.ID]
	if ok && existing.Status.Terminal() {
		l.mu.Unlock()
		return
	}
	rec := order
	l.orders[order.ID] = &rec
	l.mu.Unlock()

	l.bus.Emit(events.OrderStatusEvent{Order: order})
}

// HandleFill updates the table from a gateway fill callback and republishes
// it on the bus.
func (l *Ledger) HandleFill(fill models.Fill) {
	l.mu.Lock()
	if o, ok := l.orders[fill.OrderID]; ok {
		prev := o.FilledQty
		qty := fill.AbsQuantity()
		if prev+qty > 0 {
			o.AvgFillPrice = (o.AvgFillPrice*float64(prev) + fill.Price*float64(qty)) / float64(prev+qty)
		}
		o.FilledQty = fill.CumulativeQty
		if fill.RemainingQty == 0 {
			o.Status = models.OrderStatusFilled
		} else if !o.Status.Terminal() {
			o.Status = models.OrderStatusPartiallyFilled
		}
	}
	l.mu.Unlock()

	l.logger.Info().
		Str("order_id", fill.OrderID).
		Str("symbol", fill.Symbol).
		Int("quantity", fill.Quantity).
		Float64("price", fill.Price).
		Int("remaining", fill.RemainingQty).
		Msg("fill received")
	l.bus.Emit(events.FillEvent{Fill: fill})
}

// Attach wires the ledger's handlers to a gateway bridge.
func (l *Ledger) Attach(bridge *broker.Bridge) {
	bridge.OnOrder = l.HandleOrderStatus
	bridge.OnFill = l.HandleFill
}
