package trading

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"signal-trader/internal/events"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// CooldownResetter is the rule-engine surface the fill manager uses to clear
// cooldowns after a stop-out.
type CooldownResetter interface {
	ResetCooldownsForSymbol(symbol string)
}

// FillManager reacts to fill events: it cascades cancellation when a
// protective order concludes a position, resizes protection on partial
// protective fills, and recomputes protection after a double-down fill.
type FillManager struct {
	trader *Trader
	engine CooldownResetter
	logger zerolog.Logger
}

// NewFillManager creates a fill manager.
func NewFillManager(trader *Trader, engine CooldownResetter, logger zerolog.Logger) *FillManager {
	return &FillManager{trader: trader, engine: engine, logger: logger}
}

// Start subscribes the manager to fill events.
func (m *FillManager) Start(ctx context.Context) {
	m.trader.bus.Subscribe(events.KindFill, func(ev events.Event) {
		fe, ok := ev.(events.FillEvent)
		if !ok {
			return
		}
		m.HandleFill(ctx, fe.Fill)
	})
}

// HandleFill processes one fill under the symbol's lock.
func (m *FillManager) HandleFill(ctx context.Context, fill models.Fill) {
	t := m.trader

	unlock := t.registry.LockSymbol(fill.Symbol)
	var pending []events.Event
	resetCooldowns := m.handleLocked(ctx, fill, &pending)
	unlock()

	t.emitAll(pending)
	if resetCooldowns && m.engine != nil {
		// Cooldowns guard against churn on successful entries, not against
		// re-entry after a stop-out.
		m.engine.ResetCooldownsForSymbol(fill.Symbol)
	}
}

func (m *FillManager) handleLocked(ctx context.Context, fill models.Fill, pending *[]events.Event) (resetCooldowns bool) {
	t := m.trader

	g, role, ok := t.registry.GroupByOrderID(fill.OrderID)
	if !ok || !g.Active() {
		return false
	}

	switch role {
	case models.RoleStop, models.RoleTarget:
		if fill.RemainingQty == 0 {
			m.concludePosition(ctx, g, role, pending)
			return role == models.RoleStop
		}
		m.resizeOtherProtective(ctx, g, role, fill)

	case models.RoleDoubleDown:
		m.applyDoubleDownFill(ctx, g, fill)

	case models.RoleMain:
		// Normal bookkeeping: the group was created at submission time.
		if g.EntryPrice == 0 && fill.Price > 0 {
			g.EntryPrice = fill.Price
		}

	case models.RoleScale:
		// Group totals were updated when the scale order was accepted.
	}
	return false
}

// concludePosition cancels every other order in the group and closes it. A
// full protective fill always concludes the position.
func (m *FillManager) concludePosition(ctx context.Context, g *models.OrderGroup, role models.OrderRole, pending *[]events.Event) {
	t := m.trader

	p := pool.New().WithErrors()
	for _, id := range g.AllOrderIDs() {
		id := id
		if !t.ledger.IsActive(id) {
			continue
		}
		p.Go(func() error {
			return t.ledger.Cancel(ctx, id, "position concluded")
		})
	}
	if err := p.Wait(); err != nil {
		m.logger.Warn().Err(err).Str("symbol", g.Symbol).Msg("cascade cancellation incomplete")
	}

	t.registry.Close(g.Symbol)
	*pending = append(*pending, events.PositionClosedEvent{Symbol: g.Symbol, Reason: string(role)})
	m.logger.Info().
		Str("symbol", g.Symbol).
		Str("concluded_by", string(role)).
		Msg("position concluded by protective fill")
}

// resizeOtherProtective shrinks the opposite protective order so total
// protective coverage never exceeds the live position size after a partial
// protective fill.
func (m *FillManager) resizeOtherProtective(ctx context.Context, g *models.OrderGroup, filledRole models.OrderRole, fill models.Fill) {
	t := m.trader

	other := models.RoleTarget
	if filledRole == models.RoleTarget {
		other = models.RoleStop
	}

	// The protective fill is signed opposite to the entry, so adding it
	// shrinks the group's open quantity.
	g.Quantity += fill.Quantity
	remaining := fill.RemainingQty

	for _, id := range g.OrderIDs(other) {
		existing, ok := t.ledger.Get(id)
		if !ok || existing.Status.Terminal() {
			g.RemoveOrder(id)
			continue
		}
		if err := t.ledger.Cancel(ctx, id, "partial protective resize"); err != nil {
			m.logger.Warn().Err(err).Str("order_id", id).Msg("cancel failed during partial resize")
			continue
		}
		g.RemoveOrder(id)

		replacement := &models.Order{
			Symbol:     existing.Symbol,
			Quantity:   resign(existing.Quantity, remaining),
			Type:       existing.Type,
			LimitPrice: existing.LimitPrice,
			StopPrice:  existing.StopPrice,
			Tag:        existing.Tag,
		}
		newID, err := t.ledger.Submit(ctx, replacement)
		if err != nil {
			m.logger.Error().Err(err).Str("symbol", g.Symbol).Msg("replacement protective order rejected")
			continue
		}
		g.AddOrder(other, newID)
	}
}

// applyDoubleDownFill recomputes the weighted-average entry and replaces the
// protective orders sized to the new total.
func (m *FillManager) applyDoubleDownFill(ctx context.Context, g *models.OrderGroup, fill models.Fill) {
	t := m.trader

	oldAbs := utils.AbsInt(g.Quantity)
	fillAbs := fill.AbsQuantity()
	if fillAbs == 0 {
		return
	}

	newQty := g.Quantity + fill.Quantity
	newEntry := (g.EntryPrice*float64(oldAbs) + fill.Price*float64(fillAbs)) / float64(oldAbs+fillAbs)
	g.Quantity = newQty
	g.EntryPrice = newEntry

	m.logger.Info().
		Str("symbol", g.Symbol).
		Int("quantity", newQty).
		Float64("avg_entry", newEntry).
		Msg("double-down filled, replacing protection")

	if err := t.replaceProtection(ctx, g, newEntry, newQty); err != nil {
		m.logger.Error().Err(err).Str("symbol", g.Symbol).Msg("protection replacement failed after double-down")
	}
}

// resign applies the sign of signed to qty.
func resign(signed, qty int) int {
	if signed < 0 {
		return -qty
	}
	return qty
}
