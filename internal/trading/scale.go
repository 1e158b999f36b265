package trading

import (
	"context"
	"fmt"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// ScaleParams describes a scale-in request.
type ScaleParams struct {
	Symbol string
	// Quantity is the additional unsigned share count.
	Quantity int
	// MinProfitPercent is the unrealized profit required to trigger.
	MinProfitPercent float64
}

// ScaleIn adds to a winning position: it submits an additional same-direction
// order, recomputes the quantity-weighted average entry, and replaces the
// stop/target orders sized to the new total. Without an active same-direction
// position at or above the profit threshold it is a no-op.
func (t *Trader) ScaleIn(ctx context.Context, p ScaleParams) error {
	if p.Quantity <= 0 {
		return fmt.Errorf("scale-in %s: non-positive quantity", p.Symbol)
	}

	unlock := t.registry.LockSymbol(p.Symbol)
	defer unlock()

	g, ok := t.registry.ActiveGroup(p.Symbol)
	if !ok {
		t.logger.Info().Str("symbol", p.Symbol).Msg("scale-in skipped, no active position")
		return nil
	}

	price, err := t.fetchPrice(ctx, p.Symbol)
	if err != nil {
		return fmt.Errorf("scale-in %s: %w", p.Symbol, err)
	}

	profit := unrealizedPercent(g.Side, g.EntryPrice, price)
	if profit < p.MinProfitPercent {
		t.logger.Info().
			Str("symbol", p.Symbol).
			Float64("profit_pct", profit).
			Float64("required_pct", p.MinProfitPercent).
			Msg("scale-in skipped, profit below threshold")
		return nil
	}

	order := &models.Order{
		Symbol:   p.Symbol,
		Quantity: signedQuantity(g.Side, p.Quantity),
		Type:     models.OrderTypeMarket,
		Tag:      "scale",
	}
	id, err := t.ledger.Submit(ctx, order)
	if err != nil {
		return fmt.Errorf("scale-in %s: %w", p.Symbol, err)
	}
	g.AddOrder(models.RoleScale, id)

	oldAbs := utils.AbsInt(g.Quantity)
	newQty := g.Quantity + signedQuantity(g.Side, p.Quantity)
	newEntry := (g.EntryPrice*float64(oldAbs) + price*float64(p.Quantity)) / float64(oldAbs+p.Quantity)
	g.Quantity = newQty
	g.EntryPrice = newEntry

	t.logger.Info().
		Str("symbol", p.Symbol).
		Int("quantity", newQty).
		Float64("avg_entry", newEntry).
		Msg("scaled in, replacing protection")
	return t.replaceProtection(ctx, g, newEntry, newQty)
}

// unrealizedPercent computes the position's unrealized profit percentage.
func unrealizedPercent(side models.OrderSide, entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	if side == models.OrderSideBuy {
		return (price - entry) / entry * 100
	}
	return (entry - price) / entry * 100
}
