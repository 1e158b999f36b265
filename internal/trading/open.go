package trading

import (
	"context"
	"fmt"
	"math"

	"signal-trader/internal/events"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// DoubleDownParams configures the optional averaging-in order created with a
// protected entry.
type DoubleDownParams struct {
	// StopFraction positions the order at this fraction of the
	// distance-to-stop away from entry, on the adverse side.
	StopFraction float64
	// SizeMultiple sizes the order as this multiple of the entry quantity.
	SizeMultiple float64
}

// OpenParams describes an open-with-protection request.
type OpenParams struct {
	Symbol string
	Side   models.OrderSide
	// Allocation at or above the threshold is a dollar amount converted to
	// shares at the current price; below it, a literal share count.
	Allocation float64
	OrderType  models.OrderType // defaults to market

	StopPercent   float64
	TargetPercent float64
	StopATRMult   float64
	TargetATRMult float64
	ATRPeriod     int

	DoubleDown *DoubleDownParams

	// PriceHint is the cached context price used when a live fetch fails
	// during protection setup.
	PriceHint float64
}

func (p OpenParams) wantsProtection() bool {
	return p.StopPercent > 0 || p.TargetPercent > 0 || p.StopATRMult > 0 || p.TargetATRMult > 0
}

// OpenWithProtection opens a position with optional stop/target protection
// and an optional double-down order. A same-side duplicate signal is a no-op
// success; an opposite-side signal closes the existing group first.
func (t *Trader) OpenWithProtection(ctx context.Context, p OpenParams) error {
	if p.Symbol == "" || (p.Side != models.OrderSideBuy && p.Side != models.OrderSideSell) {
		return fmt.Errorf("open: missing symbol or side")
	}

	unlock := t.registry.LockSymbol(p.Symbol)
	var pending []events.Event
	err := t.openLocked(ctx, p, &pending)
	unlock()
	t.emitAll(pending)
	return err
}

func (t *Trader) openLocked(ctx context.Context, p OpenParams, pending *[]events.Event) error {
	if side, open := t.registry.ActiveSide(p.Symbol); open {
		if side == p.Side {
			t.logger.Info().
				Str("symbol", p.Symbol).
				Str("side", string(p.Side)).
				Msg("duplicate signal ignored, active trade exists")
			return nil
		}
		// Full reversal: close the opposite-side group before entering.
		t.logger.Info().Str("symbol", p.Symbol).Msg("reversal signal, closing existing group")
		if err := t.closeAllLocked(ctx, p.Symbol, "reversal", pending); err != nil {
			return fmt.Errorf("reversal close for %s: %w", p.Symbol, err)
		}
	}

	price, priceErr := t.fetchPrice(ctx, p.Symbol)
	entry := price
	if entry <= 0 {
		entry = p.PriceHint
	}

	orderType := p.OrderType
	if orderType == "" {
		orderType = models.OrderTypeMarket
	}

	// Without a reference price a protected entry would go in naked and a
	// limit entry would rest at zero. Abort before any order is submitted.
	if (p.wantsProtection() || orderType == models.OrderTypeLimit) && entry <= 0 {
		if priceErr != nil {
			return fmt.Errorf("open %s: no price for protective sizing: %w", p.Symbol, priceErr)
		}
		return fmt.Errorf("open %s: no price for protective sizing", p.Symbol)
	}

	shares, err := t.resolveShares(p, price, priceErr)
	if err != nil {
		return err
	}
	qty := signedQuantity(p.Side, shares)

	main := &models.Order{
		Symbol:   p.Symbol,
		Quantity: qty,
		Type:     orderType,
		Tag:      "main",
	}
	if orderType == models.OrderTypeLimit {
		main.LimitPrice = utils.RoundToTick(entry, t.settings.TickSize)
	}

	mainID, err := t.ledger.Submit(ctx, main)
	if err != nil {
		// Broker rejection of the main order aborts the whole open; no
		// protective orders are created.
		return err
	}

	g := t.registry.Open(p.Symbol, p.Side)
	g.Quantity = qty
	g.StopPercent = p.StopPercent
	g.TargetPercent = p.TargetPercent
	g.StopATRMult = p.StopATRMult
	g.TargetATRMult = p.TargetATRMult
	g.ATRPeriod = p.ATRPeriod
	g.AddOrder(models.RoleMain, mainID)

	// May still be zero for an unprotected market entry; the main fill
	// backfills it.
	g.EntryPrice = entry

	if !p.wantsProtection() {
		return nil
	}

	if err := t.submitProtection(ctx, g, entry, qty); err != nil {
		t.logger.Warn().Err(err).Str("symbol", p.Symbol).Msg("protection incomplete")
	}

	if p.DoubleDown != nil && (len(g.OrderIDs(models.RoleStop)) > 0 || len(g.OrderIDs(models.RoleTarget)) > 0) {
		// Best effort alongside the open; the error is already logged.
		_ = t.placeDoubleDown(ctx, g, *p.DoubleDown, entry, shares)
	}
	return nil
}

// PlaceDoubleDown places an averaging-in limit order against the symbol's
// active group. A live double-down order already resting makes this a no-op
// success.
func (t *Trader) PlaceDoubleDown(ctx context.Context, symbol string, dd DoubleDownParams) error {
	if dd.StopFraction <= 0 || dd.SizeMultiple <= 0 {
		return fmt.Errorf("double-down %s: non-positive fraction or multiple", symbol)
	}

	unlock := t.registry.LockSymbol(symbol)
	defer unlock()

	g, ok := t.registry.ActiveGroup(symbol)
	if !ok {
		return fmt.Errorf("double-down %s: no active position", symbol)
	}
	for _, id := range g.OrderIDs(models.RoleDoubleDown) {
		if t.ledger.IsActive(id) {
			return nil
		}
	}
	if g.EntryPrice <= 0 {
		return fmt.Errorf("double-down %s: group has no entry price", symbol)
	}
	return t.placeDoubleDown(ctx, g, dd, g.EntryPrice, utils.AbsInt(g.Quantity))
}

// resolveShares converts an allocation into a share count. Allocation mode
// requires a price; a failed fetch aborts before any order is submitted.
func (t *Trader) resolveShares(p OpenParams, price float64, priceErr error) (int, error) {
	if p.Allocation < t.settings.AllocationThreshold {
		shares := int(p.Allocation)
		if shares <= 0 {
			return 0, fmt.Errorf("open %s: non-positive share count %d", p.Symbol, shares)
		}
		return shares, nil
	}

	if priceErr != nil {
		return 0, fmt.Errorf("open %s: allocation sizing needs a price: %w", p.Symbol, priceErr)
	}
	shares := int(math.Floor(p.Allocation / price))
	shares = utils.ClampShares(shares, t.settings.MinShares, t.settings.MaxShares)
	if shares <= 0 {
		return 0, fmt.Errorf("open %s: allocation %.2f resolves to zero shares", p.Symbol, p.Allocation)
	}
	return shares, nil
}

// placeDoubleDown submits the averaging-in limit order between entry and the
// stop price. Caller holds the symbol lock.
func (t *Trader) placeDoubleDown(ctx context.Context, g *models.OrderGroup, dd DoubleDownParams, entry float64, shares int) error {
	stopDist, _, err := t.protectiveDistances(ctx, g, entry)
	if err != nil || stopDist <= 0 {
		t.logger.Warn().Err(err).Str("symbol", g.Symbol).Msg("no stop distance, skipping double-down order")
		return fmt.Errorf("double-down %s: no stop distance", g.Symbol)
	}

	var price float64
	if g.Side == models.OrderSideBuy {
		price = entry - dd.StopFraction*stopDist
	} else {
		price = entry + dd.StopFraction*stopDist
	}
	price = utils.RoundToTick(price, t.settings.TickSize)

	ddShares := int(float64(shares) * dd.SizeMultiple)
	if ddShares <= 0 {
		return fmt.Errorf("double-down %s: zero share count", g.Symbol)
	}

	order := &models.Order{
		Symbol:     g.Symbol,
		Quantity:   signedQuantity(g.Side, ddShares),
		Type:       models.OrderTypeLimit,
		LimitPrice: price,
		Tag:        "doubledown",
	}
	id, err := t.ledger.Submit(ctx, order)
	if err != nil {
		t.logger.Error().Err(err).Str("symbol", g.Symbol).Msg("double-down order rejected")
		return err
	}
	g.AddOrder(models.RoleDoubleDown, id)
	return nil
}
