package trading

import (
	"context"
	"fmt"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// protectiveDistances resolves the stop/target distances for a group. ATR
// multipliers take precedence; a failed or absent indicator falls back to the
// configured percentage distances.
func (t *Trader) protectiveDistances(ctx context.Context, g *models.OrderGroup, entry float64) (stopDist, targetDist float64, err error) {
	if g.StopATRMult > 0 || g.TargetATRMult > 0 {
		atr, aerr := t.fetchATR(ctx, g.Symbol, g.ATRPeriod)
		if aerr == nil && atr > 0 {
			return atr * g.StopATRMult, atr * g.TargetATRMult, nil
		}
		t.logger.Warn().
			Err(aerr).
			Str("symbol", g.Symbol).
			Msg("ATR unavailable, falling back to percentage distances")
	}

	if g.StopPercent > 0 || g.TargetPercent > 0 {
		return entry * g.StopPercent / 100, entry * g.TargetPercent / 100, nil
	}
	return 0, 0, fmt.Errorf("no protective distances configured for %s", g.Symbol)
}

// protectivePrices places the stop on the adverse side and the target on the
// favorable side of the entry, rounded to tick precision.
func protectivePrices(side models.OrderSide, entry, stopDist, targetDist, tick float64) (stop, target float64) {
	if side == models.OrderSideBuy {
		stop = entry - stopDist
		target = entry + targetDist
	} else {
		stop = entry + stopDist
		target = entry - targetDist
	}
	return utils.RoundToTick(stop, tick), utils.RoundToTick(target, tick)
}

// submitProtection submits stop and target orders covering signedQty at the
// given prices and records them in the group. A rejection of one protective
// order is logged and the other is still attempted.
func (t *Trader) submitProtection(ctx context.Context, g *models.OrderGroup, entry float64, signedQty int) error {
	stopDist, targetDist, err := t.protectiveDistances(ctx, g, entry)
	if err != nil {
		return err
	}
	stopPrice, targetPrice := protectivePrices(g.Side, entry, stopDist, targetDist, t.settings.TickSize)

	protQty := -signedQty
	var firstErr error

	if stopDist > 0 {
		stopOrder := &models.Order{
			Symbol:    g.Symbol,
			Quantity:  protQty,
			Type:      models.OrderTypeStop,
			StopPrice: stopPrice,
			Tag:       "stop",
		}
		if id, err := t.ledger.Submit(ctx, stopOrder); err != nil {
			t.logger.Error().Err(err).Str("symbol", g.Symbol).Msg("stop order rejected")
			firstErr = err
		} else {
			g.AddOrder(models.RoleStop, id)
		}
	}

	if targetDist > 0 {
		targetOrder := &models.Order{
			Symbol:     g.Symbol,
			Quantity:   protQty,
			Type:       models.OrderTypeLimit,
			LimitPrice: targetPrice,
			Tag:        "target",
		}
		if id, err := t.ledger.Submit(ctx, targetOrder); err != nil {
			t.logger.Error().Err(err).Str("symbol", g.Symbol).Msg("target order rejected")
			if firstErr == nil {
				firstErr = err
			}
		} else {
			g.AddOrder(models.RoleTarget, id)
		}
	}

	return firstErr
}

// replaceProtection cancels the group's live stop and target orders and
// submits replacements sized to signedQty and priced from entry. Used by
// scale-in and double-down resizes; the group must hold exactly one live
// stop and one live target once this completes.
func (t *Trader) replaceProtection(ctx context.Context, g *models.OrderGroup, entry float64, signedQty int) error {
	t.cancelRoles(ctx, g, "protection resize", models.RoleStop, models.RoleTarget)
	return t.submitProtection(ctx, g, entry, signedQty)
}

// cancelRoles cancels and removes the group's orders under the given roles.
func (t *Trader) cancelRoles(ctx context.Context, g *models.OrderGroup, reason string, roles ...models.OrderRole) {
	for _, role := range roles {
		for _, id := range g.OrderIDs(role) {
			if t.ledger.IsActive(id) {
				if err := t.ledger.Cancel(ctx, id, reason); err != nil {
					t.logger.Warn().Err(err).Str("order_id", id).Msg("cancel failed during resize")
				}
			}
			g.RemoveOrder(id)
		}
	}
}
