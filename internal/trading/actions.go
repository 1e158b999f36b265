package trading

import (
	"context"
	"fmt"

	"signal-trader/internal/models"
	"signal-trader/internal/rules"
)

// OpenAction adapts OpenWithProtection into a rule action. Symbol, side and
// price default from the evaluation context when not fixed in Params.
type OpenAction struct {
	Trader *Trader
	Params OpenParams
}

// Execute implements rules.Action.
func (a *OpenAction) Execute(ctx context.Context, ec rules.Context) error {
	p := a.Params
	if p.Symbol == "" {
		p.Symbol, _ = ec["symbol"].(string)
	}
	if p.Side == "" {
		if side, ok := ec["signal"].(models.OrderSide); ok {
			p.Side = side
		}
	}
	if price, ok := ec["price"].(float64); ok && price > 0 {
		p.PriceHint = price
	}
	if p.Symbol == "" || p.Side == "" {
		return fmt.Errorf("open action: no symbol or side in context")
	}

	if err := a.Trader.OpenWithProtection(ctx, p); err != nil {
		return err
	}
	// Downstream actions in the same evaluation can pick these up.
	ec["opened_symbol"] = p.Symbol
	ec["opened_side"] = p.Side
	return nil
}

// ScaleAction adapts ScaleIn into a rule action.
type ScaleAction struct {
	Trader *Trader
	Params ScaleParams
}

// Execute implements rules.Action.
func (a *ScaleAction) Execute(ctx context.Context, ec rules.Context) error {
	p := a.Params
	if p.Symbol == "" {
		p.Symbol, _ = ec["symbol"].(string)
	}
	if p.Symbol == "" {
		return fmt.Errorf("scale action: no symbol in context")
	}
	return a.Trader.ScaleIn(ctx, p)
}

// DoubleDownAction places an averaging-in order against the symbol's active
// position.
type DoubleDownAction struct {
	Trader *Trader
	Symbol string
	Params DoubleDownParams
}

// Execute implements rules.Action.
func (a *DoubleDownAction) Execute(ctx context.Context, ec rules.Context) error {
	symbol := a.Symbol
	if symbol == "" {
		symbol, _ = ec["symbol"].(string)
	}
	if symbol == "" {
		return fmt.Errorf("double-down action: no symbol in context")
	}
	return a.Trader.PlaceDoubleDown(ctx, symbol, a.Params)
}

// CloseAllAction adapts CloseAll into a rule action.
type CloseAllAction struct {
	Trader *Trader
	Symbol string
	Reason string
}

// Execute implements rules.Action.
func (a *CloseAllAction) Execute(ctx context.Context, ec rules.Context) error {
	symbol := a.Symbol
	if symbol == "" {
		symbol, _ = ec["symbol"].(string)
	}
	if symbol == "" {
		return fmt.Errorf("close-all action: no symbol in context")
	}
	reason := a.Reason
	if reason == "" {
		reason = "rule close"
	}
	return a.Trader.CloseAll(ctx, symbol, reason)
}
