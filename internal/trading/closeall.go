package trading

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"signal-trader/internal/events"
)

// CloseAll cancels every order in the symbol's group regardless of role and
// marks the group closed. Used for end-of-day closure, manual intervention,
// and as the first step of a reversal.
func (t *Trader) CloseAll(ctx context.Context, symbol, reason string) error {
	unlock := t.registry.LockSymbol(symbol)
	var pending []events.Event
	err := t.closeAllLocked(ctx, symbol, reason, &pending)
	unlock()
	t.emitAll(pending)
	return err
}

func (t *Trader) closeAllLocked(ctx context.Context, symbol, reason string, pending *[]events.Event) error {
	g, ok := t.registry.ActiveGroup(symbol)
	if !ok {
		return nil
	}

	p := pool.New().WithErrors()
	for _, id := range g.AllOrderIDs() {
		id := id
		if !t.ledger.IsActive(id) {
			continue
		}
		p.Go(func() error {
			return t.ledger.Cancel(ctx, id, reason)
		})
	}
	if err := p.Wait(); err != nil {
		// Cancellation failures never block closing the bookkeeping; the
		// reconciliation pass will flag any order left behind.
		t.logger.Warn().Err(err).Str("symbol", symbol).Msg("some cancellations failed during close-all")
	}

	t.registry.Close(symbol)
	*pending = append(*pending, events.PositionClosedEvent{Symbol: symbol, Reason: reason})
	return nil
}
