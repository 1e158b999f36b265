// Package trading provides the linked-order actions and fill reconciliation:
// opening positions with protection, scaling in, closing out, and reacting to
// fills across an order group.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/broker"
	"signal-trader/internal/events"
	"signal-trader/internal/models"
	"signal-trader/internal/orders"
	"signal-trader/internal/positions"
)

// Settings holds the trader's instrument and sizing parameters.
type Settings struct {
	TickSize            float64
	MinShares           int
	MaxShares           int
	AllocationThreshold float64 // allocations at or above this are dollar amounts
	FetchTimeout        time.Duration
	ATRPeriod           int
	ATRDays             int
	ATRBarSize          string
}

// DefaultSettings returns the default trader settings.
func DefaultSettings() Settings {
	return Settings{
		TickSize:            0.01,
		MinShares:           1,
		MaxShares:           10000,
		AllocationThreshold: 1000,
		FetchTimeout:        5 * time.Second,
		ATRPeriod:           14,
		ATRDays:             10,
		ATRBarSize:          "30 mins",
	}
}

// Trader executes linked-order operations against the ledger and registry.
// All group-mutating sequences run under the symbol's registry lock.
type Trader struct {
	ledger     *orders.Ledger
	registry   *positions.Registry
	prices     broker.PriceSource
	indicators broker.IndicatorSource
	bus        *events.Bus
	logger     zerolog.Logger
	settings   Settings
}

// NewTrader creates a trader.
func NewTrader(
	ledger *orders.Ledger,
	registry *positions.Registry,
	prices broker.PriceSource,
	indicators broker.IndicatorSource,
	bus *events.Bus,
	logger zerolog.Logger,
	settings Settings,
) *Trader {
	return &Trader{
		ledger:     ledger,
		registry:   registry,
		prices:     prices,
		indicators: indicators,
		bus:        bus,
		logger:     logger,
		settings:   settings,
	}
}

// fetchPrice fetches a current price bounded by the configured timeout.
func (t *Trader) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	fctx, cancel := context.WithTimeout(ctx, t.settings.FetchTimeout)
	defer cancel()

	price, err := t.prices.GetPrice(fctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("fetching price for %s: %w", symbol, broker.ErrNoPrice)
	}
	return price, nil
}

// fetchATR fetches an ATR value bounded by the configured timeout.
func (t *Trader) fetchATR(ctx context.Context, symbol string, period int) (float64, error) {
	if period <= 0 {
		period = t.settings.ATRPeriod
	}
	fctx, cancel := context.WithTimeout(ctx, t.settings.FetchTimeout)
	defer cancel()

	value, err := t.indicators.GetATR(fctx, symbol, period, t.settings.ATRDays, t.settings.ATRBarSize)
	if err != nil {
		return 0, fmt.Errorf("fetching ATR for %s: %w", symbol, err)
	}
	return value, nil
}

// emitAll publishes deferred events. Called only after the symbol lock has
// been released, so a handler opening or closing positions cannot deadlock.
func (t *Trader) emitAll(pending []events.Event) {
	for _, ev := range pending {
		t.bus.Emit(ev)
	}
}

func signedQuantity(side models.OrderSide, shares int) int {
	if side == models.OrderSideSell {
		return -shares
	}
	return shares
}
