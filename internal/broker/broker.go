// Package broker provides the broker gateway boundary: order transport,
// price and indicator sources, and an in-memory simulator.
package broker

import (
	"context"
	"errors"

	"signal-trader/internal/models"
)

// ErrNoPrice is returned when a price is not available for a symbol.
var ErrNoPrice = errors.New("no price available")

// ErrNoIndicator is returned when an indicator value is not available.
var ErrNoIndicator = errors.New("no indicator value available")

// Gateway defines the broker transport. Implementations may invoke the
// status/fill callbacks from their own delivery goroutine; callers must
// marshal them into the engine domain (see Bridge) before touching shared
// state.
type Gateway interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// SubmitOrder submits an order and returns the broker-assigned id.
	SubmitOrder(ctx context.Context, order *models.Order) (string, error)
	CancelOrder(ctx context.Context, orderID, reason string) error

	OnOrderStatus(handler func(models.Order))
	OnFill(handler func(models.Fill))
}

// PriceSource provides current prices. The context bounds the fetch; a
// timeout fails the dependent action cleanly.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// IndicatorSource provides volatility indicator values.
type IndicatorSource interface {
	GetATR(ctx context.Context, symbol string, period, days int, barSize string) (float64, error)
}
