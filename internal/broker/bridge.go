package broker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

const (
	bridgeBufferSize     = 1000
	maxReconnectInterval = 30 * time.Second
)

// Bridge marshals gateway callbacks, which arrive on the gateway's own
// delivery goroutine, into a single engine-side goroutine. No other component
// touches gateway callbacks directly.
type Bridge struct {
	gw     Gateway
	logger zerolog.Logger
	queue  chan bridgeEvent

	// OnOrder and OnFill are invoked from the bridge goroutine. Set both
	// before calling Start.
	OnOrder func(models.Order)
	OnFill  func(models.Fill)
}

type bridgeEvent struct {
	order *models.Order
	fill  *models.Fill
}

// NewBridge creates a bridge and registers itself for gateway callbacks.
func NewBridge(gw Gateway, logger zerolog.Logger) *Bridge {
	b := &Bridge{
		gw:     gw,
		logger: logger,
		queue:  make(chan bridgeEvent, bridgeBufferSize),
	}
	gw.OnOrderStatus(func(o models.Order) {
		b.enqueue(bridgeEvent{order: &o})
	})
	gw.OnFill(func(f models.Fill) {
		b.enqueue(bridgeEvent{fill: &f})
	})
	return b
}

func (b *Bridge) enqueue(ev bridgeEvent) {
	select {
	case b.queue <- ev:
	default:
		b.logger.Error().Msg("bridge queue full, dropping gateway event")
	}
}

// Connect establishes the gateway connection, retrying with exponential
// backoff until the context is cancelled.
func (b *Bridge) Connect(ctx context.Context) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = maxReconnectInterval

	for {
		err := b.gw.Connect(ctx)
		if err == nil {
			return nil
		}
		b.logger.Warn().Err(err).Msg("gateway connect failed, retrying")

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = maxReconnectInterval
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (b *Bridge) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-b.queue:
				b.dispatch(ev)
			}
		}
	}()
}

func (b *Bridge) dispatch(ev bridgeEvent) {
	switch {
	case ev.order != nil && b.OnOrder != nil:
		b.OnOrder(*ev.order)
	case ev.fill != nil && b.OnFill != nil:
		b.OnFill(*ev.fill)
	}
}
