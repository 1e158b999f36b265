package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

func marketOrder(symbol string) *models.Order {
	return &models.Order{Symbol: symbol, Quantity: 10, Type: models.OrderTypeMarket}
}

func newGuarded(cfg BreakerConfig) (*GuardedGateway, *SimGateway) {
	sim := NewSimGateway()
	return NewGuardedGateway(sim, cfg, zerolog.Nop()), sim
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	gw, sim := newGuarded(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sim.RejectNextSubmit = true
		if _, err := gw.SubmitOrder(ctx, marketOrder("AAPL")); err == nil {
			t.Fatalf("submit %d did not fail", i)
		}
	}
	if gw.State() != BreakerOpen {
		t.Fatalf("state = %s, want OPEN", gw.State())
	}

	// Tripped: submits fail fast without reaching the gateway.
	_, err := gw.SubmitOrder(ctx, marketOrder("AAPL"))
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
	if orders := sim.ActiveOrders("AAPL"); len(orders) != 0 {
		t.Fatalf("tripped breaker forwarded %d orders", len(orders))
	}

	// Cancels still pass through.
	sim.RejectNextSubmit = false
	gw.Reset()
	id, err := gw.SubmitOrder(ctx, marketOrder("AAPL"))
	if err != nil {
		t.Fatalf("submit after reset: %v", err)
	}
	gw.trip()
	if err := gw.CancelOrder(ctx, id, "cleanup"); err != nil {
		t.Fatalf("cancel through open breaker: %v", err)
	}
}

func TestBreakerSuccessRunResetsFailureCount(t *testing.T) {
	gw, sim := newGuarded(BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	sim.RejectNextSubmit = true
	gw.SubmitOrder(ctx, marketOrder("AAPL"))
	if _, err := gw.SubmitOrder(ctx, marketOrder("AAPL")); err != nil {
		t.Fatalf("clean submit failed: %v", err)
	}
	sim.RejectNextSubmit = true
	gw.SubmitOrder(ctx, marketOrder("AAPL"))

	// One failure, one success, one failure: never two in a row.
	if gw.State() != BreakerClosed {
		t.Fatalf("state = %s, want CLOSED", gw.State())
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	gw, sim := newGuarded(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})
	ctx := context.Background()

	sim.RejectNextSubmit = true
	gw.SubmitOrder(ctx, marketOrder("AAPL"))
	if gw.State() != BreakerOpen {
		t.Fatalf("state = %s, want OPEN", gw.State())
	}

	time.Sleep(20 * time.Millisecond)

	// Failed probe reopens immediately.
	sim.RejectNextSubmit = true
	gw.SubmitOrder(ctx, marketOrder("AAPL"))
	if gw.State() != BreakerOpen {
		t.Fatalf("state after failed probe = %s, want OPEN", gw.State())
	}

	time.Sleep(20 * time.Millisecond)

	// Two successful probes close the breaker.
	if _, err := gw.SubmitOrder(ctx, marketOrder("AAPL")); err != nil {
		t.Fatalf("first probe: %v", err)
	}
	if gw.State() != BreakerHalfOpen {
		t.Fatalf("state after first probe = %s, want HALF_OPEN", gw.State())
	}
	if _, err := gw.SubmitOrder(ctx, marketOrder("AAPL")); err != nil {
		t.Fatalf("second probe: %v", err)
	}
	if gw.State() != BreakerClosed {
		t.Fatalf("state after second probe = %s, want CLOSED", gw.State())
	}
}

// trip forces the breaker open for tests.
func (g *GuardedGateway) trip() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transition(BreakerOpen)
	g.lastFailure = time.Now()
}
