package trading

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

func openSimple(t *testing.T, h *harness, symbol string) {
	t.Helper()
	h.sim.SetPrice(symbol, 100.0)
	if err := h.trader.OpenWithProtection(context.Background(), OpenParams{
		Symbol: symbol, Side: models.OrderSideBuy, Allocation: 10, StopPercent: 2, TargetPercent: 4,
	}); err != nil {
		t.Fatalf("open %s failed: %v", symbol, err)
	}
}

func TestEODCloserInsideWindow(t *testing.T) {
	h := newHarness()
	openSimple(t, h, "AAPL")
	openSimple(t, h, "MSFT")

	closer := NewEODCloser(h.trader, []string{"AAPL", "MSFT"}, "15:45", "15:55", zerolog.Nop())

	now := time.Date(2026, 3, 2, 15, 50, 0, 0, time.UTC)
	closer.CheckOnce(context.Background(), now)

	for _, symbol := range []string{"AAPL", "MSFT"} {
		if _, open := h.registry.ActiveGroup(symbol); open {
			t.Errorf("%s still open after end-of-day closure", symbol)
		}
		for _, o := range h.ledger.ActiveOrders(symbol) {
			t.Errorf("%s order %s still live after closure", symbol, o.ID)
		}
	}
}

func TestEODCloserOutsideWindow(t *testing.T) {
	h := newHarness()
	openSimple(t, h, "AAPL")

	closer := NewEODCloser(h.trader, []string{"AAPL"}, "15:45", "15:55", zerolog.Nop())

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	closer.CheckOnce(context.Background(), now)

	if _, open := h.registry.ActiveGroup("AAPL"); !open {
		t.Error("position closed outside the end-of-day window")
	}
}

func TestEODCloserRunsOncePerDay(t *testing.T) {
	h := newHarness()
	openSimple(t, h, "AAPL")

	closer := NewEODCloser(h.trader, []string{"AAPL"}, "00:00", "23:59", zerolog.Nop())

	day := time.Date(2026, 3, 2, 15, 50, 0, 0, time.UTC)
	closer.CheckOnce(context.Background(), day)
	if _, open := h.registry.ActiveGroup("AAPL"); open {
		t.Fatal("first check did not close the position")
	}

	// A new position later the same day survives until the next day.
	openSimple(t, h, "AAPL")
	closer.CheckOnce(context.Background(), day.Add(time.Minute))
	if _, open := h.registry.ActiveGroup("AAPL"); !open {
		t.Error("closure ran twice on the same day")
	}

	closer.CheckOnce(context.Background(), day.AddDate(0, 0, 1))
	if _, open := h.registry.ActiveGroup("AAPL"); open {
		t.Error("closure did not run on the next day")
	}
}
