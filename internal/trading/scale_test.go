package trading

import (
	"context"
	"testing"

	"signal-trader/internal/models"
)

func TestScaleInWithoutPositionIsNoOp(t *testing.T) {
	h := newHarness()
	h.sim.SetPrice("AAPL", 150.0)

	err := h.trader.ScaleIn(context.Background(), ScaleParams{
		Symbol: "AAPL", Quantity: 50, MinProfitPercent: 1,
	})
	if err != nil {
		t.Fatalf("scale-in without position returned error: %v", err)
	}
	if got := len(h.ledger.ActiveOrders("AAPL")); got != 0 {
		t.Errorf("%d orders submitted without a position", got)
	}
}

func TestScaleInBelowProfitThresholdIsNoOp(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.sim.SetPrice("AAPL", 150.0)

	if err := h.trader.OpenWithProtection(ctx, OpenParams{
		Symbol: "AAPL", Side: models.OrderSideBuy, Allocation: 100, StopPercent: 2, TargetPercent: 4,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	g, _ := h.registry.ActiveGroup("AAPL")
	before := len(g.AllOrderIDs())

	// Price moved up 0.5%, threshold needs 1%.
	h.sim.SetPrice("AAPL", 150.75)
	if err := h.trader.ScaleIn(ctx, ScaleParams{Symbol: "AAPL", Quantity: 50, MinProfitPercent: 1}); err != nil {
		t.Fatalf("scale-in returned error: %v", err)
	}
	if g.Quantity != 100 {
		t.Errorf("group quantity = %d, want unchanged 100", g.Quantity)
	}
	if got := len(g.AllOrderIDs()); got != before {
		t.Errorf("order count changed from %d to %d below threshold", before, got)
	}
}

func TestScaleInUpdatesAverageAndProtection(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.sim.SetPrice("AAPL", 100.0)

	if err := h.trader.OpenWithProtection(ctx, OpenParams{
		Symbol: "AAPL", Side: models.OrderSideBuy, Allocation: 100, StopPercent: 2, TargetPercent: 4,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	g, _ := h.registry.ActiveGroup("AAPL")
	oldStopID := g.OrderIDs(models.RoleStop)[0]

	// Up 10%: scale in 100 more at 110, average (100*100 + 110*100)/200 = 105.
	h.sim.SetPrice("AAPL", 110.0)
	if err := h.trader.ScaleIn(ctx, ScaleParams{Symbol: "AAPL", Quantity: 100, MinProfitPercent: 5}); err != nil {
		t.Fatalf("scale-in failed: %v", err)
	}

	if g.Quantity != 200 {
		t.Errorf("group quantity = %d, want 200", g.Quantity)
	}
	if g.EntryPrice != 105.0 {
		t.Errorf("average entry = %.2f, want 105.00", g.EntryPrice)
	}
	if len(g.OrderIDs(models.RoleScale)) != 1 {
		t.Error("expected one scale order recorded")
	}

	if h.ledger.IsActive(oldStopID) {
		t.Error("old stop order still live after scale-in")
	}
	stop, ok := h.orderByRole(g, models.RoleStop)
	if !ok {
		t.Fatal("expected a replacement stop order")
	}
	if stop.Quantity != -200 {
		t.Errorf("stop quantity = %d, want -200", stop.Quantity)
	}
	// 2% of the new 105 average.
	if stop.StopPrice != 102.90 {
		t.Errorf("stop price = %.2f, want 102.90", stop.StopPrice)
	}
	target, _ := h.orderByRole(g, models.RoleTarget)
	if target.LimitPrice != 109.20 {
		t.Errorf("target price = %.2f, want 109.20", target.LimitPrice)
	}
}

func TestScaleInShortPosition(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.sim.SetPrice("AAPL", 100.0)

	if err := h.trader.OpenWithProtection(ctx, OpenParams{
		Symbol: "AAPL", Side: models.OrderSideSell, Allocation: 100, StopPercent: 2, TargetPercent: 4,
	}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	g, _ := h.registry.ActiveGroup("AAPL")

	// Short profits when price falls.
	h.sim.SetPrice("AAPL", 90.0)
	if err := h.trader.ScaleIn(ctx, ScaleParams{Symbol: "AAPL", Quantity: 100, MinProfitPercent: 5}); err != nil {
		t.Fatalf("scale-in failed: %v", err)
	}

	if g.Quantity != -200 {
		t.Errorf("group quantity = %d, want -200", g.Quantity)
	}
	if g.EntryPrice != 95.0 {
		t.Errorf("average entry = %.2f, want 95.00", g.EntryPrice)
	}
	stop, _ := h.orderByRole(g, models.RoleStop)
	if stop.Quantity != 200 {
		t.Errorf("stop quantity = %d, want 200", stop.Quantity)
	}
}
