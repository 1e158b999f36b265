package trading

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

type fakeResetter struct {
	symbols []string
}

func (f *fakeResetter) ResetCooldownsForSymbol(symbol string) {
	f.symbols = append(f.symbols, symbol)
}

// openProtected opens a 100-share long at 150 with ATR protection
// (stop 141.00, target 154.50) and returns its group.
func openProtected(t *testing.T, h *harness) *models.OrderGroup {
	t.Helper()
	ctx := context.Background()
	h.sim.SetPrice("AAPL", 150.0)
	h.sim.SetATR("AAPL", 1.5)

	err := h.trader.OpenWithProtection(ctx, OpenParams{
		Symbol:        "AAPL",
		Side:          models.OrderSideBuy,
		Allocation:    100,
		StopATRMult:   6,
		TargetATRMult: 3,
		DoubleDown:    &DoubleDownParams{StopFraction: 0.5, SizeMultiple: 1},
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	g, ok := h.registry.ActiveGroup("AAPL")
	if !ok {
		t.Fatal("expected an active group")
	}
	return g
}

func TestTargetFillConcludesPosition(t *testing.T) {
	h := newHarness()
	resetter := &fakeResetter{}
	fm := NewFillManager(h.trader, resetter, zerolog.Nop())
	fm.Start(context.Background())

	g := openProtected(t, h)
	targetID := g.OrderIDs(models.RoleTarget)[0]
	stopID := g.OrderIDs(models.RoleStop)[0]
	ddID := g.OrderIDs(models.RoleDoubleDown)[0]

	if err := h.sim.FillOrder(targetID, 100, 154.50); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if g.Active() {
		t.Error("group still active after full target fill")
	}
	if h.ledger.IsActive(stopID) {
		t.Error("stop order still live after target fill")
	}
	if h.ledger.IsActive(ddID) {
		t.Error("double-down order still live after target fill")
	}
	// A target conclusion must not clear cooldowns.
	if len(resetter.symbols) != 0 {
		t.Errorf("cooldowns reset on target fill: %v", resetter.symbols)
	}
}

func TestStopFillConcludesAndResetsCooldowns(t *testing.T) {
	h := newHarness()
	resetter := &fakeResetter{}
	fm := NewFillManager(h.trader, resetter, zerolog.Nop())
	fm.Start(context.Background())

	g := openProtected(t, h)
	stopID := g.OrderIDs(models.RoleStop)[0]
	targetID := g.OrderIDs(models.RoleTarget)[0]

	if err := h.sim.FillOrder(stopID, 100, 141.00); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if g.Active() {
		t.Error("group still active after full stop fill")
	}
	if h.ledger.IsActive(targetID) {
		t.Error("target order still live after stop fill")
	}
	if len(resetter.symbols) != 1 || resetter.symbols[0] != "AAPL" {
		t.Errorf("cooldown resets = %v, want [AAPL]", resetter.symbols)
	}
}

func TestDoubleDownFillRecomputesAverageAndProtection(t *testing.T) {
	h := newHarness()
	fm := NewFillManager(h.trader, &fakeResetter{}, zerolog.Nop())
	fm.Start(context.Background())

	g := openProtected(t, h)
	ddID := g.OrderIDs(models.RoleDoubleDown)[0]

	// 100 more shares at 145: average (150*100 + 145*100) / 200 = 147.50.
	if err := h.sim.FillOrder(ddID, 100, 145.00); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if g.Quantity != 200 {
		t.Errorf("group quantity = %d, want 200", g.Quantity)
	}
	if g.EntryPrice != 147.50 {
		t.Errorf("average entry = %.2f, want 147.50", g.EntryPrice)
	}

	stop, ok := h.orderByRole(g, models.RoleStop)
	if !ok {
		t.Fatal("expected a replacement stop order")
	}
	if stop.Quantity != -200 {
		t.Errorf("stop quantity = %d, want -200", stop.Quantity)
	}
	if stop.StopPrice != 138.50 {
		t.Errorf("stop price = %.2f, want 138.50", stop.StopPrice)
	}

	target, ok := h.orderByRole(g, models.RoleTarget)
	if !ok {
		t.Fatal("expected a replacement target order")
	}
	if target.Quantity != -200 {
		t.Errorf("target quantity = %d, want -200", target.Quantity)
	}
	if target.LimitPrice != 152.00 {
		t.Errorf("target price = %.2f, want 152.00", target.LimitPrice)
	}
}

func TestPartialProtectiveFillResizesOther(t *testing.T) {
	h := newHarness()
	fm := NewFillManager(h.trader, &fakeResetter{}, zerolog.Nop())
	fm.Start(context.Background())

	g := openProtected(t, h)
	targetID := g.OrderIDs(models.RoleTarget)[0]

	// 40 of 100 shares exit at the target: 60 remain open, so the stop must
	// shrink to 60.
	if err := h.sim.FillOrder(targetID, 40, 154.50); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if !g.Active() {
		t.Fatal("group closed on a partial protective fill")
	}
	if g.Quantity != 60 {
		t.Errorf("group quantity = %d, want 60", g.Quantity)
	}

	stop, ok := h.orderByRole(g, models.RoleStop)
	if !ok {
		t.Fatal("expected a resized stop order")
	}
	if stop.Quantity != -60 {
		t.Errorf("stop quantity = %d, want -60", stop.Quantity)
	}
	if stop.StopPrice != 141.00 {
		t.Errorf("stop price changed to %.2f on resize, want 141.00", stop.StopPrice)
	}
}

func TestFillForUnknownOrderIsBookkeepingOnly(t *testing.T) {
	h := newHarness()
	fm := NewFillManager(h.trader, &fakeResetter{}, zerolog.Nop())
	fm.Start(context.Background())

	g := openProtected(t, h)

	// An order outside any group fills without touching the group.
	id, err := h.ledger.Submit(context.Background(), &models.Order{
		Symbol: "AAPL", Quantity: 5, Type: models.OrderTypeMarket,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := h.sim.FillOrder(id, 5, 151.0); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if !g.Active() {
		t.Error("group closed by an unrelated fill")
	}
	if g.Quantity != 100 {
		t.Errorf("group quantity = %d, want 100", g.Quantity)
	}
}
