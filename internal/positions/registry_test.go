package positions

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

func TestRegistryActiveSideTracksGroup(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	if _, open := r.ActiveSide("AAPL"); open {
		t.Error("empty registry reports an active side")
	}

	r.Open("AAPL", models.OrderSideBuy)
	side, open := r.ActiveSide("AAPL")
	if !open || side != models.OrderSideBuy {
		t.Errorf("active side = (%s, %v), want (BUY, true)", side, open)
	}

	r.Close("AAPL")
	if _, open := r.ActiveSide("AAPL"); open {
		t.Error("closed group still reports an active side")
	}
}

func TestRegistryOpenReplacesClosedGroup(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	g1 := r.Open("AAPL", models.OrderSideBuy)
	r.Close("AAPL")
	g2 := r.Open("AAPL", models.OrderSideSell)

	if g1 == g2 {
		t.Fatal("reopening returned the closed group")
	}
	if side, open := r.ActiveSide("AAPL"); !open || side != models.OrderSideSell {
		t.Errorf("active side = (%s, %v), want (SELL, true)", side, open)
	}
	if got := len(r.ClosedGroups()); got != 1 {
		t.Errorf("closed groups = %d, want 1", got)
	}
}

func TestRegistryGroupByOrderID(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	g := r.Open("AAPL", models.OrderSideBuy)
	g.AddOrder(models.RoleMain, "O1")
	g.AddOrder(models.RoleStop, "O2")

	found, role, ok := r.GroupByOrderID("O2")
	if !ok || found != g || role != models.RoleStop {
		t.Errorf("lookup O2 = (%v, %s, %v), want the AAPL group under stop", found, role, ok)
	}
	if _, _, ok := r.GroupByOrderID("UNKNOWN"); ok {
		t.Error("unknown order id resolved to a group")
	}
}

func TestRegistryActiveSymbols(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	r.Open("AAPL", models.OrderSideBuy)
	r.Open("MSFT", models.OrderSideSell)
	r.Close("MSFT")

	symbols := r.ActiveSymbols()
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("active symbols = %v, want [AAPL]", symbols)
	}
}

func TestLockSymbolSerializesPerSymbol(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	const workers = 8
	const iterations = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := r.LockSymbol("AAPL")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Errorf("counter = %d, want %d: symbol lock did not serialize", counter, workers*iterations)
	}
}

func TestLockSymbolIndependentAcrossSymbols(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	unlockA := r.LockSymbol("AAPL")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := r.LockSymbol("MSFT")
		unlockB()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("MSFT lock blocked by the AAPL lock")
	}
}
