package events

import (
	"testing"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

func TestBusDeliversToMatchingKindOnly(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var signals, fills int
	bus.Subscribe(KindSignal, func(Event) { signals++ })
	bus.Subscribe(KindFill, func(Event) { fills++ })

	bus.Emit(SignalEvent{Signal: models.Signal{Symbol: "AAPL"}})
	bus.Emit(SignalEvent{Signal: models.Signal{Symbol: "MSFT"}})
	bus.Emit(FillEvent{Fill: models.Fill{OrderID: "1"}})

	if signals != 2 {
		t.Errorf("signal deliveries = %d, want 2", signals)
	}
	if fills != 1 {
		t.Errorf("fill deliveries = %d, want 1", fills)
	}
}

func TestBusEmitIsSynchronous(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	done := false
	bus.Subscribe(KindSignal, func(Event) { done = true })
	bus.Emit(SignalEvent{})

	if !done {
		t.Error("Emit returned before the handler ran")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	id := bus.Subscribe(KindTick, func(Event) { calls++ })
	bus.Emit(TickEvent{})
	bus.Unsubscribe(KindTick, id)
	bus.Emit(TickEvent{})

	if calls != 1 {
		t.Errorf("deliveries = %d, want 1 after unsubscribe", calls)
	}
	if n := bus.SubscriberCount(KindTick); n != 0 {
		t.Errorf("subscriber count = %d, want 0", n)
	}
}

func TestBusPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := 0
	bus.Subscribe(KindSignal, func(Event) { panic("handler bug") })
	bus.Subscribe(KindSignal, func(Event) { delivered++ })
	bus.Subscribe(KindSignal, func(Event) { delivered++ })

	bus.Emit(SignalEvent{})

	if delivered != 2 {
		t.Errorf("deliveries = %d, want 2 despite the panicking handler", delivered)
	}
}
