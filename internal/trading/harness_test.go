package trading

import (
	"github.com/rs/zerolog"

	"signal-trader/internal/broker"
	"signal-trader/internal/events"
	"signal-trader/internal/models"
	"signal-trader/internal/orders"
	"signal-trader/internal/positions"
)

// harness wires a trader against the simulated gateway with callbacks routed
// directly into the ledger. Fills are injected explicitly via sim.FillOrder.
type harness struct {
	sim      *broker.SimGateway
	bus      *events.Bus
	ledger   *orders.Ledger
	registry *positions.Registry
	trader   *Trader
}

func newHarness() *harness {
	logger := zerolog.Nop()
	sim := broker.NewSimGateway()
	bus := events.NewBus(logger)
	ledger := orders.NewLedger(sim, bus, logger)
	sim.OnOrderStatus(ledger.HandleOrderStatus)
	sim.OnFill(ledger.HandleFill)
	registry := positions.NewRegistry(logger)
	trader := NewTrader(ledger, registry, sim, sim, bus, logger, DefaultSettings())

	return &harness{
		sim:      sim,
		bus:      bus,
		ledger:   ledger,
		registry: registry,
		trader:   trader,
	}
}

// orderByRole returns the single live order recorded under a role.
func (h *harness) orderByRole(g *models.OrderGroup, role models.OrderRole) (models.Order, bool) {
	ids := g.OrderIDs(role)
	if len(ids) != 1 {
		return models.Order{}, false
	}
	return h.ledger.Get(ids[0])
}
