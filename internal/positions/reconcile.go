package positions

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

// LedgerView is the slice of the order ledger the reconciler reads.
type LedgerView interface {
	Get(orderID string) (models.Order, bool)
	ActiveOrders(symbol string) []models.Order
}

// Reconciler periodically cross-checks the registry against the ledger.
// Disagreements are logged as warnings and never auto-fixed.
type Reconciler struct {
	registry *Registry
	ledger   LedgerView
	logger   zerolog.Logger
	interval time.Duration
}

// NewReconciler creates a reconciler.
func NewReconciler(registry *Registry, ledger LedgerView, logger zerolog.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		registry: registry,
		ledger:   ledger,
		logger:   logger,
		interval: interval,
	}
}

// Run checks on every interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.CheckOnce()
		}
	}
}

// CheckOnce runs a single reconciliation pass.
func (r *Reconciler) CheckOnce() {
	for _, symbol := range r.registry.ActiveSymbols() {
		group, ok := r.registry.ActiveGroup(symbol)
		if !ok {
			continue
		}

		// An active group whose orders are all terminal was concluded
		// without the registry hearing about it.
		live := 0
		for _, id := range group.AllOrderIDs() {
			order, ok := r.ledger.Get(id)
			if !ok {
				r.logger.Warn().
					Str("symbol", symbol).
					Str("order_id", id).
					Msg("group references order unknown to ledger")
				continue
			}
			if !order.Status.Terminal() {
				live++
			}
		}
		if live == 0 && len(group.AllOrderIDs()) > 0 {
			r.logger.Warn().
				Str("symbol", symbol).
				Msg("active group has no live orders")
		}
	}

	// Live orders whose group has closed should have been cancelled by the
	// conclusion cascade.
	for _, group := range r.registry.ClosedGroups() {
		for _, order := range r.ledger.ActiveOrders(group.Symbol) {
			if _, ok := group.RoleOf(order.ID); ok {
				r.logger.Warn().
					Str("symbol", group.Symbol).
					Str("order_id", order.ID).
					Msg("closed group still has a live order")
			}
		}
	}
}
