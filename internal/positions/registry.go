// Package positions provides the position registry: the authoritative store
// of per-symbol order groups.
package positions

import (
	"sync"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

// Registry holds one order group per symbol and serializes group-mutating
// sequences behind a per-symbol lock. The fast duplicate-trade check
// (ActiveSide) is a view over the same store, so it cannot disagree with the
// registry.
type Registry struct {
	logger zerolog.Logger

	mu     sync.RWMutex
	groups map[string]*models.OrderGroup
	closed []*models.OrderGroup

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger: logger,
		groups: make(map[string]*models.OrderGroup),
		locks:  make(map[string]*sync.Mutex),
	}
}

// LockSymbol acquires the symbol's logical lock and returns the unlock
// function. Every check-then-act sequence that mutates a symbol's group must
// run under this lock.
func (r *Registry) LockSymbol(symbol string) func() {
	r.lockMu.Lock()
	l, ok := r.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		r.locks[symbol] = l
	}
	r.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

// Open creates and stores an active group for the symbol, replacing any
// closed group.
func (r *Registry) Open(symbol string, side models.OrderSide) *models.OrderGroup {
	g := models.NewOrderGroup(symbol, side)

	r.mu.Lock()
	r.groups[symbol] = g
	r.mu.Unlock()

	r.logger.Info().Str("symbol", symbol).Str("side", string(side)).Msg("order group opened")
	return g
}

// Group returns the symbol's group, active or not.
func (r *Registry) Group(symbol string) (*models.OrderGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[symbol]
	return g, ok
}

// ActiveGroup returns the symbol's group only if it is active.
func (r *Registry) ActiveGroup(symbol string) (*models.OrderGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[symbol]
	if !ok || !g.Active() {
		return nil, false
	}
	return g, true
}

// GroupByOrderID resolves the group and role owning an order id.
func (r *Registry) GroupByOrderID(orderID string) (*models.OrderGroup, models.OrderRole, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if role, ok := g.RoleOf(orderID); ok {
			return g, role, true
		}
	}
	return nil, "", false
}

// ActiveSide is the duplicate-trade guard: an O(1) check of whether the
// symbol has an active trade and on which side.
func (r *Registry) ActiveSide(symbol string) (models.OrderSide, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[symbol]
	if !ok || !g.Active() {
		return "", false
	}
	return g.Side, true
}

// Close marks the symbol's group closed.
func (r *Registry) Close(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[symbol]
	if !ok || !g.Active() {
		return
	}
	g.Close()
	r.closed = append(r.closed, g)
	r.logger.Info().Str("symbol", symbol).Msg("order group closed")
}

// ActiveSymbols returns the symbols with an active group.
func (r *Registry) ActiveSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.groups))
	for symbol, g := range r.groups {
		if g.Active() {
			out = append(out, symbol)
		}
	}
	return out
}

// ClosedGroups returns the groups closed since startup.
func (r *Registry) ClosedGroups() []*models.OrderGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.OrderGroup, len(r.closed))
	copy(out, r.closed)
	return out
}
