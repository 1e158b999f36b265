package models

import "time"

// GroupStatus represents the lifecycle status of an order group.
type GroupStatus string

const (
	GroupActive GroupStatus = "ACTIVE"
	GroupClosed GroupStatus = "CLOSED"
)

// OrderGroup is the set of orders associated with one logical position on one
// symbol: the main entry plus any stop, target, scale and double-down orders.
// Mutation is serialized by the position registry's per-symbol lock.
type OrderGroup struct {
	Symbol     string
	Side       OrderSide
	Status     GroupStatus
	EntryPrice float64
	Quantity   int // signed

	// ATR multipliers and percentage fallbacks used to (re)compute
	// protective prices when the group size changes.
	StopATRMult   float64
	TargetATRMult float64
	StopPercent   float64
	TargetPercent float64
	ATRPeriod     int

	OpenedAt time.Time
	ClosedAt time.Time

	orders map[OrderRole][]string
	roles  map[string]OrderRole
}

// NewOrderGroup creates an active order group.
func NewOrderGroup(symbol string, side OrderSide) *OrderGroup {
	return &OrderGroup{
		Symbol:   symbol,
		Side:     side,
		Status:   GroupActive,
		OpenedAt: time.Now(),
		orders:   make(map[OrderRole][]string),
		roles:    make(map[string]OrderRole),
	}
}

// AddOrder records an order id under a role. The role sets are disjoint: an
// id already recorded under another role is moved, not duplicated.
func (g *OrderGroup) AddOrder(role OrderRole, orderID string) {
	if prev, ok := g.roles[orderID]; ok {
		g.removeFromRole(prev, orderID)
	}
	g.orders[role] = append(g.orders[role], orderID)
	g.roles[orderID] = role
}

// RemoveOrder drops an order id from the group.
func (g *OrderGroup) RemoveOrder(orderID string) {
	role, ok := g.roles[orderID]
	if !ok {
		return
	}
	g.removeFromRole(role, orderID)
	delete(g.roles, orderID)
}

func (g *OrderGroup) removeFromRole(role OrderRole, orderID string) {
	ids := g.orders[role]
	for i, id := range ids {
		if id == orderID {
			g.orders[role] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// RoleOf returns the role of an order id within the group.
func (g *OrderGroup) RoleOf(orderID string) (OrderRole, bool) {
	role, ok := g.roles[orderID]
	return role, ok
}

// OrderIDs returns the order ids recorded under a role.
func (g *OrderGroup) OrderIDs(role OrderRole) []string {
	ids := g.orders[role]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// AllOrderIDs returns every order id in the group regardless of role.
func (g *OrderGroup) AllOrderIDs() []string {
	out := make([]string, 0, len(g.roles))
	for _, role := range Roles() {
		out = append(out, g.orders[role]...)
	}
	return out
}

// Active reports whether the group is still open.
func (g *OrderGroup) Active() bool {
	return g.Status == GroupActive
}

// Close marks the group closed.
func (g *OrderGroup) Close() {
	g.Status = GroupClosed
	g.ClosedAt = time.Now()
}
