package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal-trader/internal/models"
)

// SimGateway implements Gateway, PriceSource and IndicatorSource against an
// in-memory order table and price/ATR tables. Market orders fill immediately
// at the table price; limit and stop orders rest until FillOrder is called.
// Used for paper trading and tests.
type SimGateway struct {
	mu           sync.Mutex
	orders       map[string]*models.Order
	prices       map[string]float64
	atr          map[string]float64
	orderCounter int

	statusFns []func(models.Order)
	fillFns   []func(models.Fill)

	// RejectNextSubmit makes the next SubmitOrder fail, for rejection-path
	// tests.
	RejectNextSubmit bool

	// AutoFillMarket fills market orders at the table price as soon as they
	// are submitted. Only safe when callbacks are marshalled through a
	// Bridge; tests that wire callbacks directly inject fills explicitly.
	AutoFillMarket bool
}

// NewSimGateway creates a simulator with empty tables.
func NewSimGateway() *SimGateway {
	return &SimGateway{
		orders: make(map[string]*models.Order),
		prices: make(map[string]float64),
		atr:    make(map[string]float64),
	}
}

// Connect is a no-op for the simulator.
func (s *SimGateway) Connect(ctx context.Context) error { return nil }

// Disconnect is a no-op for the simulator.
func (s *SimGateway) Disconnect() error { return nil }

// OnOrderStatus registers a status callback.
func (s *SimGateway) OnOrderStatus(handler func(models.Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFns = append(s.statusFns, handler)
}

// OnFill registers a fill callback.
func (s *SimGateway) OnFill(handler func(models.Fill)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fillFns = append(s.fillFns, handler)
}

// SetPrice sets the simulated price for a symbol.
func (s *SimGateway) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetATR sets the simulated ATR value for a symbol.
func (s *SimGateway) SetATR(symbol string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atr[symbol] = value
}

// ClearATR removes the ATR value for a symbol.
func (s *SimGateway) ClearATR(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.atr, symbol)
}

// GetPrice implements PriceSource.
func (s *SimGateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return price, nil
}

// GetATR implements IndicatorSource.
func (s *SimGateway) GetATR(ctx context.Context, symbol string, period, days int, barSize string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.atr[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoIndicator, symbol)
	}
	return value, nil
}

// SubmitOrder implements Gateway. Market orders fill synchronously at the
// table price.
func (s *SimGateway) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	s.mu.Lock()
	if s.RejectNextSubmit {
		s.RejectNextSubmit = false
		s.mu.Unlock()
		return "", fmt.Errorf("order rejected: %s", order.Symbol)
	}
	if order.Quantity == 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("zero quantity order: %s", order.Symbol)
	}

	s.orderCounter++
	id := fmt.Sprintf("SIM_%d", s.orderCounter)

	rec := *order
	rec.ID = id
	rec.Status = models.OrderStatusSubmitted
	rec.PlacedAt = time.Now()
	s.orders[id] = &rec

	fillNow := s.AutoFillMarket && rec.Type == models.OrderTypeMarket
	price := s.prices[rec.Symbol]
	s.mu.Unlock()

	if fillNow && price > 0 {
		s.FillOrder(id, rec.AbsQuantity(), price)
	}
	return id, nil
}

// CancelOrder implements Gateway.
func (s *SimGateway) CancelOrder(ctx context.Context, orderID, reason string) error {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("order not found: %s", orderID)
	}
	if order.Status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("cannot cancel order %s with status %s", orderID, order.Status)
	}
	order.Status = models.OrderStatusCancelled
	snapshot := *order
	s.mu.Unlock()

	s.emitStatus(snapshot)
	return nil
}

// FillOrder injects a fill of qty shares at price against a resting order.
// qty is unsigned; the fill inherits the order's direction.
func (s *SimGateway) FillOrder(orderID string, qty int, price float64) error {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("order not found: %s", orderID)
	}
	if order.Status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("cannot fill order %s with status %s", orderID, order.Status)
	}

	remaining := order.Remaining()
	if qty > remaining {
		qty = remaining
	}

	prevFilled := order.FilledQty
	order.AvgFillPrice = (order.AvgFillPrice*float64(prevFilled) + price*float64(qty)) / float64(prevFilled+qty)
	order.FilledQty += qty
	if order.FilledQty >= order.AbsQuantity() {
		order.Status = models.OrderStatusFilled
	} else {
		order.Status = models.OrderStatusPartiallyFilled
	}

	signedQty := qty
	if order.Quantity < 0 {
		signedQty = -qty
	}
	fill := models.Fill{
		OrderID:       orderID,
		Symbol:        order.Symbol,
		Quantity:      signedQty,
		Price:         price,
		CumulativeQty: order.FilledQty,
		RemainingQty:  order.Remaining(),
		Timestamp:     time.Now(),
	}
	snapshot := *order
	s.mu.Unlock()

	s.emitStatus(snapshot)
	s.emitFill(fill)
	return nil
}

// Order returns a copy of an order record.
func (s *SimGateway) Order(orderID string) (models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// ActiveOrders returns non-terminal orders for a symbol.
func (s *SimGateway) ActiveOrders(symbol string) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.Symbol == symbol && !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

func (s *SimGateway) emitStatus(order models.Order) {
	s.mu.Lock()
	fns := make([]func(models.Order), len(s.statusFns))
	copy(fns, s.statusFns)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(order)
	}
}

func (s *SimGateway) emitFill(fill models.Fill) {
	s.mu.Lock()
	fns := make([]func(models.Fill), len(s.fillFns))
	copy(fns, s.fillFns)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(fill)
	}
}

// Ensure SimGateway satisfies the boundary interfaces.
var (
	_ Gateway         = (*SimGateway)(nil)
	_ PriceSource     = (*SimGateway)(nil)
	_ IndicatorSource = (*SimGateway)(nil)
)
