package rules

import (
	"context"
	"fmt"
	"time"

	"signal-trader/internal/events"
	"signal-trader/internal/models"
)

// PositionReader is the registry view conditions consult.
type PositionReader interface {
	ActiveSide(symbol string) (models.OrderSide, bool)
}

// EventMatch fires on events of the given kind, optionally filtered by
// symbol and minimum signal confidence.
type EventMatch struct {
	Kind          events.Kind
	Symbol        string           // empty matches any symbol
	Side          models.OrderSide // empty matches any side
	MinConfidence float64          // applies to signal events only
}

// Evaluate implements Condition.
func (c EventMatch) Evaluate(_ context.Context, ec Context) (bool, error) {
	ev, ok := ec["event"].(events.Event)
	if !ok {
		return false, nil
	}
	if ev.EventKind() != c.Kind {
		return false, nil
	}
	if c.Symbol != "" {
		if symbol, _ := ec["symbol"].(string); symbol != c.Symbol {
			return false, nil
		}
	}
	if sig, ok := ev.(events.SignalEvent); ok {
		if c.Side != "" && sig.Signal.Side != c.Side {
			return false, nil
		}
		if sig.Signal.Confidence < c.MinConfidence {
			return false, nil
		}
	}
	return true, nil
}

// TimeWindow is true between Start and End (clock times, engine location).
type TimeWindow struct {
	Start    string // "15:04"
	End      string // "15:04"
	Location *time.Location
}

// Evaluate implements Condition.
func (c TimeWindow) Evaluate(_ context.Context, ec Context) (bool, error) {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	now, ok := ec["now"].(time.Time)
	if !ok {
		now = time.Now()
	}
	now = now.In(loc)

	start, err := time.ParseInLocation("15:04", c.Start, loc)
	if err != nil {
		return false, fmt.Errorf("parsing window start: %w", err)
	}
	end, err := time.ParseInLocation("15:04", c.End, loc)
	if err != nil {
		return false, fmt.Errorf("parsing window end: %w", err)
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	return minutes >= startMin && minutes <= endMin, nil
}

// PositionState checks whether a symbol has an active position, optionally
// on a specific side.
type PositionState struct {
	Positions PositionReader
	Symbol    string // empty uses the event symbol
	Open      bool   // true = require an active position, false = require none
	Side      models.OrderSide
}

// Evaluate implements Condition.
func (c PositionState) Evaluate(_ context.Context, ec Context) (bool, error) {
	symbol := c.Symbol
	if symbol == "" {
		symbol, _ = ec["symbol"].(string)
	}
	if symbol == "" {
		return false, nil
	}

	side, open := c.Positions.ActiveSide(symbol)
	if open != c.Open {
		return false, nil
	}
	if c.Open && c.Side != "" && side != c.Side {
		return false, nil
	}
	return true, nil
}

// MarketState bounds the context price.
type MarketState struct {
	MinPrice float64
	MaxPrice float64 // 0 = unbounded
}

// Evaluate implements Condition.
func (c MarketState) Evaluate(_ context.Context, ec Context) (bool, error) {
	price, ok := ec["price"].(float64)
	if !ok || price <= 0 {
		return false, nil
	}
	if price < c.MinPrice {
		return false, nil
	}
	if c.MaxPrice > 0 && price > c.MaxPrice {
		return false, nil
	}
	return true, nil
}

// And is true when all children are true.
type And []Condition

// Evaluate implements Condition.
func (c And) Evaluate(ctx context.Context, ec Context) (bool, error) {
	for _, child := range c {
		ok, err := child.Evaluate(ctx, ec)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Or is true when any child is true.
type Or []Condition

// Evaluate implements Condition.
func (c Or) Evaluate(ctx context.Context, ec Context) (bool, error) {
	for _, child := range c {
		ok, err := child.Evaluate(ctx, ec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Not negates its child.
type Not struct {
	C Condition
}

// Evaluate implements Condition.
func (c Not) Evaluate(ctx context.Context, ec Context) (bool, error) {
	ok, err := c.C.Evaluate(ctx, ec)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Sequential runs child actions in order, stopping at the first failure.
type Sequential []Action

// Execute implements Action.
func (a Sequential) Execute(ctx context.Context, ec Context) error {
	for i, child := range a {
		if err := child.Execute(ctx, ec); err != nil {
			return fmt.Errorf("sequential action step %d: %w", i, err)
		}
	}
	return nil
}
