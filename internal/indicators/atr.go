// Package indicators computes volatility indicators from bar history.
package indicators

import (
	"context"
	"fmt"
	"math"
	"sync"

	"signal-trader/internal/broker"
	"signal-trader/internal/models"
)

// TrueRange returns the true range of a bar against the previous close.
func TrueRange(cur, prev models.Candle) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the Wilder-smoothed average true range of the final bar.
// Needs at least period+1 bars.
func ATR(bars []models.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("atr: non-positive period %d", period)
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("atr: need %d bars, have %d: %w", period+1, len(bars), broker.ErrNoIndicator)
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		tr[i] = TrueRange(bars[i], bars[i-1])
	}

	// Seed with the simple mean, then Wilder smoothing.
	var sum float64
	for _, v := range tr[:period] {
		sum += v
	}
	atr := sum / float64(period)
	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
	}
	return atr, nil
}

// ATRSource keeps a rolling bar history per symbol and serves ATR values
// from it. It backs protective-distance sizing when no broker-supplied
// indicator is available.
type ATRSource struct {
	mu      sync.Mutex
	bars    map[string][]models.Candle
	maxBars int
}

// NewATRSource creates a source retaining up to maxBars bars per symbol.
func NewATRSource(maxBars int) *ATRSource {
	if maxBars <= 0 {
		maxBars = 500
	}
	return &ATRSource{
		bars:    make(map[string][]models.Candle),
		maxBars: maxBars,
	}
}

// AddBar appends a bar to the symbol's history, evicting the oldest beyond
// the retention limit.
func (s *ATRSource) AddBar(symbol string, bar models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.bars[symbol], bar)
	if len(h) > s.maxBars {
		h = h[len(h)-s.maxBars:]
	}
	s.bars[symbol] = h
}

// BarCount returns the retained history length for a symbol.
func (s *ATRSource) BarCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars[symbol])
}

// GetATR computes the ATR from retained bars. Days and bar size are fixed
// by whatever feed populates the history, so both arguments are ignored.
func (s *ATRSource) GetATR(ctx context.Context, symbol string, period, days int, barSize string) (float64, error) {
	s.mu.Lock()
	h := make([]models.Candle, len(s.bars[symbol]))
	copy(h, s.bars[symbol])
	s.mu.Unlock()

	v, err := ATR(h, period)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", symbol, err)
	}
	return v, nil
}

// Chain tries indicator sources in order until one has a value.
type Chain []broker.IndicatorSource

func (c Chain) GetATR(ctx context.Context, symbol string, period, days int, barSize string) (float64, error) {
	err := error(broker.ErrNoIndicator)
	for _, src := range c {
		v, srcErr := src.GetATR(ctx, symbol, period, days, barSize)
		if srcErr == nil {
			return v, nil
		}
		err = srcErr
	}
	return 0, err
}

var (
	_ broker.IndicatorSource = (*ATRSource)(nil)
	_ broker.IndicatorSource = Chain(nil)
)
