package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/pkg/utils"
)

// EODCloser closes every configured symbol once per day inside the
// end-of-day window.
type EODCloser struct {
	trader  *Trader
	symbols []string
	start   string
	end     string
	logger  zerolog.Logger

	lastRun time.Time
}

// NewEODCloser creates an end-of-day closer for the given clock window.
func NewEODCloser(trader *Trader, symbols []string, start, end string, logger zerolog.Logger) *EODCloser {
	return &EODCloser{
		trader:  trader,
		symbols: symbols,
		start:   start,
		end:     end,
		logger:  logger,
	}
}

// Run checks the window every interval until the context is cancelled.
func (c *EODCloser) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.CheckOnce(ctx, now)
		}
	}
}

// CheckOnce triggers the closure if now is inside the window and it has not
// run today.
func (c *EODCloser) CheckOnce(ctx context.Context, now time.Time) {
	if sameDate(c.lastRun, now) {
		return
	}
	within, err := utils.WithinClockWindow(now, c.start, c.end)
	if err != nil {
		c.logger.Error().Err(err).Msg("invalid end-of-day window")
		return
	}
	if !within {
		return
	}

	c.lastRun = now
	for _, symbol := range c.symbols {
		if err := c.trader.CloseAll(ctx, symbol, "end of day"); err != nil {
			c.logger.Error().Err(err).Str("symbol", symbol).Msg("end-of-day close failed")
		}
	}
	c.logger.Info().Int("symbols", len(c.symbols)).Msg("end-of-day closure complete")
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
