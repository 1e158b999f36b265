package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/models"
)

// ErrGatewayUnavailable is returned while the breaker is tripped.
var ErrGatewayUnavailable = errors.New("gateway unavailable")

// BreakerState is the current admission state of a GuardedGateway.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig tunes when the gateway trips and recovers.
type BreakerConfig struct {
	// FailureThreshold is the run of consecutive submit failures that trips
	// the breaker.
	FailureThreshold int
	// SuccessThreshold is the run of probe successes that closes it again.
	SuccessThreshold int
	// Cooldown is how long submits fail fast before a probe is allowed.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the thresholds used by the run command.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// GuardedGateway wraps a Gateway and stops forwarding new orders after a run
// of submit failures. While tripped, SubmitOrder fails fast with
// ErrGatewayUnavailable; once the cooldown passes a probe order is let
// through and its outcome decides whether the breaker closes. Cancels always
// pass through so protective cleanup keeps working against a degraded
// broker.
type GuardedGateway struct {
	Gateway

	cfg    BreakerConfig
	logger zerolog.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewGuardedGateway wraps gw with submit admission control.
func NewGuardedGateway(gw Gateway, cfg BreakerConfig, logger zerolog.Logger) *GuardedGateway {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &GuardedGateway{
		Gateway: gw,
		cfg:     cfg,
		logger:  logger.With().Str("component", "gateway_breaker").Logger(),
		state:   BreakerClosed,
	}
}

func (g *GuardedGateway) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	if err := g.admit(); err != nil {
		return "", fmt.Errorf("submit %s: %w", order.Symbol, err)
	}
	id, err := g.Gateway.SubmitOrder(ctx, order)
	g.record(err)
	return id, err
}

// admit decides whether a submit may reach the gateway.
func (g *GuardedGateway) admit() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case BreakerOpen:
		if time.Since(g.lastFailure) < g.cfg.Cooldown {
			return ErrGatewayUnavailable
		}
		g.transition(BreakerHalfOpen)
	}
	return nil
}

func (g *GuardedGateway) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err == nil {
		switch g.state {
		case BreakerHalfOpen:
			g.successes++
			if g.successes >= g.cfg.SuccessThreshold {
				g.logger.Info().Msg("gateway recovered, breaker closed")
				g.transition(BreakerClosed)
			}
		case BreakerClosed:
			g.failures = 0
		}
		return
	}

	g.lastFailure = time.Now()
	switch g.state {
	case BreakerClosed:
		g.failures++
		if g.failures >= g.cfg.FailureThreshold {
			g.logger.Warn().
				Int("failures", g.failures).
				Msg("consecutive submit failures, breaker open")
			g.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		// Probe failed, back to fail-fast.
		g.transition(BreakerOpen)
	}
}

func (g *GuardedGateway) transition(state BreakerState) {
	g.state = state
	g.failures = 0
	g.successes = 0
}

// State returns the current admission state.
func (g *GuardedGateway) State() BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset force-closes the breaker.
func (g *GuardedGateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transition(BreakerClosed)
}

var _ Gateway = (*GuardedGateway)(nil)
