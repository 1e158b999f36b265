package trading

import (
	"testing"
	"time"

	"signal-trader/internal/config"
)

func TestRulesFromConfigBuildsOpenAndScaleRules(t *testing.T) {
	h := newHarness()
	cfg := &config.Config{
		Strategies: map[string]config.StrategyConfig{
			"AAPL": {
				ConfidenceThreshold: 0.8,
				Allocation:          5000,
				StopATRMult:         6,
				TargetATRMult:       3,
				ATRPeriod:           14,
				CooldownMinutes:     30,
				MaxExecutionsPerDay: 3,
				Priority:            10,
				DoubleDownFraction:  0.5,
				DoubleDownMultiple:  1,
				ScaleQuantity:       50,
			},
			"MSFT": {
				ConfidenceThreshold: 0.9,
				Allocation:          100,
				StopPercent:         2,
				Priority:            5,
			},
		},
	}

	rs := RulesFromConfig(cfg, h.trader)

	// AAPL gets open + scale, MSFT (no scale quantity) only open.
	if len(rs) != 3 {
		t.Fatalf("rules = %d, want 3", len(rs))
	}

	byID := map[string]bool{}
	for _, r := range rs {
		byID[r.ID] = true
		if r.Symbol == "" {
			t.Errorf("rule %s has no symbol for cooldown scoping", r.ID)
		}
		if !r.Enabled {
			t.Errorf("rule %s not enabled", r.ID)
		}
	}
	for _, id := range []string{"open-AAPL", "scale-AAPL", "open-MSFT"} {
		if !byID[id] {
			t.Errorf("missing rule %s, have %v", id, byID)
		}
	}

	for _, r := range rs {
		if r.ID != "open-AAPL" {
			continue
		}
		if r.Cooldown != 30*time.Minute {
			t.Errorf("cooldown = %v, want 30m", r.Cooldown)
		}
		if r.MaxPerDay != 3 {
			t.Errorf("max per day = %d, want 3", r.MaxPerDay)
		}
		if r.Priority != 10 {
			t.Errorf("priority = %d, want 10", r.Priority)
		}
		open, ok := r.Action.(*OpenAction)
		if !ok {
			t.Fatalf("action type = %T, want *OpenAction", r.Action)
		}
		if open.Params.DoubleDown == nil || open.Params.DoubleDown.StopFraction != 0.5 {
			t.Errorf("double-down params = %+v", open.Params.DoubleDown)
		}
	}
}

func TestSettingsFromConfigOverridesDefaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Trading.TickSize = 0.05
	cfg.Trading.MaxShares = 500
	cfg.Trading.FetchTimeoutSeconds = 2

	s := SettingsFromConfig(cfg)
	if s.TickSize != 0.05 {
		t.Errorf("tick size = %v, want 0.05", s.TickSize)
	}
	if s.MaxShares != 500 {
		t.Errorf("max shares = %d, want 500", s.MaxShares)
	}
	if s.FetchTimeout != 2*time.Second {
		t.Errorf("fetch timeout = %v, want 2s", s.FetchTimeout)
	}
	// Unset fields keep defaults.
	if s.MinShares != DefaultSettings().MinShares {
		t.Errorf("min shares = %d, want default", s.MinShares)
	}
}
