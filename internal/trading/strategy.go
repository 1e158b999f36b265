package trading

import (
	"fmt"
	"time"

	"signal-trader/internal/config"
	"signal-trader/internal/events"
	"signal-trader/internal/rules"
)

// SettingsFromConfig maps engine-wide trading configuration onto trader
// settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := DefaultSettings()
	if cfg.Trading.TickSize > 0 {
		s.TickSize = cfg.Trading.TickSize
	}
	if cfg.Trading.MinShares > 0 {
		s.MinShares = cfg.Trading.MinShares
	}
	if cfg.Trading.MaxShares > 0 {
		s.MaxShares = cfg.Trading.MaxShares
	}
	if cfg.Trading.AllocationThreshold > 0 {
		s.AllocationThreshold = cfg.Trading.AllocationThreshold
	}
	if cfg.Trading.FetchTimeoutSeconds > 0 {
		s.FetchTimeout = time.Duration(cfg.Trading.FetchTimeoutSeconds) * time.Second
	}
	if cfg.Trading.ATRDays > 0 {
		s.ATRDays = cfg.Trading.ATRDays
	}
	if cfg.Trading.ATRBarSize != "" {
		s.ATRBarSize = cfg.Trading.ATRBarSize
	}
	return s
}

// RulesFromConfig builds the per-symbol entry and scale-in rules from the
// strategy table.
func RulesFromConfig(cfg *config.Config, trader *Trader) []*rules.Rule {
	var out []*rules.Rule
	for symbol, sc := range cfg.Strategies {
		open := &rules.Rule{
			ID:          fmt.Sprintf("open-%s", symbol),
			Name:        fmt.Sprintf("Open %s on signal", symbol),
			Description: fmt.Sprintf("Opens a protected %s position when a qualifying signal arrives", symbol),
			Symbol:      symbol,
			Enabled:     true,
			Priority:    sc.Priority,
			Cooldown:    time.Duration(sc.CooldownMinutes) * time.Minute,
			MaxPerDay:   sc.MaxExecutionsPerDay,
			Condition: rules.EventMatch{
				Kind:          events.KindSignal,
				Symbol:        symbol,
				MinConfidence: sc.ConfidenceThreshold,
			},
			Action: &OpenAction{
				Trader: trader,
				Params: OpenParams{
					Symbol:        symbol,
					Allocation:    sc.Allocation,
					StopPercent:   sc.StopPercent,
					TargetPercent: sc.TargetPercent,
					StopATRMult:   sc.StopATRMult,
					TargetATRMult: sc.TargetATRMult,
					ATRPeriod:     sc.ATRPeriod,
					DoubleDown:    doubleDownFromConfig(sc),
				},
			},
		}
		out = append(out, open)

		if sc.ScaleQuantity > 0 {
			scale := &rules.Rule{
				ID:          fmt.Sprintf("scale-%s", symbol),
				Name:        fmt.Sprintf("Scale into %s", symbol),
				Description: fmt.Sprintf("Adds to a winning %s position on repeated signals", symbol),
				Symbol:      symbol,
				Enabled:     true,
				Priority:    sc.Priority - 1,
				Cooldown:    time.Duration(sc.CooldownMinutes) * time.Minute,
				MaxPerDay:   sc.MaxExecutionsPerDay,
				Condition: rules.And{
					rules.EventMatch{
						Kind:          events.KindSignal,
						Symbol:        symbol,
						MinConfidence: sc.ConfidenceThreshold,
					},
					rules.PositionState{
						Positions: trader.registry,
						Symbol:    symbol,
						Open:      true,
					},
				},
				Action: &ScaleAction{
					Trader: trader,
					Params: ScaleParams{
						Symbol:           symbol,
						Quantity:         sc.ScaleQuantity,
						MinProfitPercent: sc.ScaleMinProfitPercent,
					},
				},
			}
			out = append(out, scale)
		}
	}
	return out
}

func doubleDownFromConfig(sc config.StrategyConfig) *DoubleDownParams {
	if sc.DoubleDownFraction <= 0 || sc.DoubleDownMultiple <= 0 {
		return nil
	}
	return &DoubleDownParams{
		StopFraction: sc.DoubleDownFraction,
		SizeMultiple: sc.DoubleDownMultiple,
	}
}
