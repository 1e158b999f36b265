// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading    TradingConfig             `mapstructure:"trading"`
	EOD        EODConfig                 `mapstructure:"eod"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
}

// TradingConfig holds engine-wide trading parameters.
type TradingConfig struct {
	Mode                string  `mapstructure:"mode"` // "paper", "live"
	TickSize            float64 `mapstructure:"tick_size"`
	MinShares           int     `mapstructure:"min_shares"`
	MaxShares           int     `mapstructure:"max_shares"`
	AllocationThreshold float64 `mapstructure:"allocation_threshold"`
	FetchTimeoutSeconds int     `mapstructure:"fetch_timeout_seconds"`
	EngineTickSeconds   int     `mapstructure:"engine_tick_seconds"`
	ReconcileSeconds    int     `mapstructure:"reconcile_seconds"`
	ATRDays             int     `mapstructure:"atr_days"`
	ATRBarSize          string  `mapstructure:"atr_bar_size"`
}

// EODConfig holds the end-of-day closure window.
type EODConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Start   string `mapstructure:"start"` // "15:45"
	End     string `mapstructure:"end"`   // "15:55"
}

// StrategyConfig holds per-symbol strategy parameters.
type StrategyConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	Allocation          float64 `mapstructure:"allocation"`
	StopPercent         float64 `mapstructure:"stop_percent"`
	TargetPercent       float64 `mapstructure:"target_percent"`
	StopATRMult         float64 `mapstructure:"stop_atr_mult"`
	TargetATRMult       float64 `mapstructure:"target_atr_mult"`
	ATRPeriod           int     `mapstructure:"atr_period"`
	CooldownMinutes     int     `mapstructure:"cooldown_minutes"`
	MaxExecutionsPerDay int     `mapstructure:"max_executions_per_day"`
	Priority            int     `mapstructure:"priority"`

	DoubleDownFraction float64 `mapstructure:"double_down_fraction"`
	DoubleDownMultiple float64 `mapstructure:"double_down_multiple"`

	ScaleQuantity         int     `mapstructure:"scale_quantity"`
	ScaleMinProfitPercent float64 `mapstructure:"scale_min_profit_percent"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signal-trader"
	}
	return filepath.Join(home, ".config", "signal-trader")
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if mode := os.Getenv("TRADING_MODE"); mode != "" {
		cfg.Trading.Mode = mode
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.tick_size", 0.01)
	v.SetDefault("trading.min_shares", 1)
	v.SetDefault("trading.max_shares", 10000)
	v.SetDefault("trading.allocation_threshold", 1000.0)
	v.SetDefault("trading.fetch_timeout_seconds", 5)
	v.SetDefault("trading.engine_tick_seconds", 30)
	v.SetDefault("trading.reconcile_seconds", 60)
	v.SetDefault("trading.atr_days", 10)
	v.SetDefault("trading.atr_bar_size", "30 mins")
	v.SetDefault("eod.enabled", true)
	v.SetDefault("eod.start", "15:45")
	v.SetDefault("eod.end", "15:55")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "paper" && c.Trading.Mode != "live" {
		return fmt.Errorf("invalid trading mode: %s (must be 'paper' or 'live')", c.Trading.Mode)
	}
	if c.Trading.TickSize <= 0 {
		return fmt.Errorf("tick_size must be positive")
	}
	if c.Trading.MinShares < 0 || (c.Trading.MaxShares > 0 && c.Trading.MaxShares < c.Trading.MinShares) {
		return fmt.Errorf("invalid share bounds: min %d, max %d", c.Trading.MinShares, c.Trading.MaxShares)
	}
	for symbol, sc := range c.Strategies {
		if sc.ConfidenceThreshold < 0 || sc.ConfidenceThreshold > 1 {
			return fmt.Errorf("strategy %s: confidence_threshold must be in [0, 1]", symbol)
		}
		if sc.Allocation <= 0 {
			return fmt.Errorf("strategy %s: allocation must be positive", symbol)
		}
		if sc.DoubleDownFraction < 0 || sc.DoubleDownFraction >= 1 {
			return fmt.Errorf("strategy %s: double_down_fraction must be in [0, 1)", symbol)
		}
	}
	return nil
}

// Symbols returns the configured strategy symbols.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Strategies))
	for symbol := range c.Strategies {
		out = append(out, symbol)
	}
	return out
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode != "live"
}
