package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# signal-trader configuration

[trading]
mode = "paper"              # "paper" or "live"
tick_size = 0.01
min_shares = 1
max_shares = 10000
allocation_threshold = 1000.0
fetch_timeout_seconds = 5
engine_tick_seconds = 30
reconcile_seconds = 60
atr_days = 10
atr_bar_size = "30 mins"

[eod]
enabled = true
start = "15:45"
end = "15:55"

# Per-symbol strategy parameters.
# [strategies.AAPL]
# confidence_threshold = 0.65
# allocation = 10000.0
# stop_atr_mult = 6.0
# target_atr_mult = 3.0
# stop_percent = 2.0
# target_percent = 1.0
# atr_period = 14
# cooldown_minutes = 30
# max_executions_per_day = 4
# priority = 10
# double_down_fraction = 0.5
# double_down_multiple = 1.0
# scale_quantity = 50
# scale_min_profit_percent = 1.0
`

// createTemplateConfig writes a commented template config file so a first
// run has something to edit.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
