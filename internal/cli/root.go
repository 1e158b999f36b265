// Package cli provides the command-line interface for the trading engine.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/config"
	"signal-trader/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared by commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "signal-trader",
		Short: "Signal-driven trading automation engine",
		Long: `Signal Trader turns inbound prediction signals into protected positions.

Signals are matched against per-symbol rules; qualifying signals open a
position bracketed by stop and target orders, with optional double-down
and scale-in behavior. Positions are closed on protective fills, reversal
signals, or at the end-of-day window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signal-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Signal Trader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading Configuration")
	output.Printf("  Mode:              %s\n", cfg.Trading.Mode)
	output.Printf("  Tick Size:         %.4f\n", cfg.Trading.TickSize)
	output.Printf("  Shares:            %d - %d\n", cfg.Trading.MinShares, cfg.Trading.MaxShares)
	output.Printf("  Alloc Threshold:   %.0f\n", cfg.Trading.AllocationThreshold)
	output.Printf("  Engine Tick:       %ds\n", cfg.Trading.EngineTickSeconds)
	output.Println()

	output.Bold("End of Day")
	output.Printf("  Enabled:           %v\n", cfg.EOD.Enabled)
	output.Printf("  Window:            %s - %s\n", cfg.EOD.Start, cfg.EOD.End)
	output.Println()

	output.Bold("Strategies")
	for _, symbol := range cfg.Symbols() {
		sc := cfg.Strategies[symbol]
		output.Printf("  %s: confidence >= %.2f, allocation %.0f, priority %d\n",
			symbol, sc.ConfidenceThreshold, sc.Allocation, sc.Priority)
	}

	return nil
}

func journalPath() string {
	return filepath.Join(config.DefaultConfigDir(), "journal.db")
}
