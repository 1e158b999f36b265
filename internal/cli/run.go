package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/broker"
	"signal-trader/internal/events"
	"signal-trader/internal/indicators"
	"signal-trader/internal/models"
	"signal-trader/internal/orders"
	"signal-trader/internal/positions"
	"signal-trader/internal/rules"
	"signal-trader/internal/store"
	"signal-trader/internal/trading"
)

// feedLine is one line of the stdin feed: a signal when side is set, an
// OHLC bar when high/low are.
type feedLine struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
	Price      float64 `json:"price"`
	ATR        float64 `json:"atr"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine",
		Long: `Starts the engine and processes signals from stdin.

Each line of stdin is one JSON signal or OHLC bar, for example:

  {"symbol": "AAPL", "side": "BUY", "confidence": 0.92, "price": 150.0, "atr": 1.5}
  {"symbol": "AAPL", "open": 149.8, "high": 150.4, "low": 149.2, "close": 150.0}

Bars build the ATR used for protective distances when signals carry none.
In paper mode orders execute against the built-in simulated gateway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, app)
		},
	}
	return cmd
}

func runEngine(cmd *cobra.Command, app *App) error {
	output := NewOutput(cmd)
	cfg := app.Config
	logger := app.Logger

	if !cfg.IsPaperMode() {
		return fmt.Errorf("mode %q is not supported: only paper mode has a gateway", cfg.Trading.Mode)
	}
	if len(cfg.Symbols()) == 0 {
		return fmt.Errorf("no strategies configured, add a [strategies.<SYMBOL>] section")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := broker.NewSimGateway()
	sim.AutoFillMarket = true
	gateway := broker.NewGuardedGateway(sim, broker.DefaultBreakerConfig(), logger)

	bus := events.NewBus(logger)
	bridge := broker.NewBridge(sim, logger)
	ledger := orders.NewLedger(gateway, bus, logger)
	ledger.Attach(bridge)
	registry := positions.NewRegistry(logger)

	// ATR preference order: the value carried on the signal, then one
	// computed from the bar feed.
	atrSource := indicators.NewATRSource(500)
	trader := trading.NewTrader(ledger, registry, sim, indicators.Chain{sim, atrSource}, bus, logger,
		trading.SettingsFromConfig(cfg))

	tick := time.Duration(cfg.Trading.EngineTickSeconds) * time.Second
	engine := rules.NewEngine(bus, logger, tick)
	for _, rule := range trading.RulesFromConfig(cfg, trader) {
		if err := engine.Register(rule); err != nil {
			return fmt.Errorf("registering rule: %w", err)
		}
	}

	journal, err := store.NewJournal(journalPath())
	if err != nil {
		logger.Warn().Err(err).Msg("journal unavailable, continuing without persistence")
	} else {
		defer journal.Close()
		journal.Attach(bus)
		engine.SetRecorder(journal)

		bus.Subscribe(events.KindPositionClosed, func(ev events.Event) {
			e, ok := ev.(events.PositionClosedEvent)
			if !ok {
				return
			}
			groups := registry.ClosedGroups()
			for i := len(groups) - 1; i >= 0; i-- {
				if groups[i].Symbol == e.Symbol {
					if err := journal.RecordClosedPosition(ctx, groups[i], e.Reason); err != nil {
						logger.Warn().Err(err).Str("symbol", e.Symbol).Msg("recording closed position failed")
					}
					return
				}
			}
		})
	}

	fills := trading.NewFillManager(trader, engine, logger)

	if err := bridge.Connect(ctx); err != nil {
		return fmt.Errorf("connecting gateway: %w", err)
	}
	defer sim.Disconnect()

	bridge.Start(ctx)
	engine.Start(ctx)
	fills.Start(ctx)

	reconciler := positions.NewReconciler(registry, ledger, logger,
		time.Duration(cfg.Trading.ReconcileSeconds)*time.Second)
	go reconciler.Run(ctx)

	if cfg.EOD.Enabled {
		eod := trading.NewEODCloser(trader, cfg.Symbols(), cfg.EOD.Start, cfg.EOD.End, logger)
		go eod.Run(ctx, 30*time.Second)
	}

	output.Info("Engine running in %s mode for %s. Feed signals on stdin, Ctrl-C to stop.",
		cfg.Trading.Mode, strings.Join(cfg.Symbols(), ", "))

	go feedSignals(ctx, bus, sim, atrSource, logger)

	<-ctx.Done()
	output.Println()
	output.Info("Shutting down")
	return nil
}

// feedSignals reads JSON lines from stdin and publishes them. A price on
// the signal also primes the simulated gateway so fetches succeed; bars go
// into the ATR history.
func feedSignals(ctx context.Context, bus *events.Bus, sim *broker.SimGateway, atrSource *indicators.ATRSource, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var fs feedLine
		if err := json.Unmarshal([]byte(line), &fs); err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("unparseable feed line, skipping")
			continue
		}

		if fs.Side == "" && fs.High > 0 && fs.Low > 0 {
			atrSource.AddBar(fs.Symbol, models.Candle{
				Timestamp: time.Now(),
				Open:      fs.Open,
				High:      fs.High,
				Low:       fs.Low,
				Close:     fs.Close,
			})
			if fs.Close > 0 {
				sim.SetPrice(fs.Symbol, fs.Close)
			}
			continue
		}

		side := models.OrderSide(strings.ToUpper(fs.Side))
		if side != models.OrderSideBuy && side != models.OrderSideSell {
			logger.Warn().Str("side", fs.Side).Msg("unknown signal side, skipping")
			continue
		}

		if fs.Price > 0 {
			sim.SetPrice(fs.Symbol, fs.Price)
		}
		if fs.ATR > 0 {
			sim.SetATR(fs.Symbol, fs.ATR)
		}

		bus.Emit(events.SignalEvent{Signal: models.Signal{
			Symbol:     fs.Symbol,
			Side:       side,
			Confidence: fs.Confidence,
			Price:      fs.Price,
			Timestamp:  time.Now(),
		}})
	}
	if err := scanner.Err(); err != nil {
		logger.Warn().Err(err).Msg("signal feed closed with error")
	}
}
