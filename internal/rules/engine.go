package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/events"
)

// ExecutionRecorder persists successful rule executions. Optional.
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, ruleID, ruleName, symbol string, at time.Time) error
}

// Engine evaluates registered rules against bus events and on a periodic
// tick. Rules are evaluated in descending priority order; each rule is
// serialized by its own lock, never a global one, so a slow action blocks
// only re-entry of the same rule.
type Engine struct {
	bus          *events.Bus
	logger       zerolog.Logger
	tickInterval time.Duration
	recorder     ExecutionRecorder

	mu     sync.RWMutex
	rules  map[string]*Rule
	global Context
}

// NewEngine creates a rule engine. A zero tickInterval disables the periodic
// tick.
func NewEngine(bus *events.Bus, logger zerolog.Logger, tickInterval time.Duration) *Engine {
	return &Engine{
		bus:          bus,
		logger:       logger,
		tickInterval: tickInterval,
		rules:        make(map[string]*Rule),
		global:       make(Context),
	}
}

// SetRecorder attaches an execution recorder.
func (e *Engine) SetRecorder(r ExecutionRecorder) { e.recorder = r }

// Register adds a rule. Rule ids are unique.
func (e *Engine) Register(rule *Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[rule.ID]; ok {
		return fmt.Errorf("duplicate rule id: %s", rule.ID)
	}
	if rule.Local == nil {
		rule.Local = make(Context)
	}
	e.rules[rule.ID] = rule
	return nil
}

// Rule returns a registered rule by id.
func (e *Engine) Rule(id string) (*Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	return r, ok
}

// Rules returns all rules sorted by descending priority.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	out := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SetGlobal stores a value in the global evaluation context.
func (e *Engine) SetGlobal(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.global[key] = value
}

// Start subscribes to triggering events and launches the periodic tick.
// Only signal, position-closed and tick events trigger evaluation: fill and
// order-status events can be emitted while a symbol lock is held, so a rule
// conditioned on those kinds would never fire and must use the tick or a
// position-state condition instead.
func (e *Engine) Start(ctx context.Context) {
	e.bus.Subscribe(events.KindSignal, func(ev events.Event) {
		e.EvaluateEvent(ctx, ev)
	})
	e.bus.Subscribe(events.KindPositionClosed, func(ev events.Event) {
		e.EvaluateEvent(ctx, ev)
	})

	if e.tickInterval > 0 {
		go func() {
			ticker := time.NewTicker(e.tickInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-ticker.C:
					e.EvaluateEvent(ctx, events.TickEvent{At: t})
				}
			}
		}()
	}
}

// EvaluateEvent runs one evaluation pass over all rules for an event.
func (e *Engine) EvaluateEvent(ctx context.Context, ev events.Event) {
	now := time.Now()
	for _, rule := range e.Rules() {
		if !rule.Enabled {
			continue
		}
		if !rule.TryLock() {
			// The rule is mid-evaluation for an earlier event; a rule is
			// never evaluated concurrently with itself.
			e.logger.Debug().Str("rule", rule.ID).Msg("rule busy, skipped")
			continue
		}
		e.evaluateLocked(ctx, rule, ev, now)
		rule.Unlock()
	}
}

// evaluateLocked evaluates a single rule. The caller holds the rule lock.
func (e *Engine) evaluateLocked(ctx context.Context, rule *Rule, ev events.Event, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("rule", rule.ID).Interface("panic", r).Msg("rule evaluation panicked")
		}
	}()

	ec := e.buildContext(rule, ev, now)

	fired, err := rule.Condition.Evaluate(ctx, ec)
	if err != nil {
		e.logger.Error().Err(err).Str("rule", rule.ID).Msg("condition evaluation failed")
		return
	}
	if !fired {
		return
	}

	if ok, reason := rule.gate(now); !ok {
		e.logger.Debug().Str("rule", rule.ID).Str("reason", reason).Msg("rule gated")
		return
	}

	if err := rule.Action.Execute(ctx, ec); err != nil {
		e.logger.Error().Err(err).Str("rule", rule.ID).Msg("action failed")
		return
	}

	rule.markExecuted(now)
	e.logger.Info().Str("rule", rule.ID).Str("name", rule.Name).Msg("rule executed")

	if e.recorder != nil {
		symbol, _ := ec["symbol"].(string)
		if err := e.recorder.RecordExecution(ctx, rule.ID, rule.Name, symbol, now); err != nil {
			e.logger.Warn().Err(err).Str("rule", rule.ID).Msg("recording execution failed")
		}
	}
}

// buildContext merges the global context, the rule-local context and the
// triggering event into one evaluation context.
func (e *Engine) buildContext(rule *Rule, ev events.Event, now time.Time) Context {
	ec := make(Context)

	e.mu.RLock()
	for k, v := range e.global {
		ec[k] = v
	}
	e.mu.RUnlock()

	for k, v := range rule.Local {
		ec[k] = v
	}

	ec["now"] = now
	if ev != nil {
		ec["event"] = ev
		switch t := ev.(type) {
		case events.SignalEvent:
			ec["symbol"] = t.Signal.Symbol
			ec["signal"] = t.Signal.Side
			ec["confidence"] = t.Signal.Confidence
			if t.Signal.Price > 0 {
				ec["price"] = t.Signal.Price
			}
		case events.PositionClosedEvent:
			ec["symbol"] = t.Symbol
		}
	}
	return ec
}

// ResetCooldown clears the cooldown on one rule.
func (e *Engine) ResetCooldown(ruleID string) error {
	e.mu.RLock()
	rule, ok := e.rules[ruleID]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown rule id: %s", ruleID)
	}
	rule.ResetCooldown()
	return nil
}

// ResetCooldownsForSymbol clears cooldowns on every rule associated with the
// symbol, leaving other symbols' rules untouched.
func (e *Engine) ResetCooldownsForSymbol(symbol string) {
	for _, rule := range e.Rules() {
		if rule.Symbol == symbol {
			rule.ResetCooldown()
			e.logger.Info().Str("rule", rule.ID).Str("symbol", symbol).Msg("cooldown reset")
		}
	}
}
