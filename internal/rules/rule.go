// Package rules provides the rule model and the evaluation engine that fires
// trading actions under priority, cooldown and execution-limit constraints.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Context is the evaluation context handed to conditions and actions. Actions
// may write into it for downstream actions within the same evaluation.
type Context map[string]any

// Condition is a pure predicate over the evaluation context.
type Condition interface {
	Evaluate(ctx context.Context, ec Context) (bool, error)
}

// Action is a side-effecting operation invoked when a rule fires.
type Action interface {
	Execute(ctx context.Context, ec Context) error
}

// Rule couples a condition to an action under execution constraints. Runtime
// state is guarded by a per-rule mutex so the same rule is never evaluated
// concurrently with itself while distinct rules stay independent.
type Rule struct {
	ID          string
	Name        string
	Description string
	Symbol      string // associated symbol, used for scoped cooldown resets
	Enabled     bool
	Condition   Condition
	Action      Action
	Priority    int           // higher runs first
	Cooldown    time.Duration // 0 = no cooldown
	MaxPerDay   int           // 0 = no daily limit

	Local Context // rule-local context merged into every evaluation

	mu            sync.Mutex
	lastExecution time.Time
	dailyCount    int
	dailyDate     time.Time
	totalCount    int
}

// TryLock attempts to take the rule's evaluation lock.
func (r *Rule) TryLock() bool { return r.mu.TryLock() }

// Unlock releases the rule's evaluation lock.
func (r *Rule) Unlock() { r.mu.Unlock() }

// gate reports whether the rule may execute now. The caller must hold the
// rule lock.
func (r *Rule) gate(now time.Time) (bool, string) {
	if !r.Enabled {
		return false, "disabled"
	}
	if r.Cooldown > 0 && !r.lastExecution.IsZero() {
		if elapsed := now.Sub(r.lastExecution); elapsed < r.Cooldown {
			return false, fmt.Sprintf("cooldown active, %s remaining", r.Cooldown-elapsed)
		}
	}
	if r.MaxPerDay > 0 && sameDay(r.dailyDate, now) && r.dailyCount >= r.MaxPerDay {
		return false, fmt.Sprintf("daily limit reached: %d executions", r.dailyCount)
	}
	return true, ""
}

// markExecuted updates runtime counters after a successful execution. The
// caller must hold the rule lock.
func (r *Rule) markExecuted(now time.Time) {
	if !sameDay(r.dailyDate, now) {
		r.dailyCount = 0
		r.dailyDate = now
	}
	r.lastExecution = now
	r.dailyCount++
	r.totalCount++
}

// ResetCooldown clears the cooldown timer so the next trigger is not blocked.
func (r *Rule) ResetCooldown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastExecution = time.Time{}
}

// LastExecution returns the time of the last successful execution.
func (r *Rule) LastExecution() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastExecution
}

// Counts returns the daily and total execution counts.
func (r *Rule) Counts() (daily, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dailyCount, r.totalCount
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
