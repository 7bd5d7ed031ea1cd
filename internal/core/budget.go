// Package core implements the cooperative tick kernel: instruction/depth
// budget tracking, the coroutine contract, and the budget-aware scheduler
// that slices coroutine work across host ticks.
//
// Everything in this package is single-threaded by design. The host calls
// into the kernel once per simulation tick and nothing here may be touched
// from another goroutine; there are deliberately no locks.
package core

import "fmt"

// Budget holds the per-tick resource limits sourced from configuration.
// Immutable for the duration of a tick.
type Budget struct {
	// InstructionsSoft is the instruction count at which cooperative work
	// voluntarily yields. Work stops at the next coroutine/message boundary.
	InstructionsSoft int

	// InstructionsHard is the instruction count at which all remaining work
	// for the tick is aborted. Routine under load, not a failure.
	InstructionsHard int

	// MaxCallDepth is the call-chain depth at which work yields.
	// A value <= 0 disables the depth check.
	MaxCallDepth int
}

// Validate checks the soft <= hard invariant.
func (b Budget) Validate() error {
	if b.InstructionsSoft <= 0 {
		return fmt.Errorf("budget: soft instruction limit must be positive, got %d", b.InstructionsSoft)
	}
	if b.InstructionsHard < b.InstructionsSoft {
		return fmt.Errorf("budget: hard limit %d below soft limit %d", b.InstructionsHard, b.InstructionsSoft)
	}
	return nil
}

// Tracker answers threshold questions against the live host counters.
// It is a pure read of counters and configured limits; no side effects.
type Tracker struct {
	budget Budget
}

// NewTracker returns a tracker enforcing the given budget.
func NewTracker(budget Budget) *Tracker {
	return &Tracker{budget: budget}
}

// Budget returns the configured limits.
func (t *Tracker) Budget() Budget { return t.budget }

// ShouldYield reports whether cooperative work should stop at the next
// boundary: the soft instruction limit or the call-depth limit is reached.
func (t *Tracker) ShouldYield(ctx *TickContext) bool {
	if ctx.InstructionCount() >= t.budget.InstructionsSoft {
		return true
	}
	if t.budget.MaxCallDepth > 0 && ctx.CallDepth() >= t.budget.MaxCallDepth {
		return true
	}
	return false
}

// OverHard reports whether the hard instruction limit is reached. When true
// the caller must stop all further work for this tick immediately.
func (t *Tracker) OverHard(ctx *TickContext) bool {
	return ctx.InstructionCount() >= t.budget.InstructionsHard
}
