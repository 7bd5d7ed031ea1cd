package core

import "time"

// UpdateSource tags which host cadence triggered a tick.
type UpdateSource uint8

const (
	SourceNone    UpdateSource = iota
	SourceTrigger              // explicit run with an argument
	SourceOnce                 // one-shot scheduled update
	SourceTick1                // every tick
	SourceTick10               // every 10th tick
	SourceTick100              // every 100th tick
)

func (s UpdateSource) String() string {
	switch s {
	case SourceTrigger:
		return "trigger"
	case SourceOnce:
		return "once"
	case SourceTick1:
		return "tick1"
	case SourceTick10:
		return "tick10"
	case SourceTick100:
		return "tick100"
	default:
		return "none"
	}
}

// CounterSource exposes the host's live per-tick counters. The host resets
// the instruction counter at the start of every tick; within a tick both
// values are monotonic. The kernel only ever reads them.
type CounterSource interface {
	InstructionCount() int
	CallDepth() int
}

// TickContext carries the per-tick state handed to every subsystem, coroutine
// and handler. The metadata fields (Tick, Source, Argument, Now) are fixed
// for the duration of the tick; the instruction/depth counters are live reads
// from the host so that budget checks observe work as it happens.
//
// The kernel reuses one TickContext value across ticks. Coroutines and
// handlers must not retain the pointer beyond the current call.
type TickContext struct {
	Tick     uint64
	Source   UpdateSource
	Argument string
	Now      time.Time

	counters CounterSource
	tracker  *Tracker
}

// NewTickContext builds a context for a single tick. The kernel calls Reset
// on a long-lived value instead; this constructor exists for tests and for
// driving subsystems without a full kernel.
func NewTickContext(tick uint64, source UpdateSource, argument string, now time.Time, counters CounterSource, tracker *Tracker) *TickContext {
	ctx := &TickContext{counters: counters, tracker: tracker}
	ctx.Reset(tick, source, argument, now)
	return ctx
}

// Reset re-points the context at a new tick without allocating.
func (c *TickContext) Reset(tick uint64, source UpdateSource, argument string, now time.Time) {
	c.Tick = tick
	c.Source = source
	c.Argument = argument
	c.Now = now
}

// InstructionCount returns the live instruction count for this tick.
func (c *TickContext) InstructionCount() int {
	if c.counters == nil {
		return 0
	}
	return c.counters.InstructionCount()
}

// CallDepth returns the live call-chain depth.
func (c *TickContext) CallDepth() int {
	if c.counters == nil {
		return 0
	}
	return c.counters.CallDepth()
}

// ShouldYield reports whether the current work slice should stop at the next
// boundary. Convenience for coroutines that want to end a slice early.
func (c *TickContext) ShouldYield() bool {
	if c.tracker == nil {
		return false
	}
	return c.tracker.ShouldYield(c)
}

// OverHard reports whether the hard budget is exhausted.
func (c *TickContext) OverHard() bool {
	if c.tracker == nil {
		return false
	}
	return c.tracker.OverHard(c)
}
