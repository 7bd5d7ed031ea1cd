package core

import (
	"fmt"

	"gridos/internal/logging"
)

// CoroutineID is an opaque handle for a registered coroutine. Zero is never
// a valid id.
type CoroutineID uint64

// SchedulerStats is a snapshot of the scheduler's accumulated counters.
type SchedulerStats struct {
	Active    int
	Yields    uint64
	Completed uint64
	Faults    uint64
	Stopped   uint64
	HardStops uint64
}

type slot struct {
	id   CoroutineID
	co   Coroutine
	wake uint64 // earliest tick at which Resume may be called again
	live bool
}

// Scheduler advances registered coroutines once per host tick, in FIFO
// registration order, while the budget tracker allows. The active set is
// pre-sized; completed coroutines are compacted out in place so the steady
// state allocates nothing.
type Scheduler struct {
	tracker *Tracker
	slots   []slot
	nextID  CoroutineID
	removed int

	yields    uint64
	completed uint64
	faults    uint64
	stopped   uint64
	hardStops uint64
}

// NewScheduler returns a scheduler with room for maxCoroutines before any
// reallocation. Exceeding the pre-size still works; it just allocates.
func NewScheduler(tracker *Tracker, maxCoroutines int) *Scheduler {
	if maxCoroutines < 1 {
		maxCoroutines = 1
	}
	return &Scheduler{
		tracker: tracker,
		slots:   make([]slot, 0, maxCoroutines),
	}
}

// Start registers a coroutine and returns its id. The coroutine becomes
// eligible immediately: if registered mid-tick (from another coroutine or a
// handler) it runs later in the same tick, budget permitting. Never blocks.
func (s *Scheduler) Start(co Coroutine) CoroutineID {
	s.nextID++
	s.slots = append(s.slots, slot{id: s.nextID, co: co, live: true})
	return s.nextID
}

// Stop removes the coroutine if present. Idempotent: stopping a completed or
// unknown id is a no-op.
func (s *Scheduler) Stop(id CoroutineID) {
	for i := range s.slots {
		if s.slots[i].live && s.slots[i].id == id {
			s.slots[i].live = false
			s.slots[i].co = nil
			s.removed++
			s.stopped++
			return
		}
	}
}

// Active returns the number of live coroutines.
func (s *Scheduler) Active() int {
	return len(s.slots) - s.removed
}

// Stats returns a snapshot of the accumulated counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Active:    s.Active(),
		Yields:    s.yields,
		Completed: s.completed,
		Faults:    s.faults,
		Stopped:   s.stopped,
		HardStops: s.hardStops,
	}
}

// Tick advances every coroutine whose resumption tick has arrived, in FIFO
// registration order. A coroutine returning Continue is re-invoked until it
// yields or the soft budget is reached. Reaching the soft budget stops the
// whole loop at a coroutine boundary; crossing the hard budget aborts the
// tick immediately.
func (s *Scheduler) Tick(ctx *TickContext) {
	// len is captured live on purpose: coroutines registered mid-tick are
	// appended and picked up by the same loop, preserving FIFO order.
	for i := 0; i < len(s.slots); i++ {
		if s.tracker.OverHard(ctx) {
			s.hardStops++
			break
		}
		if s.tracker.ShouldYield(ctx) {
			break
		}
		sl := &s.slots[i]
		if !sl.live || sl.wake > ctx.Tick {
			continue
		}
		s.advance(ctx, sl)
	}
	s.compact()
}

// advance resumes one coroutine, re-invoking while it asks to continue and
// budget remains.
func (s *Scheduler) advance(ctx *TickContext, sl *slot) {
	for {
		step, err := s.resume(ctx, sl.co)
		if err != nil {
			logging.Get(logging.CategorySched).Warnw("coroutine fault",
				"id", sl.id, "tick", ctx.Tick, "error", err)
			sl.live = false
			sl.co = nil
			s.removed++
			s.faults++
			return
		}
		switch step.Kind {
		case StepDone:
			sl.live = false
			sl.co = nil
			s.removed++
			s.completed++
			return
		case StepYield:
			sl.wake = ctx.Tick + 1
			s.yields++
			return
		case StepSleep:
			n := step.Ticks
			if n < 1 {
				n = 1
			}
			sl.wake = ctx.Tick + uint64(n)
			s.yields++
			return
		case StepContinue:
			if s.tracker.OverHard(ctx) || s.tracker.ShouldYield(ctx) {
				// Slot stays eligible (wake unchanged) and resumes on a
				// later tick.
				return
			}
		default:
			logging.Get(logging.CategorySched).Warnw("coroutine returned unknown step",
				"id", sl.id, "kind", step.Kind)
			sl.live = false
			sl.co = nil
			s.removed++
			s.faults++
			return
		}
	}
}

// resume isolates a single Resume call so a panicking coroutine cannot take
// down the scheduler.
func (s *Scheduler) resume(ctx *TickContext, co Coroutine) (step Step, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coroutine panic: %v", r)
		}
	}()
	return co.Resume(ctx)
}

// compact shifts live slots left in place, preserving registration order.
// The backing array keeps its capacity, so removal never reallocates.
func (s *Scheduler) compact() {
	if s.removed == 0 {
		return
	}
	kept := s.slots[:0]
	for i := range s.slots {
		if s.slots[i].live {
			kept = append(kept, s.slots[i])
		}
	}
	// Zero the tail so stopped coroutines become collectable.
	for i := len(kept); i < len(s.slots); i++ {
		s.slots[i] = slot{}
	}
	s.slots = kept
	s.removed = 0
}
