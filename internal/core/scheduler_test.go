package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepWorker runs for a fixed number of resume calls, charging one
// instruction per call, then completes. It appends its name to trace on
// every resume so tests can assert ordering.
type stepWorker struct {
	name     string
	steps    int
	done     int
	counters *fakeCounters
	trace    *[]string
}

func (w *stepWorker) Resume(ctx *TickContext) (Step, error) {
	w.counters.charge(1)
	w.done++
	if w.trace != nil {
		*w.trace = append(*w.trace, w.name)
	}
	if w.done >= w.steps {
		return Done(), nil
	}
	return Continue(), nil
}

func unlimited() *Tracker {
	return NewTracker(Budget{InstructionsSoft: 1 << 30, InstructionsHard: 1 << 30})
}

func TestScheduler_RunsToCompletion(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	w := &stepWorker{name: "w", steps: 3, counters: counters}
	s.Start(w)
	require.Equal(t, 1, s.Active())

	s.Tick(testContext(1, counters, tracker))

	assert.Equal(t, 3, w.done)
	assert.Equal(t, 0, s.Active())
	assert.Equal(t, uint64(1), s.Stats().Completed)
}

func TestScheduler_FIFOFairness(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	var trace []string
	for _, name := range []string{"a", "b", "c"} {
		w := &stepWorker{name: name, steps: 2, counters: counters, trace: &trace}
		s.Start(w)
	}

	s.Tick(testContext(1, counters, tracker))

	// Each coroutine runs to completion in registration order: a coroutine
	// returning Continue is re-invoked before the next one gets a turn.
	assert.Equal(t, []string{"a", "a", "b", "b", "c", "c"}, trace)
}

func TestScheduler_SoftBudgetSlicing(t *testing.T) {
	// Three coroutines of 5 steps each, soft budget worth 12
	// resume calls. Exactly 12 resumes happen in the first tick; the rest
	// carry over in FIFO order.
	counters := &fakeCounters{}
	tracker := NewTracker(Budget{InstructionsSoft: 12, InstructionsHard: 1 << 30})
	s := NewScheduler(tracker, 8)

	var trace []string
	workers := make([]*stepWorker, 3)
	for i, name := range []string{"a", "b", "c"} {
		workers[i] = &stepWorker{name: name, steps: 5, counters: counters, trace: &trace}
		s.Start(workers[i])
	}

	s.Tick(testContext(1, counters, tracker))
	require.Len(t, trace, 12, "soft budget admits exactly 12 resume calls")
	assert.Equal(t, 5, workers[0].done)
	assert.Equal(t, 5, workers[1].done)
	assert.Equal(t, 2, workers[2].done)
	assert.Equal(t, 1, s.Active())

	counters.resetTick()
	s.Tick(testContext(2, counters, tracker))
	assert.Equal(t, 5, workers[2].done, "remaining steps carry to the next tick")
	assert.Equal(t, 0, s.Active())
}

func TestScheduler_HardBudgetAbortsTick(t *testing.T) {
	counters := &fakeCounters{}
	tracker := NewTracker(Budget{InstructionsSoft: 5, InstructionsHard: 5})
	s := NewScheduler(tracker, 8)

	counters.charge(5) // already over before the tick starts

	w := &stepWorker{name: "w", steps: 1, counters: counters}
	s.Start(w)
	s.Tick(testContext(1, counters, tracker))

	assert.Equal(t, 0, w.done, "no coroutine work once the hard limit is hit")
	assert.Equal(t, uint64(1), s.Stats().HardStops)
}

func TestScheduler_YieldNextTick(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	resumes := 0
	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		resumes++
		if resumes >= 3 {
			return Done(), nil
		}
		return Yield(), nil
	}))

	ctx := testContext(1, counters, tracker)
	s.Tick(ctx)
	assert.Equal(t, 1, resumes, "yield defers to the next tick")

	// Re-running the same tick must not resume again.
	s.Tick(ctx)
	assert.Equal(t, 1, resumes)

	s.Tick(testContext(2, counters, tracker))
	assert.Equal(t, 2, resumes)
	s.Tick(testContext(3, counters, tracker))
	assert.Equal(t, 3, resumes)
	assert.Equal(t, 0, s.Active())
}

func TestScheduler_SleepTicks(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	resumes := 0
	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		resumes++
		if resumes == 2 {
			return Done(), nil
		}
		return Sleep(3), nil
	}))

	for tick := uint64(1); tick <= 3; tick++ {
		s.Tick(testContext(tick, counters, tracker))
	}
	assert.Equal(t, 1, resumes, "sleeping coroutine stays parked for n ticks")

	s.Tick(testContext(4, counters, tracker))
	assert.Equal(t, 2, resumes)
}

func TestScheduler_StopIdempotent(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	resumes := 0
	id := s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		resumes++
		return Yield(), nil
	}))

	// Stop before any tick: the coroutine must never be resumed.
	s.Stop(id)
	assert.NotPanics(t, func() { s.Stop(id) })

	s.Tick(testContext(1, counters, tracker))
	assert.Equal(t, 0, resumes)
	assert.Equal(t, 0, s.Active())

	// Stopping a long-gone id is still a no-op.
	assert.NotPanics(t, func() { s.Stop(id) })
	assert.NotPanics(t, func() { s.Stop(CoroutineID(9999)) })
}

func TestScheduler_FaultIsolation(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		return Step{}, fmt.Errorf("broken gyro")
	}))

	ran := false
	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		ran = true
		return Done(), nil
	}))

	s.Tick(testContext(1, counters, tracker))

	assert.True(t, ran, "a faulting coroutine must not block later registrations")
	assert.Equal(t, uint64(1), s.Stats().Faults)
	assert.Equal(t, 0, s.Active())
}

func TestScheduler_PanicRecovered(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		panic("array index out of range")
	}))
	ran := false
	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		ran = true
		return Done(), nil
	}))

	assert.NotPanics(t, func() {
		s.Tick(testContext(1, counters, tracker))
	})
	assert.True(t, ran)
	assert.Equal(t, uint64(1), s.Stats().Faults)
}

func TestScheduler_SpawnDuringTick(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 8)

	var trace []string
	s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
		trace = append(trace, "parent")
		s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
			trace = append(trace, "child")
			return Done(), nil
		}))
		return Done(), nil
	}))

	s.Tick(testContext(1, counters, tracker))
	assert.Equal(t, []string{"parent", "child"}, trace,
		"mid-tick registrations run later in the same tick, in FIFO order")
}

func TestScheduler_SteadyStateNoGrowth(t *testing.T) {
	counters := &fakeCounters{}
	tracker := unlimited()
	s := NewScheduler(tracker, 4)

	// Churn coroutines through the pre-sized slots; the backing array must
	// never grow past its initial capacity.
	for tick := uint64(1); tick <= 100; tick++ {
		s.Start(CoroutineFunc(func(ctx *TickContext) (Step, error) {
			return Done(), nil
		}))
		s.Tick(testContext(tick, counters, tracker))
		require.Equal(t, 0, s.Active())
		require.LessOrEqual(t, cap(s.slots), 4)
	}
}
