package core

import "fmt"

// StepKind classifies what a coroutine wants after a resume.
type StepKind uint8

const (
	// StepContinue - keep running within the same budget window. The
	// scheduler re-invokes immediately while the soft budget allows.
	StepContinue StepKind = iota
	// StepYield - run again next tick.
	StepYield
	// StepSleep - run again after Step.Ticks ticks.
	StepSleep
	// StepDone - permanently complete; the scheduler removes the coroutine.
	StepDone
)

func (k StepKind) String() string {
	switch k {
	case StepContinue:
		return "continue"
	case StepYield:
		return "yield"
	case StepSleep:
		return "sleep"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Step is the disposition a coroutine returns from Resume.
type Step struct {
	Kind  StepKind
	Ticks int // sleep duration; meaningful only for StepSleep
}

// Continue keeps running within the same tick while budget allows.
func Continue() Step { return Step{Kind: StepContinue} }

// Yield resumes on the next tick.
func Yield() Step { return Step{Kind: StepYield} }

// Sleep resumes after n ticks. n < 1 is treated as 1.
func Sleep(n int) Step {
	if n < 1 {
		n = 1
	}
	return Step{Kind: StepSleep, Ticks: n}
}

// Done completes the coroutine.
func Done() Step { return Step{Kind: StepDone} }

// Coroutine is a resumable unit of sliced work. Each Resume call must do a
// small bounded slice (one block scanned, one item processed) and report how
// it wants to proceed. A non-nil error is a fault: the scheduler removes the
// coroutine and increments the fault counter. Panics escaping Resume are
// recovered at the scheduler boundary and treated the same way.
//
// Coroutines must not retain ctx beyond the current call; the kernel reuses
// the context value across ticks.
type Coroutine interface {
	Resume(ctx *TickContext) (Step, error)
}

// CoroutineFunc adapts a plain function to the Coroutine interface.
type CoroutineFunc func(ctx *TickContext) (Step, error)

// Resume implements Coroutine.
func (f CoroutineFunc) Resume(ctx *TickContext) (Step, error) { return f(ctx) }
