// Package host provides a simulated tick driver for running the kernel
// outside the game: fake instruction/depth counters that script code charges
// explicitly, and a wall-clock loop that calls Kernel.Tick the way the game
// host does. Used by the CLI soak runner and by tests.
package host

import (
	"context"
	"time"

	"gridos/internal/core"
	"gridos/internal/kernel"
)

// Counters implements core.CounterSource. The real host bills executed
// instructions automatically; here simulated work calls Charge. The driver
// resets the instruction count at the start of every tick, mirroring the
// game.
type Counters struct {
	instructions int
	depth        int
}

// InstructionCount returns the instructions charged this tick.
func (c *Counters) InstructionCount() int { return c.instructions }

// CallDepth returns the current simulated call-chain depth.
func (c *Counters) CallDepth() int { return c.depth }

// Charge bills n instructions against the current tick.
func (c *Counters) Charge(n int) { c.instructions += n }

// EnterCall/LeaveCall bracket a simulated nested call.
func (c *Counters) EnterCall() { c.depth++ }
func (c *Counters) LeaveCall() {
	if c.depth > 0 {
		c.depth--
	}
}

// ResetTick clears the per-tick instruction count.
func (c *Counters) ResetTick() { c.instructions = 0 }

// Driver calls Kernel.Tick on a fixed cadence. The kernel itself stays
// single-threaded: only the driver goroutine ever touches it.
type Driver struct {
	Kernel   *kernel.Kernel
	Counters *Counters
	Interval time.Duration

	// OnTick, when set, runs on the driver goroutine after every kernel
	// tick. This is the only safe place for host-side code to read kernel
	// state while the driver runs.
	OnTick func(tick uint64)
}

// Run ticks the kernel until ctx is cancelled or maxTicks ticks have run
// (0 = unbounded). Returns the number of ticks driven.
func (d *Driver) Run(ctx context.Context, maxTicks uint64) (uint64, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond // ~60 ticks/second, the game cadence
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var ticks uint64
	for {
		select {
		case <-ctx.Done():
			return ticks, ctx.Err()
		case <-ticker.C:
			d.Counters.ResetTick()
			d.Kernel.Tick(d.source(ticks), "")
			ticks++
			if d.OnTick != nil {
				d.OnTick(ticks)
			}
			if maxTicks > 0 && ticks >= maxTicks {
				return ticks, nil
			}
		}
	}
}

// source mirrors the game's cadence tags: every 100th tick reports as the
// slow cadence, every 10th as the medium one.
func (d *Driver) source(tick uint64) core.UpdateSource {
	switch {
	case tick%100 == 0:
		return core.SourceTick100
	case tick%10 == 0:
		return core.SourceTick10
	default:
		return core.SourceTick1
	}
}
