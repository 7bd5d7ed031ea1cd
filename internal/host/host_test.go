package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gridos/internal/core"
	"gridos/internal/kernel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCounters(t *testing.T) {
	c := &Counters{}
	c.Charge(100)
	c.Charge(50)
	assert.Equal(t, 150, c.InstructionCount())

	c.EnterCall()
	c.EnterCall()
	assert.Equal(t, 2, c.CallDepth())
	c.LeaveCall()
	c.LeaveCall()
	c.LeaveCall() // extra leave stays clamped at zero
	assert.Equal(t, 0, c.CallDepth())

	c.ResetTick()
	assert.Equal(t, 0, c.InstructionCount())
}

func TestDriver_RunsRequestedTicks(t *testing.T) {
	counters := &Counters{}
	cfg := kernel.DefaultConfig()
	k, err := kernel.New(cfg, counters, nil)
	require.NoError(t, err)
	require.NoError(t, k.Start())

	resumes := 0
	k.Spawn(core.CoroutineFunc(func(ctx *core.TickContext) (core.Step, error) {
		resumes++
		return core.Yield(), nil
	}))

	d := &Driver{Kernel: k, Counters: counters, Interval: time.Millisecond}
	ticks, err := d.Run(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), ticks)
	assert.Equal(t, 5, resumes, "one resume per tick for a yielding coroutine")
	assert.Equal(t, uint64(5), k.Stats().Tick)
}

func TestDriver_CancelStopsRun(t *testing.T) {
	counters := &Counters{}
	k, err := kernel.New(kernel.DefaultConfig(), counters, nil)
	require.NoError(t, err)
	require.NoError(t, k.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d := &Driver{Kernel: k, Counters: counters, Interval: time.Millisecond}
	_, err = d.Run(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDriver_CadenceTags(t *testing.T) {
	d := &Driver{}
	assert.Equal(t, core.SourceTick100, d.source(0))
	assert.Equal(t, core.SourceTick1, d.source(1))
	assert.Equal(t, core.SourceTick10, d.source(10))
	assert.Equal(t, core.SourceTick100, d.source(200))
}
