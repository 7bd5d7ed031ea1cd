// Package kernel composes the tick orchestrator: it owns the budget tracker,
// the coroutine scheduler and the message router, and drives them in a fixed
// order once per host tick. One Kernel per script instance; construct it
// explicitly so tests can run several side by side.
package kernel

import (
	"fmt"
	"strings"
	"time"

	"gridos/internal/core"
	"gridos/internal/logging"
	"gridos/internal/router"
)

// Config holds the kernel's construction-time settings, sourced from the
// configuration layer and immutable afterwards.
type Config struct {
	Budget           core.Budget
	MaxCoroutines    int
	LocalQueueCap    int
	OutboundQueueCap int
	TransportTag     string
	StatusEvery      uint64 // refresh status text every N ticks
}

// DefaultConfig returns conservative defaults for a small grid script.
func DefaultConfig() Config {
	return Config{
		Budget:           core.Budget{InstructionsSoft: 30000, InstructionsHard: 45000, MaxCallDepth: 100},
		MaxCoroutines:    64,
		LocalQueueCap:    64,
		OutboundQueueCap: 64,
		TransportTag:     "GRIDOS",
		StatusEvery:      30,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if c.MaxCoroutines < 1 {
		return fmt.Errorf("kernel: max coroutines must be >= 1, got %d", c.MaxCoroutines)
	}
	if c.LocalQueueCap < 1 || c.OutboundQueueCap < 1 {
		return fmt.Errorf("kernel: queue capacities must be >= 1")
	}
	return nil
}

// Registrar is the capability handed to a module's Init hook. It is only
// valid during Init.
type Registrar interface {
	// Subscribe routes matching packets to the handler; this is the module's
	// message-received hook. Patterns follow the router's trailing-"*" rule.
	Subscribe(pattern string, h router.Handler) error
	// Spawn submits a coroutine to the scheduler.
	Spawn(co core.Coroutine) core.CoroutineID
}

// Module is the kernel's outward-facing extension contract. Init runs once
// at Start; Tick runs every host tick and must stay lightweight. Anything
// heavier belongs in a coroutine.
type Module interface {
	Name() string
	Init(reg Registrar) error
	Tick(ctx *core.TickContext)
	Status() string
}

// Stats aggregates the externally visible counters, reset at Start.
type Stats struct {
	Tick       uint64
	LastTic    int // instruction count observed at the end of the last tick
	MaxTic     int
	LastDepth  int
	MaxDepth   int
	Active     int
	Yields     uint64
	CoFaults   uint64
	Completed  uint64
	MsgIn      uint64
	MsgOut     uint64
	Dropped    uint64
	HandlerErr uint64
	ModuleErr  uint64
	TopFaults  uint64
	HardSkips  uint64
}

// Kernel is the tick orchestrator.
type Kernel struct {
	cfg      Config
	counters core.CounterSource
	tracker  *core.Tracker
	sched    *core.Scheduler
	router   *router.Router
	modules  []Module

	ctx     core.TickContext
	tick    uint64
	started bool

	lastTic   int
	maxTic    int
	lastDepth int
	maxDepth  int
	moduleErr uint64
	topFaults uint64
	hardSkips uint64

	statusText string
	lastFault  string
}

// New builds a kernel. transport may be nil for a grid without an antenna.
func New(cfg Config, counters core.CounterSource, transport router.Transport) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tracker := core.NewTracker(cfg.Budget)
	k := &Kernel{
		cfg:      cfg,
		counters: counters,
		tracker:  tracker,
		sched:    core.NewScheduler(tracker, cfg.MaxCoroutines),
		router:   router.New(tracker, transport, cfg.LocalQueueCap, cfg.OutboundQueueCap),
	}
	k.ctx = *core.NewTickContext(0, core.SourceNone, "", time.Time{}, counters, tracker)
	return k, nil
}

// Register adds a module. Must be called before Start; registration order is
// the per-tick hook order.
func (k *Kernel) Register(m Module) error {
	if k.started {
		return fmt.Errorf("kernel: register %q after start", m.Name())
	}
	k.modules = append(k.modules, m)
	return nil
}

// Router exposes the message plane to host-side glue (demo modules enqueue
// through the registrar during ticks; the host uses this for injection).
func (k *Kernel) Router() *router.Router { return k.router }

// Spawn submits a coroutine outside module Init (host-side glue, tests).
func (k *Kernel) Spawn(co core.Coroutine) core.CoroutineID { return k.sched.Start(co) }

// StopCoroutine cancels a coroutine. Synchronous, immediate, idempotent.
func (k *Kernel) StopCoroutine(id core.CoroutineID) { k.sched.Stop(id) }

// Start configures the router tag and runs every module's Init hook with a
// registrar capability. A module failing Init aborts startup: a grid script
// with a broken module should not come up half-wired.
func (k *Kernel) Start() error {
	if k.started {
		return fmt.Errorf("kernel: already started")
	}
	log := logging.Get(logging.CategoryBoot)
	if err := k.router.Configure(k.cfg.TransportTag); err != nil {
		return err
	}
	reg := &registrar{k: k}
	for _, m := range k.modules {
		if err := m.Init(reg); err != nil {
			return fmt.Errorf("init module %q: %w", m.Name(), err)
		}
		log.Infow("module initialized", "module", m.Name())
	}
	k.started = true
	log.Infow("kernel started",
		"modules", len(k.modules),
		"soft", k.cfg.Budget.InstructionsSoft,
		"hard", k.cfg.Budget.InstructionsHard)
	return nil
}

// Tick is the single entry point the host calls once per simulation step.
// Fixed sequence: capture context, defensive hard check, pump the router,
// run the scheduler, tick the modules, refresh status periodically. Nothing
// escaping this method may crash the host.
func (k *Kernel) Tick(source core.UpdateSource, argument string) {
	defer k.recoverTop()

	k.tick++
	k.ctx.Reset(k.tick, source, argument, time.Now().UTC())
	ctx := &k.ctx

	if k.tracker.OverHard(ctx) {
		// Should not happen at entry; the host resets the counter each tick.
		k.hardSkips++
		logging.Get(logging.CategoryKernel).Warnw("hard budget exceeded at tick entry",
			"tick", k.tick, "instructions", ctx.InstructionCount())
		k.observe(ctx)
		return
	}

	k.router.Pump(ctx)

	if !k.tracker.OverHard(ctx) {
		k.sched.Tick(ctx)
	}

	for _, m := range k.modules {
		if k.tracker.OverHard(ctx) {
			break
		}
		k.tickModule(ctx, m)
	}

	if k.cfg.StatusEvery > 0 && k.tick%k.cfg.StatusEvery == 0 {
		k.refreshStatus()
	}
	k.observe(ctx)
}

// tickModule isolates one module's per-tick hook; a fault skips the module
// for this tick only.
func (k *Kernel) tickModule(ctx *core.TickContext, m Module) {
	defer func() {
		if r := recover(); r != nil {
			k.moduleErr++
			k.lastFault = fmt.Sprintf("%s: %v", m.Name(), r)
			logging.Get(logging.CategoryKernel).Warnw("module tick fault",
				"module", m.Name(), "tick", ctx.Tick, "panic", r)
		}
	}()
	m.Tick(ctx)
}

// recoverTop is the outermost boundary: whatever slipped through becomes a
// one-line diagnostic and the next tick starts clean.
func (k *Kernel) recoverTop() {
	if r := recover(); r != nil {
		k.topFaults++
		k.lastFault = fmt.Sprintf("tick %d: %v", k.tick, r)
		logging.Get(logging.CategoryKernel).Errorw("top-level fault", "tick", k.tick, "panic", r)
	}
}

// observe records end-of-tick instruction/depth highs.
func (k *Kernel) observe(ctx *core.TickContext) {
	k.lastTic = ctx.InstructionCount()
	if k.lastTic > k.maxTic {
		k.maxTic = k.lastTic
	}
	k.lastDepth = ctx.CallDepth()
	if k.lastDepth > k.maxDepth {
		k.maxDepth = k.lastDepth
	}
}

// Stats returns a snapshot of the aggregated counters.
func (k *Kernel) Stats() Stats {
	ss := k.sched.Stats()
	rs := k.router.Stats()
	return Stats{
		Tick:       k.tick,
		LastTic:    k.lastTic,
		MaxTic:     k.maxTic,
		LastDepth:  k.lastDepth,
		MaxDepth:   k.maxDepth,
		Active:     ss.Active,
		Yields:     ss.Yields,
		CoFaults:   ss.Faults,
		Completed:  ss.Completed,
		MsgIn:      rs.MsgIn,
		MsgOut:     rs.MsgOut,
		Dropped:    rs.Dropped,
		HandlerErr: rs.HandlerFaults,
		ModuleErr:  k.moduleErr,
		TopFaults:  k.topFaults,
		HardSkips:  k.hardSkips,
	}
}

// StatusText returns the externally visible status block, refreshed every
// StatusEvery ticks.
func (k *Kernel) StatusText() string { return k.statusText }

func (k *Kernel) refreshStatus() {
	st := k.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "gridos tick=%d tic=%d/%d depth=%d/%d\n",
		st.Tick, st.LastTic, st.MaxTic, st.LastDepth, st.MaxDepth)
	fmt.Fprintf(&b, "co: active=%d yields=%d done=%d faults=%d\n",
		st.Active, st.Yields, st.Completed, st.CoFaults)
	fmt.Fprintf(&b, "msg: in=%d out=%d dropped=%d faults=%d\n",
		st.MsgIn, st.MsgOut, st.Dropped, st.HandlerErr)
	if k.lastFault != "" {
		fmt.Fprintf(&b, "last fault: %s\n", k.lastFault)
	}
	for _, m := range k.modules {
		if s := k.moduleStatus(m); s != "" {
			fmt.Fprintf(&b, "[%s] %s\n", m.Name(), s)
		}
	}
	k.statusText = b.String()
}

// moduleStatus guards the status hook like every other module boundary.
func (k *Kernel) moduleStatus(m Module) (s string) {
	defer func() {
		if r := recover(); r != nil {
			k.moduleErr++
			s = fmt.Sprintf("status fault: %v", r)
		}
	}()
	return m.Status()
}

// registrar implements Registrar for module Init.
type registrar struct {
	k *Kernel
}

func (r *registrar) Subscribe(pattern string, h router.Handler) error {
	return r.k.router.Subscribe(pattern, h)
}

func (r *registrar) Spawn(co core.Coroutine) core.CoroutineID {
	return r.k.sched.Start(co)
}
