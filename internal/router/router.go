package router

import (
	"fmt"
	"strings"

	"gridos/internal/core"
	"gridos/internal/logging"
	"gridos/internal/queue"
)

// Handler receives a dispatched packet. A non-nil error (or a panic) is a
// handler fault: counted, logged, and isolated from other handlers.
type Handler func(ctx *core.TickContext, pkt Packet) error

// Transport is the boundary to the external store-and-forward message bus.
// Delivery guarantees are the adapter's own (best-effort, unordered); the
// router adds no reliability layer on top.
type Transport interface {
	// Configure sets the tag the adapter listens on.
	Configure(tag string) error
	// Receive returns one pending inbound packet, or false when drained.
	Receive() (Packet, bool)
	// Send hands one outbound packet to the adapter for transmission.
	Send(pkt Packet) error
}

// Stats is a snapshot of the router's accumulated counters.
type Stats struct {
	MsgIn         uint64
	MsgOut        uint64
	Dropped       uint64
	HandlerFaults uint64
	SendFaults    uint64
	Unrouted      uint64
}

type registration struct {
	pattern string // exact endpoint, or prefix when wildcard
	wild    bool
	handler Handler
}

// matches implements the endpoint matching rule: a registration is either an
// exact endpoint string, or a pattern with a trailing "*" that matches every
// endpoint sharing the prefix before the star ("nav.*" matches
// "nav.cruise.set"; a bare "*" matches everything). Matching handlers all
// fire, in registration order.
func (r *registration) matches(endpoint string) bool {
	if r.wild {
		return strings.HasPrefix(endpoint, r.pattern)
	}
	return r.pattern == endpoint
}

// Router owns the local and outbound bounded queues and dispatches packets
// to subscribed endpoint handlers. Single-threaded, like the rest of the
// kernel: all calls happen inside the host tick.
type Router struct {
	tracker   *core.Tracker
	transport Transport
	tag       string

	local    *queue.Ring[Packet]
	outbound *queue.Ring[Packet]
	regs     []registration

	msgIn         uint64
	msgOut        uint64
	handlerFaults uint64
	sendFaults    uint64
	unrouted      uint64
}

// New builds a router. transport may be nil: outbound packets then stay
// queued (and eventually age out via drop-oldest), which is the correct
// degraded mode for a grid with no antenna.
func New(tracker *core.Tracker, transport Transport, localCap, outboundCap int) *Router {
	return &Router{
		tracker:   tracker,
		transport: transport,
		local:     queue.NewRing[Packet](localCap),
		outbound:  queue.NewRing[Packet](outboundCap),
	}
}

// Configure sets the transport tag. Idempotent; reconfiguring with the same
// tag is a no-op.
func (r *Router) Configure(tag string) error {
	if tag == r.tag {
		return nil
	}
	r.tag = tag
	if r.transport != nil {
		if err := r.transport.Configure(tag); err != nil {
			return fmt.Errorf("configure transport: %w", err)
		}
	}
	logging.Get(logging.CategoryRouter).Infow("router configured", "tag", tag)
	return nil
}

// Subscribe registers a handler for an endpoint or a trailing-"*" wildcard
// pattern. Registration happens at module init; the set is never mutated
// concurrently with dispatch.
func (r *Router) Subscribe(pattern string, h Handler) error {
	if pattern == "" {
		return fmt.Errorf("subscribe: empty endpoint pattern")
	}
	if h == nil {
		return fmt.Errorf("subscribe: nil handler for %q", pattern)
	}
	reg := registration{pattern: pattern, handler: h}
	if strings.HasSuffix(pattern, "*") {
		reg.wild = true
		reg.pattern = strings.TrimSuffix(pattern, "*")
	} else if strings.Contains(pattern, "*") {
		return fmt.Errorf("subscribe: %q: wildcard only allowed at the end", pattern)
	}
	r.regs = append(r.regs, reg)
	return nil
}

// EnqueueLocal queues a packet for in-process dispatch. Never blocks; when
// the queue is full the oldest packet is dropped.
func (r *Router) EnqueueLocal(pkt Packet) {
	r.local.Push(clampPayload(pkt))
	r.msgIn++
}

// EnqueueOutbound queues a packet for the external transport.
func (r *Router) EnqueueOutbound(pkt Packet) {
	r.outbound.Push(clampPayload(pkt))
}

// Route queues by destination scope: host-scoped packets go to the local
// queue and are never forwarded; LAN/WAN packets go outbound.
func (r *Router) Route(pkt Packet) {
	if pkt.To.Scope == ScopeHost {
		r.EnqueueLocal(pkt)
		return
	}
	r.EnqueueOutbound(pkt)
}

// Pump performs one budgeted pass of the message plane, in order:
//
//  1. drain inbound packets from the transport into the local queue,
//  2. dispatch the local queue to matching handlers,
//  3. flush the outbound queue to the transport.
//
// The budget is checked at every message boundary; reaching the soft limit
// leaves the remainder queued for a later Pump, and crossing the hard limit
// aborts immediately.
func (r *Router) Pump(ctx *core.TickContext) {
	if r.transport != nil {
		for !r.tracker.ShouldYield(ctx) {
			pkt, ok := r.transport.Receive()
			if !ok {
				break
			}
			r.EnqueueLocal(pkt)
		}
	}
	if r.tracker.OverHard(ctx) {
		return
	}

	for !r.tracker.ShouldYield(ctx) {
		pkt, ok := r.local.Pop()
		if !ok {
			break
		}
		r.dispatch(ctx, pkt)
	}
	if r.tracker.OverHard(ctx) {
		return
	}

	if r.transport == nil {
		return
	}
	for !r.tracker.ShouldYield(ctx) {
		pkt, ok := r.outbound.Pop()
		if !ok {
			break
		}
		if err := r.transport.Send(pkt); err != nil {
			r.sendFaults++
			logging.Get(logging.CategoryRouter).Warnw("transport send failed",
				"endpoint", pkt.Endpoint, "to", pkt.To.String(), "error", err)
			continue
		}
		r.msgOut++
	}
}

// dispatch fans a packet out to every matching registration. A fault in one
// handler never prevents delivery to the rest.
func (r *Router) dispatch(ctx *core.TickContext, pkt Packet) {
	matched := false
	for i := range r.regs {
		reg := &r.regs[i]
		if !reg.matches(pkt.Endpoint) {
			continue
		}
		matched = true
		if err := r.invoke(ctx, reg.handler, pkt); err != nil {
			r.handlerFaults++
			logging.Get(logging.CategoryRouter).Warnw("handler fault",
				"endpoint", pkt.Endpoint, "error", err)
		}
	}
	if !matched {
		r.unrouted++
	}
}

func (r *Router) invoke(ctx *core.TickContext, h Handler, pkt Packet) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h(ctx, pkt)
}

// PendingLocal returns the number of packets awaiting dispatch.
func (r *Router) PendingLocal() int { return r.local.Len() }

// PendingOutbound returns the number of packets awaiting transmission.
func (r *Router) PendingOutbound() int { return r.outbound.Len() }

// Stats returns a snapshot of the accumulated counters. Dropped aggregates
// both queues' overflow evictions.
func (r *Router) Stats() Stats {
	return Stats{
		MsgIn:         r.msgIn,
		MsgOut:        r.msgOut,
		Dropped:       r.local.Dropped() + r.outbound.Dropped(),
		HandlerFaults: r.handlerFaults,
		SendFaults:    r.sendFaults,
		Unrouted:      r.unrouted,
	}
}
