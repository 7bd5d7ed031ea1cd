package main

import (
	"fmt"

	"gridos/internal/core"
	"gridos/internal/host"
	"gridos/internal/kernel"
	"gridos/internal/router"
)

// The demo modules exercise the full stack: the beacon emits LAN telemetry
// through the outbound queue and listens for other grids' beacons; the
// inventory module runs a long scan sliced across ticks by the scheduler and
// reports through the local queue.

const (
	beaconEndpoint    = "gridos.beacon.pos"
	inventoryEndpoint = "gridos.inventory.report"

	beaconEveryTicks = 60
	containerCount   = 100
	scanRestTicks    = 120
)

// beaconModule periodically broadcasts this grid's position and keeps a
// count of beacons heard from other grids.
type beaconModule struct {
	gridName string
	counters *host.Counters
	send     func(router.Packet)
	heard    int
	lastSeen string
}

func newBeaconModule(gridName string, counters *host.Counters) *beaconModule {
	return &beaconModule{gridName: gridName, counters: counters}
}

func (m *beaconModule) Name() string { return "beacon" }

func (m *beaconModule) Init(reg kernel.Registrar) error {
	return reg.Subscribe("gridos.beacon.*", func(ctx *core.TickContext, pkt router.Packet) error {
		m.counters.Charge(5)
		m.heard++
		m.lastSeen = pkt.Payload
		return nil
	})
}

func (m *beaconModule) Tick(ctx *core.TickContext) {
	m.counters.Charge(2)
	if ctx.Tick%beaconEveryTicks != 0 || m.send == nil {
		return
	}
	m.counters.Charge(20)
	m.send(router.Packet{
		To:       router.LAN(0), // broadcast
		From:     router.Local(1),
		Endpoint: beaconEndpoint,
		Payload:  fmt.Sprintf("grid=%s;tick=%d", m.gridName, ctx.Tick),
	})
}

func (m *beaconModule) Status() string {
	if m.heard == 0 {
		return "no other grids heard"
	}
	return fmt.Sprintf("heard %d beacons, last: %s", m.heard, m.lastSeen)
}

// inventoryModule scans a simulated bank of cargo containers, one container
// per resume so a full scan never blows the tick budget, then rests and
// repeats.
type inventoryModule struct {
	counters *host.Counters
	send     func(router.Packet)
	scans    int
	lastMass int
}

func newInventoryModule(counters *host.Counters) *inventoryModule {
	return &inventoryModule{counters: counters}
}

func (m *inventoryModule) Name() string { return "inventory" }

func (m *inventoryModule) Init(reg kernel.Registrar) error {
	if err := reg.Subscribe(inventoryEndpoint, func(ctx *core.TickContext, pkt router.Packet) error {
		m.counters.Charge(5)
		m.scans++
		return nil
	}); err != nil {
		return err
	}
	reg.Spawn(m.scanCoroutine())
	return nil
}

func (m *inventoryModule) Tick(ctx *core.TickContext) {
	m.counters.Charge(1)
}

func (m *inventoryModule) Status() string {
	return fmt.Sprintf("scans=%d mass=%dkg", m.scans, m.lastMass)
}

// scanCoroutine is the sliced worker: each resume inspects one container and
// asks to continue, letting the scheduler pack as many container checks into
// a tick as the soft budget allows.
func (m *inventoryModule) scanCoroutine() core.Coroutine {
	container := 0
	mass := 0
	return core.CoroutineFunc(func(ctx *core.TickContext) (core.Step, error) {
		m.counters.Charge(150) // a block lookup is not cheap
		mass += 37 + container%11
		container++
		if container < containerCount {
			return core.Continue(), nil
		}

		m.lastMass = mass
		if m.send != nil {
			m.send(router.Packet{
				To:       router.Local(1),
				From:     router.Local(1),
				Endpoint: inventoryEndpoint,
				Payload:  fmt.Sprintf("containers=%d;mass=%d", container, mass),
			})
		}
		container, mass = 0, 0
		return core.Sleep(scanRestTicks), nil
	})
}
