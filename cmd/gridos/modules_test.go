package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridos/internal/core"
	"gridos/internal/host"
	"gridos/internal/kernel"
	"gridos/internal/router"
	"gridos/internal/transport"
)

func transportPacket(payload string) router.Packet {
	return router.Packet{
		To:       router.LAN(0),
		From:     router.LAN(9),
		Endpoint: beaconEndpoint,
		Payload:  payload,
	}
}

func tickN(k *kernel.Kernel, counters *host.Counters, n int) {
	for i := 0; i < n; i++ {
		counters.ResetTick()
		k.Tick(core.SourceTick1, "")
	}
}

func TestDemoModules_EndToEnd(t *testing.T) {
	local, remote := transport.NewPair(32)
	require.NoError(t, remote.Configure("TEST-NET"))

	cfg := kernel.DefaultConfig()
	cfg.TransportTag = "TEST-NET"
	cfg.StatusEvery = 10

	counters := &host.Counters{}
	k, err := kernel.New(cfg, counters, local)
	require.NoError(t, err)

	beacon := newBeaconModule("test-grid", counters)
	inventory := newInventoryModule(counters)
	beacon.send = k.Router().Route
	inventory.send = k.Router().Route

	require.NoError(t, k.Register(beacon))
	require.NoError(t, k.Register(inventory))
	require.NoError(t, k.Start())

	// One beacon period plus a tick for the outbound flush.
	tickN(k, counters, beaconEveryTicks+1)

	pkt, ok := remote.Receive()
	require.True(t, ok, "beacon broadcast reaches the far end of the transport")
	assert.Equal(t, beaconEndpoint, pkt.Endpoint)
	assert.Contains(t, pkt.Payload, "grid=test-grid")

	// The inventory scan finished within the budget and its report came
	// back around through the local queue.
	assert.GreaterOrEqual(t, inventory.scans, 1)
	assert.Greater(t, inventory.lastMass, 0)

	st := k.Stats()
	assert.Zero(t, st.TopFaults)
	assert.Zero(t, st.ModuleErr)
	assert.Greater(t, st.MsgOut, uint64(0))
}

func TestDemoModules_BeaconHearsRemoteGrid(t *testing.T) {
	local, remote := transport.NewPair(32)
	require.NoError(t, remote.Configure("TEST-NET"))

	cfg := kernel.DefaultConfig()
	cfg.TransportTag = "TEST-NET"

	counters := &host.Counters{}
	k, err := kernel.New(cfg, counters, local)
	require.NoError(t, err)

	beacon := newBeaconModule("listener", counters)
	beacon.send = k.Router().Route
	require.NoError(t, k.Register(beacon))
	require.NoError(t, k.Start())

	// A foreign grid announces itself on the shared channel.
	require.NoError(t, remote.Send(transportPacket("grid=miner-9;tick=5")))

	tickN(k, counters, 1)

	assert.Equal(t, 1, beacon.heard)
	assert.Contains(t, beacon.Status(), "miner-9")
}

func TestRenderStatus_ShowsCounters(t *testing.T) {
	counters := &host.Counters{}
	k, err := kernel.New(kernel.DefaultConfig(), counters, nil)
	require.NoError(t, err)
	require.NoError(t, k.Start())
	tickN(k, counters, 3)

	out := renderStatus(k)
	assert.Contains(t, out, "gridos")
	assert.Contains(t, out, "tick 3")
}
