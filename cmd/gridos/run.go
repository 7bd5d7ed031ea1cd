package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gridos/internal/config"
	"gridos/internal/host"
	"gridos/internal/kernel"
	"gridos/internal/logging"
	"gridos/internal/router"
	"gridos/internal/transport"
)

var (
	runTicks    uint64
	runInterval time.Duration
	watchConfig bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the kernel under the simulated tick driver",
	Long: `Builds a kernel from the configuration, registers the demo modules
(beacon telemetry and sliced inventory scanning) and ticks it on the game
cadence. With transport.path set, several gridos processes sharing the same
database exchange packets through the store-and-forward mailbox.`,
	RunE: runKernel,
}

func init() {
	runCmd.Flags().Uint64Var(&runTicks, "ticks", 0, "stop after N ticks (0 = run until interrupted)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 16*time.Millisecond, "tick interval")
	runCmd.Flags().BoolVar(&watchConfig, "watch", false, "watch the config file for changes")
}

func runKernel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var tr router.Transport
	if cfg.Transport.Path != "" {
		store, err := transport.Open(cfg.Transport.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		tr = store
	}

	counters := &host.Counters{}
	k, err := kernel.New(cfg.Kernel(), counters, tr)
	if err != nil {
		return err
	}

	beacon := newBeaconModule(cfg.Name, counters)
	inventory := newInventoryModule(counters)
	beacon.send = k.Router().Route
	inventory.send = k.Router().Route
	for _, m := range []kernel.Module{beacon, inventory} {
		if err := k.Register(m); err != nil {
			return err
		}
	}
	if err := k.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statusEvery := uint64(cfg.Status.Every)
	driver := &host.Driver{
		Kernel:   k,
		Counters: counters,
		Interval: runInterval,
		OnTick: func(tick uint64) {
			if statusEvery > 0 && tick%statusEvery == 0 {
				fmt.Print(renderStatus(k))
			}
		},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel() // a finished driver winds down the watcher too
		ticks, err := driver.Run(ctx, runTicks)
		logging.Get(logging.CategoryKernel).Infow("driver stopped", "ticks", ticks)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if watchConfig {
		g.Go(func() error { return watchConfigFile(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Print(renderStatus(k))
	return nil
}

// watchConfigFile surfaces on-disk config edits. Budgets and capacities are
// fixed at kernel construction, so a change is reported for the next restart
// rather than applied mid-flight.
func watchConfigFile(ctx context.Context) error {
	w, err := config.Watch(configPath)
	if err != nil {
		return err
	}
	defer w.Close()

	log := logging.Get(logging.CategoryConfig)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg := <-w.Updates():
			log.Infow("config changed on disk; restart to apply",
				"tag", cfg.Transport.Tag,
				"soft", cfg.Budget.InstructionsSoft,
				"hard", cfg.Budget.InstructionsHard)
		}
	}
}
