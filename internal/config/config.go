// Package config loads gridos configuration: per-tick budgets, queue
// capacities, transport settings. Values are read once at start and treated
// as immutable; the optional watcher delivers whole replacement snapshots
// that the host applies only at a tick boundary.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"gridos/internal/core"
	"gridos/internal/kernel"
)

// Config is the root configuration document.
type Config struct {
	Name      string          `yaml:"name"`
	Budget    BudgetConfig    `yaml:"budget"`
	Queues    QueuesConfig    `yaml:"queues"`
	Transport TransportConfig `yaml:"transport"`
	Status    StatusConfig    `yaml:"status"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BudgetConfig sets the per-tick limits.
type BudgetConfig struct {
	InstructionsSoft int `yaml:"instructions_soft"`
	InstructionsHard int `yaml:"instructions_hard"`
	MaxCallDepth     int `yaml:"max_call_depth"`
}

// QueuesConfig sets fixed capacities. Everything is pre-sized at start; none
// of these grow at runtime.
type QueuesConfig struct {
	Local         int `yaml:"local"`
	Outbound      int `yaml:"outbound"`
	MaxCoroutines int `yaml:"max_coroutines"`
}

// TransportConfig configures the external message bus adapter.
type TransportConfig struct {
	Tag  string `yaml:"tag"`
	Path string `yaml:"path"` // sqlite store-and-forward database; empty = no external transport
}

// StatusConfig controls the externally visible status text.
type StatusConfig struct {
	Every int `yaml:"every"` // refresh every N ticks
}

// LoggingConfig controls the logging facade.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration for a small grid script.
func Default() Config {
	return Config{
		Name: "gridos",
		Budget: BudgetConfig{
			InstructionsSoft: 30000,
			InstructionsHard: 45000,
			MaxCallDepth:     100,
		},
		Queues: QueuesConfig{
			Local:         64,
			Outbound:      64,
			MaxCoroutines: 64,
		},
		Transport: TransportConfig{
			Tag: "GRIDOS",
		},
		Status: StatusConfig{
			Every: 30,
		},
	}
}

// Load reads a YAML file over the defaults, applies GRIDOS_* environment
// overrides and validates. A missing file returns defaults (plus overrides).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployments tweak hot settings without editing the
// file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRIDOS_TRANSPORT_TAG"); v != "" {
		c.Transport.Tag = v
	}
	if v := os.Getenv("GRIDOS_TRANSPORT_PATH"); v != "" {
		c.Transport.Path = v
	}
	if v, ok := envInt("GRIDOS_BUDGET_SOFT"); ok {
		c.Budget.InstructionsSoft = v
	}
	if v, ok := envInt("GRIDOS_BUDGET_HARD"); ok {
		c.Budget.InstructionsHard = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the invariants the kernel depends on.
func (c *Config) Validate() error {
	if err := c.coreBudget().Validate(); err != nil {
		return err
	}
	if c.Queues.Local < 1 || c.Queues.Outbound < 1 {
		return fmt.Errorf("config: queue capacities must be >= 1")
	}
	if c.Queues.MaxCoroutines < 1 {
		return fmt.Errorf("config: max_coroutines must be >= 1")
	}
	if c.Transport.Tag == "" {
		return fmt.Errorf("config: transport tag must not be empty")
	}
	if c.Status.Every < 0 {
		return fmt.Errorf("config: status every must be >= 0")
	}
	return nil
}

func (c *Config) coreBudget() core.Budget {
	return core.Budget{
		InstructionsSoft: c.Budget.InstructionsSoft,
		InstructionsHard: c.Budget.InstructionsHard,
		MaxCallDepth:     c.Budget.MaxCallDepth,
	}
}

// Kernel maps the document onto the kernel's construction config.
func (c *Config) Kernel() kernel.Config {
	return kernel.Config{
		Budget:           c.coreBudget(),
		MaxCoroutines:    c.Queues.MaxCoroutines,
		LocalQueueCap:    c.Queues.Local,
		OutboundQueueCap: c.Queues.Outbound,
		TransportTag:     c.Transport.Tag,
		StatusEvery:      uint64(c.Status.Every),
	}
}
