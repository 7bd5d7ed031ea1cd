// Package logging provides the categorized logging facade for gridos.
// Every subsystem logs through a per-category *zap.SugaredLogger so log
// volume can be filtered per subsystem without threading logger instances
// through the kernel. Hot paths (per-message dispatch, per-resume) must not
// log; the facade is for lifecycle events and fault reporting.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup, config load, module init
	CategoryKernel    Category = "kernel"    // tick orchestration, top-level faults
	CategorySched     Category = "sched"     // scheduler lifecycle, coroutine faults
	CategoryRouter    Category = "router"    // routing lifecycle, handler faults
	CategoryTransport Category = "transport" // transport adapters
	CategoryConfig    Category = "config"    // config reload/watch
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = map[Category]*zap.SugaredLogger{}
)

// Init installs the root logger. Call once at startup before any kernel
// construction; until then the facade is a no-op. Verbose lowers the level
// to debug.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	SetRoot(logger)
	return nil
}

// SetRoot replaces the root logger. Tests use this with zaptest or a nop
// logger; SetRoot(nil) silences the facade.
func SetRoot(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	root = logger
	loggers = map[Category]*zap.SugaredLogger{}
}

// Get returns the sugared logger for a category.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := root.Named(string(cat)).Sugar()
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Errors from Sync are ignorable on
// shutdown (stderr is not always syncable).
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
