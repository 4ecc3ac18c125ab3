// Package logging provides config-driven categorized structured logging for
// docsift. Each subsystem logs through a named child logger so log output can
// be filtered per category. The package defaults to a no-op logger, so
// embedding docsift as a library produces no output unless Init is called.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryPipeline Category = "pipeline" // Stage composition and execution
	CategoryLLM      Category = "llm"      // Model clients and the bounded invoker
	CategoryExtract  Category = "extract"  // Table parsing and theory digest
	CategoryReport   Category = "report"   // Report synthesis
	CategoryAnalyze  Category = "analyze"  // Pipeline assembly and entry points
	CategoryCLI      Category = "cli"      // Command-line surface
)

// Config controls the global logger built by Init.
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	JSONFormat bool   `yaml:"json_format"` // structured JSON instead of console encoding
	Verbose    bool   `yaml:"verbose"`     // force debug level regardless of Level
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.Logger)
)

// Init builds the process-wide logger from config. Safe to call more than
// once; the most recent call wins and existing category loggers are rebuilt
// lazily.
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	if !cfg.JSONFormat {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	root = logger
	loggers = make(map[Category]*zap.Logger)
	mu.Unlock()
	return nil
}

// Get returns the child logger for a category.
func Get(cat Category) *zap.Logger {
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
	l := root.Named(string(cat))
	loggers[cat] = l
	return l
}

// SetLogger replaces the root logger directly. Intended for tests and for
// callers that already own a zap.Logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	root = l
	loggers = make(map[Category]*zap.Logger)
	mu.Unlock()
}

// Sync flushes buffered log entries. Errors from syncing stdout/stderr are
// ignored, matching zap's own guidance.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
