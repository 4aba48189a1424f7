// Package logging provides config-driven categorized logging for genrecover.
// Category loggers are backed by a shared zap core. Logging is controlled by
// debug_mode in the logging config - when false, category loggers are no-ops.
package logging

import (
	"fmt"
	"sync"
	"time"

	"genrecover/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, config loading
	CategoryRecovery     Category = "recovery"     // Decision engine branches
	CategoryEmergency    Category = "emergency"    // Raw-text fallback extraction
	CategoryArticulation Category = "articulation" // Structured file extraction
	CategoryServer       Category = "server"       // HTTP service
	CategoryWatch        Category = "watch"        // Buffer stall detection
	CategoryPerformance  Category = "performance"  // Timings
)

// Logger is a category-scoped printf-style logger.
// A Logger with a nil sugar is a no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	root     = zap.NewNop()
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	settings config.LoggingConfig
	configMu sync.RWMutex
)

// Initialize builds the root zap logger from cfg and installs it for all
// category loggers. The returned logger is the root; callers own Sync.
func Initialize(cfg config.LoggingConfig) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	atom := zap.NewAtomicLevelAt(lvl)
	zc.Level = atom
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}

	logger, err := zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	install(logger, atom, cfg)
	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s debug_mode=%v", lvl, cfg.Format, cfg.DebugMode)
	return logger, nil
}

// Use installs an existing zap logger (tests, embedding applications).
func Use(logger *zap.Logger, cfg config.LoggingConfig) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		lvl = zapcore.DebugLevel
	}
	install(logger, zap.NewAtomicLevelAt(lvl), cfg)
}

// Reset drops all category loggers and reverts to a no-op root.
func Reset() {
	install(zap.NewNop(), zap.NewAtomicLevelAt(zapcore.InfoLevel), config.LoggingConfig{})
}

func install(logger *zap.Logger, atom zap.AtomicLevel, cfg config.LoggingConfig) {
	configMu.Lock()
	root = logger
	level = atom
	settings = cfg
	configMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// Root returns the installed root zap logger.
func Root() *zap.Logger {
	configMu.RLock()
	defer configMu.RUnlock()
	return root
}

// SetLevel changes the level at runtime.
func SetLevel(l string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(l)); err != nil {
		return
	}
	configMu.RLock()
	level.SetLevel(lvl)
	configMu.RUnlock()
}

// IsDebugMode returns whether category logging is enabled at all.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return settings.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return settings.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{
		category: category,
		sugar:    Root().Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// WithRequestID creates a request-scoped logger for correlation.
func WithRequestID(category Category, requestID string) *Logger {
	return Get(category).With("request_id", requestID)
}

// Convenience helpers for the hot categories.

func Recovery(format string, args ...interface{}) {
	Get(CategoryRecovery).Info(format, args...)
}

func RecoveryDebug(format string, args ...interface{}) {
	Get(CategoryRecovery).Debug(format, args...)
}

func Emergency(format string, args ...interface{}) {
	Get(CategoryEmergency).Info(format, args...)
}

func EmergencyDebug(format string, args ...interface{}) {
	Get(CategoryEmergency).Debug(format, args...)
}

func ArticulationDebug(format string, args ...interface{}) {
	Get(CategoryArticulation).Debug(format, args...)
}

func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debug(format, args...)
}

func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
