// Package logging provides categorized file-based logging for rechtskern.
// Each category writes to its own file under <dir>/logs/. Logging is
// controlled by the debug flag in the config; when disabled, every logger is
// a no-op and no files are created.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a log stream.
type Category string

const (
	CategoryBoot     Category = "boot"     // process startup, config, registry build
	CategoryShell    Category = "shell"    // tool dispatch, validation failures
	CategoryRegistry Category = "registry" // adapter registration and lookup
	CategoryStore    Category = "store"    // corpus open, probing, queries
	CategoryCitation Category = "citation" // grammar parse outcomes
	CategoryEuRefs   Category = "eurefs"   // EU reference extraction
	CategoryIngest   Category = "ingest"   // ingestion subprocess runs
)

var (
	mu         sync.RWMutex
	loggers    = make(map[Category]*zap.SugaredLogger)
	logsDir    string
	debugMode  bool
	categories map[string]bool
	nop        = zap.NewNop().Sugar()
)

// Options controls logger construction.
type Options struct {
	Dir        string          // base directory; logs go to Dir/logs
	Debug      bool            // master switch; false means all loggers are no-ops
	Categories map[string]bool // optional per-category filter; nil enables all
}

// Init configures the package. Call once at startup; safe to call again in
// tests via Reset.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	debugMode = opts.Debug
	categories = opts.Categories
	if !debugMode {
		return nil
	}
	logsDir = filepath.Join(opts.Dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

// Reset drops all cached loggers and disables logging. Test hook.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
	loggers = make(map[Category]*zap.SugaredLogger)
	logsDir = ""
	debugMode = false
	categories = nil
}

func enabled(c Category) bool {
	if !debugMode || logsDir == "" {
		return false
	}
	if categories == nil {
		return true
	}
	on, found := categories[string(c)]
	if !found {
		return true
	}
	return on
}

// Get returns the logger for a category, or a no-op logger when the category
// is disabled.
func Get(c Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	if !enabled(c) {
		mu.RUnlock()
		return nop
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}

	name := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02"), c)
	file, err := os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open log file for %s: %v\n", c, err)
		return nop
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(file), zapcore.DebugLevel)
	l := zap.New(core).Sugar().With("category", string(c))
	loggers[c] = l
	return l
}

// Sync flushes all open loggers. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
}

// Timer measures an operation's duration and logs it on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop ends the timer and logs the elapsed duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// Convenience helpers, one pair per category in active use.

// Store logs to the store category.
func Store(format string, args ...any) { Get(CategoryStore).Infof(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debugf(format, args...) }

// Shell logs to the shell category.
func Shell(format string, args ...any) { Get(CategoryShell).Infof(format, args...) }

// ShellDebug logs debug to the shell category.
func ShellDebug(format string, args ...any) { Get(CategoryShell).Debugf(format, args...) }

// Boot logs to the boot category.
func Boot(format string, args ...any) { Get(CategoryBoot).Infof(format, args...) }

// Ingest logs to the ingest category.
func Ingest(format string, args ...any) { Get(CategoryIngest).Infof(format, args...) }
