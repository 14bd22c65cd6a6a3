// Package debug provides logging infrastructure for plugup.
// Records at or above the configured level go to stderr. When the --debug
// flag is passed, every record is also written to ~/.plugup/debug.log,
// truncated on each launch.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// LogFileName is the name of the debug log file.
	LogFileName = "debug.log"
	// LogDirName is the name of the directory containing the log file.
	LogDirName = ".plugup"

	// KeyComponent is the attribute naming the emitting package.
	KeyComponent = "component"
)

// Options configures Init.
type Options struct {
	// Debug enables the debug log file.
	Debug bool
	// Level is the minimum level written to Stderr (debug, info, warn, error).
	Level string
	// Format is the Stderr format: text or json.
	Format string
	// Stderr receives console records; defaults to os.Stderr.
	Stderr io.Writer
}

var (
	mu      sync.RWMutex
	enabled bool
	root    slog.Handler = slog.NewTextHandler(io.Discard, nil)
	logFile *os.File

	// getLogPath is a function variable to allow overriding in tests.
	getLogPath = defaultGetLogPath
)

// Init configures the process-wide handler. Loggers obtained from L before
// Init pick up the new configuration.
func Init(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	console, err := newHandler(stderr, opts.Format, level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	closeLocked()
	enabled = opts.Debug
	if !opts.Debug {
		root = console
		return nil
	}

	logPath, err := getLogPath()
	if err != nil {
		return fmt.Errorf("determine log path: %w", err)
	}

	// Ensure directory exists
	//nolint:gosec // G301: User config directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	//nolint:gosec // G304: Log path is computed from user home, not user input
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = f

	file := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	root = fanout{console, file}
	slog.New(file).Info("plugup debug log started", "at", time.Now().Format(time.RFC3339))
	return nil
}

// Close closes the debug log file if open.
// Safe to call even if logging is disabled.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Enabled returns whether the debug log file is active.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// L returns a logger tagged with the given component.
func L(component string) *slog.Logger {
	return slog.New(&switchable{}).With(KeyComponent, component)
}

// ParseLevel maps a level name to a slog level. Blank means warn.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", name)
	}
}

func newHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

func current() slog.Handler {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// switchable resolves the root handler at log time.
type switchable struct {
	attrs  []slog.Attr
	groups []string
}

func (h *switchable) materialize() slog.Handler {
	handler := current()
	for _, group := range h.groups {
		handler = handler.WithGroup(group)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h *switchable) Enabled(ctx context.Context, level slog.Level) bool {
	return current().Enabled(ctx, level)
}

func (h *switchable) Handle(ctx context.Context, r slog.Record) error {
	return h.materialize().Handle(ctx, r)
}

func (h *switchable) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &switchable{groups: h.groups}
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return next
}

func (h *switchable) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := &switchable{attrs: h.attrs}
	next.groups = append(append([]string(nil), h.groups...), name)
	return next
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}

// defaultGetLogPath returns the path to the debug log file.
func defaultGetLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, LogDirName, LogFileName), nil
}

// GetLogPath returns the path to the debug log file.
func GetLogPath() (string, error) {
	return getLogPath()
}
