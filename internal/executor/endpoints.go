package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Endpoints maps device manufacturers to the base URLs of their
// executor services.
//
// The mapping lives in an externally supplied JSON file so operators
// can repoint executors without a restart; a background poller watches
// the file's modification time. A missing or malformed file falls back
// to the compiled-in defaults and is logged, never fatal.
//
// Thread Safety: all methods are safe for concurrent use.
type Endpoints struct {
	path         string
	defaults     map[string]string
	pollInterval time.Duration
	logger       Logger

	mu      sync.RWMutex
	urls    map[string]string
	lastMod time.Time
}

// NewEndpoints creates the endpoint registry and performs the initial
// load.
//
// Parameters:
//   - path: JSON file mapping manufacturer to base URL; empty disables
//     file loading and serves defaults only
//   - defaults: Fallback mapping used when the file is absent or bad
//   - pollInterval: How often Start re-checks the file
//   - logger: Logger for reload events; nil disables logging
//
// Returns:
//   - *Endpoints: Registry seeded from the file or defaults
func NewEndpoints(path string, defaults map[string]string, pollInterval time.Duration, logger Logger) *Endpoints {
	if logger == nil {
		logger = noopLogger{}
	}

	e := &Endpoints{
		path:         path,
		defaults:     defaults,
		pollInterval: pollInterval,
		logger:       logger,
	}
	e.urls = e.load()

	if path != "" {
		if info, err := os.Stat(path); err == nil {
			e.lastMod = info.ModTime()
		}
	}
	return e
}

// load reads the file, falling back to defaults on any failure.
func (e *Endpoints) load() map[string]string {
	if e.path == "" {
		return e.copyDefaults()
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("endpoints file unreadable, using defaults", "path", e.path, "error", err)
		}
		return e.copyDefaults()
	}

	var urls map[string]string
	if err := json.Unmarshal(data, &urls); err != nil {
		e.logger.Warn("endpoints file malformed, using defaults", "path", e.path, "error", err)
		return e.copyDefaults()
	}
	if len(urls) == 0 {
		return e.copyDefaults()
	}
	return urls
}

func (e *Endpoints) copyDefaults() map[string]string {
	urls := make(map[string]string, len(e.defaults))
	for k, v := range e.defaults {
		urls[k] = v
	}
	return urls
}

// Start launches the file poller in a background goroutine. It returns
// immediately; the poller runs until the context is cancelled.
func (e *Endpoints) Start(ctx context.Context) {
	if e.path == "" || e.pollInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.checkReload()
			}
		}
	}()
}

// checkReload reloads the mapping if the file changed on disk.
func (e *Endpoints) checkReload() {
	info, err := os.Stat(e.path)
	if err != nil {
		return
	}
	mod := info.ModTime()

	e.mu.RLock()
	unchanged := mod.Equal(e.lastMod)
	e.mu.RUnlock()
	if unchanged {
		return
	}

	urls := e.load()

	e.mu.Lock()
	e.urls = urls
	e.lastMod = mod
	e.mu.Unlock()

	e.logger.Info("executor endpoints reloaded", "manufacturers", len(urls))
}

// BaseURL returns the executor base URL for a manufacturer.
//
// Returns:
//   - string: Base URL without trailing slash semantics applied
//   - error: ErrUnknownManufacturer when no mapping exists
func (e *Endpoints) BaseURL(manufacturer string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	url, ok := e.urls[manufacturer]
	if !ok || url == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownManufacturer, manufacturer)
	}
	return url, nil
}
