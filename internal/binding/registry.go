package binding

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
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

// Registry holds the device-to-chat bindings in memory and keeps them
// in sync with the backing JSON file.
//
// Reads serve from an in-memory snapshot. Writes go through to the file
// and update the snapshot under the same lock. A background poller
// watches the file's modification time so edits made by other processes
// (or operators) are picked up without a restart.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	store        *Store
	pollInterval time.Duration
	logger       Logger

	mu      sync.RWMutex
	doc     document
	lastMod time.Time
}

// NewRegistry creates a registry over the given store and loads the
// current document. A malformed file is logged and treated as empty.
//
// Parameters:
//   - store: Backing JSON store
//   - pollInterval: How often Start checks the file for outside edits
//   - logger: Logger for reload events; nil disables logging
//
// Returns:
//   - *Registry: Registry seeded from the file
func NewRegistry(store *Store, pollInterval time.Duration, logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Registry{
		store:        store,
		pollInterval: pollInterval,
		logger:       logger,
		doc:          document{},
	}

	doc, err := store.Load()
	if err != nil {
		logger.Warn("bindings file unreadable, starting empty", "error", err)
	}
	r.doc = doc

	if mod, err := store.ModTime(); err == nil {
		r.lastMod = mod
	}
	return r
}

// Start launches the file poller in a background goroutine. It returns
// immediately; the poller runs until the context is cancelled.
func (r *Registry) Start(ctx context.Context) {
	if r.pollInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.checkReload()
			}
		}
	}()
}

// checkReload reloads the document if the file changed on disk.
func (r *Registry) checkReload() {
	mod, err := r.store.ModTime()
	if err != nil {
		r.logger.Warn("bindings file stat failed", "error", err)
		return
	}

	r.mu.RLock()
	unchanged := mod.Equal(r.lastMod)
	r.mu.RUnlock()
	if unchanged {
		return
	}

	doc, err := r.store.Load()
	if err != nil {
		r.logger.Warn("bindings file reload failed, keeping current bindings", "error", err)
		// Record the mtime anyway so a bad file is not re-parsed every tick.
		r.mu.Lock()
		r.lastMod = mod
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.doc = doc
	r.lastMod = mod
	r.mu.Unlock()

	r.logger.Info("bindings reloaded from file", "devices", len(doc))
}

// Bind records that a chat controls a device and persists the change.
//
// Binding is idempotent: binding the same chat and platform to the same
// device again succeeds without duplicating the record. One chat may be
// bound to several devices and one device to several chats.
//
// Parameters:
//   - deviceID: Device the chat is binding to
//   - chatID: Originating chat session
//   - platform: Messaging platform of the chat ("line", "telegram")
//
// Returns:
//   - error: ErrInvalidBinding for missing fields, or a persistence error
func (r *Registry) Bind(deviceID, chatID, platform string) error {
	if deviceID == "" || chatID == "" || platform == "" {
		return ErrInvalidBinding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.doc[deviceID] {
		if b.ChatID == chatID && b.Platform == platform {
			return nil
		}
	}

	r.doc[deviceID] = append(r.doc[deviceID], Binding{ChatID: chatID, Platform: platform})

	if err := r.store.Save(r.doc); err != nil {
		return err
	}
	if mod, err := r.store.ModTime(); err == nil {
		r.lastMod = mod
	}
	return nil
}

// BoundChats returns the chats bound to a device, in bind order. The
// returned slice is a copy.
func (r *Registry) BoundChats(deviceID string) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := r.doc[deviceID]
	out := make([]Binding, len(bindings))
	copy(out, bindings)
	return out
}

// Snapshot returns a copy of the full binding document.
func (r *Registry) Snapshot() map[string][]Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Binding, len(r.doc))
	for deviceID, bindings := range r.doc {
		copied := make([]Binding, len(bindings))
		copy(copied, bindings)
		out[deviceID] = copied
	}
	return out
}

// Owner returns the device's first binding. The first chat to bind a
// device is its implicit group owner; the role carries no privileged
// operations, it only identifies who created the group.
//
// Returns:
//   - Binding: The owner's binding record
//   - error: ErrNotBound when the device has no bindings
func (r *Registry) Owner(deviceID string) (Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bindings := r.doc[deviceID]
	if len(bindings) == 0 {
		return Binding{}, fmt.Errorf("%w: %s", ErrNotBound, deviceID)
	}
	return bindings[0], nil
}

// IsBound reports whether a device has at least one bound chat.
func (r *Registry) IsBound(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doc[deviceID]) > 0
}

// DeviceCount returns the number of devices with at least one binding.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doc)
}
