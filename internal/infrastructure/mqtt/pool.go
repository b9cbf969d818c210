package mqtt

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tychang/imbridge/internal/infrastructure/config"
)

// DefaultSessionKey is used when a caller has no chat context.
const DefaultSessionKey = "default"

// clientIDSuffixLen is the number of uuid characters appended to pool
// client IDs to keep them unique across restarts.
const clientIDSuffixLen = 8

// PoolClient is the subset of Client behaviour the pool manages.
// It is an interface so tests can observe dialling without a broker.
type PoolClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// dialFunc establishes one broker connection for a pool entry.
type dialFunc func(cfg config.MQTTConfig, clientID string) (PoolClient, error)

// Pool manages reusable publish connections keyed by a caller-supplied
// session key (typically the originating chat id).
//
// Entries are created lazily on first use of a key, reused across
// subsequent calls for the same key, and torn down only on Close or on
// detected connection loss (which triggers lazy recreation on the next
// use, not eagerly). Entries are never evicted by content or age, so
// memory grows with the number of distinct session keys seen over the
// process lifetime; update volume makes this acceptable and capping it
// is an explicit non-goal.
//
// Thread Safety: all methods are safe for concurrent use. Connection
// establishment happens outside the map lock so a slow or failing
// connect for one session key never blocks other keys.
type Pool struct {
	cfg  config.MQTTConfig
	dial dialFunc

	mu      sync.Mutex
	clients map[string]PoolClient
	closed  bool

	logger   Logger
	loggerMu sync.RWMutex
}

// NewPool creates a connection pool for the given broker configuration.
//
// Parameters:
//   - cfg: MQTT configuration; Pool.ConnectAttempts and Pool.ConnectBackoff
//     bound the connect retry loop for new session keys
//
// Returns:
//   - *Pool: Empty pool ready for use
func NewPool(cfg config.MQTTConfig) *Pool {
	return &Pool{
		cfg:     cfg,
		dial:    dialClient,
		clients: make(map[string]PoolClient),
	}
}

// dialClient is the production dial function: a real broker connection
// with a per-entry client ID.
func dialClient(cfg config.MQTTConfig, clientID string) (PoolClient, error) {
	cfg.Broker.ClientID = clientID
	return Connect(cfg)
}

// SetLogger sets a logger for retry and reconnect warnings.
func (p *Pool) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (p *Pool) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// Acquire returns a live publish-capable connection for the session key.
//
// If no entry exists for the key (or the existing entry has lost its
// connection), a new connection is established with up to
// Pool.ConnectAttempts attempts and a fixed Pool.ConnectBackoff delay
// between them, then stored under the key. A terminal error is returned
// only after all attempts are exhausted.
//
// Parameters:
//   - sessionKey: Caller-supplied key; empty selects DefaultSessionKey
//
// Returns:
//   - PoolClient: Connected client owned by the pool (do not Close it)
//   - error: ErrPoolClosed, or ErrConnectionFailed after exhausted attempts
func (p *Pool) Acquire(sessionKey string) (PoolClient, error) {
	key := sessionKey
	if key == "" {
		key = DefaultSessionKey
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if c, ok := p.clients[key]; ok && c.IsConnected() {
		p.mu.Unlock()
		return c, nil
	}
	// Stale entry: drop it and recreate below.
	if c, ok := p.clients[key]; ok {
		delete(p.clients, key)
		c.Close()
	}
	p.mu.Unlock()

	c, err := p.connect(key)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		c.Close()
		return nil, ErrPoolClosed
	}
	// A concurrent Acquire for the same key may have won the race;
	// keep the stored entry and discard ours.
	if existing, ok := p.clients[key]; ok && existing.IsConnected() {
		c.Close()
		return existing, nil
	}
	p.clients[key] = c
	return c, nil
}

// connect dials with bounded retry and fixed backoff.
func (p *Pool) connect(key string) (PoolClient, error) {
	attempts := p.cfg.Pool.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(p.cfg.Pool.ConnectBackoff) * time.Second

	clientID := fmt.Sprintf("imbridge_%s_%s", key, uuid.NewString()[:clientIDSuffixLen])

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c, err := p.dial(p.cfg, clientID)
		if err == nil {
			return c, nil
		}
		lastErr = err

		if logger := p.getLogger(); logger != nil {
			logger.Warn("pool connect attempt failed",
				"session_key", key,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", err,
			)
		}
		if attempt < attempts {
			time.Sleep(backoff)
		}
	}

	return nil, fmt.Errorf("%w: session key %q after %d attempts: %w",
		ErrConnectionFailed, key, attempts, lastErr)
}

// Publish sends a payload to a topic over the session key's connection.
//
// On any transport-level failure the stale entry is discarded, a fresh
// connection is established, and the publish is retried exactly once
// before the failure is reported. A publish is never silently dropped
// without that retry.
//
// Parameters:
//   - sessionKey: Key selecting the pooled connection
//   - topic: Destination topic
//   - payload: Message payload (typically a JSON envelope)
//
// Returns:
//   - error: nil once the broker accepts the message
func (p *Pool) Publish(sessionKey, topic string, payload []byte) error {
	c, err := p.Acquire(sessionKey)
	if err != nil {
		return err
	}

	err = c.Publish(topic, payload, byte(p.cfg.QoS), false)
	if err == nil {
		return nil
	}

	if logger := p.getLogger(); logger != nil {
		logger.Warn("publish failed, reconnecting for retry",
			"session_key", sessionKey,
			"topic", topic,
			"error", err,
		)
	}

	// Transport failure: invalidate the entry, reconnect, retry once.
	p.invalidate(sessionKey, c)

	c, err = p.Acquire(sessionKey)
	if err != nil {
		return err
	}
	if err := c.Publish(topic, payload, byte(p.cfg.QoS), false); err != nil {
		return fmt.Errorf("%w: retry after reconnect: %w", ErrPublishFailed, err)
	}
	return nil
}

// invalidate removes a pool entry if it still holds the given client.
func (p *Pool) invalidate(sessionKey string, c PoolClient) {
	key := sessionKey
	if key == "" {
		key = DefaultSessionKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.clients[key]; ok && current == c {
		delete(p.clients, key)
		c.Close()
	}
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Close tears down every pooled connection. The pool cannot be reused.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for key, c := range p.clients {
		c.Close()
		delete(p.clients, key)
	}
	return nil
}
