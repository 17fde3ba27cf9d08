// Package redis owns the application's single Redis connection. The
// Manager reconnects in the background behind a circuit breaker and hands
// out a nil client while Redis is unreachable, so callers treat the cache
// as optional.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/market-insights/infrastructure/circuitbreaker"
	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

// ErrNotConnected is returned by Ping when no connection is established.
var ErrNotConnected = errors.New("redis not connected")

const (
	defaultDialTimeout      = 2 * time.Second
	defaultFailureThreshold = 3
	defaultCooldown         = 5 * time.Second
)

// Config holds Redis connection settings.
type Config struct {
	Address          string        `env:"REDIS_ADDRESS"  yaml:"address"`
	Password         string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB               int           `env:"REDIS_DB"       yaml:"db"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

func (c *Config) setDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
}

// Option customises a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	now      func() time.Time
	observer func(circuitbreaker.State)
}

// WithClock overrides the breaker clock.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) { o.now = now }
}

// WithStateObserver is notified of every breaker transition.
func WithStateObserver(fn func(circuitbreaker.State)) Option {
	return func(o *managerOptions) { o.observer = fn }
}

// Manager holds the current Redis client and its circuit breaker.
type Manager struct {
	cfg     Config
	log     logger.Logger
	breaker *circuitbreaker.Breaker

	connectMu    sync.Mutex
	reconnecting atomic.Bool

	mu     sync.RWMutex
	client *redis.Client
	live   bool
	closed bool
}

// NewManager validates cfg and returns a disconnected Manager.
func NewManager(cfg Config, log logger.Logger, opts ...Option) (*Manager, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	cfg.setDefaults()

	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{cfg: cfg, log: log.With(logger.Component("redis"))}
	m.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown,
		Now:              o.now,
		OnStateChange: func(from, to circuitbreaker.State) {
			m.log.Info("redis circuit state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			if o.observer != nil {
				o.observer(to)
			}
		},
	})
	return m, nil
}

// Connect dials and pings Redis. While the circuit is open it returns
// circuitbreaker.ErrCircuitOpen without dialing.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.connected() {
		return nil
	}

	var client *redis.Client
	err := m.breaker.Execute(ctx, func(ctx context.Context) error {
		client = redis.NewClient(&redis.Options{
			Addr:        m.cfg.Address,
			Password:    m.cfg.Password,
			DB:          m.cfg.DB,
			DialTimeout: m.cfg.DialTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
		defer cancel()
		if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
			_ = client.Close()
			return pingErr
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return err
	}
	if err != nil {
		m.log.Warn("redis connection failed",
			logger.String("address", m.cfg.Address),
			logger.Int("consecutive_failures", m.breaker.Stats().ConsecutiveFailures),
			logger.Error(err))
		return fmt.Errorf("redis ping %s: %w", m.cfg.Address, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = client.Close()
		return redis.ErrClosed
	}
	previous := m.client
	m.client = client
	m.live = true
	m.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	m.log.Info("redis connection established", logger.String("address", m.cfg.Address))
	return nil
}

// Client returns the live client without blocking. When disconnected it
// starts at most one background reconnect and returns nil, so callers
// fall through to their source of truth instead of waiting on a dial.
func (m *Manager) Client() *redis.Client {
	if c := m.current(); c != nil {
		return c
	}
	m.reconnect()
	return nil
}

// reconnect runs Connect in the background unless one is in flight. An
// open circuit makes it return without dialing.
func (m *Manager) reconnect() {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return
	}
	if !m.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.reconnecting.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
		defer cancel()
		_ = m.Connect(ctx)
	}()
}

// MarkUnhealthy drops the current connection when err indicates the link
// itself failed. Command-level errors such as redis.Nil are ignored.
func (m *Manager) MarkUnhealthy(err error) {
	if !IsConnectionError(err) {
		return
	}

	m.mu.Lock()
	wasLive := m.live
	m.live = false
	m.mu.Unlock()

	if wasLive {
		m.breaker.RecordFailure()
		m.log.Warn("redis connection marked unhealthy", logger.Error(err))
	}
}

// IsHealthy pings the current connection.
func (m *Manager) IsHealthy(ctx context.Context) bool {
	return m.Ping(ctx) == nil
}

// Ping checks the current connection without reconnecting.
func (m *Manager) Ping(ctx context.Context) error {
	c := m.current()
	if c == nil {
		return ErrNotConnected
	}
	if err := c.Ping(ctx).Err(); err != nil {
		m.MarkUnhealthy(err)
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// BreakerState exposes the circuit state for health and metrics.
func (m *Manager) BreakerState() circuitbreaker.State {
	return m.breaker.State()
}

// Close releases the client.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.live = false
	m.closed = true
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}

func (m *Manager) current() *redis.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.live {
		return nil
	}
	return m.client
}

func (m *Manager) connected() bool {
	return m.current() != nil
}

// IsConnectionError reports whether err came from the transport rather
// than from a Redis command.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
