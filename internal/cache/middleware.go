package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

const (
	DefaultTTL       = 300 * time.Second
	DefaultNamespace = "market-insights"
)

// Lookup results reported to the Recorder.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Config holds cache settings.
type Config struct {
	Enabled          bool          `env:"CACHE_ENABLED" yaml:"enabled"`
	Namespace        string        `yaml:"namespace"`
	TTL              time.Duration `yaml:"ttl"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultOpTimeout
	}
}

// Recorder receives cache metrics.
type Recorder interface {
	CacheLookup(model, result string)
	CacheInvalidation(tag string, success bool)
}

// Option customises a Middleware.
type Option func(*Middleware)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Middleware) { m.metrics = r }
}

// Middleware is the cache-aside layer. A nil store, or a nil
// *Middleware, passes every call straight through.
type Middleware struct {
	store   Store
	cfg     Config
	log     logger.Logger
	metrics Recorder
}

// New returns a Middleware over store.
func New(store Store, cfg Config, log logger.Logger, opts ...Option) *Middleware {
	cfg.SetDefaults()
	m := &Middleware{
		store: store,
		cfg:   cfg,
		log:   log.With(logger.Component("cache")),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = nopRecorder{}
	}
	return m
}

func (m *Middleware) enabled() bool {
	return m != nil && m.store != nil
}

// Query serves a read from cache, or runs exec and caches its result
// under model's tag. Results that encode to JSON null are not stored.
func Query[T any](
	ctx context.Context,
	m *Middleware,
	model string,
	op Operation,
	args any,
	exec func(context.Context) (T, error),
) (T, error) {
	if !m.enabled() || !op.IsRead() {
		return exec(ctx)
	}

	key, err := BuildKey(m.cfg.Namespace, model, op, args)
	if err != nil {
		m.log.Warn("cache key build failed", logger.String("model", model), logger.Error(err))
		return exec(ctx)
	}

	if v, ok := lookup[T](ctx, m, model, key); ok {
		return v, nil
	}

	v, err := exec(ctx)
	if err != nil {
		return v, err
	}
	m.populate(ctx, model, key, v)
	return v, nil
}

func lookup[T any](ctx context.Context, m *Middleware, model, key string) (T, bool) {
	var v T

	data, err := m.store.Get(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheMiss):
		m.metrics.CacheLookup(model, ResultMiss)
		m.log.Debug("cache miss", logger.String("key", key))
		return v, false
	default:
		m.metrics.CacheLookup(model, ResultError)
		m.logFailure("cache get failed", key, err)
		return v, false
	}

	if err = json.Unmarshal(data, &v); err != nil {
		m.metrics.CacheLookup(model, ResultError)
		m.log.Warn("cached value undecodable", logger.String("key", key), logger.Error(err))
		return v, false
	}
	m.metrics.CacheLookup(model, ResultHit)
	m.log.Debug("cache hit", logger.String("key", key))
	return v, true
}

func (m *Middleware) populate(ctx context.Context, model, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}
	m.put(ctx, TagKey(m.cfg.Namespace, model), key, data, m.cfg.TTL)
}

// put writes one entry and registers it under tagKey.
func (m *Middleware) put(ctx context.Context, tagKey, key string, data []byte, ttl time.Duration) {
	if string(data) == "null" {
		return
	}
	if err := m.store.Set(ctx, key, data, ttl); err != nil {
		m.logFailure("cache set failed", key, err)
		return
	}
	if err := m.store.AddToTag(ctx, tagKey, ttl, key); err != nil {
		m.logFailure("cache tag registration failed", key, err)
		return
	}
	m.log.Debug("cache set", logger.String("key", key), logger.Duration("ttl", ttl))
}

// Mutate runs a write and, once it succeeds, invalidates model. A failed
// invalidation is logged and does not fail the write.
func Mutate[T any](
	ctx context.Context,
	m *Middleware,
	model string,
	op Operation,
	exec func(context.Context) (T, error),
) (T, error) {
	v, err := exec(ctx)
	if err != nil || !op.IsWrite() || !m.enabled() {
		return v, err
	}
	if invErr := m.Invalidate(ctx, model); invErr != nil {
		m.log.Error("cache invalidation failed after write",
			logger.String("model", model),
			logger.String("operation", string(op)),
			logger.Error(invErr))
	}
	return v, nil
}

// Invalidate deletes every key registered under each tag, and the tag
// sets themselves.
func (m *Middleware) Invalidate(ctx context.Context, tags ...string) error {
	if !m.enabled() {
		return nil
	}

	var errs []error
	for _, tag := range tags {
		err := m.invalidateTag(ctx, tag)
		m.metrics.CacheInvalidation(tag, err == nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Middleware) invalidateTag(ctx context.Context, tag string) error {
	tagKey := TagKey(m.cfg.Namespace, tag)
	members, err := m.store.TagMembers(ctx, tagKey)
	if err != nil {
		return err
	}
	if err = m.store.Delete(ctx, append(members, tagKey)...); err != nil {
		return err
	}
	m.log.Debug("cache tag invalidated", logger.String("tag", tag), logger.Int("keys", len(members)))
	return nil
}

// logFailure keeps the disconnected case quiet; it is reported once by
// the connection manager.
func (m *Middleware) logFailure(msg, key string, err error) {
	if errors.Is(err, ErrCacheUnavailable) {
		m.log.Debug(msg, logger.String("key", key), logger.Error(err))
		return
	}
	m.log.Warn(msg, logger.String("key", key), logger.Error(err))
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(string, string)     {}
func (nopRecorder) CacheInvalidation(string, bool) {}
