package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned by Store.Get for absent keys.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable is returned while no Redis connection exists.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

const defaultOpTimeout = 500 * time.Millisecond

// Store is the key/value and tag-set surface the middleware needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	AddToTag(ctx context.Context, tagKey string, ttl time.Duration, keys ...string) error
	TagMembers(ctx context.Context, tagKey string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// ClientProvider hands out the current Redis client, or nil when
// disconnected. *redis.Manager satisfies it.
type ClientProvider interface {
	Client() *redis.Client
	MarkUnhealthy(err error)
}

// RedisStore implements Store over a ClientProvider.
type RedisStore struct {
	clients   ClientProvider
	opTimeout time.Duration
}

// NewRedisStore bounds every command by opTimeout (500ms when zero) so a
// slow cache degrades to a miss instead of stalling the request.
func NewRedisStore(clients ClientProvider, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RedisStore{clients: clients, opTimeout: opTimeout}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.do(ctx, func(ctx context.Context, c *redis.Client) error {
		var err error
		data, err = c.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, func(ctx context.Context, c *redis.Client) error {
		return c.Set(ctx, key, value, ttl).Err()
	})
}

// AddToTag adds keys to the tag set and extends its expiry to at least
// ttl, so the set expires with its longest-lived entry.
func (s *RedisStore) AddToTag(ctx context.Context, tagKey string, ttl time.Duration, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	return s.do(ctx, func(ctx context.Context, c *redis.Client) error {
		_, err := c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, tagKey, members...)
			if ttl > 0 {
				pipe.ExpireNX(ctx, tagKey, ttl)
				pipe.ExpireGT(ctx, tagKey, ttl)
			}
			return nil
		})
		return err
	})
}

func (s *RedisStore) TagMembers(ctx context.Context, tagKey string) ([]string, error) {
	var members []string
	err := s.do(ctx, func(ctx context.Context, c *redis.Client) error {
		var err error
		members, err = c.SMembers(ctx, tagKey).Result()
		return err
	})
	return members, err
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.do(ctx, func(ctx context.Context, c *redis.Client) error {
		return c.Del(ctx, keys...).Err()
	})
}

func (s *RedisStore) do(ctx context.Context, fn func(context.Context, *redis.Client) error) error {
	c := s.clients.Client()
	if c == nil {
		return ErrCacheUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := fn(ctx, c)
	if err != nil {
		s.clients.MarkUnhealthy(err)
	}
	return err
}
