package redis_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/market-insights/infrastructure/circuitbreaker"
	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/infrastructure/redis"
)

// unreachable is a local port nothing listens on.
const unreachable = "127.0.0.1:1"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewManager_RequiresAddress(t *testing.T) {
	m, err := redis.NewManager(redis.Config{}, logger.NewNop())
	require.ErrorIs(t, err, redis.ErrEmptyAddress)
	assert.Nil(t, m)
}

func TestManager_ConnectAndClient(t *testing.T) {
	mr := miniredis.RunT(t)

	m, err := redis.NewManager(redis.Config{Address: mr.Addr()}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	client := m.Client()
	require.NotNil(t, client)
	assert.True(t, m.IsHealthy(context.Background()))

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestManager_ClientReconnectsInBackground(t *testing.T) {
	mr := miniredis.RunT(t)

	m, err := redis.NewManager(redis.Config{Address: mr.Addr()}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()

	assert.False(t, m.IsHealthy(context.Background()))
	assert.Nil(t, m.Client(), "a disconnected manager hands out nil")
	assert.Eventually(t, func() bool { return m.Client() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, m.IsHealthy(context.Background()))
}

// silentListener accepts connections and never replies, like a host that
// blackholes traffic after the handshake.
func silentListener(t *testing.T) (addr string, accepted func() int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	return ln.Addr().String(), func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(conns)
	}
}

func TestManager_ClientDoesNotBlockOnSlowDial(t *testing.T) {
	addr, accepted := silentListener(t)

	m, err := redis.NewManager(redis.Config{Address: addr, DialTimeout: 2 * time.Second}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()

	var wg sync.WaitGroup
	start := time.Now()
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Nil(t, m.Client())
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.Eventually(t, func() bool { return accepted() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, accepted(), "concurrent callers share one reconnect")
}

func TestManager_BreakerSkipsAfterThreeFailures(t *testing.T) {
	c := &clock{now: time.Unix(1_000, 0)}
	var states []circuitbreaker.State

	m, err := redis.NewManager(
		redis.Config{Address: unreachable, DialTimeout: 200 * time.Millisecond},
		logger.NewNop(),
		redis.WithClock(c.Now),
		redis.WithStateObserver(func(s circuitbreaker.State) { states = append(states, s) }),
	)
	require.NoError(t, err)
	defer m.Close()

	for range 3 {
		connErr := m.Connect(context.Background())
		require.Error(t, connErr)
		assert.False(t, errors.Is(connErr, circuitbreaker.ErrCircuitOpen))
	}

	assert.ErrorIs(t, m.Connect(context.Background()), circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, circuitbreaker.StateOpen, m.BreakerState())

	c.Advance(5 * time.Second)
	connErr := m.Connect(context.Background())
	require.Error(t, connErr)
	assert.False(t, errors.Is(connErr, circuitbreaker.ErrCircuitOpen), "cooldown elapsed, a probe should dial")
	assert.Equal(t, []circuitbreaker.State{circuitbreaker.StateOpen, circuitbreaker.StateHalfOpen, circuitbreaker.StateOpen}, states)

	assert.Nil(t, m.Client())
}

func TestManager_SuccessClosesBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	c := &clock{now: time.Unix(1_000, 0)}

	m, err := redis.NewManager(redis.Config{Address: mr.Addr()}, logger.NewNop(), redis.WithClock(c.Now))
	require.NoError(t, err)
	defer m.Close()

	mr.Close()
	for range 3 {
		require.Error(t, m.Connect(context.Background()))
	}
	require.Equal(t, circuitbreaker.StateOpen, m.BreakerState())

	require.NoError(t, mr.Restart())
	c.Advance(5 * time.Second)
	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, circuitbreaker.StateClosed, m.BreakerState())
}

func TestManager_MarkUnhealthy(t *testing.T) {
	mr := miniredis.RunT(t)

	m, err := redis.NewManager(redis.Config{Address: mr.Addr()}, logger.NewNop())
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	m.MarkUnhealthy(goredis.Nil)
	assert.True(t, m.IsHealthy(context.Background()), "redis.Nil is not a connection error")

	m.MarkUnhealthy(goredis.ErrClosed)
	assert.ErrorIs(t, m.Ping(context.Background()), redis.ErrNotConnected)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, redis.IsConnectionError(nil))
	assert.False(t, redis.IsConnectionError(goredis.Nil))
	assert.False(t, redis.IsConnectionError(errors.New("WRONGTYPE")))
	assert.True(t, redis.IsConnectionError(goredis.ErrClosed))
	assert.True(t, redis.IsConnectionError(context.DeadlineExceeded))
}
