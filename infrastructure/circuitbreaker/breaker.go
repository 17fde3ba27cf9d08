// Package circuitbreaker guards calls to an unreliable dependency: after a
// run of consecutive failures the circuit opens and calls are rejected
// until a cooldown has elapsed.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the circuit rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker. Zero values fall back to the defaults below.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that closes it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before admitting a probe.
	Cooldown time.Duration
	// OnStateChange is called, under the breaker lock, on every transition.
	OnStateChange func(from, to State)
	// Now overrides the clock in tests.
	Now func() time.Time
}

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
	defaultCooldown         = 5 * time.Second
)

// Breaker implements the closed/open/half-open state machine.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	failures int
	probes   int
	openedAt time.Time
}

// New returns a closed Breaker.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a call may proceed. An open circuit whose cooldown
// has elapsed moves to half-open and admits the call as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	elapsed := b.cfg.Now().Sub(b.openedAt)
	if elapsed < b.cfg.Cooldown {
		return fmt.Errorf("%w: retry in %v", ErrCircuitOpen, b.cfg.Cooldown-elapsed)
	}

	b.transition(StateHalfOpen)
	return nil
}

// RecordSuccess resets the failure run and closes a half-open circuit once
// enough probes succeed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateHalfOpen {
		return
	}
	b.probes++
	if b.probes >= b.cfg.SuccessThreshold {
		b.transition(StateClosed)
	}
}

// RecordFailure extends the failure run; a half-open probe failure reopens
// the circuit immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	case StateOpen:
		b.openedAt = b.cfg.Now()
	}
}

// Execute runs fn when the circuit allows it and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

func (b *Breaker) open() {
	b.openedAt = b.cfg.Now()
	b.transition(StateOpen)
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.probes = 0
	if to == StateClosed {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// State returns the current state without advancing it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time snapshot of the breaker.
type Stats struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Stats returns a snapshot.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{State: b.state, ConsecutiveFailures: b.failures, OpenedAt: b.openedAt}
}
