package translation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/translation"
)

type stubProcessor struct {
	mu      sync.Mutex
	calls   int
	backlog int
	err     error
}

func (p *stubProcessor) ProcessTranslationQueue(_ context.Context, batchSize int) (*translation.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	n := min(batchSize, p.backlog)
	p.backlog -= n
	return &translation.BatchResult{JobIDs: make([]string, n), Completed: n}, nil
}

func (p *stubProcessor) snapshot() (calls, backlog int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, p.backlog
}

type stubResetter struct {
	mu    sync.Mutex
	calls int
	after time.Duration
}

func (r *stubResetter) ResetStale(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.after = olderThan
	return 1, nil
}

func (r *stubResetter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestWorker_DrainsBacklogOnStart(t *testing.T) {
	t.Parallel()

	p := &stubProcessor{backlog: 12}
	w := translation.NewWorker(p, nil, translation.WorkerConfig{PollInterval: time.Hour, BatchSize: 5}, logger.NewNop())

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool {
		calls, backlog := p.snapshot()
		return backlog == 0 && calls == 3
	}, time.Second, 5*time.Millisecond)
}

func TestWorker_PollsOnInterval(t *testing.T) {
	t.Parallel()

	p := &stubProcessor{}
	w := translation.NewWorker(p, nil, translation.WorkerConfig{PollInterval: 10 * time.Millisecond}, logger.NewNop())

	w.Start(context.Background())
	assert.Eventually(t, func() bool {
		calls, _ := p.snapshot()
		return calls >= 3
	}, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWorker_KeepsPollingAfterErrors(t *testing.T) {
	t.Parallel()

	p := &stubProcessor{err: errors.New("db unavailable")}
	w := translation.NewWorker(p, nil, translation.WorkerConfig{PollInterval: 10 * time.Millisecond}, logger.NewNop())

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool {
		calls, _ := p.snapshot()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestWorker_RunsRecovery(t *testing.T) {
	t.Parallel()

	r := &stubResetter{}
	w := translation.NewWorker(&stubProcessor{}, r, translation.WorkerConfig{
		PollInterval:     time.Hour,
		RecoveryInterval: 10 * time.Millisecond,
		StaleAfter:       time.Minute,
	}, logger.NewNop())

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool { return r.callCount() > 0 }, time.Second, 5*time.Millisecond)
	r.mu.Lock()
	assert.Equal(t, time.Minute, r.after)
	r.mu.Unlock()
}

func TestWorker_StartStopLifecycle(t *testing.T) {
	t.Parallel()

	w := translation.NewWorker(&stubProcessor{}, nil, translation.WorkerConfig{PollInterval: time.Hour}, logger.NewNop())
	assert.False(t, w.IsRunning())

	w.Start(context.Background())
	w.Start(context.Background())
	assert.True(t, w.IsRunning())

	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())
}

func TestWorker_StopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	p := &stubProcessor{}
	ctx, cancel := context.WithCancel(context.Background())
	w := translation.NewWorker(p, nil, translation.WorkerConfig{PollInterval: 5 * time.Millisecond}, logger.NewNop())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
