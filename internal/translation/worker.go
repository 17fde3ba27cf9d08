package translation

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

const (
	defaultPollInterval     = 5 * time.Second
	defaultRecoveryInterval = time.Minute
	defaultStaleAfter       = 10 * time.Minute
	maxBatchesPerTick       = 10
)

// BatchProcessor runs one queue batch.
type BatchProcessor interface {
	ProcessTranslationQueue(ctx context.Context, batchSize int) (*BatchResult, error)
}

// StaleResetter returns abandoned processing jobs to the queue.
type StaleResetter interface {
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// WorkerConfig holds polling settings.
type WorkerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
	StaleAfter       time.Duration `yaml:"stale_after"`
	BatchSize        int           `yaml:"batch_size"`
}

// Worker polls the job table for pending and due retry jobs.
type Worker struct {
	processor BatchProcessor
	resetter  StaleResetter
	logger    logger.Logger
	cfg       WorkerConfig

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewWorker creates a worker. resetter may be nil to skip recovery.
func NewWorker(processor BatchProcessor, resetter StaleResetter, cfg WorkerConfig, log logger.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.RecoveryInterval <= 0 {
		cfg.RecoveryInterval = defaultRecoveryInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Worker{
		processor: processor,
		resetter:  resetter,
		logger:    log.With(logger.Component("translation-worker")),
		cfg:       cfg,
		stopChan:  make(chan struct{}),
	}
}

// Start begins polling. Calling Start twice is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	if w.resetter != nil {
		w.wg.Add(1)
		go w.runRecovery(ctx)
	}

	w.logger.Info("translation worker started",
		logger.Duration("poll_interval", w.cfg.PollInterval),
		logger.Int("batch_size", w.cfg.BatchSize))
}

// Stop waits for in-flight batches to settle.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("translation worker stopped")
}

// IsRunning reports whether Start has been called without Stop.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.processOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.processOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processOnce keeps claiming while batches come back full, so a backlog
// drains faster than one batch per tick.
func (w *Worker) processOnce(ctx context.Context) {
	for range maxBatchesPerTick {
		if w.stopping(ctx) {
			return
		}
		result, err := w.processor.ProcessTranslationQueue(ctx, w.cfg.BatchSize)
		if err != nil {
			w.logger.Error("failed to process translation queue", logger.Error(err))
			return
		}
		if len(result.JobIDs) < w.cfg.BatchSize {
			return
		}
	}
}

func (w *Worker) runRecovery(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := w.resetter.ResetStale(ctx, w.cfg.StaleAfter)
			if err != nil {
				w.logger.Error("failed to reset stale translation jobs", logger.Error(err))
				continue
			}
			if n > 0 {
				w.logger.Warn("reset stale translation jobs", logger.Int64("count", n))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-w.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
