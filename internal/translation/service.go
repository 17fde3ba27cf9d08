// Package translation runs the translation job pipeline: queueing,
// claiming, calling the model, scoring and recording the outcome.
package translation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/domain"
	"github.com/jonesrussell/market-insights/internal/llm"
)

const (
	DefaultSyncPriorityThreshold = 80
	DefaultRetryDelay            = 5 * time.Second
	DefaultBatchSize             = 5

	usageOperation = "translation"
)

// JobStore persists translation jobs.
type JobStore interface {
	Create(ctx context.Context, job *domain.TranslationJob) error
	GetByID(ctx context.Context, id string) (*domain.TranslationJob, error)
	ClaimPending(ctx context.Context, id string, now time.Time) (*domain.TranslationJob, error)
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]domain.TranslationJob, error)
	Complete(ctx context.Context, job *domain.TranslationJob) error
	SaveFailure(ctx context.Context, job *domain.TranslationJob) error
}

// TemplateStore reads and seeds prompt templates.
type TemplateStore interface {
	GetActive(ctx context.Context, promptType string) (*domain.PromptTemplate, error)
	Create(ctx context.Context, t *domain.PromptTemplate) error
}

// UsageStore appends usage log rows.
type UsageStore interface {
	Append(ctx context.Context, l *domain.UsageLog) error
}

// Invalidator drops cached reads by tag.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) error
}

// Recorder receives pipeline metrics.
type Recorder interface {
	JobFinished(status domain.JobStatus)
	LLMCall(model string, inputTokens, outputTokens int, costUSD float64, d time.Duration, success bool)
	BatchClaimed(n int)
}

// Config holds pipeline settings.
type Config struct {
	SyncPriorityThreshold int           `yaml:"sync_priority_threshold"`
	MaxRetries            int           `yaml:"max_retries"`
	RetryDelay            time.Duration `yaml:"retry_delay"`
	BatchSize             int           `yaml:"batch_size"`

	Model       string  `yaml:"-"`
	Temperature float64 `yaml:"-"`
	MaxTokens   int     `yaml:"-"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.SyncPriorityThreshold == 0 {
		c.SyncPriorityThreshold = DefaultSyncPriorityThreshold
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = domain.DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Model == "" {
		c.Model = llm.DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = llm.DefaultMaxTokens
	}
}

// BatchResult summarises one ProcessTranslationQueue call. JobIDs are in
// selection order.
type BatchResult struct {
	JobIDs    []string `json:"job_ids"`
	Completed int      `json:"completed"`
	Retried   int      `json:"retried"`
	Failed    int      `json:"failed"`
	Errors    int      `json:"errors"`
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithInvalidator sets the cache invalidator run after completions.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// Service is the translation job pipeline.
type Service struct {
	jobs        JobStore
	templates   TemplateStore
	usage       UsageStore
	llm         llm.Client
	invalidator Invalidator
	metrics     Recorder
	cfg         Config
	log         logger.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewService wires the pipeline.
func NewService(
	jobs JobStore,
	templates TemplateStore,
	usage UsageStore,
	client llm.Client,
	cfg Config,
	log logger.Logger,
	opts ...Option,
) *Service {
	cfg.SetDefaults()
	s := &Service{
		jobs:      jobs,
		templates: templates,
		usage:     usage,
		llm:       client,
		cfg:       cfg,
		log:       log.With(logger.Component("translation")),
		tracer:    otel.Tracer("translation"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	return s
}

// QueueTranslation validates and persists a pending job. Jobs above the
// sync priority threshold get one attempt before this returns; its
// outcome is recorded on the job rather than returned.
func (s *Service) QueueTranslation(ctx context.Context, req domain.QueueRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	tmpl, err := s.activeTemplate(ctx)
	if err != nil {
		return "", err
	}

	job := &domain.TranslationJob{
		ID:             uuid.NewString(),
		ContentType:    req.ContentType,
		ContentID:      req.ContentID,
		SourceLocale:   req.SourceLocale,
		TargetLocale:   req.TargetLocale,
		FieldName:      req.FieldName,
		OriginalText:   req.OriginalText,
		PromptTemplate: tmpl.Template,
		Priority:       req.Priority,
		Status:         domain.JobStatusPending,
		MaxRetries:     s.cfg.MaxRetries,
		Model:          s.cfg.Model,
		Temperature:    s.cfg.Temperature,
		MaxTokens:      s.cfg.MaxTokens,
	}
	if err = s.jobs.Create(ctx, job); err != nil {
		return "", err
	}

	logger.Ctx(ctx, s.log).Info("translation job queued",
		logger.JobID(job.ID),
		logger.String("content_type", string(job.ContentType)),
		logger.String("content_id", job.ContentID),
		logger.String("field", string(job.FieldName)),
		logger.String("target_locale", job.TargetLocale),
		logger.Int("priority", job.Priority))

	if req.Priority > s.cfg.SyncPriorityThreshold {
		if procErr := s.ProcessTranslationJob(ctx, job.ID); procErr != nil {
			logger.Ctx(ctx, s.log).Warn("synchronous translation attempt not recorded",
				logger.JobID(job.ID), logger.Error(procErr))
		}
	}
	return job.ID, nil
}

// GetJob returns a job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.TranslationJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// ProcessTranslationJob claims a pending job and runs one attempt. A job
// that is missing, not pending or already claimed is left untouched.
func (s *Service) ProcessTranslationJob(ctx context.Context, id string) error {
	job, err := s.jobs.ClaimPending(ctx, id, s.now())
	if errors.Is(err, domain.ErrJobNotClaimable) {
		s.log.Debug("translation job not claimable", logger.JobID(id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim job %s: %w", id, err)
	}

	_, err = s.attempt(ctx, job)
	return err
}

// ProcessTranslationQueue claims up to batchSize due jobs and runs them
// concurrently, returning once all have settled.
func (s *Service) ProcessTranslationQueue(ctx context.Context, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	jobs, err := s.jobs.ClaimBatch(ctx, batchSize, s.now())
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	s.metrics.BatchClaimed(len(jobs))

	result := &BatchResult{JobIDs: make([]string, len(jobs))}
	if len(jobs) == 0 {
		return result, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := range jobs {
		result.JobIDs[i] = jobs[i].ID
		wg.Add(1)
		go func(job *domain.TranslationJob) {
			defer wg.Done()
			status, attemptErr := s.attempt(ctx, job)

			mu.Lock()
			defer mu.Unlock()
			if attemptErr != nil {
				result.Errors++
			}
			switch status {
			case domain.JobStatusCompleted:
				result.Completed++
			case domain.JobStatusRetry:
				result.Retried++
			case domain.JobStatusFailed:
				result.Failed++
			}
		}(&jobs[i])
	}
	wg.Wait()

	s.log.Info("translation batch processed",
		logger.Int("claimed", len(jobs)),
		logger.Int("completed", result.Completed),
		logger.Int("retried", result.Retried),
		logger.Int("failed", result.Failed))
	return result, nil
}

// attempt runs one claimed job to completion or failure. The returned
// error reports only an outcome that could not be persisted.
func (s *Service) attempt(ctx context.Context, job *domain.TranslationJob) (domain.JobStatus, error) {
	// A claimed attempt runs to the end even if the caller goes away. The
	// model call is bounded by the client timeout, and a cancellation
	// must not be recorded as a failed attempt.
	ctx = logger.WithJobID(context.WithoutCancel(ctx), job.ID)

	ctx, span := s.tracer.Start(ctx, "translation.attempt", trace.WithAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("content_type", string(job.ContentType)),
		attribute.String("field", string(job.FieldName)),
		attribute.String("target_locale", job.TargetLocale),
		attribute.Int("retry_count", job.RetryCount),
	))
	defer span.End()

	start := s.now()
	res, err := s.translate(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(ctx, job, err, s.now().Sub(start))
	}

	claimed := *job
	if err = job.RecordSuccess(res, s.now()); err != nil {
		return job.Status, err
	}
	if err = s.jobs.Complete(ctx, job); err != nil {
		*job = claimed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(ctx, job, fmt.Errorf("persist translation: %w", err), res.Duration)
	}

	s.metrics.JobFinished(domain.JobStatusCompleted)
	span.SetAttributes(attribute.Float64("quality_score", res.QualityScore))

	if s.invalidator != nil {
		if invErr := s.invalidator.Invalidate(ctx, job.ContentType.CacheTags()...); invErr != nil {
			logger.Ctx(ctx, s.log).Error("cache invalidation failed after translation",
				logger.Error(invErr))
		}
	}

	s.appendUsage(ctx, &domain.UsageLog{
		JobID:        &job.ID,
		Model:        job.Model,
		InputTokens:  job.InputTokens,
		OutputTokens: job.OutputTokens,
		TotalTokens:  job.TotalTokens,
		CostUSD:      job.CostUSD,
		DurationMs:   job.DurationMs,
		Success:      true,
	})

	logger.Ctx(ctx, s.log).Info("translation job completed",
		logger.Int("input_tokens", job.InputTokens),
		logger.Int("output_tokens", job.OutputTokens),
		logger.Float64("cost_usd", job.CostUSD),
		logger.Float64("quality_score", res.QualityScore),
		logger.Duration("duration", res.Duration))
	return domain.JobStatusCompleted, nil
}

func (s *Service) translate(ctx context.Context, job *domain.TranslationJob) (domain.TranslationResult, error) {
	system, err := BuildSystemPrompt(job.PromptTemplate, job.SourceLocale, job.TargetLocale, job.FieldName)
	if err != nil {
		return domain.TranslationResult{}, err
	}

	start := s.now()
	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:       job.Model,
		System:      system,
		User:        job.OriginalText,
		Temperature: job.Temperature,
		MaxTokens:   job.MaxTokens,
	})
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.LLMCall(job.Model, 0, 0, 0, elapsed, false)
		return domain.TranslationResult{}, err
	}

	cost := llm.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
	s.metrics.LLMCall(resp.Model, resp.InputTokens, resp.OutputTokens, cost, elapsed, true)

	return domain.TranslationResult{
		Text:         resp.Text,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      cost,
		Duration:     elapsed,
		QualityScore: QualityScore(job.OriginalText, resp.Text),
	}, nil
}

// fail records a failed attempt: retry after the fixed delay, or failed
// once the attempt ceiling is reached.
func (s *Service) fail(ctx context.Context, job *domain.TranslationJob, cause error, elapsed time.Duration) (domain.JobStatus, error) {
	log := logger.Ctx(ctx, s.log)
	if err := job.RecordFailure(cause.Error(), s.now(), s.cfg.RetryDelay); err != nil {
		log.Error("translation failure not recorded", logger.Error(err), logger.String("cause", cause.Error()))
		return job.Status, err
	}
	job.DurationMs = elapsed.Milliseconds()

	fields := []logger.Field{
		logger.String("status", string(job.Status)),
		logger.Int("retry_count", job.RetryCount),
		logger.Error(cause),
	}
	if job.Status == domain.JobStatusFailed {
		log.Error("translation job failed permanently", fields...)
	} else {
		log.Warn("translation attempt failed, retry scheduled",
			append(fields, logger.Time("next_attempt_at", *job.NextAttemptAt))...)
	}

	msg := cause.Error()
	s.appendUsage(ctx, &domain.UsageLog{
		JobID:        &job.ID,
		Model:        job.Model,
		DurationMs:   job.DurationMs,
		Success:      false,
		ErrorMessage: &msg,
	})

	if err := s.jobs.SaveFailure(ctx, job); err != nil {
		log.Error("failed to record translation failure", logger.Error(err))
		return job.Status, err
	}
	s.metrics.JobFinished(job.Status)
	return job.Status, nil
}

// appendUsage never fails the job.
func (s *Service) appendUsage(ctx context.Context, l *domain.UsageLog) {
	l.ID = uuid.NewString()
	l.Provider = s.llm.Provider()
	l.Operation = usageOperation
	l.CreatedAt = s.now()
	if err := s.usage.Append(ctx, l); err != nil {
		logger.Ctx(ctx, s.log).Warn("failed to append usage log", logger.Error(err))
	}
}

// activeTemplate returns the active translation template, seeding the
// default when none exists.
func (s *Service) activeTemplate(ctx context.Context) (*domain.PromptTemplate, error) {
	tmpl, err := s.templates.GetActive(ctx, domain.PromptTypeTranslation)
	if err == nil {
		return tmpl, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load prompt template: %w", err)
	}

	seed := &domain.PromptTemplate{
		ID:         uuid.NewString(),
		PromptType: domain.PromptTypeTranslation,
		Name:       "default-translation",
		Template:   domain.DefaultTranslationPrompt,
		Version:    1,
		IsActive:   true,
	}
	if err = s.templates.Create(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed prompt template: %w", err)
	}
	s.log.Info("created default prompt template", logger.String("prompt_type", seed.PromptType))

	// A concurrent seeder may have won the insert.
	if tmpl, err = s.templates.GetActive(ctx, domain.PromptTypeTranslation); err == nil {
		return tmpl, nil
	}
	return seed, nil
}

type nopRecorder struct{}

func (nopRecorder) JobFinished(domain.JobStatus)                           {}
func (nopRecorder) LLMCall(string, int, int, float64, time.Duration, bool) {}
func (nopRecorder) BatchClaimed(int)                                       {}
