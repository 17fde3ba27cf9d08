package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// JobStatus is the lifecycle state of a translation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusRetry      JobStatus = "retry"
	JobStatusFailed     JobStatus = "failed"
)

// JobStatuses lists every declared status.
var JobStatuses = []JobStatus{
	JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusRetry, JobStatusFailed,
}

// DefaultMaxRetries is the attempt ceiling for a job.
const DefaultMaxRetries = 3

// Valid reports whether s is a declared status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusRetry, JobStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether s → next is a legal transition.
// Processing → retry also covers recovery of attempts abandoned by a crash.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusRetry:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusRetry || next == JobStatusFailed
	}
	return false
}

// TranslationJob is one (content item, field, target locale) translation.
type TranslationJob struct {
	ID             string      `db:"id"              json:"id"`
	ContentType    ContentType `db:"content_type"    json:"content_type"`
	ContentID      string      `db:"content_id"      json:"content_id"`
	SourceLocale   string      `db:"source_locale"   json:"source_locale"`
	TargetLocale   string      `db:"target_locale"   json:"target_locale"`
	FieldName      Field       `db:"field_name"      json:"field_name"`
	OriginalText   string      `db:"original_text"   json:"original_text"`
	TranslatedText *string     `db:"translated_text" json:"translated_text,omitempty"`
	PromptTemplate string      `db:"prompt_template" json:"-"`
	Priority       int         `db:"priority"        json:"priority"`
	Status         JobStatus   `db:"status"          json:"status"`
	RetryCount     int         `db:"retry_count"     json:"retry_count"`
	MaxRetries     int         `db:"max_retries"     json:"max_retries"`
	ErrorMessage   *string     `db:"error_message"   json:"error_message,omitempty"`

	Model        string   `db:"model"         json:"model"`
	Temperature  float64  `db:"temperature"   json:"temperature"`
	MaxTokens    int      `db:"max_tokens"    json:"max_tokens"`
	InputTokens  int      `db:"input_tokens"  json:"input_tokens"`
	OutputTokens int      `db:"output_tokens" json:"output_tokens"`
	TotalTokens  int      `db:"total_tokens"  json:"total_tokens"`
	CostUSD      float64  `db:"cost_usd"      json:"cost_usd"`
	DurationMs   int64    `db:"duration_ms"   json:"duration_ms"`
	QualityScore *float64 `db:"quality_score" json:"quality_score,omitempty"`

	NextAttemptAt *time.Time `db:"next_attempt_at" json:"next_attempt_at,omitempty"`
	StartedAt     *time.Time `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}

// TranslationResult is the outcome of a successful attempt.
type TranslationResult struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Duration     time.Duration
	QualityScore float64
}

func (j *TranslationJob) transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	return nil
}

// RecordSuccess moves a processing job to completed. Any other starting
// status leaves the job untouched.
func (j *TranslationJob) RecordSuccess(res TranslationResult, now time.Time) error {
	if err := j.transition(JobStatusCompleted); err != nil {
		return err
	}

	text := res.Text
	score := res.QualityScore

	j.Status = JobStatusCompleted
	j.TranslatedText = &text
	j.QualityScore = &score
	if res.Model != "" {
		j.Model = res.Model
	}
	j.InputTokens = res.InputTokens
	j.OutputTokens = res.OutputTokens
	j.TotalTokens = res.InputTokens + res.OutputTokens
	j.CostUSD = res.CostUSD
	j.DurationMs = res.Duration.Milliseconds()
	j.ErrorMessage = nil
	j.NextAttemptAt = nil
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// RecordFailure counts a failed attempt on a processing job. The job goes
// to retry with NextAttemptAt = now+delay, or to failed once RetryCount
// reaches MaxRetries.
func (j *TranslationJob) RecordFailure(msg string, now time.Time, delay time.Duration) error {
	// Retry and failed share the same legal source status.
	if err := j.transition(JobStatusRetry); err != nil {
		return err
	}

	maxRetries := j.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	j.RetryCount++
	j.ErrorMessage = &msg
	j.UpdatedAt = now

	if j.RetryCount >= maxRetries {
		j.Status = JobStatusFailed
		j.NextAttemptAt = nil
		j.CompletedAt = &now
		return nil
	}

	next := now.Add(delay)
	j.Status = JobStatusRetry
	j.NextAttemptAt = &next
	return nil
}

// QueueRequest is the input to queue a translation.
type QueueRequest struct {
	ContentType  ContentType `json:"content_type"  binding:"required"`
	ContentID    string      `json:"content_id"    binding:"required"`
	SourceLocale string      `json:"source_locale" binding:"required"`
	TargetLocale string      `json:"target_locale" binding:"required"`
	FieldName    Field       `json:"field_name"    binding:"required"`
	OriginalText string      `json:"original_text" binding:"required"`
	Priority     int         `json:"priority"`
}

// Validate checks ids, locales and that the field exists on the content type.
func (r QueueRequest) Validate() error {
	if strings.TrimSpace(r.ContentID) == "" {
		return fmt.Errorf("%w: content_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.OriginalText) == "" {
		return fmt.Errorf("%w: original_text is required", ErrInvalidRequest)
	}
	for name, loc := range map[string]string{"source_locale": r.SourceLocale, "target_locale": r.TargetLocale} {
		if _, err := language.Parse(loc); err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidRequest, name, loc)
		}
	}
	if r.SourceLocale == r.TargetLocale {
		return fmt.Errorf("%w: source and target locale are equal", ErrInvalidRequest)
	}
	if !r.FieldName.Valid() {
		return fmt.Errorf("%w: field %q", ErrInvalidRequest, r.FieldName)
	}
	if _, err := ResolveTarget(r.ContentType, r.FieldName); err != nil {
		return err
	}
	return nil
}

// JobFilter narrows job listings.
type JobFilter struct {
	Status      JobStatus
	ContentType ContentType
	ContentID   string
	Limit       int
	Offset      int
}

// JobStats counts jobs per status.
type JobStats struct {
	Pending    int64 `db:"pending"    json:"pending"`
	Processing int64 `db:"processing" json:"processing"`
	Completed  int64 `db:"completed"  json:"completed"`
	Retry      int64 `db:"retry"      json:"retry"`
	Failed     int64 `db:"failed"     json:"failed"`
}
