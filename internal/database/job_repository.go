package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/market-insights/internal/domain"
)

// jobSelectList is the column list for SELECT/RETURNING on translation_jobs.
const jobSelectList = `id, content_type, content_id, source_locale, target_locale, field_name,
	original_text, translated_text, prompt_template, priority, status, retry_count,
	max_retries, error_message, model, temperature, max_tokens, input_tokens,
	output_tokens, total_tokens, cost_usd, duration_ms, quality_score,
	next_attempt_at, started_at, completed_at, created_at, updated_at`

// JobRepository stores translation jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a job and fills in its timestamps.
func (r *JobRepository) Create(ctx context.Context, job *domain.TranslationJob) error {
	query := `
		INSERT INTO translation_jobs (
			id, content_type, content_id, source_locale, target_locale, field_name,
			original_text, prompt_template, priority, status, retry_count, max_retries,
			model, temperature, max_tokens
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		job.ID, job.ContentType, job.ContentID, job.SourceLocale, job.TargetLocale, job.FieldName,
		job.OriginalText, job.PromptTemplate, job.Priority, job.Status, job.RetryCount, job.MaxRetries,
		job.Model, job.Temperature, job.MaxTokens,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create translation job: %w", err)
	}
	return nil
}

// GetByID returns a job or domain.ErrNotFound.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.TranslationJob, error) {
	var job domain.TranslationJob
	err := r.db.GetContext(ctx, &job, `SELECT `+jobSelectList+` FROM translation_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get translation job: %w", err)
	}
	return &job, nil
}

// ClaimPending atomically moves one pending job to processing. Any other
// state, or a job claimed concurrently, yields domain.ErrJobNotClaimable.
func (r *JobRepository) ClaimPending(ctx context.Context, id string, now time.Time) (*domain.TranslationJob, error) {
	query := `
		UPDATE translation_jobs
		SET status = 'processing', started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + jobSelectList

	var job domain.TranslationJob
	err := r.db.QueryRowxContext(ctx, query, id, now).StructScan(&job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claim translation job: %w", err)
	}
	return &job, nil
}

// ClaimBatch claims up to limit pending jobs and retry jobs whose next
// attempt is due, highest priority first, then oldest, then by id. Rows
// locked by another claimer are skipped.
func (r *JobRepository) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]domain.TranslationJob, error) {
	query := `
		UPDATE translation_jobs
		SET status = 'processing', started_at = $2, updated_at = $2
		WHERE id IN (
			SELECT id FROM translation_jobs
			WHERE status = 'pending'
			   OR (status = 'retry' AND (next_attempt_at IS NULL OR next_attempt_at <= $2))
			ORDER BY priority DESC, created_at ASC, id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectList

	rows, err := r.db.QueryxContext(ctx, query, limit, now)
	if err != nil {
		return nil, fmt.Errorf("claim translation batch: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.TranslationJob, 0, limit)
	for rows.Next() {
		var job domain.TranslationJob
		if scanErr := rows.StructScan(&job); scanErr != nil {
			return nil, fmt.Errorf("scan translation job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translation batch: %w", err)
	}

	// RETURNING does not preserve the subquery order.
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// Complete writes a completed job and upserts the content translation
// record in one transaction. The write only lands while the row is still
// processing under the caller's claim, identified by started_at.
func (r *JobRepository) Complete(ctx context.Context, job *domain.TranslationJob) (err error) {
	if job.TranslatedText == nil {
		return fmt.Errorf("%w: completed job without translated text", domain.ErrInvalidRequest)
	}
	target, err := domain.ResolveTarget(job.ContentType, job.FieldName)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE translation_jobs
		SET status = 'completed', translated_text = $2, model = $3,
		    input_tokens = $4, output_tokens = $5, total_tokens = $6,
		    cost_usd = $7, duration_ms = $8, quality_score = $9,
		    error_message = NULL, next_attempt_at = NULL,
		    completed_at = $10, updated_at = $10
		WHERE id = $1 AND status = 'processing' AND started_at = $11`,
		job.ID, *job.TranslatedText, job.Model,
		job.InputTokens, job.OutputTokens, job.TotalTokens,
		job.CostUSD, job.DurationMs, job.QualityScore, job.CompletedAt,
		job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("complete translation job: %w", err)
	}
	if err = expectOneRow(result); err != nil {
		return fmt.Errorf("complete translation job %s: %w", job.ID, domain.ErrJobNotClaimable)
	}

	if err = upsertTranslation(ctx, tx, target, job.ContentID, job.TargetLocale, *job.TranslatedText); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit complete: %w", err)
	}
	return nil
}

// upsertTranslation sets one column of the (content, locale) translation
// row. Columns not yet translated keep their empty defaults.
func upsertTranslation(ctx context.Context, tx *sqlx.Tx, t domain.TranslationTarget, contentID, locale, text string) error {
	// Identifiers come from domain.ResolveTarget, never from input.
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, locale, %[3]s)
		VALUES ($1, $2, $3)
		ON CONFLICT (%[2]s, locale) DO UPDATE
		SET %[3]s = EXCLUDED.%[3]s, updated_at = NOW()`,
		t.Table, t.FKColumn, t.Column)

	if _, err := tx.ExecContext(ctx, query, contentID, locale, text); err != nil {
		return fmt.Errorf("upsert %s: %w", t.Table, err)
	}
	return nil
}

// SaveFailure persists the outcome of RecordFailure on a job still held
// under the caller's claim.
func (r *JobRepository) SaveFailure(ctx context.Context, job *domain.TranslationJob) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE translation_jobs
		SET status = $2, retry_count = $3, error_message = $4,
		    next_attempt_at = $5, completed_at = $6, duration_ms = $7,
		    updated_at = $8
		WHERE id = $1 AND status = 'processing' AND started_at = $9`,
		job.ID, job.Status, job.RetryCount, job.ErrorMessage,
		job.NextAttemptAt, job.CompletedAt, job.DurationMs, job.UpdatedAt,
		job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("save job failure: %w", err)
	}
	if err = expectOneRow(result); err != nil {
		return fmt.Errorf("save job failure %s: %w", job.ID, domain.ErrJobNotClaimable)
	}
	return nil
}

// ResetStale returns processing jobs abandoned for longer than olderThan
// to retry so the poller picks them up again.
func (r *JobRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE translation_jobs
		SET status = 'retry', next_attempt_at = NOW(), updated_at = NOW()
		WHERE status = 'processing'
		  AND started_at < NOW() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	return result.RowsAffected()
}

// Stats counts jobs per status.
func (r *JobRepository) Stats(ctx context.Context) (*domain.JobStats, error) {
	var stats domain.JobStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending')    AS pending,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'completed')  AS completed,
			COUNT(*) FILTER (WHERE status = 'retry')      AS retry,
			COUNT(*) FILTER (WHERE status = 'failed')     AS failed
		FROM translation_jobs`)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &stats, nil
}

// List returns jobs matching filter, newest first.
func (r *JobRepository) List(ctx context.Context, filter domain.JobFilter) ([]domain.TranslationJob, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.ContentType != "" {
		add("content_type = $%d", filter.ContentType)
	}
	if filter.ContentID != "" {
		add("content_id = $%d", filter.ContentID)
	}

	query := `SELECT ` + jobSelectList + ` FROM translation_jobs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > domain.MaxPageSize {
		limit = domain.DefaultPageSize
	}
	args = append(args, limit, max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	jobs := make([]domain.TranslationJob, 0, limit)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list translation jobs: %w", err)
	}
	return jobs, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
