package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/market-insights/internal/domain"
)

// UsageLogRepository appends API usage rows. Rows are never updated.
type UsageLogRepository struct {
	db *sqlx.DB
}

// NewUsageLogRepository creates a new repository.
func NewUsageLogRepository(db *sqlx.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

// Append inserts one usage row.
func (r *UsageLogRepository) Append(ctx context.Context, l *domain.UsageLog) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO api_usage_logs (
			id, job_id, provider, model, operation, input_tokens, output_tokens,
			total_tokens, cost_usd, duration_ms, success, error_message
		) VALUES (
			:id, :job_id, :provider, :model, :operation, :input_tokens, :output_tokens,
			:total_tokens, :cost_usd, :duration_ms, :success, :error_message
		)`, l)
	if err != nil {
		return fmt.Errorf("append usage log: %w", err)
	}
	return nil
}

// Summary aggregates usage rows created at or after since.
func (r *UsageLogRepository) Summary(ctx context.Context, since time.Time) (*domain.UsageSummary, error) {
	var s domain.UsageSummary
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*)                                AS calls,
			COUNT(*) FILTER (WHERE NOT success)     AS failures,
			COALESCE(SUM(input_tokens), 0)          AS input_tokens,
			COALESCE(SUM(output_tokens), 0)         AS output_tokens,
			COALESCE(SUM(cost_usd), 0)              AS cost_usd
		FROM api_usage_logs
		WHERE created_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}
	return &s, nil
}
