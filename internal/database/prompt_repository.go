package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/market-insights/internal/domain"
)

const promptSelectList = `id, prompt_type, name, template, version, is_active, created_at, updated_at`

// PromptTemplateRepository stores versioned prompt templates.
type PromptTemplateRepository struct {
	db *sqlx.DB
}

// NewPromptTemplateRepository creates a new repository.
func NewPromptTemplateRepository(db *sqlx.DB) *PromptTemplateRepository {
	return &PromptTemplateRepository{db: db}
}

// GetActive returns the highest-version active template of promptType.
func (r *PromptTemplateRepository) GetActive(ctx context.Context, promptType string) (*domain.PromptTemplate, error) {
	var t domain.PromptTemplate
	err := r.db.GetContext(ctx, &t, `
		SELECT `+promptSelectList+`
		FROM prompt_templates
		WHERE prompt_type = $1 AND is_active
		ORDER BY version DESC
		LIMIT 1`, promptType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active prompt template: %w", err)
	}
	return &t, nil
}

// Create inserts a template. A concurrent insert of the same
// (prompt_type, version) is ignored so callers can re-read the winner.
func (r *PromptTemplateRepository) Create(ctx context.Context, t *domain.PromptTemplate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prompt_templates (id, prompt_type, name, template, version, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (prompt_type, version) DO NOTHING`,
		t.ID, t.PromptType, t.Name, t.Template, t.Version, t.IsActive)
	if err != nil {
		return fmt.Errorf("create prompt template: %w", err)
	}
	return nil
}
