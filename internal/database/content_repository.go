package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/market-insights/internal/domain"
)

// Localised columns fall back to the base row when the translation is
// missing or still an empty placeholder.
const reportSelectList = `r.id, r.slug, r.category_id, r.status, r.price, $1::text AS locale,
	COALESCE(NULLIF(t.title, ''), r.title)                       AS title,
	COALESCE(NULLIF(t.description, ''), r.description)           AS description,
	COALESCE(NULLIF(t.summary, ''), r.summary)                   AS summary,
	COALESCE(NULLIF(t.keywords, ''), r.keywords)                 AS keywords,
	COALESCE(NULLIF(t.meta_title, ''), r.meta_title)             AS meta_title,
	COALESCE(NULLIF(t.meta_description, ''), r.meta_description) AS meta_description,
	r.published_at, r.created_at, r.updated_at`

const reportFrom = `
	FROM reports r
	LEFT JOIN report_translations t ON t.report_id = r.id AND t.locale = $1
	LEFT JOIN categories c ON c.id = r.category_id`

const categorySelectList = `c.id, c.slug, $1::text AS locale,
	COALESCE(NULLIF(t.name, ''), c.name)                         AS name,
	COALESCE(NULLIF(t.description, ''), c.description)           AS description,
	COALESCE(NULLIF(t.meta_title, ''), c.meta_title)             AS meta_title,
	COALESCE(NULLIF(t.meta_description, ''), c.meta_description) AS meta_description,
	c.sort_order, c.created_at
	FROM categories c
	LEFT JOIN category_translations t ON t.category_id = c.id AND t.locale = $1`

const blogSelectList = `b.id, b.slug, b.status, $1::text AS locale,
	COALESCE(NULLIF(t.title, ''), b.title)                       AS title,
	COALESCE(NULLIF(t.summary, ''), b.summary)                   AS summary,
	COALESCE(NULLIF(t.content, ''), b.content)                   AS content,
	COALESCE(NULLIF(t.meta_title, ''), b.meta_title)             AS meta_title,
	COALESCE(NULLIF(t.meta_description, ''), b.meta_description) AS meta_description,
	b.published_at, b.created_at
	FROM blogs b
	LEFT JOIN blog_translations t ON t.blog_id = b.id AND t.locale = $1`

// ContentRepository reads reports, categories and blogs for a locale.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// FindReports lists reports, newest first.
func (r *ContentRepository) FindReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error) {
	f.Normalize()
	query := `SELECT ` + reportSelectList + reportFrom + `
		WHERE ($2::text = '' OR r.status = $2) AND ($3::text = '' OR c.slug = $3)
		ORDER BY r.published_at DESC NULLS LAST, r.created_at DESC
		LIMIT $4 OFFSET $5`

	reports := make([]domain.Report, 0, f.Limit)
	if err := r.db.SelectContext(ctx, &reports, query, f.Locale, string(f.Status), f.CategorySlug, f.Limit, f.Offset); err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	return reports, nil
}

// CountReports counts reports matching the filter, ignoring paging.
func (r *ContentRepository) CountReports(ctx context.Context, f domain.ReportFilter) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		FROM reports r
		LEFT JOIN categories c ON c.id = r.category_id
		WHERE ($1::text = '' OR r.status = $1) AND ($2::text = '' OR c.slug = $2)`,
		string(f.Status), f.CategorySlug)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// FindReport returns one report by slug.
func (r *ContentRepository) FindReport(ctx context.Context, slug, locale string) (*domain.Report, error) {
	var report domain.Report
	err := r.db.GetContext(ctx, &report, `SELECT `+reportSelectList+reportFrom+` WHERE r.slug = $2`, localeOrDefault(locale), slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &report, nil
}

// UpdateReportStatus sets a report's status and returns the base-locale row.
func (r *ContentRepository) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) (*domain.Report, error) {
	var report domain.Report
	err := r.db.GetContext(ctx, &report, `
		UPDATE reports
		SET status = $2,
		    published_at = CASE WHEN $2 = 'published' THEN COALESCE(published_at, NOW()) ELSE published_at END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, slug, category_id, status, price, '`+domain.DefaultLocale+`' AS locale,
		          title, description, summary, keywords, meta_title, meta_description,
		          published_at, created_at, updated_at`, id, string(status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update report status: %w", err)
	}
	return &report, nil
}

// FindCategories lists categories in display order.
func (r *ContentRepository) FindCategories(ctx context.Context, f domain.ListFilter) ([]domain.Category, error) {
	f.Normalize()
	categories := make([]domain.Category, 0, f.Limit)
	err := r.db.SelectContext(ctx, &categories, `SELECT `+categorySelectList+`
		ORDER BY c.sort_order ASC, c.slug ASC
		LIMIT $2 OFFSET $3`, f.Locale, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}
	return categories, nil
}

// FindCategory returns one category by slug.
func (r *ContentRepository) FindCategory(ctx context.Context, slug, locale string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, `SELECT `+categorySelectList+` WHERE c.slug = $2`, localeOrDefault(locale), slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &c, nil
}

// FindBlogs lists blog posts, newest first.
func (r *ContentRepository) FindBlogs(ctx context.Context, f domain.ListFilter) ([]domain.Blog, error) {
	f.Normalize()
	blogs := make([]domain.Blog, 0, f.Limit)
	err := r.db.SelectContext(ctx, &blogs, `SELECT `+blogSelectList+`
		WHERE ($2::text = '' OR b.status = $2)
		ORDER BY b.published_at DESC NULLS LAST, b.created_at DESC
		LIMIT $3 OFFSET $4`, f.Locale, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("find blogs: %w", err)
	}
	return blogs, nil
}

// FindBlog returns one blog post by slug.
func (r *ContentRepository) FindBlog(ctx context.Context, slug, locale string) (*domain.Blog, error) {
	var b domain.Blog
	err := r.db.GetContext(ctx, &b, `SELECT `+blogSelectList+` WHERE b.slug = $2`, localeOrDefault(locale), slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find blog: %w", err)
	}
	return &b, nil
}

func localeOrDefault(locale string) string {
	if locale == "" {
		return domain.DefaultLocale
	}
	return locale
}
