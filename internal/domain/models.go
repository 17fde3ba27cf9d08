package domain

import "time"

// ReportStatus is the publication state of a report or blog post.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusPublished ReportStatus = "published"
	ReportStatusArchived  ReportStatus = "archived"
)

// Valid reports whether s is a declared status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusDraft, ReportStatusPublished, ReportStatusArchived:
		return true
	}
	return false
}

// DefaultLocale is the locale content is authored in.
const DefaultLocale = "en"

// Report is a market research report resolved for one locale.
type Report struct {
	ID              string       `db:"id"               json:"id"`
	Slug            string       `db:"slug"             json:"slug"`
	CategoryID      *string      `db:"category_id"      json:"category_id,omitempty"`
	Status          ReportStatus `db:"status"           json:"status"`
	Price           float64      `db:"price"            json:"price"`
	Locale          string       `db:"locale"           json:"locale"`
	Title           string       `db:"title"            json:"title"`
	Description     string       `db:"description"      json:"description"`
	Summary         string       `db:"summary"          json:"summary"`
	Keywords        string       `db:"keywords"         json:"keywords"`
	MetaTitle       string       `db:"meta_title"       json:"meta_title"`
	MetaDescription string       `db:"meta_description" json:"meta_description"`
	PublishedAt     *time.Time   `db:"published_at"     json:"published_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"       json:"updated_at"`
}

// Category groups reports.
type Category struct {
	ID              string    `db:"id"               json:"id"`
	Slug            string    `db:"slug"             json:"slug"`
	Locale          string    `db:"locale"           json:"locale"`
	Name            string    `db:"name"             json:"name"`
	Description     string    `db:"description"      json:"description"`
	MetaTitle       string    `db:"meta_title"       json:"meta_title"`
	MetaDescription string    `db:"meta_description" json:"meta_description"`
	SortOrder       int       `db:"sort_order"       json:"sort_order"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
}

// Blog is an editorial post.
type Blog struct {
	ID              string       `db:"id"               json:"id"`
	Slug            string       `db:"slug"             json:"slug"`
	Status          ReportStatus `db:"status"           json:"status"`
	Locale          string       `db:"locale"           json:"locale"`
	Title           string       `db:"title"            json:"title"`
	Summary         string       `db:"summary"          json:"summary"`
	Content         string       `db:"content"          json:"content"`
	MetaTitle       string       `db:"meta_title"       json:"meta_title"`
	MetaDescription string       `db:"meta_description" json:"meta_description"`
	PublishedAt     *time.Time   `db:"published_at"     json:"published_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at"       json:"created_at"`
}

// ReportFilter narrows report listings. It is also the cache key input,
// so every field carries a JSON name.
type ReportFilter struct {
	Locale       string       `json:"locale"`
	Status       ReportStatus `json:"status,omitempty"`
	CategorySlug string       `json:"category_slug,omitempty"`
	Limit        int          `json:"limit"`
	Offset       int          `json:"offset"`
}

// ListFilter narrows category and blog listings.
type ListFilter struct {
	Locale string       `json:"locale"`
	Status ReportStatus `json:"status,omitempty"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies locale and paging defaults.
func (f *ReportFilter) Normalize() {
	f.Locale, f.Limit, f.Offset = normalizePage(f.Locale, f.Limit, f.Offset)
}

// Normalize applies locale and paging defaults.
func (f *ListFilter) Normalize() {
	f.Locale, f.Limit, f.Offset = normalizePage(f.Locale, f.Limit, f.Offset)
}

func normalizePage(locale string, limit, offset int) (string, int, int) {
	if locale == "" {
		locale = DefaultLocale
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return locale, limit, offset
}
