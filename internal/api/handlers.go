// Package api exposes translation jobs and localized content over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/domain"
	"github.com/jonesrussell/market-insights/internal/translation"
)

const defaultStatsWindow = 24 * time.Hour

// TranslationService is the translation pipeline.
type TranslationService interface {
	QueueTranslation(ctx context.Context, req domain.QueueRequest) (string, error)
	GetJob(ctx context.Context, id string) (*domain.TranslationJob, error)
	ProcessTranslationQueue(ctx context.Context, batchSize int) (*translation.BatchResult, error)
}

// JobQuery lists jobs and counts them by status.
type JobQuery interface {
	List(ctx context.Context, filter domain.JobFilter) ([]domain.TranslationJob, error)
	Stats(ctx context.Context) (*domain.JobStats, error)
}

// UsageQuery summarises LLM usage.
type UsageQuery interface {
	Summary(ctx context.Context, since time.Time) (*domain.UsageSummary, error)
}

// ContentService reads localized content and updates report status.
type ContentService interface {
	ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error)
	CountReports(ctx context.Context, f domain.ReportFilter) (int64, error)
	GetReport(ctx context.Context, slug, locale string) (*domain.Report, error)
	ListCategories(ctx context.Context, f domain.ListFilter) ([]domain.Category, error)
	GetCategory(ctx context.Context, slug, locale string) (*domain.Category, error)
	ListBlogs(ctx context.Context, f domain.ListFilter) ([]domain.Blog, error)
	GetBlog(ctx context.Context, slug, locale string) (*domain.Blog, error)
	UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) (*domain.Report, error)
}

// Handler holds the API dependencies.
type Handler struct {
	translations TranslationService
	jobs         JobQuery
	usage        UsageQuery
	content      ContentService
	log          logger.Logger
	now          func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(
	translations TranslationService,
	jobs JobQuery,
	usage UsageQuery,
	content ContentService,
	log logger.Logger,
) *Handler {
	return &Handler{
		translations: translations,
		jobs:         jobs,
		usage:        usage,
		content:      content,
		log:          log.With(logger.Component("api")),
		now:          time.Now,
	}
}

// QueueTranslationResponse is returned after queueing.
type QueueTranslationResponse struct {
	JobID string                 `json:"job_id"`
	Job   *domain.TranslationJob `json:"job,omitempty"`
}

// QueueTranslation handles POST /api/v1/translations.
func (h *Handler) QueueTranslation(c *gin.Context) {
	var req domain.QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.translations.QueueTranslation(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "queue translation")
		return
	}

	// The job row is the status surface; a failed read here does not undo the queueing.
	job, err := h.translations.GetJob(c.Request.Context(), id)
	if err != nil {
		h.log.Warn("queued job not readable", logger.JobID(id), logger.Error(err))
	}
	c.JSON(http.StatusAccepted, QueueTranslationResponse{JobID: id, Job: job})
}

// GetJob handles GET /api/v1/translations/jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.translations.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}

type listJobsQuery struct {
	Status      string `form:"status"`
	ContentType string `form:"content_type"`
	ContentID   string `form:"content_id"`
	Limit       int    `binding:"omitempty,min=1,max=100" form:"limit"`
	Offset      int    `binding:"omitempty,min=0"         form:"offset"`
}

// ListJobs handles GET /api/v1/translations/jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	var q listJobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := domain.JobFilter{
		Status:      domain.JobStatus(q.Status),
		ContentType: domain.ContentType(q.ContentType),
		ContentID:   q.ContentID,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + q.Status})
		return
	}
	if filter.ContentType != "" && !filter.ContentType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown content_type " + q.ContentType})
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err, "list jobs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": orEmpty(jobs), "count": len(jobs)})
}

type processRequest struct {
	BatchSize int `binding:"omitempty,min=1,max=100" json:"batch_size"`
}

// ProcessQueue handles POST /api/v1/translations/process.
func (h *Handler) ProcessQueue(c *gin.Context) {
	var req processRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.translations.ProcessTranslationQueue(c.Request.Context(), req.BatchSize)
	if err != nil {
		h.writeError(c, err, "process queue")
		return
	}
	c.JSON(http.StatusOK, result)
}

// StatsResponse reports queue depth and LLM usage.
type StatsResponse struct {
	Jobs  *domain.JobStats     `json:"jobs"`
	Usage *domain.UsageSummary `json:"usage"`
	Since time.Time            `json:"since"`
}

// Stats handles GET /api/v1/translations/stats?window=24h.
func (h *Handler) Stats(c *gin.Context) {
	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window must be a positive duration such as 24h"})
			return
		}
		window = d
	}

	ctx := c.Request.Context()
	stats, err := h.jobs.Stats(ctx)
	if err != nil {
		h.writeError(c, err, "job stats")
		return
	}
	since := h.now().Add(-window)
	usage, err := h.usage.Summary(ctx, since)
	if err != nil {
		h.writeError(c, err, "usage summary")
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Jobs: stats, Usage: usage, Since: since})
}

// writeError maps domain errors onto status codes.
func (h *Handler) writeError(c *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnsupportedField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed",
			logger.String("operation", operation),
			logger.String("path", c.FullPath()),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + operation})
	}
}

// localeParam returns ?locale=, or false after writing a 400.
func localeParam(c *gin.Context) (string, bool) {
	locale := c.Query("locale")
	if locale == "" {
		return domain.DefaultLocale, true
	}
	if _, err := language.Parse(locale); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid locale " + locale})
		return "", false
	}
	return locale, true
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
