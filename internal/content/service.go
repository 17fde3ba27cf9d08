// Package content serves reports, categories and blogs through the
// cache-aside middleware.
package content

import (
	"context"
	"fmt"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/cache"
	"github.com/jonesrussell/market-insights/internal/domain"
)

// Repository is the content store.
type Repository interface {
	FindReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error)
	CountReports(ctx context.Context, f domain.ReportFilter) (int64, error)
	FindReport(ctx context.Context, slug, locale string) (*domain.Report, error)
	UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) (*domain.Report, error)
	FindCategories(ctx context.Context, f domain.ListFilter) ([]domain.Category, error)
	FindCategory(ctx context.Context, slug, locale string) (*domain.Category, error)
	FindBlogs(ctx context.Context, f domain.ListFilter) ([]domain.Blog, error)
	FindBlog(ctx context.Context, slug, locale string) (*domain.Blog, error)
}

// bySlug is the cache key input of single-item lookups.
type bySlug struct {
	Slug   string `json:"slug"`
	Locale string `json:"locale"`
}

func slugArgs(slug, locale string) bySlug {
	if locale == "" {
		locale = domain.DefaultLocale
	}
	return bySlug{Slug: slug, Locale: locale}
}

// Service reads content through the cache.
type Service struct {
	repo  Repository
	cache *cache.Middleware
	log   logger.Logger
}

// NewService creates a Service. mw may be nil to disable caching.
func NewService(repo Repository, mw *cache.Middleware, log logger.Logger) *Service {
	return &Service{repo: repo, cache: mw, log: log.With(logger.Component("content"))}
}

var (
	reportModel   = domain.ContentTypeReport.CacheModel()
	categoryModel = domain.ContentTypeCategory.CacheModel()
	blogModel     = domain.ContentTypeBlog.CacheModel()
)

func (s *Service) ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error) {
	f.Normalize()
	return cache.Query(ctx, s.cache, reportModel, cache.OpFindMany, f,
		func(ctx context.Context) ([]domain.Report, error) { return s.repo.FindReports(ctx, f) })
}

func (s *Service) CountReports(ctx context.Context, f domain.ReportFilter) (int64, error) {
	f.Normalize()
	// Paging does not change the total.
	f.Limit, f.Offset = 0, 0
	return cache.Query(ctx, s.cache, reportModel, cache.OpCount, f,
		func(ctx context.Context) (int64, error) { return s.repo.CountReports(ctx, f) })
}

func (s *Service) GetReport(ctx context.Context, slug, locale string) (*domain.Report, error) {
	args := slugArgs(slug, locale)
	return cache.Query(ctx, s.cache, reportModel, cache.OpFindUnique, args,
		func(ctx context.Context) (*domain.Report, error) { return s.repo.FindReport(ctx, args.Slug, args.Locale) })
}

func (s *Service) ListCategories(ctx context.Context, f domain.ListFilter) ([]domain.Category, error) {
	f.Normalize()
	return cache.Query(ctx, s.cache, categoryModel, cache.OpFindMany, f,
		func(ctx context.Context) ([]domain.Category, error) { return s.repo.FindCategories(ctx, f) })
}

func (s *Service) GetCategory(ctx context.Context, slug, locale string) (*domain.Category, error) {
	args := slugArgs(slug, locale)
	return cache.Query(ctx, s.cache, categoryModel, cache.OpFindUnique, args,
		func(ctx context.Context) (*domain.Category, error) { return s.repo.FindCategory(ctx, args.Slug, args.Locale) })
}

func (s *Service) ListBlogs(ctx context.Context, f domain.ListFilter) ([]domain.Blog, error) {
	f.Normalize()
	return cache.Query(ctx, s.cache, blogModel, cache.OpFindMany, f,
		func(ctx context.Context) ([]domain.Blog, error) { return s.repo.FindBlogs(ctx, f) })
}

func (s *Service) GetBlog(ctx context.Context, slug, locale string) (*domain.Blog, error) {
	args := slugArgs(slug, locale)
	return cache.Query(ctx, s.cache, blogModel, cache.OpFindUnique, args,
		func(ctx context.Context) (*domain.Blog, error) { return s.repo.FindBlog(ctx, args.Slug, args.Locale) })
}

// UpdateReportStatus writes the status, then drops cached report reads
// and the cached report routes.
func (s *Service) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) (*domain.Report, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidRequest, status)
	}

	report, err := cache.Mutate(ctx, s.cache, reportModel, cache.OpUpdate,
		func(ctx context.Context) (*domain.Report, error) { return s.repo.UpdateReportStatus(ctx, id, status) })
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx, s.log)
	if invErr := s.cache.Invalidate(ctx, domain.ContentTypeReport.RouteGroup()); invErr != nil {
		log.Error("route cache invalidation failed", logger.String("report_id", id), logger.Error(invErr))
	}
	log.Info("report status updated", logger.String("report_id", id), logger.String("status", string(status)))
	return report, nil
}
