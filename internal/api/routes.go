package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/market-insights/infrastructure/gin"
	"github.com/jonesrussell/market-insights/internal/cache"
	"github.com/jonesrussell/market-insights/internal/domain"
)

// RouteOptions configures Register.
type RouteOptions struct {
	// JWTSecret protects write routes; empty leaves them open.
	JWTSecret string
	// RouteCache caches public content responses; nil disables it.
	RouteCache *cache.Middleware
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// Register mounts every route on router.
func (h *Handler) Register(router *gin.Engine, opts RouteOptions) {
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/api/v1")
	admin := infragin.ProtectedGroup(v1, "", opts.JWTSecret)

	translations := v1.Group("/translations")
	translations.GET("/jobs", h.ListJobs)
	translations.GET("/jobs/:id", h.GetJob)
	translations.GET("/stats", h.Stats)
	admin.POST("/translations", h.QueueTranslation)
	admin.POST("/translations/process", h.ProcessQueue)

	reports := v1.Group("/reports", routeCache(opts.RouteCache, domain.ContentTypeReport))
	reports.GET("", h.ListReports)
	reports.GET("/:slug", h.GetReport)
	admin.PATCH("/reports/:id/status", h.UpdateReportStatus)

	categories := v1.Group("/categories", routeCache(opts.RouteCache, domain.ContentTypeCategory))
	categories.GET("", h.ListCategories)
	categories.GET("/:slug", h.GetCategory)

	blogs := v1.Group("/blogs", routeCache(opts.RouteCache, domain.ContentTypeBlog))
	blogs.GET("", h.ListBlogs)
	blogs.GET("/:slug", h.GetBlog)
}

// contentQueryParams are the query parameters the content handlers read.
var contentQueryParams = []string{"locale", "status", "category", "limit", "offset"}

func routeCache(mw *cache.Middleware, ct domain.ContentType) gin.HandlerFunc {
	return mw.HTTPHandler(cache.HTTPOptions{Tag: ct.RouteGroup(), Params: contentQueryParams})
}
