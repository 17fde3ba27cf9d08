package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/market-insights/internal/domain"
)

type pageQuery struct {
	Limit  int `binding:"omitempty,min=1,max=100" form:"limit"`
	Offset int `binding:"omitempty,min=0"         form:"offset"`
}

type reportsQuery struct {
	pageQuery
	Status   string `form:"status"`
	Category string `form:"category"`
}

// ListReports handles GET /api/v1/reports.
func (h *Handler) ListReports(c *gin.Context) {
	locale, ok := localeParam(c)
	if !ok {
		return
	}
	var q reportsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := domain.ReportFilter{
		Locale:       locale,
		Status:       domain.ReportStatus(q.Status),
		CategorySlug: q.Category,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + q.Status})
		return
	}
	f.Normalize()

	ctx := c.Request.Context()
	reports, err := h.content.ListReports(ctx, f)
	if err != nil {
		h.writeError(c, err, "list reports")
		return
	}
	total, err := h.content.CountReports(ctx, f)
	if err != nil {
		h.writeError(c, err, "count reports")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": orEmpty(reports),
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
		"locale":  f.Locale,
	})
}

// GetReport handles GET /api/v1/reports/:slug.
func (h *Handler) GetReport(c *gin.Context) {
	locale, ok := localeParam(c)
	if !ok {
		return
	}
	report, err := h.content.GetReport(c.Request.Context(), c.Param("slug"), locale)
	if err != nil {
		h.writeError(c, err, "get report")
		return
	}
	c.JSON(http.StatusOK, report)
}

type statusRequest struct {
	Status domain.ReportStatus `binding:"required" json:"status"`
}

// UpdateReportStatus handles PATCH /api/v1/reports/:id/status.
func (h *Handler) UpdateReportStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := h.content.UpdateReportStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err, "update report status")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listFilter(c *gin.Context) (domain.ListFilter, bool) {
	locale, ok := localeParam(c)
	if !ok {
		return domain.ListFilter{}, false
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.ListFilter{}, false
	}
	f := domain.ListFilter{Locale: locale, Limit: q.Limit, Offset: q.Offset}
	f.Normalize()
	return f, true
}

// ListCategories handles GET /api/v1/categories.
func (h *Handler) ListCategories(c *gin.Context) {
	f, ok := h.listFilter(c)
	if !ok {
		return
	}
	categories, err := h.content.ListCategories(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": orEmpty(categories), "locale": f.Locale})
}

// GetCategory handles GET /api/v1/categories/:slug.
func (h *Handler) GetCategory(c *gin.Context) {
	locale, ok := localeParam(c)
	if !ok {
		return
	}
	category, err := h.content.GetCategory(c.Request.Context(), c.Param("slug"), locale)
	if err != nil {
		h.writeError(c, err, "get category")
		return
	}
	c.JSON(http.StatusOK, category)
}

// ListBlogs handles GET /api/v1/blogs. Only published posts are listed.
func (h *Handler) ListBlogs(c *gin.Context) {
	f, ok := h.listFilter(c)
	if !ok {
		return
	}
	f.Status = domain.ReportStatusPublished
	blogs, err := h.content.ListBlogs(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err, "list blogs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"blogs": orEmpty(blogs), "locale": f.Locale})
}

// GetBlog handles GET /api/v1/blogs/:slug.
func (h *Handler) GetBlog(c *gin.Context) {
	locale, ok := localeParam(c)
	if !ok {
		return
	}
	blog, err := h.content.GetBlog(c.Request.Context(), c.Param("slug"), locale)
	if err != nil {
		h.writeError(c, err, "get blog")
		return
	}
	c.JSON(http.StatusOK, blog)
}
