package cache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/cache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newCachedRouter(mw *cache.Middleware, calls *atomic.Int32) *gin.Engine {
	r := gin.New()
	g := r.Group("/reports", mw.HTTPHandler(cache.HTTPOptions{Tag: "reports", Params: []string{"locale", "page"}}))
	g.GET("", func(c *gin.Context) {
		n := calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"locale": c.Query("locale"), "page": c.Query("page"), "n": n})
	})
	g.GET("/:slug", func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	g.POST("", func(c *gin.Context) {
		calls.Add(1)
		c.Status(http.StatusCreated)
	})
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHTTPHandler_HitAfterMiss(t *testing.T) {
	t.Parallel()

	mw, _ := newMiddleware(t)
	var calls atomic.Int32
	r := newCachedRouter(mw, &calls)

	first := serve(r, http.MethodGet, "/reports?locale=de&page=2")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get(cache.HeaderCache))

	second := serve(r, http.MethodGet, "/reports?page=2&locale=de")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(cache.HeaderCache))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, int32(1), calls.Load())

	other := serve(r, http.MethodGet, "/reports?locale=fr&page=2")
	assert.Equal(t, "MISS", other.Header().Get(cache.HeaderCache))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPHandler_OnlyCachesSuccessfulGets(t *testing.T) {
	t.Parallel()

	mw, mr := newMiddleware(t)
	var calls atomic.Int32
	r := newCachedRouter(mw, &calls)

	for range 2 {
		assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/reports/nope").Code)
		assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/reports").Code)
	}
	assert.Equal(t, int32(4), calls.Load())
	assert.False(t, mr.Exists(cache.TagKey("mi", "reports")))
}

func TestHTTPHandler_InvalidatedByTag(t *testing.T) {
	t.Parallel()

	mw, _ := newMiddleware(t)
	var calls atomic.Int32
	r := newCachedRouter(mw, &calls)

	serve(r, http.MethodGet, "/reports")
	require.NoError(t, mw.Invalidate(context.Background(), "reports"))

	w := serve(r, http.MethodGet, "/reports")
	assert.Equal(t, "MISS", w.Header().Get(cache.HeaderCache))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPHandler_UnlistedParamsShareEntry(t *testing.T) {
	t.Parallel()

	mw, mr := newMiddleware(t)
	var calls atomic.Int32
	r := newCachedRouter(mw, &calls)

	serve(r, http.MethodGet, "/reports?locale=de")
	for _, target := range []string{
		"/reports?locale=de&utm_source=mail",
		"/reports?locale=de&cb=1",
		"/reports?cb=2&locale=de",
	} {
		w := serve(r, http.MethodGet, target)
		assert.Equal(t, "HIT", w.Header().Get(cache.HeaderCache), target)
	}
	assert.Equal(t, int32(1), calls.Load())

	members, err := mr.Members(cache.TagKey("mi", "reports"))
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestHTTPHandler_TagSetExpiresWithEntries(t *testing.T) {
	t.Parallel()

	mw, mr := newMiddleware(t)
	var calls atomic.Int32
	r := newCachedRouter(mw, &calls)

	serve(r, http.MethodGet, "/reports?locale=de")
	tagKey := cache.TagKey("mi", "reports")
	assert.Equal(t, cache.DefaultTTL, mr.TTL(tagKey))

	mr.FastForward(cache.DefaultTTL)
	assert.False(t, mr.Exists(tagKey))
}

func TestHTTPHandler_CustomKeyFunc(t *testing.T) {
	t.Parallel()

	mw, _ := newMiddleware(t)
	var calls atomic.Int32

	r := gin.New()
	r.GET("/blogs", mw.HTTPHandler(cache.HTTPOptions{
		Tag:     "blogs",
		KeyFunc: func(c *gin.Context) string { return c.Query("locale") },
	}), func(c *gin.Context) {
		calls.Add(1)
		c.String(http.StatusOK, "blogs")
	})

	serve(r, http.MethodGet, "/blogs?locale=de&utm_source=mail")
	w := serve(r, http.MethodGet, "/blogs?locale=de&utm_source=feed")
	assert.Equal(t, "HIT", w.Header().Get(cache.HeaderCache))
	assert.Equal(t, "blogs", w.Body.String())
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPHandler_FailsOpen(t *testing.T) {
	t.Parallel()

	mw := cache.New(cache.NewRedisStore(newManager(t, unreachable), 0), cache.Config{}, logger.NewNop())
	var calls atomic.Int32
	r := newCachedRouter(mw, &calls)

	for range 2 {
		w := serve(r, http.MethodGet, "/reports")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get(cache.HeaderCache))
	}
	assert.Equal(t, int32(2), calls.Load())
}
