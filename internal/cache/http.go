package cache

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

// HeaderCache reports HIT or MISS on cached routes.
const HeaderCache = "X-Cache"

// HTTPOptions configures HTTPHandler.
type HTTPOptions struct {
	// Tag groups the route's entries for invalidation, e.g. "reports".
	Tag string
	// Params lists the query parameters that change the response. Any
	// other parameter is left out of the key.
	Params []string
	// KeyFunc overrides the default path + Params key.
	KeyFunc func(c *gin.Context) string
	TTL     time.Duration
}

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// HTTPHandler caches successful GET responses of the wrapped routes.
func (m *Middleware) HTTPHandler(opts HTTPOptions) gin.HandlerFunc {
	if opts.KeyFunc == nil {
		params := opts.Params
		opts.KeyFunc = func(c *gin.Context) string { return RequestKey(c, params...) }
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || !m.enabled() {
			c.Next()
			return
		}

		ttl := opts.TTL
		if ttl <= 0 {
			ttl = m.cfg.TTL
		}
		key := httpKey(m.cfg.Namespace, opts.Tag, opts.KeyFunc(c))
		ctx := c.Request.Context()

		if resp, ok := lookup[cachedResponse](ctx, m, opts.Tag, key); ok {
			c.Header(HeaderCache, "HIT")
			c.Data(resp.Status, resp.ContentType, resp.Body)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Header(HeaderCache, "MISS")
		c.Next()

		if rec.Status() != http.StatusOK || rec.body.Len() == 0 {
			return
		}
		data, err := json.Marshal(cachedResponse{
			Status:      rec.Status(),
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			m.log.Warn("cache encode failed", logger.String("key", key), logger.Error(err))
			return
		}
		m.put(ctx, TagKey(m.cfg.Namespace, opts.Tag), key, data, ttl)
	}
}

// RequestKey is the path followed by the named query parameters, sorted.
// Unnamed parameters such as tracking tags cannot mint new keys.
func RequestKey(c *gin.Context, params ...string) string {
	query := c.Request.URL.Query()
	kept := url.Values{}
	for _, p := range params {
		if v, ok := query[p]; ok {
			kept[p] = v
		}
	}
	q := kept.Encode()
	if q == "" {
		return c.Request.URL.Path
	}
	return c.Request.URL.Path + "?" + q
}

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
