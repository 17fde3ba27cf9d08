// Package telemetry exports Prometheus metrics for the translation
// pipeline, the cache layer and the Redis circuit breaker.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/market-insights/infrastructure/circuitbreaker"
	"github.com/jonesrussell/market-insights/internal/domain"
)

const namespace = "market_insights"

// Metrics holds every collector.
type Metrics struct {
	// Translation pipeline
	JobsFinished *prometheus.CounterVec
	BatchSize    prometheus.Histogram

	// LLM calls
	LLMCalls    *prometheus.CounterVec
	LLMTokens   *prometheus.CounterVec
	LLMCost     *prometheus.CounterVec
	LLMDuration *prometheus.HistogramVec

	// Cache
	CacheLookups       *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	CircuitState       prometheus.Gauge
}

// Provider owns a registry and the metrics registered on it.
type Provider struct {
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider registers metrics on a fresh registry that also carries
// the Go runtime and process collectors.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Provider{Metrics: newMetrics(reg), registry: reg}
}

// Registry exposes the underlying registry.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry for /metrics.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}
	m.initTranslationMetrics(factory)
	m.initLLMMetrics(factory)
	m.initCacheMetrics(factory)
	return m
}

func (m *Metrics) initTranslationMetrics(factory promauto.Factory) {
	m.JobsFinished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "translation_jobs_finished_total",
		Help:      "Translation attempts by resulting job status",
	}, []string{"status"})

	m.BatchSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "translation_batch_size",
		Help:      "Jobs claimed per queue batch",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
	})
}

func (m *Metrics) initLLMMetrics(factory promauto.Factory) {
	m.LLMCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "LLM calls by model and outcome",
	}, []string{"model", "outcome"})

	m.LLMTokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_total",
		Help:      "LLM tokens by model and direction",
	}, []string{"model", "direction"})

	m.LLMCost = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_cost_usd_total",
		Help:      "Estimated LLM spend in USD",
	}, []string{"model"})

	m.LLMDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_call_duration_seconds",
		Help:      "LLM call latency",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"model"})
}

func (m *Metrics) initCacheMetrics(factory promauto.Factory) {
	m.CacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by model or route tag and result",
	}, []string{"model", "result"})

	m.CacheInvalidations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidations_total",
		Help:      "Tag invalidations by tag and outcome",
	}, []string{"tag", "outcome"})

	m.CircuitState = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "redis_circuit_state",
		Help:      "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
	})
}

// JobFinished counts a settled attempt.
func (p *Provider) JobFinished(status domain.JobStatus) {
	p.Metrics.JobsFinished.WithLabelValues(string(status)).Inc()
}

// LLMCall records one model invocation.
func (p *Provider) LLMCall(model string, inputTokens, outputTokens int, costUSD float64, d time.Duration, success bool) {
	p.Metrics.LLMCalls.WithLabelValues(model, outcome(success)).Inc()
	p.Metrics.LLMDuration.WithLabelValues(model).Observe(d.Seconds())
	if !success {
		return
	}
	p.Metrics.LLMTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	p.Metrics.LLMTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	p.Metrics.LLMCost.WithLabelValues(model).Add(costUSD)
}

// BatchClaimed records the size of a claimed batch.
func (p *Provider) BatchClaimed(n int) {
	p.Metrics.BatchSize.Observe(float64(n))
}

func (p *Provider) CacheLookup(model, result string) {
	p.Metrics.CacheLookups.WithLabelValues(model, result).Inc()
}

func (p *Provider) CacheInvalidation(tag string, success bool) {
	p.Metrics.CacheInvalidations.WithLabelValues(tag, outcome(success)).Inc()
}

// SetCircuitState mirrors the Redis breaker; pass it to
// redis.WithStateObserver.
func (p *Provider) SetCircuitState(s circuitbreaker.State) {
	p.Metrics.CircuitState.Set(float64(s))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
