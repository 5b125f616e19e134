// Package metrics provides Prometheus metrics for revgate's review
// pipeline: gateway calls, the review-result cache, and multi-turn runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ReviewMetrics collects and exposes revgate's Prometheus metrics.
type ReviewMetrics struct {
	registry *prometheus.Registry

	// Gateway call metrics
	GatewayCallsTotal    *prometheus.CounterVec
	GatewayCallDuration  *prometheus.HistogramVec
	GatewayErrorsTotal   *prometheus.CounterVec
	GatewayRetriesTotal  *prometheus.CounterVec

	// Cost metrics
	ReviewCostUSD    *prometheus.HistogramVec
	ReviewInputTokens  *prometheus.HistogramVec
	ReviewOutputTokens *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Multi-turn metrics
	MultiTurnRunsTotal   *prometheus.CounterVec
	MultiTurnChunks      *prometheus.HistogramVec
	SynthesisCallsTotal  *prometheus.CounterVec
}

// New creates a ReviewMetrics collector registered against a fresh
// registry.
func New() *ReviewMetrics {
	registry := prometheus.NewRegistry()

	rm := &ReviewMetrics{
		registry: registry,

		GatewayCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_gateway_calls_total",
				Help: "Total number of gateway calls issued, by provider, model and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		GatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revgate_gateway_call_duration_seconds",
				Help:    "Gateway call latency",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
			},
			[]string{"provider", "model"},
		),
		GatewayErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_gateway_errors_total",
				Help: "Total number of gateway call failures, by provider and error_type",
			},
			[]string{"provider", "error_type"},
		),
		GatewayRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_gateway_retries_total",
				Help: "Total number of retry attempts issued by the retry policy",
			},
			[]string{"provider"},
		),

		ReviewCostUSD: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revgate_review_cost_usd",
				Help:    "Estimated cost of a single review call in USD",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.10, 0.25, 0.50, 1.00, 2.50, 5.00},
			},
			[]string{"provider", "model"},
		),
		ReviewInputTokens: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revgate_review_input_tokens",
				Help:    "Input token count of a single review call",
				Buckets: prometheus.ExponentialBuckets(500, 2, 12), // 500 to ~1M
			},
			[]string{"provider", "model"},
		),
		ReviewOutputTokens: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revgate_review_output_tokens",
				Help:    "Output token count of a single review call",
				Buckets: prometheus.ExponentialBuckets(100, 2, 10),
			},
			[]string{"provider", "model"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_cache_hits_total",
				Help: "Total number of review cache hits",
			},
			[]string{},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_cache_misses_total",
				Help: "Total number of review cache misses",
			},
			[]string{},
		),

		MultiTurnRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_multiturn_runs_total",
				Help: "Total number of multi-turn executor runs, by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		MultiTurnChunks: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revgate_multiturn_chunks",
				Help:    "Number of chunks a multi-turn run split a prompt into",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 13, 21},
			},
			[]string{"strategy"},
		),
		SynthesisCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revgate_synthesis_calls_total",
				Help: "Total number of synthesis LLM calls, by task and outcome",
			},
			[]string{"task", "outcome"},
		),
	}

	rm.registerAll()
	return rm
}

func (rm *ReviewMetrics) registerAll() {
	rm.registry.MustRegister(
		rm.GatewayCallsTotal,
		rm.GatewayCallDuration,
		rm.GatewayErrorsTotal,
		rm.GatewayRetriesTotal,
		rm.ReviewCostUSD,
		rm.ReviewInputTokens,
		rm.ReviewOutputTokens,
		rm.CacheHitsTotal,
		rm.CacheMissesTotal,
		rm.MultiTurnRunsTotal,
		rm.MultiTurnChunks,
		rm.SynthesisCallsTotal,
	)
}

// Registry returns the Prometheus registry backing this collector, for
// wiring into an HTTP /metrics handler.
func (rm *ReviewMetrics) Registry() *prometheus.Registry {
	return rm.registry
}

// RecordGatewayCall records the outcome and latency of one gateway call.
func (rm *ReviewMetrics) RecordGatewayCall(provider, model, outcome string, durationSec float64) {
	rm.GatewayCallsTotal.WithLabelValues(provider, model, outcome).Inc()
	rm.GatewayCallDuration.WithLabelValues(provider, model).Observe(durationSec)
}

// RecordGatewayError records a classified gateway failure.
func (rm *ReviewMetrics) RecordGatewayError(provider, errorType string) {
	rm.GatewayErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordRetry records one retry attempt for a provider.
func (rm *ReviewMetrics) RecordRetry(provider string) {
	rm.GatewayRetriesTotal.WithLabelValues(provider).Inc()
}

// RecordReviewCost records the cost and token usage of one successful
// review call.
func (rm *ReviewMetrics) RecordReviewCost(provider, model string, costUSD float64, inputTokens, outputTokens int) {
	rm.ReviewCostUSD.WithLabelValues(provider, model).Observe(costUSD)
	rm.ReviewInputTokens.WithLabelValues(provider, model).Observe(float64(inputTokens))
	rm.ReviewOutputTokens.WithLabelValues(provider, model).Observe(float64(outputTokens))
}

// RecordCacheHit records a review cache hit.
func (rm *ReviewMetrics) RecordCacheHit() {
	rm.CacheHitsTotal.WithLabelValues().Inc()
}

// RecordCacheMiss records a review cache miss.
func (rm *ReviewMetrics) RecordCacheMiss() {
	rm.CacheMissesTotal.WithLabelValues().Inc()
}

// RecordMultiTurnRun records the outcome and chunk count of one
// multi-turn executor run.
func (rm *ReviewMetrics) RecordMultiTurnRun(strategy, outcome string, chunks int) {
	rm.MultiTurnRunsTotal.WithLabelValues(strategy, outcome).Inc()
	rm.MultiTurnChunks.WithLabelValues(strategy).Observe(float64(chunks))
}

// RecordSynthesisCall records the outcome of one synthesis LLM call
// (task is "summary" or "recommendations").
func (rm *ReviewMetrics) RecordSynthesisCall(task, outcome string) {
	rm.SynthesisCallsTotal.WithLabelValues(task, outcome).Inc()
}

var (
	defaultMetrics *ReviewMetrics
	once           sync.Once
)

// Default returns the process-wide default metrics instance.
func Default() *ReviewMetrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
