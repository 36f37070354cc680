package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_requests_total",
			Help: "Total number of completion requests processed",
		},
		[]string{"tenant_id", "provider", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmgateway_request_duration_seconds",
			Help:    "Completion request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_tokens_total",
			Help: "Total number of tokens processed",
		},
		[]string{"tenant_id", "provider", "type"},
	)

	CostTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_cost_usd_total",
			Help: "Total cost in USD",
		},
		[]string{"tenant_id", "provider"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"tenant_id"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"tenant_id"},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_provider_errors_total",
			Help: "Total number of provider attempt failures",
		},
		[]string{"provider"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmgateway_rate_limit_exceeded_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"tenant_id"},
	)

	LedgerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "llmgateway_ledger_errors_total",
			Help: "Total number of usage ledger write failures",
		},
	)
)

func RecordRequest(tenantID, provider, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(tenantID, provider, status).Inc()
	RequestDuration.WithLabelValues(provider).Observe(durationSec)
}

func RecordTokens(tenantID, provider string, promptTokens, completionTokens int) {
	TokensTotal.WithLabelValues(tenantID, provider, "prompt").Add(float64(promptTokens))
	TokensTotal.WithLabelValues(tenantID, provider, "completion").Add(float64(completionTokens))
}

func RecordCost(tenantID, provider string, costUSD float64) {
	CostTotal.WithLabelValues(tenantID, provider).Add(costUSD)
}

func RecordCacheHit(tenantID string) {
	CacheHits.WithLabelValues(tenantID).Inc()
}

func RecordCacheMiss(tenantID string) {
	CacheMisses.WithLabelValues(tenantID).Inc()
}

func RecordProviderError(provider string) {
	ProviderErrors.WithLabelValues(provider).Inc()
}

func RecordRateLimitHit(tenantID string) {
	RateLimitHits.WithLabelValues(tenantID).Inc()
}

func RecordLedgerError() {
	LedgerErrors.Inc()
}
