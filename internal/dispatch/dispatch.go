// Package dispatch implements the request pipeline applied to every inbound
// completion: rate-limit admission, cache lookup, ordered provider fallback,
// cost computation, and usage-ledger emission.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmelo/llm-gateway/internal/cache"
	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/ledger"
	"github.com/dmelo/llm-gateway/internal/metrics"
	"github.com/dmelo/llm-gateway/internal/provider"
	"github.com/dmelo/llm-gateway/internal/ratelimit"
	"github.com/dmelo/llm-gateway/internal/telemetry"
)

// Outcome is the terminal state of one dispatched request.
type Outcome struct {
	Result    *domain.CompletionResult
	Cached    bool
	CostUSD   float64
	LatencyMs int64

	// Remaining quota in the tenant's current rate window, captured at
	// admission and echoed back to the caller.
	RateLimitRemaining int
	RateLimitReset     time.Time
}

// BudgetObserver is notified after each successful completion so advisory
// budget checks can run off the hot path.
type BudgetObserver interface {
	Observe(ctx context.Context, tenant *domain.Tenant)
}

type Config struct {
	RateLimiter    ratelimit.RateLimiter
	Cache          cache.Cache
	CacheTTL       time.Duration
	Registry       *provider.Registry
	FallbackOrder  []string
	AttemptTimeout time.Duration
	Ledger         ledger.Ledger
	Budget         BudgetObserver
}

type Dispatcher struct {
	limiter        ratelimit.RateLimiter
	cache          cache.Cache
	cacheTTL       time.Duration
	registry       *provider.Registry
	fallbackOrder  []string
	attemptTimeout time.Duration
	ledger         ledger.Ledger
	budget         BudgetObserver
}

func New(cfg Config) *Dispatcher {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout == 0 {
		attemptTimeout = 60 * time.Second
	}

	return &Dispatcher{
		limiter:        cfg.RateLimiter,
		cache:          cfg.Cache,
		cacheTTL:       cacheTTL,
		registry:       cfg.Registry,
		fallbackOrder:  cfg.FallbackOrder,
		attemptTimeout: attemptTimeout,
		ledger:         cfg.Ledger,
		budget:         cfg.Budget,
	}
}

// Dispatch runs the pipeline for one authenticated tenant. Stages are
// strictly sequential per request: admission, cache lookup, ordered provider
// fallback, finalization. Rejections at admission produce no usage record;
// everything past admission produces exactly one.
func (d *Dispatcher) Dispatch(ctx context.Context, tenant *domain.Tenant, req domain.CompletionRequest) (*Outcome, error) {
	requestID := uuid.New().String()

	ctx, span := telemetry.StartSpan(ctx, "dispatch")
	defer span.End()
	telemetry.AddDispatchAttributes(span, tenant.ID, req.Model, requestID)

	allowed, remaining, resetAt, err := d.limiter.Allow(ctx, tenant.ID, tenant.RateLimit)
	if err != nil {
		// Fail closed: unmetered admission is worse than a refused request.
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if !allowed {
		slog.Warn("rate limit exceeded",
			"tenant_id", tenant.ID,
			"limit", tenant.RateLimit,
			"request_id", requestID,
		)
		metrics.RecordRateLimitHit(tenant.ID)
		return nil, fmt.Errorf("%w: limit %d requests per minute", domain.ErrRateLimitExceeded, tenant.RateLimit)
	}

	key := cache.Fingerprint(tenant.ID, req)
	if entry, ok := d.cache.Get(ctx, key); ok {
		return d.finishCacheHit(ctx, tenant, req, entry, requestID, remaining, resetAt), nil
	}
	metrics.RecordCacheMiss(tenant.ID)

	start := time.Now()
	var lastErr error

	for _, name := range d.fallbackOrder {
		p, ok := d.registry.Resolve(ctx, name)
		if !ok {
			// No credential configured: skip, not a failed attempt.
			continue
		}

		slog.Info("attempting provider",
			"provider", name,
			"tenant_id", tenant.ID,
			"model", req.Model,
			"request_id", requestID,
		)

		result, err := d.attempt(ctx, p, req)
		if err != nil {
			slog.Warn("provider failed, trying next",
				"provider", name,
				"error", err,
				"tenant_id", tenant.ID,
				"request_id", requestID,
			)
			metrics.RecordProviderError(name)
			lastErr = err
			continue
		}

		latency := time.Since(start)
		cost := p.Cost(result.PromptTokens, result.CompletionTokens)

		if err := d.cache.Set(ctx, key, &domain.CacheEntry{
			Content:  result.Content,
			Model:    result.Model,
			Provider: result.Provider,
		}, d.cacheTTL); err != nil {
			slog.Warn("failed to cache response", "error", err, "request_id", requestID)
		}

		return d.finishSuccess(ctx, tenant, result, requestID, cost, latency, remaining, resetAt), nil
	}

	return nil, d.finishExhausted(ctx, tenant, req, requestID, start, lastErr)
}

// attempt bounds one provider call so a hanging provider cannot stall
// fallback to the next candidate.
func (d *Dispatcher) attempt(ctx context.Context, p provider.Provider, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "provider."+p.Name())
	defer span.End()

	return p.Complete(ctx, req)
}

func (d *Dispatcher) finishCacheHit(ctx context.Context, tenant *domain.Tenant, req domain.CompletionRequest, entry *domain.CacheEntry, requestID string, remaining int, resetAt time.Time) *Outcome {
	slog.Info("cache hit",
		"tenant_id", tenant.ID,
		"model", req.Model,
		"request_id", requestID,
	)
	metrics.RecordCacheHit(tenant.ID)
	metrics.RecordRequest(tenant.ID, domain.ProviderCached, string(domain.UsageSuccess), 0)

	d.append(ctx, domain.UsageRecord{
		ID:        requestID,
		TenantID:  tenant.ID,
		Provider:  domain.ProviderCached,
		Model:     req.Model,
		Status:    domain.UsageSuccess,
		CacheHit:  true,
		CreatedAt: time.Now().UTC(),
	})

	return &Outcome{
		Result: &domain.CompletionResult{
			Content:  entry.Content,
			Model:    entry.Model,
			Provider: entry.Provider,
		},
		Cached:             true,
		RateLimitRemaining: remaining,
		RateLimitReset:     resetAt,
	}
}

func (d *Dispatcher) finishSuccess(ctx context.Context, tenant *domain.Tenant, result *domain.CompletionResult, requestID string, cost float64, latency time.Duration, remaining int, resetAt time.Time) *Outcome {
	latencyMs := latency.Milliseconds()

	metrics.RecordRequest(tenant.ID, result.Provider, string(domain.UsageSuccess), latency.Seconds())
	metrics.RecordTokens(tenant.ID, result.Provider, result.PromptTokens, result.CompletionTokens)
	metrics.RecordCost(tenant.ID, result.Provider, cost)

	d.append(ctx, domain.UsageRecord{
		ID:               requestID,
		TenantID:         tenant.ID,
		Provider:         result.Provider,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		CostUSD:          cost,
		LatencyMs:        latencyMs,
		Status:           domain.UsageSuccess,
		CreatedAt:        time.Now().UTC(),
	})

	slog.Info("completion succeeded",
		"tenant_id", tenant.ID,
		"provider", result.Provider,
		"model", result.Model,
		"tokens", result.TotalTokens,
		"cost_usd", cost,
		"latency_ms", latencyMs,
		"request_id", requestID,
	)

	if d.budget != nil {
		go d.budget.Observe(context.WithoutCancel(ctx), tenant)
	}

	return &Outcome{
		Result:             result,
		CostUSD:            cost,
		LatencyMs:          latencyMs,
		RateLimitRemaining: remaining,
		RateLimitReset:     resetAt,
	}
}

func (d *Dispatcher) finishExhausted(ctx context.Context, tenant *domain.Tenant, req domain.CompletionRequest, requestID string, start time.Time, lastErr error) error {
	errMsg := "no provider configured"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}

	slog.Error("all providers failed",
		"tenant_id", tenant.ID,
		"model", req.Model,
		"error", errMsg,
		"request_id", requestID,
	)
	metrics.RecordRequest(tenant.ID, "none", string(domain.UsageFailed), time.Since(start).Seconds())

	d.append(ctx, domain.UsageRecord{
		ID:           requestID,
		TenantID:     tenant.ID,
		Provider:     "none",
		Model:        req.Model,
		LatencyMs:    time.Since(start).Milliseconds(),
		Status:       domain.UsageFailed,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now().UTC(),
	})

	return fmt.Errorf("%w: last error: %s", domain.ErrAllProvidersFailed, errMsg)
}

// append writes a usage record, absorbing persistence failures: the caller's
// answer was already obtained, so a ledger outage degrades accounting, not
// service.
func (d *Dispatcher) append(ctx context.Context, record domain.UsageRecord) {
	if err := d.ledger.Append(ctx, record); err != nil {
		slog.Error("failed to append usage record",
			"error", err,
			"tenant_id", record.TenantID,
			"record_id", record.ID,
		)
		metrics.RecordLedgerError()
	}
}
