package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmelo/llm-gateway/internal/dispatch"
	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/provider"
	"github.com/dmelo/llm-gateway/internal/repository"
)

const apiKeyHeader = "X-API-Key"

type HandlerConfig struct {
	TenantRepo repository.TenantRepository
	Dispatcher *dispatch.Dispatcher
	Registry   *provider.Registry
}

type Handler struct {
	tenantRepo repository.TenantRepository
	dispatcher *dispatch.Dispatcher
	registry   *provider.Registry
	mux        *http.ServeMux
}

func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		tenantRepo: cfg.TenantRepo,
		dispatcher: cfg.Dispatcher,
		registry:   cfg.Registry,
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/completions", h.handleCompletions)
	h.mux.HandleFunc("POST /completions", h.handleCompletions)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /health/live", h.handleHealthLive)
	h.mux.HandleFunc("GET /health/ready", h.handleHealthReady)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// completionResponse is the caller-facing envelope. Cost and latency are
// omitted on cache hits, where both are zero by definition.
type completionResponse struct {
	Cached             bool                     `json:"cached"`
	Response           *domain.CompletionResult `json:"response"`
	CostUSD            *float64                 `json:"cost,omitempty"`
	LatencyMs          *int64                   `json:"latency_ms,omitempty"`
	RateLimitRemaining int                      `json:"rate_limit_remaining"`
}

func (h *Handler) handleCompletions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	apiKey := r.Header.Get(apiKeyHeader)
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing API key")
		return
	}

	tenant, err := h.tenantRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		slog.Warn("authentication failed", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	var req domain.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "model and messages are required")
		return
	}

	// Token streaming is not supported; streamed requests are served as
	// regular completions.
	req.Stream = false

	outcome, err := h.dispatcher.Dispatch(ctx, tenant, req)
	if err != nil {
		h.writeDispatchError(w, tenant, err)
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tenant.RateLimit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(outcome.RateLimitRemaining))
	w.Header().Set("X-RateLimit-Reset", outcome.RateLimitReset.UTC().Format(time.RFC3339))

	resp := completionResponse{
		Cached:             outcome.Cached,
		Response:           outcome.Result,
		RateLimitRemaining: outcome.RateLimitRemaining,
	}
	if !outcome.Cached {
		resp.CostUSD = &outcome.CostUSD
		resp.LatencyMs = &outcome.LatencyMs
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeDispatchError(w http.ResponseWriter, tenant *domain.Tenant, err error) {
	switch {
	case errors.Is(err, domain.ErrRateLimitExceeded):
		w.Header().Set("Retry-After", "60")
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(tenant.RateLimit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrAllProvidersFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("dispatch error", "error", err, "tenant_id", tenant.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providers := make(map[string]string)
	status := "healthy"

	for _, name := range h.registry.Names() {
		p, ok := h.registry.Resolve(ctx, name)
		if !ok {
			providers[name] = "unavailable"
			status = "degraded"
			continue
		}

		if err := p.HealthCheck(ctx); err != nil {
			providers[name] = "unhealthy"
			status = "degraded"
		} else {
			providers[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"providers": providers,
	})
}

func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
