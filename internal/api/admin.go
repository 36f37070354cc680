package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmelo/llm-gateway/internal/auth"
	"github.com/dmelo/llm-gateway/internal/crypto"
	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/ledger"
	"github.com/dmelo/llm-gateway/internal/repository"
)

type AdminHandler struct {
	tenantRepo repository.TenantRepository
	ledger     ledger.Ledger
	mux        *http.ServeMux
	handler    http.Handler
}

func NewAdminHandler(tenantRepo repository.TenantRepository, l ledger.Ledger, adminAuth *auth.AdminAuth) *AdminHandler {
	h := &AdminHandler{
		tenantRepo: tenantRepo,
		ledger:     l,
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /admin/tenants", h.createTenant)
	h.mux.HandleFunc("GET /admin/tenants", h.listTenants)
	h.mux.HandleFunc("GET /admin/tenants/{id}", h.getTenant)
	h.mux.HandleFunc("GET /admin/tenants/{id}/usage", h.getTenantUsage)

	h.handler = adminAuth.Middleware(h.mux)

	return h
}

func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

type CreateTenantRequest struct {
	Name             string  `json:"name"`
	RateLimit        int     `json:"rate_limit"`
	MonthlyBudgetUSD float64 `json:"monthly_budget"`
}

func (h *AdminHandler) createTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey := crypto.GenerateAPIKey()
	tenant := &domain.Tenant{
		ID:               uuid.New().String(),
		Name:             req.Name,
		APIKeyHash:       crypto.HashAPIKey(apiKey),
		RateLimit:        req.RateLimit,
		MonthlyBudgetUSD: req.MonthlyBudgetUSD,
		Active:           true,
		CreatedAt:        time.Now().UTC(),
	}

	if tenant.RateLimit == 0 {
		tenant.RateLimit = 100
	}

	if err := h.tenantRepo.Create(ctx, tenant); err != nil {
		slog.Error("failed to create tenant", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	slog.Info("tenant created", "tenant_id", tenant.ID, "name", tenant.Name)

	// The plaintext key is shown exactly once, at creation.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tenant_id":  tenant.ID,
		"name":       tenant.Name,
		"api_key":    apiKey,
		"rate_limit": tenant.RateLimit,
	})
}

func (h *AdminHandler) listTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenants, err := h.tenantRepo.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

func (h *AdminHandler) getTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	tenant, err := h.tenantRepo.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

func (h *AdminHandler) getTenantUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if _, err := h.tenantRepo.GetByID(ctx, id); err != nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	since := time.Now().UTC().AddDate(0, 0, -days)

	usage, err := h.ledger.Aggregate(ctx, id, since)
	if err != nil {
		slog.Error("failed to aggregate usage", "tenant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query usage")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tenant_id":         id,
		"period_days":       days,
		"usage_by_provider": usage,
	})
}
