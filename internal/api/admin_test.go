package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmelo/llm-gateway/internal/auth"
	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/ledger"
	"github.com/dmelo/llm-gateway/internal/repository"
)

func newAdminHandler(t *testing.T) (*AdminHandler, *repository.InMemoryTenantRepository, *ledger.InMemoryLedger) {
	t.Helper()
	repo := repository.NewInMemoryTenantRepository()
	led := ledger.NewInMemoryLedger()
	h := NewAdminHandler(repo, led, auth.NewAdminAuth(false, "", ""))
	return h, repo, led
}

func createTenantVia(t *testing.T, h *AdminHandler, name string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"name":           name,
		"rate_limit":     50,
		"monthly_budget": 10.0,
	})
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestCreateTenant(t *testing.T) {
	h, repo, _ := newAdminHandler(t)

	resp := createTenantVia(t, h, "acme")

	apiKey, _ := resp["api_key"].(string)
	if !strings.HasPrefix(apiKey, "llm-gw-") {
		t.Errorf("expected llm-gw- key prefix, got %q", apiKey)
	}
	if resp["name"] != "acme" {
		t.Errorf("expected name acme, got %v", resp["name"])
	}
	if resp["rate_limit"].(float64) != 50 {
		t.Errorf("expected rate_limit 50, got %v", resp["rate_limit"])
	}

	// The minted key must authenticate against the repository.
	tenant, err := repo.GetByAPIKey(context.Background(), apiKey)
	if err != nil {
		t.Fatalf("minted key should resolve the tenant: %v", err)
	}
	if tenant.Name != "acme" {
		t.Errorf("expected tenant acme, got %s", tenant.Name)
	}
	if tenant.APIKey != "" {
		t.Error("plaintext key must not be stored on the tenant")
	}
}

func TestCreateTenant_DefaultRateLimit(t *testing.T) {
	h, _, _ := newAdminHandler(t)

	body, _ := json.Marshal(map[string]interface{}{"name": "acme"})
	req := httptest.NewRequest(http.MethodPost, "/admin/tenants", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["rate_limit"].(float64) != 100 {
		t.Errorf("expected default rate_limit 100, got %v", resp["rate_limit"])
	}
}

func TestCreateTenant_MissingName(t *testing.T) {
	h, _, _ := newAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/tenants", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListTenants(t *testing.T) {
	h, _, _ := newAdminHandler(t)
	createTenantVia(t, h, "acme")
	createTenantVia(t, h, "globex")

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Errorf("expected 2 tenants, got %d", resp.Count)
	}
}

func TestGetTenant_NotFound(t *testing.T) {
	h, _, _ := newAdminHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/missing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetTenantUsage(t *testing.T) {
	h, _, led := newAdminHandler(t)
	created := createTenantVia(t, h, "acme")
	tenantID := created["tenant_id"].(string)

	now := time.Now().UTC()
	led.Append(context.Background(), domain.UsageRecord{
		TenantID:    tenantID,
		Provider:    "openai",
		TotalTokens: 100,
		CostUSD:     0.5,
		LatencyMs:   200,
		Status:      domain.UsageSuccess,
		CreatedAt:   now,
	})
	led.Append(context.Background(), domain.UsageRecord{
		TenantID:    tenantID,
		Provider:    "anthropic",
		TotalTokens: 40,
		CostUSD:     0.2,
		LatencyMs:   150,
		Status:      domain.UsageSuccess,
		CreatedAt:   now,
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/"+tenantID+"/usage?days=7", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TenantID        string                 `json:"tenant_id"`
		PeriodDays      int                    `json:"period_days"`
		UsageByProvider []domain.ProviderUsage `json:"usage_by_provider"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.TenantID != tenantID {
		t.Errorf("expected tenant_id %s, got %s", tenantID, resp.TenantID)
	}
	if resp.PeriodDays != 7 {
		t.Errorf("expected period_days 7, got %d", resp.PeriodDays)
	}
	if len(resp.UsageByProvider) != 2 {
		t.Errorf("expected 2 provider groups, got %d", len(resp.UsageByProvider))
	}
}

func TestGetTenantUsage_UnknownTenant(t *testing.T) {
	h, _, _ := newAdminHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants/missing/usage", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAdmin_AuthEnforced(t *testing.T) {
	repo := repository.NewInMemoryTenantRepository()
	led := ledger.NewInMemoryLedger()

	hash, err := auth.HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	h := NewAdminHandler(repo, led, auth.NewAdminAuth(true, "admin", hash))

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad password, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid credentials, got %d", rec.Code)
	}
}
