package domain

import "time"

// ProviderCached is the sentinel provider name recorded on usage records
// that were served from the response cache.
const ProviderCached = "cached"

type Tenant struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	APIKey           string    `json:"api_key,omitempty"`
	APIKeyHash       string    `json:"-"`
	RateLimit        int       `json:"rate_limit"`
	MonthlyBudgetUSD float64   `json:"monthly_budget_usd,omitempty"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionResult struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	FinishReason     string `json:"finish_reason"`
	Provider         string `json:"provider"`
}

// CacheEntry is the minimal payload stored per fingerprint: just enough to
// answer a repeat request, plus the name of the provider that produced it.
type CacheEntry struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

type UsageStatus string

const (
	UsageSuccess UsageStatus = "success"
	UsageFailed  UsageStatus = "failed"
)

type UsageRecord struct {
	ID               string      `json:"id"`
	TenantID         string      `json:"tenant_id"`
	Provider         string      `json:"provider"`
	Model            string      `json:"model"`
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	CostUSD          float64     `json:"cost_usd"`
	LatencyMs        int64       `json:"latency_ms"`
	Status           UsageStatus `json:"status"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	CacheHit         bool        `json:"cache_hit"`
	CreatedAt        time.Time   `json:"created_at"`
}

// ProviderUsage is one row of the aggregate usage report, grouped by provider.
type ProviderUsage struct {
	Provider     string  `json:"provider"`
	Requests     int64   `json:"requests"`
	TotalTokens  int64   `json:"tokens"`
	TotalCostUSD float64 `json:"cost"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
