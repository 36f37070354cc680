// Package ledger persists one usage record per dispatched request and serves
// the aggregate reporting queries behind the admin surface. Records are
// append-only: nothing in the hot path updates or deletes them.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/dmelo/llm-gateway/internal/domain"
)

type Ledger interface {
	Append(ctx context.Context, record domain.UsageRecord) error

	// Aggregate sums request counts, tokens and cost, and averages latency,
	// grouped by provider, for one tenant since the given time.
	Aggregate(ctx context.Context, tenantID string, since time.Time) ([]domain.ProviderUsage, error)

	// TotalCost returns the tenant's summed cost since the given time.
	TotalCost(ctx context.Context, tenantID string, since time.Time) (float64, error)
}

// InMemoryLedger keeps records in a slice. Suitable for tests and
// single-instance deployments without a database.
type InMemoryLedger struct {
	mu      sync.RWMutex
	records []domain.UsageRecord
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		records: make([]domain.UsageRecord, 0),
	}
}

func (l *InMemoryLedger) Append(ctx context.Context, record domain.UsageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
	return nil
}

func (l *InMemoryLedger) Aggregate(ctx context.Context, tenantID string, since time.Time) ([]domain.ProviderUsage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	type bucket struct {
		usage        domain.ProviderUsage
		latencyTotal int64
	}

	buckets := make(map[string]*bucket)
	var order []string

	for _, r := range l.records {
		if r.TenantID != tenantID || r.CreatedAt.Before(since) {
			continue
		}

		b, ok := buckets[r.Provider]
		if !ok {
			b = &bucket{usage: domain.ProviderUsage{Provider: r.Provider}}
			buckets[r.Provider] = b
			order = append(order, r.Provider)
		}

		b.usage.Requests++
		b.usage.TotalTokens += int64(r.TotalTokens)
		b.usage.TotalCostUSD += r.CostUSD
		b.latencyTotal += r.LatencyMs
	}

	out := make([]domain.ProviderUsage, 0, len(buckets))
	for _, provider := range order {
		b := buckets[provider]
		if b.usage.Requests > 0 {
			b.usage.AvgLatencyMs = float64(b.latencyTotal) / float64(b.usage.Requests)
		}
		out = append(out, b.usage)
	}

	return out, nil
}

func (l *InMemoryLedger) TotalCost(ctx context.Context, tenantID string, since time.Time) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, r := range l.records {
		if r.TenantID == tenantID && !r.CreatedAt.Before(since) {
			total += r.CostUSD
		}
	}
	return total, nil
}

// Records returns a copy of everything appended so far.
func (l *InMemoryLedger) Records() []domain.UsageRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.UsageRecord, len(l.records))
	copy(out, l.records)
	return out
}
