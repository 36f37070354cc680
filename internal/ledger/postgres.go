package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmelo/llm-gateway/internal/domain"
)

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Append(ctx context.Context, record domain.UsageRecord) error {
	query := `
		INSERT INTO usage_records (id, tenant_id, provider, model, prompt_tokens, completion_tokens,
		                           total_tokens, cost_usd, latency_ms, status, error_message, cache_hit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := l.db.ExecContext(ctx, query,
		record.ID,
		record.TenantID,
		record.Provider,
		record.Model,
		record.PromptTokens,
		record.CompletionTokens,
		record.TotalTokens,
		record.CostUSD,
		record.LatencyMs,
		string(record.Status),
		sql.NullString{String: record.ErrorMessage, Valid: record.ErrorMessage != ""},
		record.CacheHit,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	return nil
}

func (l *PostgresLedger) Aggregate(ctx context.Context, tenantID string, since time.Time) ([]domain.ProviderUsage, error) {
	query := `
		SELECT provider,
		       COUNT(*),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COALESCE(AVG(latency_ms), 0)
		FROM usage_records
		WHERE tenant_id = $1 AND created_at >= $2
		GROUP BY provider
		ORDER BY provider
	`

	rows, err := l.db.QueryContext(ctx, query, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("query usage aggregates: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderUsage
	for rows.Next() {
		var u domain.ProviderUsage
		if err := rows.Scan(&u.Provider, &u.Requests, &u.TotalTokens, &u.TotalCostUSD, &u.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan usage aggregate: %w", err)
		}
		out = append(out, u)
	}

	return out, rows.Err()
}

func (l *PostgresLedger) TotalCost(ctx context.Context, tenantID string, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_usd), 0)
		FROM usage_records
		WHERE tenant_id = $1 AND created_at >= $2
	`

	var total float64
	if err := l.db.QueryRowContext(ctx, query, tenantID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("query total cost: %w", err)
	}

	return total, nil
}
