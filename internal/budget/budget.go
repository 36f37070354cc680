// Package budget watches per-tenant monthly spend against the configured
// ceiling. The budget is advisory: crossing a threshold raises an alert but
// never blocks a request.
package budget

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/ledger"
	"github.com/dmelo/llm-gateway/internal/notifications"
)

type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
	AlertLevelExceeded AlertLevel = "exceeded"
)

type Thresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:  0.8,
		Critical: 0.95,
	}
}

type Monitor struct {
	ledger     ledger.Ledger
	notifier   notifications.Notifier
	dedup      AlertDeduplicator
	thresholds Thresholds
}

func NewMonitor(l ledger.Ledger, notifier notifications.Notifier, dedup AlertDeduplicator, thresholds Thresholds) *Monitor {
	return &Monitor{
		ledger:     l,
		notifier:   notifier,
		dedup:      dedup,
		thresholds: thresholds,
	}
}

// Observe recomputes the tenant's month-to-date spend and dispatches at most
// one alert per crossed threshold level. Called off the hot path after each
// successful completion.
func (m *Monitor) Observe(ctx context.Context, tenant *domain.Tenant) {
	if tenant.MonthlyBudgetUSD <= 0 {
		return
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	spent, err := m.ledger.TotalCost(ctx, tenant.ID, monthStart)
	if err != nil {
		slog.Warn("budget check failed", "tenant_id", tenant.ID, "error", err)
		return
	}

	ratio := spent / tenant.MonthlyBudgetUSD

	var level AlertLevel
	switch {
	case ratio >= 1.0:
		level = AlertLevelExceeded
	case ratio >= m.thresholds.Critical:
		level = AlertLevelCritical
	case ratio >= m.thresholds.Warning:
		level = AlertLevelWarning
	default:
		m.dedup.ClearAlert(ctx, tenant.ID)
		return
	}

	if !m.dedup.ShouldAlert(ctx, tenant.ID, level) {
		return
	}

	notification := notifications.Notification{
		Type:     notifications.NotificationType("budget_" + string(level)),
		TenantID: tenant.ID,
		Message:  "tenant monthly budget " + string(level),
		Data: map[string]interface{}{
			"budget_usd": tenant.MonthlyBudgetUSD,
			"spent_usd":  spent,
			"ratio":      ratio,
		},
	}

	if err := m.notifier.Send(ctx, notification); err != nil {
		slog.Error("failed to send budget alert", "tenant_id", tenant.ID, "level", level, "error", err)
		return
	}

	slog.Info("budget alert sent",
		"tenant_id", tenant.ID,
		"level", level,
		"spent_usd", spent,
		"budget_usd", tenant.MonthlyBudgetUSD,
	)
}
