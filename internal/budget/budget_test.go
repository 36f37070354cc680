package budget

import (
	"context"
	"testing"
	"time"

	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/ledger"
	"github.com/dmelo/llm-gateway/internal/notifications"
)

type mockNotifier struct {
	sent []notifications.Notification
}

func (m *mockNotifier) Send(ctx context.Context, n notifications.Notification) error {
	m.sent = append(m.sent, n)
	return nil
}

func budgetTenant(budget float64) *domain.Tenant {
	return &domain.Tenant{
		ID:               "tenant1",
		Name:             "test",
		MonthlyBudgetUSD: budget,
		Active:           true,
	}
}

func spend(t *testing.T, l *ledger.InMemoryLedger, tenantID string, cost float64) {
	t.Helper()
	err := l.Append(context.Background(), domain.UsageRecord{
		TenantID:  tenantID,
		Provider:  "openai",
		CostUSD:   cost,
		Status:    domain.UsageSuccess,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("append record: %v", err)
	}
}

func newMonitor(l *ledger.InMemoryLedger, n notifications.Notifier) *Monitor {
	return NewMonitor(l, n, NewInMemoryDeduplicator(), DefaultThresholds())
}

func TestObserve_NoBudgetNoAlert(t *testing.T) {
	l := ledger.NewInMemoryLedger()
	n := &mockNotifier{}
	m := newMonitor(l, n)

	spend(t, l, "tenant1", 1000)
	m.Observe(context.Background(), budgetTenant(0))

	if len(n.sent) != 0 {
		t.Errorf("tenant without a budget must never alert, got %d alerts", len(n.sent))
	}
}

func TestObserve_UnderThresholdNoAlert(t *testing.T) {
	l := ledger.NewInMemoryLedger()
	n := &mockNotifier{}
	m := newMonitor(l, n)

	spend(t, l, "tenant1", 5.0)
	m.Observe(context.Background(), budgetTenant(10.0))

	if len(n.sent) != 0 {
		t.Errorf("expected no alert at 50%% spend, got %d", len(n.sent))
	}
}

func TestObserve_WarningThreshold(t *testing.T) {
	l := ledger.NewInMemoryLedger()
	n := &mockNotifier{}
	m := newMonitor(l, n)

	spend(t, l, "tenant1", 8.5)
	m.Observe(context.Background(), budgetTenant(10.0))

	if len(n.sent) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(n.sent))
	}
	if n.sent[0].Type != "budget_warning" {
		t.Errorf("expected budget_warning, got %s", n.sent[0].Type)
	}
	if n.sent[0].TenantID != "tenant1" {
		t.Errorf("expected tenant1, got %s", n.sent[0].TenantID)
	}
}

func TestObserve_ExceededThreshold(t *testing.T) {
	l := ledger.NewInMemoryLedger()
	n := &mockNotifier{}
	m := newMonitor(l, n)

	spend(t, l, "tenant1", 12.0)
	m.Observe(context.Background(), budgetTenant(10.0))

	if len(n.sent) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(n.sent))
	}
	if n.sent[0].Type != "budget_exceeded" {
		t.Errorf("expected budget_exceeded, got %s", n.sent[0].Type)
	}
}

func TestObserve_DeduplicatesSameLevel(t *testing.T) {
	l := ledger.NewInMemoryLedger()
	n := &mockNotifier{}
	m := newMonitor(l, n)

	tenant := budgetTenant(10.0)
	spend(t, l, "tenant1", 8.5)

	m.Observe(context.Background(), tenant)
	m.Observe(context.Background(), tenant)
	m.Observe(context.Background(), tenant)

	if len(n.sent) != 1 {
		t.Errorf("expected 1 alert for repeated warning, got %d", len(n.sent))
	}
}

func TestObserve_EscalationAlertsAgain(t *testing.T) {
	l := ledger.NewInMemoryLedger()
	n := &mockNotifier{}
	m := newMonitor(l, n)

	tenant := budgetTenant(10.0)

	spend(t, l, "tenant1", 8.5)
	m.Observe(context.Background(), tenant)

	spend(t, l, "tenant1", 3.0)
	m.Observe(context.Background(), tenant)

	if len(n.sent) != 2 {
		t.Fatalf("expected 2 alerts after escalation, got %d", len(n.sent))
	}
	if n.sent[1].Type != "budget_exceeded" {
		t.Errorf("expected budget_exceeded on escalation, got %s", n.sent[1].Type)
	}
}

func TestInMemoryDeduplicator(t *testing.T) {
	d := NewInMemoryDeduplicator()
	ctx := context.Background()

	if !d.ShouldAlert(ctx, "tenant1", AlertLevelWarning) {
		t.Error("first alert should fire")
	}
	if d.ShouldAlert(ctx, "tenant1", AlertLevelWarning) {
		t.Error("duplicate alert should be suppressed")
	}
	if !d.ShouldAlert(ctx, "tenant1", AlertLevelCritical) {
		t.Error("level change should fire")
	}
	if !d.ShouldAlert(ctx, "tenant2", AlertLevelWarning) {
		t.Error("other tenants are independent")
	}

	d.ClearAlert(ctx, "tenant1")
	if !d.ShouldAlert(ctx, "tenant1", AlertLevelCritical) {
		t.Error("cleared tenant should alert again")
	}
}
