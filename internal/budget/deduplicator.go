package budget

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertDeduplicator suppresses repeat alerts for the same tenant and level,
// including across gateway instances when backed by Redis.
type AlertDeduplicator interface {
	// ShouldAlert reports whether an alert for this tenant and level is new
	// and should be dispatched.
	ShouldAlert(ctx context.Context, tenantID string, level AlertLevel) bool

	// ClearAlert removes alert state for a tenant, re-arming notifications
	// once usage drops back under the thresholds.
	ClearAlert(ctx context.Context, tenantID string)
}

// InMemoryDeduplicator keeps alert state per process. Suitable for
// single-instance deployments.
type InMemoryDeduplicator struct {
	mu         sync.Mutex
	lastAlerts map[string]AlertLevel
}

func NewInMemoryDeduplicator() *InMemoryDeduplicator {
	return &InMemoryDeduplicator{
		lastAlerts: make(map[string]AlertLevel),
	}
}

func (d *InMemoryDeduplicator) ShouldAlert(ctx context.Context, tenantID string, level AlertLevel) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastAlerts[tenantID]; ok && last == level {
		return false
	}

	d.lastAlerts[tenantID] = level
	return true
}

func (d *InMemoryDeduplicator) ClearAlert(ctx context.Context, tenantID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastAlerts, tenantID)
}

// RedisDeduplicator shares alert state across instances. lockTTL bounds how
// long an alert stays suppressed before it may fire again.
type RedisDeduplicator struct {
	client  *redis.Client
	lockTTL time.Duration
}

func NewRedisDeduplicator(redisURL string, lockTTL time.Duration) (*RedisDeduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &RedisDeduplicator{
		client:  redis.NewClient(opts),
		lockTTL: lockTTL,
	}, nil
}

func (d *RedisDeduplicator) ShouldAlert(ctx context.Context, tenantID string, level AlertLevel) bool {
	key := "budget_alert:" + tenantID + ":" + string(level)

	ok, err := d.client.SetNX(ctx, key, 1, d.lockTTL).Result()
	if err != nil {
		// When Redis is unreachable, prefer a duplicate alert over a
		// missed one.
		return true
	}

	return ok
}

func (d *RedisDeduplicator) ClearAlert(ctx context.Context, tenantID string) {
	for _, level := range []AlertLevel{AlertLevelWarning, AlertLevelCritical, AlertLevelExceeded} {
		d.client.Del(ctx, "budget_alert:"+tenantID+":"+string(level))
	}
}
