// Package cache stores completion responses keyed by a content fingerprint
// so repeat prompts can be answered without touching a provider.
// It supports both in-memory (single instance) and Redis (distributed) backends.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmelo/llm-gateway/internal/domain"
)

// Cache defines the interface for response caching backends.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.CacheEntry, bool)
	Set(ctx context.Context, key string, entry *domain.CacheEntry, ttl time.Duration) error
}

// providerClass is a placeholder partition in the fingerprint. Entries are
// deliberately provider-agnostic: providers are behaviorally uniform, so an
// answer cached from one may satisfy a request that would have gone to
// another. The serving provider's name is preserved inside the entry.
const providerClass = "any"

// Fingerprint derives the cache key for a completion request. It is a pure
// function: identical (tenant, model, messages, sampling) inputs always
// produce the same key, and any change to message content or order changes it.
func Fingerprint(tenantID string, req domain.CompletionRequest) string {
	data, _ := json.Marshal(struct {
		TenantID    string           `json:"tenant_id"`
		Class       string           `json:"class"`
		Model       string           `json:"model"`
		Messages    []domain.Message `json:"messages"`
		Temperature float64          `json:"temperature"`
		MaxTokens   int              `json:"max_tokens"`
	}{
		TenantID:    tenantID,
		Class:       providerClass,
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})

	hash := sha256.Sum256(data)
	return "cache:" + hex.EncodeToString(hash[:])
}

// Disabled is a Cache that never hits and never stores. It backs the global
// cache-enable flag: with caching off, every get is a miss and set is a no-op.
type Disabled struct{}

func NewDisabled() Disabled { return Disabled{} }

func (Disabled) Get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	return nil, false
}

func (Disabled) Set(ctx context.Context, key string, entry *domain.CacheEntry, ttl time.Duration) error {
	return nil
}

type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
}

type cacheItem struct {
	entry     *domain.CacheEntry
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	c := &InMemoryCache{
		items: make(map[string]*cacheItem),
	}
	go c.cleanup()
	return c
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (*domain.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		return nil, false
	}

	return item.entry, true
}

func (c *InMemoryCache) Set(ctx context.Context, key string, entry *domain.CacheEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		entry:     entry,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

func (c *InMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, item := range c.items {
			if now.After(item.expiresAt) {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}
