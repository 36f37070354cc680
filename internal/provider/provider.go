// Package provider defines the uniform capability set every upstream LLM
// provider exposes, and the registry that lazily constructs one handle per
// configured provider name.
package provider

import (
	"context"

	"github.com/dmelo/llm-gateway/internal/domain"
)

// Provider is the capability set the dispatch pipeline depends on. The
// pipeline never branches on provider identity beyond selecting a handle.
type Provider interface {
	Name() string

	// Complete performs a single non-streaming completion call and
	// normalizes the provider's response shape into a CompletionResult.
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)

	// Cost is a pure function, linear in token counts with a per-provider
	// per-1000-token rate held in configuration.
	Cost(promptTokens, completionTokens int) float64

	HealthCheck(ctx context.Context) error
}

// LinearCost prices a completion at ratePer1K dollars per 1000 tokens over
// the combined token count.
func LinearCost(ratePer1K float64, promptTokens, completionTokens int) float64 {
	return float64(promptTokens+completionTokens) / 1000 * ratePer1K
}
