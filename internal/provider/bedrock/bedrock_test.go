package bedrock

import (
	"testing"

	"github.com/dmelo/llm-gateway/internal/domain"
)

func TestMapModelID(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-5-sonnet", "anthropic.claude-3-5-sonnet-20241022-v2:0"},
		{"claude-3-haiku", "anthropic.claude-3-haiku-20240307-v1:0"},
		{"anthropic.claude-3-opus-20240229-v1:0", "anthropic.claude-3-opus-20240229-v1:0"},
		{"unknown-model", "anthropic.claude-3-haiku-20240307-v1:0"},
	}

	for _, tt := range tests {
		if got := mapModelID(tt.model); got != tt.want {
			t.Errorf("mapModelID(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestToInvokeRequest(t *testing.T) {
	req := domain.CompletionRequest{
		Model: "claude-3-5-sonnet",
		Messages: []domain.Message{
			{Role: "system", Content: "you are terse"},
			{Role: "user", Content: "hi"},
		},
		Temperature: 0.5,
	}

	out := toInvokeRequest(req)

	if out.AnthropicVersion != "bedrock-2023-05-31" {
		t.Errorf("unexpected anthropic_version %q", out.AnthropicVersion)
	}
	if out.System != "you are terse" {
		t.Errorf("expected system prompt extracted, got %q", out.System)
	}
	if len(out.Messages) != 1 || out.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", out.Messages)
	}
	if out.MaxTokens != 1024 {
		t.Errorf("expected default max_tokens 1024, got %d", out.MaxTokens)
	}

	req.MaxTokens = 256
	if got := toInvokeRequest(req).MaxTokens; got != 256 {
		t.Errorf("explicit max_tokens must pass through, got %d", got)
	}
}
