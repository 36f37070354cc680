package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/provider"
)

const anthropicVersion = "2023-06-01"

type Provider struct {
	apiKey    string
	baseURL   string
	ratePer1K float64
	client    *http.Client
}

func New(apiKey, baseURL string, ratePer1K float64, client *http.Client) *Provider {
	return &Provider{
		apiKey:    apiKey,
		baseURL:   baseURL,
		ratePer1K: ratePer1K,
		client:    client,
	}
}

func (p *Provider) Name() string {
	return "anthropic"
}

type messagesRequest struct {
	Model       string           `json:"model"`
	System      string           `json:"system,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// toMessagesRequest maps the request onto Anthropic's shape. System messages
// are carried in a dedicated field rather than the message list.
func toMessagesRequest(req domain.CompletionRequest) messagesRequest {
	out := messagesRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			out.System = msg.Content
			continue
		}
		out.Messages = append(out.Messages, msg)
	}

	return out
}

func (p *Provider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	body, err := json.Marshal(toMessagesRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(msgResp.Content) == 0 {
		return nil, fmt.Errorf("anthropic error: empty content")
	}

	return &domain.CompletionResult{
		Content:          msgResp.Content[0].Text,
		Model:            msgResp.Model,
		PromptTokens:     msgResp.Usage.InputTokens,
		CompletionTokens: msgResp.Usage.OutputTokens,
		TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		FinishReason:     msgResp.StopReason,
		Provider:         p.Name(),
	}, nil
}

func (p *Provider) Cost(promptTokens, completionTokens int) float64 {
	return provider.LinearCost(p.ratePer1K, promptTokens, completionTokens)
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	req := domain.CompletionRequest{
		Model:     "claude-3-haiku-20240307",
		Messages:  []domain.Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}

	if _, err := p.Complete(ctx, req); err != nil {
		return fmt.Errorf("anthropic unhealthy: %w", err)
	}

	return nil
}
