package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/dmelo/llm-gateway/internal/domain"
	"github.com/dmelo/llm-gateway/internal/provider"
)

type Provider struct {
	client    *bedrockruntime.Client
	region    string
	ratePer1K float64
}

func New(ctx context.Context, region string, ratePer1K float64) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Provider{
		client:    bedrockruntime.NewFromConfig(cfg),
		region:    region,
		ratePer1K: ratePer1K,
	}, nil
}

func NewWithConfig(cfg aws.Config, ratePer1K float64) *Provider {
	return &Provider{
		client:    bedrockruntime.NewFromConfig(cfg),
		region:    cfg.Region,
		ratePer1K: ratePer1K,
	}
}

func (p *Provider) Name() string {
	return "bedrock"
}

type invokeRequest struct {
	AnthropicVersion string           `json:"anthropic_version,omitempty"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	System           string           `json:"system,omitempty"`
	Messages         []domain.Message `json:"messages"`
}

type invokeResponse struct {
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

func toInvokeRequest(req domain.CompletionRequest) invokeRequest {
	out := invokeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 1024
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

// mapModelID translates short model names onto Bedrock model identifiers.
// Fully qualified IDs pass through untouched.
func mapModelID(model string) string {
	if strings.Contains(model, ".") {
		return model
	}

	mapped := map[string]string{
		"claude-3-5-sonnet": "anthropic.claude-3-5-sonnet-20241022-v2:0",
		"claude-3-5-haiku":  "anthropic.claude-3-5-haiku-20241022-v1:0",
		"claude-3-opus":     "anthropic.claude-3-opus-20240229-v1:0",
		"claude-3-haiku":    "anthropic.claude-3-haiku-20240307-v1:0",
	}

	if id, ok := mapped[model]; ok {
		return id
	}
	return "anthropic.claude-3-haiku-20240307-v1:0"
}

func (p *Provider) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	body, err := json.Marshal(toInvokeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	input := &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(mapModelID(req.Model)),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	}

	output, err := p.client.InvokeModel(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}

	var invokeResp invokeResponse
	if err := json.Unmarshal(output.Body, &invokeResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(invokeResp.Content) == 0 {
		return nil, fmt.Errorf("bedrock error: empty content")
	}

	model := invokeResp.Model
	if model == "" {
		model = req.Model
	}

	return &domain.CompletionResult{
		Content:          invokeResp.Content[0].Text,
		Model:            model,
		PromptTokens:     invokeResp.Usage.InputTokens,
		CompletionTokens: invokeResp.Usage.OutputTokens,
		TotalTokens:      invokeResp.Usage.InputTokens + invokeResp.Usage.OutputTokens,
		FinishReason:     invokeResp.StopReason,
		Provider:         p.Name(),
	}, nil
}

func (p *Provider) Cost(promptTokens, completionTokens int) float64 {
	return provider.LinearCost(p.ratePer1K, promptTokens, completionTokens)
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	// Bedrock has no cheap liveness call; reachability is established by the
	// SDK config at startup.
	return nil
}
