package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProviderConfig holds the credential and pricing for one upstream provider.
// A provider with an empty credential is treated as not configured and is
// skipped by the dispatch pipeline, not treated as an error.
type ProviderConfig struct {
	APIKey          string
	BaseURL         string
	CostPer1KTokens float64
}

type Config struct {
	Addr        string
	LogLevel    string
	RedisURL    string
	DatabaseURL string

	OpenAI    ProviderConfig
	Anthropic ProviderConfig

	BedrockEnabled         bool
	AWSRegion              string
	BedrockCostPer1KTokens float64

	// FallbackOrder is the administrator-set provider priority list,
	// tried first to last on every cache miss.
	FallbackOrder   []string
	ProviderTimeout time.Duration

	CacheEnabled bool
	CacheTTL     time.Duration

	DefaultRateLimit int

	OTLPEndpoint     string
	SNSTopicARN      string
	SQSUsageQueueURL string
	SecretsName      string

	AdminAuthEnabled  bool
	AdminUsername     string
	AdminPasswordHash string
}

func Load() (*Config, error) {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getEnv("ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAI: ProviderConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			CostPer1KTokens: getFloatEnv("OPENAI_COST_PER_1K_TOKENS", 0.002),
		},
		Anthropic: ProviderConfig{
			APIKey:          getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:         getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
			CostPer1KTokens: getFloatEnv("ANTHROPIC_COST_PER_1K_TOKENS", 0.003),
		},

		BedrockEnabled:         getEnv("BEDROCK_ENABLED", "false") == "true",
		AWSRegion:              getEnv("AWS_REGION", ""),
		BedrockCostPer1KTokens: getFloatEnv("BEDROCK_COST_PER_1K_TOKENS", 0.0025),

		FallbackOrder:   splitCSV(getEnv("PROVIDER_FALLBACK_ORDER", "openai,anthropic,bedrock")),
		ProviderTimeout: getDurationEnv("PROVIDER_TIMEOUT", 60*time.Second),

		CacheEnabled: getEnv("CACHE_ENABLED", "true") == "true",
		CacheTTL:     getDurationEnv("CACHE_TTL", time.Hour),

		DefaultRateLimit: getIntEnv("DEFAULT_RATE_LIMIT", 100),

		OTLPEndpoint:     getEnv("OTLP_ENDPOINT", ""),
		SNSTopicARN:      getEnv("SNS_TOPIC_ARN", ""),
		SQSUsageQueueURL: getEnv("SQS_USAGE_QUEUE_URL", ""),
		SecretsName:      getEnv("SECRETS_NAME", ""),

		AdminAuthEnabled:  getEnv("ADMIN_AUTH_ENABLED", "false") == "true",
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
