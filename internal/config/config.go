// Package config provides environment-driven configuration for the
// ingestion pipeline, following the precedence and defaulting style of
// the teacher library's config package: every setting has a built-in
// default, and environment variables override it. No environment
// variable is required for a minimal run.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the pipeline, embedder, queue, and sink
// packages read at startup. Fields are grouped by the component they
// configure.
type Config struct {
	// Embedding transport
	EmbeddingsEndpoint       string
	EmbeddingsTimeout        time.Duration
	GatewayAPIKey            string
	RetryCount               int
	WorkflowRetry            int
	EmbeddingsRateLimitRPS   float64
	EmbeddingsRateLimitBurst int

	// Batching
	StaticBatchSize    int
	DynamicBatchWindow int
	LatencyThresholdMS int64
	MinBatchSize       int
	MaxBatchSize       int
	ThinktankBatchCap  int

	// Dimension policy sets. Load fills them with fixed built-in lists,
	// not from the environment; tests can set them directly.
	TextEmbedding3SmallDimensions []int
	TextEmbedding3LargeDimensions []int
	JinaV2BaseDimensions          []int
	TextEmbeddingAda002Dimensions []int

	// OAuth
	OAuthTokenURL    string
	OAuthClientID    string
	OAuthClientSecret string

	// Pipeline
	ProcessingFlushThreshold int

	// Metrics / telemetry
	MetricsEnabled        bool
	TelemetryWorkers       int
	TelemetryBufferSize    int
	UsageHistoryEnabled    bool
	KafkaUsageHistoryTopic string

	// Queue (asynq / redis)
	RedisAddr string

	// HTTP API
	HTTPAddr string
}

// Load reads configuration from the environment, filling every field
// with a production-sensible default first.
func Load() *Config {
	cfg := &Config{
		EmbeddingsEndpoint:       getEnv("EMBEDDINGS_ENDPOINT", "https://embeddings.internal/v1/embed"),
		EmbeddingsTimeout:        getEnvDuration("EMBEDDINGS_TIMEOUT", 30*time.Second),
		GatewayAPIKey:            getEnv("GATEWAY_API_KEY", ""),
		RetryCount:               getEnvInt("EMBEDDINGS_RETRY_COUNT", 3),
		WorkflowRetry:            getEnvInt("WORKFLOW_RETRY", 3),
		EmbeddingsRateLimitRPS:   getEnvFloat("EMBEDDINGS_RATE_LIMIT_RPS", 20),
		EmbeddingsRateLimitBurst: getEnvInt("EMBEDDINGS_RATE_LIMIT_BURST", 5),

		StaticBatchSize:    getEnvInt("EMBEDDINGS_BATCH_SIZE", 8),
		DynamicBatchWindow: getEnvInt("DYNAMIC_BATCH_WINDOW", 5),
		LatencyThresholdMS: int64(getEnvInt("LATENCY_THRESHOLD_MS", 200)),
		MinBatchSize:       getEnvInt("MIN_BATCH_SIZE", 1),
		MaxBatchSize:       getEnvInt("MAX_BATCH_SIZE", 32),
		ThinktankBatchCap:  getEnvInt("THINKTANK_BATCH_CAP", 16),

		TextEmbedding3SmallDimensions: []int{512, 1024, 1536},
		TextEmbedding3LargeDimensions: []int{1024, 1536, 3072},
		JinaV2BaseDimensions:          []int{768},
		TextEmbeddingAda002Dimensions: []int{1536},

		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),

		ProcessingFlushThreshold: getEnvInt("PROCESSING_FLUSH_THRESHOLD", 200),

		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
		TelemetryWorkers:       getEnvInt("TELEMETRY_WORKERS", 4),
		TelemetryBufferSize:    getEnvInt("TELEMETRY_BUFFER_SIZE", 1024),
		UsageHistoryEnabled:    getEnvBool("USAGE_HISTORY_ENABLED", false),
		KafkaUsageHistoryTopic: getEnv("KAFKA_USAGE_HISTORY_TOPIC", "usage-history"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
