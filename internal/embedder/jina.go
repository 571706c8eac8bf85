package embedder

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/model"
)

var (
	sharedConfigOnce sync.Once
	sharedConfig     *config.Config

	sharedLimiterOnce sync.Once
	sharedLimiterVal  *rate.Limiter

	sharedTokenCacheOnce sync.Once
	sharedTokenCacheVal  *tokenCache
)

// sharedTokenCache returns the process-wide OAuth token cache, so every
// connector instance reuses one cached token and one single-flight
// refresh.
func sharedTokenCache(cfg *config.Config) *tokenCache {
	sharedTokenCacheOnce.Do(func() {
		sharedTokenCacheVal = newTokenCache(cfg.OAuthTokenURL, cfg.OAuthClientID, cfg.OAuthClientSecret)
	})
	return sharedTokenCacheVal
}

// defaultConfig lazily loads the process-wide Config the embedder
// package falls back to when a connector's settings don't override a
// given tunable. Loaded once; cmd/ingestor/main.go loads it again
// itself for the rest of the process, so env vars are read exactly
// the way config.Load documents.
func defaultConfig() *config.Config {
	sharedConfigOnce.Do(func() {
		sharedConfig = config.Load()
	})
	return sharedConfig
}

// sharedLimiter throttles outbound embedding requests across every
// connector instance in the process, since they all ultimately share
// the same gateway quota regardless of which model they call.
func sharedLimiter(cfg *config.Config) *rate.Limiter {
	sharedLimiterOnce.Do(func() {
		sharedLimiterVal = rate.NewLimiter(rate.Limit(cfg.EmbeddingsRateLimitRPS), cfg.EmbeddingsRateLimitBurst)
	})
	return sharedLimiterVal
}

type jinaSettings struct {
	commonSettings
	Model string `json:"model"`
}

// JinaEmbedder calls a jina_v2_base-compatible embeddings endpoint.
// jina_v2_base does not support dimension overrides.
type JinaEmbedder struct {
	modelName string
	plan      batchPlan
	dims      *int
	userID    string
	transport *httpTransport
}

func NewJinaEmbedderFromSettings(settings map[string]interface{}) (Embedder, error) {
	s := jinaSettings{Model: "jina_v2_base"}
	if err := config.DecodeSettings(settings, &s); err != nil {
		return nil, &model.ConnectorError{Connector: "JinaEmbedder", Reason: "invalid settings", Cause: err}
	}
	cfg := defaultConfig()

	if err := validateBatchSize("JinaEmbedder", cfg.StaticBatchSize); err != nil {
		return nil, err
	}

	if _, err := resolveDimension(cfg, s.Model, s.EmbeddingDimensions); err != nil {
		return nil, err
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = cfg.EmbeddingsEndpoint
	}

	cache := sharedTokenCache(cfg)

	return &JinaEmbedder{
		modelName: s.Model,
		plan:      buildPlan(cfg, s.Model, s.BatchMode, 0),
		dims:      s.EmbeddingDimensions,
		userID:    s.UserID,
		transport: &httpTransport{
			client:     &http.Client{Timeout: cfg.EmbeddingsTimeout},
			endpoint:   endpoint,
			retryCount: cfg.RetryCount,
			bearer:     cache.Token,
			gatewayKey: cfg.GatewayAPIKey,
			limiter:    sharedLimiter(cfg),
		},
	}, nil
}

func (e *JinaEmbedder) Name() string { return "JinaEmbedder" }

func (e *JinaEmbedder) Embed(ctx context.Context, docs []model.RagDocument) ([]model.RagVector, Usage, error) {
	return recordAndEmbed(ctx, defaultConfig(), e.modelName, e.plan, e.transport, e.dims, e.userID, docs)
}

// staticBearer wraps a pre-issued API key as a bearer func, used by
// connectors that authenticate with a long-lived gateway key rather
// than OAuth client-credentials.
func staticBearer(apiKey string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return apiKey, nil
	}
}
