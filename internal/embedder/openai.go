package embedder

import (
	"context"
	"net/http"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/model"
)

type openAISettings struct {
	commonSettings
	Model string `json:"model"`
}

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint,
// authenticating with the static gateway key as its bearer token
// rather than an OAuth client-credentials token.
type OpenAIEmbedder struct {
	modelName string
	plan      batchPlan
	dims      *int
	userID    string
	transport *httpTransport
}

func NewOpenAIEmbedderFromSettings(settings map[string]interface{}) (Embedder, error) {
	s := openAISettings{Model: "text-embedding-3-small"}
	if err := config.DecodeSettings(settings, &s); err != nil {
		return nil, &model.ConnectorError{Connector: "OpenAIEmbedder", Reason: "invalid settings", Cause: err}
	}
	cfg := defaultConfig()

	if err := validateBatchSize("OpenAIEmbedder", cfg.StaticBatchSize); err != nil {
		return nil, err
	}

	if _, err := resolveDimension(cfg, s.Model, s.EmbeddingDimensions); err != nil {
		return nil, err
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = cfg.EmbeddingsEndpoint
	}

	return &OpenAIEmbedder{
		modelName: s.Model,
		plan:      buildPlan(cfg, s.Model, s.BatchMode, 0),
		dims:      s.EmbeddingDimensions,
		userID:    s.UserID,
		transport: &httpTransport{
			client:     &http.Client{Timeout: cfg.EmbeddingsTimeout},
			endpoint:   endpoint,
			retryCount: cfg.RetryCount,
			bearer:     staticBearer(cfg.GatewayAPIKey),
			limiter:    sharedLimiter(cfg),
		},
	}, nil
}

func (e *OpenAIEmbedder) Name() string { return "OpenAIEmbedder" }

func (e *OpenAIEmbedder) Embed(ctx context.Context, docs []model.RagDocument) ([]model.RagVector, Usage, error) {
	return recordAndEmbed(ctx, defaultConfig(), e.modelName, e.plan, e.transport, e.dims, e.userID, docs)
}
