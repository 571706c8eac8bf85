package embedder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/model"
)

type thinktankSettings struct {
	commonSettings
	Model       string `json:"model"`
	UserToken   string `json:"user_token"`
	ValidateURL string `json:"validate_url"`
}

// ThinktankEmbedder authenticates with a per-user bearer token and
// enforces a hard per-batch cap, per the Thinktank connector variant.
// Unlike the other families it exposes a separate ValidateAccess step
// that can be called before ingestion begins; the pipeline does not
// call it itself.
type ThinktankEmbedder struct {
	modelName   string
	plan        batchPlan
	dims        *int
	userID      string
	userToken   string
	validateURL string
	httpClient  *http.Client
	transport   *httpTransport
}

func NewThinktankEmbedderFromSettings(settings map[string]interface{}) (Embedder, error) {
	s := thinktankSettings{Model: "thinktank_default"}
	if err := config.DecodeSettings(settings, &s); err != nil {
		return nil, &model.ConnectorError{Connector: "ThinktankEmbedder", Reason: "invalid settings", Cause: err}
	}
	if s.UserToken == "" {
		return nil, &model.ConnectorError{Connector: "ThinktankEmbedder", Reason: "user_token is required"}
	}
	cfg := defaultConfig()

	if err := validateBatchSize("ThinktankEmbedder", cfg.StaticBatchSize); err != nil {
		return nil, err
	}

	if _, err := resolveDimension(cfg, s.Model, s.EmbeddingDimensions); err != nil {
		return nil, err
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = cfg.EmbeddingsEndpoint
	}

	httpClient := &http.Client{Timeout: cfg.EmbeddingsTimeout}

	return &ThinktankEmbedder{
		modelName:   s.Model,
		plan:        buildPlan(cfg, s.Model, s.BatchMode, cfg.ThinktankBatchCap),
		dims:        s.EmbeddingDimensions,
		userID:      s.UserID,
		userToken:   s.UserToken,
		validateURL: s.ValidateURL,
		httpClient:  httpClient,
		transport: &httpTransport{
			client:     httpClient,
			endpoint:   endpoint,
			retryCount: cfg.RetryCount,
			bearer:     staticBearer(s.UserToken),
			limiter:    sharedLimiter(cfg),
		},
	}, nil
}

func (e *ThinktankEmbedder) Name() string { return "ThinktankEmbedder" }

func (e *ThinktankEmbedder) Embed(ctx context.Context, docs []model.RagDocument) ([]model.RagVector, Usage, error) {
	return recordAndEmbed(ctx, defaultConfig(), e.modelName, e.plan, e.transport, e.dims, e.userID, docs)
}

// ValidateAccess confirms the caller's user_token is authorized before
// any ingestion work begins, a step the Thinktank variant requires
// that the other connector families don't.
func (e *ThinktankEmbedder) ValidateAccess(ctx context.Context) error {
	if e.validateURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.validateURL, nil)
	if err != nil {
		return &model.ConnectorError{Connector: "ThinktankEmbedder", Reason: "build validate_access request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+e.userToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return &model.ConnectorError{Connector: "ThinktankEmbedder", Reason: "validate_access request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &model.ConnectorError{
			Connector: "ThinktankEmbedder",
			Reason:    fmt.Sprintf("validate_access denied with status %d", resp.StatusCode),
		}
	}
	return nil
}
