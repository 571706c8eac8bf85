package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ragscale/ingestor/internal/model"
)

// embedRequest is the wire shape posted to embeddings_endpoint.
type embedRequest struct {
	Model      string   `json:"model"`
	InputText  []string `json:"input_text"`
	Dimensions *int     `json:"dimensions,omitempty"`
	User       string   `json:"user,omitempty"`
}

// embedResponse is the wire shape returned by embeddings_endpoint on
// success.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Usage      *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// httpTransport issues the shared per-batch embedding protocol: POST
// JSON with a bearer token, validate the HTTP status, and idempotently
// retry transport-level (connection) failures, making at most
// retryCount attempts in total (at least one).
type httpTransport struct {
	client     *http.Client
	endpoint   string
	retryCount int
	bearer     func(ctx context.Context) (string, error)
	gatewayKey string
	limiter    *rate.Limiter
}

func (t *httpTransport) call(ctx context.Context, modelName string, texts []string, dims *int, userID string) ([][]float32, Usage, error) {
	body, err := json.Marshal(embedRequest{Model: modelName, InputText: texts, Dimensions: dims, User: userID})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("encode embed request: %w", err)
	}

	var lastErr error
	attempts := t.retryCount
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, Usage{}, &model.EmbeddingRequestError{Inner: err}
			}
		}
		vecs, usage, err := t.doOnce(ctx, body)
		if err == nil {
			return vecs, usage, nil
		}
		lastErr = err
		if !isRetryableTransportError(err) {
			return nil, Usage{}, err
		}
	}
	return nil, Usage{}, lastErr
}

func (t *httpTransport) doOnce(ctx context.Context, body []byte) ([][]float32, Usage, error) {
	token, err := t.bearer(ctx)
	if err != nil {
		return nil, Usage{}, &model.EmbeddingRequestError{Inner: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, Usage{}, &model.EmbeddingRequestError{Inner: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if t.gatewayKey != "" {
		req.Header.Set("x-api-key", t.gatewayKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, Usage{}, &model.EmbeddingRequestError{Inner: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Usage{}, &model.EmbeddingRequestError{Inner: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed embedResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, Usage{}, &model.EmbeddingRequestError{Inner: err}
		}
		usage := Usage{}
		if parsed.Usage != nil {
			usage.TotalTokens = parsed.Usage.TotalTokens
		}
		return parsed.Embeddings, usage, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, Usage{}, &model.RateLimitError{}
	default:
		return nil, Usage{}, &model.EmbeddingResponseError{StatusCode: resp.StatusCode}
	}
}

// isRetryableTransportError reports whether err is a connection-level
// failure eligible for idempotent reattempt, as opposed to a
// well-formed error response from the endpoint (which is never
// retried locally).
func isRetryableTransportError(err error) bool {
	var reqErr *model.EmbeddingRequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	var netErr net.Error
	if errors.As(reqErr.Inner, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(reqErr.Inner, &opErr)
}
