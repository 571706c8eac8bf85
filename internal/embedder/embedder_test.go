package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/model"
)

func TestResolveDimension_UnknownModelFails(t *testing.T) {
	cfg := defaultConfig()
	_, err := resolveDimension(cfg, "not-a-model", nil)
	require.Error(t, err)
	var invalid *model.InvalidModelError
	assert.ErrorAs(t, err, &invalid)
}

func TestResolveDimension_OverrideRejectedWhenUnsupported(t *testing.T) {
	cfg := defaultConfig()
	dim := 256
	_, err := resolveDimension(cfg, "jina_v2_base", &dim)
	require.Error(t, err)
	var invalidDims *model.InvalidModelDimensions
	assert.ErrorAs(t, err, &invalidDims)
}

func TestResolveDimension_OverrideEqualToDefaultAcceptedOnNonOverrideModel(t *testing.T) {
	cfg := defaultConfig()
	dim := 768
	got, err := resolveDimension(cfg, "jina_v2_base", &dim)
	require.NoError(t, err)
	assert.Equal(t, 768, got)
}

func TestResolveDimension_OverrideAcceptedWhenAllowed(t *testing.T) {
	cfg := defaultConfig()
	dim := 1024
	got, err := resolveDimension(cfg, "text-embedding-3-small", &dim)
	require.NoError(t, err)
	assert.Equal(t, 1024, got)
}

func TestResolveDimension_OverrideRejectedWhenNotInAllowedSet(t *testing.T) {
	cfg := defaultConfig()
	dim := 999
	_, err := resolveDimension(cfg, "text-embedding-3-small", &dim)
	require.Error(t, err)
	var unsupported *model.UnsupportedDimensionError
	assert.ErrorAs(t, err, &unsupported)
}

func TestValidateBatchSize_RejectsZero(t *testing.T) {
	err := validateBatchSize("JinaEmbedder", 0)
	require.Error(t, err)
	var connErr *model.ConnectorError
	assert.ErrorAs(t, err, &connErr)
}

func TestValidateBatchSize_AcceptsPositive(t *testing.T) {
	assert.NoError(t, validateBatchSize("JinaEmbedder", 8))
}

func TestRunStatic_PreservesOrderAcrossBatches(t *testing.T) {
	plan := batchPlan{Mode: BatchStatic, Model: "m", StaticBatchSize: 2, MinBatchSize: 1, MaxBatchSize: 10}
	texts := []string{"a", "b", "c", "d", "e"}
	vecs, _, err := runBatches(context.Background(), plan, texts, func(ctx context.Context, batch []string) ([][]float32, Usage, error) {
		out := make([][]float32, len(batch))
		for i, t := range batch {
			out[i] = []float32{float32(t[0])}
		}
		return out, Usage{TotalTokens: len(batch)}, nil
	})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, text := range texts {
		assert.Equal(t, float32(text[0]), vecs[i][0])
	}
}

func TestRunDynamic_GrowsWhenFast(t *testing.T) {
	plan := batchPlan{
		Mode: BatchDynamic, Model: "m", StaticBatchSize: 1, Window: 2,
		LatencyThresholdMS: 1000, MinBatchSize: 1, MaxBatchSize: 4,
	}
	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var sizes []int
	_, _, err := runBatches(context.Background(), plan, texts, func(ctx context.Context, batch []string) ([][]float32, Usage, error) {
		sizes = append(sizes, len(batch))
		out := make([][]float32, len(batch))
		return out, Usage{}, nil
	})
	require.NoError(t, err)
	assert.Greater(t, sizes[len(sizes)-1], sizes[0])
}

func TestVectorsToRagVectors_MismatchFails(t *testing.T) {
	docs := []model.RagDocument{{ID: "a"}, {ID: "b"}}
	_, err := vectorsToRagVectors(docs, [][]float32{{1}})
	require.Error(t, err)
	var mismatch *model.EmbeddingSizeMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestHTTPTransport_ParsesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2}},
			Usage:      &struct{ TotalTokens int `json:"total_tokens"` }{TotalTokens: 5},
		})
	}))
	defer srv.Close()

	transport := &httpTransport{
		client:     &http.Client{Timeout: 5 * time.Second},
		endpoint:   srv.URL,
		retryCount: 1,
		bearer:     staticBearer("test-key"),
	}
	vecs, usage, err := transport.call(context.Background(), "jina_v2_base", []string{"hi"}, nil, "")
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, 5, usage.TotalTokens)
}

func TestHTTPTransport_RateLimitReturnsRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	transport := &httpTransport{
		client:     &http.Client{Timeout: 5 * time.Second},
		endpoint:   srv.URL,
		retryCount: 1,
		bearer:     staticBearer("k"),
	}
	_, _, err := transport.call(context.Background(), "jina_v2_base", []string{"hi"}, nil, "")
	require.Error(t, err)
	var rateLimit *model.RateLimitError
	assert.ErrorAs(t, err, &rateLimit)
}

func TestHTTPTransport_OtherStatusReturnsEmbeddingResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	transport := &httpTransport{
		client:     &http.Client{Timeout: 5 * time.Second},
		endpoint:   srv.URL,
		retryCount: 1,
		bearer:     staticBearer("k"),
	}
	_, _, err := transport.call(context.Background(), "jina_v2_base", []string{"hi"}, nil, "")
	require.Error(t, err)
	var respErr *model.EmbeddingResponseError
	assert.ErrorAs(t, err, &respErr)
	assert.Equal(t, 500, respErr.StatusCode)
}

func TestThinktankEmbedder_RequiresUserToken(t *testing.T) {
	_, err := NewThinktankEmbedderFromSettings(map[string]interface{}{})
	require.Error(t, err)
}

func TestThinktankEmbedder_ValidateAccessDeniedOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e, err := NewThinktankEmbedderFromSettings(map[string]interface{}{
		"user_token":   "tok",
		"validate_url": srv.URL,
	})
	require.NoError(t, err)
	tt := e.(*ThinktankEmbedder)
	err = tt.ValidateAccess(context.Background())
	require.Error(t, err)
}

func TestRegistry_AllFamiliesRegistered(t *testing.T) {
	for _, name := range []string{"jina", "openai", "thinktank"} {
		assert.Contains(t, Registry.Names(), name)
	}
}
