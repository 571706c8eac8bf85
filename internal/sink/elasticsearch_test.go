package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/model"
)

func newTestSink(t *testing.T, handler http.HandlerFunc) *ElasticsearchSink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &ElasticsearchSink{client: client, index: "test-index"}
}

func TestBuildMustClauses_TranslatesEveryOperator(t *testing.T) {
	filters := []model.Filter{
		{Field: "category", Operator: model.FilterEqual, Value: "docs"},
		{Field: "score", Operator: model.FilterGreaterEqual, Value: 5},
		{Field: "content", Operator: model.FilterMatch, Value: "hello"},
	}
	clauses := buildMustClauses(filters)
	require.Len(t, clauses, 3)
	assert.Contains(t, clauses[0], "term")
	assert.Contains(t, clauses[1], "range")
	assert.Contains(t, clauses[2], "match")
}

func TestElasticsearchSink_GetDocumentsParsesHits(t *testing.T) {
	s := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{
				"hits": []map[string]interface{}{
					{
						"_id":    "doc1",
						"_score": 1.0,
						"_source": map[string]interface{}{
							"vector":   []float32{0.1, 0.2},
							"metadata": map[string]interface{}{"k": "v"},
						},
					},
				},
			},
		})
	})

	results, err := s.GetDocuments(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].ID)
	assert.Equal(t, "v", results[0].Metadata["k"])
}

func TestElasticsearchSink_DeleteByFileIDReportsWhetherAnythingDeleted(t *testing.T) {
	s := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"deleted": 3})
	})

	deleted, err := s.DeleteByFileID(context.Background(), "file-1")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestElasticsearchSink_InfoParsesDocCount(t *testing.T) {
	s := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"_all": map[string]interface{}{
				"primaries": map[string]interface{}{
					"docs": map[string]interface{}{"count": 42},
				},
			},
		})
	})

	info, err := s.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.NumberVectorsStored)
}

func TestNewElasticsearchSinkFromSettings_RequiresHostsAndIndex(t *testing.T) {
	_, err := NewElasticsearchSinkFromSettings(map[string]interface{}{})
	require.Error(t, err)
}

func TestRegistry_ElasticsearchRegistered(t *testing.T) {
	assert.Contains(t, Registry.Names(), "elasticsearch")
}
