package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/metrics"
	"github.com/ragscale/ingestor/internal/model"
)

func init() {
	Registry.Register("elasticsearch", NewElasticsearchSinkFromSettings)
}

type elasticsearchSettings struct {
	Hosts []string `json:"hosts"`
	Index string   `json:"index"`
}

// ElasticsearchSink stores vectors as documents of shape
// {"vector": [...], "metadata": {...}} under the chunk id, and serves
// search/scan/delete against one index. Its client is constructed
// once by the factory and kept for the sink's lifetime; the sink has
// no close or release step.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearchSinkFromSettings builds an ElasticsearchSink from
// pipeline settings. hosts and index are mandatory.
func NewElasticsearchSinkFromSettings(settings map[string]interface{}) (Sink, error) {
	var s elasticsearchSettings
	if err := config.DecodeSettings(settings, &s); err != nil {
		return nil, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "invalid settings", Cause: err}
	}
	if len(s.Hosts) == 0 || s.Index == "" {
		return nil, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "hosts and index are required"}
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: s.Hosts})
	if err != nil {
		return nil, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "create client", Cause: err}
	}

	return &ElasticsearchSink{client: client, index: s.Index}, nil
}

func (s *ElasticsearchSink) Name() string { return "ElasticsearchSink" }

// Validate pings the cluster, matching the source sink's validation().
func (s *ElasticsearchSink) Validate(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "ping failed", Cause: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return &model.ConnectorError{Connector: "ElasticsearchSink", Reason: fmt.Sprintf("ping returned status %s", res.Status())}
	}
	return nil
}

// ensureIndex lazily creates the index on first use if it doesn't
// already exist, mirroring ensure_index_exists in the source sink.
func (s *ElasticsearchSink) ensureIndex(ctx context.Context) error {
	exists, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	logging.Warn("index not found, creating", "index", s.index)
	created, err := s.client.Indices.Create(s.index, s.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return fmt.Errorf("create index returned status %s", created.Status())
	}
	return nil
}

type indexedDoc struct {
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Store upserts every vector under its id and refreshes the index
// afterward so a subsequent search sees it immediately.
func (s *ElasticsearchSink) Store(ctx context.Context, vectors []model.RagVector) (int, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return 0, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "store failed", Cause: err}
	}

	stored := 0
	for _, v := range vectors {
		body, err := json.Marshal(indexedDoc{Vector: v.Vector, Metadata: v.Metadata})
		if err != nil {
			return stored, fmt.Errorf("encode document %s: %w", v.ID, err)
		}
		res, err := s.client.Index(
			s.index,
			bytes.NewReader(body),
			s.client.Index.WithDocumentID(v.ID),
			s.client.Index.WithContext(ctx),
		)
		if err != nil {
			metrics.ConnectorErrors.WithLabelValues("sink", "store").Inc()
			return stored, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "index document", Cause: err}
		}
		ok := !res.IsError()
		res.Body.Close()
		if ok {
			stored++
		}
	}

	refresh, err := s.client.Indices.Refresh(s.client.Indices.Refresh.WithIndex(s.index), s.client.Indices.Refresh.WithContext(ctx))
	if err != nil {
		return stored, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "refresh index", Cause: err}
	}
	refresh.Body.Close()

	metrics.VectorsStored.WithLabelValues(s.index).Add(float64(stored))
	return stored, nil
}

// Search runs a k-nearest-neighbor script_score query restricted to a
// bool-must conjunction built from filters.
func (s *ElasticsearchSink) Search(ctx context.Context, query []float32, k int, filters []model.Filter) ([]model.RagSearchResult, error) {
	must := buildMustClauses(filters)

	body := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{
					"bool": map[string]interface{}{"must": must},
				},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]interface{}{"query_vector": query},
				},
			},
		},
	}
	return s.runSearch(ctx, body)
}

// GetDocuments performs a match-all scan capped at size.
func (s *ElasticsearchSink) GetDocuments(ctx context.Context, size int) ([]model.RagSearchResult, error) {
	body := map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}
	return s.runSearch(ctx, body)
}

func (s *ElasticsearchSink) runSearch(ctx context.Context, body map[string]interface{}) ([]model.RagSearchResult, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(encoded)),
	)
	if err != nil {
		return nil, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "search request failed", Cause: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: fmt.Sprintf("search returned status %s", res.Status())}
	}

	return parseSearchResponse(res.Body)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Vector   []float32              `json:"vector"`
				Metadata map[string]interface{} `json:"metadata"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func parseSearchResponse(body io.Reader) ([]model.RagSearchResult, error) {
	var parsed searchResponse
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]model.RagSearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		score := hit.Score
		results = append(results, model.RagSearchResult{
			ID:       hit.ID,
			Metadata: hit.Source.Metadata,
			Score:    &score,
			Vector:   hit.Source.Vector,
		})
	}
	return results, nil
}

// buildMustClauses translates the filter language into Elasticsearch
// bool-must primitives: equality to term, range comparisons to range,
// and match to a full-text match clause.
func buildMustClauses(filters []model.Filter) []map[string]interface{} {
	must := make([]map[string]interface{}, 0, len(filters))
	for _, f := range filters {
		switch f.Operator {
		case model.FilterEqual:
			must = append(must, map[string]interface{}{"term": map[string]interface{}{f.Field: f.Value}})
		case model.FilterLessThan:
			must = append(must, rangeClause(f.Field, "lt", f.Value))
		case model.FilterLessEqual:
			must = append(must, rangeClause(f.Field, "lte", f.Value))
		case model.FilterGreaterThan:
			must = append(must, rangeClause(f.Field, "gt", f.Value))
		case model.FilterGreaterEqual:
			must = append(must, rangeClause(f.Field, "gte", f.Value))
		case model.FilterMatch:
			must = append(must, map[string]interface{}{"match": map[string]interface{}{f.Field: f.Value}})
		}
	}
	return must
}

func rangeClause(field, op string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{
			field: map[string]interface{}{op: value},
		},
	}
}

// DeleteByFileID deletes every document whose metadata._file_entry_id
// matches fileID via delete_by_query.
func (s *ElasticsearchSink) DeleteByFileID(ctx context.Context, fileID string) (bool, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"metadata._file_entry_id": fileID},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("encode delete query: %w", err)
	}

	res, err := s.client.DeleteByQuery(
		[]string{s.index},
		bytes.NewReader(encoded),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return false, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "delete_by_query failed", Cause: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: fmt.Sprintf("delete_by_query returned status %s", res.Status())}
	}

	var parsed struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode delete_by_query response: %w", err)
	}
	return parsed.Deleted > 0, nil
}

// Info reports the index's stored document count via the indices stats API.
func (s *ElasticsearchSink) Info(ctx context.Context) (model.SinkInfo, error) {
	res, err := s.client.Indices.Stats(
		s.client.Indices.Stats.WithContext(ctx),
		s.client.Indices.Stats.WithIndex(s.index),
	)
	if err != nil {
		return model.SinkInfo{}, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: "stats request failed", Cause: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return model.SinkInfo{}, &model.ConnectorError{Connector: "ElasticsearchSink", Reason: fmt.Sprintf("stats returned status %s", res.Status())}
	}

	var parsed struct {
		All struct {
			Primaries struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
			} `json:"primaries"`
		} `json:"_all"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return model.SinkInfo{}, fmt.Errorf("decode stats response: %w", err)
	}
	return model.SinkInfo{NumberVectorsStored: parsed.All.Primaries.Docs.Count}, nil
}
