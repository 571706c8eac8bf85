package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/model"
)

func TestExtractionPayload_RoundTripsThroughJSON(t *testing.T) {
	p := ExtractionPayload{
		Pipeline:    model.PipelineConfig{ID: "p1"},
		ExtractType: model.ExtractDelta,
		Since:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var got ExtractionPayload
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, p.Pipeline.ID, got.Pipeline.ID)
	assert.Equal(t, p.ExtractType, got.ExtractType)
	assert.True(t, p.Since.Equal(got.Since))
}

func TestProcessingPayload_RoundTripsThroughJSON(t *testing.T) {
	p := ProcessingPayload{
		Pipeline:   model.PipelineConfig{ID: "p1"},
		SourceName: "s1",
		File:       model.CloudFile{ID: "f1", Name: "a.txt"},
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var got ProcessingPayload
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, p.File.ID, got.File.ID)
	assert.Equal(t, p.File.Name, got.File.Name)
	assert.Equal(t, p.Pipeline.ID, got.Pipeline.ID)
}

func TestEmbedIngestPayload_RoundTripsThroughJSON(t *testing.T) {
	p := EmbedIngestPayload{
		Pipeline: model.PipelineConfig{ID: "p1"},
		Chunks:   []model.RagDocument{{ID: "c1", Content: "hello"}},
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)

	var got EmbedIngestPayload
	require.NoError(t, json.Unmarshal(b, &got))
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "hello", got.Chunks[0].Content)
}

func TestTaskNames_MatchSpecConstants(t *testing.T) {
	assert.Equal(t, "data_extraction", TaskDataExtraction)
	assert.Equal(t, "data_processing", TaskDataProcessing)
	assert.Equal(t, "data_embed_ingest", TaskDataEmbedIngest)
}
