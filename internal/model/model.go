// Package model defines the data types shared across the ingestion
// pipeline: pipeline configuration, the cloud/local file records
// produced by source connectors, and the document/vector records that
// flow through loaders, chunkers, embedders, and sinks.
package model

import "time"

// PipelineConfig is the immutable configuration for one ingestion run.
// It is unique per ID for the lifetime of the pipelines it describes.
type PipelineConfig struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Sources    []SourceConfig `json:"sources"`
	EmbedModel EmbedConfig    `json:"embed_model"`
	Sink       SinkConfig     `json:"sink"`
}

// SourceConfig selects a source connector family by Type; Settings is
// opaque to the pipeline and interpreted only by the chosen source.
type SourceConfig struct {
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	Settings map[string]interface{} `json:"settings"`
}

// EmbedConfig selects the embedding family and its native dimension
// through ModelName; Settings carries per-request overrides such as
// embedding_dimensions.
type EmbedConfig struct {
	ModelName string                 `json:"model_name"`
	Settings  map[string]interface{} `json:"settings"`
}

// SinkConfig selects a sink connector family by Type. Settings.index
// and Settings.hosts are mandatory for indexed sinks.
type SinkConfig struct {
	Type     string                 `json:"type"`
	Settings map[string]interface{} `json:"settings"`
}

// CloudFile describes one object enumerated by a source connector.
// ID is a stable content-addressable key (for object stores, the
// object key) so that re-running extraction on an unchanged source
// produces the same ids, enabling idempotent upsert downstream.
type CloudFile struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Path     string                 `json:"path"`
	Metadata map[string]interface{} `json:"metadata"`
	Type     string                 `json:"type,omitempty"`
}

// LastModified extracts the authoritative delta-detection timestamp
// from Metadata, if present.
func (c CloudFile) LastModified() (time.Time, bool) {
	v, ok := c.Metadata["last_modified"]
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// LocalFile is a downloaded, on-disk representation of a CloudFile.
// Its FilePath is only valid for the lifetime of the scoped acquisition
// that produced it; see source.Download.
type LocalFile struct {
	ID       string                 `json:"id"`
	FilePath string                 `json:"file_path"`
	Metadata map[string]interface{} `json:"metadata"`
	Type     string                 `json:"type"`
}

// RagDocument is produced by loaders and chunkers: a unit of content
// with metadata that is carried forward (and augmented) at every
// downstream stage.
type RagDocument struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// RagVector is the embedded form of a RagDocument. Its ID always
// equals the RagDocument.ID it was produced from, and its Vector
// length always equals the dimension required by the configured
// embedding model for the run.
type RagVector struct {
	ID       string                 `json:"id"`
	Vector   []float32              `json:"vector"`
	Metadata map[string]interface{} `json:"metadata"`
}

// RagSearchResult is one row returned by a sink's search or scan
// operation. Score is omitted for match-all scans.
type RagSearchResult struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    *float64               `json:"score,omitempty"`
	Vector   []float32              `json:"vector,omitempty"`
}

// SinkInfo reports the aggregate state of a sink's backing index.
type SinkInfo struct {
	NumberVectorsStored int64 `json:"number_vectors_stored"`
}

// FilterOperator enumerates the comparison operators the sink filter
// language supports. Filters combine with AND.
type FilterOperator string

const (
	FilterEqual        FilterOperator = "="
	FilterLessThan     FilterOperator = "<"
	FilterLessEqual    FilterOperator = "<="
	FilterGreaterThan  FilterOperator = ">"
	FilterGreaterEqual FilterOperator = ">="
	FilterMatch        FilterOperator = "match"
)

// Filter is one clause of a sink search's filter conjunction.
type Filter struct {
	Field    string
	Operator FilterOperator
	Value    interface{}
}

// ExtractType selects full or delta extraction for a pipeline run.
type ExtractType string

const (
	ExtractFull  ExtractType = "full"
	ExtractDelta ExtractType = "delta"
)
