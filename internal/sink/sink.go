// Package sink implements the connector family that writes embedded
// vectors to a searchable index and serves k-nearest and scan queries
// back out of it, mirroring the source system's SinkConnectors family
// behind a factory registry.
package sink

import (
	"context"

	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/registry"
)

// Sink is the contract every sink connector implements.
type Sink interface {
	Name() string

	// Validate pings the index host; called once at construction.
	Validate(ctx context.Context) error

	// Store upserts each vector under its id and refreshes the index
	// afterward, returning the count actually stored.
	Store(ctx context.Context, vectors []model.RagVector) (int, error)

	// Search returns the k nearest vectors to query, restricted to
	// documents matching every filter in the conjunction.
	Search(ctx context.Context, query []float32, k int, filters []model.Filter) ([]model.RagSearchResult, error)

	// GetDocuments performs a match-all scan capped at size.
	GetDocuments(ctx context.Context, size int) ([]model.RagSearchResult, error)

	// DeleteByFileID deletes every document whose metadata._file_entry_id
	// equals fileID, reporting whether anything was deleted.
	DeleteByFileID(ctx context.Context, fileID string) (bool, error)

	// Info reports the sink's aggregate stored-vector count.
	Info(ctx context.Context) (model.SinkInfo, error)
}

// Registry is the factory registry for sink connector families, keyed
// by SinkConfig.Type.
var Registry = registry.New[Sink]("sink")
