// Package source implements the connector family that enumerates and
// downloads CloudFiles from an upstream object store, mirroring the
// source system's SourceConnectors family behind a factory registry.
package source

import (
	"context"
	"time"

	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/registry"
)

// ListFn yields each CloudFile found by a listing call. Returning an
// error from the callback stops enumeration early and propagates.
type ListFn func(cf model.CloudFile) error

// Release is returned by Download; calling it deletes the downloaded
// temp file. Callers must defer Release() immediately after a
// successful Download to guarantee cleanup on every exit path,
// mirroring the source system's scoped-acquisition context manager.
type Release func()

// Source is the contract every source connector implements.
type Source interface {
	Name() string

	// ListFull enumerates every object under the connector's
	// configured prefix.
	ListFull(ctx context.Context, emit ListFn) error

	// ListDelta enumerates objects modified strictly after since.
	ListDelta(ctx context.Context, since time.Time, emit ListFn) error

	// Download fetches cf to a uniquely named temp file and returns a
	// LocalFile pointing at it, plus a Release func the caller must
	// invoke (typically via defer) to delete the temp file.
	Download(ctx context.Context, cf model.CloudFile) (model.LocalFile, Release, error)

	// Validate is called once at construction time; a non-nil error
	// is fatal and prevents the pipeline from instantiating.
	Validate(ctx context.Context) error
}

// Registry is the factory registry for source connector families,
// keyed by SourceConfig.Type.
var Registry = registry.New[Source]("source")
