// Package pipeline assembles connectors resolved from a PipelineConfig
// and drives the three-stage extract/process/embed-and-ingest flow
// described as the core of the ingestion system, the Go counterpart of
// the teacher's RAG struct coordinating db/embedder/config.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ragscale/ingestor/internal/chunker"
	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/embedder"
	"github.com/ragscale/ingestor/internal/loader"
	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/source"
)

// namedSource pairs a resolved Source with the SourceConfig.Name it
// was constructed from, so extraction can report which source a
// CloudFile came from.
type namedSource struct {
	name string
	src  source.Source
}

// Pipeline is one fully-resolved ingestion run: its sources, embedder,
// sink, and chunker are concrete connector instances rather than
// config values. Construction is fatal-on-failure; a Pipeline that
// exists is always ready to run.
type Pipeline struct {
	cfg      model.PipelineConfig
	sources  []namedSource
	chunk    chunker.Chunker
	embed    embedder.Embedder
	sink     Sink
	autoload *loader.AutoLoader

	flushThreshold int
}

// Sink is the subset of sink.Sink the pipeline depends on; declared
// locally so pipeline tests can supply a fake without importing the
// sink package's elasticsearch client machinery.
type Sink interface {
	Store(ctx context.Context, vectors []model.RagVector) (int, error)
	Search(ctx context.Context, query []float32, k int, filters []model.Filter) ([]model.RagSearchResult, error)
	GetDocuments(ctx context.Context, size int) ([]model.RagSearchResult, error)
	DeleteByFileID(ctx context.Context, fileID string) (bool, error)
	Info(ctx context.Context) (model.SinkInfo, error)
}

// New resolves every connector named in cfg via the package factory
// registries and validates each one. Any resolution or validation
// failure is returned as-is (typically a *model.ConnectorError or
// *model.InvalidConnector) and is fatal to the run.
func New(ctx context.Context, cfg model.PipelineConfig, cfgEnv *config.Config, sinkRegistry SinkFactory) (*Pipeline, error) {
	p := &Pipeline{
		cfg:            cfg,
		autoload:       loader.NewAutoLoader(),
		flushThreshold: cfgEnv.ProcessingFlushThreshold,
	}

	for _, sc := range cfg.Sources {
		src, err := source.Registry.Create(sc.Type, sc.Settings)
		if err != nil {
			return nil, err
		}
		if err := src.Validate(ctx); err != nil {
			return nil, err
		}
		p.sources = append(p.sources, namedSource{name: sc.Name, src: src})
	}

	chunkerSettings := map[string]interface{}{}
	ch, err := chunker.Registry.Create("recursivechunker", chunkerSettings)
	if err != nil {
		return nil, err
	}
	p.chunk = ch

	embedSettings := cfg.EmbedModel.Settings
	if embedSettings == nil {
		embedSettings = map[string]interface{}{}
	}
	embedSettings["model"] = cfg.EmbedModel.ModelName
	connectorType := embedderConnectorType(cfg.EmbedModel.ModelName)
	emb, err := embedder.Registry.Create(connectorType, embedSettings)
	if err != nil {
		return nil, err
	}
	p.embed = emb

	snk, err := sinkRegistry(cfg.Sink.Type, cfg.Sink.Settings)
	if err != nil {
		return nil, err
	}
	if err := snk.Validate(ctx); err != nil {
		return nil, err
	}
	p.sink = snk

	return p, nil
}

// SinkFactory matches sink.Registry.Create's signature; accepted as a
// parameter so pipeline doesn't import the sink package directly,
// keeping the dependency direction one-way (sink validation still
// happens here via the returned ValidatingSink's Validate method).
type SinkFactory func(name string, settings map[string]interface{}) (ValidatingSink, error)

// ValidatingSink is Sink plus the Validate step the factory path needs.
type ValidatingSink interface {
	Sink
	Validate(ctx context.Context) error
}

// embedderConnectorType maps a model name to the connector family
// registered under internal/embedder, mirroring the source system's
// "polymorphic over {jina_v2_base, openai_*, thinktank_*}" dispatch.
func embedderConnectorType(modelName string) string {
	switch {
	case modelName == "jina_v2_base":
		return "jina"
	case len(modelName) >= 9 && modelName[:9] == "thinktank":
		return "thinktank"
	default:
		return "openai"
	}
}

// CloudFileEvent pairs an enumerated CloudFile with the name of the
// source connector that produced it, the pipeline's extract() output.
type CloudFileEvent struct {
	SourceName string
	File       model.CloudFile
}

// Extract enumerates CloudFiles from every configured source,
// dispatching to ListFull or ListDelta per extractType.
func (p *Pipeline) Extract(ctx context.Context, extractType model.ExtractType, since time.Time, emit func(CloudFileEvent) error) error {
	for _, ns := range p.sources {
		wrap := func(cf model.CloudFile) error {
			return emit(CloudFileEvent{SourceName: ns.name, File: cf})
		}
		var err error
		switch extractType {
		case model.ExtractDelta:
			err = ns.src.ListDelta(ctx, since, wrap)
		default:
			err = ns.src.ListFull(ctx, wrap)
		}
		if err != nil {
			return fmt.Errorf("extract from source %q: %w", ns.name, err)
		}
	}
	return nil
}

// Process downloads cf from the named source, loads it into documents,
// chunks them, and emits the chunker's batches (at most the chunker's
// batch size each). The data_processing handler accumulates these and
// flushes them to data_embed_ingest at its own threshold.
func (p *Pipeline) Process(ctx context.Context, sourceName string, cf model.CloudFile, emit func([]model.RagDocument) error) error {
	ns, ok := p.sourceByName(sourceName)
	if !ok {
		return fmt.Errorf("process: unknown source %q", sourceName)
	}

	lf, release, err := ns.src.Download(ctx, cf)
	if err != nil {
		return fmt.Errorf("download %s: %w", cf.ID, err)
	}
	defer release()

	var docs []model.RagDocument
	if err := p.autoload.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	}); err != nil {
		return fmt.Errorf("load %s: %w", cf.ID, err)
	}

	return p.chunk.Chunk(docs, emit)
}

func (p *Pipeline) sourceByName(name string) (namedSource, bool) {
	for _, ns := range p.sources {
		if ns.name == name {
			return ns, true
		}
	}
	return namedSource{}, false
}

// EmbedAndIngest embeds chunks, pairs vectors with them positionally,
// writes the result to the sink, and returns the count stored.
func (p *Pipeline) EmbedAndIngest(ctx context.Context, chunks []model.RagDocument) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, usage, err := p.embed.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	logging.Debug("embedded batch", "chunks", len(chunks), "tokens", usage.TotalTokens)

	stored, err := p.sink.Store(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return stored, nil
}

// Search runs a k-nearest-neighbor query against the sink after
// embedding the query text through the same connector used for
// ingestion, so query and document vectors share one embedding space.
func (p *Pipeline) Search(ctx context.Context, queryText string, k int, filters []model.Filter) ([]model.RagSearchResult, error) {
	vectors, _, err := p.embed.Embed(ctx, []model.RagDocument{{ID: "query", Content: queryText}})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected exactly one query vector, got %d", len(vectors))
	}
	return p.sink.Search(ctx, vectors[0].Vector, k, filters)
}

// Documents performs a match-all scan of the sink, capped at size.
func (p *Pipeline) Documents(ctx context.Context, size int) ([]model.RagSearchResult, error) {
	return p.sink.GetDocuments(ctx, size)
}

// Info reports the sink's aggregate stored-vector count.
func (p *Pipeline) Info(ctx context.Context) (model.SinkInfo, error) {
	return p.sink.Info(ctx)
}
