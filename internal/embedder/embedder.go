// Package embedder implements the embedding connector family: the
// shared dimension policy, static/dynamic batching, OAuth-backed
// bearer token transport, and token-usage telemetry described as "the
// heart of the core", polymorphic over the jina, OpenAI-style, and
// Thinktank connector variants.
package embedder

import (
	"context"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/registry"
	"github.com/ragscale/ingestor/internal/telemetry"
)

// Embedder converts a batch of documents into vectors, preserving
// positional correspondence between input and output.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, docs []model.RagDocument) ([]model.RagVector, Usage, error)
}

// Registry is the factory registry for embedder connector families,
// keyed by family name ("jina", "openai", "thinktank"), not by
// ModelName: several models can share one connector family. The
// pipeline maps a model name to its family in embedderConnectorType.
var Registry = registry.New[Embedder]("embedder")

func init() {
	Registry.Register("jina", NewJinaEmbedderFromSettings)
	Registry.Register("openai", NewOpenAIEmbedderFromSettings)
	Registry.Register("thinktank", NewThinktankEmbedderFromSettings)
}

// commonSettings is embedded by every connector-specific settings
// struct; it carries the fields every HTTP-backed embedder needs
// regardless of family.
type commonSettings struct {
	Endpoint            string `json:"endpoint"`
	UserID              string `json:"user_id"`
	BatchMode           string `json:"batch_mode"`
	EmbeddingDimensions *int   `json:"embedding_dimensions"`
}

func (s commonSettings) batchMode() BatchMode {
	if BatchMode(s.BatchMode) == BatchDynamic {
		return BatchDynamic
	}
	return BatchStatic
}

// publisher is the process-wide telemetry sink every connector
// publishes completed-batch usage events to. It is wired up once from
// cmd/ingestor/main.go via SetPublisher; until then events are
// dropped silently (acceptable for unit tests that never call it).
var publisher *telemetry.Publisher

// SetPublisher installs the process-wide usage-telemetry publisher.
func SetPublisher(p *telemetry.Publisher) { publisher = p }

func publishUsage(ev telemetry.UsageEvent) {
	if publisher != nil {
		publisher.Publish(ev)
	}
}

// countTokensLocally is a fallback for providers that don't return
// usage in their response: it counts prompt tokens with a local
// tokenizer so token-usage telemetry still has a value to report.
func countTokensLocally(texts []string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		total := 0
		for _, t := range texts {
			total += len(t) / 4
		}
		return total
	}
	total := 0
	for _, t := range texts {
		total += len(enc.Encode(t, nil, nil))
	}
	return total
}

// validateBatchSize rejects a non-positive static batch size at
// connector-construction time rather than silently clamping it, since
// a batch size of zero is a configuration error, not a degenerate but
// valid batch-of-one.
func validateBatchSize(connector string, size int) error {
	if size < 1 {
		return &model.ConnectorError{Connector: connector, Reason: "embeddings_batch_size must be a positive integer"}
	}
	return nil
}

// buildPlan assembles a batchPlan from the shared config and a
// connector's own hard cap (0 for no cap).
func buildPlan(cfg *config.Config, modelName, mode string, hardCap int) batchPlan {
	plan := batchPlan{
		Mode:               BatchStatic,
		Model:              modelName,
		StaticBatchSize:    cfg.StaticBatchSize,
		Window:             cfg.DynamicBatchWindow,
		LatencyThresholdMS: cfg.LatencyThresholdMS,
		MinBatchSize:       cfg.MinBatchSize,
		MaxBatchSize:        cfg.MaxBatchSize,
		HardCap:            hardCap,
	}
	if BatchMode(mode) == BatchDynamic {
		plan.Mode = BatchDynamic
	}
	return plan
}

// recordAndEmbed runs the shared batching/embed/telemetry pipeline
// used by every connector: split docs' content into batches via
// transport.call, pair results back into RagVectors, and fire the
// fire-and-forget usage publication.
func recordAndEmbed(
	ctx context.Context,
	cfg *config.Config,
	modelName string,
	plan batchPlan,
	transport *httpTransport,
	dims *int,
	userID string,
	docs []model.RagDocument,
) ([]model.RagVector, Usage, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	start := time.Now()
	vectors, usage, err := runBatches(ctx, plan, texts, func(ctx context.Context, batch []string) ([][]float32, Usage, error) {
		vecs, u, err := transport.call(ctx, modelName, batch, dims, userID)
		if err == nil && u.TotalTokens == 0 {
			u.TotalTokens = countTokensLocally(batch)
		}
		return vecs, u, err
	})
	if err != nil {
		return nil, Usage{}, err
	}

	ragVectors, err := vectorsToRagVectors(docs, vectors)
	if err != nil {
		return nil, Usage{}, err
	}

	publishUsage(telemetry.UsageEvent{
		UserID:         userID,
		Model:          modelName,
		TotalTokens:    usage.TotalTokens,
		InputItemCount: len(docs),
		ResponseTimeMS: float64(time.Since(start).Milliseconds()),
	})

	return ragVectors, usage, nil
}
