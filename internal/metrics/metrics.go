// Package metrics exposes the Prometheus instrumentation shared by the
// pipeline, embedder, queue, and sink packages. It replaces the
// source system's DataDog-flavored "metrics.write(name, tags, fields)"
// calls with typed Prometheus collectors registered once at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TokenUsage records prompt-token counts per Embed call (summed
	// over its batches), tagged by model and user, mirroring the
	// embeddings_token_usage
	// metric from the source system's embedding commons module.
	TokenUsage = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragscale",
		Subsystem: "embeddings",
		Name:      "token_usage_total",
		Help:      "Total prompt tokens submitted to the embedding endpoint.",
	}, []string{"model", "user_id"})

	// BatchLatency records the wall-clock duration of one embedding
	// batch call. It is for observation only; the dynamic batcher
	// keeps its own latency window for its average.
	BatchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ragscale",
		Subsystem: "embeddings",
		Name:      "batch_latency_seconds",
		Help:      "Latency of a single embedding batch request.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"model", "batch_mode"})

	// DynamicBatchSize tracks the current batch size chosen by the
	// dynamic batcher, per model.
	DynamicBatchSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ragscale",
		Subsystem: "embeddings",
		Name:      "dynamic_batch_size",
		Help:      "Current batch size chosen by the latency-adaptive batcher.",
	}, []string{"model"})

	// ConnectorErrors counts exceptions raised by connectors, tagged
	// by connector family and error kind, mirroring
	// metrics.emit_exception_metric in the source system.
	ConnectorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragscale",
		Name:      "connector_errors_total",
		Help:      "Errors raised by source, embedder, and sink connectors.",
	}, []string{"family", "kind"})

	// TelemetryDropped counts fire-and-forget telemetry publications
	// dropped because the background publisher's buffer was full.
	TelemetryDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ragscale",
		Name:      "telemetry_dropped_total",
		Help:      "Telemetry publications dropped due to a full buffer.",
	})

	// VectorsStored counts vectors successfully upserted into a sink.
	VectorsStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ragscale",
		Name:      "vectors_stored_total",
		Help:      "Vectors upserted into a sink, by index name.",
	}, []string{"index"})
)

// MustRegister registers every collector with the given registerer.
// Call once at process startup.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		TokenUsage,
		BatchLatency,
		DynamicBatchSize,
		ConnectorErrors,
		TelemetryDropped,
		VectorsStored,
	)
}
