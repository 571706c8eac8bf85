package embedder

import (
	"context"
	"sync"
	"time"

	"github.com/ragscale/ingestor/internal/metrics"
	"github.com/ragscale/ingestor/internal/model"
)

// BatchMode selects how a connector splits its input into requests to
// the embedding endpoint.
type BatchMode string

const (
	// BatchStatic splits input into fixed-size batches and issues them
	// all in parallel, preserving input order in the concatenated
	// result.
	BatchStatic BatchMode = "static"

	// BatchDynamic processes batches sequentially, growing or shrinking
	// the next batch size from the observed average latency of the
	// last few batches.
	BatchDynamic BatchMode = "dynamic"
)

// Usage aggregates token accounting across one or more batch calls.
type Usage struct {
	TotalTokens int
}

// BatchCall issues one embedding request for exactly the given texts
// and returns one vector per text, in order, plus usage for that call.
type BatchCall func(ctx context.Context, texts []string) ([][]float32, Usage, error)

// batchPlan holds the sizing parameters a Batcher needs; callers
// populate it from the shared embedder config.
type batchPlan struct {
	Mode               BatchMode
	Model              string
	StaticBatchSize    int
	Window             int
	LatencyThresholdMS int64
	MinBatchSize       int
	MaxBatchSize       int
	HardCap            int // 0 means unbounded; Thinktank sets this to 16
}

// runBatches splits texts according to plan.Mode and invokes call for
// each batch, returning vectors in input order and the summed usage.
func runBatches(ctx context.Context, plan batchPlan, texts []string, call BatchCall) ([][]float32, Usage, error) {
	if plan.Mode == BatchDynamic {
		return runDynamic(ctx, plan, texts, call)
	}
	return runStatic(ctx, plan, texts, call)
}

func effectiveBatchSize(plan batchPlan, requested int) int {
	size := requested
	if plan.HardCap > 0 && size > plan.HardCap {
		size = plan.HardCap
	}
	if size < 1 {
		size = 1
	}
	return size
}

// runStatic splits texts into fixed-size chunks of plan.StaticBatchSize
// (capped by plan.HardCap when set) and issues them all concurrently.
func runStatic(ctx context.Context, plan batchPlan, texts []string, call BatchCall) ([][]float32, Usage, error) {
	size := effectiveBatchSize(plan, plan.StaticBatchSize)
	batches := splitInto(texts, size)

	results := make([][][]float32, len(batches))
	usages := make([]Usage, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			start := time.Now()
			vecs, usage, err := call(ctx, batch)
			metrics.BatchLatency.WithLabelValues(plan.Model, string(BatchStatic)).Observe(time.Since(start).Seconds())
			results[i], usages[i], errs[i] = vecs, usage, err
		}(i, batch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, Usage{}, err
		}
	}

	var out [][]float32
	var total Usage
	for i := range results {
		out = append(out, results[i]...)
		total.TotalTokens += usages[i].TotalTokens
	}
	return out, total, nil
}

// runDynamic processes batches sequentially, adapting the next batch's
// size from a sliding window of the last plan.Window latencies, per
// the module's latency-adaptive batching design note.
func runDynamic(ctx context.Context, plan batchPlan, texts []string, call BatchCall) ([][]float32, Usage, error) {
	size := effectiveBatchSize(plan, plan.StaticBatchSize)
	window := newLatencyWindow(plan.Window)

	var out [][]float32
	var total Usage

	for start := 0; start < len(texts); {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		callStart := time.Now()
		vecs, usage, err := call(ctx, batch)
		elapsed := time.Since(callStart)
		metrics.BatchLatency.WithLabelValues(plan.Model, string(BatchDynamic)).Observe(elapsed.Seconds())
		if err != nil {
			return nil, Usage{}, err
		}

		out = append(out, vecs...)
		total.TotalTokens += usage.TotalTokens
		start = end

		window.add(elapsed)
		size = nextDynamicSize(plan, size, window.average())
		metrics.DynamicBatchSize.WithLabelValues(plan.Model).Set(float64(size))
	}
	return out, total, nil
}

// nextDynamicSize implements the sliding-window grow/shrink rule: grow
// by one when the observed average latency is below threshold and
// there's room to grow, shrink by one when it's above threshold and
// there's room to shrink, otherwise hold steady.
func nextDynamicSize(plan batchPlan, size int, avg time.Duration) int {
	avgMS := avg.Milliseconds()
	switch {
	case avgMS < plan.LatencyThresholdMS && size < plan.MaxBatchSize:
		size++
	case avgMS > plan.LatencyThresholdMS && size > plan.MinBatchSize:
		size--
	}
	return effectiveBatchSize(plan, size)
}

func splitInto(texts []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var batches [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}

// latencyWindow is a fixed-capacity ring buffer of recent batch
// latencies, used to compute the dynamic batcher's moving average.
type latencyWindow struct {
	capacity int
	samples  []time.Duration
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity < 1 {
		capacity = 5
	}
	return &latencyWindow{capacity: capacity}
}

func (w *latencyWindow) add(d time.Duration) {
	w.samples = append(w.samples, d)
	if len(w.samples) > w.capacity {
		w.samples = w.samples[len(w.samples)-w.capacity:]
	}
}

func (w *latencyWindow) average() time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range w.samples {
		sum += s
	}
	return sum / time.Duration(len(w.samples))
}

// vectorsToRagVectors pairs vectors with docs positionally, failing if
// the lengths don't match, per the embed contract's response
// validation rule.
func vectorsToRagVectors(docs []model.RagDocument, vectors [][]float32) ([]model.RagVector, error) {
	if len(vectors) != len(docs) {
		return nil, &model.EmbeddingSizeMismatchError{InputSize: len(docs), EmbedSize: len(vectors)}
	}
	out := make([]model.RagVector, len(docs))
	for i, doc := range docs {
		out[i] = model.RagVector{
			ID:       doc.ID,
			Vector:   vectors[i],
			Metadata: doc.Metadata,
		}
	}
	return out, nil
}
