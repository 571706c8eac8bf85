// Package telemetry implements the bounded worker pool that replaces
// the source system's "spawn background task" fire-and-forget
// publications (token-usage metrics and usage-history events). A full
// buffer drops the publication and counts it, rather than blocking the
// caller's response path, per the module's "no silent cap, but no
// head-of-line blocking either" design note.
package telemetry

import (
	"context"
	"sync"

	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/metrics"
)

// UsageEvent is one token-accounting record produced after a completed
// embedding batch, mirroring the source system's usage-history payload.
type UsageEvent struct {
	UserID         string
	Model          string
	TotalTokens    int
	InputItemCount int
	ResponseTimeMS float64
}

// Publisher fans UsageEvents out to a bounded pool of background
// workers. It is process-wide and safe for concurrent use.
type Publisher struct {
	events  chan UsageEvent
	sink    func(UsageEvent)
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewPublisher starts `workers` goroutines draining a buffered channel
// of capacity `bufferSize`. sink is called for every event a worker
// picks up; it is expected to publish to the usage-history event bus
// and emit the token-usage metric, swallowing its own errors.
func NewPublisher(workers, bufferSize int, sink func(UsageEvent)) *Publisher {
	if workers < 1 {
		workers = 1
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	p := &Publisher{
		events: make(chan UsageEvent, bufferSize),
		sink:   sink,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for ev := range p.events {
		p.sink(ev)
	}
}

// Publish enqueues an event without blocking. If the buffer is full
// the event is dropped and metrics.TelemetryDropped is incremented,
// matching the source system's best-effort telemetry semantics.
func (p *Publisher) Publish(ev UsageEvent) {
	select {
	case p.events <- ev:
	default:
		metrics.TelemetryDropped.Inc()
		logging.Warn("telemetry buffer full, dropping usage event", "model", ev.Model, "user_id", ev.UserID)
	}
}

// Close stops accepting new events and waits for in-flight workers to
// drain the channel.
func (p *Publisher) Close(ctx context.Context) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordTokenUsage publishes the standard token_usage metric fields,
// matching the source system's embeddings_token_usage metric shape.
func RecordTokenUsage(ev UsageEvent) {
	metrics.TokenUsage.WithLabelValues(ev.Model, ev.UserID).Add(float64(ev.TotalTokens))
}
