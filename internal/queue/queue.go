// Package queue drives the pipeline through three named, at-least-once
// delivered job types (data_extraction, data_processing,
// data_embed_ingest) backed by asynq/Redis, the concrete realization
// of the external queue system the pipeline stages compose around.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/metrics"
	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/pipeline"
)

const (
	TaskDataExtraction  = "data_extraction"
	TaskDataProcessing  = "data_processing"
	TaskDataEmbedIngest = "data_embed_ingest"
)

// ExtractionPayload is the data_extraction job's body. It carries the
// full pipeline config rather than an id lookup key, so any worker
// process can pick up the job without sharing the API process's
// in-memory pipeline registry.
type ExtractionPayload struct {
	Pipeline    model.PipelineConfig `json:"pipeline"`
	ExtractType model.ExtractType    `json:"extract_type"`
	Since       time.Time            `json:"since,omitempty"`
}


// ProcessingPayload is the data_processing job's body: one CloudFile
// to download, load, and chunk.
type ProcessingPayload struct {
	Pipeline   model.PipelineConfig `json:"pipeline"`
	SourceName string               `json:"source_name"`
	File       model.CloudFile      `json:"file"`
}

// EmbedIngestPayload is the data_embed_ingest job's body: a flushed
// batch of chunks ready to embed and write to the sink.
type EmbedIngestPayload struct {
	Pipeline model.PipelineConfig `json:"pipeline"`
	Chunks   []model.RagDocument  `json:"chunks"`
}

// PipelineResolver builds (or fetches a cached) Pipeline for a
// PipelineConfig, supplied by cmd/ingestor so this package doesn't own
// connector construction or caching policy.
type PipelineResolver func(ctx context.Context, cfg model.PipelineConfig) (*pipeline.Pipeline, error)

// Client enqueues jobs. It wraps *asynq.Client with the module's three
// named task types and default retry policy.
type Client struct {
	inner   *asynq.Client
	retries int
}

// NewClient connects to the Redis instance backing the queue.
func NewClient(redisAddr string, retries int) *Client {
	return &Client{
		inner:   asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		retries: retries,
	}
}

func (c *Client) Close() error { return c.inner.Close() }

// EnqueueExtraction schedules a data_extraction job.
func (c *Client) EnqueueExtraction(ctx context.Context, p ExtractionPayload) error {
	return c.enqueue(ctx, TaskDataExtraction, p)
}

// EnqueueProcessing schedules a data_processing job.
func (c *Client) EnqueueProcessing(ctx context.Context, p ProcessingPayload) error {
	return c.enqueue(ctx, TaskDataProcessing, p)
}

// EnqueueEmbedIngest schedules a data_embed_ingest job.
func (c *Client) EnqueueEmbedIngest(ctx context.Context, p EmbedIngestPayload) error {
	return c.enqueue(ctx, TaskDataEmbedIngest, p)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, body)
	_, err = c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(c.retries))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

// Server consumes the three job types and drives resolved pipelines
// through extract/process/embed_and_ingest.
type Server struct {
	inner    *asynq.Server
	mux      *asynq.ServeMux
	client   *Client
	resolve  PipelineResolver
	flushMin int
}

// NewServer builds a Server wired to handle every named job type.
// concurrency bounds how many jobs run at once; flushThreshold is the
// chunk-accumulator size data_processing flushes at.
func NewServer(redisAddr string, concurrency int, client *Client, resolve PipelineResolver, flushThreshold int) *Server {
	s := &Server{
		inner: asynq.NewServer(
			asynq.RedisClientOpt{Addr: redisAddr},
			asynq.Config{Concurrency: concurrency},
		),
		mux:      asynq.NewServeMux(),
		client:   client,
		resolve:  resolve,
		flushMin: flushThreshold,
	}
	s.mux.HandleFunc(TaskDataExtraction, s.handleExtraction)
	s.mux.HandleFunc(TaskDataProcessing, s.handleProcessing)
	s.mux.HandleFunc(TaskDataEmbedIngest, s.handleEmbedIngest)
	return s
}

// Run blocks serving jobs until the process receives a shutdown
// signal asynq itself listens for.
func (s *Server) Run() error {
	return s.inner.Run(s.mux)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() { s.inner.Shutdown() }

func (s *Server) handleExtraction(ctx context.Context, t *asynq.Task) error {
	var payload ExtractionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal data_extraction payload: %w", err)
	}

	p, err := s.resolve(ctx, payload.Pipeline)
	if err != nil {
		return fmt.Errorf("resolve pipeline %s: %w", payload.Pipeline.ID, err)
	}

	return p.Extract(ctx, payload.ExtractType, payload.Since, func(ev pipeline.CloudFileEvent) error {
		return s.client.EnqueueProcessing(ctx, ProcessingPayload{
			Pipeline:   payload.Pipeline,
			SourceName: ev.SourceName,
			File:       ev.File,
		})
	})
}

func (s *Server) handleProcessing(ctx context.Context, t *asynq.Task) error {
	var payload ProcessingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal data_processing payload: %w", err)
	}

	p, err := s.resolve(ctx, payload.Pipeline)
	if err != nil {
		return fmt.Errorf("resolve pipeline %s: %w", payload.Pipeline.ID, err)
	}

	threshold := s.flushMin
	if threshold <= 0 {
		threshold = 200
	}

	var accumulator []model.RagDocument
	flush := func() error {
		if len(accumulator) == 0 {
			return nil
		}
		batch := accumulator
		accumulator = nil
		return s.client.EnqueueEmbedIngest(ctx, EmbedIngestPayload{Pipeline: payload.Pipeline, Chunks: batch})
	}

	err = p.Process(ctx, payload.SourceName, payload.File, func(chunks []model.RagDocument) error {
		accumulator = append(accumulator, chunks...)
		if len(accumulator) >= threshold {
			return flush()
		}
		return nil
	})
	if err != nil {
		metrics.ConnectorErrors.WithLabelValues("pipeline", "process").Inc()
		return fmt.Errorf("process %s: %w", payload.File.ID, err)
	}
	return flush()
}

func (s *Server) handleEmbedIngest(ctx context.Context, t *asynq.Task) error {
	var payload EmbedIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal data_embed_ingest payload: %w", err)
	}

	p, err := s.resolve(ctx, payload.Pipeline)
	if err != nil {
		return fmt.Errorf("resolve pipeline %s: %w", payload.Pipeline.ID, err)
	}

	count, err := p.EmbedAndIngest(ctx, payload.Chunks)
	if err != nil {
		metrics.ConnectorErrors.WithLabelValues("pipeline", "embed_and_ingest").Inc()
		return fmt.Errorf("embed and ingest: %w", err)
	}
	logging.Info("embed_and_ingest complete", "pipeline_id", payload.Pipeline.ID, "stored", count)
	return nil
}
