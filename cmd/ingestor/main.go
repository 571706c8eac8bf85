// Command ingestor is the single binary that runs either the REST API
// (`serve`) or the asynq worker pool (`worker`), depending on the
// cobra subcommand invoked, mirroring the teacher's cmd/<bin>/commands split between
// `serve` and background workers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/embedder"
	"github.com/ragscale/ingestor/internal/httpapi"
	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/metrics"
	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/pipeline"
	"github.com/ragscale/ingestor/internal/queue"
	"github.com/ragscale/ingestor/internal/sink"
	"github.com/ragscale/ingestor/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ingestor",
		Short: "RAG ingestion pipeline: extract, process, embed, and store documents",
	}
	root.AddCommand(newServeCmd(), newWorkerCmd())
	return root
}

// pipelineStore resolves a Pipeline from a PipelineConfig, caching
// constructed pipelines by config ID so repeated runs and HTTP
// requests against the same pipeline reuse one connector set.
type pipelineStore struct {
	cfg  *config.Config
	mu   sync.Mutex
	byID map[string]*pipeline.Pipeline
}

func newPipelineStore(cfg *config.Config) *pipelineStore {
	return &pipelineStore{cfg: cfg, byID: make(map[string]*pipeline.Pipeline)}
}

func (s *pipelineStore) resolve(ctx context.Context, pc model.PipelineConfig) (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[pc.ID]; ok {
		return p, nil
	}
	p, err := pipeline.New(ctx, pc, s.cfg, sinkFactory)
	if err != nil {
		return nil, err
	}
	s.byID[pc.ID] = p
	return p, nil
}

func sinkFactory(name string, settings map[string]interface{}) (pipeline.ValidatingSink, error) {
	return sink.Registry.Create(name, settings)
}

func setupTelemetry(cfg *config.Config) *telemetry.Publisher {
	pub := telemetry.NewPublisher(cfg.TelemetryWorkers, cfg.TelemetryBufferSize, func(ev telemetry.UsageEvent) {
		telemetry.RecordTokenUsage(ev)
		if cfg.UsageHistoryEnabled {
			logging.Debug("usage history event", "topic", cfg.KafkaUsageHistoryTopic, "model", ev.Model, "tokens", ev.TotalTokens)
		}
	})
	embedder.SetPublisher(pub)
	return pub
}

// enqueuerAdapter narrows *queue.Client down to the httpapi.Enqueuer
// shape, translating the REST layer's (config, extractType) pair into
// a queue.ExtractionPayload.
type enqueuerAdapter struct {
	client *queue.Client
}

func (a enqueuerAdapter) EnqueueExtraction(ctx context.Context, cfg model.PipelineConfig, extractType model.ExtractType) error {
	return a.client.EnqueueExtraction(ctx, queue.ExtractionPayload{Pipeline: cfg, ExtractType: extractType})
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			metrics.MustRegister(prometheus.DefaultRegisterer)
			pub := setupTelemetry(cfg)
			defer pub.Close(context.Background())

			store := newPipelineStore(cfg)
			qClient := queue.NewClient(cfg.RedisAddr, cfg.WorkflowRetry)
			defer qClient.Close()

			apiSrv := httpapi.NewServer(enqueuerAdapter{client: qClient}, func(ctx context.Context, pc model.PipelineConfig) (httpapi.Searcher, error) {
				return store.resolve(ctx, pc)
			})

			router := apiSrv.Router()
			router.GET("/metrics", gin.WrapH(promhttp.Handler()))

			if addr == "" {
				addr = cfg.HTTPAddr
			}
			logging.Info("starting HTTP API server", "addr", addr)

			srv := &http.Server{Addr: addr, Handler: router}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to bind the HTTP API to (default from HTTP_ADDR)")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start the asynq worker pool consuming extraction/processing/embed-ingest jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			metrics.MustRegister(prometheus.DefaultRegisterer)
			pub := setupTelemetry(cfg)
			defer pub.Close(context.Background())

			store := newPipelineStore(cfg)
			qClient := queue.NewClient(cfg.RedisAddr, cfg.WorkflowRetry)
			defer qClient.Close()

			srv := queue.NewServer(cfg.RedisAddr, concurrency, qClient, store.resolve, cfg.ProcessingFlushThreshold)
			logging.Info("starting asynq worker pool", "concurrency", concurrency, "redis_addr", cfg.RedisAddr)
			return srv.Run()
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "number of concurrent job handlers")
	return cmd
}

