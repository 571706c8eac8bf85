// Package httpapi exposes the pipeline registry over HTTP: create a
// pipeline configuration, trigger a run, search embedded chunks, and
// scan stored documents, mirroring the app.py REST surface this system
// was distilled from.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/ragscale/ingestor/internal/logging"
	"github.com/ragscale/ingestor/internal/model"
)

// Enqueuer is the subset of the queue client the API needs to trigger
// an extraction run; declared locally so this package doesn't import
// internal/queue directly.
type Enqueuer interface {
	EnqueueExtraction(ctx context.Context, cfg model.PipelineConfig, extractType model.ExtractType) error
}

// Searcher is the subset of a resolved pipeline the search/documents
// routes need.
type Searcher interface {
	Search(ctx context.Context, queryText string, k int, filters []model.Filter) ([]model.RagSearchResult, error)
	Documents(ctx context.Context, size int) ([]model.RagSearchResult, error)
}

// PipelineResolver builds (or fetches a cached) Searcher for a stored
// PipelineConfig, supplied by cmd/ingestor so this package stays free
// of connector-construction concerns.
type PipelineResolver func(ctx context.Context, cfg model.PipelineConfig) (Searcher, error)

// Server holds the in-memory pipeline-config registry and the
// collaborators needed to run and query pipelines over HTTP.
type Server struct {
	mu        sync.RWMutex
	pipelines map[string]model.PipelineConfig

	queue    Enqueuer
	resolver PipelineResolver
}

// NewServer constructs a Server with an empty pipeline registry.
func NewServer(queue Enqueuer, resolver PipelineResolver) *Server {
	return &Server{
		pipelines: make(map[string]model.PipelineConfig),
		queue:     queue,
		resolver:  resolver,
	}
}

// Router builds the gin engine with every route this system's API
// surface needs, grouped the way the teacher's own service handlers
// are grouped by subsystem.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	pipelines := r.Group("/pipelines")
	{
		pipelines.POST("/", s.handleCreate)
		pipelines.GET("/:id", s.handleGet)
		pipelines.POST("/:id/run", s.handleRun)
		pipelines.POST("/:id/search", s.handleSearch)
		pipelines.GET("/:id/documents", s.handleDocuments)
	}
	r.GET("/healthz", s.handleHealthz)

	return r
}

func (s *Server) handleCreate(c *gin.Context) {
	var cfg model.PipelineConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pipelines[cfg.ID]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pipeline id already exists"})
		return
	}
	s.pipelines[cfg.ID] = cfg
	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) handleGet(c *gin.Context) {
	cfg, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleRun(c *gin.Context) {
	id := c.Param("id")
	cfg, ok := s.lookup(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}

	extractType := model.ExtractType(c.DefaultQuery("extract_type", string(model.ExtractFull)))
	if extractType != model.ExtractFull && extractType != model.ExtractDelta {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid extract_type, must be 'full' or 'delta'"})
		return
	}

	if err := s.queue.EnqueueExtraction(c.Request.Context(), cfg, extractType); err != nil {
		logging.Error("enqueue extraction failed", "pipeline_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "pipeline run triggered", "pipeline_id": id, "extract_type": extractType})
}

type searchRequest struct {
	Query   string         `json:"query" binding:"required"`
	TopK    int            `json:"top_k"`
	Filters []model.Filter `json:"filters"`
}

func (s *Server) handleSearch(c *gin.Context) {
	cfg, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}

	p, err := s.resolver(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results, err := p.Search(c.Request.Context(), req.Query, req.TopK, req.Filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleDocuments(c *gin.Context) {
	cfg, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not found"})
		return
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", "100"))
	if err != nil || size <= 0 {
		size = 100
	}

	p, err := s.resolver(c.Request.Context(), cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	docs, err := p.Documents(c.Request.Context(), size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) lookup(id string) (model.PipelineConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.pipelines[id]
	return cfg, ok
}
