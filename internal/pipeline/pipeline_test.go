package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/chunker"
	"github.com/ragscale/ingestor/internal/embedder"
	"github.com/ragscale/ingestor/internal/loader"
	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/source"
)

type fakeSource struct {
	files []model.CloudFile
	dir   string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) ListFull(ctx context.Context, emit source.ListFn) error {
	for _, cf := range f.files {
		if err := emit(cf); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) ListDelta(ctx context.Context, since time.Time, emit source.ListFn) error {
	return f.ListFull(ctx, emit)
}

func (f *fakeSource) Download(ctx context.Context, cf model.CloudFile) (model.LocalFile, source.Release, error) {
	path := filepath.Join(f.dir, cf.Name)
	return model.LocalFile{ID: cf.ID, FilePath: path, Metadata: cf.Metadata}, func() {}, nil
}

func (f *fakeSource) Validate(ctx context.Context) error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Name() string { return "fake" }

func (fakeEmbedder) Embed(ctx context.Context, docs []model.RagDocument) ([]model.RagVector, embedder.Usage, error) {
	vecs := make([]model.RagVector, len(docs))
	for i, d := range docs {
		vecs[i] = model.RagVector{ID: d.ID, Vector: []float32{1, 2, 3}, Metadata: d.Metadata}
	}
	return vecs, embedder.Usage{TotalTokens: len(docs)}, nil
}

type fakeSink struct {
	stored []model.RagVector
}

func (f *fakeSink) Store(ctx context.Context, vectors []model.RagVector) (int, error) {
	f.stored = append(f.stored, vectors...)
	return len(vectors), nil
}

func (f *fakeSink) Search(ctx context.Context, query []float32, k int, filters []model.Filter) ([]model.RagSearchResult, error) {
	return nil, nil
}

func (f *fakeSink) GetDocuments(ctx context.Context, size int) ([]model.RagSearchResult, error) {
	return nil, nil
}

func (f *fakeSink) DeleteByFileID(ctx context.Context, fileID string) (bool, error) {
	return false, nil
}

func (f *fakeSink) Info(ctx context.Context) (model.SinkInfo, error) {
	return model.SinkInfo{NumberVectorsStored: int64(len(f.stored))}, nil
}

func newTestPipeline(t *testing.T, dir string) (*Pipeline, *fakeSink) {
	t.Helper()
	rc, err := chunker.NewRecursiveChunkerFromSettings(map[string]interface{}{"chunk_size": 50})
	require.NoError(t, err)

	snk := &fakeSink{}
	return &Pipeline{
		cfg:            model.PipelineConfig{ID: "p1"},
		sources:        []namedSource{{name: "s1", src: &fakeSource{dir: dir}}},
		chunk:          rc,
		embed:          fakeEmbedder{},
		sink:           snk,
		autoload:       loader.NewAutoLoader(),
		flushThreshold: 200,
	}, snk
}

func TestPipeline_ExtractEmitsEveryFile(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir())
	p.sources[0].src.(*fakeSource).files = []model.CloudFile{
		{ID: "a", Name: "a.txt"},
		{ID: "b", Name: "b.txt"},
	}

	var got []CloudFileEvent
	err := p.Extract(context.Background(), model.ExtractFull, time.Time{}, func(e CloudFileEvent) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].SourceName)
}

func TestPipeline_ProcessDownloadsLoadsAndChunks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world, this is a test document"), 0o600))

	p, _ := newTestPipeline(t, dir)
	cf := model.CloudFile{ID: "a", Name: "a.txt"}

	var batches [][]model.RagDocument
	err := p.Process(context.Background(), "s1", cf, func(batch []model.RagDocument) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, batches)
}

func TestPipeline_EmbedAndIngestStoresAndReturnsCount(t *testing.T) {
	p, snk := newTestPipeline(t, t.TempDir())
	chunks := []model.RagDocument{{ID: "c1", Content: "hi"}, {ID: "c2", Content: "there"}}

	count, err := p.EmbedAndIngest(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, snk.stored, 2)
}

func TestPipeline_EmbedAndIngestEmptyIsNoop(t *testing.T) {
	p, snk := newTestPipeline(t, t.TempDir())
	count, err := p.EmbedAndIngest(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, snk.stored)
}

func TestPipeline_SearchEmbedsQueryThenSearches(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir())
	_, err := p.Search(context.Background(), "find me", 5, nil)
	require.NoError(t, err)
}

func TestEmbedderConnectorType_Dispatch(t *testing.T) {
	assert.Equal(t, "jina", embedderConnectorType("jina_v2_base"))
	assert.Equal(t, "thinktank", embedderConnectorType("thinktank_default"))
	assert.Equal(t, "openai", embedderConnectorType("text-embedding-3-small"))
}
