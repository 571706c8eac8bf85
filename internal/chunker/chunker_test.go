package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/model"
)

func collect(t *testing.T, c Chunker, docs []model.RagDocument) []model.RagDocument {
	t.Helper()
	var out []model.RagDocument
	err := c.Chunk(docs, func(batch []model.RagDocument) error {
		out = append(out, batch...)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRecursiveChunker_RespectsChunkSize(t *testing.T) {
	c := &RecursiveChunker{ChunkSize: 20, ChunkOverlap: 0, BatchSize: 1000, Separators: []string{"\n\n", "\n", " ", ""}}
	docs := []model.RagDocument{{ID: "doc1", Content: strings.Repeat("word ", 20), Metadata: map[string]interface{}{"source": "x"}}}
	chunks := collect(t, c, docs)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 20)
		assert.Equal(t, "x", ch.Metadata["source"])
		assert.Equal(t, ch.Content, ch.Metadata["text"])
	}
}

func TestRecursiveChunker_ChunkIDsAreSequential(t *testing.T) {
	c := &RecursiveChunker{ChunkSize: 10, BatchSize: 1000, Separators: []string{"\n\n", "\n", " ", ""}}
	docs := []model.RagDocument{{ID: "parent", Content: "one two three four five six"}}
	chunks := collect(t, c, docs)
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, chunkID("parent", i), ch.ID)
	}
}

func TestRecursiveChunker_EmptyContentProducesNoChunks(t *testing.T) {
	c := &RecursiveChunker{ChunkSize: 10, BatchSize: 1000, Separators: []string{"\n\n", "\n", " ", ""}}
	chunks := collect(t, c, []model.RagDocument{{ID: "empty", Content: ""}})
	assert.Empty(t, chunks)
}

func TestRecursiveChunker_BatchBoundary(t *testing.T) {
	c := &RecursiveChunker{ChunkSize: 4, BatchSize: 2, Separators: []string{"", }}
	docs := []model.RagDocument{{ID: "doc1", Content: "abcdefghij"}}
	var batchSizes []int
	err := c.Chunk(docs, func(batch []model.RagDocument) error {
		batchSizes = append(batchSizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	for _, size := range batchSizes[:len(batchSizes)-1] {
		assert.Equal(t, 2, size)
	}
}

func TestCharacterChunker_FixedWindowsWithOverlap(t *testing.T) {
	c := &CharacterChunker{ChunkSize: 5, ChunkOverlap: 2, BatchSize: 1000}
	docs := []model.RagDocument{{ID: "doc1", Content: "abcdefghijklmno"}}
	chunks := collect(t, c, docs)
	require.Len(t, chunks, 5)
	assert.Equal(t, "abcde", chunks[0].Content)
	assert.Equal(t, "defgh", chunks[1].Content)
}

func TestCharacterChunker_DefaultsWhenUnset(t *testing.T) {
	c, err := NewCharacterChunkerFromSettings(nil)
	require.NoError(t, err)
	cc := c.(*CharacterChunker)
	assert.Equal(t, 500, cc.ChunkSize)
	assert.Equal(t, 0, cc.ChunkOverlap)
}

func TestCustomChunker_UsesRegisteredSplitFunc(t *testing.T) {
	RegisterSplitFunc("test-split-on-pipe", func(content string) []string {
		return strings.Split(content, "|")
	})
	c, err := NewCustomChunkerFromSettings(map[string]interface{}{"split_fn": "test-split-on-pipe"})
	require.NoError(t, err)
	docs := []model.RagDocument{{ID: "doc1", Content: "a|b|c"}}
	chunks := collect(t, c, docs)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a", chunks[0].Content)
	assert.Equal(t, "b", chunks[1].Content)
	assert.Equal(t, "c", chunks[2].Content)
}

func TestCustomChunker_UnknownSplitFnFails(t *testing.T) {
	_, err := NewCustomChunkerFromSettings(map[string]interface{}{"split_fn": "does-not-exist"})
	require.Error(t, err)
	var connErr *model.ConnectorError
	assert.True(t, errors.As(err, &connErr))
}

func TestRegistry_CreatesRecursiveAndCharacterChunkers(t *testing.T) {
	for _, name := range []string{"recursivechunker", "characterchunker"} {
		c, err := Registry.Create(name, nil)
		require.NoError(t, err, name)
		assert.NotEmpty(t, c.Name())
	}
}

func TestRegistry_UnknownNameFails(t *testing.T) {
	_, err := Registry.Create("nope", nil)
	require.Error(t, err)
	var invalid *model.InvalidConnector
	assert.True(t, errors.As(err, &invalid))
}
