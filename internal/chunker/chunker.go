// Package chunker splits RagDocuments into overlapping text chunks and
// groups them into batches, mirroring the source system's Chunker
// family (RecursiveChunker, CharacterChunker, CustomChunker) behind a
// factory registry.
package chunker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ragscale/ingestor/internal/model"
	"github.com/ragscale/ingestor/internal/registry"
)

// Emit is called once per completed batch. A batch is emitted as soon
// as BatchSize chunks have accumulated; the final, possibly-smaller
// batch is emitted when the input is exhausted. Returning an error
// stops chunking and propagates the error to the caller.
type Emit func(batch []model.RagDocument) error

// Chunker splits documents into chunks and streams them to emit in
// batches of at most the chunker's configured batch size.
type Chunker interface {
	Name() string
	Chunk(docs []model.RagDocument, emit Emit) error
}

// Registry is the factory registry for chunker families, keyed by the
// lowercased family name ("recursivechunker", "characterchunker",
// "customchunker"). pipeline.New always selects "recursivechunker".
var Registry = registry.New[Chunker]("chunker")

func init() {
	Registry.Register("recursivechunker", NewRecursiveChunkerFromSettings)
	Registry.Register("characterchunker", NewCharacterChunkerFromSettings)
	Registry.Register("customchunker", NewCustomChunkerFromSettings)
}

// batcher accumulates chunks and flushes them to emit once BatchSize
// is reached, shared by every built-in chunker implementation.
type batcher struct {
	batchSize int
	pending   []model.RagDocument
	emit      Emit
}

func newBatcher(batchSize int, emit Emit) *batcher {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &batcher{batchSize: batchSize, emit: emit}
}

func (b *batcher) add(doc model.RagDocument) error {
	b.pending = append(b.pending, doc)
	if len(b.pending) >= b.batchSize {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = nil
	return b.emit(batch)
}

// chunkID formats a stable chunk id from its parent document id and
// zero-based index, per the data model's "<parent_id>_<index>" rule.
func chunkID(parentID string, index int) string {
	return fmt.Sprintf("%s_%d", parentID, index)
}

// withText copies parent metadata and mirrors the chunk's own content
// into metadata["text"], supporting display-only retrieval.
func withText(parent map[string]interface{}, content string) map[string]interface{} {
	meta := make(map[string]interface{}, len(parent)+1)
	for k, v := range parent {
		meta[k] = v
	}
	meta["text"] = content
	return meta
}

// trimOverlap returns the suffix of s that is at most overlap runes
// long, used to seed the next window/piece with shared context.
func trimOverlap(s string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	if len(s) <= overlap {
		return s
	}
	r := []rune(s)
	if len(r) <= overlap {
		return s
	}
	return string(r[len(r)-overlap:])
}

// decodeLoose fills out from a settings map, leaving unset fields at
// their pre-populated defaults. Unlike config.DecodeSettings it
// tolerates unknown keys, since chunker settings are often shared
// across several pipeline stages in the same config document.
func decodeLoose(settings map[string]interface{}, out interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode chunker settings: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode chunker settings: %w", err)
	}
	return nil
}
