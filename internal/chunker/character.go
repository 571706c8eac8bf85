package chunker

import (
	"github.com/ragscale/ingestor/internal/model"
)

// CharacterChunker splits documents into fixed-size windows with an
// optional overlap, with no awareness of natural text boundaries.
type CharacterChunker struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

type characterSettings struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	BatchSize    int `json:"batch_size"`
}

// NewCharacterChunkerFromSettings builds a CharacterChunker, defaulting
// to a 500-character window with no overlap.
func NewCharacterChunkerFromSettings(settings map[string]interface{}) (Chunker, error) {
	s := characterSettings{
		ChunkSize:    500,
		ChunkOverlap: 0,
		BatchSize:    1000,
	}
	if err := decodeLoose(settings, &s); err != nil {
		return nil, err
	}
	return &CharacterChunker{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		BatchSize:    s.BatchSize,
	}, nil
}

func (c *CharacterChunker) Name() string { return "CharacterChunker" }

func (c *CharacterChunker) Chunk(docs []model.RagDocument, emit Emit) error {
	b := newBatcher(c.BatchSize, emit)
	for _, doc := range docs {
		for i, piece := range c.windows(doc.Content) {
			chunk := model.RagDocument{
				ID:       chunkID(doc.ID, i),
				Content:  piece,
				Metadata: withText(doc.Metadata, piece),
			}
			if err := b.add(chunk); err != nil {
				return err
			}
		}
	}
	return b.flush()
}

// windows slides a ChunkSize window across text, stepping by
// ChunkSize-ChunkOverlap runes each time.
func (c *CharacterChunker) windows(text string) []string {
	if text == "" {
		return nil
	}
	size := c.ChunkSize
	if size <= 0 {
		size = 500
	}
	overlap := c.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	r := []rune(text)
	var out []string
	for start := 0; start < len(r); start += step {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
		if end == len(r) {
			break
		}
	}
	return out
}
