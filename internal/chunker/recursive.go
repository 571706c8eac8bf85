package chunker

import (
	"strings"

	"github.com/ragscale/ingestor/internal/model"
)

// RecursiveChunker splits each document recursively using an ordered
// list of separators, starting with the coarsest ("\n\n") and falling
// back to finer ones ("\n", " ", "") until every piece is at most
// ChunkSize characters. Adjacent pieces may overlap by ChunkOverlap
// characters. This is the default chunker.
type RecursiveChunker struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Separators   []string
}

type recursiveSettings struct {
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	BatchSize    int      `json:"batch_size"`
	Separators   []string `json:"separators"`
}

// NewRecursiveChunkerFromSettings builds a RecursiveChunker from an
// opaque settings map, applying the spec's documented defaults.
func NewRecursiveChunkerFromSettings(settings map[string]interface{}) (Chunker, error) {
	s := recursiveSettings{
		ChunkSize:    500,
		ChunkOverlap: 0,
		BatchSize:    1000,
		Separators:   []string{"\n\n", "\n", " ", ""},
	}
	if err := decodeLoose(settings, &s); err != nil {
		return nil, err
	}
	return &RecursiveChunker{
		ChunkSize:    s.ChunkSize,
		ChunkOverlap: s.ChunkOverlap,
		BatchSize:    s.BatchSize,
		Separators:   s.Separators,
	}, nil
}

func (c *RecursiveChunker) Name() string { return "RecursiveChunker" }

// Chunk implements Chunker. Each input document is split into pieces
// no longer than ChunkSize+ChunkOverlap characters; chunk ids are
// "<parent_id>_<index>" and parent metadata is preserved, augmented
// with the chunk's own content under the "text" key.
func (c *RecursiveChunker) Chunk(docs []model.RagDocument, emit Emit) error {
	b := newBatcher(c.BatchSize, emit)
	for _, doc := range docs {
		pieces := c.split(doc.Content, c.Separators)
		for i, piece := range pieces {
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

// split recursively divides text using the highest-priority separator
// that actually reduces piece size, then stitches adjacent pieces back
// together up to ChunkSize with ChunkOverlap characters shared between
// consecutive pieces.
func (c *RecursiveChunker) split(text string, separators []string) []string {
	if len(text) <= c.ChunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	sep := separators[len(separators)-1]
	rest := separators[1:]
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = splitFixed(text, c.ChunkSize)
	} else {
		parts = strings.Split(text, sep)
	}

	var pieces []string
	for _, p := range parts {
		if len(p) > c.ChunkSize && len(rest) > 0 {
			pieces = append(pieces, c.split(p, rest)...)
		} else if p != "" {
			pieces = append(pieces, p)
		}
	}

	return c.merge(pieces, sep)
}

// merge recombines small pieces into chunks as close to ChunkSize as
// possible without exceeding it, carrying ChunkOverlap characters of
// context from the tail of one chunk into the start of the next.
func (c *RecursiveChunker) merge(pieces []string, joiner string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
		}
	}

	for _, piece := range pieces {
		candidate := piece
		if current.Len() > 0 {
			candidate = current.String() + joiner + piece
		}
		if len(candidate) > c.ChunkSize && current.Len() > 0 {
			flush()
			seed := trimOverlap(current.String(), c.ChunkOverlap)
			current.Reset()
			if seed != "" && len(seed)+len(joiner)+len(piece) <= c.ChunkSize+c.ChunkOverlap {
				current.WriteString(seed)
				current.WriteString(joiner)
			}
			current.WriteString(piece)
		} else {
			current.Reset()
			current.WriteString(candidate)
		}
	}
	flush()
	return chunks
}

// splitFixed breaks text into fixed-size windows when no separator
// applies, the base case of the recursive split.
func splitFixed(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	r := []rune(text)
	var out []string
	for i := 0; i < len(r); i += size {
		end := i + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[i:end]))
	}
	return out
}
