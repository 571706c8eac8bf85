package chunker

import (
	"github.com/ragscale/ingestor/internal/model"
)

// SplitFunc is an externally-defined splitting rule, the hook point
// custom chunkers plug into. It receives one document's content and
// returns the ordered list of pieces to turn into chunks.
type SplitFunc func(content string) []string

// customSplitters holds named SplitFuncs a deployment can register at
// startup, looked up by the "split_fn" setting.
var customSplitters = map[string]SplitFunc{}

// RegisterSplitFunc makes a named splitting rule available to the
// customchunker connector. Intended to be called from an application's
// main package before pipelines are constructed.
func RegisterSplitFunc(name string, fn SplitFunc) {
	customSplitters[name] = fn
}

// CustomChunker delegates splitting entirely to an externally supplied
// SplitFunc, identified by name in pipeline settings. It exists as a
// hook point for splitting rules outside this module's scope, not as
// a complete implementation.
type CustomChunker struct {
	Split     SplitFunc
	BatchSize int
}

type customSettings struct {
	SplitFn   string `json:"split_fn"`
	BatchSize int    `json:"batch_size"`
}

// NewCustomChunkerFromSettings looks up the named SplitFunc previously
// registered with RegisterSplitFunc and fails if none was registered
// under that name.
func NewCustomChunkerFromSettings(settings map[string]interface{}) (Chunker, error) {
	s := customSettings{BatchSize: 1000}
	if err := decodeLoose(settings, &s); err != nil {
		return nil, err
	}
	fn, ok := customSplitters[s.SplitFn]
	if !ok {
		return nil, &model.ConnectorError{
			Connector: "CustomChunker",
			Reason:    "no split_fn registered under name " + s.SplitFn,
		}
	}
	return &CustomChunker{Split: fn, BatchSize: s.BatchSize}, nil
}

func (c *CustomChunker) Name() string { return "CustomChunker" }

func (c *CustomChunker) Chunk(docs []model.RagDocument, emit Emit) error {
	b := newBatcher(c.BatchSize, emit)
	for _, doc := range docs {
		for i, piece := range c.Split(doc.Content) {
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
