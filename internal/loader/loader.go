// Package loader turns a downloaded LocalFile into one or more
// RagDocuments, dispatching on file extension the way the source
// system's AutoLoader does: one document per CSV row, one per PDF
// page, one per top-level JSON record, a single document for
// HTML/Markdown/plain text.
package loader

import (
	"path/filepath"
	"strings"

	"github.com/ragscale/ingestor/internal/model"
)

// Emit is called once per document a loader produces.
type Emit func(doc model.RagDocument) error

// Loader turns a LocalFile into a lazy sequence of RagDocuments.
type Loader interface {
	// Load reads lf and emits one RagDocument per logical record.
	Load(lf model.LocalFile, emit Emit) error
}

// byExtension maps a lowercased file extension (including the dot) to
// the Loader that handles it. Unregistered extensions fall back to
// the plain-text loader, matching the source system's "txt / unknown
// string: single document, whole file" behaviour.
var byExtension = map[string]Loader{
	".csv":  CSVLoader{},
	".pdf":  PDFLoader{},
	".html": TextLoader{Format: "html"},
	".htm":  TextLoader{Format: "html"},
	".md":   TextLoader{Format: "md"},
	".json": JSONLoader{},
	".txt":  TextLoader{Format: "txt"},
}

// AutoLoader dispatches to the registered Loader for a file's
// extension, defaulting to whole-file plain text for anything else.
type AutoLoader struct{}

// NewAutoLoader constructs an AutoLoader. It takes no configuration;
// extension routing is fixed by the module's built-in loader set.
func NewAutoLoader() *AutoLoader { return &AutoLoader{} }

func (a *AutoLoader) Load(lf model.LocalFile, emit Emit) error {
	l, ok := byExtension[strings.ToLower(filepath.Ext(lf.FilePath))]
	if !ok {
		l = TextLoader{Format: "txt"}
	}
	return l.Load(lf, emit)
}

// ConfigValidation reports whether the AutoLoader is ready to run. It
// always succeeds: the loader family has no required external
// configuration.
func (a *AutoLoader) ConfigValidation() bool { return true }

// withLoaderMeta copies a LocalFile's inherited metadata and layers
// the loader-specific fields ("source" plus whatever extra fields the
// caller supplies, e.g. "row" or "page") on top.
func withLoaderMeta(parent map[string]interface{}, sourcePath string, extra map[string]interface{}) map[string]interface{} {
	meta := make(map[string]interface{}, len(parent)+len(extra)+1)
	for k, v := range parent {
		meta[k] = v
	}
	meta["source"] = sourcePath
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}
