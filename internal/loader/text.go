package loader

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ragscale/ingestor/internal/model"
)

// TextLoader emits a single RagDocument holding the whole file's
// content, used for html, md, txt, and any unrecognized extension.
// Format records which extraction behavior was applied; html strips
// markup tags before handing content downstream.
type TextLoader struct {
	Format string
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func (t TextLoader) Load(lf model.LocalFile, emit Emit) error {
	raw, err := os.ReadFile(lf.FilePath)
	if err != nil {
		return fmt.Errorf("read %s file: %w", t.Format, err)
	}

	content := string(raw)
	if t.Format == "html" {
		content = strings.TrimSpace(htmlTagPattern.ReplaceAllString(content, " "))
	}

	doc := model.RagDocument{
		ID:       lf.ID,
		Content:  content,
		Metadata: withLoaderMeta(lf.Metadata, lf.FilePath, map[string]interface{}{"file_type": t.Format}),
	}
	return emit(doc)
}
