package loader

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/ragscale/ingestor/internal/model"
)

// PDFLoader emits one RagDocument per page, using ledongthuc/pdf for
// plain-text extraction.
type PDFLoader struct{}

func (PDFLoader) Load(lf model.LocalFile, emit Emit) error {
	f, err := os.Open(lf.FilePath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("create pdf reader: %w", err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return fmt.Errorf("extract text from page %d: %w", i, err)
		}

		doc := model.RagDocument{
			ID:      fmt.Sprintf("%s_page_%d", lf.ID, i),
			Content: content,
			Metadata: withLoaderMeta(lf.Metadata, lf.FilePath, map[string]interface{}{
				"page": i,
			}),
		}
		if err := emit(doc); err != nil {
			return err
		}
	}
	return nil
}
