package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ragscale/ingestor/internal/model"
)

// CSVLoader emits one RagDocument per data row. Content is rendered
// as "column: value" lines joined by newlines; the row's own values
// are carried into metadata["row"] as a map keyed by column name.
type CSVLoader struct{}

func (CSVLoader) Load(lf model.LocalFile, emit Emit) error {
	f, err := os.Open(lf.FilePath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read csv header: %w", err)
	}

	for rowIndex := 0; ; rowIndex++ {
		record, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read csv row %d: %w", rowIndex, err)
		}

		var lines []string
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			var val string
			if i < len(record) {
				val = record[i]
			}
			row[col] = val
			lines = append(lines, fmt.Sprintf("%s: %s", col, val))
		}

		doc := model.RagDocument{
			ID:      fmt.Sprintf("%s_row_%d", lf.ID, rowIndex),
			Content: strings.Join(lines, "\n"),
			Metadata: withLoaderMeta(lf.Metadata, lf.FilePath, map[string]interface{}{
				"row": row,
			}),
		}
		if err := emit(doc); err != nil {
			return err
		}
	}
	return nil
}
