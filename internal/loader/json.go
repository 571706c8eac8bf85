package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ragscale/ingestor/internal/model"
)

// JSONLoader emits one RagDocument per top-level record. A top-level
// JSON array yields one document per element; a top-level object
// yields a single document for the whole object.
type JSONLoader struct{}

func (JSONLoader) Load(lf model.LocalFile, emit Emit) error {
	raw, err := os.ReadFile(lf.FilePath)
	if err != nil {
		return fmt.Errorf("read json file: %w", err)
	}

	var records []interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		var single interface{}
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return fmt.Errorf("parse json: %w", err)
		}
		records = []interface{}{single}
	}

	for i, rec := range records {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("re-encode json record %d: %w", i, err)
		}
		doc := model.RagDocument{
			ID:      fmt.Sprintf("%s_record_%d", lf.ID, i),
			Content: string(encoded),
			Metadata: withLoaderMeta(lf.Metadata, lf.FilePath, map[string]interface{}{
				"record_index": i,
			}),
		}
		if err := emit(doc); err != nil {
			return err
		}
	}
	return nil
}
