package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/model"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCSVLoader_OneDocumentPerRow(t *testing.T) {
	path := writeTemp(t, "data.csv", "name,age\nalice,30\nbob,40\n")
	lf := model.LocalFile{ID: "file1", FilePath: path}

	var docs []model.RagDocument
	err := CSVLoader{}.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "file1_row_0", docs[0].ID)
	assert.Contains(t, docs[0].Content, "name: alice")
	assert.Equal(t, "alice", docs[0].Metadata["row"].(map[string]interface{})["name"])
}

func TestTextLoader_WholeFileSingleDocument(t *testing.T) {
	path := writeTemp(t, "notes.txt", "hello world")
	lf := model.LocalFile{ID: "file2", FilePath: path}

	var docs []model.RagDocument
	err := TextLoader{Format: "txt"}.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "file2", docs[0].ID)
	assert.Equal(t, "hello world", docs[0].Content)
}

func TestTextLoader_StripsHTMLTags(t *testing.T) {
	path := writeTemp(t, "page.html", "<html><body><p>Hi</p></body></html>")
	lf := model.LocalFile{ID: "file3", FilePath: path}

	var docs []model.RagDocument
	err := TextLoader{Format: "html"}.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotContains(t, docs[0].Content, "<p>")
	assert.Contains(t, docs[0].Content, "Hi")
}

func TestJSONLoader_ArrayYieldsOneDocumentPerElement(t *testing.T) {
	path := writeTemp(t, "records.json", `[{"a":1},{"a":2}]`)
	lf := model.LocalFile{ID: "file4", FilePath: path}

	var docs []model.RagDocument
	err := JSONLoader{}.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "file4_record_0", docs[0].ID)
}

func TestJSONLoader_ObjectYieldsSingleDocument(t *testing.T) {
	path := writeTemp(t, "one.json", `{"a":1}`)
	lf := model.LocalFile{ID: "file5", FilePath: path}

	var docs []model.RagDocument
	err := JSONLoader{}.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestAutoLoader_DispatchesByExtension(t *testing.T) {
	al := NewAutoLoader()
	path := writeTemp(t, "plain.unknownext", "content")
	lf := model.LocalFile{ID: "file6", FilePath: path}

	var docs []model.RagDocument
	err := al.Load(lf, func(d model.RagDocument) error {
		docs = append(docs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "content", docs[0].Content)
}

func TestAutoLoader_ConfigValidation(t *testing.T) {
	al := NewAutoLoader()
	assert.True(t, al.ConfigValidation())
}
