package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragscale/ingestor/internal/model"
)

func TestEscapeKey_FlattensPathSeparators(t *testing.T) {
	escaped := escapeKey("a/b/c.txt")
	assert.NotContains(t, escaped, "/")
	assert.Contains(t, escaped, "c.txt")
}

func TestNewObjectStoreFromSettings_RequiresBucket(t *testing.T) {
	_, err := NewObjectStoreFromSettings(map[string]interface{}{
		"endpoint": "http://localhost:9000",
	})
	require.Error(t, err)
	var connErr *model.ConnectorError
	assert.True(t, errors.As(err, &connErr))
}

func TestNewObjectStoreFromSettings_RejectsUnknownFields(t *testing.T) {
	_, err := NewObjectStoreFromSettings(map[string]interface{}{
		"bucket":        "my-bucket",
		"not_a_setting": true,
	})
	require.Error(t, err)
}

func TestRegistry_ObjectStoreRegistered(t *testing.T) {
	assert.Contains(t, Registry.Names(), "objectstore")
}

func TestRegistry_UnknownSourceFails(t *testing.T) {
	_, err := Registry.Create("nope", nil)
	require.Error(t, err)
	var invalid *model.InvalidConnector
	assert.True(t, errors.As(err, &invalid))
}
