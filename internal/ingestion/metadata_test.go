package ingestion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetadata(t *testing.T) {
	metadata := NewMetadata("We need Go and PostgreSQL experience.", "https://example.com/job")

	assert.Equal(t, "https://example.com/job", metadata.URL)
	assert.Len(t, metadata.Hash, 64, "SHA256 hex digest")

	_, err := time.Parse(time.RFC3339, metadata.Timestamp)
	assert.NoError(t, err, "timestamp is RFC3339")
}

func TestNewMetadata_FileInput(t *testing.T) {
	metadata := NewMetadata("content", "")

	assert.Empty(t, metadata.URL)
	assert.Empty(t, metadata.Platform)
	assert.Empty(t, metadata.Title)
	assert.NotEmpty(t, metadata.Hash)
}

func TestComputeHash(t *testing.T) {
	first := computeHash("job description text")
	second := computeHash("different text")

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)
	assert.Equal(t, first, computeHash("job description text"), "hash is deterministic")
}

func TestMetadata_ToJSON(t *testing.T) {
	metadata := &Metadata{
		URL:       "https://example.com/job",
		Timestamp: "2026-01-01T00:00:00Z",
		Hash:      "abcd1234",
		Platform:  "greenhouse",
		Title:     "Senior Go Engineer",
	}

	jsonBytes, err := metadata.ToJSON()
	require.NoError(t, err)

	var decoded Metadata
	require.NoError(t, json.Unmarshal(jsonBytes, &decoded))
	assert.Equal(t, *metadata, decoded)
}

func TestMetadata_ToJSON_OmitsEmptyOptionalFields(t *testing.T) {
	jsonBytes, err := NewMetadata("content", "").ToJSON()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(jsonBytes, &fields))
	assert.NotContains(t, fields, "url")
	assert.NotContains(t, fields, "platform")
	assert.NotContains(t, fields, "title")
	assert.Contains(t, fields, "hash")
}
