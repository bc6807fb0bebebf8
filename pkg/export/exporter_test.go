package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDataset = Dataset{
	Headers: []string{"name", "score"},
	Rows: []map[string]string{
		{"name": "Deneme 1", "score": "380.00"},
		{"name": "Deneme 2"},
	},
}

func TestCSVExporterRender(t *testing.T) {
	data, err := NewCSVExporter().Render(sampleDataset)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,score", lines[0])
	assert.Equal(t, "Deneme 1,380.00", lines[1])
	assert.Equal(t, "Deneme 2,", lines[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestJSONExporterRender(t *testing.T) {
	data, err := NewJSONExporter().Render(sampleDataset)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Deneme 1", rows[0]["name"])
	assert.Equal(t, "", rows[1]["score"])
}

func TestJSONExporterEmptyDataset(t *testing.T) {
	data, err := NewJSONExporter().Render(Dataset{Headers: []string{"name"}})
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestPDFExporterRender(t *testing.T) {
	data, err := NewPDFExporter().Render(sampleDataset, "Deneme Raporu")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
