package export

import (
	"encoding/json"
	"fmt"
)

// JSONExporter renders Dataset records as a JSON array of objects.
type JSONExporter struct{}

// NewJSONExporter builds a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Render produces indented JSON for the dataset. Column order follows the
// headers; missing values render as empty strings.
func (e *JSONExporter) Render(data Dataset) ([]byte, error) {
	out := make([]map[string]string, 0, len(data.Rows))
	for _, row := range data.Rows {
		record := make(map[string]string, len(data.Headers))
		for _, header := range data.Headers {
			record[header] = row[header]
		}
		out = append(out, record)
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return payload, nil
}
