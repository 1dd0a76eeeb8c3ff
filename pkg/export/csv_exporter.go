package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Roster describes a session attendance sheet ready for rendering.
type Roster struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

// CSVExporter renders rosters into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the roster.
func (e *CSVExporter) Render(roster Roster) ([]byte, error) {
	if len(roster.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(roster.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range roster.Rows {
		record := make([]string, len(roster.Headers))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
