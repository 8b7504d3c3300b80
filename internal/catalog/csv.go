package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// readCSV reads catalog rows from a CSV file. The header row maps columns by
// name (whitespace-trimmed). Rows whose field count differs from the header
// and rows with an unparseable structure are skipped, matching the lenient
// behavior expected of messy public book datasets.
func readCSV(path string) ([]*rawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}
	cols := columnIndex(header)

	var rows []*rawRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Bad line: skip and continue.
			continue
		}
		if len(record) != len(header) {
			continue
		}
		rows = append(rows, parseRow(record, cols))
	}
	return rows, nil
}
