package catalog

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads catalog rows from the first sheet of an XLSX workbook. The
// first row is the header; columns are mapped by name like the CSV reader.
func readXLSX(path string) ([]*rawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("catalog workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog sheet: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("catalog sheet is empty")
	}

	cols := columnIndex(records[0])
	rows := make([]*rawRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		rows = append(rows, parseRow(record, cols))
	}
	return rows, nil
}
