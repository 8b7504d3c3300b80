// Package catalog loads and cleans the book catalog from CSV or XLSX sources.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// Loader loads a cleaned, immutable book catalog.
type Loader interface {
	Load() ([]*models.Book, error)
}

// FileLoader loads the catalog from a file on disk. The format is selected by
// extension: .csv or .xlsx.
type FileLoader struct {
	path string
}

// NewFileLoader creates a loader for the catalog file at path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Path returns the catalog file path.
func (l *FileLoader) Path() string {
	return l.path
}

// Load reads the catalog file and returns cleaned records. Malformed rows are
// skipped; the remaining rows are cleaned per the catalog invariants (primary
// author extraction, median fill, language fill, ratings_count >= 1).
func (l *FileLoader) Load() ([]*models.Book, error) {
	var (
		rows []*rawRow
		err  error
	)
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".csv":
		rows, err = readCSV(l.path)
	case ".xlsx":
		rows, err = readXLSX(l.path)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", filepath.Ext(l.path))
	}
	if err != nil {
		return nil, err
	}
	books := Clean(rows)
	if len(books) == 0 {
		return nil, fmt.Errorf("catalog %s contains no usable rows", l.path)
	}
	return books, nil
}
