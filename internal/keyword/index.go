// Package keyword provides Bleve full-text search over the catalog.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/osusume/internal/models"
)

// Hit is one keyword search result, referencing a catalog row.
type Hit struct {
	Row   int
	Score float64
}

// bookDoc is the shape indexed per catalog row.
type bookDoc struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
}

// Index is an in-memory Bleve index over book titles and authors. It is
// rebuilt together with the feature matrix on every (re)train, so catalog
// rows and index documents always refer to the same snapshot.
type Index struct {
	index bleve.Index
}

// NewIndex builds an in-memory index over the catalog.
func NewIndex(books []*models.Book) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries like
	// "thrones" match the exact word rather than a stemmed form.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("authors", textFieldMapping)
	im.AddDocumentMapping("book", docMapping)
	im.DefaultType = "book"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}

	batch := index.NewBatch()
	for row, b := range books {
		doc := bookDoc{Title: b.Title, Authors: b.Authors}
		if err := batch.Index(strconv.Itoa(row), doc); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index row %d: %w", row, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to commit index batch: %w", err)
	}

	return &Index{index: index}, nil
}

// Search runs a match query over title and authors and returns up to limit
// hits ordered by descending score, ties by row index.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	var q blevequery.Query = bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := idx.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	hits := make([]*Hit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		hits = append(hits, &Hit{Row: row, Score: hit.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
	return hits, nil
}

// DocCount returns the number of indexed books.
func (idx *Index) DocCount() (uint64, error) {
	return idx.index.DocCount()
}

// Close releases the index.
func (idx *Index) Close() error {
	return idx.index.Close()
}
