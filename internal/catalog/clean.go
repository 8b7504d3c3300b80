package catalog

import (
	"math"
	"strconv"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

const (
	defaultLanguage = "eng"
	// Applied when the whole column is missing and no median can be computed.
	defaultNumPages = 300
)

// rawRow is a catalog row before cleaning. Numeric fields use NaN / -1
// sentinels for missing values so that column medians can be computed over
// present values only.
type rawRow struct {
	bookID        string
	title         string
	authors       string
	languageCode  string
	description   string
	averageRating float64 // NaN when missing
	ratingsCount  int64   // -1 when missing
	numPages      int     // -1 when missing
	pubYear       int     // -1 when missing
}

// columnIndex maps trimmed header names to their positions.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

// parseRow converts one record into a rawRow using the header column map.
// Unparseable numeric fields become missing-value sentinels.
func parseRow(record []string, cols map[string]int) *rawRow {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := &rawRow{
		bookID:        get("bookID"),
		title:         get("title"),
		authors:       get("authors"),
		languageCode:  get("language_code"),
		description:   get("description"),
		averageRating: math.NaN(),
		ratingsCount:  -1,
		numPages:      -1,
		pubYear:       -1,
	}
	if v, err := strconv.ParseFloat(get("average_rating"), 64); err == nil {
		row.averageRating = v
	}
	if v, err := strconv.ParseInt(get("ratings_count"), 10, 64); err == nil && v >= 0 {
		row.ratingsCount = v
	}
	if v, err := strconv.Atoi(get("num_pages")); err == nil && v >= 0 {
		row.numPages = v
	}
	if y := parseYear(get("publication_date"), get("publication_year")); y > 0 {
		row.pubYear = y
	}
	return row
}

// parseYear extracts a publication year from either a date like "9/16/2006"
// or an explicit year column.
func parseYear(date, year string) int {
	if year != "" {
		if y, err := strconv.Atoi(year); err == nil && y > 0 {
			return y
		}
	}
	if date == "" {
		return 0
	}
	parts := strings.Split(date, "/")
	last := parts[len(parts)-1]
	if y, err := strconv.Atoi(last); err == nil && y > 0 {
		return y
	}
	return 0
}

// Clean applies the catalog invariants to raw rows and returns immutable book
// records aligned in input order:
//   - rows with an empty title are dropped
//   - primary author is the first "/"-separated segment of the authors field
//   - missing numeric fields are filled with the column median
//   - ratings_count is coerced to at least 1
//   - missing language maps to the default language bucket
func Clean(rows []*rawRow) []*models.Book {
	kept := make([]*rawRow, 0, len(rows))
	for _, r := range rows {
		if r != nil && r.title != "" {
			kept = append(kept, r)
		}
	}

	var ratings, counts, pages, years []float64
	for _, r := range kept {
		if !math.IsNaN(r.averageRating) {
			ratings = append(ratings, r.averageRating)
		}
		if r.ratingsCount >= 0 {
			counts = append(counts, float64(r.ratingsCount))
		}
		if r.numPages >= 0 {
			pages = append(pages, float64(r.numPages))
		}
		if r.pubYear > 0 {
			years = append(years, float64(r.pubYear))
		}
	}
	medianRating := utils.Median(ratings)
	medianCount := utils.Median(counts)
	medianPages := utils.Median(pages)
	medianYear := utils.Median(years)
	if medianPages == 0 {
		medianPages = defaultNumPages
	}

	books := make([]*models.Book, 0, len(kept))
	for _, r := range kept {
		b := &models.Book{
			BookID:          r.bookID,
			Title:           r.title,
			Authors:         r.authors,
			PrimaryAuthor:   PrimaryAuthor(r.authors),
			AverageRating:   r.averageRating,
			RatingsCount:    r.ratingsCount,
			LanguageCode:    r.languageCode,
			NumPages:        r.numPages,
			PublicationYear: r.pubYear,
			Description:     r.description,
		}
		if math.IsNaN(b.AverageRating) {
			b.AverageRating = medianRating
		}
		if b.RatingsCount < 0 {
			b.RatingsCount = int64(medianCount)
		}
		if b.RatingsCount < 1 {
			b.RatingsCount = 1 // avoids log(0) in popularity features
		}
		if b.NumPages < 0 {
			b.NumPages = int(medianPages)
		}
		if b.PublicationYear <= 0 {
			b.PublicationYear = int(medianYear)
		}
		if b.LanguageCode == "" {
			b.LanguageCode = defaultLanguage
		}
		books = append(books, b)
	}
	return books
}

// PrimaryAuthor extracts the first author from a "/"-separated authors field.
func PrimaryAuthor(authors string) string {
	if authors == "" {
		return "Unknown"
	}
	return strings.TrimSpace(strings.Split(authors, "/")[0])
}
