package title

import (
	"errors"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

// ErrNotFound is returned when no catalog title matches the query.
var ErrNotFound = errors.New("title not found in catalog")

// fuzzyThreshold is the minimum Levenshtein similarity for a fuzzy match.
const fuzzyThreshold = 0.4

// Resolver maps a user-supplied title to a catalog row index using a
// deterministic three-stage policy:
//  1. exact case-insensitive match (first by catalog order)
//  2. substring match (first by catalog order)
//  3. best Levenshtein similarity >= threshold (ties by catalog order)
type Resolver struct {
	titles []string // normalized, index-aligned with the catalog
}

// NewResolver builds a resolver over the catalog's titles. The resolver holds
// only normalized copies and stays valid for the lifetime of one snapshot.
func NewResolver(books []*models.Book) *Resolver {
	titles := make([]string, len(books))
	for i, b := range books {
		titles[i] = utils.NormalizeTitle(b.Title)
	}
	return &Resolver{titles: titles}
}

// Resolve returns the row index for query, or ErrNotFound.
func (r *Resolver) Resolve(query string) (int, error) {
	q := utils.NormalizeTitle(query)
	if q == "" {
		return 0, ErrNotFound
	}

	for i, t := range r.titles {
		if t == q {
			return i, nil
		}
	}

	for i, t := range r.titles {
		if strings.Contains(t, q) {
			return i, nil
		}
	}

	bestRow := -1
	bestScore := 0.0
	for i, t := range r.titles {
		if s := similarity(t, q); s > bestScore {
			bestScore = s
			bestRow = i
		}
	}
	if bestRow >= 0 && bestScore >= fuzzyThreshold {
		return bestRow, nil
	}

	return 0, ErrNotFound
}
