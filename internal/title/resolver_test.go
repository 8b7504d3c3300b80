package title

import (
	"errors"
	"testing"

	"github.com/hyperjump/osusume/internal/models"
)

func resolverBooks() []*models.Book {
	return []*models.Book{
		{Title: "Dune"},
		{Title: "Dune Messiah"},
		{Title: "The Name of the Rose"},
		{Title: "A Game of Thrones"},
	}
}

func TestResolve_exactCaseInsensitive(t *testing.T) {
	r := NewResolver(resolverBooks())
	row, err := r.Resolve("dUnE")
	if err != nil {
		t.Fatal(err)
	}
	// Exact match wins over the substring match in "Dune Messiah".
	if row != 0 {
		t.Errorf("expected row 0, got %d", row)
	}
}

func TestResolve_substringFirstByCatalogOrder(t *testing.T) {
	r := NewResolver(resolverBooks())
	row, err := r.Resolve("messiah")
	if err != nil {
		t.Fatal(err)
	}
	if row != 1 {
		t.Errorf("expected row 1, got %d", row)
	}
	// "e " appears in several titles; the first by catalog order wins.
	row, err = r.Resolve("name of")
	if err != nil {
		t.Fatal(err)
	}
	if row != 2 {
		t.Errorf("expected row 2, got %d", row)
	}
}

func TestResolve_fuzzy(t *testing.T) {
	r := NewResolver(resolverBooks())
	row, err := r.Resolve("a game of throns")
	if err != nil {
		t.Fatal(err)
	}
	if row != 3 {
		t.Errorf("expected fuzzy match to row 3, got %d", row)
	}
}

func TestResolve_notFound(t *testing.T) {
	r := NewResolver(resolverBooks())
	_, err := r.Resolve("zzzzqqqqxxxx")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Resolve(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty query should be ErrNotFound, got %v", err)
	}
}

func TestResolve_deterministic(t *testing.T) {
	r := NewResolver(resolverBooks())
	a, _ := r.Resolve("dune")
	b, _ := r.Resolve("dune")
	if a != b {
		t.Errorf("resolution not deterministic: %d vs %d", a, b)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"dune", "dunes", 1},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q)=%d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if s := similarity("dune", "dune"); s != 1 {
		t.Errorf("identical similarity = %v", s)
	}
	if s := similarity("abcd", "wxyz"); s != 0 {
		t.Errorf("disjoint similarity = %v", s)
	}
}
