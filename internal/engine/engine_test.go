package engine

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/feature"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/storage"
)

// memLoader serves a fixed catalog.
type memLoader struct {
	books []*models.Book
}

func (l *memLoader) Load() ([]*models.Book, error) {
	return l.books, nil
}

// failLoader always errors, forcing restore-only initialization.
type failLoader struct{}

func (failLoader) Load() ([]*models.Book, error) {
	return nil, errors.New("catalog unavailable")
}

func testConfig() *config.RecommendConfig {
	return &config.RecommendConfig{DefaultK: 5, MaxK: 50, MinSimilarity: 0}
}

func testBooks() []*models.Book {
	return []*models.Book{
		{BookID: "1", Title: "The Dragon Quest", Authors: "Alice Smith", PrimaryAuthor: "Alice Smith",
			AverageRating: 4.5, RatingsCount: 10000, LanguageCode: "eng", NumPages: 350, PublicationYear: 2001},
		{BookID: "2", Title: "The Dragon Return", Authors: "Alice Smith", PrimaryAuthor: "Alice Smith",
			AverageRating: 4.5, RatingsCount: 10000, LanguageCode: "eng", NumPages: 350, PublicationYear: 2001},
		{BookID: "3", Title: "Cooking for Beginners", Authors: "Bob Jones", PrimaryAuthor: "Bob Jones",
			AverageRating: 2.1, RatingsCount: 40, LanguageCode: "fre", NumPages: 120, PublicationYear: 1985},
		{BookID: "4", Title: "Murder at Midnight", Authors: "Carol White", PrimaryAuthor: "Carol White",
			AverageRating: 3.8, RatingsCount: 2500, LanguageCode: "eng", NumPages: 480, PublicationYear: 2015},
	}
}

func newTestEngine(t *testing.T, store storage.Store) *Engine {
	t.Helper()
	e := NewEngine(zap.NewNop(), &memLoader{books: testBooks()}, nil, store, testConfig())
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() {
		_ = e.Close()
	})
	return e
}

func TestEngine_notReadyBeforeInit(t *testing.T) {
	e := NewEngine(zap.NewNop(), &memLoader{books: testBooks()}, nil, nil, testConfig())
	if _, err := e.RecommendSimilar(context.Background(), "dune", 3, false); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if e.Mode() != ModeUninitialized {
		t.Errorf("Mode = %q, want %q", e.Mode(), ModeUninitialized)
	}
}

func TestEngine_initTrainsAdvanced(t *testing.T) {
	e := newTestEngine(t, nil)
	if e.Mode() != string(feature.ModeAdvanced) {
		t.Errorf("Mode = %q, want advanced", e.Mode())
	}
	if e.Size() != 4 {
		t.Errorf("Size = %d, want 4", e.Size())
	}
}

func TestRecommendSimilar_identicalBookFirst(t *testing.T) {
	e := newTestEngine(t, nil)

	resp, err := e.RecommendSimilar(context.Background(), "The Dragon Quest", 2, false)
	if err != nil {
		t.Fatalf("RecommendSimilar: %v", err)
	}
	if resp.Seed != "The Dragon Quest" {
		t.Errorf("Seed = %q", resp.Seed)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(resp.Recommendations))
	}
	// Book 2 has identical attributes, so its scaled vector is identical and
	// its similarity is exactly 1.
	first := resp.Recommendations[0]
	if first.Title != "The Dragon Return" {
		t.Errorf("first recommendation = %q, want The Dragon Return", first.Title)
	}
	if math.Abs(first.Similarity-1.0) > 1e-9 {
		t.Errorf("identical book similarity = %v, want 1.0", first.Similarity)
	}
	for _, r := range resp.Recommendations {
		if r.Title == "The Dragon Quest" {
			t.Error("seed must be excluded by default")
		}
		if r.Similarity < 0 || r.Similarity > 1 {
			t.Errorf("similarity %v out of [0, 1]", r.Similarity)
		}
	}
}

func TestRecommendSimilar_includeSelf(t *testing.T) {
	e := newTestEngine(t, nil)

	resp, err := e.RecommendSimilar(context.Background(), "Murder at Midnight", 3, true)
	if err != nil {
		t.Fatalf("RecommendSimilar: %v", err)
	}
	if len(resp.Recommendations) == 0 {
		t.Fatal("expected recommendations")
	}
	if resp.Recommendations[0].Title != "Murder at Midnight" {
		t.Errorf("with include_self the seed comes first, got %q", resp.Recommendations[0].Title)
	}
	if math.Abs(resp.Recommendations[0].Similarity-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want 1.0", resp.Recommendations[0].Similarity)
	}
}

func TestRecommendSimilar_notFound(t *testing.T) {
	e := newTestEngine(t, nil)
	if _, err := e.RecommendSimilar(context.Background(), "zzzzqqqqxxxx", 3, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecommendSimilar_clampsK(t *testing.T) {
	e := NewEngine(zap.NewNop(), &memLoader{books: testBooks()},
		nil, nil, &config.RecommendConfig{DefaultK: 2, MaxK: 2, MinSimilarity: 0})
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer e.Close()

	resp, err := e.RecommendSimilar(context.Background(), "The Dragon Quest", 100, false)
	if err != nil {
		t.Fatalf("RecommendSimilar: %v", err)
	}
	if len(resp.Recommendations) != 2 {
		t.Errorf("k should be clamped to 2, got %d results", len(resp.Recommendations))
	}

	// k <= 0 falls back to the default.
	resp, err = e.RecommendSimilar(context.Background(), "The Dragon Quest", 0, false)
	if err != nil {
		t.Fatalf("RecommendSimilar: %v", err)
	}
	if len(resp.Recommendations) != 2 {
		t.Errorf("default k should apply, got %d results", len(resp.Recommendations))
	}
}

func TestRecommendSimilar_deterministic(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	a, err := e.RecommendSimilar(ctx, "The Dragon Quest", 3, false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.RecommendSimilar(ctx, "The Dragon Quest", 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Recommendations) != len(b.Recommendations) {
		t.Fatal("result lengths differ across identical queries")
	}
	for i := range a.Recommendations {
		if a.Recommendations[i].Title != b.Recommendations[i].Title ||
			a.Recommendations[i].Similarity != b.Recommendations[i].Similarity {
			t.Errorf("result %d differs across identical queries", i)
		}
	}
}

func TestRecommendForGenre_rankedByQuality(t *testing.T) {
	e := newTestEngine(t, nil)

	resp, err := e.RecommendForGenre(context.Background(), "fantasy", 5)
	if err != nil {
		t.Fatalf("RecommendForGenre: %v", err)
	}
	if resp.Genre != "fantasy" {
		t.Errorf("Genre = %q", resp.Genre)
	}
	// Both Dragon books match; identical attributes give identical quality
	// scores and identical counts, so catalog order breaks the tie.
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d fantasy recommendations, want 2", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Title != "The Dragon Quest" {
		t.Errorf("tie should break by catalog order, got %q first", resp.Recommendations[0].Title)
	}
	if resp.Recommendations[0].QualityScore < resp.Recommendations[1].QualityScore {
		t.Error("results not ordered by quality score")
	}
}

func TestRecommendForGenre_noMatches(t *testing.T) {
	e := newTestEngine(t, nil)
	resp, err := e.RecommendForGenre(context.Background(), "poetry_anthology", 5)
	if err != nil {
		t.Fatalf("RecommendForGenre: %v", err)
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("expected empty result, got %d", len(resp.Recommendations))
	}
}

func TestSearch(t *testing.T) {
	e := newTestEngine(t, nil)

	resp, err := e.Search(context.Background(), "dragon", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Hits) != 2 {
		t.Fatalf("got %d hits for \"dragon\", want 2", len(resp.Hits))
	}
	for _, h := range resp.Hits {
		if h.Author != "Alice Smith" {
			t.Errorf("unexpected hit %q by %q", h.Title, h.Author)
		}
	}
}

func TestBookVector(t *testing.T) {
	e := newTestEngine(t, nil)

	resp, err := e.BookVector("murder at midnight")
	if err != nil {
		t.Fatalf("BookVector: %v", err)
	}
	if resp.Row != 3 {
		t.Errorf("Row = %d, want 3", resp.Row)
	}
	if len(resp.Vector) != feature.AdvancedDims || len(resp.Dimensions) != feature.AdvancedDims {
		t.Errorf("vector/schema length %d/%d, want %d", len(resp.Vector), len(resp.Dimensions), feature.AdvancedDims)
	}
	for i, v := range resp.Vector {
		if v < 0 || v > 1 {
			t.Errorf("dimension %s = %v out of [0, 1]", resp.Dimensions[i], v)
		}
	}
}

func TestEngine_persistAndRestore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "osusume.db")

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	first := NewEngine(zap.NewNop(), &memLoader{books: testBooks()}, nil, store, testConfig())
	if err := first.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	want, err := first.RecommendSimilar(ctx, "The Dragon Quest", 2, false)
	if err != nil {
		t.Fatal(err)
	}
	_ = first.Close()
	_ = store.Close()

	// A second engine restores the bundle without touching the catalog.
	store2, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store2.Close()
	second := NewEngine(zap.NewNop(), failLoader{}, nil, store2, testConfig())
	if err := second.Init(ctx); err != nil {
		t.Fatalf("Init from bundle: %v", err)
	}
	defer second.Close()

	if second.Mode() != string(feature.ModeAdvanced) {
		t.Errorf("restored mode = %q, want advanced", second.Mode())
	}
	got, err := second.RecommendSimilar(ctx, "The Dragon Quest", 2, false)
	if err != nil {
		t.Fatalf("RecommendSimilar after restore: %v", err)
	}
	if len(got.Recommendations) != len(want.Recommendations) {
		t.Fatalf("restored results differ in length")
	}
	for i := range want.Recommendations {
		if got.Recommendations[i].Title != want.Recommendations[i].Title {
			t.Errorf("result %d: %q != %q", i, got.Recommendations[i].Title, want.Recommendations[i].Title)
		}
		if math.Abs(got.Recommendations[i].Similarity-want.Recommendations[i].Similarity) > 1e-9 {
			t.Errorf("result %d similarity drifted after restore", i)
		}
	}
}

func TestInvalidate_swapsCatalog(t *testing.T) {
	loader := &memLoader{books: testBooks()}
	e := NewEngine(zap.NewNop(), loader, nil, nil, testConfig())
	ctx := context.Background()
	if err := e.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer e.Close()

	loader.books = testBooks()[:3]
	if err := e.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if e.Size() != 3 {
		t.Errorf("Size after invalidate = %d, want 3", e.Size())
	}
	if _, err := e.RecommendSimilar(ctx, "Murder at Midnight", 2, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("removed book should be unresolvable, got %v", err)
	}
}

func TestMinSimilarityFilter(t *testing.T) {
	e := NewEngine(zap.NewNop(), &memLoader{books: testBooks()},
		nil, nil, &config.RecommendConfig{DefaultK: 5, MaxK: 50, MinSimilarity: 0.999})
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer e.Close()

	resp, err := e.RecommendSimilar(context.Background(), "The Dragon Quest", 3, false)
	if err != nil {
		t.Fatalf("RecommendSimilar: %v", err)
	}
	// Only the identical book clears a 0.999 similarity floor.
	if len(resp.Recommendations) != 1 {
		t.Fatalf("got %d recommendations above floor, want 1", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Title != "The Dragon Return" {
		t.Errorf("unexpected survivor %q", resp.Recommendations[0].Title)
	}
}

func TestInvalidate_closesSupersededIndex(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	old := e.snap.Load()
	if err := e.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := old.keyword.Search(ctx, "dragon", 1); err == nil {
		t.Error("superseded keyword index should be closed")
	}
	if _, err := e.Search(ctx, "dragon", 2); err != nil {
		t.Errorf("active snapshot search failed: %v", err)
	}
}

func TestRecommendForPreferences(t *testing.T) {
	e := newTestEngine(t, nil)
	resp, err := e.RecommendForPreferences(context.Background(),
		&models.PreferenceRequest{HighRating: true, Popular: true}, 4)
	if err != nil {
		t.Fatalf("RecommendForPreferences: %v", err)
	}
	if resp.Mode != "advanced" {
		t.Errorf("mode = %q", resp.Mode)
	}
	if len(resp.Recommendations) != 4 {
		t.Fatalf("got %d recommendations, want 4", len(resp.Recommendations))
	}
	// The low-rated, little-read book matches none of the target dimensions
	// and must rank last.
	if last := resp.Recommendations[3].Title; last != "Cooking for Beginners" {
		t.Errorf("last = %q, want Cooking for Beginners", last)
	}
	prev := 1.0
	for _, r := range resp.Recommendations {
		if r.Similarity > prev {
			t.Errorf("similarities not descending: %v after %v", r.Similarity, prev)
		}
		prev = r.Similarity
	}
}

func TestRecommendForPreferences_language(t *testing.T) {
	e := newTestEngine(t, nil)
	resp, err := e.RecommendForPreferences(context.Background(),
		&models.PreferenceRequest{Language: "fre"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) == 0 || resp.Recommendations[0].Title != "Cooking for Beginners" {
		t.Errorf("the only fre book should rank first: %+v", resp.Recommendations)
	}
}

func TestRecommendForPreferences_genreSubset(t *testing.T) {
	e := newTestEngine(t, nil)
	resp, err := e.RecommendForPreferences(context.Background(),
		&models.PreferenceRequest{HighRating: true, Genres: []string{"fantasy"}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want the 2 fantasy books", len(resp.Recommendations))
	}
	for _, r := range resp.Recommendations {
		if r.Title != "The Dragon Quest" && r.Title != "The Dragon Return" {
			t.Errorf("non-fantasy book %q in genre-restricted results", r.Title)
		}
	}

	empty, err := e.RecommendForPreferences(context.Background(),
		&models.PreferenceRequest{Genres: []string{"no such genre"}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Recommendations) != 0 {
		t.Errorf("unmatched genres should yield no recommendations, got %+v", empty.Recommendations)
	}
}

func TestRecommendForBook_unseenClone(t *testing.T) {
	e := newTestEngine(t, nil)
	clone := &models.Book{
		Title: "The Dragon Throne", Authors: "Alice Smith",
		AverageRating: 4.5, RatingsCount: 10000, LanguageCode: "eng", NumPages: 350, PublicationYear: 2001,
	}
	resp, err := e.RecommendForBook(context.Background(), clone, 2)
	if err != nil {
		t.Fatalf("RecommendForBook: %v", err)
	}
	if resp.Seed != "The Dragon Throne" {
		t.Errorf("seed = %q", resp.Seed)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(resp.Recommendations))
	}
	// The clone shares every feature with the two catalog Dragon books.
	for _, r := range resp.Recommendations {
		if r.Title != "The Dragon Quest" && r.Title != "The Dragon Return" {
			t.Errorf("unexpected neighbor %q", r.Title)
		}
		if r.Similarity < 0.999 {
			t.Errorf("clone similarity = %v, want ~1", r.Similarity)
		}
	}
	if clone.PrimaryAuthor != "Alice Smith" {
		t.Errorf("primary author not derived: %q", clone.PrimaryAuthor)
	}
}

func TestPopularBooks(t *testing.T) {
	e := newTestEngine(t, nil)
	resp, err := e.PopularBooks("", "", 1000, 10)
	if err != nil {
		t.Fatalf("PopularBooks: %v", err)
	}
	want := []string{"The Dragon Quest", "The Dragon Return", "Murder at Midnight"}
	if len(resp.Books) != len(want) {
		t.Fatalf("got %d books, want %d", len(resp.Books), len(want))
	}
	for i, b := range resp.Books {
		if b.Title != want[i] {
			t.Errorf("position %d = %q, want %q", i, b.Title, want[i])
		}
	}
}

func TestPopularBooks_filters(t *testing.T) {
	e := newTestEngine(t, nil)

	byCategory, err := e.PopularBooks(models.RatingHigh, "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byCategory.Books) != 1 || byCategory.Books[0].Title != "Murder at Midnight" {
		t.Errorf("high bucket should hold only Murder at Midnight: %+v", byCategory.Books)
	}

	byLanguage, err := e.PopularBooks("", "fre", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byLanguage.Books) != 1 || byLanguage.Books[0].Title != "Cooking for Beginners" {
		t.Errorf("fre filter should hold only Cooking for Beginners: %+v", byLanguage.Books)
	}

	defaulted, err := e.PopularBooks("", "", -1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if defaulted.MinRatings != 1000 {
		t.Errorf("negative threshold should select the default, got %d", defaulted.MinRatings)
	}
}

func TestPreferenceOps_notReadyBeforeInit(t *testing.T) {
	e := NewEngine(zap.NewNop(), &memLoader{books: testBooks()}, nil, nil, testConfig())
	ctx := context.Background()
	if _, err := e.RecommendForPreferences(ctx, &models.PreferenceRequest{}, 3); !errors.Is(err, ErrNotReady) {
		t.Errorf("RecommendForPreferences: %v", err)
	}
	if _, err := e.RecommendForBook(ctx, &models.Book{Title: "X"}, 3); !errors.Is(err, ErrNotReady) {
		t.Errorf("RecommendForBook: %v", err)
	}
	if _, err := e.PopularBooks("", "", 0, 3); !errors.Is(err, ErrNotReady) {
		t.Errorf("PopularBooks: %v", err)
	}
}
