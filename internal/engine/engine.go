// Package engine orchestrates training and serves recommendation queries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/feature"
	"github.com/hyperjump/osusume/internal/genre"
	"github.com/hyperjump/osusume/internal/keyword"
	"github.com/hyperjump/osusume/internal/knn"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/sentiment"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/title"
)

var (
	// ErrNotFound is returned when a title cannot be resolved to a catalog row.
	ErrNotFound = title.ErrNotFound
	// ErrNotReady is returned for queries before the first snapshot exists.
	ErrNotReady = errors.New("engine not initialized")
)

// ModeUninitialized is reported before the first snapshot is built.
const ModeUninitialized = "uninitialized"

// snapshot is one immutable trained state. Query paths read a snapshot
// pointer once and never see a half-swapped state.
type snapshot struct {
	books    []*models.Book
	features *feature.Result
	index    *knn.Index
	resolver *title.Resolver
	keyword  *keyword.Index
}

// Engine serves recommendations from an atomically swapped snapshot.
// Queries are lock-free; retraining builds a new snapshot off to the side
// and swaps it in, serialized by trainMu.
type Engine struct {
	logger     *zap.Logger
	loader     catalog.Loader
	scorer     sentiment.Scorer
	store      storage.Store
	classifier *genre.Classifier
	cfg        *config.RecommendConfig

	snap    atomic.Pointer[snapshot]
	trainMu sync.Mutex
}

// NewEngine wires an engine from its collaborators. The store and scorer may
// be nil: without a store nothing is persisted, and without a scorer the
// sentiment dimension is neutral for every book.
func NewEngine(logger *zap.Logger, loader catalog.Loader, scorer sentiment.Scorer, store storage.Store, cfg *config.RecommendConfig) *Engine {
	return &Engine{
		logger:     logger,
		loader:     loader,
		scorer:     scorer,
		store:      store,
		classifier: genre.NewClassifier(),
		cfg:        cfg,
	}
}

// Init prepares the first snapshot: restore the persisted bundle when one is
// usable, otherwise train from the catalog. A stale or corrupt bundle is
// never fatal; it just forces a retrain.
func (e *Engine) Init(ctx context.Context) error {
	if e.store != nil {
		bundle, err := e.store.LoadBundle(ctx)
		if err == nil {
			snap, restoreErr := e.restore(bundle)
			if restoreErr == nil {
				e.swapSnapshot(snap)
				e.logger.Info("restored model bundle",
					zap.String("bundle_id", bundle.ID),
					zap.String("mode", string(bundle.Mode)),
					zap.Int("books", len(bundle.Books)))
				return nil
			}
			e.logger.Warn("stored bundle unusable, retraining", zap.Error(restoreErr))
		} else if !errors.Is(err, storage.ErrNoBundle) {
			e.logger.Warn("failed to load bundle, retraining", zap.Error(err))
		}
	}
	return e.Invalidate(ctx)
}

// Invalidate retrains from a fresh catalog load and swaps the snapshot.
// Concurrent invalidations are serialized; readers are never interrupted.
func (e *Engine) Invalidate(ctx context.Context) error {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	books, err := e.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	result := e.attemptTrain(ctx, books)
	if result.outcome == trainFatal {
		return fmt.Errorf("training failed: %w", result.err)
	}
	if result.outcome == trainFallback {
		e.logger.Warn("advanced feature set unavailable, using fallback",
			zap.Error(result.err))
	}

	snap, err := newSnapshot(books, result.features)
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}
	e.swapSnapshot(snap)
	e.logger.Info("trained model",
		zap.String("mode", string(result.features.Mode)),
		zap.Int("books", len(books)),
		zap.Int("dimensions", result.features.Mode.Dims()))

	e.persist(ctx, snap)
	return nil
}

// swapSnapshot installs the new snapshot and releases the superseded one.
// Without the close, every retrain would leak an in-memory keyword index.
func (e *Engine) swapSnapshot(snap *snapshot) {
	old := e.snap.Swap(snap)
	if old == nil {
		return
	}
	if err := old.keyword.Close(); err != nil {
		e.logger.Warn("failed to close superseded keyword index", zap.Error(err))
	}
}

type trainOutcome int

const (
	trainAdvanced trainOutcome = iota
	trainFallback
	trainFatal
)

type trainResult struct {
	outcome  trainOutcome
	features *feature.Result
	err      error
}

// attemptTrain fits the advanced feature set and degrades to the fallback set
// on failure. Only a failed fallback fit is fatal.
func (e *Engine) attemptTrain(ctx context.Context, books []*models.Book) trainResult {
	advanced, advErr := feature.FitTransform(ctx, books, e.scorer, feature.ModeAdvanced)
	if advErr == nil {
		return trainResult{outcome: trainAdvanced, features: advanced}
	}
	fallback, fbErr := feature.FitTransform(ctx, books, nil, feature.ModeFallback)
	if fbErr == nil {
		return trainResult{outcome: trainFallback, features: fallback, err: advErr}
	}
	return trainResult{outcome: trainFatal, err: errors.Join(advErr, fbErr)}
}

// newSnapshot builds the derived indexes over a fitted feature result.
func newSnapshot(books []*models.Book, features *feature.Result) (*snapshot, error) {
	index, err := knn.Fit(features.Matrix)
	if err != nil {
		return nil, err
	}
	kw, err := keyword.NewIndex(books)
	if err != nil {
		return nil, err
	}
	return &snapshot{
		books:    books,
		features: features,
		index:    index,
		resolver: title.NewResolver(books),
		keyword:  kw,
	}, nil
}

// restore rebuilds a snapshot from a persisted bundle. Derived aggregates are
// recomputed from the stored catalog; only the scaler parameters and matrix
// are taken verbatim.
func (e *Engine) restore(b *storage.Bundle) (*snapshot, error) {
	stats := feature.ComputeStatsForMode(b.Books, b.Mode)
	features := &feature.Result{
		Mode:   b.Mode,
		Matrix: b.Matrix,
		Scaler: &feature.MinMaxScaler{Mins: b.Mins, Maxs: b.Maxs},
		Schema: b.Dimensions,
		Stats:  stats,
	}
	return newSnapshot(b.Books, features)
}

// persist saves the snapshot's bundle. Persistence failures are logged and
// never fail a completed training run.
func (e *Engine) persist(ctx context.Context, snap *snapshot) {
	if e.store == nil {
		return
	}
	bundle := &storage.Bundle{
		Mode:       snap.features.Mode,
		Dimensions: snap.features.Schema,
		Mins:       snap.features.Scaler.Mins,
		Maxs:       snap.features.Scaler.Maxs,
		Matrix:     snap.features.Matrix,
		Books:      snap.books,
	}
	if err := e.store.SaveBundle(ctx, bundle); err != nil {
		e.logger.Warn("failed to persist bundle", zap.Error(err))
		return
	}
	e.logger.Info("persisted model bundle", zap.String("bundle_id", bundle.ID))
}

// Mode reports the active feature mode, or ModeUninitialized.
func (e *Engine) Mode() string {
	snap := e.snap.Load()
	if snap == nil {
		return ModeUninitialized
	}
	return string(snap.features.Mode)
}

// Size returns the number of books in the active snapshot.
func (e *Engine) Size() int {
	snap := e.snap.Load()
	if snap == nil {
		return 0
	}
	return len(snap.books)
}

// clampK applies the configured default and upper bound.
func (e *Engine) clampK(k int) int {
	if k <= 0 {
		k = e.cfg.DefaultK
	}
	if e.cfg.MaxK > 0 && k > e.cfg.MaxK {
		k = e.cfg.MaxK
	}
	return k
}

// RecommendSimilar returns the k most similar books to the given title. The
// seed itself is excluded unless includeSelf is set; with includeSelf the seed
// comes back first with similarity 1.
func (e *Engine) RecommendSimilar(ctx context.Context, query string, k int, includeSelf bool) (*models.RecommendResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	k = e.clampK(k)

	row, err := snap.resolver.Resolve(query)
	if err != nil {
		return nil, err
	}

	exclude := row
	if includeSelf {
		exclude = knn.NoExclude
	}
	neighbors, err := snap.index.Query(snap.features.Matrix[row], k, exclude)
	if err != nil {
		return nil, err
	}

	return &models.RecommendResponse{
		Seed:            snap.books[row].Title,
		Mode:            string(snap.features.Mode),
		Recommendations: e.neighborsToRecs(snap, neighbors),
	}, nil
}

// neighborsToRecs joins neighbor rows back to catalog records, dropping hits
// below the configured similarity floor.
func (e *Engine) neighborsToRecs(snap *snapshot, neighbors []knn.Neighbor) []*models.Recommendation {
	recs := make([]*models.Recommendation, 0, len(neighbors))
	for _, n := range neighbors {
		sim := knn.SimilarityFromDistance(n.Distance)
		if sim < e.cfg.MinSimilarity {
			continue
		}
		b := snap.books[n.Row]
		recs = append(recs, &models.Recommendation{
			Title:        b.Title,
			Author:       b.PrimaryAuthor,
			Rating:       b.AverageRating,
			RatingsCount: b.RatingsCount,
			Language:     b.LanguageCode,
			Similarity:   sim,
		})
	}
	return recs
}

// preferenceTarget maps soft preferences onto named feature dimensions. A
// high-rating preference lights both upper rating buckets; popularity targets
// the 90th percentile rather than the maximum so mega-bestsellers do not
// dominate.
func preferenceTarget(prefs *models.PreferenceRequest) map[string]float64 {
	target := make(map[string]float64)
	if prefs.HighRating {
		target["rating_high"] = 1
		target["rating_very_high"] = 1
	}
	if prefs.Popular {
		target["ratings_percentile"] = 0.9
	}
	if prefs.Language != "" {
		target["lang_"+prefs.Language] = 1
	}
	if prefs.SentimentPositive {
		target["sentiment_score"] = 0.8
	}
	return target
}

// RecommendForPreferences ranks the catalog against a target vector built
// from soft preferences instead of a seed book. When genres are given,
// candidates are restricted to books matching at least one of them; a genre
// list that matches nothing yields an empty result, not an error.
func (e *Engine) RecommendForPreferences(ctx context.Context, prefs *models.PreferenceRequest, k int) (*models.PreferenceResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	k = e.clampK(k)

	vec, err := snap.features.TransformTarget(preferenceTarget(prefs))
	if err != nil {
		return nil, err
	}

	var neighbors []knn.Neighbor
	if len(prefs.Genres) > 0 {
		neighbors, err = snap.index.QuerySubset(vec, k, e.genreRows(snap, prefs.Genres), knn.NoExclude)
	} else {
		neighbors, err = snap.index.Query(vec, k, knn.NoExclude)
	}
	if err != nil {
		return nil, err
	}

	return &models.PreferenceResponse{
		Preferences:     prefs,
		Mode:            string(snap.features.Mode),
		Recommendations: e.neighborsToRecs(snap, neighbors),
	}, nil
}

// genreRows collects catalog rows matching any of the given genres.
func (e *Engine) genreRows(snap *snapshot, genres []string) []int {
	preds := make([]func(*models.Book) bool, len(genres))
	for i, g := range genres {
		preds[i] = e.classifier.Predicate(g)
	}
	var rows []int
	for row, b := range snap.books {
		for _, match := range preds {
			if match(b) {
				rows = append(rows, row)
				break
			}
		}
	}
	return rows
}

// RecommendForBook finds catalog neighbors of a record that is not in the
// catalog, mapping it through the fitted pipeline without refitting. The
// primary author is derived when absent, same as during catalog cleaning.
func (e *Engine) RecommendForBook(ctx context.Context, b *models.Book, k int) (*models.RecommendResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	k = e.clampK(k)

	if b.PrimaryAuthor == "" {
		b.PrimaryAuthor = catalog.PrimaryAuthor(b.Authors)
	}
	vec, err := snap.features.TransformOne(ctx, b, e.scorer)
	if err != nil {
		return nil, err
	}
	neighbors, err := snap.index.Query(vec, k, knn.NoExclude)
	if err != nil {
		return nil, err
	}

	return &models.RecommendResponse{
		Seed:            b.Title,
		Mode:            string(snap.features.Mode),
		Recommendations: e.neighborsToRecs(snap, neighbors),
	}, nil
}

// defaultMinRatings filters popular-book listings to titles with a meaningful
// rating sample.
const defaultMinRatings = 1000

// PopularBooks lists top-rated books filtered by rating category, language,
// and a minimum ratings count, ordered by average rating with catalog order
// breaking ties. A negative minRatings selects the default threshold.
func (e *Engine) PopularBooks(ratingCategory, language string, minRatings int64, limit int) (*models.PopularResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	limit = e.clampK(limit)
	if minRatings < 0 {
		minRatings = defaultMinRatings
	}

	var rows []int
	for row, b := range snap.books {
		if ratingCategory != "" && b.RatingCategory() != ratingCategory {
			continue
		}
		if language != "" && b.LanguageCode != language {
			continue
		}
		if b.RatingsCount < minRatings {
			continue
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return snap.books[rows[i]].AverageRating > snap.books[rows[j]].AverageRating
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}

	books := make([]*models.PopularBook, 0, len(rows))
	for _, row := range rows {
		b := snap.books[row]
		books = append(books, &models.PopularBook{
			Title:        b.Title,
			Author:       b.PrimaryAuthor,
			Rating:       b.AverageRating,
			RatingsCount: b.RatingsCount,
			Language:     b.LanguageCode,
		})
	}
	return &models.PopularResponse{
		RatingCategory: ratingCategory,
		Language:       language,
		MinRatings:     minRatings,
		Books:          books,
	}, nil
}

// RecommendForGenre returns the top k books matching the genre, ranked by
// weighted quality score, ties broken by ratings count then catalog order.
// An unmatched genre yields an empty list, not an error.
func (e *Engine) RecommendForGenre(ctx context.Context, genreName string, k int) (*models.GenreResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	k = e.clampK(k)

	match := e.classifier.Predicate(genreName)
	type candidate struct {
		row   int
		score float64
	}
	candidates := make([]candidate, 0)
	for row, b := range snap.books {
		if match(b) {
			candidates = append(candidates, candidate{row: row, score: snap.features.Stats.WeightedRating(b)})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ca := snap.books[a.row].RatingsCount
		cb := snap.books[b.row].RatingsCount
		if ca != cb {
			return ca > cb
		}
		return a.row < b.row
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	recs := make([]*models.GenreRecommendation, 0, len(candidates))
	for _, c := range candidates {
		b := snap.books[c.row]
		recs = append(recs, &models.GenreRecommendation{
			Title:        b.Title,
			Author:       b.PrimaryAuthor,
			Rating:       b.AverageRating,
			RatingsCount: b.RatingsCount,
			Language:     b.LanguageCode,
			QualityScore: c.score,
		})
	}

	return &models.GenreResponse{Genre: genreName, Recommendations: recs}, nil
}

// Genres lists the known genre names.
func (e *Engine) Genres() []string {
	return e.classifier.Genres()
}

// Search runs full-text search over titles and authors.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	limit = e.clampK(limit)

	hits, err := snap.keyword.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*models.SearchHit, 0, len(hits))
	for _, h := range hits {
		b := snap.books[h.Row]
		out = append(out, &models.SearchHit{
			Title:        b.Title,
			Author:       b.PrimaryAuthor,
			Rating:       b.AverageRating,
			RatingsCount: b.RatingsCount,
			Score:        h.Score,
		})
	}
	return &models.SearchResponse{Query: query, Hits: out}, nil
}

// BookVector exposes a resolved book's row, schema, and scaled feature vector.
func (e *Engine) BookVector(query string) (*models.FeatureResponse, error) {
	snap := e.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	row, err := snap.resolver.Resolve(query)
	if err != nil {
		return nil, err
	}
	return &models.FeatureResponse{
		Title:      snap.books[row].Title,
		Row:        row,
		Dimensions: snap.features.Schema,
		Vector:     snap.features.Matrix[row],
	}, nil
}

// ResolveTitle maps a query to a catalog row and its canonical title.
func (e *Engine) ResolveTitle(query string) (int, string, error) {
	snap := e.snap.Load()
	if snap == nil {
		return 0, "", ErrNotReady
	}
	row, err := snap.resolver.Resolve(query)
	if err != nil {
		return 0, "", err
	}
	return row, snap.books[row].Title, nil
}

// Close releases the active snapshot's resources and the sentiment scorer.
func (e *Engine) Close() error {
	var errs []error
	if snap := e.snap.Load(); snap != nil {
		if err := snap.keyword.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.scorer != nil {
		if err := e.scorer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
