package feature

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/sentiment"
)

// Result is a fitted feature pipeline: the scaled matrix (row-aligned 1:1
// with the catalog), the scaler parameters, the ordered dimension schema, and
// the catalog aggregates needed to transform unseen records.
type Result struct {
	Mode   Mode
	Matrix [][]float64
	Scaler *MinMaxScaler
	Schema []string
	Stats  *Stats
}

// FitTransform builds the scaled feature matrix for the catalog in the given
// mode. In advanced mode the sentiment scorer supplies one dimension; scorer
// errors are recovered by substituting the neutral score so that
// dimensionality never changes. Fallback mode uses only fields guaranteed
// present after catalog cleaning and takes no optional collaborators.
func FitTransform(ctx context.Context, books []*models.Book, scorer sentiment.Scorer, mode Mode) (*Result, error) {
	if len(books) == 0 {
		return nil, fmt.Errorf("cannot fit feature pipeline on empty catalog")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown feature mode: %q", mode)
	}

	stats := ComputeStatsForMode(books, mode)
	schema := DimensionNames(mode, stats)

	var sentiments []float64
	if mode == ModeAdvanced {
		sentiments = scoreCatalog(ctx, books, scorer)
	}

	raw := make([][]float64, len(books))
	for i, b := range books {
		if mode == ModeAdvanced {
			raw[i] = advancedRaw(b, stats, sentiments[i])
		} else {
			raw[i] = fallbackRaw(b, stats)
		}
		if len(raw[i]) != mode.Dims() {
			return nil, fmt.Errorf("row %d has %d dims, expected %d", i, len(raw[i]), mode.Dims())
		}
	}

	scaler, err := FitScaler(raw)
	if err != nil {
		return nil, err
	}
	matrix, err := scaler.TransformMatrix(raw)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:   mode,
		Matrix: matrix,
		Scaler: scaler,
		Schema: schema,
		Stats:  stats,
	}, nil
}

// TransformOne maps a single record through the fitted pipeline, reusing the
// stored scaler parameters and fit-time aggregates. The pipeline is never
// refit per query.
func (r *Result) TransformOne(ctx context.Context, b *models.Book, scorer sentiment.Scorer) ([]float64, error) {
	var raw []float64
	switch r.Mode {
	case ModeAdvanced:
		score := sentiment.Neutral
		if scorer != nil {
			if v, err := scorer.Score(ctx, sentiment.SampleReview(b)); err == nil {
				score = v
			}
		}
		raw = advancedRaw(b, r.Stats, score)
	case ModeFallback:
		raw = fallbackRaw(b, r.Stats)
	default:
		return nil, fmt.Errorf("unknown feature mode: %q", r.Mode)
	}
	return r.Scaler.Transform(raw)
}

// TransformTarget builds a scaled query vector from named-dimension raw
// values, leaving every unnamed dimension at zero so it contributes nothing
// under cosine distance. Names outside the fitted schema are ignored.
func (r *Result) TransformTarget(values map[string]float64) ([]float64, error) {
	raw := make([]float64, len(r.Schema))
	for i, name := range r.Schema {
		if v, ok := values[name]; ok {
			raw[i] = v
		}
	}
	return r.Scaler.Transform(raw)
}

// scoreCatalog computes one sentiment score per book. A nil or failing scorer
// yields neutral scores for every book rather than dropping the dimension.
func scoreCatalog(ctx context.Context, books []*models.Book, scorer sentiment.Scorer) []float64 {
	scores := make([]float64, len(books))
	for i := range scores {
		scores[i] = sentiment.Neutral
	}
	if scorer == nil {
		return scores
	}
	reviews := make([]string, len(books))
	for i, b := range books {
		reviews[i] = sentiment.SampleReview(b)
	}
	batch, err := scorer.ScoreBatch(ctx, reviews)
	if err != nil || len(batch) != len(books) {
		return scores
	}
	return batch
}

// advancedRaw builds the unscaled 30-dimension vector. Order must match
// DimensionNames(ModeAdvanced, ...).
func advancedRaw(b *models.Book, stats *Stats, sentimentScore float64) []float64 {
	category := b.RatingCategory()
	author := stats.AuthorOrDefault(b)
	count := float64(b.RatingsCount)
	pages := float64(b.NumPages)

	vec := make([]float64, 0, AdvancedDims)
	vec = append(vec, b.AverageRating/5.0)
	for _, c := range models.RatingCategories {
		vec = append(vec, oneHot(category == c))
	}
	vec = append(vec,
		math.Log1p(count),
		b.AverageRating*math.Log1p(count),
		stats.RatingsPercentile(count),
		stats.WeightedRating(b),
		count/(pages+1),
	)
	vec = appendLanguageFlags(vec, b.LanguageCode, stats.TopLanguages, advancedTopLanguages, true)
	vec = append(vec,
		stats.YearNorm(b.PublicationYear),
		math.Log1p(pages),
	)
	vec = append(vec, pageCategoryFlags(b.NumPages)...)
	vec = append(vec,
		math.Log1p(float64(author.BookCount)),
		author.AvgRating,
		math.Log1p(author.TotalRatings),
		math.Log1p(author.TotalRatings)*author.AvgRating,
		sentimentScore,
		b.AverageRating,
		count,
	)
	return vec
}

// fallbackRaw builds the unscaled 8-dimension vector. Order must match
// DimensionNames(ModeFallback, ...).
func fallbackRaw(b *models.Book, stats *Stats) []float64 {
	author := stats.AuthorOrDefault(b)

	vec := make([]float64, 0, FallbackDims)
	vec = append(vec,
		b.AverageRating/5.0,
		math.Log1p(float64(b.RatingsCount)),
	)
	vec = appendLanguageFlags(vec, b.LanguageCode, stats.TopLanguages, fallbackTopLanguages, false)
	return append(vec, math.Log1p(float64(author.BookCount)))
}

// appendLanguageFlags appends one-hot flags for the top language slots and,
// when withOther is set, a trailing bit for everything else.
func appendLanguageFlags(vec []float64, lang string, top []string, slots int, withOther bool) []float64 {
	matched := false
	for i := 0; i < slots; i++ {
		hit := i < len(top) && top[i] == lang
		if hit {
			matched = true
		}
		vec = append(vec, oneHot(hit))
	}
	if withOther {
		vec = append(vec, oneHot(!matched))
	}
	return vec
}

// pageCategoryFlags buckets page counts: short <=200, medium <=400,
// long <=600, very_long above.
func pageCategoryFlags(pages int) []float64 {
	flags := make([]float64, 4)
	switch {
	case pages <= 200:
		flags[0] = 1
	case pages <= 400:
		flags[1] = 1
	case pages <= 600:
		flags[2] = 1
	default:
		flags[3] = 1
	}
	return flags
}

func oneHot(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
