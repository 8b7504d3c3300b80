package feature

import (
	"sort"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

// AuthorStats aggregates a primary author's presence in the catalog.
type AuthorStats struct {
	BookCount    int
	AvgRating    float64
	TotalRatings float64
}

// Stats holds catalog-wide aggregates captured at fit time. They are a pure
// function of the catalog snapshot, so a persisted bundle can recompute them
// on load; only the scaler parameters must be persisted verbatim.
type Stats struct {
	MeanRating    float64
	VoteThreshold float64 // 90th percentile of ratings_count (m in the weighted rating)
	MinYear       int
	MaxYear       int
	TopLanguages  []string
	Authors       map[string]AuthorStats
	SortedCounts  []float64
}

// ComputeStats builds catalog aggregates. topLangs caps the number of
// language codes kept (most frequent first, ties broken by code for
// determinism).
func ComputeStats(books []*models.Book, topLangs int) *Stats {
	s := &Stats{
		Authors: make(map[string]AuthorStats),
	}
	if len(books) == 0 {
		return s
	}

	var ratings []float64
	langCounts := make(map[string]int)
	s.MinYear = books[0].PublicationYear
	s.MaxYear = books[0].PublicationYear
	s.SortedCounts = make([]float64, 0, len(books))

	for _, b := range books {
		ratings = append(ratings, b.AverageRating)
		s.SortedCounts = append(s.SortedCounts, float64(b.RatingsCount))
		langCounts[b.LanguageCode]++
		if b.PublicationYear < s.MinYear {
			s.MinYear = b.PublicationYear
		}
		if b.PublicationYear > s.MaxYear {
			s.MaxYear = b.PublicationYear
		}
		a := s.Authors[b.PrimaryAuthor]
		a.BookCount++
		a.AvgRating += b.AverageRating
		a.TotalRatings += float64(b.RatingsCount)
		s.Authors[b.PrimaryAuthor] = a
	}
	for name, a := range s.Authors {
		a.AvgRating /= float64(a.BookCount)
		s.Authors[name] = a
	}

	sort.Float64s(s.SortedCounts)
	s.MeanRating = utils.Mean(ratings)
	s.VoteThreshold = utils.Quantile(s.SortedCounts, 0.9)

	langs := make([]string, 0, len(langCounts))
	for lang := range langCounts {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if langCounts[langs[i]] != langCounts[langs[j]] {
			return langCounts[langs[i]] > langCounts[langs[j]]
		}
		return langs[i] < langs[j]
	})
	if len(langs) > topLangs {
		langs = langs[:topLangs]
	}
	s.TopLanguages = langs

	return s
}

// ComputeStatsForMode builds catalog aggregates using the language slot count
// of the given mode.
func ComputeStatsForMode(books []*models.Book, mode Mode) *Stats {
	topLangs := fallbackTopLanguages
	if mode == ModeAdvanced {
		topLangs = advancedTopLanguages
	}
	return ComputeStats(books, topLangs)
}

// AuthorOrDefault returns the fit-time stats for an author, or single-book
// stats derived from b for authors unseen at fit time.
func (s *Stats) AuthorOrDefault(b *models.Book) AuthorStats {
	if a, ok := s.Authors[b.PrimaryAuthor]; ok {
		return a
	}
	return AuthorStats{
		BookCount:    1,
		AvgRating:    b.AverageRating,
		TotalRatings: float64(b.RatingsCount),
	}
}

// RatingsPercentile returns the fraction of catalog books with a ratings
// count at or below v.
func (s *Stats) RatingsPercentile(v float64) float64 {
	return utils.RankFraction(s.SortedCounts, v)
}

// YearNorm rescales a publication year against the observed catalog range,
// clamped to [0, 1] for out-of-range query-time years. A single-year catalog
// maps every year to 0.
func (s *Stats) YearNorm(year int) float64 {
	if s.MaxYear <= s.MinYear {
		return 0
	}
	return utils.Clamp01(float64(year-s.MinYear) / float64(s.MaxYear-s.MinYear))
}

// WeightedRating is the vote-count-damped rating: books with few ratings are
// pulled toward the catalog mean.
func (s *Stats) WeightedRating(b *models.Book) float64 {
	v := float64(b.RatingsCount)
	m := s.VoteThreshold
	if v+m == 0 {
		return s.MeanRating
	}
	return v/(v+m)*b.AverageRating + m/(v+m)*s.MeanRating
}
