// Package feature turns catalog records into fixed-length scaled vectors for
// similarity search.
package feature

// Mode selects the feature set. Advanced is the full 30-dimension set;
// fallback is a reduced 8-dimension set built only from fields guaranteed
// present after catalog cleaning.
type Mode string

const (
	// ModeAdvanced is the full feature set (30 dimensions).
	ModeAdvanced Mode = "advanced"
	// ModeFallback is the reduced feature set (8 dimensions).
	ModeFallback Mode = "fallback"
)

const (
	// AdvancedDims is the vector length in advanced mode.
	AdvancedDims = 30
	// FallbackDims is the vector length in fallback mode.
	FallbackDims = 8

	advancedTopLanguages = 5
	fallbackTopLanguages = 5
)

// Dims returns the vector length for the mode, or 0 for an unknown mode.
func (m Mode) Dims() int {
	switch m {
	case ModeAdvanced:
		return AdvancedDims
	case ModeFallback:
		return FallbackDims
	default:
		return 0
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAdvanced || m == ModeFallback
}

// DimensionNames returns the ordered dimension names for the mode, fixed at
// fit time. Language slots are named after the catalog's most frequent
// language codes, so the schema is part of the fitted model.
func DimensionNames(mode Mode, stats *Stats) []string {
	langs := stats.TopLanguages
	switch mode {
	case ModeAdvanced:
		names := []string{
			"rating_norm",
			"rating_very_low", "rating_low", "rating_medium", "rating_high", "rating_very_high",
			"log_ratings_count",
			"rating_score",
			"ratings_percentile",
			"weighted_rating",
			"engagement_score",
		}
		for _, lang := range padLanguages(langs, advancedTopLanguages) {
			names = append(names, "lang_"+lang)
		}
		names = append(names,
			"lang_other",
			"year_norm",
			"log_num_pages",
			"pages_short", "pages_medium", "pages_long", "pages_very_long",
			"author_book_count",
			"author_avg_rating",
			"author_total_ratings",
			"author_popularity_score",
			"sentiment_score",
			"average_rating",
			"ratings_count",
		)
		return names
	case ModeFallback:
		names := []string{"rating_norm", "popularity"}
		for _, lang := range padLanguages(langs, fallbackTopLanguages) {
			names = append(names, "lang_"+lang)
		}
		return append(names, "author_popularity")
	default:
		return nil
	}
}

// padLanguages returns exactly n language slots. Catalogs with fewer than n
// distinct languages get placeholder slots so dimensionality stays fixed.
func padLanguages(langs []string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(langs) {
			out[i] = langs[i]
		} else {
			out[i] = "unused_" + string(rune('a'+i))
		}
	}
	return out
}
