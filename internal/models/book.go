// Package models defines core data structures for books, recommendations, and API payloads.
package models

// Book represents one cleaned catalog record. Instances are immutable after
// catalog load; a changed catalog requires a full model rebuild.
type Book struct {
	BookID          string  `json:"book_id"`
	Title           string  `json:"title"`
	Authors         string  `json:"authors"`
	PrimaryAuthor   string  `json:"primary_author"`
	AverageRating   float64 `json:"average_rating"`
	RatingsCount    int64   `json:"ratings_count"`
	LanguageCode    string  `json:"language_code"`
	NumPages        int     `json:"num_pages"`
	PublicationYear int     `json:"publication_year"`
	Description     string  `json:"description,omitempty"`
}

// Rating category bounds follow the upstream dataset conventions: each bucket
// is a half-open interval ending at the named value.
const (
	RatingVeryLow  = "very_low"
	RatingLow      = "low"
	RatingMedium   = "medium"
	RatingHigh     = "high"
	RatingVeryHigh = "very_high"
)

// RatingCategories lists all rating buckets in ascending order.
var RatingCategories = []string{RatingVeryLow, RatingLow, RatingMedium, RatingHigh, RatingVeryHigh}

// RatingCategory buckets the average rating: <=1 very_low, <=2 low, <=3 medium,
// <=4 high, else very_high.
func (b *Book) RatingCategory() string {
	switch {
	case b.AverageRating <= 1:
		return RatingVeryLow
	case b.AverageRating <= 2:
		return RatingLow
	case b.AverageRating <= 3:
		return RatingMedium
	case b.AverageRating <= 4:
		return RatingHigh
	default:
		return RatingVeryHigh
	}
}
