package models

// Recommendation is a single recommended book with its similarity to the seed.
type Recommendation struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Rating       float64 `json:"rating"`
	RatingsCount int64   `json:"ratings_count"`
	Language     string  `json:"language,omitempty"`
	Similarity   float64 `json:"similarity"`
}

// GenreRecommendation is a book recommended within a genre, ranked by quality
// score rather than vector similarity.
type GenreRecommendation struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Rating       float64 `json:"rating"`
	RatingsCount int64   `json:"ratings_count"`
	Language     string  `json:"language,omitempty"`
	QualityScore float64 `json:"quality_score"`
}

// SearchHit is a catalog search result from the keyword index.
type SearchHit struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Rating       float64 `json:"rating"`
	RatingsCount int64   `json:"ratings_count"`
	Score        float64 `json:"score"`
}

// RecommendResponse is the API response for similarity recommendations.
type RecommendResponse struct {
	Seed            string            `json:"seed"`
	Mode            string            `json:"mode"`
	Recommendations []*Recommendation `json:"recommendations"`
}

// GenreResponse is the API response for genre recommendations.
type GenreResponse struct {
	Genre           string                 `json:"genre"`
	Recommendations []*GenreRecommendation `json:"recommendations"`
}

// SearchResponse is the API response for catalog search.
type SearchResponse struct {
	Query string       `json:"query"`
	Hits  []*SearchHit `json:"hits"`
}

// PreferenceRequest expresses soft reader preferences for recommendations
// that have no seed book. Genres, when present, restrict candidates to books
// matching at least one of them.
type PreferenceRequest struct {
	HighRating        bool     `json:"high_rating,omitempty"`
	Popular           bool     `json:"popular,omitempty"`
	Language          string   `json:"language,omitempty"`
	SentimentPositive bool     `json:"sentiment_positive,omitempty"`
	Genres            []string `json:"genres,omitempty"`
}

// PreferenceResponse is the API response for preference recommendations,
// echoing the preferences that produced it.
type PreferenceResponse struct {
	Preferences     *PreferenceRequest `json:"preferences"`
	Mode            string             `json:"mode"`
	Recommendations []*Recommendation  `json:"recommendations"`
}

// PopularBook is one entry of a popular-books listing.
type PopularBook struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Rating       float64 `json:"rating"`
	RatingsCount int64   `json:"ratings_count"`
	Language     string  `json:"language"`
}

// PopularResponse is the API response for filtered popular books.
type PopularResponse struct {
	RatingCategory string         `json:"rating_category,omitempty"`
	Language       string         `json:"language,omitempty"`
	MinRatings     int64          `json:"min_ratings"`
	Books          []*PopularBook `json:"books"`
}

// FeatureResponse exposes a book's resolved row and feature vector for debugging.
type FeatureResponse struct {
	Title      string    `json:"title"`
	Row        int       `json:"row"`
	Dimensions []string  `json:"dimensions"`
	Vector     []float64 `json:"vector"`
}
