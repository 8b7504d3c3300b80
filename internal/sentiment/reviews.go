package sentiment

import (
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/pkg/utils"
)

// maxReviewLen caps description text fed to the scorer.
const maxReviewLen = 2000

// Sample review pools by rating band. The catalog carries no review text, so
// a representative review is synthesized per book; picking by title hash
// keeps the feature pipeline deterministic for a fixed catalog.
var (
	positiveReviews = []string{
		"Amazing book with great characters and plot!",
		"Couldn't put it down, highly recommend!",
		"Beautiful writing and engaging story.",
		"One of the best books I've ever read.",
		"Fantastic storytelling and character development.",
		"A masterpiece that everyone should read.",
		"Brilliant and thought-provoking narrative.",
		"Exceptional book with perfect pacing.",
	}
	negativeReviews = []string{
		"Disappointing story with weak characters.",
		"Too slow and boring, couldn't finish it.",
		"Poor writing and unengaging plot.",
		"Not worth the time or money.",
		"Confusing storyline and flat characters.",
		"Expected much more from this book.",
		"Poorly executed with many plot holes.",
		"Waste of time, very disappointing.",
	}
	neutralReviews = []string{
		"Decent book, nothing special but okay.",
		"Average story with some good moments.",
		"It was fine, had its ups and downs.",
		"Not bad but not great either.",
		"Readable but forgettable.",
		"Good enough for a casual read.",
	}
)

// SampleReview returns a synthesized review for the book. Books rated >= 4.0
// draw from the positive pool, <= 2.5 from the negative pool, otherwise from
// the neutral pool. If the book has a description, that is used instead.
func SampleReview(b *models.Book) string {
	if b.Description != "" {
		return utils.Truncate(b.Description, maxReviewLen)
	}
	var pool []string
	switch {
	case b.AverageRating >= 4.0:
		pool = positiveReviews
	case b.AverageRating <= 2.5:
		pool = negativeReviews
	default:
		pool = neutralReviews
	}
	return pool[hashString(b.Title)%len(pool)]
}

// hashString returns a deterministic non-negative hash.
func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
