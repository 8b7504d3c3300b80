package sentiment

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/osusume/pkg/utils"
)

// LexiconScorer is a rule-based scorer using positive/negative word sets.
// It needs no external model and never fails, which makes it the safe
// fallback when the trained classifier is unavailable.
type LexiconScorer struct {
	positive map[string]bool
	negative map[string]bool
}

// NewLexiconScorer returns a scorer with the built-in review lexicon.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{
		positive: wordSet(
			"amazing", "awesome", "brilliant", "excellent", "fantastic", "great", "incredible",
			"outstanding", "perfect", "superb", "wonderful", "best", "love", "loved", "beautiful",
			"good", "nice", "recommend", "enjoy", "enjoyed", "engaging", "captivating", "compelling",
			"masterpiece", "stunning", "remarkable", "impressive", "delightful", "charming",
		),
		negative: wordSet(
			"awful", "terrible", "horrible", "bad", "worst", "hate", "hated", "boring", "dull",
			"disappointing", "waste", "poor", "weak", "confusing", "slow", "predictable", "cliche",
			"annoying", "frustrating", "ridiculous", "stupid", "pointless", "uninteresting", "bland",
		),
	}
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Score returns a sentiment score in [0, 1]. Text with no sentiment-bearing
// words scores Neutral. The score moves away from neutral by the positive
// ratio among sentiment words, with a small boost for sentiment word density.
func (s *LexiconScorer) Score(_ context.Context, text string) (float64, error) {
	words := cleanWords(text)
	if len(words) == 0 {
		return Neutral, nil
	}

	var positive, negative int
	for _, w := range words {
		if s.positive[w] {
			positive++
		}
		if s.negative[w] {
			negative++
		}
	}
	total := positive + negative
	if total == 0 {
		return Neutral, nil
	}

	positiveRatio := float64(positive) / float64(total)
	density := float64(total) / float64(len(words))
	boost := density * 0.2
	if boost > 0.1 {
		boost = 0.1
	}

	var score float64
	if positiveRatio > 0.5 {
		score = 0.5 + (positiveRatio - 0.5) + boost
	} else {
		score = 0.5 - (0.5 - positiveRatio) - boost
	}
	return utils.Clamp01(score), nil
}

// ScoreBatch scores each text independently.
func (s *LexiconScorer) ScoreBatch(ctx context.Context, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	for i, text := range texts {
		score, err := s.Score(ctx, text)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}
	return scores, nil
}

// Close is a no-op for LexiconScorer.
func (s *LexiconScorer) Close() error {
	return nil
}

// cleanWords lowercases text, strips non-letter runes, and splits into words.
func cleanWords(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
