// Package sentiment provides review sentiment scoring for book features.
package sentiment

import "context"

// Neutral is the score substituted when a scorer is unavailable or errors.
const Neutral = 0.5

// Scorer produces a sentiment score in [0, 1] for review text, where 1 is
// most positive. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
	ScoreBatch(ctx context.Context, texts []string) ([]float64, error)
	Close() error
}

// NewScorer returns the best available scorer: the ONNX classifier when a
// model path is given and the runtime is available, otherwise the lexicon
// scorer.
func NewScorer(modelPath string) Scorer {
	if modelPath != "" {
		if s, err := NewONNXScorer(modelPath); err == nil {
			return s
		}
	}
	return NewLexiconScorer()
}
