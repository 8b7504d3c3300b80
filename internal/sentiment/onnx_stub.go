//go:build !cgo
// +build !cgo

package sentiment

import (
	"context"
	"errors"
)

var errNoONNX = errors.New("ONNX sentiment scorer requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXScorer stub type when built without CGO (see onnx.go for the real implementation).
type ONNXScorer struct{}

// NewONNXScorer returns an error when built without CGO (ONNX not available).
func NewONNXScorer(_ string) (*ONNXScorer, error) {
	return nil, errNoONNX
}

// Score is not available without CGO.
func (s *ONNXScorer) Score(_ context.Context, _ string) (float64, error) {
	return Neutral, errNoONNX
}

// ScoreBatch is not available without CGO.
func (s *ONNXScorer) ScoreBatch(_ context.Context, _ []string) ([]float64, error) {
	return nil, errNoONNX
}

// Close is a no-op for the stub.
func (s *ONNXScorer) Close() error {
	return nil
}
