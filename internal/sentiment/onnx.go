//go:build cgo
// +build cgo

// ONNX-based sentiment classifier (requires CGO and the onnxruntime library).

package sentiment

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const vocabBuckets = 4096

// ONNXScorer runs a trained sentiment classifier exported to ONNX. The model
// takes a hashed bag-of-words vector of size vocabBuckets and emits a single
// logit; the score is its sigmoid.
type ONNXScorer struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXScorer creates an ONNX sentiment scorer. InitializeEnvironment is
// called if not already done.
func NewONNXScorer(modelPath string) (*ONNXScorer, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, vocabBuckets), make([]float32, vocabBuckets))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"logit"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXScorer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Score runs the classifier on text and returns a score in [0, 1].
func (s *ONNXScorer) Score(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return Neutral, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	input := s.inputTensor.GetData()
	for i := range input {
		input[i] = 0
	}
	for _, w := range cleanWords(text) {
		input[hashString(w)%vocabBuckets]++
	}

	if err := s.session.Run(); err != nil {
		return Neutral, fmt.Errorf("sentiment inference failed: %w", err)
	}
	logit := float64(s.outputTensor.GetData()[0])
	return 1 / (1 + math.Exp(-logit)), nil
}

// ScoreBatch scores each text sequentially (the session holds fixed-shape tensors).
func (s *ONNXScorer) ScoreBatch(ctx context.Context, texts []string) ([]float64, error) {
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

// Close releases the ONNX session and tensors.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	return nil
}
