package feature

import "fmt"

// MinMaxScaler rescales each dimension to [0, 1] using min/max observed at
// fit time. The parameters are part of the fitted model and must be reapplied
// verbatim to any later transform so distances stay comparable.
type MinMaxScaler struct {
	Mins []float64
	Maxs []float64
}

// FitScaler captures per-dimension min/max over a rectangular matrix.
func FitScaler(matrix [][]float64) (*MinMaxScaler, error) {
	if len(matrix) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty matrix")
	}
	dims := len(matrix[0])
	s := &MinMaxScaler{
		Mins: make([]float64, dims),
		Maxs: make([]float64, dims),
	}
	copy(s.Mins, matrix[0])
	copy(s.Maxs, matrix[0])
	for _, row := range matrix[1:] {
		if len(row) != dims {
			return nil, fmt.Errorf("ragged matrix: row has %d dims, expected %d", len(row), dims)
		}
		for j, v := range row {
			if v < s.Mins[j] {
				s.Mins[j] = v
			}
			if v > s.Maxs[j] {
				s.Maxs[j] = v
			}
		}
	}
	return s, nil
}

// Dims returns the number of dimensions the scaler was fit on.
func (s *MinMaxScaler) Dims() int {
	return len(s.Mins)
}

// Transform returns a new scaled vector. A zero-variance dimension (min==max)
// scales to 0 rather than dividing by zero. Values outside the fit-time range
// clamp to [0, 1], keeping query-time transforms in the same domain.
func (s *MinMaxScaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mins) {
		return nil, fmt.Errorf("vector has %d dims, scaler expects %d", len(vec), len(s.Mins))
	}
	out := make([]float64, len(vec))
	for j, v := range vec {
		span := s.Maxs[j] - s.Mins[j]
		if span == 0 {
			out[j] = 0
			continue
		}
		scaled := (v - s.Mins[j]) / span
		if scaled < 0 {
			scaled = 0
		} else if scaled > 1 {
			scaled = 1
		}
		out[j] = scaled
	}
	return out, nil
}

// TransformMatrix scales every row of the matrix.
func (s *MinMaxScaler) TransformMatrix(matrix [][]float64) ([][]float64, error) {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}
