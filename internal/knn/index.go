// Package knn provides exact nearest-neighbor search under cosine distance.
package knn

import (
	"fmt"
	"math"
	"sort"
)

// Neighbor is a single search hit: a catalog row index and its cosine
// distance from the query vector.
type Neighbor struct {
	Row      int
	Distance float64
}

// Index is a brute-force exact k-NN index over the fitted feature matrix.
// Exact search is a deliberate choice at catalog scale: O(N*D) per query is
// cheap for in-memory catalogs, and results are fully explainable. An
// approximate structure would only pay off past ~10^5-10^6 rows.
//
// The index holds a reference to the matrix and performs no writes; it is
// safe for concurrent queries.
type Index struct {
	dims   int
	matrix [][]float64
	norms  []float64
}

// NoExclude disables self-exclusion in Query.
const NoExclude = -1

// Fit builds an index over the matrix. The matrix must be rectangular and
// non-empty; rows are assumed to be index-aligned with the catalog.
func Fit(matrix [][]float64) (*Index, error) {
	if len(matrix) == 0 {
		return nil, fmt.Errorf("cannot fit index on empty matrix")
	}
	dims := len(matrix[0])
	if dims == 0 {
		return nil, fmt.Errorf("cannot fit index on zero-dimension vectors")
	}
	norms := make([]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != dims {
			return nil, fmt.Errorf("row %d has %d dims, expected %d", i, len(row), dims)
		}
		norms[i] = l2norm(row)
	}
	return &Index{dims: dims, matrix: matrix, norms: norms}, nil
}

// Dims returns the vector dimensionality of the index.
func (idx *Index) Dims() int {
	return idx.dims
}

// Size returns the number of indexed rows.
func (idx *Index) Size() int {
	return len(idx.matrix)
}

// Query returns the k nearest rows to vec by cosine distance, ascending, with
// ties broken by row index. excludeRow removes that row from candidates
// before truncation (pass NoExclude to keep all rows); self-distance is
// always 0, so callers looking up a catalog member exclude it by default.
func (idx *Index) Query(vec []float64, k int, excludeRow int) ([]Neighbor, error) {
	if len(vec) != idx.dims {
		return nil, fmt.Errorf("query vector has %d dims, index expects %d", len(vec), idx.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	qnorm := l2norm(vec)

	neighbors := make([]Neighbor, 0, len(idx.matrix))
	for i, row := range idx.matrix {
		if i == excludeRow {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Row:      i,
			Distance: cosineDistance(vec, qnorm, row, idx.norms[i]),
		})
	}
	return top(neighbors, k), nil
}

// QuerySubset is Query restricted to the given candidate rows (e.g. a genre
// filter). Row indices refer to the original matrix, preserving catalog
// alignment. Out-of-range candidates are an error; duplicates are deduped.
func (idx *Index) QuerySubset(vec []float64, k int, rows []int, excludeRow int) ([]Neighbor, error) {
	if len(vec) != idx.dims {
		return nil, fmt.Errorf("query vector has %d dims, index expects %d", len(vec), idx.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	qnorm := l2norm(vec)

	seen := make(map[int]bool, len(rows))
	neighbors := make([]Neighbor, 0, len(rows))
	for _, i := range rows {
		if i < 0 || i >= len(idx.matrix) {
			return nil, fmt.Errorf("candidate row %d out of range [0, %d)", i, len(idx.matrix))
		}
		if i == excludeRow || seen[i] {
			continue
		}
		seen[i] = true
		neighbors = append(neighbors, Neighbor{
			Row:      i,
			Distance: cosineDistance(vec, qnorm, idx.matrix[i], idx.norms[i]),
		})
	}
	return top(neighbors, k), nil
}

// top sorts neighbors ascending by distance (ties by row) and truncates to k.
func top(neighbors []Neighbor, k int) []Neighbor {
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Row < neighbors[j].Row
	})
	if k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// SimilarityFromDistance converts cosine distance in [0, 2] to similarity in
// [0, 1]: 1 for identical direction, 0 for opposite.
func SimilarityFromDistance(d float64) float64 {
	return math.Max(0, math.Min(1, (2-d)/2))
}

// DistanceFromSimilarity is the inverse conversion: d = 2 * (1 - s).
func DistanceFromSimilarity(s float64) float64 {
	return 2 * (1 - s)
}

// cosineDistance returns 1 - cos(a, b) given precomputed norms. A zero-norm
// vector is treated as orthogonal to everything (distance 1).
func cosineDistance(a []float64, normA float64, b []float64, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot/(normA*normB)
}

func l2norm(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum)
}
