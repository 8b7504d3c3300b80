package utils

import (
	"math"
	"sort"
)

// Clamp01 clamps x to the [0, 1] interval.
func Clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Median returns the median of xs, or 0 for an empty slice.
// The input is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Quantile returns the q-th quantile (0 <= q <= 1) of an already sorted slice
// using linear interpolation between adjacent values.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// RankFraction returns the fraction of values in the sorted slice that are
// less than or equal to x. Used for the ratings percentile feature.
func RankFraction(sorted []float64, x float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	n := sort.SearchFloat64s(sorted, math.Nextafter(x, math.Inf(1)))
	return float64(n) / float64(len(sorted))
}
