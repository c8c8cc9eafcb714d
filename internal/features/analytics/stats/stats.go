// Package stats provides the numeric primitives shared by every analytics
// component. All functions are pure: they filter out non-finite inputs,
// never mutate their arguments and return 0 for empty input.
package stats

import (
	"math"
	"sort"
)

// sanitize returns a sorted copy of values with NaN and infinities removed.
func sanitize(values []float64) []float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		clean = append(clean, v)
	}
	sort.Float64s(clean)
	return clean
}

// Round2 rounds to two decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Average returns the mean of the finite values, rounded to two decimals.
// Empty or all-invalid input yields 0.
func Average(values []float64) float64 {
	clean := sanitize(values)
	if len(clean) == 0 {
		return 0
	}
	var sum float64
	for _, v := range clean {
		sum += v
	}
	return Round2(sum / float64(len(clean)))
}

// Median returns the middle value, or the mean of the two middle values for
// even-length input. Empty input yields 0.
func Median(values []float64) float64 {
	clean := sanitize(values)
	n := len(clean)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return clean[n/2]
	}
	return (clean[n/2-1] + clean[n/2]) / 2
}

// Percentile returns the nearest-rank percentile: index = ceil(p/100*n)-1,
// clamped to [0, n-1]. This is deliberately not the interpolating variant;
// bottleneck thresholds and driver benchmarks are calibrated against
// nearest-rank values.
func Percentile(values []float64, p float64) float64 {
	clean := sanitize(values)
	n := len(clean)
	if n == 0 {
		return 0
	}

	index := int(math.Ceil(p/100*float64(n))) - 1
	if index < 0 {
		index = 0
	}
	if index > n-1 {
		index = n - 1
	}
	return clean[index]
}

// Variance returns the sample variance (n-1 denominator) of the finite
// values, or 0 when fewer than two remain.
func Variance(values []float64) float64 {
	clean := sanitize(values)
	n := len(clean)
	if n < 2 {
		return 0
	}

	var sum float64
	for _, v := range clean {
		sum += v
	}
	mean := sum / float64(n)

	var squared float64
	for _, v := range clean {
		squared += (v - mean) * (v - mean)
	}
	return squared / float64(n-1)
}

// Min returns the smallest finite value, or 0 for empty input.
func Min(values []float64) float64 {
	clean := sanitize(values)
	if len(clean) == 0 {
		return 0
	}
	return clean[0]
}

// Max returns the largest finite value, or 0 for empty input.
func Max(values []float64) float64 {
	clean := sanitize(values)
	if len(clean) == 0 {
		return 0
	}
	return clean[len(clean)-1]
}

// Sum returns the total of the finite values.
func Sum(values []float64) float64 {
	clean := sanitize(values)
	var sum float64
	for _, v := range clean {
		sum += v
	}
	return sum
}
