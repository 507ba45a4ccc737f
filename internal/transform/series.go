// Package transform provides stateless window transforms over a single
// ordered series. Series values are *float64: nil marks a value that is
// unknown or not computable, and every transform propagates nil rather
// than substituting zero.
package transform

import "math"

// flatRangeEpsilon is the activity range below which a windowed trend is
// considered flat and therefore undefined.
const flatRangeEpsilon = 1e-6

// PercentChange returns, for each index i, the percent change of series[i]
// against series[i-periods]: (v[i] - v[i-p]) / v[i-p] * 100.
// The first periods entries are nil. An entry is nil when either endpoint is
// nil or the lookback value is zero. A series of length < periods+1 yields an
// all-nil result rather than a partially computed one: a window the series
// cannot fill once would report single noisy deltas.
func PercentChange(series []*float64, periods int) []*float64 {
	out := make([]*float64, len(series))
	if periods <= 0 || len(series) < periods+1 {
		return out
	}
	for i := periods; i < len(series); i++ {
		cur, prev := series[i], series[i-periods]
		if cur == nil || prev == nil || *prev == 0 {
			continue
		}
		v := (*cur - *prev) / *prev * 100
		out[i] = &v
	}
	return out
}

// RollingZScore standardizes each value against the mean and sample standard
// deviation of the trailing window ending at it. The first window-1 indexes
// use an expanding window instead of being refused. An index is nil when the
// value itself is nil, when the window holds fewer than 2 non-nil values, or
// when the window's standard deviation is zero. A series shorter than window
// yields an all-nil result.
func RollingZScore(series []*float64, window int) []*float64 {
	out := make([]*float64, len(series))
	if window <= 0 || len(series) < window {
		return out
	}
	for i := range series {
		if series[i] == nil {
			continue
		}
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		mean, stddev, n := windowStats(series[start : i+1])
		if n < 2 || stddev == 0 {
			continue
		}
		v := (*series[i] - mean) / stddev
		out[i] = &v
	}
	return out
}

// RangeMomentum returns a min-max normalized trend per index: over the
// trailing window ending at i, (last non-nil - first non-nil) / (max - min),
// intrinsically in [-1, 1]. Indexes before window-1 are nil. An index is nil
// when the window holds fewer than 2 non-nil values or its range is flat
// (<= 1e-6). Used for small-integer activity counts where percent change is
// numerically unstable.
func RangeMomentum(series []*float64, window int) []*float64 {
	out := make([]*float64, len(series))
	if window <= 0 || len(series) < window {
		return out
	}
	for i := window - 1; i < len(series); i++ {
		var first, last *float64
		lo, hi := math.Inf(1), math.Inf(-1)
		n := 0
		for _, v := range series[i-window+1 : i+1] {
			if v == nil {
				continue
			}
			if first == nil {
				first = v
			}
			last = v
			if *v < lo {
				lo = *v
			}
			if *v > hi {
				hi = *v
			}
			n++
		}
		if n < 2 {
			continue
		}
		rng := hi - lo
		if rng <= flatRangeEpsilon {
			continue
		}
		v := (*last - *first) / rng
		out[i] = &v
	}
	return out
}

// Negate flips the sign of every present value. Supply and days-on-market
// deltas invert this way because shrinkage is the positive momentum signal.
func Negate(series []*float64) []*float64 {
	out := make([]*float64, len(series))
	for i, v := range series {
		if v == nil {
			continue
		}
		n := -*v
		out[i] = &n
	}
	return out
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// windowStats computes mean and sample standard deviation (n-1 denominator)
// over the non-nil values of the window, returning their count.
func windowStats(window []*float64) (mean, stddev float64, n int) {
	sum := 0.0
	for _, v := range window {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0, n
	}
	sumSq := 0.0
	for _, v := range window {
		if v == nil {
			continue
		}
		diff := *v - mean
		sumSq += diff * diff
	}
	return mean, math.Sqrt(sumSq / float64(n-1)), n
}
