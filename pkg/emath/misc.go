package emath

import "math"

// Some functions that only operate on basic types, that are useful

// Clip limits f to [lo, hi]. hi may be +Inf.
func Clip(f, lo, hi float64) float64 {
	if f < lo { return lo }
	if f > hi { return hi }
	return f
}

// Linspace returns n evenly spaced values over [lo, hi], inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	ret := make([]float64, n)
	if n == 1 {
		ret[0] = lo
		return ret
	}
	step := (hi - lo) / float64(n-1)
	for i:=0; i<n; i++ {
		ret[i] = lo + float64(i)*step
	}
	ret[n-1] = hi
	return ret
}

// IsFinite is false for NaNs and infinities
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
