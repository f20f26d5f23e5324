// Package utils contains small numeric helpers shared across the placement core.
package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// IsFinite returns false for NaN and +-Inf.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
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

// ModAngRad wraps an angle in radians into [0, 2pi).
func ModAngRad(ang float64) float64 {
	return math.Mod(math.Mod(ang, 2*math.Pi)+2*math.Pi, 2*math.Pi)
}

// Square is faster than math.Pow(n, 2).
func Square(n float64) float64 {
	return n * n
}
