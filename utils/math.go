// Package utils contains small numeric and concurrency helpers shared by the motion-control
// packages.
package utils

import (
	"math"
)

// TwoPi is one full turn in radians.
const TwoPi = 2 * math.Pi

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// ModAngDeg folds an angle in degrees into [0, 360).
func ModAngDeg(ang float64) float64 {
	return math.Mod(math.Mod(ang, 360)+360, 360)
}

// ModAngRad folds an angle in radians into [0, 2π).
func ModAngRad(ang float64) float64 {
	m := math.Mod(ang, TwoPi)
	if m < 0 {
		m += TwoPi
	}
	// A tiny negative remainder plus 2π rounds up to exactly 2π.
	if m >= TwoPi {
		m = 0
	}
	return m
}

// WrapAngleRad folds an angle in radians into (-π, π].
func WrapAngleRad(ang float64) float64 {
	m := math.Mod(ang, TwoPi)
	if m > math.Pi {
		m -= TwoPi
	} else if m <= -math.Pi {
		m += TwoPi
	}
	return m
}

// Square returns n*n.
func Square(n float64) float64 {
	return n * n
}

// Sign returns -1 for negative inputs and 1 otherwise.
func Sign(n float64) float64 {
	if n < 0 {
		return -1
	}
	return 1
}
