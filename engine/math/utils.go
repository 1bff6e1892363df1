package math

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

func DegToRad(degrees float32) float32 {
	return mgl32.DegToRad(degrees)
}

func Tan(x float32) float32 {
	return float32(stdmath.Tan(float64(x)))
}

// within reports whether |a-b| <= tolerance.
func within(a, b, tolerance float32) bool {
	return mgl32.Abs(a-b) <= tolerance
}
