package math

import "golang.org/x/exp/constraints"

// Scalar is the set of component types a vertex position can be encoded with.
type Scalar interface {
	constraints.Float | constraints.Signed
}

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

// DivCeil divides n by d rounding up. d must not be zero.
func DivCeil[T constraints.Unsigned](n, d T) T {
	return (n + d - 1) / d
}

// Min3 returns the smallest of three values.
func Min3[T constraints.Ordered](a, b, c T) T {
	return min(a, b, c)
}

// Max3 returns the largest of three values.
func Max3[T constraints.Ordered](a, b, c T) T {
	return max(a, b, c)
}
