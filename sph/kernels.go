package sph

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Cubic spline smoothing kernel with support radius 2h.

func cubicNorm(h float32) float32 {
	return 1 / (math.Pi * h * h * h)
}

// CubicSpline evaluates W(r, h). It is zero for r ≥ 2h.
func CubicSpline(r, h float32) float32 {
	q := r / h
	switch {
	case q < 0:
		return 0
	case q <= 1:
		return cubicNorm(h) * (1 - 1.5*q*q + 0.75*q*q*q)
	case q < 2:
		t := 2 - q
		return cubicNorm(h) * 0.25 * t * t * t
	}
	return 0
}

// CubicSplineDerivative evaluates dW/dr.
func CubicSplineDerivative(r, h float32) float32 {
	q := r / h
	norm := cubicNorm(h) / h
	switch {
	case q < 0:
		return 0
	case q <= 1:
		return norm * (-3*q + 2.25*q*q)
	case q < 2:
		t := 2 - q
		return norm * -0.75 * t * t
	}
	return 0
}

// CubicSplineGradient evaluates ∇W at offset delta. It is the zero vector
// when delta has zero length.
func CubicSplineGradient(delta mgl32.Vec3, h float32) mgl32.Vec3 {
	r := delta.Len()
	if r == 0 {
		return mgl32.Vec3{}
	}
	return delta.Mul(CubicSplineDerivative(r, h) / r)
}

// CubicSplineLaplacian evaluates ∇²W(r, h). It is zero at r = 0.
func CubicSplineLaplacian(r, h float32) float32 {
	q := r / h
	norm := 45 / (math.Pi * h * h * h * h * h)
	switch {
	case q <= 0:
		return 0
	case q <= 1:
		return norm * (1 - q)
	case q < 2:
		t := 2 - q
		return norm * t * t * t
	}
	return 0
}
