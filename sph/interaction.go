package sph

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sample is the state of one particle as read by a force evaluation.
type Sample struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
	Mass     float32
	Density  float32
	Pressure float32
}

// EquationOfState floors a summed density and derives its pressure.
func (p Params) EquationOfState(rho float32) (Density, Pressure) {
	rho = max(rho, p.DensityFloor)
	return Density(rho), Pressure(p.Stiffness * (rho - p.RestDensity))
}

// PairForce returns the force neighbor j exerts on particle i: the symmetric
// pressure term, viscosity and softened gravitational attraction.
func (p Params) PairForce(i, j Sample) mgl32.Vec3 {
	h := p.SmoothingLength
	delta := i.Position.Sub(j.Position)
	r := delta.Len()

	term := i.Pressure/(i.Density*i.Density) + j.Pressure/(j.Density*j.Density)
	force := CubicSplineGradient(delta, h).Mul(-term)

	force = force.Add(j.Velocity.Sub(i.Velocity).Mul(j.Density * CubicSplineLaplacian(r, h)))

	denom := float32(math.Pow(float64(r*r+p.Softening*p.Softening), 1.5))
	if denom > 0 {
		force = force.Add(delta.Mul(-p.Gravity * j.Mass / denom))
	}
	return force
}

// CellOf returns the index of the cell containing pos on an unbounded grid
// of cubic cells.
func CellOf(pos mgl32.Vec3, cellSize float32) [3]int32 {
	return [3]int32{
		int32(math.Floor(float64(pos[0] / cellSize))),
		int32(math.Floor(float64(pos[1] / cellSize))),
		int32(math.Floor(float64(pos[2] / cellSize))),
	}
}

// SearchRing is how many cells a neighbor search must scan on each side of
// the center cell to cover radius. It is never less than one.
func SearchRing(radius, cellSize float32) int32 {
	if radius > cellSize {
		return int32(math.Ceil(float64(radius / cellSize)))
	}
	return 1
}
