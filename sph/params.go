package sph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams is returned when simulation parameters cannot drive a step.
	ErrInvalidParams = errors.New("invalid simulation parameters")
	// ErrPartialParticle is returned when an entity owns some but not all particle components.
	ErrPartialParticle = errors.New("partial particle")
)

// Params are the externally supplied, read-only solver inputs. They are
// stored as an ECS singleton so systems and tools share one copy.
type Params struct {
	SmoothingLength float32 `toml:"smoothing_length" yaml:"smoothing_length"`
	RestDensity     float32 `toml:"rest_density" yaml:"rest_density"`
	Stiffness       float32 `toml:"stiffness" yaml:"stiffness"`
	Gravity         float32 `toml:"gravity" yaml:"gravity"`
	Softening       float32 `toml:"softening" yaml:"softening"`
	CellSize        float32 `toml:"cell_size" yaml:"cell_size"`
	GridRes         int     `toml:"grid_res" yaml:"grid_res"`
	TimeStep        float32 `toml:"time_step" yaml:"time_step"`
	WorkgroupSize   int     `toml:"workgroup_size" yaml:"workgroup_size"`
	DensityFloor    float32 `toml:"density_floor" yaml:"density_floor"`
	HashSize        int     `toml:"hash_size" yaml:"hash_size"`
}

// DefaultParams returns the parameters the fluid demo ships with.
func DefaultParams() Params {
	const h = 4.0
	return Params{
		SmoothingLength: h,
		RestDensity:     0.2,
		Stiffness:       10,
		Gravity:         1,
		Softening:       0.1 * h,
		CellSize:        h,
		GridRes:         32,
		TimeStep:        0.01,
		WorkgroupSize:   64,
		DensityFloor:    1e-5,
		HashSize:        8192,
	}
}

const (
	// maxGridRes keeps GridRes³ bucket slices per chunk within reason.
	maxGridRes = 256
	// MaxSearchRing bounds SmoothingLength/CellSize. A neighbor search scans
	// (2·ring+1)³ cells per particle.
	MaxSearchRing = 4
)

// Validate reports the first parameter that cannot drive a step.
func (p Params) Validate() error {
	switch {
	case !(p.SmoothingLength > 0):
		return fmt.Errorf("smoothing length %v: %w", p.SmoothingLength, ErrInvalidParams)
	case !(p.CellSize > 0):
		return fmt.Errorf("cell size %v: %w", p.CellSize, ErrInvalidParams)
	case SearchRing(p.SmoothingLength, p.CellSize) > MaxSearchRing:
		return fmt.Errorf("smoothing length %v spans more than %d cells of size %v: %w", p.SmoothingLength, MaxSearchRing, p.CellSize, ErrInvalidParams)
	case p.GridRes <= 0 || p.GridRes > maxGridRes:
		return fmt.Errorf("grid resolution %d outside [1, %d]: %w", p.GridRes, maxGridRes, ErrInvalidParams)
	case !(p.TimeStep > 0):
		return fmt.Errorf("time step %v: %w", p.TimeStep, ErrInvalidParams)
	case p.WorkgroupSize <= 0:
		return fmt.Errorf("workgroup size %d: %w", p.WorkgroupSize, ErrInvalidParams)
	case !(p.DensityFloor > 0):
		return fmt.Errorf("density floor %v: %w", p.DensityFloor, ErrInvalidParams)
	case p.Stiffness < 0:
		return fmt.Errorf("stiffness %v: %w", p.Stiffness, ErrInvalidParams)
	case p.Softening < 0:
		return fmt.Errorf("softening %v: %w", p.Softening, ErrInvalidParams)
	case p.HashSize <= 0:
		return fmt.Errorf("hash size %d: %w", p.HashSize, ErrInvalidParams)
	}
	return nil
}

// ChunkExtent is the side length of one spatial hash chunk.
func (p Params) ChunkExtent() float32 {
	return float32(p.GridRes) * p.CellSize
}
