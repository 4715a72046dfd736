package sph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
)

// Position is a particle center and its render radius, laid out as one vec4.
type Position struct {
	mgl32.Vec3
	Radius float32
}

// Velocity is padded to a vec4 so its pool can be uploaded verbatim.
type Velocity struct {
	mgl32.Vec3
	_ float32
}

// Force is the net force accumulated during the force pass, padded to a vec4.
type Force struct {
	mgl32.Vec3
	_ float32
}

// Mass of a particle. Particles with a non-positive mass never move.
type Mass float32

// Density computed in the density pass, never below Params.DensityFloor.
type Density float32

// Pressure from the linear equation of state. Negative values are valid.
type Pressure float32

// ChunkCoord is the integer coordinate of a spatial hash chunk.
type ChunkCoord [3]int32

// Chunk is the spatial hash record attached to a chunk entity. Buckets holds
// GridRes³ cells in x-major order, each a list of particle ids.
type Chunk struct {
	Coord   ChunkCoord
	Buckets [][]ecs.EntityId
}

// Empty reports whether no bucket holds a particle.
func (c *Chunk) Empty() bool {
	for _, bucket := range c.Buckets {
		if len(bucket) > 0 {
			return false
		}
	}
	return true
}

func (c *Chunk) reset() {
	for i := range c.Buckets {
		c.Buckets[i] = c.Buckets[i][:0]
	}
}

// Particle is the view every solver pass iterates.
type Particle struct {
	Id ecs.EntityId
	*Position
	*Velocity
	*Force
	*Mass
	*Density
	*Pressure
}

// Register adds every particle and chunk component to registry so the
// reflection based storage API can address them.
func Register(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)
	ecs.RegisterComponent[Force](registry)
	ecs.RegisterComponent[Mass](registry)
	ecs.RegisterComponent[Density](registry)
	ecs.RegisterComponent[Pressure](registry)
	ecs.RegisterComponent[Chunk](registry)
}
