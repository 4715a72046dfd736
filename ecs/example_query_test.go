package ecs_test

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
)

// ExampleQuery snapshots every complete particle once. A system can walk the
// snapshot several times per frame without intersecting the pools again;
// inside a Scheduler, Execute is called before each system runs.
func ExampleQuery() {
	storage, spawner := newFluidStorage()
	spawner.SpawnBlock(2, mgl32.Vec3{0, 0, -40})
	storage.Spawn(sph.Position{}, sph.Mass(5))

	query := ecs.NewQuery[sph.Particle](storage)
	query.Execute()

	var mass float32
	for p := range query.Values() {
		mass += float32(*p.Mass)
	}

	var centroid mgl32.Vec3
	for _, p := range query.Iter() {
		centroid = centroid.Add(p.Position.Vec3.Mul(float32(*p.Mass) / mass))
	}

	fmt.Printf("%d particles, total mass %.1f\n", query.Len(), mass)
	fmt.Printf("centroid (%.2f, %.2f, %.0f)\n", centroid.X(), centroid.Y(), centroid.Z())

	// Output:
	// 8 particles, total mass 2.4
	// centroid (-0.25, -0.25, -40)
}
