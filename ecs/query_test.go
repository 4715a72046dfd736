package ecs_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery(t *testing.T) {
	storage, spawner := newFluidStorage()
	block, err := spawner.SpawnBlock(2, mgl32.Vec3{0, 0, -40})
	require.NoError(t, err)
	marker, err := storage.Spawn(sph.Position{}, sph.Mass(1))
	require.NoError(t, err)

	query := ecs.NewQuery[sph.Particle](storage)

	t.Run("execute snapshots complete particles", func(t *testing.T) {
		query.Execute()
		assert.Equal(t, len(block), query.Len())

		var ids []ecs.EntityId
		for id, p := range query.Iter() {
			assert.Equal(t, id, p.Id)
			ids = append(ids, id)
		}
		assert.ElementsMatch(t, block, ids)
		assert.NotContains(t, ids, marker)
	})

	t.Run("panics without execute", func(t *testing.T) {
		fresh := ecs.NewQuery[sph.Particle](storage)
		assert.Panics(t, func() {
			for range fresh.Iter() {
			}
		})
		assert.Panics(t, func() {
			for range fresh.Values() {
			}
		})
	})

	t.Run("snapshot is stable until the next execute", func(t *testing.T) {
		query.Execute()
		_, err := spawner.CreateParticle(mgl32.Vec3{5, 5, -40}, mgl32.Vec3{}, 1)
		require.NoError(t, err)

		first := 0
		for range query.Iter() {
			first++
		}
		second := 0
		for range query.Values() {
			second++
		}
		assert.Equal(t, len(block), first)
		assert.Equal(t, first, second)

		query.Execute()
		assert.Equal(t, len(block)+1, query.Len())
	})

	t.Run("removals drop out after execute", func(t *testing.T) {
		storage.RemoveEntity(block[0])
		ecs.Remove[sph.Pressure](storage, block[1])
		query.Execute()

		assert.Equal(t, len(block)-1, query.Len())
		for p := range query.Values() {
			require.NotNil(t, p.Pressure)
			assert.NotEqual(t, block[0], p.Id)
			assert.NotEqual(t, block[1], p.Id)
		}
	})

	t.Run("components are writable through the snapshot", func(t *testing.T) {
		query.Execute()
		for p := range query.Values() {
			*p.Density = 2
		}

		for p := range query.Values() {
			rho, err := ecs.Get[sph.Density](storage, p.Id)
			require.NoError(t, err)
			assert.Equal(t, sph.Density(2), *rho)
		}
	})
}
