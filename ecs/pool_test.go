package ecs_test

import (
	"math/rand/v2"
	"testing"

	"github.com/plus3/sapphire/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkPoolInvariant[T any](t *testing.T, pool *ecs.Pool[T]) {
	t.Helper()

	dense := pool.Dense()
	entities := pool.DenseEntities()
	sparse := pool.Locations()
	require.Equal(t, len(dense), len(entities))

	for i, e := range entities {
		require.Less(t, int(e), len(sparse))
		require.Equal(t, uint32(i), sparse[e], "sparse[%d] should point at dense slot %d", e, i)
	}

	owned := 0
	for e, idx := range sparse {
		if idx == ecs.InvalidIndex {
			continue
		}
		owned++
		require.Less(t, int(idx), len(entities))
		require.Equal(t, ecs.EntityId(e), entities[idx])
	}
	require.Equal(t, len(entities), owned)
}

func TestPoolAddGet(t *testing.T) {
	pool := ecs.NewPool[Position]()

	p := pool.Add(3, Position{X: 1, Y: 2})
	require.NotNil(t, p)
	assert.Equal(t, Position{X: 1, Y: 2}, *p)

	assert.True(t, pool.Has(3))
	assert.False(t, pool.Has(0))
	assert.False(t, pool.Has(1000))
	assert.Nil(t, pool.Get(2))
	assert.Nil(t, pool.Get(1000))

	assert.Equal(t, 1, pool.Len())
	checkPoolInvariant(t, pool)
}

func TestPoolAddOverwritesInPlace(t *testing.T) {
	pool := ecs.NewPool[Position]()
	pool.Add(1, Position{X: 1})
	pool.Add(2, Position{X: 2})

	before, ok := pool.Index(1)
	require.True(t, ok)

	pool.Add(1, Position{X: 10})

	after, ok := pool.Index(1)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, float32(10), pool.Get(1).X)
	checkPoolInvariant(t, pool)
}

func TestPoolRemoveSwapsLast(t *testing.T) {
	pool := ecs.NewPool[Position]()
	for e := range ecs.EntityId(5) {
		pool.Add(e, Position{X: float32(e)})
	}

	pool.Remove(1)

	assert.False(t, pool.Has(1))
	assert.Equal(t, 4, pool.Len())
	assert.Equal(t, []ecs.EntityId{0, 4, 2, 3}, pool.DenseEntities())
	for _, e := range []ecs.EntityId{0, 2, 3, 4} {
		assert.Equal(t, float32(e), pool.Get(e).X, "entity %d", e)
	}
	checkPoolInvariant(t, pool)
}

func TestPoolRemoveAbsentIsNoop(t *testing.T) {
	pool := ecs.NewPool[Position]()
	pool.Add(0, Position{X: 1})

	pool.Remove(7)
	pool.Remove(100000)

	assert.Equal(t, 1, pool.Len())
	checkPoolInvariant(t, pool)
}

func TestPoolRemoveLastElement(t *testing.T) {
	pool := ecs.NewPool[Position]()
	pool.Add(0, Position{X: 1})
	pool.Add(1, Position{X: 2})

	pool.Remove(1)

	assert.Equal(t, []ecs.EntityId{0}, pool.DenseEntities())
	assert.Equal(t, float32(1), pool.Get(0).X)
	checkPoolInvariant(t, pool)
}

func TestPoolRemoveThenReadd(t *testing.T) {
	pool := ecs.NewPool[Health]()
	pool.Add(4, Health{Current: 10})
	pool.Remove(4)
	require.False(t, pool.Has(4))

	pool.Add(4, Health{Current: 20})

	require.True(t, pool.Has(4))
	assert.Equal(t, 20, pool.Get(4).Current)
	assert.Equal(t, 1, pool.Len())
	checkPoolInvariant(t, pool)
}

func TestPoolRandomOperationsKeepInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	pool := ecs.NewPool[int]()
	model := map[ecs.EntityId]int{}

	for i := 0; i < 5000; i++ {
		e := ecs.EntityId(rng.IntN(300))
		if rng.IntN(3) == 0 {
			pool.Remove(e)
			delete(model, e)
		} else {
			pool.Add(e, i)
			model[e] = i
		}
	}

	checkPoolInvariant(t, pool)
	require.Equal(t, len(model), pool.Len())
	for e, v := range model {
		require.True(t, pool.Has(e))
		require.Equal(t, v, *pool.Get(e))
	}
}

func TestPoolReserveAndClear(t *testing.T) {
	pool := ecs.NewPool[Position]()
	pool.Reserve(128)
	assert.GreaterOrEqual(t, len(pool.Locations()), 129)
	assert.Equal(t, 0, pool.Len())

	for e := range ecs.EntityId(10) {
		pool.Add(e, Position{})
	}
	pool.Clear()

	assert.Equal(t, 0, pool.Len())
	for e := range ecs.EntityId(10) {
		assert.False(t, pool.Has(e))
	}
	checkPoolInvariant(t, pool)
}

func TestPoolIter(t *testing.T) {
	pool := ecs.NewPool[Position]()
	pool.Add(2, Position{X: 2})
	pool.Add(0, Position{X: 0})

	var seen []ecs.EntityId
	for e, p := range pool.Iter() {
		assert.Equal(t, float32(e), p.X)
		p.Y = 5
		seen = append(seen, e)
	}

	assert.Equal(t, []ecs.EntityId{2, 0}, seen)
	assert.Equal(t, float32(5), pool.Get(0).Y)
}
