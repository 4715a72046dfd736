package sph_test

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallGrid() sph.Params {
	params := sph.DefaultParams()
	params.CellSize = 1
	params.GridRes = 4
	return params
}

func newHashWorld(t *testing.T) (*ecs.Storage, *sph.SpatialHash, *ecs.Pool[sph.Position]) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	sph.Register(registry)
	storage := ecs.NewStorage(registry)
	return storage, sph.NewSpatialHash(storage, smallGrid()), ecs.PoolOf[sph.Position](storage)
}

func placePoint(t *testing.T, storage *ecs.Storage, p mgl32.Vec3) ecs.EntityId {
	t.Helper()
	e := storage.CreateEntity()
	_, err := ecs.Emplace(storage, e, sph.Position{Vec3: p})
	require.NoError(t, err)
	return e
}

func bruteNeighbors(positions *ecs.Pool[sph.Position], self ecs.EntityId, center mgl32.Vec3, radius float32) []ecs.EntityId {
	var out []ecs.EntityId
	for id, p := range positions.Iter() {
		if id == self {
			continue
		}
		d := p.Vec3.Sub(center)
		if d.Dot(d) <= radius*radius {
			out = append(out, id)
		}
	}
	return out
}

func TestLocateWrapsAcrossChunks(t *testing.T) {
	_, hash, _ := newHashWorld(t)

	coord, cell := hash.Locate(mgl32.Vec3{0.5, 0.5, 0.5})
	assert.Equal(t, sph.ChunkCoord{0, 0, 0}, coord)
	assert.Equal(t, 0, cell)

	coord, cell = hash.Locate(mgl32.Vec3{-0.5, 0, 0})
	assert.Equal(t, sph.ChunkCoord{-1, 0, 0}, coord)
	assert.Equal(t, 3, cell)

	coord, cell = hash.Locate(mgl32.Vec3{4.1, 1.5, 0})
	assert.Equal(t, sph.ChunkCoord{1, 0, 0}, coord)
	assert.Equal(t, 4, cell)

	coord, _ = hash.Locate(mgl32.Vec3{-4, -4.5, 8})
	assert.Equal(t, sph.ChunkCoord{-1, -2, 2}, coord)
}

func TestNeighborsAcrossChunkBoundaries(t *testing.T) {
	pairs := [][2]mgl32.Vec3{
		{{3.9, 0, 0}, {4.1, 0, 0}},
		{{-0.05, 0, 0}, {0.05, 0, 0}},
		{{0.2, -0.1, 3.95}, {0.2, 0.1, 4.05}},
		{{-4.05, -4.05, -4.05}, {-3.95, -3.95, -3.95}},
	}
	for _, pair := range pairs {
		storage, hash, positions := newHashWorld(t)
		a := placePoint(t, storage, pair[0])
		b := placePoint(t, storage, pair[1])
		require.NoError(t, hash.Rebuild(positions))

		ca, _ := hash.Locate(pair[0])
		cb, _ := hash.Locate(pair[1])
		assert.NotEqual(t, ca, cb, "pair %v should straddle a chunk boundary", pair)

		assert.Equal(t, []ecs.EntityId{b}, hash.Neighbors(a, pair[0], 1, positions, nil))
		assert.Equal(t, []ecs.EntityId{a}, hash.Neighbors(b, pair[1], 1, positions, nil))
	}
}

func TestNeighborsMatchBruteForce(t *testing.T) {
	storage, hash, positions := newHashWorld(t)
	rng := rand.New(rand.NewPCG(3, 5))

	for range 400 {
		placePoint(t, storage, mgl32.Vec3{
			rng.Float32()*12 - 6,
			rng.Float32()*12 - 6,
			rng.Float32()*12 - 6,
		})
	}
	require.NoError(t, hash.Rebuild(positions))
	assert.Greater(t, hash.ChunkCount(), 8)

	for _, radius := range []float32{1, 2.5} {
		var buf []ecs.EntityId
		for id, p := range positions.Iter() {
			buf = hash.Neighbors(id, p.Vec3, radius, positions, buf[:0])
			assert.ElementsMatch(t, bruteNeighbors(positions, id, p.Vec3, radius), buf,
				"entity %d radius %v", id, radius)
		}
	}
}

func TestNeighborsExcludeSelf(t *testing.T) {
	storage, hash, positions := newHashWorld(t)
	e := placePoint(t, storage, mgl32.Vec3{1, 1, 1})
	require.NoError(t, hash.Rebuild(positions))

	assert.Empty(t, hash.Neighbors(e, mgl32.Vec3{1, 1, 1}, 1, positions, nil))
	// A query for another entity sees it.
	assert.Equal(t, []ecs.EntityId{e}, hash.Neighbors(e+1000, mgl32.Vec3{1, 1, 1}, 1, positions, nil))
}

func TestRebuildCreatesAndDropsChunks(t *testing.T) {
	storage, hash, positions := newHashWorld(t)
	e := placePoint(t, storage, mgl32.Vec3{0.5, 0.5, 0.5})

	require.NoError(t, hash.Rebuild(positions))
	require.Equal(t, 1, hash.ChunkCount())
	assert.Equal(t, 2, storage.EntityCount(), "the chunk is an entity")

	origin := hash.Chunk(sph.ChunkCoord{0, 0, 0})
	require.NotNil(t, origin)
	assert.False(t, origin.Empty())

	positions.Get(e).Vec3 = mgl32.Vec3{10, 0.5, 0.5}
	require.NoError(t, hash.Rebuild(positions))

	assert.Equal(t, 1, hash.ChunkCount())
	assert.Nil(t, hash.Chunk(sph.ChunkCoord{0, 0, 0}))
	moved := hash.Chunk(sph.ChunkCoord{2, 0, 0})
	require.NotNil(t, moved)
	assert.Equal(t, sph.ChunkCoord{2, 0, 0}, moved.Coord)
	assert.Equal(t, 2, storage.EntityCount())

	storage.RemoveEntity(e)
	require.NoError(t, hash.Rebuild(positions))
	assert.Equal(t, 0, hash.ChunkCount())
	assert.Equal(t, 0, storage.EntityCount())
}

func TestRebuildMintsIdsOnlyOnChunkTransitions(t *testing.T) {
	storage, hash, positions := newHashWorld(t)
	e := placePoint(t, storage, mgl32.Vec3{0.5, 0.5, 0.5})

	nextID := func() ecs.EntityId {
		probe := storage.CreateEntity()
		storage.RemoveEntity(probe)
		return probe
	}

	require.NoError(t, hash.Rebuild(positions))
	before := nextID()
	for range 5 {
		positions.Get(e).Vec3[0] += 0.1
		require.NoError(t, hash.Rebuild(positions))
	}
	assert.Equal(t, before+1, nextID(), "moving within a chunk reuses its entity")

	positions.Get(e).Vec3 = mgl32.Vec3{10, 0.5, 0.5}
	require.NoError(t, hash.Rebuild(positions))
	assert.Equal(t, before+3, nextID(), "entering a new chunk mints one id")
}

func TestConfigureDiscardsChunksOnGeometryChange(t *testing.T) {
	storage, hash, positions := newHashWorld(t)
	placePoint(t, storage, mgl32.Vec3{0.5, 0.5, 0.5})
	require.NoError(t, hash.Rebuild(positions))

	hash.Configure(smallGrid())
	assert.Equal(t, 1, hash.ChunkCount(), "same geometry keeps chunks")

	params := smallGrid()
	params.GridRes = 8
	hash.Configure(params)
	assert.Equal(t, 0, hash.ChunkCount())
	assert.Equal(t, 1, storage.EntityCount())

	require.NoError(t, hash.Rebuild(positions))
	assert.Len(t, hash.Chunk(sph.ChunkCoord{0, 0, 0}).Buckets, 8*8*8)
}
