package sph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/kamstrup/intmap"
	"github.com/plus3/sapphire/ecs"
)

const (
	chunkKeyBits = 21
	chunkKeyMask = 1<<chunkKeyBits - 1
	chunkKeyBias = 1 << (chunkKeyBits - 1)
)

func chunkKey(c ChunkCoord) uint64 {
	x := uint64(c[0]+chunkKeyBias) & chunkKeyMask
	y := uint64(c[1]+chunkKeyBias) & chunkKeyMask
	z := uint64(c[2]+chunkKeyBias) & chunkKeyMask
	return x<<(2*chunkKeyBits) | y<<chunkKeyBits | z
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// SpatialHash partitions space into chunks of GridRes³ cubic cells. Chunks
// are entities in the particle storage carrying a Chunk component, created
// on demand and removed once a rebuild leaves them empty.
type SpatialHash struct {
	storage  *ecs.Storage
	chunks   *intmap.Map[uint64, ecs.EntityId]
	cellSize float32
	gridRes  int32
}

// NewSpatialHash creates an empty hash whose chunks live in storage.
func NewSpatialHash(storage *ecs.Storage, params Params) *SpatialHash {
	return &SpatialHash{
		storage:  storage,
		chunks:   intmap.New[uint64, ecs.EntityId](64),
		cellSize: params.CellSize,
		gridRes:  int32(params.GridRes),
	}
}

// Configure applies new cell geometry. Existing chunks are discarded when
// the geometry changes.
func (h *SpatialHash) Configure(params Params) {
	if params.CellSize == h.cellSize && int32(params.GridRes) == h.gridRes {
		return
	}
	h.Clear()
	h.cellSize = params.CellSize
	h.gridRes = int32(params.GridRes)
}

// Clear removes every chunk entity.
func (h *SpatialHash) Clear() {
	var ids []ecs.EntityId
	h.chunks.ForEach(func(_ uint64, id ecs.EntityId) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		h.storage.RemoveEntity(id)
	}
	h.chunks.Clear()
}

func (h *SpatialHash) globalCell(p mgl32.Vec3) [3]int32 {
	return CellOf(p, h.cellSize)
}

// split maps a global cell onto its chunk coordinate and local cell.
// Local cells outside [0, GridRes) wrap into the adjacent chunk.
func (h *SpatialHash) split(g [3]int32) (ChunkCoord, [3]int32) {
	var chunk ChunkCoord
	var local [3]int32
	for axis := range 3 {
		chunk[axis] = floorDiv(g[axis], h.gridRes)
		local[axis] = g[axis] - chunk[axis]*h.gridRes
	}
	return chunk, local
}

func (h *SpatialHash) flatten(local [3]int32) int {
	return int(local[0] + h.gridRes*(local[1]+h.gridRes*local[2]))
}

// Locate returns the chunk coordinate and flat bucket index containing p.
func (h *SpatialHash) Locate(p mgl32.Vec3) (ChunkCoord, int) {
	chunk, local := h.split(h.globalCell(p))
	return chunk, h.flatten(local)
}

// Chunk returns the chunk at coord, or nil if none exists.
func (h *SpatialHash) Chunk(coord ChunkCoord) *Chunk {
	id, ok := h.chunks.Get(chunkKey(coord))
	if !ok {
		return nil
	}
	chunk, err := ecs.Get[Chunk](h.storage, id)
	if err != nil {
		return nil
	}
	return chunk
}

// ChunkCount returns the number of live chunks.
func (h *SpatialHash) ChunkCount() int {
	return h.chunks.Len()
}

// ChunkEntities returns the entity backing every live chunk.
func (h *SpatialHash) ChunkEntities() []ecs.EntityId {
	ids := make([]ecs.EntityId, 0, h.chunks.Len())
	h.chunks.ForEach(func(_ uint64, id ecs.EntityId) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

func (h *SpatialHash) chunkFor(coord ChunkCoord) (*Chunk, error) {
	key := chunkKey(coord)
	if id, ok := h.chunks.Get(key); ok {
		return ecs.Get[Chunk](h.storage, id)
	}

	id := h.storage.CreateEntity()
	cells := int(h.gridRes) * int(h.gridRes) * int(h.gridRes)
	chunk, err := ecs.Emplace(h.storage, id, Chunk{
		Coord:   coord,
		Buckets: make([][]ecs.EntityId, cells),
	})
	if err != nil {
		return nil, err
	}
	h.chunks.Put(key, id)
	return chunk, nil
}

// Rebuild empties every bucket, inserts each particle of positions into the
// bucket containing it and drops chunks that stayed empty.
func (h *SpatialHash) Rebuild(positions *ecs.Pool[Position]) error {
	chunkPool := ecs.PoolOf[Chunk](h.storage)
	chunks := chunkPool.Dense()
	for i := range chunks {
		chunks[i].reset()
	}

	entities := positions.DenseEntities()
	for i, p := range positions.Dense() {
		coord, cell := h.Locate(p.Vec3)
		chunk, err := h.chunkFor(coord)
		if err != nil {
			return err
		}
		chunk.Buckets[cell] = append(chunk.Buckets[cell], entities[i])
	}

	var empty []ecs.EntityId
	for id, chunk := range chunkPool.Iter() {
		if chunk.Empty() {
			empty = append(empty, id)
			h.chunks.Del(chunkKey(chunk.Coord))
		}
	}
	for _, id := range empty {
		h.storage.RemoveEntity(id)
	}
	return nil
}

// Neighbors appends to dst every particle other than self whose position
// lies within radius of center. The search covers the cell ring around the
// center cell, one cell wide unless radius exceeds the cell size. It only
// reads the hash and the pool, so concurrent queries are safe between
// rebuilds.
func (h *SpatialHash) Neighbors(self ecs.EntityId, center mgl32.Vec3, radius float32, positions *ecs.Pool[Position], dst []ecs.EntityId) []ecs.EntityId {
	ring := SearchRing(radius, h.cellSize)
	radiusSq := radius * radius

	centerChunk, centerLocal := h.split(h.globalCell(center))

	var lastCoord ChunkCoord
	var lastChunk *Chunk
	haveLast := false

	for dz := -ring; dz <= ring; dz++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				coord, local := h.wrap(centerChunk, centerLocal, [3]int32{dx, dy, dz})

				if !haveLast || coord != lastCoord {
					lastCoord, lastChunk, haveLast = coord, h.Chunk(coord), true
				}
				if lastChunk == nil {
					continue
				}

				for _, id := range lastChunk.Buckets[h.flatten(local)] {
					if id == self {
						continue
					}
					p := positions.Get(id)
					if p == nil {
						continue
					}
					d := p.Vec3.Sub(center)
					if d.Dot(d) <= radiusSq {
						dst = append(dst, id)
					}
				}
			}
		}
	}
	return dst
}

// wrap offsets a local cell, carrying any overflow of [0, GridRes) into the
// chunk coordinate on that axis.
func (h *SpatialHash) wrap(chunk ChunkCoord, local, offset [3]int32) (ChunkCoord, [3]int32) {
	for axis := range 3 {
		cell := local[axis] + offset[axis]
		carry := floorDiv(cell, h.gridRes)
		chunk[axis] += carry
		local[axis] = cell - carry*h.gridRes
	}
	return chunk, local
}
