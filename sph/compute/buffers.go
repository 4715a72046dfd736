// Package compute runs the SPH passes as compute dispatches over a
// structure-of-arrays mirror of the particle pools.
package compute

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
)

// ResetValue marks an empty hash slot or the end of a bucket chain.
const ResetValue = 0xFFFFFFFF

var (
	// ErrLayoutMismatch is returned when buffer and pool lengths disagree.
	ErrLayoutMismatch = errors.New("buffer layout mismatch")
	// ErrIndexOutOfRange is returned when a location buffer points outside
	// the dense arrays.
	ErrIndexOutOfRange = errors.New("buffer index out of range")
)

// Buffers mirrors every particle pool verbatim. Each pool contributes its
// dense array and its sparse location array. DenseIDs is the position pool's
// dense entity array and defines the invocation order of every dispatch.
type Buffers struct {
	Positions  []sph.Position
	Masses     []sph.Mass
	Densities  []sph.Density
	Pressures  []sph.Pressure
	Forces     []sph.Force
	Velocities []sph.Velocity

	PositionLoc []uint32
	MassLoc     []uint32
	DensityLoc  []uint32
	PressureLoc []uint32
	ForceLoc    []uint32
	VelocityLoc []uint32

	DenseIDs []uint32

	HashTable  []uint32
	Next       []uint32
	BucketKeys []uint32
}

// Len returns the number of mirrored particles.
func (b *Buffers) Len() int {
	return len(b.DenseIDs)
}

type particlePools struct {
	positions  *ecs.Pool[sph.Position]
	masses     *ecs.Pool[sph.Mass]
	densities  *ecs.Pool[sph.Density]
	pressures  *ecs.Pool[sph.Pressure]
	forces     *ecs.Pool[sph.Force]
	velocities *ecs.Pool[sph.Velocity]
}

func poolsOf(storage *ecs.Storage) particlePools {
	return particlePools{
		positions:  ecs.PoolOf[sph.Position](storage),
		masses:     ecs.PoolOf[sph.Mass](storage),
		densities:  ecs.PoolOf[sph.Density](storage),
		pressures:  ecs.PoolOf[sph.Pressure](storage),
		forces:     ecs.PoolOf[sph.Force](storage),
		velocities: ecs.PoolOf[sph.Velocity](storage),
	}
}

// Upload copies every particle pool into the buffers and resets the hash
// buffers. The copy is whole-array; swap-remove may have reordered any pool
// since the last upload.
func (b *Buffers) Upload(storage *ecs.Storage, hashSize int) error {
	if hashSize <= 0 {
		return fmt.Errorf("hash size %d: %w", hashSize, ErrLayoutMismatch)
	}
	pools := poolsOf(storage)
	n := pools.positions.Len()

	lengths := []struct {
		name string
		len  int
	}{
		{"mass", pools.masses.Len()},
		{"density", pools.densities.Len()},
		{"pressure", pools.pressures.Len()},
		{"force", pools.forces.Len()},
		{"velocity", pools.velocities.Len()},
	}
	for _, l := range lengths {
		if l.len != n {
			return fmt.Errorf("%s pool holds %d entries, position pool %d: %w", l.name, l.len, n, ErrLayoutMismatch)
		}
	}

	b.Positions = append(b.Positions[:0], pools.positions.Dense()...)
	b.Masses = append(b.Masses[:0], pools.masses.Dense()...)
	b.Densities = append(b.Densities[:0], pools.densities.Dense()...)
	b.Pressures = append(b.Pressures[:0], pools.pressures.Dense()...)
	b.Forces = append(b.Forces[:0], pools.forces.Dense()...)
	b.Velocities = append(b.Velocities[:0], pools.velocities.Dense()...)

	b.PositionLoc = append(b.PositionLoc[:0], pools.positions.Locations()...)
	b.MassLoc = append(b.MassLoc[:0], pools.masses.Locations()...)
	b.DensityLoc = append(b.DensityLoc[:0], pools.densities.Locations()...)
	b.PressureLoc = append(b.PressureLoc[:0], pools.pressures.Locations()...)
	b.ForceLoc = append(b.ForceLoc[:0], pools.forces.Locations()...)
	b.VelocityLoc = append(b.VelocityLoc[:0], pools.velocities.Locations()...)

	b.DenseIDs = b.DenseIDs[:0]
	for _, e := range pools.positions.DenseEntities() {
		b.DenseIDs = append(b.DenseIDs, uint32(e))
	}

	if err := b.validate(); err != nil {
		return err
	}

	b.HashTable = resize(b.HashTable, hashSize)
	b.Next = resize(b.Next, n)
	b.BucketKeys = resize(b.BucketKeys, n)
	b.ResetHash()
	return nil
}

// validate checks that every dense id resolves to an in-range slot of every
// dense array.
func (b *Buffers) validate() error {
	n := uint32(len(b.DenseIDs))
	locations := []struct {
		name string
		loc  []uint32
	}{
		{"position", b.PositionLoc},
		{"mass", b.MassLoc},
		{"density", b.DensityLoc},
		{"pressure", b.PressureLoc},
		{"force", b.ForceLoc},
		{"velocity", b.VelocityLoc},
	}
	for _, id := range b.DenseIDs {
		for _, l := range locations {
			if id >= uint32(len(l.loc)) || l.loc[id] >= n {
				return fmt.Errorf("%s location of entity %d: %w", l.name, id, ErrIndexOutOfRange)
			}
		}
	}
	return nil
}

// ResetHash clears the hash table and every bucket chain.
func (b *Buffers) ResetHash() {
	fill(b.HashTable, ResetValue)
	fill(b.Next, ResetValue)
	fill(b.BucketKeys, ResetValue)
}

// Check reports whether the pools still have the layout the buffers were
// uploaded from: same particles, same dense slot in every pool.
func (b *Buffers) Check(storage *ecs.Storage) error {
	return b.check(poolsOf(storage))
}

func (b *Buffers) check(pools particlePools) error {
	entities := pools.positions.DenseEntities()
	if len(entities) != b.Len() {
		return fmt.Errorf("position pool holds %d entries, buffers %d: %w", len(entities), b.Len(), ErrLayoutMismatch)
	}
	for i, e := range entities {
		if uint32(e) != b.DenseIDs[i] {
			return fmt.Errorf("dense id %d is entity %d, buffers hold %d: %w", i, e, b.DenseIDs[i], ErrLayoutMismatch)
		}
	}
	layouts := []struct {
		name     string
		entities []ecs.EntityId
		loc      []uint32
	}{
		{"mass", pools.masses.DenseEntities(), b.MassLoc},
		{"density", pools.densities.DenseEntities(), b.DensityLoc},
		{"pressure", pools.pressures.DenseEntities(), b.PressureLoc},
		{"force", pools.forces.DenseEntities(), b.ForceLoc},
		{"velocity", pools.velocities.DenseEntities(), b.VelocityLoc},
	}
	for _, l := range layouts {
		if len(l.entities) != b.Len() {
			return fmt.Errorf("%s pool resized since upload: %w", l.name, ErrLayoutMismatch)
		}
		for i, e := range l.entities {
			if int(e) >= len(l.loc) || l.loc[e] != uint32(i) {
				return fmt.Errorf("%s pool reordered since upload: %w", l.name, ErrLayoutMismatch)
			}
		}
	}
	return nil
}

// Download copies the buffers the passes write back into the pools. The
// pools must not have been reordered or resized since the upload.
func (b *Buffers) Download(storage *ecs.Storage) error {
	pools := poolsOf(storage)
	if err := b.check(pools); err != nil {
		return err
	}

	copy(pools.positions.Dense(), b.Positions)
	copy(pools.densities.Dense(), b.Densities)
	copy(pools.pressures.Dense(), b.Pressures)
	copy(pools.forces.Dense(), b.Forces)
	copy(pools.velocities.Dense(), b.Velocities)
	return nil
}

// Binding is one buffer as raw bytes, named after the kernel input it feeds.
type Binding struct {
	Name string
	Data []byte
}

// Bytes returns every buffer in binding order as byte views sharing memory
// with the typed slices. A driver uploads these verbatim.
func (b *Buffers) Bytes() []Binding {
	return []Binding{
		{"positions", asBytes(b.Positions)},
		{"masses", asBytes(b.Masses)},
		{"densities", asBytes(b.Densities)},
		{"pressures", asBytes(b.Pressures)},
		{"forces", asBytes(b.Forces)},
		{"velocities", asBytes(b.Velocities)},
		{"position_loc", asBytes(b.PositionLoc)},
		{"mass_loc", asBytes(b.MassLoc)},
		{"density_loc", asBytes(b.DensityLoc)},
		{"pressure_loc", asBytes(b.PressureLoc)},
		{"force_loc", asBytes(b.ForceLoc)},
		{"velocity_loc", asBytes(b.VelocityLoc)},
		{"dense_ids", asBytes(b.DenseIDs)},
		{"hash_table", asBytes(b.HashTable)},
		{"next", asBytes(b.Next)},
		{"bucket_keys", asBytes(b.BucketKeys)},
	}
}

func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

func resize(s []uint32, n int) []uint32 {
	if cap(s) < n {
		return make([]uint32, n)
	}
	return s[:n]
}

func fill(s []uint32, v uint32) {
	for i := range s {
		s[i] = v
	}
}
