package ecs

import (
	"iter"
	"reflect"
	"unsafe"
)

// Pool is a sparse set holding every component of type T.
//
// Components live packed in dense with the owning entity of each slot in
// denseEntities at the same index. sparse maps an entity id to its dense
// index, or InvalidIndex when the entity has no component in this pool.
type Pool[T any] struct {
	sparse        []uint32
	dense         []T
	denseEntities []EntityId
}

// NewPool creates an empty pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Add inserts value for entity, or overwrites it in place if the entity
// already owns a component here. The dense index of an existing entry never
// changes. Returns a pointer to the stored value.
func (p *Pool[T]) Add(entity EntityId, value T) *T {
	if idx, ok := p.Index(entity); ok {
		p.dense[idx] = value
		return &p.dense[idx]
	}

	if int(entity) >= len(p.sparse) {
		p.growSparse(int(entity) + 1)
	}

	p.sparse[entity] = uint32(len(p.dense))
	p.dense = append(p.dense, value)
	p.denseEntities = append(p.denseEntities, entity)
	return &p.dense[len(p.dense)-1]
}

func (p *Pool[T]) growSparse(size int) {
	oldLen := len(p.sparse)
	newLen := max(oldLen*2, size)

	grown := make([]uint32, newLen)
	copy(grown, p.sparse)
	for i := oldLen; i < newLen; i++ {
		grown[i] = InvalidIndex
	}
	p.sparse = grown
}

// Has reports whether entity owns a component in this pool.
func (p *Pool[T]) Has(entity EntityId) bool {
	return int(entity) < len(p.sparse) && p.sparse[entity] != InvalidIndex
}

// Index returns the dense index of entity's component.
func (p *Pool[T]) Index(entity EntityId) (int, bool) {
	if !p.Has(entity) {
		return 0, false
	}
	return int(p.sparse[entity]), true
}

// Get returns a pointer to entity's component, or nil if it has none.
// The pointer is invalidated by any Add or Remove on this pool.
func (p *Pool[T]) Get(entity EntityId) *T {
	idx, ok := p.Index(entity)
	if !ok {
		return nil
	}
	return &p.dense[idx]
}

// Remove deletes entity's component by moving the last dense element into
// its slot. Dense order is not preserved. Removing an absent entity is a no-op.
func (p *Pool[T]) Remove(entity EntityId) {
	idx, ok := p.Index(entity)
	if !ok {
		return
	}

	last := len(p.dense) - 1
	lastEntity := p.denseEntities[last]

	p.dense[idx] = p.dense[last]
	p.denseEntities[idx] = lastEntity
	p.sparse[lastEntity] = uint32(idx)

	var zero T
	p.dense[last] = zero
	p.dense = p.dense[:last]
	p.denseEntities = p.denseEntities[:last]

	p.sparse[entity] = InvalidIndex
}

// Len returns the number of components stored.
func (p *Pool[T]) Len() int {
	return len(p.dense)
}

// Dense exposes the packed component array for bulk access.
// Callers may read and write elements but must not resize or reorder it.
func (p *Pool[T]) Dense() []T {
	return p.dense
}

// DenseEntities exposes the owning entity of every dense slot.
func (p *Pool[T]) DenseEntities() []EntityId {
	return p.denseEntities
}

// Locations exposes the sparse array (entity id -> dense index).
func (p *Pool[T]) Locations() []uint32 {
	return p.sparse
}

// Reserve pre-allocates room for entity ids below capacity.
func (p *Pool[T]) Reserve(capacity int) {
	if capacity+1 > len(p.sparse) {
		p.growSparse(capacity + 1)
	}
	if capacity > cap(p.dense) {
		dense := make([]T, len(p.dense), capacity)
		copy(dense, p.dense)
		p.dense = dense

		entities := make([]EntityId, len(p.denseEntities), capacity)
		copy(entities, p.denseEntities)
		p.denseEntities = entities
	}
}

// Clear removes every component, keeping allocated capacity.
func (p *Pool[T]) Clear() {
	for _, e := range p.denseEntities {
		p.sparse[e] = InvalidIndex
	}
	clear(p.dense)
	p.dense = p.dense[:0]
	p.denseEntities = p.denseEntities[:0]
}

// Iter yields every (entity, component) pair in dense order.
func (p *Pool[T]) Iter() iter.Seq2[EntityId, *T] {
	return func(yield func(EntityId, *T) bool) {
		for i := range p.dense {
			if !yield(p.denseEntities[i], &p.dense[i]) {
				return
			}
		}
	}
}

// Type returns the component type stored in this pool.
func (p *Pool[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

func (p *Pool[T]) addAny(entity EntityId, item any) bool {
	switch v := item.(type) {
	case T:
		p.Add(entity, v)
	case *T:
		p.Add(entity, *v)
	default:
		return false
	}
	return true
}

func (p *Pool[T]) getAny(entity EntityId) any {
	if c := p.Get(entity); c != nil {
		return c
	}
	return nil
}

func (p *Pool[T]) ptr(entity EntityId) unsafe.Pointer {
	idx, ok := p.Index(entity)
	if !ok {
		return nil
	}
	return unsafe.Pointer(&p.dense[idx])
}
