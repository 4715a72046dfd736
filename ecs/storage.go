package ecs

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/bits-and-blooms/bitset"
	"github.com/kamstrup/intmap"
)

// Storage owns the entities of a world, one pool per component type and the
// singleton table.
type Storage struct {
	registry   *ComponentRegistry
	entities   []bitset.BitSet
	removed    bitset.BitSet
	live       int
	pools      []iComponentPool
	singletons *intmap.Map[ComponentId, any]
}

// NewStorage creates a new ECS storage system with the given component registry
func NewStorage(registry *ComponentRegistry) *Storage {
	return &Storage{
		registry:   registry,
		singletons: intmap.New[ComponentId, any](16),
	}
}

// Registry returns the component registry backing this storage.
func (s *Storage) Registry() *ComponentRegistry {
	return s.registry
}

// CreateEntity appends a new entity without components.
func (s *Storage) CreateEntity() EntityId {
	id := EntityId(len(s.entities))
	s.entities = append(s.entities, bitset.BitSet{})
	s.live++
	return id
}

// Spawn creates an entity carrying the given components. Every component
// type must already be registered. On failure the entity is removed again.
func (s *Storage) Spawn(components ...any) (EntityId, error) {
	id := s.CreateEntity()
	for _, component := range components {
		if err := s.AddComponent(id, component); err != nil {
			s.RemoveEntity(id)
			return 0, err
		}
	}
	return id, nil
}

// Alive reports whether id was created and has not been removed.
func (s *Storage) Alive(id EntityId) bool {
	return int(id) < len(s.entities) && !s.removed.Test(uint(id))
}

// EntityCount returns the number of live entities.
func (s *Storage) EntityCount() int {
	return s.live
}

// Entities yields every live entity id in creation order.
func (s *Storage) Entities() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for i := range s.entities {
			id := EntityId(i)
			if s.removed.Test(uint(i)) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// RemoveEntity strips every component owned by id and retires the id.
// Cost is proportional to the number of components the entity owns.
func (s *Storage) RemoveEntity(id EntityId) {
	if !s.Alive(id) {
		return
	}

	membership := &s.entities[id]
	for compId, ok := membership.NextSet(0); ok; compId, ok = membership.NextSet(compId + 1) {
		s.pools[compId].Remove(id)
	}
	membership.ClearAll()

	s.removed.Set(uint(id))
	s.live--
}

// pool returns the pool for id, creating it on first use.
func (s *Storage) pool(id ComponentId) iComponentPool {
	if int(id) >= len(s.pools) {
		grown := make([]iComponentPool, s.registry.Len())
		copy(grown, s.pools)
		s.pools = grown
	}
	if s.pools[id] == nil {
		s.pools[id] = s.registry.newPool(id)
	}
	return s.pools[id]
}

// existingPool returns the pool for id without creating it.
func (s *Storage) existingPool(id ComponentId) iComponentPool {
	if int(id) >= len(s.pools) {
		return nil
	}
	return s.pools[id]
}

// PoolOf returns the pool holding every T, registering T on first use.
func PoolOf[T any](s *Storage) *Pool[T] {
	id := RegisterComponent[T](s.registry)
	return s.pool(id).(*Pool[T])
}

// Emplace attaches value to entity, overwriting an existing T.
func Emplace[T any](s *Storage, entity EntityId, value T) (*T, error) {
	if !s.Alive(entity) {
		return nil, fmt.Errorf("emplace %s on entity %d: %w", reflect.TypeFor[T](), entity, ErrInvalidEntity)
	}

	id := RegisterComponent[T](s.registry)
	component := s.pool(id).(*Pool[T]).Add(entity, value)
	s.entities[entity].Set(uint(id))
	return component, nil
}

// Has reports whether entity owns a T.
func Has[T any](s *Storage, entity EntityId) bool {
	id, ok := ComponentIdOf[T](s.registry)
	if !ok {
		return false
	}
	return s.owns(entity, id)
}

// Get returns entity's T, or ErrComponentNotFound.
func Get[T any](s *Storage, entity EntityId) (*T, error) {
	id, ok := ComponentIdOf[T](s.registry)
	if ok && s.owns(entity, id) {
		return s.pools[id].(*Pool[T]).Get(entity), nil
	}
	return nil, fmt.Errorf("get %s on entity %d: %w", reflect.TypeFor[T](), entity, ErrComponentNotFound)
}

// Remove detaches entity's T if present.
func Remove[T any](s *Storage, entity EntityId) {
	id, ok := ComponentIdOf[T](s.registry)
	if !ok || !s.owns(entity, id) {
		return
	}
	s.pools[id].Remove(entity)
	s.entities[entity].Clear(uint(id))
}

func (s *Storage) owns(entity EntityId, id ComponentId) bool {
	return int(entity) < len(s.entities) && s.entities[entity].Test(uint(id))
}

// AddComponent attaches a component whose type is only known at runtime.
// The type must already be registered.
func (s *Storage) AddComponent(entity EntityId, component any) error {
	compType, err := componentType(component)
	if err != nil {
		return err
	}
	if !s.Alive(entity) {
		return fmt.Errorf("add %s on entity %d: %w", compType, entity, ErrInvalidEntity)
	}

	id, ok := s.registry.Lookup(compType)
	if !ok {
		return fmt.Errorf("add %s: %w", compType, ErrUnregisteredComponent)
	}
	if !s.pool(id).addAny(entity, component) {
		return fmt.Errorf("add %s on entity %d: value does not match pool type", compType, entity)
	}
	s.entities[entity].Set(uint(id))
	return nil
}

// RemoveComponent detaches the component of the given type if present.
func (s *Storage) RemoveComponent(entity EntityId, compType reflect.Type) {
	id, ok := s.registry.Lookup(compType)
	if !ok || !s.owns(entity, id) {
		return
	}
	s.pools[id].Remove(entity)
	s.entities[entity].Clear(uint(id))
}

// GetComponent returns a pointer to the component of the given type, or nil.
func (s *Storage) GetComponent(entity EntityId, compType reflect.Type) any {
	id, ok := s.registry.Lookup(compType)
	if !ok || !s.owns(entity, id) {
		return nil
	}
	return s.pools[id].getAny(entity)
}

// HasComponent checks if an entity has a specific component type
func (s *Storage) HasComponent(entity EntityId, compType reflect.Type) bool {
	id, ok := s.registry.Lookup(compType)
	return ok && s.owns(entity, id)
}

// ComponentTypes lists the types of every component owned by entity.
func (s *Storage) ComponentTypes(entity EntityId) []reflect.Type {
	if int(entity) >= len(s.entities) {
		return nil
	}
	membership := &s.entities[entity]
	types := make([]reflect.Type, 0, membership.Count())
	for compId, ok := membership.NextSet(0); ok; compId, ok = membership.NextSet(compId + 1) {
		types = append(types, s.registry.Type(ComponentId(compId)))
	}
	return types
}

// componentType resolves the value type of a runtime component.
// Components can be structs or primitives, but not pointers, maps, channels
// or functions.
func componentType(component any) (reflect.Type, error) {
	compType := reflect.TypeOf(component)
	if compType == nil {
		return nil, fmt.Errorf("nil component")
	}
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}
	switch compType.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func:
		return nil, fmt.Errorf("component %s: components cannot be pointers, maps, channels, or functions", compType)
	}
	return compType, nil
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent returns entity's T through a ComponentReader, or nil.
func ReadComponent[T any](reader ComponentReader, entity EntityId) *T {
	c, _ := reader.GetComponent(entity, reflect.TypeFor[T]()).(*T)
	return c
}
