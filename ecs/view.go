package ecs

import (
	"iter"
	"reflect"
	"unsafe"
)

// View iterates the intersection of several component pools.
//
// The type T should be a struct whose fields are pointers to component
// types. Embedded fields are always required; named fields can be marked as
// optional using the `ecs:"optional"` struct tag. A field of type EntityId
// receives the id of the current entity.
//
// Iteration is driven by the smallest required pool. Pointers handed out by
// a view point into the pools' dense arrays: adding or removing components of
// any viewed type while a view is being iterated is undefined behavior.
type View[T any] struct {
	storage     *Storage
	types       []reflect.Type
	optional    []bool
	fieldOffset []uintptr

	entityOffset uintptr
	hasEntity    bool
}

// NewView creates a new view for the given struct type
func NewView[T any](storage *Storage) *View[T] {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		panic("View type parameter must be a struct")
	}

	v := &View[T]{storage: storage}
	required := 0

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		if field.Type == reflect.TypeFor[EntityId]() {
			v.entityOffset = field.Offset
			v.hasEntity = true
			continue
		}
		if field.Type.Kind() != reflect.Ptr {
			panic("View struct fields must be pointer types or EntityId")
		}

		isOptional := false
		if !field.Anonymous {
			if tag := field.Tag.Get("ecs"); tag != "" {
				if tag != "optional" {
					panic("invalid ecs tag value: \"" + tag + "\" (only \"optional\" is supported)")
				}
				isOptional = true
			}
		}
		if !isOptional {
			required++
		}

		v.types = append(v.types, field.Type.Elem())
		v.optional = append(v.optional, isOptional)
		v.fieldOffset = append(v.fieldOffset, field.Offset)
	}

	if required == 0 {
		panic("View requires at least one required component")
	}
	return v
}

// resolve looks up the pool behind every field. It reports false when a
// required component type has no pool yet, in which case nothing can match.
func (v *View[T]) resolve() ([]iComponentPool, bool) {
	pools := make([]iComponentPool, len(v.types))
	for i, t := range v.types {
		if id, ok := v.storage.registry.Lookup(t); ok {
			pools[i] = v.storage.existingPool(id)
		}
		if pools[i] == nil && !v.optional[i] {
			return nil, false
		}
	}
	return pools, true
}

func (v *View[T]) driver(pools []iComponentPool) iComponentPool {
	var smallest iComponentPool
	for i, pool := range pools {
		if v.optional[i] {
			continue
		}
		if smallest == nil || pool.Len() < smallest.Len() {
			smallest = pool
		}
	}
	return smallest
}

func (v *View[T]) populate(resultPtr unsafe.Pointer, pools []iComponentPool, entity EntityId) bool {
	for i, pool := range pools {
		fieldPtr := unsafe.Add(resultPtr, v.fieldOffset[i])

		var componentPtr unsafe.Pointer
		if pool != nil {
			componentPtr = pool.ptr(entity)
		}
		if componentPtr == nil && !v.optional[i] {
			return false
		}
		*(*unsafe.Pointer)(fieldPtr) = componentPtr
	}

	if v.hasEntity {
		*(*EntityId)(unsafe.Add(resultPtr, v.entityOffset)) = entity
	}
	return true
}

// Fill populates the provided struct pointer with component data for the given entity
// Returns false if the entity is missing any required components
// Optional components are set to nil if not present
func (v *View[T]) Fill(id EntityId, ptr *T) bool {
	pools, ok := v.resolve()
	if !ok {
		return false
	}
	return v.populate(unsafe.Pointer(ptr), pools, id)
}

// Get returns a populated view struct for the given entity, or nil if the entity
// doesn't have all the required components
func (v *View[T]) Get(id EntityId) *T {
	var result T
	if !v.Fill(id, &result) {
		return nil
	}
	return &result
}

// Iter yields every entity owning all required components, in the dense
// order of the smallest required pool.
func (v *View[T]) Iter() iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		pools, ok := v.resolve()
		if !ok {
			return
		}

		entities := v.driver(pools).DenseEntities()

		var result T
		resultPtr := unsafe.Pointer(&result)

		for _, entity := range entities {
			if !v.populate(resultPtr, pools, entity) {
				continue
			}
			if !yield(entity, result) {
				return
			}
		}
	}
}

// Values returns an iterator over just the view structs (without entity IDs)
func (v *View[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range v.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// SizeHint returns the length of the driving pool, an upper bound on the
// number of entities Iter yields.
func (v *View[T]) SizeHint() int {
	pools, ok := v.resolve()
	if !ok {
		return 0
	}
	return v.driver(pools).Len()
}

// Driver returns the dense entity array of the smallest required pool.
func (v *View[T]) Driver() []EntityId {
	pools, ok := v.resolve()
	if !ok {
		return nil
	}
	return v.driver(pools).DenseEntities()
}

// Spawn creates a new entity with components copied from the view struct.
// Nil optional fields are skipped.
func (v *View[T]) Spawn(data T) (EntityId, error) {
	structPtr := unsafe.Pointer(&data)

	entity := v.storage.CreateEntity()
	for i, componentType := range v.types {
		componentPtr := *(*unsafe.Pointer)(unsafe.Add(structPtr, v.fieldOffset[i]))
		if componentPtr == nil {
			if !v.optional[i] {
				v.storage.RemoveEntity(entity)
				panic("required component is nil in View.Spawn")
			}
			continue
		}

		component := reflect.NewAt(componentType, componentPtr).Elem().Interface()
		if err := v.storage.AddComponent(entity, component); err != nil {
			v.storage.RemoveEntity(entity)
			return 0, err
		}
	}
	return entity, nil
}
