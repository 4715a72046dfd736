package ecs

import (
	"reflect"
)

// ComponentRegistry assigns ComponentIds to Go types and knows how to build
// a pool for each of them. It is owned by the application root and handed to
// every Storage that should share the same id space.
//
// Ids are assigned from a monotonic counter in registration order. They are
// stable for the lifetime of the registry only and are never persisted.
type ComponentRegistry struct {
	ids       map[reflect.Type]ComponentId
	types     []reflect.Type
	factories []func() iComponentPool
}

// NewComponentRegistry creates an empty component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		ids: make(map[reflect.Type]ComponentId),
	}
}

// RegisterComponent registers T with the registry and returns its id.
// Registering the same type twice returns the existing id.
func RegisterComponent[T any](r *ComponentRegistry) ComponentId {
	t := reflect.TypeFor[T]()
	if id, ok := r.ids[t]; ok {
		return id
	}

	id := ComponentId(len(r.types))
	r.ids[t] = id
	r.types = append(r.types, t)
	r.factories = append(r.factories, func() iComponentPool {
		return NewPool[T]()
	})
	return id
}

// ComponentIdOf returns the id of T if it has been registered.
func ComponentIdOf[T any](r *ComponentRegistry) (ComponentId, bool) {
	return r.Lookup(reflect.TypeFor[T]())
}

// Lookup returns the id registered for t.
func (r *ComponentRegistry) Lookup(t reflect.Type) (ComponentId, bool) {
	id, ok := r.ids[t]
	return id, ok
}

// Type returns the Go type registered under id, or nil.
func (r *ComponentRegistry) Type(id ComponentId) reflect.Type {
	if int(id) >= len(r.types) {
		return nil
	}
	return r.types[id]
}

// Len returns the number of registered component types.
func (r *ComponentRegistry) Len() int {
	return len(r.types)
}

func (r *ComponentRegistry) newPool(id ComponentId) iComponentPool {
	return r.factories[id]()
}
