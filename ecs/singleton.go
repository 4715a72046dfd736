package ecs

import (
	"fmt"
	"reflect"
	"sort"
)

// EmplaceSingleton stores value as the process-wide instance of T, replacing
// any previous one. Singletons are not bound to an entity; use them for
// input state or tunable simulation parameters.
func EmplaceSingleton[T any](s *Storage, value T) *T {
	id := RegisterComponent[T](s.registry)
	if existing, ok := s.singletons.Get(id); ok {
		ptr := existing.(*T)
		*ptr = value
		return ptr
	}
	ptr := new(T)
	*ptr = value
	s.singletons.Put(id, ptr)
	return ptr
}

// GetSingleton returns the instance of T, or ErrSingletonNotFound.
func GetSingleton[T any](s *Storage) (*T, error) {
	if ptr := lookupSingleton[T](s); ptr != nil {
		return ptr, nil
	}
	return nil, fmt.Errorf("singleton %s: %w", reflect.TypeFor[T](), ErrSingletonNotFound)
}

// HasSingleton reports whether an instance of T exists.
func HasSingleton[T any](s *Storage) bool {
	return lookupSingleton[T](s) != nil
}

// RemoveSingleton drops the instance of T if present.
func RemoveSingleton[T any](s *Storage) {
	if id, ok := ComponentIdOf[T](s.registry); ok {
		s.singletons.Del(id)
	}
}

func lookupSingleton[T any](s *Storage) *T {
	id, ok := ComponentIdOf[T](s.registry)
	if !ok {
		return nil
	}
	v, ok := s.singletons.Get(id)
	if !ok {
		return nil
	}
	return v.(*T)
}

// ReadSingleton fills ptr, which must be a **T, with the instance of T.
// Returns false if no such singleton exists.
func (s *Storage) ReadSingleton(ptr any) bool {
	target := reflect.ValueOf(ptr)
	if target.Kind() != reflect.Ptr || target.Elem().Kind() != reflect.Ptr {
		panic("ReadSingleton expects a pointer to a pointer")
	}

	id, ok := s.registry.Lookup(target.Elem().Type().Elem())
	if !ok {
		return false
	}
	v, ok := s.singletons.Get(id)
	if !ok {
		return false
	}
	target.Elem().Set(reflect.ValueOf(v))
	return true
}

// SingletonOf returns a pointer to the singleton of type t, or nil.
func (s *Storage) SingletonOf(t reflect.Type) any {
	id, ok := s.registry.Lookup(t)
	if !ok {
		return nil
	}
	v, _ := s.singletons.Get(id)
	return v
}

// SingletonTypes lists the type of every stored singleton, sorted by name.
func (s *Storage) SingletonTypes() []reflect.Type {
	types := make([]reflect.Type, 0, s.singletons.Len())
	s.singletons.ForEach(func(id ComponentId, _ any) bool {
		types = append(types, s.registry.Type(id))
		return true
	})
	sort.Slice(types, func(i, j int) bool {
		return types[i].String() < types[j].String()
	})
	return types
}

// SingletonCount returns the number of singletons currently stored.
func (s *Storage) SingletonCount() int {
	return s.singletons.Len()
}

// Singleton is an accessor field for systems. The scheduler initializes it
// on Register, after which Get returns the current instance of T.
type Singleton[T any] struct {
	storage *Storage
}

// NewSingleton creates a Singleton accessor for the given storage.
// If the singleton doesn't exist yet it is created from initializer, or
// from the zero value when no initializer is given.
func NewSingleton[T any](storage *Storage, initializer ...T) *Singleton[T] {
	if !HasSingleton[T](storage) {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		EmplaceSingleton(storage, value)
	}
	return &Singleton[T]{storage: storage}
}

// Init binds the accessor to a storage.
// This is called automatically by the Scheduler during system registration.
func (s *Singleton[T]) Init(storage *Storage) {
	s.storage = storage
}

// Get returns a pointer to the singleton, or nil if it does not exist.
func (s *Singleton[T]) Get() *T {
	if s.storage == nil {
		return nil
	}
	return lookupSingleton[T](s.storage)
}

// Exists returns true if the singleton has been added to storage
func (s *Singleton[T]) Exists() bool {
	return s.Get() != nil
}
