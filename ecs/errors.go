package ecs

import "errors"

var (
	// ErrInvalidEntity is returned when an entity id was never created or has been removed.
	ErrInvalidEntity = errors.New("invalid entity")
	// ErrComponentNotFound is returned when reading a component the entity does not own.
	ErrComponentNotFound = errors.New("component not found")
	// ErrSingletonNotFound is returned when reading a singleton that was never emplaced.
	ErrSingletonNotFound = errors.New("singleton not found")
	// ErrUnregisteredComponent is returned by the reflection based API for unknown types.
	ErrUnregisteredComponent = errors.New("component type not registered")
)
