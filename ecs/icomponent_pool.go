package ecs

import (
	"reflect"
	"unsafe"
)

// iComponentPool is the type-erased view of a Pool[T] held by Storage.
type iComponentPool interface {
	Remove(entity EntityId)
	Has(entity EntityId) bool
	Len() int
	DenseEntities() []EntityId
	Type() reflect.Type

	addAny(entity EntityId, item any) bool
	getAny(entity EntityId) any
	ptr(entity EntityId) unsafe.Pointer
}
