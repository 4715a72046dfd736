package ecs

import "math"

// EntityId is an opaque handle for an entity. Ids are handed out by an
// append-only allocator and are never reused after RemoveEntity.
type EntityId uint32

// InvalidIndex marks an absent slot in a pool's sparse array.
const InvalidIndex uint32 = math.MaxUint32

// ComponentId identifies a registered component type within one ComponentRegistry.
type ComponentId uint32
