package debugui

import (
	"reflect"
	"testing"

	"github.com/plus3/sapphire/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	X, Y float32
}

type velocity struct {
	DX, DY float32
}

type label string

type tagged struct {
	position
	Name   string
	hidden int
}

func newPanelStorage(t *testing.T) (*ecs.Storage, []ecs.EntityId) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[position](registry)
	ecs.RegisterComponent[velocity](registry)
	ecs.RegisterComponent[label](registry)
	storage := ecs.NewStorage(registry)

	var ids []ecs.EntityId
	for _, components := range [][]any{
		{position{1, 2}},
		{position{3, 4}, velocity{1, 0}},
		{label("water")},
		{position{5, 6}, velocity{0, 1}, label("steam")},
	} {
		id, err := storage.Spawn(components...)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return storage, ids
}

func entityIDs(entities []EntityInfo) []ecs.EntityId {
	ids := make([]ecs.EntityId, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

func TestCollectEntities(t *testing.T) {
	storage, ids := newPanelStorage(t)
	storage.RemoveEntity(ids[0])

	entities := collectEntities(storage)
	assert.Equal(t, ids[1:], entityIDs(entities))
	assert.Equal(t, []reflect.Type{reflect.TypeFor[position](), reflect.TypeFor[velocity]()}, entities[0].ComponentTypes)
	assert.Contains(t, entities[2].componentNames, "label")
}

func TestFilterEntities(t *testing.T) {
	storage, ids := newPanelStorage(t)
	entities := collectEntities(storage)

	assert.Len(t, filterEntities(entities, "", nil), 4)
	assert.Equal(t, []ecs.EntityId{ids[1], ids[3]}, entityIDs(filterEntities(entities, "VELOCITY", nil)))
	assert.Equal(t, []ecs.EntityId{ids[2], ids[3]}, entityIDs(filterEntities(entities, "", reflect.TypeFor[label]())))
	assert.Equal(t, []ecs.EntityId{ids[3]}, entityIDs(filterEntities(entities, "velocity", reflect.TypeFor[label]())))
	assert.Empty(t, filterEntities(entities, "pressure", nil))
}

func TestSortEntities(t *testing.T) {
	storage, ids := newPanelStorage(t)
	entities := collectEntities(storage)

	sortEntities(entities, 0, false)
	assert.Equal(t, []ecs.EntityId{ids[3], ids[2], ids[1], ids[0]}, entityIDs(entities))

	sortEntities(entities, 2, true)
	assert.Equal(t, ids[3], entities[3].ID, "most components last")
	assert.Len(t, entities[0].ComponentTypes, 1)

	sortEntities(entities, 2, false)
	assert.Equal(t, ids[3], entities[0].ID)
}

func TestMatchEntities(t *testing.T) {
	storage, ids := newPanelStorage(t)

	assert.Equal(t, []ecs.EntityId{ids[0], ids[1], ids[3]}, matchEntities(storage, []reflect.Type{reflect.TypeFor[position]()}))
	assert.Equal(t, []ecs.EntityId{ids[3]}, matchEntities(storage, []reflect.Type{reflect.TypeFor[velocity](), reflect.TypeFor[label]()}))
	assert.Len(t, matchEntities(storage, nil), 4, "no types matches every live entity")
}

func TestPoolsCollectAndSort(t *testing.T) {
	storage, _ := newPanelStorage(t)

	pools := collectPools(storage.CollectStats(), nil)
	require.Len(t, pools, 3)
	assert.Equal(t, reflect.TypeFor[position](), pools[0].Type)

	sortPools(pools, 2, false)
	assert.Equal(t, 3, pools[0].EntityCount)
	assert.Equal(t, reflect.TypeFor[position](), pools[0].Type)

	sortPools(pools, 1, true)
	assert.Equal(t, reflect.TypeFor[label](), pools[0].Type)

	assert.Equal(t, []reflect.Type{reflect.TypeFor[label](), reflect.TypeFor[position](), reflect.TypeFor[velocity]()}, poolTypes(storage))
}

func TestReflectionCacheSkipsUnexported(t *testing.T) {
	cache := NewReflectionCache()

	fields := cache.GetFields(reflect.TypeFor[tagged]())
	require.Len(t, fields, 1)
	assert.Equal(t, "Name", fields[0].Name)
	assert.Equal(t, 1, fields[0].Index)

	assert.Nil(t, cache.GetFields(reflect.TypeFor[label]()))

	again := cache.GetFields(reflect.TypeFor[tagged]())
	assert.Equal(t, fields, again)
}
