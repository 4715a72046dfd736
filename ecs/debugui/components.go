package debugui

import (
	"reflect"

	"github.com/plus3/sapphire/ecs"
)

type EntityBrowserComponent struct {
	cache              *EntityBrowserCache
	selectedEntityId   ecs.EntityId
	hasSelection       bool
	filterText         string
	filterComponent    reflect.Type
	maxEntitiesPerPage int
	currentPage        int
}

type ComponentInspectorComponent struct {
	selectedEntityId ecs.EntityId
}

type PoolViewerComponent struct {
	pools         []PoolInfo
	selected      reflect.Type
	sortColumn    int
	sortAscending bool
}

type PerformanceStatsComponent struct {
	historyFrames int
	frameHistory  []float32
	frameIndex    int
}

type QueryDebuggerComponent struct {
	selectedComponentTypes map[reflect.Type]bool
	maxListed              int
}

type SingletonEditorComponent struct {
	selected reflect.Type
}
