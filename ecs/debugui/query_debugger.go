package debugui

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/sapphire/ecs"
)

func NewQueryDebuggerComponent() QueryDebuggerComponent {
	return QueryDebuggerComponent{
		selectedComponentTypes: make(map[reflect.Type]bool),
		maxListed:              50,
	}
}

// Render lets the user pick component types and shows which entities own
// all of them, which is what a view over those types would yield.
func (qd *QueryDebuggerComponent) Render(storage *ecs.Storage) {
	if !imgui.BeginV("Query Debugger", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	imgui.Text("Select Component Types:")
	imgui.Separator()

	if imgui.Button("Clear All") {
		clear(qd.selectedComponentTypes)
	}

	for _, compType := range poolTypes(storage) {
		selected := qd.selectedComponentTypes[compType]
		if imgui.Checkbox(compType.String(), &selected) {
			if selected {
				qd.selectedComponentTypes[compType] = true
			} else {
				delete(qd.selectedComponentTypes, compType)
			}
		}
	}

	imgui.Separator()

	if len(qd.selectedComponentTypes) == 0 {
		imgui.Text("No component types selected")
		return
	}

	selected := make([]reflect.Type, 0, len(qd.selectedComponentTypes))
	for t := range qd.selectedComponentTypes {
		selected = append(selected, t)
	}
	matches := matchEntities(storage, selected)

	imgui.Text(fmt.Sprintf("Matching Entities: %d", len(matches)))
	if imgui.TreeNodeStr("Entities") {
		for _, id := range matches[:min(len(matches), qd.maxListed)] {
			imgui.BulletText(fmt.Sprintf("%d", id))
		}
		if len(matches) > qd.maxListed {
			imgui.Text(fmt.Sprintf("... and %d more", len(matches)-qd.maxListed))
		}
		imgui.TreePop()
	}
}

// poolTypes lists the component type of every pool, sorted by name.
func poolTypes(storage *ecs.Storage) []reflect.Type {
	stats := storage.CollectStats()
	types := make([]reflect.Type, 0, len(stats.PoolBreakdown))
	for _, pool := range stats.PoolBreakdown {
		types = append(types, pool.Type)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].String() < types[j].String()
	})
	return types
}

// matchEntities returns, in ascending id order, every entity owning all of
// the given types.
func matchEntities(storage *ecs.Storage, types []reflect.Type) []ecs.EntityId {
	var matches []ecs.EntityId
	for id := range storage.Entities() {
		owned := true
		for _, t := range types {
			if !storage.HasComponent(id, t) {
				owned = false
				break
			}
		}
		if owned {
			matches = append(matches, id)
		}
	}
	return matches
}
