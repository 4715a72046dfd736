package debugui

import (
	"fmt"
	"reflect"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/sapphire/ecs"
)

func NewComponentInspectorComponent() ComponentInspectorComponent {
	return ComponentInspectorComponent{}
}

// Render shows every component of the selected entity with editable fields.
// Edits go straight into the pool slot.
func (ci *ComponentInspectorComponent) Render(storage *ecs.Storage, selectedEntityId ecs.EntityId, hasSelection bool) {
	if !imgui.BeginV("Component Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	if !hasSelection {
		imgui.Text("No entity selected")
		return
	}
	ci.selectedEntityId = selectedEntityId

	if !storage.Alive(ci.selectedEntityId) {
		imgui.Text(fmt.Sprintf("Entity %d was removed", ci.selectedEntityId))
		return
	}

	types := storage.ComponentTypes(ci.selectedEntityId)
	imgui.Text(fmt.Sprintf("Entity ID: %d", ci.selectedEntityId))
	imgui.Text(fmt.Sprintf("Components: %d", len(types)))
	imgui.Separator()

	for _, compType := range types {
		if imgui.TreeNodeStr(compType.String()) {
			ci.renderComponent(storage, compType)
			imgui.TreePop()
		}
	}

	imgui.Separator()
	if imgui.Button("Remove Entity") {
		storage.RemoveEntity(ci.selectedEntityId)
	}
}

func (ci *ComponentInspectorComponent) renderComponent(storage *ecs.Storage, compType reflect.Type) {
	component := storage.GetComponent(ci.selectedEntityId, compType)
	if component == nil {
		imgui.Text("<missing>")
		return
	}
	editValue(compType.Name(), reflect.ValueOf(component).Elem())

	if imgui.SmallButton("Remove##" + compType.String()) {
		storage.RemoveComponent(ci.selectedEntityId, compType)
	}
}
