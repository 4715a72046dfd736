package debugui

import (
	"reflect"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/sapphire/ecs"
)

func NewSingletonEditorComponent() SingletonEditorComponent {
	return SingletonEditorComponent{}
}

// Render lists every singleton and edits the selected one in place. Tunable
// parameters kept as singletons take effect on the next frame.
func (se *SingletonEditorComponent) Render(storage *ecs.Storage) {
	if !imgui.BeginV("Singletons", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	types := storage.SingletonTypes()
	if len(types) == 0 {
		imgui.Text("No singletons")
		return
	}

	for _, t := range types {
		if imgui.SelectableBoolV(t.String(), se.selected == t, imgui.SelectableFlagsNone, imgui.NewVec2(0, 0)) {
			se.selected = t
		}
	}
	imgui.Separator()

	if se.selected == nil {
		return
	}
	value := storage.SingletonOf(se.selected)
	if value == nil {
		se.selected = nil
		return
	}
	editValue(se.selected.Name(), reflect.ValueOf(value).Elem())
}
