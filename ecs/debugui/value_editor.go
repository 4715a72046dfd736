package debugui

import (
	"fmt"
	"reflect"

	"github.com/AllenDang/cimgui-go/imgui"
)

// editValue draws an editor for v and writes edits straight through it. v
// must be addressable, which holds for any value reached through the
// pointers the storage hands out.
func editValue(label string, v reflect.Value) {
	if !v.IsValid() {
		imgui.Text(label + ": <invalid>")
		return
	}
	id := "##" + label

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := int32(v.Int())
		fieldLabel(label)
		if imgui.InputInt(id, &n) && v.CanSet() && !v.OverflowInt(int64(n)) {
			v.SetInt(int64(n))
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := int32(v.Uint())
		fieldLabel(label)
		if imgui.InputInt(id, &n) && v.CanSet() && n >= 0 && !v.OverflowUint(uint64(n)) {
			v.SetUint(uint64(n))
		}

	case reflect.Float32, reflect.Float64:
		f := float32(v.Float())
		fieldLabel(label)
		if imgui.InputFloat(id, &f) && v.CanSet() {
			v.SetFloat(float64(f))
		}

	case reflect.Bool:
		b := v.Bool()
		if imgui.Checkbox(label, &b) && v.CanSet() {
			v.SetBool(b)
		}

	case reflect.String:
		s := v.String()
		fieldLabel(label)
		if imgui.InputTextWithHint(id, "", &s, imgui.InputTextFlagsNone, nil) && v.CanSet() {
			v.SetString(s)
		}

	case reflect.Array:
		if vec, ok := asVec3(v); ok {
			fieldLabel(label)
			if imgui.InputFloat3(id, vec) && v.CanSet() {
				v.Set(reflect.ValueOf(*vec).Convert(v.Type()))
			}
			return
		}
		if imgui.TreeNodeStr(fmt.Sprintf("%s [%d]", label, v.Len())) {
			for i := range v.Len() {
				editValue(fmt.Sprintf("%s[%d]", label, i), v.Index(i))
			}
			imgui.TreePop()
		}

	case reflect.Struct:
		fields := globalReflectionCache.GetFields(v.Type())
		// Embedded fields are drawn inline, the way Go promotes them.
		for _, f := range fields {
			if f.Embedded {
				editValue(f.Name, v.Field(f.Index))
			}
		}
		if hasNamedFields(fields) && imgui.TreeNodeStr(label) {
			for _, f := range fields {
				if !f.Embedded {
					editValue(f.Name, v.Field(f.Index))
				}
			}
			imgui.TreePop()
		}

	case reflect.Pointer:
		if v.IsNil() {
			imgui.Text(label + ": nil")
			return
		}
		editValue(label, v.Elem())

	case reflect.Slice:
		imgui.Text(fmt.Sprintf("%s: [%d items]", label, v.Len()))

	case reflect.Map:
		imgui.Text(fmt.Sprintf("%s: map[%d items]", label, v.Len()))

	default:
		imgui.Text(fmt.Sprintf("%s: %v", label, v))
	}
}

func fieldLabel(label string) {
	imgui.Text(label + ":")
	imgui.SameLine()
	imgui.SetNextItemWidth(180)
}

func hasNamedFields(fields []FieldInfo) bool {
	for _, f := range fields {
		if !f.Embedded {
			return true
		}
	}
	return false
}

// asVec3 copies a [3]float32 shaped array, such as mgl32.Vec3, so it can be
// edited with a single three component input.
func asVec3(v reflect.Value) (*[3]float32, bool) {
	if v.Len() != 3 || v.Type().Elem() != reflect.TypeFor[float32]() {
		return nil, false
	}
	var out [3]float32
	for i := range 3 {
		out[i] = float32(v.Index(i).Float())
	}
	return &out, true
}
