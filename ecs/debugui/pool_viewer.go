package debugui

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/sapphire/ecs"
)

type PoolInfo struct {
	ID          ecs.ComponentId
	Type        reflect.Type
	EntityCount int
}

func NewPoolViewerComponent() PoolViewerComponent {
	return PoolViewerComponent{
		sortColumn:    2,
		sortAscending: false,
	}
}

// Render lists every component pool with its occupancy. It returns the pool
// type clicked this frame, or nil.
func (pv *PoolViewerComponent) Render(storage *ecs.Storage) reflect.Type {
	if !imgui.BeginV("Component Pools", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return nil
	}
	defer imgui.End()

	pv.pools = collectPools(storage.CollectStats(), pv.pools[:0])
	sortPools(pv.pools, pv.sortColumn, pv.sortAscending)

	maxEntityCount := 0
	for _, pool := range pv.pools {
		maxEntityCount = max(maxEntityCount, pool.EntityCount)
	}

	var clicked reflect.Type
	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("PoolTable", 3, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Id")
		imgui.TableSetupColumn("Component")
		imgui.TableSetupColumn("Entities")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			pv.sortColumn = int(spec.ColumnIndex())
			pv.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			sortPools(pv.pools, pv.sortColumn, pv.sortAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		for _, pool := range pv.pools {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			if imgui.SelectableBoolV(fmt.Sprintf("%d", pool.ID), pv.selected == pool.Type, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				pv.selected = pool.Type
				clicked = pool.Type
			}

			imgui.TableNextColumn()
			imgui.Text(pool.Type.String())

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", pool.EntityCount))

			if maxEntityCount > 0 {
				barWidth := float32(pool.EntityCount) / float32(maxEntityCount) * 80.0
				imgui.SameLine()
				drawList := imgui.WindowDrawList()
				pos := imgui.CursorScreenPos()
				color := imgui.ColorU32Vec4(imgui.NewVec4(0.2, 0.6, 0.8, 0.6))
				drawList.AddRectFilled(pos, imgui.NewVec2(pos.X+barWidth, pos.Y+10), color)
			}
		}

		imgui.EndTable()
	}
	return clicked
}

func collectPools(stats *ecs.StorageStats, dst []PoolInfo) []PoolInfo {
	for _, pool := range stats.PoolBreakdown {
		dst = append(dst, PoolInfo{ID: pool.ID, Type: pool.Type, EntityCount: pool.EntityCount})
	}
	return dst
}

func sortPools(pools []PoolInfo, column int, ascending bool) {
	sort.SliceStable(pools, func(i, j int) bool {
		a, b := pools[i], pools[j]
		if !ascending {
			a, b = b, a
		}
		var less bool

		switch column {
		case 0:
			less = a.ID < b.ID
		case 1:
			less = a.Type.String() < b.Type.String()
		default:
			less = a.EntityCount < b.EntityCount
		}

		return less
	})
}
