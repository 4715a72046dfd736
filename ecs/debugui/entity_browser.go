package debugui

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/sapphire/ecs"
)

type EntityInfo struct {
	ID             ecs.EntityId
	ComponentTypes []reflect.Type
	componentNames string
}

type EntityBrowserCache struct {
	entities      []EntityInfo
	lastCount     int
	lastPoolSizes int
	sortColumn    int
	sortAscending bool
}

func NewEntityBrowserComponent(maxEntitiesPerPage int) EntityBrowserComponent {
	return EntityBrowserComponent{
		cache: &EntityBrowserCache{
			lastCount:     -1,
			sortColumn:    0,
			sortAscending: true,
		},
		maxEntitiesPerPage: maxEntitiesPerPage,
	}
}

func (eb *EntityBrowserComponent) Render(storage *ecs.Storage) {
	if !imgui.BeginV("Entity Browser", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	eb.rebuildCacheIfNeeded(storage)

	imgui.InputTextWithHint("##search", "Search...", &eb.filterText, imgui.InputTextFlagsNone, nil)
	imgui.SameLine()
	if imgui.Button("Clear Filter") {
		eb.filterText = ""
		eb.filterComponent = nil
		eb.currentPage = 0
	}
	if eb.filterComponent != nil {
		imgui.Text("Only entities with " + eb.filterComponent.String())
	}

	filteredEntities := filterEntities(eb.cache.entities, eb.filterText, eb.filterComponent)
	pages := max(1, (len(filteredEntities)+eb.maxEntitiesPerPage-1)/eb.maxEntitiesPerPage)
	eb.currentPage = min(eb.currentPage, pages-1)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("EntityTable", 3, tableFlags, imgui.NewVec2(0, -imgui.FrameHeightWithSpacing()), 0) {
		imgui.TableSetupColumn("Entity ID")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Count")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			eb.cache.sortColumn = int(spec.ColumnIndex())
			eb.cache.sortAscending = spec.SortDirection() == imgui.SortDirectionAscending
			sortEntities(eb.cache.entities, eb.cache.sortColumn, eb.cache.sortAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		start := eb.currentPage * eb.maxEntitiesPerPage
		end := min(start+eb.maxEntitiesPerPage, len(filteredEntities))
		for _, entity := range filteredEntities[start:end] {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			isSelected := eb.hasSelection && eb.selectedEntityId == entity.ID
			if imgui.SelectableBoolV(fmt.Sprintf("%d", entity.ID), isSelected, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				eb.selectedEntityId = entity.ID
				eb.hasSelection = true
			}

			imgui.TableNextColumn()
			imgui.Text(entity.componentNames)

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", len(entity.ComponentTypes)))
		}

		imgui.EndTable()
	}

	imgui.Text(fmt.Sprintf("Page %d / %d (%d entities)", eb.currentPage+1, pages, len(filteredEntities)))
	imgui.SameLine()
	if imgui.Button("Prev") && eb.currentPage > 0 {
		eb.currentPage--
	}
	imgui.SameLine()
	if imgui.Button("Next") && eb.currentPage < pages-1 {
		eb.currentPage++
	}
}

// FilterByComponent restricts the listing to entities owning t. A nil t
// removes the restriction.
func (eb *EntityBrowserComponent) FilterByComponent(t reflect.Type) {
	eb.filterComponent = t
	eb.currentPage = 0
}

// GetSelectedEntity returns the selected entity, if any.
func (eb *EntityBrowserComponent) GetSelectedEntity() (ecs.EntityId, bool) {
	return eb.selectedEntityId, eb.hasSelection
}

// rebuildCacheIfNeeded rebuilds when the entity count or the total pool
// occupancy changed since the last frame.
func (eb *EntityBrowserComponent) rebuildCacheIfNeeded(storage *ecs.Storage) {
	poolSizes := 0
	for _, pool := range storage.CollectStats().PoolBreakdown {
		poolSizes += pool.EntityCount
	}
	if eb.cache.lastCount == storage.EntityCount() && eb.cache.lastPoolSizes == poolSizes {
		return
	}
	eb.cache.lastCount = storage.EntityCount()
	eb.cache.lastPoolSizes = poolSizes
	eb.cache.entities = collectEntities(storage)
	sortEntities(eb.cache.entities, eb.cache.sortColumn, eb.cache.sortAscending)
}

func collectEntities(storage *ecs.Storage) []EntityInfo {
	entities := make([]EntityInfo, 0, storage.EntityCount())
	for id := range storage.Entities() {
		types := storage.ComponentTypes(id)
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		entities = append(entities, EntityInfo{
			ID:             id,
			ComponentTypes: types,
			componentNames: strings.Join(names, ", "),
		})
	}
	return entities
}

func sortEntities(entities []EntityInfo, column int, ascending bool) {
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if !ascending {
			a, b = b, a
		}
		var less bool

		switch column {
		case 1:
			less = a.componentNames < b.componentNames
		case 2:
			less = len(a.ComponentTypes) < len(b.ComponentTypes)
		default:
			less = a.ID < b.ID
		}

		return less
	})
}

// filterEntities keeps entities whose id or component names contain text
// and, when component is set, that own a component of that type.
func filterEntities(entities []EntityInfo, text string, component reflect.Type) []EntityInfo {
	if text == "" && component == nil {
		return entities
	}

	filtered := make([]EntityInfo, 0, len(entities))
	needle := strings.ToLower(text)

	for _, entity := range entities {
		if component != nil && !hasType(entity.ComponentTypes, component) {
			continue
		}
		if needle != "" &&
			!strings.Contains(fmt.Sprintf("%d", entity.ID), needle) &&
			!strings.Contains(strings.ToLower(entity.componentNames), needle) {
			continue
		}
		filtered = append(filtered, entity)
	}
	return filtered
}

func hasType(types []reflect.Type, t reflect.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
