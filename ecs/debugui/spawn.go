package debugui

import (
	"github.com/plus3/sapphire/ecs"
)

// SpawnDebugUI creates one entity per built-in panel. PanelSystem renders them.
func SpawnDebugUI(storage *ecs.Storage) error {
	panels := []any{
		NewEntityBrowserComponent(100),
		NewComponentInspectorComponent(),
		NewPoolViewerComponent(),
		NewPerformanceStatsComponent(120),
		NewQueryDebuggerComponent(),
		NewSingletonEditorComponent(),
	}
	for _, panel := range panels {
		if _, err := storage.Spawn(panel); err != nil {
			return err
		}
	}
	return nil
}

func RegisterDebugUIComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[ImguiItem](registry)
	ecs.RegisterComponent[ImguiInputState](registry)
	ecs.RegisterComponent[EntityBrowserComponent](registry)
	ecs.RegisterComponent[ComponentInspectorComponent](registry)
	ecs.RegisterComponent[PoolViewerComponent](registry)
	ecs.RegisterComponent[PerformanceStatsComponent](registry)
	ecs.RegisterComponent[QueryDebuggerComponent](registry)
	ecs.RegisterComponent[SingletonEditorComponent](registry)
}

// PanelSystem renders the built-in panels spawned by SpawnDebugUI. The
// entity browser selection drives the inspector and a click in the pool
// viewer filters the browser.
type PanelSystem struct {
	// Scheduler, when set, feeds per-system timings to the performance panel.
	Scheduler *ecs.Scheduler

	Browsers    ecs.Query[struct{ *EntityBrowserComponent }]
	Inspectors  ecs.Query[struct{ *ComponentInspectorComponent }]
	PoolViewers ecs.Query[struct{ *PoolViewerComponent }]
	Performance ecs.Query[struct{ *PerformanceStatsComponent }]
	Queries     ecs.Query[struct{ *QueryDebuggerComponent }]
	Singletons  ecs.Query[struct{ *SingletonEditorComponent }]
}

func (p *PanelSystem) Phase() ecs.Phase {
	return ecs.PhaseRender
}

func (p *PanelSystem) Execute(frame *ecs.UpdateFrame) {
	storage := frame.Storage
	dt := float32(frame.DeltaTime)

	var browser *EntityBrowserComponent
	for b := range p.Browsers.Values() {
		browser = b.EntityBrowserComponent
	}
	var pools []*PoolViewerComponent
	for v := range p.PoolViewers.Values() {
		pools = append(pools, v.PoolViewerComponent)
	}
	var inspectors []*ComponentInspectorComponent
	for v := range p.Inspectors.Values() {
		inspectors = append(inspectors, v.ComponentInspectorComponent)
	}
	var perf []*PerformanceStatsComponent
	for v := range p.Performance.Values() {
		perf = append(perf, v.PerformanceStatsComponent)
	}
	var queries []*QueryDebuggerComponent
	for v := range p.Queries.Values() {
		queries = append(queries, v.QueryDebuggerComponent)
	}
	var singletons []*SingletonEditorComponent
	for v := range p.Singletons.Values() {
		singletons = append(singletons, v.SingletonEditorComponent)
	}

	frame.Commands.Defer(func() {
		for _, pv := range pools {
			if t := pv.Render(storage); t != nil && browser != nil {
				browser.FilterByComponent(t)
			}
		}
		if browser != nil {
			browser.Render(storage)
			selected, ok := browser.GetSelectedEntity()
			for _, ci := range inspectors {
				ci.Render(storage, selected, ok)
			}
		}
		var schedulerStats *ecs.SchedulerStats
		if p.Scheduler != nil {
			schedulerStats = p.Scheduler.GetStats()
		}
		for _, ps := range perf {
			ps.Render(storage, schedulerStats, dt)
		}
		for _, qd := range queries {
			qd.Render(storage)
		}
		for _, se := range singletons {
			se.Render(storage)
		}
	})
}
