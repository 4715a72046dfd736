package main

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"text/template"
	"time"

	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
)

type Report struct {
	// Configuration
	Duration  time.Duration
	Mode      string
	Particles int
	Params    sph.Params

	// Results
	TotalUpdates   int64
	TotalTime      time.Duration
	UpdateTime     Stats
	Passes         []PassStats
	NaNCount       int
	MeanDensity    float32
	MaxSpeed       float32
	GCPauseMetrics bool
	MemStatsStart  runtime.MemStats
	MemStatsEnd    runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

// PassSample is the wall time of one solver pass in one frame.
type PassSample struct {
	Name     string
	Duration time.Duration
}

// PassStats accumulates one pass across the run.
type PassStats struct {
	Name  string
	Total time.Duration
	Count int64
}

func (p PassStats) Avg() time.Duration {
	if p.Count == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Count)
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

// AddPasses folds one frame of pass timings into the report. Passes keep the
// order of their first appearance.
func (r *Report) AddPasses(samples []PassSample) {
	for _, sample := range samples {
		i := 0
		for i < len(r.Passes) && r.Passes[i].Name != sample.Name {
			i++
		}
		if i == len(r.Passes) {
			r.Passes = append(r.Passes, PassStats{Name: sample.Name})
		}
		r.Passes[i].Total += sample.Duration
		r.Passes[i].Count++
	}
}

// Finalize summarizes the particle state left in storage.
func (r *Report) Finalize(storage *ecs.Storage) {
	var densitySum float32
	densities := ecs.PoolOf[sph.Density](storage).Dense()
	for _, rho := range densities {
		densitySum += float32(rho)
	}
	if len(densities) > 0 {
		r.MeanDensity = densitySum / float32(len(densities))
	}

	r.NaNCount = 0
	r.MaxSpeed = 0
	for e, pos := range ecs.PoolOf[sph.Position](storage).Iter() {
		vel, err := ecs.Get[sph.Velocity](storage, e)
		if err != nil {
			continue
		}
		if !finite(pos.Vec3[0], pos.Vec3[1], pos.Vec3[2], vel.Vec3[0], vel.Vec3[1], vel.Vec3[2]) {
			r.NaNCount++
			continue
		}
		r.MaxSpeed = max(r.MaxSpeed, vel.Vec3.Len())
	}
}

func finite(values ...float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# SPH Stress Test Report

## Test Configuration
- **Run Duration:** {{.Duration}}
- **Mode:** {{.Mode}}
- **Particles:** {{.Particles}}
- **Smoothing Length:** {{.Params.SmoothingLength}}
- **Cell Size / Grid:** {{.Params.CellSize}} / {{.Params.GridRes}}
- **Time Step:** {{.Params.TimeStep}}

## Performance Results
- **Total Updates:** {{.TotalUpdates}}
- **Total Test Time:** {{.TotalTime}}
- **Update Time (Frame):**
  - **Avg:** {{.UpdateTime.Avg}}
  - **Min:** {{.UpdateTime.Min}}
  - **Max:** {{.UpdateTime.Max}}
{{- if .Passes}}
- **Pass Time (Avg):**
{{- range .Passes}}
  - **{{.Name}}:** {{.Avg}}
{{- end}}
{{- end}}

## Final State
- **Mean Density:** {{printf "%.4f" .MeanDensity}}
- **Max Speed:** {{printf "%.4f" .MaxSpeed}}
- **Non-finite Particles:** {{.NaNCount}}

## Memory Usage
- Heap Alloc:     {{mb .MemStatsStart.HeapAlloc}} MB (start) -> {{mb .MemStatsEnd.HeapAlloc}} MB (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc | mb}} MB
- Total Alloc:    {{mb .MemStatsStart.TotalAlloc}} MB (start) -> {{mb .MemStatsEnd.TotalAlloc}} MB (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc | mb}} MB
- Sys Memory:     {{mb .MemStatsStart.Sys}} MB (start) -> {{mb .MemStatsEnd.Sys}} MB (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys | mb}} MB
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}

{{if .GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{ usub .MemStatsEnd.NumGC .MemStatsStart.NumGC }}
{{end}}
`

	fm := template.FuncMap{
		"mb": func(v any) string {
			switch val := v.(type) {
			case uint64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			case int64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			default:
				return "N/A"
			}
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
