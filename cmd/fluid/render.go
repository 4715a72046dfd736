package main

import (
	"fmt"
	"image/color"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"github.com/plus3/sapphire/sph/compute"
)

var background = color.RGBA{16, 18, 24, 255}

type renderer struct {
	storage   *ecs.Storage
	particles *ecs.View[struct {
		*sph.Position
		*sph.Density
	}]
	pointSize float32
}

func newRenderer(storage *ecs.Storage, pointSize float32) *renderer {
	return &renderer{
		storage: storage,
		particles: ecs.NewView[struct {
			*sph.Position
			*sph.Density
		}](storage),
		pointSize: pointSize,
	}
}

// draw projects every particle and shades it by density relative to the
// rest density.
func (r *renderer) draw(screen *ebiten.Image, camera *sph.Camera) {
	screen.Fill(background)

	rest := sph.DefaultParams().RestDensity
	if params, err := ecs.GetSingleton[sph.Params](r.storage); err == nil {
		rest = params.RestDensity
	}

	viewProj := camera.Projection.Mul4(camera.View)
	focal := camera.Projection.At(1, 1) * camera.Height / 2

	for p := range r.particles.Values() {
		clip := viewProj.Mul4x1(p.Position.Vec3.Vec4(1))
		if clip[3] <= 0 {
			continue
		}
		ndc := clip.Vec3().Mul(1 / clip[3])
		if ndc[0] < -1 || ndc[0] > 1 || ndc[1] < -1 || ndc[1] > 1 {
			continue
		}
		x := (ndc[0] + 1) / 2 * camera.Width
		y := (1 - ndc[1]) / 2 * camera.Height
		radius := max(r.pointSize*p.Position.Radius*focal/clip[3], 1)
		vector.DrawFilledCircle(screen, x, y, radius, densityColor(float32(*p.Density), rest), true)
	}
}

// densityColor blends from deep blue at zero density to white at twice the
// rest density.
func densityColor(rho, rest float32) color.RGBA {
	t := float32(0)
	if rest > 0 {
		t = mgl32.Clamp(rho/(2*rest), 0, 1)
	}
	return color.RGBA{
		R: uint8(40 + 215*t),
		G: uint8(90 + 165*t),
		B: 255,
		A: 255,
	}
}

// statsWindow shows step timings and a few live parameters.
type statsWindow struct {
	storage  *ecs.Storage
	mode     string
	solver   *sph.Solver
	pipeline *compute.Pipeline
	spawn    *sph.SpawnSystem
}

func (w *statsWindow) render() {
	imgui.SetNextWindowPosV(imgui.NewVec2(10, 10), imgui.CondOnce, imgui.NewVec2(0, 0))
	imgui.SetNextWindowSizeV(imgui.NewVec2(300, 260), imgui.CondOnce)
	if !imgui.BeginV("Fluid", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	imgui.Text(fmt.Sprintf("Mode: %s", w.mode))
	imgui.Text(fmt.Sprintf("FPS: %.1f  TPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
	imgui.Text(fmt.Sprintf("Particles: %d", ecs.PoolOf[sph.Position](w.storage).Len()))

	imgui.Separator()
	switch {
	case w.solver != nil:
		stats := w.solver.Stats()
		imgui.Text(fmt.Sprintf("Chunks: %d  Mean neighbors: %.1f", stats.Chunks, stats.MeanNeighbors))
		imgui.Text(fmt.Sprintf("Hash: %s", stats.Hash))
		imgui.Text(fmt.Sprintf("Density: %s", stats.Density))
		imgui.Text(fmt.Sprintf("Force: %s", stats.Force))
		imgui.Text(fmt.Sprintf("Integrate: %s", stats.Integrate))
	case w.pipeline != nil:
		stats := w.pipeline.Stats()
		for _, stage := range []string{compute.StageHash, compute.StageDensity, compute.StageForce, compute.StageIntegrate} {
			imgui.Text(fmt.Sprintf("%s: %s", stage, stats.Stages[stage]))
		}
	}

	if params, err := ecs.GetSingleton[sph.Params](w.storage); err == nil {
		imgui.Separator()
		imgui.InputFloat("Stiffness", &params.Stiffness)
		imgui.InputFloat("Gravity", &params.Gravity)
		imgui.InputFloat("Rest density", &params.RestDensity)
	}

	if w.spawn != nil && w.spawn.Err != nil {
		imgui.Separator()
		imgui.TextColored(imgui.NewVec4(1, 0.4, 0.4, 1), w.spawn.Err.Error())
	}
}
