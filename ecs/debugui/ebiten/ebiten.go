// Package ebiten provides Dear ImGui backend integration for the Ebiten game engine.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/plus3/sapphire/ecs"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
// It is stored as a singleton so systems can reach the backend.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// Overlay brackets every scheduler tick with an ImGui frame, so deferred
// render commands queued by debugui systems land inside it.
type Overlay struct {
	scheduler *ecs.Scheduler
	backend   *ecs.Singleton[ImguiBackend]
}

// NewOverlay stores backend as the ImguiBackend singleton of storage.
func NewOverlay(storage *ecs.Storage, scheduler *ecs.Scheduler, backend *ebitenbackend.EbitenBackend) *Overlay {
	ecs.EmplaceSingleton(storage, ImguiBackend{EbitenBackend: backend})
	return &Overlay{
		scheduler: scheduler,
		backend:   ecs.NewSingleton[ImguiBackend](storage),
	}
}

// Tick runs one scheduler frame inside an ImGui frame.
func (o *Overlay) Tick(dt float64) {
	b := o.backend.Get()
	b.BeginFrame()
	o.scheduler.Once(dt)
	b.EndFrame()
}

// Draw renders the ImGui draw data on top of screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	o.backend.Get().Draw(screen)
}

// Layout forwards the window size to ImGui.
func (o *Overlay) Layout(outsideWidth, outsideHeight int) {
	o.backend.Get().Layout(outsideWidth, outsideHeight)
}
