package ebiten_test

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/ecs/debugui"
	debugui_ebiten "github.com/plus3/sapphire/ecs/debugui/ebiten"
)

// Game implements ebiten.Game and draws the debug panels over the scene.
type Game struct {
	overlay *debugui_ebiten.Overlay
}

func (g *Game) Update() error {
	g.overlay.Tick(1.0 / 60.0)
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	// Draw scene content to screen first.
	g.overlay.Draw(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.overlay.Layout(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}

func Example() {
	imguiBackend := ebitenbackend.NewEbitenBackend()
	imguiBackend.CreateWindow("ECS ImGui Example", 1280, 720)
	imgui.CurrentIO().SetIniFilename("")

	registry := ecs.NewComponentRegistry()
	debugui.RegisterDebugUIComponents(registry)
	ecs.RegisterComponent[debugui_ebiten.ImguiBackend](registry)

	storage := ecs.NewStorage(registry)
	ecs.EmplaceSingleton(storage, debugui.ImguiInputState{})

	storage.Spawn(debugui.ImguiItem{
		Render: func() {
			imgui.Begin("Debug Window")
			imgui.Text("Hello from ECS!")
			imgui.End()
		},
	})
	if err := debugui.SpawnDebugUI(storage); err != nil {
		panic(err)
	}

	scheduler := ecs.NewScheduler(storage)
	scheduler.Register(&debugui.ImguiSystem{})
	scheduler.Register(&debugui.PanelSystem{Scheduler: scheduler})

	game := &Game{overlay: debugui_ebiten.NewOverlay(storage, scheduler, imguiBackend)}
	if err := ebiten.RunGame(game); err != nil {
		panic(err)
	}
}
