package main

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/ecs/debugui"
	debugui_ebiten "github.com/plus3/sapphire/ecs/debugui/ebiten"
	"github.com/plus3/sapphire/sph"
)

type Game struct {
	storage   *ecs.Storage
	overlay   *debugui_ebiten.Overlay
	renderer  *renderer
	tickRate  float64
	maxFrames int
	frames    int
}

func (g *Game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyQ) || ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if g.maxFrames > 0 && g.frames >= g.maxFrames {
		return ebiten.Termination
	}
	g.overlay.Tick(g.tickRate)
	g.frames++
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	var camera *sph.Camera
	if g.storage.ReadSingleton(&camera) {
		g.renderer.draw(screen, camera)
	}
	g.overlay.Draw(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	var rig *CameraRig
	if g.storage.ReadSingleton(&rig) {
		rig.Width, rig.Height = outsideWidth, outsideHeight
	}
	g.overlay.Layout(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}

// CameraRig is the free camera state behind the sph.Camera singleton.
type CameraRig struct {
	Eye    mgl32.Vec3
	FOV    float32 // vertical, degrees
	Width  int
	Height int
}

// InputSystem copies the ebiten mouse into the MouseState singleton. Clicks
// ImGui wants are dropped.
type InputSystem struct {
	Mouse ecs.Singleton[sph.MouseState]
	Imgui ecs.Singleton[debugui.ImguiInputState]
}

func (s *InputSystem) Phase() ecs.Phase {
	return ecs.PhaseInput
}

func (s *InputSystem) Execute(frame *ecs.UpdateFrame) {
	mouse := s.Mouse.Get()
	if mouse == nil {
		return
	}

	mx, my := ebiten.CursorPosition()
	pos := mgl32.Vec2{float32(mx), float32(my)}
	mouse.Delta = pos.Sub(mouse.Position)
	mouse.Position = pos

	if imgui := s.Imgui.Get(); imgui != nil && imgui.WantCaptureMouse {
		mouse.LeftPressed, mouse.LeftClicked = false, false
		mouse.RightPressed, mouse.RightClicked = false, false
		mouse.Scroll = 0
		return
	}

	mouse.LeftPressed = ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	mouse.LeftClicked = inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft)
	mouse.RightPressed = ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	mouse.RightClicked = inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight)
	_, dy := ebiten.Wheel()
	mouse.Scroll = float32(dy)
}

// CameraSystem pans the rig on right drag, dollies it on scroll and writes
// the matrices SpawnSystem picks through.
type CameraSystem struct {
	Mouse  ecs.Singleton[sph.MouseState]
	Rig    ecs.Singleton[CameraRig]
	Camera ecs.Singleton[sph.Camera]
}

const (
	panSpeed   = 0.05
	dollySpeed = 2
)

func (s *CameraSystem) Phase() ecs.Phase {
	return ecs.PhaseInput
}

func (s *CameraSystem) Execute(frame *ecs.UpdateFrame) {
	mouse, rig, camera := s.Mouse.Get(), s.Rig.Get(), s.Camera.Get()
	if mouse == nil || rig == nil || camera == nil {
		return
	}

	if mouse.RightPressed && !mouse.RightClicked {
		rig.Eye = rig.Eye.Add(mgl32.Vec3{-mouse.Delta[0] * panSpeed, mouse.Delta[1] * panSpeed, 0})
	}
	rig.Eye[2] -= mouse.Scroll * dollySpeed

	*camera = rig.camera()
}

func (r CameraRig) camera() sph.Camera {
	w, h := float32(r.Width), float32(r.Height)
	aspect := float32(1)
	if h > 0 {
		aspect = w / h
	}
	return sph.Camera{
		View:       mgl32.LookAtV(r.Eye, r.Eye.Add(mgl32.Vec3{0, 0, -1}), mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(r.FOV), aspect, 0.1, 1000),
		Width:      w,
		Height:     h,
	}
}
