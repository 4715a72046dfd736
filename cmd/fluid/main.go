// Command fluid runs the SPH solver in a window. Left click throws a cluster
// of particles, right drag pans the camera and the wheel moves it along z.
package main

import (
	"flag"
	"fmt"
	"os"

	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/plus3/sapphire/config"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/ecs/debugui"
	debugui_ebiten "github.com/plus3/sapphire/ecs/debugui/ebiten"
	"github.com/plus3/sapphire/sph"
	"github.com/plus3/sapphire/sph/compute"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fluid:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "TOML or YAML config file. Defaults apply when empty.")
	gpu := flag.Bool("gpu", false, "Step with the compute pipeline instead of the CPU solver.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *gpu {
		cfg.Run.GPU = true
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := ecs.NewComponentRegistry()
	sph.Register(registry)
	debugui.RegisterDebugUIComponents(registry)
	ecs.RegisterComponent[debugui_ebiten.ImguiBackend](registry)
	ecs.RegisterComponent[sph.MouseState](registry)
	ecs.RegisterComponent[sph.Camera](registry)
	ecs.RegisterComponent[CameraRig](registry)

	storage := ecs.NewStorage(registry)
	ecs.EmplaceSingleton(storage, cfg.Simulation)
	ecs.EmplaceSingleton(storage, sph.MouseState{})
	ecs.EmplaceSingleton(storage, debugui.ImguiInputState{})
	ecs.EmplaceSingleton(storage, CameraRig{FOV: cfg.Window.FOV})
	ecs.EmplaceSingleton(storage, sph.Camera{})

	spawner := sph.NewSpawner(storage, cfg.Spawn)
	if _, err := spawner.SpawnBlock(cfg.Spawn.BlockSize, mgl32.Vec3(cfg.Spawn.BlockCenter)); err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	scheduler := ecs.NewScheduler(storage, ecs.WithLogger(logger))
	scheduler.Register(&InputSystem{})
	scheduler.Register(&CameraSystem{})

	stats := &statsWindow{storage: storage, mode: "cpu"}
	spawnSystem := &sph.SpawnSystem{Spawner: spawner}
	if cfg.Run.GPU {
		device, err := compute.NewCPUDevice(cfg.Simulation.WorkgroupSize)
		if err != nil {
			return err
		}
		pipeline, err := compute.NewPipeline(device, cfg.Simulation, compute.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("compute pipeline unavailable: %w", err)
		}
		mirror := compute.NewMirror(storage, pipeline)
		if err := mirror.SyncToGPU(); err != nil {
			return err
		}
		spawnSystem.Sync = mirror
		scheduler.Register(spawnSystem)
		scheduler.Register(&compute.StepSystem{Mirror: mirror, Logger: logger})
		stats.mode = "gpu"
		stats.pipeline = pipeline
	} else {
		solver := sph.NewSolver(storage, sph.WithLogger(logger))
		scheduler.Register(spawnSystem)
		sph.RegisterSystems(scheduler, solver, logger)
		stats.solver = solver
	}
	stats.spawn = spawnSystem

	imguiBackend := ebitenbackend.NewEbitenBackend()
	imguiBackend.CreateWindow(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height)
	imgui.CurrentIO().SetIniFilename("")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(int(1 / cfg.Run.TickRate.Seconds()))

	storage.Spawn(debugui.ImguiItem{Render: stats.render})
	scheduler.Register(&debugui.ImguiSystem{})
	if cfg.Window.DebugUI {
		if err := debugui.SpawnDebugUI(storage); err != nil {
			return err
		}
		scheduler.Register(&debugui.PanelSystem{Scheduler: scheduler})
	}

	game := &Game{
		storage:   storage,
		overlay:   debugui_ebiten.NewOverlay(storage, scheduler, imguiBackend),
		renderer:  newRenderer(storage, cfg.Window.PointSize),
		tickRate:  cfg.Run.TickRate.Seconds(),
		maxFrames: cfg.Run.Frames,
	}

	logger.Info("starting viewer",
		zap.Bool("gpu", cfg.Run.GPU),
		zap.Int("particles", ecs.PoolOf[sph.Position](storage).Len()),
	)
	return ebiten.RunGame(game)
}
