// Command fluid-term runs the SPH solver in a terminal and draws particle
// density as a heat map. Click to throw a cluster, arrows pan, +/- dolly,
// q or Esc quits.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/config"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"github.com/plus3/sapphire/sph/compute"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fluid-term:", err)
		os.Exit(1)
	}
}

type viewer struct {
	screen    tcell.Screen
	storage   *ecs.Storage
	scheduler *ecs.Scheduler
	heatmap   Heatmap
	eye       mgl32.Vec3
	fov       float32
	status    string
}

func run() error {
	configPath := flag.String("config", "", "TOML or YAML config file. Defaults apply when empty.")
	gpu := flag.Bool("gpu", false, "Step with the compute pipeline instead of the CPU solver.")
	logPath := flag.String("log", "", "Append logs to this file. The terminal is taken by the heat map.")
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

	logger := zap.NewNop()
	if *logPath != "" {
		cfg.Logging.Output = *logPath
		var err error
		if logger, err = config.NewLogger(cfg.Logging); err != nil {
			return err
		}
		defer logger.Sync()
	}

	registry := ecs.NewComponentRegistry()
	sph.Register(registry)
	ecs.RegisterComponent[sph.MouseState](registry)
	ecs.RegisterComponent[sph.Camera](registry)

	storage := ecs.NewStorage(registry)
	ecs.EmplaceSingleton(storage, cfg.Simulation)
	ecs.EmplaceSingleton(storage, sph.MouseState{})
	ecs.EmplaceSingleton(storage, sph.Camera{})

	spawner := sph.NewSpawner(storage, cfg.Spawn)
	if _, err := spawner.SpawnBlock(cfg.Spawn.BlockSize, mgl32.Vec3(cfg.Spawn.BlockCenter)); err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	scheduler := ecs.NewScheduler(storage, ecs.WithLogger(logger))
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
	} else {
		scheduler.Register(spawnSystem)
		sph.RegisterSystems(scheduler, sph.NewSolver(storage, sph.WithLogger(logger)), logger)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	screen.EnableMouse()

	v := &viewer{
		screen:    screen,
		storage:   storage,
		scheduler: scheduler,
		fov:       cfg.Window.FOV,
	}
	return v.loop(cfg.Run.TickRate, cfg.Run.Frames)
}

func (v *viewer) loop(tickRate time.Duration, maxFrames int) error {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for frames := 0; maxFrames <= 0 || frames < maxFrames; frames++ {
		select {
		case ev := <-events:
			if !v.handle(ev) {
				return nil
			}
			frames--
		case <-ticker.C:
			v.tick(tickRate.Seconds())
		}
	}
	return nil
}

func (v *viewer) handle(ev tcell.Event) bool {
	mouse, _ := ecs.GetSingleton[sph.MouseState](v.storage)

	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			v.eye[0] -= 1
		case tcell.KeyRight:
			v.eye[0] += 1
		case tcell.KeyUp:
			v.eye[1] += 1
		case tcell.KeyDown:
			v.eye[1] -= 1
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case '+':
				v.eye[2] -= 2
			case '-':
				v.eye[2] += 2
			}
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		if mouse != nil {
			pressed := ev.Buttons()&tcell.Button1 != 0
			mouse.Position = mgl32.Vec2{float32(x) + 0.5, float32(y) + 0.5}
			mouse.LeftClicked = mouse.LeftClicked || (pressed && !mouse.LeftPressed)
			mouse.LeftPressed = pressed
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *viewer) tick(dt float64) {
	cols, rows := v.screen.Size()
	rows-- // status line
	if cols <= 0 || rows <= 0 {
		return
	}

	camera, err := ecs.GetSingleton[sph.Camera](v.storage)
	if err != nil {
		return
	}
	*camera = terminalCamera(v.eye, v.fov, cols, rows)

	start := time.Now()
	v.scheduler.Once(dt)
	elapsed := time.Since(start)

	rest := sph.DefaultParams().RestDensity
	if params, err := ecs.GetSingleton[sph.Params](v.storage); err == nil {
		rest = params.RestDensity
	}

	v.heatmap.Resize(cols, rows)
	v.heatmap.Reset()
	viewProj := camera.Projection.Mul4(camera.View)
	onScreen := 0
	for e, pos := range ecs.PoolOf[sph.Position](v.storage).Iter() {
		rho, err := ecs.Get[sph.Density](v.storage, e)
		if err != nil {
			continue
		}
		if v.heatmap.Add(viewProj, pos.Vec3, float32(*rho)) {
			onScreen++
		}
	}

	v.screen.Clear()
	v.heatmap.Draw(v.screen, rest)
	v.status = fmt.Sprintf(" particles %d  visible %d  step %s  eye %.0f,%.0f,%.0f ",
		ecs.PoolOf[sph.Position](v.storage).Len(), onScreen, elapsed.Round(time.Microsecond),
		v.eye[0], v.eye[1], v.eye[2])
	for i, r := range v.status {
		if i >= cols {
			break
		}
		v.screen.SetContent(i, rows, r, nil, tcell.StyleDefault.Reverse(true))
	}
	v.screen.Show()
}
