package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
	"github.com/plus3/sapphire/config"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"github.com/plus3/sapphire/sph/compute"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sph-stress:", err)
		os.Exit(1)
	}
}

// stepper is the half of the world that differs between the CPU solver and
// the compute pipeline.
type stepper interface {
	passes() []PassSample
}

type cpuStepper struct{ solver *sph.Solver }

func (c cpuStepper) passes() []PassSample {
	stats := c.solver.Stats()
	return []PassSample{
		{"hash", stats.Hash},
		{"density", stats.Density},
		{"force", stats.Force},
		{"integrate", stats.Integrate},
	}
}

type gpuStepper struct{ pipeline *compute.Pipeline }

func (g gpuStepper) passes() []PassSample {
	stats := g.pipeline.Stats()
	return []PassSample{
		{compute.StageHash, stats.Stages[compute.StageHash]},
		{compute.StageDensity, stats.Stages[compute.StageDensity]},
		{compute.StageForce, stats.Stages[compute.StageForce]},
		{compute.StageIntegrate, stats.Stages[compute.StageIntegrate]},
	}
}

func run() error {
	configPath := flag.String("config", "", "TOML or YAML config file. Defaults apply when empty.")
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	blockSize := flag.Int("block", 0, "Edge length of the initial particle block. Overrides the config when set.")
	gpu := flag.Bool("gpu", false, "Step with the compute pipeline instead of the CPU solver.")
	profileMode := flag.String("profile", "", "Write a profile to the working directory: cpu or mem.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *blockSize > 0 {
		cfg.Spawn.BlockSize = *blockSize
	}
	if *gpu {
		cfg.Run.GPU = true
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q", *profileMode)
	}

	logger.Info("starting sph stress test", zap.Bool("gpu", cfg.Run.GPU), zap.Int("block", cfg.Spawn.BlockSize))

	registry := ecs.NewComponentRegistry()
	sph.Register(registry)
	storage := ecs.NewStorage(registry)
	ecs.EmplaceSingleton(storage, cfg.Simulation)
	scheduler := ecs.NewScheduler(storage, ecs.WithLogger(logger))

	spawner := sph.NewSpawner(storage, cfg.Spawn)
	if _, err := spawner.SpawnBlock(cfg.Spawn.BlockSize, mgl32.Vec3(cfg.Spawn.BlockCenter)); err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	particles := ecs.PoolOf[sph.Position](storage).Len()
	logger.Info("population complete", zap.Int("particles", particles))

	var world stepper
	if cfg.Run.GPU {
		device, err := compute.NewCPUDevice(cfg.Simulation.WorkgroupSize)
		if err != nil {
			return err
		}
		pipeline, err := compute.NewPipeline(device, cfg.Simulation, compute.WithLogger(logger))
		if err != nil {
			return err
		}
		mirror := compute.NewMirror(storage, pipeline)
		if err := mirror.SyncToGPU(); err != nil {
			return err
		}
		scheduler.Register(&compute.StepSystem{Mirror: mirror, Logger: logger})
		world = gpuStepper{pipeline}
	} else {
		solver := sph.NewSolver(storage, sph.WithLogger(logger))
		sph.RegisterSystems(scheduler, solver, logger)
		world = cpuStepper{solver}
	}

	report := &Report{
		Duration:       *duration,
		Mode:           "cpu",
		Particles:      particles,
		Params:         cfg.Simulation,
		GCPauseMetrics: *gcPauseMetrics,
	}
	if cfg.Run.GPU {
		report.Mode = "gpu"
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	startTime := time.Now()
	dt := cfg.Run.TickRate.Seconds()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		updateStart := time.Now()
		scheduler.Once(dt)
		report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
		report.AddPasses(world.passes())
		report.TotalUpdates++

		if cfg.Run.StatsEach > 0 && report.TotalUpdates%int64(cfg.Run.StatsEach) == 0 {
			logger.Info("progress",
				zap.Int64("frames", report.TotalUpdates),
				zap.Duration("last", report.UpdateTime.Samples[len(report.UpdateTime.Samples)-1]),
			)
		}
		if cfg.Run.Frames > 0 && report.TotalUpdates >= int64(cfg.Run.Frames) {
			break
		}
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	report.Finalize(storage)
	runtime.ReadMemStats(&report.MemStatsEnd)

	if report.NaNCount > 0 {
		logger.Warn("non-finite particle state", zap.Int("particles", report.NaNCount))
	}
	logger.Info("simulation finished", zap.Int64("frames", report.TotalUpdates), zap.Duration("elapsed", report.TotalTime))

	if err := report.Generate(os.Stdout); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	return nil
}
