package sph

import (
	"github.com/plus3/sapphire/ecs"
	"go.uber.org/zap"
)

// HashSystem starts a solver tick: it validates inputs and rebuilds the
// spatial hash. A rejected tick is logged once per distinct error and the
// remaining solver systems skip the frame.
type HashSystem struct {
	Solver *Solver
	Logger *zap.Logger

	lastErr string
}

func (s *HashSystem) Execute(frame *ecs.UpdateFrame) {
	err := s.Solver.Begin()
	if err == nil {
		s.lastErr = ""
		return
	}
	if err.Error() != s.lastErr && s.Logger != nil {
		s.Logger.Warn("sph tick skipped", zap.Uint64("frame", frame.Frame), zap.Error(err))
	}
	s.lastErr = err.Error()
}

// DensitySystem runs the density and pressure pass.
type DensitySystem struct {
	Solver *Solver
}

func (s *DensitySystem) Execute(frame *ecs.UpdateFrame) {
	s.Solver.DensityPass()
}

// ForceSystem runs the force pass.
type ForceSystem struct {
	Solver *Solver
}

func (s *ForceSystem) Execute(frame *ecs.UpdateFrame) {
	s.Solver.ForcePass()
}

// IntegrateSystem runs the integration pass.
type IntegrateSystem struct {
	Solver *Solver
}

func (s *IntegrateSystem) Execute(frame *ecs.UpdateFrame) {
	s.Solver.IntegratePass()
}

// RegisterSystems registers the four solver passes in order. They all run in
// ecs.PhaseUpdate.
func RegisterSystems(scheduler *ecs.Scheduler, solver *Solver, logger *zap.Logger) {
	scheduler.Register(&HashSystem{Solver: solver, Logger: logger})
	scheduler.Register(&DensitySystem{Solver: solver})
	scheduler.Register(&ForceSystem{Solver: solver})
	scheduler.Register(&IntegrateSystem{Solver: solver})
}
