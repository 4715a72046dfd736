package sph

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StepStats describes the most recent tick.
type StepStats struct {
	Particles     int
	Chunks        int
	MeanNeighbors float32
	Hash          time.Duration
	Density       time.Duration
	Force         time.Duration
	Integrate     time.Duration
}

// Total returns the wall time spent across all four passes.
func (s StepStats) Total() time.Duration {
	return s.Hash + s.Density + s.Force + s.Integrate
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger used for per-step diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Solver) {
		s.logger = logger
	}
}

// Solver runs the four SPH passes over the particles of a storage. Each pass
// is parallel across particles and joins before the next one starts.
//
// A tick starts with Begin, which validates inputs and rebuilds the spatial
// hash. If Begin fails the remaining passes of that tick are skipped and the
// particle state is left as it was.
type Solver struct {
	storage *ecs.Storage
	hash    *SpatialHash
	logger  *zap.Logger

	positions  *ecs.Pool[Position]
	velocities *ecs.Pool[Velocity]
	forces     *ecs.Pool[Force]
	masses     *ecs.Pool[Mass]
	densities  *ecs.Pool[Density]
	pressures  *ecs.Pool[Pressure]

	params    Params
	ready     bool
	neighbors [][]ecs.EntityId
	stats     StepStats
}

// NewSolver creates a solver for storage. If no Params singleton exists yet
// one is created from DefaultParams.
func NewSolver(storage *ecs.Storage, opts ...Option) *Solver {
	params := ecs.NewSingleton(storage, DefaultParams()).Get()

	s := &Solver{
		storage:    storage,
		hash:       NewSpatialHash(storage, *params),
		logger:     zap.NewNop(),
		positions:  ecs.PoolOf[Position](storage),
		velocities: ecs.PoolOf[Velocity](storage),
		forces:     ecs.PoolOf[Force](storage),
		masses:     ecs.PoolOf[Mass](storage),
		densities:  ecs.PoolOf[Density](storage),
		pressures:  ecs.PoolOf[Pressure](storage),
	}
	ecs.RegisterComponent[Chunk](storage.Registry())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hash returns the solver's spatial hash.
func (s *Solver) Hash() *SpatialHash {
	return s.hash
}

// Stats returns the statistics of the last completed tick.
func (s *Solver) Stats() StepStats {
	return s.stats
}

// Ready reports whether the current tick passed Begin.
func (s *Solver) Ready() bool {
	return s.ready
}

// Neighbors returns the neighbor list gathered for the particle at dense
// index i of the position pool during the last density pass.
func (s *Solver) Neighbors(i int) []ecs.EntityId {
	if i < 0 || i >= len(s.neighbors) {
		return nil
	}
	return s.neighbors[i]
}

// Step runs a full tick.
func (s *Solver) Step() error {
	if err := s.Begin(); err != nil {
		return err
	}
	s.DensityPass()
	s.ForcePass()
	s.IntegratePass()
	return nil
}

// Begin validates the parameters and particle pools, then rebuilds the
// spatial hash.
func (s *Solver) Begin() error {
	s.ready = false

	params, err := ecs.GetSingleton[Params](s.storage)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := s.checkParticles(); err != nil {
		return err
	}
	s.params = *params

	start := time.Now()
	s.hash.Configure(s.params)
	if err := s.hash.Rebuild(s.positions); err != nil {
		return fmt.Errorf("rebuild spatial hash: %w", err)
	}

	n := s.positions.Len()
	if cap(s.neighbors) < n {
		grown := make([][]ecs.EntityId, n)
		copy(grown, s.neighbors)
		s.neighbors = grown
	}
	s.neighbors = s.neighbors[:n]

	s.stats = StepStats{
		Particles: n,
		Chunks:    s.hash.ChunkCount(),
		Hash:      time.Since(start),
	}
	s.ready = true
	return nil
}

// checkParticles requires every particle component pool to hold exactly the
// entities of the position pool.
func (s *Solver) checkParticles() error {
	n := s.positions.Len()
	type pool interface {
		Len() int
		Has(ecs.EntityId) bool
	}
	pools := []pool{s.velocities, s.forces, s.masses, s.densities, s.pressures}
	for _, p := range pools {
		if p.Len() != n {
			return fmt.Errorf("%d positions but a particle pool holds %d: %w", n, p.Len(), ErrPartialParticle)
		}
	}
	for _, e := range s.positions.DenseEntities() {
		for _, p := range pools {
			if !p.Has(e) {
				return fmt.Errorf("entity %d: %w", e, ErrPartialParticle)
			}
		}
	}
	return nil
}

// parallel runs fn over [0, n) in batches of the workgroup size.
func (s *Solver) parallel(n int, fn func(i int)) {
	batch := max(s.params.WorkgroupSize, 1)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for lo := 0; lo < n; lo += batch {
		hi := min(lo+batch, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// DensityPass gathers neighbors within the smoothing length and computes
// density and pressure for every particle.
func (s *Solver) DensityPass() {
	if !s.ready {
		return
	}
	start := time.Now()

	h := s.params.SmoothingLength
	entities := s.positions.DenseEntities()
	positions := s.positions.Dense()

	s.parallel(len(entities), func(i int) {
		e := entities[i]
		center := positions[i].Vec3
		s.neighbors[i] = s.hash.Neighbors(e, center, h, s.positions, s.neighbors[i][:0])

		var rho float32
		for _, j := range s.neighbors[i] {
			r := s.positions.Get(j).Vec3.Sub(center).Len()
			rho += float32(*s.masses.Get(j)) * CubicSpline(r, h)
		}
		*s.densities.Get(e), *s.pressures.Get(e) = s.params.EquationOfState(rho)
	})

	var total int
	for _, n := range s.neighbors {
		total += len(n)
	}
	if len(s.neighbors) > 0 {
		s.stats.MeanNeighbors = float32(total) / float32(len(s.neighbors))
	}
	s.stats.Density = time.Since(start)
}

// ForcePass accumulates pressure, viscosity and softened attraction forces
// over the neighbor lists gathered by DensityPass.
func (s *Solver) ForcePass() {
	if !s.ready {
		return
	}
	start := time.Now()

	entities := s.positions.DenseEntities()
	positions := s.positions.Dense()

	s.parallel(len(entities), func(i int) {
		e := entities[i]
		s.forces.Get(e).Vec3 = s.particleForce(e, positions[i].Vec3, s.neighbors[i])
	})

	s.stats.Force = time.Since(start)
}

func (s *Solver) particleForce(e ecs.EntityId, ri mgl32.Vec3, neighbors []ecs.EntityId) mgl32.Vec3 {
	self := s.sample(e)
	self.Position = ri

	var force mgl32.Vec3
	for _, j := range neighbors {
		force = force.Add(s.params.PairForce(self, s.sample(j)))
	}
	return force
}

func (s *Solver) sample(e ecs.EntityId) Sample {
	return Sample{
		Position: s.positions.Get(e).Vec3,
		Velocity: s.velocities.Get(e).Vec3,
		Mass:     float32(*s.masses.Get(e)),
		Density:  float32(*s.densities.Get(e)),
		Pressure: float32(*s.pressures.Get(e)),
	}
}

// IntegratePass advances velocity and position with semi-implicit Euler.
// Particles with a non-positive mass are static.
func (s *Solver) IntegratePass() {
	if !s.ready {
		return
	}
	start := time.Now()

	dt := s.params.TimeStep
	entities := s.positions.DenseEntities()
	positions := s.positions.Dense()

	s.parallel(len(entities), func(i int) {
		e := entities[i]
		m := float32(*s.masses.Get(e))
		if m <= 0 {
			return
		}
		v := s.velocities.Get(e)
		v.Vec3 = v.Vec3.Add(s.forces.Get(e).Vec3.Mul(dt / m))
		positions[i].Vec3 = positions[i].Vec3.Add(v.Vec3.Mul(dt))
	})

	s.stats.Integrate = time.Since(start)
	s.logger.Debug("sph step",
		zap.Int("particles", s.stats.Particles),
		zap.Int("chunks", s.stats.Chunks),
		zap.Float32("mean_neighbors", s.stats.MeanNeighbors),
		zap.Duration("total", s.stats.Total()),
	)
}
