package compute

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/sph"
	"go.uber.org/zap"
)

// Dispatch names, in pipeline order.
const (
	StageHash      = "hash"
	StageDensity   = "density"
	StageForce     = "force"
	StageIntegrate = "integrate"
)

// PipelineStats holds the wall time of each stage of the last step,
// measured from dispatch to the end of its barrier.
type PipelineStats struct {
	Particles int
	Stages    map[string]time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-step diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline runs one SPH step as four dispatches over Buffers, with a barrier
// after each. It uses a sparse cell hash: every particle is pushed onto a
// lock-free chain in HashTable[hash(cell) % HashSize], linked through Next.
type Pipeline struct {
	device Device
	params sph.Params
	logger *zap.Logger
	stats  PipelineStats
}

// NewPipeline validates the device and parameters. A pipeline that cannot be
// built must stop the caller from simulating.
func NewPipeline(device Device, params sph.Params, opts ...Option) (*Pipeline, error) {
	if device == nil {
		return nil, errors.New("compute pipeline requires a device")
	}
	p := &Pipeline{
		device: device,
		logger: zap.NewNop(),
		stats:  PipelineStats{Stages: make(map[string]time.Duration, 4)},
	}
	if err := p.SetParams(params); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Params returns the parameters the next step will use.
func (p *Pipeline) Params() sph.Params {
	return p.params
}

// SetParams replaces the step parameters after validating them.
func (p *Pipeline) SetParams(params sph.Params) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("compute pipeline: %w", err)
	}
	p.params = params
	return nil
}

// Stats returns the statistics of the last step.
func (p *Pipeline) Stats() PipelineStats {
	return p.stats
}

// Step advances the particles held in b by one time step.
func (p *Pipeline) Step(b *Buffers) error {
	if len(b.HashTable) != p.params.HashSize {
		return fmt.Errorf("hash table holds %d slots, params want %d: %w", len(b.HashTable), p.params.HashSize, ErrLayoutMismatch)
	}
	if len(b.Next) != b.Len() || len(b.BucketKeys) != b.Len() {
		return fmt.Errorf("bucket chains sized for %d particles, buffers hold %d: %w", len(b.Next), b.Len(), ErrLayoutMismatch)
	}
	if err := b.validate(); err != nil {
		return err
	}
	b.ResetHash()

	k := kernels{b: b, params: p.params, ring: sph.SearchRing(p.params.SmoothingLength, p.params.CellSize)}
	stages := []struct {
		name   string
		kernel Kernel
	}{
		{StageHash, k.hash},
		{StageDensity, k.density},
		{StageForce, k.force},
		{StageIntegrate, k.integrate},
	}

	n := b.Len()
	p.stats.Particles = n
	for _, stage := range stages {
		start := time.Now()
		if err := p.device.Dispatch(stage.name, n, stage.kernel); err != nil {
			return err
		}
		if err := p.device.Barrier(); err != nil {
			return fmt.Errorf("%s barrier: %w", stage.name, err)
		}
		p.stats.Stages[stage.name] = time.Since(start)
	}

	p.logger.Debug("compute step",
		zap.Int("particles", n),
		zap.Duration("hash", p.stats.Stages[StageHash]),
		zap.Duration("density", p.stats.Stages[StageDensity]),
		zap.Duration("force", p.stats.Stages[StageForce]),
		zap.Duration("integrate", p.stats.Stages[StageIntegrate]),
	)
	return nil
}

// cellHash spreads a cell coordinate over 32 bits.
func cellHash(c [3]int32) uint32 {
	return uint32(c[0])*73856093 ^ uint32(c[1])*19349663 ^ uint32(c[2])*83492791
}

// kernels are the four compute shaders. Invocation i works on the particle
// DenseIDs[i] and reaches every buffer through that pool's location buffer.
type kernels struct {
	b      *Buffers
	params sph.Params
	ring   int32
}

func (k kernels) position(i uint32) mgl32.Vec3 {
	return k.b.Positions[k.b.PositionLoc[k.b.DenseIDs[i]]].Vec3
}

func (k kernels) hash(i int) {
	key := cellHash(sph.CellOf(k.position(uint32(i)), k.params.CellSize))
	k.b.BucketKeys[i] = key

	slot := &k.b.HashTable[key%uint32(len(k.b.HashTable))]
	for {
		head := atomic.LoadUint32(slot)
		k.b.Next[i] = head
		if atomic.CompareAndSwapUint32(slot, head, uint32(i)) {
			return
		}
	}
}

// neighbors calls fn with the invocation index of every other particle within
// the smoothing length of particle i.
func (k kernels) neighbors(i uint32, fn func(j uint32)) {
	center := k.position(i)
	cell := sph.CellOf(center, k.params.CellSize)
	radiusSq := k.params.SmoothingLength * k.params.SmoothingLength
	size := uint32(len(k.b.HashTable))

	for dz := -k.ring; dz <= k.ring; dz++ {
		for dy := -k.ring; dy <= k.ring; dy++ {
			for dx := -k.ring; dx <= k.ring; dx++ {
				c := [3]int32{cell[0] + dx, cell[1] + dy, cell[2] + dz}
				key := cellHash(c)
				for j := k.b.HashTable[key%size]; j != ResetValue; j = k.b.Next[j] {
					if j == i || k.b.BucketKeys[j] != key {
						continue
					}
					pos := k.position(j)
					// Distinct cells can share a hash.
					if sph.CellOf(pos, k.params.CellSize) != c {
						continue
					}
					d := pos.Sub(center)
					if d.Dot(d) <= radiusSq {
						fn(j)
					}
				}
			}
		}
	}
}

func (k kernels) density(inv int) {
	i := uint32(inv)
	id := k.b.DenseIDs[i]
	center := k.position(i)
	h := k.params.SmoothingLength

	var rho float32
	k.neighbors(i, func(j uint32) {
		jd := k.b.DenseIDs[j]
		r := k.position(j).Sub(center).Len()
		rho += float32(k.b.Masses[k.b.MassLoc[jd]]) * sph.CubicSpline(r, h)
	})
	k.b.Densities[k.b.DensityLoc[id]], k.b.Pressures[k.b.PressureLoc[id]] = k.params.EquationOfState(rho)
}

func (k kernels) sample(i uint32) sph.Sample {
	id := k.b.DenseIDs[i]
	return sph.Sample{
		Position: k.b.Positions[k.b.PositionLoc[id]].Vec3,
		Velocity: k.b.Velocities[k.b.VelocityLoc[id]].Vec3,
		Mass:     float32(k.b.Masses[k.b.MassLoc[id]]),
		Density:  float32(k.b.Densities[k.b.DensityLoc[id]]),
		Pressure: float32(k.b.Pressures[k.b.PressureLoc[id]]),
	}
}

func (k kernels) force(inv int) {
	i := uint32(inv)
	self := k.sample(i)

	var force mgl32.Vec3
	k.neighbors(i, func(j uint32) {
		force = force.Add(k.params.PairForce(self, k.sample(j)))
	})
	k.b.Forces[k.b.ForceLoc[k.b.DenseIDs[i]]].Vec3 = force
}

func (k kernels) integrate(inv int) {
	id := k.b.DenseIDs[inv]
	m := float32(k.b.Masses[k.b.MassLoc[id]])
	if m <= 0 {
		return
	}
	dt := k.params.TimeStep
	v := &k.b.Velocities[k.b.VelocityLoc[id]]
	v.Vec3 = v.Vec3.Add(k.b.Forces[k.b.ForceLoc[id]].Vec3.Mul(dt / m))
	p := &k.b.Positions[k.b.PositionLoc[id]]
	p.Vec3 = p.Vec3.Add(v.Vec3.Mul(dt))
}
