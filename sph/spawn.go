package sph

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
)

// SpawnConfig controls the initial particle block and mouse spawned clusters.
type SpawnConfig struct {
	Spacing         float32    `toml:"spacing" yaml:"spacing"`
	Radius          float32    `toml:"radius" yaml:"radius"`
	Mass            float32    `toml:"mass" yaml:"mass"`
	BlockSize       int        `toml:"block_size" yaml:"block_size"`
	BlockCenter     [3]float32 `toml:"block_center" yaml:"block_center"`
	ClusterSize     int        `toml:"cluster_size" yaml:"cluster_size"`
	ClusterVelocity [3]float32 `toml:"cluster_velocity" yaml:"cluster_velocity"`
	PickDepth       float32    `toml:"pick_depth" yaml:"pick_depth"`
}

// DefaultSpawnConfig returns a 25³ block in front of the camera and 3³
// clusters thrown along -x.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		Spacing:         0.5,
		Radius:          1,
		Mass:            0.3,
		BlockSize:       25,
		BlockCenter:     [3]float32{0, 0, -40},
		ClusterSize:     3,
		ClusterVelocity: [3]float32{-8, 0, 0},
		PickDepth:       40,
	}
}

// Spawner creates complete particles.
type Spawner struct {
	storage *ecs.Storage
	cfg     SpawnConfig
}

// NewSpawner creates a spawner writing into storage.
func NewSpawner(storage *ecs.Storage, cfg SpawnConfig) *Spawner {
	return &Spawner{storage: storage, cfg: cfg}
}

// Config returns the spawner configuration.
func (s *Spawner) Config() SpawnConfig {
	return s.cfg
}

// CreateParticle creates one particle entity with all six particle
// components. Density, pressure and force start at zero. Every particle
// component must be registered; on failure no entity is left behind.
func (s *Spawner) CreateParticle(pos, vel mgl32.Vec3, mass float32) (ecs.EntityId, error) {
	e, err := s.storage.Spawn(
		Position{Vec3: pos, Radius: s.cfg.Radius},
		Velocity{Vec3: vel},
		Force{},
		Mass(mass),
		Density(0),
		Pressure(0),
	)
	if err != nil {
		return 0, fmt.Errorf("create particle: %w", err)
	}
	return e, nil
}

// SpawnBlock creates n³ resting particles on a grid of the configured
// spacing centered on center.
func (s *Spawner) SpawnBlock(n int, center mgl32.Vec3) ([]ecs.EntityId, error) {
	offset := float32(n/2) * s.cfg.Spacing
	return s.spawnGrid(n, s.cfg.Spacing, center.Sub(mgl32.Vec3{offset, offset, offset}), mgl32.Vec3{}, s.cfg.Mass)
}

// SpawnCluster creates ClusterSize³ particles one unit apart around center,
// all moving with the configured cluster velocity.
func (s *Spawner) SpawnCluster(center mgl32.Vec3) ([]ecs.EntityId, error) {
	n := s.cfg.ClusterSize
	half := float32(n-1) / 2
	origin := center.Sub(mgl32.Vec3{half, half, half})
	return s.spawnGrid(n, 1, origin, mgl32.Vec3(s.cfg.ClusterVelocity), s.cfg.Mass)
}

func (s *Spawner) spawnGrid(n int, spacing float32, origin, vel mgl32.Vec3, mass float32) ([]ecs.EntityId, error) {
	if n <= 0 {
		return nil, fmt.Errorf("grid size %d must be positive", n)
	}
	ids := make([]ecs.EntityId, 0, n*n*n)
	for x := range n {
		for y := range n {
			for z := range n {
				pos := origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(spacing))
				e, err := s.CreateParticle(pos, vel, mass)
				if err != nil {
					return ids, err
				}
				ids = append(ids, e)
			}
		}
	}
	return ids, nil
}

// MouseState is the input singleton written by the window layer each frame.
// Position is in window pixels.
type MouseState struct {
	Position     mgl32.Vec2
	Delta        mgl32.Vec2
	LeftPressed  bool
	LeftClicked  bool
	RightPressed bool
	RightClicked bool
	Scroll       float32
}

// Camera is the view singleton written by the render layer.
type Camera struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Width      float32
	Height     float32
}

// Pick casts a ray through the window pixel and returns where it crosses the
// plane depth units down the world -z axis from the camera.
func (c Camera) Pick(pixel mgl32.Vec2, depth float32) (mgl32.Vec3, bool) {
	if c.Width <= 0 || c.Height <= 0 {
		return mgl32.Vec3{}, false
	}
	x := 2*pixel[0]/c.Width - 1
	y := 1 - 2*pixel[1]/c.Height

	eye := c.Projection.Inv().Mul4x1(mgl32.Vec4{x, y, -1, 1})
	eye = mgl32.Vec4{eye[0], eye[1], -1, 0}

	invView := c.View.Inv()
	dir := invView.Mul4x1(eye).Vec3()
	if dir.Len() == 0 {
		return mgl32.Vec3{}, false
	}
	dir = dir.Normalize()
	if dir[2] == 0 {
		return mgl32.Vec3{}, false
	}
	origin := invView.Col(3).Vec3()

	t := -depth / dir[2]
	if t <= 0 {
		return mgl32.Vec3{}, false
	}
	return origin.Add(dir.Mul(t)), true
}

// Syncer moves particle state between the component pools and a device
// mirror. SpawnSystem pulls before spawning and pushes afterwards.
type Syncer interface {
	SyncToCPU() error
	SyncToGPU() error
}

// SpawnSystem spawns a cluster where the left mouse button was clicked.
type SpawnSystem struct {
	Spawner *Spawner
	Sync    Syncer

	Mouse  ecs.Singleton[MouseState]
	Camera ecs.Singleton[Camera]

	// Err holds the last spawn failure.
	Err error
}

func (s *SpawnSystem) Phase() ecs.Phase {
	return ecs.PhaseInput
}

func (s *SpawnSystem) Execute(frame *ecs.UpdateFrame) {
	mouse := s.Mouse.Get()
	camera := s.Camera.Get()
	if mouse == nil || camera == nil || !mouse.LeftClicked {
		return
	}
	mouse.LeftClicked = false

	point, ok := camera.Pick(mouse.Position, s.Spawner.cfg.PickDepth)
	if !ok {
		return
	}

	if s.Sync != nil {
		if s.Err = s.Sync.SyncToCPU(); s.Err != nil {
			return
		}
	}
	if _, s.Err = s.Spawner.SpawnCluster(point); s.Err != nil {
		return
	}
	if s.Sync != nil {
		s.Err = s.Sync.SyncToGPU()
	}
}
