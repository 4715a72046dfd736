package compute_test

import (
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"github.com/plus3/sapphire/sph/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStorage(t *testing.T, params sph.Params) (*ecs.Storage, *sph.Spawner) {
	t.Helper()
	registry := ecs.NewComponentRegistry()
	sph.Register(registry)
	storage := ecs.NewStorage(registry)
	ecs.EmplaceSingleton(storage, params)
	return storage, sph.NewSpawner(storage, sph.DefaultSpawnConfig())
}

func newMirror(t *testing.T, storage *ecs.Storage, params sph.Params) *compute.Mirror {
	t.Helper()
	device, err := compute.NewCPUDevice(params.WorkgroupSize)
	require.NoError(t, err)
	pipeline, err := compute.NewPipeline(device, params)
	require.NoError(t, err)
	return compute.NewMirror(storage, pipeline)
}

// populate spawns a block plus a moving cluster so velocities differ.
func populate(t *testing.T, spawner *sph.Spawner) {
	t.Helper()
	_, err := spawner.SpawnBlock(5, mgl32.Vec3{0, 0, -40})
	require.NoError(t, err)
	_, err = spawner.SpawnCluster(mgl32.Vec3{2.5, 0, -40})
	require.NoError(t, err)
}

func TestCPUDeviceRequiresBarrier(t *testing.T) {
	device, err := compute.NewCPUDevice(8)
	require.NoError(t, err)

	require.NoError(t, device.Barrier(), "a barrier with nothing pending is a no-op")
	require.NoError(t, device.Dispatch("first", 10, func(int) {}))
	err = device.Dispatch("second", 10, func(int) {})
	assert.ErrorIs(t, err, compute.ErrMissingBarrier)

	require.NoError(t, device.Barrier())
	require.NoError(t, device.Dispatch("second", 10, func(int) {}))
	require.NoError(t, device.Barrier())

	stats := device.Stats()
	assert.Equal(t, 2, stats.Dispatches)
	assert.Equal(t, int64(20), stats.Invocations)
}

func TestCPUDeviceRunsEveryInvocationOnce(t *testing.T) {
	device, err := compute.NewCPUDevice(64)
	require.NoError(t, err)

	hits := make([]atomic.Int32, 1000)
	require.NoError(t, device.Dispatch("count", len(hits), func(i int) {
		hits[i].Add(1)
	}))
	require.NoError(t, device.Barrier())

	for i := range hits {
		require.Equal(t, int32(1), hits[i].Load(), "invocation %d", i)
	}

	_, err = compute.NewCPUDevice(0)
	assert.Error(t, err)
}

func TestNewPipelineRejectsBadSetup(t *testing.T) {
	device, err := compute.NewCPUDevice(64)
	require.NoError(t, err)

	_, err = compute.NewPipeline(nil, sph.DefaultParams())
	assert.Error(t, err)

	params := sph.DefaultParams()
	params.HashSize = 0
	_, err = compute.NewPipeline(device, params)
	assert.ErrorIs(t, err, sph.ErrInvalidParams)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	populate(t, spawner)
	n := ecs.PoolOf[sph.Position](storage).Len()

	var b compute.Buffers
	require.NoError(t, b.Upload(storage, params.HashSize))
	require.Equal(t, n, b.Len())
	assert.Equal(t, ecs.PoolOf[sph.Position](storage).Dense(), b.Positions)

	for _, v := range b.HashTable {
		require.Equal(t, uint32(compute.ResetValue), v)
	}

	sizes := map[string]int{}
	for _, binding := range b.Bytes() {
		sizes[binding.Name] = len(binding.Data)
	}
	assert.Equal(t, 16*n, sizes["positions"])
	assert.Equal(t, 16*n, sizes["velocities"])
	assert.Equal(t, 16*n, sizes["forces"])
	assert.Equal(t, 4*n, sizes["masses"])
	assert.Equal(t, 4*n, sizes["dense_ids"])
	assert.Equal(t, 4*params.HashSize, sizes["hash_table"])

	for i := range b.Densities {
		b.Densities[i] = sph.Density(i)
	}
	b.Positions[0].Vec3 = mgl32.Vec3{7, 8, 9}
	require.NoError(t, b.Download(storage))

	assert.Equal(t, b.Densities, ecs.PoolOf[sph.Density](storage).Dense())
	assert.Equal(t, mgl32.Vec3{7, 8, 9}, ecs.PoolOf[sph.Position](storage).Dense()[0].Vec3)
}

func TestUploadRejectsPartialParticles(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	populate(t, spawner)

	e := storage.CreateEntity()
	_, err := ecs.Emplace(storage, e, sph.Position{})
	require.NoError(t, err)

	var b compute.Buffers
	assert.ErrorIs(t, b.Upload(storage, params.HashSize), compute.ErrLayoutMismatch)
}

func TestDownloadRejectsReorderedPools(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	populate(t, spawner)

	var b compute.Buffers
	require.NoError(t, b.Upload(storage, params.HashSize))

	storage.RemoveEntity(ecs.PoolOf[sph.Position](storage).DenseEntities()[0])
	assert.ErrorIs(t, b.Download(storage), compute.ErrLayoutMismatch)
}

func TestStepRejectsCorruptLocations(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	populate(t, spawner)

	mirror := newMirror(t, storage, params)
	require.NoError(t, mirror.SyncToGPU())

	b := mirror.Buffers()
	b.PositionLoc[b.DenseIDs[0]] = uint32(b.Len())
	assert.ErrorIs(t, mirror.Step(), compute.ErrIndexOutOfRange)
}

func assertClose(t *testing.T, want, got, scale float32, msg string, args ...any) {
	t.Helper()
	assert.InDelta(t, want, got, float64(1e-3*max(scale, 1)), append([]any{msg}, args...)...)
}

func agreeWithSolver(t *testing.T, params sph.Params) {
	cpuStorage, cpuSpawner := newStorage(t, params)
	populate(t, cpuSpawner)
	gpuStorage, gpuSpawner := newStorage(t, params)
	populate(t, gpuSpawner)

	solver := sph.NewSolver(cpuStorage)
	require.NoError(t, solver.Step())

	mirror := newMirror(t, gpuStorage, params)
	require.NoError(t, mirror.SyncToGPU())
	require.NoError(t, mirror.Step())
	require.NoError(t, mirror.SyncToCPU())

	var forceScale float32
	for _, f := range ecs.PoolOf[sph.Force](cpuStorage).Dense() {
		forceScale = max(forceScale, f.Vec3.Len())
	}

	for e, want := range ecs.PoolOf[sph.Position](cpuStorage).Iter() {
		got, err := ecs.Get[sph.Position](gpuStorage, e)
		require.NoError(t, err)

		rhoCPU, _ := ecs.Get[sph.Density](cpuStorage, e)
		rhoGPU, _ := ecs.Get[sph.Density](gpuStorage, e)
		assertClose(t, float32(*rhoCPU), float32(*rhoGPU), float32(*rhoCPU), "density of %d", e)

		pCPU, _ := ecs.Get[sph.Pressure](cpuStorage, e)
		pGPU, _ := ecs.Get[sph.Pressure](gpuStorage, e)
		assertClose(t, float32(*pCPU), float32(*pGPU), params.Stiffness, "pressure of %d", e)

		fCPU, _ := ecs.Get[sph.Force](cpuStorage, e)
		fGPU, _ := ecs.Get[sph.Force](gpuStorage, e)
		for axis := range 3 {
			assertClose(t, fCPU.Vec3[axis], fGPU.Vec3[axis], forceScale, "force of %d", e)
			assertClose(t, want.Vec3[axis], got.Vec3[axis], 1, "position of %d", e)
		}
	}
}

func TestPipelineMatchesSolver(t *testing.T) {
	agreeWithSolver(t, sph.DefaultParams())
}

func TestPipelineMatchesSolverWithWideRing(t *testing.T) {
	params := sph.DefaultParams()
	params.CellSize = 1.5
	params.GridRes = 4
	params.HashSize = 61
	agreeWithSolver(t, params)
}

func TestMirrorDetectsUnsyncedSpawn(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	populate(t, spawner)
	mirror := newMirror(t, storage, params)

	require.NoError(t, mirror.SyncToCPU(), "nothing uploaded yet")
	require.NoError(t, mirror.Step())
	require.NoError(t, mirror.SyncToCPU())

	_, err := spawner.SpawnCluster(mgl32.Vec3{0, 10, -40})
	require.NoError(t, err)
	assert.ErrorIs(t, mirror.SyncToCPU(), compute.ErrLayoutMismatch)

	require.NoError(t, mirror.SyncToGPU())
	require.NoError(t, mirror.Step())
	require.NoError(t, mirror.SyncToCPU())
	assert.Equal(t, ecs.PoolOf[sph.Position](storage).Len(), mirror.Buffers().Len())
}

func TestStepSystemKeepsPoolsCurrent(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	e, err := spawner.CreateParticle(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, 1)
	require.NoError(t, err)

	scheduler := ecs.NewScheduler(storage)
	scheduler.Register(&compute.StepSystem{Mirror: newMirror(t, storage, params), Logger: zap.NewNop()})
	scheduler.Once(0.016)
	scheduler.Once(0.016)

	pos, err := ecs.Get[sph.Position](storage, e)
	require.NoError(t, err)
	assert.InDelta(t, 2*params.TimeStep, pos.Vec3[0], 1e-6)

	rho, _ := ecs.Get[sph.Density](storage, e)
	assert.Equal(t, params.DensityFloor, float32(*rho))
}

func TestStepSystemRecoversAfterRemoval(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	a, err := spawner.CreateParticle(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, 1)
	require.NoError(t, err)
	b, err := spawner.CreateParticle(mgl32.Vec3{0, 1000, 0}, mgl32.Vec3{}, 1)
	require.NoError(t, err)

	mirror := newMirror(t, storage, params)
	scheduler := ecs.NewScheduler(storage)
	scheduler.Register(&compute.StepSystem{Mirror: mirror, Logger: zap.NewNop()})
	scheduler.Once(0.016)

	storage.RemoveEntity(b)
	require.ErrorIs(t, mirror.Buffers().Check(storage), compute.ErrLayoutMismatch)

	for range 10 {
		scheduler.Once(0.016)
	}

	pos, err := ecs.Get[sph.Position](storage, a)
	require.NoError(t, err)
	assert.InDelta(t, 11*params.TimeStep, pos.Vec3[0], 1e-4)
	assert.Equal(t, 1, mirror.Buffers().Len())
	assert.NoError(t, mirror.Buffers().Check(storage))
}

func TestSyncToCPUInvalidatesStaleUpload(t *testing.T) {
	params := sph.DefaultParams()
	storage, spawner := newStorage(t, params)
	populate(t, spawner)
	mirror := newMirror(t, storage, params)
	require.NoError(t, mirror.Step())

	storage.RemoveEntity(ecs.PoolOf[sph.Position](storage).DenseEntities()[0])
	assert.ErrorIs(t, mirror.SyncToCPU(), compute.ErrLayoutMismatch)
	assert.NoError(t, mirror.SyncToCPU(), "nothing uploaded until the next step")

	require.NoError(t, mirror.Step())
	require.NoError(t, mirror.SyncToCPU())
	assert.Equal(t, ecs.PoolOf[sph.Position](storage).Len(), mirror.Buffers().Len())
}
