package compute

import (
	"errors"
	"fmt"

	"github.com/plus3/sapphire/ecs"
	"github.com/plus3/sapphire/sph"
	"go.uber.org/zap"
)

var _ sph.Syncer = (*Mirror)(nil)

// Mirror owns the device buffers for one storage. The component pools stay
// authoritative: SyncToGPU uploads them whole and SyncToCPU copies the
// simulated state back.
type Mirror struct {
	storage  *ecs.Storage
	pipeline *Pipeline
	buffers  Buffers
	uploaded bool
}

// NewMirror creates a mirror for storage stepping with pipeline.
func NewMirror(storage *ecs.Storage, pipeline *Pipeline) *Mirror {
	return &Mirror{storage: storage, pipeline: pipeline}
}

// Buffers exposes the device side arrays.
func (m *Mirror) Buffers() *Buffers {
	return &m.buffers
}

// SyncToGPU uploads every particle pool.
func (m *Mirror) SyncToGPU() error {
	if err := m.buffers.Upload(m.storage, m.pipeline.Params().HashSize); err != nil {
		return fmt.Errorf("sync to gpu: %w", err)
	}
	m.uploaded = true
	return nil
}

// SyncToCPU downloads the simulated state into the pools. It is a no-op
// before the first upload. When the pools changed shape since the upload
// nothing is copied and the next Step uploads again.
func (m *Mirror) SyncToCPU() error {
	if !m.uploaded {
		return nil
	}
	if err := m.buffers.Download(m.storage); err != nil {
		if errors.Is(err, ErrLayoutMismatch) {
			m.uploaded = false
		}
		return fmt.Errorf("sync to cpu: %w", err)
	}
	return nil
}

// Step picks up the current Params singleton and runs one pipeline step on
// the device buffers. It uploads first if nothing has been uploaded yet or
// the pools no longer match the buffers.
func (m *Mirror) Step() error {
	if params, err := ecs.GetSingleton[sph.Params](m.storage); err == nil && *params != m.pipeline.Params() {
		if err := m.pipeline.SetParams(*params); err != nil {
			return err
		}
		// The hash table size may have changed.
		m.uploaded = false
	}
	if m.uploaded && m.buffers.Check(m.storage) != nil {
		m.uploaded = false
	}
	if !m.uploaded {
		if err := m.SyncToGPU(); err != nil {
			return err
		}
	}
	return m.pipeline.Step(&m.buffers)
}

// StepSystem runs the compute pipeline once per frame and copies the result
// back so CPU side systems and renderers observe the new state.
type StepSystem struct {
	Mirror *Mirror
	Logger *zap.Logger

	lastErr string
}

func (s *StepSystem) Execute(frame *ecs.UpdateFrame) {
	err := s.Mirror.Step()
	if err == nil {
		err = s.Mirror.SyncToCPU()
	}
	if err == nil {
		s.lastErr = ""
		return
	}
	if err.Error() != s.lastErr && s.Logger != nil {
		s.Logger.Warn("compute tick skipped", zap.Uint64("frame", frame.Frame), zap.Error(err))
	}
	s.lastErr = err.Error()
}
