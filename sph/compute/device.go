package compute

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrMissingBarrier is returned when a dispatch is issued before the writes
// of the previous dispatch were made visible with a barrier.
var ErrMissingBarrier = errors.New("dispatch issued without a barrier")

// Kernel is one compute shader invocation.
type Kernel func(invocation int)

// Device issues compute dispatches. A dispatch may run asynchronously; its
// writes are only visible to later dispatches after Barrier returns.
type Device interface {
	Dispatch(name string, invocations int, kernel Kernel) error
	Barrier() error
}

// DeviceStats counts the work a device has been given.
type DeviceStats struct {
	Dispatches  int
	Barriers    int
	Invocations int64
}

// CPUDevice emulates a compute device with goroutines. Each workgroup of
// invocations runs on its own goroutine, so Dispatch returns while the
// kernel is still running and Barrier joins them.
type CPUDevice struct {
	workgroupSize int
	group         *errgroup.Group
	pending       string
	stats         DeviceStats
}

// NewCPUDevice creates a device that splits dispatches into workgroups of
// workgroupSize invocations.
func NewCPUDevice(workgroupSize int) (*CPUDevice, error) {
	if workgroupSize <= 0 {
		return nil, fmt.Errorf("workgroup size %d must be positive", workgroupSize)
	}
	return &CPUDevice{workgroupSize: workgroupSize}, nil
}

// Dispatch starts kernel over [0, invocations) and returns without waiting.
func (d *CPUDevice) Dispatch(name string, invocations int, kernel Kernel) error {
	if d.pending != "" {
		return fmt.Errorf("%s after %s: %w", name, d.pending, ErrMissingBarrier)
	}
	d.pending = name
	d.stats.Dispatches++
	d.stats.Invocations += int64(invocations)

	g := &errgroup.Group{}
	for lo := 0; lo < invocations; lo += d.workgroupSize {
		hi := min(lo+d.workgroupSize, invocations)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				kernel(i)
			}
			return nil
		})
	}
	d.group = g
	return nil
}

// Barrier blocks until the pending dispatch has finished.
func (d *CPUDevice) Barrier() error {
	d.stats.Barriers++
	if d.pending == "" {
		return nil
	}
	err := d.group.Wait()
	d.pending = ""
	d.group = nil
	return err
}

// Stats returns the work counters.
func (d *CPUDevice) Stats() DeviceStats {
	return d.stats
}
