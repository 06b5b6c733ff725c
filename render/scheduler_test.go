package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerHarness struct {
	log     *[]string
	device  *fakeDevice
	surface *fakeSurface
	target  *fakeTarget
	sched   *FrameScheduler
}

func newSchedulerHarness(t *testing.T, extents ...Extent) *schedulerHarness {
	t.Helper()
	if len(extents) == 0 {
		extents = []Extent{{Width: 800, Height: 600}}
	}
	log := new([]string)
	h := &schedulerHarness{
		log:     log,
		device:  newFakeDevice(log),
		surface: &fakeSurface{log: log, extents: extents},
		target:  &fakeTarget{log: log},
	}
	h.sched = NewFrameScheduler(h.device, h.surface, h.target, SchedulerOptions{
		Clock: &stepClock{step: 16 * time.Millisecond},
	})
	return h
}

func (h *schedulerHarness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sched.Start())
	*h.log = (*h.log)[:0]
}

func (h *schedulerHarness) count(entry string) int {
	n := 0
	for _, e := range *h.log {
		if e == entry {
			n++
		}
	}
	return n
}

func TestSchedulerFrameOrder(t *testing.T) {
	h := newSchedulerHarness(t)
	h.start(t)

	require.NoError(t, h.sched.Frame())
	assert.Equal(t, []string{
		"WaitFence 3",
		"AcquireNextImage",
		"Record 0",
		"ResetFence 3",
		"Submit",
		"Present",
	}, *h.log)
	assert.Equal(t, 1, h.sched.Current())
}

func TestSchedulerSlotsRotate(t *testing.T) {
	h := newSchedulerHarness(t)
	h.start(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, h.sched.Frame())
	}
	var records []string
	for _, e := range *h.log {
		if len(e) > 6 && e[:6] == "Record" {
			records = append(records, e)
		}
	}
	assert.Equal(t, []string{"Record 0", "Record 1", "Record 0", "Record 1"}, records)
	assert.Equal(t, 2, h.count("WaitFence 3"))
	assert.Equal(t, 2, h.count("WaitFence 7"))
	assert.Equal(t, uint64(4), h.sched.Stats().Frames)
}

func TestSchedulerStaleAcquireRebuilds(t *testing.T) {
	h := newSchedulerHarness(t)
	h.start(t)
	h.device.acquireErrs = []error{ErrSurfaceStale}

	f, ok, err := h.sched.BeginFrame()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Frame{}, f)
	assert.Equal(t, []string{
		"WaitFence 3",
		"AcquireNextImage",
		"WaitIdle",
		"Destroy",
		"Create 800x600",
	}, *h.log)
	assert.Zero(t, h.count("Submit"))
	assert.Zero(t, h.count("Present"))
	assert.Equal(t, 0, h.sched.Current(), "slot does not advance on a skipped frame")

	// The fence was never reset, so the retry does not block.
	require.NoError(t, h.sched.Frame())
	assert.Equal(t, 2, h.count("WaitFence 3"))
	assert.Equal(t, 1, h.count("Submit"))
}

func TestSchedulerSuboptimalAcquireRendersThenRebuilds(t *testing.T) {
	h := newSchedulerHarness(t)
	h.start(t)
	h.device.acquireErrs = []error{ErrSuboptimal}

	require.NoError(t, h.sched.Frame())
	assert.Equal(t, 1, h.count("Present"))
	assert.Equal(t, 1, h.count("Destroy"))
	assert.Equal(t, 1, h.count("Create 800x600"))
}

func TestSchedulerStalePresentRebuildsAfterAdvance(t *testing.T) {
	h := newSchedulerHarness(t)
	h.start(t)
	h.device.presentErrs = []error{ErrSurfaceStale}

	require.NoError(t, h.sched.Frame())
	assert.Equal(t, []string{"Present", "WaitIdle", "Destroy", "Create 800x600"}, (*h.log)[5:])
	assert.Equal(t, 1, h.sched.Current())
	assert.Equal(t, 1, h.sched.Stats().Resizes)
}

func TestSchedulerResizeRequest(t *testing.T) {
	h := newSchedulerHarness(t, Extent{Width: 800, Height: 600}, Extent{Width: 1024, Height: 768})
	h.start(t)
	h.surface.resize = true

	require.NoError(t, h.sched.Frame())
	assert.False(t, h.surface.resize)
	assert.Equal(t, 1, h.count("Create 1024x768"))
	assert.Equal(t, []Extent{{Width: 800, Height: 600}, {Width: 1024, Height: 768}}, h.target.created)
}

func TestSchedulerWaitsWhileMinimized(t *testing.T) {
	h := newSchedulerHarness(t,
		Extent{Width: 800, Height: 600},
		Extent{}, Extent{}, Extent{},
		Extent{Width: 640, Height: 480},
	)
	h.start(t)
	h.device.acquireErrs = []error{ErrSurfaceStale}

	_, ok, err := h.sched.BeginFrame()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, h.count("WaitEvents"))
	assert.Equal(t, 1, h.count("Create 640x480"))
	assert.Equal(t, 1, h.count("WaitIdle"))
}

func TestSchedulerFatalErrors(t *testing.T) {
	t.Run("fence", func(t *testing.T) {
		h := newSchedulerHarness(t)
		h.start(t)
		h.device.waitFenceErr = ErrTimeout

		err := h.sched.Frame()
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Zero(t, h.count("AcquireNextImage"))
	})
	t.Run("acquire", func(t *testing.T) {
		h := newSchedulerHarness(t)
		h.start(t)
		h.device.acquireErrs = []error{errInjected}

		err := h.sched.Frame()
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, errInjected)
	})
	t.Run("present", func(t *testing.T) {
		h := newSchedulerHarness(t)
		h.start(t)
		h.device.presentErrs = []error{errInjected}

		err := h.sched.Frame()
		assert.True(t, IsFatal(err))
		assert.Zero(t, h.count("Destroy"))
	})
	t.Run("record", func(t *testing.T) {
		h := newSchedulerHarness(t)
		h.start(t)
		h.target.recordErr = errInjected

		err := h.sched.Frame()
		assert.True(t, IsFatal(err))
		assert.Zero(t, h.count("Submit"))
	})
	t.Run("recreate", func(t *testing.T) {
		h := newSchedulerHarness(t)
		h.start(t)
		h.device.acquireErrs = []error{ErrSurfaceStale}
		h.target.createErr = errInjected

		_, _, err := h.sched.BeginFrame()
		assert.True(t, IsFatal(err))
	})
}

func TestSchedulerStartFailureReleasesSlots(t *testing.T) {
	h := newSchedulerHarness(t)
	h.target.createErr = errInjected

	err := h.sched.Start()
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Zero(t, h.device.liveCount())
}

func TestSchedulerClose(t *testing.T) {
	h := newSchedulerHarness(t)
	h.start(t)
	assert.Equal(t, 2, h.device.liveOf("fence"))

	require.NoError(t, h.sched.Close())
	require.NoError(t, h.sched.Close())
	assert.Equal(t, []string{"WaitIdle", "Destroy"}, *h.log)
	assert.Zero(t, h.device.liveCount())

	_, _, err := h.sched.BeginFrame()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSchedulerRun(t *testing.T) {
	t.Run("until close", func(t *testing.T) {
		h := newSchedulerHarness(t)
		h.surface.closeAfter = 3

		require.NoError(t, h.sched.Run(context.Background()))
		assert.Equal(t, 3, h.count("Present"))
		require.NoError(t, h.sched.Close())
	})
	t.Run("cancelled", func(t *testing.T) {
		h := newSchedulerHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := h.sched.Run(ctx)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Zero(t, h.count("Present"))
	})
}
