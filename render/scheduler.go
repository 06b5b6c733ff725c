package render

import (
	"context"
	"errors"
	"io"
	"log"
	"time"
)

const (
	DefaultFramesInFlight = 2
	DefaultFenceTimeout   = 10 * time.Second
)

// FrameSlot is the synchronization and command state of one frame in flight.
// InFlight is created signaled so the first wait on it returns at once.
type FrameSlot struct {
	ImageAvailable Handle
	RenderFinished Handle
	InFlight       Handle
	Commands       Handle
}

// FrameTarget is whatever the scheduler renders into. Create and Destroy bracket
// every swapchain lifetime, Record fills a slot's command buffer.
type FrameTarget interface {
	Create(extent Extent) error
	Destroy()
	Swapchain() Swapchain
	Record(cmd Handle, slot int, image uint32, clock FrameClock) error
}

type SchedulerOptions struct {
	FramesInFlight int
	FenceTimeout   time.Duration
	Clock          Clock
	Logger         *log.Logger
	Stats          *Stats
}

// Frame is one acquired swapchain image bound to a frame slot.
type Frame struct {
	Slot  int
	Image uint32
	Clock FrameClock
}

// FrameScheduler drives the acquire, record, submit and present cycle over a
// ring of frame slots and rebuilds the target when the surface changes.
type FrameScheduler struct {
	queue   Queue
	surface Surface
	target  FrameTarget
	opts    SchedulerOptions
	ticker  *Ticker
	logger  *log.Logger
	stats   *Stats

	slots   []FrameSlot
	current int
	stale   bool
	started bool
	closed  bool
	scope   Scope
}

func NewFrameScheduler(queue Queue, surface Surface, target FrameTarget, opts SchedulerOptions) *FrameScheduler {
	if opts.FramesInFlight <= 0 {
		opts.FramesInFlight = DefaultFramesInFlight
	}
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = DefaultFenceTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	stats := opts.Stats
	if stats == nil {
		stats = NewStats(logger, time.Second)
	}
	return &FrameScheduler{
		queue:   queue,
		surface: surface,
		target:  target,
		opts:    opts,
		ticker:  NewTicker(opts.Clock),
		logger:  logger,
		stats:   stats,
		slots:   make([]FrameSlot, opts.FramesInFlight),
	}
}

func (s *FrameScheduler) Stats() *Stats {
	return s.stats
}

// Current is the slot the next BeginFrame uses.
func (s *FrameScheduler) Current() int {
	return s.current
}

// Start creates the frame slots and builds the target for the current surface
// extent, waiting while the surface reports a zero size.
func (s *FrameScheduler) Start() (err error) {
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	defer func() {
		if err != nil {
			s.scope.Release()
		}
	}()
	for i := range s.slots {
		if s.slots[i], err = acquire(&s.scope, s.queue.CreateFrameSlot, s.queue.DestroyFrameSlot); err != nil {
			return fatal("create frame slot", err)
		}
	}
	extent := s.waitExtent()
	if err = s.target.Create(extent); err != nil {
		return fatal("create frame target", err)
	}
	s.started = true
	s.logger.Printf("scheduler started: %d frames in flight, %dx%d", len(s.slots), extent.Width, extent.Height)
	return nil
}

// BeginFrame waits for the current slot's previous submission and acquires the
// next swapchain image. ok is false when the surface was stale and the target
// was rebuilt instead; the caller simply tries again.
func (s *FrameScheduler) BeginFrame() (f Frame, ok bool, err error) {
	if s.closed {
		return Frame{}, false, ErrClosed
	}
	slot := &s.slots[s.current]
	if err = s.queue.WaitFence(slot.InFlight, s.opts.FenceTimeout); err != nil {
		return Frame{}, false, fatal("wait frame fence", err)
	}
	image, err := s.queue.AcquireNextImage(s.target.Swapchain(), slot.ImageAvailable, s.opts.FenceTimeout)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuboptimal):
		s.stale = true
	case errors.Is(err, ErrSurfaceStale):
		return Frame{}, false, s.resize()
	default:
		return Frame{}, false, fatal("acquire image", err)
	}
	return Frame{Slot: s.current, Image: image, Clock: s.ticker.Tick()}, true, nil
}

// SubmitFrame records f, submits it and queues it for presentation.
func (s *FrameScheduler) SubmitFrame(f Frame) error {
	slot := &s.slots[f.Slot]
	if err := s.target.Record(slot.Commands, f.Slot, f.Image, f.Clock); err != nil {
		return fatal("record frame", err)
	}
	if err := s.queue.ResetFence(slot.InFlight); err != nil {
		return fatal("reset frame fence", err)
	}
	if err := s.queue.Submit(slot.Commands, slot.ImageAvailable, slot.RenderFinished, slot.InFlight); err != nil {
		return fatal("submit frame", err)
	}
	err := s.queue.Present(s.target.Swapchain(), f.Image, slot.RenderFinished)
	switch {
	case err == nil:
	case IsStale(err):
		s.stale = true
	default:
		return fatal("present frame", err)
	}
	s.stats.Tick(f.Clock)
	return nil
}

// EndFrame advances to the next slot and rebuilds the target when presentation
// reported a stale surface or the window was resized.
func (s *FrameScheduler) EndFrame() error {
	s.current = (s.current + 1) % len(s.slots)
	if s.stale || s.surface.ResizeRequested() {
		s.stale = false
		s.surface.ClearResize()
		return s.resize()
	}
	return nil
}

// Frame runs one full frame.
func (s *FrameScheduler) Frame() error {
	f, ok, err := s.BeginFrame()
	if err != nil || !ok {
		return err
	}
	if err := s.SubmitFrame(f); err != nil {
		return err
	}
	return s.EndFrame()
}

// Run starts the scheduler if needed and renders until the surface closes or
// ctx is done. Any error returned is fatal; the caller should Close.
func (s *FrameScheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	for !s.surface.ShouldClose() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.surface.PollEvents()
		if err := s.Frame(); err != nil {
			return err
		}
	}
	return nil
}

func (s *FrameScheduler) waitExtent() Extent {
	extent := s.surface.FramebufferExtent()
	for extent.IsZero() && !s.surface.ShouldClose() {
		s.surface.WaitEvents()
		extent = s.surface.FramebufferExtent()
	}
	return extent
}

func (s *FrameScheduler) resize() error {
	extent := s.waitExtent()
	if extent.IsZero() {
		return nil
	}
	if err := s.queue.WaitIdle(); err != nil {
		return fatal("wait idle before resize", err)
	}
	s.target.Destroy()
	if err := s.target.Create(extent); err != nil {
		return fatal("recreate frame target", err)
	}
	s.stats.Resizes++
	s.logger.Printf("swapchain rebuilt at %dx%d", extent.Width, extent.Height)
	return nil
}

// Close waits for the device to go idle and releases the target and every
// frame slot. Calling Close more than once is safe.
func (s *FrameScheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.started {
		s.scope.Release()
		return nil
	}
	err := s.queue.WaitIdle()
	s.target.Destroy()
	s.scope.Release()
	if err != nil {
		return fatal("wait idle on close", err)
	}
	return nil
}
