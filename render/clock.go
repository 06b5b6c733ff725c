package render

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock is a monotonic time source measured from an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the high resolution process timer.
type SystemClock struct{}

func (SystemClock) Now() time.Duration {
	return hrtime.Now()
}

// FrameClock is the timing state handed to the uniform update of one frame.
type FrameClock struct {
	Frame   uint64
	Elapsed time.Duration
	Delta   time.Duration
}

// Seconds is the elapsed time since the first tick, in seconds.
func (c FrameClock) Seconds() float32 {
	return float32(c.Elapsed.Seconds())
}

// Ticker turns a Clock into successive FrameClock values.
type Ticker struct {
	clock   Clock
	start   time.Duration
	last    time.Duration
	frame   uint64
	started bool
}

func NewTicker(clock Clock) *Ticker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ticker{clock: clock}
}

// Tick advances to the next frame. The first tick reports zero elapsed time.
func (t *Ticker) Tick() FrameClock {
	now := t.clock.Now()
	if !t.started {
		t.start, t.last, t.started = now, now, true
	}
	fc := FrameClock{
		Frame:   t.frame,
		Elapsed: now - t.start,
		Delta:   now - t.last,
	}
	t.last = now
	t.frame++
	return fc
}
