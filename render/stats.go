package render

import (
	"io"
	"log"
	"runtime"
	"time"
)

// Stats tracks frame rate and resize counts, and logs a summary once per
// interval of frame clock time.
type Stats struct {
	logger   *log.Logger
	interval time.Duration

	frames      int
	windowStart time.Duration
	started     bool
	memStats    runtime.MemStats
	readMem     bool

	FPS     float64
	Frames  uint64
	Resizes int
}

// NewStats logs to logger every interval. A nil logger discards output and a
// zero interval means one second.
func NewStats(logger *log.Logger, interval time.Duration) *Stats {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Stats{logger: logger, interval: interval, readMem: logger.Writer() != io.Discard}
}

// Tick counts one presented frame. It returns true when a summary was logged.
func (s *Stats) Tick(fc FrameClock) bool {
	s.Frames++
	if !s.started {
		s.windowStart, s.started = fc.Elapsed, true
	}
	s.frames++
	elapsed := fc.Elapsed - s.windowStart
	if elapsed < s.interval {
		return false
	}

	s.FPS = float64(s.frames) / elapsed.Seconds()
	//ReadMemStats stops the world, skip it when nobody reads the log
	if s.readMem {
		runtime.ReadMemStats(&s.memStats)
	}
	s.logger.Printf("[Stats] FPS: %.2f | Frames: %d | Resizes: %d | Heap: %.2f MB",
		s.FPS, s.Frames, s.Resizes, float64(s.memStats.Alloc)/1024/1024)

	s.frames = 0
	s.windowStart = fc.Elapsed
	return true
}
