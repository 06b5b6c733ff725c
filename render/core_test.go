package render

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/dieselsss/kernel"
)

func TestScopeReleasesInReverse(t *testing.T) {
	var order []int
	var s Scope
	for i := 0; i < 3; i++ {
		i := i
		s.Defer(func() { order = append(order, i) })
	}
	assert.Equal(t, 3, s.Len())
	s.Release()
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.Zero(t, s.Len())

	s.Release()
	assert.Len(t, order, 3)
}

func TestAcquireSkipsFailedCreate(t *testing.T) {
	var s Scope
	released := 0
	_, err := acquire(&s, func() (int, error) { return 0, errInjected }, func(int) { released++ })
	assert.ErrorIs(t, err, errInjected)
	assert.Zero(t, s.Len())

	v, err := acquire(&s, func() (int, error) { return 7, nil }, func(got int) { released += got })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	s.Release()
	assert.Equal(t, 7, released)
}

func TestTicker(t *testing.T) {
	ticker := NewTicker(&stepClock{now: 5 * time.Second, step: 20 * time.Millisecond})

	first := ticker.Tick()
	assert.Equal(t, FrameClock{}, first)

	second := ticker.Tick()
	assert.Equal(t, uint64(1), second.Frame)
	assert.Equal(t, 20*time.Millisecond, second.Elapsed)
	assert.Equal(t, 20*time.Millisecond, second.Delta)

	third := ticker.Tick()
	assert.Equal(t, 40*time.Millisecond, third.Elapsed)
	assert.InDelta(t, 0.04, third.Seconds(), 1e-6)
}

func TestStatsLogsOncePerInterval(t *testing.T) {
	s := NewStats(nil, time.Second)
	logged := 0
	for i := 0; i <= 120; i++ {
		if s.Tick(FrameClock{Elapsed: time.Duration(i) * time.Second / 60}) {
			logged++
		}
	}
	assert.Equal(t, 2, logged)
	assert.InDelta(t, 60, s.FPS, 1)
	assert.Equal(t, uint64(121), s.Frames)
}

func TestStatsReadsHeapOnlyForRealLogs(t *testing.T) {
	quiet := NewStats(nil, time.Second)
	assert.False(t, quiet.readMem)
	quiet.Tick(FrameClock{})
	require.True(t, quiet.Tick(FrameClock{Elapsed: time.Second}))
	assert.Zero(t, quiet.memStats.Sys)

	var out bytes.Buffer
	loud := NewStats(log.New(&out, "", 0), time.Second)
	assert.True(t, loud.readMem)
	loud.Tick(FrameClock{})
	require.True(t, loud.Tick(FrameClock{Elapsed: time.Second}))
	assert.NotZero(t, loud.memStats.Sys)
	assert.Contains(t, out.String(), "[Stats] FPS")
}

func TestFatalError(t *testing.T) {
	err := fatal("submit", errInjected)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, "render: fatal submit: injected failure", err.Error())

	wrapped := fmt.Errorf("frame 3: %w", err)
	assert.Equal(t, wrapped, fatal("record", wrapped), "fatal errors are not wrapped twice")
	assert.False(t, IsFatal(errInjected))
}

func TestIsStale(t *testing.T) {
	assert.True(t, IsStale(ErrSurfaceStale))
	assert.True(t, IsStale(fmt.Errorf("present: %w", ErrSuboptimal)))
	assert.False(t, IsStale(ErrTimeout))
	assert.False(t, IsStale(errors.New("device lost")))
}

func TestVulkanPerspectiveFlipsY(t *testing.T) {
	gl := mgl32.Perspective(mgl32.DegToRad(45), 1.5, 0.01, 100)
	vk := VulkanPerspective(45, 1.5, 0.01, 100)
	assert.Equal(t, -gl.At(1, 1), vk.At(1, 1))
	assert.Equal(t, gl.At(0, 0), vk.At(0, 0))
	assert.Equal(t, gl.At(2, 3), vk.At(2, 3))
}

func TestLightOrbit(t *testing.T) {
	l := DefaultLight()
	p0 := l.Position(0)
	assert.InDelta(t, 0, p0[0], 1e-6)
	assert.InDelta(t, -0.75, p0[2], 1e-6)

	// 45 degrees per second, so a quarter turn after two seconds.
	p2 := l.Position(2)
	assert.InDelta(t, 0.75, p2[0], 1e-5)
	assert.InDelta(t, 0.1, p2[1], 1e-6)
	assert.InDelta(t, 0, p2[2], 1e-5)

	marker := l.MarkerPosition(2)
	assert.InDelta(t, l.MarkerDistance, marker.Sub(p2).Len(), 1e-5)
	assert.Less(t, marker.Sub(l.Target).Len(), p2.Sub(l.Target).Len())
}

func TestScreenQuadCoversExtent(t *testing.T) {
	model, view, proj := ScreenQuadMatrices(Extent{Width: 800, Height: 600})
	mvp := proj.Mul4(view).Mul4(model)
	corner := mvp.Mul4x1(mgl32.Vec4{1, 1, 0, 1})
	assert.InDelta(t, 1, corner[0]/corner[3], 1e-4)
	assert.InDelta(t, 1, mgl32.Abs(corner[1]/corner[3]), 1e-4)
}

func TestTransformDefaultsScale(t *testing.T) {
	tr := Transform{Position: mgl32.Vec3{0, 1, 0}}
	assert.Equal(t, mgl32.Translate3D(0, 1, 0), tr.Matrix(0))

	spun := Transform{Scale: mgl32.Vec3{2, 2, 2}, Spin: 90}
	v := spun.Matrix(1).Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, v[0], 1e-5)
	assert.InDelta(t, -2, v[2], 1e-5)
}

func TestUniformLayout(t *testing.T) {
	assert.Equal(t, 416, (&SceneUniform{}).Size())
	assert.Equal(t, 64, (&ShadowUniform{}).Size())
	assert.Equal(t, 608, (&BlurUniform{}).Size())

	su := SceneUniform{Model: mgl32.Ident4(), Ambient: mgl32.Vec4{0.1, 0.2, 0.3, 1}}
	b := su.Marshal()
	require.Len(t, b, SceneUniformSize)
	assert.Equal(t, float32(1), floatAt(b, 0))
	assert.Equal(t, float32(1), floatAt(b, 5*4))
	assert.Equal(t, float32(0.2), floatAt(b, 388))

	samples, err := kernel.DefaultParams().Kernel()
	require.NoError(t, err)
	var bu BlurUniform
	bu.SetKernel(append(samples, samples...))
	assert.Equal(t, kernel.MaxSamples, bu.Samples, "excess samples are dropped")
	out := bu.Marshal()
	assert.Equal(t, samples[0].Weight[0], floatAt(out, 192))
	assert.Equal(t, samples[1].Offset, floatAt(out, 192+16+12))
}
