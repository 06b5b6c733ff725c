package render

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/dieselsss/kernel"
)

// SceneUniform is the per object block of the G-buffer and composite pipelines.
// Layout (std140, 416 bytes):
//
//	offset   0: model
//	offset  64: view
//	offset 128: proj
//	offset 192: lightRot
//	offset 256: lightSpace (light proj * light view * model)
//	offset 320: lightViewProj
//	offset 384: ambient colour, w is 1 for lit objects
//	offset 400: directional colour
type SceneUniform struct {
	Model         mgl32.Mat4
	View          mgl32.Mat4
	Proj          mgl32.Mat4
	LightRot      mgl32.Mat4
	LightSpace    mgl32.Mat4
	LightViewProj mgl32.Mat4
	Ambient       mgl32.Vec4
	Directional   mgl32.Vec4
}

const SceneUniformSize = 6*64 + 2*16

func (u *SceneUniform) Size() int {
	return SceneUniformSize
}

func (u *SceneUniform) Marshal() []byte {
	buf := make([]byte, SceneUniformSize)
	off := 0
	for _, m := range []*mgl32.Mat4{&u.Model, &u.View, &u.Proj, &u.LightRot, &u.LightSpace, &u.LightViewProj} {
		off = putFloats(buf, off, m[:])
	}
	off = putFloats(buf, off, u.Ambient[:])
	putFloats(buf, off, u.Directional[:])
	return buf
}

// ShadowUniform is the per object block of the shadow pipeline.
type ShadowUniform struct {
	DepthMVP mgl32.Mat4
}

const ShadowUniformSize = 64

func (u *ShadowUniform) Size() int {
	return ShadowUniformSize
}

func (u *ShadowUniform) Marshal() []byte {
	buf := make([]byte, ShadowUniformSize)
	putFloats(buf, 0, u.DepthMVP[:])
	return buf
}

// BlurUniform drives one direction of the separable blur.
// Layout (std140, 608 bytes):
//
//	offset   0: model, view, proj of the screen quad
//	offset 192: kernel[MaxSamples] as (weight.rgb, offset)
//	offset 592: direction.xy, sample count in z
type BlurUniform struct {
	Model     mgl32.Mat4
	View      mgl32.Mat4
	Proj      mgl32.Mat4
	Kernel    [kernel.MaxSamples]mgl32.Vec4
	Direction mgl32.Vec2
	Samples   int
}

const BlurUniformSize = 3*64 + kernel.MaxSamples*16 + 16

func (u *BlurUniform) Size() int {
	return BlurUniformSize
}

// SetKernel copies samples into the block. Samples beyond MaxSamples are dropped.
func (u *BlurUniform) SetKernel(samples []kernel.Sample) {
	u.Kernel = [kernel.MaxSamples]mgl32.Vec4{}
	n := len(samples)
	if n > kernel.MaxSamples {
		n = kernel.MaxSamples
	}
	for i := 0; i < n; i++ {
		u.Kernel[i] = samples[i].Vec4()
	}
	u.Samples = n
}

func (u *BlurUniform) Marshal() []byte {
	buf := make([]byte, BlurUniformSize)
	off := 0
	for _, m := range []*mgl32.Mat4{&u.Model, &u.View, &u.Proj} {
		off = putFloats(buf, off, m[:])
	}
	for i := range u.Kernel {
		off = putFloats(buf, off, u.Kernel[i][:])
	}
	putFloats(buf, off, []float32{u.Direction[0], u.Direction[1], float32(u.Samples), 0})
	return buf
}

func putFloats(buf []byte, off int, values []float32) int {
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	return off
}
