// Package kernel precomputes the 1-D separable blur kernel used by the
// screen-space subsurface scattering passes. The kernel approximates a skin
// diffusion profile as a weighted sum of five Gaussians, sampled along one
// screen axis and normalized per color channel.
package kernel

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Range is the half width of the kernel, offsets span [-Range, Range].
	Range = 2.0
	// Exponent warps the linearly spaced offsets so samples bunch up near the center.
	Exponent = 2.0
	// MaxSamples is the size of the kernel array in the blur uniform block.
	MaxSamples = 25

	falloffEpsilon = 0.001
)

// Variances and mixture weights of the five Gaussians forming the skin profile.
var (
	variances = [5]float32{0.0484, 0.187, 0.567, 1.99, 7.41}
	mixture   = [5]float32{0.100, 0.118, 0.113, 0.358, 0.078}
)

var (
	ErrSampleCount = errors.New("kernel: sample count must be odd, at least 3")
	ErrFalloff     = errors.New("kernel: falloff must be finite and non-negative")
)

// Sample is one tap of the separable kernel.
type Sample struct {
	// Weight is the per channel contribution of the tap.
	Weight mgl32.Vec3
	// Offset is the position of the tap along the blur axis, in [-Range, Range].
	Offset float32
}

// Vec4 packs the sample the way the blur shaders read it: rgb weight, w offset.
func (s Sample) Vec4() mgl32.Vec4 {
	return s.Weight.Vec4(s.Offset)
}

// Compute returns n kernel samples for the given per channel strength and falloff.
// The sample at offset zero is moved to index 0 and every channel sums to one.
func Compute(n int, strength, falloff mgl32.Vec3) ([]Sample, error) {
	if n < 3 || n%2 == 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSampleCount, n)
	}
	for c := 0; c < 3; c++ {
		f := falloff[c]
		if f < 0 || math32.IsNaN(f) || math32.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: channel %d is %v", ErrFalloff, c, f)
		}
	}

	samples := make([]Sample, n)
	step := 2 * Range / float32(n-1)
	for i := range samples {
		o := -Range + float32(i)*step
		sign := float32(1)
		if o < 0 {
			sign = -1
		}
		samples[i].Offset = sign * Range * math32.Pow(math32.Abs(o)/Range, Exponent)
	}

	// Trapezoid rule, the missing neighbour at either end counts as zero width.
	for i := range samples {
		var area float32
		if i > 0 {
			area += math32.Abs(samples[i].Offset - samples[i-1].Offset)
		}
		if i < n-1 {
			area += math32.Abs(samples[i].Offset - samples[i+1].Offset)
		}
		area /= 2
		samples[i].Weight = Profile(falloff, samples[i].Offset).Mul(area)
	}

	center := 0
	for i := range samples {
		if math32.Abs(samples[i].Offset) < math32.Abs(samples[center].Offset) {
			center = i
		}
	}
	c := samples[center]
	copy(samples[1:center+1], samples[:center])
	samples[0] = c

	var sum mgl32.Vec3
	for _, s := range samples {
		sum = sum.Add(s.Weight)
	}
	for i := range samples {
		for ch := 0; ch < 3; ch++ {
			samples[i].Weight[ch] /= sum[ch]
		}
	}

	for ch := 0; ch < 3; ch++ {
		samples[0].Weight[ch] = (1 - strength[ch]) + strength[ch]*samples[0].Weight[ch]
	}
	for i := 1; i < n; i++ {
		for ch := 0; ch < 3; ch++ {
			samples[i].Weight[ch] *= strength[ch]
		}
	}
	return samples, nil
}

// Profile evaluates the diffusion profile at distance r. Each channel's falloff
// stretches the Gaussians to model how deep that wavelength penetrates.
func Profile(falloff mgl32.Vec3, r float32) mgl32.Vec3 {
	var p mgl32.Vec3
	for i := range variances {
		p = p.Add(gaussian(variances[i], r, falloff).Mul(mixture[i]))
	}
	return p
}

func gaussian(variance, r float32, falloff mgl32.Vec3) mgl32.Vec3 {
	var g mgl32.Vec3
	for c := 0; c < 3; c++ {
		rr := r / (falloffEpsilon + falloff[c])
		g[c] = math32.Exp(-(rr*rr)/(2*variance)) / (2 * 3.14 * variance)
	}
	return g
}
