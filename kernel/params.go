package kernel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Params is the tunable input of the kernel. Strength and Falloff are scaled by
// StrengthScale and FalloffScale before the kernel is computed.
type Params struct {
	Samples       int
	Strength      mgl32.Vec3
	Falloff       mgl32.Vec3
	StrengthScale float32
	FalloffScale  float32
}

// DefaultParams is the skin preset: red scatters furthest, blue the least.
func DefaultParams() Params {
	return Params{
		Samples:       MaxSamples,
		Strength:      mgl32.Vec3{0.48, 0.41, 0.28},
		Falloff:       mgl32.Vec3{1.0, 0.37, 0.3},
		StrengthScale: 0.85,
		FalloffScale:  0.9,
	}
}

// Validate checks that the params describe a kernel that fits the blur uniform.
func (p Params) Validate() error {
	if p.Samples < 3 || p.Samples%2 == 0 {
		return fmt.Errorf("%w: got %d", ErrSampleCount, p.Samples)
	}
	if p.Samples > MaxSamples {
		return fmt.Errorf("%w: %d exceeds the uniform capacity of %d", ErrSampleCount, p.Samples, MaxSamples)
	}
	return nil
}

// Kernel computes the kernel described by p.
func (p Params) Kernel() ([]Sample, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return Compute(p.Samples, p.Strength.Mul(p.StrengthScale), p.Falloff.Mul(p.FalloffScale))
}
