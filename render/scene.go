package render

import "github.com/go-gl/mathgl/mgl32"

// Transform places an object in the world. Spin is a rotation rate around +Y in
// degrees per second, applied from the frame clock.
type Transform struct {
	Position mgl32.Vec3
	Scale    mgl32.Vec3
	Spin     float32
}

// Matrix is translate * spin(t) * scale.
func (t Transform) Matrix(seconds float32) mgl32.Mat4 {
	scale := t.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(mgl32.HomogRotate3DY(seconds * mgl32.DegToRad(t.Spin))).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

type Material struct {
	Albedo   TextureBinding
	Normal   TextureBinding
	Specular TextureBinding
}

// RenderObject is a mesh supplied by the loader. The renderer reads it and
// never owns its buffers or textures.
type RenderObject struct {
	Name      string
	Mesh      Mesh
	Transform Transform
	Material  Material
	// Lit objects receive directional light and shadows, unlit ones ambient only.
	Lit         bool
	CastsShadow bool
	// Overlay objects are drawn again, un-blurred, by the composite pass.
	Overlay bool
	// TracksLight moves the object along the light direction every frame.
	TracksLight bool
}

// Camera is the viewer of the G-buffer pass.
type Camera struct {
	Eye, Target, Up mgl32.Vec3
	FOV             float32
	Near, Far       float32
}

func DefaultCamera() Camera {
	return Camera{
		Eye:    mgl32.Vec3{0, 0.1, 0.55},
		Target: mgl32.Vec3{0, 0.015, 0},
		Up:     mgl32.Vec3{0, 1, 0},
		FOV:    45,
		Near:   0.01,
		Far:    100,
	}
}

// Light is the single animated shadow casting light.
type Light struct {
	Origin      mgl32.Vec3
	Target      mgl32.Vec3
	Orbit       float32 // degrees per second around +Y
	FOV         float32
	Near, Far   float32
	Ambient     mgl32.Vec4
	Directional mgl32.Vec4
	// MarkerDistance is how far TracksLight objects sit from the light toward the target.
	MarkerDistance float32
	// Depth bias of the shadow pass.
	BiasConstant, BiasSlope float32
}

func DefaultLight() Light {
	return Light{
		Origin:         mgl32.Vec3{0, 0.1, -0.75},
		Target:         mgl32.Vec3{0, 0.015, 0},
		Orbit:          45,
		FOV:            45,
		Near:           0.01,
		Far:            150,
		Ambient:        mgl32.Vec4{0.1, 0.1, 0.1, 1},
		Directional:    mgl32.Vec4{1, 1, 1, 1},
		MarkerDistance: 0.55,
		BiasConstant:   DepthBiasConstant,
		BiasSlope:      DepthBiasSlope,
	}
}

// Rotation is the light's orbit rotation at time t.
func (l Light) Rotation(seconds float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(seconds * mgl32.DegToRad(l.Orbit))
}

// Position is the light origin after orbiting for t seconds.
func (l Light) Position(seconds float32) mgl32.Vec3 {
	return l.Rotation(seconds).Transpose().Mul4x1(l.Origin.Vec4(1)).Vec3()
}

// MarkerPosition is where TracksLight objects are placed at time t.
func (l Light) MarkerPosition(seconds float32) mgl32.Vec3 {
	pos := l.Position(seconds)
	dir := l.Target.Sub(pos)
	if dir.Len() == 0 {
		return pos
	}
	return pos.Add(dir.Normalize().Mul(l.MarkerDistance))
}
