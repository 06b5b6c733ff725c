package dieselsss

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meshPosition(m MeshData, i uint32) mgl32.Vec3 {
	o := int(i) * VertexFloats
	return mgl32.Vec3{m.Vertices[o], m.Vertices[o+1], m.Vertices[o+2]}
}

func meshNormal(m MeshData, i uint32) mgl32.Vec3 {
	o := int(i)*VertexFloats + 3
	return mgl32.Vec3{m.Vertices[o], m.Vertices[o+1], m.Vertices[o+2]}
}

//Every triangle must have area and wind counter-clockwise around its vertex normals
func assertWellFormed(t *testing.T, m MeshData) {
	t.Helper()
	require.Zero(t, len(m.Vertices)%VertexFloats)
	require.Zero(t, len(m.Indices)%3)
	count := uint32(m.VertexCount())
	for _, i := range m.Indices {
		require.Less(t, i, count)
	}
	for i := uint32(0); i < count; i++ {
		assert.InDelta(t, 1, meshNormal(m, i).Len(), 1e-4, "vertex %d", i)
	}
	for tri := 0; tri < len(m.Indices); tri += 3 {
		a, b, c := m.Indices[tri], m.Indices[tri+1], m.Indices[tri+2]
		pa := meshPosition(m, a)
		face := meshPosition(m, b).Sub(pa).Cross(meshPosition(m, c).Sub(pa))
		require.Greater(t, face.Len(), float32(1e-9), "triangle %d is degenerate", tri/3)
		n := meshNormal(m, a).Add(meshNormal(m, b)).Add(meshNormal(m, c))
		assert.Greater(t, face.Dot(n), float32(0), "triangle %d winds clockwise", tri/3)
	}
}

func TestPlane(t *testing.T) {
	m := Plane(2)
	assert.Equal(t, 4, m.VertexCount())
	assert.Len(t, m.Indices, 6)
	for i := uint32(0); i < 4; i++ {
		p := meshPosition(m, i)
		assert.Zero(t, p.Y())
		assert.Equal(t, float32(1), math32.Abs(p.X()))
	}
	assertWellFormed(t, m)
}

func TestScreenQuad(t *testing.T) {
	m := ScreenQuad()
	assert.Equal(t, 4, m.VertexCount())
	assertWellFormed(t, m)
}

func TestCube(t *testing.T) {
	m := Cube(2)
	assert.Equal(t, 24, m.VertexCount())
	assert.Len(t, m.Indices, 36)
	for i := uint32(0); i < 24; i++ {
		p := meshPosition(m, i)
		for k := 0; k < 3; k++ {
			assert.Equal(t, float32(1), math32.Abs(p[k]))
		}
	}
	assertWellFormed(t, m)
}

func TestSphere(t *testing.T) {
	m := Sphere(0.5, 8, 12)
	assert.Equal(t, 9*13, m.VertexCount())
	assert.Len(t, m.Indices, (2*8-2)*12*3)
	for i := uint32(0); i < uint32(m.VertexCount()); i++ {
		assert.InDelta(t, 0.5, meshPosition(m, i).Len(), 1e-4)
	}
	assertWellFormed(t, m)
}

func TestSphereClampsDivisions(t *testing.T) {
	m := Sphere(1, 0, 1)
	assert.Equal(t, 3*4, m.VertexCount())
	assert.Len(t, m.Indices, 2*3*3)
	assertWellFormed(t, m)
}

func TestSpherePolesCoincide(t *testing.T) {
	for _, rings := range []int{2, 7, 32} {
		m := Sphere(0.1, rings, 48)
		stride := uint32(48 + 1)
		south := uint32(rings) * stride
		for s := uint32(0); s < stride; s++ {
			assert.Equal(t, mgl32.Vec3{0, 0.1, 0}, meshPosition(m, s))
			assert.Equal(t, mgl32.Vec3{0, -0.1, 0}, meshPosition(m, south+s))
			assert.Equal(t, mgl32.Vec3{0, -1, 0}, meshNormal(m, south+s))
		}
		assertWellFormed(t, m)
	}
}
