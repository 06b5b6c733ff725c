package dieselsss

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/dieselsss/render"
)

//MeshData is an indexed triangle list with interleaved position, normal and
//texcoord vertices. Front faces wind counter-clockwise.
type MeshData struct {
	Vertices []float32
	Indices  []uint32
}

//MeshUploader moves mesh data onto the device
type MeshUploader interface {
	CreateMesh(vertices []float32, indices []uint32) (render.Mesh, error)
	DestroyMesh(m render.Mesh)
}

func (m *MeshData) VertexCount() int {
	return len(m.Vertices) / VertexFloats
}

func (m *MeshData) vertex(pos, normal mgl32.Vec3, u, v float32) uint32 {
	index := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, pos[0], pos[1], pos[2], normal[0], normal[1], normal[2], u, v)
	return index
}

//quad appends two triangles a-b-c, a-c-d
func (m *MeshData) quad(a, b, c, d uint32) {
	m.Indices = append(m.Indices, a, b, c, a, c, d)
}

func (m MeshData) Upload(up MeshUploader) (render.Mesh, error) {
	return up.CreateMesh(m.Vertices, m.Indices)
}

//Plane is a size x size floor at y = 0 facing +Y
func Plane(size float32) MeshData {
	h := size / 2
	up := mgl32.Vec3{0, 1, 0}
	var m MeshData
	a := m.vertex(mgl32.Vec3{-h, 0, -h}, up, 0, 0)
	b := m.vertex(mgl32.Vec3{-h, 0, h}, up, 0, 1)
	c := m.vertex(mgl32.Vec3{h, 0, h}, up, 1, 1)
	d := m.vertex(mgl32.Vec3{h, 0, -h}, up, 1, 0)
	m.quad(a, b, c, d)
	return m
}

//ScreenQuad is the unit quad in XY facing +Z, the blur passes scale it to the extent
func ScreenQuad() MeshData {
	n := mgl32.Vec3{0, 0, 1}
	var m MeshData
	a := m.vertex(mgl32.Vec3{-1, -1, 0}, n, 0, 0)
	b := m.vertex(mgl32.Vec3{1, -1, 0}, n, 1, 0)
	c := m.vertex(mgl32.Vec3{1, 1, 0}, n, 1, 1)
	d := m.vertex(mgl32.Vec3{-1, 1, 0}, n, 0, 1)
	m.quad(a, b, c, d)
	return m
}

//Cube is an axis aligned cube of edge size with flat per face normals
func Cube(size float32) MeshData {
	h := size / 2
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	var m MeshData
	for _, f := range faces {
		center := f.normal.Mul(h)
		u, v := f.u.Mul(h), f.v.Mul(h)
		a := m.vertex(center.Sub(u).Sub(v), f.normal, 0, 1)
		b := m.vertex(center.Add(u).Sub(v), f.normal, 1, 1)
		c := m.vertex(center.Add(u).Add(v), f.normal, 1, 0)
		d := m.vertex(center.Sub(u).Add(v), f.normal, 0, 0)
		m.quad(a, b, c, d)
	}
	return m
}

//Sphere is a UV sphere with the given ring and segment counts. The seam column
//is duplicated so texcoords wrap cleanly, the pole rings close with single triangles.
func Sphere(radius float32, rings, segments int) MeshData {
	if rings < 2 {
		rings = 2
	}
	if segments < 3 {
		segments = 3
	}
	var m MeshData
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		theta := v * math32.Pi
		sin_theta, cos_theta := math32.Sin(theta), math32.Cos(theta)
		if r == 0 || r == rings {
			sin_theta, cos_theta = 0, 1-2*float32(r/rings)
		}
		for s := 0; s <= segments; s++ {
			u := float32(s) / float32(segments)
			phi := u * 2 * math32.Pi
			n := mgl32.Vec3{
				sin_theta * math32.Sin(phi),
				cos_theta,
				sin_theta * math32.Cos(phi),
			}
			m.vertex(n.Mul(radius), n, u, v)
		}
	}
	stride := uint32(segments + 1)
	last := uint32(rings - 1)
	for r := uint32(0); r <= last; r++ {
		for s := uint32(0); s < uint32(segments); s++ {
			top := r*stride + s
			bottom := top + stride
			switch r {
			case 0:
				m.Indices = append(m.Indices, top, bottom, bottom+1)
			case last:
				m.Indices = append(m.Indices, top, bottom+1, top+1)
			default:
				m.quad(top, bottom, bottom+1, top+1)
			}
		}
	}
	return m
}
