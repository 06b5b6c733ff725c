package dieselsss

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

type fakeUploader struct {
	next    render.Handle
	live    map[render.Handle]bool
	failAt  int
	created int
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{live: map[render.Handle]bool{}, failAt: -1}
}

func (f *fakeUploader) CreateMesh(vertices []float32, indices []uint32) (render.Mesh, error) {
	if f.created == f.failAt {
		return render.Mesh{}, errors.New("out of device memory")
	}
	f.created++
	f.next += 2
	f.live[f.next] = true
	return render.Mesh{Vertices: f.next - 1, Indices: f.next, IndexCount: uint32(len(indices))}, nil
}

func (f *fakeUploader) DestroyMesh(m render.Mesh) {
	delete(f.live, m.Indices)
}

func TestSkinDemoScene(t *testing.T) {
	up := newFakeUploader()
	app := NewSkinDemo()
	objects, err := app.Scene(up)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.Len(t, up.live, 3)

	byName := map[string]render.RenderObject{}
	for _, o := range objects {
		assert.NotZero(t, o.Mesh.IndexCount, o.Name)
		byName[o.Name] = o
	}

	head := byName["head"]
	assert.True(t, head.Lit)
	assert.True(t, head.CastsShadow)
	assert.False(t, head.Overlay)
	assert.NotZero(t, head.Transform.Spin)

	floor := byName["floor"]
	assert.True(t, floor.Lit)
	assert.False(t, floor.CastsShadow)

	light := byName["light"]
	assert.True(t, light.Overlay)
	assert.True(t, light.TracksLight)
	assert.False(t, light.Lit)

	app.Release(up)
	assert.Empty(t, up.live)
}

func TestSkinDemoSceneReleasesOnError(t *testing.T) {
	up := newFakeUploader()
	up.failAt = 2
	app := NewSkinDemo()
	_, err := app.Scene(up)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mesh light")
	assert.Empty(t, up.live)
}

func TestSkinDemoVersions(t *testing.T) {
	var app Application = NewSkinDemo()
	assert.Equal(t, vk.Version(vk.MakeVersion(1, 0, 0)), app.VulkanAppVersion())
	assert.Equal(t, vk.MakeVersion(1, 1, 0), uint32(DefaultVulkanAPIVersion))
	assert.NotEmpty(t, app.VulkanAppName())
}
