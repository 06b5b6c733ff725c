package dieselsss

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

var (
	DefaultVulkanAppVersion = vk.Version(vk.MakeVersion(1, 0, 0))
	DefaultVulkanAPIVersion = vk.Version(vk.MakeVersion(1, 1, 0))
)

//Application supplies the scene a BaseCore renders. Scene is called once after
//the device is up; Release gets the same uploader back at shutdown.
type Application interface {
	VulkanAppName() string
	VulkanAppVersion() vk.Version
	Scene(up MeshUploader) ([]render.RenderObject, error)
	Release(up MeshUploader)
}

//SkinDemo is the subsurface scattering showcase: a lit, spinning head stand-in
//over a floor, with an unblurred marker riding along the light.
type SkinDemo struct {
	meshes []render.Mesh
}

func NewSkinDemo() *SkinDemo {
	return &SkinDemo{}
}

func (app *SkinDemo) VulkanAppName() string {
	return "dieselsss skin demo"
}

func (app *SkinDemo) VulkanAppVersion() vk.Version {
	return DefaultVulkanAppVersion
}

func (app *SkinDemo) upload(up MeshUploader, name string, data MeshData) (render.Mesh, error) {
	mesh, err := data.Upload(up)
	if err != nil {
		return mesh, fmt.Errorf("mesh %s: %w", name, err)
	}
	app.meshes = append(app.meshes, mesh)
	return mesh, nil
}

func (app *SkinDemo) Scene(up MeshUploader) (objects []render.RenderObject, err error) {
	defer func() {
		if err != nil {
			app.Release(up)
		}
	}()

	floor, err := app.upload(up, "floor", Plane(2))
	if err != nil {
		return nil, err
	}
	head, err := app.upload(up, "head", Sphere(0.1, 32, 48))
	if err != nil {
		return nil, err
	}
	marker, err := app.upload(up, "light", Cube(0.02))
	if err != nil {
		return nil, err
	}

	return []render.RenderObject{
		{
			Name:      "floor",
			Mesh:      floor,
			Transform: render.Transform{Position: mgl32.Vec3{0, -0.1, 0}, Scale: mgl32.Vec3{1, 1, 1}},
			Lit:       true,
		},
		{
			Name:        "head",
			Mesh:        head,
			Transform:   render.Transform{Position: mgl32.Vec3{0, 0.015, 0}, Scale: mgl32.Vec3{1, 1, 1}, Spin: 20},
			Lit:         true,
			CastsShadow: true,
		},
		{
			Name:        "light",
			Mesh:        marker,
			Transform:   render.Transform{Scale: mgl32.Vec3{1, 1, 1}},
			Overlay:     true,
			TracksLight: true,
		},
	}, nil
}

func (app *SkinDemo) Release(up MeshUploader) {
	for _, m := range app.meshes {
		up.DestroyMesh(m)
	}
	app.meshes = nil
}

var _ Application = (*SkinDemo)(nil)
