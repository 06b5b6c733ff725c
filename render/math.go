package render

import "github.com/go-gl/mathgl/mgl32"

// VulkanPerspective is a GL style perspective matrix with clip space Y flipped
// for Vulkan's top-left origin. fov is in degrees.
func VulkanPerspective(fov, aspect, near, far float32) mgl32.Mat4 {
	m := mgl32.Perspective(mgl32.DegToRad(fov), aspect, near, far)
	m.Set(1, 1, -m.At(1, 1))
	return m
}

// LightMatrices returns the light's view and projection at time t.
func LightMatrices(l Light, seconds float32) (view, proj mgl32.Mat4) {
	pos := l.Position(seconds)
	view = mgl32.LookAtV(pos, l.Target, mgl32.Vec3{0, 1, 0})
	proj = VulkanPerspective(l.FOV, 1, l.Near, l.Far)
	return view, proj
}

// CameraMatrices returns the camera view and projection for a target extent.
func CameraMatrices(c Camera, extent Extent) (view, proj mgl32.Mat4) {
	view = mgl32.LookAtV(c.Eye, c.Target, c.Up)
	proj = VulkanPerspective(c.FOV, extent.Aspect(), c.Near, c.Far)
	return view, proj
}

// ScreenQuadMatrices place a unit quad so it covers the whole extent, in pixels.
func ScreenQuadMatrices(extent Extent) (model, view, proj mgl32.Mat4) {
	w, h := float32(extent.Width), float32(extent.Height)
	model = mgl32.Scale3D(w/2, h/2, 1)
	view = mgl32.LookAtV(mgl32.Vec3{0, 0.001, 0.55}, mgl32.Vec3{0, 0.001, 0}, mgl32.Vec3{0, 1, 0})
	proj = mgl32.Ortho(-w/2, w/2, h/2, -h/2, -1, 1)
	return model, view, proj
}
