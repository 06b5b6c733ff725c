package dieselsss

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//CoreDisplay is the glfw window the swapchain presents to. It implements
//render.Surface and must be used from the main thread.
type CoreDisplay struct {
	window  *glfw.Window
	resized bool
}

//InitDisplay initializes glfw and loads the Vulkan loader through it
func InitDisplay() error {
	if err := glfw.Init(); err != nil {
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("glfw reports no Vulkan loader")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return err
	}
	return nil
}

func TerminateDisplay() {
	glfw.Terminate()
}

//Creates a resizable window without a client API, glfw must be initialized
func NewCoreDisplay(width, height int, title string) (*CoreDisplay, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, err
	}
	core := &CoreDisplay{window: window}
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		core.resized = true
	})
	return core, nil
}

func (core *CoreDisplay) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ret, err := core.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, fmt.Errorf("failed to create vulkan window surface: %w", err)
	}
	return vk.SurfaceFromPointer(ret), nil
}

//Instance extensions glfw needs to create a surface on this platform
func (core *CoreDisplay) RequiredExtensions() []string {
	return core.window.GetRequiredInstanceExtensions()
}

func (core *CoreDisplay) GetSize() (int, int) {
	return core.window.GetSize()
}

func (core *CoreDisplay) FramebufferExtent() render.Extent {
	w, h := core.window.GetFramebufferSize()
	if w < 0 || h < 0 {
		return render.Extent{}
	}
	return render.Extent{Width: uint32(w), Height: uint32(h)}
}

func (core *CoreDisplay) ShouldClose() bool {
	return core.window.ShouldClose()
}

func (core *CoreDisplay) ResizeRequested() bool {
	return core.resized
}

func (core *CoreDisplay) ClearResize() {
	core.resized = false
}

func (core *CoreDisplay) PollEvents() {
	glfw.PollEvents()
}

func (core *CoreDisplay) WaitEvents() {
	glfw.WaitEvents()
}

//Requests the window to close, the render loop exits after the current frame
func (core *CoreDisplay) Close() {
	core.window.SetShouldClose(true)
}

func (core *CoreDisplay) Destroy() {
	if core.window != nil {
		core.window.Destroy()
		core.window = nil
	}
}

var _ render.Surface = (*CoreDisplay)(nil)
