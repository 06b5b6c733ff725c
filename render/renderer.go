package render

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/andewx/dieselsss/kernel"
)

// DefaultImageCount is the swapchain length requested from the surface.
const DefaultImageCount = 3

type RendererOptions struct {
	Resources  ResourceOptions
	Camera     Camera
	Light      Light
	Kernel     kernel.Params
	Quad       Mesh
	ImageCount int
	Logger     *log.Logger
}

// Renderer is the FrameTarget that ties the frame resources, the pass graph and
// the per frame uniform update together.
type Renderer struct {
	device    Device
	objects   []RenderObject
	opts      RendererOptions
	resources *FrameResourceSet
	graph     *Graph
	logger    *log.Logger

	mu      sync.Mutex
	pending *kernel.Params
	params  kernel.Params
	samples []kernel.Sample
}

func NewRenderer(device Device, shaders ShaderLibrary, objects []RenderObject, opts RendererOptions) (*Renderer, error) {
	if opts.ImageCount <= 0 {
		opts.ImageCount = DefaultImageCount
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Kernel.Samples == 0 {
		opts.Kernel = kernel.DefaultParams()
	}
	if opts.Camera.FOV == 0 {
		opts.Camera = DefaultCamera()
	}
	if opts.Light.FOV == 0 {
		opts.Light = DefaultLight()
	}
	samples, err := opts.Kernel.Kernel()
	if err != nil {
		return nil, fmt.Errorf("render: kernel: %w", err)
	}
	res := NewFrameResourceSet(device, objects, opts.Resources)
	nodes := StandardPasses(objects, PassOptions{
		Multisampled: res.Multisampled(),
		Quad:         opts.Quad,
		BiasConstant: opts.Light.BiasConstant,
		BiasSlope:    opts.Light.BiasSlope,
	})
	return &Renderer{
		device:    device,
		objects:   objects,
		opts:      opts,
		resources: res,
		graph:     NewGraph(device, shaders, nodes),
		logger:    opts.Logger,
		params:    opts.Kernel,
		samples:   samples,
	}, nil
}

func (r *Renderer) Resources() *FrameResourceSet {
	return r.resources
}

func (r *Renderer) Graph() *Graph {
	return r.graph
}

// Create builds the frame resources and the pass graph for extent.
func (r *Renderer) Create(extent Extent) error {
	r.graph.Destroy()
	if err := r.resources.Create(extent, r.opts.ImageCount); err != nil {
		return err
	}
	if err := r.graph.Build(r.resources); err != nil {
		r.resources.Destroy()
		return err
	}
	r.logger.Printf("frame resources created: %dx%d, %d images, depth %s",
		r.resources.Extent.Width, r.resources.Extent.Height, r.resources.Images.Len(), r.resources.DepthFormat)
	return nil
}

// Destroy releases the graph and then the resources it references.
func (r *Renderer) Destroy() {
	r.graph.Destroy()
	r.resources.Destroy()
}

func (r *Renderer) Swapchain() Swapchain {
	return r.resources.Images.Swapchain
}

// SetKernel validates p and schedules it for the next recorded frame. It may be
// called from any goroutine.
func (r *Renderer) SetKernel(p kernel.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.pending = &p
	r.mu.Unlock()
	return nil
}

// Kernel returns the parameters of the kernel currently in use.
func (r *Renderer) Kernel() kernel.Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

func (r *Renderer) applyKernel() error {
	r.mu.Lock()
	p := r.pending
	r.pending = nil
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	samples, err := p.Kernel()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.params = *p
	r.mu.Unlock()
	r.samples = samples
	r.logger.Printf("scattering kernel updated: %d samples", p.Samples)
	return nil
}

// Record writes the slot's uniforms and records every pass into cmd.
func (r *Renderer) Record(cmd Handle, slot int, image uint32, clock FrameClock) error {
	if err := r.applyKernel(); err != nil {
		r.logger.Printf("scattering kernel rejected: %v", err)
	}
	if err := r.UpdateUniforms(slot, clock); err != nil {
		return err
	}
	if err := r.device.BeginCommands(cmd); err != nil {
		return err
	}
	r.graph.Record(cmd, r.resources, slot, image)
	return r.device.EndCommands(cmd)
}

// ModelMatrix places obj at time seconds. Light tracking objects follow the
// light marker position.
func (r *Renderer) ModelMatrix(obj RenderObject, seconds float32) mgl32.Mat4 {
	t := obj.Transform
	if obj.TracksLight {
		t.Position = r.opts.Light.MarkerPosition(seconds)
	}
	return t.Matrix(seconds)
}

// UpdateUniforms fills the scene, shadow and blur blocks of one frame slot.
func (r *Renderer) UpdateUniforms(slot int, clock FrameClock) error {
	res := r.resources
	if slot < 0 || slot >= len(res.Slots) {
		return fmt.Errorf("render: frame slot %d out of range", slot)
	}
	s := &res.Slots[slot]
	t := clock.Seconds()
	light := r.opts.Light

	lightView, lightProj := LightMatrices(light, t)
	lightVP := lightProj.Mul4(lightView)
	view, proj := CameraMatrices(r.opts.Camera, res.Extent)
	rot := light.Rotation(t)

	for i, obj := range r.objects {
		model := r.ModelMatrix(obj, t)
		su := SceneUniform{
			Model:         model,
			View:          view,
			Proj:          proj,
			LightRot:      rot,
			LightSpace:    lightVP.Mul4(model),
			LightViewProj: lightVP,
			Ambient:       light.Ambient,
			Directional:   light.Directional,
		}
		if !obj.Lit {
			su.Ambient[3] = 0
			su.Directional = mgl32.Vec4{}
		}
		if err := r.device.WriteBuffer(s.Scene[i], su.Marshal()); err != nil {
			return fmt.Errorf("object %q scene uniform: %w", obj.Name, err)
		}
		sh := ShadowUniform{DepthMVP: su.LightSpace}
		if err := r.device.WriteBuffer(s.Shadow[i], sh.Marshal()); err != nil {
			return fmt.Errorf("object %q shadow uniform: %w", obj.Name, err)
		}
	}

	qm, qv, qp := ScreenQuadMatrices(res.Extent)
	directions := [2]mgl32.Vec2{{1, 0}, {0, 1}}
	for d := range s.Blur {
		bu := BlurUniform{Model: qm, View: qv, Proj: qp, Direction: directions[d]}
		bu.SetKernel(r.samples)
		if err := r.device.WriteBuffer(s.Blur[d], bu.Marshal()); err != nil {
			return fmt.Errorf("blur uniform %d: %w", d, err)
		}
	}
	return nil
}
