package render

import "time"

// Handle is an opaque device object issued by a Device. The zero Handle is never valid.
type Handle uint64

// NullHandle marks an absent object.
const NullHandle Handle = 0

type Extent struct {
	Width  uint32
	Height uint32
}

func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR16G16B16A16Sfloat
	FormatD16Unorm
	FormatD32Sfloat
	FormatD32SfloatS8Uint
	FormatD24UnormS8Uint
)

var formatNames = map[Format]string{
	FormatUndefined:          "UNDEFINED",
	FormatB8G8R8A8Unorm:      "B8G8R8A8_UNORM",
	FormatB8G8R8A8Srgb:       "B8G8R8A8_SRGB",
	FormatR8G8B8A8Unorm:      "R8G8B8A8_UNORM",
	FormatR16G16B16A16Sfloat: "R16G16B16A16_SFLOAT",
	FormatD16Unorm:           "D16_UNORM",
	FormatD32Sfloat:          "D32_SFLOAT",
	FormatD32SfloatS8Uint:    "D32_SFLOAT_S8_UINT",
	FormatD24UnormS8Uint:     "D24_UNORM_S8_UINT",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "UNKNOWN"
}

func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD32SfloatS8Uint, FormatD24UnormS8Uint:
		return true
	}
	return false
}

func (f Format) HasStencil() bool {
	return f == FormatD32SfloatS8Uint || f == FormatD24UnormS8Uint
}

// Layout is the image layout an attachment is in between commands.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutShaderRead
	LayoutDepthRead
	LayoutPresent
)

var layoutNames = [...]string{"undefined", "color-attachment", "depth-attachment", "shader-read", "depth-read", "present"}

func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return "unknown"
}

// Stage is a pipeline stage mask.
type Stage uint32

const (
	StageTopOfPipe Stage = 1 << iota
	StageEarlyFragmentTests
	StageFragmentShader
	StageLateFragmentTests
	StageColorOutput
	StageBottomOfPipe
)

// Access is a memory access mask.
type Access uint32

const (
	AccessShaderRead Access = 1 << iota
	AccessColorRead
	AccessColorWrite
	AccessDepthRead
	AccessDepthWrite
	AccessMemoryRead
)

type ImageUsage uint32

const (
	UsageColor ImageUsage = 1 << iota
	UsageDepth
	UsageSampled
)

type AttachmentDesc struct {
	Name    string
	Format  Format
	Extent  Extent
	Samples int
	Usage   ImageUsage
}

// Attachment is an image, its memory and its view, created and released together.
type Attachment struct {
	Desc   AttachmentDesc
	Image  Handle
	Memory Handle
	View   Handle
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

type SamplerDesc struct {
	Filter      Filter
	WhiteBorder bool
}

type Buffer struct {
	Handle Handle
	Memory Handle
	Size   int
}

// Mesh is vertex and index data already resident on the device.
// Vertices are position, normal, texcoord at locations 0, 1, 2.
type Mesh struct {
	Vertices   Handle
	Indices    Handle
	IndexCount uint32
}

// TextureBinding pairs a sampled view with the sampler used to read it.
type TextureBinding struct {
	View    Handle
	Sampler Handle
}

type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Color: [4]float32{r, g, b, a}}
}

func ClearDepth(depth float32) ClearValue {
	return ClearValue{Depth: depth}
}

type LoadOp int

const (
	LoadClear LoadOp = iota
	LoadKeep
	LoadDontCare
)

type StoreOp int

const (
	StoreKeep StoreOp = iota
	StoreDontCare
)

// AttachmentOp describes how a render pass uses one attachment.
type AttachmentOp struct {
	Format  Format
	Samples int
	Load    LoadOp
	Store   StoreOp
	Initial Layout
	Final   Layout
}

// Dependency is an external subpass dependency. Incoming dependencies guard
// the start of the pass, outgoing ones its end.
type Dependency struct {
	Incoming  bool
	SrcStage  Stage
	DstStage  Stage
	SrcAccess Access
	DstAccess Access
}

// PassDesc is a single subpass render pass. Framebuffer views are ordered
// colors, then depth, then resolves.
type PassDesc struct {
	Name         string
	Colors       []AttachmentOp
	Depth        *AttachmentOp
	Resolves     []AttachmentOp
	Dependencies []Dependency
}

type FramebufferDesc struct {
	Pass   Handle
	Views  []Handle
	Extent Extent
}

type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageVertex {
		return "vert"
	}
	return "frag"
}

// ShaderProgram is an opaque compiled shader identified by stage and entry point.
type ShaderProgram struct {
	Name  string
	Stage ShaderStage
	Code  []byte
	Entry string
}

type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type PipelineDesc struct {
	Name         string
	Pass         Handle
	Vertex       ShaderProgram
	Fragment     *ShaderProgram
	ColorTargets int
	Samples      int
	DepthTest    bool
	DepthWrite   bool
	DepthBias    bool
	Cull         CullMode
}

// Descriptor binding numbers shared by every pipeline layout and shader.
const (
	BindingUniform  uint32 = 0
	BindingAlbedo   uint32 = 1
	BindingShadow   uint32 = 2
	BindingNormal   uint32 = 3
	BindingSpecular uint32 = 4
)

// DescriptorWrite fills one binding. Exactly one of Buffer or Texture is set.
type DescriptorWrite struct {
	Binding uint32
	Buffer  *Buffer
	Texture TextureBinding
	Layout  Layout
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

func FullViewport(e Extent) Viewport {
	return Viewport{Width: float32(e.Width), Height: float32(e.Height), MaxDepth: 1}
}

type Rect struct {
	X, Y   int32
	Extent Extent
}

// Barrier orders a write by one pass before a read by the next.
type Barrier struct {
	Attachment *Attachment
	Old, New   Layout
	SrcStage   Stage
	DstStage   Stage
	SrcAccess  Access
	DstAccess  Access
}

// Swapchain is the presentable image set returned by the device.
type Swapchain struct {
	Handle Handle
	Format Format
	Extent Extent
	Images []Attachment
}

// Allocator creates and releases device objects. Any creation error is fatal to
// the caller's startup or resize path.
type Allocator interface {
	DepthFormatSupported(f Format) bool
	CreateAttachment(desc AttachmentDesc) (Attachment, error)
	DestroyAttachment(a Attachment)
	CreateSampler(desc SamplerDesc) (Handle, error)
	DestroySampler(h Handle)
	CreateUniformBuffer(size int) (Buffer, error)
	WriteBuffer(b Buffer, data []byte) error
	DestroyBuffer(b Buffer)
	CreateRenderPass(desc PassDesc) (Handle, error)
	DestroyRenderPass(h Handle)
	CreateFramebuffer(desc FramebufferDesc) (Handle, error)
	DestroyFramebuffer(h Handle)
	CreatePipeline(desc PipelineDesc) (Handle, error)
	DestroyPipeline(h Handle)
	AllocateDescriptorSet(writes []DescriptorWrite) (Handle, error)
	FreeDescriptorSet(h Handle)
	CreateSwapchain(extent Extent, images int) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
}

// Recorder writes commands into a command buffer.
type Recorder interface {
	BeginCommands(cmd Handle) error
	BeginPass(cmd, pass, framebuffer Handle, extent Extent, clears []ClearValue)
	SetViewport(cmd Handle, vp Viewport)
	SetScissor(cmd Handle, r Rect)
	SetDepthBias(cmd Handle, constant, slope float32)
	BindPipeline(cmd, pipeline Handle)
	BindDescriptorSet(cmd, set Handle)
	DrawMesh(cmd Handle, m Mesh)
	PipelineBarrier(cmd Handle, barriers []Barrier)
	EndPass(cmd Handle)
	EndCommands(cmd Handle) error
}

// Queue owns submission, presentation and frame synchronization.
// AcquireNextImage and Present report ErrSurfaceStale or ErrSuboptimal for
// surfaces that no longer match the swapchain.
type Queue interface {
	CreateFrameSlot() (FrameSlot, error)
	DestroyFrameSlot(s FrameSlot)
	WaitFence(fence Handle, timeout time.Duration) error
	ResetFence(fence Handle) error
	AcquireNextImage(sc Swapchain, signal Handle, timeout time.Duration) (uint32, error)
	Submit(cmd, wait, signal, fence Handle) error
	Present(sc Swapchain, image uint32, wait Handle) error
	WaitIdle() error
}

type Device interface {
	Allocator
	Recorder
	Queue
}

// ShaderLibrary resolves shader programs by name.
type ShaderLibrary interface {
	Program(name string, stage ShaderStage) (ShaderProgram, error)
}

// Surface is the presentation window as the scheduler sees it.
type Surface interface {
	FramebufferExtent() Extent
	ShouldClose() bool
	ResizeRequested() bool
	ClearResize()
	PollEvents()
	WaitEvents()
}
