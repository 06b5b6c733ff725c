package render

import (
	"errors"
	"fmt"
	"time"
)

var errInjected = errors.New("injected failure")

// fakeDevice is an in-memory Device that hands out handles and logs every
// call that matters to ordering tests.
type fakeDevice struct {
	next  Handle
	log   *[]string
	live  map[Handle]string
	names map[Handle]string

	depthSupported map[Format]bool
	depthProbes    int
	imageCount     int
	scExtent       Extent

	fail         map[string]error
	acquireErrs  []error
	presentErrs  []error
	waitFenceErr error
	waitIdleErr  error

	writes       map[Handle][]byte
	descriptors  map[Handle][]DescriptorWrite
	passes       map[Handle]PassDesc
	framebuffers []FramebufferDesc
	pipelines    []PipelineDesc
	draws        map[string]int
	boundPass    string
}

func newFakeDevice(log *[]string) *fakeDevice {
	if log == nil {
		log = new([]string)
	}
	return &fakeDevice{
		log:            log,
		live:           make(map[Handle]string),
		names:          make(map[Handle]string),
		depthSupported: map[Format]bool{FormatD32Sfloat: true, FormatD32SfloatS8Uint: true, FormatD24UnormS8Uint: true},
		imageCount:     3,
		fail:           make(map[string]error),
		writes:         make(map[Handle][]byte),
		descriptors:    make(map[Handle][]DescriptorWrite),
		passes:         make(map[Handle]PassDesc),
		draws:          make(map[string]int),
	}
}

func (f *fakeDevice) record(format string, args ...interface{}) {
	*f.log = append(*f.log, fmt.Sprintf(format, args...))
}

func (f *fakeDevice) alloc(kind string) Handle {
	f.next++
	f.live[f.next] = kind
	return f.next
}

func (f *fakeDevice) release(h Handle) {
	delete(f.live, h)
}

func (f *fakeDevice) liveCount() int {
	return len(f.live)
}

func (f *fakeDevice) liveOf(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (f *fakeDevice) DepthFormatSupported(format Format) bool {
	f.depthProbes++
	return f.depthSupported[format]
}

func (f *fakeDevice) CreateAttachment(desc AttachmentDesc) (Attachment, error) {
	if err := f.fail["CreateAttachment"]; err != nil {
		return Attachment{}, err
	}
	return Attachment{Desc: desc, Image: f.alloc("image"), View: f.alloc("view"), Memory: f.alloc("memory")}, nil
}

func (f *fakeDevice) DestroyAttachment(a Attachment) {
	f.release(a.Image)
	f.release(a.View)
	f.release(a.Memory)
}

func (f *fakeDevice) CreateSampler(desc SamplerDesc) (Handle, error) {
	return f.alloc("sampler"), nil
}

func (f *fakeDevice) DestroySampler(h Handle) { f.release(h) }

func (f *fakeDevice) CreateUniformBuffer(size int) (Buffer, error) {
	if err := f.fail["CreateUniformBuffer"]; err != nil {
		return Buffer{}, err
	}
	return Buffer{Handle: f.alloc("buffer"), Memory: f.alloc("memory"), Size: size}, nil
}

func (f *fakeDevice) WriteBuffer(b Buffer, data []byte) error {
	if err := f.fail["WriteBuffer"]; err != nil {
		return err
	}
	f.writes[b.Handle] = append([]byte(nil), data...)
	return nil
}

func (f *fakeDevice) DestroyBuffer(b Buffer) {
	f.release(b.Handle)
	f.release(b.Memory)
}

func (f *fakeDevice) CreateRenderPass(desc PassDesc) (Handle, error) {
	h := f.alloc("pass")
	f.names[h] = desc.Name
	f.passes[h] = desc
	return h, nil
}

func (f *fakeDevice) DestroyRenderPass(h Handle) { f.release(h) }

func (f *fakeDevice) CreateFramebuffer(desc FramebufferDesc) (Handle, error) {
	f.framebuffers = append(f.framebuffers, desc)
	return f.alloc("framebuffer"), nil
}

func (f *fakeDevice) DestroyFramebuffer(h Handle) { f.release(h) }

func (f *fakeDevice) CreatePipeline(desc PipelineDesc) (Handle, error) {
	if err := f.fail["CreatePipeline"]; err != nil {
		return NullHandle, err
	}
	f.pipelines = append(f.pipelines, desc)
	return f.alloc("pipeline"), nil
}

func (f *fakeDevice) DestroyPipeline(h Handle) { f.release(h) }

func (f *fakeDevice) AllocateDescriptorSet(writes []DescriptorWrite) (Handle, error) {
	h := f.alloc("set")
	f.descriptors[h] = writes
	return h, nil
}

func (f *fakeDevice) FreeDescriptorSet(h Handle) { f.release(h) }

func (f *fakeDevice) CreateSwapchain(extent Extent, images int) (Swapchain, error) {
	if err := f.fail["CreateSwapchain"]; err != nil {
		return Swapchain{}, err
	}
	if !f.scExtent.IsZero() {
		extent = f.scExtent
	}
	sc := Swapchain{Handle: f.alloc("swapchain"), Format: FormatB8G8R8A8Unorm, Extent: extent}
	for i := 0; i < f.imageCount; i++ {
		sc.Images = append(sc.Images, Attachment{
			Desc:  AttachmentDesc{Format: sc.Format, Extent: extent, Samples: 1},
			Image: f.alloc("swapchain-image"),
			View:  f.alloc("view"),
		})
	}
	return sc, nil
}

func (f *fakeDevice) DestroySwapchain(sc Swapchain) {
	for _, img := range sc.Images {
		f.release(img.Image)
		f.release(img.View)
	}
	f.release(sc.Handle)
}

func (f *fakeDevice) BeginCommands(cmd Handle) error {
	f.record("BeginCommands")
	return nil
}

func (f *fakeDevice) BeginPass(cmd, pass, framebuffer Handle, extent Extent, clears []ClearValue) {
	f.boundPass = f.names[pass]
	f.record("BeginPass %s", f.boundPass)
}

func (f *fakeDevice) SetViewport(cmd Handle, vp Viewport) {}
func (f *fakeDevice) SetScissor(cmd Handle, r Rect) {}
func (f *fakeDevice) SetDepthBias(cmd Handle, constant, slope float32) { f.record("SetDepthBias") }
func (f *fakeDevice) BindPipeline(cmd, pipeline Handle) {}
func (f *fakeDevice) BindDescriptorSet(cmd, set Handle) {}
func (f *fakeDevice) DrawMesh(cmd Handle, m Mesh) { f.draws[f.boundPass]++ }
func (f *fakeDevice) EndPass(cmd Handle) { f.record("EndPass") }
func (f *fakeDevice) PipelineBarrier(cmd Handle, barriers []Barrier) { f.record("PipelineBarrier %d", len(barriers)) }
func (f *fakeDevice) EndCommands(cmd Handle) error {
	f.record("EndCommands")
	return nil
}

func (f *fakeDevice) CreateFrameSlot() (FrameSlot, error) {
	if err := f.fail["CreateFrameSlot"]; err != nil {
		return FrameSlot{}, err
	}
	return FrameSlot{
		ImageAvailable: f.alloc("semaphore"),
		RenderFinished: f.alloc("semaphore"),
		InFlight:       f.alloc("fence"),
		Commands:       f.alloc("commands"),
	}, nil
}

func (f *fakeDevice) DestroyFrameSlot(s FrameSlot) {
	f.release(s.ImageAvailable)
	f.release(s.RenderFinished)
	f.release(s.InFlight)
	f.release(s.Commands)
}

func (f *fakeDevice) WaitFence(fence Handle, timeout time.Duration) error {
	f.record("WaitFence %d", fence)
	return f.waitFenceErr
}

func (f *fakeDevice) ResetFence(fence Handle) error {
	f.record("ResetFence %d", fence)
	return nil
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeDevice) AcquireNextImage(sc Swapchain, signal Handle, timeout time.Duration) (uint32, error) {
	f.record("AcquireNextImage")
	return 0, pop(&f.acquireErrs)
}

func (f *fakeDevice) Submit(cmd, wait, signal, fence Handle) error {
	f.record("Submit")
	return nil
}

func (f *fakeDevice) Present(sc Swapchain, image uint32, wait Handle) error {
	f.record("Present")
	return pop(&f.presentErrs)
}

func (f *fakeDevice) WaitIdle() error {
	f.record("WaitIdle")
	return f.waitIdleErr
}

// fakeShaders returns empty programs for any name.
type fakeShaders struct {
	missing string
}

func (s fakeShaders) Program(name string, stage ShaderStage) (ShaderProgram, error) {
	if name == s.missing {
		return ShaderProgram{}, fmt.Errorf("shader %s.%s not found", name, stage)
	}
	return ShaderProgram{Name: name, Stage: stage, Code: []byte{0x03, 0x02, 0x23, 0x07}, Entry: "main"}, nil
}

// fakeSurface reports a queue of extents, repeating the last one.
type fakeSurface struct {
	log        *[]string
	extents    []Extent
	resize     bool
	closeAfter int
	polls      int
}

func (s *fakeSurface) FramebufferExtent() Extent {
	e := s.extents[0]
	if len(s.extents) > 1 {
		s.extents = s.extents[1:]
	}
	return e
}

func (s *fakeSurface) ShouldClose() bool {
	return s.closeAfter > 0 && s.polls >= s.closeAfter
}

func (s *fakeSurface) ResizeRequested() bool { return s.resize }
func (s *fakeSurface) ClearResize() { s.resize = false }
func (s *fakeSurface) PollEvents() { s.polls++ }

func (s *fakeSurface) WaitEvents() {
	*s.log = append(*s.log, "WaitEvents")
}

// fakeTarget logs its lifecycle into the shared call log.
type fakeTarget struct {
	log       *[]string
	created   []Extent
	destroys  int
	recordErr error
	createErr error
}

func (t *fakeTarget) Create(extent Extent) error {
	*t.log = append(*t.log, fmt.Sprintf("Create %dx%d", extent.Width, extent.Height))
	if t.createErr != nil {
		return t.createErr
	}
	t.created = append(t.created, extent)
	return nil
}

func (t *fakeTarget) Destroy() {
	*t.log = append(*t.log, "Destroy")
	t.destroys++
}

func (t *fakeTarget) Swapchain() Swapchain {
	return Swapchain{Handle: 1}
}

func (t *fakeTarget) Record(cmd Handle, slot int, image uint32, clock FrameClock) error {
	*t.log = append(*t.log, fmt.Sprintf("Record %d", slot))
	return t.recordErr
}

type stepClock struct {
	now  time.Duration
	step time.Duration
}

func (c *stepClock) Now() time.Duration {
	now := c.now
	c.now += c.step
	return now
}

func testObjects() []RenderObject {
	quad := Mesh{Vertices: 900, Indices: 901, IndexCount: 6}
	return []RenderObject{
		{Name: "floor", Mesh: quad, Lit: true, CastsShadow: true},
		{Name: "head", Mesh: quad, Lit: true, CastsShadow: true, Transform: Transform{Spin: 30}},
		{Name: "light", Mesh: quad, Overlay: true, TracksLight: true},
	}
}
