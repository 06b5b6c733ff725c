package render

import (
	"fmt"
)

// AttachmentID names an attachment slot of the frame resources.
type AttachmentID int

const (
	AttachShadow AttachmentID = iota
	AttachPosition
	AttachNormal
	AttachAlbedo
	AttachDepth
	AttachPositionResolved
	AttachNormalResolved
	AttachAlbedoResolved
	AttachSSS
	AttachCompositeDepth
	// AttachPresent is the swapchain image acquired for the current frame.
	AttachPresent
)

var attachmentNames = [...]string{
	"shadow", "position", "normal", "albedo", "depth",
	"position-resolved", "normal-resolved", "albedo-resolved",
	"sss", "composite-depth", "present",
}

func (id AttachmentID) String() string {
	if int(id) < len(attachmentNames) {
		return attachmentNames[id]
	}
	return fmt.Sprintf("attachment(%d)", int(id))
}

// DepthCandidates is the ranked list of G-buffer depth formats.
var DepthCandidates = []Format{FormatD32Sfloat, FormatD32SfloatS8Uint, FormatD24UnormS8Uint}

const (
	DefaultShadowResolution = 2048
	ShadowFormat            = FormatD16Unorm
	GBufferFloatFormat      = FormatR16G16B16A16Sfloat
	GBufferColorFormat      = FormatB8G8R8A8Unorm
)

type ResourceOptions struct {
	// ShadowResolution is the square shadow map size, independent of the window.
	ShadowResolution uint32
	// Samples is the G-buffer sample count, 1 disables multisampling.
	Samples int
	// Slots is the number of frames in flight.
	Slots int
	// Fallback replaces material textures the loader left empty.
	Fallback TextureBinding
}

func (o ResourceOptions) withDefaults() ResourceOptions {
	if o.ShadowResolution == 0 {
		o.ShadowResolution = DefaultShadowResolution
	}
	if o.Samples < 1 {
		o.Samples = 1
	}
	if o.Slots < 1 {
		o.Slots = DefaultFramesInFlight
	}
	return o
}

// SwapchainImageSet is the presentable image sequence of one swapchain configuration.
type SwapchainImageSet struct {
	Swapchain Swapchain
}

func (s *SwapchainImageSet) Len() int {
	return len(s.Swapchain.Images)
}

func (s *SwapchainImageSet) Image(i uint32) *Attachment {
	return &s.Swapchain.Images[i]
}

// SlotResources are the uniform buffers and descriptor sets of one frame slot.
// They are only written while the slot's fence is signalled.
type SlotResources struct {
	Scene      []Buffer
	Shadow     []Buffer
	Blur       [2]Buffer
	SceneSets  []Handle
	ShadowSets []Handle
	BlurSets   [2]Handle
}

// FrameResourceSet owns every device resource tied to the current swapchain
// configuration.
type FrameResourceSet struct {
	device  Allocator
	opts    ResourceOptions
	objects []RenderObject
	scope   Scope
	created bool

	Extent        Extent
	DepthFormat   Format
	Images        SwapchainImageSet
	ColorSampler  Handle
	ShadowSampler Handle
	Slots         []SlotResources

	attachments map[AttachmentID]*Attachment
}

func NewFrameResourceSet(device Allocator, objects []RenderObject, opts ResourceOptions) *FrameResourceSet {
	return &FrameResourceSet{
		device:      device,
		opts:        opts.withDefaults(),
		objects:     objects,
		attachments: make(map[AttachmentID]*Attachment),
	}
}

func (r *FrameResourceSet) Options() ResourceOptions {
	return r.opts
}

func (r *FrameResourceSet) Objects() []RenderObject {
	return r.objects
}

func (r *FrameResourceSet) Created() bool {
	return r.created
}

// Multisampled reports whether the G-buffer resolves into separate attachments.
func (r *FrameResourceSet) Multisampled() bool {
	return r.opts.Samples > 1
}

// Resolved maps a G-buffer attachment to the single sample copy read by later passes.
func (r *FrameResourceSet) Resolved(id AttachmentID) AttachmentID {
	if !r.Multisampled() {
		return id
	}
	switch id {
	case AttachPosition:
		return AttachPositionResolved
	case AttachNormal:
		return AttachNormalResolved
	case AttachAlbedo:
		return AttachAlbedoResolved
	}
	return id
}

// Attachment returns the attachment for id. AttachPresent resolves to the swapchain image.
func (r *FrameResourceSet) Attachment(id AttachmentID, image uint32) *Attachment {
	if id == AttachPresent {
		if int(image) >= r.Images.Len() {
			return nil
		}
		return r.Images.Image(image)
	}
	return r.attachments[id]
}

// AttachmentCount is the number of owned attachments, swapchain images excluded.
func (r *FrameResourceSet) AttachmentCount() int {
	return len(r.attachments)
}

// Formats lists the format of each owned attachment.
func (r *FrameResourceSet) Formats() map[AttachmentID]Format {
	out := make(map[AttachmentID]Format, len(r.attachments))
	for id, a := range r.attachments {
		out[id] = a.Desc.Format
	}
	return out
}

// Create allocates every resource for extent and imageCount presentable images.
// A set that is already created is destroyed first. Any failure releases what
// was built and returns a FatalError.
func (r *FrameResourceSet) Create(extent Extent, imageCount int) (err error) {
	if r.created {
		r.Destroy()
	}
	defer func() {
		if err != nil {
			r.Destroy()
			err = fatal("create frame resources", err)
		}
	}()

	if r.DepthFormat == FormatUndefined {
		if r.DepthFormat, err = r.probeDepthFormat(); err != nil {
			return err
		}
	}
	r.Extent = extent

	if r.ColorSampler, err = acquire(&r.scope, func() (Handle, error) {
		return r.device.CreateSampler(SamplerDesc{Filter: FilterNearest})
	}, r.device.DestroySampler); err != nil {
		return err
	}
	if r.ShadowSampler, err = acquire(&r.scope, func() (Handle, error) {
		return r.device.CreateSampler(SamplerDesc{Filter: FilterLinear, WhiteBorder: true})
	}, r.device.DestroySampler); err != nil {
		return err
	}

	sc, err := acquire(&r.scope, func() (Swapchain, error) {
		return r.device.CreateSwapchain(extent, imageCount)
	}, r.device.DestroySwapchain)
	if err != nil {
		return err
	}
	r.Images = SwapchainImageSet{Swapchain: sc}
	// The surface has the final say on the extent.
	if !sc.Extent.IsZero() {
		r.Extent = sc.Extent
	}

	if err = r.createAttachments(); err != nil {
		return err
	}

	r.Slots = make([]SlotResources, r.opts.Slots)
	for i := range r.Slots {
		if err = r.createSlot(&r.Slots[i]); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
	}

	r.created = true
	return nil
}

// Destroy releases everything in reverse creation order. It is safe to call on
// a set that was never created or is already destroyed.
func (r *FrameResourceSet) Destroy() {
	r.scope.Release()
	for id := range r.attachments {
		delete(r.attachments, id)
	}
	r.Images = SwapchainImageSet{}
	r.Slots = nil
	r.ColorSampler, r.ShadowSampler = NullHandle, NullHandle
	r.created = false
}

func (r *FrameResourceSet) probeDepthFormat() (Format, error) {
	for _, f := range DepthCandidates {
		if r.device.DepthFormatSupported(f) {
			return f, nil
		}
	}
	return FormatUndefined, ErrNoDepthFormat
}

type attachmentSpec struct {
	id   AttachmentID
	desc AttachmentDesc
}

func (r *FrameResourceSet) createAttachments() error {
	samples := r.opts.Samples
	gbufferUsage := UsageColor
	if samples == 1 {
		gbufferUsage |= UsageSampled
	}
	shadowExtent := Extent{Width: r.opts.ShadowResolution, Height: r.opts.ShadowResolution}

	color := func(id AttachmentID, f Format, samples int, usage ImageUsage) attachmentSpec {
		return attachmentSpec{id, AttachmentDesc{Format: f, Extent: r.Extent, Samples: samples, Usage: usage}}
	}
	descs := []attachmentSpec{
		{AttachShadow, AttachmentDesc{Format: ShadowFormat, Extent: shadowExtent, Samples: 1, Usage: UsageDepth | UsageSampled}},
		color(AttachPosition, GBufferFloatFormat, samples, gbufferUsage),
		color(AttachNormal, GBufferFloatFormat, samples, gbufferUsage),
		color(AttachAlbedo, GBufferColorFormat, samples, gbufferUsage),
		color(AttachDepth, r.DepthFormat, samples, UsageDepth),
	}
	if r.Multisampled() {
		descs = append(descs,
			color(AttachPositionResolved, GBufferFloatFormat, 1, UsageColor|UsageSampled),
			color(AttachNormalResolved, GBufferFloatFormat, 1, UsageColor|UsageSampled),
			color(AttachAlbedoResolved, GBufferColorFormat, 1, UsageColor|UsageSampled),
		)
	}
	descs = append(descs,
		color(AttachSSS, GBufferColorFormat, 1, UsageColor|UsageSampled),
		color(AttachCompositeDepth, r.DepthFormat, 1, UsageDepth),
	)

	for _, d := range descs {
		d.desc.Name = d.id.String()
		a, err := acquire(&r.scope, func() (Attachment, error) {
			return r.device.CreateAttachment(d.desc)
		}, r.device.DestroyAttachment)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", d.id, err)
		}
		r.attachments[d.id] = &a
	}
	return nil
}

func (r *FrameResourceSet) uniform(size int) (Buffer, error) {
	return acquire(&r.scope, func() (Buffer, error) {
		return r.device.CreateUniformBuffer(size)
	}, r.device.DestroyBuffer)
}

func (r *FrameResourceSet) descriptorSet(writes []DescriptorWrite) (Handle, error) {
	return acquire(&r.scope, func() (Handle, error) {
		return r.device.AllocateDescriptorSet(writes)
	}, r.device.FreeDescriptorSet)
}

func (r *FrameResourceSet) texture(t TextureBinding) TextureBinding {
	if t.View == NullHandle {
		return r.opts.Fallback
	}
	return t
}

func (r *FrameResourceSet) createSlot(slot *SlotResources) error {
	n := len(r.objects)
	slot.Scene = make([]Buffer, n)
	slot.Shadow = make([]Buffer, n)
	slot.SceneSets = make([]Handle, n)
	slot.ShadowSets = make([]Handle, n)

	shadowMap := TextureBinding{View: r.attachments[AttachShadow].View, Sampler: r.ShadowSampler}
	var err error
	for i, obj := range r.objects {
		if slot.Scene[i], err = r.uniform(SceneUniformSize); err != nil {
			return err
		}
		if slot.Shadow[i], err = r.uniform(ShadowUniformSize); err != nil {
			return err
		}
		slot.SceneSets[i], err = r.descriptorSet([]DescriptorWrite{
			{Binding: BindingUniform, Buffer: &slot.Scene[i]},
			{Binding: BindingAlbedo, Texture: r.texture(obj.Material.Albedo), Layout: LayoutShaderRead},
			{Binding: BindingShadow, Texture: shadowMap, Layout: LayoutDepthRead},
			{Binding: BindingNormal, Texture: r.texture(obj.Material.Normal), Layout: LayoutShaderRead},
			{Binding: BindingSpecular, Texture: r.texture(obj.Material.Specular), Layout: LayoutShaderRead},
		})
		if err != nil {
			return fmt.Errorf("object %q scene set: %w", obj.Name, err)
		}
		slot.ShadowSets[i], err = r.descriptorSet([]DescriptorWrite{
			{Binding: BindingUniform, Buffer: &slot.Shadow[i]},
		})
		if err != nil {
			return fmt.Errorf("object %q shadow set: %w", obj.Name, err)
		}
	}

	// The blur passes read their color input at the albedo binding and the
	// resolved positions at the normal binding. The shadow and specular
	// bindings alias the color input.
	position := TextureBinding{View: r.attachments[r.Resolved(AttachPosition)].View, Sampler: r.ColorSampler}
	inputs := [2]TextureBinding{
		{View: r.attachments[r.Resolved(AttachAlbedo)].View, Sampler: r.ColorSampler},
		{View: r.attachments[AttachSSS].View, Sampler: r.ColorSampler},
	}
	for d := range slot.Blur {
		if slot.Blur[d], err = r.uniform(BlurUniformSize); err != nil {
			return err
		}
		slot.BlurSets[d], err = r.descriptorSet([]DescriptorWrite{
			{Binding: BindingUniform, Buffer: &slot.Blur[d]},
			{Binding: BindingAlbedo, Texture: inputs[d], Layout: LayoutShaderRead},
			{Binding: BindingShadow, Texture: inputs[d], Layout: LayoutShaderRead},
			{Binding: BindingNormal, Texture: position, Layout: LayoutShaderRead},
			{Binding: BindingSpecular, Texture: inputs[d], Layout: LayoutShaderRead},
		})
		if err != nil {
			return fmt.Errorf("blur set %d: %w", d, err)
		}
	}
	return nil
}
