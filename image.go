package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//CoreImage is an image with its bound memory and a single view
type CoreImage struct {
	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
}

func (core *CoreRenderInstance) DepthFormatSupported(f render.Format) bool {
	if !f.IsDepth() {
		return false
	}
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(core.logical_device.gpu, vkFormat(f), &props)
	props.Deref()
	feature := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return props.OptimalTilingFeatures&feature == feature
}

type imageSpec struct {
	format  vk.Format
	extent  render.Extent
	samples int
	usage   vk.ImageUsageFlags
	tiling  vk.ImageTiling
	initial vk.ImageLayout
	memory  vk.MemoryPropertyFlagBits
	aspect  vk.ImageAspectFlags
}

func (core *CoreRenderInstance) createImage(spec imageSpec) (img CoreImage, err error) {
	defer checkErr(&err)
	device := core.handle()

	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        spec.format,
		Extent:        vk.Extent3D{Width: spec.extent.Width, Height: spec.extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vkSamples(spec.samples),
		Tiling:        spec.tiling,
		Usage:         spec.usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: spec.initial,
	}, nil, &img.image)
	orPanic(NewError(ret))

	//Search through GPU memory properties for the requested kind of memory
	var memory_req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img.image, &memory_req)
	memory_req.Deref()

	mem_type_index, ok := FindRequiredMemoryTypeFallback(core.logical_device.memory_properties,
		vk.MemoryPropertyFlagBits(memory_req.MemoryTypeBits), spec.memory)
	if !ok {
		orPanic(fmt.Errorf("no memory type for %dx%d image", spec.extent.Width, spec.extent.Height), func() {
			vk.DestroyImage(device, img.image, nil)
		})
	}

	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memory_req.Size,
		MemoryTypeIndex: mem_type_index,
	}, nil, &img.memory)
	orPanic(NewError(ret), func() {
		vk.DestroyImage(device, img.image, nil)
	})

	release := func() {
		vk.FreeMemory(device, img.memory, nil)
		vk.DestroyImage(device, img.image, nil)
	}
	orPanic(NewError(vk.BindImageMemory(device, img.image, img.memory, 0)), release)

	img.view, err = core.createImageView(img.image, spec.format, spec.aspect)
	orPanic(err, release)
	return img, nil
}

func (core *CoreRenderInstance) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(core.handle(), &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if isError(ret) {
		return vk.NullImageView, NewError(ret)
	}
	return view, nil
}

func (core *CoreRenderInstance) destroyImage(img CoreImage) {
	device := core.handle()
	vk.DestroyImageView(device, img.view, nil)
	vk.DestroyImage(device, img.image, nil)
	vk.FreeMemory(device, img.memory, nil)
}

func (core *CoreRenderInstance) register(img CoreImage) (image, memory, view render.Handle) {
	return core.objects.images.put(img.image), core.objects.memory.put(img.memory), core.objects.views.put(img.view)
}

func (core *CoreRenderInstance) unregister(image, memory, view render.Handle) (CoreImage, bool) {
	var img CoreImage
	var ok_image, ok_memory, ok_view bool
	img.image, ok_image = core.objects.images.remove(image)
	img.memory, ok_memory = core.objects.memory.remove(memory)
	img.view, ok_view = core.objects.views.remove(view)
	return img, ok_image && ok_memory && ok_view
}

//CreateAttachment allocates device local memory for a render target and its view
func (core *CoreRenderInstance) CreateAttachment(desc render.AttachmentDesc) (render.Attachment, error) {
	if desc.Extent.IsZero() {
		return render.Attachment{}, fmt.Errorf("attachment %s has zero extent", desc.Name)
	}
	img, err := core.createImage(imageSpec{
		format:  vkFormat(desc.Format),
		extent:  desc.Extent,
		samples: desc.Samples,
		usage:   vkImageUsage(desc.Usage),
		tiling:  vk.ImageTilingOptimal,
		initial: vk.ImageLayoutUndefined,
		memory:  vk.MemoryPropertyDeviceLocalBit,
		aspect:  vkAspect(desc.Format),
	})
	if err != nil {
		return render.Attachment{}, fmt.Errorf("attachment %s: %w", desc.Name, err)
	}
	a := render.Attachment{Desc: desc}
	a.Image, a.Memory, a.View = core.register(img)
	return a, nil
}

func (core *CoreRenderInstance) DestroyAttachment(a render.Attachment) {
	if img, ok := core.unregister(a.Image, a.Memory, a.View); ok {
		core.destroyImage(img)
	}
}

func (core *CoreRenderInstance) CreateSampler(desc render.SamplerDesc) (render.Handle, error) {
	filter := vk.FilterNearest
	if desc.Filter == render.FilterLinear {
		filter = vk.FilterLinear
	}
	border := vk.BorderColorFloatOpaqueBlack
	address := vk.SamplerAddressModeClampToEdge
	if desc.WhiteBorder {
		border = vk.BorderColorFloatOpaqueWhite
		address = vk.SamplerAddressModeClampToBorder
	}
	var sampler vk.Sampler
	ret := vk.CreateSampler(core.handle(), &vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MaxAnisotropy: 1.0,
		CompareOp:     vk.CompareOpNever,
		MaxLod:        1.0,
		BorderColor:   border,
	}, nil, &sampler)
	if isError(ret) {
		return render.NullHandle, NewError(ret)
	}
	return core.objects.samplers.put(sampler), nil
}

func (core *CoreRenderInstance) DestroySampler(h render.Handle) {
	if sampler, ok := core.objects.samplers.remove(h); ok {
		vk.DestroySampler(core.handle(), sampler, nil)
	}
}

//Texture is a sampled image owned by the application rather than the frame resources
type Texture struct {
	render.TextureBinding
	image  render.Handle
	memory render.Handle
}

//CreateSolidTexture makes a 1x1 RGBA texture with a linear sampler. It stands in
//for material maps the scene leaves empty.
func (core *CoreRenderInstance) CreateSolidTexture(rgba [4]uint8) (tex Texture, err error) {
	img, err := core.createImage(imageSpec{
		format:  vk.FormatR8g8b8a8Unorm,
		extent:  render.Extent{Width: 1, Height: 1},
		samples: 1,
		usage:   vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		tiling:  vk.ImageTilingLinear,
		initial: vk.ImageLayoutPreinitialized,
		memory:  vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit,
		aspect:  vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return tex, fmt.Errorf("solid texture: %w", err)
	}
	if err = core.fillTexel(img, rgba); err != nil {
		core.destroyImage(img)
		return tex, err
	}

	err = core.commands.OneTime(core.logical_device.graphics_queue, func(cmd vk.CommandBuffer) {
		vk.CmdPipelineBarrier(cmd,
			vk.PipelineStageFlags(vk.PipelineStageHostBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
				SType:               vk.StructureTypeImageMemoryBarrier,
				SrcAccessMask:       vk.AccessFlags(vk.AccessHostWriteBit),
				DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
				OldLayout:           vk.ImageLayoutPreinitialized,
				NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
				SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
				DstQueueFamilyIndex: vk.QueueFamilyIgnored,
				Image:               img.image,
				SubresourceRange: vk.ImageSubresourceRange{
					AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
					LevelCount: 1,
					LayerCount: 1,
				},
			}})
	})
	if err != nil {
		core.destroyImage(img)
		return tex, err
	}

	sampler, err := core.CreateSampler(render.SamplerDesc{Filter: render.FilterLinear})
	if err != nil {
		core.destroyImage(img)
		return tex, err
	}
	tex.image, tex.memory, tex.View = core.register(img)
	tex.Sampler = sampler
	return tex, nil
}

func (core *CoreRenderInstance) fillTexel(img CoreImage, rgba [4]uint8) error {
	var layout vk.SubresourceLayout
	vk.GetImageSubresourceLayout(core.handle(), img.image, &vk.ImageSubresource{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	}, &layout)
	layout.Deref()

	b := &Buffer{device: core.handle(), Memory: img.memory, Size: int(layout.Offset) + 4}
	data := make([]byte, int(layout.Offset)+4)
	copy(data[layout.Offset:], rgba[:])
	return b.Write(data)
}

func (core *CoreRenderInstance) DestroyTexture(tex Texture) {
	core.DestroySampler(tex.Sampler)
	if img, ok := core.unregister(tex.image, tex.memory, tex.View); ok {
		core.destroyImage(img)
	}
}
