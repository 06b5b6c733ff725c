package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//Surface formats in order of preference, the first the surface offers wins
var preferredSurfaceFormats = []vk.Format{
	vk.FormatB8g8r8a8Unorm,
	vk.FormatB8g8r8a8Srgb,
	vk.FormatR8g8b8a8Unorm,
}

type CoreSwapchain struct {
	swapchain    vk.Swapchain
	format       vk.SurfaceFormat
	extent       vk.Extent2D
	images       []vk.Image
	image_views  []vk.ImageView
	view_handles []render.Handle
}

//Picks the preferred surface format from the ones the surface reports. An undefined
//single entry means the surface takes anything.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, fmt.Errorf("surface reports no color formats")
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: preferredSurfaceFormats[0], ColorSpace: formats[0].ColorSpace}, nil
	}
	for _, want := range preferredSurfaceFormats {
		for _, f := range formats {
			if f.Format == want {
				return f, nil
			}
		}
	}
	return vk.SurfaceFormat{}, fmt.Errorf("surface offers none of the supported color formats")
}

//Match swapchain extent to the surface capabilities. A current extent of MaxUint32
//lets the swapchain pick, clamped to the surface limits.
func chooseExtent(caps vk.SurfaceCapabilities, requested render.Extent) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if hi > 0 && v > hi {
			return hi
		}
		return v
	}
	return vk.Extent2D{
		Width:  clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

//Determine the number of VkImage's to use in the swapchain
func chooseImageCount(caps vk.SurfaceCapabilities, desired int) uint32 {
	count := uint32(desired)
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	return count
}

//Find a supported composite alpha mode - one of these is guaranteed to be set
func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for _, flag := range compositeAlphaFlags {
		if supported&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

//CreateSwapchain builds a FIFO swapchain for the display surface. The returned extent is
//the one the surface settled on and may differ from the request.
func (core *CoreRenderInstance) CreateSwapchain(extent render.Extent, images int) (sc render.Swapchain, err error) {
	defer checkErr(&err)
	gpu := core.logical_device.gpu

	var surface_capabilities vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, core.surface, &surface_capabilities)
	orPanic(NewError(ret))
	surface_capabilities.Deref()
	surface_capabilities.CurrentExtent.Deref()
	surface_capabilities.MinImageExtent.Deref()
	surface_capabilities.MaxImageExtent.Deref()

	//Get available surface pixel formats
	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, core.surface, &formatCount, nil)
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, core.surface, &formatCount, formats)
	for i := range formats {
		formats[i].Deref()
	}
	format, err := chooseSurfaceFormat(formats)
	orPanic(err)
	render_format, _ := renderFormat(format.Format)

	swap_extent := chooseExtent(surface_capabilities, extent)
	if swap_extent.Width == 0 || swap_extent.Height == 0 {
		return sc, fmt.Errorf("%w: surface extent is zero", render.ErrSurfaceStale)
	}

	//Figure out a suitable surface transform.
	pre_transform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(surface_capabilities.SupportedTransforms)&pre_transform == 0 {
		pre_transform = surface_capabilities.CurrentTransform
	}

	sharing := vk.SharingModeExclusive
	var families []uint32
	if core.logical_device.HasSeparatePresentQueue() {
		sharing = vk.SharingModeConcurrent
		families = []uint32{core.logical_device.graphics_family, core.logical_device.present_family}
	}

	//FIFO is always available
	core_swapchain := &CoreSwapchain{format: format, extent: swap_extent}
	ret = vk.CreateSwapchain(core.handle(), &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               core.surface,
		MinImageCount:         chooseImageCount(surface_capabilities, images),
		ImageFormat:           format.Format,
		ImageColorSpace:       format.ColorSpace,
		ImageExtent:           swap_extent,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:          pre_transform,
		CompositeAlpha:        chooseCompositeAlpha(surface_capabilities.SupportedCompositeAlpha),
		ImageArrayLayers:      1,
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PresentMode:           vk.PresentModeFifo,
		OldSwapchain:          vk.NullSwapchain,
		Clipped:               vk.True,
	}, nil, &core_swapchain.swapchain)
	orPanic(NewError(ret))

	//Creates handles for the swapchain images
	var imageCount uint32
	ret = vk.GetSwapchainImages(core.handle(), core_swapchain.swapchain, &imageCount, nil)
	orPanic(NewError(ret), func() { core.destroySwapchain(core_swapchain) })
	core_swapchain.images = make([]vk.Image, imageCount)
	ret = vk.GetSwapchainImages(core.handle(), core_swapchain.swapchain, &imageCount, core_swapchain.images)
	orPanic(NewError(ret), func() { core.destroySwapchain(core_swapchain) })

	sc = render.Swapchain{
		Format: render_format,
		Extent: render.Extent{Width: swap_extent.Width, Height: swap_extent.Height},
		Images: make([]render.Attachment, imageCount),
	}
	for index := range core_swapchain.images {
		view, err := core.createImageView(core_swapchain.images[index], format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		orPanic(err, func() { core.destroySwapchain(core_swapchain) })
		core_swapchain.image_views = append(core_swapchain.image_views, view)
		view_handle := core.objects.views.put(view)
		core_swapchain.view_handles = append(core_swapchain.view_handles, view_handle)

		sc.Images[index] = render.Attachment{
			Desc: render.AttachmentDesc{
				Name:    fmt.Sprintf("present-%d", index),
				Format:  render_format,
				Extent:  sc.Extent,
				Samples: 1,
				Usage:   render.UsageColor,
			},
			View: view_handle,
		}
	}
	sc.Handle = core.objects.swapchains.put(core_swapchain)
	core.logger.Printf("vulkan: swapchain %dx%d %s with %d images", sc.Extent.Width, sc.Extent.Height, render_format, imageCount)
	return sc, nil
}

func (core *CoreRenderInstance) DestroySwapchain(sc render.Swapchain) {
	if core_swapchain, ok := core.objects.swapchains.remove(sc.Handle); ok {
		core.destroySwapchain(core_swapchain)
	}
}

//Swapchain images belong to the swapchain, only their views are released here
func (core *CoreRenderInstance) destroySwapchain(s *CoreSwapchain) {
	for _, h := range s.view_handles {
		core.objects.views.remove(h)
	}
	for _, view := range s.image_views {
		vk.DestroyImageView(core.handle(), view, nil)
	}
	s.image_views, s.view_handles = nil, nil
	if s.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(core.handle(), s.swapchain, nil)
		s.swapchain = vk.NullSwapchain
	}
}
