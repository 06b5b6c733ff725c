package dieselsss

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

//SPIR-V words are read in host order, shader byte code is never endian swapped
func sliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func sliceBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

func indexBytes(data []uint32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

// checkExisting returns the null terminated names of required that appear in
// actual, and how many did not.
func checkExisting(actual, required []string) (existing []string, missing int) {
	existing = make([]string, 0, len(required))
	for j := range required {
		req := safeString(required[j])
		for i := range actual {
			if safeString(actual[i]) == req {
				existing = append(existing, req)
				break
			}
		}
	}
	missing = len(required) - len(existing)
	return existing, missing
}

//----------------render <-> vulkan enums--------------------//

var vkFormats = map[render.Format]vk.Format{
	render.FormatUndefined:          vk.FormatUndefined,
	render.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	render.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	render.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	render.FormatR16G16B16A16Sfloat: vk.FormatR16g16b16a16Sfloat,
	render.FormatD16Unorm:           vk.FormatD16Unorm,
	render.FormatD32Sfloat:          vk.FormatD32Sfloat,
	render.FormatD32SfloatS8Uint:    vk.FormatD32SfloatS8Uint,
	render.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
}

func vkFormat(f render.Format) vk.Format {
	return vkFormats[f]
}

// renderFormat maps a device format back, reporting false for formats the
// renderer never allocates.
func renderFormat(f vk.Format) (render.Format, bool) {
	for rf, vf := range vkFormats {
		if vf == f && rf != render.FormatUndefined {
			return rf, true
		}
	}
	return render.FormatUndefined, false
}

func vkLayout(l render.Layout) vk.ImageLayout {
	switch l {
	case render.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case render.LayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case render.LayoutShaderRead:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case render.LayoutDepthRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case render.LayoutPresent:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

var vkStageBits = []struct {
	stage render.Stage
	bit   vk.PipelineStageFlagBits
}{
	{render.StageTopOfPipe, vk.PipelineStageTopOfPipeBit},
	{render.StageEarlyFragmentTests, vk.PipelineStageEarlyFragmentTestsBit},
	{render.StageFragmentShader, vk.PipelineStageFragmentShaderBit},
	{render.StageLateFragmentTests, vk.PipelineStageLateFragmentTestsBit},
	{render.StageColorOutput, vk.PipelineStageColorAttachmentOutputBit},
	{render.StageBottomOfPipe, vk.PipelineStageBottomOfPipeBit},
}

func vkStage(s render.Stage) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlags
	for _, b := range vkStageBits {
		if s&b.stage != 0 {
			flags |= vk.PipelineStageFlags(b.bit)
		}
	}
	if flags == 0 {
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	return flags
}

var vkAccessBits = []struct {
	access render.Access
	bit    vk.AccessFlagBits
}{
	{render.AccessShaderRead, vk.AccessShaderReadBit},
	{render.AccessColorRead, vk.AccessColorAttachmentReadBit},
	{render.AccessColorWrite, vk.AccessColorAttachmentWriteBit},
	{render.AccessDepthRead, vk.AccessDepthStencilAttachmentReadBit},
	{render.AccessDepthWrite, vk.AccessDepthStencilAttachmentWriteBit},
	{render.AccessMemoryRead, vk.AccessMemoryReadBit},
}

func vkAccess(a render.Access) vk.AccessFlags {
	var flags vk.AccessFlags
	for _, b := range vkAccessBits {
		if a&b.access != 0 {
			flags |= vk.AccessFlags(b.bit)
		}
	}
	return flags
}

func vkSamples(n int) vk.SampleCountFlagBits {
	switch {
	case n >= 16:
		return vk.SampleCount16Bit
	case n >= 8:
		return vk.SampleCount8Bit
	case n >= 4:
		return vk.SampleCount4Bit
	case n >= 2:
		return vk.SampleCount2Bit
	}
	return vk.SampleCount1Bit
}

func vkLoadOp(op render.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case render.LoadKeep:
		return vk.AttachmentLoadOpLoad
	case render.LoadDontCare:
		return vk.AttachmentLoadOpDontCare
	}
	return vk.AttachmentLoadOpClear
}

func vkStoreOp(op render.StoreOp) vk.AttachmentStoreOp {
	if op == render.StoreDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func vkCullMode(c render.CullMode) vk.CullModeFlags {
	switch c {
	case render.CullBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case render.CullFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func vkAspect(f render.Format) vk.ImageAspectFlags {
	if !f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
}

func vkImageUsage(u render.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u&render.UsageColor != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u&render.UsageDepth != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&render.UsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	//Attachments nobody samples never outlive their pass
	if u&render.UsageSampled == 0 && u&(render.UsageColor|render.UsageDepth) != 0 {
		flags |= vk.ImageUsageTransientAttachmentBit
	}
	return vk.ImageUsageFlags(flags)
}
