package dieselsss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

func TestBuildBarriersSampledRead(t *testing.T) {
	objects := newDeviceObjects()
	image := objects.images.put(vk.NullImage)
	albedo := &render.Attachment{
		Desc:  render.AttachmentDesc{Name: "albedo", Format: render.FormatR16G16B16A16Sfloat},
		Image: image,
	}
	depth := &render.Attachment{
		Desc:  render.AttachmentDesc{Name: "depth", Format: render.FormatD32SfloatS8Uint},
		Image: image,
	}

	batch := buildBarriers([]render.Barrier{
		{
			Attachment: albedo,
			Old:        render.LayoutColorAttachment,
			New:        render.LayoutShaderRead,
			SrcStage:   render.StageColorOutput,
			DstStage:   render.StageFragmentShader,
			SrcAccess:  render.AccessColorWrite,
			DstAccess:  render.AccessShaderRead,
		},
		{
			Attachment: depth,
			Old:        render.LayoutDepthAttachment,
			New:        render.LayoutDepthRead,
			SrcStage:   render.StageLateFragmentTests,
			DstStage:   render.StageFragmentShader,
			SrcAccess:  render.AccessDepthWrite,
			DstAccess:  render.AccessShaderRead,
		},
		{
			Attachment: albedo,
			Old:        render.LayoutShaderRead,
			New:        render.LayoutShaderRead,
			SrcStage:   render.StageColorOutput,
			DstStage:   render.StageFragmentShader,
			SrcAccess:  render.AccessColorWrite,
			DstAccess:  render.AccessShaderRead,
		},
	}, objects.images.get)

	assert.Zero(t, batch.flags&vk.DependencyFlags(vk.DependencyByRegionBit), "sampled reads must not be by region")
	assert.Equal(t,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit|vk.PipelineStageLateFragmentTestsBit),
		batch.src_stage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), batch.dst_stage)

	require.Len(t, batch.memory, 1)
	require.Len(t, batch.images, 2)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, batch.images[0].NewLayout)
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), batch.images[0].SubresourceRange.AspectMask)
	assert.Equal(t, vk.ImageLayoutDepthStencilReadOnlyOptimal, batch.images[1].NewLayout)
	assert.Equal(t,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit),
		batch.images[1].SubresourceRange.AspectMask)
}

func TestBuildBarriersSkipsUnknownImages(t *testing.T) {
	objects := newDeviceObjects()
	batch := buildBarriers([]render.Barrier{{
		Attachment: &render.Attachment{Desc: render.AttachmentDesc{Format: render.FormatB8G8R8A8Unorm}, Image: 42},
		Old:        render.LayoutColorAttachment,
		New:        render.LayoutPresent,
	}}, objects.images.get)
	assert.Empty(t, batch.images)
	assert.Empty(t, batch.memory)
	assert.Zero(t, batch.flags)
}

func TestSubpassDependencyFlags(t *testing.T) {
	incoming := subpassDependency(render.Dependency{Incoming: true, SrcStage: render.StageColorOutput})
	assert.Equal(t, uint32(vk.MaxUint32), incoming.SrcSubpass)
	assert.Equal(t, uint32(0), incoming.DstSubpass)

	outgoing := subpassDependency(render.Dependency{
		SrcStage:  render.StageColorOutput,
		DstStage:  render.StageFragmentShader,
		SrcAccess: render.AccessColorWrite,
		DstAccess: render.AccessShaderRead,
	})
	assert.Equal(t, uint32(0), outgoing.SrcSubpass)
	assert.Equal(t, uint32(vk.MaxUint32), outgoing.DstSubpass)
	assert.Zero(t, outgoing.DependencyFlags&vk.DependencyFlags(vk.DependencyByRegionBit))
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), outgoing.DstAccessMask)
}
