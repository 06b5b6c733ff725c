package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//----------------render.Recorder--------------------//
//Recording on an unknown handle is skipped; the render package only hands out
//handles it received from this instance.

func (core *CoreRenderInstance) BeginCommands(cmd render.Handle) error {
	buf, ok := core.objects.commands.get(cmd)
	if !ok {
		return fmt.Errorf("begin of unknown command buffer %d", cmd)
	}
	if ret := vk.ResetCommandBuffer(buf, 0); isError(ret) {
		return NewError(ret)
	}
	return NewError(vk.BeginCommandBuffer(buf, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
}

func (core *CoreRenderInstance) EndCommands(cmd render.Handle) error {
	buf, ok := core.objects.commands.get(cmd)
	if !ok {
		return fmt.Errorf("end of unknown command buffer %d", cmd)
	}
	return NewError(vk.EndCommandBuffer(buf))
}

//Clear values arrive per attachment, the pass decides which slot is depth
func (core *CoreRenderInstance) BeginPass(cmd, pass, framebuffer render.Handle, extent render.Extent, clears []render.ClearValue) {
	buf, ok := core.objects.commands.get(cmd)
	rp, ok_pass := core.objects.passes.get(pass)
	fb, ok_fb := core.objects.framebuffers.get(framebuffer)
	if !ok || !ok_pass || !ok_fb {
		return
	}

	clear_values := make([]vk.ClearValue, len(clears))
	for i, c := range clears {
		if i == rp.depth_index {
			clear_values[i] = vk.NewClearDepthStencil(c.Depth, c.Stencil)
		} else {
			clear_values[i] = vk.NewClearValue(c.Color[:])
		}
	}

	vk.CmdBeginRenderPass(buf, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.renderPass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clear_values)),
		PClearValues:    clear_values,
	}, vk.SubpassContentsInline)
}

func (core *CoreRenderInstance) EndPass(cmd render.Handle) {
	if buf, ok := core.objects.commands.get(cmd); ok {
		vk.CmdEndRenderPass(buf)
	}
}

func (core *CoreRenderInstance) SetViewport(cmd render.Handle, vp render.Viewport) {
	if buf, ok := core.objects.commands.get(cmd); ok {
		vk.CmdSetViewport(buf, 0, 1, []vk.Viewport{{
			X:        vp.X,
			Y:        vp.Y,
			Width:    vp.Width,
			Height:   vp.Height,
			MinDepth: vp.MinDepth,
			MaxDepth: vp.MaxDepth,
		}})
	}
}

func (core *CoreRenderInstance) SetScissor(cmd render.Handle, r render.Rect) {
	if buf, ok := core.objects.commands.get(cmd); ok {
		vk.CmdSetScissor(buf, 0, 1, []vk.Rect2D{{
			Offset: vk.Offset2D{X: r.X, Y: r.Y},
			Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
		}})
	}
}

func (core *CoreRenderInstance) SetDepthBias(cmd render.Handle, constant, slope float32) {
	if buf, ok := core.objects.commands.get(cmd); ok {
		vk.CmdSetDepthBias(buf, constant, 0, slope)
	}
}

func (core *CoreRenderInstance) BindPipeline(cmd, pipeline render.Handle) {
	buf, ok := core.objects.commands.get(cmd)
	p, ok_pipeline := core.objects.pipelines.get(pipeline)
	if ok && ok_pipeline {
		vk.CmdBindPipeline(buf, vk.PipelineBindPointGraphics, p)
	}
}

func (core *CoreRenderInstance) BindDescriptorSet(cmd, set render.Handle) {
	buf, ok := core.objects.commands.get(cmd)
	s, ok_set := core.objects.sets.get(set)
	if ok && ok_set {
		vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointGraphics, core.pipelines.layout,
			0, 1, []vk.DescriptorSet{s}, 0, nil)
	}
}

func (core *CoreRenderInstance) DrawMesh(cmd render.Handle, m render.Mesh) {
	buf, ok := core.objects.commands.get(cmd)
	vbo, ok_vbo := core.objects.buffers.get(m.Vertices)
	ibo, ok_ibo := core.objects.buffers.get(m.Indices)
	if !ok || !ok_vbo || !ok_ibo || m.IndexCount == 0 {
		return
	}
	vk.CmdBindVertexBuffers(buf, 0, 1, []vk.Buffer{vbo.Buffer}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(buf, ibo.Buffer, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(buf, m.IndexCount, 1, 0, 0, 0)
}

//barrierBatch is one vkCmdPipelineBarrier call. Reads after a barrier may sample
//any texel of the written attachment, so the batch never uses by-region flags.
type barrierBatch struct {
	src_stage vk.PipelineStageFlags
	dst_stage vk.PipelineStageFlags
	flags     vk.DependencyFlags
	memory    []vk.MemoryBarrier
	images    []vk.ImageMemoryBarrier
}

//Barriers with equal layouts only order memory, a layout change also names the image
func buildBarriers(barriers []render.Barrier, lookup func(render.Handle) (vk.Image, bool)) barrierBatch {
	var batch barrierBatch
	for _, b := range barriers {
		batch.src_stage |= vkStage(b.SrcStage)
		batch.dst_stage |= vkStage(b.DstStage)

		if b.Attachment == nil || b.Old == b.New {
			batch.memory = append(batch.memory, vk.MemoryBarrier{
				SType:         vk.StructureTypeMemoryBarrier,
				SrcAccessMask: vkAccess(b.SrcAccess),
				DstAccessMask: vkAccess(b.DstAccess),
			})
			continue
		}
		image, ok := lookup(b.Attachment.Image)
		if !ok {
			continue
		}
		aspect := vkAspect(b.Attachment.Desc.Format)
		if b.Attachment.Desc.Format.HasStencil() {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		batch.images = append(batch.images, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vkAccess(b.SrcAccess),
			DstAccessMask:       vkAccess(b.DstAccess),
			OldLayout:           vkLayout(b.Old),
			NewLayout:           vkLayout(b.New),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		})
	}
	return batch
}

func (core *CoreRenderInstance) PipelineBarrier(cmd render.Handle, barriers []render.Barrier) {
	buf, ok := core.objects.commands.get(cmd)
	if !ok || len(barriers) == 0 {
		return
	}
	batch := buildBarriers(barriers, core.objects.images.get)
	vk.CmdPipelineBarrier(buf, batch.src_stage, batch.dst_stage, batch.flags,
		uint32(len(batch.memory)), batch.memory,
		0, nil,
		uint32(len(batch.images)), batch.images)
}
