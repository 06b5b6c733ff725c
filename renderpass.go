package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//CoreRenderPass is a single subpass render pass. Framebuffers bind colors first,
//then the depth attachment, then resolves; clear values follow the same order.
type CoreRenderPass struct {
	renderPass  vk.RenderPass
	name        string
	depth_index int
	attachments int
}

func attachmentDescription(op render.AttachmentOp) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Flags:          vk.AttachmentDescriptionFlags(0),
		Format:         vkFormat(op.Format),
		Samples:        vkSamples(op.Samples),
		LoadOp:         vkLoadOp(op.Load),
		StoreOp:        vkStoreOp(op.Store),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vkLayout(op.Initial),
		FinalLayout:    vkLayout(op.Final),
	}
}

func subpassDependency(d render.Dependency) vk.SubpassDependency {
	dep := vk.SubpassDependency{
		SrcSubpass:    0,
		DstSubpass:    vk.MaxUint32,
		SrcStageMask:  vkStage(d.SrcStage),
		DstStageMask:  vkStage(d.DstStage),
		SrcAccessMask: vkAccess(d.SrcAccess),
		DstAccessMask: vkAccess(d.DstAccess),
	}
	//Only the incoming edge orders framebuffer-local attachment access, outgoing
	//edges feed passes that sample neighbouring texels
	if d.Incoming {
		dep.SrcSubpass, dep.DstSubpass = vk.MaxUint32, 0
		dep.DependencyFlags = vk.DependencyFlags(vk.DependencyByRegionBit)
	}
	return dep
}

//CreateRenderPass builds the attachment descriptions and references of desc.
//Resolves, when present, must match the colors one for one.
func (core *CoreRenderInstance) CreateRenderPass(desc render.PassDesc) (render.Handle, error) {
	if len(desc.Resolves) > 0 && len(desc.Resolves) != len(desc.Colors) {
		return render.NullHandle, fmt.Errorf("pass %s: %d resolves for %d colors", desc.Name, len(desc.Resolves), len(desc.Colors))
	}
	pass := &CoreRenderPass{name: desc.Name, depth_index: -1}

	var attachmentDescriptions []vk.AttachmentDescription
	var colorReferences, resolveReferences []vk.AttachmentReference
	var depthReference *vk.AttachmentReference

	//Setup Subpass Attachment References
	for _, op := range desc.Colors {
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachmentDescriptions = append(attachmentDescriptions, attachmentDescription(op))
	}
	if desc.Depth != nil {
		pass.depth_index = len(attachmentDescriptions)
		depthReference = &vk.AttachmentReference{
			Attachment: uint32(pass.depth_index),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		attachmentDescriptions = append(attachmentDescriptions, attachmentDescription(*desc.Depth))
	}
	for _, op := range desc.Resolves {
		resolveReferences = append(resolveReferences, vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachmentDescriptions = append(attachmentDescriptions, attachmentDescription(op))
	}
	pass.attachments = len(attachmentDescriptions)

	subpass0 := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorReferences)),
		PColorAttachments:       colorReferences,
		PResolveAttachments:     resolveReferences,
		PDepthStencilAttachment: depthReference,
	}

	subpass_dependencies := make([]vk.SubpassDependency, 0, len(desc.Dependencies))
	for _, d := range desc.Dependencies {
		subpass_dependencies = append(subpass_dependencies, subpassDependency(d))
	}

	ret := vk.CreateRenderPass(core.handle(), &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass0},
		DependencyCount: uint32(len(subpass_dependencies)),
		PDependencies:   subpass_dependencies,
	}, nil, &pass.renderPass)
	if isError(ret) {
		return render.NullHandle, fmt.Errorf("pass %s: %w", desc.Name, NewError(ret))
	}
	return core.objects.passes.put(pass), nil
}

func (core *CoreRenderInstance) DestroyRenderPass(h render.Handle) {
	if pass, ok := core.objects.passes.remove(h); ok {
		vk.DestroyRenderPass(core.handle(), pass.renderPass, nil)
	}
}

func (core *CoreRenderInstance) CreateFramebuffer(desc render.FramebufferDesc) (render.Handle, error) {
	pass, ok := core.objects.passes.get(desc.Pass)
	if !ok {
		return render.NullHandle, fmt.Errorf("framebuffer for unknown pass %d", desc.Pass)
	}
	if len(desc.Views) != pass.attachments {
		return render.NullHandle, fmt.Errorf("framebuffer for pass %s has %d views, pass has %d attachments",
			pass.name, len(desc.Views), pass.attachments)
	}
	views := make([]vk.ImageView, len(desc.Views))
	for i, h := range desc.Views {
		view, ok := core.objects.views.get(h)
		if !ok {
			return render.NullHandle, fmt.Errorf("framebuffer for pass %s: unknown view %d", pass.name, h)
		}
		views[i] = view
	}

	var framebuffer vk.Framebuffer
	ret := vk.CreateFramebuffer(core.handle(), &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}, nil, &framebuffer)
	if isError(ret) {
		return render.NullHandle, NewError(ret)
	}
	return core.objects.framebuffers.put(framebuffer), nil
}

func (core *CoreRenderInstance) DestroyFramebuffer(h render.Handle) {
	if fb, ok := core.objects.framebuffers.remove(h); ok {
		vk.DestroyFramebuffer(core.handle(), fb, nil)
	}
}
