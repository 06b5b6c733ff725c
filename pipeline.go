package dieselsss

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/dieselsss/render"
)

//Interleaved vertex layout: position vec3, normal vec3, texcoord vec2
const (
	VertexFloats = 8
	VertexStride = VertexFloats * 4
)

//CorePipeline holds the single descriptor set layout and pipeline layout every
//pipeline of the renderer shares. Binding 0 is the uniform block, 1 to 4 the samplers.
type CorePipeline struct {
	set_layout vk.DescriptorSetLayout
	layout     vk.PipelineLayout
}

func NewCorePipeline(device vk.Device) (*CorePipeline, error) {
	var core CorePipeline
	sampler := func(binding uint32) vk.DescriptorSetLayoutBinding {
		return vk.DescriptorSetLayoutBinding{
			Binding:         binding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}
	}
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         render.BindingUniform,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
		sampler(render.BindingAlbedo),
		sampler(render.BindingShadow),
		sampler(render.BindingNormal),
		sampler(render.BindingSpecular),
	}

	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &core.set_layout)
	if isError(ret) {
		return nil, NewError(ret)
	}

	ret = vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{core.set_layout},
	}, nil, &core.layout)
	if isError(ret) {
		vk.DestroyDescriptorSetLayout(device, core.set_layout, nil)
		return nil, NewError(ret)
	}
	return &core, nil
}

func (p *CorePipeline) Destroy(device vk.Device) {
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(device, p.layout, nil)
		p.layout = vk.NullPipelineLayout
	}
	if p.set_layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device, p.set_layout, nil)
		p.set_layout = vk.NullDescriptorSetLayout
	}
}

type PipelineBuilder struct {
	_shaderStages         []vk.PipelineShaderStageCreateInfo
	_modules              []vk.ShaderModule
	_vertexInputInfo      vk.PipelineVertexInputStateCreateInfo
	_inputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	_rasterizer           vk.PipelineRasterizationStateCreateInfo
	_colorBlendAttachment []vk.PipelineColorBlendAttachmentState
	_multisampling        vk.PipelineMultisampleStateCreateInfo
	_depthStencil         vk.PipelineDepthStencilStateCreateInfo
	_dynamicStates        []vk.DynamicState
}

//Builds fixed function state for desc. Viewport and scissor are always dynamic,
//depth bias is dynamic on pipelines that enable it.
func NewPipelineBuilder(desc render.PipelineDesc) *PipelineBuilder {
	pb := PipelineBuilder{}

	//Vertex Info
	pb._vertexInputInfo = vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: 3,
		PVertexAttributeDescriptions: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
			{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
		},
	}

	//Input Assembly
	pb._inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	//Rasterization CreatInfo
	rasterizer := vk.PipelineRasterizationStateCreateInfo{}
	rasterizer.SType = vk.StructureTypePipelineRasterizationStateCreateInfo
	rasterizer.DepthClampEnable = vk.False
	rasterizer.RasterizerDiscardEnable = vk.False
	rasterizer.PolygonMode = vk.PolygonModeFill
	rasterizer.CullMode = vkCullMode(desc.Cull)
	rasterizer.FrontFace = vk.FrontFaceCounterClockwise
	rasterizer.DepthBiasEnable = vk.False
	rasterizer.LineWidth = 1.0
	if desc.DepthBias {
		rasterizer.DepthBiasEnable = vk.True
	}
	pb._rasterizer = rasterizer

	//Multisample State
	pb._multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vkSamples(desc.Samples),
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	//Color Blend, one opaque write per color target
	write_mask := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
		vk.ColorComponentBBit | vk.ColorComponentABit)
	for i := 0; i < desc.ColorTargets; i++ {
		pb._colorBlendAttachment = append(pb._colorBlendAttachment, vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: write_mask,
		})
	}

	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		MinDepthBounds:   0,
		MaxDepthBounds:   1,
	}
	if desc.DepthTest {
		depth.DepthTestEnable = vk.True
	}
	if desc.DepthWrite {
		depth.DepthWriteEnable = vk.True
	}
	pb._depthStencil = depth

	pb._dynamicStates = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	if desc.DepthBias {
		pb._dynamicStates = append(pb._dynamicStates, vk.DynamicStateDepthBias)
	}
	return &pb
}

func shaderStageBit(stage render.ShaderStage) vk.ShaderStageFlagBits {
	if stage == render.StageVertex {
		return vk.ShaderStageVertexBit
	}
	return vk.ShaderStageFragmentBit
}

//AddShader loads a program into a module owned by the builder until Release
func (p *PipelineBuilder) AddShader(device vk.Device, program render.ShaderProgram) error {
	module, err := LoadShaderModule(device, program.Code)
	if err != nil {
		return fmt.Errorf("shader %s.%s: %w", program.Name, program.Stage, err)
	}
	entry := program.Entry
	if entry == "" {
		entry = "main"
	}
	p._modules = append(p._modules, module)
	p._shaderStages = append(p._shaderStages, vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageBit(program.Stage),
		Module: module,
		PName:  safeString(entry),
	})
	return nil
}

//Release destroys the shader modules, the pipeline keeps its own copy
func (p *PipelineBuilder) Release(device vk.Device) {
	for _, m := range p._modules {
		vk.DestroyShaderModule(device, m, nil)
	}
	p._modules, p._shaderStages = nil, nil
}

func (p *PipelineBuilder) BuildPipeline(device vk.Device, pass vk.RenderPass, layout vk.PipelineLayout) (vk.Pipeline, error) {
	view_create := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	blend_state := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(p._colorBlendAttachment)),
		PAttachments:    p._colorBlendAttachment,
	}

	dynamic_state := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(p._dynamicStates)),
		PDynamicStates:    p._dynamicStates,
	}

	pipeline_info := vk.GraphicsPipelineCreateInfo{}
	pipeline_info.SType = vk.StructureTypeGraphicsPipelineCreateInfo
	pipeline_info.StageCount = uint32(len(p._shaderStages))
	pipeline_info.PStages = p._shaderStages
	pipeline_info.PVertexInputState = &p._vertexInputInfo
	pipeline_info.PInputAssemblyState = &p._inputAssembly
	pipeline_info.PViewportState = &view_create
	pipeline_info.PRasterizationState = &p._rasterizer
	pipeline_info.PMultisampleState = &p._multisampling
	pipeline_info.PColorBlendState = &blend_state
	pipeline_info.PDepthStencilState = &p._depthStencil
	pipeline_info.PDynamicState = &dynamic_state
	pipeline_info.Layout = layout
	pipeline_info.RenderPass = pass
	pipeline_info.Subpass = 0

	//Build actual pipeline
	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipeline_info}, nil, pipelines)
	if isError(ret) {
		return vk.NullPipeline, NewError(ret)
	}
	return pipelines[0], nil
}

func (core *CoreRenderInstance) CreatePipeline(desc render.PipelineDesc) (render.Handle, error) {
	pass, ok := core.objects.passes.get(desc.Pass)
	if !ok {
		return render.NullHandle, fmt.Errorf("pipeline %s for unknown pass %d", desc.Name, desc.Pass)
	}
	device := core.handle()
	pb := NewPipelineBuilder(desc)
	defer pb.Release(device)

	if err := pb.AddShader(device, desc.Vertex); err != nil {
		return render.NullHandle, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}
	if desc.Fragment != nil {
		if err := pb.AddShader(device, *desc.Fragment); err != nil {
			return render.NullHandle, fmt.Errorf("pipeline %s: %w", desc.Name, err)
		}
	}
	pipeline, err := pb.BuildPipeline(device, pass.renderPass, core.pipelines.layout)
	if err != nil {
		return render.NullHandle, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}
	return core.objects.pipelines.put(pipeline), nil
}

func (core *CoreRenderInstance) DestroyPipeline(h render.Handle) {
	if pipeline, ok := core.objects.pipelines.remove(h); ok {
		vk.DestroyPipeline(core.handle(), pipeline, nil)
	}
}

//AllocateDescriptorSet takes a set from the shared pool and points its bindings
//at the given buffer and textures
func (core *CoreRenderInstance) AllocateDescriptorSet(writes []render.DescriptorWrite) (render.Handle, error) {
	set, err := core.descriptors.Allocate(core.handle(), core.pipelines.set_layout)
	if err != nil {
		return render.NullHandle, err
	}

	updates := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		update := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
		}
		if w.Buffer != nil {
			buf, ok := core.objects.buffers.get(w.Buffer.Handle)
			if !ok {
				core.descriptors.Free(core.handle(), set)
				return render.NullHandle, fmt.Errorf("descriptor binding %d: unknown buffer %d", w.Binding, w.Buffer.Handle)
			}
			update.DescriptorType = vk.DescriptorTypeUniformBuffer
			update.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buf.Buffer,
				Offset: 0,
				Range:  vk.DeviceSize(w.Buffer.Size),
			}}
		} else {
			view, ok_view := core.objects.views.get(w.Texture.View)
			sampler, ok_sampler := core.objects.samplers.get(w.Texture.Sampler)
			if !ok_view || !ok_sampler {
				core.descriptors.Free(core.handle(), set)
				return render.NullHandle, fmt.Errorf("descriptor binding %d: unknown texture view %d sampler %d",
					w.Binding, w.Texture.View, w.Texture.Sampler)
			}
			update.DescriptorType = vk.DescriptorTypeCombinedImageSampler
			update.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     sampler,
				ImageView:   view,
				ImageLayout: vkLayout(w.Layout),
			}}
		}
		updates = append(updates, update)
	}
	if len(updates) > 0 {
		vk.UpdateDescriptorSets(core.handle(), uint32(len(updates)), updates, 0, nil)
	}
	return core.objects.sets.put(set), nil
}

func (core *CoreRenderInstance) FreeDescriptorSet(h render.Handle) {
	if set, ok := core.objects.sets.remove(h); ok {
		core.descriptors.Free(core.handle(), set)
	}
}
