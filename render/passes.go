package render

const (
	PassShadow    = "shadow"
	PassGBuffer   = "gbuffer"
	PassBlurH     = "blur-horizontal"
	PassBlurV     = "blur-vertical"
	PassComposite = "composite"
)

// Shadow rasterization bias, constant and slope factors.
const (
	DepthBiasConstant float32 = 1.25
	DepthBiasSlope    float32 = 1.75
)

// Shader names looked up in the ShaderLibrary for each pipeline.
const (
	ShaderShadow    = "shadow"
	ShaderGBuffer   = "gbuffer"
	ShaderBlur      = "blur"
	ShaderComposite = "composite"
)

type PassOptions struct {
	Multisampled bool
	// Quad is the unit screen quad drawn by both blur passes.
	Quad Mesh
	// Shadow depth bias, zero selects DepthBiasConstant and DepthBiasSlope.
	BiasConstant float32
	BiasSlope    float32
}

// StandardPasses builds the shadow, G-buffer, blur and composite chain for
// objects. The composite pass is only added when an object is an overlay.
func StandardPasses(objects []RenderObject, opts PassOptions) []PassNode {
	resolved := func(id AttachmentID) AttachmentID {
		if !opts.Multisampled {
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
	black := ClearColor(0, 0, 0, 0)
	if opts.BiasConstant == 0 && opts.BiasSlope == 0 {
		opts.BiasConstant, opts.BiasSlope = DepthBiasConstant, DepthBiasSlope
	}

	gbuffer := PassNode{
		Name:  PassGBuffer,
		Reads: []AttachmentID{AttachShadow},
		Colors: []AttachmentUse{
			{ID: AttachPosition, Load: LoadClear, Clear: black},
			{ID: AttachNormal, Load: LoadClear, Clear: black},
			{ID: AttachAlbedo, Load: LoadClear, Clear: black},
		},
		Depth:    &AttachmentUse{ID: AttachDepth, Load: LoadClear, Clear: ClearDepth(1)},
		Pipeline: PipelineSpec{Vertex: ShaderGBuffer, Fragment: ShaderGBuffer, DepthTest: true, DepthWrite: true, Cull: CullBack},
		Draw:     drawObjects(objects, func(RenderObject) bool { return true }, sceneSets),
	}
	if opts.Multisampled {
		gbuffer.Resolves = []AttachmentUse{
			{ID: AttachPositionResolved, Load: LoadDontCare},
			{ID: AttachNormalResolved, Load: LoadDontCare},
			{ID: AttachAlbedoResolved, Load: LoadDontCare},
		}
	}

	nodes := []PassNode{
		{
			Name:     PassShadow,
			Depth:    &AttachmentUse{ID: AttachShadow, Load: LoadClear, Clear: ClearDepth(1)},
			Pipeline: PipelineSpec{Vertex: ShaderShadow, DepthTest: true, DepthWrite: true, DepthBias: true, Cull: CullNone},
			Draw: func(ctx *PassContext) {
				ctx.Recorder.SetDepthBias(ctx.Cmd, opts.BiasConstant, opts.BiasSlope)
				drawObjects(objects, func(o RenderObject) bool { return o.CastsShadow }, shadowSets)(ctx)
			},
		},
		gbuffer,
		{
			Name:     PassBlurH,
			Reads:    []AttachmentID{resolved(AttachAlbedo), resolved(AttachPosition)},
			Colors:   []AttachmentUse{{ID: AttachSSS, Load: LoadClear, Clear: black}},
			Pipeline: PipelineSpec{Vertex: ShaderBlur, Fragment: ShaderBlur, Cull: CullNone},
			Draw:     drawQuad(opts.Quad, 0),
		},
		{
			Name:     PassBlurV,
			Reads:    []AttachmentID{AttachSSS, resolved(AttachPosition)},
			Colors:   []AttachmentUse{{ID: AttachPresent, Load: LoadClear, Clear: black}},
			Pipeline: PipelineSpec{Vertex: ShaderBlur, Fragment: ShaderBlur, Cull: CullNone},
			Draw:     drawQuad(opts.Quad, 1),
		},
	}

	if hasOverlay(objects) {
		nodes = append(nodes, PassNode{
			Name:     PassComposite,
			Reads:    []AttachmentID{AttachShadow},
			Colors:   []AttachmentUse{{ID: AttachPresent, Load: LoadKeep}},
			Depth:    &AttachmentUse{ID: AttachCompositeDepth, Load: LoadClear, Clear: ClearDepth(1)},
			Pipeline: PipelineSpec{Vertex: ShaderComposite, Fragment: ShaderComposite, DepthTest: true, DepthWrite: true, Cull: CullBack},
			Draw:     drawObjects(objects, func(o RenderObject) bool { return o.Overlay }, sceneSets),
		})
	}
	return nodes
}

func hasOverlay(objects []RenderObject) bool {
	for _, o := range objects {
		if o.Overlay {
			return true
		}
	}
	return false
}

func sceneSets(s *SlotResources) []Handle  { return s.SceneSets }
func shadowSets(s *SlotResources) []Handle { return s.ShadowSets }

func drawObjects(objects []RenderObject, keep func(RenderObject) bool, sets func(*SlotResources) []Handle) func(*PassContext) {
	return func(ctx *PassContext) {
		slot := sets(&ctx.Resources.Slots[ctx.Slot])
		for i, obj := range objects {
			if !keep(obj) {
				continue
			}
			ctx.Recorder.BindDescriptorSet(ctx.Cmd, slot[i])
			ctx.Recorder.DrawMesh(ctx.Cmd, obj.Mesh)
		}
	}
}

func drawQuad(quad Mesh, direction int) func(*PassContext) {
	return func(ctx *PassContext) {
		ctx.Recorder.BindDescriptorSet(ctx.Cmd, ctx.Resources.Slots[ctx.Slot].BlurSets[direction])
		ctx.Recorder.DrawMesh(ctx.Cmd, quad)
	}
}
