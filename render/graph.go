package render

import (
	"fmt"
)

// AttachmentUse is an attachment written by a pass.
type AttachmentUse struct {
	ID    AttachmentID
	Load  LoadOp
	Clear ClearValue
}

// PipelineSpec names the shaders and fixed function state of a pass.
// An empty Fragment builds a depth only pipeline.
type PipelineSpec struct {
	Vertex     string
	Fragment   string
	DepthTest  bool
	DepthWrite bool
	DepthBias  bool
	Cull       CullMode
}

// PassContext is what a pass's Draw callback records against.
type PassContext struct {
	Cmd       Handle
	Recorder  Recorder
	Resources *FrameResourceSet
	Slot      int
	Image     uint32
	Extent    Extent
}

// PassNode declares one pass: what it samples, what it writes and how it draws.
// Resolves, when present, pair one to one with Colors.
type PassNode struct {
	Name     string
	Reads    []AttachmentID
	Colors   []AttachmentUse
	Resolves []AttachmentUse
	Depth    *AttachmentUse
	Pipeline PipelineSpec
	Draw     func(ctx *PassContext)
}

func (n *PassNode) outputs() []AttachmentUse {
	out := make([]AttachmentUse, 0, len(n.Colors)+len(n.Resolves)+1)
	out = append(out, n.Colors...)
	if n.Depth != nil {
		out = append(out, *n.Depth)
	}
	return append(out, n.Resolves...)
}

// ReadBarrier is the dependency recorded before a pass that samples an attachment.
type ReadBarrier struct {
	ID        AttachmentID
	Layout    Layout
	SrcStage  Stage
	SrcAccess Access
}

// PassPlan is the derived layout and barrier schedule of one pass.
type PassPlan struct {
	Name     string
	Colors   []AttachmentOp
	Depth    *AttachmentOp
	Resolves []AttachmentOp
	Barriers []ReadBarrier
	PerImage bool
}

type event struct {
	node  int
	write bool
	load  LoadOp
}

// Plan validates the node order and derives every pass's attachment layouts,
// store ops and read barriers. formats resolves an attachment's format and
// sample count.
func Plan(nodes []PassNode, formats func(AttachmentID) (Format, int)) ([]PassPlan, error) {
	events := make(map[AttachmentID][]event)
	for i := range nodes {
		n := &nodes[i]
		outs := n.outputs()
		if len(outs) == 0 {
			return nil, fmt.Errorf("%w: pass %q has no outputs", ErrPassOrder, n.Name)
		}
		if len(n.Resolves) > 0 && len(n.Resolves) != len(n.Colors) {
			return nil, fmt.Errorf("%w: pass %q has %d resolves for %d colors", ErrPassOrder, n.Name, len(n.Resolves), len(n.Colors))
		}
		for _, id := range n.Reads {
			if !written(events[id]) {
				return nil, fmt.Errorf("%w: pass %q reads %s before any pass writes it", ErrPassOrder, n.Name, id)
			}
			for _, o := range outs {
				if o.ID == id {
					return nil, fmt.Errorf("%w: pass %q reads and writes %s", ErrPassOrder, n.Name, id)
				}
			}
			events[id] = append(events[id], event{node: i})
		}
		for _, o := range outs {
			if o.Load == LoadKeep && !written(events[o.ID]) {
				return nil, fmt.Errorf("%w: pass %q loads %s before any pass writes it", ErrPassOrder, n.Name, o.ID)
			}
			events[o.ID] = append(events[o.ID], event{node: i, write: true, load: o.Load})
		}
	}

	finals := make(map[AttachmentID]Layout)
	plans := make([]PassPlan, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		p := PassPlan{Name: n.Name}
		op := func(u AttachmentUse) AttachmentOp {
			f, samples := formats(u.ID)
			a := AttachmentOp{Format: f, Samples: samples, Load: u.Load, Initial: LayoutUndefined}
			if u.Load == LoadKeep {
				a.Initial = finals[u.ID]
			}
			a.Final, a.Store = finalUse(u.ID, f, events[u.ID], i)
			if u.ID == AttachPresent {
				p.PerImage = true
			}
			return a
		}
		for _, id := range n.Reads {
			f, _ := formats(id)
			b := ReadBarrier{ID: id, Layout: finals[id], SrcStage: StageColorOutput, SrcAccess: AccessColorWrite}
			if f.IsDepth() {
				b.SrcStage, b.SrcAccess = StageLateFragmentTests, AccessDepthWrite
			}
			p.Barriers = append(p.Barriers, b)
		}
		for _, u := range n.Colors {
			p.Colors = append(p.Colors, op(u))
		}
		if n.Depth != nil {
			d := op(*n.Depth)
			p.Depth = &d
		}
		for _, u := range n.Resolves {
			p.Resolves = append(p.Resolves, op(u))
		}
		for _, u := range n.outputs() {
			f, _ := formats(u.ID)
			finals[u.ID], _ = finalUse(u.ID, f, events[u.ID], i)
		}
		plans[i] = p
	}
	return plans, nil
}

func written(evs []event) bool {
	for _, e := range evs {
		if e.write {
			return true
		}
	}
	return false
}

// finalUse picks the layout an attachment written by node is left in, based on
// the next thing that happens to it.
func finalUse(id AttachmentID, f Format, evs []event, node int) (Layout, StoreOp) {
	attach := LayoutColorAttachment
	read := LayoutShaderRead
	if f.IsDepth() {
		attach, read = LayoutDepthAttachment, LayoutDepthRead
	}
	for _, e := range evs {
		if e.node <= node {
			continue
		}
		switch {
		case !e.write:
			return read, StoreKeep
		case e.load == LoadKeep:
			return attach, StoreKeep
		default:
			return attach, StoreDontCare
		}
	}
	if id == AttachPresent {
		return LayoutPresent, StoreKeep
	}
	return attach, StoreDontCare
}

type builtPass struct {
	node         *PassNode
	plan         PassPlan
	pass         Handle
	pipeline     Handle
	framebuffers []Handle
	extent       Extent
	clears       []ClearValue
}

// Graph evaluates a fixed list of pass nodes. Build creates the render passes,
// pipelines and framebuffers for the current FrameResourceSet, Record replays
// the passes into a command buffer every frame.
type Graph struct {
	device  Device
	shaders ShaderLibrary
	nodes   []PassNode
	passes  []builtPass
	scope   Scope
}

func NewGraph(device Device, shaders ShaderLibrary, nodes []PassNode) *Graph {
	return &Graph{device: device, shaders: shaders, nodes: nodes}
}

func (g *Graph) Nodes() []PassNode {
	return g.nodes
}

// Plans returns the derived schedule of the last Build.
func (g *Graph) Plans() []PassPlan {
	out := make([]PassPlan, len(g.passes))
	for i := range g.passes {
		out[i] = g.passes[i].plan
	}
	return out
}

// Build creates every pass object against res. Objects from a previous Build
// are destroyed first.
func (g *Graph) Build(res *FrameResourceSet) (err error) {
	g.Destroy()
	defer func() {
		if err != nil {
			g.Destroy()
			err = fatal("build render graph", err)
		}
	}()

	formats := func(id AttachmentID) (Format, int) {
		if id == AttachPresent {
			return res.Images.Swapchain.Format, 1
		}
		a := res.Attachment(id, 0)
		if a == nil {
			return FormatUndefined, 1
		}
		return a.Desc.Format, a.Desc.Samples
	}
	plans, err := Plan(g.nodes, formats)
	if err != nil {
		return err
	}
	for i := range g.nodes {
		if a := g.missingAttachment(&g.nodes[i], res); a != "" {
			return fmt.Errorf("pass %q: attachment %s not allocated", g.nodes[i].Name, a)
		}
	}

	g.passes = make([]builtPass, len(g.nodes))
	for i := range g.nodes {
		if err = g.buildPass(&g.passes[i], &g.nodes[i], plans[i], res); err != nil {
			return fmt.Errorf("pass %q: %w", g.nodes[i].Name, err)
		}
	}
	return nil
}

func (g *Graph) missingAttachment(n *PassNode, res *FrameResourceSet) string {
	for _, u := range n.outputs() {
		if u.ID != AttachPresent && res.Attachment(u.ID, 0) == nil {
			return u.ID.String()
		}
	}
	for _, id := range n.Reads {
		if res.Attachment(id, 0) == nil {
			return id.String()
		}
	}
	return ""
}

func (g *Graph) buildPass(bp *builtPass, n *PassNode, plan PassPlan, res *FrameResourceSet) error {
	bp.node, bp.plan = n, plan
	outs := n.outputs()
	first := res.Attachment(outs[0].ID, 0)
	if outs[0].ID == AttachPresent {
		bp.extent = res.Images.Swapchain.Extent
	} else {
		bp.extent = first.Desc.Extent
	}
	for _, u := range outs {
		bp.clears = append(bp.clears, u.Clear)
	}

	var err error
	desc := PassDesc{
		Name:         n.Name,
		Colors:       plan.Colors,
		Depth:        plan.Depth,
		Resolves:     plan.Resolves,
		Dependencies: passDependencies(),
	}
	if bp.pass, err = acquire(&g.scope, func() (Handle, error) {
		return g.device.CreateRenderPass(desc)
	}, g.device.DestroyRenderPass); err != nil {
		return err
	}

	vert, err := g.shaders.Program(n.Pipeline.Vertex, StageVertex)
	if err != nil {
		return err
	}
	pd := PipelineDesc{
		Name:         n.Name,
		Pass:         bp.pass,
		Vertex:       vert,
		ColorTargets: len(n.Colors),
		Samples:      1,
		DepthTest:    n.Pipeline.DepthTest,
		DepthWrite:   n.Pipeline.DepthWrite,
		DepthBias:    n.Pipeline.DepthBias,
		Cull:         n.Pipeline.Cull,
	}
	if len(plan.Colors) > 0 {
		pd.Samples = plan.Colors[0].Samples
	} else if plan.Depth != nil {
		pd.Samples = plan.Depth.Samples
	}
	if n.Pipeline.Fragment != "" {
		frag, err := g.shaders.Program(n.Pipeline.Fragment, StageFragment)
		if err != nil {
			return err
		}
		pd.Fragment = &frag
	}
	if bp.pipeline, err = acquire(&g.scope, func() (Handle, error) {
		return g.device.CreatePipeline(pd)
	}, g.device.DestroyPipeline); err != nil {
		return err
	}

	count := 1
	if plan.PerImage {
		count = res.Images.Len()
	}
	bp.framebuffers = make([]Handle, count)
	for img := 0; img < count; img++ {
		views := make([]Handle, 0, len(outs))
		for _, u := range outs {
			views = append(views, res.Attachment(u.ID, uint32(img)).View)
		}
		fd := FramebufferDesc{Pass: bp.pass, Views: views, Extent: bp.extent}
		if bp.framebuffers[img], err = acquire(&g.scope, func() (Handle, error) {
			return g.device.CreateFramebuffer(fd)
		}, g.device.DestroyFramebuffer); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases every pass object. Safe to call repeatedly.
func (g *Graph) Destroy() {
	g.scope.Release()
	g.passes = nil
}

// Record replays every pass into cmd for the given frame slot and swapchain image.
func (g *Graph) Record(cmd Handle, res *FrameResourceSet, slot int, image uint32) {
	rec := g.device
	for i := range g.passes {
		bp := &g.passes[i]
		if len(bp.plan.Barriers) > 0 {
			barriers := make([]Barrier, 0, len(bp.plan.Barriers))
			for _, rb := range bp.plan.Barriers {
				barriers = append(barriers, Barrier{
					Attachment: res.Attachment(rb.ID, image),
					Old:        rb.Layout,
					New:        rb.Layout,
					SrcStage:   rb.SrcStage,
					DstStage:   StageFragmentShader,
					SrcAccess:  rb.SrcAccess,
					DstAccess:  AccessShaderRead,
				})
			}
			rec.PipelineBarrier(cmd, barriers)
		}

		fb := bp.framebuffers[0]
		if bp.plan.PerImage {
			fb = bp.framebuffers[image]
		}
		rec.BeginPass(cmd, bp.pass, fb, bp.extent, bp.clears)
		rec.SetViewport(cmd, FullViewport(bp.extent))
		rec.SetScissor(cmd, Rect{Extent: bp.extent})
		rec.BindPipeline(cmd, bp.pipeline)
		if bp.node.Draw != nil {
			bp.node.Draw(&PassContext{
				Cmd:       cmd,
				Recorder:  rec,
				Resources: res,
				Slot:      slot,
				Image:     image,
				Extent:    bp.extent,
			})
		}
		rec.EndPass(cmd)
	}
}

func passDependencies() []Dependency {
	return []Dependency{
		{
			Incoming:  true,
			SrcStage:  StageFragmentShader | StageColorOutput | StageLateFragmentTests,
			DstStage:  StageEarlyFragmentTests | StageColorOutput,
			SrcAccess: AccessShaderRead | AccessColorWrite | AccessDepthWrite,
			DstAccess: AccessColorRead | AccessColorWrite | AccessDepthRead | AccessDepthWrite,
		},
		{
			SrcStage:  StageColorOutput | StageLateFragmentTests,
			DstStage:  StageFragmentShader | StageBottomOfPipe,
			SrcAccess: AccessColorWrite | AccessDepthWrite,
			DstAccess: AccessShaderRead | AccessMemoryRead,
		},
	}
}
