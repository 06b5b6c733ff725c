package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatsFor(samples int) func(AttachmentID) (Format, int) {
	return func(id AttachmentID) (Format, int) {
		switch id {
		case AttachShadow:
			return ShadowFormat, 1
		case AttachDepth:
			return FormatD32Sfloat, samples
		case AttachCompositeDepth:
			return FormatD32Sfloat, 1
		case AttachPosition, AttachNormal:
			return GBufferFloatFormat, samples
		case AttachAlbedo:
			return GBufferColorFormat, samples
		case AttachPositionResolved, AttachNormalResolved:
			return GBufferFloatFormat, 1
		default:
			return GBufferColorFormat, 1
		}
	}
}

func plainObjects() []RenderObject {
	objs := testObjects()
	return objs[:2]
}

func TestPlanStandardChain(t *testing.T) {
	plans, err := Plan(StandardPasses(plainObjects(), PassOptions{}), formatsFor(1))
	require.NoError(t, err)
	require.Len(t, plans, 4)

	names := make([]string, len(plans))
	for i, p := range plans {
		names[i] = p.Name
	}
	assert.Equal(t, []string{PassShadow, PassGBuffer, PassBlurH, PassBlurV}, names)

	shadow := plans[0]
	require.NotNil(t, shadow.Depth)
	assert.Equal(t, LayoutUndefined, shadow.Depth.Initial)
	assert.Equal(t, LayoutDepthRead, shadow.Depth.Final)
	assert.Equal(t, StoreKeep, shadow.Depth.Store)

	gbuffer := plans[1]
	assert.Equal(t, []ReadBarrier{{
		ID:        AttachShadow,
		Layout:    LayoutDepthRead,
		SrcStage:  StageLateFragmentTests,
		SrcAccess: AccessDepthWrite,
	}}, gbuffer.Barriers)
	require.Len(t, gbuffer.Colors, 3)
	assert.Equal(t, LayoutShaderRead, gbuffer.Colors[0].Final, "positions are sampled by the blur")
	assert.Equal(t, StoreDontCare, gbuffer.Colors[1].Store, "normals are never read back")
	assert.Equal(t, LayoutShaderRead, gbuffer.Colors[2].Final)
	assert.Equal(t, StoreDontCare, gbuffer.Depth.Store)
	assert.Empty(t, gbuffer.Resolves)

	blurH := plans[2]
	assert.Equal(t, LayoutShaderRead, blurH.Colors[0].Final)
	require.Len(t, blurH.Barriers, 2)
	assert.Equal(t, AttachAlbedo, blurH.Barriers[0].ID)
	assert.Equal(t, StageColorOutput, blurH.Barriers[0].SrcStage)

	blurV := plans[3]
	assert.True(t, blurV.PerImage)
	assert.Equal(t, LayoutUndefined, blurV.Colors[0].Initial)
	assert.Equal(t, LayoutPresent, blurV.Colors[0].Final)
	assert.Equal(t, StoreKeep, blurV.Colors[0].Store)
}

func TestPlanWithOverlayComposites(t *testing.T) {
	plans, err := Plan(StandardPasses(testObjects(), PassOptions{}), formatsFor(1))
	require.NoError(t, err)
	require.Len(t, plans, 5)

	blurV, composite := plans[3], plans[4]
	assert.Equal(t, LayoutColorAttachment, blurV.Colors[0].Final)
	assert.Equal(t, StoreKeep, blurV.Colors[0].Store)

	assert.Equal(t, PassComposite, composite.Name)
	assert.Equal(t, LoadKeep, composite.Colors[0].Load)
	assert.Equal(t, LayoutColorAttachment, composite.Colors[0].Initial)
	assert.Equal(t, LayoutPresent, composite.Colors[0].Final)
	assert.Equal(t, LayoutDepthRead, composite.Barriers[0].Layout)
}

func TestPlanMultisampledResolves(t *testing.T) {
	plans, err := Plan(StandardPasses(plainObjects(), PassOptions{Multisampled: true}), formatsFor(4))
	require.NoError(t, err)

	gbuffer := plans[1]
	require.Len(t, gbuffer.Resolves, 3)
	for i, c := range gbuffer.Colors {
		assert.Equal(t, 4, c.Samples)
		assert.Equal(t, StoreDontCare, c.Store, "color %d", i)
	}
	assert.Equal(t, LayoutShaderRead, gbuffer.Resolves[0].Final)
	assert.Equal(t, StoreKeep, gbuffer.Resolves[0].Store)
	assert.Equal(t, 1, gbuffer.Resolves[0].Samples)
	assert.Equal(t, StoreDontCare, gbuffer.Resolves[1].Store)

	assert.Equal(t, AttachAlbedoResolved, plans[2].Barriers[0].ID)
	assert.Equal(t, AttachPositionResolved, plans[2].Barriers[1].ID)
}

func TestPlanRejectsBadOrder(t *testing.T) {
	present := []AttachmentUse{{ID: AttachPresent, Load: LoadClear}}
	cases := []struct {
		name  string
		nodes []PassNode
	}{
		{"read before write", []PassNode{
			{Name: "blur", Reads: []AttachmentID{AttachSSS}, Colors: present},
		}},
		{"load before write", []PassNode{
			{Name: "composite", Colors: []AttachmentUse{{ID: AttachPresent, Load: LoadKeep}}},
		}},
		{"read and write", []PassNode{
			{Name: "a", Colors: []AttachmentUse{{ID: AttachSSS}}},
			{Name: "b", Reads: []AttachmentID{AttachSSS}, Colors: []AttachmentUse{{ID: AttachSSS}}},
		}},
		{"no outputs", []PassNode{{Name: "empty"}}},
		{"resolve mismatch", []PassNode{
			{Name: "g", Colors: present, Resolves: []AttachmentUse{{ID: AttachSSS}, {ID: AttachAlbedo}}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Plan(tc.nodes, formatsFor(1))
			assert.ErrorIs(t, err, ErrPassOrder)
		})
	}
}

func buildGraph(t *testing.T, dev *fakeDevice, objects []RenderObject) (*FrameResourceSet, *Graph) {
	t.Helper()
	res := NewFrameResourceSet(dev, objects, ResourceOptions{})
	require.NoError(t, res.Create(Extent{Width: 800, Height: 600}, 3))
	g := NewGraph(dev, fakeShaders{}, StandardPasses(objects, PassOptions{Quad: Mesh{Vertices: 50, Indices: 51, IndexCount: 6}}))
	require.NoError(t, g.Build(res))
	return res, g
}

func TestGraphBuild(t *testing.T) {
	dev := newFakeDevice(nil)
	res, g := buildGraph(t, dev, testObjects())

	assert.Equal(t, 5, dev.liveOf("pass"))
	assert.Equal(t, 5, dev.liveOf("pipeline"))
	// One framebuffer each for the offscreen passes, one per image for the
	// two passes that write the swapchain.
	assert.Equal(t, 3+3+3, dev.liveOf("framebuffer"))

	shadow := dev.pipelines[0]
	assert.Nil(t, shadow.Fragment)
	assert.True(t, shadow.DepthBias)
	assert.Equal(t, 0, shadow.ColorTargets)
	assert.Equal(t, 3, dev.pipelines[1].ColorTargets)

	assert.Equal(t, Extent{Width: DefaultShadowResolution, Height: DefaultShadowResolution}, dev.framebuffers[0].Extent)
	gbuffer := dev.framebuffers[1]
	require.Len(t, gbuffer.Views, 4)
	assert.Equal(t, res.Attachment(AttachPosition, 0).View, gbuffer.Views[0])
	assert.Equal(t, res.Attachment(AttachDepth, 0).View, gbuffer.Views[3])
	assert.Equal(t, res.Attachment(AttachPresent, 2).View, dev.framebuffers[5].Views[0])

	before := dev.liveCount()
	require.NoError(t, g.Build(res))
	assert.Equal(t, before, dev.liveCount(), "rebuild releases the previous objects")

	g.Destroy()
	g.Destroy()
	assert.Zero(t, dev.liveOf("pass"))
	assert.Zero(t, dev.liveOf("framebuffer"))
	res.Destroy()
	assert.Zero(t, dev.liveCount())
}

func TestGraphBuildFailureReleases(t *testing.T) {
	dev := newFakeDevice(nil)
	objects := testObjects()
	res := NewFrameResourceSet(dev, objects, ResourceOptions{})
	require.NoError(t, res.Create(Extent{Width: 800, Height: 600}, 3))
	owned := dev.liveCount()

	g := NewGraph(dev, fakeShaders{missing: ShaderBlur}, StandardPasses(objects, PassOptions{}))
	err := g.Build(res)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, owned, dev.liveCount())
}

func TestGraphRecord(t *testing.T) {
	log := new([]string)
	dev := newFakeDevice(log)
	res, g := buildGraph(t, dev, testObjects())

	g.Record(Handle(99), res, 1, 2)
	assert.Equal(t, []string{
		"BeginPass shadow", "SetDepthBias", "EndPass",
		"PipelineBarrier 1", "BeginPass gbuffer", "EndPass",
		"PipelineBarrier 2", "BeginPass blur-horizontal", "EndPass",
		"PipelineBarrier 2", "BeginPass blur-vertical", "EndPass",
		"PipelineBarrier 1", "BeginPass composite", "EndPass",
	}, *log)
	assert.Equal(t, map[string]int{
		PassShadow:    2,
		PassGBuffer:   3,
		PassBlurH:     1,
		PassBlurV:     1,
		PassComposite: 1,
	}, dev.draws)
}
