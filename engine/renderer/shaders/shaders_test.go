package shaders

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/renderertest"
)

type layoutCache struct {
	device  *renderertest.Backend
	layouts map[DescriptorSetFamily]*metadata.DescriptorSetLayout
}

func (c *layoutCache) DescriptorLayout(f DescriptorSetFamily) (*metadata.DescriptorSetLayout, error) {
	if l, ok := c.layouts[f]; ok {
		return l, nil
	}
	l, err := c.device.DescriptorSetLayoutCreate(f.Bindings())
	if err != nil {
		return nil, err
	}
	c.layouts[f] = l
	return l, nil
}

func newBuilder(device *renderertest.Backend) *PipelineBuilder {
	return NewPipelineBuilder(&layoutCache{device: device, layouts: map[DescriptorSetFamily]*metadata.DescriptorSetLayout{}})
}

func colourDepthPass(t *testing.T, device *renderertest.Backend, samples uint32) *metadata.RenderPass {
	t.Helper()
	pass, err := device.RenderPassCreate(&metadata.RenderPassConfig{
		Name: "forward",
		Attachments: []metadata.RenderTargetAttachmentConfig{
			{Format: metadata.FormatRGBA16Float, Samples: samples},
			{Format: metadata.FormatD32Float, Samples: samples},
		},
		Subpasses: []metadata.Subpass{{Colour: []int{0}, Depth: 1}},
	})
	require.NoError(t, err)
	return pass
}

func depthPass(t *testing.T, device *renderertest.Backend) *metadata.RenderPass {
	t.Helper()
	pass, err := device.RenderPassCreate(&metadata.RenderPassConfig{
		Name:        "shadow",
		Attachments: []metadata.RenderTargetAttachmentConfig{{Format: metadata.FormatD32Float, Samples: 1}},
		Subpasses:   []metadata.Subpass{{Depth: 0}},
	})
	require.NoError(t, err)
	return pass
}

func TestLibraryFamilies(t *testing.T) {
	want := map[string][]DescriptorSetFamily{
		ShaderSetPbr:          {CameraData, Lights, MaterialTextures, MaterialData, ShadowMaskInfo, CascadedCameraInfo},
		ShaderSetWireframe:    {CameraData},
		ShaderSetShadow:       {CascadedCameraInfo, ShadowMaskInfo},
		ShaderSetPpExposure:   {PostProcessData},
		ShaderSetPpResolveHdr: {PostProcessData},
	}

	device := renderertest.New()
	lib := NewDefaultLibrary(renderertest.NewPrograms())
	assert.Len(t, lib.Names(), len(want))

	for name, families := range want {
		require.True(t, lib.HasShaderSet(name), name)
		set, err := lib.GetShaderSet(name, device)
		require.NoError(t, err, name)
		assert.Equal(t, families, set.Families, name)
		assert.Equal(t, name, set.Name)
		assert.Equal(t, metadata.ShaderStageVertex, set.Vertex.Stage)
		assert.Equal(t, metadata.ShaderStageFragment, set.Fragment.Stage)
	}
}

func TestLibraryUnknownName(t *testing.T) {
	device := renderertest.New()
	lib := NewDefaultLibrary(renderertest.NewPrograms())

	for _, name := range []string{"Bloom", "pbr", "PBR", ""} {
		assert.False(t, lib.HasShaderSet(name), name)
		set, err := lib.GetShaderSet(name, device)
		assert.Nil(t, set)
		assert.ErrorIs(t, err, core.ErrShaderSetNotFound)
	}
	assert.Zero(t, device.CreatedCount("shader"))
}

func TestLibraryBuildFailureLeavesNothing(t *testing.T) {
	device := renderertest.New()
	programs := renderertest.NewPrograms()
	programs.Missing["pbr.frag"] = true
	lib := NewDefaultLibrary(programs)

	set, err := lib.GetShaderSet(ShaderSetPbr, device)
	require.Error(t, err)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, core.ErrShaderBuild)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, metadata.ShaderStageFragment, buildErr.Stage)

	// the vertex module was created and then released
	assert.Equal(t, 1, device.CreatedCount("shader"))
	assert.Zero(t, device.Live()["shader"])
}

func TestLibraryDeviceFailure(t *testing.T) {
	device := renderertest.New()
	device.Fail["shader:wireframe.vert"] = nil
	lib := NewDefaultLibrary(renderertest.NewPrograms())

	_, err := lib.GetShaderSet(ShaderSetWireframe, device)
	assert.ErrorIs(t, err, renderertest.ErrInjected)
	assert.ErrorIs(t, err, core.ErrShaderBuild)
	assert.Zero(t, device.Live()["shader"])
}

func TestToPipeline(t *testing.T) {
	device := renderertest.New()
	lib := NewDefaultLibrary(renderertest.NewPrograms())
	builder := newBuilder(device)
	forward := colourDepthPass(t, device, 4)

	set, err := lib.GetShaderSet(ShaderSetWireframe, device)
	require.NoError(t, err)

	pipeline, families, err := set.ToPipeline(builder, metadata.DefaultPipelineConfig(), forward, 0, device)
	require.NoError(t, err)
	assert.Equal(t, []DescriptorSetFamily{CameraData}, families)
	assert.Equal(t, ShaderSetWireframe, pipeline.Name)
	assert.Equal(t, forward.Handle, pipeline.RenderPass)
	assert.Equal(t, uint32(1), pipeline.SetCount)

	// the returned families are a copy
	families[0] = Lights
	assert.Equal(t, CameraData, set.Families[0])
}

func TestToPipelineShadow(t *testing.T) {
	device := renderertest.New()
	lib := NewDefaultLibrary(renderertest.NewPrograms())
	builder := newBuilder(device)

	shadow, err := lib.GetShaderSet(ShaderSetShadow, device)
	require.NoError(t, err)

	_, families, err := shadow.ToPipeline(builder, metadata.DefaultPipelineConfig(), depthPass(t, device), 0, device)
	require.NoError(t, err)
	assert.Equal(t, []DescriptorSetFamily{CascadedCameraInfo, ShadowMaskInfo}, families)
}

func TestToPipelineRejectsBadTargets(t *testing.T) {
	device := renderertest.New()
	lib := NewDefaultLibrary(renderertest.NewPrograms())
	builder := newBuilder(device)
	forward := colourDepthPass(t, device, 1)
	shadowPass := depthPass(t, device)

	pbr, err := lib.GetShaderSet(ShaderSetPbr, device)
	require.NoError(t, err)
	shadow, err := lib.GetShaderSet(ShaderSetShadow, device)
	require.NoError(t, err)

	cases := []struct {
		name    string
		set     *ShaderSet
		pass    *metadata.RenderPass
		subpass uint32
		want    error
	}{
		{"subpass out of range", pbr, forward, 1, core.ErrSubpassOutOfRange},
		{"nil pass", pbr, nil, 0, core.ErrSubpassOutOfRange},
		{"colour technique on depth pass", pbr, shadowPass, 0, core.ErrIncompatibleRenderPass},
	}
	for _, c := range cases {
		p, fams, err := c.set.ToPipeline(builder, metadata.DefaultPipelineConfig(), c.pass, c.subpass, device)
		assert.ErrorIs(t, err, c.want, c.name)
		assert.Nil(t, p, c.name)
		assert.Nil(t, fams, c.name)
	}

	colourOnly, err := device.RenderPassCreate(&metadata.RenderPassConfig{
		Name:        "resolve",
		Attachments: []metadata.RenderTargetAttachmentConfig{{Format: metadata.FormatRGBA8Unorm, Samples: 1}},
		Subpasses:   []metadata.Subpass{{Colour: []int{0}, Depth: metadata.NoAttachment}},
	})
	require.NoError(t, err)
	_, _, err = shadow.ToPipeline(builder, metadata.DefaultPipelineConfig(), colourOnly, 0, device)
	assert.ErrorIs(t, err, core.ErrIncompatibleRenderPass)

	broken := *pbr
	broken.VertexLayout = metadata.VertexLayout{}
	_, _, err = broken.ToPipeline(builder, metadata.DefaultPipelineConfig(), forward, 0, device)
	assert.ErrorIs(t, err, core.ErrInvalidVertexLayout)

	assert.Zero(t, device.CreatedCount("pipeline"))
}

func TestToPipelineDeviceFailure(t *testing.T) {
	device := renderertest.New()
	device.Fail["pipeline:"+ShaderSetPbr] = nil
	lib := NewDefaultLibrary(renderertest.NewPrograms())
	pbr, err := lib.GetShaderSet(ShaderSetPbr, device)
	require.NoError(t, err)

	p, _, err := pbr.ToPipeline(newBuilder(device), metadata.DefaultPipelineConfig(), colourDepthPass(t, device, 1), 0, device)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, core.ErrPipelineBuild)
	assert.ErrorIs(t, err, renderertest.ErrInjected)
	assert.Zero(t, device.Live()["pipeline"])
}

func TestToPipelineMixedSamples(t *testing.T) {
	device := renderertest.New()
	pass, err := device.RenderPassCreate(&metadata.RenderPassConfig{
		Name: "broken",
		Attachments: []metadata.RenderTargetAttachmentConfig{
			{Format: metadata.FormatRGBA16Float, Samples: 4},
			{Format: metadata.FormatD32Float, Samples: 1},
		},
		Subpasses: []metadata.Subpass{{Colour: []int{0}, Depth: 1}},
	})
	require.NoError(t, err)
	set, err := NewDefaultLibrary(renderertest.NewPrograms()).GetShaderSet(ShaderSetPbr, device)
	require.NoError(t, err)

	_, _, err = set.ToPipeline(newBuilder(device), metadata.DefaultPipelineConfig(), pass, 0, device)
	assert.ErrorIs(t, err, core.ErrIncompatibleRenderPass)
}

func TestFamilyBindings(t *testing.T) {
	for _, f := range Families() {
		bindings := f.Bindings()
		require.NotEmpty(t, bindings, f.String())
		for i, b := range bindings {
			assert.Equal(t, uint32(i), b.Binding, f.String())
		}
	}
	assert.Len(t, MaterialTextures.Bindings(), int(MaterialTextureCount))
}

func TestLayoutSizes(t *testing.T) {
	assert.Len(t, Bytes(&CameraLayout{}), 256)
	assert.Len(t, Bytes(&LightsLayout{}), 16+MaxLights*64)
	assert.Len(t, Bytes(&ModelPushConstant{}), 64)

	var cam CameraLayout
	cam.SetClip(0.1, 100)
	b := Bytes(&cam)
	assert.Equal(t, float32(100), Float32(b, 53))
}

func TestVertexBytes(t *testing.T) {
	vertices, indices := FullScreenQuad()
	assert.Len(t, VertexBytes(vertices), len(vertices)*int(ScreenVertexLayout().Stride))
	assert.Len(t, IndexBytes(indices), 24)
	assert.Len(t, VertexBytes([]PbrVertex{{}}), int(PbrVertexLayout().Stride))
}
