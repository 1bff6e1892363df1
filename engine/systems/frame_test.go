package systems

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/passes"
	"github.com/spaghettifunk/lumen/engine/renderer/renderertest"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

type frameFixture struct {
	device *renderertest.Backend
	shader *ShaderSystem
	lights *LightSystem
	frames *FrameSystem
	target *metadata.Image
	camera *components.Camera
}

func newFrameFixture(t *testing.T, configure func(*FrameSystemConfig)) *frameFixture {
	t.Helper()
	device := renderertest.New()
	ss, err := NewShaderSystem(&ShaderSystemConfig{MaxShaderSetCount: 8}, shaders.NewDefaultLibrary(renderertest.NewPrograms()), device, nil)
	require.NoError(t, err)
	ls, err := NewLightSystem(&LightSystemConfig{Cascades: 4, SplitLambda: 0.5})
	require.NoError(t, err)

	config := DefaultFrameSystemConfig()
	config.Passes.Width = 64
	config.Passes.Height = 32
	config.Passes.ShadowMapSize = 128
	config.Passes.Headless = true
	if configure != nil {
		configure(config)
	}
	fs, err := NewFrameSystem(config, device, ss, ls)
	require.NoError(t, err)

	target, err := device.ImageCreate(&metadata.ImageConfig{
		Name:   "surface",
		Format: config.Passes.SurfaceFormat,
		Width:  config.Passes.Width,
		Height: config.Passes.Height,
		Usage:  metadata.ImageUsageColorAttachment | metadata.ImageUsageTransferDst | metadata.ImageUsageTransferSrc,
	})
	require.NoError(t, err)

	return &frameFixture{
		device: device,
		shader: ss,
		lights: ls,
		frames: fs,
		target: target,
		camera: components.NewCamera(),
	}
}

// stageDrawable draws a shader set at one stage and records every stage it is offered.
type stageDrawable struct {
	name      string
	stage     metadata.FrameStage
	shaderSet string
	geometry  *components.Geometry
	sets      map[shaders.DescriptorSetFamily]*metadata.DescriptorSet
	offered   []metadata.FrameStage
	errs      []error
}

func (d *stageDrawable) Draw(stage metadata.FrameStage, frames *FrameSystem, lights *LightSystem, transform math.Mat4) metadata.FrameStage {
	d.offered = append(d.offered, stage)
	if stage == d.stage {
		d.errs = append(d.errs, frames.Draw(stage, DrawCall{
			ShaderSet: d.shaderSet,
			Geometry:  d.geometry,
			Transform: transform,
			Sets:      d.sets,
		}))
	}
	return stage
}

func (d *stageDrawable) GetBound() math.Extents3D {
	return d.geometry.Extents
}

func (d *stageDrawable) GetName() string {
	return d.name
}

func newBox(t *testing.T, device *renderertest.Backend) *components.Geometry {
	t.Helper()
	vertices, indices := components.BoxVertices(math.Extents3D{Min: math.NewVec3(-0.5, -0.5, -0.5), Max: math.NewVec3(0.5, 0.5, 0.5)})
	g, err := components.NewGeometry(device, "box", vertices, indices)
	require.NoError(t, err)
	return g
}

func TestNewFrameSystemConfig(t *testing.T) {
	device := renderertest.New()
	ss, err := NewShaderSystem(&ShaderSystemConfig{MaxShaderSetCount: 8}, shaders.NewDefaultLibrary(renderertest.NewPrograms()), device, nil)
	require.NoError(t, err)
	ls, err := NewLightSystem(&LightSystemConfig{Cascades: 4})
	require.NoError(t, err)

	_, err = NewFrameSystem(DefaultFrameSystemConfig(), nil, ss, ls)
	assert.Error(t, err)

	config := DefaultFrameSystemConfig()
	config.Passes.Width = 0
	_, err = NewFrameSystem(config, device, ss, ls)
	assert.Error(t, err)

	config = DefaultFrameSystemConfig()
	config.Passes.Cascades = 2
	_, err = NewFrameSystem(config, device, ss, ls)
	assert.Error(t, err)

	config = DefaultFrameSystemConfig()
	config.Techniques[metadata.FrameStageSubmitted] = []string{"Pbr"}
	_, err = NewFrameSystem(config, device, ss, ls)
	assert.Error(t, err)
}

func TestInitializeUnknownTechnique(t *testing.T) {
	f := newFrameFixture(t, func(c *FrameSystemConfig) {
		c.Techniques[metadata.FrameStageForward] = append(c.Techniques[metadata.FrameStageForward], "Bloom")
	})

	err := f.frames.Initialize()
	assert.ErrorIs(t, err, core.ErrShaderSetNotFound)
	assert.Equal(t, 0, f.device.CreatedCount("render_pass"))
	assert.Equal(t, 0, f.device.CreatedCount("shader"))

	_, err = f.frames.BeginFrame(f.target, f.camera)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestInitializeFailureReleasesEverything(t *testing.T) {
	f := newFrameFixture(t, nil)
	f.device.Fail["pipeline:"+shaders.ShaderSetPpResolveHdr] = nil

	require.Error(t, f.frames.Initialize())
	live := f.device.Live()
	assert.Zero(t, live["render_pass"])
	assert.Zero(t, live["render_target"])
	assert.Zero(t, live["pipeline"])
	assert.Zero(t, live["buffer"])
	// only the test's own target survives
	assert.Equal(t, 1, live["image"])

	delete(f.device.Fail, "pipeline:"+shaders.ShaderSetPpResolveHdr)
	require.NoError(t, f.frames.Initialize())
	_, err := f.frames.RenderFrame(f.target, f.camera, nil)
	require.NoError(t, err)
}

func TestInitializeImages(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	hdr := f.frames.Image("hdr_colour")
	require.NotNil(t, hdr)
	assert.Equal(t, "hdr_colour-"+f.frames.ID().String(), hdr.Name)
	assert.Equal(t, uint32(4), hdr.Samples)
	assert.Equal(t, uint32(4), f.frames.Image("shadow_map").Layers)
	assert.Equal(t, uint32(128), f.frames.Image("shadow_map").Width)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, f.device.ImageBytes(f.frames.Image("white")))
	assert.Nil(t, f.frames.Image("bloom"))
}

func TestFrameStagesInOrder(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	frame, err := f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)
	assert.Same(t, frame, f.frames.Current())
	assert.Equal(t, metadata.FrameStageShadow, frame.Stage())

	for _, want := range []metadata.FrameStage{
		metadata.FrameStageForward,
		metadata.FrameStagePostProcess,
		metadata.FrameStageResolve,
		metadata.FrameStageAssemble,
	} {
		got, err := frame.Advance()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, frame.Submit())
	assert.Equal(t, metadata.FrameStageSubmitted, frame.Stage())
	assert.Nil(t, f.frames.Current())

	cmds := f.device.LastFrame()
	assert.Equal(t, []string{
		passes.ShadowPassName,
		passes.ForwardPassName,
		passes.PostProcessPassName,
		passes.ResolvePassName,
		passes.AssemblePassName,
	}, renderertest.Passes(cmds))

	// the resolved image is copied in before the Assemble pass begins
	blit := slices.IndexFunc(cmds, func(c renderertest.Command) bool { return c.Op == renderertest.OpBlitImage })
	assemble := slices.IndexFunc(cmds, func(c renderertest.Command) bool {
		return c.Op == renderertest.OpBeginRenderPass && c.Pass == passes.AssemblePassName
	})
	require.NotEqual(t, -1, blit)
	assert.Less(t, blit, assemble)
	assert.Equal(t, 1, renderertest.Count(cmds, renderertest.OpBlitImage))

	// one full screen quad for exposure and one for the resolve
	assert.Equal(t, 1, frame.Draws(metadata.FrameStagePostProcess))
	assert.Equal(t, 1, frame.Draws(metadata.FrameStageResolve))
	assert.Equal(t, 2, renderertest.Count(cmds, renderertest.OpDrawIndexed))
	assert.Equal(t, 0, frame.Skipped())
}

func TestFrameAfterSubmit(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	frame, err := f.frames.RenderFrame(f.target, f.camera, nil)
	require.NoError(t, err)

	_, err = frame.Advance()
	assert.ErrorIs(t, err, core.ErrFrameSubmitted)
	assert.ErrorIs(t, frame.Submit(), core.ErrFrameSubmitted)
	assert.Equal(t, metadata.FrameStageSubmitted, frame.Stage())
}

func TestSubmitBeforeAssemble(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	frame, err := f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)
	_, err = frame.Advance()
	require.NoError(t, err)

	assert.ErrorIs(t, frame.Submit(), core.ErrStageMismatch)
	assert.Equal(t, metadata.FrameStageForward, frame.Stage())
	assert.Same(t, frame, f.frames.Current())
}

func TestAdvanceFromAssembleSubmits(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	frame, err := f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)
	for frame.Stage() != metadata.FrameStageAssemble {
		_, err := frame.Advance()
		require.NoError(t, err)
	}
	stage, err := frame.Advance()
	require.NoError(t, err)
	assert.Equal(t, metadata.FrameStageSubmitted, stage)
	assert.Len(t, f.device.Submitted, 1)
}

func TestBeginFrameInProgress(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	_, err := f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)
	_, err = f.frames.BeginFrame(f.target, f.camera)
	assert.ErrorIs(t, err, core.ErrFrameInProgress)

	_, err = f.frames.BeginFrame(nil, f.camera)
	assert.Error(t, err)
}

func TestDrawWrongStage(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())
	box := newBox(t, f.device)

	err := f.frames.Draw(metadata.FrameStageForward, DrawCall{ShaderSet: "Pbr", Geometry: box})
	assert.ErrorIs(t, err, core.ErrStageMismatch)

	frame, err := f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)
	err = f.frames.Draw(metadata.FrameStageForward, DrawCall{ShaderSet: "Pbr", Geometry: box})
	assert.ErrorIs(t, err, core.ErrStageMismatch)
	assert.Equal(t, 0, frame.Draws(metadata.FrameStageForward))

	for frame.Stage() != metadata.FrameStageAssemble {
		_, err := frame.Advance()
		require.NoError(t, err)
	}
	require.NoError(t, frame.Submit())
	// nothing but the two full screen quads was bound
	assert.Equal(t, 2, renderertest.Count(f.device.LastFrame(), renderertest.OpBindPipeline))
}

func TestRenderFrameDrawsAndCulls(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())
	box := newBox(t, f.device)

	visible := &stageDrawable{name: "visible", stage: metadata.FrameStageForward, shaderSet: "Pbr", geometry: box}
	behind := &stageDrawable{name: "behind", stage: metadata.FrameStageForward, shaderSet: "Pbr", geometry: box}
	wire := &stageDrawable{name: "wire", stage: metadata.FrameStageForward, shaderSet: "Wireframe", geometry: box}

	// the default camera looks down -Z from the origin
	frame, err := f.frames.RenderFrame(f.target, f.camera, []RenderInstance{
		{Object: visible, Transform: math.NewMat4Translation(math.NewVec3(0, 0, -5))},
		{Object: behind, Transform: math.NewMat4Translation(math.NewVec3(0, 0, 50))},
		{Object: wire, Transform: math.NewMat4Translation(math.NewVec3(1, 0, -8))},
	})
	require.NoError(t, err)

	assert.Equal(t, metadata.FrameStageSubmitted, frame.Stage())
	assert.Equal(t, 2, frame.Draws(metadata.FrameStageForward))
	assert.Equal(t, 1, frame.Culled())
	assert.Equal(t, 0, frame.Skipped())
	assert.Equal(t, metadata.FrameStages, visible.offered)
	assert.NotContains(t, behind.offered, metadata.FrameStageForward)
	assert.Len(t, behind.offered, 4)
	for _, err := range append(visible.errs, wire.errs...) {
		assert.NoError(t, err)
	}

	cmds := f.device.LastFrame()
	var pipelines []string
	for _, c := range cmds {
		if c.Op == renderertest.OpBindPipeline {
			pipelines = append(pipelines, c.Pipeline)
		}
	}
	assert.Equal(t, []string{"Pbr", "Wireframe", "PpExposure", "PpResolveHdr"}, pipelines)
	// both scene pipelines take the model matrix
	assert.Equal(t, 2, renderertest.Count(cmds, renderertest.OpPushConstants))
	assert.Equal(t, uint64(1), f.frames.Metrics().TotalFrames())
}

func TestDrawUsesOverrideSets(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())
	box := newBox(t, f.device)

	material := components.NewMaterial("red")
	material.BaseColor = math.NewVec4(1, 0, 0, 1)
	require.NoError(t, material.Upload(f.device, f.shader))
	own := material.Sets()[shaders.MaterialData]
	require.NotNil(t, own)

	d := &stageDrawable{name: "red", stage: metadata.FrameStageForward, shaderSet: "Pbr", geometry: box, sets: material.Sets()}
	_, err := f.frames.RenderFrame(f.target, f.camera, []RenderInstance{
		{Object: d, Transform: math.NewMat4Translation(math.NewVec3(0, 0, -5))},
	})
	require.NoError(t, err)

	for _, c := range f.device.LastFrame() {
		if c.Op == renderertest.OpBindDescriptorSets && c.Pipeline == "Pbr" {
			require.Len(t, c.Sets, 6)
			// MaterialData is set 3 of the Pbr pipeline
			assert.Equal(t, own.Handle, c.Sets[3])
			return
		}
	}
	t.Fatal("Pbr descriptor sets were never bound")
}

func TestDrawUnknownShaderSetIsSkipped(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())
	box := newBox(t, f.device)

	bloom := &stageDrawable{name: "bloom", stage: metadata.FrameStageForward, shaderSet: "Bloom", geometry: box}
	frame, err := f.frames.RenderFrame(f.target, f.camera, []RenderInstance{
		{Object: bloom, Transform: math.NewMat4Translation(math.NewVec3(0, 0, -5))},
	})
	require.NoError(t, err)

	assert.Equal(t, metadata.FrameStageSubmitted, frame.Stage())
	assert.Equal(t, 1, frame.Skipped())
	assert.Equal(t, 0, frame.Draws(metadata.FrameStageForward))
	require.Len(t, bloom.errs, 1)
	assert.ErrorIs(t, bloom.errs[0], core.ErrShaderSetNotFound)
}

func TestDrawMissingFamilyIsSkipped(t *testing.T) {
	f := newFrameFixture(t, func(c *FrameSystemConfig) {
		c.Techniques[metadata.FrameStageForward] = []string{shaders.ShaderSetWireframe}
	})
	require.NoError(t, f.frames.Initialize())
	box := newBox(t, f.device)

	// the Resolve stage binds no Lights
	pbr := &stageDrawable{name: "pbr", stage: metadata.FrameStageResolve, shaderSet: "Pbr", geometry: box}
	frame, err := f.frames.RenderFrame(f.target, f.camera, []RenderInstance{
		{Object: pbr, Transform: math.NewMat4Identity()},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, frame.Skipped())
	assert.Equal(t, 1, frame.Draws(metadata.FrameStageResolve))
	require.Len(t, pbr.errs, 1)
	assert.ErrorIs(t, pbr.errs[0], core.ErrMissingDescriptorFamily)
}

func TestDrawWithoutGeometryIsSkipped(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	frame, err := f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)
	_, err = frame.Advance()
	require.NoError(t, err)
	assert.Error(t, f.frames.Draw(metadata.FrameStageForward, DrawCall{ShaderSet: "Pbr"}))
	assert.Equal(t, 1, frame.Skipped())
}

func TestSubmitFailureClosesFrame(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())
	f.device.Fail["submit"] = nil

	frame, err := f.frames.RenderFrame(f.target, f.camera, nil)
	assert.ErrorIs(t, err, renderertest.ErrInjected)
	assert.Nil(t, f.frames.Current())
	assert.ErrorIs(t, frame.Submit(), core.ErrFrameSubmitted)
	assert.Equal(t, uint64(0), f.frames.Metrics().TotalFrames())

	delete(f.device.Fail, "submit")
	_, err = f.frames.RenderFrame(f.target, f.camera, nil)
	assert.NoError(t, err)
}

func TestUniformUpload(t *testing.T) {
	f := newFrameFixture(t, func(c *FrameSystemConfig) {
		c.Exposure = 1.5
		c.Gamma = 2.4
	})
	require.NoError(t, f.frames.Initialize())
	f.lights.SetDirectional(DirectionalLight{Direction: math.NewVec3(0, -1, -1), Color: math.NewVec3One(), Intensity: 2, CastsShadows: true})
	f.camera.SetPerspective(math.DegToRad(60), 2, 0.5, 200)

	_, err := f.frames.RenderFrame(f.target, f.camera, nil)
	require.NoError(t, err)

	camera := f.device.BufferBytes(f.frames.buffers[bufferCamera])
	assert.Equal(t, float32(0.5), shaders.Float32(camera, 52))
	assert.Equal(t, float32(200), shaders.Float32(camera, 53))

	pp := f.device.BufferBytes(f.frames.buffers[bufferPostProcess])
	assert.Equal(t, float32(1.5), shaders.Float32(pp, 0))
	// the fixture surface is sRGB, the blit encodes and the shader must not
	assert.Equal(t, float32(1), shaders.Float32(pp, 1))

	mask := f.device.BufferBytes(f.frames.buffers[bufferShadowMask])
	assert.Equal(t, float32(200), shaders.Float32(mask, 3))
	assert.Equal(t, float32(0.005), shaders.Float32(mask, 5))
}

func TestGammaFollowsSurfaceFormat(t *testing.T) {
	for _, tc := range []struct {
		surface metadata.Format
		want    float32
	}{
		{metadata.FormatBGRA8SRGB, 1},
		{metadata.FormatRGBA8SRGB, 1},
		{metadata.FormatBGRA8Unorm, 2.4},
		{metadata.FormatRGBA8Unorm, 2.4},
	} {
		f := newFrameFixture(t, func(c *FrameSystemConfig) {
			c.Gamma = 2.4
			c.Passes.SurfaceFormat = tc.surface
		})
		require.NoError(t, f.frames.Initialize(), tc.surface.String())
		_, err := f.frames.RenderFrame(f.target, f.camera, nil)
		require.NoError(t, err, tc.surface.String())

		pp := f.device.BufferBytes(f.frames.buffers[bufferPostProcess])
		assert.Equal(t, tc.want, shaders.Float32(pp, 1), tc.surface.String())
	}
}

// sampledImages returns the images written into the sets a pipeline bound in the last frame.
func sampledImages(t *testing.T, f *frameFixture, pipeline string) []core.Handle {
	t.Helper()
	byHandle := map[core.Handle]*metadata.DescriptorSet{}
	for _, sets := range f.frames.stageSets {
		for _, set := range sets {
			byHandle[set.Handle] = set
		}
	}
	var out []core.Handle
	for _, c := range f.device.LastFrame() {
		if c.Op != renderertest.OpBindDescriptorSets || c.Pipeline != pipeline {
			continue
		}
		for _, h := range c.Sets {
			set, ok := byHandle[h]
			require.True(t, ok, "%s bound a set the frame does not own", pipeline)
			for _, w := range f.device.Writes(set) {
				if w.Image != nil {
					out = append(out, w.Image.Handle)
				}
			}
		}
		return out
	}
	t.Fatalf("%s never bound descriptor sets", pipeline)
	return nil
}

func TestPostProcessChain(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.Equal(t, uint32(4), f.frames.Config.Passes.Samples)
	require.NoError(t, f.frames.Initialize())

	_, err := f.frames.RenderFrame(f.target, f.camera, nil)
	require.NoError(t, err)

	// forward -> exposure -> resolve, each reading the previous pass
	assert.Equal(t, []core.Handle{f.frames.Image(imageHDRColour).Handle}, sampledImages(t, f, shaders.ShaderSetPpExposure))
	assert.Equal(t, []core.Handle{f.frames.Image(imageExposure).Handle}, sampledImages(t, f, shaders.ShaderSetPpResolveHdr))
}

func TestTargetFramebufferIsCached(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())

	for i := 0; i < 3; i++ {
		_, err := f.frames.RenderFrame(f.target, f.camera, nil)
		require.NoError(t, err)
	}
	// four offscreen targets plus one for the surface image
	assert.Equal(t, 5, f.device.CreatedCount("render_target"))
	assert.Equal(t, uint64(3), f.frames.Metrics().TotalFrames())

	require.NoError(t, f.frames.ReleaseTarget(f.target))
	assert.Equal(t, 4, f.device.Live()["render_target"])
	require.NoError(t, f.frames.ReleaseTarget(f.target))
	require.NoError(t, f.frames.ReleaseTarget(nil))
}

func TestFrameSystemShutdown(t *testing.T) {
	f := newFrameFixture(t, nil)
	require.NoError(t, f.frames.Initialize())
	_, err := f.frames.RenderFrame(f.target, f.camera, nil)
	require.NoError(t, err)
	_, err = f.frames.BeginFrame(f.target, f.camera)
	require.NoError(t, err)

	require.NoError(t, f.frames.Shutdown())
	assert.Nil(t, f.frames.Current())
	require.NoError(t, f.shader.Shutdown())
	require.NoError(t, f.device.ImageDestroy(f.target))

	live := f.device.Live()
	for _, kind := range []string{"image", "buffer", "render_pass", "render_target", "pipeline", "shader", "descriptor_layout"} {
		assert.Zero(t, live[kind], kind)
	}

	// a second shutdown is a no-op
	assert.NoError(t, f.frames.Shutdown())
}
