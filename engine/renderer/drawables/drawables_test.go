package drawables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/renderertest"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/systems"
)

var unitBox = math.Extents3D{Min: math.NewVec3(-1, -1, -1), Max: math.NewVec3(1, 1, 1)}

type scene struct {
	device *renderertest.Backend
	shader *systems.ShaderSystem
	lights *systems.LightSystem
	frames *systems.FrameSystem
	target *metadata.Image
}

func newScene(t *testing.T) *scene {
	t.Helper()
	device := renderertest.New()
	ss, err := systems.NewShaderSystem(&systems.ShaderSystemConfig{MaxShaderSetCount: 8}, shaders.NewDefaultLibrary(renderertest.NewPrograms()), device, nil)
	require.NoError(t, err)
	ls, err := systems.NewLightSystem(&systems.LightSystemConfig{Cascades: 3, SplitLambda: 0.5})
	require.NoError(t, err)

	config := systems.DefaultFrameSystemConfig()
	config.Passes.Width, config.Passes.Height = 16, 16
	config.Passes.Cascades = 3
	config.Passes.ShadowMapSize = 64
	fs, err := systems.NewFrameSystem(config, device, ss, ls)
	require.NoError(t, err)
	require.NoError(t, fs.Initialize())

	target, err := device.ImageCreate(&metadata.ImageConfig{
		Name:   "surface",
		Format: config.Passes.SurfaceFormat,
		Width:  16,
		Height: 16,
		Usage:  metadata.ImageUsageColorAttachment | metadata.ImageUsageTransferDst,
	})
	require.NoError(t, err)
	return &scene{device: device, shader: ss, lights: ls, frames: fs, target: target}
}

func (s *scene) box(t *testing.T) *components.Geometry {
	t.Helper()
	vertices, indices := components.BoxVertices(unitBox)
	g, err := components.NewGeometry(s.device, "box", vertices, indices)
	require.NoError(t, err)
	return g
}

func (s *scene) render(t *testing.T, instances ...systems.RenderInstance) (*systems.Frame, []renderertest.Command) {
	t.Helper()
	frame, err := s.frames.RenderFrame(s.target, components.NewCamera(), instances)
	require.NoError(t, err)
	return frame, s.device.LastFrame()
}

func draws(cmds []renderertest.Command, pipeline string) []renderertest.Command {
	var out []renderertest.Command
	current := ""
	for _, c := range cmds {
		switch c.Op {
		case renderertest.OpBindPipeline:
			current = c.Pipeline
		case renderertest.OpDraw, renderertest.OpDrawIndexed:
			if current == pipeline {
				out = append(out, c)
			}
		}
	}
	return out
}

func ahead(z float32) math.Mat4 {
	return math.NewMat4Translation(math.NewVec3(0, 0, -z))
}

func TestDrawablesIgnoreOtherStages(t *testing.T) {
	mesh := NewMesh("mesh", nil, nil)
	caster := NewShadowCaster("caster", nil)
	wire := NewWireframe("wire", nil)

	// a nil frame system proves nothing is recorded
	for _, stage := range []metadata.FrameStage{
		metadata.FrameStagePostProcess,
		metadata.FrameStageResolve,
		metadata.FrameStageAssemble,
	} {
		assert.Equal(t, stage, mesh.Draw(stage, nil, nil, math.NewMat4Identity()))
		assert.Equal(t, stage, caster.Draw(stage, nil, nil, math.NewMat4Identity()))
		assert.Equal(t, stage, wire.Draw(stage, nil, nil, math.NewMat4Identity()))
	}
	assert.Equal(t, metadata.FrameStageShadow, mesh.Draw(metadata.FrameStageShadow, nil, nil, math.NewMat4Identity()))
	assert.Equal(t, metadata.FrameStageForward, caster.Draw(metadata.FrameStageForward, nil, nil, math.NewMat4Identity()))

	assert.Equal(t, math.Extents3D{}, mesh.GetBound())
	assert.Equal(t, "caster", caster.GetName())
}

func TestMeshDrawsInForward(t *testing.T) {
	s := newScene(t)
	material := components.NewMaterial("blue")
	material.BaseColor = math.NewVec4(0, 0, 1, 1)
	require.NoError(t, material.Upload(s.device, s.shader))

	mesh := NewMesh("mesh", s.box(t), material)
	assert.Equal(t, unitBox, mesh.GetBound())

	frame, cmds := s.render(t, systems.RenderInstance{Object: mesh, Transform: ahead(5)})
	assert.Equal(t, 1, frame.Draws(metadata.FrameStageForward))
	assert.Equal(t, 0, frame.Draws(metadata.FrameStageShadow))
	pbr := draws(cmds, shaders.ShaderSetPbr)
	require.Len(t, pbr, 1)
	assert.Equal(t, uint32(36), pbr[0].Count)
	assert.Equal(t, uint32(1), pbr[0].Instances)
}

func TestShadowCasterNeedsShadowLight(t *testing.T) {
	s := newScene(t)
	caster := NewShadowCaster("caster", s.box(t))
	inst := systems.RenderInstance{Object: caster, Transform: ahead(5)}

	frame, cmds := s.render(t, inst)
	assert.Equal(t, 0, frame.Draws(metadata.FrameStageShadow))
	assert.Empty(t, draws(cmds, shaders.ShaderSetShadow))

	s.lights.SetDirectional(systems.DirectionalLight{Direction: math.NewVec3(0, -1, -0.5), Intensity: 1, CastsShadows: true})
	frame, cmds = s.render(t, inst)
	assert.Equal(t, 1, frame.Draws(metadata.FrameStageShadow))
	shadow := draws(cmds, shaders.ShaderSetShadow)
	require.Len(t, shadow, 1)
	// one instance per cascade
	assert.Equal(t, uint32(3), shadow[0].Instances)
}

func TestWireframeOwnsBoxGeometry(t *testing.T) {
	s := newScene(t)
	before := s.device.Live()["buffer"]

	wire, err := NewBoxWireframe(s.device, "bounds", unitBox)
	require.NoError(t, err)
	assert.Equal(t, before+2, s.device.Live()["buffer"])
	// twelve edges, no face diagonals
	assert.Equal(t, uint32(8), wire.Geometry.VertexCount)
	assert.Equal(t, uint32(36), wire.Geometry.IndexCount)
	assert.Equal(t, unitBox, wire.GetBound())

	frame, cmds := s.render(t, systems.RenderInstance{Object: wire, Transform: ahead(4)})
	assert.Equal(t, 1, frame.Draws(metadata.FrameStageForward))
	assert.Len(t, draws(cmds, shaders.ShaderSetWireframe), 1)

	require.NoError(t, wire.Destroy(s.device))
	assert.Nil(t, wire.Geometry)
	assert.Equal(t, before, s.device.Live()["buffer"])
	require.NoError(t, wire.Destroy(s.device))

	// a borrowed geometry stays alive
	box := s.box(t)
	borrowed := NewWireframe("borrowed", box)
	require.NoError(t, borrowed.Destroy(s.device))
	assert.Same(t, box, borrowed.Geometry)
}

func TestCulledMeshIsNotDrawn(t *testing.T) {
	s := newScene(t)
	mesh := NewMesh("behind", s.box(t), nil)

	frame, cmds := s.render(t, systems.RenderInstance{Object: mesh, Transform: ahead(-20)})
	assert.Equal(t, 1, frame.Culled())
	assert.Equal(t, 0, frame.Draws(metadata.FrameStageForward))
	assert.Empty(t, draws(cmds, shaders.ShaderSetPbr))
}
