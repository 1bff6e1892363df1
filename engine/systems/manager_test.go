package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/renderertest"
)

func TestSystemManagerLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.Width, cfg.Renderer.Height = 32, 32
	cfg.Renderer.CascadeCount = 2
	cfg.Renderer.Headless = true
	require.NoError(t, cfg.Validate())

	device := renderertest.New()
	sm, err := NewSystemManager(cfg, device, renderertest.NewPrograms())
	require.NoError(t, err)
	require.NoError(t, sm.Initialize())

	assert.Equal(t, []string{"Pbr", "PpExposure", "PpResolveHdr", "Shadow", "Wireframe"}, sm.Shaders().GetAllShaderSets())
	assert.Equal(t, uint32(2), sm.Frames().Cascades())
	assert.Equal(t, float32(1), sm.Cameras().GetDefault().AspectRatio)

	target, err := device.ImageCreate(&metadata.ImageConfig{
		Name:   "surface",
		Format: config.Format(cfg.Renderer.SurfaceFormat),
		Width:  32,
		Height: 32,
		Usage:  metadata.ImageUsageColorAttachment | metadata.ImageUsageTransferDst,
	})
	require.NoError(t, err)
	frame, err := sm.Frames().RenderFrame(target, sm.Cameras().GetDefault(), nil)
	require.NoError(t, err)
	assert.Equal(t, metadata.FrameStageSubmitted, frame.Stage())

	require.NoError(t, sm.Shutdown())
	live := device.Live()
	assert.Zero(t, live["pipeline"])
	assert.Zero(t, live["shader"])
	assert.Zero(t, live["render_pass"])
	assert.Equal(t, 1, live["image"])
}

func TestSystemManagerUnknownStageTechnique(t *testing.T) {
	cfg := config.Default()
	cfg.Stages.Forward = []string{"Pbr", "Toon"}

	sm, err := NewSystemManager(cfg, renderertest.New(), renderertest.NewPrograms())
	require.NoError(t, err)
	assert.ErrorIs(t, sm.Initialize(), core.ErrShaderSetNotFound)
	assert.NoError(t, sm.Shutdown())
}
