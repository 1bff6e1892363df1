package passes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/renderertest"
)

func newImage(t *testing.T, device *renderertest.Backend, config metadata.ImageConfig) *metadata.Image {
	t.Helper()
	img, err := device.ImageCreate(&config)
	require.NoError(t, err)
	return img
}

func TestForwardFramebuffer(t *testing.T) {
	device := renderertest.New()
	config := DefaultConfig()
	pass, err := NewForwardPass(device, config)
	require.NoError(t, err)

	colour := newImage(t, device, pass.ImageConfig(0, "colour", 64, 32, metadata.ImageUsageSampled))
	depth := newImage(t, device, pass.ImageConfig(1, "depth", 64, 32, 0))

	fb, err := pass.GetFramebuffer(colour, depth)
	require.NoError(t, err)
	assert.Equal(t, pass.Handle, fb.Pass)
	assert.Equal(t, []*metadata.Image{colour, depth}, fb.Images)
	assert.Equal(t, uint32(64), fb.Width)
	assert.Equal(t, uint32(32), fb.Height)
}

func TestFramebufferMismatch(t *testing.T) {
	device := renderertest.New()
	config := DefaultConfig()
	pass, err := NewForwardPass(device, config)
	require.NoError(t, err)

	colour := newImage(t, device, pass.ImageConfig(0, "colour", 64, 32, 0))
	depth := newImage(t, device, pass.ImageConfig(1, "depth", 64, 32, 0))

	singleSample := pass.ImageConfig(0, "colour_1x", 64, 32, 0)
	singleSample.Samples = 1
	wrongFormat := pass.ImageConfig(0, "colour_ldr", 64, 32, 0)
	wrongFormat.Format = metadata.FormatRGBA8Unorm
	noUsage := pass.ImageConfig(0, "colour_sampled", 64, 32, 0)
	noUsage.Usage = metadata.ImageUsageSampled
	smaller := pass.ImageConfig(1, "depth_small", 32, 32, 0)

	cases := []struct {
		name       string
		images     []*metadata.Image
		attachment int
	}{
		{"too few", []*metadata.Image{colour}, -1},
		{"too many", []*metadata.Image{colour, depth, depth}, -1},
		{"swapped", []*metadata.Image{depth, colour}, 0},
		{"nil", []*metadata.Image{colour, nil}, 1},
		{"sample count", []*metadata.Image{newImage(t, device, singleSample), depth}, 0},
		{"format", []*metadata.Image{newImage(t, device, wrongFormat), depth}, 0},
		{"usage", []*metadata.Image{newImage(t, device, noUsage), depth}, 0},
		{"extent", []*metadata.Image{colour, newImage(t, device, smaller)}, 1},
	}
	for _, c := range cases {
		_, err1 := pass.GetFramebuffer(c.images...)
		_, err2 := pass.GetFramebuffer(c.images...)
		require.Error(t, err1, c.name)
		assert.ErrorIs(t, err1, core.ErrAttachmentMismatch, c.name)
		assert.Equal(t, err1.Error(), err2.Error(), "%s: failure is not deterministic", c.name)

		var mismatch *AttachmentMismatchError
		require.True(t, errors.As(err1, &mismatch), c.name)
		assert.Equal(t, c.attachment, mismatch.Attachment, c.name)
	}
	assert.Zero(t, device.CreatedCount("render_target"))
}

func TestShadowPassLayers(t *testing.T) {
	device := renderertest.New()
	config := DefaultConfig()
	config.Cascades = 3
	pass, err := NewShadowPass(device, config)
	require.NoError(t, err)

	img := newImage(t, device, pass.ImageConfig(0, "shadow", config.ShadowMapSize, config.ShadowMapSize, metadata.ImageUsageSampled))
	assert.Equal(t, uint32(3), img.Layers)

	fb, err := pass.GetFramebuffer(img)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), fb.Layers)

	flat := pass.ImageConfig(0, "flat", config.ShadowMapSize, config.ShadowMapSize, 0)
	flat.Layers = 1
	_, err = pass.GetFramebuffer(newImage(t, device, flat))
	assert.ErrorIs(t, err, core.ErrAttachmentMismatch)
}

func TestShadowPassNeedsDepthFormat(t *testing.T) {
	config := DefaultConfig()
	config.DepthFormat = metadata.FormatRGBA8Unorm
	_, err := NewShadowPass(renderertest.New(), config)
	assert.Error(t, err)
}

func TestAssemblePass(t *testing.T) {
	device := renderertest.New()
	config := DefaultConfig()
	pass, err := NewAssemblePass(device, config)
	require.NoError(t, err)

	a := pass.Attachments[0]
	assert.Equal(t, metadata.ImageLayoutPresentSrc, a.FinalLayout)
	assert.Equal(t, metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_LOAD, a.LoadOperation)
	assert.Equal(t, metadata.RENDER_TARGET_ATTACHMENT_STORE_OPERATION_STORE, a.StoreOperation)
	assert.Len(t, pass.Subpasses, 1)

	surface := newImage(t, device, metadata.ImageConfig{
		Name: "swapchain_0", Format: config.SurfaceFormat, Width: 8, Height: 8,
		Usage: metadata.ImageUsageColorAttachment | metadata.ImageUsageTransferDst | metadata.ImageUsagePresent,
	})
	_, err = pass.GetFramebuffer(surface)
	require.NoError(t, err)

	config.Headless = true
	headless, err := NewAssemblePass(device, config)
	require.NoError(t, err)
	assert.Equal(t, metadata.ImageLayoutTransferSrc, headless.Attachments[0].FinalLayout)
}

func TestPassCreateFailure(t *testing.T) {
	device := renderertest.New()
	device.Fail["render_pass:"+ResolvePassName] = nil
	p, err := NewResolvePass(device, DefaultConfig())
	assert.Nil(t, p)
	assert.ErrorIs(t, err, renderertest.ErrInjected)
}

func TestDestroy(t *testing.T) {
	device := renderertest.New()
	pass, err := NewPostProcessPass(device, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, device.Live()["render_pass"])
	require.NoError(t, pass.Destroy())
	require.NoError(t, pass.Destroy())
	assert.Zero(t, device.Live()["render_pass"])
}
