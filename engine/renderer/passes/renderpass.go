package passes

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Config carries the formats and sizes every pass is built from.
type Config struct {
	Width         uint32
	Height        uint32
	SurfaceFormat metadata.Format
	HDRFormat     metadata.Format
	LDRFormat     metadata.Format
	DepthFormat   metadata.Format
	Samples       uint32
	ShadowMapSize uint32
	Cascades      uint32
	ClearColour   math.Vec4
	// Headless leaves the assembled image ready for transfer instead of presentation.
	Headless bool
}

func DefaultConfig() Config {
	return Config{
		Width:         1280,
		Height:        720,
		SurfaceFormat: metadata.FormatBGRA8SRGB,
		HDRFormat:     metadata.FormatRGBA16Float,
		LDRFormat:     metadata.FormatRGBA8Unorm,
		DepthFormat:   metadata.FormatD32Float,
		Samples:       4,
		ShadowMapSize: 2048,
		Cascades:      4,
		ClearColour:   math.NewVec4(0, 0, 0, 1),
	}
}

// AttachmentMismatchError reports images that do not fit the attachments of a pass.
// Attachment is -1 when the image count is wrong.
type AttachmentMismatchError struct {
	Pass       string
	Attachment int
	Reason     string
}

func (e *AttachmentMismatchError) Error() string {
	if e.Attachment < 0 {
		return fmt.Sprintf("render pass `%s`: %s", e.Pass, e.Reason)
	}
	return fmt.Sprintf("render pass `%s` attachment %d: %s", e.Pass, e.Attachment, e.Reason)
}

func (e *AttachmentMismatchError) Unwrap() error {
	return core.ErrAttachmentMismatch
}

/**
 * @brief A render pass owned by the frame system. Attachments and subpasses
 * are fixed at construction; framebuffers are made from caller images.
 */
type RenderPass struct {
	*metadata.RenderPass
	device renderer.RendererBackend
}

func newRenderPass(device renderer.RendererBackend, config *metadata.RenderPassConfig) (*RenderPass, error) {
	rp, err := device.RenderPassCreate(config)
	if err != nil {
		err = fmt.Errorf("failed to create render pass `%s`: %w", config.Name, err)
		core.LogError(err.Error())
		return nil, err
	}
	core.LogDebug("render pass `%s` created with %d attachments", config.Name, len(config.Attachments))
	return &RenderPass{RenderPass: rp, device: device}, nil
}

// GetFramebuffer binds images to the attachments in declaration order. Every
// image must match its attachment format and sample count, carry the usage
// the attachment requires, and share one extent.
func (p *RenderPass) GetFramebuffer(images ...*metadata.Image) (*metadata.Framebuffer, error) {
	if err := p.checkImages(images); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	layers := uint32(1)
	for i, a := range p.Attachments {
		layers = max(layers, a.Layers, images[i].Layers)
	}
	fb, err := p.device.RenderTargetCreate(p.RenderPass, images, images[0].Width, images[0].Height, layers)
	if err != nil {
		err = fmt.Errorf("failed to create framebuffer for `%s`: %w", p.Name, err)
		core.LogError(err.Error())
		return nil, err
	}
	return fb, nil
}

func (p *RenderPass) checkImages(images []*metadata.Image) error {
	if len(images) != len(p.Attachments) {
		return &AttachmentMismatchError{Pass: p.Name, Attachment: -1,
			Reason: fmt.Sprintf("have %d images, want %d", len(images), len(p.Attachments))}
	}
	for i, a := range p.Attachments {
		img := images[i]
		mismatch := func(format string, args ...interface{}) error {
			return &AttachmentMismatchError{Pass: p.Name, Attachment: i, Reason: fmt.Sprintf(format, args...)}
		}
		switch {
		case img == nil:
			return mismatch("no image")
		case img.Format != a.Format:
			return mismatch("have format %s, want %s", img.Format, a.Format)
		case max(img.Samples, 1) != max(a.Samples, 1):
			return mismatch("have %d samples, want %d", max(img.Samples, 1), max(a.Samples, 1))
		case !img.Usage.Has(a.Usage):
			return mismatch("image usage %#x lacks %#x", uint32(img.Usage), uint32(a.Usage))
		case max(img.Layers, 1) < max(a.Layers, 1):
			return mismatch("have %d layers, want %d", max(img.Layers, 1), max(a.Layers, 1))
		case img.Width != images[0].Width || img.Height != images[0].Height:
			return mismatch("extent %dx%d differs from %dx%d", img.Width, img.Height, images[0].Width, images[0].Height)
		}
	}
	return nil
}

// ImageConfig describes an image that fits attachment i, with extra usage added.
func (p *RenderPass) ImageConfig(i int, name string, width, height uint32, extra metadata.ImageUsage) metadata.ImageConfig {
	a := p.Attachments[i]
	return metadata.ImageConfig{
		Name:    name,
		Format:  a.Format,
		Width:   width,
		Height:  height,
		Layers:  max(a.Layers, 1),
		Samples: max(a.Samples, 1),
		Usage:   a.Usage | extra,
	}
}

func (p *RenderPass) Destroy() error {
	if p.RenderPass == nil {
		return nil
	}
	err := p.device.RenderPassDestroy(p.RenderPass)
	p.RenderPass = nil
	return err
}

func colourAttachment(name string, format metadata.Format, samples uint32, final metadata.ImageLayout) metadata.RenderTargetAttachmentConfig {
	return metadata.RenderTargetAttachmentConfig{
		Name:           name,
		Format:         format,
		Samples:        samples,
		Layers:         1,
		Usage:          metadata.ImageUsageColorAttachment,
		LoadOperation:  metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_CLEAR,
		StoreOperation: metadata.RENDER_TARGET_ATTACHMENT_STORE_OPERATION_STORE,
		InitialLayout:  metadata.ImageLayoutUndefined,
		FinalLayout:    final,
	}
}
