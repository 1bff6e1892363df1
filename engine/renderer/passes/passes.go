package passes

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Pass names, also used as render pass names on the device.
const (
	ShadowPassName      = "shadow"
	ForwardPassName     = "forward"
	PostProcessPassName = "post_process"
	ResolvePassName     = "resolve"
	AssemblePassName    = "assemble"
)

// ShadowPass renders depth of every cascade into one layered image.
type ShadowPass struct {
	*RenderPass
	Size     uint32
	Cascades uint32
}

func NewShadowPass(device renderer.RendererBackend, config Config) (*ShadowPass, error) {
	if !config.DepthFormat.IsDepth() {
		return nil, fmt.Errorf("shadow pass: %s is not a depth format", config.DepthFormat)
	}
	rp, err := newRenderPass(device, &metadata.RenderPassConfig{
		Name:  ShadowPassName,
		Depth: 1,
		Attachments: []metadata.RenderTargetAttachmentConfig{{
			Name:           "shadow_map",
			Format:         config.DepthFormat,
			Samples:        1,
			Layers:         max(config.Cascades, 1),
			Usage:          metadata.ImageUsageDepthAttachment,
			LoadOperation:  metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_CLEAR,
			StoreOperation: metadata.RENDER_TARGET_ATTACHMENT_STORE_OPERATION_STORE,
			InitialLayout:  metadata.ImageLayoutUndefined,
			FinalLayout:    metadata.ImageLayoutShaderReadOnly,
		}},
		Subpasses: []metadata.Subpass{{Depth: 0}},
	})
	if err != nil {
		return nil, err
	}
	return &ShadowPass{RenderPass: rp, Size: config.ShadowMapSize, Cascades: max(config.Cascades, 1)}, nil
}

// ForwardPass shades the scene into a multisampled HDR colour image.
type ForwardPass struct {
	*RenderPass
}

func NewForwardPass(device renderer.RendererBackend, config Config) (*ForwardPass, error) {
	samples := max(config.Samples, 1)
	rp, err := newRenderPass(device, &metadata.RenderPassConfig{
		Name:        ForwardPassName,
		ClearColour: config.ClearColour,
		Depth:       1,
		Attachments: []metadata.RenderTargetAttachmentConfig{
			colourAttachment("hdr_colour", config.HDRFormat, samples, metadata.ImageLayoutShaderReadOnly),
			{
				Name:           "depth",
				Format:         config.DepthFormat,
				Samples:        samples,
				Layers:         1,
				Usage:          metadata.ImageUsageDepthAttachment,
				LoadOperation:  metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_CLEAR,
				StoreOperation: metadata.RENDER_TARGET_ATTACHMENT_STORE_OPERATION_DONT_CARE,
				InitialLayout:  metadata.ImageLayoutUndefined,
				FinalLayout:    metadata.ImageLayoutDepthAttachment,
			},
		},
		Subpasses: []metadata.Subpass{{Colour: []int{0}, Depth: 1}},
	})
	if err != nil {
		return nil, err
	}
	return &ForwardPass{RenderPass: rp}, nil
}

// PostProcessPass writes the exposure adjusted HDR image.
type PostProcessPass struct {
	*RenderPass
}

func NewPostProcessPass(device renderer.RendererBackend, config Config) (*PostProcessPass, error) {
	rp, err := newRenderPass(device, &metadata.RenderPassConfig{
		Name:        PostProcessPassName,
		Attachments: []metadata.RenderTargetAttachmentConfig{colourAttachment("exposure", config.HDRFormat, 1, metadata.ImageLayoutShaderReadOnly)},
		Subpasses:   []metadata.Subpass{{Colour: []int{0}, Depth: metadata.NoAttachment}},
	})
	if err != nil {
		return nil, err
	}
	return &PostProcessPass{RenderPass: rp}, nil
}

// ResolvePass tone maps HDR into a single sampled LDR image that is later
// copied into the surface image.
type ResolvePass struct {
	*RenderPass
}

func NewResolvePass(device renderer.RendererBackend, config Config) (*ResolvePass, error) {
	a := colourAttachment("ldr_colour", config.LDRFormat, 1, metadata.ImageLayoutTransferSrc)
	a.Usage |= metadata.ImageUsageTransferSrc
	rp, err := newRenderPass(device, &metadata.RenderPassConfig{
		Name:        ResolvePassName,
		Attachments: []metadata.RenderTargetAttachmentConfig{a},
		Subpasses:   []metadata.Subpass{{Colour: []int{0}, Depth: metadata.NoAttachment}},
	})
	if err != nil {
		return nil, err
	}
	return &ResolvePass{RenderPass: rp}, nil
}

// AssemblePass is the terminal pass; its framebuffer targets the presentable
// image. The resolved image is copied in before the pass, so the attachment
// is loaded rather than cleared, and drawables may overlay it.
type AssemblePass struct {
	*RenderPass
}

func NewAssemblePass(device renderer.RendererBackend, config Config) (*AssemblePass, error) {
	final := metadata.ImageLayoutPresentSrc
	if config.Headless {
		final = metadata.ImageLayoutTransferSrc
	}
	a := colourAttachment("surface", config.SurfaceFormat, 1, final)
	a.Usage |= metadata.ImageUsageTransferDst
	a.LoadOperation = metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_LOAD
	a.InitialLayout = metadata.ImageLayoutTransferDst
	rp, err := newRenderPass(device, &metadata.RenderPassConfig{
		Name:        AssemblePassName,
		ClearColour: config.ClearColour,
		Attachments: []metadata.RenderTargetAttachmentConfig{a},
		Subpasses:   []metadata.Subpass{{Colour: []int{0}, Depth: metadata.NoAttachment}},
	})
	if err != nil {
		return nil, err
	}
	return &AssemblePass{RenderPass: rp}, nil
}
