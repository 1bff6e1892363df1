package metadata

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

type RenderTargetAttachmentLoadOperation uint32

const (
	RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_DONT_CARE RenderTargetAttachmentLoadOperation = 0x0
	RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_LOAD      RenderTargetAttachmentLoadOperation = 0x1
	RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_CLEAR     RenderTargetAttachmentLoadOperation = 0x2
)

type RenderTargetAttachmentStoreOperation uint32

const (
	RENDER_TARGET_ATTACHMENT_STORE_OPERATION_DONT_CARE RenderTargetAttachmentStoreOperation = 0x0
	RENDER_TARGET_ATTACHMENT_STORE_OPERATION_STORE     RenderTargetAttachmentStoreOperation = 0x1
)

/**
 * @brief The declaration of one render pass attachment. Images bound to the
 * attachment later must have the same format and sample count and carry Usage.
 */
type RenderTargetAttachmentConfig struct {
	Name           string
	Format         Format
	Samples        uint32
	Layers         uint32
	Usage          ImageUsage
	LoadOperation  RenderTargetAttachmentLoadOperation
	StoreOperation RenderTargetAttachmentStoreOperation
	InitialLayout  ImageLayout
	FinalLayout    ImageLayout
}

// NoAttachment marks an unused depth slot in a Subpass.
const NoAttachment = -1

/** @brief A subpass references attachments by their declaration index. */
type Subpass struct {
	Colour []int
	Depth  int
}

func (s Subpass) HasDepth() bool {
	return s.Depth != NoAttachment
}

type RenderPassConfig struct {
	/** @brief The Name of this renderpass. */
	Name string
	/** @brief The clear colour used for this renderpass. */
	ClearColour math.Vec4
	Depth       float32
	Stencil     uint32
	Attachments []RenderTargetAttachmentConfig
	Subpasses   []Subpass
}

/**
 * @brief Represents a generic RenderPass.
 */
type RenderPass struct {
	Handle core.Handle
	RenderPassConfig
}

// ClearValues returns one clear value per attachment, in declaration order.
func (rp *RenderPass) ClearValues() []ClearValue {
	out := make([]ClearValue, len(rp.Attachments))
	for i, a := range rp.Attachments {
		if a.Format.IsDepth() {
			out[i] = ClearValue{Depth: rp.Depth, Stencil: rp.Stencil}
			continue
		}
		c := rp.ClearColour
		out[i] = ClearValue{Colour: [4]float32{c.X, c.Y, c.Z, c.W}}
	}
	return out
}

/** @brief Images bound to the attachments of a render pass. */
type Framebuffer struct {
	Handle core.Handle
	Pass   core.Handle
	Images []*Image
	Width  uint32
	Height uint32
	Layers uint32
}
