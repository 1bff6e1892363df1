package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	Handle vk.RenderPass
	Name   string
	// Layouts the attachments are left in when the pass ends, by attachment.
	FinalLayouts []vk.ImageLayout
	// Colour attachment count of every subpass.
	ColourCounts []uint32
	Samples      []vk.SampleCountFlagBits
}

func RenderpassCreate(context *VulkanContext, config *metadata.RenderPassConfig) (*VulkanRenderpass, error) {
	if len(config.Subpasses) == 0 {
		err := fmt.Errorf("renderpass `%s` has no subpasses", config.Name)
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass := &VulkanRenderpass{
		Name:         config.Name,
		FinalLayouts: make([]vk.ImageLayout, len(config.Attachments)),
		ColourCounts: make([]uint32, len(config.Subpasses)),
		Samples:      make([]vk.SampleCountFlagBits, len(config.Subpasses)),
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, len(config.Attachments))
	for i, a := range config.Attachments {
		attachmentDescriptions[i] = vk.AttachmentDescription{
			Format:         vulkanFormat(a.Format),
			Samples:        vulkanSamples(a.Samples),
			LoadOp:         vulkanLoadOp(a.LoadOperation),
			StoreOp:        vulkanStoreOp(a.StoreOperation),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vulkanLayout(a.InitialLayout),
			FinalLayout:    vulkanLayout(a.FinalLayout),
		}
		if a.Format.HasStencil() {
			attachmentDescriptions[i].StencilLoadOp = attachmentDescriptions[i].LoadOp
			attachmentDescriptions[i].StencilStoreOp = attachmentDescriptions[i].StoreOp
		}
		outRenderpass.FinalLayouts[i] = attachmentDescriptions[i].FinalLayout
	}

	inRange := func(index int) bool { return index >= 0 && index < len(config.Attachments) }

	subpasses := make([]vk.SubpassDescription, len(config.Subpasses))
	for i, s := range config.Subpasses {
		colourReferences := make([]vk.AttachmentReference, len(s.Colour))
		for j, index := range s.Colour {
			if !inRange(index) || config.Attachments[index].Format.IsDepth() {
				err := fmt.Errorf("renderpass `%s` subpass %d: invalid colour attachment %d", config.Name, i, index)
				core.LogError(err.Error())
				return nil, err
			}
			colourReferences[j] = vk.AttachmentReference{
				Attachment: uint32(index),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			}
			outRenderpass.Samples[i] = attachmentDescriptions[index].Samples
		}
		subpasses[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(colourReferences)),
			PColorAttachments:    colourReferences,
		}
		if s.HasDepth() {
			if !inRange(s.Depth) || !config.Attachments[s.Depth].Format.IsDepth() {
				err := fmt.Errorf("renderpass `%s` subpass %d: invalid depth attachment %d", config.Name, i, s.Depth)
				core.LogError(err.Error())
				return nil, err
			}
			subpasses[i].PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: uint32(s.Depth),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
			outRenderpass.Samples[i] = attachmentDescriptions[s.Depth].Samples
		}
		outRenderpass.ColourCounts[i] = uint32(len(colourReferences))
	}

	// Work recorded before the pass (transfers, earlier passes) completes
	// before the attachments are touched, and everything after the pass
	// (sampling, blits) waits for them.
	allStages := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
		vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	attachmentAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
		vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	lastSubpass := uint32(len(subpasses) - 1)

	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  allStages,
			SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit),
			DstStageMask:  attachmentStages,
			DstAccessMask: attachmentAccess,
		},
		{
			SrcSubpass:    lastSubpass,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  attachmentStages,
			SrcAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstStageMask:  allStages,
			DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessShaderReadBit | vk.AccessTransferReadBit),
		},
	}
	for i := uint32(1); i <= lastSubpass; i++ {
		dependencies = append(dependencies, vk.SubpassDependency{
			SrcSubpass:      i - 1,
			DstSubpass:      i,
			SrcStageMask:    attachmentStages,
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstStageMask:    attachmentStages | vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstAccessMask:   attachmentAccess | vk.AccessFlags(vk.AccessInputAttachmentReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pRenderPass vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass); res != vk.Success {
		err := fmt.Errorf("renderpass `%s`: vkCreateRenderPass failed with %s", config.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer, clear []metadata.ClearValue, depth []bool) {
	clearValues := make([]vk.ClearValue, len(clear))
	for i, c := range clear {
		if i < len(depth) && depth[i] {
			clearValues[i].SetDepthStencil(c.Depth, c.Stencil)
			continue
		}
		clearValues[i].SetColor(c.Colour[:])
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{
				Width:  framebuffer.Width,
				Height: framebuffer.Height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

// RenderpassEnd also moves the tracked layout of every attachment to the final
// layout the pass leaves it in.
func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	for i, image := range framebuffer.Attachments {
		if i < len(vr.FinalLayouts) {
			image.Layout = vr.FinalLayouts[i]
		}
	}
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
