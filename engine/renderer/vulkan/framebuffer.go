package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Width       uint32
	Height      uint32
	Attachments []*VulkanImage
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width, height, layers uint32, attachments []*VulkanImage) (*VulkanFramebuffer, error) {
	if layers == 0 {
		layers = 1
	}
	outFramebuffer := &VulkanFramebuffer{
		Width:       width,
		Height:      height,
		Attachments: append([]*VulkanImage(nil), attachments...),
		Renderpass:  renderpass,
	}

	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		if a.Width < width || a.Height < height || a.Layers < layers {
			err := fmt.Errorf("framebuffer for `%s`: attachment %d is %dx%dx%d, smaller than %dx%dx%d",
				renderpass.Name, i, a.Width, a.Height, a.Layers, width, height, layers)
			core.LogError(err.Error())
			return nil, err
		}
		views[i] = a.View
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          layers,
	}

	var pFramebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &pFramebuffer); res != vk.Success {
		err := fmt.Errorf("failed to create framebuffer for `%s`: %s", renderpass.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	outFramebuffer.Handle = pFramebuffer
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = vk.NullFramebuffer
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
