package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

/**
 * @brief The presentable images of a window surface. Images are acquired with
 * a fence and presented after the frame was waited on, so no semaphores are
 * needed between acquire, render and present.
 */
type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	// Wrappers around images owned by the swapchain.
	Images []*VulkanImage

	acquireFence *VulkanFence
	imageIndex   uint32
	acquired     bool
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width, height uint32, preferred vk.Format) (*VulkanSwapchain, error) {
	support := &context.Device.SwapchainSupport
	if support.FormatCount == 0 {
		err := fmt.Errorf("surface reports no formats")
		core.LogError(err.Error())
		return nil, err
	}
	swapchain := &VulkanSwapchain{}

	// Choose a swap surface format.
	found := false
	for _, format := range support.Formats {
		if format.Format == preferred && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		err := fmt.Errorf("surface does not support format %s", formatFromVulkan(preferred))
		core.LogError(err.Error())
		return nil, err
	}

	requiredUsage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit)
	if support.Capabilities.SupportedUsageFlags&requiredUsage != requiredUsage {
		err := fmt.Errorf("surface images cannot be used as blit destinations")
		core.LogError(err.Error())
		return nil, err
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	// Swapchain extent
	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != vk.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	minExtent.Deref()
	maxExtent.Deref()
	extent.Width = math.Clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = math.Clamp(extent.Height, minExtent.Height, maxExtent.Height)
	swapchain.Extent = extent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       requiredUsage,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = swapchainHandle

	var count uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &count, nil); res != vk.Success {
		swapchain.Destroy(context)
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &count, handles); res != vk.Success {
		swapchain.Destroy(context)
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	// Views
	for _, handle := range handles {
		view, err := imageViewCreate(context, handle, swapchain.ImageFormat.Format, vk.ImageViewType2d, vk.ImageAspectFlags(vk.ImageAspectColorBit), 1)
		if err != nil {
			swapchain.Destroy(context)
			return nil, err
		}
		swapchain.Images = append(swapchain.Images, &VulkanImage{
			Handle: handle,
			View:   view,
			Width:  extent.Width,
			Height: extent.Height,
			Layers: 1,
			Format: swapchain.ImageFormat.Format,
			Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			Layout: vk.ImageLayoutUndefined,
		})
	}

	fence, err := NewFence(context, "swapchain_acquire")
	if err != nil {
		swapchain.Destroy(context)
		return nil, err
	}
	swapchain.acquireFence = fence

	core.LogInfo("Swapchain created: %d images of %dx%d.", len(swapchain.Images), extent.Width, extent.Height)
	return swapchain, nil
}

// AcquireNextImage blocks until the next presentable image is free.
func (vs *VulkanSwapchain) AcquireNextImage(context *VulkanContext) (*VulkanImage, error) {
	if vs.acquired {
		return nil, fmt.Errorf("swapchain image %d acquired twice without present", vs.imageIndex)
	}
	if err := vs.acquireFence.FenceReset(context); err != nil {
		return nil, err
	}
	var index uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, vk.MaxUint64, vk.NullSemaphore, vs.acquireFence.Handle, &index)
	if result != vk.Success && result != vk.Suboptimal {
		// the window is not resizable, an out of date swapchain is not recovered
		err := fmt.Errorf("failed to acquire swapchain image: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return nil, err
	}
	if err := vs.acquireFence.FenceWait(context, vk.MaxUint64); err != nil {
		return nil, err
	}
	vs.imageIndex = index
	vs.acquired = true
	return vs.Images[index], nil
}

// Present returns the acquired image. The frame that wrote it must have completed.
func (vs *VulkanSwapchain) Present(context *VulkanContext, image *VulkanImage) error {
	if !vs.acquired || vs.Images[vs.imageIndex] != image {
		return fmt.Errorf("present of an image that was not acquired")
	}
	vs.acquired = false

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{vs.Handle},
		PImageIndices:  []uint32{vs.imageIndex},
	}
	return lockPool.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		result := vk.QueuePresent(context.Device.PresentQueue, &presentInfo)
		if result != vk.Success && result != vk.Suboptimal {
			err := fmt.Errorf("failed to present swapchain image: %s", VulkanResultString(result, true))
			core.LogError(err.Error())
			return err
		}
		return nil
	})
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	if vs.acquireFence != nil {
		vs.acquireFence.FenceDestroy(context)
		vs.acquireFence = nil
	}
	// Only the views are ours, the images go with the swapchain.
	for _, image := range vs.Images {
		image.Destroy(context)
	}
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
