package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Layers uint32
	Format vk.Format
	// Aspects covered by layout transitions.
	Aspect vk.ImageAspectFlags
	// Layout the image is in once the recorded work completes.
	Layout vk.ImageLayout
	// Swapchain images belong to the swapchain.
	owned bool
}

func ImageCreate(context *VulkanContext, config *metadata.ImageConfig) (*VulkanImage, error) {
	format := vulkanFormat(config.Format)
	if format == vk.FormatUndefined {
		err := fmt.Errorf("image `%s`: unsupported format %s", config.Name, config.Format)
		core.LogError(err.Error())
		return nil, err
	}
	layers := config.Layers
	if layers == 0 {
		layers = 1
	}

	image := &VulkanImage{
		Width:  config.Width,
		Height: config.Height,
		Layers: layers,
		Format: format,
		Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		Layout: vk.ImageLayoutUndefined,
		owned:  true,
	}
	viewAspect := image.Aspect
	if config.Format.IsDepth() {
		image.Aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if config.Format.HasStencil() {
			image.Aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		viewAspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		// a view sampled by a shader may only select the depth aspect
		if !config.Usage.Has(metadata.ImageUsageSampled) {
			viewAspect = image.Aspect
		}
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  config.Width,
			Height: config.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   layers,
		Samples:       vulkanSamples(config.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vulkanImageUsage(config.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("image `%s`: vkCreateImage failed with %s", config.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	image.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryType := context.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		image.Destroy(context)
		err := fmt.Errorf("image `%s`: required memory type not found", config.Name)
		core.LogError(err.Error())
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		image.Destroy(context)
		err := fmt.Errorf("image `%s`: failed to allocate memory: %s", config.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	image.Memory = memory
	if res := vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		image.Destroy(context)
		err := fmt.Errorf("image `%s`: vkBindImageMemory failed with %s", config.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	// Layered and sampled depth images are viewed as arrays, the shadow
	// programs sample every cascade through one array sampler.
	viewType := vk.ImageViewType2d
	if layers > 1 || (config.Format.IsDepth() && config.Usage.Has(metadata.ImageUsageSampled)) {
		viewType = vk.ImageViewType2dArray
	}
	view, err := imageViewCreate(context, handle, format, viewType, viewAspect, layers)
	if err != nil {
		image.Destroy(context)
		return nil, err
	}
	image.View = view
	return image, nil
}

func imageViewCreate(context *VulkanContext, image vk.Image, format vk.Format, viewType vk.ImageViewType, aspect vk.ImageAspectFlags, layers uint32) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := fmt.Errorf("vkCreateImageView failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullImageView, err
	}
	return view, nil
}

// TransitionLayout records a barrier moving the image from its tracked layout
// to newLayout. The previous contents are kept unless the image was undefined.
func (vi *VulkanImage) TransitionLayout(commandBuffer vk.CommandBuffer, newLayout vk.ImageLayout) {
	if vi.Layout == newLayout {
		return
	}
	srcAccess, srcStage := layoutAccess(vi.Layout)
	dstAccess, dstStage := layoutAccess(newLayout)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           vi.Layout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vi.Aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     vi.Layers,
		},
	}
	vk.CmdPipelineBarrier(commandBuffer, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	vi.Layout = newLayout
}

// CopyFromBuffer records a copy of tightly packed texels into layer 0.
// The image must be in the transfer destination layout.
func (vi *VulkanImage) CopyFromBuffer(commandBuffer vk.CommandBuffer, buffer *VulkanBuffer) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vi.Aspect,
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{
			Width:  vi.Width,
			Height: vi.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(commandBuffer, buffer.Handle, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	if !vi.owned {
		vi.Handle = vk.NullImage
		return
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
}
