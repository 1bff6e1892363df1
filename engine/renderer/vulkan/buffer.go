package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
)

/**
 * @brief A host visible, coherent buffer. Every buffer the backend hands out
 * is written by the CPU between frames, so no staging copy is needed.
 */
type VulkanBuffer struct {
	Handle    vk.Buffer
	Memory    vk.DeviceMemory
	TotalSize uint64
	Usage     vk.BufferUsageFlags
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	if size == 0 {
		err := fmt.Errorf("buffer of size 0")
		core.LogError(err.Error())
		return nil, err
	}
	buffer := &VulkanBuffer{TotalSize: size, Usage: usage}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("vkCreateBuffer failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryType := context.FindMemoryIndex(requirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryType == -1 {
		buffer.Destroy(context)
		err := fmt.Errorf("unable to create buffer: required memory type index not found")
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
		buffer.Destroy(context)
		err := fmt.Errorf("unable to allocate buffer memory: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		buffer.Destroy(context)
		err := fmt.Errorf("vkBindBufferMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return buffer, nil
}

func (vb *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > vb.TotalSize {
		return fmt.Errorf("load range [%d, %d) exceeds buffer size %d", offset, offset+uint64(len(data)), vb.TotalSize)
	}
	if len(data) == 0 {
		return nil
	}
	var mapped unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, vb.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		err := fmt.Errorf("vkMapMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
	return nil
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = vk.NullBuffer
	}
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
}
