package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
)

// VulkanFence tracks whether the GPU signaled it since the last reset, so a
// wait on an already signaled fence never reaches the driver.
type VulkanFence struct {
	Name       string
	Handle     vk.Fence
	IsSignaled bool
}

// NewFence creates an unsignaled fence.
func NewFence(context *VulkanContext, name string) (*VulkanFence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &info, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("fence `%s`: vkCreateFence failed with %s", name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanFence{Name: name, Handle: handle}, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// FenceWait blocks until the fence is signaled or timeoutNs passes.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	res := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	if res != vk.Success {
		err := fmt.Errorf("fence `%s`: wait failed with %s", vf.Name, VulkanResultString(res, true))
		if res == vk.Timeout {
			core.LogWarn(err.Error())
		} else {
			core.LogError(err.Error())
		}
		return err
	}
	vf.IsSignaled = true
	return nil
}

// FenceReset makes a signaled fence usable for the next submit.
func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		err := fmt.Errorf("fence `%s`: vkResetFences failed with %s", vf.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}
