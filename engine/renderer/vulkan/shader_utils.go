package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
	Name                  string
}

func vulkanShaderStage(stage metadata.ShaderStage) (vk.ShaderStageFlagBits, bool) {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit, true
	case metadata.ShaderStageGeometry:
		return vk.ShaderStageGeometryBit, true
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit, true
	case metadata.ShaderStageCompute:
		return vk.ShaderStageComputeBit, true
	}
	return 0, false
}

// NewShaderModule creates a module from SPIR-V words. The entry point is always main.
func NewShaderModule(context *VulkanContext, name string, stage metadata.ShaderStage, code []uint32) (*VulkanShaderStage, error) {
	flag, ok := vulkanShaderStage(stage)
	if !ok {
		err := fmt.Errorf("shader module `%s`: unknown stage %d", name, stage)
		core.LogError(err.Error())
		return nil, err
	}
	if len(code) == 0 {
		err := fmt.Errorf("shader module `%s`: empty program", name)
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("shader module `%s`: vkCreateShaderModule failed with %s", name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanShaderStage{
		Handle: handle,
		Name:   name,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  flag,
			Module: handle,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}
