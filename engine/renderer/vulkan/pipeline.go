package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	/** @brief Stages that see the push constant block, 0 without one. */
	PushConstantStages vk.ShaderStageFlags
	PushConstantSize   uint32
}

type VulkanPipelineConfig struct {
	Name string
	/** @brief The renderpass and subpass the pipeline draws in. */
	Renderpass *VulkanRenderpass
	Subpass    uint32
	/** @brief Size of one vertex, 0 for pipelines without vertex input. */
	Stride     uint32
	Attributes []vk.VertexInputAttributeDescription
	/** @brief One layout per descriptor set, in set index order. */
	DescriptorSetLayouts []vk.DescriptorSetLayout
	Stages               []vk.PipelineShaderStageCreateInfo
	CullMode             metadata.FaceCullMode
	IsWireframe          bool
	ShaderFlags          metadata.ShaderFlags
	/** @brief Size of the push constant block visible to vertex and fragment stages. */
	PushConstantSize uint32
}

func (c *VulkanPipelineConfig) validate() error {
	if c.Subpass >= uint32(len(c.Renderpass.ColourCounts)) {
		return fmt.Errorf("pipeline `%s`: subpass %d out of range for renderpass `%s`", c.Name, c.Subpass, c.Renderpass.Name)
	}
	if c.PushConstantSize > VULKAN_MAX_PUSH_CONSTANT_SIZE || c.PushConstantSize%4 != 0 {
		return fmt.Errorf("pipeline `%s`: push constant size %d must be a multiple of 4 up to %d", c.Name, c.PushConstantSize, VULKAN_MAX_PUSH_CONSTANT_SIZE)
	}
	return nil
}

func (c *VulkanPipelineConfig) has(flag metadata.ShaderFlags) bool {
	return c.ShaderFlags&flag != 0
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func (c *VulkanPipelineConfig) rasterization(device *VulkanDevice) vk.PipelineRasterizationStateCreateInfo {
	state := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    vulkanCullMode(c.CullMode),
		FrontFace:   vk.FrontFaceCounterClockwise,
	}
	// without fillModeNonSolid the outline is drawn filled
	if c.IsWireframe && device.Features.FillModeNonSolid == vk.True {
		state.PolygonMode = vk.PolygonModeLine
	}
	if c.has(metadata.SHADER_FLAG_DEPTH_BIAS) {
		state.DepthBiasEnable = vk.True
		state.DepthBiasConstantFactor = VULKAN_DEPTH_BIAS_CONSTANT
		state.DepthBiasSlopeFactor = VULKAN_DEPTH_BIAS_SLOPE
	}
	return state
}

func (c *VulkanPipelineConfig) depthStencil() vk.PipelineDepthStencilStateCreateInfo {
	return vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vkBool(c.has(metadata.SHADER_FLAG_DEPTH_TEST)),
		DepthWriteEnable: vkBool(c.has(metadata.SHADER_FLAG_DEPTH_WRITE)),
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		MaxDepthBounds:   1.0,
	}
}

// colourBlend returns one blend state per colour attachment of the subpass,
// none for depth only subpasses.
func (c *VulkanPipelineConfig) colourBlend() vk.PipelineColorBlendStateCreateInfo {
	all := vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit)
	attachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(c.has(metadata.SHADER_FLAG_BLEND)),
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      all,
	}
	count := c.Renderpass.ColourCounts[c.Subpass]
	attachments := make([]vk.PipelineColorBlendAttachmentState, count)
	for i := range attachments {
		attachments[i] = attachment
	}
	return vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: count,
		PAttachments:    attachments,
	}
}

func (c *VulkanPipelineConfig) vertexInput() vk.PipelineVertexInputStateCreateInfo {
	state := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if c.Stride == 0 {
		return state
	}
	state.VertexBindingDescriptionCount = 1
	state.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    c.Stride,
		InputRate: vk.VertexInputRateVertex,
	}}
	state.VertexAttributeDescriptionCount = uint32(len(c.Attributes))
	state.PVertexAttributeDescriptions = c.Attributes
	return state
}

func (p *VulkanPipeline) createLayout(context *VulkanContext, config *VulkanPipelineConfig) error {
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(config.DescriptorSetLayouts)),
		PSetLayouts:    config.DescriptorSetLayouts,
	}
	if config.PushConstantSize > 0 {
		p.PushConstantStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
		p.PushConstantSize = config.PushConstantSize
		info.PushConstantRangeCount = 1
		info.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: p.PushConstantStages,
			Size:       config.PushConstantSize,
		}}
	}
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &info, context.Allocator, &p.PipelineLayout); res != vk.Success {
		return fmt.Errorf("pipeline `%s`: vkCreatePipelineLayout failed with %s", config.Name, VulkanResultString(res, true))
	}
	return nil
}

// NewGraphicsPipeline builds a triangle list pipeline with dynamic viewport
// and scissor. Either the pipeline and its layout exist afterwards or neither does.
func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	if err := config.validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	p := &VulkanPipeline{}
	if err := p.createLayout(context, config); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	vertexInput := config.vertexInput()
	rasterization := config.rasterization(context.Device)
	depthStencil := config.depthStencil()
	colourBlend := config.colourBlend()
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}

	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(config.Stages)),
		PStages:           config.Stages,
		PVertexInputState: &vertexInput,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		// set when a render pass begins
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &rasterization,
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: config.Renderpass.Samples[config.Subpass],
			MinSampleShading:     1.0,
		},
		PDepthStencilState: &depthStencil,
		PColorBlendState:   &colourBlend,
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		},
		Layout:            p.PipelineLayout,
		RenderPass:        config.Renderpass.Handle,
		Subpass:           config.Subpass,
		BasePipelineIndex: -1,
	}

	handles := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(context.Device.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, context.Allocator, handles)
	if !VulkanResultIsSuccess(res) || handles[0] == vk.NullPipeline {
		p.Destroy(context)
		err := fmt.Errorf("pipeline `%s`: vkCreateGraphicsPipelines failed with %s", config.Name, VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	p.Handle = handles[0]

	core.LogDebug("Graphics pipeline `%s` created!", config.Name)
	return p, nil
}

func (p *VulkanPipeline) Destroy(context *VulkanContext) {
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.PipelineLayout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, p.PipelineLayout, context.Allocator)
		p.PipelineLayout = vk.NullPipelineLayout
	}
}

func (p *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, p.Handle)
}
