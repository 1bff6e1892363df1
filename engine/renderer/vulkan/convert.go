package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

var formats = map[metadata.Format]vk.Format{
	metadata.FormatUndefined:      vk.FormatUndefined,
	metadata.FormatRGBA8Unorm:     vk.FormatR8g8b8a8Unorm,
	metadata.FormatRGBA8SRGB:      vk.FormatR8g8b8a8Srgb,
	metadata.FormatBGRA8Unorm:     vk.FormatB8g8r8a8Unorm,
	metadata.FormatBGRA8SRGB:      vk.FormatB8g8r8a8Srgb,
	metadata.FormatRGBA16Float:    vk.FormatR16g16b16a16Sfloat,
	metadata.FormatRGBA32Float:    vk.FormatR32g32b32a32Sfloat,
	metadata.FormatD32Float:       vk.FormatD32Sfloat,
	metadata.FormatD24UnormS8Uint: vk.FormatD24UnormS8Uint,
	metadata.FormatD32FloatS8Uint: vk.FormatD32SfloatS8Uint,
}

func vulkanFormat(f metadata.Format) vk.Format {
	if format, ok := formats[f]; ok {
		return format
	}
	return vk.FormatUndefined
}

func formatFromVulkan(f vk.Format) metadata.Format {
	for format, vf := range formats {
		if vf == f {
			return format
		}
	}
	return metadata.FormatUndefined
}

func vulkanLayout(l metadata.ImageLayout) vk.ImageLayout {
	switch l {
	case metadata.ImageLayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.ImageLayoutDepthAttachment:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.ImageLayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ImageLayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case metadata.ImageLayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

// layoutAccess returns the access and stage masks of the work that reads or
// writes an image in the given layout.
func layoutAccess(l vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

func vulkanImageUsage(u metadata.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if u.Has(metadata.ImageUsageColorAttachment) {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if u.Has(metadata.ImageUsageDepthAttachment) {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u.Has(metadata.ImageUsageSampled) {
		flags |= vk.ImageUsageSampledBit
	}
	if u.Has(metadata.ImageUsageTransferSrc) {
		flags |= vk.ImageUsageTransferSrcBit
	}
	if u.Has(metadata.ImageUsageTransferDst) {
		flags |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(flags)
}

func vulkanLoadOp(op metadata.RenderTargetAttachmentLoadOperation) vk.AttachmentLoadOp {
	switch op {
	case metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_LOAD:
		return vk.AttachmentLoadOpLoad
	case metadata.RENDER_TARGET_ATTACHMENT_LOAD_OPERATION_CLEAR:
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpDontCare
}

func vulkanStoreOp(op metadata.RenderTargetAttachmentStoreOperation) vk.AttachmentStoreOp {
	if op == metadata.RENDER_TARGET_ATTACHMENT_STORE_OPERATION_STORE {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func vulkanSamples(samples uint32) vk.SampleCountFlagBits {
	if samples == 0 {
		return vk.SampleCount1Bit
	}
	return vk.SampleCountFlagBits(samples)
}

func vulkanShaderStages(s metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if s&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if s&metadata.ShaderStageGeometry != 0 {
		flags |= vk.ShaderStageGeometryBit
	}
	if s&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	if s&metadata.ShaderStageCompute != 0 {
		flags |= vk.ShaderStageComputeBit
	}
	return vk.ShaderStageFlags(flags)
}

func vulkanDescriptorType(t metadata.DescriptorType) vk.DescriptorType {
	if t == metadata.DescriptorTypeCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func vulkanAttributeFormat(t metadata.ShaderAttributeType) vk.Format {
	switch t {
	case metadata.ShaderAttribTypeFloat32:
		return vk.FormatR32Sfloat
	case metadata.ShaderAttribTypeFloat32_2:
		return vk.FormatR32g32Sfloat
	case metadata.ShaderAttribTypeFloat32_3:
		return vk.FormatR32g32b32Sfloat
	case metadata.ShaderAttribTypeFloat32_4:
		return vk.FormatR32g32b32a32Sfloat
	case metadata.ShaderAttribTypeInt32:
		return vk.FormatR32Sint
	case metadata.ShaderAttribTypeUint32:
		return vk.FormatR32Uint
	}
	return vk.FormatUndefined
}

func vulkanCullMode(m metadata.FaceCullMode) vk.CullModeFlags {
	switch m {
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func vulkanBufferUsage(t metadata.RenderBufferType) vk.BufferUsageFlags {
	switch t {
	case metadata.RENDERBUFFER_TYPE_VERTEX:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case metadata.RENDERBUFFER_TYPE_UNIFORM:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	return vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
}
