package shaders

import "github.com/spaghettifunk/lumen/engine/renderer/metadata"

/**
 * @brief A semantic group of GPU-bound inputs a pipeline declares it consumes.
 * Every family has one fixed descriptor set layout shared by all pipelines.
 */
type DescriptorSetFamily int

const (
	CameraData DescriptorSetFamily = iota
	Lights
	MaterialTextures
	MaterialData
	PostProcessData
	MultisampledColor
	MultisampledColorAndDepth
	CascadedCameraInfo
	ShadowMaskInfo

	familyCount
)

// Families lists every family in declaration order.
func Families() []DescriptorSetFamily {
	out := make([]DescriptorSetFamily, 0, familyCount)
	for f := DescriptorSetFamily(0); f < familyCount; f++ {
		out = append(out, f)
	}
	return out
}

func (f DescriptorSetFamily) String() string {
	switch f {
	case CameraData:
		return "CameraData"
	case Lights:
		return "Lights"
	case MaterialTextures:
		return "MaterialTextures"
	case MaterialData:
		return "MaterialData"
	case PostProcessData:
		return "PostProcessData"
	case MultisampledColor:
		return "MultisampledColor"
	case MultisampledColorAndDepth:
		return "MultisampledColorAndDepth"
	case CascadedCameraInfo:
		return "CascadedCameraInfo"
	case ShadowMaskInfo:
		return "ShadowMaskInfo"
	}
	return "Unknown"
}

// Material texture slots, in binding order.
const (
	MaterialTextureAlbedo uint32 = iota
	MaterialTextureNormal
	MaterialTextureMetallicRoughness

	MaterialTextureCount
)

const fragment = metadata.ShaderStageFragment

// Bindings is the layout the shader programs expect for the family.
func (f DescriptorSetFamily) Bindings() []metadata.DescriptorBinding {
	ubo := func(b uint32, stages metadata.ShaderStage) metadata.DescriptorBinding {
		return metadata.DescriptorBinding{Binding: b, Type: metadata.DescriptorTypeUniformBuffer, Count: 1, Stages: stages}
	}
	sampler := func(b uint32) metadata.DescriptorBinding {
		return metadata.DescriptorBinding{Binding: b, Type: metadata.DescriptorTypeCombinedImageSampler, Count: 1, Stages: fragment}
	}

	switch f {
	case CameraData:
		return []metadata.DescriptorBinding{ubo(0, metadata.ShaderStageVertex|fragment)}
	case Lights:
		return []metadata.DescriptorBinding{ubo(0, fragment)}
	case MaterialTextures:
		out := make([]metadata.DescriptorBinding, MaterialTextureCount)
		for i := range out {
			out[i] = sampler(uint32(i))
		}
		return out
	case MaterialData:
		return []metadata.DescriptorBinding{ubo(0, fragment)}
	case PostProcessData:
		// parameters, source image
		return []metadata.DescriptorBinding{ubo(0, fragment), sampler(1)}
	case MultisampledColor:
		return []metadata.DescriptorBinding{sampler(0)}
	case MultisampledColorAndDepth:
		return []metadata.DescriptorBinding{sampler(0), sampler(1)}
	case CascadedCameraInfo:
		// the forward pass projects into the cascades to sample the shadow map
		return []metadata.DescriptorBinding{ubo(0, metadata.ShaderStageVertex|fragment)}
	case ShadowMaskInfo:
		// cascade splits, shadow map
		return []metadata.DescriptorBinding{ubo(0, metadata.ShaderStageVertex|fragment), sampler(1)}
	}
	return nil
}
