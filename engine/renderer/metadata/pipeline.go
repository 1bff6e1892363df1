package metadata

import "github.com/spaghettifunk/lumen/engine/core"

type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

type ShaderFlags uint32

const (
	SHADER_FLAG_NONE        ShaderFlags = 0x0
	SHADER_FLAG_DEPTH_TEST  ShaderFlags = 0x1
	SHADER_FLAG_DEPTH_WRITE ShaderFlags = 0x2
	SHADER_FLAG_DEPTH_BIAS  ShaderFlags = 0x4
	SHADER_FLAG_BLEND       ShaderFlags = 0x8
)

/**
 * @brief Fixed function state supplied by the caller of a pipeline build.
 * A shader set may override parts of it that are inherent to its technique.
 */
type PipelineConfig struct {
	/** @brief The face cull mode. */
	CullMode FaceCullMode
	/** @brief Indicates if this pipeline should use wireframe mode. */
	IsWireframe bool
	ShaderFlags ShaderFlags
	/** @brief Rasterization samples. Must match the subpass attachments. */
	Samples uint32
	/** @brief Size in bytes of the push constant block, at most 128. */
	PushConstantSize uint32
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CullMode:         FaceCullModeBack,
		ShaderFlags:      SHADER_FLAG_DEPTH_TEST | SHADER_FLAG_DEPTH_WRITE,
		Samples:          1,
		PushConstantSize: 64,
	}
}

/**
 * @brief A fully specified pipeline, ready to be built by a backend.
 * Descriptor set layouts are bound in order, set index = position.
 */
type PipelineDescription struct {
	Name                 string
	Config               PipelineConfig
	VertexLayout         VertexLayout
	Stages               []*ShaderModule
	DescriptorSetLayouts []*DescriptorSetLayout
	RenderPass           *RenderPass
	Subpass              uint32
}

/** @brief An immutable GPU pipeline together with the target it was built for. */
type Pipeline struct {
	Handle           core.Handle
	Name             string
	RenderPass       core.Handle
	Subpass          uint32
	SetCount         uint32
	PushConstantSize uint32
}
