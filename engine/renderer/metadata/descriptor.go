package metadata

import "github.com/spaghettifunk/lumen/engine/core"

type DescriptorType uint32

const (
	DescriptorTypeUniformBuffer DescriptorType = iota
	DescriptorTypeCombinedImageSampler
)

/** @brief One binding slot of a descriptor set layout. */
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
}

type DescriptorSetLayout struct {
	Handle   core.Handle
	Bindings []DescriptorBinding
}

type DescriptorSet struct {
	Handle core.Handle
	Layout core.Handle
}

/** @brief Points one binding of a descriptor set at a buffer range or an image. */
type DescriptorWrite struct {
	Binding uint32
	Buffer  *RenderBuffer
	Offset  uint64
	Range   uint64
	Image   *Image
}
