package renderer

import "github.com/spaghettifunk/lumen/engine/renderer/metadata"

type RendererType uint8

const (
	Vulkan RendererType = iota
	DirectX
	Metal
	OpenGL
)

/**
 * @brief The device contract every graphics backend implements. All objects
 * it returns are owned by the backend and stay valid until destroyed through
 * it or until Shutdown.
 */
type RendererBackend interface {
	Shutdown() error
	WaitIdle() error

	ShaderModuleCreate(name string, stage metadata.ShaderStage, code []uint32) (*metadata.ShaderModule, error)
	ShaderModuleDestroy(module *metadata.ShaderModule) error

	DescriptorSetLayoutCreate(bindings []metadata.DescriptorBinding) (*metadata.DescriptorSetLayout, error)
	DescriptorSetLayoutDestroy(layout *metadata.DescriptorSetLayout) error
	DescriptorSetAllocate(layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error)
	DescriptorSetUpdate(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error

	RenderPassCreate(config *metadata.RenderPassConfig) (*metadata.RenderPass, error)
	RenderPassDestroy(pass *metadata.RenderPass) error
	RenderTargetCreate(pass *metadata.RenderPass, images []*metadata.Image, width, height, layers uint32) (*metadata.Framebuffer, error)
	RenderTargetDestroy(target *metadata.Framebuffer) error

	// PipelineCreate either returns a complete pipeline or nothing; a failed
	// build releases every intermediate object it created.
	PipelineCreate(desc *metadata.PipelineDescription) (*metadata.Pipeline, error)
	PipelineDestroy(pipeline *metadata.Pipeline) error

	ImageCreate(config *metadata.ImageConfig) (*metadata.Image, error)
	ImageDestroy(image *metadata.Image) error
	// ImageWrite uploads tightly packed texels of layer 0 and leaves the image ready for sampling.
	ImageWrite(image *metadata.Image, data []byte) error

	RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (*metadata.RenderBuffer, error)
	RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error
	RenderBufferDestroy(buffer *metadata.RenderBuffer) error

	CommandBufferBegin() (CommandBuffer, error)
	// Submit ends recording if needed, submits and waits for completion.
	Submit(commandBuffer CommandBuffer) error
}

/** @brief Records GPU commands for one frame. */
type CommandBuffer interface {
	BeginRenderPass(pass *metadata.RenderPass, target *metadata.Framebuffer, clear []metadata.ClearValue)
	EndRenderPass()
	BindPipeline(pipeline *metadata.Pipeline)
	BindDescriptorSets(pipeline *metadata.Pipeline, firstSet uint32, sets []*metadata.DescriptorSet)
	PushConstants(pipeline *metadata.Pipeline, data []byte)
	BindVertexBuffer(buffer *metadata.RenderBuffer, offset uint64)
	BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	// BlitImage copies src into dst, scaling if the extents differ.
	BlitImage(src, dst *metadata.Image)
	End() error
}

/**
 * @brief Implemented by backends that render to a window. The image returned
 * by AcquireSurfaceImage is the target of one frame and must be presented
 * once that frame was submitted.
 */
type Presenter interface {
	SurfaceFormat() metadata.Format
	AcquireSurfaceImage() (*metadata.Image, error)
	Present(image *metadata.Image) error
}
