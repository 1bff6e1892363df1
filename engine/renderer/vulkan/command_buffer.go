package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

/**
 * @brief A primary command buffer. Recording methods resolve frontend handles
 * through the renderer; the first failure is kept and returned by End.
 */
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState

	renderer *VulkanRenderer
	err      error
	pass     *VulkanRenderpass
	target   *VulkanFramebuffer
}

var _ renderer.CommandBuffer = (*VulkanCommandBuffer)(nil)

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	err := lockPool.SafeCall(CommandPoolManagement, func() error {
		if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
			return fmt.Errorf("failed to allocate command buffer: %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	_ = lockPool.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	vBeginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}

	if isSingleUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, vBeginInfo); res != vk.Success {
		err := fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	v.err = nil
	v.pass = nil
	v.target = nil

	return nil
}

// End closes recording. It returns the first recording error, if any.
func (v *VulkanCommandBuffer) End() error {
	if v.State == COMMAND_BUFFER_STATE_RECORDING_ENDED {
		return v.err
	}
	if v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		v.fail(fmt.Errorf("render pass `%s` still open at end of recording", v.pass.Name))
		v.EndRenderPass()
	}
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := fmt.Errorf("failed to end command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		v.fail(err)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return v.err
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

func (v *VulkanCommandBuffer) fail(err error) {
	if v.err == nil {
		v.err = err
		core.LogError(err.Error())
	}
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass *metadata.RenderPass, target *metadata.Framebuffer, clear []metadata.ClearValue) {
	if v.State != COMMAND_BUFFER_STATE_RECORDING {
		v.fail(fmt.Errorf("begin render pass `%s` while not recording outside a pass", pass.Name))
		return
	}
	rp, err := v.renderer.renderpasses.Get(pass.Handle)
	if err != nil {
		v.fail(fmt.Errorf("render pass `%s`: %w", pass.Name, err))
		return
	}
	fb, err := v.renderer.framebuffers.Get(target.Handle)
	if err != nil {
		v.fail(fmt.Errorf("render target of `%s`: %w", pass.Name, err))
		return
	}
	depth := make([]bool, len(pass.Attachments))
	for i, a := range pass.Attachments {
		depth[i] = a.Format.IsDepth()
	}
	rp.RenderpassBegin(v, fb, clear, depth)
	v.pass = rp
	v.target = fb

	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(fb.Width),
		Height:   float32(fb.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height},
	}
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{scissor})
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		v.fail(fmt.Errorf("end render pass without an open pass"))
		return
	}
	v.pass.RenderpassEnd(v, v.target)
	v.pass = nil
	v.target = nil
}

func (v *VulkanCommandBuffer) pipeline(p *metadata.Pipeline) *VulkanPipeline {
	vp, err := v.renderer.pipelines.Get(p.Handle)
	if err != nil {
		v.fail(fmt.Errorf("pipeline `%s`: %w", p.Name, err))
		return nil
	}
	return vp
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline *metadata.Pipeline) {
	if v.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		v.fail(fmt.Errorf("bind pipeline `%s` outside a render pass", pipeline.Name))
		return
	}
	if vp := v.pipeline(pipeline); vp != nil {
		vp.Bind(v, vk.PipelineBindPointGraphics)
	}
}

func (v *VulkanCommandBuffer) BindDescriptorSets(pipeline *metadata.Pipeline, firstSet uint32, sets []*metadata.DescriptorSet) {
	vp := v.pipeline(pipeline)
	if vp == nil || len(sets) == 0 {
		return
	}
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		vs, err := v.renderer.sets.Get(s.Handle)
		if err != nil {
			v.fail(fmt.Errorf("descriptor set %d for `%s`: %w", firstSet+uint32(i), pipeline.Name, err))
			return
		}
		handles[i] = vs.Handle
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, vp.PipelineLayout, firstSet, uint32(len(handles)), handles, 0, nil)
}

func (v *VulkanCommandBuffer) PushConstants(pipeline *metadata.Pipeline, data []byte) {
	vp := v.pipeline(pipeline)
	if vp == nil || len(data) == 0 {
		return
	}
	if uint32(len(data)) > vp.PushConstantSize {
		v.fail(fmt.Errorf("push of %d bytes exceeds the %d byte block of `%s`", len(data), vp.PushConstantSize, pipeline.Name))
		return
	}
	vk.CmdPushConstants(v.Handle, vp.PipelineLayout, vp.PushConstantStages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) BindVertexBuffer(buffer *metadata.RenderBuffer, offset uint64) {
	vb, err := v.renderer.buffers.Get(buffer.Handle)
	if err != nil {
		v.fail(fmt.Errorf("vertex buffer: %w", err))
		return
	}
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

// BindIndexBuffer binds 32 bit indices.
func (v *VulkanCommandBuffer) BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64) {
	vb, err := v.renderer.buffers.Get(buffer.Handle)
	if err != nil {
		v.fail(fmt.Errorf("index buffer: %w", err))
		return
	}
	vk.CmdBindIndexBuffer(v.Handle, vb.Handle, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// BlitImage scales the whole of src into the whole of dst with a linear
// filter. Both images are left in their transfer layouts.
func (v *VulkanCommandBuffer) BlitImage(src, dst *metadata.Image) {
	if v.State != COMMAND_BUFFER_STATE_RECORDING {
		v.fail(fmt.Errorf("blit `%s` to `%s` inside a render pass", src.Name, dst.Name))
		return
	}
	vs, err := v.renderer.images.Get(src.Handle)
	if err != nil {
		v.fail(fmt.Errorf("blit source `%s`: %w", src.Name, err))
		return
	}
	vd, err := v.renderer.images.Get(dst.Handle)
	if err != nil {
		v.fail(fmt.Errorf("blit destination `%s`: %w", dst.Name, err))
		return
	}
	vs.TransitionLayout(v.Handle, vk.ImageLayoutTransferSrcOptimal)
	vd.TransitionLayout(v.Handle, vk.ImageLayoutTransferDstOptimal)

	region := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vs.Aspect,
			LayerCount: 1,
		},
		SrcOffsets: [2]vk.Offset3D{
			{X: 0, Y: 0, Z: 0},
			{X: int32(vs.Width), Y: int32(vs.Height), Z: 1},
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vd.Aspect,
			LayerCount: 1,
		},
		DstOffsets: [2]vk.Offset3D{
			{X: 0, Y: 0, Z: 0},
			{X: int32(vd.Width), Y: int32(vd.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(v.Handle,
		vs.Handle, vk.ImageLayoutTransferSrcOptimal,
		vd.Handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region}, vk.FilterLinear)
}

/**
 * Allocates and begins recording to a single use command buffer.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, queue vk.Queue) error {
	defer v.Free(context, pool)

	// End the command buffer.
	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	return lockPool.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			err := fmt.Errorf("failed to submit single use command buffer: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		// Wait for it to finish
		if res := vk.QueueWaitIdle(queue); res != vk.Success {
			err := fmt.Errorf("queue failed to wait in idle mode: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		return nil
	})
}
