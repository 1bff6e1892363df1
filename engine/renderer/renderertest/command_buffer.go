package renderertest

import (
	"errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

var ErrCommandBufferState = errors.New("command buffer used in the wrong state")

// CommandBuffer records commands and checks render pass nesting.
type CommandBuffer struct {
	backend  *Backend
	Commands []Command
	inPass   bool
	ended    bool
	err      error
}

func (c *CommandBuffer) record(cmd Command) {
	if c.ended {
		c.err = ErrCommandBufferState
		return
	}
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) BeginRenderPass(pass *metadata.RenderPass, target *metadata.Framebuffer, clear []metadata.ClearValue) {
	if c.inPass || target.Pass != pass.Handle || len(clear) != len(pass.Attachments) {
		c.err = ErrCommandBufferState
	}
	c.inPass = true
	c.record(Command{Op: OpBeginRenderPass, Pass: pass.Name})
}

func (c *CommandBuffer) EndRenderPass() {
	if !c.inPass {
		c.err = ErrCommandBufferState
	}
	c.inPass = false
	c.record(Command{Op: OpEndRenderPass})
}

func (c *CommandBuffer) BindPipeline(pipeline *metadata.Pipeline) {
	c.record(Command{Op: OpBindPipeline, Pipeline: pipeline.Name})
}

func (c *CommandBuffer) BindDescriptorSets(pipeline *metadata.Pipeline, firstSet uint32, sets []*metadata.DescriptorSet) {
	handles := make([]core.Handle, len(sets))
	for i, s := range sets {
		handles[i] = s.Handle
	}
	if firstSet+uint32(len(sets)) > pipeline.SetCount {
		c.err = ErrCommandBufferState
	}
	c.record(Command{Op: OpBindDescriptorSets, Pipeline: pipeline.Name, FirstSet: firstSet, Sets: handles})
}

func (c *CommandBuffer) PushConstants(pipeline *metadata.Pipeline, data []byte) {
	c.record(Command{Op: OpPushConstants, Pipeline: pipeline.Name, Data: append([]byte(nil), data...)})
}

func (c *CommandBuffer) BindVertexBuffer(buffer *metadata.RenderBuffer, offset uint64) {
	c.record(Command{Op: OpBindVertexBuffer})
}

func (c *CommandBuffer) BindIndexBuffer(buffer *metadata.RenderBuffer, offset uint64) {
	c.record(Command{Op: OpBindIndexBuffer})
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !c.inPass {
		c.err = ErrCommandBufferState
	}
	c.record(Command{Op: OpDraw, Count: vertexCount, Instances: instanceCount})
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	if !c.inPass {
		c.err = ErrCommandBufferState
	}
	c.record(Command{Op: OpDrawIndexed, Count: indexCount, Instances: instanceCount})
}

func (c *CommandBuffer) BlitImage(src, dst *metadata.Image) {
	if c.inPass {
		c.err = ErrCommandBufferState
	}
	c.record(Command{Op: OpBlitImage})
}

func (c *CommandBuffer) End() error {
	if c.inPass || c.ended {
		c.err = ErrCommandBufferState
	}
	c.ended = true
	return c.err
}

// Count returns how many recorded commands have op.
func Count(cmds []Command, op Op) int {
	n := 0
	for _, c := range cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Passes returns the names of the render passes in recording order.
func Passes(cmds []Command) []string {
	var out []string
	for _, c := range cmds {
		if c.Op == OpBeginRenderPass {
			out = append(out, c.Pass)
		}
	}
	return out
}
