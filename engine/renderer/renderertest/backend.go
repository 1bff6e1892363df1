// Package renderertest provides an in-memory RendererBackend that records
// every object and command, for tests of code above the device layer.
package renderertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

var ErrInjected = errors.New("injected failure")

type Op string

const (
	OpBeginRenderPass    Op = "begin_render_pass"
	OpEndRenderPass      Op = "end_render_pass"
	OpBindPipeline       Op = "bind_pipeline"
	OpBindDescriptorSets Op = "bind_descriptor_sets"
	OpPushConstants      Op = "push_constants"
	OpBindVertexBuffer   Op = "bind_vertex_buffer"
	OpBindIndexBuffer    Op = "bind_index_buffer"
	OpDraw               Op = "draw"
	OpDrawIndexed        Op = "draw_indexed"
	OpBlitImage          Op = "blit_image"
)

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op        Op
	Pass      string
	Pipeline  string
	Sets      []core.Handle
	FirstSet  uint32
	Count     uint32
	Instances uint32
	Data      []byte
}

// Backend implements renderer.RendererBackend without a GPU.
type Backend struct {
	mu sync.Mutex

	modules     *core.Arena[*metadata.ShaderModule]
	layouts     *core.Arena[*metadata.DescriptorSetLayout]
	sets        *core.Arena[*metadata.DescriptorSet]
	passes      *core.Arena[*metadata.RenderPass]
	targets     *core.Arena[*metadata.Framebuffer]
	pipelines   *core.Arena[*metadata.Pipeline]
	images      *core.Arena[*metadata.Image]
	buffers     *core.Arena[*metadata.RenderBuffer]
	bufferBytes map[core.Handle][]byte
	imageBytes  map[core.Handle][]byte
	setWrites   map[core.Handle][]metadata.DescriptorWrite

	// Created counts every successful creation per kind, destroyed or not.
	Created map[string]int
	// Fail makes the next creations of the named object fail. Keys are
	// "shader:<name>", "pipeline:<name>", "render_pass:<name>", "image:<name>".
	Fail map[string]error

	Submitted [][]Command
	shutdown  bool
}

func New() *Backend {
	return &Backend{
		modules:     core.NewArena[*metadata.ShaderModule](16),
		layouts:     core.NewArena[*metadata.DescriptorSetLayout](16),
		sets:        core.NewArena[*metadata.DescriptorSet](16),
		passes:      core.NewArena[*metadata.RenderPass](8),
		targets:     core.NewArena[*metadata.Framebuffer](8),
		pipelines:   core.NewArena[*metadata.Pipeline](8),
		images:      core.NewArena[*metadata.Image](8),
		buffers:     core.NewArena[*metadata.RenderBuffer](8),
		bufferBytes: make(map[core.Handle][]byte),
		imageBytes:  make(map[core.Handle][]byte),
		setWrites:   make(map[core.Handle][]metadata.DescriptorWrite),
		Created:     make(map[string]int),
		Fail:        make(map[string]error),
	}
}

var _ renderer.RendererBackend = (*Backend)(nil)

func (b *Backend) injected(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.Fail[key]; ok {
		if err == nil {
			err = ErrInjected
		}
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func (b *Backend) count(kind string) {
	b.mu.Lock()
	b.Created[kind]++
	b.mu.Unlock()
}

// CreatedCount returns how many objects of kind were ever created.
func (b *Backend) CreatedCount(kind string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Created[kind]
}

// Live returns the number of objects of each kind that are still alive.
func (b *Backend) Live() map[string]int {
	return map[string]int{
		"shader":            b.modules.Len(),
		"descriptor_layout": b.layouts.Len(),
		"descriptor_set":    b.sets.Len(),
		"render_pass":       b.passes.Len(),
		"render_target":     b.targets.Len(),
		"pipeline":          b.pipelines.Len(),
		"image":             b.images.Len(),
		"buffer":            b.buffers.Len(),
	}
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	b.shutdown = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) IsShutdown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdown
}

func (b *Backend) WaitIdle() error {
	return nil
}

func (b *Backend) ShaderModuleCreate(name string, stage metadata.ShaderStage, code []uint32) (*metadata.ShaderModule, error) {
	if err := b.injected("shader:" + name); err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("shader module %s: empty program", name)
	}
	m := &metadata.ShaderModule{Name: name, Stage: stage}
	m.Handle = b.modules.Acquire(m)
	b.count("shader")
	return m, nil
}

func (b *Backend) ShaderModuleDestroy(module *metadata.ShaderModule) error {
	_, err := b.modules.Release(module.Handle)
	return err
}

func (b *Backend) DescriptorSetLayoutCreate(bindings []metadata.DescriptorBinding) (*metadata.DescriptorSetLayout, error) {
	l := &metadata.DescriptorSetLayout{Bindings: append([]metadata.DescriptorBinding(nil), bindings...)}
	l.Handle = b.layouts.Acquire(l)
	b.count("descriptor_layout")
	return l, nil
}

func (b *Backend) DescriptorSetLayoutDestroy(layout *metadata.DescriptorSetLayout) error {
	_, err := b.layouts.Release(layout.Handle)
	return err
}

func (b *Backend) DescriptorSetAllocate(layout *metadata.DescriptorSetLayout) (*metadata.DescriptorSet, error) {
	if _, err := b.layouts.Get(layout.Handle); err != nil {
		return nil, err
	}
	s := &metadata.DescriptorSet{Layout: layout.Handle}
	s.Handle = b.sets.Acquire(s)
	b.count("descriptor_set")
	return s, nil
}

func (b *Backend) DescriptorSetUpdate(set *metadata.DescriptorSet, writes []metadata.DescriptorWrite) error {
	if _, err := b.sets.Get(set.Handle); err != nil {
		return err
	}
	b.mu.Lock()
	b.setWrites[set.Handle] = append(b.setWrites[set.Handle], writes...)
	b.mu.Unlock()
	return nil
}

// Writes returns every write applied to a descriptor set.
func (b *Backend) Writes(set *metadata.DescriptorSet) []metadata.DescriptorWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setWrites[set.Handle]
}

func (b *Backend) RenderPassCreate(config *metadata.RenderPassConfig) (*metadata.RenderPass, error) {
	if err := b.injected("render_pass:" + config.Name); err != nil {
		return nil, err
	}
	rp := &metadata.RenderPass{RenderPassConfig: *config}
	rp.Handle = b.passes.Acquire(rp)
	b.count("render_pass")
	return rp, nil
}

func (b *Backend) RenderPassDestroy(pass *metadata.RenderPass) error {
	_, err := b.passes.Release(pass.Handle)
	return err
}

func (b *Backend) RenderTargetCreate(pass *metadata.RenderPass, images []*metadata.Image, width, height, layers uint32) (*metadata.Framebuffer, error) {
	if _, err := b.passes.Get(pass.Handle); err != nil {
		return nil, err
	}
	if len(images) != len(pass.Attachments) {
		return nil, fmt.Errorf("render target for %s: %d images for %d attachments", pass.Name, len(images), len(pass.Attachments))
	}
	fb := &metadata.Framebuffer{
		Pass:   pass.Handle,
		Images: append([]*metadata.Image(nil), images...),
		Width:  width,
		Height: height,
		Layers: layers,
	}
	fb.Handle = b.targets.Acquire(fb)
	b.count("render_target")
	return fb, nil
}

func (b *Backend) RenderTargetDestroy(target *metadata.Framebuffer) error {
	_, err := b.targets.Release(target.Handle)
	return err
}

func (b *Backend) PipelineCreate(desc *metadata.PipelineDescription) (*metadata.Pipeline, error) {
	if err := b.injected("pipeline:" + desc.Name); err != nil {
		return nil, err
	}
	if _, err := b.passes.Get(desc.RenderPass.Handle); err != nil {
		return nil, err
	}
	for _, l := range desc.DescriptorSetLayouts {
		if _, err := b.layouts.Get(l.Handle); err != nil {
			return nil, err
		}
	}
	for _, s := range desc.Stages {
		if _, err := b.modules.Get(s.Handle); err != nil {
			return nil, err
		}
	}
	p := &metadata.Pipeline{
		Name:             desc.Name,
		RenderPass:       desc.RenderPass.Handle,
		Subpass:          desc.Subpass,
		SetCount:         uint32(len(desc.DescriptorSetLayouts)),
		PushConstantSize: desc.Config.PushConstantSize,
	}
	p.Handle = b.pipelines.Acquire(p)
	b.count("pipeline")
	return p, nil
}

func (b *Backend) PipelineDestroy(pipeline *metadata.Pipeline) error {
	_, err := b.pipelines.Release(pipeline.Handle)
	return err
}

func (b *Backend) ImageCreate(config *metadata.ImageConfig) (*metadata.Image, error) {
	if err := b.injected("image:" + config.Name); err != nil {
		return nil, err
	}
	img := &metadata.Image{ImageConfig: *config}
	if img.Layers == 0 {
		img.Layers = 1
	}
	if img.Samples == 0 {
		img.Samples = 1
	}
	img.Handle = b.images.Acquire(img)
	b.count("image")
	return img, nil
}

func (b *Backend) ImageDestroy(image *metadata.Image) error {
	if _, err := b.images.Release(image.Handle); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.imageBytes, image.Handle)
	b.mu.Unlock()
	return nil
}

func (b *Backend) ImageWrite(image *metadata.Image, data []byte) error {
	if _, err := b.images.Get(image.Handle); err != nil {
		return err
	}
	if want := int(image.Width*image.Height) * image.Format.Size(); len(data) != want {
		return fmt.Errorf("image %s: %d bytes for %d expected", image.Name, len(data), want)
	}
	b.mu.Lock()
	b.imageBytes[image.Handle] = append([]byte(nil), data...)
	b.mu.Unlock()
	return nil
}

// ImageBytes returns the texels last written to the image.
func (b *Backend) ImageBytes(image *metadata.Image) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.imageBytes[image.Handle]
}

func (b *Backend) RenderBufferCreate(renderbufferType metadata.RenderBufferType, totalSize uint64) (*metadata.RenderBuffer, error) {
	buf := &metadata.RenderBuffer{RenderBufferType: renderbufferType, TotalSize: totalSize}
	buf.Handle = b.buffers.Acquire(buf)
	b.mu.Lock()
	b.bufferBytes[buf.Handle] = make([]byte, totalSize)
	b.mu.Unlock()
	b.count("buffer")
	return buf, nil
}

func (b *Backend) RenderBufferLoadRange(buffer *metadata.RenderBuffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	mem, ok := b.bufferBytes[buffer.Handle]
	if !ok {
		return core.ErrInvalidHandle
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("load range [%d, %d) exceeds buffer size %d", offset, offset+uint64(len(data)), len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

// BufferBytes returns a copy of the buffer contents.
func (b *Backend) BufferBytes(buffer *metadata.RenderBuffer) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.bufferBytes[buffer.Handle]...)
}

func (b *Backend) RenderBufferDestroy(buffer *metadata.RenderBuffer) error {
	if _, err := b.buffers.Release(buffer.Handle); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.bufferBytes, buffer.Handle)
	b.mu.Unlock()
	return nil
}

func (b *Backend) CommandBufferBegin() (renderer.CommandBuffer, error) {
	if err := b.injected("command_buffer"); err != nil {
		return nil, err
	}
	return &CommandBuffer{backend: b}, nil
}

func (b *Backend) Submit(commandBuffer renderer.CommandBuffer) error {
	cb, ok := commandBuffer.(*CommandBuffer)
	if !ok {
		return fmt.Errorf("foreign command buffer %T", commandBuffer)
	}
	if !cb.ended {
		if err := cb.End(); err != nil {
			return err
		}
	}
	if err := b.injected("submit"); err != nil {
		return err
	}
	b.mu.Lock()
	b.Submitted = append(b.Submitted, cb.Commands)
	b.mu.Unlock()
	return nil
}

// LastFrame returns the commands of the last submitted command buffer.
func (b *Backend) LastFrame() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Submitted) == 0 {
		return nil
	}
	return b.Submitted[len(b.Submitted)-1]
}
