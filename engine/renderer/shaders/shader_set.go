package shaders

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Technique is the closed set of rendering techniques a ShaderSet implements.
type Technique int

const (
	TechniquePbr Technique = iota
	TechniqueWireframe
	TechniqueShadow
	TechniqueResolve
	TechniquePostProcess
)

func (t Technique) String() string {
	switch t {
	case TechniquePbr:
		return "pbr"
	case TechniqueWireframe:
		return "wireframe"
	case TechniqueShadow:
		return "shadow"
	case TechniqueResolve:
		return "resolve"
	case TechniquePostProcess:
		return "post_process"
	}
	return "unknown"
}

// DepthOnly reports whether the technique writes no colour and needs a depth attachment.
func (t Technique) DepthOnly() bool {
	return t == TechniqueShadow
}

/**
 * @brief The vertex and fragment programs of one technique together with
 * the vertex layout they read and the descriptor set families they bind,
 * in set index order. Immutable after construction.
 */
type ShaderSet struct {
	Name         string
	Technique    Technique
	Vertex       *metadata.ShaderModule
	Fragment     *metadata.ShaderModule
	VertexLayout metadata.VertexLayout
	Families     []DescriptorSetFamily
}

// DescriptorLayouts hands out the shared layout of each family.
type DescriptorLayouts interface {
	DescriptorLayout(family DescriptorSetFamily) (*metadata.DescriptorSetLayout, error)
}

/**
 * @brief The shared, not yet finalized part of every pipeline build.
 * ToPipeline completes it for one shader set and render pass target.
 */
type PipelineBuilder struct {
	Layouts DescriptorLayouts
}

func NewPipelineBuilder(layouts DescriptorLayouts) *PipelineBuilder {
	return &PipelineBuilder{Layouts: layouts}
}

// ToPipeline builds the pipeline of the shader set for the subpass of pass and
// returns it with the families the pipeline binds, in set order. The fixed
// state inherent to the technique overrides config. On error nothing is returned.
func (s *ShaderSet) ToPipeline(builder *PipelineBuilder, config metadata.PipelineConfig, pass *metadata.RenderPass, subpass uint32, device renderer.RendererBackend) (*metadata.Pipeline, []DescriptorSetFamily, error) {
	if pass == nil || int(subpass) >= len(pass.Subpasses) {
		return nil, nil, s.pipelineErr(core.ErrSubpassOutOfRange, "subpass %d", subpass)
	}
	if !s.VertexLayout.Validate() {
		return nil, nil, s.pipelineErr(core.ErrInvalidVertexLayout, "stride %d", s.VertexLayout.Stride)
	}
	if s.Vertex == nil || s.Vertex.Stage != metadata.ShaderStageVertex ||
		s.Fragment == nil || s.Fragment.Stage != metadata.ShaderStageFragment {
		return nil, nil, s.pipelineErr(core.ErrPipelineBuild, "missing vertex or fragment program")
	}

	sp := pass.Subpasses[subpass]
	samples, err := s.checkTarget(pass, sp)
	if err != nil {
		return nil, nil, err
	}

	config.Samples = samples
	switch s.Technique {
	case TechniquePbr:
		config.IsWireframe = false
		config.ShaderFlags |= metadata.SHADER_FLAG_DEPTH_TEST | metadata.SHADER_FLAG_DEPTH_WRITE
	case TechniqueWireframe:
		config.IsWireframe = true
		config.CullMode = metadata.FaceCullModeNone
		config.ShaderFlags |= metadata.SHADER_FLAG_DEPTH_TEST
		config.ShaderFlags &^= metadata.SHADER_FLAG_BLEND
	case TechniqueShadow:
		config.IsWireframe = false
		config.CullMode = metadata.FaceCullModeFront
		config.ShaderFlags = metadata.SHADER_FLAG_DEPTH_TEST | metadata.SHADER_FLAG_DEPTH_WRITE | metadata.SHADER_FLAG_DEPTH_BIAS
	case TechniqueResolve, TechniquePostProcess:
		config.IsWireframe = false
		config.CullMode = metadata.FaceCullModeNone
		config.ShaderFlags = metadata.SHADER_FLAG_NONE
		// full screen passes have no model matrix
		config.PushConstantSize = 0
	default:
		return nil, nil, s.pipelineErr(core.ErrPipelineBuild, "unknown technique %d", s.Technique)
	}

	layouts := make([]*metadata.DescriptorSetLayout, len(s.Families))
	for i, f := range s.Families {
		l, err := builder.Layouts.DescriptorLayout(f)
		if err != nil {
			return nil, nil, s.pipelineErr(err, "descriptor layout %s", f)
		}
		layouts[i] = l
	}

	desc := &metadata.PipelineDescription{
		Name:                 s.Name,
		Config:               config,
		VertexLayout:         s.VertexLayout,
		Stages:               []*metadata.ShaderModule{s.Vertex, s.Fragment},
		DescriptorSetLayouts: layouts,
		RenderPass:           pass,
		Subpass:              subpass,
	}
	pipeline, err := device.PipelineCreate(desc)
	if err != nil {
		return nil, nil, s.pipelineErr(fmt.Errorf("%w: %w", core.ErrPipelineBuild, err), "device")
	}

	families := make([]DescriptorSetFamily, len(s.Families))
	copy(families, s.Families)
	core.LogDebug("pipeline `%s` built for render pass `%s` subpass %d", s.Name, pass.Name, subpass)
	return pipeline, families, nil
}

// checkTarget validates that the subpass has the attachments the technique writes
// and returns their sample count.
func (s *ShaderSet) checkTarget(pass *metadata.RenderPass, sp metadata.Subpass) (uint32, error) {
	attachment := func(i int) (metadata.RenderTargetAttachmentConfig, error) {
		if i < 0 || i >= len(pass.Attachments) {
			return metadata.RenderTargetAttachmentConfig{}, s.pipelineErr(core.ErrIncompatibleRenderPass, "subpass references attachment %d", i)
		}
		return pass.Attachments[i], nil
	}

	if s.Technique.DepthOnly() {
		if !sp.HasDepth() {
			return 0, s.pipelineErr(core.ErrIncompatibleRenderPass, "render pass `%s` has no depth attachment", pass.Name)
		}
		a, err := attachment(sp.Depth)
		if err != nil {
			return 0, err
		}
		return max(a.Samples, 1), nil
	}

	if len(sp.Colour) == 0 {
		return 0, s.pipelineErr(core.ErrIncompatibleRenderPass, "render pass `%s` has no colour attachment", pass.Name)
	}
	samples := uint32(0)
	for _, i := range sp.Colour {
		a, err := attachment(i)
		if err != nil {
			return 0, err
		}
		n := max(a.Samples, 1)
		if samples != 0 && n != samples {
			return 0, s.pipelineErr(core.ErrIncompatibleRenderPass, "mixed sample counts in render pass `%s`", pass.Name)
		}
		samples = n
	}
	if sp.HasDepth() {
		a, err := attachment(sp.Depth)
		if err != nil {
			return 0, err
		}
		if max(a.Samples, 1) != samples {
			return 0, s.pipelineErr(core.ErrIncompatibleRenderPass, "depth and colour sample counts differ in render pass `%s`", pass.Name)
		}
	}
	return samples, nil
}

func (s *ShaderSet) pipelineErr(cause error, format string, args ...interface{}) error {
	err := fmt.Errorf("pipeline `%s`: %s: %w", s.Name, fmt.Sprintf(format, args...), cause)
	core.LogError(err.Error())
	return err
}

// Destroy releases both programs. The set must not be used afterwards.
func (s *ShaderSet) Destroy(device renderer.RendererBackend) error {
	var firstErr error
	for _, m := range []*metadata.ShaderModule{s.Vertex, s.Fragment} {
		if m == nil {
			continue
		}
		if err := device.ShaderModuleDestroy(m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.Vertex, s.Fragment = nil, nil
	return firstErr
}
