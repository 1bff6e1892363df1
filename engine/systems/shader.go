package systems

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief The maximum number of shader sets held in the system. */
	MaxShaderSetCount uint16
}

/**
 * @brief A built pipeline together with the shader set it came from and
 * the descriptor set families it binds, in set index order.
 */
type ShaderPipeline struct {
	Pipeline *metadata.Pipeline
	Families []shaders.DescriptorSetFamily
	Set      *shaders.ShaderSet
}

/**
 * @brief Owns every shader set, pipeline and descriptor set layout.
 * Shader sets are built at most once per name, also when requested from
 * several goroutines at the same time. Safe for concurrent use.
 */
type ShaderSystem struct {
	// This system's configuration.
	Config  *ShaderSystemConfig
	library *shaders.Library
	device  renderer.RendererBackend
	jobs    *JobSystem
	builder *shaders.PipelineBuilder

	mu        sync.RWMutex
	sets      map[string]*shaders.ShaderSet
	pipelines map[string]*ShaderPipeline

	layoutMu sync.Mutex
	layouts  map[shaders.DescriptorSetFamily]*metadata.DescriptorSetLayout

	group singleflight.Group
}

// NewShaderSystem builds nothing up front. jobs may be nil, Prewarm then runs on the caller.
func NewShaderSystem(config *ShaderSystemConfig, library *shaders.Library, device renderer.RendererBackend, jobs *JobSystem) (*ShaderSystem, error) {
	if config.MaxShaderSetCount == 0 {
		err := fmt.Errorf("NewShaderSystem - config.MaxShaderSetCount must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	if library == nil || device == nil {
		err := fmt.Errorf("NewShaderSystem - library and device are required")
		core.LogError(err.Error())
		return nil, err
	}
	if n := len(library.Names()); int(config.MaxShaderSetCount) < n {
		core.LogWarn("NewShaderSystem - config.MaxShaderSetCount (%d) is smaller than the library (%d)", config.MaxShaderSetCount, n)
	}

	ss := &ShaderSystem{
		Config:    config,
		library:   library,
		device:    device,
		jobs:      jobs,
		sets:      make(map[string]*shaders.ShaderSet),
		pipelines: make(map[string]*ShaderPipeline),
		layouts:   make(map[shaders.DescriptorSetFamily]*metadata.DescriptorSetLayout),
	}
	ss.builder = shaders.NewPipelineBuilder(ss)
	return ss, nil
}

func (ss *ShaderSystem) cached(name string) (*shaders.ShaderSet, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	set, ok := ss.sets[name]
	return set, ok
}

/**
 * @brief Returns the shader set with the given name, building it on the
 * first request.
 *
 * @param name The case sensitive name of the shader set.
 * @return The shader set; core.ErrShaderSetNotFound if the library has no
 * such name, or a *shaders.BuildError if its programs could not be loaded.
 * Failed builds are not cached.
 */
func (ss *ShaderSystem) GetShaderSet(name string) (*shaders.ShaderSet, error) {
	if set, ok := ss.cached(name); ok {
		return set, nil
	}
	if !ss.library.HasShaderSet(name) {
		err := fmt.Errorf("shader set with name `%s`: %w", name, core.ErrShaderSetNotFound)
		core.LogWarn(err.Error())
		return nil, err
	}

	v, err, _ := ss.group.Do(name, func() (interface{}, error) {
		// a build that finished between the lookup above and this call is reused
		if set, ok := ss.cached(name); ok {
			return set, nil
		}
		ss.mu.RLock()
		full := len(ss.sets) >= int(ss.Config.MaxShaderSetCount)
		ss.mu.RUnlock()
		if full {
			err := fmt.Errorf("shader set `%s`: the shader system holds its maximum of %d shader sets", name, ss.Config.MaxShaderSetCount)
			core.LogError(err.Error())
			return nil, err
		}

		set, err := ss.library.GetShaderSet(name, ss.device)
		if err != nil {
			return nil, err
		}
		ss.mu.Lock()
		ss.sets[name] = set
		ss.mu.Unlock()
		core.LogInfo("shader set `%s` (%s) ready", name, set.Technique)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*shaders.ShaderSet), nil
}

// GetAllShaderSets returns the names of the built shader sets, sorted.
func (ss *ShaderSystem) GetAllShaderSets() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return slices.Sorted(maps.Keys(ss.sets))
}

/**
 * @brief Returns the pipeline of the named shader set, building it for the
 * given render pass and subpass on the first request. Pipelines are cached
 * per name: requesting a cached name for another target fails with
 * core.ErrPipelineTargetMismatch instead of handing out the wrong pipeline.
 */
func (ss *ShaderSystem) GetPipeline(name string, config metadata.PipelineConfig, pass *metadata.RenderPass, subpass uint32) (*ShaderPipeline, error) {
	if pass == nil {
		err := fmt.Errorf("pipeline `%s`: no render pass: %w", name, core.ErrPipelineBuild)
		core.LogError(err.Error())
		return nil, err
	}
	if p, ok := ss.cachedPipeline(name); ok {
		return p, ss.checkTarget(p, pass, subpass)
	}

	set, err := ss.GetShaderSet(name)
	if err != nil {
		return nil, err
	}

	v, err, _ := ss.group.Do("pipeline:"+name, func() (interface{}, error) {
		if p, ok := ss.cachedPipeline(name); ok {
			return p, nil
		}
		pipeline, families, err := set.ToPipeline(ss.builder, config, pass, subpass, ss.device)
		if err != nil {
			return nil, err
		}
		p := &ShaderPipeline{Pipeline: pipeline, Families: families, Set: set}
		ss.mu.Lock()
		ss.pipelines[name] = p
		ss.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := v.(*ShaderPipeline)
	return p, ss.checkTarget(p, pass, subpass)
}

func (ss *ShaderSystem) cachedPipeline(name string) (*ShaderPipeline, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	p, ok := ss.pipelines[name]
	return p, ok
}

func (ss *ShaderSystem) checkTarget(p *ShaderPipeline, pass *metadata.RenderPass, subpass uint32) error {
	if p.Pipeline.RenderPass == pass.Handle && p.Pipeline.Subpass == subpass {
		return nil
	}
	err := fmt.Errorf("pipeline `%s` is built for another target than render pass `%s` subpass %d: %w",
		p.Pipeline.Name, pass.Name, subpass, core.ErrPipelineTargetMismatch)
	core.LogError(err.Error())
	return err
}

// DestroyPipelinesFor destroys the cached pipelines built for any of the given render passes.
func (ss *ShaderSystem) DestroyPipelinesFor(passes ...core.Handle) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	var errs []error
	for name, p := range ss.pipelines {
		if slices.Contains(passes, p.Pipeline.RenderPass) {
			errs = append(errs, ss.device.PipelineDestroy(p.Pipeline))
			delete(ss.pipelines, name)
		}
	}
	return errors.Join(errs...)
}

/**
 * @brief Returns the shared descriptor set layout of a family, creating it
 * on first use.
 */
func (ss *ShaderSystem) DescriptorLayout(family shaders.DescriptorSetFamily) (*metadata.DescriptorSetLayout, error) {
	ss.layoutMu.Lock()
	defer ss.layoutMu.Unlock()
	if l, ok := ss.layouts[family]; ok {
		return l, nil
	}
	bindings := family.Bindings()
	if len(bindings) == 0 {
		err := fmt.Errorf("descriptor set family %d: %w", family, core.ErrMissingDescriptorFamily)
		core.LogError(err.Error())
		return nil, err
	}
	l, err := ss.device.DescriptorSetLayoutCreate(bindings)
	if err != nil {
		err = fmt.Errorf("descriptor set layout %s: %w", family, err)
		core.LogError(err.Error())
		return nil, err
	}
	ss.layouts[family] = l
	return l, nil
}

// AllocateDescriptorSet allocates a set of the family's layout and applies writes to it.
func (ss *ShaderSystem) AllocateDescriptorSet(family shaders.DescriptorSetFamily, writes []metadata.DescriptorWrite) (*metadata.DescriptorSet, error) {
	layout, err := ss.DescriptorLayout(family)
	if err != nil {
		return nil, err
	}
	set, err := ss.device.DescriptorSetAllocate(layout)
	if err != nil {
		err = fmt.Errorf("descriptor set %s: %w", family, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := ss.device.DescriptorSetUpdate(set, writes); err != nil {
		err = fmt.Errorf("descriptor set %s: %w", family, err)
		core.LogError(err.Error())
		return nil, err
	}
	return set, nil
}

/**
 * @brief Builds the named shader sets, in parallel on the job system when
 * one is attached. Every failure is reported, not only the first one.
 */
func (ss *ShaderSystem) Prewarm(names ...string) error {
	work := make([]func() error, len(names))
	for i, name := range names {
		work[i] = func() error {
			_, err := ss.GetShaderSet(name)
			return err
		}
	}
	if ss.jobs == nil {
		var errs []error
		for _, fn := range work {
			errs = append(errs, fn())
		}
		return errors.Join(errs...)
	}
	return ss.jobs.SubmitAndWait("prewarm", work...)
}

/**
 * @brief Shuts down the shader system, destroying pipelines, then shader
 * sets, then descriptor set layouts.
 */
func (ss *ShaderSystem) Shutdown() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var errs []error
	for name, p := range ss.pipelines {
		errs = append(errs, ss.device.PipelineDestroy(p.Pipeline))
		delete(ss.pipelines, name)
	}
	for name, set := range ss.sets {
		errs = append(errs, set.Destroy(ss.device))
		delete(ss.sets, name)
	}

	ss.layoutMu.Lock()
	for family, l := range ss.layouts {
		errs = append(errs, ss.device.DescriptorSetLayoutDestroy(l))
		delete(ss.layouts, family)
	}
	ss.layoutMu.Unlock()

	if err := errors.Join(errs...); err != nil {
		core.LogError(err.Error())
		return err
	}
	return nil
}
