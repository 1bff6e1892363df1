package shaders

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Shader set names. They are the stable contract between callers and the library.
const (
	ShaderSetPbr          = "Pbr"
	ShaderSetWireframe    = "Wireframe"
	ShaderSetShadow       = "Shadow"
	ShaderSetPpExposure   = "PpExposure"
	ShaderSetPpResolveHdr = "PpResolveHdr"
)

// ProgramSource supplies compiled SPIR-V for a program file and stage,
// e.g. ("pbr", vertex) for pbr.vert.spv.
type ProgramSource interface {
	Program(file string, stage metadata.ShaderStage) ([]uint32, error)
}

// BuildError reports a shader set whose programs could not be loaded.
type BuildError struct {
	Name  string
	Stage metadata.ShaderStage
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("shader set `%s`: %s program: %v", e.Name, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() []error {
	return []error{core.ErrShaderBuild, e.Err}
}

type constructor func(device renderer.RendererBackend, source ProgramSource) (*ShaderSet, error)

/**
 * @brief A static catalogue from shader set name to constructor. Adding a
 * technique means adding an entry here and its constructor below.
 */
type Library struct {
	source  ProgramSource
	entries map[string]constructor
}

func NewDefaultLibrary(source ProgramSource) *Library {
	return &Library{
		source: source,
		entries: map[string]constructor{
			ShaderSetPbr:          NewPbrShaderSet,
			ShaderSetWireframe:    NewWireframeShaderSet,
			ShaderSetShadow:       NewShadowShaderSet,
			ShaderSetPpExposure:   NewExposureShaderSet,
			ShaderSetPpResolveHdr: NewResolveHdrShaderSet,
		},
	}
}

// HasShaderSet is case sensitive.
func (l *Library) HasShaderSet(name string) bool {
	_, ok := l.entries[name]
	return ok
}

// Names returns the catalogue in sorted order.
func (l *Library) Names() []string {
	out := make([]string, 0, len(l.entries))
	for name := range l.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetShaderSet constructs a new shader set. Unknown names return
// core.ErrShaderSetNotFound without touching the device.
func (l *Library) GetShaderSet(name string, device renderer.RendererBackend) (*ShaderSet, error) {
	ctor, ok := l.entries[name]
	if !ok {
		return nil, fmt.Errorf("shader set with name `%s`: %w", name, core.ErrShaderSetNotFound)
	}
	return ctor(device, l.source)
}

func NewPbrShaderSet(device renderer.RendererBackend, source ProgramSource) (*ShaderSet, error) {
	return load(device, source, ShaderSetPbr, TechniquePbr, "pbr", PbrVertexLayout(),
		CameraData, Lights, MaterialTextures, MaterialData, ShadowMaskInfo, CascadedCameraInfo)
}

func NewWireframeShaderSet(device renderer.RendererBackend, source ProgramSource) (*ShaderSet, error) {
	return load(device, source, ShaderSetWireframe, TechniqueWireframe, "wireframe", PbrVertexLayout(),
		CameraData)
}

func NewShadowShaderSet(device renderer.RendererBackend, source ProgramSource) (*ShaderSet, error) {
	return load(device, source, ShaderSetShadow, TechniqueShadow, "shadow", PbrVertexLayout(),
		CascadedCameraInfo, ShadowMaskInfo)
}

func NewExposureShaderSet(device renderer.RendererBackend, source ProgramSource) (*ShaderSet, error) {
	return load(device, source, ShaderSetPpExposure, TechniquePostProcess, "pp_exposure", ScreenVertexLayout(),
		PostProcessData)
}

func NewResolveHdrShaderSet(device renderer.RendererBackend, source ProgramSource) (*ShaderSet, error) {
	return load(device, source, ShaderSetPpResolveHdr, TechniqueResolve, "pp_resolve_hdr", ScreenVertexLayout(),
		PostProcessData)
}

// load creates both programs. If the second one fails the first is destroyed,
// so a failed build leaves nothing behind on the device.
func load(device renderer.RendererBackend, source ProgramSource, name string, technique Technique, file string, layout metadata.VertexLayout, families ...DescriptorSetFamily) (*ShaderSet, error) {
	set := &ShaderSet{
		Name:         name,
		Technique:    technique,
		VertexLayout: layout,
		Families:     families,
	}

	var created []*metadata.ShaderModule
	for _, stage := range []metadata.ShaderStage{metadata.ShaderStageVertex, metadata.ShaderStageFragment} {
		module, err := loadModule(device, source, name, file, stage)
		if err != nil {
			for _, m := range created {
				if derr := device.ShaderModuleDestroy(m); derr != nil {
					err = errors.Join(err, derr)
				}
			}
			core.LogError(err.Error())
			return nil, err
		}
		created = append(created, module)
	}
	set.Vertex, set.Fragment = created[0], created[1]
	core.LogDebug("shader set `%s` created", name)
	return set, nil
}

func loadModule(device renderer.RendererBackend, source ProgramSource, name, file string, stage metadata.ShaderStage) (*metadata.ShaderModule, error) {
	code, err := source.Program(file, stage)
	if err != nil {
		return nil, &BuildError{Name: name, Stage: stage, Err: err}
	}
	module, err := device.ShaderModuleCreate(fmt.Sprintf("%s.%s", file, stage.FileSuffix()), stage, code)
	if err != nil {
		return nil, &BuildError{Name: name, Stage: stage, Err: err}
	}
	return module, nil
}
