package systems

import (
	"errors"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/passes"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

type SystemManager struct {
	cameraSystem *CameraSystem
	jobSystem    *JobSystem
	shaderSystem *ShaderSystem
	lightSystem  *LightSystem
	frameSystem  *FrameSystem
}

// NewSystemManager wires every system from a validated configuration. Nothing touches the device yet.
func NewSystemManager(cfg *config.Config, device renderer.RendererBackend, source shaders.ProgramSource) (*SystemManager, error) {
	js, err := NewJobSystem(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	if err != nil {
		return nil, err
	}

	r := cfg.Renderer
	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 16,
		AspectRatio:    float32(r.Width) / float32(r.Height),
	})
	if err != nil {
		return nil, errors.Join(err, js.Shutdown())
	}

	library := shaders.NewDefaultLibrary(source)
	ssys, err := NewShaderSystem(&ShaderSystemConfig{
		MaxShaderSetCount: uint16(len(library.Names())),
	}, library, device, js)
	if err != nil {
		return nil, errors.Join(err, js.Shutdown())
	}

	a := cfg.Lighting.Ambient
	ls, err := NewLightSystem(&LightSystemConfig{
		Cascades:    r.CascadeCount,
		SplitLambda: cfg.Lighting.SplitLambda,
		Ambient:     math.NewVec3(a[0], a[1], a[2]),
	})
	if err != nil {
		return nil, errors.Join(err, js.Shutdown())
	}

	fs, err := NewFrameSystem(&FrameSystemConfig{
		Passes: passes.Config{
			Width:         r.Width,
			Height:        r.Height,
			SurfaceFormat: config.Format(r.SurfaceFormat),
			HDRFormat:     config.Format(r.HDRFormat),
			LDRFormat:     config.Format(r.LDRFormat),
			DepthFormat:   config.Format(r.DepthFormat),
			Samples:       r.Samples,
			ShadowMapSize: r.ShadowMapSize,
			Cascades:      r.CascadeCount,
			ClearColour:   math.NewVec4(0, 0, 0, 1),
			Headless:      r.Headless,
		},
		Techniques:     cfg.Stages.StageTechniques(),
		Exposure:       cfg.PostProcess.Exposure,
		Gamma:          cfg.PostProcess.Gamma,
		ShadowBias:     cfg.Lighting.ShadowBias,
		ShadowStrength: cfg.Lighting.ShadowStrength,
	}, device, ssys, ls)
	if err != nil {
		return nil, errors.Join(err, js.Shutdown())
	}

	return &SystemManager{
		cameraSystem: cs,
		jobSystem:    js,
		shaderSystem: ssys,
		lightSystem:  ls,
		frameSystem:  fs,
	}, nil
}

// Initialize builds the configured shader sets and the frame resources.
func (sm *SystemManager) Initialize() error {
	return sm.frameSystem.Initialize()
}

func (sm *SystemManager) Cameras() *CameraSystem { return sm.cameraSystem }
func (sm *SystemManager) Jobs() *JobSystem       { return sm.jobSystem }
func (sm *SystemManager) Shaders() *ShaderSystem { return sm.shaderSystem }
func (sm *SystemManager) Lights() *LightSystem   { return sm.lightSystem }
func (sm *SystemManager) Frames() *FrameSystem   { return sm.frameSystem }

// Shutdown stops the systems in reverse dependency order. The device is left to its owner.
func (sm *SystemManager) Shutdown() error {
	if err := sm.frameSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.shaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.cameraSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.jobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
