package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// how many frames pass between two frame time reports
const metricsReportInterval = 120

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *config.Config
	isRunning     atomic.Bool
	platform      *platform.Platform
	device        renderer.RendererBackend
	presenter     renderer.Presenter
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	clock         *core.Clock
	lastTime      time.Duration

	// offscreen target of a headless run
	target       *metadata.Image
	framesDone   int
	shutdownOnce sync.Once
}

func New(g *Game) (*Engine, error) {
	if g.Config == nil {
		g.Config = config.Default()
	}
	if err := g.Config.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(core.LogLevel(g.Config.Application.LogLevel))

	am, err := assets.NewAssetManager(g.Config.Renderer.ShaderDir)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.Config,
		assetManager: am,
		clock:        core.NewClock(),
	}
	if !g.Config.Renderer.Headless {
		e.platform = platform.New()
	}
	return e, nil
}

// newBackend creates and initializes the device of the given type.
func newBackend(rendererType renderer.RendererType, cfg *config.Config, p *platform.Platform) (renderer.RendererBackend, error) {
	switch rendererType {
	case renderer.Vulkan:
		vr := vulkan.New(vulkan.Config{
			ApplicationName: cfg.Application.Name,
			Validation:      cfg.Renderer.Validation,
			Platform:        p,
			SurfaceFormat:   config.Format(cfg.Renderer.SurfaceFormat),
			Width:           cfg.Renderer.Width,
			Height:          cfg.Renderer.Height,
		})
		if err := vr.Initialize(); err != nil {
			return nil, err
		}
		return vr, nil
	}
	return nil, fmt.Errorf("renderer type %d is not supported", rendererType)
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.config

	if e.platform != nil {
		if err := e.platform.Startup(cfg.Application.Name, 100, 100, cfg.Renderer.Width, cfg.Renderer.Height); err != nil {
			return err
		}
	}

	device, err := newBackend(renderer.Vulkan, cfg, e.platform)
	if err != nil {
		return err
	}
	e.device = device

	if e.platform != nil {
		presenter, ok := device.(renderer.Presenter)
		if !ok {
			return fmt.Errorf("renderer backend cannot present to a window")
		}
		e.presenter = presenter
	} else {
		target, err := device.ImageCreate(&metadata.ImageConfig{
			Name:    "offscreen_target",
			Format:  config.Format(cfg.Renderer.SurfaceFormat),
			Width:   cfg.Renderer.Width,
			Height:  cfg.Renderer.Height,
			Layers:  1,
			Samples: 1,
			Usage:   metadata.ImageUsageColorAttachment | metadata.ImageUsageTransferDst | metadata.ImageUsageTransferSrc,
		})
		if err != nil {
			return err
		}
		e.target = target
	}

	if cfg.Renderer.WatchShaders {
		if err := e.assetManager.Watch(); err != nil {
			return err
		}
	}

	sm, err := systems.NewSystemManager(cfg, device, e.assetManager)
	if err != nil {
		return err
	}
	e.systemManager = sm
	if err := sm.Initialize(); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(sm, device); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Stop asks Run to return after the frame in flight. Safe from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine: %w", core.ErrNotInitialized)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if e.platform != nil && !e.platform.PumpMessages() {
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()
		e.lastTime = currentTime

		if err := e.frame(delta); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		if e.platform == nil && e.framesDone >= e.config.Application.Frames {
			core.LogInfo("Rendered %d headless frames.", e.framesDone)
			break
		}
	}
	e.isRunning.Store(false)
	return nil
}

func (e *Engine) frame(delta float64) error {
	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			return err
		}
	}
	var instances []systems.RenderInstance
	if e.gameInstance.FnRender != nil {
		var err error
		if instances, err = e.gameInstance.FnRender(delta); err != nil {
			return err
		}
	}

	target := e.target
	if e.presenter != nil {
		image, err := e.presenter.AcquireSurfaceImage()
		if err != nil {
			return err
		}
		target = image
	}

	frames := e.systemManager.Frames()
	f, err := frames.RenderFrame(target, e.systemManager.Cameras().GetDefault(), instances)
	if err != nil {
		return err
	}
	if e.presenter != nil {
		if err := e.presenter.Present(target); err != nil {
			return err
		}
	}
	e.framesDone++

	if f.Skipped() > 0 {
		core.LogDebug("frame %s skipped %d draws", f.ID, f.Skipped())
	}
	if m := frames.Metrics(); m.TotalFrames()%metricsReportInterval == 0 {
		fps, avg := m.Frame()
		core.LogInfo("%.1f fps, %.2fms per frame, %d culled", fps, avg, f.Culled())
	}
	return nil
}

// Shutdown releases everything in reverse order of creation. Only the first call does anything.
func (e *Engine) Shutdown() error {
	var err error
	e.shutdownOnce.Do(func() {
		e.currentStage = EngineStageShuttingDown
		e.isRunning.Store(false)
		err = e.shutdown()
		e.currentStage = EngineStageUninitialized
	})
	return err
}

func (e *Engine) shutdown() error {
	var errs []error
	if e.device != nil {
		errs = append(errs, e.device.WaitIdle())
		if e.gameInstance.FnShutdown != nil {
			errs = append(errs, e.gameInstance.FnShutdown(e.device))
		}
	}
	if e.systemManager != nil {
		errs = append(errs, e.systemManager.Shutdown())
	}
	if e.target != nil {
		errs = append(errs, e.device.ImageDestroy(e.target))
		e.target = nil
	}
	errs = append(errs, e.assetManager.Shutdown())
	if e.device != nil {
		errs = append(errs, e.device.Shutdown())
	}
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	err := errors.Join(errs...)
	if err != nil {
		core.LogError(err.Error())
	}
	return err
}

// GetFramebufferSize returns the width and height (in this order) of the frame target.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.config.Renderer.Width, e.config.Renderer.Height
}
