package engine

import (
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/systems"
)

type Game struct {
	Config       *config.Config
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnShutdown   Shutdown
}

// Initialize runs once the device and the systems are up. Geometry and
// materials are created on the device handed in.
type Initialize func(sm *systems.SystemManager, device renderer.RendererBackend) error
type Update func(deltaTime float64) error

// Render returns what to draw this frame, in draw order.
type Render func(deltaTime float64) ([]systems.RenderInstance, error)

// Shutdown runs before the systems stop, while the device is still alive.
type Shutdown func(device renderer.RendererBackend) error
