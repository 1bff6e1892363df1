package platform

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/lumen/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	startTime float64
	closed    bool
}

func New() *Platform {
	return &Platform{}
}

/**
 * @brief Initializes GLFW and opens a window without a client API. The window
 * cannot be resized: the renderer never rebuilds its swapchain.
 */
func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError(err.Error())
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := fmt.Errorf("glfw reports no Vulkan loader")
		core.LogError(err.Error())
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError(err.Error())
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	p.startTime = glfw.GetTime()
	core.LogInfo("Window `%s` opened at %dx%d.", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events. It returns false once the
// window was asked to close.
func (p *Platform) PumpMessages() bool {
	if p.Window == nil {
		return !p.closed
	}
	glfw.PollEvents()
	return !p.closed && !p.Window.ShouldClose()
}

// RequestClose makes the next PumpMessages report the window as closed.
func (p *Platform) RequestClose() {
	p.closed = true
}

// GetAbsoluteTime returns the seconds since Startup.
func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime() - p.startTime
}

// GetRequiredExtensionNames lists the instance extensions the window surface needs.
func (p *Platform) GetRequiredExtensionNames() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

// FramebufferSize is the window size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		core.LogDebug("escape pressed, closing")
		p.closed = true
	}
}
