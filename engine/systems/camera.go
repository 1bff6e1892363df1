package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
)

type cameraLookup struct {
	referenceCount uint16
	camera         *components.Camera
}

type CameraSystem struct {
	Config *CameraSystemConfig

	mu      sync.Mutex
	cameras map[string]*cameraLookup
	// A default, non-registered camera that always exists as a fallback.
	DefaultCamera *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/**
	 * @brief NOTE: The maximum number of cameras that can be managed by
	 * the system.
	 */
	MaxCameraCount uint16
	// AspectRatio is applied to every camera the system creates.
	AspectRatio float32
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	cs := &CameraSystem{
		Config:  config,
		cameras: make(map[string]*cameraLookup, config.MaxCameraCount),
	}
	cs.DefaultCamera = cs.newCamera()
	return cs, nil
}

func (cs *CameraSystem) newCamera() *components.Camera {
	c := components.NewCamera()
	if cs.Config.AspectRatio > 0 {
		c.AspectRatio = cs.Config.AspectRatio
	}
	return c
}

/**
 * @brief Shuts down the camera system.
 */
func (cs *CameraSystem) Shutdown() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	clear(cs.cameras)
	return nil
}

/**
 * @brief Acquires a camera by name. If one is not found, a new one is
 * created and returned. Internal reference counter is incremented.
 *
 * @param name The name of the camera to acquire.
 * @return The camera; an error if the system is full.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == components.DEFAULT_CAMERA_NAME {
		return cs.DefaultCamera, nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	l, ok := cs.cameras[name]
	if !ok {
		if len(cs.cameras) >= int(cs.Config.MaxCameraCount) {
			err := fmt.Errorf("func CameraSystemAcquire failed to acquire new slot. Adjust camera system config to allow more")
			core.LogError(err.Error())
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		l = &cameraLookup{camera: cs.newCamera()}
		cs.cameras[name] = l
	}
	l.referenceCount++
	return l.camera, nil
}

/**
 * @brief Releases a camera with the given name. Internal reference
 * counter is decremented. If this reaches 0, the camera is dropped.
 *
 * @param name The name of the camera to release.
 */
func (cs *CameraSystem) Release(name string) {
	if name == components.DEFAULT_CAMERA_NAME {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	l, ok := cs.cameras[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup. Nothing was done.")
		return
	}
	l.referenceCount--
	if l.referenceCount < 1 {
		delete(cs.cameras, name)
	}
}

/**
 * @brief Gets the default camera.
 */
func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.DefaultCamera
}
