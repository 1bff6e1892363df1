package systems

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/components"
)

func TestCameraSystemAcquireRelease(t *testing.T) {
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 2, AspectRatio: 2})
	require.NoError(t, err)

	def, err := cs.Acquire(components.DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	assert.Same(t, cs.GetDefault(), def)
	assert.Equal(t, float32(2), def.AspectRatio)

	a, err := cs.Acquire("a")
	require.NoError(t, err)
	again, err := cs.Acquire("a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = cs.Acquire("b")
	require.NoError(t, err)
	_, err = cs.Acquire("c")
	assert.Error(t, err)

	// "a" is held twice
	cs.Release("a")
	_, err = cs.Acquire("c")
	assert.Error(t, err)
	cs.Release("a")
	c, err := cs.Acquire("c")
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	cs.Release(components.DEFAULT_CAMERA_NAME)
	cs.Release("unknown")
	require.NoError(t, cs.Shutdown())
}

func TestNewCameraSystemConfig(t *testing.T) {
	_, err := NewCameraSystem(&CameraSystemConfig{})
	assert.Error(t, err)

	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 8})
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		_, err := cs.Acquire(fmt.Sprintf("camera-%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, float32(16.0/9.0), cs.GetDefault().AspectRatio)
}
