package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAcquireGet(t *testing.T) {
	a := NewArena[string](4)
	h1 := a.Acquire("pbr")
	h2 := a.Acquire("wireframe")

	assert.True(t, h1.IsValid())
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, a.Len())

	v, err := a.Get(h2)
	require.NoError(t, err)
	assert.Equal(t, "wireframe", v)
}

func TestArenaStaleHandle(t *testing.T) {
	a := NewArena[int](0)
	h := a.Acquire(7)

	v, err := a.Release(h)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = a.Get(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = a.Release(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	// slot is reused with a new generation
	h2 := a.Acquire(8)
	assert.Equal(t, h.Index(), h2.Index())
	assert.NotEqual(t, h, h2)
	_, err = a.Get(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestArenaZeroHandle(t *testing.T) {
	a := NewArena[int](1)
	a.Acquire(1)
	_, err := a.Get(Handle{})
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestArenaDrain(t *testing.T) {
	a := NewArena[int](0)
	a.Acquire(1)
	h := a.Acquire(2)
	a.Acquire(3)
	_, err := a.Release(h)
	require.NoError(t, err)

	var drained []int
	a.Drain(func(_ Handle, v int) {
		drained = append(drained, v)
	})
	assert.Equal(t, []int{3, 1}, drained)
	assert.Equal(t, 0, a.Len())
}
