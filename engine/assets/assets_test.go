package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func spirv(order binary.ByteOrder, words ...uint32) []byte {
	header := []uint32{spirvMagic, 0x00010000, 0, 8, 0}
	all := append(header, words...)
	out := make([]byte, 4*len(all))
	for i, w := range all {
		order.PutUint32(out[i*4:], w)
	}
	return out
}

func writeProgram(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNewAssetManager(t *testing.T) {
	_, err := NewAssetManager(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := writeProgram(t, t.TempDir(), "file", nil)
	_, err = NewAssetManager(file)
	assert.Error(t, err)
}

func TestProgram(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "pbr.vert.spv", spirv(binary.LittleEndian, 42))
	writeProgram(t, dir, "pbr.frag.spv", spirv(binary.BigEndian, 7))

	am, err := NewAssetManager(dir)
	require.NoError(t, err)
	defer am.Shutdown()

	code, err := am.Program("pbr", metadata.ShaderStageVertex)
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010000, 0, 8, 0, 42}, code)

	code, err = am.Program("pbr", metadata.ShaderStageFragment)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), code[5])

	programs := am.Programs()
	require.Len(t, programs, 2)
	assert.Equal(t, filepath.Clean(path), programs[1].Path)
	assert.False(t, programs[0].LastLoaded.IsZero())
	assert.Empty(t, am.Stale())
}

func TestProgramInvalid(t *testing.T) {
	dir := t.TempDir()
	writeProgram(t, dir, "short.vert.spv", []byte{0x03, 0x02, 0x23, 0x07})
	bad := spirv(binary.LittleEndian, 1)
	bad[0] = 0xff
	writeProgram(t, dir, "magic.vert.spv", bad)
	writeProgram(t, dir, "odd.vert.spv", append(spirv(binary.LittleEndian, 1), 0))

	am, err := NewAssetManager(dir)
	require.NoError(t, err)
	defer am.Shutdown()

	for _, name := range []string{"short", "magic", "odd"} {
		_, err := am.Program(name, metadata.ShaderStageVertex)
		assert.ErrorIs(t, err, ErrInvalidProgram, name)
	}
	_, err = am.Program("missing", metadata.ShaderStageFragment)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, am.Programs())
}

func TestWatchMarksLoadedProgramsStale(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "wireframe.frag.spv", spirv(binary.LittleEndian))
	writeProgram(t, dir, "shadow.frag.spv", spirv(binary.LittleEndian))

	am, err := NewAssetManager(dir)
	require.NoError(t, err)
	defer am.Shutdown()

	var changed atomic.Int32
	am.OnChange = func(string) { changed.Add(1) }
	_, err = am.Program("wireframe", metadata.ShaderStageFragment)
	require.NoError(t, err)
	require.NoError(t, am.Watch())
	require.NoError(t, am.Watch())

	writeProgram(t, dir, "wireframe.frag.spv", spirv(binary.LittleEndian, 1))
	// never loaded, so never stale
	writeProgram(t, dir, "shadow.frag.spv", spirv(binary.LittleEndian, 1))

	require.Eventually(t, func() bool {
		return len(am.Stale()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{filepath.Clean(path)}, am.Stale())
	assert.Positive(t, changed.Load())
}

func TestShutdown(t *testing.T) {
	am, err := NewAssetManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, am.Watch())
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
	assert.Error(t, am.Watch())
}
