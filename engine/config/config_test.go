package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, metadata.FormatBGRA8SRGB, Format(cfg.Renderer.SurfaceFormat))
	assert.Equal(t, metadata.FormatD32Float, Format(cfg.Renderer.DepthFormat))
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[renderer]
width = 640
height = 480
samples = 8
cascade_count = 2

[post_process]
exposure = 1.5

[stages]
forward = ["Pbr"]
assemble = ["Wireframe"]
`))
	require.NoError(t, err)
	assert.Equal(t, uint32(640), cfg.Renderer.Width)
	assert.Equal(t, uint32(8), cfg.Renderer.Samples)
	assert.Equal(t, uint32(2), cfg.Renderer.CascadeCount)
	assert.Equal(t, float32(1.5), cfg.PostProcess.Exposure)
	// untouched keys keep their default
	assert.Equal(t, float32(2.2), cfg.PostProcess.Gamma)
	assert.Equal(t, uint32(2048), cfg.Renderer.ShadowMapSize)

	stages := cfg.Stages.StageTechniques()
	assert.Equal(t, []string{"Pbr"}, stages[metadata.FrameStageForward])
	assert.Equal(t, []string{"Wireframe"}, stages[metadata.FrameStageAssemble])
	assert.Equal(t, []string{"Shadow"}, stages[metadata.FrameStageShadow])
	assert.NotContains(t, stages, metadata.FrameStageSubmitted)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("[renderer]\nwidth = = 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero width", func(c *Config) { c.Renderer.Width = 0 }, "width and height"},
		{"samples not a power of two", func(c *Config) { c.Renderer.Samples = 3 }, "samples"},
		{"too many cascades", func(c *Config) { c.Renderer.CascadeCount = 5 }, "cascade_count"},
		{"no shadow map", func(c *Config) { c.Renderer.ShadowMapSize = 0 }, "shadow_map_size"},
		{"unknown format", func(c *Config) { c.Renderer.HDRFormat = "rgb9e5" }, "unknown format"},
		{"colour depth format", func(c *Config) { c.Renderer.DepthFormat = metadata.FormatRGBA8Unorm.String() }, "not a depth format"},
		{"depth surface format", func(c *Config) { c.Renderer.SurfaceFormat = metadata.FormatD32Float.String() }, "is a depth format"},
		{"gamma", func(c *Config) { c.PostProcess.Gamma = 0 }, "gamma"},
		{"split lambda", func(c *Config) { c.Lighting.SplitLambda = 2 }, "split_lambda"},
		{"no workers", func(c *Config) { c.Jobs.Workers = 0 }, "workers"},
		{"log level", func(c *Config) { c.Application.LogLevel = "loud" }, "log_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateReportsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Renderer.Samples = 0
	cfg.PostProcess.Gamma = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "samples")
	assert.Contains(t, err.Error(), "gamma")
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Application.Name = "roundtrip"
	cfg.Renderer.Headless = true
	cfg.Stages.Forward = []string{"Pbr"}
	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "lumen.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Application.Name)
	assert.True(t, loaded.Renderer.Headless)
	assert.Equal(t, []string{"Pbr"}, loaded.Stages.Forward)
	assert.Equal(t, cfg.Lighting, loaded.Lighting)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
