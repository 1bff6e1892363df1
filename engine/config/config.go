// Package config reads the engine configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Renderer    RendererConfig    `toml:"renderer"`
	PostProcess PostProcessConfig `toml:"post_process"`
	Lighting    LightingConfig    `toml:"lighting"`
	Stages      StagesConfig      `toml:"stages"`
	Jobs        JobsConfig        `toml:"jobs"`
}

type ApplicationConfig struct {
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// Frames is the number of frames a headless run renders before exiting.
	Frames int `toml:"frames"`
}

type RendererConfig struct {
	Width         uint32 `toml:"width"`
	Height        uint32 `toml:"height"`
	SurfaceFormat string `toml:"surface_format"`
	HDRFormat     string `toml:"hdr_format"`
	LDRFormat     string `toml:"ldr_format"`
	DepthFormat   string `toml:"depth_format"`
	Samples       uint32 `toml:"samples"`
	ShadowMapSize uint32 `toml:"shadow_map_size"`
	CascadeCount  uint32 `toml:"cascade_count"`
	// ShaderDir holds the compiled <program>.<stage>.spv files.
	ShaderDir    string `toml:"shader_dir"`
	WatchShaders bool   `toml:"watch_shaders"`
	Headless     bool   `toml:"headless"`
	Validation   bool   `toml:"validation"`
}

type PostProcessConfig struct {
	Exposure float32 `toml:"exposure"`
	Gamma    float32 `toml:"gamma"`
}

type LightingConfig struct {
	SplitLambda    float32    `toml:"split_lambda"`
	ShadowBias     float32    `toml:"shadow_bias"`
	ShadowStrength float32    `toml:"shadow_strength"`
	Ambient        [3]float32 `toml:"ambient"`
}

// StagesConfig lists the shader sets used by each frame stage.
type StagesConfig struct {
	Shadow      []string `toml:"shadow"`
	Forward     []string `toml:"forward"`
	PostProcess []string `toml:"post_process"`
	Resolve     []string `toml:"resolve"`
	Assemble    []string `toml:"assemble"`
}

type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

func Default() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:     "lumen",
			LogLevel: string(core.LogLevelInfo),
			Frames:   1,
		},
		Renderer: RendererConfig{
			Width:         1280,
			Height:        720,
			SurfaceFormat: metadata.FormatBGRA8SRGB.String(),
			HDRFormat:     metadata.FormatRGBA16Float.String(),
			LDRFormat:     metadata.FormatRGBA8Unorm.String(),
			DepthFormat:   metadata.FormatD32Float.String(),
			Samples:       4,
			ShadowMapSize: 2048,
			CascadeCount:  4,
			ShaderDir:     "assets/shaders",
		},
		PostProcess: PostProcessConfig{Exposure: 1, Gamma: 2.2},
		Lighting: LightingConfig{
			SplitLambda:    0.75,
			ShadowBias:     0.005,
			ShadowStrength: 1,
			Ambient:        [3]float32{0.03, 0.03, 0.03},
		},
		Stages: StagesConfig{
			Shadow:      []string{"Shadow"},
			Forward:     []string{"Pbr", "Wireframe"},
			PostProcess: []string{"PpExposure"},
			Resolve:     []string{"PpResolveHdr"},
		},
		Jobs: JobsConfig{Workers: 4, QueueSize: 16},
	}
}

// Load reads a TOML file. Keys missing from the file keep their default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders the configuration as TOML, e.g. to write out the defaults.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) Validate() error {
	var errs []error
	r := c.Renderer
	if r.Width == 0 || r.Height == 0 {
		errs = append(errs, fmt.Errorf("renderer: width and height must be greater than 0"))
	}
	if r.Samples == 0 || r.Samples&(r.Samples-1) != 0 || r.Samples > 64 {
		errs = append(errs, fmt.Errorf("renderer: samples must be a power of two up to 64, have %d", r.Samples))
	}
	if r.ShadowMapSize == 0 {
		errs = append(errs, fmt.Errorf("renderer: shadow_map_size must be greater than 0"))
	}
	if r.CascadeCount == 0 || r.CascadeCount > 4 {
		errs = append(errs, fmt.Errorf("renderer: cascade_count must be between 1 and 4, have %d", r.CascadeCount))
	}
	for key, name := range map[string]string{
		"surface_format": r.SurfaceFormat,
		"hdr_format":     r.HDRFormat,
		"ldr_format":     r.LDRFormat,
		"depth_format":   r.DepthFormat,
	} {
		f, ok := metadata.ParseFormat(name)
		switch {
		case !ok || f == metadata.FormatUndefined:
			errs = append(errs, fmt.Errorf("renderer: %s: unknown format `%s`", key, name))
		case key == "depth_format" && !f.IsDepth():
			errs = append(errs, fmt.Errorf("renderer: depth_format `%s` is not a depth format", name))
		case key != "depth_format" && f.IsDepth():
			errs = append(errs, fmt.Errorf("renderer: %s `%s` is a depth format", key, name))
		}
	}
	if c.PostProcess.Gamma <= 0 {
		errs = append(errs, fmt.Errorf("post_process: gamma must be greater than 0"))
	}
	if l := c.Lighting.SplitLambda; l < 0 || l > 1 {
		errs = append(errs, fmt.Errorf("lighting: split_lambda must be between 0 and 1"))
	}
	if c.Jobs.Workers <= 0 || c.Jobs.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("jobs: workers must be greater than 0 and queue_size not negative"))
	}
	switch core.LogLevel(c.Application.LogLevel) {
	case core.LogLevelDebug, core.LogLevelInfo, core.LogLevelWarn, core.LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("application: unknown log_level `%s`", c.Application.LogLevel))
	}
	return errors.Join(errs...)
}

// Format parses one of the renderer format keys; the config must have been validated.
func Format(name string) metadata.Format {
	f, _ := metadata.ParseFormat(name)
	return f
}

// StageTechniques maps the stage lists onto frame stages. Empty stages are left out.
func (s StagesConfig) StageTechniques() map[metadata.FrameStage][]string {
	out := make(map[metadata.FrameStage][]string)
	for stage, names := range map[metadata.FrameStage][]string{
		metadata.FrameStageShadow:      s.Shadow,
		metadata.FrameStageForward:     s.Forward,
		metadata.FrameStagePostProcess: s.PostProcess,
		metadata.FrameStageResolve:     s.Resolve,
		metadata.FrameStageAssemble:    s.Assemble,
	} {
		if len(names) > 0 {
			out[stage] = append([]string(nil), names...)
		}
	}
	return out
}
