package drawables

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/systems"
)

// ShadowCaster renders a geometry into every shadow cascade, one instance per cascade.
type ShadowCaster struct {
	Name     string
	Geometry *components.Geometry
}

func NewShadowCaster(name string, geometry *components.Geometry) *ShadowCaster {
	return &ShadowCaster{Name: name, Geometry: geometry}
}

func (s *ShadowCaster) Draw(stage metadata.FrameStage, frames *systems.FrameSystem, lights *systems.LightSystem, transform math.Mat4) metadata.FrameStage {
	if stage != metadata.FrameStageShadow || !lights.CastsShadows() {
		return stage
	}
	_ = frames.Draw(stage, systems.DrawCall{
		ShaderSet: shaders.ShaderSetShadow,
		Geometry:  s.Geometry,
		Transform: transform,
		Instances: frames.Cascades(),
	})
	return stage
}

func (s *ShadowCaster) GetBound() math.Extents3D {
	if s.Geometry == nil {
		return math.Extents3D{}
	}
	return s.Geometry.Extents
}

func (s *ShadowCaster) GetName() string {
	return s.Name
}

var _ systems.RenderAble = (*ShadowCaster)(nil)
