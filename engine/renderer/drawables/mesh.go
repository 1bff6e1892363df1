// Package drawables holds the RenderAble implementations the frame system draws.
package drawables

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/systems"
)

/**
 * @brief A shaded mesh. Drawn in the Forward stage with the Pbr shader set,
 * or another forward technique when ShaderSet is changed.
 */
type Mesh struct {
	Name      string
	Geometry  *components.Geometry
	Material  *components.Material
	ShaderSet string
}

func NewMesh(name string, geometry *components.Geometry, material *components.Material) *Mesh {
	return &Mesh{
		Name:      name,
		Geometry:  geometry,
		Material:  material,
		ShaderSet: shaders.ShaderSetPbr,
	}
}

func (m *Mesh) Draw(stage metadata.FrameStage, frames *systems.FrameSystem, lights *systems.LightSystem, transform math.Mat4) metadata.FrameStage {
	if stage != metadata.FrameStageForward {
		return stage
	}
	// failures are logged by the frame system and only skip this mesh
	_ = frames.Draw(stage, systems.DrawCall{
		ShaderSet: m.ShaderSet,
		Geometry:  m.Geometry,
		Transform: transform,
		Sets:      m.Material.Sets(),
	})
	return stage
}

func (m *Mesh) GetBound() math.Extents3D {
	if m.Geometry == nil {
		return math.Extents3D{}
	}
	return m.Geometry.Extents
}

func (m *Mesh) GetName() string {
	return m.Name
}

var _ systems.RenderAble = (*Mesh)(nil)
