package drawables

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
	"github.com/spaghettifunk/lumen/engine/systems"
)

/**
 * @brief Draws the edges of a geometry in the Forward stage, e.g. the
 * outline of a bounding box while debugging culling.
 */
type Wireframe struct {
	Name     string
	Geometry *components.Geometry
	// owned is set when the wireframe created its geometry and must destroy it.
	owned bool
}

func NewWireframe(name string, geometry *components.Geometry) *Wireframe {
	return &Wireframe{Name: name, Geometry: geometry}
}

// NewBoxWireframe outlines the twelve edges of the given extents.
func NewBoxWireframe(device renderer.RendererBackend, name string, extents math.Extents3D) (*Wireframe, error) {
	vertices, indices := components.BoxEdgeVertices(extents)
	g, err := components.NewGeometry(device, name, vertices, indices)
	if err != nil {
		return nil, err
	}
	return &Wireframe{Name: name, Geometry: g, owned: true}, nil
}

func (w *Wireframe) Draw(stage metadata.FrameStage, frames *systems.FrameSystem, lights *systems.LightSystem, transform math.Mat4) metadata.FrameStage {
	if stage != metadata.FrameStageForward {
		return stage
	}
	_ = frames.Draw(stage, systems.DrawCall{
		ShaderSet: shaders.ShaderSetWireframe,
		Geometry:  w.Geometry,
		Transform: transform,
	})
	return stage
}

func (w *Wireframe) GetBound() math.Extents3D {
	if w.Geometry == nil {
		return math.Extents3D{}
	}
	return w.Geometry.Extents
}

func (w *Wireframe) GetName() string {
	return w.Name
}

// Destroy releases the geometry if the wireframe created it.
func (w *Wireframe) Destroy(device renderer.RendererBackend) error {
	if !w.owned || w.Geometry == nil {
		return nil
	}
	err := w.Geometry.Destroy(device)
	w.Geometry = nil
	return err
}

var _ systems.RenderAble = (*Wireframe)(nil)
