package components

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

/**
 * @brief Vertex and index data uploaded to the device, plus the local
 * space bound used for culling. IndexBuffer is nil for non indexed geometry.
 */
type Geometry struct {
	Name         string
	VertexBuffer *metadata.RenderBuffer
	IndexBuffer  *metadata.RenderBuffer
	VertexCount  uint32
	IndexCount   uint32
	Extents      math.Extents3D
}

// NewGeometry uploads mesh vertices and computes their bound.
func NewGeometry(device renderer.RendererBackend, name string, vertices []shaders.PbrVertex, indices []uint32) (*Geometry, error) {
	if len(vertices) == 0 {
		err := fmt.Errorf("geometry `%s` has no vertices", name)
		core.LogError(err.Error())
		return nil, err
	}
	g, err := upload(device, name, shaders.VertexBytes(vertices), uint32(len(vertices)), indices)
	if err != nil {
		return nil, err
	}
	g.Extents = math.Extents3D{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		g.Extents.Min = g.Extents.Min.Min(v.Position)
		g.Extents.Max = g.Extents.Max.Max(v.Position)
	}
	return g, nil
}

// NewScreenGeometry uploads full screen vertices. Its bound is the clip space square.
func NewScreenGeometry(device renderer.RendererBackend, name string, vertices []shaders.ScreenVertex, indices []uint32) (*Geometry, error) {
	g, err := upload(device, name, shaders.VertexBytes(vertices), uint32(len(vertices)), indices)
	if err != nil {
		return nil, err
	}
	g.Extents = math.Extents3D{Min: math.NewVec3(-1, -1, 0), Max: math.NewVec3(1, 1, 0)}
	return g, nil
}

func upload(device renderer.RendererBackend, name string, vertexData []byte, vertexCount uint32, indices []uint32) (*Geometry, error) {
	g := &Geometry{Name: name, VertexCount: vertexCount, IndexCount: uint32(len(indices))}

	vb, err := device.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_VERTEX, uint64(len(vertexData)))
	if err != nil {
		err = fmt.Errorf("geometry `%s`: vertex buffer: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}
	g.VertexBuffer = vb
	if err := device.RenderBufferLoadRange(vb, 0, vertexData); err != nil {
		return nil, g.fail(device, err)
	}

	if len(indices) > 0 {
		data := shaders.IndexBytes(indices)
		ib, err := device.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_INDEX, uint64(len(data)))
		if err != nil {
			return nil, g.fail(device, err)
		}
		g.IndexBuffer = ib
		if err := device.RenderBufferLoadRange(ib, 0, data); err != nil {
			return nil, g.fail(device, err)
		}
	}
	return g, nil
}

func (g *Geometry) fail(device renderer.RendererBackend, cause error) error {
	err := fmt.Errorf("geometry `%s`: %w", g.Name, cause)
	if derr := g.Destroy(device); derr != nil {
		err = errors.Join(err, derr)
	}
	core.LogError(err.Error())
	return err
}

func (g *Geometry) Indexed() bool {
	return g.IndexBuffer != nil && g.IndexCount > 0
}

func (g *Geometry) Destroy(device renderer.RendererBackend) error {
	var err error
	if g.VertexBuffer != nil {
		err = errors.Join(err, device.RenderBufferDestroy(g.VertexBuffer))
		g.VertexBuffer = nil
	}
	if g.IndexBuffer != nil {
		err = errors.Join(err, device.RenderBufferDestroy(g.IndexBuffer))
		g.IndexBuffer = nil
	}
	return err
}

// BoxVertices builds a box covering the extents, four vertices per face so
// every face has its own normal.
func BoxVertices(e math.Extents3D) ([]shaders.PbrVertex, []uint32) {
	type face struct {
		normal  math.Vec3
		tangent math.Vec4
		corners [4]math.Vec3
	}
	lo, hi := e.Min, e.Max
	faces := []face{
		{math.NewVec3(0, 0, 1), math.NewVec4(1, 0, 0, 1), [4]math.Vec3{{X: lo.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z}}},
		{math.NewVec3(0, 0, -1), math.NewVec4(-1, 0, 0, 1), [4]math.Vec3{{X: hi.X, Y: lo.Y, Z: lo.Z}, {X: lo.X, Y: lo.Y, Z: lo.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z}, {X: hi.X, Y: hi.Y, Z: lo.Z}}},
		{math.NewVec3(1, 0, 0), math.NewVec4(0, 0, -1, 1), [4]math.Vec3{{X: hi.X, Y: lo.Y, Z: hi.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: hi.Y, Z: lo.Z}, {X: hi.X, Y: hi.Y, Z: hi.Z}}},
		{math.NewVec3(-1, 0, 0), math.NewVec4(0, 0, 1, 1), [4]math.Vec3{{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: lo.X, Y: lo.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: hi.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z}}},
		{math.NewVec3(0, 1, 0), math.NewVec4(1, 0, 0, 1), [4]math.Vec3{{X: lo.X, Y: hi.Y, Z: hi.Z}, {X: hi.X, Y: hi.Y, Z: hi.Z}, {X: hi.X, Y: hi.Y, Z: lo.Z}, {X: lo.X, Y: hi.Y, Z: lo.Z}}},
		{math.NewVec3(0, -1, 0), math.NewVec4(1, 0, 0, 1), [4]math.Vec3{{X: lo.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: lo.Z}, {X: hi.X, Y: lo.Y, Z: hi.Z}, {X: lo.X, Y: lo.Y, Z: hi.Z}}},
	}
	uvs := [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}

	vertices := make([]shaders.PbrVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, shaders.PbrVertex{Position: c, Normal: f.normal, Texcoord: uvs[i], Tangent: f.tangent})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}

// boxEdges lists the corner pairs of the twelve box edges, corners indexed
// by bit 0 = x, bit 1 = y, bit 2 = z picking the max extent.
var boxEdges = [12][2]uint32{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// BoxEdgeVertices builds the outline of the extents for line polygon mode.
// Each edge is a degenerate triangle (a, b, b), so only the edge a-b is
// rasterized and the faces show no diagonals.
func BoxEdgeVertices(e math.Extents3D) ([]shaders.PbrVertex, []uint32) {
	vertices := make([]shaders.PbrVertex, 8)
	for i := range vertices {
		c := e.Min
		if i&1 != 0 {
			c.X = e.Max.X
		}
		if i&2 != 0 {
			c.Y = e.Max.Y
		}
		if i&4 != 0 {
			c.Z = e.Max.Z
		}
		vertices[i] = shaders.PbrVertex{Position: c}
	}
	indices := make([]uint32, 0, len(boxEdges)*3)
	for _, edge := range boxEdges {
		indices = append(indices, edge[0], edge[1], edge[1])
	}
	return vertices, indices
}
