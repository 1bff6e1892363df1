package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/renderertest"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

const epsilon = 1e-4

type layouts struct {
	device *renderertest.Backend
	cache  map[shaders.DescriptorSetFamily]*metadata.DescriptorSetLayout
}

func (l *layouts) DescriptorLayout(f shaders.DescriptorSetFamily) (*metadata.DescriptorSetLayout, error) {
	if layout, ok := l.cache[f]; ok {
		return layout, nil
	}
	layout, err := l.device.DescriptorSetLayoutCreate(f.Bindings())
	if err != nil {
		return nil, err
	}
	l.cache[f] = layout
	return layout, nil
}

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.True(t, c.GetView().ApproxEqual(math.NewMat4Identity(), epsilon))
	assert.True(t, c.Forward().Compare(math.NewVec3(0, 0, -1), epsilon))
	assert.True(t, c.Right().Compare(math.NewVec3(1, 0, 0), epsilon))
	assert.Equal(t, float32(0.1), c.NearClip)
	assert.Equal(t, float32(1000), c.FarClip)
}

func TestCameraView(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.NewVec3(0, 0, 5))

	p := math.NewVec3Zero().Transform(c.GetView())
	assert.True(t, p.Compare(math.NewVec3(0, 0, -5), epsilon), "got %v", p)

	c.MoveForward(2)
	assert.True(t, c.GetPosition().Compare(math.NewVec3(0, 0, 3), epsilon))
	c.MoveUp(1)
	c.MoveRight(1)
	assert.True(t, c.GetPosition().Compare(math.NewVec3(1, 1, 3), epsilon))
}

func TestCameraYawPitch(t *testing.T) {
	c := NewCamera()
	c.Yaw(math.DegToRad(90))
	assert.True(t, c.Forward().Compare(math.NewVec3(-1, 0, 0), epsilon), "got %v", c.Forward())

	c.Pitch(math.DegToRad(120))
	assert.InDelta(t, math.DegToRad(89), c.GetEulerRotation().X, epsilon)
	c.Pitch(math.DegToRad(-300))
	assert.InDelta(t, -math.DegToRad(89), c.GetEulerRotation().X, epsilon)

	c.SetEulerRotation(math.NewVec3(3, 0, 0))
	assert.InDelta(t, math.DegToRad(89), c.GetEulerRotation().X, epsilon)
}

func TestCameraProjectionDepthRange(t *testing.T) {
	c := NewCamera()
	c.SetPerspective(math.DegToRad(60), 1, 1, 10)

	near := math.NewVec3(0, 0, -1).Transform(c.GetProjection())
	far := math.NewVec3(0, 0, -10).Transform(c.GetProjection())
	assert.InDelta(t, 0, near.Z, epsilon)
	assert.InDelta(t, 1, far.Z, epsilon)

	// y points down in clip space
	up := math.NewVec3(0, 1, -5).Transform(c.GetProjection())
	assert.Less(t, up.Y, float32(0))

	f := c.Frustum()
	assert.True(t, f.IntersectsExtents(math.Extents3D{Min: math.NewVec3(-1, -1, -6), Max: math.NewVec3(1, 1, -4)}))
	assert.False(t, f.IntersectsExtents(math.Extents3D{Min: math.NewVec3(-1, -1, 11), Max: math.NewVec3(1, 1, 12)}))
	assert.False(t, f.IntersectsExtents(math.Extents3D{Min: math.NewVec3(-1, -1, -20), Max: math.NewVec3(1, 1, -15)}))
}

func TestNewGeometry(t *testing.T) {
	device := renderertest.New()
	box := math.Extents3D{Min: math.NewVec3(-1, -2, -3), Max: math.NewVec3(1, 2, 3)}
	vertices, indices := BoxVertices(box)
	assert.Len(t, vertices, 24)
	assert.Len(t, indices, 36)

	g, err := NewGeometry(device, "box", vertices, indices)
	require.NoError(t, err)
	assert.Equal(t, box, g.Extents)
	assert.True(t, g.Indexed())
	assert.Equal(t, uint32(24), g.VertexCount)
	assert.Equal(t, uint32(36), g.IndexCount)
	assert.Equal(t, shaders.VertexBytes(vertices), device.BufferBytes(g.VertexBuffer))
	assert.Equal(t, 2, device.Live()["buffer"])

	require.NoError(t, g.Destroy(device))
	assert.Equal(t, 0, device.Live()["buffer"])
	assert.Nil(t, g.VertexBuffer)
	require.NoError(t, g.Destroy(device))
}

func TestBoxEdgeVertices(t *testing.T) {
	box := math.Extents3D{Min: math.NewVec3(-1, -2, -3), Max: math.NewVec3(1, 2, 3)}
	vertices, indices := BoxEdgeVertices(box)
	require.Len(t, vertices, 8)
	require.Len(t, indices, 36)

	edges := map[[2]uint32]bool{}
	for i := 0; i < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		// degenerate, so line mode only draws a-b
		require.Equal(t, b, c)
		require.NotEqual(t, a, b)
		pa, pb := vertices[a].Position, vertices[b].Position
		differ := 0
		if pa.X != pb.X {
			differ++
		}
		if pa.Y != pb.Y {
			differ++
		}
		if pa.Z != pb.Z {
			differ++
		}
		// a face diagonal would move along two axes
		assert.Equal(t, 1, differ, "edge %d-%d", a, b)
		if a > b {
			a, b = b, a
		}
		edges[[2]uint32{a, b}] = true
	}
	assert.Len(t, edges, 12)

	g, err := NewGeometry(renderertest.New(), "outline", vertices, indices)
	require.NoError(t, err)
	assert.Equal(t, box, g.Extents)
}

func TestNewGeometryErrors(t *testing.T) {
	device := renderertest.New()
	_, err := NewGeometry(device, "empty", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, device.CreatedCount("buffer"))
}

func TestScreenGeometry(t *testing.T) {
	device := renderertest.New()
	vertices, indices := shaders.FullScreenQuad()
	g, err := NewScreenGeometry(device, "quad", vertices, indices)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), g.VertexCount)
	assert.Equal(t, float32(-1), g.Extents.Min.X)
	assert.Equal(t, float32(1), g.Extents.Max.Y)

	unindexed, err := NewScreenGeometry(device, "tri", vertices[:3], nil)
	require.NoError(t, err)
	assert.False(t, unindexed.Indexed())
	assert.Nil(t, unindexed.IndexBuffer)
}

func TestMaterialUpload(t *testing.T) {
	device := renderertest.New()
	l := &layouts{device: device, cache: make(map[shaders.DescriptorSetFamily]*metadata.DescriptorSetLayout)}

	m := NewMaterial("stone")
	m.BaseColor = math.NewVec4(0.5, 0.4, 0.3, 1)
	m.Roughness = 0.8
	require.NoError(t, m.Upload(device, l))

	sets := m.Sets()
	require.Contains(t, sets, shaders.MaterialData)
	assert.NotContains(t, sets, shaders.MaterialTextures)
	data := device.BufferBytes(m.buffer)
	assert.Equal(t, float32(0.5), shaders.Float32(data, 0))
	assert.Equal(t, float32(0.8), shaders.Float32(data, 5))

	// a second upload reuses the buffer and the set
	first := sets[shaders.MaterialData]
	m.Metallic = 1
	require.NoError(t, m.Upload(device, l))
	assert.Same(t, first, m.Sets()[shaders.MaterialData])
	assert.Equal(t, float32(1), shaders.Float32(device.BufferBytes(m.buffer), 4))
	assert.Equal(t, 1, device.CreatedCount("buffer"))

	require.NoError(t, m.Destroy(device))
	assert.Empty(t, m.Sets())
	assert.Equal(t, 0, device.Live()["buffer"])
}

func TestMaterialTextures(t *testing.T) {
	device := renderertest.New()
	l := &layouts{device: device, cache: make(map[shaders.DescriptorSetFamily]*metadata.DescriptorSetLayout)}
	white, err := device.ImageCreate(&metadata.ImageConfig{Name: "white", Format: metadata.FormatRGBA8Unorm, Width: 1, Height: 1, Usage: metadata.ImageUsageSampled})
	require.NoError(t, err)

	m := NewMaterial("textured")
	m.Textures[0] = white
	require.NoError(t, m.Upload(device, l))
	assert.NotContains(t, m.Sets(), shaders.MaterialTextures)

	for i := range m.Textures {
		m.Textures[i] = white
	}
	require.NoError(t, m.Upload(device, l))
	set := m.Sets()[shaders.MaterialTextures]
	require.NotNil(t, set)
	writes := device.Writes(set)
	require.Len(t, writes, int(shaders.MaterialTextureCount))
	for i, w := range writes {
		assert.Equal(t, uint32(i), w.Binding)
		assert.Same(t, white, w.Image)
	}

	var none *Material
	assert.Nil(t, none.Sets())
}
