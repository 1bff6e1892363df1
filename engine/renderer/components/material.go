package components

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shaders"
)

/**
 * @brief PBR surface parameters and the descriptor sets that bind them.
 * Textures are optional, but only all of them together: a material without
 * a complete texture set leaves MaterialTextures to the frame defaults.
 */
type Material struct {
	Name        string
	BaseColor   math.Vec4
	Metallic    float32
	Roughness   float32
	NormalScale float32
	Emissive    math.Vec3
	Textures    [shaders.MaterialTextureCount]*metadata.Image

	buffer *metadata.RenderBuffer
	sets   map[shaders.DescriptorSetFamily]*metadata.DescriptorSet
}

func NewMaterial(name string) *Material {
	return &Material{
		Name:        name,
		BaseColor:   math.NewVec4(1, 1, 1, 1),
		Metallic:    0,
		Roughness:   1,
		NormalScale: 1,
		sets:        make(map[shaders.DescriptorSetFamily]*metadata.DescriptorSet),
	}
}

func (m *Material) layout() shaders.MaterialLayout {
	var l shaders.MaterialLayout
	l.SetBaseColor(m.BaseColor)
	l.SetMetallic(m.Metallic)
	l.SetRoughness(m.Roughness)
	l.SetNormalScale(m.NormalScale)
	l.SetEmissive(m.Emissive)
	return l
}

func (m *Material) hasTextures() bool {
	for _, t := range m.Textures {
		if t == nil {
			return false
		}
	}
	return true
}

/**
 * @brief Writes the current parameters to the device. The uniform buffer and
 * descriptor sets are created on the first call and reused afterwards.
 */
func (m *Material) Upload(device renderer.RendererBackend, layouts shaders.DescriptorLayouts) error {
	if m.sets == nil {
		m.sets = make(map[shaders.DescriptorSetFamily]*metadata.DescriptorSet)
	}
	l := m.layout()

	if m.buffer == nil {
		buf, err := device.RenderBufferCreate(metadata.RENDERBUFFER_TYPE_UNIFORM, uint64(unsafe.Sizeof(l)))
		if err != nil {
			return m.fail(device, err)
		}
		m.buffer = buf
		set, err := allocate(device, layouts, shaders.MaterialData, []metadata.DescriptorWrite{{
			Binding: 0, Buffer: buf, Range: buf.TotalSize,
		}})
		if err != nil {
			return m.fail(device, err)
		}
		m.sets[shaders.MaterialData] = set
	}

	if _, ok := m.sets[shaders.MaterialTextures]; !ok && m.hasTextures() {
		writes := make([]metadata.DescriptorWrite, 0, len(m.Textures))
		for i, img := range m.Textures {
			writes = append(writes, metadata.DescriptorWrite{Binding: uint32(i), Image: img})
		}
		set, err := allocate(device, layouts, shaders.MaterialTextures, writes)
		if err != nil {
			return m.fail(device, err)
		}
		m.sets[shaders.MaterialTextures] = set
	}

	if err := device.RenderBufferLoadRange(m.buffer, 0, shaders.Bytes(&l)); err != nil {
		return m.fail(device, err)
	}
	return nil
}

func allocate(device renderer.RendererBackend, layouts shaders.DescriptorLayouts, family shaders.DescriptorSetFamily, writes []metadata.DescriptorWrite) (*metadata.DescriptorSet, error) {
	layout, err := layouts.DescriptorLayout(family)
	if err != nil {
		return nil, err
	}
	set, err := device.DescriptorSetAllocate(layout)
	if err != nil {
		return nil, err
	}
	if err := device.DescriptorSetUpdate(set, writes); err != nil {
		return nil, err
	}
	return set, nil
}

func (m *Material) fail(device renderer.RendererBackend, cause error) error {
	err := fmt.Errorf("material `%s`: %w", m.Name, cause)
	core.LogError(err.Error())
	return err
}

// Sets returns the per draw descriptor sets of the material, keyed by family.
func (m *Material) Sets() map[shaders.DescriptorSetFamily]*metadata.DescriptorSet {
	if m == nil {
		return nil
	}
	return m.sets
}

// Destroy releases the uniform buffer. Textures belong to the caller.
func (m *Material) Destroy(device renderer.RendererBackend) error {
	var err error
	if m.buffer != nil {
		err = errors.Join(err, device.RenderBufferDestroy(m.buffer))
		m.buffer = nil
	}
	clear(m.sets)
	return err
}
