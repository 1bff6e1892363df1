package metadata

import "github.com/spaghettifunk/lumen/engine/core"

/** @brief Shader stages available in the system. */
type ShaderStage int

const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageGeometry ShaderStage = 0x00000002
	ShaderStageFragment ShaderStage = 0x00000004
	ShaderStageCompute  ShaderStage = 0x0000008
)

// FileSuffix is the stage part of a compiled program file name, e.g. pbr.vert.spv.
func (s ShaderStage) FileSuffix() string {
	switch s {
	case ShaderStageVertex:
		return "vert"
	case ShaderStageGeometry:
		return "geom"
	case ShaderStageFragment:
		return "frag"
	case ShaderStageCompute:
		return "comp"
	}
	return "unknown"
}

func (s ShaderStage) String() string {
	return s.FileSuffix()
}

/** @brief A compiled shader program loaded on the device. Immutable once created. */
type ShaderModule struct {
	Handle core.Handle
	Name   string
	Stage  ShaderStage
}

/** @brief Available attribute types. */
type ShaderAttributeType uint

const (
	ShaderAttribTypeFloat32   ShaderAttributeType = 0
	ShaderAttribTypeFloat32_2 ShaderAttributeType = 1
	ShaderAttribTypeFloat32_3 ShaderAttributeType = 2
	ShaderAttribTypeFloat32_4 ShaderAttributeType = 3
	ShaderAttribTypeInt32     ShaderAttributeType = 9
	ShaderAttribTypeUint32    ShaderAttributeType = 10
)

// Size in bytes.
func (t ShaderAttributeType) Size() uint32 {
	switch t {
	case ShaderAttribTypeFloat32, ShaderAttribTypeInt32, ShaderAttribTypeUint32:
		return 4
	case ShaderAttribTypeFloat32_2:
		return 8
	case ShaderAttribTypeFloat32_3:
		return 12
	case ShaderAttribTypeFloat32_4:
		return 16
	}
	return 0
}

/**
 * @brief Represents a single shader vertex attribute.
 */
type ShaderAttribute struct {
	/** @brief The attribute Name. */
	Name     string
	Location uint32
	Type     ShaderAttributeType
	Offset   uint32
}

/** @brief The vertex input of a pipeline: one interleaved buffer. */
type VertexLayout struct {
	Stride     uint32
	Attributes []ShaderAttribute
}

// NewVertexLayout packs the attributes in order and assigns locations and offsets.
func NewVertexLayout(attributes ...ShaderAttribute) VertexLayout {
	layout := VertexLayout{Attributes: make([]ShaderAttribute, len(attributes))}
	for i, a := range attributes {
		a.Location = uint32(i)
		a.Offset = layout.Stride
		layout.Stride += a.Type.Size()
		layout.Attributes[i] = a
	}
	return layout
}

// Validate reports whether every attribute lies inside the stride and locations are unique.
func (l VertexLayout) Validate() bool {
	if l.Stride == 0 || len(l.Attributes) == 0 {
		return false
	}
	seen := make(map[uint32]bool, len(l.Attributes))
	for _, a := range l.Attributes {
		size := a.Type.Size()
		if size == 0 || a.Offset+size > l.Stride || seen[a.Location] {
			return false
		}
		seen[a.Location] = true
	}
	return true
}
