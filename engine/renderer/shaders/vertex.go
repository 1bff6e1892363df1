package shaders

import (
	"unsafe"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief The vertex consumed by the mesh techniques (PBR, wireframe, shadow).
 */
type PbrVertex struct {
	Position math.Vec3
	Normal   math.Vec3
	Texcoord math.Vec2
	Tangent  math.Vec4
}

/** @brief A full screen quad vertex used by the post-process techniques. */
type ScreenVertex struct {
	Position math.Vec2
	Texcoord math.Vec2
}

func PbrVertexLayout() metadata.VertexLayout {
	return metadata.NewVertexLayout(
		metadata.ShaderAttribute{Name: "in_position", Type: metadata.ShaderAttribTypeFloat32_3},
		metadata.ShaderAttribute{Name: "in_normal", Type: metadata.ShaderAttribTypeFloat32_3},
		metadata.ShaderAttribute{Name: "in_texcoord", Type: metadata.ShaderAttribTypeFloat32_2},
		metadata.ShaderAttribute{Name: "in_tangent", Type: metadata.ShaderAttribTypeFloat32_4},
	)
}

func ScreenVertexLayout() metadata.VertexLayout {
	return metadata.NewVertexLayout(
		metadata.ShaderAttribute{Name: "in_position", Type: metadata.ShaderAttribTypeFloat32_2},
		metadata.ShaderAttribute{Name: "in_texcoord", Type: metadata.ShaderAttribTypeFloat32_2},
	)
}

// VertexBytes reinterprets a vertex slice as the bytes uploaded to a vertex buffer.
func VertexBytes[T PbrVertex | ScreenVertex](vertices []T) []byte {
	if len(vertices) == 0 {
		return nil
	}
	var v T
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(unsafe.Sizeof(v)))
}

func IndexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

// FullScreenQuad covers clip space with two triangles, texcoord origin top left.
func FullScreenQuad() ([]ScreenVertex, []uint32) {
	vertices := []ScreenVertex{
		{Position: math.NewVec2(-1, -1), Texcoord: math.NewVec2(0, 0)},
		{Position: math.NewVec2(1, -1), Texcoord: math.NewVec2(1, 0)},
		{Position: math.NewVec2(1, 1), Texcoord: math.NewVec2(1, 1)},
		{Position: math.NewVec2(-1, 1), Texcoord: math.NewVec2(0, 1)},
	}
	return vertices, []uint32{0, 1, 2, 2, 3, 0}
}
