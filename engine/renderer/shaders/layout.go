package shaders

import (
	"unsafe"

	"github.com/spaghettifunk/lumen/engine/math"
)

// Uniform layouts are fixed arrays of float32 so their byte size equals the
// std140 block the programs declare.

// CameraLayout is bound through the CameraData family.
//
//	[0:16]  | view-projection matrix
//	[16:32] | view matrix
//	[32:48] | projection matrix
//	[48:51] | camera position
//	[51]    | (unused)
//	[52]    | near plane
//	[53]    | far plane
//	[54:64] | (unused)
type CameraLayout [64]float32

func (l *CameraLayout) SetViewProjection(m math.Mat4) { copy(l[0:16], m.Data[:]) }
func (l *CameraLayout) SetView(m math.Mat4)           { copy(l[16:32], m.Data[:]) }
func (l *CameraLayout) SetProjection(m math.Mat4)     { copy(l[32:48], m.Data[:]) }
func (l *CameraLayout) SetPosition(p math.Vec3)       { l[48], l[49], l[50] = p.X, p.Y, p.Z }
func (l *CameraLayout) SetClip(near, far float32)     { l[52], l[53] = near, far }

// MaxLights is the number of LightLayout entries in the Lights block.
const MaxLights = 16

// Light types.
const (
	DirectionalLight int32 = iota
	PointLight
)

// LightLayout is one light inside LightsLayout.
//
//	[0]     | light type
//	[1]     | intensity
//	[2]     | range
//	[3]     | whether the light casts shadows
//	[4:7]   | color
//	[7]     | (unused)
//	[8:11]  | position
//	[11]    | (unused)
//	[12:15] | direction
//	[15]    | (unused)
type LightLayout [16]float32

func (l *LightLayout) SetType(typ int32)         { l[0] = *(*float32)(unsafe.Pointer(&typ)) }
func (l *LightLayout) SetIntensity(i float32)    { l[1] = i }
func (l *LightLayout) SetRange(r float32)        { l[2] = r }
func (l *LightLayout) SetColor(c math.Vec3)      { l[4], l[5], l[6] = c.X, c.Y, c.Z }
func (l *LightLayout) SetPosition(p math.Vec3)   { l[8], l[9], l[10] = p.X, p.Y, p.Z }
func (l *LightLayout) SetDirection(d math.Vec3)  { l[12], l[13], l[14] = d.X, d.Y, d.Z }
func (l *LightLayout) SetCastsShadows(cast bool) { l[3] = boolFloat(cast) }

// LightsLayout is bound through the Lights family.
//
//	[0]    | light count, as int32
//	[1:4]  | ambient color
//	[4:]   | MaxLights x LightLayout
type LightsLayout struct {
	Header [4]float32
	Lights [MaxLights]LightLayout
}

func (l *LightsLayout) SetCount(n int32)       { l.Header[0] = *(*float32)(unsafe.Pointer(&n)) }
func (l *LightsLayout) SetAmbient(c math.Vec3) { l.Header[1], l.Header[2], l.Header[3] = c.X, c.Y, c.Z }

// MaxCascades bounds the cascade count of the shadow map.
const MaxCascades = 4

// CascadeLayout is bound through the CascadedCameraInfo family.
//
//	[0:64]  | one light view-projection matrix per cascade
type CascadeLayout [16 * MaxCascades]float32

func (l *CascadeLayout) SetViewProjection(cascade int, m math.Mat4) {
	copy(l[cascade*16:(cascade+1)*16], m.Data[:])
}

// ShadowMaskLayout is the uniform part of the ShadowMaskInfo family.
//
//	[0:4]  | far split distance of each cascade
//	[4]    | cascade count, as int32
//	[5]    | depth bias
//	[6]    | shadow strength, 0 disables shadows
//	[7]    | (unused)
type ShadowMaskLayout [8]float32

func (l *ShadowMaskLayout) SetSplit(cascade int, far float32) { l[cascade] = far }
func (l *ShadowMaskLayout) SetCount(n int32)                  { l[4] = *(*float32)(unsafe.Pointer(&n)) }
func (l *ShadowMaskLayout) SetBias(b float32)                 { l[5] = b }
func (l *ShadowMaskLayout) SetStrength(s float32)             { l[6] = s }

// MaterialLayout is bound through the MaterialData family.
//
//	[0:4]  | base color factor
//	[4]    | metallic factor
//	[5]    | roughness factor
//	[6]    | normal scale
//	[7]    | (unused)
//	[8:11] | emissive factor
//	[11]   | (unused)
type MaterialLayout [12]float32

func (l *MaterialLayout) SetBaseColor(c math.Vec4) { l[0], l[1], l[2], l[3] = c.X, c.Y, c.Z, c.W }
func (l *MaterialLayout) SetMetallic(m float32)    { l[4] = m }
func (l *MaterialLayout) SetRoughness(r float32)   { l[5] = r }
func (l *MaterialLayout) SetNormalScale(s float32) { l[6] = s }
func (l *MaterialLayout) SetEmissive(e math.Vec3)  { l[8], l[9], l[10] = e.X, e.Y, e.Z }

// PostProcessLayout is the uniform part of the PostProcessData family.
//
//	[0]   | exposure
//	[1]   | gamma
//	[2]   | sample count of the source, as int32
//	[3]   | (unused)
type PostProcessLayout [4]float32

func (l *PostProcessLayout) SetExposure(e float32) { l[0] = e }
func (l *PostProcessLayout) SetGamma(g float32)    { l[1] = g }
func (l *PostProcessLayout) SetSamples(n int32)    { l[2] = *(*float32)(unsafe.Pointer(&n)) }

// ModelPushConstant is pushed before every mesh draw.
//
//	[0:16] | model matrix
type ModelPushConstant [16]float32

func (l *ModelPushConstant) SetModel(m math.Mat4) { copy(l[:], m.Data[:]) }

// Bytes returns the memory of a layout value for upload.
func Bytes[T any](layout *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(layout)), unsafe.Sizeof(*layout))
}

// Float32 reads a float32 at index i of a byte slice produced by Bytes.
func Float32(b []byte, i int) float32 {
	return *(*float32)(unsafe.Pointer(&b[i*4]))
}

func boolFloat(b bool) float32 {
	var bool32 int32
	if b {
		bool32 = 1
	}
	return *(*float32)(unsafe.Pointer(&bool32))
}
