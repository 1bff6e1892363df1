package math

import "github.com/go-gl/mathgl/mgl32"

func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3One() Vec3 {
	return Vec3{X: 1, Y: 1, Z: 1}
}

func NewVec3Up() Vec3 {
	return Vec3{Y: 1}
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func (v Vec3) gl() mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}

func vec3FromGL(v mgl32.Vec3) Vec3 {
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return vec3FromGL(v.gl().Add(other.gl()))
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return vec3FromGL(v.gl().Sub(other.gl()))
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return vec3FromGL(v.gl().Mul(scalar))
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.gl().Dot(other.gl())
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return vec3FromGL(v.gl().Cross(other.gl()))
}

func (v Vec3) Length() float32 {
	return v.gl().Len()
}

// Normalized returns a unit length copy of v. The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	if v.Length() == 0 {
		return v
	}
	return vec3FromGL(v.gl().Normalize())
}

// Min returns the component-wise minimum.
func (v Vec3) Min(other Vec3) Vec3 {
	return Vec3{X: min(v.X, other.X), Y: min(v.Y, other.Y), Z: min(v.Z, other.Z)}
}

// Max returns the component-wise maximum.
func (v Vec3) Max(other Vec3) Vec3 {
	return Vec3{X: max(v.X, other.X), Y: max(v.Y, other.Y), Z: max(v.Z, other.Z)}
}

// Compare reports whether every component of v is within tolerance of other.
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	return within(v.X, other.X, tolerance) && within(v.Y, other.Y, tolerance) && within(v.Z, other.Z, tolerance)
}

/**
 * @brief Transform v by m. NOTE: This function assumes the vector v is a point,
 * not a direction, and is calculated as if a w component with a value of 1.0f is there.
 */
func (v Vec3) Transform(m Mat4) Vec3 {
	return vec3FromGL(mgl32.TransformCoordinate(v.gl(), m.gl()))
}

func (v Vec3) ToVec4(w float32) Vec4 {
	return Vec4{X: v.X, Y: v.Y, Z: v.Z, W: w}
}

func (v Vec4) ToVec3() Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}
