package math

import "github.com/go-gl/mathgl/mgl32"

// Mat4 shares its memory layout with mgl32.Mat4. a.Mul(b) applies a first and b second.

func (mt Mat4) gl() mgl32.Mat4 {
	return mgl32.Mat4(mt.Data)
}

func mat4FromGL(m mgl32.Mat4) Mat4 {
	return Mat4{Data: [16]float32(m)}
}

func NewMat4Identity() Mat4 {
	return mat4FromGL(mgl32.Ident4())
}

/**
 * @brief Returns the result of multiplying mt and other. The resulting matrix
 * applies mt first and other second.
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	return mat4FromGL(other.gl().Mul4(mt.gl()))
}

func (mt Mat4) Inverse() Mat4 {
	return mat4FromGL(mt.gl().Inv())
}

func (mt Mat4) Transposed() Mat4 {
	return mat4FromGL(mt.gl().Transpose())
}

// ApproxEqual reports whether every element of mt is within tolerance of other.
func (mt Mat4) ApproxEqual(other Mat4, tolerance float32) bool {
	for i := range mt.Data {
		if !within(mt.Data[i], other.Data[i], tolerance) {
			return false
		}
	}
	return true
}

func NewMat4Translation(position Vec3) Mat4 {
	return mat4FromGL(mgl32.Translate3D(position.X, position.Y, position.Z))
}

func NewMat4Scale(scale Vec3) Mat4 {
	return mat4FromGL(mgl32.Scale3D(scale.X, scale.Y, scale.Z))
}

/**
 * @brief Creates a perspective projection for Vulkan clip space: y points down
 * and depth maps to [0, 1].
 */
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	f := 1 / Tan(fovRadians*0.5)
	fmn := farClip - nearClip
	return Mat4{Data: [16]float32{
		f / aspectRatio, 0, 0, 0,
		0, -f, 0, 0,
		0, 0, -farClip / fmn, -1,
		0, 0, -(farClip * nearClip) / fmn, 0,
	}}
}

/**
 * @brief Creates an orthographic projection for Vulkan clip space, used by the
 * shadow cascades.
 */
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	lr := 1 / (right - left)
	bt := 1 / (bottom - top)
	fn := 1 / (farClip - nearClip)
	return Mat4{Data: [16]float32{
		2 * lr, 0, 0, 0,
		0, 2 * bt, 0, 0,
		0, 0, -fn, 0,
		-(right + left) * lr, -(bottom + top) * bt, -nearClip * fn, 1,
	}}
}

func NewMat4LookAt(position, target, up Vec3) Mat4 {
	return mat4FromGL(mgl32.LookAtV(position.gl(), target.gl(), up.gl()))
}

func NewQuatIdentity() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) gl() mgl32.Quat {
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{q.X, q.Y, q.Z}}
}

func quatFromGL(q mgl32.Quat) Quaternion {
	return Quaternion{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

func NewQuatFromAxisAngle(axis Vec3, angle float32) Quaternion {
	return quatFromGL(mgl32.QuatRotate(angle, axis.Normalized().gl()))
}

func (q Quaternion) Mul(other Quaternion) Quaternion {
	return quatFromGL(q.gl().Mul(other.gl()))
}

func (q Quaternion) ToMat4() Mat4 {
	return mat4FromGL(q.gl().Normalize().Mat4())
}
