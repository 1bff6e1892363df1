package components

import (
	"github.com/spaghettifunk/lumen/engine/math"
)

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

// 89 degrees, keeps the view away from gimbal lock.
const pitchLimit float32 = 1.55334306

/**
 * @brief A perspective camera. Position and rotation feed the view matrix,
 * the projection parameters feed the projection matrix; both are rebuilt
 * lazily when dirty.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * Roll is ignored.
	 */
	EulerRotation math.Vec3
	/** @brief Vertical field of view in radians. */
	FieldOfView float32
	AspectRatio float32
	NearClip    float32
	FarClip     float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.FieldOfView = math.DegToRad(45)
	c.AspectRatio = 16.0 / 9.0
	c.NearClip = 0.1
	c.FarClip = 1000
	c.IsDirty = true
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) GetEulerRotation() math.Vec3 {
	return c.EulerRotation
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -pitchLimit, pitchLimit)
	c.IsDirty = true
}

func (c *Camera) SetPerspective(fovRadians, aspectRatio, nearClip, farClip float32) {
	c.FieldOfView = fovRadians
	c.AspectRatio = aspectRatio
	c.NearClip = nearClip
	c.FarClip = farClip
}

// yaw around world up, then pitch around the local x axis
func (c *Camera) rotation() math.Quaternion {
	yaw := math.NewQuatFromAxisAngle(math.NewVec3Up(), c.EulerRotation.Y)
	pitch := math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), c.EulerRotation.X)
	return yaw.Mul(pitch)
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		world := c.rotation().ToMat4().Mul(math.NewMat4Translation(c.Position))
		c.ViewMatrix = world.Inverse()
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	return math.NewMat4Perspective(c.FieldOfView, c.AspectRatio, c.NearClip, c.FarClip)
}

// GetProjectionRange is the projection of the slice [near, far] of the view volume.
func (c *Camera) GetProjectionRange(near, far float32) math.Mat4 {
	return math.NewMat4Perspective(c.FieldOfView, c.AspectRatio, near, far)
}

/** @brief The view followed by the projection. */
func (c *Camera) GetViewProjection() math.Mat4 {
	return c.GetView().Mul(c.GetProjection())
}

func (c *Camera) Frustum() math.Frustum {
	return math.NewFrustumFromMatrix(c.GetViewProjection())
}

func (c *Camera) Forward() math.Vec3 {
	return math.NewVec3(0, 0, -1).Transform(c.rotation().ToMat4())
}

func (c *Camera) Backward() math.Vec3 {
	return c.Forward().MulScalar(-1)
}

func (c *Camera) Right() math.Vec3 {
	return math.NewVec3(1, 0, 0).Transform(c.rotation().ToMat4())
}

func (c *Camera) Left() math.Vec3 {
	return c.Right().MulScalar(-1)
}

func (c *Camera) move(direction math.Vec3, amount float32) {
	c.Position = c.Position.Add(direction.MulScalar(amount))
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32)  { c.move(c.Forward(), amount) }
func (c *Camera) MoveBackward(amount float32) { c.move(c.Backward(), amount) }
func (c *Camera) MoveLeft(amount float32)     { c.move(c.Left(), amount) }
func (c *Camera) MoveRight(amount float32)    { c.move(c.Right(), amount) }
func (c *Camera) MoveUp(amount float32)       { c.move(math.NewVec3Up(), amount) }
func (c *Camera) MoveDown(amount float32)     { c.move(math.NewVec3Up(), -amount) }

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation.Y += amount
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.EulerRotation.X += amount

	// Clamp to avoid Gimbal lock.
	c.EulerRotation.X = math.Clamp(c.EulerRotation.X, -pitchLimit, pitchLimit)

	c.IsDirty = true
}
