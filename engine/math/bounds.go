package math

// Corners returns the eight corners of the box.
func (e Extents3D) Corners() [8]Vec3 {
	return [8]Vec3{
		{e.Min.X, e.Min.Y, e.Min.Z},
		{e.Max.X, e.Min.Y, e.Min.Z},
		{e.Min.X, e.Max.Y, e.Min.Z},
		{e.Max.X, e.Max.Y, e.Min.Z},
		{e.Min.X, e.Min.Y, e.Max.Z},
		{e.Max.X, e.Min.Y, e.Max.Z},
		{e.Min.X, e.Max.Y, e.Max.Z},
		{e.Max.X, e.Max.Y, e.Max.Z},
	}
}

func (e Extents3D) Center() Vec3 {
	return e.Min.Add(e.Max).MulScalar(0.5)
}

func (e Extents3D) Size() Vec3 {
	return e.Max.Sub(e.Min)
}

// Union returns the smallest box containing both e and other.
func (e Extents3D) Union(other Extents3D) Extents3D {
	return Extents3D{Min: e.Min.Min(other.Min), Max: e.Max.Max(other.Max)}
}

// Contains reports whether other lies fully inside e.
func (e Extents3D) Contains(other Extents3D) bool {
	return e.Min.X <= other.Min.X && e.Min.Y <= other.Min.Y && e.Min.Z <= other.Min.Z &&
		e.Max.X >= other.Max.X && e.Max.Y >= other.Max.Y && e.Max.Z >= other.Max.Z
}

// Transform returns the axis aligned box enclosing the eight transformed corners,
// so the result never shrinks below the transformed volume.
func (e Extents3D) Transform(m Mat4) Extents3D {
	corners := e.Corners()
	first := corners[0].Transform(m)
	out := Extents3D{Min: first, Max: first}
	for _, c := range corners[1:] {
		p := c.Transform(m)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}

// Plane is n·p + D = 0 with n pointing inside the frustum.
type Plane struct {
	Normal Vec3
	D      float32
}

func (p Plane) Distance(point Vec3) float32 {
	return p.Normal.Dot(point) + p.D
}

/** @brief The six planes of a view frustum: left, right, bottom, top, near, far. */
type Frustum struct {
	Planes [6]Plane
}

// NewFrustumFromMatrix extracts the planes of a projection*view matrix (applied view first),
// with depth in [0, 1].
func NewFrustumFromMatrix(viewProjection Mat4) Frustum {
	m := viewProjection.Data
	row := func(r int) Vec4 {
		return Vec4{X: m[r], Y: m[4+r], Z: m[8+r], W: m[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	planes := [6]Vec4{
		{r3.X + r0.X, r3.Y + r0.Y, r3.Z + r0.Z, r3.W + r0.W},
		{r3.X - r0.X, r3.Y - r0.Y, r3.Z - r0.Z, r3.W - r0.W},
		{r3.X + r1.X, r3.Y + r1.Y, r3.Z + r1.Z, r3.W + r1.W},
		{r3.X - r1.X, r3.Y - r1.Y, r3.Z - r1.Z, r3.W - r1.W},
		r2,
		{r3.X - r2.X, r3.Y - r2.Y, r3.Z - r2.Z, r3.W - r2.W},
	}
	f := Frustum{}
	for i, p := range planes {
		n := p.ToVec3()
		l := n.Length()
		if l == 0 {
			l = 1
		}
		f.Planes[i] = Plane{Normal: n.MulScalar(1 / l), D: p.W / l}
	}
	return f
}

// IntersectsExtents reports whether the box is at least partially inside the frustum.
// It is conservative: some boxes near frustum corners are reported visible.
func (f Frustum) IntersectsExtents(e Extents3D) bool {
	for _, p := range f.Planes {
		// farthest corner along the plane normal
		v := Vec3{X: e.Min.X, Y: e.Min.Y, Z: e.Min.Z}
		if p.Normal.X >= 0 {
			v.X = e.Max.X
		}
		if p.Normal.Y >= 0 {
			v.Y = e.Max.Y
		}
		if p.Normal.Z >= 0 {
			v.Z = e.Max.Z
		}
		if p.Distance(v) < 0 {
			return false
		}
	}
	return true
}
