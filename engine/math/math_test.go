package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMat4MulOrder(t *testing.T) {
	translate := NewMat4Translation(NewVec3(1, 0, 0))
	scale := NewMat4Scale(NewVec3(2, 2, 2))

	// translate first, scale second
	p := NewVec3Zero().Transform(translate.Mul(scale))
	assert.True(t, p.Compare(NewVec3(2, 0, 0), 1e-6), "have %v", p)

	p = NewVec3Zero().Transform(scale.Mul(translate))
	assert.True(t, p.Compare(NewVec3(1, 0, 0), 1e-6), "have %v", p)
}

func TestCompareIsAbsolute(t *testing.T) {
	zero := NewVec3Zero()
	assert.True(t, NewVec3(0, 0, 1.2e-7).Compare(zero, 1e-4))
	assert.False(t, NewVec3(1000, 0, 0).Compare(NewVec3(1000.05, 0, 0), 1e-4))
	assert.True(t, NewVec3(1000, 0, 0).Compare(NewVec3(1000.05, 0, 0), 0.1))

	m := NewMat4Identity()
	m.Data[13] = 1e-7
	assert.True(t, m.ApproxEqual(NewMat4Identity(), 1e-4))
	m.Data[12] = 1000
	other := NewMat4Identity()
	other.Data[12] = 1000.05
	assert.False(t, m.ApproxEqual(other, 1e-4))
}

func TestMat4Inverse(t *testing.T) {
	m := NewMat4Translation(NewVec3(3, -2, 5)).Mul(NewMat4Scale(NewVec3(2, 4, 8)))
	assert.True(t, m.Mul(m.Inverse()).ApproxEqual(NewMat4Identity(), 1e-5))
}

func TestTransformWorld(t *testing.T) {
	parent := TransformFromPosition(NewVec3(10, 0, 0))
	child := TransformFromPositionRotationScale(NewVec3(1, 2, 3), NewQuatIdentity(), NewVec3(2, 2, 2))
	child.Parent = parent

	p := NewVec3(1, 0, 0).Transform(child.GetLocal())
	assert.True(t, p.Compare(NewVec3(3, 2, 3), 1e-5), "have %v", p)

	p = NewVec3(1, 0, 0).Transform(child.GetWorld())
	assert.True(t, p.Compare(NewVec3(13, 2, 3), 1e-5), "have %v", p)

	var none *Transform
	assert.Equal(t, NewMat4Identity(), none.GetWorld())
}

func TestExtentsTransformIsConservative(t *testing.T) {
	box := Extents3D{Min: NewVec3(-1, -1, -1), Max: NewVec3(1, 1, 1)}
	rot := NewQuatFromAxisAngle(NewVec3Up(), DegToRad(45)).ToMat4()

	out := box.Transform(rot)
	assert.True(t, out.Contains(box))
	for _, c := range box.Corners() {
		p := c.Transform(rot)
		assert.True(t, out.Contains(Extents3D{Min: p, Max: p}))
	}
}

func TestExtentsUnion(t *testing.T) {
	a := Extents3D{Min: NewVec3(0, 0, 0), Max: NewVec3(1, 1, 1)}
	b := Extents3D{Min: NewVec3(-1, 0.5, 0), Max: NewVec3(0.5, 2, 0.5)}
	u := a.Union(b)
	assert.Equal(t, NewVec3(-1, 0, 0), u.Min)
	assert.Equal(t, NewVec3(1, 2, 1), u.Max)
	assert.Equal(t, NewVec3(0, 1, 0.5), u.Center())
}

func TestFrustumCulling(t *testing.T) {
	view := NewMat4LookAt(NewVec3Zero(), NewVec3(0, 0, -1), NewVec3Up())
	proj := NewMat4Perspective(DegToRad(90), 1, 0.1, 100)
	f := NewFrustumFromMatrix(view.Mul(proj))

	cases := []struct {
		name    string
		center  Vec3
		visible bool
	}{
		{"ahead", NewVec3(0, 0, -10), true},
		{"behind", NewVec3(0, 0, 10), false},
		{"far right", NewVec3(50, 0, -10), false},
		{"beyond far plane", NewVec3(0, 0, -200), false},
	}
	for _, c := range cases {
		box := Extents3D{Min: c.center.Sub(NewVec3One()), Max: c.center.Add(NewVec3One())}
		assert.Equal(t, c.visible, f.IntersectsExtents(box), c.name)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
	assert.Equal(t, uint32(1), Clamp(uint32(0), 1, 4))
}
