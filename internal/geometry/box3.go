package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func Vec3(x, y, z float64) mgl64.Vec3 {
	return mgl64.Vec3{x, y, z}
}

// Box3 is an axis aligned box in world (Y-up) space.
type Box3 struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func NewBox3(min, max mgl64.Vec3) Box3 {
	return Box3{Min: min, Max: max}
}

// EmptyBox3 returns a box that contains nothing and grows to the first expanded point.
func EmptyBox3() Box3 {
	return Box3{
		Min: Vec3(math.Inf(1), math.Inf(1), math.Inf(1)),
		Max: Vec3(math.Inf(-1), math.Inf(-1), math.Inf(-1)),
	}
}

// Box3FromPoints returns the smallest box that contains all the given points.
func Box3FromPoints(points ...mgl64.Vec3) Box3 {
	box := EmptyBox3()
	for _, p := range points {
		box = box.ExpandByPoint(p)
	}
	return box
}

func (b Box3) IsEmpty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

func (b Box3) ExpandByPoint(p mgl64.Vec3) Box3 {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

func (b Box3) Union(other Box3) Box3 {
	if other.IsEmpty() {
		return b
	}
	return b.ExpandByPoint(other.Min).ExpandByPoint(other.Max)
}

func (b Box3) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box3) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b Box3) ContainsPoint(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Corners returns the eight corners of the box.
func (b Box3) Corners() [8]mgl64.Vec3 {
	return [8]mgl64.Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// ApplyMatrix4 transforms all corners and returns the box enclosing them.
func (b Box3) ApplyMatrix4(m mgl64.Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBox3()
	for _, corner := range b.Corners() {
		out = out.ExpandByPoint(mgl64.TransformCoordinate(corner, m))
	}
	return out
}

func (b Box3) ApproxEqual(other Box3, eps float64) bool {
	return b.Min.ApproxEqualThreshold(other.Min, eps) && b.Max.ApproxEqualThreshold(other.Max, eps)
}
