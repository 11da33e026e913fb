package geometry

import "github.com/go-gl/mathgl/mgl64"

// Plane is the set of points p with Normal.Dot(p) + Constant == 0. Points on the side the normal
// points to have a positive distance.
type Plane struct {
	Normal   mgl64.Vec3
	Constant float64
}

// NewPlane normalizes the normal, scaling the constant with it.
func NewPlane(normal mgl64.Vec3, constant float64) Plane {
	return newNormalizedPlane(normal[0], normal[1], normal[2], constant)
}

// NewPlaneFromNormalAndPoint returns the plane through point facing normal.
func NewPlaneFromNormalAndPoint(normal, point mgl64.Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Constant: -point.Dot(n)}
}

func (p Plane) DistanceToPoint(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.Constant
}

// ApplyMatrix4 moves the plane by m. The normal goes through the inverse transpose of m.
func (p Plane) ApplyMatrix4(m mgl64.Mat4) Plane {
	reference := mgl64.TransformCoordinate(p.Normal.Mul(-p.Constant), m)
	normal := m.Mat3().Inv().Transpose().Mul3x1(p.Normal).Normalize()
	return Plane{Normal: normal, Constant: -reference.Dot(normal)}
}

// ClipsBox reports whether the whole box lies on the negative side.
func (p Plane) ClipsBox(b Box3) bool {
	if b.IsEmpty() {
		return true
	}
	var positive mgl64.Vec3
	for i := 0; i < 3; i++ {
		if p.Normal[i] > 0 {
			positive[i] = b.Max[i]
		} else {
			positive[i] = b.Min[i]
		}
	}
	return p.DistanceToPoint(positive) < 0
}

func newNormalizedPlane(x, y, z, w float64) Plane {
	normal := mgl64.Vec3{x, y, z}
	length := normal.Len()
	if length == 0 {
		return Plane{Normal: normal, Constant: w}
	}
	return Plane{Normal: normal.Mul(1 / length), Constant: w / length}
}
