package geometry

import "github.com/go-gl/mathgl/mgl64"

// Frustum is the convex volume enclosed by six inward facing planes.
type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts the clipping planes of a projection * view matrix.
func FrustumFromMatrix(m mgl64.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	planeOf := func(v mgl64.Vec4) Plane {
		return newNormalizedPlane(v[0], v[1], v[2], v[3])
	}
	return Frustum{Planes: [6]Plane{
		planeOf(r3.Add(r0)), // left
		planeOf(r3.Sub(r0)), // right
		planeOf(r3.Add(r1)), // bottom
		planeOf(r3.Sub(r1)), // top
		planeOf(r3.Add(r2)), // near
		planeOf(r3.Sub(r2)), // far
	}}
}

// IntersectsBox is conservative: boxes near a frustum corner may be reported as intersecting.
func (f Frustum) IntersectsBox(b Box3) bool {
	if b.IsEmpty() {
		return false
	}
	for _, plane := range f.Planes {
		if plane.ClipsBox(b) {
			return false
		}
	}
	return true
}

func (f Frustum) ContainsPoint(p mgl64.Vec3) bool {
	for _, plane := range f.Planes {
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}
