package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a half line starting at Origin. Direction is kept normalized.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

func NewRay(origin, direction mgl64.Vec3) Ray {
	return Ray{Origin: origin, Direction: direction.Normalize()}
}

func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// ClosestPointToPoint projects p on the ray, clamping behind-origin projections to the origin.
func (r Ray) ClosestPointToPoint(p mgl64.Vec3) mgl64.Vec3 {
	t := p.Sub(r.Origin).Dot(r.Direction)
	if t < 0 {
		return r.Origin
	}
	return r.At(t)
}

func (r Ray) DistanceSqToPoint(p mgl64.Vec3) float64 {
	d := r.ClosestPointToPoint(p).Sub(p)
	return d.Dot(d)
}

// ApplyMatrix4 transforms the ray into the space described by m. The direction is renormalized.
func (r Ray) ApplyMatrix4(m mgl64.Mat4) Ray {
	origin := mgl64.TransformCoordinate(r.Origin, m)
	target := mgl64.TransformCoordinate(r.Origin.Add(r.Direction), m)
	return Ray{Origin: origin, Direction: target.Sub(origin).Normalize()}
}

// IntersectsBox uses the slab method.
func (r Ray) IntersectsBox(b Box3) bool {
	if b.IsEmpty() {
		return false
	}
	tMin := math.Inf(-1)
	tMax := math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(r.Direction[i]) < 1e-12 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return false
			}
			continue
		}
		inv := 1 / r.Direction[i]
		t1 := (b.Min[i] - r.Origin[i]) * inv
		t2 := (b.Max[i] - r.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return tMax >= 0
}

// ExpandBy grows the box by margin on all sides.
func (b Box3) ExpandBy(margin float64) Box3 {
	if b.IsEmpty() {
		return b
	}
	m := Vec3(margin, margin, margin)
	return Box3{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}
