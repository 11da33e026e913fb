package scene

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// Intersection is a single point hit by a raycast.
type Intersection struct {
	Distance      float64 // from the ray origin to Point
	DistanceToRay float64 // from the hit point to the ray, in the object's local space
	Point         mgl64.Vec3
	Index         int
	Object        *Object
}

type Raycaster struct {
	Ray  geometry.Ray
	Near float64
	Far  float64

	// PointsThreshold is the world space radius around the ray in which points are hit.
	PointsThreshold float64
}

func NewRaycaster() *Raycaster {
	return &Raycaster{Far: math.Inf(1), PointsThreshold: 1}
}

// SetFromCamera aims the ray from the camera through the given normalized device coordinates.
func (r *Raycaster) SetFromCamera(ndc mgl64.Vec2, camera *Camera) {
	target := camera.Unproject(mgl64.Vec3{ndc[0], ndc[1], 0.5})
	r.Ray = geometry.NewRay(camera.Position, target.Sub(camera.Position))
}

// IntersectObject tests object and, when recursive is set, its visible descendants. Invisible objects
// cannot be hit. Results are sorted by increasing distance.
func (r *Raycaster) IntersectObject(object *Object, recursive bool) []Intersection {
	var hits []Intersection
	if recursive {
		object.TraverseVisible(func(o *Object) {
			hits = r.intersectPoints(o, hits)
		})
	} else if object.Visible() {
		hits = r.intersectPoints(object, hits)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

func (r *Raycaster) IntersectObjects(objects []*Object, recursive bool) []Intersection {
	var hits []Intersection
	for _, object := range objects {
		hits = append(hits, r.IntersectObject(object, recursive)...)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

func (r *Raycaster) intersectPoints(object *Object, hits []Intersection) []Intersection {
	object.RLock()
	points := object.points
	box := object.pointsBox
	world := object.matrixWorld
	filter := object.pointFilter
	object.RUnlock()

	if len(points) == 0 {
		return hits
	}

	scale := (world.Col(0).Vec3().Len() + world.Col(1).Vec3().Len() + world.Col(2).Vec3().Len()) / 3
	if scale == 0 {
		return hits
	}
	localThreshold := r.PointsThreshold / scale
	localThresholdSq := localThreshold * localThreshold

	localRay := r.Ray.ApplyMatrix4(world.Inv())
	if !localRay.IntersectsBox(box.ExpandBy(localThreshold)) {
		return hits
	}

	for i := range points {
		if filter != nil && !filter(i) {
			continue
		}
		p := mgl64.Vec3{points[i].X, points[i].Y, points[i].Z}
		distanceSq := localRay.DistanceSqToPoint(p)
		if distanceSq >= localThresholdSq {
			continue
		}
		closest := mgl64.TransformCoordinate(localRay.ClosestPointToPoint(p), world)
		distance := r.Ray.Origin.Sub(closest).Len()
		if distance < r.Near || distance > r.Far {
			continue
		}
		hits = append(hits, Intersection{
			Distance:      distance,
			DistanceToRay: math.Sqrt(distanceSq),
			Point:         closest,
			Index:         i,
			Object:        object,
		})
	}
	return hits
}
