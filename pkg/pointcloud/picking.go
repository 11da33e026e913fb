package pointcloud

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

// PointPickThreshold is how far from the ray, in world units, a point can be and still be picked.
const PointPickThreshold = 0.01

// Intersection is a point hit by a pick.
type Intersection struct {
	Distance   float64
	Point      mgl64.Vec3
	PointIndex int
	Node       *NodeWrapper
	// Object is the node object holding the point
	Object *scene.Object
}

type Intersector struct {
	threshold float64
}

func NewIntersector() *Intersector {
	return &Intersector{threshold: PointPickThreshold}
}

// Intersect casts a ray from the camera through ndc and returns the visible points it hits, nearest
// first. The ray is tested against everything held by the containers of the nodes, usually the
// manager's group, so geometry that belongs to none of the nodes is reported as an
// OrphanedIntersectionError. Point clouds whose bounding box the ray misses are skipped.
func (i *Intersector) Intersect(nodes []*NodeWrapper, ndc mgl64.Vec2, camera *scene.Camera) ([]Intersection, error) {
	raycaster := scene.NewRaycaster()
	raycaster.PointsThreshold = i.threshold
	raycaster.SetFromCamera(ndc, camera)

	owners := make(map[*scene.Object]*NodeWrapper, len(nodes))
	for _, n := range nodes {
		owners[n.Object()] = n
	}
	onRay := func(o *scene.Object) bool {
		n, ok := owners[o]
		return !ok || raycaster.Ray.IntersectsBox(n.GetBoundingBox().ExpandBy(i.threshold))
	}
	candidates := lo.Filter(pickCandidates(nodes), func(o *scene.Object, _ int) bool { return onRay(o) })

	hits := raycaster.IntersectObjects(candidates, true)
	result := make([]Intersection, 0, len(hits))
	for _, hit := range hits {
		owner := ownerOf(hit.Object, owners)
		if owner == nil {
			return nil, &OrphanedIntersectionError{ObjectID: hit.Object.ID(), ObjectName: hit.Object.Name()}
		}
		result = append(result, Intersection{
			Distance:   hit.Distance,
			Point:      hit.Point,
			PointIndex: hit.Index,
			Node:       owner,
			Object:     hit.Object,
		})
	}
	sort.SliceStable(result, func(a, b int) bool { return result[a].Distance < result[b].Distance })
	return result, nil
}

// pickCandidates returns the children of the containers holding the nodes. A node without a
// container is a candidate itself.
func pickCandidates(nodes []*NodeWrapper) []*scene.Object {
	var candidates []*scene.Object
	seen := make(map[*scene.Object]struct{})
	add := func(o *scene.Object) {
		if _, ok := seen[o]; !ok {
			seen[o] = struct{}{}
			candidates = append(candidates, o)
		}
	}
	for _, n := range nodes {
		parent := n.Object().Parent()
		if parent == nil {
			add(n.Object())
			continue
		}
		for _, child := range parent.Children() {
			add(child)
		}
	}
	return candidates
}

// ownerOf walks up from a hit object to the point cloud containing it.
func ownerOf(object *scene.Object, owners map[*scene.Object]*NodeWrapper) *NodeWrapper {
	for o := object; o != nil; o = o.Parent() {
		if n, ok := owners[o]; ok {
			return n
		}
	}
	return nil
}
