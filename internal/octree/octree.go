package octree

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

const (
	DefaultPointBudget        = 1_000_000
	DefaultMinNodePixelSize   = 50
	DefaultMaxNumNodesLoading = 4
	// maximum number of loaded nodes attached to the scene by one visibility update
	DefaultMaxLoadsToScene = 2
)

// PointCloudOctree is one streamed dataset. Its object is the container of the node objects and
// carries the model matrix.
type PointCloudOctree struct {
	name     string
	metadata *ept.Metadata
	fetch    ept.FetchFunc
	loader   *Loader
	material *Material
	object   *scene.Object
	root     *OctreeNode
	nodes    map[ept.Key]*OctreeNode

	pointBudget        int
	minNodePixelSize   float64
	maxNumNodesLoading int
	maxLoadsToScene    int

	numVisiblePoints int
	visibleNodes     []*OctreeNode
	lru              *nodeLRU

	// world space, as set by the caller
	clippingPlanes []geometry.Plane
	// the same planes in the Y-up space of the node boxes, read by the point filters
	localPlanes atomic.Pointer[[]geometry.Plane]

	sync.RWMutex
}

// Open decodes the root description, loads the whole hierarchy and the root tile.
func Open(ctx context.Context, name string, root []byte, fetch ept.FetchFunc, loader *Loader) (*PointCloudOctree, error) {
	m, err := ept.ParseMetadata(root)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	hierarchy, err := ept.LoadHierarchy(ctx, fetch)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	tree, err := NewPointCloudOctree(name, m, hierarchy, fetch, loader)
	if err != nil {
		return nil, err
	}

	content, err := fetch(ctx, ept.RootKey.DataFile())
	if err != nil {
		return nil, errors.Wrapf(err, "loading root tile of %s", name)
	}
	points, err := ept.DecodeBinary(content, m)
	if err != nil {
		return nil, errors.Wrapf(err, "loading root tile of %s", name)
	}
	tree.root.startLoading()
	tree.material.AddClasses(points.Classes())
	tree.root.setLoaded(points)

	glog.Infof("opened %s: %d points in %d nodes", name, m.Points, len(tree.nodes))
	return tree, nil
}

// NewPointCloudOctree builds the node tree from the hierarchy. No tile is fetched.
func NewPointCloudOctree(name string, m *ept.Metadata, hierarchy ept.Hierarchy, fetch ept.FetchFunc, loader *Loader) (*PointCloudOctree, error) {
	if _, ok := hierarchy[ept.RootKey]; !ok {
		return nil, errors.Errorf("hierarchy of %s has no root node", name)
	}

	tree := &PointCloudOctree{
		name:               name,
		metadata:           m,
		fetch:              fetch,
		loader:             loader,
		material:           NewMaterial(),
		object:             scene.NewObject(name),
		nodes:              make(map[ept.Key]*OctreeNode, len(hierarchy)),
		pointBudget:        DefaultPointBudget,
		minNodePixelSize:   DefaultMinNodePixelSize,
		maxNumNodesLoading: DefaultMaxNumNodesLoading,
		maxLoadsToScene:    DefaultMaxLoadsToScene,
		lru:                newNodeLRU(),
	}

	keys := make([]ept.Key, 0, len(hierarchy))
	for k := range hierarchy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].D < keys[j].D })

	cube := m.CubeBounds()
	for _, k := range keys {
		if k == ept.RootKey {
			tree.root = newOctreeNode(k, nil, cube, hierarchy[k])
			tree.nodes[k] = tree.root
			continue
		}
		parent, ok := tree.nodes[k.Parent()]
		if !ok {
			glog.Warningf("skipping node %s of %s without parent", k, name)
			continue
		}
		node := newOctreeNode(k, parent, cube, hierarchy[k])
		parent.children[k.Octant()] = node
		tree.nodes[k] = node
	}
	return tree, nil
}

func (t *PointCloudOctree) Name() string {
	return t.name
}

func (t *PointCloudOctree) Object() *scene.Object {
	return t.object
}

func (t *PointCloudOctree) Material() *Material {
	return t.material
}

func (t *PointCloudOctree) Metadata() *ept.Metadata {
	return t.metadata
}

func (t *PointCloudOctree) GetRootNode() INode {
	return t.root
}

func (t *PointCloudOctree) Node(k ept.Key) (*OctreeNode, bool) {
	n, ok := t.nodes[k]
	return n, ok
}

func (t *PointCloudOctree) NumNodes() int {
	return len(t.nodes)
}

// TightBoundingBox is the native, Z-up, box of the points.
func (t *PointCloudOctree) TightBoundingBox() *geometry.BoundingBox {
	return t.metadata.TightBounds()
}

func (t *PointCloudOctree) PointBudget() int {
	t.RLock()
	defer t.RUnlock()
	return t.pointBudget
}

// SetPointBudget also releases the nodes that no longer fit in memory.
func (t *PointCloudOctree) SetPointBudget(budget int) {
	t.Lock()
	defer t.Unlock()
	if budget == t.pointBudget {
		return
	}
	t.pointBudget = budget
	t.freeMemory()
}

func (t *PointCloudOctree) MinNodePixelSize() float64 {
	t.RLock()
	defer t.RUnlock()
	return t.minNodePixelSize
}

func (t *PointCloudOctree) SetMinNodePixelSize(size float64) {
	t.Lock()
	defer t.Unlock()
	t.minNodePixelSize = size
}

func (t *PointCloudOctree) SetMaxNumNodesLoading(n int) {
	t.Lock()
	defer t.Unlock()
	t.maxNumNodesLoading = n
}

// NumVisiblePoints is the number of points made visible by the last visibility update.
func (t *PointCloudOctree) NumVisiblePoints() int {
	t.RLock()
	defer t.RUnlock()
	return t.numVisiblePoints
}

func (t *PointCloudOctree) VisibleNodes() []*OctreeNode {
	t.RLock()
	defer t.RUnlock()
	return append([]*OctreeNode(nil), t.visibleNodes...)
}

// NumResidentPoints is the number of points held by attached nodes other than the root. It stays
// within twice the point budget after every visibility update.
func (t *PointCloudOctree) NumResidentPoints() int64 {
	t.RLock()
	defer t.RUnlock()
	return t.lru.numPoints
}

// SetClippingPlanes sets world space planes. Nodes entirely on the negative side of a plane are not
// streamed and their points are neither drawn nor picked.
func (t *PointCloudOctree) SetClippingPlanes(planes []geometry.Plane) {
	t.Lock()
	defer t.Unlock()
	t.clippingPlanes = append([]geometry.Plane(nil), planes...)
	t.updateLocalPlanes()
}

func (t *PointCloudOctree) ClippingPlanes() []geometry.Plane {
	t.RLock()
	defer t.RUnlock()
	return append([]geometry.Plane(nil), t.clippingPlanes...)
}

// updateLocalPlanes follows changes of the world matrix.
func (t *PointCloudOctree) updateLocalPlanes() {
	if len(t.clippingPlanes) == 0 {
		t.localPlanes.Store(nil)
		return
	}
	toLocal := t.object.MatrixWorld().Inv()
	local := lo.Map(t.clippingPlanes, func(p geometry.Plane, _ int) geometry.Plane { return p.ApplyMatrix4(toLocal) })
	t.localPlanes.Store(&local)
}

func (t *PointCloudOctree) clipsBox(box geometry.Box3) bool {
	planes := t.localPlanes.Load()
	if planes == nil {
		return false
	}
	return lo.SomeBy(*planes, func(p geometry.Plane) bool { return p.ClipsBox(box) })
}

// acceptPoint filters out points of hidden classes and clipped points.
func (t *PointCloudOctree) acceptPoint(p *data.Point) bool {
	if !t.material.ClassVisible(int(p.Classification)) {
		return false
	}
	planes := t.localPlanes.Load()
	if planes == nil {
		return true
	}
	position := geometry.ToYUp(p.X, p.Y, p.Z)
	for _, plane := range *planes {
		if plane.DistanceToPoint(position) < 0 {
			return false
		}
	}
	return true
}

// freeMemory unloads the least recently visible nodes, together with their descendants, until the
// attached points fit in the memory limit. The root is never unloaded.
func (t *PointCloudOctree) freeMemory() {
	limit := loadedPointsFactor * int64(t.pointBudget)
	freed := 0
	for t.lru.numPoints > limit && t.lru.len() > 0 {
		freed += t.unloadSubtree(t.lru.oldest())
	}
	if freed == 0 {
		return
	}

	t.visibleNodes = lo.Filter(t.visibleNodes, func(n *OctreeNode, _ int) bool { return n.SceneNode() != nil })
	t.numVisiblePoints = lo.SumBy(t.visibleNodes, func(n *OctreeNode) int { return int(n.numPoints) })
	glog.V(2).Infof("%s: unloaded %d nodes, %d points resident", t.name, freed, t.lru.numPoints)
}

func (t *PointCloudOctree) unloadSubtree(node *OctreeNode) int {
	freed := 0
	for _, child := range node.children {
		if child != nil {
			freed += t.unloadSubtree(child)
		}
	}
	t.lru.remove(node)
	if object, ok := node.unload(); ok {
		if object != nil && object.Parent() != nil {
			object.Parent().Remove(object)
		}
		freed++
	}
	return freed
}

// hideDescendants hides every node object so the update can show only the needed ones.
func (t *PointCloudOctree) hideDescendants() {
	for _, child := range t.object.Children() {
		child.Traverse(func(o *scene.Object) { o.SetVisible(false) })
	}
}
