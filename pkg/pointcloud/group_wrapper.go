package pointcloud

import (
	"sync"

	"github.com/golang/glog"
	"github.com/samber/lo"

	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
	"github.com/ecopia-map/pointcloud_streamer/internal/progress"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

// completionCounter is implemented by loaders that count finished tiles.
type completionCounter interface {
	CompletedCount() int
}

// redrawInputs are the observations a redraw decision is made from.
type redrawInputs struct {
	requested       bool
	loaderCount     int
	lastLoaderCount int
	completed       int
	lastCompleted   int
	childCount      int
	lastChildCount  int
	nodeDirty       []bool
}

func needsRedraw(in redrawInputs) bool {
	return in.requested ||
		in.loaderCount != in.lastLoaderCount ||
		in.completed != in.lastCompleted ||
		in.childCount != in.lastChildCount ||
		lo.Contains(in.nodeDirty, true)
}

// GroupWrapper holds the point clouds attached under one scene object. Streaming happens in the
// render pass: an empty marker object updates the visible nodes of every member before it renders
// and clears the redraw state after. Tiles that finish loading after the update started, and loaded
// tiles the update could not attach yet, keep the group in need of a redraw.
type GroupWrapper struct {
	object *scene.Object
	marker *scene.Object
	gauge  progress.LoaderActivityGauge

	nodes           []*NodeWrapper
	redrawRequested bool
	lastLoaderCount int
	lastCompleted   int
	lastChildCount  int
	// observed by the running pass, committed when it ends
	passCompleted int
	attachPending bool

	mu sync.Mutex
}

func NewGroupWrapper(gauge progress.LoaderActivityGauge) *GroupWrapper {
	g := &GroupWrapper{
		object: scene.NewObject("point clouds"),
		marker: scene.NewObject("point cloud render marker"),
		gauge:  gauge,
	}
	g.marker.SetOnBeforeRender(g.updatePointClouds)
	g.marker.SetOnAfterRender(func(*scene.Camera) { g.resetRedraw() })
	g.object.Add(g.marker)
	g.lastChildCount = len(g.object.Children())
	return g
}

// Object is the scene object a renderer adds to its scene.
func (g *GroupWrapper) Object() *scene.Object {
	return g.object
}

func (g *GroupWrapper) Nodes() []*NodeWrapper {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*NodeWrapper(nil), g.nodes...)
}

// AddPointCloud ignores nodes that are already members.
func (g *GroupWrapper) AddPointCloud(node *NodeWrapper) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if lo.Contains(g.nodes, node) {
		glog.Warningf("point cloud %s is already in the group", node.ID())
		return
	}
	g.object.Add(node.Object())
	g.nodes = append(g.nodes, node)
}

func (g *GroupWrapper) RemovePointCloud(node *NodeWrapper) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	index := lo.IndexOf(g.nodes, node)
	if index < 0 {
		return &MembershipError{NodeID: node.ID()}
	}
	g.object.Remove(node.Object())
	g.nodes = append(g.nodes[:index], g.nodes[index+1:]...)
	return nil
}

func (g *GroupWrapper) RequestRedraw() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redrawRequested = true
}

func (g *GroupWrapper) NeedsRedraw() bool {
	return needsRedraw(g.observe())
}

func (g *GroupWrapper) observe() redrawInputs {
	g.mu.Lock()
	defer g.mu.Unlock()
	return redrawInputs{
		requested:       g.redrawRequested,
		loaderCount:     g.loaderCount(),
		lastLoaderCount: g.lastLoaderCount,
		completed:       g.completedCount(),
		lastCompleted:   g.lastCompleted,
		childCount:      len(g.object.Children()),
		lastChildCount:  g.lastChildCount,
		nodeDirty:       lo.Map(g.nodes, func(n *NodeWrapper, _ int) bool { return n.NeedsRedraw() }),
	}
}

func (g *GroupWrapper) loaderCount() int {
	if g.gauge == nil {
		return 0
	}
	return g.gauge.CurrentCount()
}

func (g *GroupWrapper) completedCount() int {
	if c, ok := g.gauge.(completionCounter); ok {
		return c.CompletedCount()
	}
	return 0
}

func (g *GroupWrapper) updatePointClouds(camera *scene.Camera) {
	completed := g.completedCount()
	trees := lo.Map(g.Nodes(), func(n *NodeWrapper, _ int) *octree.PointCloudOctree { return n.Octree() })
	results := octree.UpdatePointClouds(trees, camera)

	pending := false
	for i, r := range results {
		if r.NodeLoadFailed {
			glog.V(1).Infof("%s has nodes that failed to load", trees[i].Name())
		}
		pending = pending || r.ExceededMaxLoadsToScene
	}

	g.mu.Lock()
	g.passCompleted = completed
	g.attachPending = pending
	g.mu.Unlock()
}

// resetRedraw snapshots the observed counters and clears every dirty flag. The completed count is
// the one seen before the pass, so tiles finishing during the pass are noticed by the next check.
func (g *GroupWrapper) resetRedraw() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redrawRequested = g.attachPending
	g.attachPending = false
	g.lastCompleted = g.passCompleted
	g.lastLoaderCount = g.loaderCount()
	g.lastChildCount = len(g.object.Children())
	for _, n := range g.nodes {
		n.ResetRedraw()
	}
}
