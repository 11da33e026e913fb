package octree

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

// OctreeNode is one tile of the hierarchy. Its points are fetched on demand and stored relative to
// the node origin, the Y-up corner of its box, to keep precision with large coordinates.
type OctreeNode struct {
	key       ept.Key
	parent    *OctreeNode
	children  [8]*OctreeNode
	bounds    geometry.Box3
	origin    mgl64.Vec3
	numPoints int64

	state     NodeState
	points    data.Points
	sceneNode *scene.Object
	err       error

	sync.RWMutex
}

func newOctreeNode(key ept.Key, parent *OctreeNode, cube *geometry.BoundingBox, numPoints int64) *OctreeNode {
	bounds := key.Bounds(cube).ToYUpBox3()
	return &OctreeNode{
		key:       key,
		parent:    parent,
		bounds:    bounds,
		origin:    bounds.Min,
		numPoints: numPoints,
	}
}

func (n *OctreeNode) Key() ept.Key {
	return n.key
}

func (n *OctreeNode) IsRoot() bool {
	return n.parent == nil
}

func (n *OctreeNode) GetParent() INode {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *OctreeNode) GetChildren() [8]INode {
	var children [8]INode
	for i, child := range n.children {
		if child != nil {
			children[i] = child
		}
	}
	return children
}

func (n *OctreeNode) GetBoundingBox() geometry.Box3 {
	return n.bounds
}

func (n *OctreeNode) NumPoints() int64 {
	return n.numPoints
}

func (n *OctreeNode) State() NodeState {
	n.RLock()
	defer n.RUnlock()
	return n.state
}

func (n *OctreeNode) Err() error {
	n.RLock()
	defer n.RUnlock()
	return n.err
}

func (n *OctreeNode) SceneNode() *scene.Object {
	n.RLock()
	defer n.RUnlock()
	return n.sceneNode
}

// Points returns the loaded points in native coordinates.
func (n *OctreeNode) Points() data.Points {
	n.RLock()
	defer n.RUnlock()
	return n.points
}

// startLoading moves an unloaded node to the loading state. It reports false for any other state.
func (n *OctreeNode) startLoading() bool {
	n.Lock()
	defer n.Unlock()
	if n.state != NodeUnloaded {
		return false
	}
	n.state = NodeLoading
	return true
}

func (n *OctreeNode) setLoaded(points data.Points) {
	n.Lock()
	defer n.Unlock()
	n.points = points
	n.state = NodeLoaded
}

func (n *OctreeNode) setFailed(err error) {
	n.Lock()
	defer n.Unlock()
	n.err = err
	n.state = NodeFailed
}

// abortLoading puts a node whose fetch could not be queued back in the unloaded state.
func (n *OctreeNode) abortLoading() {
	n.Lock()
	defer n.Unlock()
	if n.state == NodeLoading {
		n.state = NodeUnloaded
	}
}

// unload drops the points and the scene object of a loaded node. It reports false for any other
// state. The returned object is nil when the node was never attached.
func (n *OctreeNode) unload() (*scene.Object, bool) {
	n.Lock()
	defer n.Unlock()
	if n.state != NodeLoaded {
		return nil, false
	}
	object := n.sceneNode
	n.points = nil
	n.sceneNode = nil
	n.state = NodeUnloaded
	return object, true
}

// toSceneNode builds the scene object of a loaded node once. Points are moved into the Y-up space
// relative to the node origin.
func (n *OctreeNode) toSceneNode(filter func(p *data.Point) bool) *scene.Object {
	n.Lock()
	defer n.Unlock()
	if n.sceneNode != nil || n.state != NodeLoaded {
		return n.sceneNode
	}

	local := make(data.Points, len(n.points))
	for i, p := range n.points {
		v := geometry.ToYUp(p.X, p.Y, p.Z).Sub(n.origin)
		local[i] = p
		local[i].X, local[i].Y, local[i].Z = v[0], v[1], v[2]
	}

	object := scene.NewPoints("r"+n.key.String(), local)
	offset := n.origin
	if n.parent != nil {
		offset = offset.Sub(n.parent.origin)
	}
	object.SetMatrix(mgl64.Translate3D(offset[0], offset[1], offset[2]))

	native := n.points
	object.SetPointFilter(func(index int) bool {
		return filter(&native[index])
	})
	n.sceneNode = object
	return object
}
