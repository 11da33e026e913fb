// Package octree streams an EPT point cloud: it keeps the node hierarchy of a dataset, fetches the
// tiles the camera needs under a point budget and exposes the loaded points as scene objects.
package octree

import (
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

type NodeState int32

const (
	NodeUnloaded NodeState = iota
	NodeLoading
	NodeLoaded
	NodeFailed
)

func (s NodeState) String() string {
	switch s {
	case NodeLoading:
		return "loading"
	case NodeLoaded:
		return "loaded"
	case NodeFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

type ITree interface {
	GetRootNode() INode
	// Object is the container every node object is attached under
	Object() *scene.Object
	NumVisiblePoints() int
}

type INode interface {
	Key() ept.Key
	IsRoot() bool
	GetParent() INode
	GetChildren() [8]INode
	// Bounds of the node in the Y-up space of its octree
	GetBoundingBox() geometry.Box3
	NumPoints() int64
	State() NodeState
	// SceneNode is nil until the node's points have been attached to the scene
	SceneNode() *scene.Object
}
