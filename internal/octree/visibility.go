package octree

import (
	"container/heap"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/glog"

	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

// VisibilityResult summarizes one visibility update.
type VisibilityResult struct {
	VisibleNodes     []*OctreeNode
	NumVisiblePoints int
	// nodes queued for loading by this update
	NodesLoading   int
	NodeLoadFailed bool
	// a loaded node had to wait for a later update to be attached
	ExceededMaxLoadsToScene bool
}

type queueItem struct {
	weight float64
	node   *OctreeNode
}

// priorityQueue pops the heaviest item first.
type priorityQueue []queueItem

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].weight > q[j].weight }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// UpdatePointClouds runs UpdateVisibility for every octree with the same camera.
func UpdatePointClouds(trees []*PointCloudOctree, camera *scene.Camera) []VisibilityResult {
	results := make([]VisibilityResult, len(trees))
	for i, t := range trees {
		results[i] = t.UpdateVisibility(camera)
	}
	return results
}

// UpdateVisibility selects the nodes to show for the camera. Nodes are visited by decreasing projected
// size until the point budget is exhausted. Visible loaded nodes are attached to the scene, unloaded
// ones are queued on the loader, and nodes not seen for a while are unloaded once the attached points
// exceed twice the budget. Must be called from the render loop.
func (t *PointCloudOctree) UpdateVisibility(camera *scene.Camera) VisibilityResult {
	t.Lock()
	defer t.Unlock()

	var result VisibilityResult
	t.numVisiblePoints = 0
	t.visibleNodes = nil
	t.hideDescendants()

	if !t.object.Visible() || t.root == nil {
		return result
	}

	t.updateLocalPlanes()
	world := t.object.MatrixWorld()
	frustum := geometry.FrustumFromMatrix(camera.ProjectionMatrix().Mul4(camera.ViewMatrix()).Mul4(world))
	cameraPosition := mgl64.TransformCoordinate(camera.Position, world.Inv())

	queue := &priorityQueue{{weight: math.MaxFloat64, node: t.root}}
	var unloaded []*OctreeNode
	loadedToScene := 0

	for queue.Len() > 0 {
		node := heap.Pop(queue).(queueItem).node

		if t.numVisiblePoints+int(node.numPoints) > t.pointBudget {
			break
		}
		if !frustum.IntersectsBox(node.bounds) || t.clipsBox(node.bounds) {
			continue
		}

		switch node.State() {
		case NodeFailed:
			result.NodeLoadFailed = true
			continue
		case NodeUnloaded:
			if node.parent == nil || node.parent.SceneNode() != nil {
				unloaded = append(unloaded, node)
			}
		case NodeLoaded:
			if node.SceneNode() == nil && (node.parent == nil || node.parent.SceneNode() != nil) {
				if loadedToScene < t.maxLoadsToScene {
					t.attach(node)
					loadedToScene++
				} else {
					result.ExceededMaxLoadsToScene = true
				}
			}
		}

		t.numVisiblePoints += int(node.numPoints)
		if sceneNode := node.SceneNode(); sceneNode != nil {
			sceneNode.SetVisible(true)
			t.visibleNodes = append(t.visibleNodes, node)
			if node.parent != nil {
				t.lru.touch(node)
			}
		}

		t.pushChildren(queue, node, cameraPosition, camera)
	}

	for i := 0; i < len(unloaded) && result.NodesLoading < t.maxNumNodesLoading; i++ {
		if t.loader != nil && t.loader.load(t, unloaded[i]) {
			result.NodesLoading++
		}
	}

	t.freeMemory()

	result.VisibleNodes = append([]*OctreeNode(nil), t.visibleNodes...)
	result.NumVisiblePoints = t.numVisiblePoints
	glog.V(2).Infof("%s: %d visible nodes, %d points, %d queued", t.name, len(t.visibleNodes), t.numVisiblePoints, result.NodesLoading)
	return result
}

func (t *PointCloudOctree) pushChildren(queue *priorityQueue, node *OctreeNode, cameraPosition mgl64.Vec3, camera *scene.Camera) {
	for _, child := range node.children {
		if child == nil {
			continue
		}
		center := child.bounds.Center()
		radius := child.bounds.Size().Len() / 2
		distance := center.Sub(cameraPosition).Len()

		screenPixelRadius := camera.ProjectedRadius(radius, distance)
		if screenPixelRadius < t.minNodePixelSize {
			continue
		}

		weight := screenPixelRadius + 1/distance
		if distance < radius {
			weight = math.MaxFloat64
		}
		heap.Push(queue, queueItem{weight: weight, node: child})
	}
}

// attach adds the scene object of a loaded node under its parent's object.
func (t *PointCloudOctree) attach(node *OctreeNode) {
	object := node.toSceneNode(t.acceptPoint)
	parent := t.object
	if node.parent != nil {
		parent = node.parent.SceneNode()
	}
	parent.Add(object)
}
