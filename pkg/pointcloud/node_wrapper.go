package pointcloud

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/metadata"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

const (
	DefaultPointBudget    = 2_000_000
	DefaultPointSize      = 2.0
	DefaultPointSizeType  = PointSizeAdaptive
	DefaultPointColorType = PointColorRgb
	DefaultPointShape     = PointShapeCircle
)

// NodeWrapper controls one loaded point cloud. Every setter marks the node for redraw.
type NodeWrapper struct {
	id     uuid.UUID
	octree *octree.PointCloudOctree

	defaultMatrix mgl64.Mat4
	camera        *transform.CameraConfiguration

	pointBudget    int
	pointSize      float64
	pointSizeType  PointSizeType
	pointColorType PointColorType
	pointShape     PointShape
	needsRedraw    bool

	mu sync.Mutex
}

// NewNodeWrapper applies the default render settings to the octree.
func NewNodeWrapper(tree *octree.PointCloudOctree, meta *metadata.OctreeMetadata) *NodeWrapper {
	n := &NodeWrapper{
		id:            uuid.New(),
		octree:        tree,
		defaultMatrix: mgl64.Ident4(),
	}
	if meta != nil {
		n.defaultMatrix = meta.ModelMatrix
		n.camera = meta.CameraConfiguration
	}
	n.SetPointBudget(DefaultPointBudget)
	n.SetPointSize(DefaultPointSize)
	n.SetPointSizeType(DefaultPointSizeType)
	n.SetPointColorType(DefaultPointColorType)
	n.SetPointShape(DefaultPointShape)
	return n
}

func (n *NodeWrapper) ID() uuid.UUID {
	return n.id
}

// Octree is the streamed octree behind the node.
func (n *NodeWrapper) Octree() *octree.PointCloudOctree {
	return n.octree
}

// Object is the scene object holding the point cloud.
func (n *NodeWrapper) Object() *scene.Object {
	return n.octree.Object()
}

func (n *NodeWrapper) PointBudget() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pointBudget
}

func (n *NodeWrapper) SetPointBudget(budget int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pointBudget = budget
	n.octree.SetPointBudget(budget)
	n.needsRedraw = true
}

func (n *NodeWrapper) PointSize() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pointSize
}

func (n *NodeWrapper) SetPointSize(size float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pointSize = size
	n.octree.Material().SetSize(size)
	n.needsRedraw = true
}

func (n *NodeWrapper) PointSizeType() PointSizeType {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pointSizeType
}

// SetPointSizeType ignores values that are not one of the PointSize constants.
func (n *NodeWrapper) SetPointSizeType(t PointSizeType) {
	native, ok := pointSizeTypes[t]
	if !ok {
		glog.Warningf("ignoring unknown %T %q", t, t)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pointSizeType = t
	n.octree.Material().SetSizeType(native)
	n.needsRedraw = true
}

func (n *NodeWrapper) PointColorType() PointColorType {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pointColorType
}

func (n *NodeWrapper) SetPointColorType(t PointColorType) {
	native, ok := pointColorTypes[t]
	if !ok {
		glog.Warningf("ignoring unknown %T %q", t, t)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pointColorType = t
	n.octree.Material().SetColorType(native)
	n.needsRedraw = true
}

func (n *NodeWrapper) PointShape() PointShape {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pointShape
}

func (n *NodeWrapper) SetPointShape(s PointShape) {
	native, ok := pointShapes[s]
	if !ok {
		glog.Warningf("ignoring unknown %T %q", s, s)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pointShape = s
	n.octree.Material().SetShape(native)
	n.needsRedraw = true
}

// SetClassVisible shows or hides the points of a class present in the data.
func (n *NodeWrapper) SetClassVisible(code int, visible bool) error {
	weight := 0.0
	if visible {
		weight = 1.0
	}
	if !n.octree.Material().SetClassWeight(code, weight) {
		return &UnknownClassError{Code: code}
	}
	n.mu.Lock()
	n.needsRedraw = true
	n.mu.Unlock()
	return nil
}

func (n *NodeWrapper) IsClassVisible(code int) (bool, error) {
	color, ok := n.octree.Material().ClassColor(code)
	if !ok {
		return false, &UnknownClassError{Code: code}
	}
	return color[3] != 0, nil
}

func (n *NodeWrapper) HasClass(code int) bool {
	_, ok := n.octree.Material().ClassColor(code)
	return ok
}

// GetClasses lists the classification codes found in the data, ascending. Codes of tiles that have
// not been streamed yet are added as they arrive.
func (n *NodeWrapper) GetClasses() []int {
	return n.octree.Material().Classes()
}

// SetModelClippingPlanes hides the points on the negative side of any of the world space planes.
// An empty list removes clipping.
func (n *NodeWrapper) SetModelClippingPlanes(planes []geometry.Plane) {
	n.octree.SetClippingPlanes(planes)
	n.mu.Lock()
	n.needsRedraw = true
	n.mu.Unlock()
}

func (n *NodeWrapper) GetModelClippingPlanes() []geometry.Plane {
	return n.octree.ClippingPlanes()
}

// GetBoundingBox returns the tight box of the points in world space.
func (n *NodeWrapper) GetBoundingBox() geometry.Box3 {
	return n.octree.TightBoundingBox().ToYUpBox3().ApplyMatrix4(n.octree.Object().MatrixWorld())
}

func (n *NodeWrapper) SetModelTransformation(matrix mgl64.Mat4) {
	n.octree.Object().SetMatrix(matrix)
	n.mu.Lock()
	n.needsRedraw = true
	n.mu.Unlock()
}

func (n *NodeWrapper) GetModelTransformation() mgl64.Mat4 {
	return n.octree.Object().Matrix()
}

// DefaultModelTransformation is the model matrix resolved when the node was loaded.
func (n *NodeWrapper) DefaultModelTransformation() mgl64.Mat4 {
	return n.defaultMatrix
}

// CameraConfiguration is the stored camera of the model in world space, nil when there is none.
func (n *NodeWrapper) CameraConfiguration() *transform.CameraConfiguration {
	return n.camera
}

func (n *NodeWrapper) VisiblePointCount() int {
	return n.octree.NumVisiblePoints()
}

func (n *NodeWrapper) Visible() bool {
	return n.octree.Object().Visible()
}

func (n *NodeWrapper) SetVisible(visible bool) {
	n.octree.Object().SetVisible(visible)
	n.mu.Lock()
	n.needsRedraw = true
	n.mu.Unlock()
}

func (n *NodeWrapper) NeedsRedraw() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.needsRedraw
}

func (n *NodeWrapper) ResetRedraw() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.needsRedraw = false
}
