package grid_tree

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// Models a node of the octree, which can either be a leaf (a node without children nodes) or not.
// Each Node can contain up to eight children nodes. The node uses a grid algorithm to decide which points to store.
// It divides its bounding box in gridCells and only stores points retained by these cells, propagating the ones rejected
// by the cells to its children which will have smaller cells. Once cells get smaller than the minimum
// cell size the node keeps every point it receives.
type GridNode struct {
	key                 ept.Key
	parent              *GridNode
	boundingBox         *geometry.BoundingBox
	children            [8]*GridNode
	cells               map[gridIndex]*gridCell
	bucket              data.Points
	points              data.Points
	cellSize            float64
	minCellSize         float64
	totalNumberOfPoints int64
	numberOfPoints      int32
	leaf                int32

	sync.RWMutex
}

// Instantiates a new GridNode
func NewGridNode(key ept.Key, parent *GridNode, boundingBox *geometry.BoundingBox, cellSize, minCellSize float64) *GridNode {
	return &GridNode{
		key:         key,
		parent:      parent,
		boundingBox: boundingBox,
		cells:       make(map[gridIndex]*gridCell),
		cellSize:    cellSize,
		minCellSize: minCellSize,
		leaf:        1,
	}
}

// Adds a Point to the GridNode and propagates the point eventually pushed out to the appropriate children
func (n *GridNode) AddDataPoint(point *data.Point) {
	if point == nil {
		return
	}

	if n.cellSize < n.minCellSize {
		n.Lock()
		n.bucket = append(n.bucket, *point)
		n.Unlock()
		atomic.AddInt32(&n.numberOfPoints, 1)
	} else if pushedOut := n.getPointGridCell(point).pushPoint(point); pushedOut != nil {
		n.addPointToChildren(pushedOut)
	} else {
		atomic.AddInt32(&n.numberOfPoints, 1)
	}

	// in any case the total number of points stored by the node or its children increases by one
	atomic.AddInt64(&n.totalNumberOfPoints, 1)
}

func (n *GridNode) Key() ept.Key {
	return n.key
}

func (n *GridNode) GetBoundingBox() *geometry.BoundingBox {
	return n.boundingBox
}

func (n *GridNode) GetCellSize() float64 {
	return n.cellSize
}

func (n *GridNode) GetChildren() [8]*GridNode {
	n.RLock()
	defer n.RUnlock()
	return n.children
}

func (n *GridNode) GetParent() *GridNode {
	return n.parent
}

// Points retained by this node, available once the tree is built.
func (n *GridNode) GetPoints() data.Points {
	return n.points
}

func (n *GridNode) TotalNumberOfPoints() int64 {
	return atomic.LoadInt64(&n.totalNumberOfPoints)
}

func (n *GridNode) NumberOfPoints() int32 {
	return atomic.LoadInt32(&n.numberOfPoints)
}

func (n *GridNode) IsLeaf() bool {
	return atomic.LoadInt32(&n.leaf) == 1
}

func (n *GridNode) IsRoot() bool {
	return n.parent == nil
}

// loads the points stored in the grid cells into the slice data structure
// and recursively builds the points of its children.
func (n *GridNode) BuildPoints() {
	cells := make([]*gridCell, 0, len(n.cells))
	for _, cell := range n.cells {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i].index, cells[j].index
		if a.x != b.x {
			return a.x < b.x
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.z < b.z
	})

	points := make(data.Points, 0, len(cells)+len(n.bucket))
	for _, cell := range cells {
		points = append(points, *cell.point)
	}
	n.points = append(points, n.bucket...)
	n.cells = nil
	n.bucket = nil

	for _, child := range n.children {
		if child != nil {
			child.BuildPoints()
		}
	}
}

// gets the grid cell where the given point falls into, eventually creating it if it does not exist
func (n *GridNode) getPointGridCell(point *data.Point) *gridCell {
	index := gridIndex{
		getDimensionIndex(point.X, n.boundingBox.Xmin, n.cellSize),
		getDimensionIndex(point.Y, n.boundingBox.Ymin, n.cellSize),
		getDimensionIndex(point.Z, n.boundingBox.Zmin, n.cellSize),
	}

	n.RLock()
	cell := n.cells[index]
	n.RUnlock()
	if cell != nil {
		return cell
	}

	n.Lock()
	defer n.Unlock()
	cell = n.cells[index]
	if cell == nil {
		cell = &gridCell{
			index: index,
			center: [3]float64{
				n.boundingBox.Xmin + (float64(index.x)+0.5)*n.cellSize,
				n.boundingBox.Ymin + (float64(index.y)+0.5)*n.cellSize,
				n.boundingBox.Zmin + (float64(index.z)+0.5)*n.cellSize,
			},
		}
		n.cells[index] = cell
	}
	return cell
}

// add a point to the node children and clears the leaf flag from this node
func (n *GridNode) addPointToChildren(point *data.Point) {
	octant := n.boundingBox.OctantOf(point.X, point.Y, point.Z)
	n.getOrCreateChild(octant).AddDataPoint(point)
	atomic.StoreInt32(&n.leaf, 0)
}

func (n *GridNode) getOrCreateChild(octant uint8) *GridNode {
	n.RLock()
	child := n.children[octant]
	n.RUnlock()
	if child != nil {
		return child
	}

	n.Lock()
	defer n.Unlock()
	if n.children[octant] == nil {
		n.children[octant] = NewGridNode(
			n.key.Child(octant),
			n,
			geometry.NewBoundingBoxFromParent(n.boundingBox, &octant),
			n.cellSize/2.0,
			n.minCellSize,
		)
	}
	return n.children[octant]
}
