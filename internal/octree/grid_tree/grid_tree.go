// Package grid_tree samples a set of points into an octree suitable for level of detail streaming.
package grid_tree

import (
	"runtime"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// Represents a GridTree of points and contains all information needed to propagate points in the tree
type GridTree struct {
	rootNode    *GridNode
	bounds      *geometry.BoundingBox
	maxCellSize float64
	minCellSize float64
	built       bool
	sync.RWMutex
}

// Builds an empty GridTree over the cube enclosing bounds
func NewGridTree(bounds *geometry.BoundingBox, maxCellSize, minCellSize float64) *GridTree {
	cube := CubeAround(bounds)
	return &GridTree{
		rootNode:    NewGridNode(ept.RootKey, nil, cube, maxCellSize, minCellSize),
		bounds:      cube,
		maxCellSize: maxCellSize,
		minCellSize: minCellSize,
	}
}

// CubeAround returns the smallest cube sharing the center of b that contains b.
func CubeAround(b *geometry.BoundingBox) *geometry.BoundingBox {
	half := b.Xmax - b.Xmin
	if d := b.Ymax - b.Ymin; d > half {
		half = d
	}
	if d := b.Zmax - b.Zmin; d > half {
		half = d
	}
	half /= 2
	if half == 0 {
		half = 0.5
	}
	return geometry.NewBoundingBox(
		b.Xmid-half, b.Xmid+half,
		b.Ymid-half, b.Ymid+half,
		b.Zmid-half, b.Zmid+half,
	)
}

// Adds the points to the tree using one loader per CPU. Points outside the tree bounds are dropped.
func (tree *GridTree) AddPoints(points data.Points) error {
	tree.Lock()
	defer tree.Unlock()
	if tree.built {
		return errors.New("octree already built")
	}

	work := make(chan *data.Point, 1024)
	var waitGroup sync.WaitGroup
	for i := 0; i < runtime.NumCPU(); i++ {
		waitGroup.Add(1)
		go tree.launchPointLoader(work, &waitGroup)
	}

	dropped := 0
	for i := range points {
		if !tree.bounds.Contains(points[i].X, points[i].Y, points[i].Z) {
			dropped++
			continue
		}
		work <- &points[i]
	}
	close(work)
	waitGroup.Wait()

	if dropped > 0 {
		glog.Warningf("dropped %d points outside of the tree bounds", dropped)
	}
	return nil
}

func (tree *GridTree) launchPointLoader(work chan *data.Point, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()
	for point := range work {
		tree.rootNode.AddDataPoint(point)
	}
}

// Builds the hierarchical tree structure
func (tree *GridTree) Build() error {
	tree.Lock()
	defer tree.Unlock()
	if tree.built {
		return errors.New("octree already built")
	}
	tree.rootNode.BuildPoints()
	tree.built = true
	glog.V(1).Infof("built octree with %d points", tree.rootNode.TotalNumberOfPoints())
	return nil
}

func (tree *GridTree) GetRootNode() *GridNode {
	return tree.rootNode
}

func (tree *GridTree) GetBounds() *geometry.BoundingBox {
	return tree.bounds
}

func (tree *GridTree) IsBuilt() bool {
	tree.RLock()
	defer tree.RUnlock()
	return tree.built
}

// Nodes returns the points of every non empty node by key.
func (tree *GridTree) Nodes() map[ept.Key]data.Points {
	nodes := make(map[ept.Key]data.Points)
	var walk func(n *GridNode)
	walk = func(n *GridNode) {
		if len(n.points) > 0 {
			nodes[n.key] = n.points
		}
		for _, child := range n.GetChildren() {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(tree.rootNode)
	return nodes
}
