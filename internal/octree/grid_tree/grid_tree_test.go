package grid_tree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

func randomPoints(n int, seed int64) data.Points {
	r := rand.New(rand.NewSource(seed))
	points := make(data.Points, n)
	for i := range points {
		points[i] = *data.NewPoint(r.Float64()*100, r.Float64()*50, r.Float64()*10, 10, 20, 30, 1, uint8(i%3))
	}
	return points
}

func TestCubeAround(t *testing.T) {
	cube := CubeAround(geometry.NewBoundingBox(0, 100, 0, 50, 0, 10))
	assert.Equal(t, 0.0, cube.Xmin)
	assert.Equal(t, 100.0, cube.Xmax)
	assert.Equal(t, -25.0, cube.Ymin)
	assert.Equal(t, 75.0, cube.Ymax)
	assert.Equal(t, -45.0, cube.Zmin)
	assert.Equal(t, 55.0, cube.Zmax)
}

func TestGridTreeKeepsEveryPoint(t *testing.T) {
	points := randomPoints(5000, 1)
	tree := NewGridTree(geometry.NewBoundingBox(0, 100, 0, 50, 0, 10), 10, 1)
	require.NoError(t, tree.AddPoints(points))
	require.NoError(t, tree.Build())
	assert.True(t, tree.IsBuilt())

	nodes := tree.Nodes()
	total := 0
	for key, pts := range nodes {
		total += len(pts)
		bounds := key.Bounds(tree.GetBounds())
		for _, p := range pts {
			assert.True(t, bounds.Contains(p.X, p.Y, p.Z), "point %v outside of node %s", p, key)
		}
		if key != ept.RootKey {
			_, ok := nodes[key.Parent()]
			assert.True(t, ok, "node %s has no parent", key)
		}
	}
	assert.Equal(t, len(points), total)
	assert.Equal(t, int64(len(points)), tree.GetRootNode().TotalNumberOfPoints())
	assert.False(t, tree.GetRootNode().IsLeaf())
}

func TestGridNodeSampling(t *testing.T) {
	node := NewGridNode(ept.RootKey, nil, geometry.NewBoundingBox(0, 2, 0, 2, 0, 2), 1, 0.5)
	node.AddDataPoint(data.NewPoint(0.9, 0.9, 0.9, 0, 0, 0, 0, 0))
	node.AddDataPoint(data.NewPoint(0.5, 0.5, 0.5, 0, 0, 0, 0, 0))
	node.AddDataPoint(data.NewPoint(1.5, 1.5, 1.5, 0, 0, 0, 0, 0))
	node.BuildPoints()

	require.Len(t, node.GetPoints(), 2)
	assert.Equal(t, 0.5, node.GetPoints()[0].X)
	assert.Equal(t, 1.5, node.GetPoints()[1].X)
	assert.Equal(t, int32(2), node.NumberOfPoints())
	assert.Equal(t, int64(3), node.TotalNumberOfPoints())

	child := node.GetChildren()[0]
	require.NotNil(t, child)
	assert.Equal(t, ept.Key{D: 1}, child.Key())
	require.Len(t, child.GetPoints(), 1)
	assert.Equal(t, 0.9, child.GetPoints()[0].X)
}

func TestGridTreeBuildTwice(t *testing.T) {
	tree := NewGridTree(geometry.NewBoundingBox(0, 1, 0, 1, 0, 1), 0.5, 0.1)
	require.NoError(t, tree.Build())
	assert.Error(t, tree.Build())
	assert.Error(t, tree.AddPoints(randomPoints(1, 1)))
}
