// Package epttest builds small EPT datasets on disk for tests.
package epttest

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree/grid_tree"
)

// Dataset describes a dataset written by Write.
type Dataset struct {
	Dir      string
	Metadata *ept.Metadata
	Nodes    map[ept.Key]data.Points
}

// Grid returns n points spread over the box with classifications cycling through classes.
func Grid(n int, box *geometry.BoundingBox, classes ...uint8) data.Points {
	if len(classes) == 0 {
		classes = []uint8{1}
	}
	r := rand.New(rand.NewSource(int64(n)))
	points := make(data.Points, n)
	for i := range points {
		points[i] = data.Point{
			X:              box.Xmin + r.Float64()*(box.Xmax-box.Xmin),
			Y:              box.Ymin + r.Float64()*(box.Ymax-box.Ymin),
			Z:              box.Zmin + r.Float64()*(box.Zmax-box.Zmin),
			R:              uint8(i % 256),
			G:              128,
			B:              255,
			Intensity:      uint16(i),
			Classification: classes[i%len(classes)],
		}
	}
	return points
}

// Write samples the points into an octree and writes it as an EPT dataset in a temporary directory.
func Write(t testing.TB, points data.Points, hierarchyStep int) Dataset {
	t.Helper()

	tight := points.Bounds()
	tree := grid_tree.NewGridTree(tight, diagonalCell(tight), diagonalCell(tight)/64)
	require.NoError(t, tree.AddPoints(points))
	require.NoError(t, tree.Build())

	dir := t.TempDir()
	m := ept.NewMetadata(tree.GetBounds(), tight, int64(len(points)))
	nodes := tree.Nodes()
	require.NoError(t, ept.WriteDataset(context.Background(), dir, m, nodes, hierarchyStep, 2))
	return Dataset{Dir: dir, Metadata: m, Nodes: nodes}
}

func diagonalCell(b *geometry.BoundingBox) float64 {
	return b.Diagonal() / 8
}
