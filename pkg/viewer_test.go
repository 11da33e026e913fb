package pkg_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/config"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept/epttest"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/pkg"
	"github.com/ecopia-map/pointcloud_streamer/pkg/pointcloud"
)

func openViewer(t *testing.T, opts *config.Options, camera string) (*pkg.Viewer[client.LocalModelIdentifier], epttest.Dataset) {
	t.Helper()
	points := epttest.Grid(1500, geometry.NewBoundingBox(-10, 10, -10, 10, 0, 5), 2, 6)
	ds := epttest.Write(t, points, 0)
	if camera != "" {
		require.NoError(t, os.WriteFile(filepath.Join(ds.Dir, client.CameraFileName), []byte(camera), 0o644))
	}

	c := client.NewLocalClient(filepath.Dir(ds.Dir))
	v, err := pkg.OpenViewer[client.LocalModelIdentifier](context.Background(), c,
		client.LocalModelIdentifier{Path: filepath.Base(ds.Dir)}, opts, 800, 600)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v, ds
}

func TestViewerStreamsModel(t *testing.T) {
	opts := config.Default()
	opts.Render.MinNodePixelSize = 0
	opts.Render.PointColorType = "classification"
	v, ds := openViewer(t, opts, "")

	node := v.Node()
	assert.Equal(t, pointcloud.PointColorClassification, node.PointColorType())
	assert.Equal(t, 0.0, node.Octree().MinNodePixelSize())
	assert.Equal(t, 600.0, v.Camera().ViewportHeight)

	stats, err := v.Stream(context.Background(), len(ds.Nodes)+5)
	require.NoError(t, err)
	assert.Equal(t, 1500, node.VisiblePointCount())
	assert.Equal(t, 1500, stats.Points)
	assert.Equal(t, []int{2, 6}, node.GetClasses())
}

func TestViewerHideClassesAndPick(t *testing.T) {
	opts := config.Default()
	v, _ := openViewer(t, opts, "")
	_, err := v.Stream(context.Background(), 3)
	require.NoError(t, err)

	require.Error(t, v.HideClasses([]int{2, 40}))
	require.NoError(t, v.HideClasses([]int{2}))
	visible, err := v.Node().IsClassVisible(2)
	require.NoError(t, err)
	assert.False(t, visible)

	hits, err := v.Pick(mgl64.Vec2{0, 0})
	require.NoError(t, err)
	for _, hit := range hits {
		assert.Equal(t, uint8(6), hit.Object.Points()[hit.PointIndex].Classification)
	}
}

func TestViewerUsesStoredCamera(t *testing.T) {
	v, _ := openViewer(t, config.Default(), `{"position": [0, 0, 50], "target": [0, 0, 0]}`)

	stored := v.Node().CameraConfiguration()
	require.NotNil(t, stored)
	assert.Equal(t, stored.Position, v.Camera().Position)
	assert.Equal(t, stored.Target, v.Camera().Target)
}

func TestOpenViewerErrors(t *testing.T) {
	c := client.NewLocalClient(t.TempDir())
	_, err := pkg.OpenViewer[client.LocalModelIdentifier](context.Background(), c,
		client.LocalModelIdentifier{Path: "missing"}, config.Default(), 800, 600)
	assert.Error(t, err)

	_, err = pkg.OpenViewer[client.LocalModelIdentifier](context.Background(), c,
		client.LocalModelIdentifier{Path: "missing"}, config.Default(), 0, 600)
	assert.Error(t, err)
}
