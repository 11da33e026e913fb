package octree

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept/epttest"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

const fixturePoints = 3000

func dirFetch(dir string) ept.FetchFunc {
	return func(ctx context.Context, fileName string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, fileName))
	}
}

func openFixture(t *testing.T, fetch func(dir string) ept.FetchFunc) (*PointCloudOctree, *Loader, epttest.Dataset) {
	t.Helper()
	points := epttest.Grid(fixturePoints, geometry.NewBoundingBox(100, 140, 200, 220, 0, 5), 1, 2, 6)
	ds := epttest.Write(t, points, 2)

	loader := NewLoader(context.Background(), 2, 16)
	t.Cleanup(loader.Close)

	root, err := os.ReadFile(filepath.Join(ds.Dir, ept.RootFileName))
	require.NoError(t, err)
	tree, err := Open(context.Background(), "fixture", root, fetch(ds.Dir), loader)
	require.NoError(t, err)
	return tree, loader, ds
}

func framingCamera(tree *PointCloudOctree) *scene.Camera {
	camera := scene.NewPerspectiveCamera(60, 1, 0.1, 1000)
	camera.FrameBox(tree.TightBoundingBox().ToYUpBox3())
	return camera
}

// stream runs visibility updates, waiting for the loader after each one, until done reports true.
func stream(t *testing.T, tree *PointCloudOctree, loader *Loader, camera *scene.Camera, frames int, done func(VisibilityResult) bool) VisibilityResult {
	t.Helper()
	var result VisibilityResult
	for i := 0; i < frames; i++ {
		result = tree.UpdateVisibility(camera)
		if done(result) {
			return result
		}
		require.Eventually(t, func() bool { return loader.CurrentCount() == 0 }, 5*time.Second, time.Millisecond)
	}
	return result
}

func TestOpen(t *testing.T) {
	tree, _, ds := openFixture(t, dirFetch)

	assert.Equal(t, len(ds.Nodes), tree.NumNodes())
	assert.Equal(t, NodeLoaded, tree.GetRootNode().State())
	classes := lo.Keys(ds.Nodes[ept.RootKey].Classes())
	sort.Ints(classes)
	assert.Equal(t, classes, tree.Material().Classes())
	assert.Nil(t, tree.GetRootNode().SceneNode())

	for k := range ds.Nodes {
		node, ok := tree.Node(k)
		require.True(t, ok, k.String())
		assert.Equal(t, int64(len(ds.Nodes[k])), node.NumPoints())
		if k != ept.RootKey {
			assert.Equal(t, NodeUnloaded, node.State())
			assert.Same(t, node, node.GetParent().GetChildren()[k.Octant()])
		}
	}
}

func TestOpenRejectsUnsupportedData(t *testing.T) {
	_, err := Open(context.Background(), "bad", []byte(`{"bounds":[0,0,0,1,1,1],"dataType":"laszip","schema":[]}`), nil, nil)
	assert.ErrorContains(t, err, "laszip")
}

func TestUpdateVisibilityStreamsEveryNode(t *testing.T) {
	tree, loader, _ := openFixture(t, dirFetch)
	tree.SetMinNodePixelSize(0)
	camera := framingCamera(tree)

	result := stream(t, tree, loader, camera, 4*tree.NumNodes()+10, func(r VisibilityResult) bool {
		return len(r.VisibleNodes) == tree.NumNodes()
	})

	require.Len(t, result.VisibleNodes, tree.NumNodes())
	assert.Equal(t, fixturePoints, result.NumVisiblePoints)
	assert.Equal(t, fixturePoints, tree.NumVisiblePoints())

	stats := scene.Render(tree.Object(), camera)
	assert.Equal(t, fixturePoints, stats.Points)
	assert.Equal(t, tree.NumNodes()+1, stats.Objects)
}

func TestNodeObjectsKeepNativePositions(t *testing.T) {
	tree, loader, _ := openFixture(t, dirFetch)
	tree.SetMinNodePixelSize(0)
	camera := framingCamera(tree)
	tree.Object().SetMatrix(mgl64.Translate3D(10, 0, 0))

	stream(t, tree, loader, camera, 20, func(r VisibilityResult) bool { return len(r.VisibleNodes) > 1 })

	for _, node := range tree.VisibleNodes() {
		object := node.SceneNode()
		native := node.Points()[0]
		local := object.Points()[0]
		world := mgl64.TransformCoordinate(mgl64.Vec3{local.X, local.Y, local.Z}, object.MatrixWorld())
		expected := geometry.ToYUp(native.X, native.Y, native.Z).Add(mgl64.Vec3{10, 0, 0})
		assert.True(t, world.ApproxEqualThreshold(expected, 1e-6), "%v != %v", world, expected)
	}
}

func TestUpdateVisibilityRespectsPointBudget(t *testing.T) {
	tree, loader, _ := openFixture(t, dirFetch)
	tree.SetMinNodePixelSize(0)
	largestChild := 0
	for _, child := range tree.GetRootNode().GetChildren() {
		if child != nil {
			largestChild = max(largestChild, int(child.NumPoints()))
		}
	}
	budget := int(tree.GetRootNode().NumPoints()) + largestChild
	tree.SetPointBudget(budget)
	camera := framingCamera(tree)

	for i := 0; i < 100; i++ {
		result := tree.UpdateVisibility(camera)
		assert.LessOrEqual(t, result.NumVisiblePoints, budget)

		sum := 0
		for _, node := range result.VisibleNodes {
			sum += int(node.NumPoints())
		}
		assert.LessOrEqual(t, sum, budget)
		assert.LessOrEqual(t, scene.Render(tree.Object(), camera).Points, budget)
		assert.LessOrEqual(t, tree.NumResidentPoints(), int64(loadedPointsFactor*budget))
		require.Eventually(t, func() bool { return loader.CurrentCount() == 0 }, 5*time.Second, time.Millisecond)
	}
	assert.Greater(t, tree.NumVisiblePoints(), int(tree.GetRootNode().NumPoints()))
}

func TestResidentPointsStayBoundedWhileMoving(t *testing.T) {
	tree, loader, _ := openFixture(t, dirFetch)
	tree.SetMinNodePixelSize(0)
	budget := fixturePoints / 6
	tree.SetPointBudget(budget)
	camera := framingCamera(tree)
	center := tree.TightBoundingBox().ToYUpBox3().Center()
	distance := camera.Position.Sub(center).Len()

	for i := 0; i < 40; i++ {
		offset := mgl64.Vec3{float64(i%4-2) * 10, 0, float64(i%5-2) * 4}
		camera.LookAt(center.Add(offset).Add(mgl64.Vec3{0, distance / 3, distance / 3}), center.Add(offset))
		tree.UpdateVisibility(camera)
		assert.LessOrEqual(t, tree.NumResidentPoints(), int64(loadedPointsFactor*budget))
		require.Eventually(t, func() bool { return loader.CurrentCount() == 0 }, 5*time.Second, time.Millisecond)
	}
}

func TestSetPointBudgetReleasesMemory(t *testing.T) {
	tree, loader, _ := openFixture(t, dirFetch)
	tree.SetMinNodePixelSize(0)
	camera := framingCamera(tree)
	original := tree.PointBudget()

	stream(t, tree, loader, camera, 4*tree.NumNodes()+10, func(r VisibilityResult) bool {
		return len(r.VisibleNodes) == tree.NumNodes()
	})
	root := tree.GetRootNode().(*OctreeNode)
	resident := tree.NumResidentPoints()
	require.Equal(t, int64(fixturePoints)-root.NumPoints(), resident)

	budget := int(resident / 4)
	tree.SetPointBudget(budget)
	assert.LessOrEqual(t, tree.NumResidentPoints(), int64(loadedPointsFactor*budget))
	assert.Equal(t, NodeLoaded, root.State())
	assert.NotNil(t, root.SceneNode())

	unloaded := 0
	for _, node := range tree.nodes {
		if node.IsRoot() {
			continue
		}
		switch node.State() {
		case NodeUnloaded:
			unloaded++
			assert.Nil(t, node.SceneNode())
			assert.Nil(t, node.Points())
		case NodeLoaded:
			// attached nodes keep their parents attached
			assert.NotNil(t, node.parent.SceneNode(), node.Key().String())
		}
	}
	assert.Positive(t, unloaded)

	visible := tree.VisibleNodes()
	assert.Less(t, len(visible), tree.NumNodes())
	sum := 0
	for _, node := range visible {
		assert.NotNil(t, node.SceneNode())
		sum += int(node.NumPoints())
	}
	assert.Equal(t, sum, tree.NumVisiblePoints())

	tree.SetPointBudget(original)
	result := stream(t, tree, loader, camera, 4*tree.NumNodes()+10, func(r VisibilityResult) bool {
		return len(r.VisibleNodes) == tree.NumNodes()
	})
	assert.Len(t, result.VisibleNodes, tree.NumNodes())
	assert.Equal(t, resident, tree.NumResidentPoints())
}

func TestClippingPlanes(t *testing.T) {
	tree, loader, _ := openFixture(t, dirFetch)
	tree.SetMinNodePixelSize(0)
	camera := framingCamera(tree)
	planes := []geometry.Plane{geometry.NewPlaneFromNormalAndPoint(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{125, 0, 0})}
	tree.SetClippingPlanes(planes)

	got := tree.ClippingPlanes()
	assert.Equal(t, planes, got)
	got[0].Constant = 0
	assert.Equal(t, planes, tree.ClippingPlanes())

	stream(t, tree, loader, camera, 4*tree.NumNodes()+10, func(VisibilityResult) bool { return false })
	visible := tree.VisibleNodes()
	require.NotEmpty(t, visible)
	assert.Less(t, len(visible), tree.NumNodes())
	for _, node := range visible {
		assert.GreaterOrEqual(t, node.GetBoundingBox().Max.X(), 125.0, node.Key().String())
		for _, p := range node.Points() {
			x := geometry.ToYUp(p.X, p.Y, p.Z).X()
			assert.Equal(t, x >= 125, tree.acceptPoint(&p))
		}
	}
	for _, node := range tree.nodes {
		if node.GetBoundingBox().Max.X() < 125 {
			assert.NotEqual(t, NodeLoaded, node.State(), node.Key().String())
		}
	}

	tree.SetClippingPlanes(nil)
	assert.Empty(t, tree.ClippingPlanes())
	result := stream(t, tree, loader, camera, 4*tree.NumNodes()+10, func(r VisibilityResult) bool {
		return len(r.VisibleNodes) == tree.NumNodes()
	})
	assert.Len(t, result.VisibleNodes, tree.NumNodes())
}

func TestUpdateVisibilityOutsideFrustum(t *testing.T) {
	tree, _, _ := openFixture(t, dirFetch)
	camera := framingCamera(tree)
	camera.LookAt(camera.Position, camera.Position.Add(mgl64.Vec3{0, 0, 1}))

	result := tree.UpdateVisibility(camera)
	assert.Empty(t, result.VisibleNodes)
	assert.Zero(t, result.NumVisiblePoints)
	assert.Zero(t, result.NodesLoading)
}

func TestUpdateVisibilityHiddenOctree(t *testing.T) {
	tree, _, _ := openFixture(t, dirFetch)
	tree.Object().SetVisible(false)
	result := tree.UpdateVisibility(framingCamera(tree))
	assert.Empty(t, result.VisibleNodes)
}

func TestFailedNodesAreSkipped(t *testing.T) {
	failing := func(dir string) ept.FetchFunc {
		fetch := dirFetch(dir)
		return func(ctx context.Context, fileName string) ([]byte, error) {
			if strings.HasPrefix(fileName, ept.DataFolder) && fileName != ept.RootKey.DataFile() {
				return nil, errors.New("tile is gone")
			}
			return fetch(ctx, fileName)
		}
	}
	tree, loader, _ := openFixture(t, failing)
	tree.SetMinNodePixelSize(0)

	result := stream(t, tree, loader, framingCamera(tree), 10, func(r VisibilityResult) bool { return r.NodeLoadFailed })
	assert.True(t, result.NodeLoadFailed)
	require.Len(t, result.VisibleNodes, 1)
	assert.Equal(t, ept.RootKey, result.VisibleNodes[0].Key())

	var failed *OctreeNode
	for _, child := range tree.GetRootNode().GetChildren() {
		if child != nil && child.State() == NodeFailed {
			failed = child.(*OctreeNode)
		}
	}
	require.NotNil(t, failed)
	assert.ErrorContains(t, failed.Err(), "tile is gone")
}

func TestHiddenClassesCannotBePicked(t *testing.T) {
	tree, _, _ := openFixture(t, dirFetch)
	camera := framingCamera(tree)
	tree.UpdateVisibility(camera)

	root := tree.GetRootNode().SceneNode()
	require.NotNil(t, root)
	native := tree.GetRootNode().(*OctreeNode).Points()
	target := geometry.ToYUp(native[0].X, native[0].Y, native[0].Z)

	raycaster := scene.NewRaycaster()
	raycaster.PointsThreshold = 0.01
	raycaster.Ray = geometry.NewRay(camera.Position, target.Sub(camera.Position))
	hits := raycaster.IntersectObject(tree.Object(), true)
	require.NotEmpty(t, hits)

	require.True(t, tree.Material().SetClassWeight(int(native[0].Classification), 0))
	for _, hit := range raycaster.IntersectObject(tree.Object(), true) {
		assert.NotEqual(t, native[0].Classification, native[hit.Index].Classification)
	}
}

func TestMaterialClassification(t *testing.T) {
	m := NewMaterial()
	assert.Empty(t, m.Classes())
	_, version := m.ClassificationTexture()

	m.AddClasses(map[int]struct{}{2: {}, 70: {}, 0: {}})
	assert.Equal(t, []int{0, 2, 70}, m.Classes())
	color, ok := m.ClassColor(2)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec4{0.63, 0.32, 0.18, 1}, color)
	color, _ = m.ClassColor(70)
	assert.Equal(t, 1.0, color[3])

	assert.False(t, m.SetClassWeight(5, 0))
	assert.True(t, m.SetClassWeight(2, 0))
	assert.False(t, m.ClassVisible(2))
	assert.True(t, m.ClassVisible(70))

	texture, next := m.ClassificationTexture()
	assert.Greater(t, next, version)
	assert.Len(t, texture, 4*256)
	assert.Equal(t, uint8(0), texture[4*2+3])
	assert.Equal(t, uint8(255), texture[4*70+3])
	assert.Equal(t, uint8(127), texture[4*5+3])

	// a class seen again keeps its weight
	m.AddClasses(map[int]struct{}{2: {}})
	assert.False(t, m.ClassVisible(2))
}
