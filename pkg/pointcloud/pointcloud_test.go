package pointcloud

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept/epttest"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/metadata"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
	"github.com/ecopia-map/pointcloud_streamer/internal/progress"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

type localManager = Manager[client.LocalModelIdentifier]

// gatedClient holds GetModelURL until the gate is closed.
type gatedClient struct {
	*client.LocalClient
	gate  chan struct{}
	mu    sync.Mutex
	calls int
}

func (c *gatedClient) GetModelURL(ctx context.Context, id client.LocalModelIdentifier) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	<-c.gate
	return c.LocalClient.GetModelURL(ctx, id)
}

func writeFixture(t *testing.T) (epttest.Dataset, client.LocalModelIdentifier) {
	t.Helper()
	points := epttest.Grid(2000, geometry.NewBoundingBox(10, 30, -5, 5, 100, 104), 2, 5, 6)
	ds := epttest.Write(t, points, 0)
	return ds, client.LocalModelIdentifier{Path: filepath.Base(ds.Dir)}
}

func newManager(t *testing.T, c client.ModelDataClient[client.LocalModelIdentifier]) *localManager {
	t.Helper()
	loader := octree.NewLoader(context.Background(), 2, 16)
	m := NewManager(
		metadata.NewRepository[client.LocalModelIdentifier](c, ""),
		NewNodeFactory[client.LocalModelIdentifier](c, loader),
	)
	t.Cleanup(m.Close)
	return m
}

func loadFixture(t *testing.T) (*localManager, *NodeWrapper) {
	t.Helper()
	ds, id := writeFixture(t)
	m := newManager(t, client.NewLocalClient(filepath.Dir(ds.Dir)))
	node, err := m.AddModel(context.Background(), id)
	require.NoError(t, err)
	return m, node
}

func framing(node *NodeWrapper) *scene.Camera {
	camera := scene.NewPerspectiveCamera(60, 1, 0.1, 1000)
	camera.FrameBox(node.GetBoundingBox())
	return camera
}

func renderFrames(t *testing.T, m *localManager, camera *scene.Camera, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		scene.Render(m.Object(), camera)
		require.Eventually(t, func() bool { return m.factory.Loader().CurrentCount() == 0 }, 5*time.Second, time.Millisecond)
	}
}

// emptyNode wraps an octree without any tile.
func emptyNode(t *testing.T) *NodeWrapper {
	t.Helper()
	cube := geometry.NewBoundingBox(0, 1, 0, 1, 0, 1)
	tree, err := octree.NewPointCloudOctree("empty", ept.NewMetadata(cube, cube, 0), ept.Hierarchy{ept.RootKey: 0}, nil, nil)
	require.NoError(t, err)
	return NewNodeWrapper(tree, nil)
}

func TestParseEnums(t *testing.T) {
	assert.Equal(t, PointSizeAdaptive, ParsePointSizeType(" adaptive"))
	assert.Equal(t, PointSizeType(""), ParsePointSizeType("huge"))
	assert.Equal(t, PointColorLevelOfDetail, ParsePointColorType("lod"))
	assert.Equal(t, PointColorType(""), ParsePointColorType("rainbow"))
	assert.Equal(t, PointShapeSquare, ParsePointShape("Square"))
	assert.Equal(t, "CIRCLE", PointShapeCircle.String())
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "Ground", ClassName(int(Ground)))
	assert.Equal(t, "HighNoise", ClassName(int(HighNoise)))
	assert.Equal(t, "Reserved40", ClassName(40))
	assert.Equal(t, "UserDefined2", ClassName(int(UserDefinableOffset)+2))
}

func TestNodeWrapperDefaults(t *testing.T) {
	node := emptyNode(t)
	assert.Equal(t, 2_000_000, node.PointBudget())
	assert.Equal(t, 2_000_000, node.Octree().PointBudget())
	assert.Equal(t, 2.0, node.PointSize())
	assert.Equal(t, PointSizeAdaptive, node.PointSizeType())
	assert.Equal(t, PointColorRgb, node.PointColorType())
	assert.Equal(t, PointShapeCircle, node.PointShape())

	material := node.Octree().Material()
	assert.Equal(t, octree.PointShapeCircle, material.Shape())
	assert.Equal(t, octree.PointSizeAdaptive, material.SizeType())
	assert.Equal(t, octree.PointColorRGB, material.ColorType())
	assert.Equal(t, 2.0, material.Size())
}

func TestNodeWrapperSettersMarkRedraw(t *testing.T) {
	node := emptyNode(t)
	setters := map[string]func(){
		"budget":     func() { node.SetPointBudget(10) },
		"size":       func() { node.SetPointSize(4) },
		"size type":  func() { node.SetPointSizeType(PointSizeFixed) },
		"color type": func() { node.SetPointColorType(PointColorIntensity) },
		"shape":      func() { node.SetPointShape(PointShapeSquare) },
		"transform":  func() { node.SetModelTransformation(mgl64.Translate3D(1, 2, 3)) },
		"visible":    func() { node.SetVisible(false) },
		"clipping":   func() { node.SetModelClippingPlanes([]geometry.Plane{geometry.NewPlane(mgl64.Vec3{0, 1, 0}, 0)}) },
	}
	for name, set := range setters {
		t.Run(name, func(t *testing.T) {
			node.ResetRedraw()
			assert.False(t, node.NeedsRedraw())
			set()
			assert.True(t, node.NeedsRedraw())
		})
	}
	assert.Equal(t, octree.PointColorIntensity, node.Octree().Material().ColorType())
	assert.Equal(t, octree.PointSizeFixed, node.Octree().Material().SizeType())
	assert.Equal(t, []geometry.Plane{{Normal: mgl64.Vec3{0, 1, 0}}}, node.GetModelClippingPlanes())
}

func TestNodeWrapperIgnoresUnknownEnums(t *testing.T) {
	node := emptyNode(t)
	node.ResetRedraw()

	node.SetPointSizeType(ParsePointSizeType("huge"))
	node.SetPointColorType(PointColorType("rainbow"))
	node.SetPointShape("")

	assert.Equal(t, PointSizeAdaptive, node.PointSizeType())
	assert.Equal(t, PointColorRgb, node.PointColorType())
	assert.Equal(t, PointShapeCircle, node.PointShape())
	material := node.Octree().Material()
	assert.Equal(t, octree.PointSizeAdaptive, material.SizeType())
	assert.Equal(t, octree.PointColorRGB, material.ColorType())
	assert.Equal(t, octree.PointShapeCircle, material.Shape())
	assert.False(t, node.NeedsRedraw())
}

func TestClassVisibility(t *testing.T) {
	_, node := loadFixture(t)
	classes := node.GetClasses()
	require.NotEmpty(t, classes)
	assert.IsIncreasing(t, classes)

	for _, code := range classes {
		assert.True(t, node.HasClass(code))
		require.NoError(t, node.SetClassVisible(code, false))
		visible, err := node.IsClassVisible(code)
		require.NoError(t, err)
		assert.False(t, visible)

		require.NoError(t, node.SetClassVisible(code, true))
		visible, err = node.IsClassVisible(code)
		require.NoError(t, err)
		assert.True(t, visible)
	}

	var unknown *UnknownClassError
	err := node.SetClassVisible(42, true)
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 42, unknown.Code)
	_, err = node.IsClassVisible(42)
	assert.True(t, errors.As(err, &unknown))
	assert.False(t, node.HasClass(42))
}

func TestGetBoundingBox(t *testing.T) {
	_, node := loadFixture(t)
	native := node.Octree().TightBoundingBox()

	box := node.GetBoundingBox()
	assert.InDelta(t, native.Xmin, box.Min.X(), 1e-9)
	assert.InDelta(t, native.Zmin, box.Min.Y(), 1e-9)
	assert.InDelta(t, -native.Ymax, box.Min.Z(), 1e-9)
	assert.InDelta(t, native.Xmax, box.Max.X(), 1e-9)
	assert.InDelta(t, native.Zmax, box.Max.Y(), 1e-9)
	assert.InDelta(t, -native.Ymin, box.Max.Z(), 1e-9)

	node.SetModelTransformation(mgl64.Translate3D(5, -1, 2))
	moved := node.GetBoundingBox()
	assert.True(t, moved.ApproxEqual(geometry.NewBox3(box.Min.Add(mgl64.Vec3{5, -1, 2}), box.Max.Add(mgl64.Vec3{5, -1, 2})), 1e-9))
}

func TestSetModelTransformation(t *testing.T) {
	m, node := loadFixture(t)
	assert.Equal(t, mgl64.Ident4(), node.GetModelTransformation())
	assert.Equal(t, mgl64.Ident4(), node.DefaultModelTransformation())
	assert.Nil(t, node.CameraConfiguration())

	matrix := mgl64.Translate3D(1, 2, 3).Mul4(mgl64.HomogRotate3DY(0.5))
	node.SetModelTransformation(matrix)
	assert.Equal(t, matrix, node.GetModelTransformation())
	assert.True(t, node.Object().MatrixWorld().ApproxEqual(m.Object().MatrixWorld().Mul4(matrix)))
}

func TestNeedsRedrawInputs(t *testing.T) {
	tests := []struct {
		name     string
		inputs   redrawInputs
		expected bool
	}{
		{"idle", redrawInputs{loaderCount: 2, lastLoaderCount: 2, childCount: 1, lastChildCount: 1}, false},
		{"requested", redrawInputs{requested: true}, true},
		{"loader activity", redrawInputs{loaderCount: 1}, true},
		{"tile completed", redrawInputs{completed: 5, lastCompleted: 4}, true},
		{"child added", redrawInputs{childCount: 2, lastChildCount: 1}, true},
		{"dirty node", redrawInputs{nodeDirty: []bool{false, true}}, true},
		{"clean nodes", redrawInputs{nodeDirty: []bool{false, false}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, needsRedraw(tt.inputs))
		})
	}
}

func TestGroupRedraw(t *testing.T) {
	loading := 0
	group := NewGroupWrapper(progress.GaugeFunc(func() int { return loading }))
	camera := scene.NewPerspectiveCamera(60, 1, 0.1, 100)
	assert.False(t, group.NeedsRedraw())

	group.RequestRedraw()
	assert.True(t, group.NeedsRedraw())
	scene.Render(group.Object(), camera)
	assert.False(t, group.NeedsRedraw())

	node := emptyNode(t)
	group.AddPointCloud(node)
	assert.True(t, group.NeedsRedraw())
	scene.Render(group.Object(), camera)
	assert.False(t, group.NeedsRedraw())
	assert.False(t, node.NeedsRedraw())

	node.SetPointSize(3)
	assert.True(t, group.NeedsRedraw())
	scene.Render(group.Object(), camera)

	loading = 3
	assert.True(t, group.NeedsRedraw())
	scene.Render(group.Object(), camera)
	assert.False(t, group.NeedsRedraw())

	require.NoError(t, group.RemovePointCloud(node))
	assert.True(t, group.NeedsRedraw())
	assert.Empty(t, group.Nodes())

	var membership *MembershipError
	err := group.RemovePointCloud(node)
	require.True(t, errors.As(err, &membership))
	assert.Equal(t, node.ID(), membership.NodeID)
}

// loaderStub reports fixed activity and completion counts.
type loaderStub struct {
	active    int
	completed int
}

func (l *loaderStub) CurrentCount() int   { return l.active }
func (l *loaderStub) CompletedCount() int { return l.completed }

func TestGroupRedrawAfterTileCompletedDuringPass(t *testing.T) {
	loader := &loaderStub{active: 1}
	group := NewGroupWrapper(loader)
	camera := scene.NewPerspectiveCamera(60, 1, 0.1, 100)
	scene.Render(group.Object(), camera)
	require.False(t, group.NeedsRedraw())

	// the tile finishes after the visibility update ran but before the pass ends
	worker := scene.NewObject("worker")
	worker.SetOnBeforeRender(func(*scene.Camera) {
		loader.active = 0
		loader.completed++
	})
	group.marker.Add(worker)
	scene.Render(group.Object(), camera)
	group.marker.Remove(worker)

	assert.True(t, group.NeedsRedraw())
	scene.Render(group.Object(), camera)
	assert.False(t, group.NeedsRedraw())
}

func TestGroupIgnoresDuplicateAdd(t *testing.T) {
	group := NewGroupWrapper(nil)
	node := emptyNode(t)
	group.AddPointCloud(node)
	group.AddPointCloud(node)
	assert.Len(t, group.Nodes(), 1)
	assert.Len(t, group.Object().Children(), 2)

	require.NoError(t, group.RemovePointCloud(node))
	assert.Empty(t, group.Nodes())
	assert.False(t, group.Object().IsAncestorOf(node.Object()))
}

// renderWhileRedrawNeeded renders only when the manager asks for it, until nothing changed for a
// while and the loader is idle.
func renderWhileRedrawNeeded(t *testing.T, m *localManager, camera *scene.Camera) int {
	t.Helper()
	frames, idle := 0, 0
	for idle < 50 {
		if m.NeedsRedraw() {
			scene.Render(m.Object(), camera)
			frames++
			idle = 0
			require.Less(t, frames, 5000, "redraw never settles")
			continue
		}
		if m.factory.Loader().CurrentCount() > 0 {
			idle = 0
		} else {
			idle++
		}
		time.Sleep(2 * time.Millisecond)
	}
	return frames
}

func TestRedrawDrivenRenderingStreamsEveryNode(t *testing.T) {
	m, node := loadFixture(t)
	tree := node.Octree()
	tree.SetMinNodePixelSize(0)
	camera := framing(node)

	frames := renderWhileRedrawNeeded(t, m, camera)
	assert.Greater(t, frames, 1)
	assert.Len(t, tree.VisibleNodes(), tree.NumNodes())
	assert.Equal(t, 2000, node.VisiblePointCount())

	for i := 0; i < 10; i++ {
		scene.Render(m.Object(), camera)
	}
	assert.Len(t, tree.VisibleNodes(), tree.NumNodes())
}

func TestManagerStreamsModel(t *testing.T) {
	m, node := loadFixture(t)
	assert.True(t, m.NeedsRedraw())
	assert.Equal(t, []*NodeWrapper{node}, m.Nodes())
	assert.True(t, m.Object().IsAncestorOf(node.Object()))

	camera := framing(node)
	m.UpdateCamera(camera)
	renderFrames(t, m, camera, 30)

	assert.Greater(t, node.VisiblePointCount(), int(node.Octree().GetRootNode().NumPoints()))
	assert.LessOrEqual(t, node.VisiblePointCount(), 2000)
	assert.Greater(t, len(node.Octree().VisibleNodes()), 1)

	m.RequestRedraw()
	assert.True(t, m.NeedsRedraw())
}

func TestManagerRespectsPointBudget(t *testing.T) {
	m, node := loadFixture(t)
	budget := int(node.Octree().GetRootNode().NumPoints()) + 100
	node.SetPointBudget(budget)
	camera := framing(node)

	for i := 0; i < 20; i++ {
		renderFrames(t, m, camera, 1)
		assert.LessOrEqual(t, node.VisiblePointCount(), budget)
		assert.LessOrEqual(t, scene.Render(node.Object(), camera).Points, budget)
	}
}

func TestManagerAddModelErrors(t *testing.T) {
	ds, _ := writeFixture(t)
	m := newManager(t, client.NewLocalClient(filepath.Dir(ds.Dir)))

	_, err := m.AddModel(context.Background(), client.LocalModelIdentifier{Path: "missing"})
	assert.Error(t, err)
	assert.False(t, m.NeedsRedraw())
	assert.Empty(t, m.Nodes())
}

func TestManagerConcurrentAddModel(t *testing.T) {
	ds, id := writeFixture(t)
	gated := &gatedClient{LocalClient: client.NewLocalClient(filepath.Dir(ds.Dir)), gate: make(chan struct{})}
	m := newManager(t, gated)

	const callers = 6
	nodes := make([]*NodeWrapper, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			node, err := m.AddModel(context.Background(), id)
			assert.NoError(t, err)
			nodes[i] = node
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(gated.gate)
	wg.Wait()

	for _, node := range nodes {
		assert.Same(t, nodes[0], node)
	}
	assert.Len(t, m.Nodes(), 1)
	assert.Equal(t, 1, gated.calls)
}

func TestManagerRemoveModel(t *testing.T) {
	m, node := loadFixture(t)
	require.NoError(t, m.RemoveModel(node))
	assert.False(t, m.Object().IsAncestorOf(node.Object()))

	var membership *MembershipError
	assert.True(t, errors.As(m.RemoveModel(node), &membership))
}

func TestLoadingStateObserver(t *testing.T) {
	m, _ := loadFixture(t)
	states, cancel := m.LoadingStateObserver()
	defer cancel()

	select {
	case s := <-states:
		assert.False(t, s.IsLoading)
	case <-time.After(time.Second):
		t.Fatal("no initial loading state")
	}

	assert.Equal(t, LoadingState{IsLoading: true, ItemsLoaded: 1, ItemsRequested: 3},
		loadingStateOf(progress.ProgressState{Total: 3, Remaining: 2, Completed: 1}))
	assert.Equal(t, LoadingState{ItemsLoaded: 3, ItemsRequested: 3},
		loadingStateOf(progress.ProgressState{Total: 3, Completed: 3}))
}

func TestNodeCameraConfiguration(t *testing.T) {
	cube := geometry.NewBoundingBox(0, 1, 0, 1, 0, 1)
	tree, err := octree.NewPointCloudOctree("c", ept.NewMetadata(cube, cube, 0), ept.Hierarchy{ept.RootKey: 0}, nil, nil)
	require.NoError(t, err)
	camera := &transform.CameraConfiguration{Position: mgl64.Vec3{1, 2, 3}}
	node := NewNodeWrapper(tree, &metadata.OctreeMetadata{ModelMatrix: mgl64.Translate3D(1, 0, 0), CameraConfiguration: camera})
	assert.Same(t, camera, node.CameraConfiguration())
	assert.Equal(t, mgl64.Translate3D(1, 0, 0), node.DefaultModelTransformation())
}
