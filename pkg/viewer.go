package pkg

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/config"
	"github.com/ecopia-map/pointcloud_streamer/internal/metadata"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
	"github.com/ecopia-map/pointcloud_streamer/pkg/pointcloud"
)

const (
	viewerFov  = 60.0
	viewerNear = 0.1
	viewerFar  = 1000.0

	idlePollInterval = 5 * time.Millisecond
)

// Viewer streams one model into a headless scene, standing in for the render loop of an
// application.
type Viewer[T client.ModelIdentifier] struct {
	manager *pointcloud.Manager[T]
	loader  *octree.Loader
	node    *pointcloud.NodeWrapper
	camera  *scene.Camera
}

// OpenViewer loads the model with the configured render settings and points a camera at it. The
// camera stored with the model is used when there is one, otherwise the camera frames the model.
func OpenViewer[T client.ModelIdentifier](ctx context.Context, c client.ModelDataClient[T], id T, opts *config.Options, width, height float64) (*Viewer[T], error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid viewport %gx%g", width, height)
	}

	loader := octree.NewLoader(ctx, opts.Loader.Workers, opts.Loader.Queue)
	manager := pointcloud.NewManager(
		metadata.NewRepository[T](c, opts.RootFileName),
		pointcloud.NewNodeFactory[T](c, loader),
		pointcloud.WithProgressPollInterval(opts.Loader.PollInterval),
	)

	node, err := manager.AddModel(ctx, id)
	if err != nil {
		manager.Close()
		return nil, err
	}
	opts.Render.Apply(node)

	camera := scene.NewPerspectiveCamera(viewerFov, width/height, viewerNear, viewerFar)
	camera.ViewportHeight = height
	if stored := node.CameraConfiguration(); stored != nil {
		camera.LookAt(stored.Position, stored.Target)
		if d := stored.Position.Sub(stored.Target).Len() + node.GetBoundingBox().Size().Len(); d > camera.Far {
			camera.Far = 2 * d
		}
	} else {
		camera.FrameBox(node.GetBoundingBox())
	}

	return &Viewer[T]{manager: manager, loader: loader, node: node, camera: camera}, nil
}

func (v *Viewer[T]) Node() *pointcloud.NodeWrapper {
	return v.node
}

func (v *Viewer[T]) Camera() *scene.Camera {
	return v.camera
}

func (v *Viewer[T]) Manager() *pointcloud.Manager[T] {
	return v.manager
}

// HideClasses hides the given classification codes. Every code must be present in the model.
func (v *Viewer[T]) HideClasses(codes []int) error {
	for _, code := range codes {
		if err := v.node.SetClassVisible(code, false); err != nil {
			return err
		}
	}
	return nil
}

// Stream runs the given number of render passes, waiting after each one for the tiles it requested.
func (v *Viewer[T]) Stream(ctx context.Context, frames int) (scene.RenderStats, error) {
	var stats scene.RenderStats
	for i := 0; i < frames; i++ {
		stats = scene.Render(v.manager.Object(), v.camera)
		glog.V(1).Infof("frame %d: %d objects, %d points", i, stats.Objects, stats.Points)
		if err := v.waitIdle(ctx); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (v *Viewer[T]) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for v.loader.CurrentCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Pick returns the visible points under the normalized device coordinates, nearest first.
func (v *Viewer[T]) Pick(ndc mgl64.Vec2) ([]pointcloud.Intersection, error) {
	return pointcloud.NewIntersector().Intersect(v.manager.Nodes(), ndc, v.camera)
}

func (v *Viewer[T]) Close() {
	v.manager.Close()
}
