// Package metadata assembles everything known about a model before its octree can be built.
package metadata

import (
	"context"
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/transform"
)

// DefaultRootFileName is the octree description at the root of an EPT dataset.
const DefaultRootFileName = ept.RootFileName

// OctreeMetadata is the resolved description of one model. It is never modified once returned.
type OctreeMetadata struct {
	ModelBaseURL        string
	ModelMatrix         mgl64.Mat4
	InverseModelMatrix  mgl64.Mat4
	CameraConfiguration *transform.CameraConfiguration
	SceneDescription    json.RawMessage
}

type Repository[T client.ModelIdentifier] struct {
	client       client.ModelDataClient[T]
	rootFileName string
}

func NewRepository[T client.ModelIdentifier](c client.ModelDataClient[T], rootFileName string) *Repository[T] {
	if rootFileName == "" {
		rootFileName = DefaultRootFileName
	}
	return &Repository[T]{client: c, rootFileName: rootFileName}
}

// Client returns the data client the repository reads from.
func (r *Repository[T]) Client() client.ModelDataClient[T] {
	return r.client
}

// LoadData fetches the blob URL, the model matrix, the camera and the root description concurrently.
// The first failure cancels the remaining requests and is returned as is.
func (r *Repository[T]) LoadData(ctx context.Context, id T) (*OctreeMetadata, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		modelURL string
		scene    json.RawMessage
		matrix   mgl64.Mat4
		camera   *transform.CameraConfiguration
	)

	g.Go(func() error {
		u, err := r.client.GetModelURL(gctx, id)
		if err != nil {
			return err
		}
		modelURL = u
		scene, err = r.client.GetJSONFile(gctx, u, r.rootFileName)
		return err
	})
	g.Go(func() error {
		var err error
		matrix, err = r.client.GetModelMatrix(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		camera, err = r.client.GetModelCamera(gctx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		glog.Warningf("loading metadata of %s failed: %v", id, err)
		return nil, err
	}

	mt, err := transform.FromMatrix(matrix)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("loaded metadata of %s from %s", id, modelURL)

	return &OctreeMetadata{
		ModelBaseURL:        modelURL,
		ModelMatrix:         mt.Matrix,
		InverseModelMatrix:  mt.Inverse,
		CameraConfiguration: transform.TransformCameraConfiguration(camera, mt.Matrix),
		SceneDescription:    scene,
	}, nil
}
