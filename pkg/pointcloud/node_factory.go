package pointcloud

import (
	"context"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/metadata"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
)

// NodeFactory opens the octree described by resolved metadata. Tiles are read through the same data
// client the metadata came from.
type NodeFactory[T client.ModelIdentifier] struct {
	client client.ModelDataClient[T]
	loader *octree.Loader
}

func NewNodeFactory[T client.ModelIdentifier](c client.ModelDataClient[T], loader *octree.Loader) *NodeFactory[T] {
	return &NodeFactory[T]{client: c, loader: loader}
}

// Loader is the tile loader shared by every octree of the factory.
func (f *NodeFactory[T]) Loader() *octree.Loader {
	return f.loader
}

func (f *NodeFactory[T]) CreateNode(ctx context.Context, id T, meta *metadata.OctreeMetadata) (*NodeWrapper, error) {
	fetch := func(ctx context.Context, fileName string) ([]byte, error) {
		return f.client.GetBinaryFile(ctx, meta.ModelBaseURL, fileName)
	}
	tree, err := octree.Open(ctx, id.String(), meta.SceneDescription, fetch, f.loader)
	if err != nil {
		return nil, err
	}
	return NewNodeWrapper(tree, meta), nil
}
