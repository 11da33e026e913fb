package algorithm_manager

import (
	"github.com/ecopia-map/pointcloud_streamer/internal/converters"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree/grid_tree"
)

type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	// GetTreeAlgorithm returns an empty tree covering bounds
	GetTreeAlgorithm(bounds *geometry.BoundingBox) *grid_tree.GridTree
}
