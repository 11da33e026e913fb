package std_algorithm_manager

import (
	"github.com/golang/glog"

	"github.com/ecopia-map/pointcloud_streamer/internal/config"
	"github.com/ecopia-map/pointcloud_streamer/internal/converters"
	"github.com/ecopia-map/pointcloud_streamer/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree/grid_tree"
	"github.com/ecopia-map/pointcloud_streamer/pkg/algorithm_manager"
)

const (
	// cell sizes derived from the bounds when they are not configured
	maxCellDivisor = 8
	minCellDivisor = 64
)

type StandardAlgorithmManager struct {
	options             *config.BuildOptions
	elevationCorrection converters.ElevationCorrector
}

func NewAlgorithmManager(opts *config.BuildOptions) algorithm_manager.AlgorithmManager {
	return &StandardAlgorithmManager{
		options:             opts,
		elevationCorrection: offset_elevation_corrector.NewOffsetElevationCorrector(opts.ZOffset),
	}
}

func (m *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return m.elevationCorrection
}

func (m *StandardAlgorithmManager) GetTreeAlgorithm(bounds *geometry.BoundingBox) *grid_tree.GridTree {
	maxSize, minSize := m.options.CellMaxSize, m.options.CellMinSize
	diagonal := grid_tree.CubeAround(bounds).Diagonal()
	if maxSize <= 0 {
		maxSize = diagonal / maxCellDivisor
	}
	if minSize <= 0 || minSize > maxSize {
		minSize = diagonal / minCellDivisor
	}
	if minSize > maxSize {
		minSize = maxSize
	}
	glog.V(1).Infof("grid cell sizes: max %.3f, min %.3f", maxSize, minSize)
	return grid_tree.NewGridTree(bounds, maxSize, minSize)
}
