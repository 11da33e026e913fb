package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/config"
	"github.com/ecopia-map/pointcloud_streamer/internal/converters"
	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree/grid_tree"
	"github.com/ecopia-map/pointcloud_streamer/pkg/algorithm_manager"
	"github.com/ecopia-map/pointcloud_streamer/tools"
)

type IBuilder interface {
	RunBuilder(ctx context.Context, opts *config.BuildOptions) ([]string, error)
}

// Builder samples text point files into EPT datasets that can be streamed.
type Builder struct {
	fileFinder       tools.FileFinder
	algorithmManager algorithm_manager.AlgorithmManager
}

func NewBuilder(fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager) IBuilder {
	return &Builder{
		fileFinder:       fileFinder,
		algorithmManager: algorithmManager,
	}
}

// RunBuilder writes one dataset per input file under opts.Output and returns the dataset folders.
func (b *Builder) RunBuilder(ctx context.Context, opts *config.BuildOptions) ([]string, error) {
	tools.LogOutput("Preparing list of files to process...")

	files, err := b.fileFinder.GetPointFilesToProcess(opts.Input, opts.FolderProcessing, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no point files found in %s", opts.Input)
	}
	if err := tools.CreateDirectoryIfDoesNotExist(opts.Output); err != nil {
		return nil, errors.Wrapf(err, "creating %s", opts.Output)
	}

	datasets := make([]string, 0, len(files))
	for i, filePath := range files {
		tools.LogOutput("Processing file " + strconv.Itoa(i+1) + "/" + strconv.Itoa(len(files)))
		dir := filepath.Join(opts.Output, getFilenameWithoutExtension(filePath))
		if err := b.processPointFile(ctx, filePath, dir, opts); err != nil {
			return datasets, errors.Wrapf(err, "processing %s", filePath)
		}
		datasets = append(datasets, dir)
	}
	return datasets, nil
}

func (b *Builder) processPointFile(ctx context.Context, filePath, dir string, opts *config.BuildOptions) error {
	tools.LogOutput("> reading data from point file...", filepath.Base(filePath))
	points, err := readPoints(filePath)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return errors.New("file holds no points")
	}
	converters.CorrectPoints(points, b.algorithmManager.GetElevationCorrectionAlgorithm())

	tight := points.Bounds()
	tree := b.algorithmManager.GetTreeAlgorithm(tight)
	if err := tree.AddPoints(points); err != nil {
		return err
	}

	tools.LogOutput("> building data structure...")
	if err := tree.Build(); err != nil {
		return err
	}

	tools.LogOutput("> exporting data...")
	return exportTreeAsDataset(ctx, tree, tight, int64(len(points)), dir, opts)
}

// Exports the sampled tree as an EPT dataset in dir
func exportTreeAsDataset(ctx context.Context, tree *grid_tree.GridTree, tight *geometry.BoundingBox, count int64, dir string, opts *config.BuildOptions) error {
	if !tree.IsBuilt() {
		return errors.New("octree not built, data structure not initialized")
	}

	nodes := tree.Nodes()
	m := ept.NewMetadata(tree.GetBounds(), tight, count)
	if err := ept.WriteDataset(ctx, dir, m, nodes, opts.HierarchyStep, opts.Workers); err != nil {
		return err
	}
	glog.Infof("%s: %s points in %d nodes", dir, humanize.Comma(count), len(nodes))
	tools.LogOutput("> done,", humanize.Comma(count), "points in", len(nodes), "nodes")
	return nil
}

func readPoints(filePath string) (data.Points, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return data.ReadText(file)
}

func getFilenameWithoutExtension(filePath string) string {
	nameWext := filepath.Base(filePath)
	extension := filepath.Ext(nameWext)
	return nameWext[0 : len(nameWext)-len(extension)]
}
