package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/pkg/pointcloud"
)

// Contains the render settings applied to every loaded point cloud
type RenderOptions struct {
	PointBudget      int     `koanf:"point_budget"`        // Max number of visible points per point cloud
	PointSize        float64 `koanf:"point_size"`          // Point size in pixels
	PointSizeType    string  `koanf:"point_size_type"`     // ADAPTIVE or FIXED
	PointColorType   string  `koanf:"point_color_type"`    // RGB, DEPTH, HEIGHT, POINT_INDEX, LOD, CLASSIFICATION or INTENSITY
	PointShape       string  `koanf:"point_shape"`         // CIRCLE or SQUARE
	MinNodePixelSize float64 `koanf:"min_node_pixel_size"` // Nodes smaller than this on screen are not refined
}

// Contains the settings of the tile download pool
type LoaderOptions struct {
	Workers      int           `koanf:"workers"`
	Queue        int           `koanf:"queue"`
	PollInterval time.Duration `koanf:"poll_interval"` // Interval of the loading progress poll
}

type CdfOptions struct {
	BaseURL           string `koanf:"base_url"`
	Project           string `koanf:"project"`
	Token             string `koanf:"token"`
	SupportedVersions []int  `koanf:"supported_versions"`
}

// Contains the options of the EPT dataset builder
type BuildOptions struct {
	Input            string `koanf:"input"`     // Input point file/folder
	Output           string `koanf:"output"`    // Output folder, one dataset is written per input file
	FolderProcessing bool   `koanf:"folder"`    // Enables the processing of all point files in the input folder
	Recursive        bool   `koanf:"recursive"` // Recursive lookup of point files in subfolders

	CellMaxSize   float64 `koanf:"cell_max_size"`  // Max cell size of the sampling grid, 0 derives it from the bounds
	CellMinSize   float64 `koanf:"cell_min_size"`  // Min cell size of the sampling grid, 0 derives it from the bounds
	HierarchyStep int     `koanf:"hierarchy_step"` // Depth step between hierarchy files, 0 writes a single file
	Workers       int     `koanf:"workers"`
	ZOffset       float64 `koanf:"z_offset"` // Vertical offset applied to the input points
}

// Options is the full configuration of pcstream.
type Options struct {
	RootFileName string        `koanf:"root_file_name"`
	Render       RenderOptions `koanf:"render"`
	Loader       LoaderOptions `koanf:"loader"`
	Cdf          CdfOptions    `koanf:"cdf"`
	Build        BuildOptions  `koanf:"build"`

	// Path of the config file that was read, empty when none was found
	Source string `koanf:"-"`
}

func (o *RenderOptions) SizeType() pointcloud.PointSizeType {
	return pointcloud.ParsePointSizeType(o.PointSizeType)
}

func (o *RenderOptions) ColorType() pointcloud.PointColorType {
	return pointcloud.ParsePointColorType(o.PointColorType)
}

func (o *RenderOptions) Shape() pointcloud.PointShape {
	return pointcloud.ParsePointShape(o.PointShape)
}

// Apply copies the render settings onto a loaded point cloud.
func (o *RenderOptions) Apply(node *pointcloud.NodeWrapper) {
	node.SetPointBudget(o.PointBudget)
	node.SetPointSize(o.PointSize)
	node.SetPointSizeType(o.SizeType())
	node.SetPointColorType(o.ColorType())
	node.SetPointShape(o.Shape())
	node.Octree().SetMinNodePixelSize(o.MinNodePixelSize)
}

// Validate checks the enums and the numeric ranges.
func (o *Options) Validate() error {
	if o.Render.PointBudget <= 0 {
		return errors.Errorf("render.point_budget must be positive, got %d", o.Render.PointBudget)
	}
	if o.Render.PointSize <= 0 {
		return errors.Errorf("render.point_size must be positive, got %g", o.Render.PointSize)
	}
	if o.Render.SizeType() == "" {
		return errors.Errorf("render.point_size_type should be either ADAPTIVE or FIXED, got %q", o.Render.PointSizeType)
	}
	if o.Render.ColorType() == "" {
		return errors.Errorf("unknown render.point_color_type %q", o.Render.PointColorType)
	}
	if o.Render.Shape() == "" {
		return errors.Errorf("render.point_shape should be either CIRCLE or SQUARE, got %q", o.Render.PointShape)
	}
	if o.Render.MinNodePixelSize < 0 {
		return errors.New("render.min_node_pixel_size cannot be negative")
	}
	if o.Loader.Workers <= 0 || o.Loader.Queue <= 0 {
		return errors.New("loader.workers and loader.queue must be positive")
	}
	if o.Loader.PollInterval <= 0 {
		return errors.New("loader.poll_interval must be positive")
	}
	if o.Build.CellMaxSize > 0 && o.Build.CellMinSize > o.Build.CellMaxSize {
		return errors.New("build.cell_max_size cannot be lower than build.cell_min_size")
	}
	if o.Build.HierarchyStep < 0 {
		return errors.New("build.hierarchy_step cannot be negative")
	}
	return nil
}
