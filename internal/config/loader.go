// Package config loads the pcstream options. Values are read in order from the built in defaults,
// the pcstream.yaml file and PCSTREAM_ environment variables, later sources overriding earlier ones.
package config

import (
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/octree"
	"github.com/ecopia-map/pointcloud_streamer/internal/progress"
	"github.com/ecopia-map/pointcloud_streamer/pkg/pointcloud"
)

const (
	EnvPrefix         = "PCSTREAM_"
	DefaultCdfBaseURL = "https://api.cognitedata.com/api/v1"
)

var configFileNames = []string{"pcstream.yaml", "pcstream.yml"}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"root_file_name":             ept.RootFileName,
		"render.point_budget":        pointcloud.DefaultPointBudget,
		"render.point_size":          pointcloud.DefaultPointSize,
		"render.point_size_type":     pointcloud.DefaultPointSizeType.String(),
		"render.point_color_type":    pointcloud.DefaultPointColorType.String(),
		"render.point_shape":         pointcloud.DefaultPointShape.String(),
		"render.min_node_pixel_size": octree.DefaultMinNodePixelSize,
		"loader.workers":             octree.DefaultLoaderWorkers,
		"loader.queue":               octree.DefaultLoaderQueue,
		"loader.poll_interval":       progress.DefaultPollInterval.String(),
		"cdf.base_url":               DefaultCdfBaseURL,
		"build.cell_max_size":        0.0,
		"build.cell_min_size":        0.0,
		"build.hierarchy_step":       0,
		"build.workers":              4,
		"build.z_offset":             0.0,
	}
}

// findConfigFile returns the explicit path when given, otherwise the first pcstream.y(a)ml found in
// the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps PCSTREAM_RENDER__POINT_BUDGET to render.point_budget.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load reads and validates the options. An explicit cfgFile must exist.
func Load(cfgFile string) (*Options, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	source := findConfigFile(cfgFile)
	if source != "" {
		if err := k.Load(file.Provider(source), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", source)
		}
		glog.V(1).Infof("configuration read from %s", source)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	var opts Options
	if err := k.Unmarshal("", &opts); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}
	opts.Source = source

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Default returns the built in options, ignoring config files and the environment.
func Default() *Options {
	k := koanf.New(".")
	var opts Options
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		glog.Fatal(err)
	}
	if err := k.Unmarshal("", &opts); err != nil {
		glog.Fatal(err)
	}
	return &opts
}
