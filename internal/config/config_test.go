package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/pkg/pointcloud"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pcstream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())

	assert.Equal(t, "ept.json", opts.RootFileName)
	assert.Equal(t, pointcloud.DefaultPointBudget, opts.Render.PointBudget)
	assert.Equal(t, pointcloud.DefaultPointSize, opts.Render.PointSize)
	assert.Equal(t, pointcloud.PointSizeAdaptive, opts.Render.SizeType())
	assert.Equal(t, pointcloud.PointColorRgb, opts.Render.ColorType())
	assert.Equal(t, pointcloud.PointShapeCircle, opts.Render.Shape())
	assert.Equal(t, time.Second, opts.Loader.PollInterval)
	assert.Equal(t, DefaultCdfBaseURL, opts.Cdf.BaseURL)
	assert.Empty(t, opts.Source)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
root_file_name: entwine.json
render:
  point_budget: 500000
  point_color_type: classification
  point_shape: square
loader:
  workers: 8
  poll_interval: 250ms
cdf:
  project: survey
  supported_versions: [1, 2]
build:
  cell_max_size: 4
  cell_min_size: 0.5
`)
	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, opts.Source)
	assert.Equal(t, "entwine.json", opts.RootFileName)
	assert.Equal(t, 500000, opts.Render.PointBudget)
	assert.Equal(t, pointcloud.PointColorClassification, opts.Render.ColorType())
	assert.Equal(t, pointcloud.PointShapeSquare, opts.Render.Shape())
	// untouched keys keep their defaults
	assert.Equal(t, pointcloud.DefaultPointSize, opts.Render.PointSize)
	assert.Equal(t, 8, opts.Loader.Workers)
	assert.Equal(t, 250*time.Millisecond, opts.Loader.PollInterval)
	assert.Equal(t, "survey", opts.Cdf.Project)
	assert.Equal(t, []int{1, 2}, opts.Cdf.SupportedVersions)
	assert.Equal(t, 4.0, opts.Build.CellMaxSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "render:\n  point_budget: 500000\n")
	t.Setenv("PCSTREAM_RENDER__POINT_BUDGET", "750000")
	t.Setenv("PCSTREAM_CDF__TOKEN", "secret")

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750000, opts.Render.PointBudget)
	assert.Equal(t, "secret", opts.Cdf.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestLoadRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"size type", "render:\n  point_size_type: huge\n", "point_size_type"},
		{"color type", "render:\n  point_color_type: rainbow\n", "point_color_type"},
		{"shape", "render:\n  point_shape: star\n", "point_shape"},
		{"budget", "render:\n  point_budget: 0\n", "point_budget"},
		{"cells", "build:\n  cell_max_size: 1\n  cell_min_size: 2\n", "cell_max_size"},
		{"poll", "loader:\n  poll_interval: 0s\n", "poll_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "render.point_budget", envKey("PCSTREAM_RENDER__POINT_BUDGET"))
	assert.Equal(t, "root_file_name", envKey("PCSTREAM_ROOT_FILE_NAME"))
}
