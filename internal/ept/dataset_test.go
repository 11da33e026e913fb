package ept_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept/epttest"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

func TestWriteDataset(t *testing.T) {
	points := epttest.Grid(3000, geometry.NewBoundingBox(100, 140, 200, 220, 0, 5), 1, 2, 6)
	ds := epttest.Write(t, points, 2)

	raw, err := os.ReadFile(filepath.Join(ds.Dir, ept.RootFileName))
	require.NoError(t, err)
	m, err := ept.ParseMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), m.Points)

	fetch := func(ctx context.Context, name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(ds.Dir, name))
	}
	h, err := ept.LoadHierarchy(context.Background(), fetch)
	require.NoError(t, err)
	require.Len(t, h, len(ds.Nodes))

	total := 0
	for k, count := range h {
		content, err := fetch(context.Background(), k.DataFile())
		require.NoError(t, err)
		tile, err := ept.DecodeBinary(content, m)
		require.NoError(t, err)
		assert.Len(t, tile, int(count), k.String())
		total += len(tile)
	}
	assert.Equal(t, 3000, total)
}
