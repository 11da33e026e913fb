package ept

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
	"github.com/ecopia-map/pointcloud_streamer/internal/io"
)

const (
	RootFileName = "ept.json"
	Version      = "1.0.0"

	// DefaultSpan is the grid resolution advertised for generated datasets
	DefaultSpan = 128
)

var coordinateScale = decimal.New(1, -3)

// NewMetadata describes a binary dataset over the cube with millimeter coordinates, 16 bit colors,
// intensity and classification.
func NewMetadata(cube, tight *geometry.BoundingBox, points int64) *Metadata {
	d := func(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }
	offset := func(v float64) *decimal.Decimal {
		o := d(v).Round(0)
		return &o
	}
	scale := func() *decimal.Decimal {
		s := coordinateScale
		return &s
	}

	return &Metadata{
		Bounds:           []decimal.Decimal{d(cube.Xmin), d(cube.Ymin), d(cube.Zmin), d(cube.Xmax), d(cube.Ymax), d(cube.Zmax)},
		BoundsConforming: []decimal.Decimal{d(tight.Xmin), d(tight.Ymin), d(tight.Zmin), d(tight.Xmax), d(tight.Ymax), d(tight.Zmax)},
		DataType:         DataTypeBinary,
		HierarchyType:    HierarchyJSON,
		Points:           points,
		Schema: []Dimension{
			{Name: "X", Type: "signed", Size: 4, Scale: scale(), Offset: offset(cube.Xmid)},
			{Name: "Y", Type: "signed", Size: 4, Scale: scale(), Offset: offset(cube.Ymid)},
			{Name: "Z", Type: "signed", Size: 4, Scale: scale(), Offset: offset(cube.Zmid)},
			{Name: "Intensity", Type: "unsigned", Size: 2},
			{Name: "Classification", Type: "unsigned", Size: 1},
			{Name: "Red", Type: "unsigned", Size: 2},
			{Name: "Green", Type: "unsigned", Size: 2},
			{Name: "Blue", Type: "unsigned", Size: 2},
		},
		Span:    DefaultSpan,
		Version: Version,
	}
}

// SplitHierarchy groups the node counts into hierarchy files. With a positive step every node whose
// depth is a multiple of step roots its own file and is listed as a subtree in the file above it.
func SplitHierarchy(nodes map[Key]data.Points, step int) map[Key]map[string]int64 {
	fileRoot := func(k Key) Key {
		if step <= 0 {
			return RootKey
		}
		for k.D%step != 0 {
			k = k.Parent()
		}
		return k
	}

	files := map[Key]map[string]int64{RootKey: {}}
	for k, points := range nodes {
		root := fileRoot(k)
		if files[root] == nil {
			files[root] = make(map[string]int64)
		}
		files[root][k.String()] = int64(len(points))
		if root == k && k != RootKey {
			parent := fileRoot(k.Parent())
			if files[parent] == nil {
				files[parent] = make(map[string]int64)
			}
			files[parent][k.String()] = subtreeMarker
		}
	}
	return files
}

// WriteDataset writes ept.json, the hierarchy and one binary tile per node under dir.
func WriteDataset(ctx context.Context, dir string, m *Metadata, nodes map[Key]data.Points, hierarchyStep, numWorkers int) error {
	if err := m.Validate(); err != nil {
		return err
	}
	for _, folder := range []string{HierarchyFolder, DataFolder} {
		if err := os.MkdirAll(filepath.Join(dir, folder), 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", folder)
		}
	}

	units := []*io.WorkUnit{jsonUnit(dir, RootFileName, m)}
	for k, counts := range SplitHierarchy(nodes, hierarchyStep) {
		units = append(units, jsonUnit(dir, k.HierarchyFile(), counts))
	}
	for k, points := range nodes {
		k, points := k, points
		units = append(units, &io.WorkUnit{
			Name: k.String(),
			Do: func(ctx context.Context) error {
				return writeFile(filepath.Join(dir, k.DataFile()), EncodeBinary(points, m))
			},
		})
	}

	glog.Infof("writing %d ept files to %s", len(units), dir)
	return io.Run(ctx, io.NewStandardProducer(units), numWorkers)
}

func jsonUnit(dir, fileName string, v interface{}) *io.WorkUnit {
	return &io.WorkUnit{
		Name: fileName,
		Do: func(ctx context.Context) error {
			content, err := json.Marshal(v)
			if err != nil {
				return errors.Wrap(err, "encoding json")
			}
			return writeFile(filepath.Join(dir, fileName), content)
		},
	}
}

func writeFile(path string, content []byte) error {
	return errors.Wrapf(os.WriteFile(path, content, 0o644), "writing %s", path)
}
