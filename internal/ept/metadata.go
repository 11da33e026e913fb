// Package ept reads Entwine Point Tile datasets: the ept.json root description, the JSON hierarchy
// and binary point tiles.
package ept

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

const (
	DataTypeBinary  = "binary"
	HierarchyJSON   = "json"
	HierarchyFolder = "ept-hierarchy"
	DataFolder      = "ept-data"
)

// Dimension is one attribute of the point layout. Bounds and scales are decoded as decimals so the
// values written by the producer are kept exactly.
type Dimension struct {
	Name   string           `json:"name"`
	Type   string           `json:"type"` // signed, unsigned or float
	Size   int              `json:"size"` // bytes
	Scale  *decimal.Decimal `json:"scale,omitempty"`
	Offset *decimal.Decimal `json:"offset,omitempty"`
}

type SpatialReference struct {
	Authority  string `json:"authority,omitempty"`
	Horizontal string `json:"horizontal,omitempty"`
	Vertical   string `json:"vertical,omitempty"`
	Wkt        string `json:"wkt,omitempty"`
}

// Metadata is the content of ept.json.
type Metadata struct {
	Bounds           []decimal.Decimal `json:"bounds"`
	BoundsConforming []decimal.Decimal `json:"boundsConforming"`
	DataType         string            `json:"dataType"`
	HierarchyType    string            `json:"hierarchyType"`
	Points           int64             `json:"points"`
	Schema           []Dimension       `json:"schema"`
	Span             int               `json:"span"`
	Srs              *SpatialReference `json:"srs,omitempty"`
	Version          string            `json:"version"`
}

// ParseMetadata decodes and validates an ept.json document.
func ParseMetadata(raw []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "decoding ept metadata")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metadata) Validate() error {
	if len(m.Bounds) != 6 {
		return errors.Errorf("ept bounds must have 6 values, got %d", len(m.Bounds))
	}
	if len(m.BoundsConforming) != 0 && len(m.BoundsConforming) != 6 {
		return errors.Errorf("ept conforming bounds must have 6 values, got %d", len(m.BoundsConforming))
	}
	if !strings.EqualFold(m.DataType, DataTypeBinary) {
		return errors.Errorf("unsupported ept data type %q, only %q tiles can be streamed", m.DataType, DataTypeBinary)
	}
	if m.HierarchyType != "" && !strings.EqualFold(m.HierarchyType, HierarchyJSON) {
		return errors.Errorf("unsupported ept hierarchy type %q", m.HierarchyType)
	}
	for _, name := range []string{"X", "Y", "Z"} {
		if _, ok := m.Dimension(name); !ok {
			return errors.Errorf("ept schema has no %s dimension", name)
		}
	}
	for _, d := range m.Schema {
		if !validDimension(d) {
			return errors.Errorf("unsupported ept dimension %s of type %s and size %d", d.Name, d.Type, d.Size)
		}
	}
	return nil
}

func validDimension(d Dimension) bool {
	switch d.Type {
	case "signed", "unsigned":
		return d.Size == 1 || d.Size == 2 || d.Size == 4 || d.Size == 8
	case "float":
		return d.Size == 4 || d.Size == 8
	}
	return false
}

func (m *Metadata) Dimension(name string) (Dimension, bool) {
	for _, d := range m.Schema {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// PointSize is the number of bytes of one point in a binary tile.
func (m *Metadata) PointSize() int {
	size := 0
	for _, d := range m.Schema {
		size += d.Size
	}
	return size
}

func boundingBoxOf(values []decimal.Decimal) *geometry.BoundingBox {
	f := func(i int) float64 {
		v, _ := values[i].Float64()
		return v
	}
	return geometry.NewBoundingBox(f(0), f(3), f(1), f(4), f(2), f(5))
}

// CubeBounds is the cubic box the octree subdivides.
func (m *Metadata) CubeBounds() *geometry.BoundingBox {
	return boundingBoxOf(m.Bounds)
}

// TightBounds is the box of the actual points, falling back to the cube when it is not stored.
func (m *Metadata) TightBounds() *geometry.BoundingBox {
	if len(m.BoundsConforming) == 6 {
		return boundingBoxOf(m.BoundsConforming)
	}
	return m.CubeBounds()
}
