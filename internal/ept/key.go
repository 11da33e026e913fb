package ept

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// Key addresses an octree node by depth and integer position at that depth.
type Key struct {
	D, X, Y, Z int
}

var RootKey = Key{}

func ParseKey(s string) (Key, error) {
	var k Key
	n, err := fmt.Sscanf(s, "%d-%d-%d-%d", &k.D, &k.X, &k.Y, &k.Z)
	if err != nil || n != 4 {
		return Key{}, errors.Errorf("invalid ept key %q", s)
	}
	if k.D < 0 || k.X < 0 || k.Y < 0 || k.Z < 0 {
		return Key{}, errors.Errorf("invalid ept key %q", s)
	}
	if s != k.String() {
		return Key{}, errors.Errorf("invalid ept key %q", s)
	}
	return k, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%d-%d-%d", k.D, k.X, k.Y, k.Z)
}

// Child returns the key of the given octant. Bit 0 selects the upper half along X, bit 1 along Y and
// bit 2 along Z.
func (k Key) Child(octant uint8) Key {
	return Key{
		D: k.D + 1,
		X: k.X*2 + int(octant&1),
		Y: k.Y*2 + int((octant>>1)&1),
		Z: k.Z*2 + int((octant>>2)&1),
	}
}

// Parent of the root is the root itself.
func (k Key) Parent() Key {
	if k.D == 0 {
		return k
	}
	return Key{D: k.D - 1, X: k.X / 2, Y: k.Y / 2, Z: k.Z / 2}
}

// Octant is the index of k inside its parent.
func (k Key) Octant() uint8 {
	return uint8(k.X&1) | uint8(k.Y&1)<<1 | uint8(k.Z&1)<<2
}

// Bounds subdivides the root cube down to k.
func (k Key) Bounds(root *geometry.BoundingBox) *geometry.BoundingBox {
	cells := float64(int(1) << uint(k.D))
	sx := (root.Xmax - root.Xmin) / cells
	sy := (root.Ymax - root.Ymin) / cells
	sz := (root.Zmax - root.Zmin) / cells
	return geometry.NewBoundingBox(
		root.Xmin+float64(k.X)*sx, root.Xmin+float64(k.X+1)*sx,
		root.Ymin+float64(k.Y)*sy, root.Ymin+float64(k.Y+1)*sy,
		root.Zmin+float64(k.Z)*sz, root.Zmin+float64(k.Z+1)*sz,
	)
}

func (k Key) HierarchyFile() string {
	return HierarchyFolder + "/" + k.String() + ".json"
}

func (k Key) DataFile() string {
	return DataFolder + "/" + k.String() + ".bin"
}
