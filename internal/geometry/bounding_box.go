package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis aligned bounding box expressed in the native (Z-up) coordinate system of a point cloud.
// Mid values are cached as they are used on every octant lookup.
type BoundingBox struct {
	Xmin, Xmax float64
	Ymin, Ymax float64
	Zmin, Zmax float64
	Xmid, Ymid, Zmid float64
}

func NewBoundingBox(xMin, xMax, yMin, yMax, zMin, zMax float64) *BoundingBox {
	return &BoundingBox{
		Xmin: xMin,
		Xmax: xMax,
		Ymin: yMin,
		Ymax: yMax,
		Zmin: zMin,
		Zmax: zMax,
		Xmid: (xMin + xMax) / 2,
		Ymid: (yMin + yMax) / 2,
		Zmid: (zMin + zMax) / 2,
	}
}

// Builds the bounding box of the given octant of the parent box. Bit 0 of the octant selects the upper
// half along X, bit 1 along Y and bit 2 along Z.
func NewBoundingBoxFromParent(parent *BoundingBox, octant *uint8) *BoundingBox {
	var xMin, xMax, yMin, yMax, zMin, zMax float64

	if *octant&1 == 0 {
		xMin, xMax = parent.Xmin, parent.Xmid
	} else {
		xMin, xMax = parent.Xmid, parent.Xmax
	}
	if *octant&2 == 0 {
		yMin, yMax = parent.Ymin, parent.Ymid
	} else {
		yMin, yMax = parent.Ymid, parent.Ymax
	}
	if *octant&4 == 0 {
		zMin, zMax = parent.Zmin, parent.Zmid
	} else {
		zMin, zMax = parent.Zmid, parent.Zmax
	}

	return NewBoundingBox(xMin, xMax, yMin, yMax, zMin, zMax)
}

// Returns the index of the octant that contains the given coordinates
func (b *BoundingBox) OctantOf(x, y, z float64) uint8 {
	var result uint8 = 0
	if x > b.Xmid {
		result += 1
	}
	if y > b.Ymid {
		result += 2
	}
	if z > b.Zmid {
		result += 4
	}
	return result
}

func (b *BoundingBox) Contains(x, y, z float64) bool {
	return x >= b.Xmin && x <= b.Xmax &&
		y >= b.Ymin && y <= b.Ymax &&
		z >= b.Zmin && z <= b.Zmax
}

// Length of the box diagonal
func (b *BoundingBox) Diagonal() float64 {
	w := math.Abs(b.Xmax - b.Xmin)
	l := math.Abs(b.Ymax - b.Ymin)
	h := math.Abs(b.Zmax - b.Zmin)
	return math.Sqrt(w*w + l*l + h*h)
}

func (b *BoundingBox) GetAsArray() []float64 {
	return []float64{b.Xmin, b.Ymin, b.Zmin, b.Xmax, b.Ymax, b.Zmax}
}

func (b *BoundingBox) ToBox3() Box3 {
	return NewBox3(Vec3(b.Xmin, b.Ymin, b.Zmin), Vec3(b.Xmax, b.Ymax, b.Zmax))
}

// ZUpToYUp maps native Z-up coordinates into the viewer's Y-up space: (x, y, z) becomes (x, z, -y).
var ZUpToYUp = mgl64.Mat4{
	1, 0, 0, 0,
	0, 0, -1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

func ToYUp(x, y, z float64) mgl64.Vec3 {
	return mgl64.Vec3{x, z, -y}
}

// ToYUpBox3 remaps the box into the viewer's Y-up space.
func (b *BoundingBox) ToYUpBox3() Box3 {
	return NewBox3(Vec3(b.Xmin, b.Zmin, -b.Ymax), Vec3(b.Xmax, b.Zmax, -b.Ymin))
}
