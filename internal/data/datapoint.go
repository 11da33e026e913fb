package data

import "github.com/ecopia-map/pointcloud_streamer/internal/geometry"

// Contains data of a Point Cloud Point, namely X,Y,Z coords,
// R,G,B color components, Intensity and Classification
type Point struct {
	X              float64
	Y              float64
	Z              float64
	R              uint8
	G              uint8
	B              uint8
	Intensity      uint16
	Classification uint8
}

// Builds a new Point from the given coordinates, colors, intensity and classification values
func NewPoint(X, Y, Z float64, R, G, B uint8, Intensity uint16, Classification uint8) *Point {
	return &Point{
		X:              X,
		Y:              Y,
		Z:              Z,
		R:              R,
		G:              G,
		B:              B,
		Intensity:      Intensity,
		Classification: Classification,
	}
}

// Points is a decoded tile of points in the order they were stored.
type Points []Point

// Classes returns the set of classification codes present in the tile.
func (p Points) Classes() map[int]struct{} {
	classes := make(map[int]struct{})
	for i := range p {
		classes[int(p[i].Classification)] = struct{}{}
	}
	return classes
}

// Bounds is the tight box of the points. An empty set yields the unit cube.
func (p Points) Bounds() *geometry.BoundingBox {
	if len(p) == 0 {
		return geometry.NewBoundingBox(0, 1, 0, 1, 0, 1)
	}
	xmin, xmax, ymin, ymax, zmin, zmax := p[0].X, p[0].X, p[0].Y, p[0].Y, p[0].Z, p[0].Z
	for _, pt := range p[1:] {
		xmin, xmax = min(xmin, pt.X), max(xmax, pt.X)
		ymin, ymax = min(ymin, pt.Y), max(ymax, pt.Y)
		zmin, zmax = min(zmin, pt.Z), max(zmax, pt.Z)
	}
	return geometry.NewBoundingBox(xmin, xmax, ymin, ymax, zmin, zmax)
}
