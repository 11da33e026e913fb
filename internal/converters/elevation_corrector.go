// Package converters adjusts input points before they are sampled into an octree.
package converters

import "github.com/ecopia-map/pointcloud_streamer/internal/data"

type ElevationCorrector interface {
	CorrectElevation(x, y, z float64) float64
}

// CorrectPoints applies the corrector to every point in place.
func CorrectPoints(points data.Points, corrector ElevationCorrector) {
	for i := range points {
		p := &points[i]
		p.Z = corrector.CorrectElevation(p.X, p.Y, p.Z)
	}
}
