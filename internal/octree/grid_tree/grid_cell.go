package grid_tree

import (
	"math"
	"sync"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
)

type gridIndex struct {
	x, y, z int
}

// A cell of the grid subdividing a node. It retains the single point closest to its center.
type gridCell struct {
	index  gridIndex
	center [3]float64
	point  *data.Point
	sync.Mutex
}

// Stores the point if the cell is empty or if it is closer to the center than the current one.
// Returns the point that was not retained, or nil.
func (c *gridCell) pushPoint(point *data.Point) *data.Point {
	c.Lock()
	defer c.Unlock()

	if c.point == nil {
		c.point = point
		return nil
	}
	if c.distanceSq(point) < c.distanceSq(c.point) {
		c.point, point = point, c.point
	}
	return point
}

func (c *gridCell) distanceSq(p *data.Point) float64 {
	dx, dy, dz := p.X-c.center[0], p.Y-c.center[1], p.Z-c.center[2]
	return dx*dx + dy*dy + dz*dz
}

func getDimensionIndex(value, origin, cellSize float64) int {
	return int(math.Floor((value - origin) / cellSize))
}
