package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	Fov    float64 // vertical field of view in degrees
	Aspect float64
	Near   float64
	Far    float64

	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3

	// viewport height in pixels, used to estimate on-screen node sizes
	ViewportHeight float64
}

func NewPerspectiveCamera(fov, aspect, near, far float64) *Camera {
	return &Camera{
		Fov:            fov,
		Aspect:         aspect,
		Near:           near,
		Far:            far,
		Position:       mgl64.Vec3{0, 0, 1},
		Up:             mgl64.Vec3{0, 1, 0},
		ViewportHeight: 1080,
	}
}

func (c *Camera) LookAt(position, target mgl64.Vec3) {
	c.Position = position
	c.Target = target
}

func (c *Camera) ViewMatrix() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position, c.Target, c.Up)
}

func (c *Camera) ProjectionMatrix() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.Fov), c.Aspect, c.Near, c.Far)
}

// MatrixWorld is the camera to world transform.
func (c *Camera) MatrixWorld() mgl64.Mat4 {
	return c.ViewMatrix().Inv()
}

func (c *Camera) Frustum() geometry.Frustum {
	return geometry.FrustumFromMatrix(c.ProjectionMatrix().Mul4(c.ViewMatrix()))
}

// Unproject maps normalized device coordinates back to world space.
func (c *Camera) Unproject(ndc mgl64.Vec3) mgl64.Vec3 {
	inverse := c.ProjectionMatrix().Mul4(c.ViewMatrix()).Inv()
	return mgl64.TransformCoordinate(ndc, inverse)
}

// ProjectedRadius estimates the radius in pixels of a sphere at the given distance.
func (c *Camera) ProjectedRadius(radius, distance float64) float64 {
	if distance <= 0 {
		return math.Inf(1)
	}
	slope := math.Tan(mgl64.DegToRad(c.Fov) / 2)
	return radius * (c.ViewportHeight / 2) / (slope * distance)
}

// FrameBox positions the camera so the whole box is in view.
func (c *Camera) FrameBox(box geometry.Box3) {
	if box.IsEmpty() {
		return
	}
	center := box.Center()
	radius := box.Size().Len() / 2
	distance := radius / math.Sin(mgl64.DegToRad(c.Fov)/2)
	c.LookAt(center.Add(mgl64.Vec3{0, 0, distance}), center)
	if c.Far < distance+radius {
		c.Far = (distance + radius) * 2
	}
}
