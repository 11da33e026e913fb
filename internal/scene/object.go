// Package scene is a minimal scene graph: a hierarchy of objects with local and world matrices,
// optional point geometry and render pass hooks. Nothing is rasterized.
package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/geometry"
)

// RenderHook is called by Render with the camera of the pass.
type RenderHook func(camera *Camera)

// Object is a node of the scene graph. World matrices are kept up to date on every change so readers
// never observe a stale transform.
type Object struct {
	id   uuid.UUID
	name string

	parent   *Object
	children []*Object

	matrix      mgl64.Mat4
	matrixWorld mgl64.Mat4
	visible     bool

	points      data.Points
	pointsBox   geometry.Box3
	pointFilter func(index int) bool

	onBeforeRender RenderHook
	onAfterRender  RenderHook

	sync.RWMutex
}

func NewObject(name string) *Object {
	return &Object{
		id:          uuid.New(),
		name:        name,
		matrix:      mgl64.Ident4(),
		matrixWorld: mgl64.Ident4(),
		visible:     true,
		pointsBox:   geometry.EmptyBox3(),
	}
}

// NewPoints creates an object carrying point geometry expressed in its local space.
func NewPoints(name string, points data.Points) *Object {
	o := NewObject(name)
	o.SetPoints(points)
	return o
}

func (o *Object) ID() uuid.UUID {
	return o.id
}

func (o *Object) Name() string {
	return o.name
}

func (o *Object) Parent() *Object {
	o.RLock()
	defer o.RUnlock()
	return o.parent
}

// Children returns a copy of the children list.
func (o *Object) Children() []*Object {
	o.RLock()
	defer o.RUnlock()
	return append([]*Object(nil), o.children...)
}

// Add attaches child to o, detaching it from its previous parent first.
func (o *Object) Add(child *Object) {
	if child == nil || child == o {
		return
	}
	if previous := child.Parent(); previous != nil {
		previous.Remove(child)
	}

	o.Lock()
	o.children = append(o.children, child)
	parentWorld := o.matrixWorld
	o.Unlock()

	child.Lock()
	child.parent = o
	child.Unlock()
	child.updateWorld(parentWorld)
}

// Remove detaches child. It returns false when child is not a direct child of o.
func (o *Object) Remove(child *Object) bool {
	o.Lock()
	index := -1
	for i, c := range o.children {
		if c == child {
			index = i
			break
		}
	}
	if index < 0 {
		o.Unlock()
		return false
	}
	o.children = append(o.children[:index], o.children[index+1:]...)
	o.Unlock()

	child.Lock()
	child.parent = nil
	child.Unlock()
	child.updateWorld(mgl64.Ident4())
	return true
}

func (o *Object) Matrix() mgl64.Mat4 {
	o.RLock()
	defer o.RUnlock()
	return o.matrix
}

// SetMatrix replaces the local matrix and updates the world matrices of the whole subtree.
func (o *Object) SetMatrix(m mgl64.Mat4) {
	o.Lock()
	o.matrix = m
	parent := o.parent
	o.Unlock()

	parentWorld := mgl64.Ident4()
	if parent != nil {
		parentWorld = parent.MatrixWorld()
	}
	o.updateWorld(parentWorld)
}

func (o *Object) MatrixWorld() mgl64.Mat4 {
	o.RLock()
	defer o.RUnlock()
	return o.matrixWorld
}

func (o *Object) updateWorld(parentWorld mgl64.Mat4) {
	o.Lock()
	o.matrixWorld = parentWorld.Mul4(o.matrix)
	world := o.matrixWorld
	children := append([]*Object(nil), o.children...)
	o.Unlock()

	for _, child := range children {
		child.updateWorld(world)
	}
}

func (o *Object) Visible() bool {
	o.RLock()
	defer o.RUnlock()
	return o.visible
}

func (o *Object) SetVisible(visible bool) {
	o.Lock()
	o.visible = visible
	o.Unlock()
}

func (o *Object) Points() data.Points {
	o.RLock()
	defer o.RUnlock()
	return o.points
}

// PointsBox is the local space box of the point geometry.
func (o *Object) PointsBox() geometry.Box3 {
	o.RLock()
	defer o.RUnlock()
	return o.pointsBox
}

func (o *Object) SetPoints(points data.Points) {
	box := geometry.EmptyBox3()
	for i := range points {
		box = box.ExpandByPoint(mgl64.Vec3{points[i].X, points[i].Y, points[i].Z})
	}
	o.Lock()
	o.points = points
	o.pointsBox = box
	o.Unlock()
}

// SetPointFilter restricts which points can be hit by a raycast. nil accepts every point.
func (o *Object) SetPointFilter(filter func(index int) bool) {
	o.Lock()
	o.pointFilter = filter
	o.Unlock()
}

func (o *Object) SetOnBeforeRender(hook RenderHook) {
	o.Lock()
	o.onBeforeRender = hook
	o.Unlock()
}

func (o *Object) SetOnAfterRender(hook RenderHook) {
	o.Lock()
	o.onAfterRender = hook
	o.Unlock()
}

// Traverse calls fn for o and all its descendants, depth first.
func (o *Object) Traverse(fn func(*Object)) {
	fn(o)
	for _, child := range o.Children() {
		child.Traverse(fn)
	}
}

// TraverseVisible is Traverse restricted to visible subtrees.
func (o *Object) TraverseVisible(fn func(*Object)) {
	if !o.Visible() {
		return
	}
	fn(o)
	for _, child := range o.Children() {
		child.TraverseVisible(fn)
	}
}

// IsAncestorOf reports whether o is other or one of its ancestors.
func (o *Object) IsAncestorOf(other *Object) bool {
	for current := other; current != nil; current = current.Parent() {
		if current == o {
			return true
		}
	}
	return false
}
