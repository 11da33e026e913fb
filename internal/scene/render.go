package scene

import "github.com/golang/glog"

// RenderStats summarizes one render pass.
type RenderStats struct {
	Objects int
	Points  int
}

// Render walks the visible objects under root. An object's before-render hook runs before its
// children are visited and its after-render hook once its whole subtree has been rendered. Hidden
// objects are skipped together with their hooks. Hooks may change the subtree they are attached to.
func Render(root *Object, camera *Camera) RenderStats {
	var stats RenderStats
	render(root, camera, &stats)
	glog.V(3).Infof("rendered %d objects, %d points", stats.Objects, stats.Points)
	return stats
}

func render(o *Object, camera *Camera, stats *RenderStats) {
	o.RLock()
	visible := o.visible
	before := o.onBeforeRender
	o.RUnlock()
	if !visible {
		return
	}
	if before != nil {
		before(camera)
	}

	stats.Objects++
	stats.Points += len(o.Points())

	for _, child := range o.Children() {
		render(child, camera, stats)
	}

	o.RLock()
	after := o.onAfterRender
	o.RUnlock()
	if after != nil {
		after(camera)
	}
}
