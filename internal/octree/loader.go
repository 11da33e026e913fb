package octree

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/io"
)

const (
	DefaultLoaderWorkers = 4
	DefaultLoaderQueue   = 64
)

// Loader downloads node tiles on a fixed pool of workers shared by every octree. The number of tiles
// in flight is its CurrentCount.
type Loader struct {
	pool      *io.Pool
	capacity  int
	completed atomic.Int64
}

func NewLoader(ctx context.Context, workers, queueSize int) *Loader {
	if workers <= 0 {
		workers = DefaultLoaderWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultLoaderQueue
	}
	return &Loader{
		pool:     io.NewPool(ctx, workers, queueSize),
		capacity: queueSize,
	}
}

// CurrentCount is the number of tiles queued or downloading.
func (l *Loader) CurrentCount() int {
	return l.pool.Active()
}

// CompletedCount is the number of tiles that finished loading, successfully or not. A tile that
// loaded is counted before it leaves CurrentCount.
func (l *Loader) CompletedCount() int {
	return int(l.completed.Load())
}

func (l *Loader) Close() {
	l.pool.Close()
}

// load queues the tile of node. It reports false when the node is not unloaded or the loader is busy.
// Completion only updates the node, the scene is changed by the next visibility update.
func (l *Loader) load(tree *PointCloudOctree, node *OctreeNode) bool {
	if l.pool.Active() >= l.capacity || !node.startLoading() {
		return false
	}

	unit := &io.WorkUnit{
		Name: tree.name + "/" + node.key.String(),
		Do: func(ctx context.Context) error {
			content, err := tree.fetch(ctx, node.key.DataFile())
			if err != nil {
				return err
			}
			points, err := ept.DecodeBinary(content, tree.metadata)
			if err != nil {
				return err
			}
			if int64(len(points)) != node.numPoints {
				glog.Warningf("tile %s has %d points, hierarchy lists %d", node.key, len(points), node.numPoints)
			}
			tree.material.AddClasses(points.Classes())
			node.setLoaded(points)
			l.completed.Add(1)
			return nil
		},
		Done: func(err error) {
			if err != nil {
				glog.Warningf("failed to load %s: %v", node.key, err)
				node.setFailed(err)
				l.completed.Add(1)
				return
			}
			glog.V(2).Infof("loaded %s/%s", tree.name, node.key)
		},
	}
	if err := l.pool.Submit(unit); err != nil {
		node.abortLoading()
		glog.V(2).Infof("%s not queued: %v", node.key, errors.Cause(err))
		return false
	}
	return true
}
