package pointcloud

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"golang.org/x/sync/singleflight"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/metadata"
	"github.com/ecopia-map/pointcloud_streamer/internal/progress"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
)

// LoadingState describes the tile downloads of the current burst.
type LoadingState struct {
	IsLoading      bool
	ItemsLoaded    int
	ItemsRequested int
}

func loadingStateOf(s progress.ProgressState) LoadingState {
	return LoadingState{
		IsLoading:      s.Remaining > 0,
		ItemsLoaded:    s.Completed,
		ItemsRequested: s.Total,
	}
}

type managerOptions struct {
	pollInterval time.Duration
	clock        clock.Clock
}

type ManagerOption func(*managerOptions)

// WithProgressPollInterval sets how often the loader activity is sampled for the loading state.
func WithProgressPollInterval(interval time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.pollInterval = interval
	}
}

func WithProgressClock(c clock.Clock) ManagerOption {
	return func(o *managerOptions) {
		o.clock = c
	}
}

// Manager is the entry point for loading point clouds. It is generic over the identifier type of its
// data client.
type Manager[T client.ModelIdentifier] struct {
	repository *metadata.Repository[T]
	factory    *NodeFactory[T]

	counter *progress.Counter
	handler *progress.LoadHandler

	inflight singleflight.Group
	group    *GroupWrapper
	mu       sync.Mutex
}

func NewManager[T client.ModelIdentifier](repository *metadata.Repository[T], factory *NodeFactory[T], opts ...ManagerOption) *Manager[T] {
	o := &managerOptions{pollInterval: progress.DefaultPollInterval, clock: clock.New()}
	for _, opt := range opts {
		opt(o)
	}

	counter := progress.NewCounter()
	handler := progress.NewLoadHandler(factory.Loader(), counter,
		progress.WithPollInterval(o.pollInterval), progress.WithClock(o.clock))
	handler.Start()

	return &Manager[T]{
		repository: repository,
		factory:    factory,
		counter:    counter,
		handler:    handler,
	}
}

// AddModel loads a model and attaches it to the group. Concurrent calls for the same identifier share
// one load and return the same node.
func (m *Manager[T]) AddModel(ctx context.Context, id T) (*NodeWrapper, error) {
	v, err, shared := m.inflight.Do(id.String(), func() (interface{}, error) {
		group := m.groupWrapper()

		meta, err := m.repository.LoadData(ctx, id)
		if err != nil {
			return nil, err
		}
		node, err := m.factory.CreateNode(ctx, id, meta)
		if err != nil {
			return nil, err
		}
		group.AddPointCloud(node)
		node.SetModelTransformation(meta.ModelMatrix)
		glog.Infof("added %s", id)
		return node, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		glog.V(1).Infof("%s was already loading, sharing the result", id)
	}
	return v.(*NodeWrapper), nil
}

// RemoveModel detaches a node returned by AddModel.
func (m *Manager[T]) RemoveModel(node *NodeWrapper) error {
	return m.groupWrapper().RemovePointCloud(node)
}

func (m *Manager[T]) groupWrapper() *GroupWrapper {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.group == nil {
		m.group = NewGroupWrapper(m.factory.Loader())
	}
	return m.group
}

// Object is the scene object holding every loaded point cloud.
func (m *Manager[T]) Object() *scene.Object {
	return m.groupWrapper().Object()
}

func (m *Manager[T]) Nodes() []*NodeWrapper {
	return m.groupWrapper().Nodes()
}

func (m *Manager[T]) RequestRedraw() {
	m.groupWrapper().RequestRedraw()
}

func (m *Manager[T]) NeedsRedraw() bool {
	m.mu.Lock()
	group := m.group
	m.mu.Unlock()
	return group != nil && group.NeedsRedraw()
}

// LoadingStateObserver streams the loading state, starting with the current one. The returned
// function ends the subscription.
func (m *Manager[T]) LoadingStateObserver() (<-chan LoadingState, func()) {
	states, unsubscribe := m.counter.Subscribe()
	out := make(chan LoadingState)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for s := range states {
			select {
			case out <- loadingStateOf(s):
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}
}

// UpdateCamera is reserved for distance based level of detail and does nothing.
func (m *Manager[T]) UpdateCamera(camera *scene.Camera) {}

// Close stops progress tracking and the tile loader.
func (m *Manager[T]) Close() {
	m.handler.Stop()
	m.factory.Loader().Close()
	m.counter.Close()
}
