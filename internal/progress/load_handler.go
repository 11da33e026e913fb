package progress

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// DefaultPollInterval is how often the loader activity gauge is sampled.
const DefaultPollInterval = 1000 * time.Millisecond

// LoaderActivityGauge reports how many items are currently being downloaded.
type LoaderActivityGauge interface {
	CurrentCount() int
}

// GaugeFunc adapts a plain function to a LoaderActivityGauge.
type GaugeFunc func() int

func (f GaugeFunc) CurrentCount() int {
	return f()
}

// LoadHandler samples a LoaderActivityGauge periodically and turns the absolute count into
// Increment/Decrement actions on a Counter. A new burst of activity starting from idle resets the
// counter first, so totals describe the current burst only.
type LoadHandler struct {
	gauge    LoaderActivityGauge
	counter  *Counter
	clock    clock.Clock
	interval time.Duration

	mu       sync.Mutex
	previous int
	stop     chan struct{}
	stopped  chan struct{}
}

type LoadHandlerOption func(*LoadHandler)

func WithClock(c clock.Clock) LoadHandlerOption {
	return func(h *LoadHandler) {
		h.clock = c
	}
}

func WithPollInterval(interval time.Duration) LoadHandlerOption {
	return func(h *LoadHandler) {
		if interval > 0 {
			h.interval = interval
		}
	}
}

func NewLoadHandler(gauge LoaderActivityGauge, counter *Counter, opts ...LoadHandlerOption) *LoadHandler {
	h := &LoadHandler{
		gauge:    gauge,
		counter:  counter,
		clock:    clock.New(),
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the polling goroutine. Calling Start on a running handler is a no-op.
func (h *LoadHandler) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return
	}
	h.stop = make(chan struct{})
	h.stopped = make(chan struct{})

	ticker := h.clock.Ticker(h.interval)
	go func(stop, stopped chan struct{}) {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.Poll()
			}
		}
	}(h.stop, h.stopped)
}

// Stop ends polling and waits for the goroutine to exit.
func (h *LoadHandler) Stop() {
	h.mu.Lock()
	stop, stopped := h.stop, h.stopped
	h.stop, h.stopped = nil, nil
	h.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

// Poll takes one sample of the gauge and forwards the difference to the counter.
func (h *LoadHandler) Poll() {
	current := h.gauge.CurrentCount()
	if current < 0 {
		current = 0
	}

	h.mu.Lock()
	previous := h.previous
	h.previous = current
	h.mu.Unlock()

	if current == previous {
		return
	}
	glog.V(2).Infof("loader activity changed from %d to %d", previous, current)

	if current > previous {
		if previous == 0 {
			h.counter.Reset()
		}
		for i := previous; i < current; i++ {
			h.counter.Increment()
		}
		return
	}
	for i := current; i < previous; i++ {
		h.counter.Decrement()
	}
}
