// Package progress tracks in-flight asynchronous loads and publishes de-duplicated snapshots of
// their progress.
package progress

import (
	"sync"

	"github.com/golang/glog"
)

// ProgressState is a snapshot of the counter. Remaining is always Total - Completed.
type ProgressState struct {
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
	Completed int `json:"completed"`
}

type action int

const (
	actionIncrement action = iota
	actionDecrement
	actionReset
)

// apply is the reducer of the counter's event stream.
func (s ProgressState) apply(a action) ProgressState {
	switch a {
	case actionIncrement:
		s.Total++
		s.Remaining++
	case actionDecrement:
		if s.Remaining == 0 {
			glog.Warningln("progress decrement without a pending item, ignored")
			return s
		}
		s.Remaining--
		s.Completed++
	case actionReset:
		return ProgressState{}
	}
	return s
}

type event struct {
	action    *action
	query     chan ProgressState
	subscribe *subscriber
	cancel    *subscriber
}

type subscriber struct {
	out    chan ProgressState
	notify chan struct{}
	quit   chan struct{}
	// closed when the counter shuts down, a subscribe event may still be queued then
	closed  <-chan struct{}
	mu      sync.Mutex
	pending []ProgressState
}

// Counter serializes Increment, Decrement and Reset through one event stream consumed by a single
// goroutine, so every subscriber observes the same ordered sequence of states.
type Counter struct {
	events      chan event
	done        chan struct{}
	closeOnce   sync.Once
	bufferSize  int
	subscribers map[*subscriber]struct{}
}

const defaultSubscriberBuffer = 16

func NewCounter() *Counter {
	c := &Counter{
		events:      make(chan event, 64),
		done:        make(chan struct{}),
		bufferSize:  defaultSubscriberBuffer,
		subscribers: make(map[*subscriber]struct{}),
	}
	go c.run()
	return c
}

func (c *Counter) Increment() {
	c.send(actionIncrement)
}

func (c *Counter) Decrement() {
	c.send(actionDecrement)
}

func (c *Counter) Reset() {
	c.send(actionReset)
}

func (c *Counter) send(a action) {
	select {
	case c.events <- event{action: &a}:
	case <-c.done:
	}
}

// State returns the state after every action sent before the call has been applied.
func (c *Counter) State() ProgressState {
	reply := make(chan ProgressState, 1)
	select {
	case c.events <- event{query: reply}:
	case <-c.done:
		return ProgressState{}
	}
	select {
	case s := <-reply:
		return s
	case <-c.done:
		return ProgressState{}
	}
}

// Subscribe returns a channel that first receives the latest state and then every distinct new
// state. A subscriber that falls behind skips intermediate values but always ends on the latest
// one. The returned function unsubscribes and closes the channel.
func (c *Counter) Subscribe() (<-chan ProgressState, func()) {
	sub := newSubscriber(c.bufferSize, c.done)
	select {
	case c.events <- event{subscribe: sub}:
	case <-c.done:
		close(sub.out)
		return sub.out, func() {}
	}
	go sub.forward()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			select {
			case c.events <- event{cancel: sub}:
			case <-c.done:
			}
		})
	}
}

// Close stops the event loop and closes every subscriber channel.
func (c *Counter) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Counter) run() {
	var state ProgressState
	for {
		select {
		case <-c.done:
			for sub := range c.subscribers {
				close(sub.quit)
			}
			c.subscribers = nil
			return
		case ev := <-c.events:
			switch {
			case ev.action != nil:
				next := state.apply(*ev.action)
				if next == state {
					continue
				}
				state = next
				for sub := range c.subscribers {
					sub.offer(state)
				}
			case ev.query != nil:
				ev.query <- state
			case ev.subscribe != nil:
				c.subscribers[ev.subscribe] = struct{}{}
				ev.subscribe.offer(state)
			case ev.cancel != nil:
				if _, ok := c.subscribers[ev.cancel]; ok {
					delete(c.subscribers, ev.cancel)
					close(ev.cancel.quit)
				}
			}
		}
	}
}

func newSubscriber(limit int, closed <-chan struct{}) *subscriber {
	return &subscriber{
		out:     make(chan ProgressState),
		notify:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		closed:  closed,
		pending: make([]ProgressState, 0, limit),
	}
}

// offer never blocks the event loop. When the subscriber lags more than its limit, the backlog
// collapses to the latest state.
func (s *subscriber) offer(state ProgressState) {
	s.mu.Lock()
	if len(s.pending) == cap(s.pending) {
		s.pending = s.pending[:0]
	}
	s.pending = append(s.pending, state)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// forward delivers pending states in order, never sending the same state twice in a row.
func (s *subscriber) forward() {
	defer close(s.out)

	var lastSent *ProgressState
	for {
		select {
		case <-s.quit:
			return
		case <-s.closed:
			return
		case <-s.notify:
		}

		s.mu.Lock()
		batch := append([]ProgressState(nil), s.pending...)
		s.pending = s.pending[:0]
		s.mu.Unlock()

		for i := range batch {
			if lastSent != nil && *lastSent == batch[i] {
				continue
			}
			select {
			case s.out <- batch[i]:
				lastSent = &batch[i]
			case <-s.quit:
				return
			case <-s.closed:
				return
			}
		}
	}
}
