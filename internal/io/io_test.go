package io

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterUnits(n int, counter *atomic.Int64, failAt int) []*WorkUnit {
	units := make([]*WorkUnit, n)
	for i := range units {
		i := i
		units[i] = &WorkUnit{
			Name: fmt.Sprintf("unit-%d", i),
			Do: func(ctx context.Context) error {
				if i == failAt {
					return errors.New("boom")
				}
				counter.Add(1)
				return nil
			},
		}
	}
	return units
}

func TestRun(t *testing.T) {
	var counter atomic.Int64
	err := Run(context.Background(), NewStandardProducer(counterUnits(100, &counter, -1)), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(100), counter.Load())
}

func TestRunReportsFailure(t *testing.T) {
	var counter atomic.Int64
	err := Run(context.Background(), NewStandardProducer(counterUnits(50, &counter, 10)), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit-10")
	assert.Contains(t, err.Error(), "boom")
	assert.Less(t, counter.Load(), int64(50))
}

func TestRunRecoversPanics(t *testing.T) {
	units := []*WorkUnit{{Name: "bad", Do: func(ctx context.Context) error { panic("nil tile") }}}
	err := Run(context.Background(), NewStandardProducer(units), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestPool(t *testing.T) {
	pool := NewPool(context.Background(), 3, 8)
	defer pool.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < 6; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, pool.Submit(&WorkUnit{
			Name: fmt.Sprintf("tile-%d", i),
			Do: func(ctx context.Context) error {
				<-release
				if i%2 == 0 {
					return errors.New("missing")
				}
				return nil
			},
			Done: func(err error) {
				if err != nil {
					failures.Add(1)
				}
				wg.Done()
			},
		}))
	}

	assert.Equal(t, 6, pool.Active())
	close(release)
	wg.Wait()
	assert.Equal(t, int64(3), failures.Load())
	assert.Eventually(t, func() bool { return pool.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPoolClose(t *testing.T) {
	pool := NewPool(context.Background(), 1, 4)

	started := make(chan struct{})
	results := make(chan error, 2)
	require.NoError(t, pool.Submit(&WorkUnit{
		Name: "running",
		Do: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
		Done: func(err error) { results <- err },
	}))
	require.NoError(t, pool.Submit(&WorkUnit{
		Name: "queued",
		Do:   func(ctx context.Context) error { return nil },
		Done: func(err error) { results <- err },
	}))

	<-started
	pool.Close()
	pool.Close()

	assert.ErrorIs(t, <-results, context.Canceled)
	assert.ErrorIs(t, <-results, context.Canceled)
	assert.ErrorIs(t, pool.Submit(&WorkUnit{Name: "late"}), ErrPoolClosed)
	assert.Equal(t, 0, pool.Active())
}
