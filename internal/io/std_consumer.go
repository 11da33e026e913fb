package io

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// ErrSkipped is passed to WorkUnit.Done for units dropped after an earlier failure.
var ErrSkipped = errors.New("work unit skipped after an earlier failure")

type StandardConsumer struct {
	ctx         context.Context
	stopOnError bool
}

// NewStandardConsumer returns a consumer running units with ctx. When stopOnError is set the consumer
// skips every unit received after its first failure, otherwise failures are only reported.
func NewStandardConsumer(ctx context.Context, stopOnError bool) *StandardConsumer {
	return &StandardConsumer{ctx: ctx, stopOnError: stopOnError}
}

// Consume continually runs WorkUnits submitted to the work channel until it is closed. Failures are
// sent to the error channel when one is given.
func (c *StandardConsumer) Consume(workchan chan *WorkUnit, errchan chan error, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	failed := false
	for work := range workchan {
		if failed {
			// keep draining so the producer never blocks
			if work.Done != nil {
				work.Done(ErrSkipped)
			}
			continue
		}

		err := c.doWork(work)
		if work.Done != nil {
			work.Done(err)
		}
		if err == nil {
			continue
		}

		glog.V(1).Infof("work unit %s failed: %v", work.Name, err)
		if errchan != nil {
			select {
			case errchan <- err:
			default:
				glog.Warningf("dropped error of work unit %s: %v", work.Name, err)
			}
		}
		failed = c.stopOnError
	}
}

func (c *StandardConsumer) doWork(work *WorkUnit) (err error) {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("work unit %s panicked: %v", work.Name, r)
		}
	}()
	return errors.Wrap(work.Do(c.ctx), work.Name)
}
