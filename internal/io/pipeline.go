package io

import (
	"context"
	"runtime"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Run feeds the producer's units to numConsumers consumers and waits for all of them. Consumers stop
// running units after their first failure. The first error is returned.
func Run(ctx context.Context, producer Producer, numConsumers int) error {
	if numConsumers <= 0 {
		numConsumers = runtime.NumCPU()
	}

	// buffer 5 times greater than the number of consumers
	workChannel := make(chan *WorkUnit, numConsumers*5)
	errorChannel := make(chan error, numConsumers)

	var waitGroup sync.WaitGroup

	waitGroup.Add(1)
	go producer.Produce(workChannel, &waitGroup)

	for i := 0; i < numConsumers; i++ {
		waitGroup.Add(1)
		go NewStandardConsumer(ctx, true).Consume(workChannel, errorChannel, &waitGroup)
	}

	waitGroup.Wait()
	close(errorChannel)

	var first error
	count := 0
	for err := range errorChannel {
		if first == nil {
			first = err
		}
		count++
	}
	if count > 1 {
		glog.Warningf("%d work units failed, reporting the first", count)
	}
	return errors.WithStack(first)
}
