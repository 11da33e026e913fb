package io

import "sync"

type Producer interface {
	// Produce submits work units and closes the work channel once everything has been submitted.
	Produce(work chan *WorkUnit, wg *sync.WaitGroup)
}

type Consumer interface {
	Consume(workchan chan *WorkUnit, errchan chan error, waitGroup *sync.WaitGroup)
}
