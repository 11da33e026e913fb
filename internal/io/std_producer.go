package io

import "sync"

// StandardProducer submits a fixed list of work units in order.
type StandardProducer struct {
	units []*WorkUnit
}

func NewStandardProducer(units []*WorkUnit) *StandardProducer {
	return &StandardProducer{units: units}
}

func (p *StandardProducer) Produce(work chan *WorkUnit, wg *sync.WaitGroup) {
	for _, unit := range p.units {
		work <- unit
	}
	close(work)
	wg.Done()
}
