package io

import "context"

// WorkUnit is one independent job handled by a consumer, such as fetching or writing a single tile.
type WorkUnit struct {
	// Name identifies the unit in logs and errors, usually the key of the tile it handles
	Name string

	Do func(ctx context.Context) error

	// Done is called with the result of Do. Optional.
	Done func(err error)
}
