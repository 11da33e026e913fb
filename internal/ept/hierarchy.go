package ept

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// subtreeMarker in a hierarchy file means the counts below that key live in their own file.
const subtreeMarker = -1

// maximum number of hierarchy files fetched at the same time
const hierarchyConcurrency = 4

// Hierarchy maps every non empty node to its point count.
type Hierarchy map[Key]int64

// ParseHierarchy decodes one hierarchy file. Subtree markers are kept as -1.
func ParseHierarchy(raw []byte) (Hierarchy, error) {
	var counts map[string]int64
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, errors.Wrap(err, "decoding ept hierarchy")
	}
	h := make(Hierarchy, len(counts))
	for s, count := range counts {
		k, err := ParseKey(s)
		if err != nil {
			return nil, err
		}
		if count < subtreeMarker {
			return nil, errors.Errorf("invalid point count %d for %s", count, s)
		}
		h[k] = count
	}
	return h, nil
}

// FetchFunc reads a file relative to the dataset root.
type FetchFunc func(ctx context.Context, fileName string) ([]byte, error)

// LoadHierarchy reads the hierarchy starting at the root file and follows every subtree marker.
func LoadHierarchy(ctx context.Context, fetch FetchFunc) (Hierarchy, error) {
	var (
		mu     sync.Mutex
		result = make(Hierarchy)
	)

	g, gctx := errgroup.WithContext(ctx)
	// bounds concurrent fetches
	slots := make(chan struct{}, hierarchyConcurrency)

	var load func(k Key)
	load = func(k Key) {
		g.Go(func() error {
			select {
			case slots <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			raw, err := fetch(gctx, k.HierarchyFile())
			<-slots
			if err != nil {
				return errors.Wrapf(err, "fetching hierarchy %s", k)
			}
			h, err := ParseHierarchy(raw)
			if err != nil {
				return errors.Wrapf(err, "hierarchy %s", k)
			}
			glog.V(2).Infof("hierarchy %s lists %d nodes", k, len(h))

			var subtrees []Key
			mu.Lock()
			for key, count := range h {
				if count == subtreeMarker {
					if key != k {
						subtrees = append(subtrees, key)
					}
					continue
				}
				result[key] = count
			}
			mu.Unlock()

			for _, s := range subtrees {
				load(s)
			}
			return nil
		})
	}
	load(RootKey)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
