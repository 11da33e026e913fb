// Package blob resolves which stored binary output of a model revision should be streamed.
package blob

import "github.com/samber/lo"

// Output describes one binary output generated for a model revision.
type Output struct {
	BlobID  int64  `json:"blobId"`
	Format  string `json:"format"`
	Version int    `json:"version"`
}

type OutputList []Output

// FindMostRecentOutput returns the output of the given format with the highest version. When
// supportedVersions is not empty only those versions are considered. On equal versions the first
// entry wins.
func (l OutputList) FindMostRecentOutput(format string, supportedVersions ...int) (Output, bool) {
	candidates := lo.Filter(l, func(o Output, _ int) bool {
		if o.Format != format {
			return false
		}
		return len(supportedVersions) == 0 || lo.Contains(supportedVersions, o.Version)
	})
	if len(candidates) == 0 {
		return Output{}, false
	}
	return lo.MaxBy(candidates, func(a, b Output) bool {
		return a.Version > b.Version
	}), true
}

// Formats lists the distinct formats in the order they first appear.
func (l OutputList) Formats() []string {
	return lo.Uniq(lo.Map(l, func(o Output, _ int) string {
		return o.Format
	}))
}
