package acquire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// WarmResult holds the outcome of prefetching one path.
type WarmResult struct {
	// Path is the input path as given.
	Path string

	// Key is the cache key the path resolved to.
	Key string

	// FromCache is true if the icon was already cached.
	FromCache bool

	// Err is non-nil if acquisition failed or was cancelled.
	Err error

	// Duration is how long the acquisition took.
	Duration time.Duration
}

// Warm acquires every path concurrently, bounded by Config.Workers, so later
// lookups are cache hits. Results are in input order. Paths not yet started
// when ctx is cancelled report ctx.Err().
func (a *Acquirer) Warm(ctx context.Context, paths []string, tryResolveLink bool) []WarmResult {
	results := make([]WarmResult, len(paths))

	var g errgroup.Group
	g.SetLimit(a.workers)

	for i, path := range paths {
		i, path := i, path
		results[i].Path = path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			start := time.Now()
			p := a.planFor(path, tryResolveLink)
			_, hit, err := a.run(p)

			results[i].Key = p.key
			results[i].FromCache = hit
			results[i].Duration = time.Since(start)
			if err != nil {
				results[i].Err = fmt.Errorf("acquire %s: %w", path, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Debug("warm complete", "paths", len(paths), "failed", countFailed(results))
	return results
}

// Failed joins the errors of every failed result, or returns nil.
func Failed(results []WarmResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

func countFailed(results []WarmResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
