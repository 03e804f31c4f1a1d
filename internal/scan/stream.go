package scan

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sift/internal/engine"
)

// resultBuffer bounds the diagnostics channel between workers and the single
// consumer. A stalled consumer (an interactive prompt) blocks the workers
// instead of letting buffered results grow without bound.
const resultBuffer = 128

// Stream runs the dispatcher over the path stream with a fixed-size worker
// pool and returns the result stream. Each path is processed by exactly one
// worker and each result delivered exactly once. Files with no diagnostics
// are still reported so consumers can count scanned files.
//
// Cancelling the context stops workers from dequeueing further paths;
// in-flight files are allowed to finish.
func (d *Dispatcher) Stream(ctx context.Context, paths <-chan string, threads int) <-chan FileResult {
	if threads < 1 {
		threads = 1
	}
	results := make(chan FileResult, resultBuffer)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < threads; i++ {
		g.Go(func() error {
			parser := engine.NewParser()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case path, ok := <-paths:
					if !ok {
						return nil
					}
					result := d.File(gctx, parser, path)
					select {
					case results <- result:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}

// Collect drains a result stream into a deterministically ordered slice:
// files sorted by path, diagnostics by position. Files that produced no
// diagnostics are kept for the summary but carry no entries.
func Collect(results <-chan FileResult) []FileResult {
	var all []FileResult
	for r := range results {
		all = append(all, r)
	}
	SortResults(all)
	return all
}
