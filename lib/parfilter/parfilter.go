// Package parfilter evaluates a predicate over large record sets with a
// bounded worker pool and cooperative cancellation. Output order always
// matches input order.
package parfilter

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Options control a Filter run. The zero value is usable: worker count
// is derived from the host and cancellation is never requested.
type Options struct {
	// Workers bounds the pool size. Zero or negative means
	// SuggestWorkers().
	Workers int
	// CancelCheck is polled between predicate evaluations; in-flight
	// evaluations always run to completion. May be nil.
	CancelCheck func() bool
	// MinParallelSize is the smallest input for which workers are
	// spawned at all; below it the filter runs sequentially. Zero means
	// a built-in default.
	MinParallelSize int
}

const defaultMinParallelSize = 200

// SuggestWorkers returns a host-derived worker count, clamped to keep a
// background filter from saturating the machine.
func SuggestWorkers() int {
	count, err := cpu.Counts(true)
	if err != nil || count <= 0 {
		count = runtime.NumCPU()
	}
	return max(2, min(8, count))
}

// ResolveWorkers maps a user-supplied worker count to an effective one.
// Zero and negative values mean "automatic".
func ResolveWorkers(value int) int {
	if value <= 0 {
		return SuggestWorkers()
	}
	return value
}

// Filter returns the items matching predicate, in input order. When
// cancelled mid-run it returns the matches within the longest fully
// decided prefix of the input, so a partial result never reflects a
// half-evaluated item.
func Filter[T any](items []T, predicate func(T) bool, opts Options) []T {
	total := len(items)
	if total == 0 {
		return nil
	}

	workers := ResolveWorkers(opts.Workers)
	minParallel := opts.MinParallelSize
	if minParallel <= 0 {
		minParallel = defaultMinParallelSize
	}
	cancelled := opts.CancelCheck
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	if workers <= 1 || total < minParallel {
		var matched []T
		for _, item := range items {
			if cancelled() {
				break
			}
			if predicate(item) {
				matched = append(matched, item)
			}
		}
		return matched
	}

	// Contiguous chunks keep the decided region a prefix per worker;
	// the final scan below stitches per-item decisions back into input
	// order.
	chunkSize := max(64, total/(workers*4))
	type chunk struct{ start, end int }

	// Pre-filled buffered queue: a worker exiting on cancellation must
	// never strand the producer on a blocked send.
	chunks := make(chan chunk, (total+chunkSize-1)/chunkSize)
	for start := 0; start < total; start += chunkSize {
		chunks <- chunk{start: start, end: min(start+chunkSize, total)}
	}
	close(chunks)

	decided := make([]bool, total)
	keep := make([]bool, total)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunks {
				for i := c.start; i < c.end; i++ {
					if cancelled() {
						return
					}
					keep[i] = predicate(items[i])
					decided[i] = true
				}
			}
		}()
	}
	wg.Wait()

	var matched []T
	for i := 0; i < total && decided[i]; i++ {
		if keep[i] {
			matched = append(matched, items[i])
		}
	}
	return matched
}
