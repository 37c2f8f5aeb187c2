// Package workerpool provides the optional parallel-for hook used
// for "worker"-tagged operations (Patricia construction over full
// block receipts, multi-proof generation over large transaction lists, BLS
// aggregation over large committees). The core never starts its own
// goroutines for these; a host may register a ParallelFor that fans work
// out across its own pool.
package workerpool

import "sync"

// ParallelFor runs body(i) for i in [begin, end) and returns only once
// every invocation has completed. Implementations may run sequentially;
// the contract makes no ordering or concurrency guarantee beyond
// "all complete before return", matching the "run and wait for
// all" semantics (never cancel-on-first-error, since a batch must not be
// short-circuited mid-flight).
type ParallelFor func(begin, end int, body func(i int))

// Sequential is the default ParallelFor: no concurrency, used when no
// host hook is registered.
func Sequential(begin, end int, body func(i int)) {
	for i := begin; i < end; i++ {
		body(i)
	}
}

// Goroutines is a ready-to-use ParallelFor that fans the range out across
// one goroutine per index, waiting for all to finish. Suitable as the
// default for a host that doesn't need its own worker pool but still
// wants to exercise real concurrency (e.g. the demo CLI).
func Goroutines(begin, end int, body func(i int)) {
	if end <= begin {
		return
	}
	var wg sync.WaitGroup
	for i := begin; i < end; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body(i)
		}(i)
	}
	wg.Wait()
}

// Chunked returns a ParallelFor that partitions [begin, end) into at most
// workers contiguous chunks and runs each chunk on its own goroutine,
// matching the "partition the index range and combine partial
// sums" guidance for BLS aggregation workers.
func Chunked(workers int) ParallelFor {
	if workers < 1 {
		workers = 1
	}
	return func(begin, end int, body func(i int)) {
		n := end - begin
		if n <= 0 {
			return
		}
		if workers == 1 || n < workers {
			Sequential(begin, end, body)
			return
		}
		chunkSize := (n + workers - 1) / workers
		var wg sync.WaitGroup
		for start := begin; start < end; start += chunkSize {
			stop := start + chunkSize
			if stop > end {
				stop = end
			}
			wg.Add(1)
			go func(start, stop int) {
				defer wg.Done()
				for i := start; i < stop; i++ {
					body(i)
				}
			}(start, stop)
		}
		wg.Wait()
	}
}
