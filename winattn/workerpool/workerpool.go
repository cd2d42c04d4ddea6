// Copyright 2025 go-winattn Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent worker pool for parallel numeric
// work. A Pool is created once and reused across many forward calls, so the
// per-call cost is a channel send per worker rather than goroutine spawning.
//
// Usage:
//
//	pool := workerpool.New(0) // 0 = GOMAXPROCS
//	defer pool.Close()
//
//	for _, block := range blocks {
//	    pool.ParallelForAtomic(batch*heads, func(i int) {
//	        attendHead(i)
//	    })
//	}
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. Workers are spawned at creation and live
// until Close. All Parallel* methods block until the submitted work is done
// and are safe for concurrent use.
type Pool struct {
	numWorkers int
	work       chan func()
	closeOnce  sync.Once
	closed     atomic.Bool
}

// New creates a pool with numWorkers workers, or GOMAXPROCS when
// numWorkers <= 0.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		work:       make(chan func(), numWorkers),
	}
	for range numWorkers {
		go func() {
			for fn := range p.work {
				fn()
			}
		}()
	}
	return p
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts the pool down after pending work completes. A closed pool
// degrades to sequential execution; Close may be called more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.work)
	})
}

// ParallelFor runs fn over contiguous chunks covering [0, n), one chunk per
// worker. Use it when per-index cost is uniform.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}

	workers := min(p.numWorkers, n)
	if workers == 1 || p.closed.Load() {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		p.work <- func() {
			defer wg.Done()
			fn(start, end)
		}
	}
	wg.Wait()
}

// ParallelForAtomic runs fn for every index in [0, n) with atomic work
// stealing, which balances load when per-index cost varies (for example
// per-head attention with uneven cache behavior).
func (p *Pool) ParallelForAtomic(n int, fn func(i int)) {
	if n <= 0 {
		return
	}

	workers := min(p.numWorkers, n)
	if workers == 1 || p.closed.Load() {
		for i := range n {
			fn(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		p.work <- func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= n {
					return
				}
				fn(i)
			}
		}
	}
	wg.Wait()
}
