// Package workerpool implements the worker-selection policy shared by every
// listener: strict round-robin in declaration order at accept time, and
// uniform-random-excluding-one on retry after a connect failure.
package workerpool

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/nabbar/tcplb/config"
)

// Pool is the immutable, ordered set of workers configured for one mapping,
// paired with a lock-free round-robin cursor.
type Pool struct {
	workers []config.Worker
	cursor  atomic.Uint64
}

// New returns a Pool over the given workers in declaration order. workers
// must contain at least one entry; this is enforced by config.Load before a
// Mapping ever reaches a listener.
func New(workers []config.Worker) *Pool {
	cp := make([]config.Worker, len(workers))
	copy(cp, workers)

	return &Pool{workers: cp}
}

// Len returns the number of configured workers.
func (p *Pool) Len() int {
	return len(p.workers)
}

// Cursor returns the current round-robin counter value, for diagnostics.
func (p *Pool) Cursor() uint64 {
	return p.cursor.Load()
}

// Next returns the next worker in round-robin order. Safe for concurrent use
// by multiple accept-path callers.
func (p *Pool) Next() config.Worker {
	i := p.cursor.Add(1) - 1
	return p.workers[int(i%uint64(len(p.workers)))]
}

// Alternate returns a worker chosen uniformly at random from the pool,
// excluding failed. If the pool has only one worker, that worker is
// returned again (the original implementation re-dispatches to the same,
// still-configured, worker rather than stalling the retry).
func (p *Pool) Alternate(failed config.Worker) config.Worker {
	if len(p.workers) <= 1 {
		return p.workers[0]
	}

	candidates := make([]config.Worker, 0, len(p.workers)-1)
	for _, w := range p.workers {
		if w == failed {
			continue
		}
		candidates = append(candidates, w)
	}

	if len(candidates) < 1 {
		return failed
	}

	return candidates[rand.IntN(len(candidates))]
}
