package scheduler

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/buildstream-go/core/internal/queue"
)

// resourcePool holds one weighted semaphore per Resource kind (spec §4.8:
// PROCESS/DOWNLOAD/UPLOAD bounded by configured parallelism, CACHE
// exclusive). Reservation across the set declared by a queue is
// all-or-nothing (spec §4.8): TryReserve acquires every ticket or none.
type resourcePool struct {
	sems map[queue.Resource]*semaphore.Weighted
}

func newResourcePool(limits map[queue.Resource]int64) *resourcePool {
	p := &resourcePool{sems: make(map[queue.Resource]*semaphore.Weighted, len(limits))}
	for r, n := range limits {
		p.sems[r] = semaphore.NewWeighted(n)
	}
	return p
}

// TryReserve attempts to acquire one ticket from every resource in
// needed. On any failure it releases whatever it already acquired and
// returns ok=false — the scheduler holds the proposal for a later tick
// (spec §4.8: "if any is unavailable the proposal is held").
func (p *resourcePool) TryReserve(needed []queue.Resource) (release func(), ok bool) {
	acquired := make([]queue.Resource, 0, len(needed))
	for _, r := range needed {
		sem, known := p.sems[r]
		if !known {
			continue // unconfigured resource: treat as unbounded
		}
		if !sem.TryAcquire(1) {
			for _, done := range acquired {
				p.sems[done].Release(1)
			}
			return nil, false
		}
		acquired = append(acquired, r)
	}
	return func() {
		for _, r := range acquired {
			p.sems[r].Release(1)
		}
	}, true
}

// Acquire blocks until every resource in needed is available, used by
// callers that must not fail a reservation (none currently — the
// dispatch loop always uses TryReserve — but kept for completeness and
// for tests that want deterministic blocking behavior).
func (p *resourcePool) Acquire(ctx context.Context, needed []queue.Resource) (release func(), err error) {
	acquired := make([]queue.Resource, 0, len(needed))
	for _, r := range needed {
		sem, known := p.sems[r]
		if !known {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			for _, done := range acquired {
				p.sems[done].Release(1)
			}
			return nil, err
		}
		acquired = append(acquired, r)
	}
	return func() {
		for _, r := range acquired {
			p.sems[r].Release(1)
		}
	}, nil
}
