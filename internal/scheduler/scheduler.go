// Package scheduler implements the Scheduler & Resources component
// (spec §4.8): a single dispatch loop that reserves resources for
// ready jobs across the Queue pipeline (C7), all-or-nothing, and runs
// them until the pipeline drains, an element fails, or the caller
// cancels.
//
// Grounded on buildstream's own `_scheduler.py` for the tick/dispatch
// shape (original_source/), and on the teacher's
// `registry/storage/garbagecollect.go` for using a bounded concurrent
// fan-out (here: per-resource semaphores from `golang.org/x/sync`
// rather than a single errgroup) to cap in-flight work.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildstream-go/core/internal/corectx"
	"github.com/buildstream-go/core/internal/graph"
	"github.com/buildstream-go/core/internal/queue"
)

// Outcome is the dispatch loop's terminal result (spec §4.8).
type Outcome int

const (
	Success Outcome = iota
	Failure
	Terminated
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Limits configures the per-resource concurrency caps the scheduler
// enforces (spec §5): PROCESS/DOWNLOAD/UPLOAD bounded by configured
// parallelism, CACHE always exclusive (weight 1, not configurable).
type Limits struct {
	Process  int64
	Download int64
	Upload   int64
}

// Scheduler runs the dispatch loop described in spec §4.8 over a
// queue.Pipeline's stages.
type Scheduler struct {
	pipeline  *queue.Pipeline
	pool      *resourcePool
	metrics   *jobMetrics
	keepGoing bool
}

// New returns a Scheduler bounding concurrency per Limits and driving
// pipeline. keepGoing matches spec §4.8's termination rule: if false, the
// first FAILED element stops the loop with Outcome Failure; if true, the
// loop keeps advancing every other element and only reports Failure once
// nothing else can progress.
func New(pipeline *queue.Pipeline, limits Limits, keepGoing bool) *Scheduler {
	pool := newResourcePool(map[queue.Resource]int64{
		queue.ResourceProcess:  limits.Process,
		queue.ResourceDownload: limits.Download,
		queue.ResourceUpload:   limits.Upload,
		queue.ResourceCache:    1, // exclusive, spec §4.8
	})
	return &Scheduler{pipeline: pipeline, pool: pool, metrics: newJobMetrics(), keepGoing: keepGoing}
}

// wake is buffered 1: any number of completions between two loop ticks
// coalesce into a single wake rather than blocking the sender (spec §4.8:
// "released resources wake the loop").
type dispatcher struct {
	s        *Scheduler
	wake     chan struct{}
	failed   atomic.Bool
	active   atomic.Int64
	inFlight sync.WaitGroup
}

// Run drives the dispatch loop to completion (spec §4.8). It returns
// Success once every stage's IsEmpty() is true, Failure as soon as an
// element reaches FAILED and keepGoing is false (after draining in-flight
// jobs), and Terminated if ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) (Outcome, error) {
	d := &dispatcher{s: s, wake: make(chan struct{}, 1)}
	logger := corectx.GetLogger(ctx, "component", "scheduler")

	for {
		if ctx.Err() != nil {
			d.inFlight.Wait()
			return Terminated, ctx.Err()
		}
		if d.failed.Load() && !s.keepGoing {
			d.inFlight.Wait()
			return Failure, nil
		}

		started := d.dispatchTick(ctx)

		if d.active.Load() == 0 && s.allEmpty() {
			d.inFlight.Wait()
			if d.failed.Load() {
				return Failure, nil
			}
			return Success, nil
		}

		if started == 0 && d.active.Load() == 0 && d.failed.Load() && d.dispatchTick(ctx) == 0 {
			// No job is running and none can start: nothing else can progress.
			d.inFlight.Wait()
			return Failure, nil
		}
		if started == 0 {
			select {
			case <-ctx.Done():
				d.inFlight.Wait()
				return Terminated, ctx.Err()
			case <-d.wake:
			}
		}
		logger.Debugf("dispatch tick: %d jobs started", started)
	}
}

// dispatchTick asks each stage for ready work in pipeline order and
// starts every job whose resources can be reserved immediately (spec
// §4.8: "a queue proposes jobs from its ready set; before start, the
// scheduler attempts to reserve every resource the queue declares").
// Within one queue, jobs are proposed in ready-set order, which Enqueue
// populated from the build plan's deepest-first ordering (spec §5).
func (d *dispatcher) dispatchTick(ctx context.Context) int {
	started := 0
	for _, q := range d.s.pipeline.Stages() {
		n := q.PeekReadyLen()
		for i := 0; i < n; i++ {
			elems := q.PopReady(1)
			if len(elems) == 0 {
				break
			}
			elem := elems[0]
			release, ok := d.s.pool.TryReserve(q.ResourcesNeeded)
			if !ok {
				q.Requeue(ctx, elem) // put it back; try again next tick
				continue
			}
			d.s.metrics.observeReserve(q.ResourcesNeeded)
			started++
			d.runJob(ctx, q, elem, release)
		}
	}
	return started
}

func (d *dispatcher) runJob(ctx context.Context, q *queue.Queue, elem *graph.Element, release func()) {
	job := q.NewJob(elem)
	d.active.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()

		start := time.Now()
		result := job.Run(ctx)
		release()
		d.s.metrics.observeRelease(q.ResourcesNeeded)
		d.s.metrics.observeDone(q.ActionName, result.Status.String(), start)

		q.Finish(ctx, job, elem, result)
		if result.Status == queue.Fail && elem.State == graph.Failed {
			d.failed.Store(true)
		}
		for _, stage := range d.s.pipeline.Stages() {
			stage.Recheck(ctx)
		}

		d.active.Add(-1)
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}()
}

// allEmpty reports whether every pipeline stage has drained (spec §4.8:
// "success when all queues are empty for all targets").
func (s *Scheduler) allEmpty() bool {
	for _, q := range s.pipeline.Stages() {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}
