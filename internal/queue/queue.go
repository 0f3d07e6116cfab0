package queue

import (
	"context"
	"sync"

	"github.com/buildstream-go/core/internal/corectx"
	"github.com/buildstream-go/core/internal/graph"
)

// Eligibility is the result of a Queue's status() check (spec §4.7).
type Eligibility int

const (
	Wait Eligibility = iota
	Ready
	Skip
)

func (e Eligibility) String() string {
	switch e {
	case Wait:
		return "WAIT"
	case Ready:
		return "READY"
	case Skip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// StatusFunc decides an element's eligibility for this queue (spec §4.7
// status(element)), called at enqueue and again on state-change
// notifications.
type StatusFunc func(ctx context.Context, element *graph.Element) Eligibility

// DoneFunc is the queue's post-hook (spec §4.7 done(job, element, result,
// status)): it may adjust element state, enqueue the element into another
// queue (e.g. a missed or failed Pull sending it on to Build), or mark the
// element FAILED.
type DoneFunc func(ctx context.Context, j *Job, element *graph.Element, result Result)

// Queue is one stage of the Track -> Fetch -> Pull -> Build -> Push
// pipeline (spec §4.7): elements move from wait to ready to done as their
// status() result changes, driven by the Scheduler (C8).
type Queue struct {
	ActionName      string
	ResourcesNeeded []Resource
	MaxRetries      int

	process ProcessFunc
	status  StatusFunc
	done    DoneFunc

	mu    sync.Mutex
	wait  []*graph.Element
	ready []*graph.Element
	doneS map[*graph.Element]bool
}

// New returns an empty Queue for the given pipeline stage.
func New(actionName string, resources []Resource, maxRetries int, process ProcessFunc, status StatusFunc, done DoneFunc) *Queue {
	return &Queue{
		ActionName:      actionName,
		ResourcesNeeded: resources,
		MaxRetries:      maxRetries,
		process:         process,
		status:          status,
		done:            done,
		doneS:           make(map[*graph.Element]bool),
	}
}

// Enqueue admits element into the queue's wait or ready set according to
// its current status() (spec §4.7: "called at enqueue").
func (q *Queue) Enqueue(ctx context.Context, element *graph.Element) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.admitLocked(ctx, element)
}

func (q *Queue) admitLocked(ctx context.Context, element *graph.Element) {
	switch q.status(ctx, element) {
	case Ready:
		q.ready = append(q.ready, element)
	case Skip:
		q.doneS[element] = true
	default:
		q.wait = append(q.wait, element)
	}
}

// Recheck re-evaluates every element in the wait set, promoting any whose
// status() now reports READY or SKIP (spec §4.7: status is "called ...
// on state-change notifications"). The Scheduler calls this whenever any
// element's state changes.
func (q *Queue) Recheck(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var stillWaiting []*graph.Element
	for _, e := range q.wait {
		switch q.status(ctx, e) {
		case Ready:
			q.ready = append(q.ready, e)
		case Skip:
			q.doneS[e] = true
		default:
			stillWaiting = append(stillWaiting, e)
		}
	}
	q.wait = stillWaiting
}

// PopReady removes and returns up to n elements from the ready set, in
// their current (deepest-first, per the build plan ordering the caller
// populated the queue with) order. It returns fewer than n if the ready
// set is smaller.
func (q *Queue) PopReady(n int) []*graph.Element {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.ready) {
		n = len(q.ready)
	}
	out := q.ready[:n]
	q.ready = q.ready[n:]
	return out
}

// PeekReadyLen reports the size of the ready set without mutating it, so
// the scheduler can decide whether a proposal is worth attempting.
func (q *Queue) PeekReadyLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// IsEmpty reports whether the queue has no more work: nothing ready,
// nothing waiting. Used by the scheduler's success-termination check
// (spec §4.8: "success when all queues are empty for all targets").
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) == 0 && len(q.wait) == 0
}

// NewJob builds a Job for element, to be run by the scheduler once it has
// reserved ResourcesNeeded.
func (q *Queue) NewJob(element *graph.Element) *Job {
	return NewJob(q.ActionName, element, q.ResourcesNeeded, q.MaxRetries, q.process)
}

// Finish runs the queue's done() hook for a completed Job and marks the
// element done, regardless of outcome (spec §4.7 done semantics; §5
// ordering guarantee that "an element reaches queue N+1 only after queue
// N's done() has run for it").
func (q *Queue) Finish(ctx context.Context, j *Job, element *graph.Element, result Result) {
	corectx.GetLogger(ctx, "component", "queue", "action", q.ActionName, "element", element.Name).
		Infof("job finished: %s", result.Status)
	q.done(ctx, j, element, result)
	q.mu.Lock()
	q.doneS[element] = true
	q.mu.Unlock()
}

// Requeue re-admits element to this queue according to its current
// status(). The scheduler calls it to put back an element whose resources
// could not be reserved on this tick.
func (q *Queue) Requeue(ctx context.Context, element *graph.Element) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.doneS, element)
	q.admitLocked(ctx, element)
}
