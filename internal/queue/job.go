package queue

import (
	"context"
	"sync"

	"github.com/buildstream-go/core/internal/graph"
)

// Resource is one of the counted capabilities of spec §4.8/§5 that the
// scheduler reserves before starting a Job.
type Resource int

const (
	ResourceProcess Resource = iota
	ResourceDownload
	ResourceUpload
	ResourceCache
)

func (r Resource) String() string {
	switch r {
	case ResourceProcess:
		return "PROCESS"
	case ResourceDownload:
		return "DOWNLOAD"
	case ResourceUpload:
		return "UPLOAD"
	case ResourceCache:
		return "CACHE"
	default:
		return "UNKNOWN"
	}
}

// JobStatus is a Job's lifecycle position (spec §3).
type JobStatus int

const (
	Pending JobStatus = iota
	Running
	OK
	Skipped
	Fail
	Cancelled
)

func (s JobStatus) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Running:
		return "RUNNING"
	case OK:
		return "OK"
	case Skipped:
		return "SKIPPED"
	case Fail:
		return "FAIL"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ProcessFunc performs one Job's unit of work (spec §4.7 process(element)).
type ProcessFunc func(ctx context.Context, element *graph.Element) (any, error)

// Result is a completed Job's outcome (spec §3): success/failure, the
// value process returned (handed to the queue's done()), and the final
// status.
type Result struct {
	Status JobStatus
	Value  any
	Err    error
}

// Job wraps one process() call with retry and cancellation (spec §4.7).
// Network queues default MaxRetries > 0; others default to 0 (spec §4.7).
type Job struct {
	ActionName      string
	Element         *graph.Element
	ResourcesNeeded []Resource
	MaxRetries      int

	process ProcessFunc

	mu               sync.Mutex
	retriesRemaining int
	status           JobStatus
	cancelFn         context.CancelFunc
}

// NewJob returns a Pending Job.
func NewJob(actionName string, element *graph.Element, resources []Resource, maxRetries int, process ProcessFunc) *Job {
	return &Job{
		ActionName:       actionName,
		Element:          element,
		ResourcesNeeded:  resources,
		MaxRetries:       maxRetries,
		process:          process,
		retriesRemaining: maxRetries,
		status:           Pending,
	}
}

// Status returns the Job's current status.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Cancel signals a running Job (via the context passed to Run) or, if
// called before Run, prevents it from ever starting (spec §4.7: "a job
// may be cancelled pre-start... or during run").
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == Pending {
		j.status = Cancelled
	}
	if j.cancelFn != nil {
		j.cancelFn()
	}
}

// Run executes process, retrying on error up to MaxRetries times. It
// returns Cancelled immediately if the job was cancelled before starting,
// and stops retrying (returning Cancelled) if ctx is done mid-retry.
func (j *Job) Run(ctx context.Context) Result {
	j.mu.Lock()
	if j.status == Cancelled {
		j.mu.Unlock()
		return Result{Status: Cancelled}
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancelFn = cancel
	j.status = Running
	j.mu.Unlock()
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= j.MaxRetries; attempt++ {
		if runCtx.Err() != nil {
			j.setStatus(Cancelled)
			return Result{Status: Cancelled, Err: runCtx.Err()}
		}
		value, err := j.process(runCtx, j.Element)
		if err == nil {
			j.setStatus(OK)
			return Result{Status: OK, Value: value}
		}
		lastErr = err
		j.mu.Lock()
		j.retriesRemaining--
		j.mu.Unlock()
	}
	j.setStatus(Fail)
	return Result{Status: Fail, Err: lastErr}
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}
