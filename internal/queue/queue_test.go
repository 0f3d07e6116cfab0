package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/buildstream-go/core/internal/graph"
)

var errTransient = errors.New("transient failure")

func TestEnqueueRoutesByStatus(t *testing.T) {
	ctx := context.Background()
	var doneCalled []string

	q := New("Fetch", []Resource{ResourceDownload}, 0,
		func(ctx context.Context, e *graph.Element) (any, error) { return nil, nil },
		func(ctx context.Context, e *graph.Element) Eligibility {
			switch e.Name {
			case "ready-elem":
				return Ready
			case "skip-elem":
				return Skip
			default:
				return Wait
			}
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			doneCalled = append(doneCalled, e.Name)
		},
	)

	ready := graph.NewElement("ready-elem", "autotools", nil)
	skip := graph.NewElement("skip-elem", "autotools", nil)
	wait := graph.NewElement("wait-elem", "autotools", nil)

	q.Enqueue(ctx, ready)
	q.Enqueue(ctx, skip)
	q.Enqueue(ctx, wait)

	if got := q.PeekReadyLen(); got != 1 {
		t.Fatalf("expected 1 ready element, got %d", got)
	}
	if q.IsEmpty() {
		t.Fatal("expected queue to be non-empty (wait set still populated)")
	}

	popped := q.PopReady(10)
	if len(popped) != 1 || popped[0].Name != "ready-elem" {
		t.Fatalf("unexpected PopReady result: %v", popped)
	}
}

func TestRecheckPromotesWaitingElements(t *testing.T) {
	ctx := context.Background()
	eligible := false

	q := New("Build", []Resource{ResourceProcess}, 0,
		func(ctx context.Context, e *graph.Element) (any, error) { return nil, nil },
		func(ctx context.Context, e *graph.Element) Eligibility {
			if eligible {
				return Ready
			}
			return Wait
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {},
	)

	elem := graph.NewElement("hello.bst", "autotools", nil)
	q.Enqueue(ctx, elem)
	if q.PeekReadyLen() != 0 {
		t.Fatal("expected element to start in wait set")
	}

	eligible = true
	q.Recheck(ctx)
	if q.PeekReadyLen() != 1 {
		t.Fatal("expected Recheck to promote the element to ready")
	}
}

func TestFinishMarksElementDoneAndInvokesHook(t *testing.T) {
	ctx := context.Background()
	var gotResult Result

	q := New("Push", []Resource{ResourceUpload}, 0,
		func(ctx context.Context, e *graph.Element) (any, error) { return nil, nil },
		func(ctx context.Context, e *graph.Element) Eligibility { return Ready },
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			gotResult = result
		},
	)

	elem := graph.NewElement("hello.bst", "autotools", nil)
	q.Enqueue(ctx, elem)
	job := q.NewJob(elem)
	result := job.Run(ctx)
	q.Finish(ctx, job, elem, result)

	if gotResult.Status != OK {
		t.Fatalf("expected OK, got %v", gotResult.Status)
	}
	if !q.doneS[elem] {
		t.Fatal("expected Finish to mark the element done")
	}
}

func TestJobRunRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	job := NewJob("Fetch", graph.NewElement("x.bst", "autotools", nil), []Resource{ResourceDownload}, 2,
		func(ctx context.Context, e *graph.Element) (any, error) {
			attempts++
			if attempts < 3 {
				return nil, errTransient
			}
			return "ok", nil
		},
	)
	result := job.Run(context.Background())
	if result.Status != OK {
		t.Fatalf("expected OK after retries, got %v (err=%v)", result.Status, result.Err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestJobCancelBeforeRun(t *testing.T) {
	job := NewJob("Build", graph.NewElement("x.bst", "autotools", nil), []Resource{ResourceProcess}, 0,
		func(ctx context.Context, e *graph.Element) (any, error) { return nil, nil },
	)
	job.Cancel()
	result := job.Run(context.Background())
	if result.Status != Cancelled {
		t.Fatalf("expected Cancelled, got %v", result.Status)
	}
}
