package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/buildstream-go/core/internal/graph"
	"github.com/buildstream-go/core/internal/queue"
)

func TestResourcePoolAllOrNothing(t *testing.T) {
	pool := newResourcePool(map[queue.Resource]int64{
		queue.ResourceProcess: 1,
		queue.ResourceCache:   1,
	})

	releaseA, ok := pool.TryReserve([]queue.Resource{queue.ResourceProcess, queue.ResourceCache})
	if !ok {
		t.Fatal("expected first reservation to succeed")
	}

	_, ok = pool.TryReserve([]queue.Resource{queue.ResourceProcess})
	if ok {
		t.Fatal("expected second reservation to fail: PROCESS already held")
	}

	releaseA()

	_, ok = pool.TryReserve([]queue.Resource{queue.ResourceProcess, queue.ResourceCache})
	if !ok {
		t.Fatal("expected reservation to succeed after release")
	}
}

func TestResourcePoolPartialFailureReleasesAcquired(t *testing.T) {
	pool := newResourcePool(map[queue.Resource]int64{
		queue.ResourceDownload: 1,
		queue.ResourceUpload:   0,
	})

	_, ok := pool.TryReserve([]queue.Resource{queue.ResourceDownload, queue.ResourceUpload})
	if ok {
		t.Fatal("expected reservation to fail: UPLOAD has zero capacity")
	}

	// DOWNLOAD must have been released when UPLOAD failed, so a second,
	// DOWNLOAD-only reservation should still succeed.
	release, ok := pool.TryReserve([]queue.Resource{queue.ResourceDownload})
	if !ok {
		t.Fatal("expected DOWNLOAD-only reservation to succeed: the failed attempt must not have leaked its ticket")
	}
	release()
}

func TestSchedulerRunsSingleStagePipelineToSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	processed := make(chan string, 2)
	q := queue.New("Fetch", []queue.Resource{queue.ResourceDownload}, 0,
		func(ctx context.Context, e *graph.Element) (any, error) {
			processed <- e.Name
			e.MarkFetched()
			return nil, nil
		},
		func(ctx context.Context, e *graph.Element) queue.Eligibility {
			if e.State == graph.Fetched {
				return queue.Skip
			}
			if e.State == graph.Resolved {
				return queue.Ready
			}
			return queue.Wait
		},
		func(ctx context.Context, j *queue.Job, e *graph.Element, result queue.Result) {},
	)

	pipeline := &queue.Pipeline{Track: queue.New("noop", nil, 0,
		func(ctx context.Context, e *graph.Element) (any, error) { return nil, nil },
		func(ctx context.Context, e *graph.Element) queue.Eligibility { return queue.Skip },
		func(ctx context.Context, j *queue.Job, e *graph.Element, result queue.Result) {},
	), Fetch: q, Pull: emptyQueue(), Build: emptyQueue(), Push: emptyQueue()}

	a := graph.NewElement("a.bst", "autotools", nil)
	a.Resolve()
	q.Enqueue(ctx, a)

	s := New(pipeline, Limits{Process: 1, Download: 1, Upload: 1}, false)
	outcome, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != Success {
		t.Fatalf("expected Success, got %v", outcome)
	}
	select {
	case name := <-processed:
		if name != "a.bst" {
			t.Fatalf("expected a.bst to be processed, got %s", name)
		}
	default:
		t.Fatal("expected element to have been processed")
	}
}

func emptyQueue() *queue.Queue {
	return queue.New("noop", nil, 0,
		func(ctx context.Context, e *graph.Element) (any, error) { return nil, nil },
		func(ctx context.Context, e *graph.Element) queue.Eligibility { return queue.Skip },
		func(ctx context.Context, j *queue.Job, e *graph.Element, result queue.Result) {},
	)
}
