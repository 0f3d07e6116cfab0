package queue

import (
	"context"

	"github.com/buildstream-go/core/internal/artifact"
	"github.com/buildstream-go/core/internal/corectx"
	"github.com/buildstream-go/core/internal/graph"
)

// Pipeline holds the standard Track -> Fetch -> Pull -> Build -> Push
// stages in order (spec §4.7). BuildPlan targets are Enqueue'd into
// Track; the Scheduler drains each stage and advances elements to the
// next stage's Enqueue once the current stage's done() has run.
type Pipeline struct {
	Track *Queue
	Fetch *Queue
	Pull  *Queue
	Build *Queue
	Push  *Queue
}

// Stages returns the pipeline's queues in pipeline order, for callers
// (the scheduler) that need to iterate all of them uniformly.
func (p *Pipeline) Stages() []*Queue {
	return []*Queue{p.Track, p.Fetch, p.Pull, p.Build, p.Push}
}

// SourceFetcher resolves and downloads an element's sources, e.g. a VCS
// checkout or tarball fetch. It is supplied by the caller (cmd/bst) since
// source-kind-specific fetch logic is outside this package's scope.
type SourceFetcher func(ctx context.Context, element *graph.Element) error

// NewPipeline builds the standard five-stage pipeline wired against cache
// for artifact pull/push and fetchSources for downloading element
// sources. Each stage's done() enqueues a successfully processed element
// into the next stage; a Pull that misses or fails also sends the
// element on to Build, since Fetch has already run for it.
func NewPipeline(project string, cache *artifact.Cache, fetchSources SourceFetcher, networkRetries int) *Pipeline {
	p := &Pipeline{}
	ref := func(e *graph.Element) artifact.Ref { return artifact.NewRef(project, e.Name, e.StrongKey) }

	p.Track = New("Track", []Resource{ResourceDownload}, networkRetries,
		func(ctx context.Context, e *graph.Element) (any, error) {
			return nil, nil // tracking (ref resolution) happens in status(); process is a no-op once resolved
		},
		func(ctx context.Context, e *graph.Element) Eligibility {
			if e.State == graph.Inconsistent {
				e.Resolve()
			}
			return Ready
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			p.Fetch.Enqueue(ctx, e)
		},
	)

	p.Fetch = New("Fetch", []Resource{ResourceDownload}, networkRetries,
		func(ctx context.Context, e *graph.Element) (any, error) {
			if e.State == graph.Fetched {
				return nil, nil
			}
			if err := fetchSources(ctx, e); err != nil {
				return nil, err
			}
			e.MarkFetched()
			return nil, nil
		},
		func(ctx context.Context, e *graph.Element) Eligibility {
			if e.State == graph.Fetched || e.State == graph.Buildable || e.State == graph.Cached {
				return Skip
			}
			if e.State == graph.Resolved {
				return Ready
			}
			return Wait
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			if result.Status == Fail {
				e.MarkFailed()
				return
			}
			p.Pull.Enqueue(ctx, e)
		},
	)

	p.Pull = New("Pull", []Resource{ResourceDownload}, networkRetries,
		func(ctx context.Context, e *graph.Element) (any, error) {
			ok, err := cache.Pull(ctx, ref(e), false)
			if err != nil {
				return nil, err
			}
			return ok, nil
		},
		func(ctx context.Context, e *graph.Element) Eligibility {
			if e.State == graph.Cached {
				return Skip
			}
			if e.State != graph.Fetched && e.State != graph.Buildable {
				return Wait
			}
			if e.StrongKey == "" {
				return Skip // no cache key yet: nothing to pull against
			}
			has, err := cache.CheckRemotesForElement(ctx, ref(e))
			if err != nil || !has {
				return Skip // spec §4.7: "Pull skipping to Build if pull misses"
			}
			return Ready
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			if result.Status == OK {
				if pulled, _ := result.Value.(bool); pulled {
					e.MarkCached(e.StrongKey)
					return
				}
			}
			// A pull failure or a clean miss both fall through to Build; the
			// element is not re-queued into Fetch, which already ran for it.
			p.Build.Enqueue(ctx, e)
		},
	)

	p.Build = New("Build", []Resource{ResourceProcess, ResourceCache}, 0,
		func(ctx context.Context, e *graph.Element) (any, error) {
			return nil, nil // no-op: NewPipeline takes no build function, so nothing is compiled or committed here
		},
		func(ctx context.Context, e *graph.Element) Eligibility {
			if e.State == graph.Cached {
				return Skip // spec §4.7: "Build skipped if the artifact was pulled"
			}
			if e.RefreshBuildable() {
				return Ready
			}
			return Wait
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			if result.Status != OK {
				e.MarkFailed() // spec §4.8 done(): "Build failure -> mark element FAILED"
				return
			}
			e.MarkCached(e.StrongKey)
			p.Push.Enqueue(ctx, e)
		},
	)

	p.Push = New("Push", []Resource{ResourceUpload}, networkRetries,
		func(ctx context.Context, e *graph.Element) (any, error) {
			return cache.Push(ctx, ref(e))
		},
		func(ctx context.Context, e *graph.Element) Eligibility {
			if e.State != graph.Cached {
				return Wait
			}
			return Ready
		},
		func(ctx context.Context, j *Job, e *graph.Element, result Result) {
			// Push failure -> warn and continue (spec §4.8 done(): "pushing is never fatal").
			if result.Status != OK {
				corectx.GetLogger(ctx, "element", e.Name, "job", j.ActionName).Warnf("push failed: %v", result.Err)
			}
		},
	)

	return p
}
