package artifact

import (
	"context"
	"errors"
	"time"

	"github.com/buildstream-go/core/internal/cas"
	"github.com/buildstream-go/core/internal/corectx"
	"github.com/buildstream-go/core/internal/directory"
)

const (
	maxUnavailableRetries = 3
	retryBackoff          = 200 * time.Millisecond
)

// Push uploads the blob graph for the artifact at ref, then the artifact
// proto itself, to every configured remote with push enabled (spec §4.4
// push protocol). It returns whether any remote was actually updated.
func (c *Cache) Push(ctx context.Context, ref Ref) (bool, error) {
	dg, err := c.store.ReadRef(string(ref))
	if err != nil {
		return false, err
	}
	a, err := Load(c.store, dg)
	if err != nil {
		return false, err
	}

	digests, err := directory.Closure(c.store, a.FilesDigest)
	if err != nil {
		return false, err
	}
	if a.BuildtreeDigest != nil {
		more, err := directory.Closure(c.store, *a.BuildtreeDigest)
		if err != nil {
			return false, err
		}
		digests = append(digests, more...)
	}
	if a.SourcesDigest != nil {
		more, err := directory.Closure(c.store, *a.SourcesDigest)
		if err != nil {
			return false, err
		}
		digests = append(digests, more...)
	}
	digests = append(digests, a.Logs...)

	urn := ref.URN()
	updated := false

	for _, remote := range c.remotes {
		if !remote.PushEnabled() {
			continue
		}
		ok, err := c.pushToRemote(ctx, remote, digests, dg, urn)
		if err != nil {
			var re *RemoteError
			if errors.As(err, &re) && re.Kind == CacheTooFull {
				// "remote full" on push is never fatal (spec §4.4 failure model).
				corectx.GetLogger(ctx, "component", "artifact", "remote", remote.Name()).Warnf("remote cache full, skipping: %v", err)
				continue
			}
			return updated, err
		}
		updated = updated || ok
	}
	return updated, nil
}

func (c *Cache) pushToRemote(ctx context.Context, remote Remote, digests []cas.Digest, artifactDg cas.Digest, urn string) (bool, error) {
	for _, dg := range digests {
		if err := c.putBlobWithRetry(ctx, remote, dg); err != nil {
			return false, err
		}
	}
	if err := c.putBlobWithRetry(ctx, remote, artifactDg); err != nil {
		return false, err
	}

	existing, ok, err := remote.HasURN(ctx, urn)
	if err != nil {
		return false, err
	}
	if ok && existing.Equal(artifactDg) {
		return false, nil // already up to date, nothing pushed
	}
	if err := remote.PutURN(ctx, urn, artifactDg); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) putBlobWithRetry(ctx context.Context, remote Remote, dg cas.Digest) error {
	has, err := remote.HasBlob(ctx, dg)
	if err != nil {
		err = classifyRetry(ctx, remote, err, func() (bool, error) {
			var herr error
			has, herr = remote.HasBlob(ctx, dg)
			return has, herr
		})
		if err != nil {
			return err
		}
	}
	if has {
		return nil
	}
	content, err := c.store.Get(dg)
	if err != nil {
		return err
	}
	putErr := remote.PutBlob(ctx, dg, content)
	if putErr == nil {
		return nil
	}
	return classifyRetry(ctx, remote, putErr, func() (bool, error) { return true, remote.PutBlob(ctx, dg, content) })
}

// classifyRetry retries op up to maxUnavailableRetries times, waiting
// retryBackoff × attempt before each retry, when firstErr classifies as
// UNAVAILABLE (spec §4.4 failure model); any other kind is returned
// immediately.
func classifyRetry(ctx context.Context, remote Remote, firstErr error, op func() (bool, error)) error {
	var re *RemoteError
	if !errors.As(firstErr, &re) || re.Kind != Unavailable {
		return firstErr
	}
	for attempt := 1; attempt <= maxUnavailableRetries; attempt++ {
		corectx.GetLogger(ctx, "component", "artifact", "remote", remote.Name()).
			Warnf("remote unavailable, retry %d/%d", attempt, maxUnavailableRetries)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
		_, err := op()
		if err == nil {
			return nil
		}
		if !errors.As(err, &re) || re.Kind != Unavailable {
			return err
		}
	}
	return firstErr
}

// Pull fetches the artifact proto for ref from the first remote that has
// it, then its referenced directories and blobs (spec §4.4 pull
// protocol). pullBuildtrees controls whether the buildtree digest (if
// any) is also fetched — a caller-supplied policy toggle per spec §9's
// open question.
func (c *Cache) Pull(ctx context.Context, ref Ref, pullBuildtrees bool) (bool, error) {
	urn := ref.URN()

	for _, remote := range c.remotes {
		if !remote.PullEnabled() {
			continue
		}
		dg, ok, err := remote.HasURN(ctx, urn)
		if err != nil {
			var re *RemoteError
			if errors.As(err, &re) && re.Kind == NotFound {
				continue
			}
			return false, err
		}
		if !ok {
			continue
		}

		if err := c.pullArtifact(ctx, remote, dg, pullBuildtrees); err != nil {
			var re *RemoteError
			if errors.As(err, &re) && re.Kind == NotFound {
				continue // blob missing mid-pull: try the next remote (spec §4.4 step 3)
			}
			return false, err
		}
		if err := c.store.WriteRef(string(ref), dg); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (c *Cache) pullArtifact(ctx context.Context, remote Remote, dg cas.Digest, pullBuildtrees bool) error {
	if err := c.fetchBlob(ctx, remote, dg); err != nil {
		return err
	}
	a, err := Load(c.store, dg)
	if err != nil {
		return err
	}
	if err := c.fetchClosure(ctx, remote, a.FilesDigest); err != nil {
		return err
	}
	if pullBuildtrees && a.BuildtreeDigest != nil {
		if err := c.fetchClosure(ctx, remote, *a.BuildtreeDigest); err != nil {
			return err
		}
	}
	if a.SourcesDigest != nil {
		if err := c.fetchClosure(ctx, remote, *a.SourcesDigest); err != nil {
			return err
		}
	}
	for _, logDg := range a.Logs {
		if err := c.fetchBlob(ctx, remote, logDg); err != nil {
			return err
		}
	}
	return nil
}

// fetchClosure recursively fetches a directory blob and everything it
// transitively references. It fetches the root first (rather than
// calling directory.Closure, which requires the blob to already be
// local) so a partially-present tree still makes forward progress.
func (c *Cache) fetchClosure(ctx context.Context, remote Remote, root cas.Digest) error {
	if err := c.fetchBlob(ctx, remote, root); err != nil {
		return err
	}
	digests, err := directory.Closure(c.store, root)
	if err != nil {
		return err
	}
	for _, dg := range digests {
		if err := c.fetchBlob(ctx, remote, dg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) fetchBlob(ctx context.Context, remote Remote, dg cas.Digest) error {
	if c.store.Has(dg) {
		return nil
	}
	content, err := remote.GetBlob(ctx, dg)
	if err != nil {
		return classifyRetry(ctx, remote, err, func() (bool, error) {
			content, err = remote.GetBlob(ctx, dg)
			return true, err
		})
	}
	_, err = c.store.PutBytes(content)
	return err
}

// CheckRemotesForElement performs an index-only query across remotes for
// ref's URN, without fetching any blob (spec's supplemented feature,
// `_artifactcache.py:check_remotes_for_element`) — used by the Pull
// queue's status() to decide READY vs WAIT cheaply.
func (c *Cache) CheckRemotesForElement(ctx context.Context, ref Ref) (bool, error) {
	urn := ref.URN()
	for _, remote := range c.remotes {
		if !remote.PullEnabled() {
			continue
		}
		_, ok, err := remote.HasURN(ctx, urn)
		if err != nil {
			var re *RemoteError
			if errors.As(err, &re) && re.Kind == NotFound {
				continue
			}
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
