package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/buildstream-go/core/internal/cas"
	"github.com/buildstream-go/core/internal/corectx"
	"github.com/buildstream-go/core/internal/directory"
)

// Sweep removes every blob in the Object Store not transitively
// reachable from a live ref — the second half of spec §4.4's "eviction
// touches refs; once orphaned, blobs are removed on a subsequent sweep".
// The mark phase walks each ref's closure concurrently, grounded on the
// teacher's registry/storage/garbagecollect.go use of
// golang.org/x/sync/errgroup for its own concurrent mark phase.
func (c *Cache) Sweep(ctx context.Context) (removed int, err error) {
	refs, err := c.store.ListRefs(ctx)
	if err != nil {
		return 0, err
	}

	live := make(map[cas.Digest]bool)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range refs {
		name := e.Name
		g.Go(func() error {
			dg, err := c.store.ReadRef(name)
			if err != nil {
				return nil // ref vanished concurrently; not this sweep's problem
			}
			digests, err := markArtifactClosure(gctx, c.store, dg)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, d := range digests {
				live[d] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	objectsRoot := filepath.Join(c.store.Root(), "objects")
	err = filepath.Walk(objectsRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		hex := filepath.Base(filepath.Dir(p)) + filepath.Base(p)
		dg, perr := cas.ParseDigest("sha256:" + hex)
		if perr != nil {
			return nil
		}
		d := cas.Digest{Hash: dg, Size: info.Size()}
		if live[d] {
			return nil
		}
		if rmErr := os.Remove(p); rmErr != nil {
			return rmErr
		}
		removed++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return removed, err
	}
	corectx.GetLogger(ctx, "component", "artifact").Infof("gc sweep removed %d orphaned blobs", removed)
	return removed, nil
}

func markArtifactClosure(ctx context.Context, store *cas.Store, artifactDg cas.Digest) ([]cas.Digest, error) {
	out := []cas.Digest{artifactDg}
	a, err := Load(store, artifactDg)
	if err != nil {
		return nil, err
	}
	digests, err := directory.Closure(store, a.FilesDigest)
	if err != nil {
		return nil, err
	}
	out = append(out, digests...)
	if a.BuildtreeDigest != nil {
		more, err := directory.Closure(store, *a.BuildtreeDigest)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	if a.SourcesDigest != nil {
		more, err := directory.Closure(store, *a.SourcesDigest)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}
	if a.PublicDataDigest != nil {
		out = append(out, *a.PublicDataDigest)
	}
	out = append(out, a.Logs...)
	return out, nil
}
