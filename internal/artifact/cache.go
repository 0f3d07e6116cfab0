package artifact

import (
	"context"
	"os"
	"path/filepath"

	"github.com/buildstream-go/core/internal/cas"
	"github.com/buildstream-go/core/internal/corectx"
	"github.com/buildstream-go/core/internal/directory"
)

// Cache is the Artifact Cache (C4): named refs over the shared Object
// Store, plus a set of configured Remotes for push/pull.
type Cache struct {
	store    *cas.Store
	remotes  []Remote
	quota    int64
	lowWater int64 // eviction target; defaults to quota/2 per spec §4.4
}

// New returns a Cache backed by store, configured with quotaBytes (0
// disables quota enforcement) and the given remotes.
func New(store *cas.Store, quotaBytes int64, remotes ...Remote) *Cache {
	low := quotaBytes / 2
	return &Cache{store: store, remotes: remotes, quota: quotaBytes, lowWater: low}
}

// Store returns the underlying Object Store, for callers (e.g. cmd/bst)
// that need to commit blobs directly before calling Commit.
func (c *Cache) Store() *cas.Store { return c.store }

// Contains reports whether ref names a reachable artifact (spec §4.4
// contains).
func (c *Cache) Contains(ref Ref) bool {
	return c.store.HasRef(string(ref))
}

// Commit builds an Artifact record from the given components, stores it,
// and writes the ref (spec §4.4 commit).
func (c *Cache) Commit(ref Ref, strongKey, weakKey string, files cas.Digest, buildtree, sources, publicData *cas.Digest, logs []cas.Digest) (cas.Digest, error) {
	a := &Artifact{
		StrongKey:        strongKey,
		WeakKey:          weakKey,
		FilesDigest:      files,
		BuildtreeDigest:  buildtree,
		SourcesDigest:    sources,
		PublicDataDigest: publicData,
		Logs:             logs,
	}
	dg, err := Store(c.store, a)
	if err != nil {
		return cas.Digest{}, err
	}
	if err := c.store.WriteRef(string(ref), dg); err != nil {
		return cas.Digest{}, err
	}
	return dg, nil
}

// ListArtifacts iterates refs in LRU order (oldest mtime first), spec
// §4.4 list_artifacts. glob, if non-empty, is matched against the ref
// name with filepath.Match semantics.
func (c *Cache) ListArtifacts(ctx context.Context, glob string) ([]Ref, error) {
	entries, err := c.store.ListRefs(ctx)
	if err != nil {
		return nil, err
	}
	var out []Ref
	for _, e := range entries {
		if glob != "" {
			ok, err := filepath.Match(glob, e.Name)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, Ref(e.Name))
	}
	return out, nil
}

// Remove deletes ref without touching any blob it references (spec §4.4:
// GC handles blob removal separately).
func (c *Cache) Remove(ref Ref) error {
	return c.store.RemoveRef(string(ref))
}

// LinkKey adds an alias ref pointing at the same artifact digest as an
// existing ref under a new key — used when a weak-key hit retroactively
// gains a strong key (spec §4.4 link_key).
func (c *Cache) LinkKey(project, elementName, oldKey, newKey string) error {
	oldRef := NewRef(project, elementName, oldKey)
	dg, err := c.store.ReadRef(string(oldRef))
	if err != nil {
		return err
	}
	newRef := NewRef(project, elementName, newKey)
	return c.store.WriteRef(string(newRef), dg)
}

// UpdateMtime touches ref's LRU timestamp (spec §4.4 update_mtime).
func (c *Cache) UpdateMtime(ref Ref) error {
	return c.store.Touch(string(ref))
}

// usedBytes sums the on-disk size of every blob in the Object Store. It
// is an O(blob count) directory walk, acceptable for the periodic real
// size check spec §9's "Open Questions" describes alongside an
// estimated-size fast path (estimation itself lives at the call site,
// e.g. the scheduler tallying Commit sizes as it goes).
func (c *Cache) usedBytes() (int64, error) {
	var total int64
	err := filepath.Walk(filepath.Join(c.store.Root(), "objects"), func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}

// EvictUnderQuota removes the oldest refs (LRU order) until the Object
// Store's used size is at or below the low watermark (quota/2 by
// default, spec §4.4 / §9). It never removes blobs directly — that is a
// subsequent GC sweep's job (see Sweep) — so freed space is only
// realized once orphaned blobs are swept.
func (c *Cache) EvictUnderQuota(ctx context.Context) (evicted []Ref, err error) {
	if c.quota <= 0 {
		return nil, nil
	}
	used, err := c.usedBytes()
	if err != nil {
		return nil, err
	}
	if used <= c.quota {
		return nil, nil
	}

	refs, err := c.store.ListRefs(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range refs {
		if used <= c.lowWater {
			break
		}
		dg, err := c.store.ReadRef(e.Name)
		if err != nil {
			continue // already gone
		}
		a, err := Load(c.store, dg)
		if err != nil {
			continue
		}
		size, err := closureSize(c.store, a)
		if err != nil {
			continue
		}
		if err := c.store.RemoveRef(e.Name); err != nil {
			return evicted, err
		}
		evicted = append(evicted, Ref(e.Name))
		used -= size

		corectx.GetLogger(ctx, "component", "artifact").Debugf("evicted ref %s, freeing ~%d bytes", e.Name, size)
	}
	return evicted, nil
}

// closureSize estimates the total blob size an artifact's files tree
// transitively references.
func closureSize(store *cas.Store, a *Artifact) (int64, error) {
	digests, err := directory.Closure(store, a.FilesDigest)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, dg := range digests {
		total += dg.Size
	}
	return total, nil
}
