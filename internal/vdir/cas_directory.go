package vdir

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/buildstream-go/core/internal/cas"
	"github.com/buildstream-go/core/internal/directory"
)

// CASDirectory is a VirtualDirectory backed by a Directory blob in the
// Object Store, lazily materializing subdirectory children (spec §4.3).
type CASDirectory struct {
	arena *Arena
	id    arenaID
}

// NewCASDirectory returns an empty root CASDirectory over store.
func NewCASDirectory(store *cas.Store) *CASDirectory {
	arena := newArena()
	root := arena.alloc(noParent, "", store)
	return &CASDirectory{arena: arena, id: root.id}
}

// LoadCASDirectory returns a root CASDirectory populated from an existing
// Directory blob.
func LoadCASDirectory(store *cas.Store, dg cas.Digest) (*CASDirectory, error) {
	arena := newArena()
	root := arena.alloc(noParent, "", store)
	cd := &CASDirectory{arena: arena, id: root.id}
	if err := cd.populate(dg); err != nil {
		return nil, err
	}
	root.digestValid = true
	root.digest = dg
	return cd, nil
}

func (cd *CASDirectory) node() *casNode {
	return cd.arena.get(cd.id)
}

// populate fills n's index from the Directory blob at dg.
func (cd *CASDirectory) populate(dg cas.Digest) error {
	n := cd.node()
	d, err := directory.Load(n.store, dg)
	if err != nil {
		return err
	}
	for _, e := range d.Subdirs {
		n.index[e.Name] = indexEntry{typ: TypeDirectory, digest: e.Digest}
	}
	for _, e := range d.Files {
		n.index[e.Name] = indexEntry{typ: TypeRegularFile, digest: e.Digest, executable: e.IsExecutable}
	}
	for _, e := range d.Symlinks {
		n.index[e.Name] = indexEntry{typ: TypeSymlink, target: e.Target}
	}
	return nil
}

// child returns (materializing if necessary) the CASDirectory for the
// subdirectory entry named name, which must already be TypeDirectory in
// the index.
func (cd *CASDirectory) child(name string) (*CASDirectory, error) {
	n := cd.node()
	entry, ok := n.index[name]
	if !ok || entry.typ != TypeDirectory {
		return nil, fmt.Errorf("vdir: %q is not a directory entry", name)
	}
	if entry.childID != 0 {
		return &CASDirectory{arena: cd.arena, id: entry.childID}, nil
	}

	childNode := cd.arena.alloc(cd.id, name, n.store)
	childCD := &CASDirectory{arena: cd.arena, id: childNode.id}
	if !entry.digest.IsZero() {
		if err := childCD.populate(entry.digest); err != nil {
			return nil, err
		}
		childNode.digestValid = true
		childNode.digest = entry.digest
	} else {
		childNode.digestValid = true
		childNode.digest = cas.Digest{}
	}
	entry.childID = childNode.id
	n.index[name] = entry
	return childCD, nil
}

// createChild creates (or replaces) a name as an empty directory and
// returns its CASDirectory, used by the resolver's force_create mode and
// by descend(create=true).
func (cd *CASDirectory) createChild(name string) (*CASDirectory, error) {
	n := cd.node()
	childNode := cd.arena.alloc(cd.id, name, n.store)
	childNode.digestValid = true
	childCD := &CASDirectory{arena: cd.arena, id: childNode.id}
	n.index[name] = indexEntry{typ: TypeDirectory, childID: childNode.id}
	cd.arena.invalidate(n)
	return childCD, nil
}

// Descend implements VirtualDirectory.
func (cd *CASDirectory) Descend(ctx context.Context, components []string, create bool) (VirtualDirectory, error) {
	cur := cd
	for _, c := range components {
		n := cur.node()
		entry, ok := n.index[c]
		if !ok {
			if !create {
				return nil, &ErrMissing{Path: c}
			}
			childCD, err := cur.createChild(c)
			if err != nil {
				return nil, err
			}
			cur = childCD
			continue
		}
		if entry.typ != TypeDirectory {
			return nil, &ErrNotADirectory{Path: c}
		}
		childCD, err := cur.child(c)
		if err != nil {
			return nil, err
		}
		cur = childCD
	}
	return cur, nil
}

// IsEmpty implements VirtualDirectory.
func (cd *CASDirectory) IsEmpty() bool {
	n := cd.node()
	return len(n.index) == 0
}

// MarkUnmodified implements VirtualDirectory.
func (cd *CASDirectory) MarkUnmodified() {
	n := cd.node()
	n.modified = make(map[string]bool)
}

// ListModifiedPaths implements VirtualDirectory.
func (cd *CASDirectory) ListModifiedPaths() []string {
	n := cd.node()
	out := make([]string, 0, len(n.modified))
	for p := range n.modified {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetDeterministicMtime is a no-op for the CAS variant: CAS directories
// carry no mtime metadata to normalize (spec §4.3).
func (cd *CASDirectory) SetDeterministicMtime() error { return nil }

// SetDeterministicUser is a no-op for the CAS variant, for the same
// reason as SetDeterministicMtime.
func (cd *CASDirectory) SetDeterministicUser() error { return nil }

// ListRelativePaths implements VirtualDirectory: every leaf-reachable
// path in deterministic sorted order; empty directories are emitted as
// themselves.
func (cd *CASDirectory) ListRelativePaths(ctx context.Context) ([]string, error) {
	var out []string
	var walk func(c *CASDirectory, prefix string) error
	walk = func(c *CASDirectory, prefix string) error {
		n := c.node()
		if len(n.index) == 0 && prefix != "" {
			out = append(out, strings.TrimSuffix(prefix, "/"))
			return nil
		}
		names := make([]string, 0, len(n.index))
		for name := range n.index {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry := n.index[name]
			full := prefix + name
			switch entry.typ {
			case TypeDirectory:
				childCD, err := c.child(name)
				if err != nil {
					return err
				}
				if err := walk(childCD, full+"/"); err != nil {
					return err
				}
			default:
				out = append(out, full)
			}
		}
		return nil
	}
	if err := walk(cd, ""); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// setFile records (or overwrites) name as a regular file pointing at
// digest, invalidating cd's cached digest.
func (cd *CASDirectory) setFile(name string, digest cas.Digest, executable bool) {
	n := cd.node()
	n.index[name] = indexEntry{typ: TypeRegularFile, digest: digest, executable: executable}
	cd.arena.markModified(n, name)
	cd.arena.invalidate(n)
}

// setSymlink records (or overwrites) name as a symlink to target,
// invalidating cd's cached digest.
func (cd *CASDirectory) setSymlink(name, target string) {
	n := cd.node()
	n.index[name] = indexEntry{typ: TypeSymlink, target: target}
	cd.arena.markModified(n, name)
	cd.arena.invalidate(n)
}

// ensureEmptyChildDir returns the child directory named name, creating it
// if absent. If name already exists as a non-empty directory it returns
// ok=false and leaves the tree untouched (the overlay rule's "collision
// with a non-empty directory is ignored", spec §4.3). If it exists as an
// empty directory, that directory is returned as it is; a file or a
// symlink of that name is replaced with a fresh empty directory.
func (cd *CASDirectory) ensureEmptyChildDir(name string) (childCD *CASDirectory, ok bool, err error) {
	n := cd.node()
	entry, exists := n.index[name]
	if exists && entry.typ == TypeDirectory {
		existingChild, err := cd.child(name)
		if err != nil {
			return nil, false, err
		}
		if !existingChild.IsEmpty() {
			return nil, false, nil
		}
		return existingChild, true, nil
	}
	childCD, err = cd.createChild(name)
	if err != nil {
		return nil, false, err
	}
	cd.arena.markModified(n, name)
	return childCD, true, nil
}

// entries implements VirtualDirectory: symlinks first, then directories,
// then files, each group sorted by name.
func (cd *CASDirectory) entries(ctx context.Context) ([]entryInfo, error) {
	n := cd.node()
	var symlinks, dirs, files []entryInfo
	for name, entry := range n.index {
		info := entryInfo{name: name, typ: entry.typ, digest: entry.digest, target: entry.target, executable: entry.executable}
		switch entry.typ {
		case TypeSymlink:
			symlinks = append(symlinks, info)
		case TypeDirectory:
			dirs = append(dirs, info)
		default:
			files = append(files, info)
		}
	}
	sort.Slice(symlinks, func(i, j int) bool { return symlinks[i].name < symlinks[j].name })
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].name < dirs[j].name })
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	out := make([]entryInfo, 0, len(symlinks)+len(dirs)+len(files))
	out = append(out, symlinks...)
	out = append(out, dirs...)
	out = append(out, files...)
	return out, nil
}

// store implements VirtualDirectory.
func (cd *CASDirectory) store() *cas.Store {
	return cd.node().store
}

// GetDigest implements CASBacked: returns the digest of cd's current
// contents, recomputing and storing it (and that of every invalidated
// subdirectory beneath it) if a descendant mutation invalidated the
// cached value.
func (cd *CASDirectory) GetDigest(ctx context.Context) (cas.Digest, error) {
	n := cd.node()
	if n.digestValid && !n.digest.IsZero() {
		return n.digest, nil
	}
	if n.digestValid && len(n.index) == 0 {
		d := directory.New()
		dg, err := directory.Store(n.store, d)
		if err != nil {
			return cas.Digest{}, err
		}
		n.digest = dg
		return dg, nil
	}

	d := directory.New()
	names := make([]string, 0, len(n.index))
	for name := range n.index {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := n.index[name]
		switch entry.typ {
		case TypeDirectory:
			childCD, err := cd.child(name)
			if err != nil {
				return cas.Digest{}, err
			}
			childDg, err := childCD.GetDigest(ctx)
			if err != nil {
				return cas.Digest{}, err
			}
			if err := d.AddSubdir(name, childDg); err != nil {
				return cas.Digest{}, err
			}
		case TypeRegularFile:
			if err := d.AddFile(name, entry.digest, entry.executable); err != nil {
				return cas.Digest{}, err
			}
		case TypeSymlink:
			if err := d.AddSymlink(name, entry.target); err != nil {
				return cas.Digest{}, err
			}
		}
	}

	dg, err := directory.Store(n.store, d)
	if err != nil {
		return cas.Digest{}, err
	}
	n.digest = dg
	n.digestValid = true
	return dg, nil
}
