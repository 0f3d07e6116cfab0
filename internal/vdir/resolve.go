package vdir

import (
	"fmt"
	"strings"
)

// resolver implements the symlink-resolution algorithm of spec §4.3,
// ported directly from buildstream's own
// storage/_casbaseddirectory.py:_Resolver (original_source/), the
// hardest algorithm in the Virtual Directory per spec's own description.
type resolver struct {
	absoluteSymlinksResolve bool
	forceCreate             bool
	seen                    map[seenKey]bool
}

// seenKey identifies one symlink index entry for cycle detection: the
// node it lives in, plus its name within that node (an index entry has
// no stable pointer identity in this Go port, so the pair stands in for
// the original's "seen_objects" identity list).
type seenKey struct {
	node arenaID
	name string
}

func newResolver(absoluteSymlinksResolve, forceCreate bool) *resolver {
	return &resolver{
		absoluteSymlinksResolve: absoluteSymlinksResolve,
		forceCreate:             forceCreate,
		seen:                    make(map[seenKey]bool),
	}
}

// resolve resolves name within directory, following any symlink chain
// recursively, and returns the resulting type and CASDirectory (nil for
// files). An absent name, or an absent component of a symlink target,
// yields ErrMissing, unless forceCreate creates that component as a
// directory.
func (r *resolver) resolve(name string, dir *CASDirectory) (FileType, *CASDirectory, error) {
	n := dir.node()
	entry, ok := n.index[name]
	if !ok {
		return 0, nil, &ErrMissing{Path: name}
	}
	if entry.typ == TypeDirectory {
		childCD, err := dir.child(name)
		if err != nil {
			return 0, nil, err
		}
		return TypeDirectory, childCD, nil
	}
	if entry.typ == TypeRegularFile {
		return TypeRegularFile, nil, nil
	}

	// A symlink: resolve its target, chasing further symlinks.
	key := seenKey{node: dir.id, name: name}
	if r.seen[key] {
		return 0, nil, &ResolutionError{
			Kind:    InfiniteSymlink,
			Message: fmt.Sprintf("infinite symlink loop found during resolution; first repeated element is %s", name),
		}
	}
	r.seen[key] = true

	target := entry.target
	absolute := strings.HasPrefix(target, "/")
	components := strings.Split(strings.TrimPrefix(target, "/"), "/")
	if target == "" {
		components = nil
	}

	cur := dir
	if absolute {
		if !r.absoluteSymlinksResolve {
			return 0, nil, &ResolutionError{
				Kind:    AbsoluteSymlink,
				Message: fmt.Sprintf("%s is an absolute symlink, which was disallowed during resolution", name),
			}
		}
		cur = findRoot(dir)
	}

	resolution := cur
	resolutionType := TypeDirectory
	for len(components) > 0 && resolutionType == TypeDirectory {
		c := components[0]
		components = components[1:]
		from := resolution

		t, d, err := r.resolvePathComponent(c, from, components)
		if err != nil {
			if re, ok := err.(*ResolutionError); ok && re.Kind == UnexpectedFile {
				return 0, nil, &ResolutionError{
					Kind: UnexpectedFile,
					Message: fmt.Sprintf(
						"reached a file called %s while trying to resolve a symlink; cannot proceed. remaining path components: %v",
						c, components),
				}
			}
			return 0, nil, err
		}
		resolutionType, resolution = t, d
	}
	return resolutionType, resolution, nil
}

func findRoot(dir *CASDirectory) *CASDirectory {
	cur := dir
	for {
		n := cur.node()
		if n.parentID == noParent {
			return cur
		}
		cur = &CASDirectory{arena: cur.arena, id: n.parentID}
	}
}

func (r *resolver) resolvePathComponent(c string, dir *CASDirectory, remaining []string) (FileType, *CASDirectory, error) {
	switch c {
	case ".":
		return TypeDirectory, dir, nil
	case "..":
		n := dir.node()
		if n.parentID == noParent {
			// POSIX: ".." at the root stays at the root.
			return TypeDirectory, dir, nil
		}
		return TypeDirectory, &CASDirectory{arena: dir.arena, id: n.parentID}, nil
	}

	n := dir.node()
	if _, ok := n.index[c]; ok {
		requireTraversable := len(remaining) > 0
		return r.resolveThroughFiles(c, dir, requireTraversable)
	}

	if r.forceCreate {
		childCD, err := dir.createChild(c)
		if err != nil {
			return 0, nil, err
		}
		return TypeDirectory, childCD, nil
	}
	return 0, nil, &ErrMissing{Path: c}
}

// resolveThroughFiles wraps resolve() to handle files found mid-path
// (e.g. a symlink pointing at /usr/lib64/libfoo when lib64 is a file).
func (r *resolver) resolveThroughFiles(c string, dir *CASDirectory, requireTraversable bool) (FileType, *CASDirectory, error) {
	t, d, err := r.resolve(c, dir)
	if err != nil {
		return 0, nil, err
	}
	if t == TypeRegularFile && requireTraversable {
		if r.forceCreate {
			delete(dir.node().index, c)
			childCD, err := dir.createChild(c)
			if err != nil {
				return 0, nil, err
			}
			return TypeDirectory, childCD, nil
		}
		return 0, nil, &ResolutionError{Kind: UnexpectedFile}
	}
	return t, d, nil
}
