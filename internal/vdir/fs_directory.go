package vdir

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/buildstream-go/core/internal/cas"
)

// FSDirectory is a VirtualDirectory backed directly by a real filesystem
// path, the other half of spec §4.3's "two variants". It is the staging
// directory a build sandbox writes into before its output is committed
// into the Object Store.
type FSDirectory struct {
	path string

	mu       sync.Mutex
	modified map[string]bool
}

// NewFSDirectory returns an FSDirectory rooted at an existing directory
// path.
func NewFSDirectory(path string) *FSDirectory {
	return &FSDirectory{path: path, modified: make(map[string]bool)}
}

func (fd *FSDirectory) markModified(relpath string) {
	fd.mu.Lock()
	fd.modified[relpath] = true
	fd.mu.Unlock()
}

// Descend implements VirtualDirectory.
func (fd *FSDirectory) Descend(ctx context.Context, components []string, create bool) (VirtualDirectory, error) {
	p := fd.path
	for _, c := range components {
		p = filepath.Join(p, c)
		info, err := os.Lstat(p)
		if err != nil {
			if !create {
				return nil, &ErrMissing{Path: c}
			}
			if err := os.Mkdir(p, 0o755); err != nil {
				return nil, fmt.Errorf("vdir: creating %s: %w", p, err)
			}
			continue
		}
		if !info.IsDir() {
			return nil, &ErrNotADirectory{Path: c}
		}
	}
	return &FSDirectory{path: p, modified: make(map[string]bool)}, nil
}

// IsEmpty implements VirtualDirectory.
func (fd *FSDirectory) IsEmpty() bool {
	entries, err := os.ReadDir(fd.path)
	return err == nil && len(entries) == 0
}

// MarkUnmodified implements VirtualDirectory.
func (fd *FSDirectory) MarkUnmodified() {
	fd.mu.Lock()
	fd.modified = make(map[string]bool)
	fd.mu.Unlock()
}

// ListModifiedPaths implements VirtualDirectory.
func (fd *FSDirectory) ListModifiedPaths() []string {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	out := make([]string, 0, len(fd.modified))
	for p := range fd.modified {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetDeterministicMtime walks the tree setting every entry's mtime to
// fakeMTime, spec §4.3's reproducibility normalization.
func (fd *FSDirectory) SetDeterministicMtime() error {
	return filepath.Walk(fd.path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil // lutimes isn't portable via os; symlinks keep their mtime
		}
		return os.Chtimes(p, fakeMTime, fakeMTime)
	})
}

// SetDeterministicUser is a no-op: changing ownership requires privileges
// this process does not assume it has, matching the teacher's own
// filesystem driver, which never calls chown.
func (fd *FSDirectory) SetDeterministicUser() error { return nil }

// ListRelativePaths implements VirtualDirectory.
func (fd *FSDirectory) ListRelativePaths(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.Walk(fd.path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == fd.path {
			return nil
		}
		rel, err := filepath.Rel(fd.path, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				out = append(out, rel)
			}
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// entries implements VirtualDirectory: one filesystem level, symlinks
// first, then directories, then files, matching CASDirectory's ordering.
func (fd *FSDirectory) entries(ctx context.Context) ([]entryInfo, error) {
	dirEntries, err := os.ReadDir(fd.path)
	if err != nil {
		return nil, fmt.Errorf("vdir: reading %s: %w", fd.path, err)
	}

	var symlinks, dirs, files []entryInfo
	for _, de := range dirEntries {
		p := filepath.Join(fd.path, de.Name())
		info, err := os.Lstat(p)
		if err != nil {
			return nil, err
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return nil, err
			}
			symlinks = append(symlinks, entryInfo{name: de.Name(), typ: TypeSymlink, target: target})
		case info.IsDir():
			dirs = append(dirs, entryInfo{name: de.Name(), typ: TypeDirectory})
		case info.Mode().IsRegular():
			files = append(files, entryInfo{
				name:       de.Name(),
				typ:        TypeRegularFile,
				executable: info.Mode()&0o100 != 0,
				srcPath:    p,
			})
		default:
			files = append(files, entryInfo{name: de.Name(), typ: TypeSpecialFile, srcPath: p})
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

// store implements VirtualDirectory. An FSDirectory has no Object Store of
// its own — its file entries always carry srcPath, so copyBlob never
// dereferences this value when an FSDirectory is the Import source.
func (fd *FSDirectory) store() *cas.Store { return nil }

// Import implements VirtualDirectory: applies the same overlay rule as
// CASDirectory.Import, but against real filesystem entries.
func (fd *FSDirectory) Import(ctx context.Context, src VirtualDirectory, opts ImportOptions) (FileListResult, error) {
	var result FileListResult
	if err := fsImportInto(ctx, fd, src, "", opts, &result); err != nil {
		return result, err
	}
	return result, nil
}

func fsImportInto(ctx context.Context, dst *FSDirectory, src VirtualDirectory, prefix string, opts ImportOptions, result *FileListResult) error {
	items, err := src.entries(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		relpath := prefix + item.name
		if opts.Filter != nil && !opts.Filter(relpath) {
			continue
		}
		dstPath := filepath.Join(dst.path, item.name)
		_, statErr := os.Lstat(dstPath)
		existed := statErr == nil

		switch item.typ {
		case TypeSymlink:
			if existed {
				if err := os.RemoveAll(dstPath); err != nil {
					return err
				}
			}
			if err := os.Symlink(item.target, dstPath); err != nil {
				return err
			}
			dst.markModified(relpath)
			if existed {
				result.Overwritten = append(result.Overwritten, relpath)
			} else {
				result.FilesWritten = append(result.FilesWritten, relpath)
			}

		case TypeDirectory:
			if existed {
				info, err := os.Lstat(dstPath)
				if err != nil {
					return err
				}
				if !info.IsDir() {
					if err := os.Remove(dstPath); err != nil {
						return err
					}
					if err := os.Mkdir(dstPath, 0o755); err != nil {
						return err
					}
				} else if entries, err := os.ReadDir(dstPath); err != nil {
					return err
				} else if len(entries) > 0 {
					result.Ignored = append(result.Ignored, relpath)
					continue
				}
			} else if err := os.Mkdir(dstPath, 0o755); err != nil {
				return err
			}
			childSrc, err := src.Descend(ctx, []string{item.name}, false)
			if err != nil {
				return err
			}
			childDst := &FSDirectory{path: dstPath, modified: make(map[string]bool)}
			if err := fsImportInto(ctx, childDst, childSrc, relpath+"/", opts, result); err != nil {
				return err
			}

		case TypeRegularFile:
			srcPath := item.srcPath
			if srcPath == "" {
				if srcPath, err = src.store().GetPath(item.digest); err != nil {
					return fmt.Errorf("vdir: importing %s: %w", relpath, err)
				}
			}
			if existed {
				if err := os.RemoveAll(dstPath); err != nil {
					return err
				}
			}
			if err := copyRegularFile(srcPath, dstPath, item.executable, opts.CanLink); err != nil {
				return fmt.Errorf("vdir: importing %s: %w", relpath, err)
			}
			dst.markModified(relpath)
			if existed {
				result.Overwritten = append(result.Overwritten, relpath)
			} else {
				result.FilesWritten = append(result.FilesWritten, relpath)
			}

		default:
			result.FailedAttributes = append(result.FailedAttributes, relpath)
		}
	}
	return nil
}

func copyRegularFile(srcPath, dstPath string, executable, canLink bool) error {
	if canLink {
		if err := os.Link(srcPath, dstPath); err == nil {
			return nil
		}
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	mode := os.FileMode(0o644)
	if executable {
		mode = 0o755
	}
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// Export implements VirtualDirectory: copies fd's tree onto destFSPath.
func (fd *FSDirectory) Export(ctx context.Context, destFSPath string, opts ExportOptions) error {
	if err := os.MkdirAll(destFSPath, 0o755); err != nil {
		return err
	}
	items, err := fd.entries(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		dstPath := filepath.Join(destFSPath, item.name)
		switch item.typ {
		case TypeSymlink:
			if err := os.Symlink(item.target, dstPath); err != nil {
				return err
			}
		case TypeDirectory:
			child, err := fd.Descend(ctx, []string{item.name}, false)
			if err != nil {
				return err
			}
			if err := child.Export(ctx, dstPath, opts); err != nil {
				return err
			}
		default:
			if err := copyRegularFile(item.srcPath, dstPath, item.executable, opts.CanLink); err != nil {
				return err
			}
		}
	}
	return nil
}
