// Package vdir implements the Virtual Directory of spec §4.3: a uniform
// interface over CAS-backed and filesystem-backed directory trees,
// grounded in the teacher's storage-driver Walk (registry/storage/driver/
// walk.go) for tree traversal and in buildstream's own
// storage/_casbaseddirectory.py (original_source/) for the overlay-import
// and symlink-resolution semantics the distilled spec only summarizes.
package vdir

import (
	"context"
	"time"

	"github.com/buildstream-go/core/internal/cas"
)

// FileType mirrors directory.FileType without importing it directly in
// the interface signature, so callers outside this package don't need to
// reach into the directory package for a type tag.
type FileType int

const (
	TypeDirectory FileType = iota
	TypeRegularFile
	TypeSymlink
	TypeSpecialFile
)

// FileListResult is the outcome of an Import, spec §4.3.
type FileListResult struct {
	FilesWritten     []string
	Overwritten      []string
	Ignored          []string
	FailedAttributes []string
}

// ImportOptions configures Import (spec §4.3's filter?, can_link?,
// update_mtime? parameters).
type ImportOptions struct {
	Filter       func(relpath string) bool
	CanLink      bool
	UpdateMtime  bool
}

// ExportOptions configures Export.
type ExportOptions struct {
	CanLink    bool
	CanDestroy bool
}

// VirtualDirectory is the uniform interface of spec §4.3, implemented by
// FSDirectory and CASDirectory.
type VirtualDirectory interface {
	// Descend walks into a subdirectory, optionally creating missing
	// levels. Fails with ErrNotADirectory or ErrMissing.
	Descend(ctx context.Context, components []string, create bool) (VirtualDirectory, error)

	// Import merges files, directories and symlinks from src into self.
	Import(ctx context.Context, src VirtualDirectory, opts ImportOptions) (FileListResult, error)

	// Export materializes the tree onto a real filesystem directory.
	Export(ctx context.Context, destFSPath string, opts ExportOptions) error

	// ListRelativePaths returns every leaf-reachable path, sorted.
	ListRelativePaths(ctx context.Context) ([]string, error)

	// SetDeterministicMtime normalizes mtime for reproducibility.
	SetDeterministicMtime() error

	// SetDeterministicUser normalizes ownership for reproducibility.
	SetDeterministicUser() error

	// MarkUnmodified resets the post-import change-tracking baseline.
	MarkUnmodified()

	// ListModifiedPaths returns paths changed since the last
	// MarkUnmodified call.
	ListModifiedPaths() []string

	// IsEmpty reports whether the directory has no entries.
	IsEmpty() bool

	// entries lists this directory's own immediate children, in the
	// order symlinks, directories, files — so Import can apply symlink
	// entries before any file that might traverse them (spec §4.3).
	// Unexported: only FSDirectory and CASDirectory implement
	// VirtualDirectory, by design (spec §4.3 names exactly these two
	// variants).
	entries(ctx context.Context) ([]entryInfo, error)

	// store returns the cas.Store backing this directory, so Import can
	// copy blobs between a source and destination that may not share a
	// store.
	store() *cas.Store
}

// entryInfo is one immediate child of a VirtualDirectory, in a shape
// generic enough to cover both CAS- and filesystem-backed sources.
type entryInfo struct {
	name       string
	typ        FileType
	digest     cas.Digest // valid for files; directory digest is recomputed on demand
	target     string     // valid for symlinks
	executable bool
	srcPath    string // set only for FSDirectory file entries, the absolute source path
}

// CASBacked is implemented only by CASDirectory, letting callers that
// specifically need a content digest (e.g. the Artifact Cache at commit
// time) obtain one without a type assertion on the concrete type.
type CASBacked interface {
	VirtualDirectory
	GetDigest(ctx context.Context) (cas.Digest, error)
}

// fakeMTime is the fixed modification time SetDeterministicMtime applies:
// a date well after the Unix epoch, so that a 0 timestamp is never
// mistaken for "unset" by tools that special case the epoch.
var fakeMTime = time.Unix(1230768000, 0) // 2009-01-01, BuildStream's convention
