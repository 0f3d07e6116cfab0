package cas

import (
	"errors"
	"fmt"
)

// StorageErrorKind enumerates the StorageError sub-kinds of spec §7.
type StorageErrorKind int

const (
	// IO is a generic local I/O failure.
	IO StorageErrorKind = iota
	// CacheFull is raised when a put fails with ENOSPC. It reaches the
	// caller like any other StorageError: the scheduler does not inspect it
	// and no eviction pass is started in response.
	CacheFull
	// CorruptBlob names a stored blob whose digest no longer matches its
	// contents. No Store method checks for this or returns this kind.
	CorruptBlob
	// NotFound is returned by GetPath/Get when the digest is absent and by
	// ReadRef when the ref is absent (Has reports absence as false).
	NotFound
)

func (k StorageErrorKind) String() string {
	switch k {
	case CacheFull:
		return "CACHE_FULL"
	case CorruptBlob:
		return "CORRUPT_BLOB"
	case NotFound:
		return "NOT_FOUND"
	default:
		return "IO"
	}
}

// StorageError is the typed error returned by Object Store operations,
// mirroring the teacher's storagedriver.PathNotFoundError /
// InvalidPathError pattern of small typed error values rather than
// opaque strings.
type StorageError struct {
	Kind StorageErrorKind
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cas: %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("cas: %s: %s", e.Kind, e.Path)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a StorageError of kind NotFound.
func IsNotFound(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind == NotFound
	}
	return false
}
