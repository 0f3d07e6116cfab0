package vdir

import "fmt"

// ErrNotADirectory is raised by Descend when a path component exists but
// is not a directory (spec §4.3).
type ErrNotADirectory struct{ Path string }

func (e *ErrNotADirectory) Error() string {
	return fmt.Sprintf("vdir: %s is not a directory", e.Path)
}

// ErrMissing is raised by Descend when a component is not found and
// create=false, and by the symlink resolver when a name is absent.
type ErrMissing struct{ Path string }

func (e *ErrMissing) Error() string {
	return fmt.Sprintf("vdir: %s does not exist", e.Path)
}

// ResolutionErrorKind enumerates the ResolutionError sub-kinds of spec §7.
type ResolutionErrorKind int

const (
	AbsoluteSymlink ResolutionErrorKind = iota
	InfiniteSymlink
	UnexpectedFile
)

func (k ResolutionErrorKind) String() string {
	switch k {
	case AbsoluteSymlink:
		return "ABSOLUTE_SYMLINK"
	case InfiniteSymlink:
		return "INFINITE_SYMLINK"
	case UnexpectedFile:
		return "UNEXPECTED_FILE"
	default:
		return "UNKNOWN"
	}
}

// ResolutionError is raised by the symlink resolver (spec §4.3, §7).
type ResolutionError struct {
	Kind    ResolutionErrorKind
	Message string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("vdir: %s: %s", e.Kind, e.Message)
}
