package cas

import (
	"errors"
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sys/unix"
)

// syncDir fsyncs a directory after a rename into it, so the rename itself
// is durable across a crash — the final step of the teacher's atomic
// write pattern, made explicit here since Go's os.Rename does not do it
// for the containing directory. Uses golang.org/x/sys/unix directly
// rather than os.File.Sync so the intent (fsync a directory fd, which
// os.File also supports but less explicitly) is unambiguous.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return &StorageError{Kind: IO, Path: dir, Err: err}
	}
	defer d.Close()
	if err := unix.Fsync(int(d.Fd())); err != nil {
		return &StorageError{Kind: IO, Path: dir, Err: err}
	}
	return nil
}

// isENOSPC reports whether err ultimately wraps ENOSPC, the trigger for
// the CacheFull recoverable condition (spec §4.1).
func isENOSPC(err error) bool {
	return errors.Is(err, unix.ENOSPC)
}

// ParseRefContent parses the "<algorithm>:<hex>/<size>" string written by
// WriteRef back into a Digest.
func ParseRefContent(s string) (Digest, error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			hashPart, sizePart := s[:i], s[i+1:]
			dg, err := digest.Parse(hashPart)
			if err != nil {
				return Digest{}, fmt.Errorf("cas: invalid ref content %q: %w", s, err)
			}
			var size int64
			if _, err := fmt.Sscanf(sizePart, "%d", &size); err != nil {
				return Digest{}, fmt.Errorf("cas: invalid ref size %q: %w", s, err)
			}
			return Digest{Hash: dg, Size: size}, nil
		}
	}
	return Digest{}, fmt.Errorf("cas: malformed ref content %q", s)
}
