package cas

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/buildstream-go/core/internal/corectx"
)

// shardLen is the number of leading hex characters of a digest's hash used
// as the first-level directory component, following the teacher's blob
// store sharding in registry/storage/paths.go ("blob/<algorithm>/<first two
// hex digits>/...").
const shardLen = 2

// Store is the Object Store of spec §4.1: a flat, content-addressed blob
// store on a local filesystem path, with an adjoining artifact-name ref
// index and a scratch directory for atomic writes.
type Store struct {
	root string
}

// Open returns a Store rooted at dir, creating the objects/, refs/heads/
// and tmp/ directories if they do not already exist (spec §6, "Local
// on-disk layout").
func Open(dir string) (*Store, error) {
	s := &Store{root: dir}
	for _, sub := range []string{"objects", filepath.Join("refs", "heads"), "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, &StorageError{Kind: IO, Path: sub, Err: err}
		}
	}
	return s, nil
}

func (s *Store) objectPath(d Digest) string {
	hex := d.Hash.Encoded()
	return filepath.Join(s.root, "objects", hex[:shardLen], hex[shardLen:])
}

func (s *Store) refPath(name string) string {
	return filepath.Join(s.root, "refs", "heads", filepath.FromSlash(name))
}

func (s *Store) tmpDir() string {
	return filepath.Join(s.root, "tmp")
}

// Has reports whether a blob with the given digest is present.
func (s *Store) Has(d Digest) bool {
	_, err := os.Stat(s.objectPath(d))
	return err == nil
}

// GetPath returns the on-disk path of the blob for d, failing with
// NotFound if absent (spec §4.1, get_path).
func (s *Store) GetPath(d Digest) (string, error) {
	p := s.objectPath(d)
	if _, err := os.Stat(p); err != nil {
		return "", &StorageError{Kind: NotFound, Path: p, Err: err}
	}
	return p, nil
}

// Get reads a whole blob into memory. Intended for small objects (ref
// targets, artifact protos), mirroring the teacher's blobStore.get.
func (s *Store) Get(d Digest) ([]byte, error) {
	p, err := s.GetPath(d)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// PutBytes writes a blob atomically (write-to-temp, fsync, rename) and
// returns its Digest. Idempotent: writing an existing digest verifies the
// target already exists and returns immediately without rewriting it.
// Concurrent puts of the same digest from multiple processes are safe
// because the final step is an atomic rename (spec §4.1, §5).
func (s *Store) PutBytes(content []byte) (Digest, error) {
	d := digestBytes(content)
	if s.Has(d) {
		return d, nil
	}
	if err := s.atomicWrite(s.objectPath(d), bytes.NewReader(content)); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// PutPath hashes the file at path and moves/links it into the store,
// returning its Digest. The caller is responsible for recording the
// executable bit on the referring DirectoryEntry — the blob itself never
// carries it (spec §4.1).
func (s *Store) PutPath(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, &StorageError{Kind: IO, Path: path, Err: err}
	}
	defer f.Close()

	d, err := digestReader(f)
	if err != nil {
		return Digest{}, &StorageError{Kind: IO, Path: path, Err: err}
	}
	if s.Has(d) {
		return d, nil
	}

	// Prefer a hardlink (cheap, same filesystem); fall back to a copy
	// when the source is on a different device, exactly the fallback the
	// teacher's filesystem storage driver performs for Move.
	dst := s.objectPath(d)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Digest{}, &StorageError{Kind: IO, Path: dst, Err: err}
	}
	if err := os.Link(path, dst); err == nil {
		return d, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Digest{}, &StorageError{Kind: IO, Path: path, Err: err}
	}
	if err := s.atomicWrite(dst, f); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// atomicWrite writes r to a temp file under tmp/, fsyncs it, and renames
// it into place — the same write-temp/fsync/rename sequence the teacher's
// filesystem storage driver uses for durable PutContent.
func (s *Store) atomicWrite(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &StorageError{Kind: IO, Path: dst, Err: err}
	}

	tmp, err := os.CreateTemp(s.tmpDir(), "put-*")
	if err != nil {
		return &StorageError{Kind: IO, Path: s.tmpDir(), Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed away

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		if isENOSPC(err) {
			return &StorageError{Kind: CacheFull, Path: dst, Err: err}
		}
		return &StorageError{Kind: IO, Path: dst, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Kind: IO, Path: dst, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Kind: IO, Path: dst, Err: err}
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return &StorageError{Kind: IO, Path: dst, Err: err}
	}
	return syncDir(filepath.Dir(dst))
}

// RefEntry is one entry of the artifact-name ref index.
type RefEntry struct {
	Name  string
	MTime time.Time
}

// ListRefs iterates the artifact-name index, returning entries sorted by
// mtime oldest-first to drive LRU eviction (spec §4.1, list_refs).
func (s *Store) ListRefs(ctx context.Context) ([]RefEntry, error) {
	root := filepath.Join(s.root, "refs", "heads")
	var entries []RefEntry
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, RefEntry{
			Name:  filepath.ToSlash(rel),
			MTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, &StorageError{Kind: IO, Path: root, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MTime.Before(entries[j].MTime)
	})
	corectx.GetLogger(ctx, "component", "cas").Debugf("listed %d refs", len(entries))
	return entries, nil
}

// Touch updates the mtime of a ref to mark recent use (LRU touch).
func (s *Store) Touch(name string) error {
	now := time.Now()
	if err := os.Chtimes(s.refPath(name), now, now); err != nil {
		return &StorageError{Kind: IO, Path: name, Err: err}
	}
	return nil
}

// WriteRef writes a ref file containing the string form of d at name,
// creating parent directories as needed.
func (s *Store) WriteRef(name string, d Digest) error {
	p := s.refPath(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return &StorageError{Kind: IO, Path: p, Err: err}
	}
	return s.atomicWrite(p, bytes.NewReader([]byte(d.String())))
}

// ReadRef resolves a ref name to the Digest it points at.
func (s *Store) ReadRef(name string) (Digest, error) {
	content, err := os.ReadFile(s.refPath(name))
	if err != nil {
		return Digest{}, &StorageError{Kind: NotFound, Path: name, Err: err}
	}
	return ParseRefContent(string(content))
}

// HasRef reports whether a ref exists.
func (s *Store) HasRef(name string) bool {
	_, err := os.Stat(s.refPath(name))
	return err == nil
}

// RemoveRef deletes a ref and prunes now-empty parent directories
// bottom-up, matching spec §4.1's remove_ref.
func (s *Store) RemoveRef(name string) error {
	p := s.refPath(name)
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return &StorageError{Kind: IO, Path: p, Err: err}
	}
	dir := filepath.Dir(p)
	root := filepath.Join(s.root, "refs", "heads")
	for dir != root && len(dir) > len(root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// Root returns the store's root directory, used by higher layers that
// need to address blobs directly (e.g. the Virtual Directory's FS export).
func (s *Store) Root() string {
	return s.root
}
