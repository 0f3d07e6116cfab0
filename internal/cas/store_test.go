package cas

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPutBytesIdempotent(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	d1, err := store.PutBytes([]byte("hello world"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	d2, err := store.PutBytes([]byte("hello world"))
	if err != nil {
		t.Fatalf("PutBytes (second): %v", err)
	}
	if !d1.Equal(d2) {
		t.Fatalf("expected equal digests, got %v and %v", d1, d2)
	}
	if !store.Has(d1) {
		t.Fatalf("expected store to contain digest %v", d1)
	}
}

func TestGetPathNotFound(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d, err := store.PutBytes([]byte("x"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	// flip one char of the hash to get a digest never stored
	missing := d
	missing.Hash = missing.Hash[:len(missing.Hash)-1] + "0"

	if _, err := store.GetPath(missing); err == nil {
		t.Fatalf("expected NotFound error")
	} else if !IsNotFound(err) {
		t.Fatalf("expected NotFound kind, got %v", err)
	}
}

func TestPutPathPreservesContent(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(srcPath, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d, err := store.PutPath(srcPath)
	if err != nil {
		t.Fatalf("PutPath: %v", err)
	}
	got, err := store.Get(d)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected %q, got %q", "payload", got)
	}
}

func TestRefsLRUOrder(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d, err := store.PutBytes([]byte("artifact-bytes"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}

	names := []string{"proj/a/k1", "proj/b/k2", "proj/c/k3"}
	for _, n := range names {
		if err := store.WriteRef(n, d); err != nil {
			t.Fatalf("WriteRef(%s): %v", n, err)
		}
	}

	refs, err := store.ListRefs(context.Background())
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(refs) != len(names) {
		t.Fatalf("expected %d refs, got %d", len(names), len(refs))
	}
	for i := 1; i < len(refs); i++ {
		if refs[i].MTime.Before(refs[i-1].MTime) {
			t.Fatalf("refs not in non-decreasing mtime order: %+v", refs)
		}
	}
}

func TestRemoveRefPrunesEmptyDirs(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d, err := store.PutBytes([]byte("x"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if err := store.WriteRef("proj/elem/key1", d); err != nil {
		t.Fatalf("WriteRef: %v", err)
	}
	if err := store.RemoveRef("proj/elem/key1"); err != nil {
		t.Fatalf("RemoveRef: %v", err)
	}
	if store.HasRef("proj/elem/key1") {
		t.Fatalf("expected ref to be removed")
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "refs", "heads", "proj", "elem")); !os.IsNotExist(err) {
		t.Fatalf("expected empty parent dirs pruned, stat err = %v", err)
	}
}
