package directory

import (
	"testing"

	"github.com/buildstream-go/core/internal/cas"
)

func TestDigestDeterministic(t *testing.T) {
	mk := func() *Directory {
		d := New()
		_ = d.AddFile("b", cas.DigestBytes([]byte("b-content")), false)
		_ = d.AddFile("a", cas.DigestBytes([]byte("a-content")), true)
		_ = d.AddSymlink("c", "a")
		return d
	}

	d1, d2 := mk(), mk()
	dg1, err := d1.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	dg2, err := d2.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !dg1.Equal(dg2) {
		t.Fatalf("expected equal digests for equal logical contents, got %v vs %v", dg1, dg2)
	}
}

func TestEmptyDirectoryDigestDistinct(t *testing.T) {
	empty := New()
	emptyDg, err := empty.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	nonEmpty := New()
	_ = nonEmpty.AddFile("a", cas.DigestBytes([]byte("x")), false)
	nonEmptyDg, err := nonEmpty.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	if emptyDg.Equal(nonEmptyDg) {
		t.Fatalf("expected empty and non-empty directories to have distinct digests")
	}
}

func TestSymlinkOnlyDirectoryRoundTrips(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	d := New()
	if err := d.AddSymlink("link-a", "target-a"); err != nil {
		t.Fatalf("AddSymlink: %v", err)
	}
	if err := d.AddSymlink("link-b", "../target-b"); err != nil {
		t.Fatalf("AddSymlink: %v", err)
	}

	dg, err := Store(store, d)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	loaded, err := Load(store, dg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Files) != 0 || len(loaded.Subdirs) != 0 {
		t.Fatalf("expected only symlinks, got %+v", loaded)
	}
	if len(loaded.Symlinks) != 2 {
		t.Fatalf("expected 2 symlinks, got %d", len(loaded.Symlinks))
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	d := New()
	if err := d.AddFile("x", cas.DigestBytes([]byte("1")), false); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := d.AddSymlink("x", "y"); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestClosureVisitsAllBlobs(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	childFileDg, err := store.PutBytes([]byte("child-file"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	child := New()
	_ = child.AddFile("f", childFileDg, false)
	childDg, err := Store(store, child)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	rootFileDg, err := store.PutBytes([]byte("root-file"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	root := New()
	_ = root.AddFile("r", rootFileDg, false)
	_ = root.AddSubdir("child", childDg)
	rootDg, err := Store(store, root)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	blobs, err := Closure(store, rootDg)
	if err != nil {
		t.Fatalf("Closure: %v", err)
	}
	want := map[cas.Digest]bool{rootDg: true, rootFileDg: true, childDg: true, childFileDg: true}
	if len(blobs) != len(want) {
		t.Fatalf("expected %d blobs, got %d: %+v", len(want), len(blobs), blobs)
	}
	for _, b := range blobs {
		if !want[b] {
			t.Fatalf("unexpected blob in closure: %v", b)
		}
	}
}
