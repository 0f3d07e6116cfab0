package vdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildstream-go/core/internal/cas"
)

func newTestStore(t *testing.T) *cas.Store {
	t.Helper()
	s, err := cas.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cas.Open: %v", err)
	}
	return s
}

func TestImportFromFSOverlayRules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	srcRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcRoot, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcRoot, "bin", "tool"), []byte("v2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcRoot, "README"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewFSDirectory(srcRoot)

	dst := NewCASDirectory(store)
	// Pre-populate dst with an empty "bin" dir and an existing README.
	if _, err := dst.Descend(ctx, []string{"bin"}, true); err != nil {
		t.Fatal(err)
	}
	dst.setFile("README", cas.Digest{}, false)

	result, err := dst.Import(ctx, src, ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Overwritten) != 1 || result.Overwritten[0] != "README" {
		t.Fatalf("expected README overwritten, got %+v", result)
	}

	paths, err := dst.ListRelativePaths(ctx)
	if err != nil {
		t.Fatalf("ListRelativePaths: %v", err)
	}
	found := map[string]bool{}
	for _, p := range paths {
		found[p] = true
	}
	if !found["bin/tool"] || !found["README"] {
		t.Fatalf("expected bin/tool and README in %v", paths)
	}
}

func TestImportIgnoresNonEmptyDirectoryCollision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dst := NewCASDirectory(store)
	existingChild, err := dst.Descend(ctx, []string{"data"}, true)
	if err != nil {
		t.Fatal(err)
	}
	existingChild.(*CASDirectory).setFile("keep", cas.Digest{}, false)

	srcRoot := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcRoot, "data"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcRoot, "data", "incoming"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewFSDirectory(srcRoot)

	result, err := dst.Import(ctx, src, ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Ignored) != 1 || result.Ignored[0] != "data" {
		t.Fatalf("expected data/ ignored, got %+v", result)
	}

	paths, err := dst.ListRelativePaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range paths {
		if p == "data/incoming" {
			t.Fatalf("incoming should not have been merged into non-empty dir: %v", paths)
		}
	}
}

func TestResolveAbsoluteSymlinkRejectedByDefault(t *testing.T) {
	store := newTestStore(t)
	root := NewCASDirectory(store)
	root.setSymlink("link", "/etc/passwd")

	r := newResolver(false, false)
	_, _, err := r.resolve("link", root)
	re, ok := err.(*ResolutionError)
	if !ok || re.Kind != AbsoluteSymlink {
		t.Fatalf("expected AbsoluteSymlink error, got %v", err)
	}
}

func TestResolveInfiniteSymlinkDetected(t *testing.T) {
	store := newTestStore(t)
	root := NewCASDirectory(store)
	root.setSymlink("a", "b")
	root.setSymlink("b", "a")

	r := newResolver(true, false)
	_, _, err := r.resolve("a", root)
	re, ok := err.(*ResolutionError)
	if !ok || re.Kind != InfiniteSymlink {
		t.Fatalf("expected InfiniteSymlink error, got %v", err)
	}
}
