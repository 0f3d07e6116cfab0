package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/buildstream-go/core/internal/cas"
	"github.com/buildstream-go/core/internal/directory"
)

// fakeRemote is an in-memory artifact.Remote for exercising push/pull
// without a real network dependency.
type fakeRemote struct {
	mu    sync.Mutex
	name  string
	push  bool
	pull  bool
	blobs map[cas.Digest][]byte
	index map[string]cas.Digest
}

func newFakeRemote(name string, push, pull bool) *fakeRemote {
	return &fakeRemote{name: name, push: push, pull: pull, blobs: map[cas.Digest][]byte{}, index: map[string]cas.Digest{}}
}

func (f *fakeRemote) Name() string      { return f.name }
func (f *fakeRemote) PushEnabled() bool { return f.push }
func (f *fakeRemote) PullEnabled() bool { return f.pull }

func (f *fakeRemote) HasURN(ctx context.Context, urn string) (cas.Digest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dg, ok := f.index[urn]
	return dg, ok, nil
}

func (f *fakeRemote) PutURN(ctx context.Context, urn string, dg cas.Digest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index[urn] = dg
	return nil
}

func (f *fakeRemote) HasBlob(ctx context.Context, dg cas.Digest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[dg]
	return ok, nil
}

func (f *fakeRemote) GetBlob(ctx context.Context, dg cas.Digest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.blobs[dg]
	if !ok {
		return nil, &RemoteError{Remote: f.name, Kind: NotFound}
	}
	return content, nil
}

func (f *fakeRemote) PutBlob(ctx context.Context, dg cas.Digest, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[dg] = content
	return nil
}

func newTestStore(t *testing.T) *cas.Store {
	t.Helper()
	s, err := cas.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cas.Open: %v", err)
	}
	return s
}

func TestCommitContainsListRemove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := New(store, 0)

	filesDg, err := store.PutBytes([]byte("directory blob"))
	if err != nil {
		t.Fatal(err)
	}
	ref := NewRef("proj", "hello.bst", "abc123")

	if c.Contains(ref) {
		t.Fatal("expected ref to be absent before commit")
	}
	if _, err := c.Commit(ref, "abc123", "weak1", filesDg, nil, nil, nil, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !c.Contains(ref) {
		t.Fatal("expected ref to be present after commit")
	}

	refs, err := c.ListArtifacts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0] != ref {
		t.Fatalf("expected [%s], got %v", ref, refs)
	}

	if err := c.Remove(ref); err != nil {
		t.Fatal(err)
	}
	if c.Contains(ref) {
		t.Fatal("expected ref removed")
	}
}

func TestLinkKeyAliasesExistingArtifact(t *testing.T) {
	store := newTestStore(t)
	c := New(store, 0)

	filesDg, _ := store.PutBytes([]byte("x"))
	weakRef := NewRef("proj", "hello.bst", "weakkey")
	if _, err := c.Commit(weakRef, "weakkey", "weakkey", filesDg, nil, nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	if err := c.LinkKey("proj", "hello.bst", "weakkey", "strongkey"); err != nil {
		t.Fatalf("LinkKey: %v", err)
	}
	strongRef := NewRef("proj", "hello.bst", "strongkey")
	if !c.Contains(strongRef) {
		t.Fatal("expected strong key ref to exist after LinkKey")
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	ctx := context.Background()
	localStore := newTestStore(t)
	remote := newFakeRemote("test-remote", true, true)
	c := New(localStore, 0, remote)

	fileDg, err := localStore.PutBytes([]byte("file contents"))
	if err != nil {
		t.Fatal(err)
	}
	files := directory.New()
	if err := files.AddFile("f", fileDg, false); err != nil {
		t.Fatal(err)
	}
	filesDg, err := directory.Store(localStore, files)
	if err != nil {
		t.Fatal(err)
	}
	ref := NewRef("proj", "hello.bst", "k1")
	if _, err := c.Commit(ref, "k1", "k1", filesDg, nil, nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	updated, err := c.Push(ctx, ref)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !updated {
		t.Fatal("expected Push to report an update")
	}

	if err := c.Remove(ref); err != nil {
		t.Fatal(err)
	}
	if c.Contains(ref) {
		t.Fatal("expected ref removed before pull")
	}

	ok, err := c.Pull(ctx, ref, false)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if !ok {
		t.Fatal("expected Pull to succeed")
	}
	if !c.Contains(ref) {
		t.Fatal("expected ref restored after pull")
	}

	has, err := c.CheckRemotesForElement(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("expected CheckRemotesForElement to find the pushed artifact")
	}
}

func TestEvictUnderQuotaRemovesOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	c := New(store, 10) // tiny quota forces eviction

	base := time.Now().Add(-time.Hour)
	for i, key := range []string{"k1", "k2", "k3"} {
		content := []byte{byte(i), byte(i), byte(i), byte(i), byte(i)}
		fileDg, err := store.PutBytes(content)
		if err != nil {
			t.Fatal(err)
		}
		files := directory.New()
		if err := files.AddFile("f", fileDg, false); err != nil {
			t.Fatal(err)
		}
		dg, err := directory.Store(store, files)
		if err != nil {
			t.Fatal(err)
		}
		ref := NewRef("proj", "hello.bst", key)
		if _, err := c.Commit(ref, key, key, dg, nil, nil, nil, nil); err != nil {
			t.Fatal(err)
		}
		// Distinct mtimes make the LRU order k1, k2, k3.
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(filepath.Join(store.Root(), "refs", "heads", "proj", "hello.bst", key), mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	evicted, err := c.EvictUnderQuota(ctx)
	if err != nil {
		t.Fatalf("EvictUnderQuota: %v", err)
	}
	if len(evicted) == 0 {
		t.Fatal("expected at least one ref evicted under a 10-byte quota")
	}
	if evicted[0] != NewRef("proj", "hello.bst", "k1") {
		t.Fatalf("expected the oldest ref evicted first, got %v", evicted)
	}
}
