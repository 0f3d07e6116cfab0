package httpremote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/buildstream-go/core/internal/artifact"
	"github.com/buildstream-go/core/internal/cas"
)

// blobServer is a tiny in-memory stand-in for the HTTP CAS proxy this
// package talks to: GET/HEAD/PUT against /blobs/... and /index/....
func blobServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	store := map[string][]byte{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch req.Method {
		case http.MethodHead, http.MethodGet:
			body, ok := store[req.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if req.Method == http.MethodGet {
				w.Write(body)
			}
		case http.MethodPut:
			buf := make([]byte, req.ContentLength)
			req.Body.Read(buf)
			store[req.URL.Path] = buf
			w.WriteHeader(http.StatusOK)
		}
	}))
}

func TestPutBlobThenGetBlobRoundTrips(t *testing.T) {
	srv := blobServer(t)
	defer srv.Close()

	r := New(Config{Name: "test", BaseURL: srv.URL, PushEnabled: true, PullEnabled: true})
	dg := cas.DigestBytes([]byte("hello"))

	if err := r.PutBlob(context.Background(), dg, []byte("hello")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}

	has, err := r.HasBlob(context.Background(), dg)
	if err != nil || !has {
		t.Fatalf("HasBlob: has=%v err=%v", has, err)
	}

	got, err := r.GetBlob(context.Background(), dg)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("GetBlob returned %q", got)
	}
}

func TestGetBlobMissingReturnsNotFound(t *testing.T) {
	srv := blobServer(t)
	defer srv.Close()

	r := New(Config{Name: "test", BaseURL: srv.URL, PullEnabled: true})
	dg := cas.DigestBytes([]byte("nope"))

	_, err := r.GetBlob(context.Background(), dg)
	var re *artifact.RemoteError
	if !errors.As(err, &re) || re.Kind != artifact.NotFound {
		t.Fatalf("expected NOT_FOUND remote error for missing blob, got %v", err)
	}
}

func TestPutURNThenHasURNRoundTrips(t *testing.T) {
	srv := blobServer(t)
	defer srv.Close()

	r := New(Config{Name: "test", BaseURL: srv.URL, PushEnabled: true, PullEnabled: true})
	dg := cas.DigestBytes([]byte("artifact content"))

	if err := r.PutURN(context.Background(), "proj/elem/abc123", dg); err != nil {
		t.Fatalf("PutURN: %v", err)
	}

	got, ok, err := r.HasURN(context.Background(), "proj/elem/abc123")
	if err != nil || !ok {
		t.Fatalf("HasURN: ok=%v err=%v", ok, err)
	}
	if !got.Equal(dg) {
		t.Fatalf("HasURN returned %v, want %v", got, dg)
	}
}

func TestHasURNUnknownReturnsFalse(t *testing.T) {
	srv := blobServer(t)
	defer srv.Close()

	r := New(Config{Name: "test", BaseURL: srv.URL, PullEnabled: true})
	_, ok, err := r.HasURN(context.Background(), "nothing/here/x")
	if err != nil {
		t.Fatalf("HasURN: %v", err)
	}
	if ok {
		t.Fatal("expected HasURN to report false for an unknown urn")
	}
}
