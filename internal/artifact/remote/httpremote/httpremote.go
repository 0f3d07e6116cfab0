// Package httpremote implements artifact.Remote against a plain HTTP
// blob/index endpoint (a CAS proxy or static file server exposing
// GET/HEAD/PUT), the generic counterpart to s3remote for sites that
// don't run S3 but do run an HTTP cache. Retries on transient failures
// use github.com/hashicorp/go-retryablehttp, mirroring the push/pull
// retry-on-UNAVAILABLE behavior spec §4.4 asks every remote to support,
// rather than reimplementing backoff in internal/artifact/pushpull.go.
package httpremote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/buildstream-go/core/internal/artifact"
	"github.com/buildstream-go/core/internal/cas"
)

// Remote is an HTTP-backed artifact.Remote. Blobs live at
// "<baseURL>/blobs/<algorithm>/<hex>" and URN index entries at
// "<baseURL>/index/<urn>" (a small body holding the digest string),
// the same layout s3remote uses under its bucket prefix.
type Remote struct {
	name        string
	baseURL     string
	client      *retryablehttp.Client
	pushEnabled bool
	pullEnabled bool
}

// Config configures a Remote.
type Config struct {
	Name        string
	BaseURL     string // no trailing slash
	PushEnabled bool
	PullEnabled bool
	MaxRetries  int
	RetryWait   time.Duration
}

// New constructs a Remote. The retryablehttp client retries on 5xx and
// connection errors with exponential backoff; its own request logging is
// discarded (the teacher keeps its HTTP client libraries quiet by
// default; callers observe outcomes via artifact.RemoteError instead).
func New(cfg Config) *Remote {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	if client.RetryMax == 0 {
		client.RetryMax = 3
	}
	if cfg.RetryWait > 0 {
		client.RetryWaitMin = cfg.RetryWait
		client.RetryWaitMax = cfg.RetryWait * 4
	}
	client.Logger = log.New(io.Discard, "", 0)

	return &Remote{
		name:        cfg.Name,
		baseURL:     cfg.BaseURL,
		client:      client,
		pushEnabled: cfg.PushEnabled,
		pullEnabled: cfg.PullEnabled,
	}
}

func (r *Remote) Name() string      { return r.name }
func (r *Remote) PushEnabled() bool { return r.pushEnabled }
func (r *Remote) PullEnabled() bool { return r.pullEnabled }

func (r *Remote) blobURL(dg cas.Digest) string {
	return fmt.Sprintf("%s/blobs/%s/%s", r.baseURL, dg.Hash.Algorithm(), dg.Hash.Encoded())
}

func (r *Remote) indexURL(urn string) string {
	return r.baseURL + "/index/" + urn
}

// HasBlob implements artifact.Remote.
func (r *Remote) HasBlob(ctx context.Context, dg cas.Digest) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, r.blobURL(dg), nil)
	if err != nil {
		return false, fmt.Errorf("httpremote: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, r.classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, r.classifyStatus(resp.StatusCode)
	}
	return true, nil
}

// GetBlob implements artifact.Remote.
func (r *Remote) GetBlob(ctx context.Context, dg cas.Digest) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.blobURL(dg), nil)
	if err != nil {
		return nil, fmt.Errorf("httpremote: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, r.classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, &artifact.RemoteError{Remote: r.name, Kind: artifact.NotFound, Err: fmt.Errorf("blob not found")}
	}
	if resp.StatusCode >= 300 {
		return nil, r.classifyStatus(resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// PutBlob implements artifact.Remote.
func (r *Remote) PutBlob(ctx context.Context, dg cas.Digest, content []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, r.blobURL(dg), bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("httpremote: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return r.classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return r.classifyStatus(resp.StatusCode)
	}
	return nil
}

// HasURN implements artifact.Remote: an index-only lookup that never
// fetches blob content.
func (r *Remote) HasURN(ctx context.Context, urn string) (cas.Digest, bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.indexURL(urn), nil)
	if err != nil {
		return cas.Digest{}, false, fmt.Errorf("httpremote: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return cas.Digest{}, false, r.classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return cas.Digest{}, false, nil
	}
	if resp.StatusCode >= 300 {
		return cas.Digest{}, false, r.classifyStatus(resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cas.Digest{}, false, fmt.Errorf("httpremote: read index body: %w", err)
	}
	dg, err := cas.ParseRefContent(string(raw))
	if err != nil {
		return cas.Digest{}, false, fmt.Errorf("httpremote: parse index body: %w", err)
	}
	return dg, true, nil
}

// PutURN implements artifact.Remote.
func (r *Remote) PutURN(ctx context.Context, urn string, dg cas.Digest) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, r.indexURL(urn), bytes.NewReader([]byte(dg.String())))
	if err != nil {
		return fmt.Errorf("httpremote: build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return r.classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return r.classifyStatus(resp.StatusCode)
	}
	return nil
}

// classify wraps a transport-level failure (retries exhausted) as
// UNAVAILABLE: retryablehttp only returns an error once it has already
// given up retrying connection resets, timeouts and 5xx responses.
func (r *Remote) classify(err error) error {
	return &artifact.RemoteError{Remote: r.name, Kind: artifact.Unavailable, Err: err}
}

func (r *Remote) classifyStatus(code int) error {
	switch {
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return &artifact.RemoteError{Remote: r.name, Kind: artifact.PermissionDenied, Err: fmt.Errorf("http %d", code)}
	case code == http.StatusInsufficientStorage:
		return &artifact.RemoteError{Remote: r.name, Kind: artifact.CacheTooFull, Err: fmt.Errorf("http %d", code)}
	case code >= 500:
		return &artifact.RemoteError{Remote: r.name, Kind: artifact.Unavailable, Err: fmt.Errorf("http %d", code)}
	default:
		return &artifact.RemoteError{Remote: r.name, Kind: artifact.Other, Err: fmt.Errorf("http %d", code)}
	}
}
