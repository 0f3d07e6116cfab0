package artifact

import (
	"context"
	"fmt"

	"github.com/buildstream-go/core/internal/cas"
)

// RemoteErrorKind classifies a remote failure (spec §7 CASRemoteError
// sub-kinds).
type RemoteErrorKind int

const (
	NotFound RemoteErrorKind = iota
	Unavailable
	CacheTooFull
	PermissionDenied
	Other
)

func (k RemoteErrorKind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case Unavailable:
		return "UNAVAILABLE"
	case CacheTooFull:
		return "CACHE_TOO_FULL"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	default:
		return "OTHER"
	}
}

// RemoteError is the typed CASRemoteError of spec §7, inspected with
// errors.As by the push/pull retry logic.
type RemoteError struct {
	Remote string
	Kind   RemoteErrorKind
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("artifact: remote %s: %s: %v", e.Remote, e.Kind, e.Err)
	}
	return fmt.Sprintf("artifact: remote %s: %s", e.Remote, e.Kind)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Remote is a push/pull-capable artifact cache backend (spec §4.4). The
// index half (HasURN) must not fetch the blob it names — it exists so
// CheckRemotesForElement can query existence cheaply.
type Remote interface {
	Name() string
	PushEnabled() bool
	PullEnabled() bool

	// HasURN performs an index-only lookup of urn, returning the Digest
	// it names without fetching the blob.
	HasURN(ctx context.Context, urn string) (cas.Digest, bool, error)

	// PutURN publishes urn → dg, replacing any existing entry. Push calls
	// HasURN first and skips PutURN when urn already points at dg (spec
	// §4.4 push protocol step 2).
	PutURN(ctx context.Context, urn string, dg cas.Digest) error

	HasBlob(ctx context.Context, dg cas.Digest) (bool, error)
	GetBlob(ctx context.Context, dg cas.Digest) ([]byte, error)
	PutBlob(ctx context.Context, dg cas.Digest, content []byte) error
}
