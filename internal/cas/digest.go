// Package cas implements the content-addressable Object Store (spec §4.1):
// a flat, local-filesystem blob store keyed by the SHA-256 digest of each
// blob's bytes, laid out as objects/<hh>/<rest-of-hash> the way the
// teacher's registry/storage blob store shards by the first bytes of a
// digest (registry/storage/paths.go).
package cas

import (
	"fmt"
	"io"

	sha256simd "github.com/minio/sha256-simd"
	"github.com/opencontainers/go-digest"
)

// Digest is the (hash, size) pair of spec §3: a value type whose equality
// is structural, uniquely identifying a blob's content.
type Digest struct {
	Hash digest.Digest
	Size int64
}

// String renders a Digest as "<algorithm>:<hex>/<size>", used for log
// messages and ref file contents.
func (d Digest) String() string {
	return fmt.Sprintf("%s/%d", d.Hash, d.Size)
}

// IsZero reports whether d is the zero Digest (no content).
func (d Digest) IsZero() bool {
	return d.Hash == "" && d.Size == 0
}

// Equal reports structural equality, the invariant of spec §3: two blobs
// with equal digest are byte-identical, so digest equality alone is
// sufficient to compare.
func (d Digest) Equal(other Digest) bool {
	return d.Hash == other.Hash && d.Size == other.Size
}

// digestReader hashes r while counting bytes, returning the resulting
// Digest. It never buffers the whole stream in memory.
func digestReader(r io.Reader) (Digest, error) {
	h := sha256simd.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{
		Hash: digest.NewDigestFromBytes(digest.SHA256, h.Sum(nil)),
		Size: n,
	}, nil
}

// DigestBytes hashes a byte slice in memory, exported for higher layers
// (directory, cachekey) that compute a digest without going through the
// Store.
func DigestBytes(b []byte) Digest {
	return digestBytes(b)
}

// digestBytes hashes a byte slice in memory.
func digestBytes(b []byte) Digest {
	h := sha256simd.Sum256(b)
	return Digest{
		Hash: digest.NewDigestFromBytes(digest.SHA256, h[:]),
		Size: int64(len(b)),
	}
}

// ParseDigest parses a digest string of the form "sha256:<hex>" into the
// hash half of a Digest; Size must be supplied separately (it is not part
// of the wire digest string, matching opencontainers/go-digest semantics).
func ParseDigest(s string) (digest.Digest, error) {
	return digest.Parse(s)
}
