// Package artifact implements the Artifact Cache (spec §4.4): named
// references from an artifact name to an Artifact record's digest, LRU
// eviction under a configured quota, and push/pull against remote
// caches.
//
// Grounded on buildstream's own `_artifactcache.py` and `_artifact.py`
// (original_source/) for the record shape and the push/pull sequencing,
// and on the teacher's `registry/storage` blob-plus-reference-index
// split (refs point at digests; blobs live in the Object Store) for the
// on-disk shape.
package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/buildstream-go/core/internal/cas"
)

// ArtifactMediaType identifies an Artifact record in the OCI descriptor
// shape Descriptor returns, the same content-typed-descriptor idiom the
// teacher's manifest packages (manifest/ocischema, manifest/schema2)
// build their own media types on.
const ArtifactMediaType = "application/vnd.buildstream.artifact.v1+json"

// Artifact is the structured record of spec §3: the strong/weak keys
// that identify it, the digest of its output file tree, and optional
// digests for a buildtree, captured sources, and opaque public data, plus
// any log blobs captured during the build.
type Artifact struct {
	StrongKey        string      `json:"strong_key"`
	WeakKey          string      `json:"weak_key"`
	FilesDigest      cas.Digest  `json:"files_digest"`
	BuildtreeDigest  *cas.Digest `json:"buildtree_digest,omitempty"`
	SourcesDigest    *cas.Digest `json:"sources_digest,omitempty"`
	PublicDataDigest *cas.Digest `json:"public_data_digest,omitempty"`
	Logs             []cas.Digest `json:"logs,omitempty"`
}

// Descriptor returns a's output file tree as an OCI Content Descriptor
// (media type, digest, size): the shape spec §6's remote asset URN
// protocol borrows from the OCI Distribution/Referrers API, letting an
// HTTP-based remote asset server describe an artifact the same way the
// teacher's registry describes a manifest.
func (a *Artifact) Descriptor() v1.Descriptor {
	return v1.Descriptor{
		MediaType: ArtifactMediaType,
		Digest:    a.FilesDigest.Hash,
		Size:      a.FilesDigest.Size,
	}
}

// Store persists a's canonical JSON serialization as a blob and returns
// its Digest, the "artifact proto digest" named refs point at.
func Store(store *cas.Store, a *Artifact) (cas.Digest, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return cas.Digest{}, fmt.Errorf("artifact: marshal: %w", err)
	}
	return store.PutBytes(b)
}

// Load parses an Artifact from its stored Digest.
func Load(store *cas.Store, dg cas.Digest) (*Artifact, error) {
	raw, err := store.Get(dg)
	if err != nil {
		return nil, err
	}
	a := &Artifact{}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("artifact: unmarshal blob %s: %w", dg, err)
	}
	return a, nil
}

// Ref is an ArtifactRef (spec §3): "project_name/element_normal_name/cache_key",
// naming a reachable artifact. It maps 1:1 onto the Object Store's ref
// namespace (internal/cas's refs/heads/<name>).
type Ref string

// NewRef builds a Ref from its three components, normalizing path
// separators out of the element name the way the spec's "element_normal_name"
// is defined (path separators replaced, so a ref is always exactly three
// slash-separated segments).
func NewRef(project, elementName, key string) Ref {
	normal := strings.ReplaceAll(elementName, "/", "-")
	return Ref(fmt.Sprintf("%s/%s/%s", project, normal, key))
}

// Project, Element, and Key split a Ref back into its components.
func (r Ref) Project() string {
	parts := strings.SplitN(string(r), "/", 3)
	if len(parts) < 1 {
		return ""
	}
	return parts[0]
}

func (r Ref) Element() string {
	parts := strings.SplitN(string(r), "/", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (r Ref) Key() string {
	parts := strings.SplitN(string(r), "/", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// URN returns the remote asset URN template of spec §6:
// "urn:fdc:buildstream.build:2020:artifact:<artifact-name>".
func (r Ref) URN() string {
	return fmt.Sprintf("urn:fdc:buildstream.build:2020:artifact:%s", r)
}
