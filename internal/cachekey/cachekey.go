// Package cachekey implements the Cache Key Engine (spec §4.5): a
// deterministic SHA-256 hex digest over an element's kind, its expanded
// configuration, its source descriptors, and its dependencies' keys.
//
// Canonicalization reuses the same RFC 8785 JSON Canonicalization Scheme
// (github.com/cyberphone/json-canonicalization) the Directory Model uses
// for its own serialization (internal/directory), so both the Merkle tree
// and the cache key share one canonical-bytes answer rather than
// inventing a second ad-hoc encoding.
package cachekey

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	sha256simd "github.com/minio/sha256-simd"
	jsoncanonicalizer "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// SourceDescriptor is one source entry contributing to an element's key:
// its plugin kind plus a resolved ref (the exact content identifier, e.g.
// a git commit or a tarball checksum — resolution itself is out of
// scope, spec §1).
type SourceDescriptor struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// DependencyKey names one dependency for weak-key purposes (by name only)
// and, once computed, its strong key.
type DependencyKey struct {
	Name       string `json:"name"`
	StrongKey  string `json:"strong_key,omitempty"`
	IsRuntime  bool   `json:"-"`
	AffectsKey bool   `json:"-"` // per element-kind rule: does this runtime dep affect behavior (spec §4.5 step 5)
}

// ElementInput gathers everything spec §4.5 folds into a cache key for
// one element. Configuration and Variables must already have variables
// expanded — substitution itself is the out-of-scope configuration
// loader's job (spec §1).
type ElementInput struct {
	Kind           string             `json:"kind"`
	Configuration  any                `json:"configuration"`
	Sources        []SourceDescriptor `json:"sources"`
	BuildDeps      []DependencyKey    `json:"build_dependencies"`
	RuntimeDeps    []DependencyKey    `json:"runtime_dependencies"`
	RuntimeEnviron map[string]string  `json:"runtime_environment,omitempty"` // target arch/os, spec §4.5 step 6
}

// canonicalTree is the serialized shape actually hashed: field order
// within this struct is irrelevant (json.Marshal on a struct with tags
// plus JCS transform sorts every object's keys lexicographically), but
// the Go field order here documents the spec's six-step recipe.
type canonicalTree struct {
	Kind          string             `json:"kind"`
	Configuration any                `json:"configuration"`
	Sources       []SourceDescriptor `json:"sources"`
	BuildDeps     []string           `json:"build_dependencies"` // strong keys, in declared order
	RuntimeDeps   []string           `json:"runtime_dependencies,omitempty"`
	Environment   map[string]string  `json:"runtime_environment,omitempty"`
}

// Strong computes the strong cache key: dependencies contribute their own
// strong keys (spec §4.5 step 4-5). Every BuildDeps/RuntimeDeps entry must
// already carry a non-empty StrongKey (runtime entries only when
// AffectsKey is set) — the caller computes dependencies' keys first.
func Strong(in ElementInput) (string, error) {
	tree := canonicalTree{
		Kind:          in.Kind,
		Configuration: in.Configuration,
		Sources:       in.Sources,
		Environment:   in.RuntimeEnviron,
	}
	for _, d := range in.BuildDeps {
		if d.StrongKey == "" {
			return "", fmt.Errorf("cachekey: build dependency %q has no strong key computed", d.Name)
		}
		tree.BuildDeps = append(tree.BuildDeps, d.StrongKey)
	}
	for _, d := range in.RuntimeDeps {
		if !d.AffectsKey {
			continue
		}
		if d.StrongKey == "" {
			return "", fmt.Errorf("cachekey: runtime dependency %q has no strong key computed", d.Name)
		}
		tree.RuntimeDeps = append(tree.RuntimeDeps, d.StrongKey)
	}
	return hashCanonical(tree)
}

// Weak computes the weak cache key: dependencies contribute only their
// *names*, not their content (spec §4.5, "a weak-key cache hit implies
// the artifact is reusable across content-equivalent rebuilds of
// dependencies").
func Weak(in ElementInput) (string, error) {
	buildNames := depNames(in.BuildDeps)
	var runtimeNames []string
	for _, d := range in.RuntimeDeps {
		if d.AffectsKey {
			runtimeNames = append(runtimeNames, d.Name)
		}
	}
	tree := canonicalTree{
		Kind:          in.Kind,
		Configuration: in.Configuration,
		Sources:       in.Sources,
		Environment:   in.RuntimeEnviron,
		BuildDeps:     buildNames,
		RuntimeDeps:   runtimeNames,
	}
	return hashCanonical(tree)
}

func depNames(deps []DependencyKey) []string {
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names
}

// hashCanonical serializes v to JSON, transforms it to RFC 8785 canonical
// form (sorted object keys, fixed number/string encodings), and returns
// its SHA-256 hex digest. Recomputing over bit-identical input always
// yields the same bytes — the determinism invariant of spec §8.
func hashCanonical(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cachekey: marshal: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("cachekey: canonicalize: %w", err)
	}
	sum := sha256simd.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
