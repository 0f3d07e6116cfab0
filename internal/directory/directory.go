// Package directory implements the Merkle-tree Directory Model of spec
// §4.2: directories serialized as three sorted lists (subdirectories,
// files, symlinks), whose own Digest is a pure function of their logical
// contents.
//
// Canonicalization follows the teacher's manifest-serialization approach
// (registry/storage/manifeststore.go stores content-addressed, strictly
// byte-stable manifests) generalized with RFC 8785 JSON Canonicalization
// (github.com/cyberphone/json-canonicalization, carried from the
// sk31337-open-component-model retrieval pack) rather than a hand-rolled
// sorted-field encoder, so "same logical contents always yield the same
// Digest" (spec §4.2 invariant) is a property of a real canonicalization
// library, not of manual diligence.
package directory

import (
	"encoding/json"
	"fmt"
	"sort"

	jcs "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/buildstream-go/core/internal/cas"
)

// FileType enumerates the kinds of entry a Directory can hold (spec §3).
type FileType int

const (
	DirectoryType FileType = iota
	RegularFile
	Symlink
	SpecialFile
)

// Entry is a DirectoryEntry of spec §3: (name, type, digest?, target?,
// is_executable?). Only the fields relevant to Type are populated; the
// JSON tags define the canonical wire shape that json-canonicalization
// then stabilizes.
type Entry struct {
	Name         string    `json:"name"`
	Digest       cas.Digest `json:"digest,omitempty"`
	IsExecutable bool      `json:"executable,omitempty"`
	Target       string    `json:"target,omitempty"`
}

// Directory is an ordered-on-serialization collection of Entries, split
// into three lists by type (spec §4.2). Names are unique across all three
// lists (spec §3 invariant).
type Directory struct {
	Subdirs []Entry `json:"directories"`
	Files   []Entry `json:"files"`
	Symlinks []Entry `json:"symlinks"`
}

// New returns an empty Directory.
func New() *Directory {
	return &Directory{}
}

// namesSeen returns a set of every name already present, used to enforce
// the at-most-one-list invariant on Add*.
func (d *Directory) namesSeen() map[string]bool {
	seen := make(map[string]bool, len(d.Subdirs)+len(d.Files)+len(d.Symlinks))
	for _, e := range d.Subdirs {
		seen[e.Name] = true
	}
	for _, e := range d.Files {
		seen[e.Name] = true
	}
	for _, e := range d.Symlinks {
		seen[e.Name] = true
	}
	return seen
}

// ErrDuplicateName is returned by Add* when name already exists in any of
// the three lists (spec §3 invariant: "a name appears in at most one of
// the three lists of a Directory").
type ErrDuplicateName struct{ Name string }

func (e *ErrDuplicateName) Error() string {
	return fmt.Sprintf("directory: duplicate entry name %q", e.Name)
}

// AddSubdir adds a subdirectory entry.
func (d *Directory) AddSubdir(name string, dg cas.Digest) error {
	if d.namesSeen()[name] {
		return &ErrDuplicateName{name}
	}
	d.Subdirs = append(d.Subdirs, Entry{Name: name, Digest: dg})
	return nil
}

// AddFile adds a file entry, optionally executable.
func (d *Directory) AddFile(name string, dg cas.Digest, executable bool) error {
	if d.namesSeen()[name] {
		return &ErrDuplicateName{name}
	}
	d.Files = append(d.Files, Entry{Name: name, Digest: dg, IsExecutable: executable})
	return nil
}

// AddSymlink adds a symlink entry pointing at target.
func (d *Directory) AddSymlink(name, target string) error {
	if d.namesSeen()[name] {
		return &ErrDuplicateName{name}
	}
	d.Symlinks = append(d.Symlinks, Entry{Name: name, Target: target})
	return nil
}

// RemoveEntry deletes name from whichever list contains it.
func (d *Directory) RemoveEntry(name string) {
	d.Subdirs = removeByName(d.Subdirs, name)
	d.Files = removeByName(d.Files, name)
	d.Symlinks = removeByName(d.Symlinks, name)
}

func removeByName(entries []Entry, name string) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the entry and its type for name, or ok=false.
func (d *Directory) Lookup(name string) (Entry, FileType, bool) {
	for _, e := range d.Subdirs {
		if e.Name == name {
			return e, DirectoryType, true
		}
	}
	for _, e := range d.Files {
		if e.Name == name {
			return e, RegularFile, true
		}
	}
	for _, e := range d.Symlinks {
		if e.Name == name {
			return e, Symlink, true
		}
	}
	return Entry{}, 0, false
}

// sortedCopy returns a Directory with each of the three lists sorted by
// name, leaving d itself untouched.
func (d *Directory) sortedCopy() *Directory {
	cp := &Directory{
		Subdirs:  append([]Entry(nil), d.Subdirs...),
		Files:    append([]Entry(nil), d.Files...),
		Symlinks: append([]Entry(nil), d.Symlinks...),
	}
	byName := func(s []Entry) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Name < s[j].Name }
	}
	sort.Slice(cp.Subdirs, byName(cp.Subdirs))
	sort.Slice(cp.Files, byName(cp.Files))
	sort.Slice(cp.Symlinks, byName(cp.Symlinks))
	return cp
}

// Serialize returns the canonical byte serialization of d: each of the
// three lists sorted by name, then encoded as RFC 8785 canonical JSON.
// This is what Digest hashes, so two Directory values with equal logical
// contents always serialize to the same bytes (spec §4.2 invariant).
func (d *Directory) Serialize() ([]byte, error) {
	sorted := d.sortedCopy()
	raw, err := json.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("directory: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("directory: canonicalize: %w", err)
	}
	return canon, nil
}

// Digest returns the content digest of d's canonical serialization,
// without storing it. Callers that need the blob persisted should use
// Store.
func (d *Directory) Digest() (cas.Digest, error) {
	b, err := d.Serialize()
	if err != nil {
		return cas.Digest{}, err
	}
	return cas.DigestBytes(b), nil
}
