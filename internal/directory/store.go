package directory

import (
	"encoding/json"
	"fmt"

	"github.com/buildstream-go/core/internal/cas"
)

// Store persists d's canonical serialization as a blob in store and
// returns the resulting Digest — "obtain its Digest (triggers
// serialization + store)" per spec §4.2.
func Store(store *cas.Store, d *Directory) (cas.Digest, error) {
	b, err := d.Serialize()
	if err != nil {
		return cas.Digest{}, err
	}
	return store.PutBytes(b)
}

// Load parses a Directory from its stored Digest (spec §4.2, "Parse a
// Directory from a Digest").
func Load(store *cas.Store, dg cas.Digest) (*Directory, error) {
	raw, err := store.Get(dg)
	if err != nil {
		return nil, err
	}
	d := &Directory{}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("directory: unmarshal blob %s: %w", dg, err)
	}
	return d, nil
}

// Closure computes the transitive closure of blobs referenced by a
// Directory: every file blob, plus the directory blobs of every
// descendant subdirectory, recursively. Used for push/pull and GC (spec
// §4.2).
func Closure(store *cas.Store, root cas.Digest) ([]cas.Digest, error) {
	seen := make(map[cas.Digest]bool)
	var out []cas.Digest
	var walk func(cas.Digest) error
	walk = func(dg cas.Digest) error {
		if seen[dg] {
			return nil
		}
		seen[dg] = true
		out = append(out, dg)

		d, err := Load(store, dg)
		if err != nil {
			return err
		}
		for _, f := range d.Files {
			if !seen[f.Digest] {
				seen[f.Digest] = true
				out = append(out, f.Digest)
			}
		}
		for _, sub := range d.Subdirs {
			if err := walk(sub.Digest); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}
