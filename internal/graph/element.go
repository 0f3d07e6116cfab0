// Package graph implements the Element / Dependency Graph (spec §4.6): a
// DAG of Elements connected by BUILD and RUNTIME edges, a per-element
// state machine, traversal scopes, and build-plan depth sorting.
//
// Grounded on buildstream's own element/pipeline traversal
// (original_source/) for the scope semantics, and on
// `sk31337-open-component-model`'s `bindings/go/dag` package for the
// visiting/done walk state used here to report BUILD cycles and cut
// RUNTIME cycles short. The walks themselves are recursive depth-first
// searches.
package graph

// EdgeKind distinguishes the two dependency edge kinds of spec §4.6.
type EdgeKind int

const (
	Build EdgeKind = iota
	Runtime
)

// State is an Element's position in the state machine of spec §3/§4.6.
type State int

const (
	Inconsistent State = iota
	Resolved
	Fetched
	Buildable
	Cached
	Failed
)

func (s State) String() string {
	switch s {
	case Inconsistent:
		return "INCONSISTENT"
	case Resolved:
		return "RESOLVED"
	case Fetched:
		return "FETCHED"
	case Buildable:
		return "BUILDABLE"
	case Cached:
		return "CACHED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Dependency is one edge out of an Element.
type Dependency struct {
	Element *Element
	Kind    EdgeKind
}

// Element is a declarative build unit (spec §3): a name, kind,
// configuration, its source list, its dependency edges, and its current
// state. Configuration is opaque here — the YAML/variable-substitution
// loader that produces it is out of scope (spec §1).
type Element struct {
	Name          string
	Kind          string
	Configuration any

	Dependencies []Dependency

	State     State
	StrongKey string
	WeakKey   string
}

// NewElement returns an Element in the INCONSISTENT state.
func NewElement(name, kind string, config any) *Element {
	return &Element{Name: name, Kind: kind, Configuration: config, State: Inconsistent}
}

// DependOn adds a dependency edge of the given kind. Duplicate edges
// (same target, same kind) are collapsed.
func (e *Element) DependOn(dep *Element, kind EdgeKind) {
	for _, d := range e.Dependencies {
		if d.Element == dep && d.Kind == kind {
			return
		}
	}
	e.Dependencies = append(e.Dependencies, Dependency{Element: dep, Kind: kind})
}

// BuildDependencies returns the elements e depends on via a BUILD edge,
// in declared order.
func (e *Element) BuildDependencies() []*Element {
	var out []*Element
	for _, d := range e.Dependencies {
		if d.Kind == Build {
			out = append(out, d.Element)
		}
	}
	return out
}

// RuntimeDependencies returns the elements e depends on via a RUNTIME
// edge, in declared order.
func (e *Element) RuntimeDependencies() []*Element {
	var out []*Element
	for _, d := range e.Dependencies {
		if d.Kind == Runtime {
			out = append(out, d.Element)
		}
	}
	return out
}
