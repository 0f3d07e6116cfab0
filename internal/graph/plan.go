package graph

import "sort"

// BuildPlan returns a depth-sorted ordering of elements that still need
// building for the given targets (spec §4.6): for every target, walk its
// RUN dependencies to discover required elements, and for every uncached
// element discovered, walk its BUILD dependencies (with their own RUN
// closures) the same way; among the uncached ones, compute each
// element's BUILD-dependency depth (the longest BUILD chain beneath it);
// sort by that depth ascending, so the deepest dependencies come first
// and every element follows the elements it build-depends on,
// tie-broken by first-discovered order.
func BuildPlan(targets []*Element) ([]*Element, error) {
	required := make(map[*Element]bool)
	var discoveryOrder []*Element

	pending := append([]*Element(nil), targets...)
	for len(pending) > 0 {
		t := pending[0]
		pending = pending[1:]
		closure, err := walkRuntimeClosure(t)
		if err != nil {
			return nil, err
		}
		for _, e := range closure {
			if !required[e] {
				required[e] = true
				discoveryOrder = append(discoveryOrder, e)
				if e.State != Cached {
					pending = append(pending, e.BuildDependencies()...)
				}
			}
		}
	}

	var uncached []*Element
	for _, e := range discoveryOrder {
		if e.State != Cached {
			uncached = append(uncached, e)
		}
	}

	depth := make(map[*Element]int)
	state := make(map[*Element]visitState)
	var computeDepth func(e *Element) (int, error)
	computeDepth = func(e *Element) (int, error) {
		if d, ok := depth[e]; ok {
			return d, nil
		}
		if state[e] == visiting {
			return 0, &CycleError{Path: []string{e.Name}}
		}
		state[e] = visiting
		max := 0
		for _, bd := range e.BuildDependencies() {
			d, err := computeDepth(bd)
			if err != nil {
				return 0, err
			}
			if d+1 > max {
				max = d + 1
			}
		}
		state[e] = done
		depth[e] = max
		return max, nil
	}

	for _, e := range uncached {
		if _, err := computeDepth(e); err != nil {
			return nil, err
		}
	}

	order := make(map[*Element]int, len(discoveryOrder))
	for i, e := range discoveryOrder {
		order[e] = i
	}

	sort.SliceStable(uncached, func(i, j int) bool {
		if depth[uncached[i]] != depth[uncached[j]] {
			return depth[uncached[i]] < depth[uncached[j]]
		}
		return order[uncached[i]] < order[uncached[j]]
	})

	return uncached, nil
}
