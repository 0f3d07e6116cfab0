package graph

// Resolve transitions e from INCONSISTENT to RESOLVED: its sources have
// refs, even if not yet locally present (spec §4.6).
func (e *Element) Resolve() {
	if e.State == Inconsistent {
		e.State = Resolved
	}
}

// MarkFetched transitions e from RESOLVED to FETCHED: its sources are now
// locally available.
func (e *Element) MarkFetched() {
	if e.State == Resolved {
		e.State = Fetched
	}
}

// RefreshBuildable recomputes whether e is BUILDABLE — FETCHED and every
// BUILD dependency is CACHED — advancing its state if so. It returns the
// resulting readiness so callers (the Build queue's status()) don't need
// to duplicate the check.
func (e *Element) RefreshBuildable() bool {
	if e.State != Fetched && e.State != Buildable {
		return false
	}
	for _, dep := range e.BuildDependencies() {
		if dep.State != Cached {
			if e.State == Buildable {
				e.State = Fetched // a dependency regressed (e.g. evicted); back off
			}
			return false
		}
	}
	e.State = Buildable
	return true
}

// MarkCached transitions e to CACHED once its artifact exists locally
// under its strong key.
func (e *Element) MarkCached(strongKey string) {
	e.StrongKey = strongKey
	e.State = Cached
}

// MarkFailed transitions e to FAILED from any state, spec §4.6 / §7: a
// Build failure marks the element FAILED regardless of where it was.
func (e *Element) MarkFailed() {
	e.State = Failed
}
