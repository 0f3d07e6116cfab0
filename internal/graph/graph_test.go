package graph

import "testing"

func TestStateMachineBuildable(t *testing.T) {
	base := NewElement("base", "manual", nil)
	base.State = Cached

	top := NewElement("top", "manual", nil)
	top.DependOn(base, Build)
	top.Resolve()
	top.MarkFetched()

	if top.RefreshBuildable() != true {
		t.Fatalf("expected top to be buildable once its build dep is cached")
	}
	if top.State != Buildable {
		t.Fatalf("expected state BUILDABLE, got %s", top.State)
	}
}

func TestRefreshBuildableBlockedByUncachedDep(t *testing.T) {
	base := NewElement("base", "manual", nil)
	base.State = Fetched

	top := NewElement("top", "manual", nil)
	top.DependOn(base, Build)
	top.Resolve()
	top.MarkFetched()

	if top.RefreshBuildable() {
		t.Fatalf("expected top not buildable while base is uncached")
	}
}

func TestTraverseScopeRun(t *testing.T) {
	libc := NewElement("libc", "manual", nil)
	lib := NewElement("lib", "manual", nil)
	lib.DependOn(libc, Runtime)
	app := NewElement("app", "manual", nil)
	app.DependOn(lib, Build)
	app.DependOn(lib, Runtime)

	elems, err := Traverse(app, ScopeRun)
	if err != nil {
		t.Fatal(err)
	}
	names := namesOf(elems)
	if len(names) != 3 || names[0] != "app" {
		t.Fatalf("expected [app lib libc]-ish closure, got %v", names)
	}
}

func TestTraverseScopeBuildExcludesRoot(t *testing.T) {
	base := NewElement("base", "manual", nil)
	top := NewElement("top", "manual", nil)
	top.DependOn(base, Build)

	elems, err := Traverse(top, ScopeBuild)
	if err != nil {
		t.Fatal(err)
	}
	names := namesOf(elems)
	if len(names) != 1 || names[0] != "base" {
		t.Fatalf("expected [base], got %v", names)
	}
}

func TestBuildCycleIsError(t *testing.T) {
	a := NewElement("a", "manual", nil)
	b := NewElement("b", "manual", nil)
	a.DependOn(b, Build)
	b.DependOn(a, Build)

	if _, err := Traverse(a, ScopeAll); err == nil {
		t.Fatal("expected BUILD cycle error")
	}
}

func TestRuntimeCycleIsPermitted(t *testing.T) {
	a := NewElement("a", "manual", nil)
	b := NewElement("b", "manual", nil)
	a.DependOn(b, Runtime)
	b.DependOn(a, Runtime)

	if _, err := Traverse(a, ScopeAll); err != nil {
		t.Fatalf("expected RUNTIME cycle to be permitted, got %v", err)
	}
}

func TestBuildPlanDepthOrdering(t *testing.T) {
	root := NewElement("root", "manual", nil)
	mid := NewElement("mid", "manual", nil)
	leaf := NewElement("leaf", "manual", nil)
	mid.DependOn(leaf, Build)
	root.DependOn(mid, Build)

	plan, err := BuildPlan([]*Element{root})
	if err != nil {
		t.Fatal(err)
	}
	names := namesOf(plan)
	if len(names) != 3 || names[0] != "leaf" || names[2] != "root" {
		t.Fatalf("expected leaf-first, root-last ordering, got %v", names)
	}
}

func TestBuildPlanSkipsCachedElements(t *testing.T) {
	root := NewElement("root", "manual", nil)
	dep := NewElement("dep", "manual", nil)
	dep.State = Cached
	root.DependOn(dep, Build)

	plan, err := BuildPlan([]*Element{root})
	if err != nil {
		t.Fatal(err)
	}
	names := namesOf(plan)
	if len(names) != 1 || names[0] != "root" {
		t.Fatalf("expected only root in plan, got %v", names)
	}
}

func namesOf(elems []*Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.Name
	}
	return out
}
