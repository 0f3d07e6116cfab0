package cachekey

import "testing"

func baseInput() ElementInput {
	return ElementInput{
		Kind:          "manual",
		Configuration: map[string]any{"commands": []string{"make", "make install"}},
		Sources:       []SourceDescriptor{{Kind: "git", Ref: "abc123"}},
	}
}

func TestStrongKeyDeterministic(t *testing.T) {
	in := baseInput()
	k1, err := Strong(in)
	if err != nil {
		t.Fatalf("Strong: %v", err)
	}
	k2, err := Strong(in)
	if err != nil {
		t.Fatalf("Strong: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected deterministic strong key, got %s and %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%s)", len(k1), k1)
	}
}

func TestStrongKeyChangesWithConfiguration(t *testing.T) {
	in1 := baseInput()
	in2 := baseInput()
	in2.Configuration = map[string]any{"commands": []string{"make"}}

	k1, err := Strong(in1)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := Strong(in2)
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Fatalf("expected different keys for different configuration")
	}
}

func TestStrongKeyRequiresDependencyKeys(t *testing.T) {
	in := baseInput()
	in.BuildDeps = []DependencyKey{{Name: "base"}}
	if _, err := Strong(in); err == nil {
		t.Fatal("expected error for missing dependency strong key")
	}
}

func TestWeakKeyIgnoresDependencyContent(t *testing.T) {
	in1 := baseInput()
	in1.BuildDeps = []DependencyKey{{Name: "base", StrongKey: "aaaa"}}
	in2 := baseInput()
	in2.BuildDeps = []DependencyKey{{Name: "base", StrongKey: "bbbb"}}

	w1, err := Weak(in1)
	if err != nil {
		t.Fatal(err)
	}
	w2, err := Weak(in2)
	if err != nil {
		t.Fatal(err)
	}
	if w1 != w2 {
		t.Fatalf("expected weak key to ignore dependency content, got %s != %s", w1, w2)
	}

	s1, _ := Strong(in1)
	s2, _ := Strong(in2)
	if s1 == s2 {
		t.Fatalf("expected strong key to depend on dependency content")
	}
}

func TestRuntimeDepOnlyAffectsKeyWhenFlagged(t *testing.T) {
	in1 := baseInput()
	in2 := baseInput()
	in2.RuntimeDeps = []DependencyKey{{Name: "libc", StrongKey: "cccc", AffectsKey: false}}

	s1, _ := Strong(in1)
	s2, _ := Strong(in2)
	if s1 != s2 {
		t.Fatalf("runtime dep not flagged AffectsKey should not change the key")
	}
}
