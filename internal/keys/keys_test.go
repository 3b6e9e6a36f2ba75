package keys

import (
	"testing"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/value"
)

func TestReadReadDoesNotConflict(t *testing.T) {
	kc := New()
	p := value.NewTypePath("acct", "balance")
	if _, err := kc.Acquire(p, ast.KeyRead, ast.KeyModNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := kc.Acquire(p, ast.KeyRead, ast.KeyModNone); err != nil {
		t.Fatalf("expected read+read to be compatible, got %v", err)
	}
}

func TestWriteWriteOnSamePathConflicts(t *testing.T) {
	kc := New()
	p := value.NewTypePath("acct", "balance")
	if _, err := kc.Acquire(p, ast.KeyWrite, ast.KeyModNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := kc.Acquire(p, ast.KeyWrite, ast.KeyModNone); err == nil {
		t.Fatalf("expected write+write conflict")
	}
	if kc.Violations() != 1 {
		t.Fatalf("expected one recorded violation, got %d", kc.Violations())
	}
}

func TestPrefixOverlapConflicts(t *testing.T) {
	kc := New()
	parent := value.NewTypePath("acct")
	child := value.NewTypePath("acct", "balance")
	if _, err := kc.Acquire(parent, ast.KeyWrite, ast.KeyModNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := kc.Acquire(child, ast.KeyRead, ast.KeyModNone); err == nil {
		t.Fatalf("expected a write on a prefix to conflict with a read on the child")
	}
}

func TestDisjointPathsDoNotConflict(t *testing.T) {
	kc := New()
	if _, err := kc.Acquire(value.NewTypePath("acct", "balance"), ast.KeyWrite, ast.KeyModNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := kc.Acquire(value.NewTypePath("acct", "history"), ast.KeyWrite, ast.KeyModNone); err != nil {
		t.Fatalf("expected disjoint sibling paths to be compatible, got %v", err)
	}
}

func TestDynamicKeyConflictsWithEverything(t *testing.T) {
	kc := New()
	if _, err := kc.Acquire(value.NewTypePath("acct", "history"), ast.KeyRead, ast.KeyModNone); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := kc.Acquire(value.NewTypePath("whatever"), ast.KeyRead, ast.KeyModDynamic); err == nil {
		t.Fatalf("expected a dynamic key to conservatively conflict with any held key")
	}
}

func TestReleaseThenReacquireSucceeds(t *testing.T) {
	kc := New()
	p := value.NewTypePath("acct", "balance")
	h, err := kc.Acquire(p, ast.KeyWrite, ast.KeyModNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kc.Release(h)
	if _, err := kc.Acquire(p, ast.KeyWrite, ast.KeyModNone); err != nil {
		t.Fatalf("expected reacquire after release to succeed, got %v", err)
	}
}

func TestMergeIsIntersection(t *testing.T) {
	base := New()
	a := base.Clone()
	b := base.Clone()
	shared := value.NewTypePath("shared")
	onlyA := value.NewTypePath("only_a")
	if _, err := a.Acquire(shared, ast.KeyRead, ast.KeyModNone); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Acquire(onlyA, ast.KeyRead, ast.KeyModNone); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Acquire(shared, ast.KeyRead, ast.KeyModNone); err != nil {
		t.Fatal(err)
	}

	merged := Merge(a, b)
	held := merged.Held()
	if len(held) != 1 || held[0].String() != "shared" {
		t.Fatalf("expected only the shared key to survive the join, got %v", held)
	}
}

func TestCoversPrefixRelation(t *testing.T) {
	if !Covers(value.NewTypePath("acct"), value.NewTypePath("acct", "balance")) {
		t.Fatalf("expected acct to cover acct.balance")
	}
	if Covers(value.NewTypePath("acct"), value.NewTypePath("other")) {
		t.Fatalf("expected disjoint paths not to cover each other")
	}
}

func TestContextRequireMissingCapability(t *testing.T) {
	c := Context{Heap: true}
	if err := c.Require(true, false, false); err == nil {
		t.Fatalf("expected missing fs capability to be reported")
	}
	if err := c.Require(false, true, false); err != nil {
		t.Fatalf("expected heap capability to satisfy the requirement: %v", err)
	}
}
