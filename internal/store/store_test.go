package store

import (
	"testing"

	"github.com/cursivelang/corec/internal/value"
)

func TestScopeStackBalanced(t *testing.T) {
	s := New()
	id1 := s.PushScope()
	id2 := s.PushScope()
	if id2 <= id1 {
		t.Fatalf("expected monotone scope ids")
	}
	if s.PopScope() != StatusOk {
		t.Fatalf("expected Ok on empty cleanup list")
	}
	if s.PopScope() != StatusOk {
		t.Fatalf("expected Ok on empty cleanup list")
	}
	if s.CurrentScope() != nil {
		t.Fatalf("expected empty scope stack")
	}
}

func TestRegionTeardownExpiresAddr(t *testing.T) {
	s := New()
	s.PushScope()
	r := s.NewRegion()
	addr := s.AllocInRegion(r, value.Int{Type: "i32", Magnitude: value.Uint128FromUint64(7)})

	if _, err := s.ReadAddr(addr); err != nil {
		t.Fatalf("expected live read, got %v", err)
	}

	s.FreeUnchecked(r)

	if _, err := s.ReadAddr(addr); err == nil {
		t.Fatalf("expected ExpiredDerefError after teardown")
	} else if _, ok := err.(*ExpiredDerefError); !ok {
		t.Fatalf("expected ExpiredDerefError, got %T", err)
	}
}

func TestFrameTruncatesOnlyItsOwnAllocs(t *testing.T) {
	s := New()
	s.PushScope()
	r := s.NewRegion()
	outer := s.AllocInRegion(r, value.Unit{})
	mark := s.PushFrame(r)
	inner := s.AllocInRegion(r, value.Unit{})
	s.PopFrame(r, mark)

	if _, err := s.ReadAddr(outer); err != nil {
		t.Fatalf("outer alloc should survive frame pop: %v", err)
	}
	if _, err := s.ReadAddr(inner); err == nil {
		t.Fatalf("inner alloc should expire on frame pop")
	}
}

func TestBindValLookupInnermostWins(t *testing.T) {
	s := New()
	s.PushScope()
	s.BindVal("x", DirectValue(value.Bool{V: true}), BindInfo{Responsibility: Resp})
	s.PushScope()
	s.BindVal("x", DirectValue(value.Bool{V: false}), BindInfo{Responsibility: Resp})

	b, ok := s.LookupBind("x")
	if !ok {
		t.Fatalf("expected to find binding")
	}
	bv := s.Value(b)
	if bv.Direct.(value.Bool).V != false {
		t.Fatalf("expected innermost binding to win")
	}
}

func TestCleanupScopeCombinesStatuses(t *testing.T) {
	s := New()
	calls := 0
	s.Dropper = func(sig *Sigma, item CleanupItem) CleanupStatus {
		calls++
		if calls <= 2 {
			return StatusPanic
		}
		return StatusOk
	}
	s.PushScope()
	s.AppendCleanup(CleanupItem{Kind: DropBindingItem, Binding: 1})
	s.AppendCleanup(CleanupItem{Kind: DropBindingItem, Binding: 2})
	if got := s.PopScope(); got != StatusAbort {
		t.Fatalf("expected Abort after two panicking drops, got %v", got)
	}
}

func TestPoisonIsMonotonic(t *testing.T) {
	s := New()
	if s.PoisonedModule("A") {
		t.Fatalf("expected unpoisoned by default")
	}
	s.SetPoisoned("A")
	if !s.PoisonedModule("A") {
		t.Fatalf("expected poisoned after SetPoisoned")
	}
}
