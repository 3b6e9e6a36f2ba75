// Package store implements the Store & Scope Machine, Σ (spec.md §4.2):
// addresses, bindings, the scope stack, the region stack, poison flags,
// addr-views, and runtime tags — the single mutable world the interpreter
// and the static analyses reason about.
//
// Naming note: spec.md calls this Σ, the same name it gives the upstream
// resolved-environment bundle (internal/sigma). We call the mutable world
// Store to keep the two distinct in Go.
package store

import (
	"fmt"

	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/value"
)

var logger = diag.DefaultLogger("store")

// AddrKind distinguishes which stack owns an address's liveness.
type AddrKind int

const (
	TagRegion AddrKind = iota
	TagScope
)

// AddrTag records which region/scope an address belongs to, and whether
// that owner is still active (spec.md §3 invariant 3).
type AddrTag struct {
	Kind   AddrKind
	ID     uint64 // region tag or scope id
	Active bool
}

// Projection is how an addr-view derives its address from a base address:
// a field name, a tuple index, or an array/slice index.
type Projection struct {
	Field string // non-empty for a field projection
	Index int    // used for Tuple/Index projections
	Kind  ProjKind
}

type ProjKind int

const (
	ProjField ProjKind = iota
	ProjTuple
	ProjIndex
)

// AddrView records that an address is a derived view of a base address
// (spec.md §3 addr_views), used so a write through a projected place is
// visible through the base and vice versa where the source language makes
// that promise (record/tuple/array field and element addresses).
type AddrView struct {
	Base value.Addr
	Proj Projection
}

// StaticKey identifies a module-level static binding.
type StaticKey struct {
	Module string
	Name   string
}

// Sigma is the mutable world (spec.md §4.2/§3).
type Sigma struct {
	store     map[value.Addr]value.Value
	scopeStack []*Scope
	regionStack []*Region

	addrTags  map[value.Addr]AddrTag
	addrViews map[value.Addr]AddrView

	bindingByAddr map[value.Addr]BindingRef
	staticAddrs   map[StaticKey]value.Addr
	poisonFlags   map[string]bool

	nextAddr         uint64
	nextScopeID      int
	nextRegionTag    uint64
	nextRegionTarget uint64

	// Dropper executes a CleanupItem's actual drop semantics (invoking a
	// Drop-capability method, recursing into aggregate fields, freeing
	// managed string/bytes storage). It is supplied by the interpreter,
	// which is the only layer that can evaluate AST. A nil Dropper treats
	// every DropBinding/DropStatic/DeferBlock item as a no-op returning Ok,
	// which is sufficient for analyzer-only tests that never execute.
	Dropper func(*Sigma, CleanupItem) CleanupStatus
}

// New creates an empty Σ.
func New() *Sigma {
	return &Sigma{
		store:         map[value.Addr]value.Value{},
		addrTags:      map[value.Addr]AddrTag{},
		addrViews:     map[value.Addr]AddrView{},
		bindingByAddr: map[value.Addr]BindingRef{},
		staticAddrs:   map[StaticKey]value.Addr{},
		poisonFlags:   map[string]bool{},
	}
}

// AllocAddr allocates a fresh address; addresses are monotone and never
// reused (spec.md §4.2 AllocAddr, invariant 3/structural guarantee).
func (s *Sigma) AllocAddr() value.Addr {
	s.nextAddr++
	return value.Addr(s.nextAddr)
}

// TagAddr associates addr with the owning region/scope, marked active.
func (s *Sigma) TagAddr(addr value.Addr, kind AddrKind, id uint64) {
	s.addrTags[addr] = AddrTag{Kind: kind, ID: id, Active: true}
}

// ViewOf records addr as a derived view of base via proj.
func (s *Sigma) ViewOf(addr, base value.Addr, proj Projection) {
	s.addrViews[addr] = AddrView{Base: base, Proj: proj}
}

// ExpiredDerefError is returned by ReadAddr/WriteAddr when the address's
// owning region/scope is no longer active (spec.md §3 invariant 3). The
// paniccode taxonomy translates this into paniccode.ExpiredDeref at the
// interpreter/lowering boundary.
type ExpiredDerefError struct{ Addr value.Addr }

func (e *ExpiredDerefError) Error() string {
	return fmt.Sprintf("store: expired deref at addr %d", e.Addr)
}

func (s *Sigma) tagActive(addr value.Addr) bool {
	tag, ok := s.addrTags[addr]
	return ok && tag.Active
}

// ReadAddr reads the value at addr, failing ExpiredDerefError if its tag
// is inactive.
func (s *Sigma) ReadAddr(addr value.Addr) (value.Value, error) {
	if !s.tagActive(addr) {
		return nil, &ExpiredDerefError{Addr: addr}
	}
	v, ok := s.store[addr]
	if !ok {
		return nil, fmt.Errorf("store: read of never-written addr %d", addr)
	}
	return v, nil
}

// WriteAddr writes v at addr, failing ExpiredDerefError if its tag is
// inactive.
func (s *Sigma) WriteAddr(addr value.Addr, v value.Value) error {
	if !s.tagActive(addr) {
		return &ExpiredDerefError{Addr: addr}
	}
	s.store[addr] = v
	return nil
}

// InitAddr writes the initial value for a freshly allocated, already-tagged
// address without requiring the tag to pre-exist as active (used by
// allocation sites themselves, which tag then immediately initialize).
func (s *Sigma) InitAddr(addr value.Addr, v value.Value) {
	s.store[addr] = v
}

// ExpireTag marks every address owned by the given region/scope id as
// inactive (region teardown, spec.md §4.4; scope pop handles its own
// addresses the same way for symmetry, though scope-owned addresses are
// rarely read after pop since bindings go out of scope first).
func (s *Sigma) ExpireTag(kind AddrKind, id uint64) {
	for addr, tag := range s.addrTags {
		if tag.Kind == kind && tag.ID == id && tag.Active {
			tag.Active = false
			s.addrTags[addr] = tag
		}
	}
}

// PoisonedModule reports poison_flags[m] (spec.md §4.2).
func (s *Sigma) PoisonedModule(m string) bool { return s.poisonFlags[m] }

// SetPoisoned sets poison_flags[m] true. Poison is monotonic (spec.md §3
// invariant 5); unsetting is not supported.
func (s *Sigma) SetPoisoned(m string) {
	if !s.poisonFlags[m] {
		logger.Warn("module poisoned", diag.String("module", m))
	}
	s.poisonFlags[m] = true
}

// StaticAddr looks up the address BindStatic recorded for a module-level
// static; ok is false when none has been recorded.
func (s *Sigma) StaticAddr(module, name string) (value.Addr, bool) {
	a, ok := s.staticAddrs[StaticKey{Module: module, Name: name}]
	return a, ok
}

// BindStatic records the address chosen for a static during its module's
// init procedure.
func (s *Sigma) BindStatic(module, name string, addr value.Addr) {
	s.staticAddrs[StaticKey{Module: module, Name: name}] = addr
}
