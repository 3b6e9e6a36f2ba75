package store

import (
	"sort"

	"github.com/cursivelang/corec/internal/value"
)

// BindStateKind is the per-binding validity state (spec.md §3 BindState).
type BindStateKind int

const (
	Valid BindStateKind = iota
	Moved
	PartiallyMoved
)

// BindState is Valid, Moved, or PartiallyMoved{fields}.
type BindState struct {
	Kind   BindStateKind
	Fields map[string]bool // populated only when Kind == PartiallyMoved
}

func ValidState() BindState { return BindState{Kind: Valid} }
func MovedState() BindState { return BindState{Kind: Moved} }
func PartiallyMovedState(fields ...string) BindState {
	set := map[string]bool{}
	for _, f := range fields {
		set[f] = true
	}
	return BindState{Kind: PartiallyMoved, Fields: set}
}

// SortedFields returns the partially-moved field set in deterministic
// order, for diagnostics/testing.
func (b BindState) SortedFields() []string {
	out := make([]string, 0, len(b.Fields))
	for f := range b.Fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

type Movability int

const (
	Mov Movability = iota
	Immov
)

type Responsibility int

const (
	Resp Responsibility = iota
	Alias
)

// BindInfo is the static-ish classification attached to a binding at bind
// time (spec.md §3 Scope entry .infos).
type BindInfo struct {
	Movability     Movability
	Responsibility Responsibility
}

// BindingValue is either a direct value or an Alias to another address.
type BindingValue struct {
	Direct value.Value
	IsAlias bool
	AliasAddr value.Addr
}

func DirectValue(v value.Value) BindingValue { return BindingValue{Direct: v} }
func AliasValue(addr value.Addr) BindingValue {
	return BindingValue{IsAlias: true, AliasAddr: addr}
}

// CleanupItem is one entry on a scope's cleanup list (spec.md §3).
type CleanupItem struct {
	Kind    CleanupKind
	Binding int // bind id, for DropBinding
	// ScopeID is the owning scope of Binding, stamped automatically by
	// AppendCleanup: a DropBinding item always drops a binding local to the
	// scope it was appended to, so the Dropper can resolve
	// store.Binding{Ref: BindingRef{ScopeID, Binding}} directly.
	ScopeID      int
	StaticModule string
	StaticName   string
	// DeferBody is opaque to package store: it is typed any so that
	// internal/ast.BlockExpr (a higher-level package) can be stored here
	// without an import cycle; internal/interp type-asserts it back.
	DeferBody any
}

type CleanupKind int

const (
	DropBindingItem CleanupKind = iota
	DropStaticItem
	DeferBlockItem
)

// CleanupStatus is the three-way outcome of running cleanup items or a
// whole scope's cleanup list (spec.md §4.2; confirmed as a distinct
// three-state enum, not a bool, by
// _examples/original_source/cursive-bootstrap/include/cursive0/eval/cleanup.h).
type CleanupStatus int

const (
	StatusOk CleanupStatus = iota
	StatusPanic
	StatusAbort
)

func (s CleanupStatus) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusPanic:
		return "Panic"
	case StatusAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// combine implements "if any single item panics, Panic; if two or more
// items panic, Abort" (spec.md §4.2).
func combine(acc CleanupStatus, next CleanupStatus) CleanupStatus {
	if next == StatusOk {
		return acc
	}
	switch acc {
	case StatusOk:
		return StatusPanic
	default:
		return StatusAbort
	}
}

// BindingRef locates a binding within the scope stack.
type BindingRef struct {
	ScopeID int
	BindID  int
}

// Scope is one entry on the scope stack (spec.md §3 Scope entry).
type Scope struct {
	ID       int
	Cleanup  []CleanupItem
	names    map[string][]int // name -> bind ids, innermost-shadow-last
	vals     map[int]BindingValue
	states   map[int]BindState
	infos    map[int]BindInfo
	addrs    map[int]value.Addr
	nextBind int
}

func newScope(id int) *Scope {
	return &Scope{
		ID:     id,
		names:  map[string][]int{},
		vals:   map[int]BindingValue{},
		states: map[int]BindState{},
		infos:  map[int]BindInfo{},
		addrs:  map[int]value.Addr{},
	}
}

// Binding is a resolved handle to a bound name plus its current state.
type Binding struct {
	Ref   BindingRef
	Name  string
}

// PushScope creates a new scope and pushes it (spec.md §4.2).
func (s *Sigma) PushScope() int {
	s.nextScopeID++
	id := s.nextScopeID
	s.scopeStack = append(s.scopeStack, newScope(id))
	return id
}

// CurrentScope returns the innermost scope, or nil if none.
func (s *Sigma) CurrentScope() *Scope {
	if len(s.scopeStack) == 0 {
		return nil
	}
	return s.scopeStack[len(s.scopeStack)-1]
}

// PopScope runs CleanupScope on the innermost scope and removes it,
// exactly as required for every exit path including panic/abort (spec.md
// §4.2, §3 invariant 1). It returns the cleanup outcome.
func (s *Sigma) PopScope() CleanupStatus {
	n := len(s.scopeStack)
	if n == 0 {
		panic("store: PopScope with empty scope stack")
	}
	top := s.scopeStack[n-1]
	status := s.CleanupScope(top)
	s.ExpireTag(TagScope, uint64(top.ID))
	s.scopeStack = s.scopeStack[:n-1]
	return status
}

// CleanupScope runs cleanup items in reverse insertion order, combining
// statuses per spec.md §4.2/§4.3.
func (s *Sigma) CleanupScope(sc *Scope) CleanupStatus {
	status := StatusOk
	for i := len(sc.Cleanup) - 1; i >= 0; i-- {
		item := sc.Cleanup[i]
		var itemStatus CleanupStatus
		if s.Dropper != nil {
			itemStatus = s.Dropper(s, item)
		} else {
			itemStatus = StatusOk
		}
		status = combine(status, itemStatus)
	}
	return status
}

// AppendCleanup pushes an item onto the current scope's cleanup list in
// declaration order (spec.md §4.2).
func (s *Sigma) AppendCleanup(item CleanupItem) {
	sc := s.CurrentScope()
	if sc == nil {
		panic("store: AppendCleanup with no active scope")
	}
	item.ScopeID = sc.ID
	sc.Cleanup = append(sc.Cleanup, item)
}

// BindVal inserts a new binding into the current scope (spec.md §4.2
// BindVal).
func (s *Sigma) BindVal(name string, bv BindingValue, info BindInfo) Binding {
	sc := s.CurrentScope()
	if sc == nil {
		panic("store: BindVal with no active scope")
	}
	sc.nextBind++
	id := sc.nextBind
	sc.names[name] = append(sc.names[name], id)
	sc.vals[id] = bv
	sc.states[id] = ValidState()
	sc.infos[id] = info
	ref := BindingRef{ScopeID: sc.ID, BindID: id}
	if !bv.IsAlias {
		// Direct values do not occupy a store address until something
		// takes their address (AddrOf); aliasing bindings always refer to
		// one.
	} else {
		s.bindingByAddr[bv.AliasAddr] = ref
	}
	return Binding{Ref: ref, Name: name}
}

// LookupBind resolves name to the innermost binding across the scope
// stack (spec.md §4.2 LookupBind: innermost-wins).
func (s *Sigma) LookupBind(name string) (Binding, bool) {
	for i := len(s.scopeStack) - 1; i >= 0; i-- {
		sc := s.scopeStack[i]
		ids := sc.names[name]
		if len(ids) == 0 {
			continue
		}
		id := ids[len(ids)-1]
		return Binding{Ref: BindingRef{ScopeID: sc.ID, BindID: id}, Name: name}, true
	}
	return Binding{}, false
}

func (s *Sigma) scopeByID(id int) *Scope {
	for _, sc := range s.scopeStack {
		if sc.ID == id {
			return sc
		}
	}
	return nil
}

// State returns a binding's current BindState.
func (s *Sigma) State(b Binding) BindState {
	sc := s.scopeByID(b.Ref.ScopeID)
	return sc.states[b.Ref.BindID]
}

// SetState updates a binding's BindState (used by internal/ownership).
func (s *Sigma) SetState(b Binding, st BindState) {
	sc := s.scopeByID(b.Ref.ScopeID)
	sc.states[b.Ref.BindID] = st
}

// Info returns a binding's BindInfo.
func (s *Sigma) Info(b Binding) BindInfo {
	sc := s.scopeByID(b.Ref.ScopeID)
	return sc.infos[b.Ref.BindID]
}

// Value returns a binding's BindingValue (direct value or alias).
func (s *Sigma) Value(b Binding) BindingValue {
	sc := s.scopeByID(b.Ref.ScopeID)
	return sc.vals[b.Ref.BindID]
}

// SetValue overwrites a binding's BindingValue (used on assignment).
func (s *Sigma) SetValue(b Binding, bv BindingValue) {
	sc := s.scopeByID(b.Ref.ScopeID)
	sc.vals[b.Ref.BindID] = bv
}
