// Package ownership implements the Ownership & Modal Analyzer (spec.md
// §4.3): bind validity, move/assignment rules, responsibility/movability,
// modal-state transitions, and control-flow merge. It shares the BindState/
// BindInfo vocabulary with internal/store so the same transition rules
// apply whether they are being checked statically (this package's
// Analyzer) or re-applied by the interpreter against the live store.
package ownership

import (
	"fmt"

	"github.com/cursivelang/corec/internal/store"
)

// MoveWhole marks a root Valid -> Moved (spec.md §4.3 "Move-place").
func MoveWhole(st store.BindState) store.BindState {
	return store.MovedState()
}

// MoveField marks a root Valid -> PartiallyMoved{field}, or extends an
// existing PartiallyMoved set. It is an error to move a field out of an
// already-Moved binding.
func MoveField(st store.BindState, field string) (store.BindState, error) {
	switch st.Kind {
	case store.Valid:
		return store.PartiallyMovedState(field), nil
	case store.PartiallyMoved:
		fields := st.SortedFields()
		fields = append(fields, field)
		return store.PartiallyMovedState(fields...), nil
	default:
		return st, fmt.Errorf("ownership: cannot move field %q of an already-moved binding", field)
	}
}

// AssignWhole restores Valid on reassignment to a moved (or partially
// moved) root (spec.md §4.3 "Re-assignment to a moved root restores
// Valid").
func AssignWhole(st store.BindState) store.BindState { return store.ValidState() }

// AssignField removes field from the partially-moved set on assignment to
// that field; if the set becomes empty the binding is Valid again.
func AssignField(st store.BindState, field string) store.BindState {
	if st.Kind != store.PartiallyMoved {
		return st
	}
	fields := st.SortedFields()
	out := fields[:0]
	for _, f := range fields {
		if f != field {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return store.ValidState()
	}
	return store.PartiallyMovedState(out...)
}

// CanRead reports whether a use is permitted given the binding's current
// state (spec.md §4.3). wholeRead=true means the use reads the entire
// value (so it requires an empty moved-fields set); wholeRead=false reads
// only `field`.
func CanRead(st store.BindState, wholeRead bool, field string) bool {
	switch st.Kind {
	case store.Valid:
		return true
	case store.Moved:
		return false
	case store.PartiallyMoved:
		if wholeRead {
			return len(st.Fields) == 0
		}
		return !st.Fields[field]
	default:
		return false
	}
}

// Merge implements the control-flow-merge conservative union (spec.md
// §4.3): Moved wins over anything at the join; otherwise PartiallyMoved is
// the union of the incoming moved-field sets.
func Merge(a, b store.BindState) store.BindState {
	if a.Kind == store.Moved || b.Kind == store.Moved {
		return store.MovedState()
	}
	if a.Kind == store.Valid && b.Kind == store.Valid {
		return store.ValidState()
	}
	fields := map[string]bool{}
	for f := range a.Fields {
		fields[f] = true
	}
	for f := range b.Fields {
		fields[f] = true
	}
	if len(fields) == 0 {
		return store.ValidState()
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	return store.PartiallyMovedState(names...)
}

// MergeAll folds Merge across N>=1 incoming branch states (if/match join
// with more than two arms).
func MergeAll(states ...store.BindState) store.BindState {
	if len(states) == 0 {
		return store.ValidState()
	}
	acc := states[0]
	for _, s := range states[1:] {
		acc = Merge(acc, s)
	}
	return acc
}

// LoopFixpoint computes the back-edge join for a loop body. The lattice
// (Valid > PartiallyMoved{F} > Moved, ordered by information loss) has
// finite height bounded by the field count, so one application of Merge
// between the pre-loop state and the post-body state is already the
// fixpoint (spec.md §4.3 "one iteration suffices").
func LoopFixpoint(before, afterOneIteration store.BindState) store.BindState {
	return Merge(before, afterOneIteration)
}

// RequiresDropOnAssign reports whether overwriting a binding with this
// BindInfo must first drop the old value (spec.md §4.3: true for Resp
// bindings, false for Alias).
func RequiresDropOnAssign(info store.BindInfo) bool {
	return info.Responsibility == store.Resp
}

// CheckMovable rejects moving an Immov binding (spec.md §4.3 "Immov
// bindings may not appear on the RHS of a move").
func CheckMovable(info store.BindInfo) error {
	if info.Movability == store.Immov {
		return fmt.Errorf("ownership: cannot move an immovable binding")
	}
	return nil
}

// StaticBindingInfo computes the BindInfo for a module-level static
// initializer (spec.md §4.3: "A static binding whose initializer is a
// place-expression and not an explicit move is assigned Alias
// responsibility and Immov").
func StaticBindingInfo(isPlaceExpr, explicitMove bool) store.BindInfo {
	if isPlaceExpr && !explicitMove {
		return store.BindInfo{Responsibility: store.Alias, Movability: store.Immov}
	}
	return store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}
}
