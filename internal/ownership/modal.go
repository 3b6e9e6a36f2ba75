package ownership

import (
	"fmt"

	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/value"
)

// CheckModalOperation enforces spec.md §4.3's modal gating rule: a value
// typed as the general PathType of a modal declaration carries no
// compile-time state and may not be passed to an operation declared to
// require a specific state; only a ModalStateType matching that state may.
func CheckModalOperation(t value.TypeRef, requiredState string) error {
	switch tt := t.(type) {
	case value.ModalStateType:
		if tt.State != requiredState {
			return fmt.Errorf("ownership: value is in state %q, operation requires %q", tt.State, requiredState)
		}
		return nil
	case value.PathType:
		return fmt.Errorf("ownership: value of general modal type %q has no static state; operation requires %q", tt.Path.String(), requiredState)
	default:
		return fmt.Errorf("ownership: type %s is not a modal type", t.String())
	}
}

// Transition resolves the (from, to) state pair for a method signature
// declared on a modal class (spec.md §4.3 "state transitions occur only at
// method returns declared to transition"). ok is false for methods that do
// not change state.
func Transition(m sigma.MethodSig) (from, to string, ok bool) {
	if m.FromState == "" && m.ToState == "" {
		return "", "", false
	}
	return m.FromState, m.ToState, true
}

// ApplyTransition computes the resulting static type of a receiver after a
// state-transitioning method call, given the modal path it belongs to.
func ApplyTransition(path value.TypePath, m sigma.MethodSig) (value.TypeRef, error) {
	_, to, ok := Transition(m)
	if !ok {
		return nil, fmt.Errorf("ownership: method %q does not declare a state transition", m.Name)
	}
	return value.ModalStateType{Path: path, State: to}, nil
}

// CheckModalMatch validates that a modal-pattern match arm's declared state
// is consistent with the scrutinee's static type: a general PathType
// scrutinee may be matched against any state arm (that is precisely how a
// program learns a modal value's runtime state), but a value already
// narrowed to a specific ModalStateType may only match that same state.
func CheckModalMatch(scrutinee value.TypeRef, armState string) error {
	switch tt := scrutinee.(type) {
	case value.PathType:
		return nil
	case value.ModalStateType:
		if tt.State != armState {
			return fmt.Errorf("ownership: modal value statically in state %q can never match arm state %q", tt.State, armState)
		}
		return nil
	default:
		return fmt.Errorf("ownership: type %s is not a modal type", scrutinee.String())
	}
}
