package interp

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

// matchPattern tests whether scrutinee matches pat, binding any pattern
// variables into the current scope as it goes (spec.md §4.8). It mirrors
// internal/lower.patternBody's case structure, operating on live values
// instead of IR nodes.
func (in *Interp) matchPattern(pat ast.Pattern, scrutinee value.Value) bool {
	switch p := pat.(type) {
	case ast.WildcardPat:
		return true

	case ast.BindPat:
		in.St.BindVal(p.Name, store.DirectValue(scrutinee), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
		return true

	case ast.LiteralPat:
		return valueEqual(p.Value, scrutinee)

	case ast.TuplePat:
		tup, ok := scrutinee.(value.Tuple)
		if !ok || len(tup.Elements) < len(p.Elements) {
			return false
		}
		for i, el := range p.Elements {
			if !in.matchPattern(el, tup.Elements[i]) {
				return false
			}
		}
		return true

	case ast.RecordPat:
		rec, ok := scrutinee.(value.Record)
		if !ok {
			return false
		}
		for _, f := range p.Fields {
			fv, ok := lookupField(rec.Fields, f.Name)
			if !ok {
				return false
			}
			if !in.matchPattern(f.Pattern, fv) {
				return false
			}
		}
		return true

	case ast.EnumPat:
		ev, ok := scrutinee.(value.EnumVal)
		if !ok || ev.Variant != p.Variant {
			return false
		}
		if ev.Payload != nil {
			for i, el := range p.TupleElems {
				if i >= len(ev.Payload.Tuple) {
					return false
				}
				if !in.matchPattern(el, ev.Payload.Tuple[i]) {
					return false
				}
			}
			for _, f := range p.RecordFields {
				fv, ok := lookupField(ev.Payload.Record, f.Name)
				if !ok {
					return false
				}
				if !in.matchPattern(f.Pattern, fv) {
					return false
				}
			}
		} else if len(p.TupleElems) > 0 || len(p.RecordFields) > 0 {
			return false
		}
		return true

	case ast.ModalPat:
		mv, ok := scrutinee.(value.ModalVal)
		if !ok || mv.State != p.State {
			return false
		}
		if p.Inner != nil {
			return in.matchPattern(p.Inner, mv.Payload)
		}
		return true

	default:
		return false
	}
}

func lookupField(fields []value.Field, name string) (value.Value, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// valueEqual implements structural equality for literal-pattern matching;
// it only needs to cover the scalar kinds a LiteralPat can carry.
func valueEqual(a, b value.Value) bool {
	switch av := a.(type) {
	case value.Bool:
		bv, ok := b.(value.Bool)
		return ok && av.V == bv.V
	case value.Char:
		bv, ok := b.(value.Char)
		return ok && av.Codepoint == bv.Codepoint
	case value.Unit:
		_, ok := b.(value.Unit)
		return ok
	case value.Int:
		bv, ok := b.(value.Int)
		if !ok {
			return false
		}
		aNeg := av.Negative && !av.Magnitude.IsZero()
		bNeg := bv.Negative && !bv.Magnitude.IsZero()
		return aNeg == bNeg && av.Magnitude.Cmp(bv.Magnitude) == 0
	case value.Float:
		bv, ok := b.(value.Float)
		return ok && av.V == bv.V
	case value.String:
		bv, ok := b.(value.String)
		return ok && string(av.Bytes) == string(bv.Bytes)
	default:
		return false
	}
}
