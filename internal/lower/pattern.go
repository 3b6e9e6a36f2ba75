package lower

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/ir"
	"github.com/cursivelang/corec/internal/value"
)

// lowerPattern builds the setup sequence that tests whether scrutinee
// matches pat, binding any pattern variables along the way, and leaves the
// boolean result in the named local testDest. Sub-patterns compose by
// short-circuit AND: once testDest goes false, later conjuncts are skipped
// by wrapping their check in an `If{Cond: testDest}`.
func (lw *Lowerer) lowerPattern(pat ast.Pattern, scrutinee ir.IRValue, testDest string) []ir.Node {
	var setup []ir.Node
	setup = append(setup, ir.BindVar{Name: testDest, Value: ir.Immediate{Bytes: []byte{1}}})
	setup = append(setup, lw.patternConjunct(pat, scrutinee, testDest)...)
	return setup
}

// patternConjunct emits the guarded check for one pattern against one
// scrutinee value, run only while testDest is still true.
func (lw *Lowerer) patternConjunct(pat ast.Pattern, scrutinee ir.IRValue, testDest string) []ir.Node {
	body := lw.patternBody(pat, scrutinee, testDest)
	if len(body) == 0 {
		return nil
	}
	return []ir.Node{ir.If{Cond: ir.Local{Name: testDest}, Then: ir.Block{Body: body}}}
}

func (lw *Lowerer) patternBody(pat ast.Pattern, scrutinee ir.IRValue, testDest string) []ir.Node {
	switch p := pat.(type) {
	case ast.WildcardPat:
		return nil

	case ast.BindPat:
		lw.markLocal(p.Name)
		return []ir.Node{ir.BindVar{Name: p.Name, Value: scrutinee}}

	case ast.LiteralPat:
		litBytes, _ := value.EncodeImmediate(p.Value)
		eqDest := lw.freshLocal("pat_eq")
		return []ir.Node{
			ir.BinaryOp{Op: "==", LHS: scrutinee, RHS: ir.Immediate{Bytes: litBytes}, Dest: eqDest},
			ir.StoreVar{Name: testDest, Value: ir.Local{Name: eqDest}},
		}

	case ast.TuplePat:
		var out []ir.Node
		for i, el := range p.Elements {
			elVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedTupleIndex, Base: scrutinee, Index: i})
			out = append(out, lw.patternConjunct(el, elVal, testDest)...)
		}
		return out

	case ast.RecordPat:
		var out []ir.Node
		for _, f := range p.Fields {
			fVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: scrutinee, Field: f.Name})
			out = append(out, lw.patternConjunct(f.Pattern, fVal, testDest)...)
		}
		return out

	case ast.EnumPat:
		variantVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: scrutinee, Field: "$discriminant"})
		eqDest := lw.freshLocal("pat_variant_eq")
		out := []ir.Node{
			ir.BinaryOp{Op: "==", LHS: variantVal, RHS: ir.Symbol{Name: p.Variant}, Dest: eqDest},
			ir.StoreVar{Name: testDest, Value: ir.Local{Name: eqDest}},
		}
		for i, el := range p.TupleElems {
			elVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedTupleIndex, Base: scrutinee, Index: i, Field: p.Variant})
			out = append(out, lw.patternConjunct(el, elVal, testDest)...)
		}
		for _, f := range p.RecordFields {
			fVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: scrutinee, Field: f.Name})
			out = append(out, lw.patternConjunct(f.Pattern, fVal, testDest)...)
		}
		return out

	case ast.ModalPat:
		stateVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: scrutinee, Field: "$state"})
		eqDest := lw.freshLocal("pat_state_eq")
		out := []ir.Node{
			ir.BinaryOp{Op: "==", LHS: stateVal, RHS: ir.Symbol{Name: p.State}, Dest: eqDest},
			ir.StoreVar{Name: testDest, Value: ir.Local{Name: eqDest}},
		}
		if p.Inner != nil {
			payloadVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: scrutinee, Field: "$payload"})
			out = append(out, lw.patternConjunct(p.Inner, payloadVal, testDest)...)
		}
		return out

	default:
		logger.Error("unhandled pattern kind in lowering")
		return nil
	}
}

func (lw *Lowerer) lowerMatchExpr(x ast.MatchExpr) (ir.IRValue, []ir.Node) {
	scrutinee, setup := lw.LowerExpr(x.Scrutinee)
	dest := lw.freshLocal("match")
	setup = append(setup, ir.BindVar{Name: dest, Value: ir.Immediate{}})

	var arms []ir.MatchArm
	for _, arm := range x.Arms {
		testDest := lw.freshLocal("arm_test")
		test := ir.Block{Body: lw.lowerPattern(arm.Pattern, scrutinee, testDest)}
		if arm.Guard != nil {
			guardVal, guardSetup := lw.LowerExpr(arm.Guard)
			andDest := lw.freshLocal("guard_and")
			guardBody := append(guardSetup, ir.BinaryOp{Op: "&&", LHS: ir.Local{Name: testDest}, RHS: guardVal, Dest: andDest}, ir.StoreVar{Name: testDest, Value: ir.Local{Name: andDest}})
			test.Body = append(test.Body, ir.If{Cond: ir.Local{Name: testDest}, Then: ir.Block{Body: guardBody}})
		}
		bodyVal, bodySetup := lw.LowerExpr(arm.Body)
		bodyNode := ir.Block{Body: append(bodySetup, ir.StoreVar{Name: dest, Value: bodyVal})}
		arms = append(arms, ir.MatchArm{Test: wrapTestResult(test, testDest), Body: bodyNode})
	}
	setup = append(setup, ir.Match{Scrutinee: scrutinee, Arms: arms, Result: dest})
	return ir.Local{Name: dest}, setup
}

// wrapTestResult re-exposes testDest as the final instruction downstream
// consumers read for the arm's pass/fail boolean (ir.MatchArm.Test's
// documented convention: the final node's Dest names the boolean result).
func wrapTestResult(test ir.Block, testDest string) ir.Node {
	test.Body = append(test.Body, ir.UnaryOp{Op: "id", Operand: ir.Local{Name: testDest}, Dest: testDest})
	return test
}
