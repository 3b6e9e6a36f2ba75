package lower

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/ir"
)

// LowerReadPlace lowers a place expression for its value (spec.md §4.6
// LowerReadPlace): identifiers read through ReadVar, field/tuple/index
// access compose a Derived entry over the base place's value.
func (lw *Lowerer) LowerReadPlace(e ast.Expr) (ir.IRValue, []ir.Node) {
	switch p := e.(type) {
	case ast.Ident:
		dest := lw.freshLocal("rd")
		if lw.isStatic(p.Name) {
			return ir.Local{Name: dest}, []ir.Node{
				ir.CheckPoison{Module: lw.CurrentModule},
				ir.ReadPath{Module: lw.CurrentModule, Name: p.Name, Dest: dest},
			}
		}
		return ir.Local{Name: dest}, []ir.Node{ir.ReadVar{Name: p.Name, Dest: dest}}
	case ast.FieldAccess:
		baseVal, setup := lw.LowerExpr(p.Base)
		opq := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: baseVal, Field: p.Field})
		return opq, setup
	case ast.TupleIndex:
		baseVal, setup := lw.LowerExpr(p.Base)
		opq := lw.Table.Add(ir.Derived{Kind: ir.DerivedTupleIndex, Base: baseVal, Index: p.Index})
		return opq, setup
	case ast.IndexExpr:
		baseVal, setup := lw.LowerExpr(p.Base)
		idxVal, idxSetup := lw.LowerExpr(p.Index)
		setup = append(setup, idxSetup...)
		lenVal, lenSetup := lw.lengthOf(baseVal)
		setup = append(setup, lenSetup...)
		setup = append(setup, ir.CheckIndex{Index: idxVal, Len: lenVal})
		opq := lw.Table.Add(ir.Derived{Kind: ir.DerivedIndex, Base: baseVal, IndexVal: idxVal})
		return opq, setup
	case ast.Deref:
		ptrVal, setup := lw.LowerExpr(p.Pointer)
		setup = append(setup, ir.CheckOp{Op: "deref", Reason: "null_or_expired", Args: []ir.IRValue{ptrVal}})
		dest := lw.freshLocal("deref")
		setup = append(setup, ir.ReadPtr{Ptr: ptrVal, Dest: dest})
		return ir.Local{Name: dest}, setup
	default:
		return lw.LowerExpr(e)
	}
}

// LowerMovePlace lowers an explicit `move` of a place (spec.md §4.6
// LowerMovePlace): reads the current value exactly like LowerReadPlace.
// Whether the source binding is left in a moved/invalid state is an
// ownership-analysis concern (internal/ownership), not a lowering-time
// store mutation; lowering only needs to avoid re-reading the source after
// this point, which the analyzer enforces ahead of lowering.
func (lw *Lowerer) LowerMovePlace(e ast.Expr) (ir.IRValue, []ir.Node) {
	return lw.LowerReadPlace(e)
}

// LowerAddrOf lowers `&place` to a Derived AddrOf entry wrapping the
// place's base value (spec.md §4.6 LowerAddrOf).
func (lw *Lowerer) LowerAddrOf(e ast.Expr) (ir.IRValue, []ir.Node) {
	val, setup := lw.LowerReadPlace(e)
	opq := lw.Table.Add(ir.Derived{Kind: ir.DerivedAddrOf, Base: val})
	return opq, setup
}

// LowerWritePlace lowers an assignment into a place (spec.md §4.6
// LowerWritePlace): a whole-binding assignment drops the previous value via
// StoreVar; a field assignment whose base is an identifier lowers to
// StoreVarNoDrop, which skips the drop (for a partially-moved root,
// ownership analysis already established the field carries no live value).
// Index assignments, field assignments through any other base, and writes
// through a pointer lower to WritePtr.
func (lw *Lowerer) LowerWritePlace(place ast.Expr, rhs ir.IRValue) []ir.Node {
	switch p := place.(type) {
	case ast.Ident:
		if lw.isStatic(p.Name) {
			return []ir.Node{ir.StoreGlobal{Module: lw.CurrentModule, Name: p.Name, Value: rhs}}
		}
		return []ir.Node{ir.StoreVar{Name: p.Name, Value: rhs}}
	case ast.FieldAccess:
		if root, ok := p.Base.(ast.Ident); ok {
			return []ir.Node{ir.StoreVarNoDrop{Name: root.Name, Field: p.Field, Value: rhs}}
		}
		baseVal, setup := lw.LowerExpr(p.Base)
		setup = append(setup, ir.WritePtr{Ptr: lw.derivedAddrOf(baseVal, p.Field), Value: rhs})
		return setup
	case ast.IndexExpr:
		baseVal, setup := lw.LowerExpr(p.Base)
		idxVal, idxSetup := lw.LowerExpr(p.Index)
		setup = append(setup, idxSetup...)
		lenVal, lenSetup := lw.lengthOf(baseVal)
		setup = append(setup, lenSetup...)
		setup = append(setup, ir.CheckIndex{Index: idxVal, Len: lenVal})
		ptr := lw.Table.Add(ir.Derived{Kind: ir.DerivedIndex, Base: baseVal, IndexVal: idxVal})
		setup = append(setup, ir.WritePtr{Ptr: ptr, Value: rhs})
		return setup
	case ast.Deref:
		ptrVal, setup := lw.LowerExpr(p.Pointer)
		setup = append(setup, ir.CheckOp{Op: "deref", Reason: "null_or_expired", Args: []ir.IRValue{ptrVal}})
		setup = append(setup, ir.WritePtr{Ptr: ptrVal, Value: rhs})
		return setup
	default:
		return nil
	}
}

// derivedAddrOf builds the pointer IRValue a WritePtr needs when writing
// through a nested field of a non-identifier base (e.g. (*p).x.y = v).
func (lw *Lowerer) derivedAddrOf(base ir.IRValue, field string) ir.IRValue {
	fieldVal := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: base, Field: field})
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedAddrOf, Base: fieldVal})
}
