package lower

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/ir"
	"github.com/cursivelang/corec/internal/value"
)

// LowerExpr lowers e to the IRValue its evaluation produces plus the
// sequence of setup instructions that must run first (spec.md §4.6: "every
// expression lowers to a result IRValue plus a sequence of setup
// instructions").
func (lw *Lowerer) LowerExpr(e ast.Expr) (ir.IRValue, []ir.Node) {
	switch x := e.(type) {
	case ast.Lit:
		return lw.lowerLit(x)
	case ast.Ident, ast.FieldAccess, ast.TupleIndex, ast.IndexExpr, ast.Deref:
		return lw.LowerReadPlace(e)
	case ast.SliceExpr:
		return lw.lowerSlice(x)
	case ast.Call:
		return lw.lowerCall(x)
	case ast.MethodCall:
		return lw.lowerMethodCall(x)
	case ast.Move:
		return lw.LowerMovePlace(x.Place)
	case ast.AddrOf:
		return lw.LowerAddrOf(x.Place)
	case ast.Binary:
		return lw.lowerBinary(x)
	case ast.Unary:
		return lw.lowerUnary(x)
	case ast.Cast:
		return lw.lowerCast(x)
	case ast.Transmute:
		return lw.lowerTransmute(x)
	case ast.TupleLit:
		return lw.lowerTupleLit(x)
	case ast.ArrayLit:
		return lw.lowerArrayLit(x)
	case ast.RecordLit:
		return lw.lowerRecordLit(x)
	case ast.EnumLit:
		return lw.lowerEnumLit(x)
	case ast.DynPack:
		return lw.lowerDynPack(x)
	case ast.MatchExpr:
		return lw.lowerMatchExpr(x)
	case ast.IfExpr:
		return lw.lowerIfExpr(x)
	case ast.BlockExpr:
		return lw.lowerBlockExpr(x)
	case ast.RangeExpr:
		return lw.lowerRangeExpr(x)
	default:
		logger.Error("unhandled expression kind in lowering")
		return ir.Immediate{}, nil
	}
}

func (lw *Lowerer) lowerLit(x ast.Lit) (ir.IRValue, []ir.Node) {
	if b, ok := value.EncodeImmediate(x.Value); ok {
		return ir.Immediate{Bytes: b}, nil
	}
	// Non-scalar literals (records/arrays parsed straight to a Value) still
	// need a place in the derived-value table so later stages can inspect
	// their shape; fall back to a zero-length opaque marker rather than
	// silently dropping the literal.
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedTupleLit}), nil
}

// lengthOf emits the builtin length read for an array/slice/string base
// value, used by index/slice bounds checks.
func (lw *Lowerer) lengthOf(base ir.IRValue) (ir.IRValue, []ir.Node) {
	dest := lw.freshLocal("len")
	call := ir.Call{Symbol: "$len", Args: []ir.IRValue{base}, Dest: dest}
	return ir.Local{Name: dest}, []ir.Node{call}
}

func (lw *Lowerer) lowerSlice(x ast.SliceExpr) (ir.IRValue, []ir.Node) {
	baseVal, setup := lw.LowerExpr(x.Base)
	rangeVal, rangeSetup := lw.LowerExpr(x.Range)
	setup = append(setup, rangeSetup...)
	lo := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: rangeVal, Field: "lo"})
	hi := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: rangeVal, Field: "hi"})
	setup = append(setup, ir.CheckSliceLen{Lo: lo, Hi: hi})
	opq := lw.Table.Add(ir.Derived{Kind: ir.DerivedSlice, Base: baseVal, Lo: lo, Hi: hi})
	return opq, setup
}

func (lw *Lowerer) lowerCall(x ast.Call) (ir.IRValue, []ir.Node) {
	var setup []ir.Node
	var args []ir.IRValue
	for _, a := range x.Args {
		v, s := lw.LowerExpr(a)
		setup = append(setup, s...)
		args = append(args, v)
	}
	dest := lw.freshLocal("call")
	call := ir.Call{Symbol: lw.mangledProcSymbol(x.Callee), Args: args, Dest: dest}
	setup = append(setup, lw.panicCheckAfterCall(call)...)
	return ir.Local{Name: dest}, setup
}

// lowerMethodCall resolves the receiver's static type to either a direct
// inherent-method symbol or, for a dynamic receiver, a CallVTable through
// the class's resolved slot (spec.md §4.6 "reads slot index+3 from the
// vtable").
func (lw *Lowerer) lowerMethodCall(x ast.MethodCall) (ir.IRValue, []ir.Node) {
	recvVal, setup := lw.LowerExpr(x.Receiver)
	var args []ir.IRValue
	args = append(args, recvVal)
	for _, a := range x.Args {
		v, s := lw.LowerExpr(a)
		setup = append(setup, s...)
		args = append(args, v)
	}
	recvType := lw.SC.ExprTypes[x.Receiver.ID()]

	if x.Dynamic {
		dynType, ok := value.StripPerm(recvType).(value.DynamicType)
		if !ok {
			logger.Error("dynamic method call on non-Dynamic receiver type")
			dest := lw.freshLocal("dyncall")
			return ir.Local{Name: dest}, setup
		}
		cls, ok := lw.SC.Sigma.Classes[dynType.ClassPath.String()]
		slot := -1
		if ok {
			slot = slotOf(cls, x.Method)
		}
		data := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: recvVal, Field: "data"})
		vtable := lw.Table.Add(ir.Derived{Kind: ir.DerivedFieldAccess, Base: recvVal, Field: "vtable"})
		args[0] = data
		dest := lw.freshLocal("dyncall")
		call := ir.CallVTable{VTable: vtable, Slot: slot, Args: args, Dest: dest}
		setup = append(setup, lw.panicCheckAfterCall(call)...)
		return ir.Local{Name: dest}, setup
	}

	var recvPath value.TypePath
	if pt, ok := value.StripPerm(recvType).(value.PathType); ok {
		recvPath = pt.Path
	}
	methodPath := value.NewTypePath(append(append([]string{}, recvPath.Segments...), x.Method)...)
	dest := lw.freshLocal("call")
	call := ir.Call{Symbol: lw.mangledProcSymbol(methodPath), Args: args, Dest: dest}
	setup = append(setup, lw.panicCheckAfterCall(call)...)
	return ir.Local{Name: dest}, setup
}

func slotOf(cls any, method string) int { return dispatchSlot(cls, method) }

func (lw *Lowerer) lowerBinary(x ast.Binary) (ir.IRValue, []ir.Node) {
	lhs, setup := lw.LowerExpr(x.LHS)

	switch x.Op {
	case ast.OpAnd, ast.OpOr:
		dest := lw.freshLocal("sc")
		shortCircuitOn := x.Op == ast.OpOr // || keeps going only while false; && only while true
		setup = append(setup, ir.BindVar{Name: dest, Value: boolImmediate(shortCircuitOn)})
		rhs, rhsSetup := lw.LowerExpr(x.RHS)
		body := append(append([]ir.Node{}, rhsSetup...), ir.StoreVar{Name: dest, Value: rhs})
		cond := lhs
		if shortCircuitOn {
			// OR: only evaluate RHS while LHS is still false; invert the test.
			notDest := lw.freshLocal("not")
			setup = append(setup, ir.UnaryOp{Op: "!", Operand: lhs, Dest: notDest})
			cond = ir.Local{Name: notDest}
		}
		setup = append(setup, ir.If{Cond: cond, Then: ir.Block{Body: body}})
		return ir.Local{Name: dest}, setup
	}

	rhs, rhsSetup := lw.LowerExpr(x.RHS)
	setup = append(setup, rhsSetup...)

	switch x.Op {
	case ast.OpDiv, ast.OpMod:
		setup = append(setup, ir.CheckOp{Op: string(x.Op), Reason: "div_zero", Args: []ir.IRValue{lhs, rhs}})
	case ast.OpShl, ast.OpShr:
		setup = append(setup, ir.CheckOp{Op: string(x.Op), Reason: "shift_amount", Args: []ir.IRValue{lhs, rhs}})
	case ast.OpAdd, ast.OpSub, ast.OpMul:
		setup = append(setup, ir.CheckOp{Op: string(x.Op), Reason: "overflow", Args: []ir.IRValue{lhs, rhs}})
	}

	dest := lw.freshLocal("bin")
	setup = append(setup, ir.BinaryOp{Op: string(x.Op), LHS: lhs, RHS: rhs, Dest: dest})
	return ir.Local{Name: dest}, setup
}

func boolImmediate(b bool) ir.Immediate {
	if b {
		return ir.Immediate{Bytes: []byte{1}}
	}
	return ir.Immediate{Bytes: []byte{0}}
}

func (lw *Lowerer) lowerUnary(x ast.Unary) (ir.IRValue, []ir.Node) {
	val, setup := lw.LowerExpr(x.Operand)
	if x.Op == ast.OpNeg {
		setup = append(setup, ir.CheckOp{Op: "-", Reason: "overflow", Args: []ir.IRValue{val}})
	}
	dest := lw.freshLocal("un")
	setup = append(setup, ir.UnaryOp{Op: string(x.Op), Operand: val, Dest: dest})
	return ir.Local{Name: dest}, setup
}

func (lw *Lowerer) lowerCast(x ast.Cast) (ir.IRValue, []ir.Node) {
	val, setup := lw.LowerExpr(x.Inner)
	setup = append(setup, ir.CheckCast{Inner: val, Target: x.Target.String()})
	dest := lw.freshLocal("cast")
	setup = append(setup, ir.Cast{Inner: val, Target: x.Target.String(), Dest: dest})
	return ir.Local{Name: dest}, setup
}

func (lw *Lowerer) lowerTransmute(x ast.Transmute) (ir.IRValue, []ir.Node) {
	val, setup := lw.LowerExpr(x.Inner)
	dest := lw.freshLocal("xmute")
	setup = append(setup, ir.Transmute{Inner: val, Target: x.Target.String(), Dest: dest})
	return ir.Local{Name: dest}, setup
}

func (lw *Lowerer) lowerTupleLit(x ast.TupleLit) (ir.IRValue, []ir.Node) {
	var setup []ir.Node
	var elems []ir.IRValue
	for _, el := range x.Elements {
		v, s := lw.LowerExpr(el)
		setup = append(setup, s...)
		elems = append(elems, v)
	}
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedTupleLit, Elements: elems}), setup
}

func (lw *Lowerer) lowerArrayLit(x ast.ArrayLit) (ir.IRValue, []ir.Node) {
	var setup []ir.Node
	var elems []ir.IRValue
	for _, el := range x.Elements {
		v, s := lw.LowerExpr(el)
		setup = append(setup, s...)
		elems = append(elems, v)
	}
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedArrayLit, Elements: elems}), setup
}

func (lw *Lowerer) lowerRecordLit(x ast.RecordLit) (ir.IRValue, []ir.Node) {
	var setup []ir.Node
	var fields []ir.FieldVal
	for _, f := range x.Fields {
		v, s := lw.LowerExpr(f.Value)
		setup = append(setup, s...)
		fields = append(fields, ir.FieldVal{Name: f.Name, Value: v})
	}
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedRecordLit, Type: lw.mangledProcSymbol(x.Path), Fields: fields}), setup
}

func (lw *Lowerer) lowerEnumLit(x ast.EnumLit) (ir.IRValue, []ir.Node) {
	var setup []ir.Node
	var elems []ir.IRValue
	for _, a := range x.TupleArgs {
		v, s := lw.LowerExpr(a)
		setup = append(setup, s...)
		elems = append(elems, v)
	}
	var fields []ir.FieldVal
	for _, f := range x.RecordFields {
		v, s := lw.LowerExpr(f.Value)
		setup = append(setup, s...)
		fields = append(fields, ir.FieldVal{Name: f.Name, Value: v})
	}
	return lw.Table.Add(ir.Derived{
		Kind:     ir.DerivedEnumLit,
		Type:     lw.mangledProcSymbol(x.Path),
		Variant:  x.Variant,
		Elements: elems,
		Fields:   fields,
	}), setup
}

func (lw *Lowerer) lowerDynPack(x ast.DynPack) (ir.IRValue, []ir.Node) {
	inner, setup := lw.LowerExpr(x.Inner)
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedDynPack, Base: inner, Type: lw.mangledProcSymbol(x.ClassPath)}), setup
}

func (lw *Lowerer) lowerIfExpr(x ast.IfExpr) (ir.IRValue, []ir.Node) {
	cond, setup := lw.LowerExpr(x.Cond)
	dest := lw.freshLocal("if")
	thenVal, thenSetup := lw.LowerExpr(x.Then)
	thenBody := append(thenSetup, ir.StoreVar{Name: dest, Value: thenVal})

	var elseNode ir.Node
	if x.Else != nil {
		elseVal, elseSetup := lw.LowerExpr(x.Else)
		elseNode = ir.Block{Body: append(elseSetup, ir.StoreVar{Name: dest, Value: elseVal})}
	}

	setup = append(setup, ir.BindVar{Name: dest, Value: ir.Immediate{}})
	setup = append(setup, ir.If{Cond: cond, Then: ir.Block{Body: thenBody}, Else: elseNode})
	return ir.Local{Name: dest}, setup
}

func (lw *Lowerer) lowerBlockExpr(x ast.BlockExpr) (ir.IRValue, []ir.Node) {
	lw.pushCleanupScope()
	var setup []ir.Node
	for _, s := range x.Stmts {
		setup = append(setup, lw.LowerStmt(s)...)
	}
	var result ir.IRValue = ir.Immediate{}
	if x.Result != nil {
		var rs []ir.Node
		result, rs = lw.LowerExpr(x.Result)
		setup = append(setup, rs...)
	}
	for _, n := range lw.popCleanupScope() {
		setup = append(setup, n)
	}
	return result, setup
}

func (lw *Lowerer) lowerRangeExpr(x ast.RangeExpr) (ir.IRValue, []ir.Node) {
	var setup []ir.Node
	var lo, hi ir.IRValue = ir.Immediate{}, ir.Immediate{}
	if x.Lo != nil {
		var s []ir.Node
		lo, s = lw.LowerExpr(x.Lo)
		setup = append(setup, s...)
	}
	if x.Hi != nil {
		var s []ir.Node
		hi, s = lw.LowerExpr(x.Hi)
		setup = append(setup, s...)
	}
	return lw.Table.Add(ir.Derived{Kind: ir.DerivedTupleLit, Elements: []ir.IRValue{lo, hi}, Fields: []ir.FieldVal{{Name: "lo", Value: lo}, {Name: "hi", Value: hi}}}), setup
}
