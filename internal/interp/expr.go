package interp

import (
	"math"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

// evalExpr is the small-step expression evaluator (spec.md §4.8): every
// ast.Expr variant has a case here mirroring the rule internal/lower
// applies to the same node, so the two agree on observable behavior.
func (in *Interp) evalExpr(e ast.Expr) (value.Value, *paniccode.Panic) {
	switch x := e.(type) {
	case ast.Lit:
		return x.Value, nil

	case ast.Ident, ast.FieldAccess, ast.TupleIndex, ast.IndexExpr, ast.Deref:
		return in.evalPlace(e)

	case ast.SliceExpr:
		return in.evalSliceExpr(x)

	case ast.Call:
		return in.evalCall(x)

	case ast.MethodCall:
		return in.evalMethodCall(x)

	case ast.Move:
		v, p := in.evalPlace(x.Place)
		if p != nil {
			return nil, p
		}
		if id, ok := x.Place.(ast.Ident); ok {
			if b, ok := in.St.LookupBind(id.Name); ok {
				in.St.SetState(b, store.MovedState())
			}
		}
		return v, nil

	case ast.AddrOf:
		return in.evalAddrOf(x.Place)

	case ast.Binary:
		return in.evalBinary(x)

	case ast.Unary:
		return in.evalUnary(x)

	case ast.Cast:
		v, p := in.evalExpr(x.Inner)
		if p != nil {
			return nil, p
		}
		return in.evalCast(v, x.Target)

	case ast.Transmute:
		v, p := in.evalExpr(x.Inner)
		if p != nil {
			return nil, p
		}
		return in.evalTransmute(v, x.Target)

	case ast.TupleLit:
		var elems []value.Value
		for _, el := range x.Elements {
			v, p := in.evalExpr(el)
			if p != nil {
				return nil, p
			}
			elems = append(elems, v)
		}
		return value.Tuple{Elements: elems}, nil

	case ast.ArrayLit:
		var elems []value.Value
		for _, el := range x.Elements {
			v, p := in.evalExpr(el)
			if p != nil {
				return nil, p
			}
			elems = append(elems, v)
		}
		return value.Array{Elements: elems}, nil

	case ast.RecordLit:
		var fields []value.Field
		for _, f := range x.Fields {
			v, p := in.evalExpr(f.Value)
			if p != nil {
				return nil, p
			}
			fields = append(fields, value.Field{Name: f.Name, Value: v})
		}
		return value.Record{Type: value.PathType{Path: x.Path}, Fields: fields}, nil

	case ast.EnumLit:
		var payload *value.EnumPayload
		if len(x.TupleArgs) > 0 || len(x.RecordFields) > 0 {
			payload = &value.EnumPayload{}
			for _, a := range x.TupleArgs {
				v, p := in.evalExpr(a)
				if p != nil {
					return nil, p
				}
				payload.Tuple = append(payload.Tuple, v)
			}
			for _, f := range x.RecordFields {
				v, p := in.evalExpr(f.Value)
				if p != nil {
					return nil, p
				}
				payload.Record = append(payload.Record, value.Field{Name: f.Name, Value: v})
			}
		}
		return value.EnumVal{Path: x.Path, Variant: x.Variant, Payload: payload}, nil

	case ast.DynPack:
		return in.evalDynPack(x)

	case ast.MatchExpr:
		return in.evalMatchExpr(x)

	case ast.IfExpr:
		cv, p := in.evalExpr(x.Cond)
		if p != nil {
			return nil, p
		}
		b, ok := cv.(value.Bool)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "if condition did not evaluate to bool")
		}
		if b.V {
			return in.evalExpr(x.Then)
		}
		if x.Else != nil {
			return in.evalExpr(x.Else)
		}
		return value.Unit{}, nil

	case ast.BlockExpr:
		v, c, p := in.execBlock(x)
		if p != nil {
			return nil, p
		}
		if c.kind == ctrlReturn {
			return c.value, nil
		}
		return v, nil

	case ast.RangeExpr:
		var lo, hi value.Value
		var p *paniccode.Panic
		if x.Lo != nil {
			lo, p = in.evalExpr(x.Lo)
			if p != nil {
				return nil, p
			}
		}
		if x.Hi != nil {
			hi, p = in.evalExpr(x.Hi)
			if p != nil {
				return nil, p
			}
		}
		return value.Range{Kind: x.Kind, Lo: lo, Hi: hi}, nil

	default:
		return nil, paniccode.New(paniccode.Other, "interp: unhandled expression kind")
	}
}

// evalPlace reads a place expression's current value (spec.md §4.8,
// mirrors internal/lower.LowerReadPlace).
func (in *Interp) evalPlace(e ast.Expr) (value.Value, *paniccode.Panic) {
	switch p := e.(type) {
	case ast.Ident:
		b, ok := in.St.LookupBind(p.Name)
		if !ok {
			if v, isStatic, sp := in.readStatic(p.Name); isStatic {
				return v, sp
			}
			return nil, paniccode.New(paniccode.Other, "read of unbound name "+p.Name)
		}
		bv := in.St.Value(b)
		if bv.IsAlias {
			v, err := in.St.ReadAddr(bv.AliasAddr)
			if err != nil {
				return nil, paniccode.New(paniccode.ExpiredDeref, err.Error())
			}
			return v, nil
		}
		if bv.Direct == nil {
			return value.Unit{}, nil
		}
		return bv.Direct, nil

	case ast.FieldAccess:
		base, pp := in.evalExpr(p.Base)
		if pp != nil {
			return nil, pp
		}
		switch bv := base.(type) {
		case value.Record:
			for _, f := range bv.Fields {
				if f.Name == p.Field {
					return f.Value, nil
				}
			}
			return nil, paniccode.New(paniccode.Other, "no such field "+p.Field)
		case value.ModalVal:
			if p.Field == "$payload" {
				return bv.Payload, nil
			}
			if rec, ok := bv.Payload.(value.Record); ok {
				for _, f := range rec.Fields {
					if f.Name == p.Field {
						return f.Value, nil
					}
				}
			}
			return nil, paniccode.New(paniccode.Other, "no such field "+p.Field)
		case value.EnumVal:
			if bv.Payload != nil {
				for _, f := range bv.Payload.Record {
					if f.Name == p.Field {
						return f.Value, nil
					}
				}
			}
			return nil, paniccode.New(paniccode.Other, "no such field "+p.Field)
		default:
			return nil, paniccode.New(paniccode.Other, "field access on non-record value")
		}

	case ast.TupleIndex:
		base, pp := in.evalExpr(p.Base)
		if pp != nil {
			return nil, pp
		}
		tup, ok := base.(value.Tuple)
		if !ok {
			if ev, ok := base.(value.EnumVal); ok && ev.Payload != nil && p.Index >= 0 && p.Index < len(ev.Payload.Tuple) {
				return ev.Payload.Tuple[p.Index], nil
			}
			return nil, paniccode.New(paniccode.Other, "tuple index on non-tuple value")
		}
		if p.Index < 0 || p.Index >= len(tup.Elements) {
			return nil, paniccode.New(paniccode.Bounds, "tuple index out of range")
		}
		return tup.Elements[p.Index], nil

	case ast.IndexExpr:
		base, pp := in.evalExpr(p.Base)
		if pp != nil {
			return nil, pp
		}
		idxV, pp := in.evalExpr(p.Index)
		if pp != nil {
			return nil, pp
		}
		idx, pk := asIndex(idxV)
		if pk != nil {
			return nil, pk
		}
		switch bv := base.(type) {
		case value.Array:
			if idx < 0 || idx >= len(bv.Elements) {
				return nil, paniccode.New(paniccode.Bounds, "index out of range")
			}
			return bv.Elements[idx], nil
		case value.Slice:
			elems := sliceElements(bv)
			if idx < 0 || idx >= len(elems) {
				return nil, paniccode.New(paniccode.Bounds, "index out of range")
			}
			return elems[idx], nil
		case value.Bytes:
			if idx < 0 || idx >= len(bv.Data) {
				return nil, paniccode.New(paniccode.Bounds, "index out of range")
			}
			return value.Int{Type: "u8", Magnitude: value.Uint128FromUint64(uint64(bv.Data[idx]))}, nil
		default:
			return nil, paniccode.New(paniccode.Other, "index on non-indexable value")
		}

	case ast.Deref:
		ptrV, pp := in.evalExpr(p.Pointer)
		if pp != nil {
			return nil, pp
		}
		switch pv := ptrV.(type) {
		case value.Ptr:
			if pv.State == value.PtrNull {
				return nil, paniccode.New(paniccode.NullDeref, "deref of null pointer")
			}
			v, err := in.St.ReadAddr(pv.Addr)
			if err != nil {
				return nil, paniccode.New(paniccode.ExpiredDeref, err.Error())
			}
			return v, nil
		case value.RawPtr:
			v, err := in.St.ReadAddr(pv.Addr)
			if err != nil {
				return nil, paniccode.New(paniccode.ExpiredDeref, err.Error())
			}
			return v, nil
		default:
			return nil, paniccode.New(paniccode.NullDeref, "deref of non-pointer value")
		}

	default:
		return in.evalExpr(e)
	}
}

// evalAddrOf produces a safe pointer to place, materializing a store
// address on first use (spec.md §4.8, mirrors LowerAddrOf).
func (in *Interp) evalAddrOf(place ast.Expr) (value.Value, *paniccode.Panic) {
	if id, ok := place.(ast.Ident); ok {
		b, ok := in.St.LookupBind(id.Name)
		if !ok {
			if addr, isStatic := in.St.StaticAddr(in.currentModule, id.Name); isStatic {
				return value.Ptr{State: value.PtrValid, Addr: addr}, nil
			}
			return nil, paniccode.New(paniccode.Other, "address-of unbound name "+id.Name)
		}
		bv := in.St.Value(b)
		if bv.IsAlias {
			return value.Ptr{State: value.PtrValid, Addr: bv.AliasAddr}, nil
		}
		addr := in.St.AllocAddr()
		in.St.TagAddr(addr, store.TagScope, uint64(b.Ref.ScopeID))
		in.St.InitAddr(addr, bv.Direct)
		in.St.SetValue(b, store.AliasValue(addr))
		return value.Ptr{State: value.PtrValid, Addr: addr}, nil
	}
	v, p := in.evalExpr(place)
	if p != nil {
		return nil, p
	}
	sc := in.St.CurrentScope()
	addr := in.St.AllocAddr()
	if sc != nil {
		in.St.TagAddr(addr, store.TagScope, uint64(sc.ID))
	}
	in.St.InitAddr(addr, v)
	return value.Ptr{State: value.PtrValid, Addr: addr}, nil
}

func (in *Interp) evalSliceExpr(x ast.SliceExpr) (value.Value, *paniccode.Panic) {
	base, p := in.evalExpr(x.Base)
	if p != nil {
		return nil, p
	}
	rangeVal, p := in.evalExpr(x.Range)
	if p != nil {
		return nil, p
	}
	rv, ok := rangeVal.(value.Range)
	if !ok {
		return nil, paniccode.New(paniccode.Other, "slice range operand is not a range")
	}
	var elems []value.Value
	switch bv := base.(type) {
	case value.Array:
		elems = bv.Elements
	case value.Slice:
		elems = sliceElements(bv)
	default:
		return nil, paniccode.New(paniccode.Other, "slice base is not sliceable")
	}
	lo, hi := 0, len(elems)
	if rv.Lo != nil {
		lo = valueToInt(rv.Lo)
	}
	if rv.Hi != nil {
		hi = valueToInt(rv.Hi)
	}
	if rv.Kind == value.RangeToInclusive || rv.Kind == value.RangeInclusive {
		hi++
	}
	if lo < 0 || lo > hi || hi > len(elems) {
		return nil, paniccode.New(paniccode.Bounds, "slice range out of bounds")
	}
	return value.Slice{Base: elems, Range: rv}, nil
}

func (in *Interp) evalCall(x ast.Call) (value.Value, *paniccode.Panic) {
	var args []value.Value
	for _, a := range x.Args {
		v, p := in.evalExpr(a)
		if p != nil {
			return nil, p
		}
		args = append(args, v)
	}
	proc, ok := in.lookupProc(x.Callee)
	if !ok {
		return nil, paniccode.New(paniccode.Other, "call to undeclared procedure "+x.Callee.String())
	}
	return in.CallProc(proc, args)
}

func (in *Interp) evalDynPack(x ast.DynPack) (value.Value, *paniccode.Panic) {
	inner, p := in.evalExpr(x.Inner)
	if p != nil {
		return nil, p
	}
	sc := in.St.CurrentScope()
	addr := in.St.AllocAddr()
	if sc != nil {
		in.St.TagAddr(addr, store.TagScope, uint64(sc.ID))
	}
	in.St.InitAddr(addr, inner)
	return value.DynamicVal{ClassPath: x.ClassPath, DataAddr: addr, ConcreteType: valueConcreteType(inner)}, nil
}

func (in *Interp) evalMatchExpr(x ast.MatchExpr) (value.Value, *paniccode.Panic) {
	scrut, p := in.evalExpr(x.Scrutinee)
	if p != nil {
		return nil, p
	}
	for _, arm := range x.Arms {
		in.St.PushScope()
		ok := in.matchPattern(arm.Pattern, scrut)
		if ok && arm.Guard != nil {
			gv, gp := in.evalExpr(arm.Guard)
			if gp != nil {
				in.St.PopScope()
				return nil, gp
			}
			b, isBool := gv.(value.Bool)
			ok = isBool && b.V
		}
		if !ok {
			in.St.PopScope()
			continue
		}
		v, bp := in.evalExpr(arm.Body)
		status := in.St.PopScope()
		if bp != nil {
			return nil, bp
		}
		if cp := cleanupPanic(status); cp != nil {
			return nil, cp
		}
		return v, nil
	}
	return nil, paniccode.New(paniccode.Other, "match: no arm matched")
}

// evalBinary mirrors internal/lower.lowerBinary's check-insertion order:
// div/mod check divide-by-zero, shifts check shift amount, and +/-/* check
// overflow, all before producing the result (spec.md §7).
func (in *Interp) evalBinary(x ast.Binary) (value.Value, *paniccode.Panic) {
	lhs, p := in.evalExpr(x.LHS)
	if p != nil {
		return nil, p
	}

	if x.Op == ast.OpAnd || x.Op == ast.OpOr {
		lb, ok := lhs.(value.Bool)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "logical operator on non-bool operand")
		}
		if x.Op == ast.OpAnd && !lb.V {
			return value.Bool{V: false}, nil
		}
		if x.Op == ast.OpOr && lb.V {
			return value.Bool{V: true}, nil
		}
		rhs, p := in.evalExpr(x.RHS)
		if p != nil {
			return nil, p
		}
		rb, ok := rhs.(value.Bool)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "logical operator on non-bool operand")
		}
		return rb, nil
	}

	rhs, p := in.evalExpr(x.RHS)
	if p != nil {
		return nil, p
	}

	switch l := lhs.(type) {
	case value.Int:
		r, ok := rhs.(value.Int)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "binary operator type mismatch")
		}
		return evalIntBinary(x.Op, l, r)
	case value.Float:
		r, ok := rhs.(value.Float)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "binary operator type mismatch")
		}
		return evalFloatBinary(x.Op, l, r)
	case value.Bool:
		r, ok := rhs.(value.Bool)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "binary operator type mismatch")
		}
		return evalBoolBinary(x.Op, l, r)
	case value.Char:
		r, ok := rhs.(value.Char)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "binary operator type mismatch")
		}
		switch x.Op {
		case ast.OpEq:
			return value.Bool{V: l.Codepoint == r.Codepoint}, nil
		case ast.OpNe:
			return value.Bool{V: l.Codepoint != r.Codepoint}, nil
		default:
			return nil, paniccode.New(paniccode.Other, "unsupported char operator")
		}
	case value.String:
		r, ok := rhs.(value.String)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "binary operator type mismatch")
		}
		eq := string(l.Bytes) == string(r.Bytes)
		switch x.Op {
		case ast.OpEq:
			return value.Bool{V: eq}, nil
		case ast.OpNe:
			return value.Bool{V: !eq}, nil
		default:
			return nil, paniccode.New(paniccode.Other, "unsupported string operator")
		}
	default:
		return nil, paniccode.New(paniccode.Other, "binary operator on unsupported value kind")
	}
}

func (in *Interp) evalUnary(x ast.Unary) (value.Value, *paniccode.Panic) {
	v, p := in.evalExpr(x.Operand)
	if p != nil {
		return nil, p
	}
	switch x.Op {
	case ast.OpNot:
		switch vv := v.(type) {
		case value.Bool:
			return value.Bool{V: !vv.V}, nil
		case value.Int:
			return value.Int{Type: vv.Type, Negative: vv.Negative, Magnitude: bitNot(vv.Magnitude, value.BitWidth(vv.Type))}, nil
		default:
			return nil, paniccode.New(paniccode.Other, "unary ! on unsupported value kind")
		}
	case ast.OpNeg:
		switch vv := v.(type) {
		case value.Int:
			width := value.BitWidth(vv.Type)
			if width == 0 {
				width = 64
			}
			if value.IsUnsignedPrim(vv.Type) && !vv.Magnitude.IsZero() {
				return nil, paniccode.New(paniccode.Overflow, "negation of unsigned value")
			}
			if !vv.Negative && width < 128 {
				top := value.Uint128FromUint64(1).Shl(width - 1)
				if vv.Magnitude.Cmp(top) > 0 {
					return nil, paniccode.New(paniccode.Overflow, "negation overflow")
				}
			}
			return value.Int{Type: vv.Type, Negative: !vv.Negative && !vv.Magnitude.IsZero(), Magnitude: vv.Magnitude}, nil
		case value.Float:
			return value.Float{Type: vv.Type, V: -vv.V}, nil
		default:
			return nil, paniccode.New(paniccode.Other, "unary - on unsupported value kind")
		}
	default:
		return nil, paniccode.New(paniccode.Other, "unsupported unary operator")
	}
}

func (in *Interp) evalCast(v value.Value, target value.TypeRef) (value.Value, *paniccode.Panic) {
	prim, ok := value.StripPerm(target).(value.Prim)
	if !ok {
		return nil, paniccode.New(paniccode.Cast, "cast target is not a primitive type")
	}
	switch prim.Name {
	case "bool":
		switch vv := v.(type) {
		case value.Bool:
			return vv, nil
		case value.Int:
			return value.Bool{V: !vv.Magnitude.IsZero()}, nil
		default:
			return nil, paniccode.New(paniccode.Cast, "invalid cast to bool")
		}
	case "char":
		iv, ok := v.(value.Int)
		if !ok {
			return nil, paniccode.New(paniccode.Cast, "invalid cast to char")
		}
		cp := uint32(iv.Magnitude.Lo)
		if cp > 0x10FFFF || (cp >= 0xD800 && cp <= 0xDFFF) {
			return nil, paniccode.New(paniccode.Cast, "value is not a valid codepoint")
		}
		return value.Char{Codepoint: cp}, nil
	case "f32", "f64":
		switch vv := v.(type) {
		case value.Int:
			return value.Float{Type: prim.Name, V: int128ToFloat(vv)}, nil
		case value.Float:
			f := vv.V
			if prim.Name == "f32" {
				f = float64(float32(f))
			}
			return value.Float{Type: prim.Name, V: f}, nil
		case value.Char:
			return value.Float{Type: prim.Name, V: float64(vv.Codepoint)}, nil
		default:
			return nil, paniccode.New(paniccode.Cast, "invalid cast to float")
		}
	default:
		width := value.BitWidth(prim.Name)
		if width == 0 {
			return nil, paniccode.New(paniccode.Cast, "unknown cast target type "+prim.Name)
		}
		switch vv := v.(type) {
		case value.Int:
			return castIntToInt(vv, prim.Name, width)
		case value.Float:
			return castFloatToInt(vv, prim.Name, width)
		case value.Char:
			return value.Int{Type: prim.Name, Magnitude: value.Uint128FromUint64(uint64(vv.Codepoint))}, nil
		case value.Bool:
			m := uint64(0)
			if vv.V {
				m = 1
			}
			return value.Int{Type: prim.Name, Magnitude: value.Uint128FromUint64(m)}, nil
		default:
			return nil, paniccode.New(paniccode.Cast, "invalid integer cast")
		}
	}
}

func (in *Interp) evalTransmute(v value.Value, target value.TypeRef) (value.Value, *paniccode.Panic) {
	b, ok := value.EncodeImmediate(v)
	if !ok {
		return nil, paniccode.New(paniccode.Other, "transmute source is not a scalar immediate")
	}
	out, ok := value.DecodeImmediate(b, target)
	if !ok {
		return nil, paniccode.New(paniccode.Other, "transmute target is not a scalar primitive")
	}
	return out, nil
}

func castIntToInt(v value.Int, targetName string, width uint) (value.Value, *paniccode.Panic) {
	mag := v.Magnitude
	if value.IsUnsignedPrim(targetName) {
		if v.Negative && !mag.IsZero() {
			return nil, paniccode.New(paniccode.Cast, "negative value cast to unsigned type")
		}
		if width < 128 && !mag.FitsBits(width) {
			return nil, paniccode.New(paniccode.Cast, "value does not fit target type")
		}
		return value.Int{Type: targetName, Magnitude: mag}, nil
	}
	if width < 128 {
		if !v.Negative {
			if !mag.FitsBits(width - 1) {
				return nil, paniccode.New(paniccode.Cast, "value does not fit target type")
			}
		} else {
			top := value.Uint128FromUint64(1).Shl(width - 1)
			if mag.Cmp(top) > 0 {
				return nil, paniccode.New(paniccode.Cast, "value does not fit target type")
			}
		}
	}
	return value.Int{Type: targetName, Negative: v.Negative && !mag.IsZero(), Magnitude: mag}, nil
}

func castFloatToInt(v value.Float, targetName string, width uint) (value.Value, *paniccode.Panic) {
	if math.IsNaN(v.V) || math.IsInf(v.V, 0) || v.V != math.Trunc(v.V) {
		return nil, paniccode.New(paniccode.Cast, "float to int cast requires a finite integral value")
	}
	neg := v.V < 0
	f := v.V
	if neg {
		f = -f
	}
	mag := value.Uint128FromUint64(uint64(f))
	iv := value.Int{Type: targetName, Negative: neg && !mag.IsZero(), Magnitude: mag}
	return castIntToInt(iv, targetName, width)
}

func int128ToFloat(v value.Int) float64 {
	f := float64(v.Magnitude.Lo)
	if v.Magnitude.Hi != 0 {
		f += float64(v.Magnitude.Hi) * 18446744073709551616.0
	}
	if v.Negative {
		f = -f
	}
	return f
}

func bitNot(m value.Uint128, width uint) value.Uint128 {
	out := value.Uint128{Hi: ^m.Hi, Lo: ^m.Lo}
	if width == 0 || width >= 128 {
		return out
	}
	mask := value.Uint128FromUint64(1).Shl(width)
	mask, _ = mask.Sub(value.Uint128FromUint64(1))
	return value.Uint128{Hi: out.Hi & mask.Hi, Lo: out.Lo & mask.Lo}
}
