package interp

import (
	"fmt"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/keys"
	"github.com/cursivelang/corec/internal/ownership"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

type ctrl struct {
	kind  ctrlKind
	value value.Value
}

// keyHandle is one key acquired by a KeyStmt, paired with the KeyContext it
// was acquired from so Release can be symmetric.
type keyHandle struct {
	kc *keys.KeyContext
	h  *keys.Handle
}

// execBlock runs a BlockExpr's statements then its trailing result
// expression inside a fresh scope, guaranteeing PopScope (and therefore
// cleanup) runs on every exit path (spec.md §3 invariant 1, §4.2).
func (in *Interp) execBlock(b ast.BlockExpr) (value.Value, ctrl, *paniccode.Panic) {
	in.St.PushScope()

	for _, s := range b.Stmts {
		c, p := in.execStmt(s)
		if p != nil {
			in.St.PopScope()
			return nil, ctrl{}, p
		}
		if c.kind != ctrlNone {
			status := in.St.PopScope()
			if cp := cleanupPanic(status); cp != nil {
				return nil, ctrl{}, cp
			}
			return nil, c, nil
		}
	}

	var result value.Value = value.Unit{}
	var p *paniccode.Panic
	if b.Result != nil {
		result, p = in.evalExpr(b.Result)
	}
	status := in.St.PopScope()
	if p != nil {
		return nil, ctrl{}, p
	}
	if cp := cleanupPanic(status); cp != nil {
		return nil, ctrl{}, cp
	}
	return result, ctrl{kind: ctrlNone}, nil
}

func cleanupPanic(status store.CleanupStatus) *paniccode.Panic {
	switch status {
	case store.StatusPanic:
		return paniccode.New(paniccode.Other, "a cleanup action panicked")
	case store.StatusAbort:
		return paniccode.New(paniccode.Other, "multiple cleanup actions panicked: abort")
	default:
		return nil
	}
}

// execStmt runs one statement, returning a non-ctrlNone ctrl for
// break/continue/return and a non-nil panic for anything else that fails.
func (in *Interp) execStmt(s ast.Stmt) (ctrl, *paniccode.Panic) {
	switch st := s.(type) {
	case ast.LetStmt:
		var v value.Value = value.Unit{}
		var p *paniccode.Panic
		if st.Init != nil {
			v, p = in.evalExpr(st.Init)
			if p != nil {
				return ctrl{}, p
			}
		}
		info := store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}
		in.St.BindVal(st.Name, store.DirectValue(v), info)
		in.St.AppendCleanup(store.CleanupItem{Kind: store.DropBindingItem, Binding: in.lastBindID(st.Name), ScopeID: in.St.CurrentScope().ID})
		return ctrl{}, nil

	case ast.ExprStmt:
		_, p := in.evalExpr(st.Expr)
		return ctrl{}, p

	case ast.AssignStmt:
		v, p := in.evalExpr(st.Value)
		if p != nil {
			return ctrl{}, p
		}
		return ctrl{}, in.writePlace(st.Place, v)

	case ast.ReturnStmt:
		var v value.Value = value.Unit{}
		var p *paniccode.Panic
		if st.Value != nil {
			v, p = in.evalExpr(st.Value)
			if p != nil {
				return ctrl{}, p
			}
		}
		return ctrl{kind: ctrlReturn, value: v}, nil

	case ast.BreakStmt:
		return ctrl{kind: ctrlBreak}, nil
	case ast.ContinueStmt:
		return ctrl{kind: ctrlContinue}, nil

	case ast.LoopStmt:
		return in.execLoop(st)

	case ast.RegionStmt:
		return in.execRegion(st)
	case ast.FrameStmt:
		return in.execFrame(st)
	case ast.AllocStmt:
		return in.execAlloc(st)
	case ast.FreeUncheckedStmt:
		r := in.regionByAlias(st.Region)
		if r == nil {
			return ctrl{}, paniccode.New(paniccode.Other, "free_unchecked: no such region "+st.Region)
		}
		in.St.FreeUnchecked(r)
		return ctrl{}, nil
	case ast.EndRegionStmt:
		r := in.regionByAlias(st.Region)
		if r == nil {
			return ctrl{}, paniccode.New(paniccode.Other, "end region: no such region "+st.Region)
		}
		in.St.FreeUnchecked(r)
		return ctrl{}, nil

	case ast.KeyStmt:
		return in.execKey(st)
	case ast.ParallelStmt:
		return in.execParallel(st)
	case ast.SpawnStmt:
		return in.execSpawn(st)
	case ast.WaitStmt:
		_, p := in.evalExpr(st.Handle)
		return ctrl{}, p
	case ast.DispatchStmt:
		return in.execDispatch(st)

	case ast.MatchStmt:
		return in.execMatchStmt(st)
	case ast.IfStmt:
		return in.execIfStmt(st)

	default:
		return ctrl{}, paniccode.New(paniccode.Other, fmt.Sprintf("interp: unhandled statement %T", s))
	}
}

func (in *Interp) lastBindID(name string) int {
	b, _ := in.St.LookupBind(name)
	return b.Ref.BindID
}

func (in *Interp) execLoop(st ast.LoopStmt) (ctrl, *paniccode.Panic) {
	switch st.Kind {
	case ast.LoopWhile:
		for {
			cv, p := in.evalExpr(st.Cond)
			if p != nil {
				return ctrl{}, p
			}
			b, ok := cv.(value.Bool)
			if !ok || !b.V {
				return ctrl{}, nil
			}
			c, p := in.execLoopBody(st.Body)
			if p != nil {
				return ctrl{}, p
			}
			if c.kind == ctrlBreak {
				return ctrl{}, nil
			}
			if c.kind == ctrlReturn {
				return c, nil
			}
		}
	case ast.LoopForRange:
		src, p := in.evalExpr(st.Cond)
		if p != nil {
			return ctrl{}, p
		}
		elems, p := in.iterable(src)
		if p != nil {
			return ctrl{}, p
		}
		for _, elem := range elems {
			in.St.PushScope()
			in.St.BindVal(st.Var, store.DirectValue(elem), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
			var c ctrl
			var p *paniccode.Panic
			for _, bs := range st.Body {
				c, p = in.execStmt(bs)
				if p != nil || c.kind != ctrlNone {
					break
				}
			}
			status := in.St.PopScope()
			if p != nil {
				return ctrl{}, p
			}
			if cp := cleanupPanic(status); cp != nil {
				return ctrl{}, cp
			}
			if c.kind == ctrlBreak {
				return ctrl{}, nil
			}
			if c.kind == ctrlReturn {
				return c, nil
			}
		}
		return ctrl{}, nil
	default: // LoopInfinite
		for {
			c, p := in.execLoopBody(st.Body)
			if p != nil {
				return ctrl{}, p
			}
			if c.kind == ctrlBreak {
				return ctrl{}, nil
			}
			if c.kind == ctrlReturn {
				return c, nil
			}
		}
	}
}

func (in *Interp) execLoopBody(body []ast.Stmt) (ctrl, *paniccode.Panic) {
	in.St.PushScope()
	var c ctrl
	var p *paniccode.Panic
	for _, s := range body {
		c, p = in.execStmt(s)
		if p != nil || c.kind != ctrlNone {
			break
		}
	}
	status := in.St.PopScope()
	if p != nil {
		return ctrl{}, p
	}
	if cp := cleanupPanic(status); cp != nil {
		return ctrl{}, cp
	}
	return c, nil
}

func (in *Interp) iterable(v value.Value) ([]value.Value, *paniccode.Panic) {
	switch vv := v.(type) {
	case value.Array:
		return vv.Elements, nil
	case value.Slice:
		return sliceElements(vv), nil
	case value.Range:
		return rangeElements(vv)
	default:
		return nil, paniccode.New(paniccode.Other, "for-range source is not iterable")
	}
}

func (in *Interp) execRegion(st ast.RegionStmt) (ctrl, *paniccode.Panic) {
	r := in.St.NewRegion()
	if st.Alias != "" {
		if in.regionAliases == nil {
			in.regionAliases = map[string]*store.Region{}
		}
		in.regionAliases[st.Alias] = r
		defer delete(in.regionAliases, st.Alias)
	}
	_, c, p := in.execBlock(ast.BlockExpr{Stmts: st.Body})
	if in.St.RegionLive(r) {
		in.St.FreeUnchecked(r)
	}
	return c, p
}

func (in *Interp) regionByAlias(name string) *store.Region {
	if name == "" || in.regionAliases == nil {
		return nil
	}
	return in.regionAliases[name]
}

func (in *Interp) execFrame(st ast.FrameStmt) (ctrl, *paniccode.Panic) {
	r := in.regionByAlias(st.Region)
	if r == nil {
		r = in.St.CurrentRegion()
	}
	if r == nil {
		return ctrl{}, paniccode.New(paniccode.Other, "frame: no active region")
	}
	mark := in.St.PushFrame(r)
	_, c, p := in.execBlock(ast.BlockExpr{Stmts: st.Body})
	in.St.PopFrame(r, mark)
	return c, p
}

func (in *Interp) execAlloc(st ast.AllocStmt) (ctrl, *paniccode.Panic) {
	v, p := in.evalExpr(st.Value)
	if p != nil {
		return ctrl{}, p
	}
	r := in.regionByAlias(st.Region)
	if r == nil {
		r = in.St.CurrentRegion()
	}
	if r == nil {
		return ctrl{}, paniccode.New(paniccode.Other, "alloc: no active region")
	}
	addr := in.St.AllocInRegion(r, v)
	// The alloc binding is a pointer to the freshly tagged address (spec.md
	// §8 scenario 3: `let p = &(alloc 7 in r); return *p;` reads 7 through
	// the store, and a pointer that outlives the region's teardown observes
	// ExpiredDeref on the next deref), not the raw value the lowering pass's
	// byte-offset ABI target binds directly.
	ptr := value.Ptr{State: value.PtrValid, Addr: addr}
	in.St.BindVal(st.Binding, store.DirectValue(ptr), store.BindInfo{Responsibility: store.Alias, Movability: store.Mov})
	return ctrl{}, nil
}

func (in *Interp) execKey(st ast.KeyStmt) (ctrl, *paniccode.Panic) {
	kc := keys.New()
	var acquired []keyHandle
	for _, k := range st.Keys {
		h, err := kc.Acquire(k.Path, k.Mode, st.Modifiers)
		if err != nil {
			for i := len(acquired) - 1; i >= 0; i-- {
				acquired[i].kc.Release(acquired[i].h)
			}
			return ctrl{}, paniccode.New(paniccode.Other, err.Error())
		}
		acquired = append(acquired, keyHandle{kc: kc, h: h})
	}
	_, c, p := in.execBlock(ast.BlockExpr{Stmts: st.Body})
	for i := len(acquired) - 1; i >= 0; i-- {
		acquired[i].kc.Release(acquired[i].h)
	}
	return c, p
}

func (in *Interp) execParallel(st ast.ParallelStmt) (ctrl, *paniccode.Panic) {
	domain := st.Domain
	if domain == "" {
		domain = "cpu"
	}
	pc, err := in.RT.Root.Parallel.Begin(domain, in.RT.Root.Token, st.Name)
	if err != nil {
		if p, ok := err.(*paniccode.Panic); ok {
			return ctrl{}, p
		}
		return ctrl{}, paniccode.New(paniccode.Other, err.Error())
	}
	var ctrlOut ctrl
	var stmtPanic *paniccode.Panic
	pc.Submit(func() *paniccode.Panic {
		c, p := in.execBlock2(st.Body)
		ctrlOut = c
		return p
	})
	if joined := pc.Join(); joined != nil {
		stmtPanic = joined
	}
	return ctrlOut, stmtPanic
}

func (in *Interp) execBlock2(body []ast.Stmt) (ctrl, *paniccode.Panic) {
	_, c, p := in.execBlock(ast.BlockExpr{Stmts: body})
	return c, p
}

func (in *Interp) execSpawn(st ast.SpawnStmt) (ctrl, *paniccode.Panic) {
	c, p := in.execBlock2(st.Body)
	if st.Binding != "" {
		in.St.BindVal(st.Binding, store.DirectValue(value.Unit{}), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
	}
	return c, p
}

func (in *Interp) execDispatch(st ast.DispatchStmt) (ctrl, *paniccode.Panic) {
	rangeVal, p := in.evalExpr(st.Range)
	if p != nil {
		return ctrl{}, p
	}
	elems, p := in.iterable(rangeVal)
	if p != nil {
		return ctrl{}, p
	}
	chunkSize := st.ChunkSize
	if chunkSize <= 0 {
		chunkSize = in.RT.Config().DispatchChunkSize
	}
	results, firstPanic := in.RT.Root.Parallel.RunChunks("cpu", len(elems), chunkSize, func(start, end int) (any, *paniccode.Panic) {
		var chunkVals []value.Value
		for i := start; i < end; i++ {
			in.St.PushScope()
			in.St.BindVal(st.ElemName, store.DirectValue(elems[i]), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
			v, p := in.evalExpr(st.Body)
			status := in.St.PopScope()
			if p != nil {
				return nil, p
			}
			if cp := cleanupPanic(status); cp != nil {
				return nil, cp
			}
			chunkVals = append(chunkVals, v)
		}
		return chunkVals, nil
	})
	if firstPanic != nil {
		return ctrl{}, firstPanic
	}
	reduced, rp := in.reduceValues(st.Reduce, st.ReduceFunc, results)
	if rp != nil {
		return ctrl{}, rp
	}
	if st.ResultName != "" {
		in.St.BindVal(st.ResultName, store.DirectValue(reduced), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
	}
	return ctrl{}, nil
}

func (in *Interp) execMatchStmt(st ast.MatchStmt) (ctrl, *paniccode.Panic) {
	scrut, p := in.evalExpr(st.Scrutinee)
	if p != nil {
		return ctrl{}, p
	}
	for _, arm := range st.Arms {
		in.St.PushScope()
		ok := in.matchPattern(arm.Pattern, scrut)
		if ok && arm.Guard != nil {
			gv, gp := in.evalExpr(arm.Guard)
			if gp != nil {
				in.St.PopScope()
				return ctrl{}, gp
			}
			b, isBool := gv.(value.Bool)
			ok = isBool && b.V
		}
		if !ok {
			in.St.PopScope()
			continue
		}
		var c ctrl
		var bp *paniccode.Panic
		for _, bs := range arm.Body {
			c, bp = in.execStmt(bs)
			if bp != nil || c.kind != ctrlNone {
				break
			}
		}
		status := in.St.PopScope()
		if bp != nil {
			return ctrl{}, bp
		}
		if cp := cleanupPanic(status); cp != nil {
			return ctrl{}, cp
		}
		return c, nil
	}
	return ctrl{}, paniccode.New(paniccode.Other, "match: no arm matched")
}

func (in *Interp) execIfStmt(st ast.IfStmt) (ctrl, *paniccode.Panic) {
	cv, p := in.evalExpr(st.Cond)
	if p != nil {
		return ctrl{}, p
	}
	b, ok := cv.(value.Bool)
	if !ok {
		return ctrl{}, paniccode.New(paniccode.Other, "if condition did not evaluate to bool")
	}
	if b.V {
		return in.execBlock2(st.Then)
	}
	if st.Else != nil {
		return in.execBlock2(st.Else)
	}
	return ctrl{}, nil
}

// writePlace mutates the value reachable through place by reconstructing
// each aggregate ancestor and writing the result back to its root binding
// (spec.md §4.6 LowerWritePlace), except through a Deref, which writes
// directly to the pointed-to address.
func (in *Interp) writePlace(place ast.Expr, v value.Value) *paniccode.Panic {
	switch p := place.(type) {
	case ast.Ident:
		b, ok := in.St.LookupBind(p.Name)
		if !ok {
			if wrote, wp := in.writeStatic(p.Name, v); wrote {
				return wp
			}
			return paniccode.New(paniccode.Other, "assignment to unbound name "+p.Name)
		}
		info := in.St.Info(b)
		if ownership.RequiresDropOnAssign(info) {
			old := in.St.Value(b)
			if old.Direct != nil {
				in.dropValue(old.Direct)
			}
		}
		in.St.SetValue(b, store.DirectValue(v))
		in.St.SetState(b, ownership.AssignWhole(in.St.State(b)))
		return nil

	case ast.FieldAccess:
		base, pp := in.evalExpr(p.Base)
		if pp != nil {
			return pp
		}
		rec, ok := base.(value.Record)
		if !ok {
			return paniccode.New(paniccode.Other, "field assignment on non-record value")
		}
		fields := append([]value.Field(nil), rec.Fields...)
		found := false
		for i, f := range fields {
			if f.Name == p.Field {
				fields[i].Value = v
				found = true
				break
			}
		}
		if !found {
			fields = append(fields, value.Field{Name: p.Field, Value: v})
		}
		rec.Fields = fields
		return in.writePlace(p.Base, rec)

	case ast.TupleIndex:
		base, pp := in.evalExpr(p.Base)
		if pp != nil {
			return pp
		}
		tup, ok := base.(value.Tuple)
		if !ok || p.Index < 0 || p.Index >= len(tup.Elements) {
			return paniccode.New(paniccode.Bounds, "tuple index assignment out of range")
		}
		elems := append([]value.Value(nil), tup.Elements...)
		elems[p.Index] = v
		tup.Elements = elems
		return in.writePlace(p.Base, tup)

	case ast.IndexExpr:
		base, pp := in.evalExpr(p.Base)
		if pp != nil {
			return pp
		}
		idxV, pp := in.evalExpr(p.Index)
		if pp != nil {
			return pp
		}
		idx, pk := asIndex(idxV)
		if pk != nil {
			return pk
		}
		arr, ok := base.(value.Array)
		if !ok || idx < 0 || idx >= len(arr.Elements) {
			return paniccode.New(paniccode.Bounds, "index assignment out of range")
		}
		elems := append([]value.Value(nil), arr.Elements...)
		elems[idx] = v
		arr.Elements = elems
		return in.writePlace(p.Base, arr)

	case ast.Deref:
		ptrV, pp := in.evalExpr(p.Pointer)
		if pp != nil {
			return pp
		}
		ptr, ok := ptrV.(value.Ptr)
		if !ok {
			return paniccode.New(paniccode.NullDeref, "write through non-pointer value")
		}
		if ptr.State == value.PtrNull {
			return paniccode.New(paniccode.NullDeref, "write through null pointer")
		}
		if err := in.St.WriteAddr(ptr.Addr, v); err != nil {
			return paniccode.New(paniccode.ExpiredDeref, err.Error())
		}
		return nil

	default:
		return paniccode.New(paniccode.Other, "unsupported assignment target")
	}
}

func asIndex(v value.Value) (int, *paniccode.Panic) {
	iv, ok := v.(value.Int)
	if !ok {
		return 0, paniccode.New(paniccode.Other, "index value is not an integer")
	}
	n := int(iv.Magnitude.Lo)
	if iv.Negative {
		n = -n
	}
	return n, nil
}
