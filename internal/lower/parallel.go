package lower

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/ir"
)

// lowerParallel lowers a `parallel(domain) { ... }` block to a fork/join
// pair around the body, with the execution domain passed as a builtin
// symbol argument the runtime contract's pool dispatch reads (spec.md §4.6,
// SPEC_FULL.md §2 internal/runtime/parallel.go).
func (lw *Lowerer) lowerParallel(st ast.ParallelStmt) []ir.Node {
	owner := st.Name
	if owner == "" {
		owner = lw.freshLocal("parallel")
	}
	lw.markLocal(owner)
	begin := ir.Call{Symbol: "$parallel_begin", Args: []ir.IRValue{ir.Symbol{Name: st.Domain}}, Dest: owner}
	var bodyNodes []ir.Node
	for _, s := range st.Body {
		bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
	}
	join := ir.Call{Symbol: "$parallel_join", Args: []ir.IRValue{ir.Local{Name: owner}}}
	return append([]ir.Node{begin}, append(bodyNodes, join)...)
}

// lowerSpawn captures the named bindings (by move or by reference) and
// allocates a handle the enclosing scope later `wait`s on.
func (lw *Lowerer) lowerSpawn(st ast.SpawnStmt) []ir.Node {
	var setup []ir.Node
	for _, c := range st.Captures {
		dest := lw.freshLocal("capture")
		if c.Move {
			setup = append(setup, ir.ReadVar{Name: c.Name, Dest: dest})
		} else {
			opq := lw.Table.Add(ir.Derived{Kind: ir.DerivedAddrOf, Base: ir.Local{Name: c.Name}})
			setup = append(setup, ir.BindVar{Name: dest, Value: opq})
		}
	}
	var bodyNodes []ir.Node
	for _, s := range st.Body {
		bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
	}
	lw.markLocal(st.Binding)
	setup = append(setup, ir.Call{Symbol: "$spawn", Args: nil, Dest: st.Binding})
	setup = append(setup, bodyNodes...)
	return setup
}

// lowerDispatch lowers a chunked parallel-for with an optional reduction
// (spec.md §4.6 dispatch), running the per-iteration body inside a
// for-range loop and feeding each iteration's result to the reducer
// builtin; `ordered` is threaded through unchanged so the runtime contract
// can choose a sequential-commit vs. any-order reduce strategy.
func (lw *Lowerer) lowerDispatch(st ast.DispatchStmt) []ir.Node {
	rangeVal, setup := lw.LowerExpr(st.Range)

	chunk := st.ChunkSize
	chunkBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		chunkBytes[i] = byte(chunk >> (8 * uint(i)))
	}
	ordered := byte(0)
	if st.Ordered {
		ordered = 1
	}
	reduceSym := string(st.Reduce)
	if st.Reduce == ast.ReduceUser {
		reduceSym = lw.mangledProcSymbol(st.ReduceFunc)
	}

	accum := lw.freshLocal("dispatch_acc")
	setup = append(setup, ir.Call{
		Symbol: "$dispatch_begin",
		Args:   []ir.IRValue{rangeVal, ir.Immediate{Bytes: chunkBytes}, ir.Immediate{Bytes: []byte{ordered}}, ir.Symbol{Name: reduceSym}},
		Dest:   accum,
	})

	lw.markLocal(st.ElemName)
	elemVal, elemSetup := lw.LowerExpr(st.Body)
	bodyNodes := append([]ir.Node{ir.BindVar{Name: st.ElemName, Value: rangeVal}}, elemSetup...)
	bodyNodes = append(bodyNodes, ir.Call{Symbol: "$dispatch_reduce", Args: []ir.IRValue{ir.Local{Name: accum}, elemVal}})
	setup = append(setup, ir.Loop{Kind: ir.LoopForRange, Cond: rangeVal, Body: ir.Block{Body: bodyNodes}})

	endDest := accum
	if st.ResultName != "" {
		endDest = st.ResultName
		lw.markLocal(st.ResultName)
	}
	setup = append(setup, ir.Call{Symbol: "$dispatch_end", Args: []ir.IRValue{ir.Local{Name: accum}}, Dest: endDest})
	return setup
}
