package lower

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/ir"
)

// LowerStmt lowers one statement to its IR node sequence (spec.md §4.6).
func (lw *Lowerer) LowerStmt(s ast.Stmt) []ir.Node {
	switch st := s.(type) {
	case ast.LetStmt:
		var val ir.IRValue = ir.Immediate{}
		var setup []ir.Node
		if st.Init != nil {
			if st.Explicit {
				val, setup = lw.LowerMovePlace(st.Init)
			} else {
				val, setup = lw.LowerExpr(st.Init)
			}
		}
		setup = append(setup, ir.BindVar{Name: st.Name, Value: val})
		lw.appendCleanup(ir.StoreVar{Name: st.Name, Value: ir.Immediate{}})
		lw.markLocal(st.Name)
		return setup

	case ast.ExprStmt:
		_, setup := lw.LowerExpr(st.Expr)
		return setup

	case ast.AssignStmt:
		val, setup := lw.LowerExpr(st.Value)
		setup = append(setup, lw.LowerWritePlace(st.Place, val)...)
		return setup

	case ast.ReturnStmt:
		var val ir.IRValue = ir.Immediate{}
		var setup []ir.Node
		if st.Value != nil {
			val, setup = lw.LowerExpr(st.Value)
		}
		setup = append(setup, ir.Return{Value: val})
		return setup

	case ast.BreakStmt:
		return []ir.Node{ir.Break{}}
	case ast.ContinueStmt:
		return []ir.Node{ir.Continue{}}

	case ast.LoopStmt:
		return lw.lowerLoop(st)

	case ast.RegionStmt:
		return lw.lowerRegion(st)
	case ast.FrameStmt:
		return lw.lowerFrame(st)
	case ast.AllocStmt:
		return lw.lowerAlloc(st)
	case ast.FreeUncheckedStmt:
		return []ir.Node{ir.Call{Symbol: "$free_unchecked", Args: []ir.IRValue{ir.Symbol{Name: st.Region}}}}
	case ast.EndRegionStmt:
		return []ir.Node{ir.Call{Symbol: "$region_end", Args: []ir.IRValue{ir.Symbol{Name: st.Region}}}}

	case ast.KeyStmt:
		return lw.lowerKey(st)
	case ast.ParallelStmt:
		return lw.lowerParallel(st)
	case ast.SpawnStmt:
		return lw.lowerSpawn(st)
	case ast.WaitStmt:
		val, setup := lw.LowerExpr(st.Handle)
		setup = append(setup, ir.Call{Symbol: "$wait", Args: []ir.IRValue{val}})
		return setup
	case ast.DispatchStmt:
		return lw.lowerDispatch(st)

	case ast.MatchStmt:
		return lw.lowerMatchStmt(st)
	case ast.IfStmt:
		return lw.lowerIfStmt(st)

	default:
		logger.Error("unhandled statement kind in lowering")
		return nil
	}
}

func (lw *Lowerer) lowerLoop(st ast.LoopStmt) []ir.Node {
	switch st.Kind {
	case ast.LoopWhile:
		cond, condSetup := lw.LowerExpr(st.Cond)
		var bodyNodes []ir.Node
		bodyNodes = append(bodyNodes, condSetup...)
		for _, s := range st.Body {
			bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
		}
		return []ir.Node{ir.Loop{Kind: ir.LoopWhile, Cond: cond, Body: ir.Block{Body: bodyNodes}}}

	case ast.LoopForRange:
		srcVal, setup := lw.LowerExpr(st.Cond)
		var bodyNodes []ir.Node
		bodyNodes = append(bodyNodes, ir.BindVar{Name: st.Var, Value: srcVal})
		for _, s := range st.Body {
			bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
		}
		setup = append(setup, ir.Loop{Kind: ir.LoopForRange, Cond: srcVal, Body: ir.Block{Body: bodyNodes}})
		return setup

	default: // LoopInfinite
		var bodyNodes []ir.Node
		for _, s := range st.Body {
			bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
		}
		return []ir.Node{ir.Loop{Kind: ir.LoopInfinite, Body: ir.Block{Body: bodyNodes}}}
	}
}

func (lw *Lowerer) lowerRegion(st ast.RegionStmt) []ir.Node {
	owner := st.Alias
	if owner == "" {
		owner = lw.freshLocal("region")
	}
	var bodyNodes []ir.Node
	for _, s := range st.Body {
		bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
	}
	return []ir.Node{ir.Region{Owner: owner, Alias: st.Alias, Body: ir.Block{Body: bodyNodes}}}
}

func (lw *Lowerer) lowerFrame(st ast.FrameStmt) []ir.Node {
	var bodyNodes []ir.Node
	for _, s := range st.Body {
		bodyNodes = append(bodyNodes, lw.LowerStmt(s)...)
	}
	return []ir.Node{ir.Frame{Region: st.Region, Body: ir.Block{Body: bodyNodes}}}
}

func (lw *Lowerer) lowerAlloc(st ast.AllocStmt) []ir.Node {
	val, setup := lw.LowerExpr(st.Value)
	setup = append(setup, ir.Alloc{Region: st.Region, Value: val})
	setup = append(setup, ir.BindVar{Name: st.Binding, Value: val})
	return setup
}

func (lw *Lowerer) lowerKey(st ast.KeyStmt) []ir.Node {
	var setup []ir.Node
	for _, k := range st.Keys {
		sym := KeyPathSymbol(k.Path)
		mode := "write"
		if k.Mode == ast.KeyRead {
			mode = "read"
		}
		setup = append(setup, ir.Call{Symbol: "$key_acquire", Args: []ir.IRValue{ir.Symbol{Name: sym}, ir.Symbol{Name: mode}}})
	}
	for _, s := range st.Body {
		setup = append(setup, lw.LowerStmt(s)...)
	}
	for i := len(st.Keys) - 1; i >= 0; i-- {
		sym := KeyPathSymbol(st.Keys[i].Path)
		setup = append(setup, ir.Call{Symbol: "$key_release", Args: []ir.IRValue{ir.Symbol{Name: sym}}})
	}
	return setup
}

func (lw *Lowerer) lowerMatchStmt(st ast.MatchStmt) []ir.Node {
	scrutinee, setup := lw.LowerExpr(st.Scrutinee)
	var arms []ir.MatchArm
	for _, arm := range st.Arms {
		testDest := lw.freshLocal("arm_test")
		test := ir.Block{Body: lw.lowerPattern(arm.Pattern, scrutinee, testDest)}
		if arm.Guard != nil {
			guardVal, guardSetup := lw.LowerExpr(arm.Guard)
			andDest := lw.freshLocal("guard_and")
			guardBody := append(guardSetup, ir.BinaryOp{Op: "&&", LHS: ir.Local{Name: testDest}, RHS: guardVal, Dest: andDest}, ir.StoreVar{Name: testDest, Value: ir.Local{Name: andDest}})
			test.Body = append(test.Body, ir.If{Cond: ir.Local{Name: testDest}, Then: ir.Block{Body: guardBody}})
		}
		var bodyNodes []ir.Node
		for _, bs := range arm.Body {
			bodyNodes = append(bodyNodes, lw.LowerStmt(bs)...)
		}
		arms = append(arms, ir.MatchArm{Test: wrapTestResult(test, testDest), Body: ir.Block{Body: bodyNodes}})
	}
	setup = append(setup, ir.Match{Scrutinee: scrutinee, Arms: arms})
	return setup
}

func (lw *Lowerer) lowerIfStmt(st ast.IfStmt) []ir.Node {
	cond, setup := lw.LowerExpr(st.Cond)
	var thenNodes []ir.Node
	for _, s := range st.Then {
		thenNodes = append(thenNodes, lw.LowerStmt(s)...)
	}
	var elseNode ir.Node
	if st.Else != nil {
		var elseNodes []ir.Node
		for _, s := range st.Else {
			elseNodes = append(elseNodes, lw.LowerStmt(s)...)
		}
		elseNode = ir.Block{Body: elseNodes}
	}
	setup = append(setup, ir.If{Cond: cond, Then: ir.Block{Body: thenNodes}, Else: elseNode})
	return setup
}
