package main

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/value"
)

// This file holds the small AST-construction helpers the scenario builders
// in scenarios.go use; every constructor stamps a fresh ast.Node id the way
// a real parser/resolver would, even though nothing downstream of the
// interpreter (ownership, lowering) runs over these trees here.

func litInt(n int64, typ string) ast.Lit {
	neg := n < 0
	mag := n
	if neg {
		mag = -mag
	}
	return ast.Lit{Node: ast.NewNode(), Value: value.Int{Type: typ, Negative: neg, Magnitude: value.Uint128FromUint64(uint64(mag))}, Type: value.Prim{Name: typ}}
}

func ident(name string) ast.Ident { return ast.Ident{Node: ast.NewNode(), Name: name} }

func fieldAccess(base ast.Expr, field string) ast.FieldAccess {
	return ast.FieldAccess{Node: ast.NewNode(), Base: base, Field: field}
}

func indexExpr(base, index ast.Expr) ast.IndexExpr {
	return ast.IndexExpr{Node: ast.NewNode(), Base: base, Index: index}
}

func deref(ptr ast.Expr) ast.Deref { return ast.Deref{Node: ast.NewNode(), Pointer: ptr} }

func binary(op ast.BinOp, lhs, rhs ast.Expr) ast.Binary {
	return ast.Binary{Node: ast.NewNode(), Op: op, LHS: lhs, RHS: rhs}
}

func cast(inner ast.Expr, target value.TypeRef) ast.Cast {
	return ast.Cast{Node: ast.NewNode(), Inner: inner, Target: target}
}

func call(callee value.TypePath, args ...ast.Expr) ast.Call {
	return ast.Call{Node: ast.NewNode(), Callee: callee, Args: args}
}

func methodCall(receiver ast.Expr, method string, args ...ast.Expr) ast.MethodCall {
	return ast.MethodCall{Node: ast.NewNode(), Receiver: receiver, Method: method, Args: args}
}

func arrayLit(elems ...ast.Expr) ast.ArrayLit {
	return ast.ArrayLit{Node: ast.NewNode(), Elements: elems}
}

func recordLit(path value.TypePath, fields ...ast.FieldInit) ast.RecordLit {
	return ast.RecordLit{Node: ast.NewNode(), Path: path, Fields: fields}
}

func enumLit(path value.TypePath, variant string, tupleArgs ...ast.Expr) ast.EnumLit {
	return ast.EnumLit{Node: ast.NewNode(), Path: path, Variant: variant, TupleArgs: tupleArgs}
}

func matchExpr(scrutinee ast.Expr, arms ...ast.MatchArm) ast.MatchExpr {
	return ast.MatchExpr{Node: ast.NewNode(), Scrutinee: scrutinee, Arms: arms}
}

func block(stmts []ast.Stmt, result ast.Expr) ast.BlockExpr {
	return ast.BlockExpr{Node: ast.NewNode(), Stmts: stmts, Result: result}
}

func rangeExpr(kind value.RangeKind, lo, hi ast.Expr) ast.RangeExpr {
	return ast.RangeExpr{Node: ast.NewNode(), Kind: kind, Lo: lo, Hi: hi}
}

func letStmt(name string, isVar bool, init ast.Expr) ast.LetStmt {
	return ast.LetStmt{Node: ast.NewNode(), Name: name, Init: init, Var: isVar}
}

func exprStmt(e ast.Expr) ast.ExprStmt { return ast.ExprStmt{Node: ast.NewNode(), Expr: e} }

func assignStmt(place, value ast.Expr) ast.AssignStmt {
	return ast.AssignStmt{Node: ast.NewNode(), Place: place, Value: value}
}

func returnStmt(v ast.Expr) ast.ReturnStmt { return ast.ReturnStmt{Node: ast.NewNode(), Value: v} }

func regionStmt(alias string, body ...ast.Stmt) ast.RegionStmt {
	return ast.RegionStmt{Node: ast.NewNode(), Alias: alias, Body: body}
}

func allocStmt(binding string, v ast.Expr, region string) ast.AllocStmt {
	return ast.AllocStmt{Node: ast.NewNode(), Binding: binding, Value: v, Region: region}
}

func endRegionStmt(region string) ast.EndRegionStmt {
	return ast.EndRegionStmt{Node: ast.NewNode(), Region: region}
}

func loopForRange(src ast.Expr, elemName string, body ...ast.Stmt) ast.LoopStmt {
	return ast.LoopStmt{Node: ast.NewNode(), Kind: ast.LoopForRange, Cond: src, Var: elemName, Body: body}
}

func dispatchStmt(rng ast.Expr, elemName string, reduce ast.ReduceOp, body ast.Expr, resultName string) ast.DispatchStmt {
	return ast.DispatchStmt{Node: ast.NewNode(), Range: rng, ElemName: elemName, Reduce: reduce, Body: body, ResultName: resultName}
}

func bindPat(name string) ast.BindPat { return ast.BindPat{Node: ast.NewNode(), Name: name} }

func enumPat(path value.TypePath, variant string, tupleElems ...ast.Pattern) ast.EnumPat {
	return ast.EnumPat{Node: ast.NewNode(), Path: path, Variant: variant, TupleElems: tupleElems}
}

func proc(path value.TypePath, params []ast.Param, body ast.BlockExpr, isMain bool) ast.ProcDecl {
	return ast.ProcDecl{Path: path, Params: params, Body: body, IsMain: isMain}
}

func method(path value.TypePath, recvName string, params []ast.Param, body ast.BlockExpr) ast.ProcDecl {
	recv := ast.Param{Name: recvName}
	return ast.ProcDecl{Path: path, Receiver: &recv, Params: params, Body: body}
}

func module(path string, dependsOn []string, statics []ast.StaticDecl, procs ...ast.ProcDecl) *ast.ModuleDecl {
	return &ast.ModuleDecl{Path: path, DependsOn: dependsOn, Statics: statics, Procs: procs}
}

func program(mods ...*ast.ModuleDecl) *ast.Program {
	p := ast.NewProgram()
	for _, m := range mods {
		p.AddModule(m)
	}
	return p
}
