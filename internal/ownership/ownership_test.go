package ownership

import (
	"testing"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

func TestMoveThenUseIsRejected(t *testing.T) {
	body := ast.BlockExpr{
		Node: ast.NewNode(),
		Stmts: []ast.Stmt{
			ast.LetStmt{Node: ast.NewNode(), Name: "x", Init: ast.RecordLit{Node: ast.NewNode(), Path: value.NewTypePath("Box")}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Move{Node: ast.NewNode(), Place: ast.Ident{Node: ast.NewNode(), Name: "x"}}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Ident{Node: ast.NewNode(), Name: "x"}},
		},
	}
	proc := ast.ProcDecl{Path: value.NewTypePath("f"), Body: body}

	a := New(nil)
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %v", a.Diagnostics())
	}
}

func TestFieldMoveThenWholeReadIsRejected(t *testing.T) {
	body := ast.BlockExpr{
		Node: ast.NewNode(),
		Stmts: []ast.Stmt{
			ast.LetStmt{Node: ast.NewNode(), Name: "p", Init: ast.RecordLit{Node: ast.NewNode(), Path: value.NewTypePath("Pair")}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Move{Node: ast.NewNode(), Place: ast.FieldAccess{Node: ast.NewNode(), Base: ast.Ident{Node: ast.NewNode(), Name: "p"}, Field: "a"}}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.FieldAccess{Node: ast.NewNode(), Base: ast.Ident{Node: ast.NewNode(), Name: "p"}, Field: "b"}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Ident{Node: ast.NewNode(), Name: "p"}},
		},
	}
	proc := ast.ProcDecl{Path: value.NewTypePath("f"), Body: body}

	a := New(nil)
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected exactly one diagnostic (whole read of partially-moved p), got %v", a.Diagnostics())
	}
}

func TestReassignRestoresValid(t *testing.T) {
	body := ast.BlockExpr{
		Node: ast.NewNode(),
		Stmts: []ast.Stmt{
			ast.LetStmt{Node: ast.NewNode(), Name: "x", Var: true, Init: ast.RecordLit{Node: ast.NewNode(), Path: value.NewTypePath("Box")}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Move{Node: ast.NewNode(), Place: ast.Ident{Node: ast.NewNode(), Name: "x"}}},
			ast.AssignStmt{Node: ast.NewNode(), Place: ast.Ident{Node: ast.NewNode(), Name: "x"}, Value: ast.RecordLit{Node: ast.NewNode(), Path: value.NewTypePath("Box")}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Ident{Node: ast.NewNode(), Name: "x"}},
		},
	}
	proc := ast.ProcDecl{Path: value.NewTypePath("f"), Body: body}

	a := New(nil)
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 0 {
		t.Fatalf("expected no diagnostics after reassignment, got %v", a.Diagnostics())
	}
}

func TestIfJoinMovedOnOneBranchIsMoved(t *testing.T) {
	body := ast.BlockExpr{
		Node: ast.NewNode(),
		Stmts: []ast.Stmt{
			ast.LetStmt{Node: ast.NewNode(), Name: "x", Init: ast.RecordLit{Node: ast.NewNode(), Path: value.NewTypePath("Box")}},
			ast.IfStmt{
				Node: ast.NewNode(),
				Cond: ast.Lit{Node: ast.NewNode(), Value: value.Bool{V: true}},
				Then: []ast.Stmt{ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Move{Node: ast.NewNode(), Place: ast.Ident{Node: ast.NewNode(), Name: "x"}}}},
				Else: []ast.Stmt{},
			},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Ident{Node: ast.NewNode(), Name: "x"}},
		},
	}
	proc := ast.ProcDecl{Path: value.NewTypePath("f"), Body: body}

	a := New(nil)
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected moved-on-one-branch to reject the post-join read, got %v", a.Diagnostics())
	}
}

func TestImmovCannotBeMoved(t *testing.T) {
	env := Env{"x": {State: store.ValidState(), Info: store.BindInfo{Responsibility: store.Alias, Movability: store.Immov}}}
	a := New(nil)
	a.applyMove(env, ast.Ident{Node: ast.NewNode(), Name: "x"})
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected a diagnostic for moving an Immov binding, got %v", a.Diagnostics())
	}
}

func TestStaticBindingInfoAliasRule(t *testing.T) {
	info := StaticBindingInfo(true, false)
	if info.Responsibility != store.Alias || info.Movability != store.Immov {
		t.Fatalf("expected Alias+Immov for a place-expression static without explicit move, got %+v", info)
	}
	info2 := StaticBindingInfo(true, true)
	if info2.Responsibility != store.Resp {
		t.Fatalf("expected Resp when the static initializer is an explicit move")
	}
}

func TestModalOperationRejectsGeneralState(t *testing.T) {
	path := value.NewTypePath("Conn")
	general := value.PathType{Path: path}
	if err := CheckModalOperation(general, "Open"); err == nil {
		t.Fatalf("expected rejection of a state-specific op on a general modal type")
	}
	specific := value.ModalStateType{Path: path, State: "Open"}
	if err := CheckModalOperation(specific, "Open"); err != nil {
		t.Fatalf("expected the matching state to be accepted: %v", err)
	}
	if err := CheckModalOperation(specific, "Closed"); err == nil {
		t.Fatalf("expected a state mismatch to be rejected")
	}
}

func TestMergeAllMovedWins(t *testing.T) {
	m := MergeAll(store.ValidState(), store.ValidState(), store.MovedState())
	if m.Kind != store.Moved {
		t.Fatalf("expected Moved to dominate the merge, got %v", m.Kind)
	}
}

func TestMergePartialUnion(t *testing.T) {
	m := Merge(store.PartiallyMovedState("a"), store.PartiallyMovedState("b"))
	if m.Kind != store.PartiallyMoved {
		t.Fatalf("expected PartiallyMoved, got %v", m.Kind)
	}
	fields := m.SortedFields()
	if len(fields) != 2 || fields[0] != "a" || fields[1] != "b" {
		t.Fatalf("expected union {a,b}, got %v", fields)
	}
}
