package region

import (
	"testing"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/value"
)

func TestAllocWithoutActiveRegionIsRejected(t *testing.T) {
	proc := ast.ProcDecl{
		Path: value.NewTypePath("f"),
		Body: ast.BlockExpr{Node: ast.NewNode(), Stmts: []ast.Stmt{
			ast.AllocStmt{Node: ast.NewNode(), Binding: "p", Value: ast.Lit{Node: ast.NewNode(), Value: value.Unit{}}},
		}},
	}
	a := New()
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected one diagnostic for alloc with no active region, got %v", a.Diagnostics())
	}
}

func TestAllocInsideRegionIsAccepted(t *testing.T) {
	proc := ast.ProcDecl{
		Path: value.NewTypePath("f"),
		Body: ast.BlockExpr{Node: ast.NewNode(), Stmts: []ast.Stmt{
			ast.RegionStmt{Node: ast.NewNode(), Alias: "r", Body: []ast.Stmt{
				ast.AllocStmt{Node: ast.NewNode(), Binding: "p", Value: ast.Lit{Node: ast.NewNode(), Value: value.Unit{}}, Region: "r"},
			}},
		}},
	}
	a := New()
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 0 {
		t.Fatalf("expected no diagnostics, got %v", a.Diagnostics())
	}
}

func TestFrameWithUnknownRegionIsRejected(t *testing.T) {
	proc := ast.ProcDecl{
		Path: value.NewTypePath("f"),
		Body: ast.BlockExpr{Node: ast.NewNode(), Stmts: []ast.Stmt{
			ast.FrameStmt{Node: ast.NewNode(), Region: "missing", Body: []ast.Stmt{}},
		}},
	}
	a := New()
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected one diagnostic for frame with no matching region, got %v", a.Diagnostics())
	}
}

func TestUseAfterFreeUncheckedIsRejected(t *testing.T) {
	proc := ast.ProcDecl{
		Path: value.NewTypePath("f"),
		Body: ast.BlockExpr{Node: ast.NewNode(), Stmts: []ast.Stmt{
			ast.RegionStmt{Node: ast.NewNode(), Alias: "r", Body: []ast.Stmt{
				ast.AllocStmt{Node: ast.NewNode(), Binding: "p", Value: ast.Lit{Node: ast.NewNode(), Value: value.Unit{}}, Region: "r"},
				ast.FreeUncheckedStmt{Node: ast.NewNode(), Region: "r"},
				ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Ident{Node: ast.NewNode(), Name: "p"}},
			}},
		}},
	}
	a := New()
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected a dangling-pointer diagnostic after free_unchecked, got %v", a.Diagnostics())
	}
}

func TestUseAfterRegionBlockExitIsRejected(t *testing.T) {
	proc := ast.ProcDecl{
		Path: value.NewTypePath("f"),
		Body: ast.BlockExpr{Node: ast.NewNode(), Stmts: []ast.Stmt{
			ast.RegionStmt{Node: ast.NewNode(), Alias: "r", Body: []ast.Stmt{
				ast.AllocStmt{Node: ast.NewNode(), Binding: "p", Value: ast.Lit{Node: ast.NewNode(), Value: value.Unit{}}, Region: "r"},
			}},
			ast.ExprStmt{Node: ast.NewNode(), Expr: ast.Ident{Node: ast.NewNode(), Name: "p"}},
		}},
	}
	a := New()
	a.AnalyzeProc(proc)
	if len(a.Diagnostics()) != 1 {
		t.Fatalf("expected a dangling-pointer diagnostic once the region block exits, got %v", a.Diagnostics())
	}
}
