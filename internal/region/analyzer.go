// Package region implements the Region & Frame Analyzer (spec.md §4.4): a
// static pass over a procedure body that validates region/frame nesting,
// checks every alloc site targets an active region, and flags pointer
// provenance escaping past the region that owns it. It is the static
// counterpart to internal/store's region.go, which performs the same
// teardown bookkeeping at interpretation time — this package catches the
// same class of mistake (read after teardown) before the program runs.
package region

import (
	"fmt"

	"github.com/cursivelang/corec/internal/ast"
)

// scope tracks one lexically active region block: its alias (empty for an
// anonymous `region { ... }`), and the set of binding names allocated
// directly into it.
type scope struct {
	alias   string
	allocs  map[string]bool
	expired bool
}

// Analyzer walks a procedure body validating region/frame discipline.
type Analyzer struct {
	diags    []error
	active   []*scope
	expired  map[string]string // binding name -> message, once its region tears down
}

func New() *Analyzer {
	return &Analyzer{expired: map[string]string{}}
}

func (a *Analyzer) Diagnostics() []error { return a.diags }

func (a *Analyzer) errorf(format string, args ...any) {
	a.diags = append(a.diags, fmt.Errorf(format, args...))
}

// AnalyzeProc walks every statement of proc.Body.
func (a *Analyzer) AnalyzeProc(proc ast.ProcDecl) {
	a.walkStmts(proc.Body.Stmts)
	if proc.Body.Result != nil {
		a.walkExpr(proc.Body.Result)
	}
}

// findActive returns the scope matching alias (searching outward from the
// innermost), or the innermost scope when alias is empty (spec.md §4.4
// "targets the innermost active region"). ok is false when alias is
// non-empty and unmatched, or empty with no region active at all.
func (a *Analyzer) findActive(alias string) (*scope, bool) {
	if alias == "" {
		if len(a.active) == 0 {
			return nil, false
		}
		return a.active[len(a.active)-1], true
	}
	for i := len(a.active) - 1; i >= 0; i-- {
		if a.active[i].alias == alias {
			return a.active[i], true
		}
	}
	return nil, false
}

func (a *Analyzer) tearDown(sc *scope, reason string) {
	if sc.expired {
		return
	}
	sc.expired = true
	for name := range sc.allocs {
		a.expired[name] = reason
	}
}

func (a *Analyzer) walkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		a.walkStmt(s)
	}
}

func (a *Analyzer) walkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case ast.RegionStmt:
		sc := &scope{alias: st.Alias, allocs: map[string]bool{}}
		a.active = append(a.active, sc)
		a.walkStmts(st.Body)
		a.active = a.active[:len(a.active)-1]
		a.tearDown(sc, fmt.Sprintf("region %q torn down at block exit", displayAlias(st.Alias)))

	case ast.FrameStmt:
		if _, ok := a.findActive(st.Region); !ok {
			if st.Region == "" {
				a.errorf("frame has no active region to target")
			} else {
				a.errorf("frame references region %q which is not active", st.Region)
			}
		}
		a.walkStmts(st.Body)

	case ast.AllocStmt:
		a.walkExpr(st.Value)
		sc, ok := a.findActive(st.Region)
		if !ok {
			if st.Region == "" {
				a.errorf("alloc of %q has no active region to target", st.Binding)
			} else {
				a.errorf("alloc of %q targets region %q which is not active", st.Binding, st.Region)
			}
			return
		}
		sc.allocs[st.Binding] = true
		delete(a.expired, st.Binding)

	case ast.FreeUncheckedStmt:
		sc, ok := a.findActive(st.Region)
		if !ok {
			a.errorf("free_unchecked references region %q which is not active", st.Region)
			return
		}
		a.tearDown(sc, fmt.Sprintf("region %q explicitly freed by free_unchecked", displayAlias(st.Region)))

	case ast.EndRegionStmt:
		sc, ok := a.findActive(st.Region)
		if !ok {
			a.errorf("end region references region %q which is not active", st.Region)
			return
		}
		a.tearDown(sc, fmt.Sprintf("region %q ended by explicit `end region`", displayAlias(st.Region)))

	case ast.LetStmt:
		if st.Init != nil {
			a.walkExpr(st.Init)
		}
	case ast.ExprStmt:
		a.walkExpr(st.Expr)
	case ast.AssignStmt:
		a.walkExpr(st.Place)
		a.walkExpr(st.Value)
	case ast.ReturnStmt:
		if st.Value != nil {
			a.walkExpr(st.Value)
		}
	case ast.IfStmt:
		a.walkExpr(st.Cond)
		a.walkStmts(st.Then)
		a.walkStmts(st.Else)
	case ast.LoopStmt:
		if st.Cond != nil {
			a.walkExpr(st.Cond)
		}
		a.walkStmts(st.Body)
	case ast.MatchStmt:
		a.walkExpr(st.Scrutinee)
		for _, arm := range st.Arms {
			if arm.Guard != nil {
				a.walkExpr(arm.Guard)
			}
			a.walkStmts(arm.Body)
		}
	case ast.KeyStmt:
		a.walkStmts(st.Body)
	case ast.ParallelStmt:
		a.walkStmts(st.Body)
	case ast.SpawnStmt:
		a.walkStmts(st.Body)
	case ast.WaitStmt:
		a.walkExpr(st.Handle)
	case ast.DispatchStmt:
		a.walkExpr(st.Range)
		a.walkExpr(st.Body)
	}
}

// walkExpr looks only for identifier uses and address-of expressions that
// might read through or capture a pointer into an already-torn-down
// region (spec.md §4.4 pointer provenance vs. lifetime).
func (a *Analyzer) walkExpr(e ast.Expr) {
	switch ex := e.(type) {
	case nil:
		return
	case ast.Ident:
		if reason, bad := a.expired[ex.Name]; bad {
			a.errorf("use of %q after %s", ex.Name, reason)
		}
	case ast.FieldAccess:
		a.walkExpr(ex.Base)
	case ast.TupleIndex:
		a.walkExpr(ex.Base)
	case ast.IndexExpr:
		a.walkExpr(ex.Base)
		a.walkExpr(ex.Index)
	case ast.SliceExpr:
		a.walkExpr(ex.Base)
		a.walkExpr(ex.Range)
	case ast.Call:
		for _, arg := range ex.Args {
			a.walkExpr(arg)
		}
	case ast.MethodCall:
		a.walkExpr(ex.Receiver)
		for _, arg := range ex.Args {
			a.walkExpr(arg)
		}
	case ast.Move:
		a.walkExpr(ex.Place)
	case ast.AddrOf:
		a.walkExpr(ex.Place)
	case ast.Deref:
		a.walkExpr(ex.Pointer)
	case ast.Binary:
		a.walkExpr(ex.LHS)
		a.walkExpr(ex.RHS)
	case ast.Unary:
		a.walkExpr(ex.Operand)
	case ast.Cast:
		a.walkExpr(ex.Inner)
	case ast.Transmute:
		a.walkExpr(ex.Inner)
	case ast.TupleLit:
		for _, el := range ex.Elements {
			a.walkExpr(el)
		}
	case ast.ArrayLit:
		for _, el := range ex.Elements {
			a.walkExpr(el)
		}
	case ast.RecordLit:
		for _, f := range ex.Fields {
			a.walkExpr(f.Value)
		}
	case ast.EnumLit:
		for _, arg := range ex.TupleArgs {
			a.walkExpr(arg)
		}
		for _, f := range ex.RecordFields {
			a.walkExpr(f.Value)
		}
	case ast.MatchExpr:
		a.walkExpr(ex.Scrutinee)
		for _, arm := range ex.Arms {
			if arm.Guard != nil {
				a.walkExpr(arm.Guard)
			}
			a.walkExpr(arm.Body)
		}
	case ast.IfExpr:
		a.walkExpr(ex.Cond)
		a.walkExpr(ex.Then)
		a.walkExpr(ex.Else)
	case ast.BlockExpr:
		a.walkStmts(ex.Stmts)
		a.walkExpr(ex.Result)
	case ast.RangeExpr:
		a.walkExpr(ex.Lo)
		a.walkExpr(ex.Hi)
	case ast.DynPack:
		a.walkExpr(ex.Inner)
	}
}

func displayAlias(alias string) string {
	if alias == "" {
		return "<anonymous>"
	}
	return alias
}
