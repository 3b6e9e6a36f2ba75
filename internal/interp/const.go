package interp

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

// EvalConst evaluates e as a module-level static initializer would be
// evaluated at compile time (spec.md §4.8): it succeeds only when the
// result is a pure scalar immediate, the same "this is a compile-time
// constant" test value.EncodeImmediate gives lowering's literal path, so
// a static that can be constant-folded into GlobalConst bytes and one
// that can't agree between the two passes.
func EvalConst(e ast.Expr) ([]byte, bool) {
	in := &Interp{
		Program: ast.NewProgram(),
		procs:   map[string]*ast.ProcDecl{},
	}
	in.St = store.New()
	in.St.Dropper = in.dropItem
	in.St.PushScope()
	v, p := in.evalExpr(e)
	in.St.PopScope()
	if p != nil {
		return nil, false
	}
	return value.EncodeImmediate(v)
}
