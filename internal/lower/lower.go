// Package lower implements Lowering to IR (spec.md §4.6): translating
// expressions, statements, patterns, method calls, dynamic dispatch,
// ranges, casts, transmutes, regions, parallel blocks, and static
// init/deinit into internal/ir node trees, inserting panic, bounds, cast,
// and poison checks along the way. It is grounded line-by-line on
// _examples/original_source/cursive-bootstrap/src/codegen/ir_lowering.cpp
// (AlignUp/StripPerm/ConstBytes-shaped dispatch, BuildScope) and
// 04_codegen/lower/lower_expr_places.cpp (the place-vs-value split).
package lower

import (
	"fmt"

	"github.com/cursivelang/corec/internal/config"
	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/ir"
	"github.com/cursivelang/corec/internal/layout"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/value"
)

var logger = diag.DefaultLogger("lower")

// Lowerer holds the state shared across one procedure's lowering: the
// resolved environment, the layout registry, the derived-value table
// (spec.md §4.6 "Opaque... table"), and a monotonically-increasing temp
// counter for fresh local names.
type Lowerer struct {
	SC      *sigma.ScopeContext
	Layouts *layout.Layouts
	Cache   *layout.Cache
	Cfg     config.CompilerConfig

	Table *ir.Table
	tmp   int

	// CurrentModule/CurrentProc name the procedure being lowered, used to
	// mangle panic/cleanup diagnostics and static accesses.
	CurrentModule string
	CurrentProc   string

	// boundLocals is every name bound as a parameter or `let` within the
	// procedure currently being lowered, so LowerReadPlace/LowerWritePlace
	// can tell an ast.Ident naming a local apart from one naming the
	// enclosing module's static of the same name (spec.md §4.6 LookupBind
	// falling through to the static table only when no local shadows it).
	boundLocals map[string]bool

	// cleanup is the stack of cleanup lists a LowerPanic/PanicCheck node
	// must schedule: one slice per lexical scope currently open, mirroring
	// store.Scope.Cleanup but built at lowering time over IR nodes instead
	// of CleanupItem values (spec.md §4.6 "LowerPanic node additionally
	// schedules the current scope's cleanup list").
	cleanup [][]ir.Node
}

func New(sc *sigma.ScopeContext, layouts *layout.Layouts, cache *layout.Cache, cfg config.CompilerConfig) *Lowerer {
	return &Lowerer{SC: sc, Layouts: layouts, Cache: cache, Cfg: cfg, Table: &ir.Table{}, boundLocals: map[string]bool{}}
}

// markLocal records name as bound by a parameter or `let` in the
// procedure currently being lowered.
func (lw *Lowerer) markLocal(name string) {
	if lw.boundLocals == nil {
		lw.boundLocals = map[string]bool{}
	}
	lw.boundLocals[name] = true
}

// isStatic reports whether name is an unshadowed static of the module
// currently being lowered.
func (lw *Lowerer) isStatic(name string) bool {
	if lw.boundLocals[name] {
		return false
	}
	if lw.SC == nil || lw.SC.Sigma == nil || lw.CurrentModule == "" {
		return false
	}
	mod, ok := lw.SC.Sigma.Modules[lw.CurrentModule]
	if !ok {
		return false
	}
	for _, n := range mod.StaticNames {
		if n == name {
			return true
		}
	}
	return false
}

// freshLocal allocates a new temporary local name.
func (lw *Lowerer) freshLocal(prefix string) string {
	lw.tmp++
	return fmt.Sprintf("%%%s.%d", prefix, lw.tmp)
}

// pushCleanupScope/popCleanupScope bracket a lexical scope's cleanup list
// so panic-insertion can schedule "drop everything currently in scope"
// (spec.md §4.6 LowerPanic.Cleanup).
func (lw *Lowerer) pushCleanupScope() {
	lw.cleanup = append(lw.cleanup, nil)
}

func (lw *Lowerer) popCleanupScope() []ir.Node {
	n := len(lw.cleanup)
	top := lw.cleanup[n-1]
	lw.cleanup = lw.cleanup[:n-1]
	return top
}

// appendCleanup records an IR-level cleanup action (a drop or defer) onto
// the innermost open scope, in declaration order (reversed when read back
// by currentCleanup, matching store.CleanupScope's reverse-insertion-order
// contract).
func (lw *Lowerer) appendCleanup(n ir.Node) {
	if len(lw.cleanup) == 0 {
		return
	}
	top := len(lw.cleanup) - 1
	lw.cleanup[top] = append(lw.cleanup[top], n)
}

// currentCleanup flattens every open scope's cleanup list, innermost
// first and each list reversed, for attachment to a LowerPanic/PanicCheck
// node.
func (lw *Lowerer) currentCleanup() []ir.Node {
	var out []ir.Node
	for i := len(lw.cleanup) - 1; i >= 0; i-- {
		items := lw.cleanup[i]
		for j := len(items) - 1; j >= 0; j-- {
			out = append(out, items[j])
		}
	}
	return out
}

// panicCheckAfterCall wraps a Call/CallVTable node with a PanicCheck that
// inspects the out-parameter panic record and, if set, runs the current
// cleanup list and returns (spec.md §4.6 "A PanicCheck IR after each user
// call").
func (lw *Lowerer) panicCheckAfterCall(call ir.Node) []ir.Node {
	return []ir.Node{call, ir.PanicCheck{Cleanup: lw.currentCleanup()}}
}

// lowerPanic builds a LowerPanic node for the given panic code, scheduling
// the current scope's cleanup list (spec.md §4.6).
func (lw *Lowerer) lowerPanic(code paniccode.Code, reason string) ir.Node {
	return ir.LowerPanic{Reason: fmt.Sprintf("%s:%s", code.String(), reason), Cleanup: lw.currentCleanup()}
}

// mangledProcSymbol resolves a callee path to its mangled symbol via
// internal/layout.Mangle, memoized through lw.Cache.
func (lw *Lowerer) mangledProcSymbol(path value.TypePath) string {
	v := lw.Cache.GetOrCompute(func() any { return layout.Mangle(path) }, "proc", path.String())
	return v.(string)
}

// BuiltinSym resolves a runtime/builtin operation name to the IR Symbol
// alias the downstream backend/runtime recognizes (spec.md §6 "runtime
// calls use the BuiltinSym alias table").
func BuiltinSym(name string) ir.Symbol { return ir.Symbol{Name: name, Builtin: true} }

// KeyPathSymbol renders a key path into the dotted symbol form the
// runtime's key-acquire builtin expects.
func KeyPathSymbol(p value.TypePath) string { return p.String() }
