package lower

import (
	"fmt"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/ir"
)

// LowerProc lowers one procedure's body to the IR sequence a backend would
// run for a call to it (spec.md §4.6): each parameter becomes a BindVar
// binding its argument-slot local, the body lowers exactly as
// lowerBlockExpr lowers any other block, and its tail value becomes an
// explicit Return so every exit path — fallthrough and an explicit
// `return` statement alike — ends in the same node kind.
func (lw *Lowerer) LowerProc(modulePath string, proc *ast.ProcDecl) []ir.Node {
	prevModule, prevProc, prevLocals := lw.CurrentModule, lw.CurrentProc, lw.boundLocals
	lw.CurrentModule = modulePath
	lw.CurrentProc = proc.Path.String()
	lw.boundLocals = map[string]bool{}
	defer func() {
		lw.CurrentModule, lw.CurrentProc, lw.boundLocals = prevModule, prevProc, prevLocals
	}()

	var setup []ir.Node
	if proc.Receiver != nil {
		lw.markLocal(proc.Receiver.Name)
		setup = append(setup, ir.BindVar{Name: proc.Receiver.Name, Value: ir.Local{Name: "$recv"}})
	}
	for i, p := range proc.Params {
		lw.markLocal(p.Name)
		setup = append(setup, ir.BindVar{Name: p.Name, Value: ir.Local{Name: fmt.Sprintf("$arg%d", i)}})
	}

	result, bodySetup := lw.lowerBlockExpr(proc.Body)
	setup = append(setup, bodySetup...)
	setup = append(setup, ir.Return{Value: result})
	return setup
}
