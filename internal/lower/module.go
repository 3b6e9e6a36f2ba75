package lower

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/interp"
	"github.com/cursivelang/corec/internal/ir"
)

// LowerModule lowers one module's statics into the init_M/deinit_M IR
// bodies a backend would run at program startup/shutdown (spec.md §4.2,
// §4.6 "module-level statics lower to an eagerly-run init_M body"). A
// static whose initializer const-folds (internal/interp.EvalConst agrees
// with it) skips init_M entirely: it becomes a GlobalConst, or a
// GlobalZero when every folded byte is zero, either way something a
// backend places directly in its data section instead of running code
// for. Everything else lowers into init_M the same way any other
// statement would, through StoreGlobal instead of StoreVar, wrapped in
// the module's InitPanicHandle/CheckPoison pair (spec.md §4.2 "a panic
// during a module's eager initializer poisons it").
func (lw *Lowerer) LowerModule(m *ast.ModuleDecl) (globals []ir.Node, initBody []ir.Node, deinitBody []ir.Node) {
	prevModule := lw.CurrentModule
	lw.CurrentModule = m.Path
	defer func() { lw.CurrentModule = prevModule }()

	if len(m.Statics) == 0 {
		return nil, nil, nil
	}

	initBody = append(initBody, ir.InitPanicHandle{Module: m.Path, PoisonModules: append([]string(nil), m.DependsOn...)})
	for _, dep := range m.DependsOn {
		initBody = append(initBody, ir.CheckPoison{Module: dep})
	}

	lw.pushCleanupScope()
	for _, stc := range m.Statics {
		if bytes, ok := interp.EvalConst(stc.Init); ok {
			if allZero(bytes) {
				size, _ := lw.Layouts.SizeOf(stc.Type)
				if size == 0 {
					size = uint64(len(bytes))
				}
				globals = append(globals, ir.GlobalZero{Module: m.Path, Name: stc.Name, Size: size})
			} else {
				globals = append(globals, ir.GlobalConst{Module: m.Path, Name: stc.Name, Bytes: bytes})
			}
			continue
		}

		var val ir.IRValue
		var setup []ir.Node
		if stc.Explicit {
			val, setup = lw.LowerMovePlace(stc.Init)
		} else {
			val, setup = lw.LowerExpr(stc.Init)
		}
		initBody = append(initBody, setup...)
		initBody = append(initBody, ir.StoreGlobal{Module: m.Path, Name: stc.Name, Value: val})
		lw.appendCleanup(ir.StoreGlobal{Module: m.Path, Name: stc.Name, Value: ir.Immediate{}})
	}
	items := lw.popCleanupScope()
	for i := len(items) - 1; i >= 0; i-- {
		deinitBody = append(deinitBody, items[i])
	}

	return globals, initBody, deinitBody
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
