// Package interp implements the reference interpreter (spec.md §4.8): a
// small-step evaluator over internal/ast driving internal/store.Sigma
// exactly as internal/lower's rules would once translated to a target, so
// that "every AST node has a rule in lowering and a mirror rule here; the
// two must agree on observable behavior". It doubles as the constant
// initializer evaluator (EvalConst) and the whole-program driver main()
// needs, grounded on the teacher's own thin "construct subsystems, run,
// report" entry shape (kernel/main.go) generalized from a mesh-node
// bootstrap to a module-init/main-call driver.
package interp

import (
	"fmt"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/ownership"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/runtime"
	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

var logger = diag.DefaultLogger("interp")

// Interp holds everything one program execution needs: the resolved
// program, the upstream type/class environment, the runtime capability
// set, and the live store.
type Interp struct {
	Program *ast.Program
	Sigma   *sigma.Sigma
	RT      *runtime.Runtime
	St      *store.Sigma

	procs       map[string]*ast.ProcDecl
	procModule  map[string]string
	nextCapID   uint64
	contexts    map[uint64]*runtime.Context
	keyContexts map[uint64]*keyFrame

	// regionAliases maps a RegionStmt's optional alias name to its live
	// Region, so a later FrameStmt/AllocStmt/FreeUncheckedStmt/EndRegionStmt
	// naming that alias can find it (spec.md §4.4).
	regionAliases map[string]*store.Region

	// currentModule is the module owning the procedure currently executing,
	// so an unqualified ast.Ident that isn't a local binding can be
	// resolved against that module's statics (spec.md §4.2 LookupBind
	// falling through to the static table).
	currentModule string
}

// keyFrame is a live `key { ... }` block's acquired handles, so KeyStmt can
// release exactly what it acquired on every exit path.
type keyFrame struct {
	handles []keyHandle
}

// New builds an interpreter for prog against sg (may be nil for programs
// that need no class/type resolution) and rt (the capability set to hand
// to main).
func New(prog *ast.Program, sg *sigma.Sigma, rt *runtime.Runtime) *Interp {
	in := &Interp{
		Program:    prog,
		Sigma:      sg,
		RT:         rt,
		procs:      map[string]*ast.ProcDecl{},
		procModule: map[string]string{},
		contexts:   map[uint64]*runtime.Context{},
	}
	for _, m := range prog.Modules {
		for i := range m.Procs {
			p := &m.Procs[i]
			key := p.Path.String()
			in.procs[key] = p
			in.procModule[key] = m.Path
		}
	}
	return in
}

// moduleOrder topologically sorts modules by DependsOn (spec.md §4.2
// eager module init order), breaking ties by path for determinism.
func (in *Interp) moduleOrder() []string {
	visited := map[string]int{} // 0 unvisited, 1 in-progress, 2 done
	var order []string
	var names []string
	for name := range in.Program.Modules {
		names = append(names, name)
	}
	sortStrings(names)
	var visit func(string)
	visit = func(name string) {
		switch visited[name] {
		case 2:
			return
		case 1:
			logger.Warn("module dependency cycle detected", diag.String("module", name))
			return
		}
		visited[name] = 1
		if m, ok := in.Program.Modules[name]; ok {
			deps := append([]string(nil), m.DependsOn...)
			sortStrings(deps)
			for _, d := range deps {
				visit(d)
			}
		}
		visited[name] = 2
		order = append(order, name)
	}
	for _, n := range names {
		visit(n)
	}
	return order
}

func sortStrings(xs []string) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// Run initializes every module in dependency order, propagating poison
// eagerly to dependents (spec.md §4.2 "a panic during a module's eager
// initializer poisons it; any subsequent access through a poisoned module
// panics InitPanic"), then calls the entry module's main procedure.
func (in *Interp) Run() (int32, *paniccode.Panic) {
	in.St = store.New()
	in.St.Dropper = in.dropItem

	for _, name := range in.moduleOrder() {
		in.initModule(name)
	}

	mainProc := in.findMain()
	if mainProc == nil {
		return 0, paniccode.New(paniccode.Other, "no main procedure found")
	}
	if in.St.PoisonedModule(in.procModule[mainProc.Path.String()]) {
		return 0, paniccode.New(paniccode.InitPanic, "main's module failed eager initialization")
	}

	var args []value.Value
	for _, p := range mainProc.Params {
		if pt, ok := value.StripPerm(p.Type).(value.PathType); ok && pt.Path.String() == "Context" {
			args = append(args, in.newContextValue())
			continue
		}
		args = append(args, value.Unit{})
	}

	result, p := in.CallProc(mainProc, args)
	if p != nil {
		return 0, p
	}
	if iv, ok := result.(value.Int); ok {
		return intToInt32(iv), nil
	}
	return 0, nil
}

func (in *Interp) findMain() *ast.ProcDecl {
	for _, p := range in.procs {
		if p.IsMain {
			return p
		}
	}
	return nil
}

func intToInt32(v value.Int) int32 {
	n := int32(v.Magnitude.Lo)
	if v.Negative {
		return -n
	}
	return n
}

// newContextValue mints a fresh Capability handle over in.RT.Root, the
// root Context a program's main receives (spec.md §4.9).
func (in *Interp) newContextValue() value.Value {
	in.nextCapID++
	id := in.nextCapID
	in.contexts[id] = in.RT.Root
	return value.Capability{Kind: "context", ID: id}
}

// initModule runs one module's eager static initializers in declaration
// order inside a scope that is popped once they finish; each static stays
// reachable through the address recorded with BindStatic (spec.md §4.2/§4.3).
// A panic during any static marks the whole module poisoned and abandons
// its remaining statics.
func (in *Interp) initModule(name string) {
	m, ok := in.Program.Modules[name]
	if !ok {
		return
	}
	for _, dep := range m.DependsOn {
		if in.St.PoisonedModule(dep) {
			in.St.SetPoisoned(name)
			return
		}
	}
	if len(m.Statics) == 0 {
		return
	}
	in.St.PushScope()
	for _, stc := range m.Statics {
		val, p := in.evalExpr(stc.Init)
		if p != nil {
			logger.Warn("module static initializer panicked", diag.String("module", name), diag.String("static", stc.Name), diag.Err(p))
			in.St.SetPoisoned(name)
			break
		}
		addr := in.St.AllocAddr()
		in.St.TagAddr(addr, store.TagRegion, 0)
		in.St.InitAddr(addr, val)
		in.St.BindStatic(name, stc.Name, addr)
		info := ownership.StaticBindingInfo(stc.IsPlace, stc.Explicit)
		in.St.BindVal(stc.Name, store.DirectValue(val), info)
	}
	in.St.PopScope()
}

// CallProc invokes proc with args, running its body to completion (spec.md
// §4.8: "running a procedure to a Return, a fallthrough of its last
// expression, or a panic").
func (in *Interp) CallProc(proc *ast.ProcDecl, args []value.Value) (value.Value, *paniccode.Panic) {
	mod, hasMod := in.procModule[proc.Path.String()]
	if hasMod && in.St.PoisonedModule(mod) {
		return nil, paniccode.New(paniccode.InitPanic, fmt.Sprintf("module %q is poisoned", mod))
	}
	prevModule := in.currentModule
	if hasMod {
		in.currentModule = mod
	}
	defer func() { in.currentModule = prevModule }()
	in.St.PushScope()
	// evalMethodCall prepends the receiver to args, so a method's own
	// receiver binding consumes args[0] and its declared Params shift by
	// one; a plain Call has no Receiver and binds Params against args
	// directly (spec.md §4.8).
	rest := args
	if proc.Receiver != nil {
		var recv value.Value = value.Unit{}
		if len(args) > 0 {
			recv = args[0]
			rest = args[1:]
		}
		in.St.BindVal(proc.Receiver.Name, store.DirectValue(recv), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
	}
	for i, param := range proc.Params {
		var v value.Value = value.Unit{}
		if i < len(rest) {
			v = rest[i]
		}
		in.St.BindVal(param.Name, store.DirectValue(v), store.BindInfo{Responsibility: store.Resp, Movability: store.Mov})
	}
	result, c, p := in.execBlock(proc.Body)
	if p != nil {
		return nil, p
	}
	if c.kind == ctrlReturn {
		return c.value, nil
	}
	return result, nil
}

// lookupProc resolves a logical procedure path (inherent method, free
// procedure, or impl override target) to its declaration.
func (in *Interp) lookupProc(path value.TypePath) (*ast.ProcDecl, bool) {
	p, ok := in.procs[path.String()]
	return p, ok
}

// readStatic reads name as a static of the currently executing proc's own
// module, mirroring internal/lower's ReadPath (spec.md §4.6): an unqualified
// identifier that LookupBind doesn't resolve to a local binding falls
// through to the module's static table instead.
func (in *Interp) readStatic(name string) (value.Value, bool, *paniccode.Panic) {
	if in.currentModule == "" {
		return nil, false, nil
	}
	addr, ok := in.St.StaticAddr(in.currentModule, name)
	if !ok {
		return nil, false, nil
	}
	if in.St.PoisonedModule(in.currentModule) {
		return nil, true, paniccode.New(paniccode.InitPanic, "module "+in.currentModule+" is poisoned")
	}
	v, err := in.St.ReadAddr(addr)
	if err != nil {
		return nil, true, paniccode.New(paniccode.ExpiredDeref, err.Error())
	}
	return v, true, nil
}

// writeStatic writes v into name's static slot in the current module, if
// one exists (mirrors internal/lower's StoreGlobal).
func (in *Interp) writeStatic(name string, v value.Value) (bool, *paniccode.Panic) {
	if in.currentModule == "" {
		return false, nil
	}
	addr, ok := in.St.StaticAddr(in.currentModule, name)
	if !ok {
		return false, nil
	}
	if err := in.St.WriteAddr(addr, v); err != nil {
		return true, paniccode.New(paniccode.ExpiredDeref, err.Error())
	}
	return true, nil
}
