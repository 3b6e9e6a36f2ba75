package ownership

import (
	"fmt"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

// Binding is the analyzer's per-name tracking record: its current validity
// state and its static Movability/Responsibility classification.
type Binding struct {
	State store.BindState
	Info  store.BindInfo
}

// Env is the analyzer's bind table for one control-flow path. It is a
// plain map rather than store.Sigma's scope stack because the analyzer
// walks the AST once, symbolically, well before any store.Sigma exists to
// hold real values; the vocabulary (BindState/BindInfo) is shared so the
// same transition rules in rules.go apply identically here and at
// interpretation time.
type Env map[string]*Binding

// Clone makes an independent copy of env for a branch arm.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	for name, b := range e {
		cp := *b
		if b.State.Fields != nil {
			cp.State.Fields = make(map[string]bool, len(b.State.Fields))
			for f := range b.State.Fields {
				cp.State.Fields[f] = true
			}
		}
		out[name] = &cp
	}
	return out
}

// MergeEnv merges N branch environments taken at a control-flow join: a
// name present in any branch is merged across every branch that has it,
// via Merge (spec.md §4.3 conservative union).
func MergeEnv(envs ...Env) Env {
	out := Env{}
	for _, e := range envs {
		for name, b := range e {
			if cur, ok := out[name]; ok {
				cur.State = Merge(cur.State, b.State)
			} else {
				cp := *b
				out[name] = &cp
			}
		}
	}
	return out
}

// Analyzer walks a procedure body and reports ownership/modal violations.
// It never mutates the AST; its findings are meant to gate lowering.
type Analyzer struct {
	diags []error
	sc    *sigma.ScopeContext // optional: enables modal state-gating checks
}

func New(sc *sigma.ScopeContext) *Analyzer {
	return &Analyzer{sc: sc}
}

func (a *Analyzer) Diagnostics() []error { return a.diags }

func (a *Analyzer) errorf(format string, args ...any) {
	a.diags = append(a.diags, fmt.Errorf(format, args...))
}

// AnalyzeProc walks a procedure's parameters and body. Parameters start
// Valid; a parameter declared with Move: true is Resp+Mov, otherwise Resp
// with Mov unless the corresponding type is itself a reference/pointer
// type (which is always Alias, since taking a place by reference never
// transfers responsibility).
func (a *Analyzer) AnalyzeProc(proc ast.ProcDecl) {
	env := Env{}
	for _, p := range proc.Params {
		info := store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}
		if _, isPtr := value.StripPerm(p.Type).(value.PtrType); isPtr {
			info = store.BindInfo{Responsibility: store.Alias, Movability: store.Immov}
		}
		env[p.Name] = &Binding{State: store.ValidState(), Info: info}
	}
	env = a.walkBlock(env, proc.Body.Stmts)
	if proc.Body.Result != nil {
		a.walkExpr(env, proc.Body.Result)
	}
}

// AnalyzeStatic checks a module-level static initializer and reports the
// BindInfo it would be bound with (spec.md §4.3's static Alias/Immov
// rule).
func (a *Analyzer) AnalyzeStatic(s ast.StaticDecl) store.BindInfo {
	env := Env{}
	a.walkExpr(env, s.Init)
	return StaticBindingInfo(s.IsPlace, s.Explicit)
}

func (a *Analyzer) walkBlock(env Env, stmts []ast.Stmt) Env {
	for _, s := range stmts {
		env = a.walkStmt(env, s)
	}
	return env
}

func (a *Analyzer) walkStmt(env Env, s ast.Stmt) Env {
	switch st := s.(type) {
	case ast.LetStmt:
		if st.Init != nil {
			a.walkExpr(env, st.Init)
		}
		env[st.Name] = &Binding{State: store.ValidState(), Info: store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}}
		return env

	case ast.ExprStmt:
		a.walkExpr(env, st.Expr)
		return env

	case ast.AssignStmt:
		a.walkExpr(env, st.Value)
		a.applyAssign(env, st.Place)
		return env

	case ast.ReturnStmt:
		if st.Value != nil {
			a.walkExpr(env, st.Value)
		}
		return env

	case ast.BreakStmt, ast.ContinueStmt:
		return env

	case ast.IfStmt:
		a.walkExpr(env, st.Cond)
		thenEnv := a.walkBlock(env.Clone(), st.Then)
		var merged Env
		if st.Else != nil {
			elseEnv := a.walkBlock(env.Clone(), st.Else)
			merged = MergeEnv(thenEnv, elseEnv)
		} else {
			merged = MergeEnv(thenEnv, env)
		}
		return merged

	case ast.LoopStmt:
		if st.Cond != nil {
			a.walkExpr(env, st.Cond)
		}
		after := a.walkBlock(env.Clone(), st.Body)
		for name, b := range env {
			if post, ok := after[name]; ok {
				b.State = LoopFixpoint(b.State, post.State)
			}
		}
		return env

	case ast.MatchStmt:
		a.walkExpr(env, st.Scrutinee)
		branchEnvs := make([]Env, 0, len(st.Arms))
		for _, arm := range st.Arms {
			be := env.Clone()
			bindPatternNames(be, arm.Pattern)
			if arm.Guard != nil {
				a.walkExpr(be, arm.Guard)
			}
			be = a.walkBlock(be, arm.Body)
			branchEnvs = append(branchEnvs, be)
		}
		if len(branchEnvs) == 0 {
			return env
		}
		return MergeEnv(branchEnvs...)

	case ast.RegionStmt:
		return a.walkBlock(env, st.Body)
	case ast.FrameStmt:
		return a.walkBlock(env, st.Body)
	case ast.KeyStmt:
		return a.walkBlock(env, st.Body)
	case ast.ParallelStmt:
		return a.walkBlock(env, st.Body)
	case ast.SpawnStmt:
		captureEnv := env.Clone()
		for _, c := range st.Captures {
			if c.Move {
				if b, ok := captureEnv[c.Name]; ok {
					if err := CheckMovable(b.Info); err != nil {
						a.errorf("spawn capture %q: %v", c.Name, err)
					}
					b.State = MoveWhole(b.State)
				}
			}
		}
		a.walkBlock(captureEnv, st.Body)
		for name, b := range captureEnv {
			if c, ok := env[name]; ok {
				c.State = b.State
			}
		}
		return env
	case ast.WaitStmt:
		a.walkExpr(env, st.Handle)
		return env
	case ast.DispatchStmt:
		a.walkExpr(env, st.Range)
		iterEnv := env.Clone()
		iterEnv[st.ElemName] = &Binding{State: store.ValidState(), Info: store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}}
		a.walkExpr(iterEnv, st.Body)
		delete(iterEnv, st.ElemName)
		for name, b := range env {
			if post, ok := iterEnv[name]; ok {
				b.State = LoopFixpoint(b.State, post.State)
			}
		}
		if st.ResultName != "" {
			env[st.ResultName] = &Binding{State: store.ValidState(), Info: store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}}
		}
		return env
	case ast.AllocStmt:
		a.walkExpr(env, st.Value)
		env[st.Binding] = &Binding{State: store.ValidState(), Info: store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}}
		return env
	case ast.FreeUncheckedStmt, ast.EndRegionStmt:
		return env
	default:
		return env
	}
}

// applyAssign applies the assignment effect to Place: whole-root for a
// bare identifier, field-clear for a single-level field projection.
func (a *Analyzer) applyAssign(env Env, place ast.Expr) {
	switch p := place.(type) {
	case ast.Ident:
		if b, ok := env[p.Name]; ok {
			b.State = AssignWhole(b.State)
		}
	case ast.FieldAccess:
		if base, ok := p.Base.(ast.Ident); ok {
			if b, ok := env[base.Name]; ok {
				b.State = AssignField(b.State, p.Field)
			}
		}
	case ast.TupleIndex:
		if base, ok := p.Base.(ast.Ident); ok {
			if b, ok := env[base.Name]; ok {
				b.State = AssignField(b.State, fmt.Sprintf("%d", p.Index))
			}
		}
	case ast.Deref, ast.IndexExpr:
		// Writes through a pointer or index do not change the validity of
		// any named binding; the target address itself is reassigned.
	}
}

func (a *Analyzer) walkExpr(env Env, e ast.Expr) {
	switch ex := e.(type) {
	case ast.Lit:
		return
	case ast.Ident:
		b, ok := env[ex.Name]
		if !ok {
			return
		}
		if !CanRead(b.State, true, "") {
			a.errorf("use of moved binding %q", ex.Name)
		}
	case ast.FieldAccess:
		if base, ok := ex.Base.(ast.Ident); ok {
			if b, bok := env[base.Name]; bok {
				if !CanRead(b.State, false, ex.Field) {
					a.errorf("use of moved field %q.%s", base.Name, ex.Field)
				}
				return
			}
		}
		a.walkExpr(env, ex.Base)
	case ast.TupleIndex:
		a.walkExpr(env, ex.Base)
	case ast.IndexExpr:
		a.walkExpr(env, ex.Base)
		a.walkExpr(env, ex.Index)
	case ast.SliceExpr:
		a.walkExpr(env, ex.Base)
		a.walkExpr(env, ex.Range)
	case ast.Call:
		for _, arg := range ex.Args {
			a.walkExpr(env, arg)
		}
	case ast.MethodCall:
		a.walkExpr(env, ex.Receiver)
		for _, arg := range ex.Args {
			a.walkExpr(env, arg)
		}
		a.checkModalCall(ex)
	case ast.Move:
		a.applyMove(env, ex.Place)
	case ast.AddrOf:
		a.walkExpr(env, ex.Place)
	case ast.Deref:
		a.walkExpr(env, ex.Pointer)
	case ast.Binary:
		a.walkExpr(env, ex.LHS)
		a.walkExpr(env, ex.RHS)
	case ast.Unary:
		a.walkExpr(env, ex.Operand)
	case ast.Cast:
		a.walkExpr(env, ex.Inner)
	case ast.Transmute:
		a.walkExpr(env, ex.Inner)
	case ast.TupleLit:
		for _, el := range ex.Elements {
			a.walkExpr(env, el)
		}
	case ast.ArrayLit:
		for _, el := range ex.Elements {
			a.walkExpr(env, el)
		}
	case ast.RecordLit:
		for _, f := range ex.Fields {
			a.walkExpr(env, f.Value)
		}
	case ast.EnumLit:
		for _, arg := range ex.TupleArgs {
			a.walkExpr(env, arg)
		}
		for _, f := range ex.RecordFields {
			a.walkExpr(env, f.Value)
		}
	case ast.MatchExpr:
		a.walkExpr(env, ex.Scrutinee)
		branchEnvs := make([]Env, 0, len(ex.Arms))
		for _, arm := range ex.Arms {
			be := env.Clone()
			bindPatternNames(be, arm.Pattern)
			if arm.Guard != nil {
				a.walkExpr(be, arm.Guard)
			}
			a.walkExpr(be, arm.Body)
			branchEnvs = append(branchEnvs, be)
		}
		if len(branchEnvs) > 0 {
			merged := MergeEnv(branchEnvs...)
			for name, b := range env {
				if post, ok := merged[name]; ok {
					b.State = post.State
				}
			}
		}
	case ast.IfExpr:
		a.walkExpr(env, ex.Cond)
		thenEnv := env.Clone()
		a.walkExpr(thenEnv, ex.Then)
		var merged Env
		if ex.Else != nil {
			elseEnv := env.Clone()
			a.walkExpr(elseEnv, ex.Else)
			merged = MergeEnv(thenEnv, elseEnv)
		} else {
			merged = MergeEnv(thenEnv, env)
		}
		for name, b := range env {
			if post, ok := merged[name]; ok {
				b.State = post.State
			}
		}
	case ast.BlockExpr:
		inner := a.walkBlock(env.Clone(), ex.Stmts)
		if ex.Result != nil {
			a.walkExpr(inner, ex.Result)
		}
		for name, b := range env {
			if post, ok := inner[name]; ok {
				b.State = post.State
			}
		}
	case ast.RangeExpr:
		if ex.Lo != nil {
			a.walkExpr(env, ex.Lo)
		}
		if ex.Hi != nil {
			a.walkExpr(env, ex.Hi)
		}
	case ast.DynPack:
		a.walkExpr(env, ex.Inner)
	}
}

func (a *Analyzer) applyMove(env Env, place ast.Expr) {
	switch p := place.(type) {
	case ast.Ident:
		b, ok := env[p.Name]
		if !ok {
			return
		}
		if err := CheckMovable(b.Info); err != nil {
			a.errorf("move of %q: %v", p.Name, err)
			return
		}
		if !CanRead(b.State, true, "") {
			a.errorf("move of already-moved binding %q", p.Name)
			return
		}
		b.State = MoveWhole(b.State)
	case ast.FieldAccess:
		base, ok := p.Base.(ast.Ident)
		if !ok {
			a.walkExpr(env, p.Base)
			return
		}
		b, ok := env[base.Name]
		if !ok {
			return
		}
		if err := CheckMovable(b.Info); err != nil {
			a.errorf("move of %q.%s: %v", base.Name, p.Field, err)
			return
		}
		next, err := MoveField(b.State, p.Field)
		if err != nil {
			a.errorf("move of %q.%s: %v", base.Name, p.Field, err)
			return
		}
		b.State = next
	default:
		a.walkExpr(env, place)
	}
}

// checkModalCall enforces state-gating on a method call when the
// analyzer was constructed with a ScopeContext (resolved class/impl
// information). Without one, modal gating is left to a later pass that
// does have resolved types.
func (a *Analyzer) checkModalCall(call ast.MethodCall) {
	if a.sc == nil {
		return
	}
	recvType, ok := a.sc.ExprTypes[call.Receiver.ID()]
	if !ok {
		return
	}
	modalPath, _, isModal := modalIdentity(recvType)
	if !isModal {
		return
	}
	sig, found := a.resolveMethodSig(modalPath, call.Method)
	if !found {
		return
	}
	if sig.FromState == "" {
		return
	}
	if err := CheckModalOperation(recvType, sig.FromState); err != nil {
		a.errorf("method %q: %v", call.Method, err)
	}
}

func modalIdentity(t value.TypeRef) (value.TypePath, string, bool) {
	switch tt := t.(type) {
	case value.ModalStateType:
		return tt.Path, tt.State, true
	case value.PathType:
		return tt.Path, "", true
	default:
		return value.TypePath{}, "", false
	}
}

func (a *Analyzer) resolveMethodSig(modalPath value.TypePath, method string) (sigma.MethodSig, bool) {
	decl, ok := a.sc.Sigma.Types[modalPath.String()]
	if !ok || decl.Modal == nil {
		return sigma.MethodSig{}, false
	}
	for _, cls := range a.sc.Sigma.Classes {
		for _, m := range cls.Methods {
			if m.Name == method && m.FromState != "" {
				return m, true
			}
		}
	}
	return sigma.MethodSig{}, false
}

// bindPatternNames registers every BindPat in pat (recursively) as a fresh
// Valid, Resp+Mov binding, mirroring the bindings a successful match arm
// introduces.
func bindPatternNames(env Env, pat ast.Pattern) {
	switch p := pat.(type) {
	case ast.BindPat:
		env[p.Name] = &Binding{State: store.ValidState(), Info: store.BindInfo{Responsibility: store.Resp, Movability: store.Mov}}
	case ast.TuplePat:
		for _, el := range p.Elements {
			bindPatternNames(env, el)
		}
	case ast.RecordPat:
		for _, f := range p.Fields {
			bindPatternNames(env, f.Pattern)
		}
	case ast.EnumPat:
		for _, el := range p.TupleElems {
			bindPatternNames(env, el)
		}
		for _, f := range p.RecordFields {
			bindPatternNames(env, f.Pattern)
		}
	case ast.ModalPat:
		if p.Inner != nil {
			bindPatternNames(env, p.Inner)
		}
	}
}
