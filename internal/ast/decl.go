package ast

import "github.com/cursivelang/corec/internal/value"

type Param struct {
	Name string
	Type value.TypeRef
	Move bool // parameter is taken by move (e.g. main's `move ctx: Context`)
}

// ProcDecl is a procedure or method declaration. Receiver is set for
// methods; Class/FromState/ToState are set for modal-transitioning class
// methods.
type ProcDecl struct {
	Path       value.TypePath
	Params     []Param
	Result     value.TypeRef
	Body       BlockExpr
	IsExtern   bool
	IsMain     bool
	Receiver   *Param
	FromState  string
	ToState    string
}

// StaticDecl is a module-level static/const binding.
type StaticDecl struct {
	Name     string
	Type     value.TypeRef
	Init     Expr
	Explicit bool // wrapped in an explicit `move`
	IsPlace  bool // initializer is a place-expression (drives Alias/Immov, spec.md §4.3)
}

// ModuleDecl is a full module: its statics (with dependency-relevant
// eagerness) and procedures.
type ModuleDecl struct {
	Path       string
	DependsOn  []string
	Statics    []StaticDecl
	Procs      []ProcDecl
}

// Program is the whole compilation unit: every module plus the entry
// module's name.
type Program struct {
	Modules    map[string]*ModuleDecl
	EntryModule string
}

func NewProgram() *Program {
	return &Program{Modules: map[string]*ModuleDecl{}}
}

func (p *Program) AddModule(m *ModuleDecl) { p.Modules[m.Path] = m }
