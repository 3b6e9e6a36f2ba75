package ast

import "github.com/cursivelang/corec/internal/value"

type LetStmt struct {
	Node
	Name string
	Type value.TypeRef
	Init Expr
	// Var is true for a reassignable `var` binding, false for `let`.
	Var bool
	// Explicit is true when Init is wrapped in an explicit `move`; lowering
	// then reads Init through LowerMovePlace. Module-level statics carry
	// their own StaticDecl.Explicit for the static-binding Alias/Immov rule
	// (spec.md §4.3).
	Explicit bool
}

type ExprStmt struct {
	Node
	Expr Expr
}

// AssignStmt covers both whole-binding assignment and field/index
// assignment (Place distinguishes the two via its node kind).
type AssignStmt struct {
	Node
	Place Expr
	Value Expr
}

type ReturnStmt struct {
	Node
	Value Expr // nil for a bare `return`
}

type BreakStmt struct{ Node }
type ContinueStmt struct{ Node }

type LoopKind int

const (
	LoopWhile LoopKind = iota
	LoopForRange
	LoopInfinite
)

type LoopStmt struct {
	Node
	Kind LoopKind
	Cond Expr // while-condition or for-range source
	Var  string // bound name for LoopForRange
	Body []Stmt
}

// RegionStmt lowers to IR's Region node (spec.md §4.6). Alias is the
// optional binding name for the region handle (`region r { ... }`).
type RegionStmt struct {
	Node
	Alias string
	Body  []Stmt
}

// FrameStmt lowers to IR's Frame node.
type FrameStmt struct {
	Node
	Region string // empty means "current innermost active region"
	Body   []Stmt
}

type AllocStmt struct {
	Node
	Binding string // the let-binding name this alloc initializes
	Value   Expr
	Region  string // empty means "current innermost active region"
}

type FreeUncheckedStmt struct {
	Node
	Region string
}

// EndRegionStmt models the `end region` form used by the §8 scenario 3
// boundary test: tears the region down without leaving the enclosing
// block, distinct from the implicit teardown at block exit.
type EndRegionStmt struct {
	Node
	Region string
}

type KeyMode int

const (
	KeyWrite KeyMode = iota
	KeyRead
)

type KeyPathSpec struct {
	Path value.TypePath
	Mode KeyMode
}

type KeyModifier int

const (
	KeyModNone KeyModifier = 1 << iota
	KeyModDynamic
	KeyModSpeculative
	KeyModRelease
)

// KeyStmt lowers to a key-context acquire/release bracket around Body
// (spec.md §4.5).
type KeyStmt struct {
	Node
	Keys      []KeyPathSpec
	Modifiers KeyModifier
	Body      []Stmt
}

// ParallelStmt lowers to a fork/join pair (spec.md §4.6).
type ParallelStmt struct {
	Node
	Domain string // "cpu", "gpu", or "inline"
	Name   string
	Body   []Stmt
}

type SpawnCapture struct {
	Name string
	Move bool
}

// SpawnStmt lowers to environment capture plus a handle allocation.
type SpawnStmt struct {
	Node
	Binding  string // handle binding name
	Captures []SpawnCapture
	Body     []Stmt
}

type WaitStmt struct {
	Node
	Handle Expr
}

type ReduceOp string

const (
	ReduceAdd ReduceOp = "+"
	ReduceMul ReduceOp = "*"
	ReduceMin ReduceOp = "min"
	ReduceMax ReduceOp = "max"
	ReduceAnd ReduceOp = "and"
	ReduceOr  ReduceOp = "or"
	ReduceUser ReduceOp = "user"
)

// DispatchStmt lowers to an iteration plan (spec.md §4.6).
type DispatchStmt struct {
	Node
	Range      Expr
	ChunkSize  int // 0 means "use config default"
	Reduce     ReduceOp
	ReduceFunc value.TypePath // used when Reduce == ReduceUser
	Ordered    bool
	ElemName   string // the per-iteration binding name
	Body       Expr   // the per-iteration expression; its value feeds the reducer
	ResultName string // optional binding receiving the final reduced value
}

type MatchStmt struct {
	Node
	Scrutinee Expr
	Arms      []MatchStmtArm
}

type MatchStmtArm struct {
	Pattern Pattern
	Guard   Expr
	Body    []Stmt
}

type IfStmt struct {
	Node
	Cond       Expr
	Then, Else []Stmt // Else nil if absent
}

func (LetStmt) isStmt()           {}
func (ExprStmt) isStmt()          {}
func (AssignStmt) isStmt()        {}
func (ReturnStmt) isStmt()        {}
func (BreakStmt) isStmt()         {}
func (ContinueStmt) isStmt()      {}
func (LoopStmt) isStmt()          {}
func (RegionStmt) isStmt()        {}
func (FrameStmt) isStmt()         {}
func (AllocStmt) isStmt()         {}
func (FreeUncheckedStmt) isStmt() {}
func (EndRegionStmt) isStmt()     {}
func (KeyStmt) isStmt()           {}
func (ParallelStmt) isStmt()      {}
func (SpawnStmt) isStmt()         {}
func (WaitStmt) isStmt()          {}
func (DispatchStmt) isStmt()      {}
func (MatchStmt) isStmt()         {}
func (IfStmt) isStmt()            {}
