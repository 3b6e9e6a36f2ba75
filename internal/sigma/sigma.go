// Package sigma models the upstream resolved name/type environment
// (spec.md §6 "Upstream"): the Sigma data bundle and ScopeContext the
// parser/resolver hands to the core. This is deliberately a thin, passive
// bundle — the core never mutates it.
//
// Naming note: spec.md overloads "Σ" for both this upstream bundle and the
// interpreter's mutable world. We keep the upstream bundle's own name,
// Sigma, and name the mutable world Store (internal/store) to avoid the
// collision in Go identifiers.
package sigma

import "github.com/cursivelang/corec/internal/value"

// RecordDecl, EnumDecl, ModalDecl, and ClassDecl are the declaration shapes
// the type/class maps hold. They carry only what lowering/layout/analysis
// need, not full syntax.
type RecordField struct {
	Name string
	Type value.TypeRef
}

type RecordDecl struct {
	Path   value.TypePath
	Fields []RecordField // declaration order
}

type EnumVariant struct {
	Name         string
	TupleFields  []value.TypeRef
	RecordFields []RecordField
	Discriminant *uint64 // nil unless the declaration specifies one explicitly
}

type EnumDecl struct {
	Path     value.TypePath
	Variants []EnumVariant // declaration order; index is the default discriminant
}

type StateBlock struct {
	Name string
	// Fields is the payload shape for this state; empty for a state with
	// no payload.
	Fields []RecordField
}

type ModalDecl struct {
	Path   value.TypePath
	States []StateBlock
}

type UnionDecl struct {
	Path    value.TypePath
	Members []value.TypeRef
}

type MethodSig struct {
	Name        string
	Params      []value.TypeRef
	Result      value.TypeRef
	HasDefault  bool // the class declares a default body for this method
	FromState   string
	ToState     string // non-empty when the method is a modal-transition method
}

type ClassDecl struct {
	Path    value.TypePath
	Methods []MethodSig // declaration order; index is the vtable slot (+3, see internal/layout)
}

// Impl records that a concrete type implements a class, and which methods
// it overrides (methods not listed use the class's default body).
type Impl struct {
	ClassPath    value.TypePath
	TargetType   value.TypeRef
	Overrides    map[string]value.TypePath // method name -> mangled impl symbol path
}

// TypeDecl is the sum of possible type-map entries.
type TypeDecl struct {
	Record *RecordDecl
	Enum   *EnumDecl
	Modal  *ModalDecl
	Union  *UnionDecl
}

// ModuleBody is a placeholder for the resolved body of a module; the core
// only needs module dependency ordering and whether a module has an
// eagerly-evaluated static initializer, both captured here.
type ModuleBody struct {
	Path               string
	DependsOn          []string // dependency-ordered predecessors
	EagerInitializer   bool
	StaticNames        []string
}

// Sigma is the resolved environment bundle (spec.md §6): types, classes,
// modules, plus impls.
type Sigma struct {
	Types   map[string]TypeDecl
	Classes map[string]ClassDecl
	Modules map[string]ModuleBody
	Impls   []Impl
}

func New() *Sigma {
	return &Sigma{
		Types:   map[string]TypeDecl{},
		Classes: map[string]ClassDecl{},
		Modules: map[string]ModuleBody{},
	}
}

func (s *Sigma) AddRecord(d RecordDecl) { s.Types[d.Path.String()] = TypeDecl{Record: &d} }
func (s *Sigma) AddEnum(d EnumDecl)     { s.Types[d.Path.String()] = TypeDecl{Enum: &d} }
func (s *Sigma) AddModal(d ModalDecl)   { s.Types[d.Path.String()] = TypeDecl{Modal: &d} }
func (s *Sigma) AddUnion(d UnionDecl)   { s.Types[d.Path.String()] = TypeDecl{Union: &d} }
func (s *Sigma) AddClass(d ClassDecl)   { s.Classes[d.Path.String()] = d }

// ImplsFor returns every Impl registered against classPath, in
// registration order.
func (s *Sigma) ImplsFor(classPath value.TypePath) []Impl {
	var out []Impl
	for _, im := range s.Impls {
		if im.ClassPath.String() == classPath.String() {
			out = append(out, im)
		}
	}
	return out
}

// ScopeContext gives per-module name maps and per-expression resolved
// types (spec.md §6). ExprTypes is keyed by a stable expression id the AST
// assigns (ast.Expr.ID()).
type ScopeContext struct {
	Sigma         *Sigma
	CurrentModule string
	Names         map[string]value.TypePath // unqualified name -> resolved path, per module
	ExprTypes     map[int64]value.TypeRef
}

func NewScopeContext(s *Sigma, module string) *ScopeContext {
	return &ScopeContext{
		Sigma:         s,
		CurrentModule: module,
		Names:         map[string]value.TypePath{},
		ExprTypes:     map[int64]value.TypeRef{},
	}
}

// IdentEqual implements the resolver-delegated identifier equality used by
// value.TypePath.FoldedEqual: an ASCII case-insensitive byte comparison,
// with no Unicode case folding and no NFC normalization. A
// full Unicode case fold belongs to the resolver (out of scope, spec.md
// §1); this is the same ASCII-fold approximation the resolver's own
// default table uses for the identifier subset the core ever compares.
func IdentEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
