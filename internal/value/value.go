// Package value implements the Value & Type Kernel (spec.md §4.1): runtime
// values, type references, Int128 arithmetic, and the equality/printing
// operations the rest of the middle-end builds on.
package value

import "fmt"

// Addr is an opaque, monotonically-allocated store address (spec.md §3).
type Addr uint64

// Value is the tagged sum of runtime values (spec.md §3). It is modeled as
// an interface with one concrete struct per variant, following the sum-
// type-as-tagged-struct convention the teacher uses for its own variant
// types (kernel/threads/foundation/types.go's Job/Decision kinds).
type Value interface {
	isValue()
	fmt.Stringer
}

type PtrState int

const (
	PtrValid PtrState = iota
	PtrNull
	PtrExpired
)

type RawPtrQual int

const (
	QualImm RawPtrQual = iota
	QualMut
)

type StringState int

const (
	StringView StringState = iota
	StringManaged
)

type RangeKind int

const (
	RangeTo RangeKind = iota
	RangeToInclusive
	RangeFull
	RangeFrom
	RangeExclusive
	RangeInclusive
)

type Bool struct{ V bool }
type Char struct{ Codepoint uint32 }
type Unit struct{}

type Int struct {
	Type      string // primitive type name, e.g. "i32", "u64"
	Negative  bool
	Magnitude Uint128
}

type Float struct {
	Type string // "f32" or "f64"
	V    float64
}

type Ptr struct {
	State PtrState
	Addr  Addr
}

type RawPtr struct {
	Qual RawPtrQual
	Addr Addr
}

type Tuple struct{ Elements []Value }
type Array struct{ Elements []Value }

type Range struct {
	Kind   RangeKind
	Lo, Hi Value // nil when absent (RangeFrom has no Hi, RangeTo no Lo, RangeFull neither)
}

type Slice struct {
	Base  []Value
	Range Range
}

type Field struct {
	Name  string
	Value Value
}

type Record struct {
	Type   TypeRef
	Fields []Field // declaration order
}

// EnumPayload is the sum of the two payload shapes the original source
// distinguishes (SPEC_FULL.md §4): a positional tuple payload or a named
// record payload. Exactly one of Tuple/Record is non-nil, or neither for a
// unit (empty-payload) variant.
type EnumPayload struct {
	Tuple  []Value
	Record []Field
}

func (p *EnumPayload) IsEmpty() bool { return p == nil }

type EnumVal struct {
	Path    TypePath
	Variant string
	Payload *EnumPayload
}

type ModalVal struct {
	State   string
	Payload Value
}

type UnionVal struct {
	MemberType TypeRef
	Inner      Value
}

type DynamicVal struct {
	ClassPath    TypePath
	DataAddr     Addr
	ConcreteType TypeRef
}

type String struct {
	State StringState
	Bytes []byte
}

type Bytes struct {
	State StringState
	Data  []byte
}

type ProcRef struct {
	ModulePath string
	Name       string
}

type RecordCtor struct{ Path TypePath }

// Capability is the interpreter's runtime handle for the ambient Context
// record and its fs/heap/reactor/cpu/gpu/inline facets (spec.md §4.9
// "Context" / "Domain"). Kind names which facet (e.g. "context", "fs",
// "heap", "reactor", "cpu", "gpu", "inline"); ID is an opaque key the
// interpreter uses to look up the live Go-side capability it denotes.
type Capability struct {
	Kind string
	ID   uint64
}

func (Capability) isValue() {}
func (v Capability) String() string { return "<" + v.Kind + ">" }

func (Bool) isValue()       {}
func (Char) isValue()       {}
func (Unit) isValue()       {}
func (Int) isValue()        {}
func (Float) isValue()      {}
func (Ptr) isValue()        {}
func (RawPtr) isValue()     {}
func (Tuple) isValue()      {}
func (Array) isValue()      {}
func (Range) isValue()      {}
func (Slice) isValue()      {}
func (Record) isValue()     {}
func (EnumVal) isValue()    {}
func (ModalVal) isValue()   {}
func (UnionVal) isValue()   {}
func (DynamicVal) isValue() {}
func (String) isValue()     {}
func (Bytes) isValue()      {}
func (ProcRef) isValue()    {}
func (RecordCtor) isValue() {}

func (v Bool) String() string   { return fmt.Sprintf("%v", v.V) }
func (v Char) String() string   { return fmt.Sprintf("%q", rune(v.Codepoint)) }
func (Unit) String() string     { return "()" }
func (v Int) String() string    { return fmt.Sprintf("%s%d:%s", sign(v.Negative), v.Magnitude.Lo, v.Type) }
func (v Float) String() string  { return fmt.Sprintf("%v:%s", v.V, v.Type) }
func (v Ptr) String() string    { return fmt.Sprintf("&%d", v.Addr) }
func (v RawPtr) String() string { return fmt.Sprintf("*%d", v.Addr) }
func (v Tuple) String() string  { return fmt.Sprintf("%v", v.Elements) }
func (v Array) String() string  { return fmt.Sprintf("%v", v.Elements) }
func (v Range) String() string  { return "range" }
func (v Slice) String() string  { return "slice" }
func (v Record) String() string { return fmt.Sprintf("%s{...}", v.Type) }
func (v EnumVal) String() string {
	return fmt.Sprintf("%s::%s", v.Path.String(), v.Variant)
}
func (v ModalVal) String() string   { return fmt.Sprintf("@%s", v.State) }
func (v UnionVal) String() string   { return fmt.Sprintf("union(%v)", v.Inner) }
func (v DynamicVal) String() string { return fmt.Sprintf("dyn %s", v.ClassPath.String()) }
func (v String) String() string     { return string(v.Bytes) }
func (v Bytes) String() string      { return fmt.Sprintf("%x", v.Data) }
func (v ProcRef) String() string    { return v.ModulePath + "::" + v.Name }
func (v RecordCtor) String() string { return v.Path.String() }

func sign(negative bool) string {
	if negative {
		return "-"
	}
	return ""
}
