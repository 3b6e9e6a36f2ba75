package ir

// IRValue is the result of lowering an expression: a reference to a
// local, a resolved symbol, an immediate constant, or an opaque derived
// value (spec.md §4.6).
type IRValue interface{ isIRValue() }

// Local names a procedure-local temporary or user binding.
type Local struct{ Name string }

// Symbol names a mangled user symbol or, when Builtin is true, a runtime
// alias resolved through the BuiltinSym table (spec.md §6 Downstream).
type Symbol struct {
	Name    string
	Builtin bool
}

// Immediate is a constant value already reduced to its byte
// representation (little-endian, per spec.md's runtime ABI contract).
type Immediate struct{ Bytes []byte }

// Opaque refers to an entry in the owning Block/table of derived values:
// a pure structural operation not yet materialized.
type Opaque struct{ ID int }

func (Local) isIRValue()     {}
func (Symbol) isIRValue()    {}
func (Immediate) isIRValue() {}
func (Opaque) isIRValue()    {}

// DerivedKind enumerates the structural operations a derived value can
// represent (spec.md §4.6 "field/tuple/index access, slice, enum/tuple/
// record/array literals, dyn packing, union payload extraction").
type DerivedKind int

const (
	DerivedFieldAccess DerivedKind = iota
	DerivedTupleIndex
	DerivedIndex
	DerivedSlice
	DerivedTupleLit
	DerivedArrayLit
	DerivedRecordLit
	DerivedEnumLit
	DerivedDynPack
	DerivedUnionExtract
	DerivedAddrOf
)

// Derived is one entry in a Table: a structural operation over other
// IRValues, keyed by the Opaque.ID that refers to it.
type Derived struct {
	Kind     DerivedKind
	Base     IRValue   // FieldAccess/TupleIndex/Index/Slice/UnionExtract/AddrOf/DynPack
	Field    string     // FieldAccess
	Index    int        // TupleIndex
	IndexVal IRValue    // Index
	Lo, Hi   IRValue    // Slice
	Elements []IRValue  // TupleLit/ArrayLit/EnumLit tuple-args
	Fields   []FieldVal // RecordLit/EnumLit record-fields
	Type     string     // the mangled type/class path this literal/pack/extract targets
	Variant  string     // EnumLit
}

type FieldVal struct {
	Name  string
	Value IRValue
}

// Table collects every derived value a Block's lowering produced, in
// allocation order; Opaque{ID: i} refers to Entries[i].
type Table struct {
	Entries []Derived
}

// Add appends d and returns the Opaque value referring to it.
func (t *Table) Add(d Derived) Opaque {
	id := len(t.Entries)
	t.Entries = append(t.Entries, d)
	return Opaque{ID: id}
}

func (t *Table) Get(o Opaque) Derived { return t.Entries[o.ID] }
