// Package layout implements Layout & Dispatch (spec.md §4.7): struct/
// tuple/union/enum/modal memory layout, niche optimization, and vtable
// emission with mangled dispatch symbols.
package layout

import (
	"fmt"
	"sync"

	"github.com/cursivelang/corec/internal/abi"
	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/value"
)

// AlignUp rounds offset up to the next multiple of align (spec.md §4.7,
// mirrors ir_lowering.cpp's free function of the same name). align must be
// a power of two; align == 0 is treated as 1.
func AlignUp(offset, align uint64) uint64 {
	if align == 0 {
		align = 1
	}
	return (offset + align - 1) &^ (align - 1)
}

// FieldLayout is one field's placement within an aggregate.
type FieldLayout struct {
	Name   string
	Offset uint64
	Size   uint64
	Align  uint64
}

// AggregateLayout is the computed layout of a record or tuple.
type AggregateLayout struct {
	Size   uint64
	Align  uint64
	Fields []FieldLayout
}

// DiscWidth returns the narrowest unsigned discriminant width (in bytes)
// that fits count distinct variants (spec.md §4.7 "smallest unsigned
// discriminant that fits variant count").
func DiscWidth(count int) uint64 {
	switch {
	case count <= 1<<8:
		return 1
	case count <= 1<<16:
		return 2
	case count <= 1<<32:
		return 4
	default:
		return 8
	}
}

// EnumLayout is the computed layout of an enum: its discriminant width,
// the payload's starting offset, and per-variant payload layouts.
type EnumLayout struct {
	DiscWidth     uint64
	PayloadOffset uint64
	Size          uint64
	Align         uint64
	Variants      map[string]AggregateLayout
}

// UnionLayout is the computed layout of a union or modal type: either
// niche-optimized (no stored discriminant) or an explicit-discriminant
// layout shaped like EnumLayout.
type UnionLayout struct {
	Niche         bool
	NicheState    string // the non-empty state/member when Niche is true
	DiscWidth     uint64 // 0 when Niche
	PayloadOffset uint64
	Size          uint64
	Align         uint64
	Members       map[string]AggregateLayout
}

// Layouts is the registry that resolves nested PathType references while
// computing layouts, memoizing each computed layout by its path string.
type Layouts struct {
	sigma *sigma.Sigma

	mu       sync.Mutex
	records  map[string]AggregateLayout
	enums    map[string]EnumLayout
	unions   map[string]UnionLayout
}

func New(s *sigma.Sigma) *Layouts {
	return &Layouts{
		sigma:   s,
		records: map[string]AggregateLayout{},
		enums:   map[string]EnumLayout{},
		unions:  map[string]UnionLayout{},
	}
}

// SizeOf returns (size, align) in bytes for t, resolving PathType
// references through the Sigma registry and memoizing aggregate layouts.
func (l *Layouts) SizeOf(t value.TypeRef) (uint64, uint64) {
	switch tt := value.StripPerm(t).(type) {
	case value.Prim:
		return primSize(tt.Name)
	case value.PtrType:
		return abi.PointerSize, abi.PointerSize
	case value.RawPtrType:
		return abi.PointerSize, abi.PointerSize
	case value.DynamicType:
		return abi.DynObjectLayout.Size, abi.DynObjectLayout.Align
	case value.ArrayType:
		elemSize, elemAlign := l.SizeOf(tt.Element)
		return elemSize * tt.Length, elemAlign
	case value.SliceType:
		return 2 * abi.PointerSize, abi.PointerSize
	case value.TupleType:
		agg := l.ComputeTuple(tt.Elements)
		return agg.Size, agg.Align
	case value.PathType:
		return l.sizeOfPath(tt.Path)
	case value.ModalStateType:
		return l.sizeOfPath(tt.Path)
	case value.UnionType:
		u := l.ComputeUnionFromMembers(tt.Members)
		return u.Size, u.Align
	default:
		return 0, 1
	}
}

func primSize(name string) (uint64, uint64) {
	switch name {
	case "unit":
		return 0, 1
	case "f32":
		return 4, 4
	case "f64":
		return 8, 8
	case "char":
		return 4, 4 // Unicode scalar value, stored as u32
	case "str":
		return 2 * abi.PointerSize, abi.PointerSize // View{ptr,len}, spec.md §4.7
	}
	bits := value.BitWidth(name)
	if bits == 0 {
		return 0, 1
	}
	bytes := bits / 8
	align := bytes
	if align > 8 {
		align = 8 // u128/i128 are 16 bytes but the ABI aligns them to 8, matching two 64-bit limbs
	}
	return uint64(bytes), uint64(align)
}

func (l *Layouts) sizeOfPath(path value.TypePath) (uint64, uint64) {
	key := path.String()
	decl, ok := l.sigma.Types[key]
	if !ok {
		return 0, 1
	}
	switch {
	case decl.Record != nil:
		agg := l.ComputeRecord(*decl.Record)
		return agg.Size, agg.Align
	case decl.Enum != nil:
		e := l.ComputeEnum(*decl.Enum)
		return e.Size, e.Align
	case decl.Modal != nil:
		u := l.ComputeModal(*decl.Modal)
		return u.Size, u.Align
	case decl.Union != nil:
		u := l.ComputeUnionFromMembers(decl.Union.Members)
		return u.Size, u.Align
	default:
		return 0, 1
	}
}

// ComputeTuple lays out tuple elements in declaration order (spec.md
// §4.7 "fields placed in declaration order... total size aligned to
// struct align").
func (l *Layouts) ComputeTuple(elements []value.TypeRef) AggregateLayout {
	var offset, maxAlign uint64
	fields := make([]FieldLayout, len(elements))
	for i, el := range elements {
		size, align := l.SizeOf(el)
		offset = AlignUp(offset, align)
		fields[i] = FieldLayout{Name: fmt.Sprintf("%d", i), Offset: offset, Size: size, Align: align}
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	if maxAlign == 0 {
		maxAlign = 1
	}
	return AggregateLayout{Size: AlignUp(offset, maxAlign), Align: maxAlign, Fields: fields}
}

// ComputeRecord lays out a record's fields, memoized by path.
func (l *Layouts) ComputeRecord(decl sigma.RecordDecl) AggregateLayout {
	key := decl.Path.String()
	l.mu.Lock()
	if cached, ok := l.records[key]; ok {
		l.mu.Unlock()
		return cached
	}
	l.mu.Unlock()

	var offset, maxAlign uint64
	fields := make([]FieldLayout, len(decl.Fields))
	for i, f := range decl.Fields {
		size, align := l.SizeOf(f.Type)
		offset = AlignUp(offset, align)
		fields[i] = FieldLayout{Name: f.Name, Offset: offset, Size: size, Align: align}
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	if maxAlign == 0 {
		maxAlign = 1
	}
	out := AggregateLayout{Size: AlignUp(offset, maxAlign), Align: maxAlign, Fields: fields}

	l.mu.Lock()
	l.records[key] = out
	l.mu.Unlock()
	return out
}

// ComputeEnum lays out an enum's discriminant and per-variant payloads
// (spec.md §4.7).
func (l *Layouts) ComputeEnum(decl sigma.EnumDecl) EnumLayout {
	key := decl.Path.String()
	l.mu.Lock()
	if cached, ok := l.enums[key]; ok {
		l.mu.Unlock()
		return cached
	}
	l.mu.Unlock()

	discWidth := DiscWidth(len(decl.Variants))
	variants := map[string]AggregateLayout{}
	var payloadAlign uint64 = 1
	var maxPayload uint64
	for _, v := range decl.Variants {
		var fields []FieldLayout
		var offset, align uint64
		if len(v.TupleFields) > 0 {
			elTypes := v.TupleFields
			agg := l.ComputeTuple(elTypes)
			fields, offset, align = agg.Fields, agg.Size, agg.Align
		} else if len(v.RecordFields) > 0 {
			rec := sigma.RecordDecl{Path: value.NewTypePath(decl.Path.String(), v.Name), Fields: v.RecordFields}
			agg := l.computeAnonymousRecord(rec)
			fields, offset, align = agg.Fields, agg.Size, agg.Align
		}
		variants[v.Name] = AggregateLayout{Size: offset, Align: align, Fields: fields}
		if align > payloadAlign {
			payloadAlign = align
		}
		if offset > maxPayload {
			maxPayload = offset
		}
	}
	payloadOffset := AlignUp(discWidth, payloadAlign)
	total := AlignUp(payloadOffset+maxPayload, maxu(discWidth, payloadAlign))

	out := EnumLayout{DiscWidth: discWidth, PayloadOffset: payloadOffset, Size: total, Align: maxu(discWidth, payloadAlign), Variants: variants}

	l.mu.Lock()
	l.enums[key] = out
	l.mu.Unlock()
	return out
}

// computeAnonymousRecord lays out a one-off record shape (an enum
// variant's record-style payload) without memoizing it under the enum's
// own path.
func (l *Layouts) computeAnonymousRecord(decl sigma.RecordDecl) AggregateLayout {
	var offset, maxAlign uint64
	fields := make([]FieldLayout, len(decl.Fields))
	for i, f := range decl.Fields {
		size, align := l.SizeOf(f.Type)
		offset = AlignUp(offset, align)
		fields[i] = FieldLayout{Name: f.Name, Offset: offset, Size: size, Align: align}
		offset += size
		if align > maxAlign {
			maxAlign = align
		}
	}
	if maxAlign == 0 {
		maxAlign = 1
	}
	return AggregateLayout{Size: AlignUp(offset, maxAlign), Align: maxAlign, Fields: fields}
}

// ComputeModal lays out a modal declaration's states the same way an
// enum lays out variants, applying niche optimization when exactly two
// states exist, one carries no payload, and the other's first field is
// pointer-sized (spec.md §4.7).
func (l *Layouts) ComputeModal(decl sigma.ModalDecl) UnionLayout {
	key := decl.Path.String()
	l.mu.Lock()
	if cached, ok := l.unions[key]; ok {
		l.mu.Unlock()
		return cached
	}
	l.mu.Unlock()

	out := l.computeStateUnion(decl.States)
	l.mu.Lock()
	l.unions[key] = out
	l.mu.Unlock()
	return out
}

func (l *Layouts) computeStateUnion(states []sigma.StateBlock) UnionLayout {
	if nicheState, ok := nicheCandidate(states, l); ok {
		empty := emptyStateName(states, nicheState)
		member := l.computeAnonymousRecord(sigma.RecordDecl{Fields: fieldsOf(states, nicheState)})
		return UnionLayout{
			Niche:      true,
			NicheState: nicheState,
			Size:       member.Size,
			Align:      member.Align,
			Members:    map[string]AggregateLayout{nicheState: member, empty: {}},
		}
	}

	discWidth := DiscWidth(len(states))
	members := map[string]AggregateLayout{}
	var payloadAlign uint64 = 1
	var maxPayload uint64
	for _, st := range states {
		agg := l.computeAnonymousRecord(sigma.RecordDecl{Fields: st.Fields})
		members[st.Name] = agg
		if agg.Align > payloadAlign {
			payloadAlign = agg.Align
		}
		if agg.Size > maxPayload {
			maxPayload = agg.Size
		}
	}
	payloadOffset := AlignUp(discWidth, payloadAlign)
	total := AlignUp(payloadOffset+maxPayload, maxu(discWidth, payloadAlign))
	return UnionLayout{DiscWidth: discWidth, PayloadOffset: payloadOffset, Size: total, Align: maxu(discWidth, payloadAlign), Members: members}
}

// ComputeUnionFromMembers lays out an inline union type's member list the
// same way, without the modal state-transition vocabulary.
func (l *Layouts) ComputeUnionFromMembers(members []value.TypeRef) UnionLayout {
	var maxAlign uint64 = 1
	var maxSize uint64
	memberLayouts := map[string]AggregateLayout{}
	for i, m := range members {
		size, align := l.SizeOf(m)
		name := fmt.Sprintf("m%d", i)
		memberLayouts[name] = AggregateLayout{Size: size, Align: align}
		if align > maxAlign {
			maxAlign = align
		}
		if size > maxSize {
			maxSize = size
		}
	}
	discWidth := DiscWidth(len(members))
	payloadOffset := AlignUp(discWidth, maxAlign)
	total := AlignUp(payloadOffset+maxSize, maxu(discWidth, maxAlign))
	return UnionLayout{DiscWidth: discWidth, PayloadOffset: payloadOffset, Size: total, Align: maxu(discWidth, maxAlign), Members: memberLayouts}
}

// nicheCandidate reports whether states qualifies for niche optimization:
// exactly two states, one with no fields at all, and the other's first
// field sized/aligned like a pointer (spec.md §4.7).
func nicheCandidate(states []sigma.StateBlock, l *Layouts) (string, bool) {
	if len(states) != 2 {
		return "", false
	}
	var empty, full *sigma.StateBlock
	for i := range states {
		if len(states[i].Fields) == 0 {
			empty = &states[i]
		} else {
			full = &states[i]
		}
	}
	if empty == nil || full == nil {
		return "", false
	}
	size, align := l.SizeOf(full.Fields[0].Type)
	if size != abi.PointerSize || align != abi.PointerSize {
		return "", false
	}
	return full.Name, true
}

func emptyStateName(states []sigma.StateBlock, fullName string) string {
	for _, st := range states {
		if st.Name != fullName {
			return st.Name
		}
	}
	return ""
}

func fieldsOf(states []sigma.StateBlock, name string) []sigma.RecordField {
	for _, st := range states {
		if st.Name == name {
			return st.Fields
		}
	}
	return nil
}

func maxu(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
