package layout

import (
	"testing"

	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/value"
)

func TestAlignUpRoundsToBoundary(t *testing.T) {
	if got := AlignUp(3, 4); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := AlignUp(8, 4); got != 8 {
		t.Fatalf("expected 8 (already aligned), got %d", got)
	}
	if got := AlignUp(0, 8); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestDiscWidthPicksNarrowest(t *testing.T) {
	cases := []struct {
		count int
		want  uint64
	}{
		{1, 1}, {2, 1}, {256, 1}, {257, 2}, {70000, 4},
	}
	for _, c := range cases {
		if got := DiscWidth(c.count); got != c.want {
			t.Fatalf("DiscWidth(%d): want %d, got %d", c.count, c.want, got)
		}
	}
}

func recPath(name string) value.TypePath { return value.NewTypePath("test", name) }

func TestComputeRecordPlacesFieldsInOrderWithAlignment(t *testing.T) {
	s := sigma.New()
	decl := sigma.RecordDecl{
		Path: recPath("Mixed"),
		Fields: []sigma.RecordField{
			{Name: "flag", Type: value.Prim{Name: "bool"}},
			{Name: "count", Type: value.Prim{Name: "u32"}},
			{Name: "big", Type: value.Prim{Name: "u64"}},
		},
	}
	l := New(s)
	agg := l.ComputeRecord(decl)

	if agg.Fields[0].Offset != 0 || agg.Fields[0].Size != 1 {
		t.Fatalf("flag: expected offset 0 size 1, got %+v", agg.Fields[0])
	}
	if agg.Fields[1].Offset != 4 || agg.Fields[1].Size != 4 {
		t.Fatalf("count: expected offset 4 (aligned up from 1), got %+v", agg.Fields[1])
	}
	if agg.Fields[2].Offset != 8 || agg.Fields[2].Size != 8 {
		t.Fatalf("big: expected offset 8, got %+v", agg.Fields[2])
	}
	if agg.Size != 16 || agg.Align != 8 {
		t.Fatalf("expected total size 16 align 8, got size=%d align=%d", agg.Size, agg.Align)
	}
}

func TestComputeRecordIsMemoized(t *testing.T) {
	s := sigma.New()
	decl := sigma.RecordDecl{Path: recPath("Once"), Fields: []sigma.RecordField{{Name: "a", Type: value.Prim{Name: "u8"}}}}
	l := New(s)
	first := l.ComputeRecord(decl)
	second := l.ComputeRecord(sigma.RecordDecl{Path: recPath("Once"), Fields: nil}) // different shape, same path
	if first.Size != second.Size || len(second.Fields) != len(first.Fields) {
		t.Fatalf("expected memoized layout to be reused regardless of a stale second declaration")
	}
}

func TestComputeEnumDiscriminantAndPayloadOffset(t *testing.T) {
	s := sigma.New()
	decl := sigma.EnumDecl{
		Path: recPath("Option"),
		Variants: []sigma.EnumVariant{
			{Name: "None"},
			{Name: "Some", TupleFields: []value.TypeRef{value.Prim{Name: "u64"}}},
		},
	}
	l := New(s)
	e := l.ComputeEnum(decl)
	if e.DiscWidth != 1 {
		t.Fatalf("expected 1-byte discriminant for 2 variants, got %d", e.DiscWidth)
	}
	if e.PayloadOffset != 8 {
		t.Fatalf("expected payload offset aligned to u64 (8), got %d", e.PayloadOffset)
	}
	if e.Size != 16 {
		t.Fatalf("expected total size 16, got %d", e.Size)
	}
}

func TestModalNicheOptimizationOmitsDiscriminant(t *testing.T) {
	s := sigma.New()
	decl := sigma.ModalDecl{
		Path: recPath("Conn"),
		States: []sigma.StateBlock{
			{Name: "Closed"},
			{Name: "Open", Fields: []sigma.RecordField{{Name: "handle", Type: value.PtrType{Element: value.Prim{Name: "u8"}}}}},
		},
	}
	l := New(s)
	u := l.ComputeModal(decl)
	if !u.Niche {
		t.Fatalf("expected niche optimization to apply")
	}
	if u.NicheState != "Open" {
		t.Fatalf("expected Open to be the niche (non-empty) state, got %q", u.NicheState)
	}
	if u.DiscWidth != 0 {
		t.Fatalf("expected no stored discriminant, got width %d", u.DiscWidth)
	}
	if u.Size != 8 || u.Align != 8 {
		t.Fatalf("expected pointer-sized layout 8/8, got size=%d align=%d", u.Size, u.Align)
	}
}

func TestModalWithoutNicheCandidateUsesDiscriminant(t *testing.T) {
	s := sigma.New()
	decl := sigma.ModalDecl{
		Path: recPath("Light"),
		States: []sigma.StateBlock{
			{Name: "Red"},
			{Name: "Green"},
			{Name: "Yellow"},
		},
	}
	l := New(s)
	u := l.ComputeModal(decl)
	if u.Niche {
		t.Fatalf("expected no niche optimization for three empty states")
	}
	if u.DiscWidth != 1 {
		t.Fatalf("expected 1-byte discriminant for 3 states, got %d", u.DiscWidth)
	}
}

func TestSizeOfPathResolvesThroughSigma(t *testing.T) {
	s := sigma.New()
	s.AddRecord(sigma.RecordDecl{
		Path: recPath("Point"),
		Fields: []sigma.RecordField{
			{Name: "x", Type: value.Prim{Name: "i32"}},
			{Name: "y", Type: value.Prim{Name: "i32"}},
		},
	})
	l := New(s)
	size, align := l.SizeOf(value.PathType{Path: recPath("Point")})
	if size != 8 || align != 4 {
		t.Fatalf("expected size 8 align 4, got size=%d align=%d", size, align)
	}
}

func TestSizeOfDynamicTypeIsFatPointer(t *testing.T) {
	l := New(sigma.New())
	size, align := l.SizeOf(value.DynamicType{ClassPath: recPath("Drawable")})
	if size != 16 || align != 8 {
		t.Fatalf("expected 16/8 dyn-object layout, got size=%d align=%d", size, align)
	}
}

func TestComputeTupleAlignsElements(t *testing.T) {
	l := New(sigma.New())
	agg := l.ComputeTuple([]value.TypeRef{value.Prim{Name: "u8"}, value.Prim{Name: "u64"}})
	if agg.Fields[1].Offset != 8 {
		t.Fatalf("expected second element offset aligned to 8, got %d", agg.Fields[1].Offset)
	}
	if agg.Size != 16 {
		t.Fatalf("expected tuple size 16, got %d", agg.Size)
	}
}

func TestBuildVTableUsesOverrideThenDefault(t *testing.T) {
	cls := sigma.ClassDecl{
		Path: recPath("Shape"),
		Methods: []sigma.MethodSig{
			{Name: "area", HasDefault: false},
			{Name: "describe", HasDefault: true},
		},
	}
	impl := sigma.Impl{
		ClassPath:  cls.Path,
		TargetType: value.PathType{Path: recPath("Circle")},
		Overrides:  map[string]value.TypePath{"area": recPath("Circle_area")},
	}
	vt, err := BuildVTable(cls, impl, "Circle_drop", func(classPath value.TypePath, method string) string {
		return MangleDefault(classPath, method)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vt.Methods[0].Symbol != recPath("Circle_area").String() {
		t.Fatalf("expected override symbol, got %q", vt.Methods[0].Symbol)
	}
	if vt.Methods[1].Symbol != MangleDefault(cls.Path, "describe") {
		t.Fatalf("expected default-body symbol for unoverridden method")
	}
	if vt.DropSym != "Circle_drop" {
		t.Fatalf("expected drop symbol to round-trip")
	}
	if vt.Size != 8*(3+2) {
		t.Fatalf("expected vtable size to cover 3 header slots + 2 methods, got %d", vt.Size)
	}
}

func TestBuildVTableErrorsWhenMethodHasNoOverrideOrDefault(t *testing.T) {
	cls := sigma.ClassDecl{Path: recPath("Shape"), Methods: []sigma.MethodSig{{Name: "area", HasDefault: false}}}
	impl := sigma.Impl{ClassPath: cls.Path, TargetType: value.PathType{Path: recPath("Square")}, Overrides: map[string]value.TypePath{}}
	_, err := BuildVTable(cls, impl, "Square_drop", func(value.TypePath, string) string { return "" })
	if err == nil {
		t.Fatalf("expected an error for an unimplemented required method")
	}
}

func TestSlotReturnsDeclarationIndex(t *testing.T) {
	cls := sigma.ClassDecl{Path: recPath("Shape"), Methods: []sigma.MethodSig{{Name: "area"}, {Name: "perimeter"}}}
	if Slot(cls, "perimeter") != 1 {
		t.Fatalf("expected slot 1 for perimeter")
	}
	if Slot(cls, "missing") != -1 {
		t.Fatalf("expected -1 for an unknown method")
	}
}

func TestMangleIsDeterministicAndPathSensitive(t *testing.T) {
	p1 := recPath("Foo")
	p2 := recPath("Bar")
	if Mangle(p1) != Mangle(p1) {
		t.Fatalf("expected Mangle to be deterministic")
	}
	if Mangle(p1) == Mangle(p2) {
		t.Fatalf("expected distinct paths to mangle differently")
	}
}

func TestCacheGetOrComputeReusesValue(t *testing.T) {
	c := NewCache()
	calls := 0
	compute := func() any {
		calls++
		return 42
	}
	a := c.GetOrCompute(compute, "k1")
	b := c.GetOrCompute(compute, "k1")
	if a != 42 || b != 42 {
		t.Fatalf("expected cached value 42, got %v %v", a, b)
	}
	if calls != 1 {
		t.Fatalf("expected compute to run once, ran %d times", calls)
	}
	c.GetOrCompute(compute, "k2")
	if calls != 2 {
		t.Fatalf("expected a distinct key to recompute")
	}
}
