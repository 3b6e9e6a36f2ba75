package value

import "testing"

func TestEqualStructural(t *testing.T) {
	a := Record{
		Type: PathType{Path: NewTypePath("Point")},
		Fields: []Field{
			{Name: "x", Value: Int{Type: "i32", Magnitude: Uint128FromUint64(1)}},
			{Name: "y", Value: Int{Type: "i32", Magnitude: Uint128FromUint64(2)}},
		},
	}
	b := Record{
		Type: PathType{Path: NewTypePath("Point")},
		Fields: []Field{
			{Name: "x", Value: Int{Type: "i32", Magnitude: Uint128FromUint64(1)}},
			{Name: "y", Value: Int{Type: "i32", Magnitude: Uint128FromUint64(2)}},
		},
	}
	if !Equal(a, b) {
		t.Fatalf("expected structurally equal records")
	}
}

func TestEqualNegativeZero(t *testing.T) {
	a := Int{Type: "i32", Negative: true, Magnitude: Uint128{}}
	b := Int{Type: "i32", Negative: false, Magnitude: Uint128{}}
	if !Equal(a, b) {
		t.Fatalf("expected -0 == 0")
	}
}

func TestStripPerm(t *testing.T) {
	base := Prim{Name: "i32"}
	wrapped := PermType{Base: PermType{Base: base, Permission: PermConst}, Permission: PermMut}
	if StripPerm(wrapped) != base {
		t.Fatalf("StripPerm did not unwrap nested Perm")
	}
}

func TestTypeEquivStripsPerm(t *testing.T) {
	ident := func(a, b string) bool { return a == b }
	a := PermType{Base: Prim{Name: "u8"}, Permission: PermConst}
	b := Prim{Name: "u8"}
	if !TypeEquiv(a, b, ident) {
		t.Fatalf("expected Perm-stripped equivalence")
	}
}

func TestIsUnsignedPrim(t *testing.T) {
	for _, n := range []string{"u8", "u16", "u32", "u64", "u128", "usize", "bool"} {
		if !IsUnsignedPrim(n) {
			t.Errorf("%s should be unsigned", n)
		}
	}
	for _, n := range []string{"i8", "f64", "char"} {
		if IsUnsignedPrim(n) {
			t.Errorf("%s should not be unsigned", n)
		}
	}
}

func TestUint128Arithmetic(t *testing.T) {
	max64 := Uint128FromUint64(^uint64(0))
	sum, overflow := max64.Add(Uint128FromUint64(1))
	if overflow {
		t.Fatalf("unexpected overflow flag for 128-bit add within range")
	}
	if sum.Hi != 1 || sum.Lo != 0 {
		t.Fatalf("expected carry into high word, got %+v", sum)
	}

	q, r := Uint128FromUint64(100).QuoRem(Uint128FromUint64(7))
	if q.Lo != 14 || r.Lo != 2 {
		t.Fatalf("100/7 = 14 r2, got q=%d r=%d", q.Lo, r.Lo)
	}
}

func TestUint128ShiftOverflow(t *testing.T) {
	v := Uint128FromUint64(1)
	if !v.Shl(32).FitsBits(64) {
		t.Fatalf("1<<32 should fit in 64 bits")
	}
	big := v.Shl(64)
	if big.FitsBits(64) {
		t.Fatalf("1<<64 should not fit in 64 bits")
	}
}
