package interp

import (
	"math"

	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/value"
)

// compareInts orders two signed-magnitude integers, handling the sign bit
// the Uint128 comparison alone can't.
func compareInts(l, r value.Int) int {
	ln := l.Negative && !l.Magnitude.IsZero()
	rn := r.Negative && !r.Magnitude.IsZero()
	if ln != rn {
		if ln {
			return -1
		}
		return 1
	}
	c := l.Magnitude.Cmp(r.Magnitude)
	if ln {
		return -c
	}
	return c
}

func intWidth(typeName string) uint {
	w := value.BitWidth(typeName)
	if w == 0 {
		w = 64
	}
	return w
}

// addMag combines two signed-magnitude operands, reporting a magnitude
// overflow on the underlying Uint128 add/sub (never true for
// opposite-sign addition, which is a strict subtraction of magnitudes).
func addMag(lNeg bool, lMag value.Uint128, rNeg bool, rMag value.Uint128) (negative bool, mag value.Uint128, overflow bool) {
	if lNeg == rNeg {
		sum, ovf := lMag.Add(rMag)
		return lNeg && !sum.IsZero(), sum, ovf
	}
	if lMag.Cmp(rMag) >= 0 {
		diff, _ := lMag.Sub(rMag)
		return lNeg && !diff.IsZero(), diff, false
	}
	diff, _ := rMag.Sub(lMag)
	return rNeg && !diff.IsZero(), diff, false
}

func fitsWidth(negative bool, mag value.Uint128, width uint, unsigned bool) bool {
	if width >= 128 {
		return true
	}
	if unsigned {
		if negative && !mag.IsZero() {
			return false
		}
		return mag.FitsBits(width)
	}
	top := value.Uint128FromUint64(1).Shl(width - 1)
	if negative {
		return mag.Cmp(top) <= 0
	}
	return mag.Cmp(top) < 0
}

// evalIntBinary implements the integer operators, inserting the same
// checks internal/lower's CheckOp nodes insert around div/mod/shift/
// add/sub/mul: divide-by-zero, shift-amount, and overflow (spec.md §7).
func evalIntBinary(op ast.BinOp, l, r value.Int) (value.Value, *paniccode.Panic) {
	typeName := l.Type
	if typeName == "" {
		typeName = r.Type
	}
	width := intWidth(typeName)
	unsigned := value.IsUnsignedPrim(typeName)

	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul:
		var negative bool
		var mag value.Uint128
		var overflow bool
		switch op {
		case ast.OpAdd:
			negative, mag, overflow = addMag(l.Negative, l.Magnitude, r.Negative, r.Magnitude)
		case ast.OpSub:
			negative, mag, overflow = addMag(l.Negative, l.Magnitude, !r.Negative, r.Magnitude)
		case ast.OpMul:
			mag, overflow = l.Magnitude.Mul(r.Magnitude)
			negative = (l.Negative != r.Negative) && !mag.IsZero()
		}
		if overflow || !fitsWidth(negative, mag, width, unsigned) {
			return nil, paniccode.New(paniccode.Overflow, "integer overflow")
		}
		return value.Int{Type: typeName, Negative: negative, Magnitude: mag}, nil

	case ast.OpDiv, ast.OpMod:
		if r.Magnitude.IsZero() {
			return nil, paniccode.New(paniccode.DivZero, "division by zero")
		}
		q, rem := l.Magnitude.QuoRem(r.Magnitude)
		if op == ast.OpDiv {
			negative := (l.Negative != r.Negative) && !q.IsZero()
			if !fitsWidth(negative, q, width, unsigned) {
				return nil, paniccode.New(paniccode.Overflow, "integer overflow")
			}
			return value.Int{Type: typeName, Negative: negative, Magnitude: q}, nil
		}
		negative := l.Negative && !rem.IsZero()
		return value.Int{Type: typeName, Negative: negative, Magnitude: rem}, nil

	case ast.OpShl, ast.OpShr:
		amt := uint(r.Magnitude.Lo)
		if r.Negative || amt >= width {
			return nil, paniccode.New(paniccode.Shift, "shift amount out of range")
		}
		if op == ast.OpShl {
			mag := l.Magnitude.Shl(amt)
			if width < 128 {
				mask := value.Uint128FromUint64(1).Shl(width)
				mask, _ = mask.Sub(value.Uint128FromUint64(1))
				mag = value.Uint128{Hi: mag.Hi & mask.Hi, Lo: mag.Lo & mask.Lo}
			}
			negative := l.Negative && !mag.IsZero()
			return value.Int{Type: typeName, Negative: negative, Magnitude: mag}, nil
		}
		if !l.Negative || l.Magnitude.IsZero() {
			return value.Int{Type: typeName, Magnitude: l.Magnitude.Shr(amt)}, nil
		}
		divisor := value.Uint128FromUint64(1).Shl(amt)
		q, rem := l.Magnitude.QuoRem(divisor)
		if !rem.IsZero() {
			q, _ = q.Add(value.Uint128FromUint64(1))
		}
		return value.Int{Type: typeName, Negative: !q.IsZero(), Magnitude: q}, nil

	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		lb := twosComplementBits(l, width)
		rb := twosComplementBits(r, width)
		var res value.Uint128
		switch op {
		case ast.OpBitAnd:
			res = value.Uint128{Hi: lb.Hi & rb.Hi, Lo: lb.Lo & rb.Lo}
		case ast.OpBitOr:
			res = value.Uint128{Hi: lb.Hi | rb.Hi, Lo: lb.Lo | rb.Lo}
		case ast.OpBitXor:
			res = value.Uint128{Hi: lb.Hi ^ rb.Hi, Lo: lb.Lo ^ rb.Lo}
		}
		return fromTwosComplementBits(res, width, unsigned, typeName), nil

	case ast.OpEq:
		return value.Bool{V: compareInts(l, r) == 0}, nil
	case ast.OpNe:
		return value.Bool{V: compareInts(l, r) != 0}, nil
	case ast.OpLt:
		return value.Bool{V: compareInts(l, r) < 0}, nil
	case ast.OpLe:
		return value.Bool{V: compareInts(l, r) <= 0}, nil
	case ast.OpGt:
		return value.Bool{V: compareInts(l, r) > 0}, nil
	case ast.OpGe:
		return value.Bool{V: compareInts(l, r) >= 0}, nil

	default:
		return nil, paniccode.New(paniccode.Other, "unsupported integer operator")
	}
}

func twosComplementBits(v value.Int, width uint) value.Uint128 {
	mag := v.Magnitude
	if v.Negative && !mag.IsZero() {
		full := value.Uint128FromUint64(1).Shl(width)
		mag, _ = full.Sub(mag)
	}
	if width >= 128 {
		return mag
	}
	mask := value.Uint128FromUint64(1).Shl(width)
	mask, _ = mask.Sub(value.Uint128FromUint64(1))
	return value.Uint128{Hi: mag.Hi & mask.Hi, Lo: mag.Lo & mask.Lo}
}

func fromTwosComplementBits(bits value.Uint128, width uint, unsigned bool, typeName string) value.Int {
	if width < 128 {
		mask := value.Uint128FromUint64(1).Shl(width)
		mask, _ = mask.Sub(value.Uint128FromUint64(1))
		bits = value.Uint128{Hi: bits.Hi & mask.Hi, Lo: bits.Lo & mask.Lo}
	}
	if unsigned || width >= 128 {
		return value.Int{Type: typeName, Magnitude: bits}
	}
	top := value.Uint128FromUint64(1).Shl(width - 1)
	if bits.Cmp(top) >= 0 {
		full := value.Uint128FromUint64(1).Shl(width)
		mag, _ := full.Sub(bits)
		return value.Int{Type: typeName, Negative: !mag.IsZero(), Magnitude: mag}
	}
	return value.Int{Type: typeName, Magnitude: bits}
}

func evalFloatBinary(op ast.BinOp, l, r value.Float) (value.Value, *paniccode.Panic) {
	typeName := l.Type
	if typeName == "" {
		typeName = r.Type
	}
	switch op {
	case ast.OpAdd:
		return value.Float{Type: typeName, V: l.V + r.V}, nil
	case ast.OpSub:
		return value.Float{Type: typeName, V: l.V - r.V}, nil
	case ast.OpMul:
		return value.Float{Type: typeName, V: l.V * r.V}, nil
	case ast.OpDiv:
		return value.Float{Type: typeName, V: l.V / r.V}, nil
	case ast.OpMod:
		return value.Float{Type: typeName, V: math.Mod(l.V, r.V)}, nil
	case ast.OpEq:
		return value.Bool{V: l.V == r.V}, nil
	case ast.OpNe:
		return value.Bool{V: l.V != r.V}, nil
	case ast.OpLt:
		return value.Bool{V: l.V < r.V}, nil
	case ast.OpLe:
		return value.Bool{V: l.V <= r.V}, nil
	case ast.OpGt:
		return value.Bool{V: l.V > r.V}, nil
	case ast.OpGe:
		return value.Bool{V: l.V >= r.V}, nil
	default:
		return nil, paniccode.New(paniccode.Other, "unsupported float operator")
	}
}

func evalBoolBinary(op ast.BinOp, l, r value.Bool) (value.Value, *paniccode.Panic) {
	switch op {
	case ast.OpEq:
		return value.Bool{V: l.V == r.V}, nil
	case ast.OpNe:
		return value.Bool{V: l.V != r.V}, nil
	case ast.OpBitAnd:
		return value.Bool{V: l.V && r.V}, nil
	case ast.OpBitOr:
		return value.Bool{V: l.V || r.V}, nil
	case ast.OpBitXor:
		return value.Bool{V: l.V != r.V}, nil
	default:
		return nil, paniccode.New(paniccode.Other, "unsupported bool operator")
	}
}
