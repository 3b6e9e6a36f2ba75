package value

import (
	"encoding/binary"
	"math"
)

// EncodeImmediate turns a scalar runtime value into its little-endian ABI
// byte representation (spec.md §6), mirroring ir_lowering.cpp's ConstBytes
// dispatch over the target LLVM type. It reports false for any value that
// is not representable as a pure immediate (records, arrays, pointers,
// dynamic values, …) so callers — lowering's literal path and the
// interpreter's constant-initializer evaluator — share one definition of
// "this value is a compile-time constant".
func EncodeImmediate(v Value) ([]byte, bool) {
	switch vv := v.(type) {
	case Bool:
		if vv.V {
			return []byte{1}, true
		}
		return []byte{0}, true
	case Unit:
		return nil, true
	case Char:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, vv.Codepoint)
		return b, true
	case Int:
		width := BitWidth(vv.Type)
		if width == 0 {
			width = 64
		}
		mag := vv.Magnitude
		if vv.Negative {
			zero := Uint128{}
			mag, _ = zero.Sub(mag)
		}
		nbytes := int(width / 8)
		if nbytes == 0 || nbytes > 16 {
			nbytes = 8
		}
		b := make([]byte, nbytes)
		lo, hi := mag.Lo, mag.Hi
		for i := 0; i < nbytes && i < 8; i++ {
			b[i] = byte(lo >> (8 * uint(i)))
		}
		for i := 8; i < nbytes; i++ {
			b[i] = byte(hi >> (8 * uint(i-8)))
		}
		return b, true
	case Float:
		if vv.Type == "f32" {
			b := make([]byte, 4)
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(vv.V)))
			return b, true
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(vv.V))
		return b, true
	default:
		return nil, false
	}
}

// DecodeImmediate is EncodeImmediate's inverse: it reinterprets a
// little-endian byte buffer as the scalar primitive named by target,
// mirroring ir_lowering.cpp's bitcast-style Transmute lowering. It reports
// false for a non-primitive target or a buffer shorter than the target's
// width.
func DecodeImmediate(b []byte, target TypeRef) (Value, bool) {
	prim, ok := StripPerm(target).(Prim)
	if !ok {
		return nil, false
	}
	switch prim.Name {
	case "bool":
		if len(b) < 1 {
			return nil, false
		}
		return Bool{V: b[0] != 0}, true
	case "unit":
		return Unit{}, true
	case "char":
		if len(b) < 4 {
			return nil, false
		}
		return Char{Codepoint: binary.LittleEndian.Uint32(b[:4])}, true
	case "f32":
		if len(b) < 4 {
			return nil, false
		}
		return Float{Type: "f32", V: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[:4])))}, true
	case "f64":
		if len(b) < 8 {
			return nil, false
		}
		return Float{Type: "f64", V: math.Float64frombits(binary.LittleEndian.Uint64(b[:8]))}, true
	default:
		width := BitWidth(prim.Name)
		if width == 0 {
			return nil, false
		}
		nbytes := int(width / 8)
		if len(b) < nbytes {
			return nil, false
		}
		var lo, hi uint64
		for i := 0; i < nbytes && i < 8; i++ {
			lo |= uint64(b[i]) << (8 * uint(i))
		}
		for i := 8; i < nbytes; i++ {
			hi |= uint64(b[i]) << (8 * uint(i-8))
		}
		mag := Uint128{Hi: hi, Lo: lo}
		negative := false
		if !IsUnsignedPrim(prim.Name) && width < 128 {
			top := Uint128FromUint64(1).Shl(width - 1)
			if mag.Cmp(top) >= 0 {
				full := Uint128FromUint64(1).Shl(width)
				mag, _ = full.Sub(mag)
				negative = true
			}
		}
		return Int{Type: prim.Name, Negative: negative, Magnitude: mag}, true
	}
}
