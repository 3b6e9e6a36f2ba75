package value

import "bytes"

// Equal performs structural equality over Value, per spec.md §3
// ("Equality is structural"). Tuple/record field order is declaration
// order; comparison is positional.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case Bool:
		y, ok := b.(Bool)
		return ok && x.V == y.V
	case Char:
		y, ok := b.(Char)
		return ok && x.Codepoint == y.Codepoint
	case Unit:
		_, ok := b.(Unit)
		return ok
	case Int:
		y, ok := b.(Int)
		return ok && x.Type == y.Type && intEqual(x, y)
	case Float:
		y, ok := b.(Float)
		return ok && x.Type == y.Type && x.V == y.V
	case Ptr:
		y, ok := b.(Ptr)
		return ok && x.State == y.State && x.Addr == y.Addr
	case RawPtr:
		y, ok := b.(RawPtr)
		return ok && x.Qual == y.Qual && x.Addr == y.Addr
	case Tuple:
		y, ok := b.(Tuple)
		return ok && valueSliceEqual(x.Elements, y.Elements)
	case Array:
		y, ok := b.(Array)
		return ok && valueSliceEqual(x.Elements, y.Elements)
	case Range:
		y, ok := b.(Range)
		return ok && x.Kind == y.Kind && valueOptEqual(x.Lo, y.Lo) && valueOptEqual(x.Hi, y.Hi)
	case Slice:
		y, ok := b.(Slice)
		return ok && valueSliceEqual(x.Base, y.Base) && Equal(x.Range, y.Range)
	case Record:
		y, ok := b.(Record)
		return ok && fieldsEqual(x.Fields, y.Fields)
	case EnumVal:
		y, ok := b.(EnumVal)
		return ok && x.Path.String() == y.Path.String() && x.Variant == y.Variant && payloadEqual(x.Payload, y.Payload)
	case ModalVal:
		y, ok := b.(ModalVal)
		return ok && x.State == y.State && Equal(x.Payload, y.Payload)
	case UnionVal:
		y, ok := b.(UnionVal)
		return ok && Equal(x.Inner, y.Inner)
	case DynamicVal:
		y, ok := b.(DynamicVal)
		return ok && x.DataAddr == y.DataAddr && x.ClassPath.String() == y.ClassPath.String()
	case String:
		y, ok := b.(String)
		return ok && bytes.Equal(x.Bytes, y.Bytes)
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x.Data, y.Data)
	case ProcRef:
		y, ok := b.(ProcRef)
		return ok && x.ModulePath == y.ModulePath && x.Name == y.Name
	case RecordCtor:
		y, ok := b.(RecordCtor)
		return ok && x.Path.String() == y.Path.String()
	default:
		return false
	}
}

func intEqual(x, y Int) bool {
	zx, zy := x.Magnitude.IsZero(), y.Magnitude.IsZero()
	if zx && zy {
		return true // -0 == 0
	}
	return x.Negative == y.Negative && x.Magnitude.Cmp(y.Magnitude) == 0
}

func valueSliceEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valueOptEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func payloadEqual(a, b *EnumPayload) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !valueSliceEqual(a.Tuple, b.Tuple) {
		return false
	}
	return fieldsEqual(a.Record, b.Record)
}
