package interp

import (
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/value"
)

// sliceElements resolves a Slice's Range against its Base, returning the
// elements it denotes (spec.md §4.1 Slice). An absent bound defaults to
// the base's extent; RangeFull/RangeFrom slices the rest.
func sliceElements(s value.Slice) []value.Value {
	n := len(s.Base)
	lo, hi := 0, n
	switch s.Range.Kind {
	case value.RangeTo:
		hi = valueToInt(s.Range.Hi)
	case value.RangeToInclusive:
		hi = valueToInt(s.Range.Hi) + 1
	case value.RangeFrom:
		lo = valueToInt(s.Range.Lo)
	case value.RangeExclusive:
		lo, hi = valueToInt(s.Range.Lo), valueToInt(s.Range.Hi)
	case value.RangeInclusive:
		lo, hi = valueToInt(s.Range.Lo), valueToInt(s.Range.Hi)+1
	case value.RangeFull:
		// lo, hi already cover the whole base
	}
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return s.Base[lo:hi]
}

// rangeElements materializes a bounded Range's integer elements in
// ascending order. Only RangeExclusive/RangeInclusive/RangeTo/
// RangeToInclusive (paired with an implicit Lo of 0) have a known upper
// bound; RangeFull/RangeFrom panic, since dispatch/for-in need a finite
// count to iterate (spec.md §4.6 parallel dispatch requires a bounded
// range).
func rangeElements(r value.Range) ([]value.Value, *paniccode.Panic) {
	lo := 0
	if r.Lo != nil {
		lo = valueToInt(r.Lo)
	}
	var hi int
	switch r.Kind {
	case value.RangeTo, value.RangeExclusive:
		hi = valueToInt(r.Hi)
	case value.RangeToInclusive, value.RangeInclusive:
		hi = valueToInt(r.Hi) + 1
	default:
		return nil, paniccode.New(paniccode.Other, "range has no upper bound to iterate")
	}
	if hi < lo {
		hi = lo
	}
	out := make([]value.Value, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, value.Int{Type: "i64", Magnitude: value.Uint128FromUint64(uint64(i))})
	}
	return out, nil
}

// valueToInt extracts a plain int from an Int value, used for range
// bounds and index operands. Panics translate to paniccode.Bounds at the
// call site, not here.
func valueToInt(v value.Value) int {
	iv, ok := v.(value.Int)
	if !ok {
		return 0
	}
	n := int(iv.Magnitude.Lo)
	if iv.Negative {
		return -n
	}
	return n
}

