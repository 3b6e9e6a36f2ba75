package interp

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/runtime"
	"github.com/cursivelang/corec/internal/value"
)

// reduceValues folds a dispatch's per-chunk results into a single value
// (spec.md §4.6). results arrives already ordered by chunk start index
// (runtime.Parallel.RunChunks's guarantee), so the fold itself can be a simple
// left-to-right pairwise combine.
func (in *Interp) reduceValues(op ast.ReduceOp, reduceFunc value.TypePath, results []runtime.ChunkResult) (value.Value, *paniccode.Panic) {
	var acc value.Value
	have := false
	for _, r := range results {
		vs, _ := r.Value.([]value.Value)
		for _, v := range vs {
			if !have {
				acc, have = v, true
				continue
			}
			next, p := in.combineReduce(op, reduceFunc, acc, v)
			if p != nil {
				return nil, p
			}
			acc = next
		}
	}
	if !have {
		return value.Unit{}, nil
	}
	return acc, nil
}

func (in *Interp) combineReduce(op ast.ReduceOp, reduceFunc value.TypePath, a, b value.Value) (value.Value, *paniccode.Panic) {
	switch op {
	case ast.ReduceAdd:
		return evalIntOrFloatBinary(ast.OpAdd, a, b)
	case ast.ReduceMul:
		return evalIntOrFloatBinary(ast.OpMul, a, b)
	case ast.ReduceMin:
		return reduceMinMax(a, b, true)
	case ast.ReduceMax:
		return reduceMinMax(a, b, false)
	case ast.ReduceAnd:
		ab, ok := a.(value.Bool)
		bb, ok2 := b.(value.Bool)
		if !ok || !ok2 {
			return nil, paniccode.New(paniccode.Other, "reduce and/or requires bool results")
		}
		return value.Bool{V: ab.V && bb.V}, nil
	case ast.ReduceOr:
		ab, ok := a.(value.Bool)
		bb, ok2 := b.(value.Bool)
		if !ok || !ok2 {
			return nil, paniccode.New(paniccode.Other, "reduce and/or requires bool results")
		}
		return value.Bool{V: ab.V || bb.V}, nil
	case ast.ReduceUser:
		proc, ok := in.lookupProc(reduceFunc)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "reduce function not found: "+reduceFunc.String())
		}
		return in.CallProc(proc, []value.Value{a, b})
	default:
		return nil, paniccode.New(paniccode.Other, "unsupported reduce operator")
	}
}

func evalIntOrFloatBinary(op ast.BinOp, a, b value.Value) (value.Value, *paniccode.Panic) {
	switch av := a.(type) {
	case value.Int:
		bv, ok := b.(value.Int)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "reduce operand type mismatch")
		}
		return evalIntBinary(op, av, bv)
	case value.Float:
		bv, ok := b.(value.Float)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "reduce operand type mismatch")
		}
		return evalFloatBinary(op, av, bv)
	default:
		return nil, paniccode.New(paniccode.Other, "reduce operand is not numeric")
	}
}

func reduceMinMax(a, b value.Value, wantMin bool) (value.Value, *paniccode.Panic) {
	switch av := a.(type) {
	case value.Int:
		bv, ok := b.(value.Int)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "reduce min/max operand type mismatch")
		}
		cmp := compareInts(av, bv)
		if (wantMin && cmp <= 0) || (!wantMin && cmp >= 0) {
			return av, nil
		}
		return bv, nil
	case value.Float:
		bv, ok := b.(value.Float)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "reduce min/max operand type mismatch")
		}
		if (wantMin && av.V <= bv.V) || (!wantMin && av.V >= bv.V) {
			return av, nil
		}
		return bv, nil
	default:
		return nil, paniccode.New(paniccode.Other, "reduce min/max operand is not numeric")
	}
}
