package main

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/value"
)

// scenario is one runnable end-to-end case: a program to interpret plus the
// exit code or panic code a correct run produces.
type scenario struct {
	name       string
	prog       *ast.Program
	wantExit   int32
	wantPanic  paniccode.Code
	wantsPanic bool
	// afterRun, when set, lets a scenario inspect interpreter state past
	// what its exit code alone shows (scenario 2's "one deallocation of 4
	// bytes" claim lives in a module static, not the return value).
	afterRun func(i *runResult) string
}

// integerEval builds `let x: i32 = 1 + 2; return x;` (spec.md §8 scenario 1).
func integerEval() scenario {
	body := block([]ast.Stmt{
		letStmt("x", false, binary(ast.OpAdd, litInt(1, "i32"), litInt(2, "i32"))),
		returnStmt(ident("x")),
	}, nil)
	p := program(module("ints", nil, nil, proc(value.NewTypePath("ints", "main"), nil, body, true)))
	return scenario{name: "integer_eval", prog: p, wantExit: 3}
}

// managedString builds the equivalent of `var s = String.from("ab");
// s.append("cd"); return s.length() as i32;` over a minimal record-backed
// byte buffer, since this middle-end carries no builtin String type of its
// own (spec.md §8 scenario 2): `strbuf.Buf` is user-space code exercising
// RecordLit, MethodCall, for-range, and Cast the same way real source
// would. The buffer's own `drop` method records the byte count it saw into
// a module static so the harness can report the "one deallocation of 4
// bytes" claim after Run returns.
func managedString() scenario {
	bufPath := value.NewTypePath("strbuf", "Buf")
	fromPath := value.NewTypePath("strbuf", "Buf", "from")
	appendPath := value.NewTypePath("strbuf", "Buf", "append")
	lengthPath := value.NewTypePath("strbuf", "Buf", "length")
	dropPath := value.NewTypePath("strbuf", "Buf", "drop")

	fromProc := proc(fromPath, []ast.Param{{Name: "bytes"}},
		block(nil, recordLit(bufPath, ast.FieldInit{Name: "data", Value: ident("bytes")})), false)

	copyLoop := func(src ast.Expr, out, idx string) ast.Stmt {
		return loopForRange(src, "c",
			assignStmt(indexExpr(ident(out), ident(idx)), ident("c")),
			assignStmt(ident(idx), binary(ast.OpAdd, ident(idx), litInt(1, "i32"))))
	}
	appendProc := method(appendPath, "self", []ast.Param{{Name: "more"}}, block([]ast.Stmt{
		letStmt("out", true, arrayLit(litInt(0, "u8"), litInt(0, "u8"), litInt(0, "u8"), litInt(0, "u8"))),
		letStmt("i", true, litInt(0, "i32")),
		copyLoop(fieldAccess(ident("self"), "data"), "out", "i"),
		copyLoop(fieldAccess(ident("more"), "data"), "out", "i"),
	}, recordLit(bufPath, ast.FieldInit{Name: "data", Value: ident("out")})))

	countLoop := func(counter string, src ast.Expr) ast.Stmt {
		return loopForRange(src, "_", assignStmt(ident(counter), binary(ast.OpAdd, ident(counter), litInt(1, "i32"))))
	}
	lengthProc := method(lengthPath, "self", nil, block([]ast.Stmt{
		letStmt("n", true, litInt(0, "i32")),
		countLoop("n", fieldAccess(ident("self"), "data")),
	}, ident("n")))

	dropProc := method(dropPath, "self", nil, block([]ast.Stmt{
		letStmt("n", true, litInt(0, "i32")),
		countLoop("n", fieldAccess(ident("self"), "data")),
		assignStmt(ident("last_drop_len"), ident("n")),
	}, nil))

	mainBody := block([]ast.Stmt{
		letStmt("s1", false, call(fromPath, arrayLit(litInt('a', "u8"), litInt('b', "u8")))),
		letStmt("s2", false, call(fromPath, arrayLit(litInt('c', "u8"), litInt('d', "u8")))),
		letStmt("s3", false, methodCall(ident("s1"), "append", ident("s2"))),
		letStmt("n", false, cast(methodCall(ident("s3"), "length"), value.Prim{Name: "i32"})),
		exprStmt(call(dropPath, ident("s3"))),
		returnStmt(ident("n")),
	}, nil)
	mainProc := proc(value.NewTypePath("strbuf", "main"), nil, mainBody, true)

	statics := []ast.StaticDecl{{Name: "last_drop_len", Init: litInt(0, "i32")}}
	p := program(module("strbuf", nil, statics, fromProc, appendProc, lengthProc, dropProc, mainProc))
	return scenario{
		name: "managed_string", prog: p, wantExit: 4,
		afterRun: func(r *runResult) string {
			addr, ok := r.interp.St.StaticAddr("strbuf", "last_drop_len")
			if !ok {
				return "no last_drop_len static recorded"
			}
			v, err := r.interp.St.ReadAddr(addr)
			if err != nil {
				return "last_drop_len read failed: " + err.Error()
			}
			iv, _ := v.(value.Int)
			return "one deallocation of " + itoa(int64(iv.Magnitude.Lo)) + " bytes"
		},
	}
}

// regionLifetime builds `region r { let p = &(alloc 7 in r); return *p; }`
// (spec.md §8 scenario 3, success path).
func regionLifetime() scenario {
	body := block([]ast.Stmt{
		regionStmt("r",
			allocStmt("p", litInt(7, "i32"), "r"),
			returnStmt(deref(ident("p")))),
	}, nil)
	p := program(module("region_ok", nil, nil, proc(value.NewTypePath("region_ok", "main"), nil, body, true)))
	return scenario{name: "region_lifetime", prog: p, wantExit: 7}
}

// regionExpiredDeref builds the scenario 3 boundary variant: `region r {
// let p = &(alloc 7 in r); let q = p; end region; *q }`, which must panic
// ExpiredDeref (0x0009) instead of returning.
func regionExpiredDeref() scenario {
	body := block([]ast.Stmt{
		regionStmt("r",
			allocStmt("p", litInt(7, "i32"), "r"),
			letStmt("q", false, ident("p")),
			endRegionStmt("r"),
			exprStmt(deref(ident("q")))),
	}, nil)
	p := program(module("region_expired", nil, nil, proc(value.NewTypePath("region_expired", "main"), nil, body, true)))
	return scenario{name: "region_expired_deref", prog: p, wantsPanic: true, wantPanic: paniccode.ExpiredDeref}
}

// enumPayload builds `let v = Option::Some(5); match v { Option::Some(x)
// => x, Option::None => 0 }` (spec.md §8 scenario 4).
func enumPayload() scenario {
	optPath := value.NewTypePath("Option")
	scrutinee := enumLit(optPath, "Some", litInt(5, "i32"))
	m := matchExpr(ident("v"),
		ast.MatchArm{Pattern: enumPat(optPath, "Some", bindPat("x")), Body: ident("x")},
		ast.MatchArm{Pattern: enumPat(optPath, "None"), Body: litInt(0, "i32")},
	)
	body := block([]ast.Stmt{letStmt("v", false, scrutinee)}, m)
	p := program(module("enums", nil, nil, proc(value.NewTypePath("enums", "main"), nil, body, true)))
	return scenario{name: "enum_payload", prog: p, wantExit: 5}
}

// initPoisoning builds spec.md §8 scenario 5: module A's static `x = 1/0`
// poisons A; B's main calls A's own accessor for x and must panic
// InitPanic (0x000A).
func initPoisoning() scenario {
	getXPath := value.NewTypePath("A", "get_x")
	aStatics := []ast.StaticDecl{{Name: "x", Init: binary(ast.OpDiv, litInt(1, "i32"), litInt(0, "i32"))}}
	getX := proc(getXPath, nil, block(nil, ident("x")), false)
	bMain := proc(value.NewTypePath("B", "main"), nil, block([]ast.Stmt{exprStmt(call(getXPath))}, nil), true)
	p := program(
		module("A", nil, aStatics, getX),
		module("B", nil, nil, bMain),
	)
	return scenario{name: "init_poisoning", prog: p, wantsPanic: true, wantPanic: paniccode.InitPanic}
}

// parallelReduce builds `dispatch 0..100 reduce + { i }` (spec.md §8
// scenario 6): the sum of 0..99 is 4950 regardless of chunk size.
func parallelReduce() scenario {
	body := block([]ast.Stmt{
		dispatchStmt(rangeExpr(value.RangeExclusive, litInt(0, "i64"), litInt(100, "i64")), "i", ast.ReduceAdd, ident("i"), "total"),
		returnStmt(ident("total")),
	}, nil)
	p := program(module("reduce", nil, nil, proc(value.NewTypePath("reduce", "main"), nil, body, true)))
	return scenario{name: "parallel_reduce", prog: p, wantExit: 4950}
}

func allScenarios() []scenario {
	return []scenario{
		integerEval(),
		managedString(),
		regionLifetime(),
		regionExpiredDeref(),
		enumPayload(),
		initPoisoning(),
		parallelReduce(),
	}
}
