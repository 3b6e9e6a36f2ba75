package interp

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/paniccode"
	"github.com/cursivelang/corec/internal/sigma"
	"github.com/cursivelang/corec/internal/value"
)

// valueConcreteType reports the runtime type of v, the same structural
// shape internal/lower's static ExprTypes would have assigned had the
// value been known at compile time. The interpreter has no type-checking
// pass, so every method/Drop resolution goes through this instead of a
// static type (spec.md §4.8).
func valueConcreteType(v value.Value) value.TypeRef {
	switch vv := v.(type) {
	case value.Bool:
		return value.Prim{Name: "bool"}
	case value.Char:
		return value.Prim{Name: "char"}
	case value.Unit:
		return value.Prim{Name: "unit"}
	case value.Int:
		return value.Prim{Name: vv.Type}
	case value.Float:
		return value.Prim{Name: vv.Type}
	case value.Ptr:
		return value.PtrType{State: vv.State}
	case value.RawPtr:
		return value.RawPtrType{Qual: vv.Qual}
	case value.Record:
		return vv.Type
	case value.EnumVal:
		return value.PathType{Path: vv.Path}
	case value.ModalVal:
		return value.Prim{Name: "unit"} // ModalVal carries no type path of its own
	case value.DynamicVal:
		return value.DynamicType{ClassPath: vv.ClassPath}
	case value.String:
		return value.Prim{Name: "string"}
	case value.Bytes:
		return value.Prim{Name: "bytes"}
	default:
		return value.Prim{Name: "unit"}
	}
}

// methodPath builds the plain TypePath key under which a type's own
// method (inherent or impl override) is registered in in.procs, mirroring
// internal/lower.mangledProcSymbol's inputs but without the backend
// mangling step: the interpreter keys by TypePath.String() directly.
func methodPath(typ value.TypeRef, method string) value.TypePath {
	segs := append([]string(nil), pathSegments(typ)...)
	segs = append(segs, method)
	return value.TypePath{Segments: segs}
}

func pathSegments(typ value.TypeRef) []string {
	switch t := value.StripPerm(typ).(type) {
	case value.PathType:
		return t.Path.Segments
	case value.DynamicType:
		return t.ClassPath.Segments
	case value.Prim:
		return []string{t.Name}
	default:
		return []string{"$anon"}
	}
}

// resolveImplMethod finds the procedure implementing method for a value of
// concreteType when called through classPath (spec.md §4.5 dynamic
// dispatch, §4.3 Drop): first a registered Impl whose TargetType matches,
// then the impl's override for method, falling back to the class's own
// default body when the impl doesn't override it.
func (in *Interp) resolveImplMethod(classPath value.TypePath, concreteType value.TypeRef, method string) (*ast.ProcDecl, bool) {
	if in.Sigma == nil {
		return nil, false
	}
	for _, impl := range in.Sigma.ImplsFor(classPath) {
		if !value.TypeEquiv(impl.TargetType, concreteType, sigma.IdentEqual) {
			continue
		}
		if sym, ok := impl.Overrides[method]; ok {
			if proc, ok := in.lookupProc(sym); ok {
				return proc, true
			}
		}
		defaultPath := value.TypePath{Segments: append(append([]string(nil), classPath.Segments...), method)}
		if proc, ok := in.lookupProc(defaultPath); ok {
			return proc, true
		}
		return nil, false
	}
	return nil, false
}

// evalMethodCall resolves and invokes a method call (spec.md §4.5):
// non-dynamic calls resolve through the receiver's runtime concrete type
// directly; dynamic calls unwrap the DynamicVal fat value and go through
// resolveImplMethod.
func (in *Interp) evalMethodCall(x ast.MethodCall) (value.Value, *paniccode.Panic) {
	recv, p := in.evalExpr(x.Receiver)
	if p != nil {
		return nil, p
	}
	var args []value.Value
	for _, a := range x.Args {
		v, p := in.evalExpr(a)
		if p != nil {
			return nil, p
		}
		args = append(args, v)
	}

	if x.Dynamic {
		dv, ok := recv.(value.DynamicVal)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "dynamic method call on non-dynamic value")
		}
		proc, ok := in.resolveImplMethod(dv.ClassPath, dv.ConcreteType, x.Method)
		if !ok {
			return nil, paniccode.New(paniccode.Other, "no impl of "+dv.ClassPath.String()+" for "+dv.ConcreteType.String())
		}
		inner, err := in.St.ReadAddr(dv.DataAddr)
		if err != nil {
			return nil, paniccode.New(paniccode.ExpiredDeref, err.Error())
		}
		return in.CallProc(proc, append([]value.Value{inner}, args...))
	}

	concrete := valueConcreteType(recv)
	path := methodPath(concrete, x.Method)
	proc, ok := in.lookupProc(path)
	if !ok {
		return nil, paniccode.New(paniccode.Other, "no method "+x.Method+" on "+concrete.String())
	}
	return in.CallProc(proc, append([]value.Value{recv}, args...))
}
