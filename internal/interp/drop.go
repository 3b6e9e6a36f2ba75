package interp

import (
	"github.com/cursivelang/corec/internal/ast"
	"github.com/cursivelang/corec/internal/store"
	"github.com/cursivelang/corec/internal/value"
)

// combineStatus duplicates store.combine (unexported, package-private):
// "a single failing item becomes Panic; a second failing item elevates to
// Abort" (spec.md §4.2/§4.3).
func combineStatus(acc, next store.CleanupStatus) store.CleanupStatus {
	if next == store.StatusOk {
		return acc
	}
	if acc == store.StatusOk {
		return store.StatusPanic
	}
	return store.StatusAbort
}

// dropItem is the store.Dropper implementation: it resolves item's live
// value from the store and drops it (spec.md §4.2 CleanupItem, §4.3 Drop).
func (in *Interp) dropItem(st *store.Sigma, item store.CleanupItem) store.CleanupStatus {
	switch item.Kind {
	case store.DropBindingItem:
		b := store.Binding{Ref: store.BindingRef{ScopeID: item.ScopeID, BindID: item.Binding}}
		bv := st.Value(b)
		if bv.Direct == nil && !bv.IsAlias {
			return store.StatusOk
		}
		state := st.State(b)
		if state.Kind == store.Moved {
			return store.StatusOk
		}
		var v value.Value
		if bv.IsAlias {
			rv, err := st.ReadAddr(bv.AliasAddr)
			if err != nil {
				return store.StatusOk
			}
			v = rv
		} else {
			v = bv.Direct
		}
		return in.dropValue(v)

	case store.DropStaticItem:
		addr, ok := st.StaticAddr(item.StaticModule, item.StaticName)
		if !ok {
			return store.StatusOk
		}
		v, err := st.ReadAddr(addr)
		if err != nil {
			return store.StatusOk
		}
		return in.dropValue(v)

	case store.DeferBlockItem:
		body, ok := item.DeferBody.(ast.BlockExpr)
		if !ok {
			return store.StatusOk
		}
		_, c, p := in.execBlock(body)
		if p != nil {
			return store.StatusPanic
		}
		_ = c
		return store.StatusOk

	default:
		return store.StatusOk
	}
}

// dropValue runs v's Drop capability method, if any, then recurses into
// its aggregate fields (spec.md §4.3: "invokes the drop method; if the
// method panics, the drop status becomes Panic and child drops still
// run"). It combines the constituent-drop statuses the same way a scope's
// cleanup list does.
func (in *Interp) dropValue(v value.Value) store.CleanupStatus {
	status := in.invokeDrop(v)

	switch vv := v.(type) {
	case value.Record:
		for _, f := range vv.Fields {
			status = combineStatus(status, in.dropValue(f.Value))
		}
	case value.Tuple:
		for _, e := range vv.Elements {
			status = combineStatus(status, in.dropValue(e))
		}
	case value.Array:
		for _, e := range vv.Elements {
			status = combineStatus(status, in.dropValue(e))
		}
	case value.EnumVal:
		if vv.Payload != nil {
			for _, e := range vv.Payload.Tuple {
				status = combineStatus(status, in.dropValue(e))
			}
			for _, f := range vv.Payload.Record {
				status = combineStatus(status, in.dropValue(f.Value))
			}
		}
	case value.ModalVal:
		if vv.Payload != nil {
			status = combineStatus(status, in.dropValue(vv.Payload))
		}
	}
	return status
}

// invokeDrop calls a type's "Drop" capability method if one is registered
// for v's concrete type, converting a panic from the body into
// store.StatusPanic.
func (in *Interp) invokeDrop(v value.Value) store.CleanupStatus {
	concrete := valueConcreteType(v)
	proc, ok := in.lookupProc(methodPath(concrete, "drop"))
	if !ok {
		proc, ok = in.resolveImplMethod(value.TypePath{Segments: []string{"Drop"}}, concrete, "drop")
		if !ok {
			return store.StatusOk
		}
	}
	_, p := in.CallProc(proc, []value.Value{v})
	if p != nil {
		return store.StatusPanic
	}
	return store.StatusOk
}
