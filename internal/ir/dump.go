package ir

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Dump renders an IR tree as a protobuf Struct: a wire-shaped,
// self-describing snapshot suitable for tracing or golden-file
// comparison, without hand-rolling a serialization format (SPEC_FULL §2
// domain-stack note: capnproto2 was ruled out because its accessor code
// is normally generated by capnpc, which cannot be run here; the
// well-known structpb types need no code generation and cover a dump's
// needs exactly).
func Dump(n Node) (*structpb.Struct, error) {
	m := nodeToMap(n)
	return structpb.NewStruct(m)
}

// DumpTable renders a derived-value table the same way, keyed by Opaque
// id.
func DumpTable(t *Table) (*structpb.Struct, error) {
	entries := make([]any, len(t.Entries))
	for i, d := range t.Entries {
		entries[i] = derivedToMap(d)
	}
	return structpb.NewStruct(map[string]any{"entries": entries})
}

func nodeToMap(n Node) map[string]any {
	if n == nil {
		return map[string]any{"kind": "nil"}
	}
	switch x := n.(type) {
	case Seq:
		return map[string]any{"kind": "Seq", "items": nodesToAny(x.Items)}
	case Block:
		return map[string]any{"kind": "Block", "setup": nodesToAny(x.Setup), "body": nodesToAny(x.Body)}
	case BindVar:
		return map[string]any{"kind": "BindVar", "name": x.Name, "value": valueToMap(x.Value)}
	case StoreVar:
		return map[string]any{"kind": "StoreVar", "name": x.Name, "value": valueToMap(x.Value)}
	case StoreVarNoDrop:
		return map[string]any{"kind": "StoreVarNoDrop", "name": x.Name, "field": x.Field, "value": valueToMap(x.Value)}
	case StoreGlobal:
		return map[string]any{"kind": "StoreGlobal", "module": x.Module, "name": x.Name, "value": valueToMap(x.Value)}
	case WritePtr:
		return map[string]any{"kind": "WritePtr", "ptr": valueToMap(x.Ptr), "value": valueToMap(x.Value)}
	case ReadVar:
		return map[string]any{"kind": "ReadVar", "name": x.Name, "dest": x.Dest}
	case ReadPtr:
		return map[string]any{"kind": "ReadPtr", "ptr": valueToMap(x.Ptr), "dest": x.Dest}
	case ReadPath:
		return map[string]any{"kind": "ReadPath", "module": x.Module, "name": x.Name, "dest": x.Dest}
	case Call:
		return map[string]any{"kind": "Call", "symbol": x.Symbol, "args": valuesToAny(x.Args), "dest": x.Dest}
	case CallVTable:
		return map[string]any{"kind": "CallVTable", "vtable": valueToMap(x.VTable), "slot": float64(x.Slot), "args": valuesToAny(x.Args), "dest": x.Dest}
	case UnaryOp:
		return map[string]any{"kind": "UnaryOp", "op": x.Op, "operand": valueToMap(x.Operand), "dest": x.Dest}
	case BinaryOp:
		return map[string]any{"kind": "BinaryOp", "op": x.Op, "lhs": valueToMap(x.LHS), "rhs": valueToMap(x.RHS), "dest": x.Dest}
	case Cast:
		return map[string]any{"kind": "Cast", "inner": valueToMap(x.Inner), "target": x.Target, "dest": x.Dest}
	case Transmute:
		return map[string]any{"kind": "Transmute", "inner": valueToMap(x.Inner), "target": x.Target, "dest": x.Dest}
	case If:
		return map[string]any{"kind": "If", "cond": valueToMap(x.Cond), "then": nodeToMap(x.Then), "else": nodeToMap(x.Else)}
	case Loop:
		m := map[string]any{"kind": "Loop", "loop_kind": float64(x.Kind), "body": nodeToMap(x.Body)}
		if x.Cond != nil {
			m["cond"] = valueToMap(x.Cond)
		}
		return m
	case Branch:
		m := map[string]any{"kind": "Branch", "then": x.Then, "else": x.Else}
		if x.Cond != nil {
			m["cond"] = valueToMap(x.Cond)
		}
		return m
	case Phi:
		incoming := map[string]any{}
		for label, v := range x.Incoming {
			incoming[label] = valueToMap(v)
		}
		return map[string]any{"kind": "Phi", "name": x.Name, "incoming": incoming}
	case Return:
		if x.Value == nil {
			return map[string]any{"kind": "Return"}
		}
		return map[string]any{"kind": "Return", "value": valueToMap(x.Value)}
	case Break:
		return map[string]any{"kind": "Break"}
	case Continue:
		return map[string]any{"kind": "Continue"}
	case Match:
		arms := make([]any, len(x.Arms))
		for i, arm := range x.Arms {
			arms[i] = map[string]any{"test": nodeToMap(arm.Test), "body": nodeToMap(arm.Body)}
		}
		return map[string]any{"kind": "Match", "scrutinee": valueToMap(x.Scrutinee), "arms": arms, "result": x.Result}
	case Region:
		return map[string]any{"kind": "Region", "owner": x.Owner, "alias": x.Alias, "body": nodeToMap(x.Body)}
	case Frame:
		return map[string]any{"kind": "Frame", "region": x.Region, "body": nodeToMap(x.Body)}
	case Alloc:
		return map[string]any{"kind": "Alloc", "region": x.Region, "value": valueToMap(x.Value)}
	case LowerPanic:
		return map[string]any{"kind": "LowerPanic", "reason": x.Reason, "cleanup": nodesToAny(x.Cleanup)}
	case PanicCheck:
		return map[string]any{"kind": "PanicCheck", "cleanup": nodesToAny(x.Cleanup)}
	case ClearPanic:
		return map[string]any{"kind": "ClearPanic"}
	case InitPanicHandle:
		poisons := make([]any, len(x.PoisonModules))
		for i, p := range x.PoisonModules {
			poisons[i] = p
		}
		return map[string]any{"kind": "InitPanicHandle", "module": x.Module, "poison_modules": poisons}
	case CheckPoison:
		return map[string]any{"kind": "CheckPoison", "module": x.Module}
	case CheckIndex:
		return map[string]any{"kind": "CheckIndex", "index": valueToMap(x.Index), "len": valueToMap(x.Len)}
	case CheckRange:
		return map[string]any{"kind": "CheckRange", "lo": valueToMap(x.Lo), "hi": valueToMap(x.Hi), "len": valueToMap(x.Len)}
	case CheckSliceLen:
		return map[string]any{"kind": "CheckSliceLen", "lo": valueToMap(x.Lo), "hi": valueToMap(x.Hi)}
	case CheckOp:
		return map[string]any{"kind": "CheckOp", "op": x.Op, "reason": x.Reason, "args": valuesToAny(x.Args)}
	case CheckCast:
		return map[string]any{"kind": "CheckCast", "inner": valueToMap(x.Inner), "target": x.Target}
	case GlobalConst:
		return map[string]any{"kind": "GlobalConst", "module": x.Module, "name": x.Name, "bytes": append([]byte(nil), x.Bytes...)}
	case GlobalZero:
		return map[string]any{"kind": "GlobalZero", "module": x.Module, "name": x.Name, "size": float64(x.Size)}
	default:
		return map[string]any{"kind": fmt.Sprintf("unknown(%T)", x)}
	}
}

func nodesToAny(nodes []Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = nodeToMap(n)
	}
	return out
}

func valuesToAny(vals []IRValue) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = valueToMap(v)
	}
	return out
}

func valueToMap(v IRValue) map[string]any {
	if v == nil {
		return map[string]any{"kind": "nil"}
	}
	switch x := v.(type) {
	case Local:
		return map[string]any{"kind": "Local", "name": x.Name}
	case Symbol:
		return map[string]any{"kind": "Symbol", "name": x.Name, "builtin": x.Builtin}
	case Immediate:
		return map[string]any{"kind": "Immediate", "bytes": append([]byte(nil), x.Bytes...)}
	case Opaque:
		return map[string]any{"kind": "Opaque", "id": float64(x.ID)}
	default:
		return map[string]any{"kind": fmt.Sprintf("unknown(%T)", x)}
	}
}

func derivedToMap(d Derived) map[string]any {
	m := map[string]any{"kind": float64(d.Kind)}
	if d.Base != nil {
		m["base"] = valueToMap(d.Base)
	}
	if d.Field != "" {
		m["field"] = d.Field
	}
	m["index"] = float64(d.Index)
	if d.IndexVal != nil {
		m["index_val"] = valueToMap(d.IndexVal)
	}
	if d.Lo != nil {
		m["lo"] = valueToMap(d.Lo)
	}
	if d.Hi != nil {
		m["hi"] = valueToMap(d.Hi)
	}
	if len(d.Elements) > 0 {
		m["elements"] = valuesToAny(d.Elements)
	}
	if len(d.Fields) > 0 {
		fields := make([]any, len(d.Fields))
		for i, f := range d.Fields {
			fields[i] = map[string]any{"name": f.Name, "value": valueToMap(f.Value)}
		}
		m["fields"] = fields
	}
	if d.Type != "" {
		m["type"] = d.Type
	}
	if d.Variant != "" {
		m["variant"] = d.Variant
	}
	return m
}
