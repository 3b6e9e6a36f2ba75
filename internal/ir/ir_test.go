package ir

import "testing"

func TestTableAddAssignsSequentialIDs(t *testing.T) {
	var tbl Table
	o1 := tbl.Add(Derived{Kind: DerivedFieldAccess, Base: Local{Name: "p"}, Field: "x"})
	o2 := tbl.Add(Derived{Kind: DerivedTupleIndex, Base: Local{Name: "t"}, Index: 1})
	if o1.ID != 0 || o2.ID != 1 {
		t.Fatalf("expected sequential ids 0,1; got %d,%d", o1.ID, o2.ID)
	}
	if tbl.Get(o2).Index != 1 {
		t.Fatalf("expected Get to round-trip the stored entry")
	}
}

func TestDumpProducesExpectedShape(t *testing.T) {
	n := Block{
		Setup: []Node{BindVar{Name: "x", Value: Immediate{Bytes: []byte{1, 0, 0, 0}}}},
		Body: []Node{
			Return{Value: Local{Name: "x"}},
		},
	}
	s, err := Dump(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := s.GetFields()
	if fields["kind"].GetStringValue() != "Block" {
		t.Fatalf("expected top-level kind=Block, got %v", fields["kind"])
	}
	body := fields["body"].GetListValue().GetValues()
	if len(body) != 1 {
		t.Fatalf("expected one body node, got %d", len(body))
	}
	ret := body[0].GetStructValue().GetFields()
	if ret["kind"].GetStringValue() != "Return" {
		t.Fatalf("expected Return node, got %v", ret["kind"])
	}
}

func TestDumpHandlesNilBranches(t *testing.T) {
	n := If{Cond: Immediate{Bytes: []byte{1}}, Then: Return{}, Else: nil}
	s, err := Dump(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GetFields()["else"].GetStructValue().GetFields()["kind"].GetStringValue() != "nil" {
		t.Fatalf("expected a nil else-branch placeholder")
	}
}

func TestDumpTable(t *testing.T) {
	var tbl Table
	tbl.Add(Derived{Kind: DerivedEnumLit, Type: "Option", Variant: "Some", Elements: []IRValue{Immediate{Bytes: []byte{5}}}})
	s, err := DumpTable(&tbl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := s.GetFields()["entries"].GetListValue().GetValues()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
}
