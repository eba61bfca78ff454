package storage

import (
	"testing"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

func TestReschemePreservesContainerID(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	id := c.ID()

	if err := AddScalarField(reg, c, "b", typekind.Int64, nil); err != nil {
		t.Fatalf("AddScalarField: %v", err)
	}
	if c.ID() != id {
		t.Fatalf("rescheme must preserve container id; got %d, want %d", c.ID(), id)
	}
}

func TestReschemePreservesUnchangedFieldBytes(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	if err := c.WriteScalar("a", int32(99), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}

	if err := AddScalarField(reg, c, "b", typekind.Int64, nil); err != nil {
		t.Fatalf("AddScalarField: %v", err)
	}

	v, _, err := c.ReadScalarAny("a")
	if err != nil {
		t.Fatalf("ReadScalarAny: %v", err)
	}
	if v.(int32) != 99 {
		t.Fatalf("field 'a' bytes should survive rescheme unchanged, got %v", v)
	}
}

func TestReschemeBumpsGeneration(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	gen := c.Generation()

	if err := AddScalarField(reg, c, "b", typekind.Int64, nil); err != nil {
		t.Fatalf("AddScalarField: %v", err)
	}
	if c.Generation() == gen {
		t.Fatal("rescheme should bump generation")
	}
}

func TestDeleteFieldRemovesField(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32}, layout.FieldSpec{Name: "b", Kind: typekind.Int64})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)

	if err := DeleteField(reg, c, "a"); err != nil {
		t.Fatalf("DeleteField: %v", err)
	}
	if _, _, err := c.ReadScalarAny("a"); err == nil {
		t.Fatal("field 'a' should no longer exist after delete")
	}
	if _, _, err := c.ReadScalarAny("b"); err != nil {
		t.Fatalf("field 'b' should survive: %v", err)
	}
}

func TestRenameFieldPreservesBytes(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	if err := c.WriteScalar("a", int32(5), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}

	if err := RenameField(reg, c, "a", "renamed"); err != nil {
		t.Fatalf("RenameField: %v", err)
	}
	v, _, err := c.ReadScalarAny("renamed")
	if err != nil {
		t.Fatalf("ReadScalarAny: %v", err)
	}
	if v.(int32) != 5 {
		t.Fatalf("got %v, want 5", v)
	}
}

func TestChangeFieldKindReportsUnsafeConversion(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	if err := c.WriteScalar("a", int32(5), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}

	unsafe, err := ChangeFieldKind(reg, c, "a", typekind.Blob, true, 4)
	if err != nil {
		t.Fatalf("ChangeFieldKind: %v", err)
	}
	if !unsafe {
		t.Fatal("converting Int32 -> Blob raw-copies and should be reported unsafe")
	}
}

func TestChangeFieldKindNumericWideningIsNotUnsafe(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)

	unsafe, err := ChangeFieldKind(reg, c, "a", typekind.Int64, false, 1)
	if err != nil {
		t.Fatalf("ChangeFieldKind: %v", err)
	}
	if unsafe {
		t.Fatal("a clean numeric widening conversion should not be reported unsafe")
	}
}

func TestChangeFieldKindRefToValueUnregistersSubtree(t *testing.T) {
	childLay := buildTestLayout(t, layout.FieldSpec{Name: "v", Kind: typekind.Int32})
	parentLay := buildTestLayout(t, layout.FieldSpec{Name: "child", Kind: typekind.Ref})
	reg := NewRegistry(bytepool.New())

	parent := reg.CreateAndRegister(parentLay)
	child := reg.CreateAndRegister(childLay)
	if err := parent.SetRefAt("child", 0, child.ID()); err != nil {
		t.Fatalf("SetRefAt: %v", err)
	}
	childID := child.ID()

	if _, err := ChangeFieldKind(reg, parent, "child", typekind.Int32, false, 1); err != nil {
		t.Fatalf("ChangeFieldKind: %v", err)
	}
	if reg.Get(childID) != nil {
		t.Fatal("child subtree should be unregistered when its Ref field becomes a value field")
	}
}

func TestResizeArrayFieldPreservesOverlap(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "items", Kind: typekind.Int32, IsArray: true, Length: 2})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	if err := c.WriteScalar("items", nil, typekind.Int32, ModeStrict); err == nil {
		t.Fatal("array fields should reject scalar WriteScalar")
	}
	before, err := c.GetFieldBytes("items")
	if err != nil {
		t.Fatalf("GetFieldBytes: %v", err)
	}
	before[0] = 7

	if _, err := ResizeArrayField(reg, c, "items", 4); err != nil {
		t.Fatalf("ResizeArrayField: %v", err)
	}
	span, err := c.GetFieldBytes("items")
	if err != nil {
		t.Fatalf("GetFieldBytes: %v", err)
	}
	if len(span) != 16 {
		t.Fatalf("resized array span = %d bytes, want 16", len(span))
	}
	if span[0] != 7 {
		t.Fatalf("resize should preserve overlapping bytes, got %d", span[0])
	}
}
