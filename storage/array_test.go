package storage

import (
	"testing"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

func TestStorageArrayElementReadWrite(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "items", Kind: typekind.Int32, IsArray: true, Length: 3})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	o := newStorageObject(reg, c)

	arr, err := o.GetArray("items")
	if err != nil {
		t.Fatalf("GetArray: %v", err)
	}
	n, err := arr.Length()
	if err != nil || n != 3 {
		t.Fatalf("Length() = (%d, %v), want (3, nil)", n, err)
	}
	if err := arr.SetElementAt(1, int32(42), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("SetElementAt: %v", err)
	}
	v, err := arr.ElementAt(1, typekind.Int32, ModeStrict)
	if err != nil {
		t.Fatalf("ElementAt: %v", err)
	}
	if v.(int32) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestStorageArrayIndexOutOfRange(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "items", Kind: typekind.Int32, IsArray: true, Length: 2})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	o := newStorageObject(reg, c)
	arr, _ := o.GetArray("items")

	if _, err := arr.ElementAt(5, typekind.Int32, ModeStrict); err == nil {
		t.Fatal("expected IndexOutOfRange")
	} else if se, ok := err.(*StorageError); !ok || se.Kind != KindIndexOutOfRange {
		t.Fatalf("got %v, want IndexOutOfRange", err)
	}
}

func TestStorageArrayRefGetObjectAllocatesAndClears(t *testing.T) {
	parentLay := buildTestLayout(t, layout.FieldSpec{Name: "kids", Kind: typekind.Ref, IsArray: true, Length: 2})
	childLay := buildTestLayout(t, layout.FieldSpec{Name: "v", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	parent := reg.CreateAndRegister(parentLay)
	o := newStorageObject(reg, parent)

	arr, err := o.GetArray("kids")
	if err != nil {
		t.Fatalf("GetArray: %v", err)
	}
	if arr.IsRef() != true {
		t.Fatal("kids should be a Ref array")
	}

	if _, ok := arr.TryGetObject(0); ok {
		t.Fatal("slot 0 should start out null")
	}

	child, err := arr.GetObject(0, childLay)
	if err != nil {
		t.Fatalf("GetObject (allocate): %v", err)
	}
	childID := child.ID()
	if reg.Get(childID) == nil {
		t.Fatal("allocated child should be registered")
	}

	if err := arr.ClearAt(0); err != nil {
		t.Fatalf("ClearAt: %v", err)
	}
	if reg.Get(childID) != nil {
		t.Fatal("cleared slot's child should be unregistered")
	}
	if _, ok := arr.TryGetObject(0); ok {
		t.Fatal("slot should be null after ClearAt")
	}
}

func TestStorageArrayResize(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "items", Kind: typekind.Int32, IsArray: true, Length: 2})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	o := newStorageObject(reg, c)
	arr, _ := o.GetArray("items")

	if err := arr.SetElementAt(0, int32(1), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("SetElementAt: %v", err)
	}
	resized, err := arr.Resize(5)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	n, _ := resized.Length()
	if n != 5 {
		t.Fatalf("Length() = %d, want 5", n)
	}
	v, err := resized.ElementAt(0, typekind.Int32, ModeStrict)
	if err != nil {
		t.Fatalf("ElementAt: %v", err)
	}
	if v.(int32) != 1 {
		t.Fatalf("resize should preserve overlapping element 0, got %v", v)
	}
}

func TestStorageArrayAsStringAndWrite(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "name", Kind: typekind.Char16, IsArray: true, Length: 4})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)
	o := newStorageObject(reg, c)
	arr, _ := o.GetArray("name")

	updated, err := arr.Write("Hero")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	s, err := updated.AsString()
	if err != nil {
		t.Fatalf("AsString: %v", err)
	}
	if s != "Hero" {
		t.Fatalf("got %q, want %q", s, "Hero")
	}
}
