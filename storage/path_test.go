package storage

import (
	"testing"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

func TestParsePathSimple(t *testing.T) {
	segs, err := ParsePath("a.b.c")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(segs) != 3 || segs[0].Name != "a" || segs[2].Name != "c" {
		t.Fatalf("got %+v", segs)
	}
}

func TestParsePathWithIndex(t *testing.T) {
	segs, err := ParsePath("a.b[3].d")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if !segs[1].HasIndex || segs[1].Index != 3 || segs[1].Name != "b" {
		t.Fatalf("got %+v", segs[1])
	}
}

func TestParsePathRejectsEmpty(t *testing.T) {
	if _, err := ParsePath(""); err == nil {
		t.Fatal("expected MalformedPath for an empty path")
	}
	if _, err := ParsePath("a..b"); err == nil {
		t.Fatal("expected MalformedPath for an empty segment")
	}
	if _, err := ParsePath("a.b["); err == nil {
		t.Fatal("expected MalformedPath for an unterminated index")
	}
}

func TestWriteReadPathRoundTrip(t *testing.T) {
	rootLay := buildTestLayout(t)
	reg := NewRegistry(bytepool.New())
	root := newStorageObject(reg, reg.CreateAndRegister(rootLay))

	if err := WritePath(root, "a.b.health", int32(42), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("WritePath: %v", err)
	}
	v, err := ReadPath(root, "a.b.health", typekind.Int32, ModeStrict)
	if err != nil {
		t.Fatalf("ReadPath: %v", err)
	}
	if v.(int32) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestWriteReadStringPathRoundTrip(t *testing.T) {
	rootLay := buildTestLayout(t)
	reg := NewRegistry(bytepool.New())
	root := newStorageObject(reg, reg.CreateAndRegister(rootLay))

	if err := WriteStringPath(root, "profile.name", "Hero"); err != nil {
		t.Fatalf("WriteStringPath: %v", err)
	}
	s, err := ReadStringPath(root, "profile.name")
	if err != nil {
		t.Fatalf("ReadStringPath: %v", err)
	}
	if s != "Hero" {
		t.Fatalf("got %q, want %q", s, "Hero")
	}
}

func TestReadPathMissingIntermediateFails(t *testing.T) {
	rootLay := buildTestLayout(t)
	reg := NewRegistry(bytepool.New())
	root := newStorageObject(reg, reg.CreateAndRegister(rootLay))

	if _, err := ReadPath(root, "missing.field", typekind.Int32, ModeStrict); err == nil {
		t.Fatal("expected an error reading through a missing intermediate segment")
	}
}

func TestGetObjectByPathWithArrayIndexAutoCreates(t *testing.T) {
	rootLay := buildTestLayout(t)
	childLay := buildTestLayout(t, layout.FieldSpec{Name: "v", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	root := newStorageObject(reg, reg.CreateAndRegister(rootLay))

	obj, err := GetObjectByPath(root, "items[2]", true, func() *layout.ContainerLayout { return childLay })
	if err != nil {
		t.Fatalf("GetObjectByPath: %v", err)
	}
	if err := obj.Write("v", int32(5), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("Write: %v", err)
	}

	arr, err := root.GetArray("items")
	if err != nil {
		t.Fatalf("GetArray: %v", err)
	}
	n, _ := arr.Length()
	if n != 3 {
		t.Fatalf("array should have been auto-created with 3 slots, got %d", n)
	}
}
