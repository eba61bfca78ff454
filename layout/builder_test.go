package layout

import (
	"testing"

	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

func TestObjectBuilderBuildLayout(t *testing.T) {
	b := NewObjectBuilder("Player").
		SetScalar("Health", typekind.Int32, int32(100)).
		SetScalar("Mana", typekind.Float32, nil).
		SetRef("Inventory").
		SetArray("Name", typekind.Char16, 4)

	lay, err := b.BuildLayout()
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}
	if lay.IndexOf("Health") < 0 || lay.IndexOf("Mana") < 0 || lay.IndexOf("Inventory") < 0 || lay.IndexOf("Name") < 0 {
		t.Fatalf("expected all four fields to be present")
	}
	defaults := b.Defaults()
	if v, ok := defaults["Health"]; !ok || v.(int32) != 100 {
		t.Fatalf("expected Health default 100, got %v", defaults["Health"])
	}
	if _, ok := defaults["Mana"]; ok {
		t.Fatalf("Mana should have no recorded default")
	}
}

func TestObjectBuilderRemoveAndRename(t *testing.T) {
	b := NewObjectBuilder("Obj").
		SetScalar("A", typekind.Int32, int32(1)).
		SetScalar("B", typekind.Int32, nil)

	b.RenameField("A", "Renamed")
	b.RemoveField("B")

	lay, err := b.BuildLayout()
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}
	if lay.IndexOf("Renamed") < 0 {
		t.Fatalf("expected renamed field present")
	}
	if lay.IndexOf("B") >= 0 {
		t.Fatalf("expected removed field absent")
	}
	if lay.IndexOf("A") >= 0 {
		t.Fatalf("expected old name gone after rename")
	}
	defaults := b.Defaults()
	if v, ok := defaults["Renamed"]; !ok || v.(int32) != 1 {
		t.Fatalf("expected default to follow rename, got %v", defaults)
	}
}

func TestObjectBuilderReplaceSameName(t *testing.T) {
	b := NewObjectBuilder("Obj").
		SetScalar("A", typekind.Int32, nil).
		SetScalar("A", typekind.Float64, nil)

	specs := b.Specs()
	if len(specs) != 1 {
		t.Fatalf("expected re-adding the same name to replace, got %d specs", len(specs))
	}
	if specs[0].Kind != typekind.Float64 {
		t.Fatalf("expected replaced kind Float64, got %v", specs[0].Kind)
	}
}
