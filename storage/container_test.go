package storage

import (
	"testing"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

func buildTestLayout(t *testing.T, specs ...layout.FieldSpec) *layout.ContainerLayout {
	t.Helper()
	lay, err := layout.Build("T", specs)
	if err != nil {
		t.Fatalf("layout.Build: %v", err)
	}
	return lay
}

func TestContainerWriteReadScalarStrict(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "health", Kind: typekind.Int32})
	pool := bytepool.New()
	c := NewContainer(lay, pool)

	if err := c.WriteScalar("health", int32(100), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	v, k, err := c.ReadScalarAny("health")
	if err != nil {
		t.Fatalf("ReadScalarAny: %v", err)
	}
	if k != typekind.Int32 || v.(int32) != 100 {
		t.Fatalf("got (%v, %v), want (100, Int32)", v, k)
	}
}

func TestContainerWriteScalarStrictRejectsMismatch(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "health", Kind: typekind.Int32})
	c := NewContainer(lay, bytepool.New())

	if err := c.WriteScalar("health", int16(1), typekind.Int16, ModeStrict); err == nil {
		t.Fatal("expected strict-mode kind mismatch to fail")
	}
}

func TestContainerWriteScalarImplicitWidens(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "mana", Kind: typekind.Int64})
	c := NewContainer(lay, bytepool.New())

	if err := c.WriteScalar("mana", int32(42), typekind.Int32, ModeImplicit); err != nil {
		t.Fatalf("implicit widen should succeed: %v", err)
	}
	v, _, err := c.ReadScalarAny("mana")
	if err != nil {
		t.Fatalf("ReadScalarAny: %v", err)
	}
	if v.(int64) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestContainerFieldNotFound(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	c := NewContainer(lay, bytepool.New())

	if _, _, err := c.ReadScalarAny("missing"); err == nil {
		t.Fatal("expected NotFound error")
	} else if se, ok := err.(*StorageError); !ok || se.Kind != KindNotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestContainerRefSpanRoundTrip(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "children", Kind: typekind.Ref, IsArray: true, Length: 3})
	c := NewContainer(lay, bytepool.New())

	if err := c.SetRefAt("children", 1, 77); err != nil {
		t.Fatalf("SetRefAt: %v", err)
	}
	span, err := c.GetRefSpan("children")
	if err != nil {
		t.Fatalf("GetRefSpan: %v", err)
	}
	if len(span) != 3 || span[1] != 77 || span[0] != 0 || span[2] != 0 {
		t.Fatalf("unexpected span %v", span)
	}
}

func TestReadScalarGenericConverts(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "score", Kind: typekind.Int32})
	c := NewContainer(lay, bytepool.New())
	if err := c.WriteScalar("score", int32(7), typekind.Int32, ModeStrict); err != nil {
		t.Fatalf("WriteScalar: %v", err)
	}
	got, err := ReadScalar[int64](c, "score", typekind.Int64, ModeImplicit)
	if err != nil {
		t.Fatalf("ReadScalar[int64]: %v", err)
	}
	if got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestNewContainerAppliesScalarDefaults(t *testing.T) {
	lay, err := layout.NewObjectBuilder("Player").
		SetScalar("Health", typekind.Int32, int32(100)).
		SetScalar("Mana", typekind.Float32, nil).
		BuildLayout()
	if err != nil {
		t.Fatalf("BuildLayout: %v", err)
	}

	c := NewContainer(lay, bytepool.New())

	health, _, err := c.ReadScalarAny("Health")
	if err != nil {
		t.Fatalf("ReadScalarAny(Health): %v", err)
	}
	if health.(int32) != 100 {
		t.Fatalf("got Health %v, want default 100", health)
	}

	mana, _, err := c.ReadScalarAny("Mana")
	if err != nil {
		t.Fatalf("ReadScalarAny(Mana): %v", err)
	}
	if mana.(float32) != 0 {
		t.Fatalf("got Mana %v, want zero (no default recorded)", mana)
	}
}

func TestAddScalarFieldAppliesDefaultOnRescheme(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "existing", Kind: typekind.Int32})
	reg := NewRegistry(bytepool.New())
	c := reg.CreateAndRegister(lay)

	if err := AddScalarField(reg, c, "level", typekind.Int32, int32(1)); err != nil {
		t.Fatalf("AddScalarField: %v", err)
	}
	level, _, err := c.ReadScalarAny("level")
	if err != nil {
		t.Fatalf("ReadScalarAny(level): %v", err)
	}
	if level.(int32) != 1 {
		t.Fatalf("got level %v, want default 1", level)
	}
}

func TestContainerGenerationBump(t *testing.T) {
	lay := buildTestLayout(t, layout.FieldSpec{Name: "a", Kind: typekind.Int32})
	c := NewContainer(lay, bytepool.New())
	if c.Generation() != 0 {
		t.Fatalf("fresh container should start at generation 0, got %d", c.Generation())
	}
	c.bumpGeneration()
	if c.Generation() != 1 {
		t.Fatalf("got generation %d, want 1", c.Generation())
	}
}
