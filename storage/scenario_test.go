package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/storage"
	"github.com/minerva-studio/meialian-bibliography-sub004/storage/binary"
	"github.com/minerva-studio/meialian-bibliography-sub004/storage/jsonadapter"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// End-to-end scenarios exercising the public Storage/binary/jsonadapter
// surface together, the way an integration suite would, rather than one
// package's internals in isolation.

func TestScenarioRoundTripScalarsAndStringThroughBinary(t *testing.T) {
	rootLay, err := layout.Build("hero", []layout.FieldSpec{
		{Name: "Health", Kind: typekind.Int32},
		{Name: "Name", Kind: typekind.Char16, IsArray: true, Length: 4},
	})
	require.NoError(t, err)

	st, err := storage.New(rootLay)
	require.NoError(t, err)

	require.NoError(t, st.Root.Write("Health", int32(100), typekind.Int32, storage.ModeStrict))
	require.NoError(t, st.Root.WriteString("Name", "Hero"))

	dump, err := binary.Dump(st.Root)
	require.NoError(t, err)

	root2, err := binary.Parse(st.Registry(), dump)
	require.NoError(t, err)
	require.NotEqual(t, st.Root.ID(), root2.ID())

	health, err := root2.Read("Health", typekind.Int32, storage.ModeStrict)
	require.NoError(t, err)
	require.Equal(t, int32(100), health)

	name, err := root2.ReadString("Name")
	require.NoError(t, err)
	require.Equal(t, "Hero", name)
}

func TestScenarioNestedChildrenSurviveBinaryRoundTrip(t *testing.T) {
	st, err := storage.New(nil)
	require.NoError(t, err)

	childLay, err := layout.Build("child", []layout.FieldSpec{{Name: "v", Kind: typekind.Int32}})
	require.NoError(t, err)

	child, err := st.Root.GetObject("child", childLay)
	require.NoError(t, err)
	require.NoError(t, child.Write("v", int32(55), typekind.Int32, storage.ModeStrict))

	dump, err := binary.Dump(st.Root)
	require.NoError(t, err)

	reg2 := storage.NewRegistry(st.Pool())
	root2, err := binary.Parse(reg2, dump)
	require.NoError(t, err)

	child2, err := root2.GetObject("child", nil)
	require.NoError(t, err)
	v, err := child2.Read("v", typekind.Int32, storage.ModeStrict)
	require.NoError(t, err)
	require.Equal(t, int32(55), v)
}

func TestScenarioObjectArrayTeardownUnregistersWholeSubtree(t *testing.T) {
	grandchildLay, err := layout.Build("grandchild", []layout.FieldSpec{{Name: "v", Kind: typekind.Int32}})
	require.NoError(t, err)
	childLay, err := layout.Build("child", []layout.FieldSpec{{Name: "gc", Kind: typekind.Ref}})
	require.NoError(t, err)

	st, err := storage.New(nil)
	require.NoError(t, err)
	reg, c, err := st.Root.Unwrap()
	require.NoError(t, err)
	require.NoError(t, storage.AddRefArrayField(reg, c, "kids", 2))

	arr, err := st.Root.GetArray("kids")
	require.NoError(t, err)
	kid, err := arr.GetObject(0, childLay)
	require.NoError(t, err)
	grandkid, err := kid.GetObject("gc", grandchildLay)
	require.NoError(t, err)
	grandkidID := grandkid.ID()

	require.NoError(t, arr.ClearAt(0))

	require.Nil(t, reg.Get(grandkidID))
	_, ok := arr.TryGetObject(0)
	require.False(t, ok)
}

func TestScenarioOverrideChangesFieldKindInPlace(t *testing.T) {
	rootLay, err := layout.Build("root", []layout.FieldSpec{{Name: "payload", Kind: typekind.Int32}})
	require.NoError(t, err)
	st, err := storage.New(rootLay)
	require.NoError(t, err)

	require.NoError(t, st.Root.Write("payload", int32(1), typekind.Int32, storage.ModeStrict))
	require.NoError(t, st.Root.Override("payload", []byte{1, 2, 3, 4}, typekind.Blob, 4))

	view, err := st.Root.View()
	require.NoError(t, err)
	var found storage.FieldView
	for _, f := range view.Fields {
		if f.Name == "payload" {
			found = f
		}
	}
	require.Equal(t, typekind.Blob, found.Kind)
	require.Equal(t, []byte{1, 2, 3, 4}, view.Buffer[found.DataOffset:found.DataOffset+found.DataLength])
}

func TestScenarioReschemeAddThenRemoveField(t *testing.T) {
	st, err := storage.New(nil)
	require.NoError(t, err)
	reg, c, err := st.Root.Unwrap()
	require.NoError(t, err)

	require.NoError(t, storage.AddScalarField(reg, c, "temp", typekind.Int64, nil))
	require.NoError(t, st.Root.Write("temp", int64(42), typekind.Int64, storage.ModeStrict))
	v, err := st.Root.Read("temp", typekind.Int64, storage.ModeStrict)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	_, c, err = st.Root.Unwrap()
	require.NoError(t, err)
	require.NoError(t, storage.DeleteField(reg, c, "temp"))

	_, err = st.Root.Read("temp", typekind.Int64, storage.ModeStrict)
	require.Error(t, err)
}

func TestScenarioStaleVersionTicketDefeatsABA(t *testing.T) {
	rootLay, err := layout.Build("root", []layout.FieldSpec{{Name: "a", Kind: typekind.Int32}})
	require.NoError(t, err)
	st, err := storage.New(rootLay)
	require.NoError(t, err)

	reg, c, err := st.Root.Unwrap()
	require.NoError(t, err)

	var delivered int
	sub, err := st.Root.Subscribe("a", func(ev storage.WriteEvent) { delivered++ })
	require.NoError(t, err)
	defer sub.Dispose()

	ticket := storage.FieldVersion(reg, c, "a")
	storage.BumpFieldVersion(reg, c, "a") // a concurrent structural edit moves the ticket on

	storage.NotifyField(reg, c, "a", typekind.Int32, &ticket)
	require.Zero(t, delivered, "a stale ticket must not deliver a notification")

	storage.NotifyField(reg, c, "a", typekind.Int32, nil)
	require.Equal(t, 1, delivered, "a ticketless notification always delivers")
}

func TestScenarioJSONRoundTripThroughStorage(t *testing.T) {
	reg := storage.NewRegistry(bytepool.New())
	root, err := jsonadapter.Unmarshal(reg, []byte(`{"health":100,"name":"Hero"}`), 0)
	require.NoError(t, err)

	out, err := jsonadapter.Marshal(root)
	require.NoError(t, err)
	require.Contains(t, string(out), "Hero")
}
