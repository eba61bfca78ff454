package storage

import (
	"go.uber.org/zap"

	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// Edit mutates a layout.ObjectBuilder prepopulated from a container's
// current shape; Rescheme applies it to plan the new layout. Grounded on
// the teacher's phased migration-planner idiom (trie/migration_planner.go):
// Plan -> Materialize -> Migrate -> Swap.
type Edit func(b *layout.ObjectBuilder)

// builderFromLayout reconstructs an ObjectBuilder whose specs reproduce
// lay's current field shape, so an Edit can be applied on top of it.
func builderFromLayout(lay *layout.ContainerLayout) *layout.ObjectBuilder {
	b := layout.NewObjectBuilder(lay.ContainerName)
	for i, name := range lay.Names {
		fh := lay.Fields[i]
		k, isArray := typekind.Unpack(fh.Type)
		elemSize := int(fh.ElemSize)

		switch {
		case k == typekind.Ref && isArray:
			b.SetRefArray(name, int(fh.DataLength)/8)
		case k == typekind.Ref:
			b.SetRef(name)
		case k == typekind.Blob || k == typekind.Unknown:
			b.SetBlobArray(name, int(fh.DataLength))
		case isArray:
			length := 1
			if elemSize > 0 {
				length = int(fh.DataLength) / elemSize
			}
			b.SetArray(name, k, length)
		default:
			b.SetScalar(name, k, nil)
		}
	}
	return b
}

// Rescheme rebuilds c's layout from edit and migrates field bytes into
// the new buffer, preserving c.id. It never changes the container's
// identity, only its shape and generation. The returned bool reports
// whether any field migration fell back to MigrateFieldBytes' unsafe
// raw-copy path (truncate/zero-pad/reinterpret); each such field is also
// logged at Warn via reg.log, per spec §4.
func Rescheme(reg *Registry, c *Container, edit Edit) (unsafe bool, err error) {
	b := builderFromLayout(c.layout)
	edit(b)
	newLayout, err := b.BuildLayout()
	if err != nil {
		return false, wrapErr(KindKindChange, err, "rescheme plan failed")
	}

	newBuf := reg.pool.Rent(newLayout.Stride, true)
	copy(newBuf, newLayout.Blob)
	applyDefaults(newBuf, newLayout)

	oldLayout := c.layout
	oldBuf := c.buffer

	for newIdx, name := range newLayout.Names {
		newFH := newLayout.Fields[newIdx]
		newKind, newIsArray := typekind.Unpack(newFH.Type)
		oldIdx := oldLayout.IndexOf(name)
		if oldIdx < 0 {
			continue // present only in new: stays zero-initialized
		}
		oldFH := oldLayout.Fields[oldIdx]
		oldKind, oldIsArray := typekind.Unpack(oldFH.Type)
		oldSpan := oldBuf[oldFH.DataOffset : oldFH.DataOffset+oldFH.DataLength]
		newSpan := newBuf[newFH.DataOffset : newFH.DataOffset+newFH.DataLength]

		switch {
		case oldKind == newKind && oldIsArray == newIsArray:
			copy(newSpan, oldSpan)
		case oldKind == typekind.Ref && newKind != typekind.Ref:
			unregisterRefSpan(reg, oldSpan)
		case newKind == typekind.Ref && oldKind != typekind.Ref:
			// new Ref slots stay null; nothing to migrate from a value.
		default:
			res := MigrateFieldBytes(newSpan, newKind, oldSpan, oldKind, true)
			if res.Unsafe {
				unsafe = true
				reg.log.Warn("unsafe field migration",
					zap.String("field", name),
					zap.String("oldKind", oldKind.String()),
					zap.String("newKind", newKind.String()),
					zap.Int("elementsCopied", res.ElementsCopied),
					zap.Int("destinationSize", res.DestinationSize),
				)
			}
		}
	}

	for i, name := range oldLayout.Names {
		if newLayout.IndexOf(name) >= 0 {
			continue
		}
		oldFH := oldLayout.Fields[i]
		oldKind, _ := typekind.Unpack(oldFH.Type)
		if oldKind != typekind.Ref {
			continue
		}
		unregisterRefSpan(reg, oldBuf[oldFH.DataOffset:oldFH.DataOffset+oldFH.DataLength])
	}

	c.buffer = newBuf
	c.layout = newLayout
	c.bumpGeneration()
	reg.pool.Return(oldBuf)

	return unsafe, nil
}

// unregisterRefSpan tears down every non-null child referenced by a Ref
// field's raw byte span.
func unregisterRefSpan(reg *Registry, span []byte) {
	for i := 0; i+8 <= len(span); i += 8 {
		childID := valuecodec.ReadRef(span[i : i+8])
		if childID == 0 {
			continue
		}
		if child := reg.Get(childID); child != nil {
			reg.Unregister(child)
		}
	}
}

// DeleteField removes a field via rescheme, unregistering any subtree it
// referenced. Per spec §7, a "field deleted" notification (kind=Unknown)
// is published before the field bytes become inaccessible, and its
// version ticket is bumped to kill in-flight writer tickets.
func DeleteField(reg *Registry, c *Container, name string) error {
	BumpFieldVersion(reg, c, name)
	NotifyField(reg, c, name, typekind.Unknown, nil)
	_, err := Rescheme(reg, c, func(b *layout.ObjectBuilder) { b.RemoveField(name) })
	return err
}

// RenameField renames a field in place via rescheme, preserving its
// bytes. The old name's version ticket is bumped first, per the same
// structural-edit policy as DeleteField.
func RenameField(reg *Registry, c *Container, oldName, newName string) error {
	BumpFieldVersion(reg, c, oldName)
	oldSpan, err := c.GetFieldBytes(oldName)
	if err != nil {
		return err
	}
	saved := append([]byte(nil), oldSpan...)
	// Rescheme pairs fields by name, so the bytes are carried over here;
	// nulling the old span keeps a renamed Ref field's children registered.
	clear(oldSpan)
	if _, err := Rescheme(reg, c, func(b *layout.ObjectBuilder) { b.RenameField(oldName, newName) }); err != nil {
		copy(oldSpan, saved)
		return err
	}
	newSpan, err := c.GetFieldBytes(newName)
	if err != nil {
		return err
	}
	copy(newSpan, saved)
	return nil
}

// ChangeFieldKind reschemes a single field to a new kind/array-ness/length,
// converting its existing bytes where possible (§4.9) or tearing down its
// subtree (Ref -> value) / nulling it out (value -> Ref). The returned
// bool reports whether the conversion was unsafe (see Rescheme).
func ChangeFieldKind(reg *Registry, c *Container, name string, newKind typekind.Kind, isArray bool, length int) (unsafe bool, err error) {
	return Rescheme(reg, c, func(b *layout.ObjectBuilder) {
		switch {
		case newKind == typekind.Ref && isArray:
			b.SetRefArray(name, length)
		case newKind == typekind.Ref:
			b.SetRef(name)
		case newKind == typekind.Blob || newKind == typekind.Unknown:
			b.SetBlobArray(name, length)
		case isArray:
			b.SetArray(name, newKind, length)
		default:
			b.SetScalar(name, newKind, nil)
		}
	})
}

// AddScalarField adds a new scalar field via rescheme.
func AddScalarField(reg *Registry, c *Container, name string, k typekind.Kind, def any) error {
	_, err := Rescheme(reg, c, func(b *layout.ObjectBuilder) { b.SetScalar(name, k, def) })
	return err
}

// AddRefField adds a new single-slot Ref field via rescheme.
func AddRefField(reg *Registry, c *Container, name string) error {
	_, err := Rescheme(reg, c, func(b *layout.ObjectBuilder) { b.SetRef(name) })
	return err
}

// AddArrayField adds a new inline value array field via rescheme.
func AddArrayField(reg *Registry, c *Container, name string, k typekind.Kind, length int) error {
	_, err := Rescheme(reg, c, func(b *layout.ObjectBuilder) { b.SetArray(name, k, length) })
	return err
}

// AddRefArrayField adds a new Ref array field via rescheme.
func AddRefArrayField(reg *Registry, c *Container, name string, length int) error {
	_, err := Rescheme(reg, c, func(b *layout.ObjectBuilder) { b.SetRefArray(name, length) })
	return err
}

// ResizeArrayField changes the element count of an existing array field
// (value or Ref), preserving overlapping elements. The returned bool
// reports whether the resize's byte migration was unsafe (see Rescheme).
func ResizeArrayField(reg *Registry, c *Container, name string, newLength int) (unsafe bool, err error) {
	k, isArray, err := c.FieldKind(name)
	if err != nil {
		return false, err
	}
	if !isArray {
		return false, newErr(KindKindChange, "field %q is not an array", name)
	}
	return ChangeFieldKind(reg, c, name, k, true, newLength)
}
