package storage

import (
	"unicode/utf16"

	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// StorageObject is a non-owning, plain-value handle onto one container.
// Its validity is defined by (id, captured generation): every access
// re-resolves the container through the registry and fails fast with
// StaleHandle if the generation has drifted (pool reuse or rescheme),
// per the design-notes' "handles are plain value types" guidance.
type StorageObject struct {
	reg        *Registry
	id         uint64
	generation uint64
}

func newStorageObject(reg *Registry, c *Container) StorageObject {
	return StorageObject{reg: reg, id: c.id, generation: c.generation}
}

// resolve returns the live container backing o, or a StaleHandle/Disposed
// error if it no longer matches.
func (o StorageObject) resolve() (*Container, error) {
	if o.reg == nil || o.id == 0 {
		return nil, newErr(KindDisposed, "object handle is empty")
	}
	c := o.reg.Get(o.id)
	if c == nil {
		return nil, newErr(KindDisposed, "container %d no longer registered", o.id)
	}
	if c.generation != o.generation {
		return nil, newErr(KindStaleHandle, "container %d generation drifted (captured %d, now %d)", o.id, o.generation, c.generation)
	}
	return c, nil
}

// Unwrap returns the registry and live container backing o, for
// collaborators outside this package (storage/binary, storage/jsonadapter)
// that need the Container-level rescheme API (AddScalarField, Rescheme,
// ...) to grow a container's shape dynamically.
func (o StorageObject) Unwrap() (*Registry, *Container, error) {
	c, err := o.resolve()
	if err != nil {
		return nil, nil, err
	}
	return o.reg, c, nil
}

// Valid reports whether the handle still resolves to a live container.
func (o StorageObject) Valid() bool {
	_, err := o.resolve()
	return err == nil
}

// ID returns the container id this handle refers to.
func (o StorageObject) ID() uint64 { return o.id }

// Write writes v (of kind srcKind) into the named scalar field, creating
// nothing: the field must already exist (use Rescheme/AddScalarField to
// add one first, or Object/Array helpers that auto-create).
func (o StorageObject) Write(name string, v any, srcKind typekind.Kind, mode ConvertMode) error {
	c, err := o.resolve()
	if err != nil {
		return err
	}
	if err := c.WriteScalar(name, v, srcKind, mode); err != nil {
		return err
	}
	notifyField(c, name)
	return nil
}

// Read reads the named scalar field, converting to wantKind per mode.
func (o StorageObject) Read(name string, wantKind typekind.Kind, mode ConvertMode) (any, error) {
	c, err := o.resolve()
	if err != nil {
		return nil, err
	}
	raw, srcKind, err := c.ReadScalarAny(name)
	if err != nil {
		return nil, err
	}
	return convertForMode(raw, srcKind, wantKind, mode)
}

// WriteString writes s as UTF-16 code units into a Char16 array field.
// A missing or non-Char16-array field is (re)created via AddArrayField;
// an existing one is resized via rescheme if its length in code units
// differs from s's.
func (o StorageObject) WriteString(name string, s string) error {
	c, err := o.resolve()
	if err != nil {
		return err
	}
	units := utf16.Encode([]rune(s))
	k, isArray, ferr := c.FieldKind(name)
	if ferr != nil || !isArray || k != typekind.Char16 {
		if err := AddArrayField(o.reg, c, name, typekind.Char16, len(units)); err != nil {
			return err
		}
		c, err = o.resolve()
		if err != nil {
			return err
		}
	} else if fh, _, _ := c.fieldHeader(name); int(fh.DataLength)/2 != len(units) {
		if _, err := ResizeArrayField(o.reg, c, name, len(units)); err != nil {
			return err
		}
		c, err = o.resolve()
		if err != nil {
			return err
		}
	}
	span, err := c.GetFieldBytes(name)
	if err != nil {
		return err
	}
	for i, u := range units {
		valuecodec.PutUint16(span[i*2:i*2+2], u)
	}
	notifyField(c, name)
	return nil
}

// ReadString reads a Char16 array (or scalar) field as a Go string.
func (o StorageObject) ReadString(name string) (string, error) {
	c, err := o.resolve()
	if err != nil {
		return "", err
	}
	k, _, ferr := c.FieldKind(name)
	if ferr != nil {
		return "", ferr
	}
	if k != typekind.Char16 {
		return "", newErr(KindTypeMismatch, "field %q is not Char16", name)
	}
	span, err := c.GetFieldBytes(name)
	if err != nil {
		return "", err
	}
	units := make([]uint16, len(span)/2)
	for i := range units {
		units[i] = valuecodec.ReadUint16(span[i*2 : i*2+2])
	}
	return string(utf16Decode(units)), nil
}

// GetObject returns the Ref-field's target as a StorageObject, creating
// it from lay if the slot is currently null and lay is non-nil.
func (o StorageObject) GetObject(name string, lay *layout.ContainerLayout) (StorageObject, error) {
	c, err := o.resolve()
	if err != nil {
		return StorageObject{}, err
	}
	k, isArray, ferr := c.FieldKind(name)
	if ferr != nil {
		if lay == nil {
			return StorageObject{}, ferr
		}
		if err := AddRefField(o.reg, c, name); err != nil {
			return StorageObject{}, err
		}
		c, err = o.resolve()
		if err != nil {
			return StorageObject{}, err
		}
		k, isArray = typekind.Ref, false
	}
	if k != typekind.Ref || isArray {
		return StorageObject{}, newErr(KindTypeMismatch, "field %q is not a scalar Ref field", name)
	}
	span, err := c.GetFieldBytes(name)
	if err != nil {
		return StorageObject{}, err
	}
	id := valuecodec.ReadRef(span)
	if id == 0 {
		if lay == nil {
			return StorageObject{}, newErr(KindNotFound, "field %q is null", name)
		}
		child := o.reg.CreateAndRegister(lay)
		valuecodec.PutRef(span, child.id)
		notifyField(c, name)
		return newStorageObject(o.reg, child), nil
	}
	child := o.reg.Get(id)
	if child == nil {
		return StorageObject{}, newErr(KindStaleHandle, "dangling ref %d in field %q", id, name)
	}
	return newStorageObject(o.reg, child), nil
}

// GetArray returns a StorageArray handle over the named field (value or
// Ref array).
func (o StorageObject) GetArray(name string) (StorageArray, error) {
	c, err := o.resolve()
	if err != nil {
		return StorageArray{}, err
	}
	k, isArray, ferr := c.FieldKind(name)
	if ferr != nil {
		return StorageArray{}, ferr
	}
	if !isArray {
		return StorageArray{}, newErr(KindTypeMismatch, "field %q is not an array", name)
	}
	elemSize := typekind.ElementSize(k)
	if k == typekind.Ref {
		elemSize = 8
	}
	return StorageArray{
		obj:      o,
		name:     name,
		elemKind: k,
		elemSize: elemSize,
		isRef:    k == typekind.Ref,
	}, nil
}

// Override replaces the named field's kind/shape in place via rescheme
// and writes raw bytes into it, per spec §6's StorageObject.override.
// inlineArrayLength is ignored (0) for scalar fields.
func (o StorageObject) Override(name string, raw []byte, kind typekind.Kind, inlineArrayLength int) error {
	c, err := o.resolve()
	if err != nil {
		return err
	}
	isArray := inlineArrayLength > 0
	length := inlineArrayLength
	if length == 0 {
		length = 1
	}
	if _, err := ChangeFieldKind(o.reg, c, name, kind, isArray, length); err != nil {
		return err
	}
	c, err = o.resolve()
	if err != nil {
		return err
	}
	span, err := c.GetFieldBytes(name)
	if err != nil {
		return err
	}
	copy(span, raw)
	notifyField(c, name)
	return nil
}

// Subscribe registers handler for writes to name (or the whole container
// if name == ""). See events.go.
func (o StorageObject) Subscribe(name string, handler func(event WriteEvent)) (Subscription, error) {
	c, err := o.resolve()
	if err != nil {
		return Subscription{}, err
	}
	return subscribe(o.reg, c, name, handler), nil
}

func utf16Decode(units []uint16) []rune {
	out := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(units) {
			r2 := rune(units[i+1])
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				out = append(out, ((r-0xD800)<<10)+(r2-0xDC00)+0x10000)
				i++
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
