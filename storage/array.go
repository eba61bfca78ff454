package storage

import (
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// StorageArray is a non-owning handle over one array field (value or
// Ref), carrying its element kind/size so typed indexer calls can
// validate without re-reading the field header every time. Per spec §4.6
// / design notes, handles are plain value types keyed by (container,
// field, generation).
type StorageArray struct {
	obj      StorageObject
	name     string
	elemKind typekind.Kind
	elemSize int
	isRef    bool
}

func (a StorageArray) resolve() (*Container, []byte, error) {
	c, err := a.obj.resolve()
	if err != nil {
		return nil, nil, err
	}
	span, err := c.GetFieldBytes(a.name)
	if err != nil {
		return nil, nil, err
	}
	return c, span, nil
}

// Length returns the array's current element count.
func (a StorageArray) Length() (int, error) {
	_, span, err := a.resolve()
	if err != nil {
		return 0, err
	}
	if a.elemSize == 0 {
		return len(span), nil
	}
	return len(span) / a.elemSize, nil
}

// IsRef reports whether this is a Ref (object) array.
func (a StorageArray) IsRef() bool { return a.isRef }

// ElementAt reads element i of a value array, converting to wantKind.
func (a StorageArray) ElementAt(i int, wantKind typekind.Kind, mode ConvertMode) (any, error) {
	if a.isRef {
		return nil, newErr(KindTypeMismatch, "field %q is a Ref array; use GetObject", a.name)
	}
	_, span, err := a.resolve()
	if err != nil {
		return nil, err
	}
	n := len(span) / a.elemSize
	if i < 0 || i >= n {
		return nil, newErr(KindIndexOutOfRange, "index %d out of range [0,%d)", i, n)
	}
	raw, err := valuecodec.ReadScalar(span[i*a.elemSize:(i+1)*a.elemSize], a.elemKind)
	if err != nil {
		return nil, wrapErr(KindTypeMismatch, err, "reading element %d of %q", i, a.name)
	}
	return convertForMode(raw, a.elemKind, wantKind, mode)
}

// SetElementAt writes v (of kind srcKind) into element i of a value array.
func (a StorageArray) SetElementAt(i int, v any, srcKind typekind.Kind, mode ConvertMode) error {
	if a.isRef {
		return newErr(KindTypeMismatch, "field %q is a Ref array; use GetObject", a.name)
	}
	c, span, err := a.resolve()
	if err != nil {
		return err
	}
	n := len(span) / a.elemSize
	if i < 0 || i >= n {
		return newErr(KindIndexOutOfRange, "index %d out of range [0,%d)", i, n)
	}
	converted, err := convertForMode(v, srcKind, a.elemKind, mode)
	if err != nil {
		return err
	}
	if err := valuecodec.PutScalar(span[i*a.elemSize:(i+1)*a.elemSize], a.elemKind, converted); err != nil {
		return err
	}
	notifyField(c, a.name)
	return nil
}

// CopyFrom element-wise converts values from src (of kind srcKind) into
// this array, starting at index 0. If allowResize and len(src) differs
// from the array's current length, the array is resized first.
func (a StorageArray) CopyFrom(src []any, srcKind typekind.Kind, allowResize bool) error {
	if a.isRef {
		return newErr(KindTypeMismatch, "field %q is a Ref array", a.name)
	}
	n, err := a.Length()
	if err != nil {
		return err
	}
	if allowResize && len(src) != n {
		c, rerr := a.obj.resolve()
		if rerr != nil {
			return rerr
		}
		if _, err := ResizeArrayField(a.obj.reg, c, a.name, len(src)); err != nil {
			return err
		}
		n = len(src)
	}
	m := len(src)
	if n < m {
		m = n
	}
	for i := 0; i < m; i++ {
		if err := a.SetElementAt(i, src[i], srcKind, ModeExplicit); err != nil {
			return err
		}
	}
	return nil
}

// Override replaces the array's element kind and contents, resizing as
// needed (spec §6: StorageArray override with resize allowed).
func (a StorageArray) Override(src []any, srcKind typekind.Kind) (StorageArray, error) {
	c, err := a.obj.resolve()
	if err != nil {
		return StorageArray{}, err
	}
	if _, err := ChangeFieldKind(a.obj.reg, c, a.name, srcKind, true, len(src)); err != nil {
		return StorageArray{}, err
	}
	newArr, err := a.obj.GetArray(a.name)
	if err != nil {
		return StorageArray{}, err
	}
	for i, v := range src {
		if err := newArr.SetElementAt(i, v, srcKind, ModeStrict); err != nil {
			return StorageArray{}, err
		}
	}
	return newArr, nil
}

// AsString decodes a Char16 array as a Go string.
func (a StorageArray) AsString() (string, error) {
	if a.elemKind != typekind.Char16 {
		return "", newErr(KindTypeMismatch, "field %q is not Char16", a.name)
	}
	_, span, err := a.resolve()
	if err != nil {
		return "", err
	}
	units := make([]uint16, len(span)/2)
	for i := range units {
		units[i] = valuecodec.ReadUint16(span[i*2 : i*2+2])
	}
	return string(utf16Decode(units)), nil
}

// Write replaces the array's contents with s, resizing via rescheme if
// its UTF-16 code-unit count differs (Char16 only).
func (a StorageArray) Write(s string) (StorageArray, error) {
	if a.elemKind != typekind.Char16 {
		return StorageArray{}, newErr(KindTypeMismatch, "field %q is not Char16", a.name)
	}
	if err := a.obj.WriteString(a.name, s); err != nil {
		return StorageArray{}, err
	}
	return a.obj.GetArray(a.name)
}

// Resize changes the array's element count, preserving overlap.
func (a StorageArray) Resize(n int) (StorageArray, error) {
	c, err := a.obj.resolve()
	if err != nil {
		return StorageArray{}, err
	}
	if _, err := ResizeArrayField(a.obj.reg, c, a.name, n); err != nil {
		return StorageArray{}, err
	}
	return a.obj.GetArray(a.name)
}

// GetObject returns element i of a Ref array as a StorageObject,
// allocating a child from lay if the slot is currently null and lay is
// non-nil.
func (a StorageArray) GetObject(i int, lay *layout.ContainerLayout) (StorageObject, error) {
	if !a.isRef {
		return StorageObject{}, newErr(KindTypeMismatch, "field %q is not a Ref array", a.name)
	}
	c, span, err := a.resolve()
	if err != nil {
		return StorageObject{}, err
	}
	n := len(span) / 8
	if i < 0 || i >= n {
		return StorageObject{}, newErr(KindIndexOutOfRange, "index %d out of range [0,%d)", i, n)
	}
	id := valuecodec.ReadRef(span[i*8 : i*8+8])
	if id != 0 {
		child := a.obj.reg.Get(id)
		if child == nil {
			return StorageObject{}, newErr(KindStaleHandle, "dangling ref %d at index %d of %q", id, i, a.name)
		}
		return newStorageObject(a.obj.reg, child), nil
	}
	if lay == nil {
		return StorageObject{}, newErr(KindNotFound, "slot %d of %q is null", i, a.name)
	}
	child := a.obj.reg.CreateAndRegister(lay)
	valuecodec.PutRef(span[i*8:i*8+8], child.id)
	notifyField(c, a.name)
	return newStorageObject(a.obj.reg, child), nil
}

// GetObjectNoAllocate returns element i of a Ref array without creating a
// child; ok is false if the slot is currently null.
func (a StorageArray) GetObjectNoAllocate(i int) (obj StorageObject, ok bool, err error) {
	if !a.isRef {
		return StorageObject{}, false, newErr(KindTypeMismatch, "field %q is not a Ref array", a.name)
	}
	_, span, rerr := a.resolve()
	if rerr != nil {
		return StorageObject{}, false, rerr
	}
	n := len(span) / 8
	if i < 0 || i >= n {
		return StorageObject{}, false, newErr(KindIndexOutOfRange, "index %d out of range [0,%d)", i, n)
	}
	id := valuecodec.ReadRef(span[i*8 : i*8+8])
	if id == 0 {
		return StorageObject{}, false, nil
	}
	child := a.obj.reg.Get(id)
	if child == nil {
		return StorageObject{}, false, newErr(KindStaleHandle, "dangling ref %d at index %d of %q", id, i, a.name)
	}
	return newStorageObject(a.obj.reg, child), true, nil
}

// TryGetObject is the non-error-returning form: ok reports whether a live
// child object was found.
func (a StorageArray) TryGetObject(i int) (StorageObject, bool) {
	obj, ok, err := a.GetObjectNoAllocate(i)
	if err != nil {
		return StorageObject{}, false
	}
	return obj, ok
}

// ClearAt nulls out slot i, unregistering whatever subtree it referenced.
func (a StorageArray) ClearAt(i int) error {
	if !a.isRef {
		return newErr(KindTypeMismatch, "field %q is not a Ref array", a.name)
	}
	c, span, err := a.resolve()
	if err != nil {
		return err
	}
	n := len(span) / 8
	if i < 0 || i >= n {
		return newErr(KindIndexOutOfRange, "index %d out of range [0,%d)", i, n)
	}
	id := valuecodec.ReadRef(span[i*8 : i*8+8])
	if id != 0 {
		if child := a.obj.reg.Get(id); child != nil {
			a.obj.reg.Unregister(child)
		}
		valuecodec.PutRef(span[i*8:i*8+8], 0)
		notifyField(c, a.name)
	}
	return nil
}

// ClearAll nulls out every slot, unregistering each referenced subtree.
func (a StorageArray) ClearAll() error {
	if !a.isRef {
		return newErr(KindTypeMismatch, "field %q is not a Ref array", a.name)
	}
	n, err := a.Length()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := a.ClearAt(i); err != nil {
			return err
		}
	}
	return nil
}
