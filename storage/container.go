package storage

import (
	"github.com/minerva-studio/meialian-bibliography-sub004/bytepool"
	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// ConvertMode selects how strictly WriteScalar and the StorageArray
// element accessors check the source kind against a field's declared
// kind, per spec §4.1/§4.9.
type ConvertMode int

const (
	// ModeStrict requires src == the field's kind exactly.
	ModeStrict ConvertMode = iota
	// ModeImplicit allows only widening conversions (typekind.CanWidenImplicitly).
	ModeImplicit
	// ModeExplicit additionally allows narrowing, float<->int and the
	// other lossy conversions in typekind.CanConvertExplicitly.
	ModeExplicit
)

// Container is a mutable byte blob plus a generation counter and a
// registry id. It exposes all field read/write and in-place mutation
// primitives; it does not know about the registry or the tree shape
// above it (that's Registry/StorageObject's job).
type Container struct {
	id         uint64
	generation uint64
	buffer     []byte
	layout     *layout.ContainerLayout
	pool       *bytepool.FixedBytePool
	reg        *Registry
}

// NewContainer materializes a fresh, zero-filled container instance from
// lay, renting its buffer from pool. The returned container has id 0
// (unregistered) and generation 0.
func NewContainer(lay *layout.ContainerLayout, pool *bytepool.FixedBytePool) *Container {
	buf := pool.Rent(lay.Stride, true)
	copy(buf, lay.Blob)
	applyDefaults(buf, lay)
	return &Container{buffer: buf, layout: lay, pool: pool}
}

// applyDefaults writes each scalar field's recorded default value (set via
// ObjectBuilder.SetScalar) into its data span. It is called once right
// after a fresh buffer is allocated and the layout's zeroed blob is
// copied in, so later rescheme/write traffic layers on top of the
// defaults rather than racing them. Array and Ref fields never carry a
// default (layout.Build only records one for non-array specs).
func applyDefaults(buf []byte, lay *layout.ContainerLayout) {
	for i, def := range lay.Defaults {
		if def == nil {
			continue
		}
		fh := lay.Fields[i]
		k, isArray := typekind.Unpack(fh.Type)
		if isArray {
			continue
		}
		_ = valuecodec.PutScalar(buf[fh.DataOffset:fh.DataOffset+fh.DataLength], k, def)
	}
}

// FromBytes reconstructs a Container directly from a raw buffer that
// already matches lay's shape exactly (used by the binary-format parser,
// storage/binary, to rebuild containers from a depth-first dump without
// re-zero-filling). Ownership of buf transfers to the Container.
func FromBytes(lay *layout.ContainerLayout, buf []byte) *Container {
	return &Container{buffer: buf, layout: lay}
}

// NewStorageObject wraps c as a StorageObject bound to reg. Exported for
// the binary/JSON serializer adapters, which reconstruct containers
// outside this package and need to hand callers a normal handle.
func NewStorageObject(reg *Registry, c *Container) StorageObject {
	return newStorageObject(reg, c)
}

// ID returns the container's registry id (0 means unregistered).
func (c *Container) ID() uint64 { return c.id }

// Generation returns the container's current generation counter.
func (c *Container) Generation() uint64 { return c.generation }

// Layout returns the container's current shape.
func (c *Container) Layout() *layout.ContainerLayout { return c.layout }

// Buffer returns the container's raw backing buffer. Callers outside this
// package must not retain it past the next mutating call.
func (c *Container) Buffer() []byte { return c.buffer }

func (c *Container) fieldHeader(name string) (layout.FieldHeader, int, bool) {
	idx := c.layout.IndexOf(name)
	if idx < 0 {
		return layout.FieldHeader{}, -1, false
	}
	return c.layout.Fields[idx], idx, true
}

// FieldKind returns the declared kind and array-ness of a field.
func (c *Container) FieldKind(name string) (k typekind.Kind, isArray bool, err error) {
	fh, _, ok := c.fieldHeader(name)
	if !ok {
		return 0, false, newErr(KindNotFound, "field %q not found", name)
	}
	k, isArray = typekind.Unpack(fh.Type)
	return k, isArray, nil
}

// GetFieldBytes returns the raw data span for name; len(result) ==
// FieldHeader.DataLength always holds.
func (c *Container) GetFieldBytes(name string) ([]byte, error) {
	fh, _, ok := c.fieldHeader(name)
	if !ok {
		return nil, newErr(KindNotFound, "field %q not found", name)
	}
	return c.buffer[fh.DataOffset : fh.DataOffset+fh.DataLength], nil
}

// GetRefSpan returns the field's data reinterpreted as a []uint64 of
// child ids. Fails with TypeMismatch if the field is not a Ref field.
func (c *Container) GetRefSpan(name string) ([]uint64, error) {
	fh, _, ok := c.fieldHeader(name)
	if !ok {
		return nil, newErr(KindNotFound, "field %q not found", name)
	}
	k, _ := typekind.Unpack(fh.Type)
	if k != typekind.Ref {
		return nil, newErr(KindTypeMismatch, "field %q is not a Ref field", name)
	}
	span := c.buffer[fh.DataOffset : fh.DataOffset+fh.DataLength]
	n := len(span) / 8
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = valuecodec.ReadRef(span[i*8 : i*8+8])
	}
	return out, nil
}

// SetRefAt writes a single child id into slot i of a Ref field.
func (c *Container) SetRefAt(name string, i int, id uint64) error {
	fh, _, ok := c.fieldHeader(name)
	if !ok {
		return newErr(KindNotFound, "field %q not found", name)
	}
	k, _ := typekind.Unpack(fh.Type)
	if k != typekind.Ref {
		return newErr(KindTypeMismatch, "field %q is not a Ref field", name)
	}
	n := int(fh.DataLength) / 8
	if i < 0 || i >= n {
		return newErr(KindIndexOutOfRange, "ref slot %d out of range [0,%d)", i, n)
	}
	off := int(fh.DataOffset) + i*8
	valuecodec.PutRef(c.buffer[off:off+8], id)
	return nil
}

// WriteScalar writes v (of kind srcKind) into the named scalar field,
// converting per mode. Array fields are written through
// StorageArray.SetElementAt (array.go).
func (c *Container) WriteScalar(name string, v any, srcKind typekind.Kind, mode ConvertMode) error {
	fh, _, ok := c.fieldHeader(name)
	if !ok {
		return newErr(KindNotFound, "field %q not found", name)
	}
	dstKind, isArray := typekind.Unpack(fh.Type)
	if isArray {
		return newErr(KindTypeMismatch, "field %q is an array; use array accessors", name)
	}
	converted, err := convertForMode(v, srcKind, dstKind, mode)
	if err != nil {
		return err
	}
	return valuecodec.PutScalar(c.buffer[fh.DataOffset:fh.DataOffset+fh.DataLength], dstKind, converted)
}

// ReadScalarAny reads the named scalar field and returns it boxed as `any`
// in the field's own declared kind (no conversion). Typed convenience
// wrappers (ReadScalar[T]) build on this.
func (c *Container) ReadScalarAny(name string) (any, typekind.Kind, error) {
	fh, _, ok := c.fieldHeader(name)
	if !ok {
		return nil, 0, newErr(KindNotFound, "field %q not found", name)
	}
	k, isArray := typekind.Unpack(fh.Type)
	if isArray {
		return nil, 0, newErr(KindTypeMismatch, "field %q is an array; use array accessors", name)
	}
	v, err := valuecodec.ReadScalar(c.buffer[fh.DataOffset:fh.DataOffset+fh.DataLength], k)
	if err != nil {
		return nil, 0, wrapErr(KindTypeMismatch, err, "reading field %q", name)
	}
	return v, k, nil
}

// convertForMode applies a ConvertMode policy between srcKind and dstKind
// for WriteScalar, ReadScalar and the StorageObject/StorageArray accessors.
func convertForMode(v any, srcKind, dstKind typekind.Kind, mode ConvertMode) (any, error) {
	if srcKind == dstKind {
		return v, nil
	}
	switch mode {
	case ModeStrict:
		return nil, newErr(KindTypeMismatch, "strict mode requires matching kinds (%v != %v)", srcKind, dstKind)
	case ModeImplicit:
		if !typekind.CanWidenImplicitly(srcKind, dstKind) {
			return nil, newErr(KindTypeMismatch, "%v cannot implicitly widen to %v", srcKind, dstKind)
		}
	case ModeExplicit:
		if !typekind.CanConvertExplicitly(srcKind, dstKind) {
			return nil, newErr(KindTypeMismatch, "%v cannot explicitly convert to %v", srcKind, dstKind)
		}
	}
	out, err := valuecodec.ConvertElement(v, srcKind, dstKind, mode == ModeExplicit)
	if err != nil {
		return nil, wrapErr(KindTypeMismatch, err, "converting %v -> %v", srcKind, dstKind)
	}
	return out, nil
}

// ReadScalar reads the named field and converts it (per mode) to T's
// corresponding kind, inferred from the zero value passed via out-param
// pattern is avoided in Go; callers pass the expected kind explicitly.
func ReadScalar[T any](c *Container, name string, wantKind typekind.Kind, mode ConvertMode) (T, error) {
	var zero T
	raw, srcKind, err := c.ReadScalarAny(name)
	if err != nil {
		return zero, err
	}
	converted, err := convertForMode(raw, srcKind, wantKind, mode)
	if err != nil {
		return zero, err
	}
	v, ok := converted.(T)
	if !ok {
		return zero, newErr(KindTypeMismatch, "field %q decoded as %T, want %T", name, converted, zero)
	}
	return v, nil
}

// bumpGeneration increments the container's ABA-protection counter; it is
// called whenever the buffer is replaced (pool reuse or rescheme).
func (c *Container) bumpGeneration() { c.generation++ }
