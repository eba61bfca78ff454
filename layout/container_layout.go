package layout

import (
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// FieldSpec describes one field's shape as requested of a ContainerLayout:
// its name, primitive kind, array-ness and element count. Length is the
// element count for array/Ref fields (1 for a scalar, N for an inline
// array of N elements or a Ref array of N ids).
type FieldSpec struct {
	Name    string
	Kind    typekind.Kind
	IsArray bool
	Length  int
	// Default, if non-nil, is the value materialized into this field's
	// data span when a container is first allocated from the layout.
	// Only meaningful for scalar (non-array) fields.
	Default any
}

// dataLength returns this field's total data-segment byte length.
func (f FieldSpec) dataLength() int {
	elemSize := typekind.ElementSize(f.Kind)
	if f.Kind == typekind.Ref {
		elemSize = 8
	}
	if elemSize == 0 {
		// Unknown/Blob: the whole field is one opaque span of Length bytes.
		return f.Length
	}
	n := f.Length
	if n <= 0 {
		n = 1
	}
	return n * elemSize
}

func (f FieldSpec) elemSize() byte {
	if f.Kind == typekind.Ref {
		return 8
	}
	return byte(typekind.ElementSize(f.Kind))
}

// ContainerLayout is an immutable header+name blob (no data segment) used
// as a template to materialize containers of a given shape: copy Blob,
// append Stride-HeaderBytes worth of zeroed data.
type ContainerLayout struct {
	ContainerName string
	Blob          []byte        // header + field-header table + name segment
	Fields        []FieldHeader // decoded, sorted by name (ordinal)
	Names         []string      // parallel to Fields
	Defaults      []any         // parallel to Fields; nil entry means no default
	Stride        int           // full materialized container length
}

// Build constructs a ContainerLayout from a container name and an
// unordered set of field specs. Fields are sorted by name (ordinal) so
// IndexOf can binary search.
func Build(containerName string, specs []FieldSpec) (*ContainerLayout, error) {
	sorted := make([]FieldSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, fmt.Errorf("layout: duplicate field name %q", sorted[i].Name)
		}
	}

	fieldCount := len(sorted)
	nameSegOffset := NameSegmentOffset(fieldCount)

	containerNameUnits := utf16.Encode([]rune(containerName))
	nameCursor := nameSegOffset + len(containerNameUnits)*2

	fields := make([]FieldHeader, fieldCount)
	names := make([]string, fieldCount)
	defaults := make([]any, fieldCount)
	fieldNameUnits := make([][]uint16, fieldCount)

	dataCursor := 0
	for i, spec := range sorted {
		units := utf16.Encode([]rune(spec.Name))
		fieldNameUnits[i] = units
		names[i] = spec.Name
		if !spec.IsArray {
			defaults[i] = spec.Default
		}

		fields[i] = FieldHeader{
			NameHash:   xxhash.Sum64String(spec.Name),
			NameOffset: uint32(nameCursor),
			NameLength: uint16(len(units)),
			Type:       typekind.Pack(spec.Kind, spec.IsArray),
			ElemSize:   spec.elemSize(),
			DataOffset: 0, // filled in below, once DataOffset of the container is known
			DataLength: uint32(spec.dataLength()),
		}
		nameCursor += len(units) * 2
		dataCursor += spec.dataLength()
	}

	dataOffset := nameCursor
	running := dataOffset
	for i := range fields {
		fields[i].DataOffset = uint32(running)
		running += int(fields[i].DataLength)
	}
	stride := running

	blob := make([]byte, dataOffset)
	hdr := ContainerHeader{
		Length:     uint32(stride),
		FieldCount: uint16(fieldCount),
		NameLength: uint16(len(containerNameUnits)),
		DataOffset: uint32(dataOffset),
	}
	hdr.Marshal(blob[0:HeaderSize])

	for i, f := range fields {
		f.Marshal(blob[FieldHeaderAt(i) : FieldHeaderAt(i)+FieldHeaderSize])
	}

	cursor := nameSegOffset
	for _, u := range containerNameUnits {
		blob[cursor] = byte(u)
		blob[cursor+1] = byte(u >> 8)
		cursor += 2
	}
	for _, units := range fieldNameUnits {
		for _, u := range units {
			blob[cursor] = byte(u)
			blob[cursor+1] = byte(u >> 8)
			cursor += 2
		}
	}

	return &ContainerLayout{
		ContainerName: containerName,
		Blob:          blob,
		Fields:        fields,
		Names:         names,
		Defaults:      defaults,
		Stride:        stride,
	}, nil
}

// IndexOf returns the index of the named field via binary search (field
// headers are sorted by name), or -1 if absent.
func (l *ContainerLayout) IndexOf(name string) int {
	lo, hi := 0, len(l.Names)
	for lo < hi {
		mid := (lo + hi) / 2
		if l.Names[mid] < name {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(l.Names) && l.Names[lo] == name {
		return lo
	}
	return -1
}
