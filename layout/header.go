// Package layout defines the bit-exact on-buffer container/field header
// structs, their absolute offset arithmetic, and the ContainerLayout
// blueprint used to materialize containers of a given shape. The byte
// layout mirrors the teacher's fixed-width RLP primitives (little-endian,
// one field per struct member, no padding) but describes a container
// header/field-header table rather than an RLP item.
package layout

import "encoding/binary"

// HeaderSize is the fixed on-buffer size, in bytes, of a ContainerHeader.
const HeaderSize = 12

// FieldHeaderSize is the fixed on-buffer size, in bytes, of one FieldHeader
// entry in the packed field table.
const FieldHeaderSize = 24

// ContainerHeader is the fixed-size prefix of every container buffer.
type ContainerHeader struct {
	// Length is the total byte length of the buffer this header lives in.
	Length uint32
	// FieldCount is the number of FieldHeader entries in the field table.
	FieldCount uint16
	// NameLength is the container's own name, in UTF-16 code units.
	NameLength uint16
	// DataOffset is the absolute byte offset where the data segment
	// begins: HeaderSize + FieldCount*FieldHeaderSize + name bytes.
	DataOffset uint32
}

// Marshal writes h into dst[0:HeaderSize].
func (h ContainerHeader) Marshal(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], h.Length)
	binary.LittleEndian.PutUint16(dst[4:6], h.FieldCount)
	binary.LittleEndian.PutUint16(dst[6:8], h.NameLength)
	binary.LittleEndian.PutUint32(dst[8:12], h.DataOffset)
}

// UnmarshalContainerHeader reads a ContainerHeader from src[0:HeaderSize].
func UnmarshalContainerHeader(src []byte) ContainerHeader {
	_ = src[HeaderSize-1]
	return ContainerHeader{
		Length:     binary.LittleEndian.Uint32(src[0:4]),
		FieldCount: binary.LittleEndian.Uint16(src[4:6]),
		NameLength: binary.LittleEndian.Uint16(src[6:8]),
		DataOffset: binary.LittleEndian.Uint32(src[8:12]),
	}
}

// FieldHeader describes one named field's location, kind and extent
// within the container's field table.
type FieldHeader struct {
	// NameHash is the xxhash of the field's name, computed at Build time
	// and stored in the header; IndexOf compares names and does not read it.
	NameHash uint64
	// NameOffset is the absolute byte offset of the field's name in the
	// name segment (UTF-16 code units).
	NameOffset uint32
	// NameLength is the field name's length in UTF-16 code units.
	NameLength uint16
	// Type is the packed TypeCode byte (typekind.Pack output): kind in
	// the low 5 bits, IsArray in bit 7.
	Type byte
	// ElemSize is the element width in bytes for inline arrays (0 for
	// Unknown/Blob, where the whole field is one opaque span).
	ElemSize byte
	// DataOffset is the absolute byte offset of the field's data.
	DataOffset uint32
	// DataLength is the field's logical data length in bytes.
	DataLength uint32
}

// Marshal writes f into dst[0:FieldHeaderSize].
func (f FieldHeader) Marshal(dst []byte) {
	_ = dst[FieldHeaderSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], f.NameHash)
	binary.LittleEndian.PutUint32(dst[8:12], f.NameOffset)
	binary.LittleEndian.PutUint16(dst[12:14], f.NameLength)
	dst[14] = f.Type
	dst[15] = f.ElemSize
	binary.LittleEndian.PutUint32(dst[16:20], f.DataOffset)
	binary.LittleEndian.PutUint32(dst[20:24], f.DataLength)
}

// UnmarshalFieldHeader reads a FieldHeader from src[0:FieldHeaderSize].
func UnmarshalFieldHeader(src []byte) FieldHeader {
	_ = src[FieldHeaderSize-1]
	return FieldHeader{
		NameHash:   binary.LittleEndian.Uint64(src[0:8]),
		NameOffset: binary.LittleEndian.Uint32(src[8:12]),
		NameLength: binary.LittleEndian.Uint16(src[12:14]),
		Type:       src[14],
		ElemSize:   src[15],
		DataOffset: binary.LittleEndian.Uint32(src[16:20]),
		DataLength: binary.LittleEndian.Uint32(src[20:24]),
	}
}

// FieldHeaderAt returns the absolute byte offset of the Nth field header
// entry in the packed table, which always immediately follows
// ContainerHeader.
func FieldHeaderAt(index int) int {
	return HeaderSize + index*FieldHeaderSize
}

// NameSegmentOffset returns the absolute byte offset where the name
// segment begins, given the number of fields in the table.
func NameSegmentOffset(fieldCount int) int {
	return HeaderSize + fieldCount*FieldHeaderSize
}
