package layout

import (
	"fmt"
	"unicode/utf16"
)

// Parse reconstructs a ContainerLayout from a raw materialized container
// buffer (header + field table + names + data), the inverse of Build. It
// is used by the binary-format parser (storage/binary) to rebuild a
// container's shape from bytes it did not materialize itself.
func Parse(buf []byte) (*ContainerLayout, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("layout: buffer of %d bytes too short for a header", len(buf))
	}
	hdr := UnmarshalContainerHeader(buf[0:HeaderSize])
	if int(hdr.Length) != len(buf) {
		return nil, fmt.Errorf("layout: header length %d does not match buffer length %d", hdr.Length, len(buf))
	}

	fieldCount := int(hdr.FieldCount)
	nameSegOffset := NameSegmentOffset(fieldCount)
	if nameSegOffset > len(buf) || int(hdr.DataOffset) > len(buf) || int(hdr.DataOffset) < nameSegOffset {
		return nil, fmt.Errorf("layout: inconsistent header offsets in %d-byte buffer", len(buf))
	}

	fields := make([]FieldHeader, fieldCount)
	for i := 0; i < fieldCount; i++ {
		off := FieldHeaderAt(i)
		if off+FieldHeaderSize > len(buf) {
			return nil, fmt.Errorf("layout: field table truncated at entry %d", i)
		}
		fields[i] = UnmarshalFieldHeader(buf[off : off+FieldHeaderSize])
	}

	containerName, cursor, err := decodeUTF16At(buf, nameSegOffset, int(hdr.NameLength))
	if err != nil {
		return nil, fmt.Errorf("layout: container name: %w", err)
	}

	names := make([]string, fieldCount)
	for i, fh := range fields {
		name, _, err := decodeUTF16At(buf, int(fh.NameOffset), int(fh.NameLength))
		if err != nil {
			return nil, fmt.Errorf("layout: field %d name: %w", i, err)
		}
		names[i] = name
	}
	_ = cursor

	blob := make([]byte, hdr.DataOffset)
	copy(blob, buf[:hdr.DataOffset])

	return &ContainerLayout{
		ContainerName: containerName,
		Blob:          blob,
		Fields:        fields,
		Names:         names,
		Stride:        int(hdr.Length),
	}, nil
}

func decodeUTF16At(buf []byte, offset, unitCount int) (string, int, error) {
	end := offset + unitCount*2
	if offset < 0 || end > len(buf) {
		return "", offset, fmt.Errorf("name span [%d:%d) out of bounds (buffer len %d)", offset, end, len(buf))
	}
	units := make([]uint16, unitCount)
	for i := range units {
		o := offset + i*2
		units[i] = uint16(buf[o]) | uint16(buf[o+1])<<8
	}
	return string(utf16.Decode(units)), end, nil
}
