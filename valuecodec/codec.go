// Package valuecodec reads and writes single primitive values to and from
// little-endian byte spans, and performs the narrowing/widening element
// conversions the rescheme and migration engine needs. Each primitive
// width gets its own small marshal/unmarshal pair rather than a single
// reflective codec, mirroring the teacher's per-width SSZ marshal
// functions (grounded on ssz/encode.go, ssz/decode.go).
package valuecodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// ErrShortBuffer is returned when a read is attempted against fewer bytes
// than the kind's element size requires.
var ErrShortBuffer = errors.New("valuecodec: buffer shorter than element size")

// ErrUnsupportedKind is returned when a read/write is requested for a kind
// with no fixed element width (Unknown, Blob) through the scalar codec;
// those kinds are handled as raw byte spans by the caller instead.
var ErrUnsupportedKind = errors.New("valuecodec: kind has no fixed-width scalar codec")

// PutScalar writes v, boxed as the Go type ReadScalar returns for k, into
// dst little-endian. It is the one generic scalar writer, used by field
// writes, default materialization and the migration path; the helpers
// below cover only Char16 code units and Ref ids.
func PutScalar(dst []byte, k typekind.Kind, v any) error {
	size := typekind.ElementSize(k)
	if size == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedKind, k)
	}
	if len(dst) < size {
		return fmt.Errorf("%w: need %d have %d", ErrShortBuffer, size, len(dst))
	}
	switch k {
	case typekind.Bool:
		b := byte(0)
		if v.(bool) {
			b = 1
		}
		dst[0] = b
	case typekind.Int8:
		dst[0] = byte(v.(int8))
	case typekind.UInt8:
		dst[0] = v.(uint8)
	case typekind.Char16, typekind.UInt16:
		binary.LittleEndian.PutUint16(dst, v.(uint16))
	case typekind.Int16:
		binary.LittleEndian.PutUint16(dst, uint16(v.(int16)))
	case typekind.Int32:
		binary.LittleEndian.PutUint32(dst, uint32(v.(int32)))
	case typekind.UInt32:
		binary.LittleEndian.PutUint32(dst, v.(uint32))
	case typekind.Int64:
		binary.LittleEndian.PutUint64(dst, uint64(v.(int64)))
	case typekind.UInt64, typekind.Ref:
		binary.LittleEndian.PutUint64(dst, v.(uint64))
	case typekind.Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v.(float32)))
	case typekind.Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v.(float64)))
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedKind, k)
	}
	return nil
}

// ReadScalar reads an element of kind k from src and returns it boxed as
// the corresponding Go type (bool, int8, uint8, uint16, int16, int32,
// uint32, int64, uint64, float32, float64).
func ReadScalar(src []byte, k typekind.Kind) (any, error) {
	size := typekind.ElementSize(k)
	if size == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, k)
	}
	if len(src) < size {
		return nil, fmt.Errorf("%w: need %d have %d", ErrShortBuffer, size, len(src))
	}
	switch k {
	case typekind.Bool:
		return src[0] != 0, nil
	case typekind.Int8:
		return int8(src[0]), nil
	case typekind.UInt8:
		return src[0], nil
	case typekind.Char16, typekind.UInt16:
		return binary.LittleEndian.Uint16(src), nil
	case typekind.Int16:
		return int16(binary.LittleEndian.Uint16(src)), nil
	case typekind.Int32:
		return int32(binary.LittleEndian.Uint32(src)), nil
	case typekind.UInt32:
		return binary.LittleEndian.Uint32(src), nil
	case typekind.Int64:
		return int64(binary.LittleEndian.Uint64(src)), nil
	case typekind.UInt64, typekind.Ref:
		return binary.LittleEndian.Uint64(src), nil
	case typekind.Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(src)), nil
	case typekind.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(src)), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, k)
	}
}

// PutUint16 writes v little-endian into dst (used for Char16 code units).
func PutUint16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }

// ReadUint16 reads a little-endian uint16 from src (used for Char16 code units).
func ReadUint16(src []byte) uint16 { return binary.LittleEndian.Uint16(src) }

// PutRef writes a 64-bit container id little-endian into dst.
func PutRef(dst []byte, id uint64) { binary.LittleEndian.PutUint64(dst, id) }

// ReadRef reads a 64-bit container id little-endian from src.
func ReadRef(src []byte) uint64 { return binary.LittleEndian.Uint64(src) }

// IsNaN reports whether a float32/float64 value boxed as `any` is NaN.
func IsNaN(v any) bool {
	switch x := v.(type) {
	case float32:
		return math.IsNaN(float64(x))
	case float64:
		return math.IsNaN(x)
	default:
		return false
	}
}

// IsInf reports whether a float32/float64 value boxed as `any` is +/-Inf.
func IsInf(v any) bool {
	switch x := v.(type) {
	case float32:
		return math.IsInf(float64(x), 0)
	case float64:
		return math.IsInf(x, 0)
	default:
		return false
	}
}
