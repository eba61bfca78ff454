package valuecodec

import (
	"fmt"

	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// ConvertElement converts a single decoded scalar value from src's kind to
// dst's kind following spec §4.9. When explicit is false, the conversion
// must appear in the implicit widening table; when true, narrowing,
// float<->int truncation, int<->Bool, Bool<->numeric and Char16<->int (same
// width) are additionally permitted. Unknown/Blob never convert.
func ConvertElement(v any, src, dst typekind.Kind, explicit bool) (any, error) {
	if src == dst {
		return v, nil
	}
	allowed := typekind.CanWidenImplicitly(src, dst)
	if explicit {
		allowed = typekind.CanConvertExplicitly(src, dst)
	}
	if !allowed {
		return nil, fmt.Errorf("valuecodec: cannot convert %v -> %v (explicit=%v)", src, dst, explicit)
	}

	i64, u64, f64, err := toBridges(v, src)
	if err != nil {
		return nil, err
	}
	return fromBridges(dst, i64, u64, f64)
}

// toBridges decodes v (of kind src) into signed, unsigned and floating
// canonical forms so the destination conversion can pick whichever it
// needs without a combinatorial per-pair switch.
func toBridges(v any, src typekind.Kind) (i64 int64, u64 uint64, f64 float64, err error) {
	switch src {
	case typekind.Bool:
		if v.(bool) {
			return 1, 1, 1, nil
		}
		return 0, 0, 0, nil
	case typekind.Int8:
		x := v.(int8)
		return int64(x), uint64(int64(x)), float64(x), nil
	case typekind.UInt8:
		x := v.(uint8)
		return int64(x), uint64(x), float64(x), nil
	case typekind.Int16:
		x := v.(int16)
		return int64(x), uint64(int64(x)), float64(x), nil
	case typekind.UInt16, typekind.Char16:
		x := v.(uint16)
		return int64(x), uint64(x), float64(x), nil
	case typekind.Int32:
		x := v.(int32)
		return int64(x), uint64(int64(x)), float64(x), nil
	case typekind.UInt32:
		x := v.(uint32)
		return int64(x), uint64(x), float64(x), nil
	case typekind.Int64:
		x := v.(int64)
		return x, uint64(x), float64(x), nil
	case typekind.UInt64:
		x := v.(uint64)
		return int64(x), x, float64(x), nil
	case typekind.Float32:
		x := float64(v.(float32))
		return int64(x), floatToUint64(x), x, nil
	case typekind.Float64:
		x := v.(float64)
		return int64(x), floatToUint64(x), x, nil
	default:
		return 0, 0, 0, fmt.Errorf("valuecodec: %w: %v", ErrUnsupportedKind, src)
	}
}

// fromBridges builds the Go-typed destination value for dst out of the
// bridge forms computed by toBridges. Each arm performs the natural Go
// numeric conversion, which truncates toward zero for float->int and wraps
// (keeps low-order bits) for narrowing integer conversions -- exactly the
// behavior spec §4.9 calls for.
func fromBridges(dst typekind.Kind, i64 int64, u64 uint64, f64 float64) (any, error) {
	switch dst {
	case typekind.Bool:
		return i64 != 0, nil
	case typekind.Int8:
		return int8(i64), nil
	case typekind.UInt8:
		return uint8(u64), nil
	case typekind.Int16:
		return int16(i64), nil
	case typekind.UInt16:
		return uint16(u64), nil
	case typekind.Char16:
		return uint16(u64), nil
	case typekind.Int32:
		return int32(i64), nil
	case typekind.UInt32:
		return uint32(u64), nil
	case typekind.Int64:
		return i64, nil
	case typekind.UInt64:
		return u64, nil
	case typekind.Float32:
		return float32(f64), nil
	case typekind.Float64:
		return f64, nil
	default:
		return nil, fmt.Errorf("valuecodec: %w: %v", ErrUnsupportedKind, dst)
	}
}

// floatToUint64 converts a float64 to its uint64 bridge form without
// relying on Go's implementation-defined float->uint conversion for
// negative inputs: it routes negative values through the signed bridge so
// the result is the two's-complement reinterpretation of the truncated
// value, which is what "narrowing wrap" means for a negative-to-unsigned
// explicit conversion.
func floatToUint64(f float64) uint64 {
	if f < 0 {
		return uint64(int64(f))
	}
	return uint64(f)
}
