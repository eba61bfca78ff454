package typekind

// widening enumerates every (source, destination) pair that "implicit" mode
// write_scalar/read_scalar conversions allow, per spec §4.9. Identity pairs
// (source == destination) are always allowed and are not repeated here.
var widening = map[Kind]map[Kind]bool{
	Int8: {
		Int16: true, Int32: true, Int64: true, Float32: true, Float64: true,
	},
	UInt8: {
		Int16: true, UInt16: true, Int32: true, UInt32: true, Int64: true,
		UInt64: true, Float32: true, Float64: true,
	},
	Int16: {
		Int32: true, Int64: true, Float32: true, Float64: true,
	},
	UInt16: {
		Int32: true, UInt32: true, Int64: true, UInt64: true, Float32: true,
		Float64: true,
	},
	Int32: {
		Int64: true, Float32: true, Float64: true,
	},
	UInt32: {
		Int64: true, UInt64: true, Float32: true, Float64: true,
	},
	Int64: {
		Float32: true, Float64: true,
	},
	UInt64: {
		Float32: true, Float64: true,
	},
	Float32: {
		Float64: true,
	},
	Char16: {
		Int32: true, UInt32: true, Int64: true, UInt64: true, Float32: true,
		Float64: true,
	},
	Bool: {},
}

// CanWidenImplicitly reports whether a value of kind src may be written
// into (or read as) a field of kind dst under "implicit" mode. Identity
// conversions are always allowed; Bool only ever widens to Bool.
func CanWidenImplicitly(src, dst Kind) bool {
	if src == dst {
		return true
	}
	row, ok := widening[src]
	if !ok {
		return false
	}
	return row[dst]
}

// CanConvertExplicitly reports whether a value of kind src may be converted
// to kind dst under "explicit" mode, per spec §4.9: implicit widening, plus
// narrowing (wrap), float->int (truncate toward zero), int<->Bool,
// Bool<->numeric, Char16<->int of the same bit width, and float<->Char16
// (truncate). Unknown/Blob never convert to or from anything.
func CanConvertExplicitly(src, dst Kind) bool {
	if IsOpaque(src) || IsOpaque(dst) {
		return src == dst
	}
	if CanWidenImplicitly(src, dst) {
		return true
	}
	switch {
	case IsNumeric(src) && IsNumeric(dst):
		// Narrowing, float<->int truncation: any numeric pair not already
		// covered by widening is allowed explicitly.
		return true
	case IsIntegral(src) && dst == Bool:
		return true
	case src == Bool && IsNumeric(dst):
		return true
	case src == Char16 && IsIntegral(dst) && ElementSize(dst) == ElementSize(Char16):
		return true
	case IsIntegral(src) && dst == Char16 && ElementSize(src) == ElementSize(Char16):
		return true
	case src == Char16 && IsFloat(dst):
		return true
	case IsFloat(src) && dst == Char16:
		return true
	default:
		return false
	}
}
