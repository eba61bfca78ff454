package storage

import (
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// MigrationResult reports whether a field migration completed with an
// exact element-wise conversion or fell back to the "unsafe" raw-copy
// path (truncate/zero-pad), per spec §4.9.
type MigrationResult struct {
	Unsafe          bool
	ElementsCopied  int
	DestinationSize int
}

// MigrateFieldBytes converts src (of kind srcKind) into dst (of kind
// dstKind, already zero-filled by the caller), element-wise, per spec
// §4.9. Unknown/Blob on either side are always opaque: they raw-copy and
// report unsafe unless both sides are the same opaque kind with equal
// lengths doing a byte-identical copy (in which case it's a plain copy,
// not "unsafe", since no reinterpretation occurred).
func MigrateFieldBytes(dst []byte, dstKind typekind.Kind, src []byte, srcKind typekind.Kind, explicit bool) MigrationResult {
	if srcKind == dstKind {
		n := copy(dst, src)
		return MigrationResult{Unsafe: typekind.IsOpaque(srcKind) && len(src) != len(dst), ElementsCopied: n, DestinationSize: len(dst)}
	}

	if typekind.IsOpaque(srcKind) || typekind.IsOpaque(dstKind) {
		n := copy(dst, src)
		return MigrationResult{Unsafe: true, ElementsCopied: n, DestinationSize: len(dst)}
	}

	srcElem := typekind.ElementSize(srcKind)
	dstElem := typekind.ElementSize(dstKind)
	if srcElem == 0 || dstElem == 0 || len(src)%srcElem != 0 || len(dst)%dstElem != 0 {
		n := copy(dst, src)
		return MigrationResult{Unsafe: true, ElementsCopied: n, DestinationSize: len(dst)}
	}

	srcCount := len(src) / srcElem
	dstCount := len(dst) / dstElem
	n := srcCount
	if dstCount < n {
		n = dstCount
	}

	for i := 0; i < n; i++ {
		sv, err := valuecodec.ReadScalar(src[i*srcElem:(i+1)*srcElem], srcKind)
		if err != nil {
			// Unsupported element kind for the typed path: fall back to
			// raw copy of whatever overlap remains.
			copy(dst[i*dstElem:], src[i*srcElem:])
			return MigrationResult{Unsafe: true, ElementsCopied: i, DestinationSize: len(dst)}
		}
		dv, err := valuecodec.ConvertElement(sv, srcKind, dstKind, explicit)
		if err != nil {
			copy(dst[i*dstElem:], src[i*srcElem:])
			return MigrationResult{Unsafe: true, ElementsCopied: i, DestinationSize: len(dst)}
		}
		if err := valuecodec.PutScalar(dst[i*dstElem:(i+1)*dstElem], dstKind, dv); err != nil {
			copy(dst[i*dstElem:], src[i*srcElem:])
			return MigrationResult{Unsafe: true, ElementsCopied: i, DestinationSize: len(dst)}
		}
	}
	// Trailing destination bytes beyond the converted elements stay
	// zero-filled, per the caller's pre-zeroed dst contract.
	return MigrationResult{Unsafe: false, ElementsCopied: n, DestinationSize: len(dst)}
}
