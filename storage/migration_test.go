package storage

import (
	"testing"

	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

func TestMigrateFieldBytesSameKindIsPlainCopy(t *testing.T) {
	src := make([]byte, 4)
	valuecodec.PutScalar(src, typekind.Int32, int32(42))
	dst := make([]byte, 4)

	res := MigrateFieldBytes(dst, typekind.Int32, src, typekind.Int32, false)
	if res.Unsafe {
		t.Fatal("same-kind migration should not be unsafe")
	}
	v, _ := valuecodec.ReadScalar(dst, typekind.Int32)
	if v.(int32) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestMigrateFieldBytesWideningConverts(t *testing.T) {
	src := make([]byte, 4)
	valuecodec.PutScalar(src, typekind.Int32, int32(7))
	dst := make([]byte, 8)

	res := MigrateFieldBytes(dst, typekind.Int64, src, typekind.Int32, false)
	if res.Unsafe {
		t.Fatal("int32->int64 widening should not be unsafe")
	}
	v, _ := valuecodec.ReadScalar(dst, typekind.Int64)
	if v.(int64) != 7 {
		t.Fatalf("got %v, want 7", v)
	}
}

func TestMigrateFieldBytesArrayElementWise(t *testing.T) {
	src := make([]byte, 8) // two int32 elements
	valuecodec.PutScalar(src[0:4], typekind.Int32, int32(1))
	valuecodec.PutScalar(src[4:8], typekind.Int32, int32(2))
	dst := make([]byte, 16) // two int64 elements

	res := MigrateFieldBytes(dst, typekind.Int64, src, typekind.Int32, false)
	if res.Unsafe || res.ElementsCopied != 2 {
		t.Fatalf("expected 2 safe element conversions, got %+v", res)
	}
	v0, _ := valuecodec.ReadScalar(dst[0:8], typekind.Int64)
	v1, _ := valuecodec.ReadScalar(dst[8:16], typekind.Int64)
	if v0.(int64) != 1 || v1.(int64) != 2 {
		t.Fatalf("got (%v, %v), want (1, 2)", v0, v1)
	}
}

func TestMigrateFieldBytesOpaqueIsUnsafeRawCopy(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5}
	dst := make([]byte, 3)

	res := MigrateFieldBytes(dst, typekind.Blob, src, typekind.Blob, false)
	if !res.Unsafe {
		t.Fatal("blob->blob of differing length should report unsafe")
	}
	if dst[0] != 1 || dst[1] != 2 || dst[2] != 3 {
		t.Fatalf("expected raw truncated copy, got %v", dst)
	}
}

func TestMigrateFieldBytesUnalignedFallsBackUnsafe(t *testing.T) {
	src := make([]byte, 3) // not a multiple of Int32's 4-byte width, and a different kind than dst
	dst := make([]byte, 8)

	res := MigrateFieldBytes(dst, typekind.Int64, src, typekind.Int32, false)
	if !res.Unsafe {
		t.Fatal("misaligned byte count should fall back to unsafe raw copy")
	}
}
