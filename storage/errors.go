// Package storage implements the schema-driven, tree-structured datastore:
// containers, the process-wide registry, the rescheme/migration engine,
// path navigation, the query DSL, write-event notification and the root
// Storage surface. It is grounded on the teacher's trie package for its
// phased-plan idiom and on metrics/registry.go for its double-checked-lock
// registry shape.
package storage

import (
	"fmt"
)

// ErrorKind classifies a StorageError per the failure taxonomy in
// SPEC_FULL.md §7 (carried unchanged from spec.md §7).
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindTypeMismatch
	KindStaleHandle
	KindDisposed
	KindMalformedPath
	KindKindChange
	KindIndexOutOfRange
	KindDepthExceeded
	KindBadFormat
	KindPoolViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindStaleHandle:
		return "StaleHandle"
	case KindDisposed:
		return "Disposed"
	case KindMalformedPath:
		return "MalformedPath"
	case KindKindChange:
		return "KindChange"
	case KindIndexOutOfRange:
		return "IndexOutOfRange"
	case KindDepthExceeded:
		return "DepthExceeded"
	case KindBadFormat:
		return "BadFormat"
	case KindPoolViolation:
		return "PoolViolation"
	default:
		return "Unknown"
	}
}

// StorageError is the common error type returned across the public
// surface; Kind lets callers branch without string matching while Error()
// stays human-readable.
type StorageError struct {
	Kind    ErrorKind
	Message string
	Wrapped error
}

func (e *StorageError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("storage: %s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("storage: %s: %s", e.Kind, e.Message)
}

func (e *StorageError) Unwrap() error { return e.Wrapped }

// Is reports whether target is a *StorageError with the same Kind, so
// callers can do errors.Is(err, storage.NotFound) style checks against the
// sentinels below.
func (e *StorageError) Is(target error) bool {
	other, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// newErr constructs a StorageError of the given kind with a formatted
// message.
func newErr(kind ErrorKind, format string, args ...any) *StorageError {
	return &StorageError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind ErrorKind, wrapped error, format string, args ...any) *StorageError {
	return &StorageError{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: wrapped}
}

// Sentinel StorageErrors usable with errors.Is; each carries only its Kind
// so a match on Kind alone is enough (see StorageError.Is).
var (
	NotFound        = &StorageError{Kind: KindNotFound, Message: "not found"}
	TypeMismatch    = &StorageError{Kind: KindTypeMismatch, Message: "type mismatch"}
	StaleHandle     = &StorageError{Kind: KindStaleHandle, Message: "stale handle"}
	Disposed        = &StorageError{Kind: KindDisposed, Message: "disposed"}
	MalformedPath   = &StorageError{Kind: KindMalformedPath, Message: "malformed path"}
	KindChange      = &StorageError{Kind: KindKindChange, Message: "disallowed kind change"}
	IndexOutOfRange = &StorageError{Kind: KindIndexOutOfRange, Message: "index out of range"}
	DepthExceeded   = &StorageError{Kind: KindDepthExceeded, Message: "depth exceeded"}
	BadFormat       = &StorageError{Kind: KindBadFormat, Message: "bad format"}
	PoolViolation   = &StorageError{Kind: KindPoolViolation, Message: "pool violation"}
)

