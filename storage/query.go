package storage

import (
	"fmt"
	"strings"

	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// Result carries a query terminal's outcome. It is the value threaded
// through If/Then/Else/ElseIf so strict failures short-circuit while
// soft checks can still be inspected by the caller.
type Result struct {
	Success bool
	Err     error
}

func toResult(err error) Result {
	return Result{Success: err == nil, Err: err}
}

// Query is a deferred, copy-friendly path accumulator: every non-terminal
// method returns a new Query value rather than mutating in place, so a
// partially built query can be reused as a base for several branches.
type Query struct {
	root StorageObject
	segs []PathSegment
}

// NewQuery starts a query rooted at root.
func NewQuery(root StorageObject) Query {
	return Query{root: root}
}

// Location appends a named segment.
func (q Query) Location(name string) Query {
	segs := append(append([]PathSegment{}, q.segs...), PathSegment{Name: name})
	return Query{root: q.root, segs: segs}
}

// Index binds an array index to the most recently appended segment.
func (q Query) Index(n int) Query {
	if len(q.segs) == 0 {
		return q
	}
	segs := append([]PathSegment{}, q.segs...)
	segs[len(segs)-1].HasIndex = true
	segs[len(segs)-1].Index = n
	return Query{root: q.root, segs: segs}
}

// Previous drops the last segment, backing up one level.
func (q Query) Previous() Query {
	if len(q.segs) == 0 {
		return q
	}
	return Query{root: q.root, segs: q.segs[:len(q.segs)-1]}
}

func (q Query) path() string {
	var sb strings.Builder
	for i, s := range q.segs {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Name)
		if s.HasIndex {
			fmt.Fprintf(&sb, "[%d]", s.Index)
		}
	}
	return sb.String()
}

// TerminalKind discriminates the statement produced by a query's
// finalizing call.
type TerminalKind int

const (
	TerminalMake TerminalKind = iota
	TerminalEnsure
	TerminalExist
	TerminalExpect
	TerminalDo
)

// Statement is the discriminated value a terminal call returns; its
// typed sub-operations (Scalar/String/Array/Object/...) interpret the
// accumulated path according to terminal.
type Statement struct {
	root     StorageObject
	path     string
	terminal TerminalKind
	override bool
}

// Make finalizes the query as a creating write. allowOverride is stored
// on the Statement, but no sub-operation reads it, so Make behaves the
// same either way: String, Array and ObjectArray replace the shape of an
// existing field, while Scalar and Object keep the existing field and
// fail when its kind does not fit.
func (q Query) Make(allowOverride bool) Statement {
	return Statement{root: q.root, path: q.path(), terminal: TerminalMake, override: allowOverride}
}

// Ensure finalizes the query as create-if-absent-else-validate.
func (q Query) Ensure() Statement {
	return Statement{root: q.root, path: q.path(), terminal: TerminalEnsure}
}

// Exist finalizes the query as a non-mutating existence check.
func (q Query) Exist() Statement {
	return Statement{root: q.root, path: q.path(), terminal: TerminalExist}
}

// Expect finalizes the query as a non-mutating value assertion.
func (q Query) Expect() Statement {
	return Statement{root: q.root, path: q.path(), terminal: TerminalExpect}
}

// Do finalizes the query as a structural operation (delete/rename).
func (q Query) Do() Statement {
	return Statement{root: q.root, path: q.path(), terminal: TerminalDo}
}

// Scalar performs the statement's scalar operation: Make/Ensure write
// value (converting per mode), Exist checks presence, Expect asserts
// equality with value.
func (s Statement) Scalar(value any, srcKind, wantKind typekind.Kind, mode ConvertMode) Result {
	switch s.terminal {
	case TerminalMake:
		return toResult(WritePath(s.root, s.path, value, srcKind, mode))
	case TerminalEnsure:
		if _, err := ReadPath(s.root, s.path, wantKind, ModeStrict); err != nil {
			return toResult(WritePath(s.root, s.path, value, srcKind, mode))
		}
		return toResult(nil)
	case TerminalExist:
		_, err := ReadPath(s.root, s.path, wantKind, ModeStrict)
		return toResult(err)
	case TerminalExpect:
		got, err := ReadPath(s.root, s.path, wantKind, mode)
		if err != nil {
			return toResult(err)
		}
		if got != value {
			return toResult(newErr(KindTypeMismatch, "expected %v at %q, got %v", value, s.path, got))
		}
		return toResult(nil)
	default:
		return toResult(newErr(KindMalformedPath, "Scalar is not valid for this terminal"))
	}
}

// String performs the statement's string operation on a Char16 field.
func (s Statement) String(value string) Result {
	switch s.terminal {
	case TerminalMake:
		return toResult(WriteStringPath(s.root, s.path, value))
	case TerminalEnsure:
		if _, err := ReadStringPath(s.root, s.path); err != nil {
			return toResult(WriteStringPath(s.root, s.path, value))
		}
		return toResult(nil)
	case TerminalExist:
		_, err := ReadStringPath(s.root, s.path)
		return toResult(err)
	case TerminalExpect:
		got, err := ReadStringPath(s.root, s.path)
		if err != nil {
			return toResult(err)
		}
		if got != value {
			return toResult(newErr(KindTypeMismatch, "expected %q at %q, got %q", value, s.path, got))
		}
		return toResult(nil)
	default:
		return toResult(newErr(KindMalformedPath, "String is not valid for this terminal"))
	}
}

// Object performs the statement's object-navigation operation: Make/Ensure
// create the object (and its parents) as needed from lay; Exist checks
// presence without creating.
func (s Statement) Object(lay *layout.ContainerLayout) (StorageObject, Result) {
	switch s.terminal {
	case TerminalMake, TerminalEnsure:
		obj, err := GetObjectByPath(s.root, s.path, true, func() *layout.ContainerLayout { return lay })
		return obj, toResult(err)
	case TerminalExist:
		obj, err := GetObjectByPath(s.root, s.path, false, nil)
		return obj, toResult(err)
	default:
		return StorageObject{}, toResult(newErr(KindMalformedPath, "Object is not valid for this terminal"))
	}
}

// Array performs the statement's array operation at the statement's path.
func (s Statement) Array(kind typekind.Kind, length int) (StorageArray, Result) {
	parentPath, leaf, _, _, err := splitLeaf(s.path)
	if err != nil {
		return StorageArray{}, toResult(err)
	}
	parent, err := GetObjectByPath(s.root, parentPath, s.terminal == TerminalMake || s.terminal == TerminalEnsure, nil)
	if err != nil {
		return StorageArray{}, toResult(err)
	}
	switch s.terminal {
	case TerminalMake:
		if err := AddArrayField(parent.reg, mustResolve(parent), leaf, kind, length); err != nil {
			return StorageArray{}, toResult(err)
		}
	case TerminalEnsure:
		if _, err := parent.GetArray(leaf); err != nil {
			if err := AddArrayField(parent.reg, mustResolve(parent), leaf, kind, length); err != nil {
				return StorageArray{}, toResult(err)
			}
		}
	case TerminalExist:
		// fall through to GetArray below without creating
	default:
		return StorageArray{}, toResult(newErr(KindMalformedPath, "Array is not valid for this terminal"))
	}
	arr, err := parent.GetArray(leaf)
	return arr, toResult(err)
}

// ObjectArray ensures a Ref array field of length slots exists at the
// statement's path.
func (s Statement) ObjectArray(length int) (StorageArray, Result) {
	parentPath, leaf, _, _, err := splitLeaf(s.path)
	if err != nil {
		return StorageArray{}, toResult(err)
	}
	parent, err := GetObjectByPath(s.root, parentPath, s.terminal == TerminalMake || s.terminal == TerminalEnsure, nil)
	if err != nil {
		return StorageArray{}, toResult(err)
	}
	switch s.terminal {
	case TerminalMake:
		if err := AddRefArrayField(parent.reg, mustResolve(parent), leaf, length); err != nil {
			return StorageArray{}, toResult(err)
		}
	case TerminalEnsure:
		if _, err := parent.GetArray(leaf); err != nil {
			if err := AddRefArrayField(parent.reg, mustResolve(parent), leaf, length); err != nil {
				return StorageArray{}, toResult(err)
			}
		}
	case TerminalExist:
	default:
		return StorageArray{}, toResult(newErr(KindMalformedPath, "ObjectArray is not valid for this terminal"))
	}
	arr, err := parent.GetArray(leaf)
	return arr, toResult(err)
}

// ObjectElement resolves element i of a Ref array at the statement's
// path as a StorageObject, creating it from lay when Make/Ensure and the
// slot is null.
func (s Statement) ObjectElement(i int, lay *layout.ContainerLayout) (StorageObject, Result) {
	arr, res := s.Array(typekind.Ref, i+1)
	if !res.Success {
		return StorageObject{}, res
	}
	var obj StorageObject
	var err error
	switch s.terminal {
	case TerminalMake, TerminalEnsure:
		obj, err = arr.GetObject(i, lay)
	default:
		obj, err = arr.GetObject(i, nil)
	}
	return obj, toResult(err)
}

// Delete performs a Do-terminal field deletion.
func (s Statement) Delete() Result {
	if s.terminal != TerminalDo {
		return toResult(newErr(KindMalformedPath, "Delete requires a Do terminal"))
	}
	parentPath, leaf, _, _, err := splitLeaf(s.path)
	if err != nil {
		return toResult(err)
	}
	parent, err := GetObjectByPath(s.root, parentPath, false, nil)
	if err != nil {
		return toResult(err)
	}
	c, err := parent.resolve()
	if err != nil {
		return toResult(err)
	}
	return toResult(DeleteField(parent.reg, c, leaf))
}

// Rename performs a Do-terminal field rename.
func (s Statement) Rename(newName string) Result {
	if s.terminal != TerminalDo {
		return toResult(newErr(KindMalformedPath, "Rename requires a Do terminal"))
	}
	parentPath, leaf, _, _, err := splitLeaf(s.path)
	if err != nil {
		return toResult(err)
	}
	parent, err := GetObjectByPath(s.root, parentPath, false, nil)
	if err != nil {
		return toResult(err)
	}
	c, err := parent.resolve()
	if err != nil {
		return toResult(err)
	}
	return toResult(RenameField(parent.reg, c, leaf, newName))
}

func mustResolve(o StorageObject) *Container {
	c, err := o.resolve()
	if err != nil {
		return nil
	}
	return c
}

// Conditional is the If/Then/Else/ElseIf combinator state: once a branch
// has fired ("taken"), later ElseIf/Then calls are no-ops and Else
// returns the already-taken result.
type Conditional struct {
	result Result
	taken  bool
}

// If starts a conditional chain from cond's outcome.
func If(cond Result) Conditional {
	return Conditional{result: cond}
}

// Then runs fn and captures its result if the current condition
// succeeded and no branch has fired yet.
func (c Conditional) Then(fn func() Result) Conditional {
	if c.taken {
		return c
	}
	if c.result.Success {
		return Conditional{result: fn(), taken: true}
	}
	return c
}

// ElseIf replaces the pending condition if no branch has fired yet.
func (c Conditional) ElseIf(cond Result) Conditional {
	if c.taken {
		return c
	}
	return Conditional{result: cond}
}

// Else runs fn (and returns its result) only if no branch has fired yet;
// otherwise it returns the already-taken branch's result.
func (c Conditional) Else(fn func() Result) Result {
	if c.taken {
		return c.result
	}
	return fn()
}
