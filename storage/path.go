package storage

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// PathSegment is one (child-name, optional-index) step of a parsed path,
// e.g. "c[3]" parses to {Name: "c", HasIndex: true, Index: 3}.
type PathSegment struct {
	Name     string
	HasIndex bool
	Index    int
}

// ParsePath splits a dotted path of the form "a.b.c[3].d" into its
// segments. Whitespace anywhere in a segment name and empty segments both
// produce MalformedPath, per spec §4.3.
func ParsePath(path string) ([]PathSegment, error) {
	if path == "" {
		return nil, newErr(KindMalformedPath, "empty path")
	}
	var segs []PathSegment
	i := 0
	for i < len(path) {
		start := i
		for i < len(path) && path[i] != '.' && path[i] != '[' {
			i++
		}
		name := path[start:i]
		if name == "" || strings.ContainsAny(name, " \t\n\r") {
			return nil, newErr(KindMalformedPath, "empty or whitespace segment in path %q", path)
		}
		seg := PathSegment{Name: name}
		if i < len(path) && path[i] == '[' {
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j >= len(path) {
				return nil, newErr(KindMalformedPath, "unterminated '[' in path %q", path)
			}
			idx, err := strconv.Atoi(path[i+1 : j])
			if err != nil {
				return nil, wrapErr(KindMalformedPath, err, "bad index in path %q", path)
			}
			seg.HasIndex = true
			seg.Index = idx
			i = j + 1
		}
		segs = append(segs, seg)
		if i < len(path) {
			if path[i] != '.' {
				return nil, newErr(KindMalformedPath, "expected '.' at position %d in path %q", i, path)
			}
			i++
			if i >= len(path) {
				return nil, newErr(KindMalformedPath, "trailing '.' in path %q", path)
			}
		}
	}
	return segs, nil
}

var (
	emptyLayoutOnce sync.Once
	emptyLayoutVal  *layout.ContainerLayout
)

// emptyLayout returns a shared, field-less ContainerLayout used to
// auto-create intermediate containers when the caller supplies no
// specific child layout.
func emptyLayout() *layout.ContainerLayout {
	emptyLayoutOnce.Do(func() {
		lay, err := layout.Build("", nil)
		if err != nil {
			panic(err) // building an empty layout cannot fail
		}
		emptyLayoutVal = lay
	})
	return emptyLayoutVal
}

// GetObjectByPath walks path from root, following Ref fields (and Ref
// array indices). If create is true, missing intermediate fields/array
// slots are allocated (using childLayout() if non-nil, else an empty
// layout); otherwise a missing segment fails with NotFound.
func GetObjectByPath(root StorageObject, path string, create bool, childLayout func() *layout.ContainerLayout) (StorageObject, error) {
	if path == "" {
		return root, nil
	}
	segs, err := ParsePath(path)
	if err != nil {
		return StorageObject{}, err
	}

	cur := root
	for _, seg := range segs {
		var lay *layout.ContainerLayout
		if create {
			if childLayout != nil {
				lay = childLayout()
			} else {
				lay = emptyLayout()
			}
		}

		if !seg.HasIndex {
			next, err := cur.GetObject(seg.Name, lay)
			if err != nil {
				return StorageObject{}, err
			}
			cur = next
			continue
		}

		arr, err := cur.GetArray(seg.Name)
		if err != nil {
			if !create {
				return StorageObject{}, err
			}
			c, rerr := cur.resolve()
			if rerr != nil {
				return StorageObject{}, rerr
			}
			if aerr := AddRefArrayField(cur.reg, c, seg.Name, seg.Index+1); aerr != nil {
				return StorageObject{}, aerr
			}
			arr, err = cur.GetArray(seg.Name)
			if err != nil {
				return StorageObject{}, err
			}
		}
		next, err := arr.GetObject(seg.Index, lay)
		if err != nil {
			return StorageObject{}, err
		}
		cur = next
	}
	return cur, nil
}

// splitLeaf separates path's final segment (the leaf field, with its
// optional index) from the remaining parent path.
func splitLeaf(path string) (parentPath, leafName string, leafIndex int, hasIndex bool, err error) {
	segs, err := ParsePath(path)
	if err != nil {
		return "", "", 0, false, err
	}
	last := segs[len(segs)-1]
	var sb strings.Builder
	for i, s := range segs[:len(segs)-1] {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Name)
		if s.HasIndex {
			fmt.Fprintf(&sb, "[%d]", s.Index)
		}
	}
	return sb.String(), last.Name, last.Index, last.HasIndex, nil
}

// WritePath writes v (of kind srcKind) to the scalar/array-element
// addressed by path, creating intermediate containers and the leaf scalar
// field (if it doesn't exist yet) as needed.
func WritePath(root StorageObject, path string, v any, srcKind typekind.Kind, mode ConvertMode) error {
	parentPath, leaf, leafIndex, hasIndex, err := splitLeaf(path)
	if err != nil {
		return err
	}
	parent, err := GetObjectByPath(root, parentPath, true, nil)
	if err != nil {
		return err
	}
	if hasIndex {
		arr, err := parent.GetArray(leaf)
		if err != nil {
			return err
		}
		return arr.SetElementAt(leafIndex, v, srcKind, mode)
	}
	reg, c, err := parent.Unwrap()
	if err != nil {
		return err
	}
	if _, _, ferr := c.FieldKind(leaf); ferr != nil {
		if err := AddScalarField(reg, c, leaf, srcKind, nil); err != nil {
			return err
		}
	}
	return parent.Write(leaf, v, srcKind, mode)
}

// ReadPath reads the scalar/array-element addressed by path; it never
// creates anything and fails if any intermediate segment is missing or
// not a Ref.
func ReadPath(root StorageObject, path string, wantKind typekind.Kind, mode ConvertMode) (any, error) {
	parentPath, leaf, leafIndex, hasIndex, err := splitLeaf(path)
	if err != nil {
		return nil, err
	}
	parent, err := GetObjectByPath(root, parentPath, false, nil)
	if err != nil {
		return nil, err
	}
	if hasIndex {
		arr, err := parent.GetArray(leaf)
		if err != nil {
			return nil, err
		}
		return arr.ElementAt(leafIndex, wantKind, mode)
	}
	return parent.Read(leaf, wantKind, mode)
}

// WriteStringPath writes s as a Char16 array at path, creating
// intermediates as needed.
func WriteStringPath(root StorageObject, path string, s string) error {
	parentPath, leaf, _, hasIndex, err := splitLeaf(path)
	if err != nil {
		return err
	}
	if hasIndex {
		return newErr(KindMalformedPath, "string paths do not support a trailing index: %q", path)
	}
	parent, err := GetObjectByPath(root, parentPath, true, nil)
	if err != nil {
		return err
	}
	return parent.WriteString(leaf, s)
}

// ReadStringPath reads a Char16 field as a string at path.
func ReadStringPath(root StorageObject, path string) (string, error) {
	parentPath, leaf, _, hasIndex, err := splitLeaf(path)
	if err != nil {
		return "", err
	}
	if hasIndex {
		return "", newErr(KindMalformedPath, "string paths do not support a trailing index: %q", path)
	}
	parent, err := GetObjectByPath(root, parentPath, false, nil)
	if err != nil {
		return "", err
	}
	return parent.ReadString(leaf)
}
