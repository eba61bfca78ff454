// Package jsonadapter maps between Storage trees and JSON documents per
// SPEC_FULL.md's JSON mapping: objects become containers, numbers become
// Int64 (if integral and representable) or Float64, a length-1 string
// becomes a Char16 scalar and a longer one a Char16 array, bool maps to
// Bool, null means an absent field, and `{"$blob":"<base64>"}` maps to
// Blob. It is an external collaborator of package storage, built on the
// same public surface storage/binary uses, and decodes with
// github.com/goccy/go-json the way the teacher's RPC layer decodes
// request bodies with it.
package jsonadapter

import (
	"encoding/base64"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/storage"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
)

// DefaultMaxDepth bounds JSON object/array nesting during Unmarshal;
// exceeding it fails with storage.DepthExceeded.
const DefaultMaxDepth = 64

const blobKey = "$blob"

// Marshal renders root's subtree as a JSON document.
func Marshal(root storage.StorageObject) ([]byte, error) {
	v, err := marshalObject(root)
	if err != nil {
		return nil, err
	}
	return gojson.Marshal(v)
}

func marshalObject(o storage.StorageObject) (map[string]any, error) {
	view, err := o.View()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(view.Fields))
	for _, f := range view.Fields {
		val, present, err := marshalField(o, f)
		if err != nil {
			return nil, err
		}
		if present {
			out[f.Name] = val
		}
	}
	return out, nil
}

func marshalField(o storage.StorageObject, f storage.FieldView) (any, bool, error) {
	switch {
	case f.Kind == typekind.Ref && !f.IsArray:
		child, err := o.GetObject(f.Name, nil)
		if err != nil {
			return nil, false, nil // null ref: field absent
		}
		obj, err := marshalObject(child)
		return obj, true, err

	case f.Kind == typekind.Ref && f.IsArray:
		arr, err := o.GetArray(f.Name)
		if err != nil {
			return nil, false, err
		}
		n, err := arr.Length()
		if err != nil {
			return nil, false, err
		}
		elems := make([]any, n)
		for i := 0; i < n; i++ {
			child, ok := arr.TryGetObject(i)
			if !ok {
				elems[i] = nil
				continue
			}
			obj, err := marshalObject(child)
			if err != nil {
				return nil, false, err
			}
			elems[i] = obj
		}
		return elems, true, nil

	case f.Kind == typekind.Char16 && f.IsArray:
		arr, err := o.GetArray(f.Name)
		if err != nil {
			return nil, false, err
		}
		s, err := arr.AsString()
		return s, true, err

	case f.Kind == typekind.Char16:
		v, err := o.Read(f.Name, typekind.Char16, storage.ModeStrict)
		if err != nil {
			return nil, false, err
		}
		return string(rune(v.(uint16))), true, nil

	case f.Kind == typekind.Bool && !f.IsArray:
		v, err := o.Read(f.Name, typekind.Bool, storage.ModeStrict)
		return v, err == nil, err

	case f.Kind == typekind.Blob || f.Kind == typekind.Unknown:
		span, err := rawFieldBytes(o, f.Name)
		if err != nil {
			return nil, false, err
		}
		return map[string]any{blobKey: base64.StdEncoding.EncodeToString(span)}, true, nil

	case f.IsArray:
		arr, err := o.GetArray(f.Name)
		if err != nil {
			return nil, false, err
		}
		n, err := arr.Length()
		if err != nil {
			return nil, false, err
		}
		elems := make([]any, n)
		for i := 0; i < n; i++ {
			v, err := arr.ElementAt(i, f.Kind, storage.ModeStrict)
			if err != nil {
				return nil, false, err
			}
			elems[i] = numberValue(v, f.Kind)
		}
		return elems, true, nil

	default:
		v, err := o.Read(f.Name, f.Kind, storage.ModeStrict)
		if err != nil {
			return nil, false, err
		}
		return numberValue(v, f.Kind), true, nil
	}
}

func numberValue(v any, k typekind.Kind) any {
	if typekind.IsIntegral(k) {
		switch x := v.(type) {
		case int8:
			return int64(x)
		case uint8:
			return int64(x)
		case int16:
			return int64(x)
		case uint16:
			return int64(x)
		case int32:
			return int64(x)
		case uint32:
			return int64(x)
		case int64:
			return x
		case uint64:
			return int64(x)
		}
	}
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return v
}

func rawFieldBytes(o storage.StorageObject, name string) ([]byte, error) {
	view, err := o.View()
	if err != nil {
		return nil, err
	}
	for _, f := range view.Fields {
		if f.Name == name {
			return view.Buffer[f.DataOffset : f.DataOffset+f.DataLength], nil
		}
	}
	return nil, fmt.Errorf("jsonadapter: field %q not found", name)
}

// Unmarshal decodes a JSON document into a fresh subtree registered
// against reg, growing each container's shape dynamically (via rescheme)
// as fields are discovered. maxDepth <= 0 uses DefaultMaxDepth.
func Unmarshal(reg *storage.Registry, data []byte, maxDepth int) (storage.StorageObject, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var doc map[string]any
	if err := gojson.Unmarshal(data, &doc); err != nil {
		return storage.StorageObject{}, fmt.Errorf("jsonadapter: %w", err)
	}

	emptyLayout, err := layout.Build("", nil)
	if err != nil {
		return storage.StorageObject{}, err
	}
	root := storage.NewStorageObject(reg, reg.CreateAndRegister(emptyLayout))

	if err := unmarshalObject(reg, root, doc, 1, maxDepth); err != nil {
		return storage.StorageObject{}, err
	}
	return root, nil
}

func unmarshalObject(reg *storage.Registry, o storage.StorageObject, doc map[string]any, depth, maxDepth int) error {
	if depth > maxDepth {
		return fmt.Errorf("jsonadapter: %w", storage.DepthExceeded)
	}
	for name, raw := range doc {
		if raw == nil {
			continue // null -> absent field
		}
		if err := unmarshalField(reg, o, name, raw, depth, maxDepth); err != nil {
			return fmt.Errorf("jsonadapter: field %q: %w", name, err)
		}
	}
	return nil
}

func unmarshalField(reg *storage.Registry, o storage.StorageObject, name string, raw any, depth, maxDepth int) error {
	switch v := raw.(type) {
	case map[string]any:
		if blob, ok := v[blobKey]; ok && len(v) == 1 {
			s, ok := blob.(string)
			if !ok {
				return fmt.Errorf("%w: $blob value must be a string", storage.BadFormat)
			}
			bytes, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return fmt.Errorf("%w: %v", storage.BadFormat, err)
			}
			return o.Override(name, bytes, typekind.Blob, len(bytes))
		}
		_, c, err := o.Unwrap()
		if err != nil {
			return err
		}
		if err := storage.AddRefField(reg, c, name); err != nil {
			return err
		}
		child, err := o.GetObject(name, emptyChildLayout())
		if err != nil {
			return err
		}
		return unmarshalObject(reg, child, v, depth+1, maxDepth)

	case bool:
		_, c, err := o.Unwrap()
		if err != nil {
			return err
		}
		if err := storage.AddScalarField(reg, c, name, typekind.Bool, nil); err != nil {
			return err
		}
		return o.Write(name, v, typekind.Bool, storage.ModeStrict)

	case float64:
		kind := typekind.Float64
		if v == float64(int64(v)) {
			kind = typekind.Int64
		}
		_, c, err := o.Unwrap()
		if err != nil {
			return err
		}
		if err := storage.AddScalarField(reg, c, name, kind, nil); err != nil {
			return err
		}
		if kind == typekind.Int64 {
			return o.Write(name, int64(v), typekind.Int64, storage.ModeStrict)
		}
		return o.Write(name, v, typekind.Float64, storage.ModeStrict)

	case string:
		if r := []rune(v); len(r) == 1 && r[0] <= 0xFFFF {
			_, c, err := o.Unwrap()
			if err != nil {
				return err
			}
			if err := storage.AddScalarField(reg, c, name, typekind.Char16, nil); err != nil {
				return err
			}
			return c.WriteScalar(name, uint16(r[0]), typekind.Char16, storage.ModeStrict)
		}
		return o.WriteString(name, v)

	case []any:
		return unmarshalArray(reg, o, name, v, depth, maxDepth)

	default:
		return fmt.Errorf("%w: unsupported JSON value %T", storage.BadFormat, raw)
	}
}

func unmarshalArray(reg *storage.Registry, o storage.StorageObject, name string, items []any, depth, maxDepth int) error {
	if len(items) == 0 {
		_, c, err := o.Unwrap()
		if err != nil {
			return err
		}
		return storage.AddArrayField(reg, c, name, typekind.Unknown, 0)
	}

	if _, ok := items[0].(map[string]any); ok {
		_, c, err := o.Unwrap()
		if err != nil {
			return err
		}
		if err := storage.AddRefArrayField(reg, c, name, len(items)); err != nil {
			return err
		}
		arr, err := o.GetArray(name)
		if err != nil {
			return err
		}
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: mixed-kind array %q", storage.BadFormat, name)
			}
			child, err := arr.GetObject(i, emptyChildLayout())
			if err != nil {
				return err
			}
			if err := unmarshalObject(reg, child, obj, depth+1, maxDepth); err != nil {
				return err
			}
		}
		return nil
	}

	allBool, allNumeric, hasFloat := true, true, false
	for _, item := range items {
		switch v := item.(type) {
		case bool:
			allNumeric = false
		case float64:
			allBool = false
			if v != float64(int64(v)) {
				hasFloat = true
			}
		default:
			return fmt.Errorf("%w: mixed-kind array %q", storage.BadFormat, name)
		}
	}
	if !allBool && !allNumeric {
		return fmt.Errorf("%w: mixed-kind array %q", storage.BadFormat, name)
	}
	kind := typekind.Int64
	switch {
	case allBool:
		kind = typekind.Bool
	case hasFloat:
		kind = typekind.Float64
	}

	_, c, err := o.Unwrap()
	if err != nil {
		return err
	}
	if err := storage.AddArrayField(reg, c, name, kind, len(items)); err != nil {
		return err
	}
	arr, err := o.GetArray(name)
	if err != nil {
		return err
	}
	for i, item := range items {
		switch v := item.(type) {
		case bool:
			if err := arr.SetElementAt(i, v, typekind.Bool, storage.ModeStrict); err != nil {
				return err
			}
		case float64:
			if kind == typekind.Int64 {
				if err := arr.SetElementAt(i, int64(v), typekind.Int64, storage.ModeStrict); err != nil {
					return err
				}
			} else if err := arr.SetElementAt(i, v, typekind.Float64, storage.ModeExplicit); err != nil {
				return err
			}
		}
	}
	return nil
}

func emptyChildLayout() *layout.ContainerLayout {
	lay, err := layout.Build("", nil)
	if err != nil {
		panic(err) // building an empty layout cannot fail
	}
	return lay
}
