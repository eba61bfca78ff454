package layout

import "github.com/minerva-studio/meialian-bibliography-sub004/typekind"

// ObjectBuilder accumulates field specs for a ContainerLayout, mirroring
// the teacher's Default*Config() struct-literal-with-defaults idiom
// (node/config_loader.go) but as a fluent chain rather than a single
// literal, since field sets are built incrementally by callers and by the
// rescheme engine's edit-application phase.
type ObjectBuilder struct {
	name  string
	specs []FieldSpec
}

// NewObjectBuilder starts a builder for a container named name.
func NewObjectBuilder(name string) *ObjectBuilder {
	return &ObjectBuilder{name: name}
}

// SetScalar adds (or replaces) a scalar field of kind k. If def is
// non-nil, it is recorded as the field's default value: Build carries it
// onto the resulting ContainerLayout, and NewContainer/CreateWild write it
// into the field's data span on first materialization.
func (b *ObjectBuilder) SetScalar(name string, k typekind.Kind, def any) *ObjectBuilder {
	b.replace(FieldSpec{Name: name, Kind: k, IsArray: false, Length: 1, Default: def})
	return b
}

// SetRef adds a single-slot Ref field (one 8-byte child id).
func (b *ObjectBuilder) SetRef(name string) *ObjectBuilder {
	b.replace(FieldSpec{Name: name, Kind: typekind.Ref, IsArray: false, Length: 1})
	return b
}

// SetRefArray adds a Ref array field of length slots (each an 8-byte id).
func (b *ObjectBuilder) SetRefArray(name string, length int) *ObjectBuilder {
	b.replace(FieldSpec{Name: name, Kind: typekind.Ref, IsArray: true, Length: length})
	return b
}

// SetArray adds an inline value array field of kind k with length elements.
func (b *ObjectBuilder) SetArray(name string, k typekind.Kind, length int) *ObjectBuilder {
	b.replace(FieldSpec{Name: name, Kind: k, IsArray: true, Length: length})
	return b
}

// SetBlobArray adds an opaque Blob field sized to length raw bytes (Blob
// has no fixed element width).
func (b *ObjectBuilder) SetBlobArray(name string, length int) *ObjectBuilder {
	b.replace(FieldSpec{Name: name, Kind: typekind.Blob, IsArray: true, Length: length})
	return b
}

// RemoveField drops a previously added field, if present.
func (b *ObjectBuilder) RemoveField(name string) *ObjectBuilder {
	for i, s := range b.specs {
		if s.Name == name {
			b.specs = append(b.specs[:i], b.specs[i+1:]...)
			break
		}
	}
	return b
}

// RenameField renames a previously added field in place, preserving its
// kind/length/default.
func (b *ObjectBuilder) RenameField(oldName, newName string) *ObjectBuilder {
	for i, s := range b.specs {
		if s.Name == oldName {
			b.specs[i].Name = newName
			break
		}
	}
	return b
}

// Specs returns the builder's current field specs, sorted or not
// (Build sorts internally).
func (b *ObjectBuilder) Specs() []FieldSpec {
	out := make([]FieldSpec, len(b.specs))
	copy(out, b.specs)
	return out
}

// Defaults returns the map of field name to recorded default value.
func (b *ObjectBuilder) Defaults() map[string]any {
	out := make(map[string]any, len(b.specs))
	for _, s := range b.specs {
		if s.Default != nil {
			out[s.Name] = s.Default
		}
	}
	return out
}

// BuildLayout finalizes the builder into an immutable ContainerLayout.
func (b *ObjectBuilder) BuildLayout() (*ContainerLayout, error) {
	return Build(b.name, b.specs)
}

func (b *ObjectBuilder) replace(spec FieldSpec) {
	for i, s := range b.specs {
		if s.Name == spec.Name {
			b.specs[i] = spec
			return
		}
	}
	b.specs = append(b.specs, spec)
}
