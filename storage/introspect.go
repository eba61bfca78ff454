package storage

import "github.com/minerva-studio/meialian-bibliography-sub004/typekind"

// FieldView is a read-only description of one field's shape, for callers
// outside this package that need to walk a container's fields without
// reaching into unexported state (storage/binary, storage/jsonadapter).
type FieldView struct {
	Name       string
	Kind       typekind.Kind
	IsArray    bool
	DataOffset int
	DataLength int
}

// ContainerView is a read-only snapshot of one container: its id, a
// defensive copy of its raw buffer, and its field shape. The binary and
// JSON serializer adapters are built entirely on top of this plus the
// normal StorageObject/StorageArray navigation methods.
type ContainerView struct {
	ID            uint64
	ContainerName string
	Buffer        []byte
	Fields        []FieldView
}

// View snapshots the container o resolves to.
func (o StorageObject) View() (ContainerView, error) {
	c, err := o.resolve()
	if err != nil {
		return ContainerView{}, err
	}
	buf := make([]byte, len(c.buffer))
	copy(buf, c.buffer)
	fields := make([]FieldView, len(c.layout.Fields))
	for i, fh := range c.layout.Fields {
		k, isArray := typekind.Unpack(fh.Type)
		fields[i] = FieldView{
			Name:       c.layout.Names[i],
			Kind:       k,
			IsArray:    isArray,
			DataOffset: int(fh.DataOffset),
			DataLength: int(fh.DataLength),
		}
	}
	return ContainerView{ID: c.id, ContainerName: c.layout.ContainerName, Buffer: buf, Fields: fields}, nil
}
