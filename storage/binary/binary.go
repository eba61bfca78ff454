// Package binary implements the depth-first container snapshot format
// written by Dump and read back by Parse: a flat sequence of
// [8-byte little-endian old id][container buffer] records, visited
// pre-order starting at the root and following every live Ref field. It
// is an external collaborator of package storage, built only on the
// public StorageObject/StorageArray surface (plus ContainerView for the
// raw bytes), the same separation the teacher draws between rlp's wire
// codec and the state trie it serializes.
package binary

import (
	"fmt"

	"github.com/minerva-studio/meialian-bibliography-sub004/layout"
	"github.com/minerva-studio/meialian-bibliography-sub004/storage"
	"github.com/minerva-studio/meialian-bibliography-sub004/typekind"
	"github.com/minerva-studio/meialian-bibliography-sub004/valuecodec"
)

// idSize is the width, in bytes, of the little-endian container-id prefix
// that precedes every record in the stream.
const idSize = 8

// Dump walks root depth-first, pre-order, and returns the flat byte
// sequence described in the package doc. A container id reachable through
// more than one path in the tree is an error: the format assumes a tree,
// not a general graph.
func Dump(root storage.StorageObject) ([]byte, error) {
	var out []byte
	seen := make(map[uint64]bool)

	var walk func(o storage.StorageObject) error
	walk = func(o storage.StorageObject) error {
		view, err := o.View()
		if err != nil {
			return err
		}
		if seen[view.ID] {
			return fmt.Errorf("storage/binary: container %d reachable more than once (not a tree)", view.ID)
		}
		seen[view.ID] = true

		idBytes := make([]byte, idSize)
		valuecodec.PutRef(idBytes, view.ID)
		out = append(out, idBytes...)
		out = append(out, view.Buffer...)

		for _, f := range view.Fields {
			if f.Kind != typekind.Ref {
				continue
			}
			if !f.IsArray {
				child, err := o.GetObject(f.Name, nil)
				if err != nil {
					continue // null ref: nothing to recurse into
				}
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			arr, err := o.GetArray(f.Name)
			if err != nil {
				continue
			}
			n, err := arr.Length()
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				child, ok := arr.TryGetObject(i)
				if !ok {
					continue
				}
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse reads a stream produced by Dump, materializing fresh containers
// registered against reg with newly allocated ids, and relinking every Ref
// field from the stream's old ids to the freshly allocated ones. It
// returns a handle onto the first (root) container in the stream.
func Parse(reg *storage.Registry, data []byte) (storage.StorageObject, error) {
	type record struct {
		container *storage.Container
		oldID     uint64
	}
	var records []record
	idMap := make(map[uint64]uint64)

	cursor := 0
	for cursor < len(data) {
		if cursor+idSize > len(data) {
			return storage.StorageObject{}, fmt.Errorf("storage/binary: truncated id at offset %d", cursor)
		}
		oldID := valuecodec.ReadRef(data[cursor : cursor+idSize])
		cursor += idSize

		if cursor+layout.HeaderSize > len(data) {
			return storage.StorageObject{}, fmt.Errorf("storage/binary: truncated header at offset %d", cursor)
		}
		hdr := layout.UnmarshalContainerHeader(data[cursor : cursor+layout.HeaderSize])
		length := int(hdr.Length)
		if length < layout.HeaderSize || cursor+length > len(data) {
			return storage.StorageObject{}, fmt.Errorf("storage/binary: truncated payload at offset %d", cursor)
		}

		payload := make([]byte, length)
		copy(payload, data[cursor:cursor+length])
		cursor += length

		lay, err := layout.Parse(payload)
		if err != nil {
			return storage.StorageObject{}, fmt.Errorf("storage/binary: %w", err)
		}

		c := storage.FromBytes(lay, payload)
		reg.AdoptWild(c)
		if err := reg.Register(c); err != nil {
			return storage.StorageObject{}, err
		}

		idMap[oldID] = c.ID()
		records = append(records, record{container: c, oldID: oldID})
	}

	if len(records) == 0 {
		return storage.StorageObject{}, fmt.Errorf("storage/binary: empty stream")
	}

	for _, rec := range records {
		buf := rec.container.Buffer()
		for _, fh := range rec.container.Layout().Fields {
			k, _ := typekind.Unpack(fh.Type)
			if k != typekind.Ref {
				continue
			}
			span := buf[fh.DataOffset : fh.DataOffset+fh.DataLength]
			for i := 0; i+idSize <= len(span); i += idSize {
				old := valuecodec.ReadRef(span[i : i+idSize])
				if old == 0 {
					continue
				}
				newID, ok := idMap[old]
				if !ok {
					return storage.StorageObject{}, fmt.Errorf("storage/binary: dangling ref %d (no such container in stream)", old)
				}
				valuecodec.PutRef(span[i:i+idSize], newID)
			}
		}
	}

	return storage.NewStorageObject(reg, records[0].container), nil
}
