// Package index implements secondary-index maintenance (C5): inserting and
// deleting primary keys into/from the nested per-value B-tree each index
// entry owns.
//
// An index B-tree (KindIndex) maps an encoded indexed-value stream to a
// nested B-tree (KindIndexNode, "index node") of encoded primary-key
// streams. A nested tree is created on first insert for a value and
// destroyed when its last PK is removed (invariant I2, spec.md §3).
package index

import (
	"github.com/alchemy-labs/reltable/pkg/container"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
)

// pointerOverheadBytes stands in for the pointer-to-nested-tree the
// original stores inline in each index entry (spec.md §4.1's
// getStreamMallocSize: "vlen = sizeof(void *)").
const pointerOverheadBytes = 8

// NewTree creates an empty index B-tree (KindIndex).
func NewTree() *container.Tree {
	return container.New(container.KindIndex, func(e container.Entry) uint64 {
		nested, _ := e.Value.(*container.Tree)
		sz := uint64(len(e.Key)) + pointerOverheadBytes
		if nested != nil {
			sz += nested.MSize()
		}
		return sz
	})
}

// newNodeTree creates an empty nested index-node B-tree (KindIndexNode),
// whose entries carry only a key (the PK stream) and no value.
func newNodeTree() *container.Tree {
	return container.New(container.KindIndexNode, func(e container.Entry) uint64 {
		return uint64(len(e.Key))
	})
}

// Add inserts pk into the nested tree for value in the index tree idxTree,
// creating that nested tree if this is the first PK for value.
func Add(idxTree *container.Tree, valueType keycodec.Type, value any, pk []byte) error {
	valueKey, err := keycodec.Encode(valueType, value)
	if err != nil {
		return err
	}

	// The index entry's charged size includes its nested tree's MSize, so an
	// existing entry is taken out (uncharging its current size) before the
	// nested tree grows, and put back afterwards.
	entry, ok := idxTree.Find(valueKey)
	var nested *container.Tree
	if !ok {
		nested = newNodeTree()
	} else {
		nested = entry.Value.(*container.Tree)
		idxTree.Delete(valueKey)
	}
	nested.Insert(container.Entry{Key: pk})
	idxTree.Insert(container.Entry{Key: valueKey, Value: nested})
	return nil
}

// Delete removes pk from the nested tree for value in the index tree
// idxTree. If that was the last PK for value, the index entry itself (and
// its now-empty nested tree) is removed, preserving invariant I2.
func Delete(idxTree *container.Tree, valueType keycodec.Type, value any, pk []byte) error {
	valueKey, err := keycodec.Encode(valueType, value)
	if err != nil {
		return err
	}

	entry, ok := idxTree.Find(valueKey)
	if !ok {
		return nil // already absent: tolerate, matches the original's lack of a hard error here
	}
	nested := entry.Value.(*container.Tree)
	idxTree.Delete(valueKey)
	nested.Delete(pk)

	if nested.Len() == 0 {
		nested.Destroy(nil)
		return nil
	}
	idxTree.Insert(container.Entry{Key: valueKey, Value: nested})
	return nil
}

// Extremal returns the primary-key stream of the extremal entry (max if
// ascending, min if descending — matching the original's reversed-intuition
// naming, spec.md §4.5 "Ordering-constraint check") across all values
// currently present in idxTree, or (nil, false) if the index is empty.
func Extremal(idxTree *container.Tree, ascending bool) ([]byte, bool) {
	var valueEntry container.Entry
	var ok bool
	if ascending {
		valueEntry, ok = idxTree.Max()
	} else {
		valueEntry, ok = idxTree.Min()
	}
	if !ok {
		return nil, false
	}
	nested := valueEntry.Value.(*container.Tree)
	pkEntry, ok := nested.Min()
	if !ok {
		return nil, false
	}
	return pkEntry.Key, true
}
