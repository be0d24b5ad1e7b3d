// Package container implements the packed B-tree storage layer (C2):
// an ordered, variable-length-entry container over encoded key streams,
// with insert/find/delete, a transition from a compact initial allocation
// to a larger one as the key count grows, and byte accounting so the
// engine can report per-structure memory use.
//
// The balanced-tree engine itself is github.com/google/btree's generic
// BTreeG; Tree adds the byte accounting and the resize-on-growth
// transition the spec requires and the library does not provide.
package container

import (
	"github.com/google/btree"

	"github.com/alchemy-labs/reltable/pkg/keycodec"
)

// Kind selects what an entry's Value field means.
type Kind int

const (
	// KindTable entries are (encoded PK stream -> packed row blob).
	KindTable Kind = iota
	// KindIndex entries are (encoded indexed-value stream -> nested *Tree of KindIndexNode).
	KindIndex
	// KindIndexNode entries are (encoded PK stream -> nothing; only the key matters).
	KindIndexNode
)

// Resize thresholds, named after spec.md's compile-time constants.
const (
	TransitionOneMax = 4096 // key count at which the container grows

	transitionOneDegree = 32  // initial (compact) google/btree branching factor
	transitionTwoDegree = 128 // post-transition branching factor

	// bookkeepingOverheadBytes approximates per-entry pointer/offset
	// bookkeeping a packed-array implementation would carry; google/btree
	// doesn't expose a byte count for its internal nodes, so msize is
	// reconstructed as dsize plus this constant times the key count.
	bookkeepingOverheadBytes = 16
)

// Entry is one (key, value) pair stored in a Tree.
type Entry struct {
	Key   []byte
	Value any
}

// SizeFunc reports the payload byte size of one entry, for dsize/msize
// accounting. It must be stable across calls for the same entry contents.
type SizeFunc func(Entry) uint64

func less(a, b Entry) bool { return keycodec.Compare(a.Key, b.Key) < 0 }

// Tree is the packed B-tree container (C2).
type Tree struct {
	kind   Kind
	sizeFn SizeFunc
	bt     *btree.BTreeG[Entry]
	degree int

	msize uint64 // total bookkeeping + entry bytes
	dsize uint64 // entry payload bytes only
}

// New creates an empty container of the given kind. sizeFn computes the
// byte size charged for each entry inserted into it.
func New(kind Kind, sizeFn SizeFunc) *Tree {
	return &Tree{
		kind:   kind,
		sizeFn: sizeFn,
		bt:     btree.NewG(transitionOneDegree, less),
		degree: transitionOneDegree,
	}
}

// Kind returns the container's kind.
func (t *Tree) Kind() Kind { return t.kind }

// Len returns the number of entries currently stored.
func (t *Tree) Len() int { return t.bt.Len() }

// MSize returns total bookkeeping+entry bytes tracked for this container.
func (t *Tree) MSize() uint64 { return t.msize }

// DSize returns entry-payload-only bytes tracked for this container.
func (t *Tree) DSize() uint64 { return t.dsize }

// Find returns the entry for key, if present.
func (t *Tree) Find(key []byte) (Entry, bool) {
	return t.bt.Get(Entry{Key: key})
}

// Insert adds or in-place-replaces the entry for key. It returns the size in
// bytes charged to this insert (not counting the byte size of any entry it
// overwrote, which is subtracted from the running totals automatically).
func (t *Tree) Insert(e Entry) uint64 {
	if t.bt.Len()+1 == TransitionOneMax && t.degree == transitionOneDegree {
		t.resize(transitionTwoDegree)
	}

	old, existed := t.bt.ReplaceOrInsert(e)
	sz := t.sizeFn(e)
	if existed {
		oldSz := t.sizeFn(old)
		t.dsize -= oldSz
		t.msize -= oldSz
	} else {
		t.msize += bookkeepingOverheadBytes
	}
	t.dsize += sz
	t.msize += sz
	return sz
}

// Delete removes the entry for key, if present, and returns it along with
// whether it was found.
func (t *Tree) Delete(key []byte) (Entry, bool) {
	old, existed := t.bt.Delete(Entry{Key: key})
	if existed {
		sz := t.sizeFn(old)
		t.dsize -= sz
		t.msize -= sz
		t.msize -= bookkeepingOverheadBytes
	}
	return old, existed
}

// Ascend visits every entry in ascending key order until visit returns false.
func (t *Tree) Ascend(visit func(Entry) bool) {
	t.bt.Ascend(func(e Entry) bool { return visit(e) })
}

// Min returns the smallest-keyed entry, if any.
func (t *Tree) Min() (Entry, bool) { return t.bt.Min() }

// Max returns the largest-keyed entry, if any.
func (t *Tree) Max() (Entry, bool) { return t.bt.Max() }

// resize performs the TRANSITION_ONE -> TRANSITION_TWO growth: build a
// second container at the new degree, drain the first's entries in-order
// into it, then swap. This mirrors the original's build-second/drain-first/
// swap-header resize algorithm (spec.md §4.2).
func (t *Tree) resize(newDegree int) {
	next := btree.NewG(newDegree, less)
	t.bt.Ascend(func(e Entry) bool {
		next.ReplaceOrInsert(e)
		return true
	})
	t.bt = next
	t.degree = newDegree
}

// Destroy releases this container. If this container holds KindIndex
// entries, every nested KindIndexNode tree reachable from them is destroyed
// first. If parent is non-nil, this container's tracked bytes are
// subtracted from the parent's own msize/dsize (cross-container byte
// accounting, spec.md §4.2) before this container is cleared.
func (t *Tree) Destroy(parent *Tree) {
	if t.kind == KindIndex {
		t.bt.Ascend(func(e Entry) bool {
			if nested, ok := e.Value.(*Tree); ok && nested != nil {
				nested.Destroy(nil)
			}
			return true
		})
	}
	if parent != nil {
		parent.dsize -= t.dsize
		parent.msize -= t.msize
	}
	t.bt = btree.NewG(transitionOneDegree, less)
	t.msize = 0
	t.dsize = 0
}
