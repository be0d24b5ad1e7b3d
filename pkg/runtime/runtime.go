// Package runtime holds the mutable state the engine shares across commands
// (C8, spec.md §5 "Shared-resource policy"): a small two-slot reply-object
// pool and the host-visible dirty counter, one of each per Engine. There is
// no shared key-encode buffer: keycodec.Encode allocates on every call.
// Because command execution is single-threaded and cooperative
// (spec.md §5), none of this needs locking — a deliberate, documented
// departure from the teacher's storage.Storage, which guarded its single
// reusable resource (a file handle) with a sync.RWMutex because disk I/O
// could be called from multiple goroutines; nothing here can be.
package runtime

import (
	"go.uber.org/zap"
)

// ReplyNestingLimit is the reply-object pool's nesting depth: functions
// that may be re-entered through the (out-of-scope) join executor take a
// nesting parameter selecting their slot (spec.md §5).
const ReplyNestingLimit = 2

// Reply is one pooled reply-object slot. The engine's SQL front-end (C7)
// writes into a slot rather than allocating a fresh reply per call.
type Reply struct {
	Kind    string
	Message string
	Rows    [][]byte
	Sizes   *SizeReport
}

// SizeReport carries the four terms the original's addRowSizeReply emits
// for "INSERT ... RETURN SIZE": the row's own byte length, the owning
// B-tree's total and payload-only byte counts, and the combined byte count
// across that table's secondary index trees.
type SizeReport struct {
	RowBytes   uint64
	TreeMSize  uint64
	TreeDSize  uint64
	IndexBytes uint64
}

// ReplyPool is the two-slot reply-object pool described in spec.md §5.
type ReplyPool struct {
	slots [ReplyNestingLimit]Reply
}

// NewReplyPool creates an empty reply pool.
func NewReplyPool() *ReplyPool { return &ReplyPool{} }

// Slot returns the reply object for the given nesting level, resetting it
// first. nesting must be 0 or 1 (ReplyNestingLimit-1); a nested call (e.g.
// through a join) uses slot 1 so it doesn't clobber its caller's slot 0.
func (p *ReplyPool) Slot(nesting int) *Reply {
	s := &p.slots[nesting]
	s.Kind, s.Message, s.Rows, s.Sizes = "", "", nil, nil
	return s
}

// DirtyCounter is the host-visible monotonic write counter: the engine
// increments it exactly once per committed write (spec.md §5 "Ordering").
// The AOF/RDB layer (out of scope here) watches it to decide when to
// snapshot.
type DirtyCounter struct {
	n uint64
}

// Inc increments the counter by one.
func (d *DirtyCounter) Inc() { d.n++ }

// Value returns the current count.
func (d *DirtyCounter) Value() uint64 { return d.n }

// NewLogger builds the zap logger used for the engine's lifecycle events
// (table and index creation) — never for the single-row hot path itself.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	return cfg.Build()
}
