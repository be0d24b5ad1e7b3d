package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alchemy-labs/reltable/pkg/catalog"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(nil)
}

// Scenario 1 (spec §8): overwrite rejection, REPLACE, SELECT.
func TestInsertReplaceSelect(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{int64(1), int64(10)}, InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = e.Insert(tbl.ID, []any{int64(1), int64(20)}, InsertOptions{})
	require.Error(t, err)
	assert.Equal(t, ReplyInsertOverwrite, r.Kind)

	r, err = e.Insert(tbl.ID, []any{int64(1), int64(20)}, InsertOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = e.Select(tbl.ID, []int{1}, Predicate{Kind: PredicatePK, PKValue: int64(1)})
	require.NoError(t, err)
	assert.Equal(t, ReplySingleRow, r.Kind)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, uint32(20), keycodec.Decode(r.Rows[0]).Int)
}

// Scenario 2 (spec §8): secondary-index maintenance across deletes.
func TestSecondaryIndexMaintenance(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("u", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "x", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)
	_, err = e.CreateIndex("u_by_x", tbl.ID, 1, true)
	require.NoError(t, err)

	for _, row := range [][2]int64{{1, 100}, {2, 100}, {3, 200}} {
		_, err := e.Insert(tbl.ID, []any{row[0], row[1]}, InsertOptions{})
		require.NoError(t, err)
	}

	idxTree := e.indexes[tbl.SecondaryIndexIDs[0]]
	bucket := func(v int64) int {
		key, _ := keycodec.Encode(keycodec.TypeInt, v)
		entry, ok := idxTree.Find(key)
		if !ok {
			return 0
		}
		return entry.Value.(interface{ Len() int }).Len()
	}
	assert.Equal(t, 2, bucket(100))
	assert.Equal(t, 1, bucket(200))

	_, err = e.Delete(tbl.ID, Predicate{Kind: PredicatePK, PKValue: int64(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, bucket(100))

	_, err = e.Delete(tbl.ID, Predicate{Kind: PredicatePK, PKValue: int64(2)})
	require.NoError(t, err)
	assert.Equal(t, 0, bucket(100))
	assert.Equal(t, 1, bucket(200))
}

// Scenario 3 (spec §8): ordering-constraint violation.
func TestOrderingConstraintViolation(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("w", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "t", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)
	idx, err := e.CreateIndex("w_by_t", tbl.ID, 1, true)
	require.NoError(t, err)
	require.NoError(t, e.SetOrderingConstraint(tbl.ID, idx.ID, 1))

	_, err = e.Insert(tbl.ID, []any{int64(1), int64(5)}, InsertOptions{})
	require.NoError(t, err)
	_, err = e.Insert(tbl.ID, []any{int64(2), int64(10)}, InsertOptions{})
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{int64(3), int64(10)}, InsertOptions{})
	require.Error(t, err)
	assert.Equal(t, ReplyConstraintViolation, r.Kind)

	_, err = e.Insert(tbl.ID, []any{int64(4), int64(11)}, InsertOptions{})
	require.NoError(t, err)
}

// Scenario 4 (spec §8): ON DUPLICATE KEY UPDATE insert-then-update.
func TestOnDuplicateKeyUpdate(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	onDup := []SetClause{{Column: 1, Expr: LiteralExpr{Value: uint32(99)}}}

	r, err := e.Insert(tbl.ID, []any{int64(1), int64(10)}, InsertOptions{OnDuplicateUpdate: onDup})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = e.Insert(tbl.ID, []any{int64(1), int64(10)}, InsertOptions{OnDuplicateUpdate: onDup})
	require.NoError(t, err)
	assert.Equal(t, ReplyCOne, r.Kind)

	r, err = e.Select(tbl.ID, []int{1}, Predicate{Kind: PredicatePK, PKValue: int64(1)})
	require.NoError(t, err)
	assert.Equal(t, uint32(99), keycodec.Decode(r.Rows[0]).Int)
}

// Scenario 5 (spec §8): UPDATE PK-overwrite rejection.
func TestUpdatePKOverwrite(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	_, err = e.Insert(tbl.ID, []any{int64(1), int64(10)}, InsertOptions{})
	require.NoError(t, err)
	_, err = e.Insert(tbl.ID, []any{int64(2), int64(20)}, InsertOptions{})
	require.NoError(t, err)

	r, err := e.Update(tbl.ID, []SetClause{{Column: 0, Expr: LiteralExpr{Value: int64(1)}}}, Predicate{Kind: PredicatePK, PKValue: int64(2)})
	require.Error(t, err)
	assert.Equal(t, ReplyUpdatePKOverwrite, r.Kind)

	r, err = e.Select(tbl.ID, []int{1}, Predicate{Kind: PredicatePK, PKValue: int64(2)})
	require.NoError(t, err)
	assert.Equal(t, uint32(20), keycodec.Decode(r.Rows[0]).Int)
}

// Scenario 6 (spec §8): RETURN SIZE reply carries all four of the
// original's addRowSizeReply terms (ROW/BT-TOTAL/BT-DATA/INDEX), with the
// row-bytes term equal to the row codec's size on that row.
func TestInsertReturnSize(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)
	_, err = e.CreateIndex("t_by_v", tbl.ID, 1, true)
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{int64(1), int64(10)}, InsertOptions{ReturnSize: true})
	require.NoError(t, err)
	require.Len(t, r.Rows, 1)
	require.NotNil(t, r.Sizes)
	assert.Equal(t, rowByteSize(r.Rows[0]), r.Sizes.RowBytes)
	assert.Greater(t, r.Sizes.RowBytes, uint64(0))
	assert.GreaterOrEqual(t, r.Sizes.TreeMSize, r.Sizes.RowBytes)
	assert.GreaterOrEqual(t, r.Sizes.TreeMSize, r.Sizes.TreeDSize)
	assert.Greater(t, r.Sizes.IndexBytes, uint64(0))

	// r and r2 are the same pooled reply slot, so keep a copy of the first
	// report before the second insert overwrites it.
	first := *r.Sizes
	r2, err := e.Insert(tbl.ID, []any{int64(2), int64(20)}, InsertOptions{ReturnSize: true})
	require.NoError(t, err)
	assert.Greater(t, r2.Sizes.TreeMSize, first.TreeMSize)
	assert.Greater(t, r2.Sizes.IndexBytes, first.IndexBytes)
}

// A plain INSERT (no RETURN SIZE) leaves the reply's Sizes unset, and the
// pool must not leak a previous call's size report into it.
func TestInsertWithoutReturnSizeLeavesSizesNil(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	_, err = e.Insert(tbl.ID, []any{int64(1), int64(10)}, InsertOptions{ReturnSize: true})
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{int64(2), int64(20)}, InsertOptions{})
	require.NoError(t, err)
	assert.Nil(t, r.Sizes)
}

func TestDeleteMissingRowReportsZero(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{{Name: "pk", Type: keycodec.TypeInt}, {Name: "v", Type: keycodec.TypeInt}}, catalog.NoColumn)
	require.NoError(t, err)

	r, err := e.Delete(tbl.ID, Predicate{Kind: PredicatePK, PKValue: int64(99)})
	require.NoError(t, err)
	assert.Equal(t, ReplyCZero, r.Kind)
}

func TestInsertPKTooLarge(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{{Name: "pk", Type: keycodec.TypeInt}, {Name: "v", Type: keycodec.TypeInt}}, catalog.NoColumn)
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{int64(1) << 33, int64(1)}, InsertOptions{})
	require.Error(t, err)
	assert.Equal(t, ReplyUIntPKBig, r.Kind)
}

func TestPartialInsertFillsDefaults(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "a", Type: keycodec.TypeInt},
		{Name: "b", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{uint32(7)}, InsertOptions{ColumnList: []int{0}})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = e.Select(tbl.ID, nil, Predicate{Kind: PredicatePK, PKValue: int64(7)})
	require.NoError(t, err)
	require.Len(t, r.Rows, 3)
	assert.Equal(t, uint32(0), keycodec.Decode(r.Rows[1]).Int)
}

func TestNarrowTablePartialInsertWithoutPKRejected(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("n", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	_, err = e.Insert(tbl.ID, []any{int64(5)}, InsertOptions{ColumnList: []int{1}})
	require.Error(t, err)
}

func TestLRUColumnRejectedInInsert(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
		{Name: "hits", Type: keycodec.TypeInt},
	}, 2)
	require.NoError(t, err)

	_, err = e.Insert(tbl.ID, []any{int64(1), int64(2)}, InsertOptions{ColumnList: []int{0, 2}})
	require.Error(t, err)
}

// A full (column-list-free) insert on an LRU-bearing table expects one
// fewer value than the column count — the LRU column is never supplied
// explicitly, and defaults instead (alsosql.c:155).
func TestLRUColumnExcludedFromFullInsert(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
		{Name: "hits", Type: keycodec.TypeInt},
	}, 2)
	require.NoError(t, err)

	r, err := e.Insert(tbl.ID, []any{int64(1), int64(2)}, InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = e.Select(tbl.ID, nil, Predicate{Kind: PredicatePK, PKValue: int64(1)})
	require.NoError(t, err)
	require.Len(t, r.Rows, 3)
	assert.Equal(t, uint32(2), keycodec.Decode(r.Rows[1]).Int)
	assert.Equal(t, uint32(0), keycodec.Decode(r.Rows[2]).Int)
}

// Supplying all n column values (including one for the LRU slot) on a
// full insert is the wrong arity and must reject, not silently accept.
func TestLRUColumnFullInsertWrongArityRejected(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
		{Name: "hits", Type: keycodec.TypeInt},
	}, 2)
	require.NoError(t, err)

	_, err = e.Insert(tbl.ID, []any{int64(1), int64(2), int64(0)}, InsertOptions{})
	require.Error(t, err)
}

func TestDispatchEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	r, err := e.Dispatch([]string{"INSERT", "INTO", "t", "VALUES", "(", "1", "10", ")"})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = e.Dispatch([]string{"INSERT", "INTO", "t", "VALUES", "(", "1", "20", ")"})
	require.Error(t, err)
	assert.Equal(t, ReplyInsertOverwrite, r.Kind)

	r, err = e.Dispatch([]string{"SELECT", "v", "FROM", "t", "WHERE", "pk", "=", "1"})
	require.NoError(t, err)
	assert.Equal(t, ReplySingleRow, r.Kind)
	assert.Equal(t, uint32(10), keycodec.Decode(r.Rows[0]).Int)

	r, err = e.Dispatch([]string{"UPDATE", "t", "SET", "v", "=", "50", "WHERE", "pk", "=", "1"})
	require.NoError(t, err)
	assert.Equal(t, ReplyCOne, r.Kind)

	r, err = e.Dispatch([]string{"DELETE", "FROM", "t", "WHERE", "pk", "=", "1"})
	require.NoError(t, err)
	assert.Equal(t, ReplyCOne, r.Kind)
}

// EXPLAIN's single-point path must skip execution entirely (spec.md §4.6):
// an EXPLAIN INSERT never creates the row, an EXPLAIN DELETE never removes
// one, and neither bumps the dirty counter.
func TestExplainDoesNotExecute(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateTable("t", []catalog.Column{
		{Name: "pk", Type: keycodec.TypeInt},
		{Name: "v", Type: keycodec.TypeInt},
	}, catalog.NoColumn)
	require.NoError(t, err)

	r, err := e.Dispatch([]string{"EXPLAIN", "INSERT", "INTO", "t", "VALUES", "(", "1", "10", ")"})
	require.NoError(t, err)
	assert.Equal(t, ReplyExplainPlan, r.Kind)
	assert.Equal(t, uint64(0), e.DirtyCount())

	r, err = e.Dispatch([]string{"SELECT", "v", "FROM", "t", "WHERE", "pk", "=", "1"})
	require.NoError(t, err)
	assert.Equal(t, ReplyNullBulk, r.Kind)

	_, err = e.Dispatch([]string{"INSERT", "INTO", "t", "VALUES", "(", "1", "10", ")"})
	require.NoError(t, err)

	r, err = e.Dispatch([]string{"EXPLAIN", "DELETE", "FROM", "t", "WHERE", "pk", "=", "1"})
	require.NoError(t, err)
	assert.Equal(t, ReplyExplainPlan, r.Kind)
	assert.Equal(t, uint64(1), e.DirtyCount())

	r, err = e.Dispatch([]string{"SELECT", "v", "FROM", "t", "WHERE", "pk", "=", "1"})
	require.NoError(t, err)
	assert.Equal(t, ReplySingleRow, r.Kind)
}

func TestDirtyCounterIncrementsOncePerWrite(t *testing.T) {
	e := newTestEngine(t)
	tbl, err := e.CreateTable("t", []catalog.Column{{Name: "pk", Type: keycodec.TypeInt}, {Name: "v", Type: keycodec.TypeInt}}, catalog.NoColumn)
	require.NoError(t, err)

	_, err = e.Insert(tbl.ID, []any{int64(1), int64(1)}, InsertOptions{})
	require.NoError(t, err)
	_, err = e.Delete(tbl.ID, Predicate{Kind: PredicatePK, PKValue: int64(1)})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.DirtyCount())
}
