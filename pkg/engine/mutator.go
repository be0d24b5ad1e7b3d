package engine

import (
	"github.com/pkg/errors"

	"github.com/alchemy-labs/reltable/pkg/catalog"
	"github.com/alchemy-labs/reltable/pkg/container"
	"github.com/alchemy-labs/reltable/pkg/index"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
	"github.com/alchemy-labs/reltable/pkg/runtime"
)

// PredicateKind selects which where-clause shape a command was given.
type PredicateKind int

const (
	// PredicatePK is a single-column primary-key equality predicate — the
	// only shape this package executes directly.
	PredicatePK PredicateKind = iota
	// PredicateRange stands in for FK, range, and IN predicates, which the
	// range executor (external, out of scope per spec.md §1) would handle.
	PredicateRange
)

// Predicate is a where-clause, reduced to the one shape the single-row
// mutator needs to know about: is it a point lookup on the PK, or something
// that belongs to the range executor.
type Predicate struct {
	Kind    PredicateKind
	PKValue any
}

// Expr is a SET-list value: either a literal or a small expression over the
// column's current value (spec.md §9 "Expression evaluation in UPDATE").
// Compiled once per UPDATE call and discarded when it returns — never cached
// across commands.
type Expr interface {
	Eval(old keycodec.Value) (any, error)
}

// LiteralExpr evaluates to a fixed value regardless of the column's
// current contents.
type LiteralExpr struct{ Value any }

func (l LiteralExpr) Eval(keycodec.Value) (any, error) { return l.Value, nil }

// AddExpr evaluates to the column's current integer value plus Delta
// (covers the `col = col + n` case named in spec.md §9).
type AddExpr struct{ Delta int64 }

func (a AddExpr) Eval(old keycodec.Value) (any, error) {
	v := int64(old.Int) + a.Delta
	if v < 0 {
		return nil, errors.Wrap(ErrDomain, "expression result negative")
	}
	return uint32(v), nil
}

// SetClause is one (column, value-or-expression) pair from an UPDATE's SET
// list.
type SetClause struct {
	Column int
	Expr   Expr
}

// InsertOptions carries the flags spec.md §4.5 lists for INSERT/REPLACE.
type InsertOptions struct {
	ColumnList        []int // nil means "all columns, in table order"
	Replace           bool
	OnDuplicateUpdate []SetClause // non-nil enables ON DUPLICATE KEY UPDATE
	ReturnSize        bool
}

// Insert implements INSERT/REPLACE for one tuple (spec.md §4.5). ON
// DUPLICATE KEY UPDATE re-enters Update with a synthetic single-PK
// where-clause on collision, per the round-trip law in spec.md §8.
func (e *Engine) Insert(tableID int, tuple []any, opts InsertOptions) (*runtime.Reply, error) {
	table, ok := e.Catalog.TableByID(tableID)
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table")
	}
	if opts.Replace && opts.OnDuplicateUpdate != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyInsertReplaceUpdate
		return r, errors.Wrap(ErrConflict, ReplyInsertReplaceUpdate)
	}

	full, err := e.splitTuple(table, opts.ColumnList, tuple)
	if err != nil {
		return nil, err
	}

	pkStream, err := e.encodePK(table, full[0])
	if err != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyUIntPKBig
		return r, err
	}

	dataTree := e.data[table.ID]
	existing, found := dataTree.Find(pkStream)

	if found && !opts.Replace && opts.OnDuplicateUpdate == nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyInsertOverwrite
		return r, errors.Wrap(ErrConflict, ReplyInsertOverwrite)
	}

	if found && opts.OnDuplicateUpdate != nil {
		return e.Update(table.ID, opts.OnDuplicateUpdate, Predicate{Kind: PredicatePK, PKValue: full[0]})
	}

	if err := e.checkOrderingConstraint(table, full); err != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyConstraintViolation
		return r, err
	}

	row, err := buildRow(table, full[1:])
	if err != nil {
		return nil, errors.Wrap(ErrDomain, err.Error())
	}

	// Add-before-delete (spec.md §4.4): every secondary index sees the new
	// entry before the old one (present only when replacing) disappears,
	// so a concurrent-looking reader of the index never observes a gap.
	if err := e.addToIndexes(table, pkStream, full); err != nil {
		return nil, err
	}
	if found && opts.Replace {
		if err := e.deleteFromIndexes(table, pkStream, existing.Value.([]byte), full); err != nil {
			return nil, err
		}
	}

	dataTree.Insert(container.Entry{Key: pkStream, Value: row})
	e.bumpAutoIncrement(table, full[0])
	e.dirty.Inc()

	r := e.replies.Slot(0)
	r.Kind = ReplyOK
	if opts.ReturnSize {
		r.Rows = [][]byte{row}
		r.Sizes = e.sizeReport(table, row)
	}
	return r, nil
}

// sizeReport builds the four terms the original's addRowSizeReply emits for
// "INSERT ... RETURN SIZE" (alsosql.c:121-130): the row's own byte length,
// the owning B-tree's total and payload-only byte counts, and the combined
// byte count across every one of the table's secondary index trees.
func (e *Engine) sizeReport(table *catalog.Table, row []byte) *runtime.SizeReport {
	dataTree := e.data[table.ID]
	var indexBytes uint64
	for _, id := range table.SecondaryIndexIDs {
		indexBytes += e.indexes[id].MSize()
	}
	return &runtime.SizeReport{
		RowBytes:   rowByteSize(row),
		TreeMSize:  dataTree.MSize(),
		TreeDSize:  dataTree.DSize(),
		IndexBytes: indexBytes,
	}
}

// splitTuple reorders tuple into full table-column order, applying column
// defaults for any column a partial insert's column list omitted (spec.md
// §4.5 step 1).
func (e *Engine) splitTuple(table *catalog.Table, columnList []int, tuple []any) ([]any, error) {
	n := len(table.Columns)
	full := make([]any, n)

	if columnList == nil {
		// A full (column-list-free) insert on a table with an LRU column
		// never supplies that column explicitly: the original counts it out
		// of the expected arity (alsosql.c:155, `lncols = rt->lrud ? ncols -
		// 1 : ncols`) and fills it from the column default instead.
		if table.LRUColumn != catalog.NoColumn {
			if len(tuple) != n-1 {
				return nil, errors.Wrap(ErrSyntax, ReplyInsertColumn)
			}
			ti := 0
			for c := 0; c < n; c++ {
				if c == table.LRUColumn {
					full[c] = defaultValue(table.Columns[c].Type)
					continue
				}
				full[c] = tuple[ti]
				ti++
			}
			return full, nil
		}
		if len(tuple) != n {
			return nil, errors.Wrap(ErrSyntax, ReplyInsertColumn)
		}
		copy(full, tuple)
		return full, nil
	}

	if len(columnList) != len(tuple) {
		return nil, errors.Wrap(ErrSyntax, ReplyInsertColumn)
	}
	if table.LRUColumn != catalog.NoColumn {
		for _, c := range columnList {
			if c == table.LRUColumn {
				return nil, errors.Wrap(ErrConflict, ReplyInsertLRU)
			}
		}
	}

	filled := make([]bool, n)
	for i, c := range columnList {
		if c < 0 || c >= n {
			return nil, errors.Wrap(ErrCatalogMiss, "unknown column in column list")
		}
		full[c] = tuple[i]
		filled[c] = true
	}

	// The narrow (OTHER_BT) encoding has no offset table to leave a column
	// unset in: a partial insert must at least name the PK.
	if table.IsNarrow() && !filled[0] {
		return nil, errors.Wrap(ErrSyntax, ReplyPartInsertOther)
	}

	for c := 0; c < n; c++ {
		if !filled[c] {
			full[c] = defaultValue(table.Columns[c].Type)
		}
	}
	return full, nil
}

// encodePK encodes raw as table's PK stream, mapping an out-of-range integer
// to the uint_pkbig reply (spec.md §9 Open Questions: reject explicitly
// rather than silently truncate).
func (e *Engine) encodePK(table *catalog.Table, raw any) ([]byte, error) {
	stream, err := keycodec.Encode(table.PKColumn().Type, raw)
	if err != nil {
		if errors.Is(err, keycodec.ErrValueTooLarge) {
			return nil, errors.Wrap(ErrDomain, ReplyUIntPKBig)
		}
		return nil, errors.Wrap(ErrInternal, err.Error())
	}
	return stream, nil
}

// checkOrderingConstraint implements the ordering-constraint check (spec.md
// §4.5), grounded on the original's check_constraints: find the extremal row
// through the constraint's index, read its constrained column, and reject
// the candidate if it fails to extend the order (equality counts as a
// violation — see spec.md §8 scenario 3).
func (e *Engine) checkOrderingConstraint(table *catalog.Table, full []any) error {
	if table.Constraint == nil {
		return nil
	}
	idx, ok := e.Catalog.IndexByID(table.Constraint.IndexID)
	if !ok {
		return errors.Wrap(ErrInternal, "dangling constraint index")
	}
	extremalPK, ok := index.Extremal(e.indexes[idx.ID], idx.Ascending)
	if !ok {
		return nil // empty index is always OK
	}
	extremalEntry, ok := e.data[table.ID].Find(extremalPK)
	if !ok {
		return errors.Wrap(ErrInternal, "constraint index references a missing row")
	}
	extremumStream := columnStream(table, extremalPK, extremalEntry.Value.([]byte), table.Constraint.Column)

	colType := table.Columns[table.Constraint.Column].Type
	candStream, err := keycodec.Encode(colType, full[table.Constraint.Column])
	if err != nil {
		return errors.Wrap(ErrDomain, err.Error())
	}

	cmp := keycodec.Compare(candStream, extremumStream)
	violated := (idx.Ascending && cmp <= 0) || (!idx.Ascending && cmp >= 0)
	if violated {
		return errors.Wrap(ErrConstraintViolation, ReplyConstraintViolation)
	}
	return nil
}

// addToIndexes inserts pkStream into every secondary index on table, keyed
// by the corresponding column of full.
func (e *Engine) addToIndexes(table *catalog.Table, pkStream []byte, full []any) error {
	for _, id := range table.SecondaryIndexIDs {
		idx, _ := e.Catalog.IndexByID(id)
		if err := index.Add(e.indexes[id], table.Columns[idx.Column].Type, full[idx.Column], pkStream); err != nil {
			return errors.Wrap(ErrInternal, err.Error())
		}
	}
	return nil
}

// deleteFromIndexes removes pkStream from every secondary index on table,
// reading the value to remove it under from oldRow. When newFull is non-nil
// (a REPLACE that has already added the new row), an index whose value is
// the same in newFull and oldRow is skipped: its entry for pkStream is the
// one just added.
func (e *Engine) deleteFromIndexes(table *catalog.Table, pkStream, oldRow []byte, newFull []any) error {
	for _, id := range table.SecondaryIndexIDs {
		idx, _ := e.Catalog.IndexByID(id)
		if newFull != nil {
			newStream, err := keycodec.Encode(table.Columns[idx.Column].Type, newFull[idx.Column])
			if err == nil && keycodec.Compare(newStream, columnStream(table, pkStream, oldRow, idx.Column)) == 0 {
				continue
			}
		}
		old := getColumn(table, pkStream, oldRow, idx.Column)
		if err := index.Delete(e.indexes[id], table.Columns[idx.Column].Type, rawFromValue(old), pkStream); err != nil {
			return errors.Wrap(ErrInternal, err.Error())
		}
	}
	return nil
}

// bumpAutoIncrement implements "update auto-increment PK counter per column
// type" (spec.md §4.5 step 4). Non-integer PK columns are untouched.
func (e *Engine) bumpAutoIncrement(table *catalog.Table, pkRaw any) {
	t := table.PKColumn().Type
	if t != keycodec.TypeInt && t != keycodec.TypeLong {
		return
	}
	v, err := toUint32(pkRaw)
	if err != nil {
		return
	}
	if v+1 > table.AutoIncrement {
		table.AutoIncrement = v + 1
	}
}

func toUint32(raw any) (uint32, error) {
	switch v := raw.(type) {
	case uint32:
		return v, nil
	case int64:
		if v < 0 {
			return 0, errors.New("negative")
		}
		return uint32(v), nil
	case int:
		if v < 0 {
			return 0, errors.New("negative")
		}
		return uint32(v), nil
	default:
		return 0, errors.New("unsupported PK representation")
	}
}

// Update implements UPDATE (spec.md §4.5). Only the single-PK-equality path
// executes here; a range/FK/IN where-clause either rejects immediately (if
// the SET list also touches the PK — update_pk_range_query) or returns
// ErrPlan, since no range executor is wired in.
func (e *Engine) Update(tableID int, sets []SetClause, where Predicate) (*runtime.Reply, error) {
	table, ok := e.Catalog.TableByID(tableID)
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table")
	}

	pkupc := -1
	for i, s := range sets {
		if s.Column == 0 {
			pkupc = i
		}
		if table.LRUColumn != catalog.NoColumn && s.Column == table.LRUColumn {
			r := e.replies.Slot(0)
			r.Kind = ReplyUpdateLRU
			return r, errors.Wrap(ErrConflict, ReplyUpdateLRU)
		}
	}

	if where.Kind == PredicateRange {
		if pkupc >= 0 {
			r := e.replies.Slot(0)
			r.Kind = ReplyUpdatePKRangeQuery
			return r, errors.Wrap(ErrConflict, ReplyUpdatePKRangeQuery)
		}
		return nil, errors.Wrap(ErrPlan, "range update executor is out of scope")
	}

	dataTree := e.data[table.ID]
	pkStream, err := e.encodePK(table, where.PKValue)
	if err != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyUIntPKBig
		return r, err
	}

	var newPKStream []byte
	var newPKRaw any
	if pkupc >= 0 {
		newPKRaw, err = sets[pkupc].Expr.Eval(keycodec.Decode(pkStream))
		if err != nil {
			return nil, errors.Wrap(ErrDomain, err.Error())
		}
		newPKStream, err = e.encodePK(table, newPKRaw)
		if err != nil {
			r := e.replies.Slot(0)
			r.Kind = ReplyUIntPKBig
			return r, err
		}
		if _, exists := dataTree.Find(newPKStream); exists {
			r := e.replies.Slot(0)
			r.Kind = ReplyUpdatePKOverwrite
			return r, errors.Wrap(ErrConflict, ReplyUpdatePKOverwrite)
		}
	}

	old, found := dataTree.Find(pkStream)
	r := e.replies.Slot(0)
	if !found {
		r.Kind = ReplyCZero
		return r, nil
	}
	oldRow := old.Value.([]byte)

	n := len(table.Columns)
	full := make([]any, n)
	full[0] = where.PKValue
	for c := 1; c < n; c++ {
		full[c] = rawFromValue(getColumn(table, pkStream, oldRow, c))
	}
	setAt := make(map[int]bool, len(sets))
	for _, s := range sets {
		v, err := s.Expr.Eval(getColumn(table, pkStream, oldRow, s.Column))
		if err != nil {
			return nil, errors.Wrap(ErrDomain, err.Error())
		}
		full[s.Column] = v
		setAt[s.Column] = true
	}
	if pkupc >= 0 {
		full[0] = newPKRaw
	}

	newRow, err := buildRow(table, full[1:])
	if err != nil {
		return nil, errors.Wrap(ErrDomain, err.Error())
	}

	finalPKStream := pkStream
	if pkupc >= 0 {
		finalPKStream = newPKStream
	}

	// A secondary index needs re-keying when its own column changed, or
	// when the PK itself moved (every index's nested tree stores PK
	// streams, so a PK rename touches all of them regardless of whether
	// the indexed value changed). Add-before-delete, same as Insert.
	touched := func(col int) bool { return setAt[col] || pkupc >= 0 }
	for _, id := range table.SecondaryIndexIDs {
		idx, _ := e.Catalog.IndexByID(id)
		if !touched(idx.Column) {
			continue
		}
		if err := index.Add(e.indexes[id], table.Columns[idx.Column].Type, full[idx.Column], finalPKStream); err != nil {
			return nil, errors.Wrap(ErrInternal, err.Error())
		}
	}
	for _, id := range table.SecondaryIndexIDs {
		idx, _ := e.Catalog.IndexByID(id)
		if !touched(idx.Column) {
			continue
		}
		if pkupc < 0 {
			// Same PK and same value: the Add above left the entry in place.
			newStream, err := keycodec.Encode(table.Columns[idx.Column].Type, full[idx.Column])
			if err == nil && keycodec.Compare(newStream, columnStream(table, pkStream, oldRow, idx.Column)) == 0 {
				continue
			}
		}
		oldVal := getColumn(table, pkStream, oldRow, idx.Column)
		if err := index.Delete(e.indexes[id], table.Columns[idx.Column].Type, rawFromValue(oldVal), pkStream); err != nil {
			return nil, errors.Wrap(ErrInternal, err.Error())
		}
	}

	if pkupc >= 0 {
		dataTree.Delete(pkStream)
	}
	dataTree.Insert(container.Entry{Key: finalPKStream, Value: newRow})
	e.dirty.Inc()

	r.Kind = ReplyCOne
	r.Rows = [][]byte{newRow}
	return r, nil
}

// Delete implements DELETE's single-PK path (spec.md §4.5). A range
// where-clause is not executed: it returns ErrPlan.
func (e *Engine) Delete(tableID int, where Predicate) (*runtime.Reply, error) {
	table, ok := e.Catalog.TableByID(tableID)
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table")
	}
	if where.Kind == PredicateRange {
		return nil, errors.Wrap(ErrPlan, "range delete executor is out of scope")
	}

	pkStream, err := e.encodePK(table, where.PKValue)
	if err != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyUIntPKBig
		return r, err
	}

	dataTree := e.data[table.ID]
	old, found := dataTree.Find(pkStream)
	r := e.replies.Slot(0)
	if !found {
		r.Kind = ReplyCZero
		return r, nil
	}

	if err := e.deleteFromIndexes(table, pkStream, old.Value.([]byte), nil); err != nil {
		return nil, err
	}
	dataTree.Delete(pkStream)
	e.dirty.Inc()

	r.Kind = ReplyCOne
	return r, nil
}

// Select implements SELECT's single-point path (spec.md §4.5). projection
// nil means all columns, in table order. A range where-clause is not
// executed: it returns ErrPlan.
func (e *Engine) Select(tableID int, projection []int, where Predicate) (*runtime.Reply, error) {
	table, ok := e.Catalog.TableByID(tableID)
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table")
	}
	if where.Kind == PredicateRange {
		return nil, errors.Wrap(ErrPlan, "range select executor is out of scope")
	}

	pkStream, err := e.encodePK(table, where.PKValue)
	if err != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyUIntPKBig
		return r, err
	}

	dataTree := e.data[table.ID]
	entry, found := dataTree.Find(pkStream)
	r := e.replies.Slot(0)
	if !found {
		r.Kind = ReplyNullBulk
		return r, nil
	}
	row := entry.Value.([]byte)

	cols := projection
	if cols == nil {
		cols = make([]int, len(table.Columns))
		for i := range cols {
			cols[i] = i
		}
	}
	rows := make([][]byte, len(cols))
	for i, c := range cols {
		rows[i] = columnStream(table, pkStream, row, c)
	}

	r.Kind = ReplySingleRow
	r.Rows = rows
	return r, nil
}
