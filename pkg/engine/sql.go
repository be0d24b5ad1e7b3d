// SQL front-end (C7): validates a pre-tokenized argument vector against the
// fixed grammar for its leading keyword and routes to the mutator. The
// where-clause, column-list, and expression parsers this delegates to are
// deliberately minimal — the real parsers are external collaborators per
// spec.md §1; this front-end only needs enough of each to drive the
// single-row mutator and recognize when a predicate isn't a point lookup.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/alchemy-labs/reltable/pkg/catalog"
	"github.com/alchemy-labs/reltable/pkg/keycodec"
	"github.com/alchemy-labs/reltable/pkg/runtime"
)

// Dispatch validates argv's shape against the grammar for its leading
// keyword (spec.md §4.6) and routes to the corresponding mutator call.
func (e *Engine) Dispatch(argv []string) (*runtime.Reply, error) {
	return e.dispatch(argv, false)
}

// dispatch is Dispatch's implementation, carrying the explain flag EXPLAIN
// sets on its re-dispatch. Every command this front-end drives is a
// single-point path (spec.md §1: the range executor is an external
// collaborator), so EXPLAIN always skips execution here (spec.md §4.6) —
// there is no separate plan object to show; only the range executor's
// EXPLAIN output would differ from this.
func (e *Engine) dispatch(argv []string, explain bool) (*runtime.Reply, error) {
	if len(argv) == 0 {
		return nil, errors.Wrap(ErrSyntax, "empty command")
	}
	switch strings.ToUpper(argv[0]) {
	case "INSERT":
		return e.dispatchInsert(argv[1:], false, explain)
	case "REPLACE":
		return e.dispatchInsert(argv[1:], true, explain)
	case "UPDATE":
		return e.dispatchUpdate(argv[1:], explain)
	case "DELETE":
		return e.dispatchDelete(argv[1:], explain)
	case "SELECT":
		return e.dispatchSelect(argv[1:], explain)
	case "EXPLAIN":
		if len(argv) < 2 {
			return nil, errors.Wrap(ErrSyntax, "EXPLAIN requires a command")
		}
		return e.dispatch(argv[1:], true)
	default:
		return nil, errors.Wrap(ErrSyntax, "unknown command "+argv[0])
	}
}

// explainReply builds the not-executed reply EXPLAIN returns on the
// single-point path, naming the command and table it would otherwise run.
func (e *Engine) explainReply(command string, table *catalog.Table) *runtime.Reply {
	r := e.replies.Slot(0)
	r.Kind = ReplyExplainPlan
	r.Message = fmt.Sprintf("single-point %s on %s, not executed", command, table.Name)
	return r
}

// dispatchInsert implements the INSERT/REPLACE grammar:
//
//	INTO → table → [( col_list )] → VALUES → tuple+ → [RETURN SIZE] → [ON DUP…] → END
func (e *Engine) dispatchInsert(argv []string, replace, explain bool) (*runtime.Reply, error) {
	pos := 0
	expect := func(tok string) error {
		if pos >= len(argv) || !strings.EqualFold(argv[pos], tok) {
			return errors.Wrap(ErrSyntax, "expected "+tok)
		}
		pos++
		return nil
	}
	if err := expect("INTO"); err != nil {
		return nil, err
	}
	if pos >= len(argv) {
		return nil, errors.Wrap(ErrSyntax, "expected table name")
	}
	tableName := argv[pos]
	pos++

	table, ok := e.Catalog.TableByName(tableName)
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table "+tableName)
	}

	var columnList []int
	if pos < len(argv) && argv[pos] == "(" {
		pos++
		for pos < len(argv) && argv[pos] != ")" {
			colName := strings.TrimSuffix(argv[pos], ",")
			idx := columnIndexByName(table, colName)
			if idx < 0 {
				return nil, errors.Wrap(ErrCatalogMiss, "unknown column "+colName)
			}
			columnList = append(columnList, idx)
			pos++
		}
		if err := expect(")"); err != nil {
			return nil, err
		}
	}

	if err := expect("VALUES"); err != nil {
		return nil, err
	}

	colTypes := columnTypesFor(table, columnList)
	var tuples [][]any
	for pos < len(argv) && argv[pos] == "(" {
		pos++
		var tuple []any
		i := 0
		for pos < len(argv) && argv[pos] != ")" {
			if i >= len(colTypes) {
				return nil, errors.Wrap(ErrSyntax, ReplyInsertColumn)
			}
			tok := strings.TrimSuffix(argv[pos], ",")
			v, err := parseLiteral(colTypes[i], tok)
			if err != nil {
				return nil, errors.Wrap(ErrDomain, err.Error())
			}
			tuple = append(tuple, v)
			pos++
			i++
		}
		if i != len(colTypes) {
			return nil, errors.Wrap(ErrSyntax, ReplyInsertColumn)
		}
		if err := expect(")"); err != nil {
			return nil, err
		}
		tuples = append(tuples, tuple)
	}
	if len(tuples) == 0 {
		return nil, errors.Wrap(ErrSyntax, "expected at least one tuple")
	}

	returnSize := false
	if pos < len(argv) && strings.EqualFold(argv[pos], "RETURN") {
		pos++
		if err := expect("SIZE"); err != nil {
			return nil, err
		}
		returnSize = true
	}

	var onDup []SetClause
	if pos < len(argv) && strings.EqualFold(argv[pos], "ON") {
		pos++
		if err := expect("DUPLICATE"); err != nil {
			return nil, err
		}
		if err := expect("KEY"); err != nil {
			return nil, err
		}
		if err := expect("UPDATE"); err != nil {
			return nil, err
		}
		var err error
		onDup, pos, err = parseSetList(table, argv, pos)
		if err != nil {
			return nil, err
		}
	}

	if pos != len(argv) {
		return nil, errors.Wrap(ErrSyntax, "unexpected trailing tokens")
	}
	if replace && onDup != nil {
		r := e.replies.Slot(0)
		r.Kind = ReplyInsertReplaceUpdate
		return r, errors.Wrap(ErrConflict, ReplyInsertReplaceUpdate)
	}

	command := "INSERT"
	if replace {
		command = "REPLACE"
	}
	if explain {
		return e.explainReply(command, table), nil
	}

	var last *runtime.Reply
	for _, tuple := range tuples {
		r, err := e.Insert(table.ID, tuple, InsertOptions{
			ColumnList:        columnList,
			Replace:           replace,
			OnDuplicateUpdate: onDup,
			ReturnSize:        returnSize,
		})
		if err != nil {
			return r, err
		}
		last = r
	}
	return last, nil
}

// dispatchUpdate implements `table SET set_list WHERE where`.
func (e *Engine) dispatchUpdate(argv []string, explain bool) (*runtime.Reply, error) {
	if len(argv) == 0 {
		return nil, errors.Wrap(ErrSyntax, "expected table name")
	}
	table, ok := e.Catalog.TableByName(argv[0])
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table "+argv[0])
	}
	pos := 1
	if pos >= len(argv) || !strings.EqualFold(argv[pos], "SET") {
		return nil, errors.Wrap(ErrSyntax, "expected SET")
	}
	pos++
	sets, pos, err := parseSetList(table, argv, pos, "WHERE")
	if err != nil {
		return nil, err
	}
	if pos >= len(argv) || !strings.EqualFold(argv[pos], "WHERE") {
		return nil, errors.Wrap(ErrSyntax, "expected WHERE")
	}
	pos++
	where, err := parseWhere(table, argv, pos)
	if err != nil {
		return nil, err
	}
	if explain && where.Kind == PredicatePK {
		return e.explainReply("UPDATE", table), nil
	}
	return e.Update(table.ID, sets, where)
}

// dispatchDelete implements `FROM table WHERE where`.
func (e *Engine) dispatchDelete(argv []string, explain bool) (*runtime.Reply, error) {
	pos := 0
	if pos >= len(argv) || !strings.EqualFold(argv[pos], "FROM") {
		return nil, errors.Wrap(ErrSyntax, "expected FROM")
	}
	pos++
	if pos >= len(argv) {
		return nil, errors.Wrap(ErrSyntax, "expected table name")
	}
	table, ok := e.Catalog.TableByName(argv[pos])
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table "+argv[pos])
	}
	pos++
	if pos >= len(argv) || !strings.EqualFold(argv[pos], "WHERE") {
		return nil, errors.Wrap(ErrSyntax, "expected WHERE")
	}
	pos++
	where, err := parseWhere(table, argv, pos)
	if err != nil {
		return nil, err
	}
	if explain && where.Kind == PredicatePK {
		return e.explainReply("DELETE", table), nil
	}
	return e.Delete(table.ID, where)
}

// dispatchSelect implements `cols FROM tables WHERE where`. A bare
// `SELECT ... FROM table` with no WHERE at all is the two-argument form the
// spec routes to the host's database-select command instead (out of scope
// here).
func (e *Engine) dispatchSelect(argv []string, explain bool) (*runtime.Reply, error) {
	pos := 0
	var cols []string
	for pos < len(argv) && !strings.EqualFold(argv[pos], "FROM") {
		cols = append(cols, strings.TrimSuffix(argv[pos], ","))
		pos++
	}
	if pos >= len(argv) {
		return nil, errors.Wrap(ErrSyntax, "expected FROM")
	}
	pos++
	if pos >= len(argv) {
		return nil, errors.Wrap(ErrSyntax, "expected table name")
	}
	table, ok := e.Catalog.TableByName(argv[pos])
	if !ok {
		return nil, errors.Wrap(ErrCatalogMiss, "unknown table "+argv[pos])
	}
	pos++

	if pos >= len(argv) {
		return nil, errors.Wrap(ErrPlan, "bare SELECT routes to the host database-select command")
	}
	if !strings.EqualFold(argv[pos], "WHERE") {
		return nil, errors.Wrap(ErrSyntax, "expected WHERE")
	}
	pos++
	where, err := parseWhere(table, argv, pos)
	if err != nil {
		return nil, err
	}

	var projection []int
	if len(cols) != 1 || cols[0] != "*" {
		projection = make([]int, len(cols))
		for i, c := range cols {
			idx := columnIndexByName(table, c)
			if idx < 0 {
				return nil, errors.Wrap(ErrCatalogMiss, "unknown column "+c)
			}
			projection[i] = idx
		}
	}
	if explain && where.Kind == PredicatePK {
		return e.explainReply("SELECT", table), nil
	}
	return e.Select(table.ID, projection, where)
}

func columnIndexByName(table *catalog.Table, name string) int {
	for i, c := range table.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

func columnTypesFor(table *catalog.Table, columnList []int) []keycodec.Type {
	if columnList == nil {
		types := make([]keycodec.Type, len(table.Columns))
		for i, c := range table.Columns {
			types[i] = c.Type
		}
		return types
	}
	types := make([]keycodec.Type, len(columnList))
	for i, c := range columnList {
		types[i] = table.Columns[c].Type
	}
	return types
}

func parseLiteral(t keycodec.Type, tok string) (any, error) {
	switch t {
	case keycodec.TypeString:
		return []byte(strings.Trim(tok, `"'`)), nil
	case keycodec.TypeFloat:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	default: // TypeInt, TypeLong
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// parseSetList parses "col = val, col2 = val2 ..." until it hits one of
// terminators (or the end of argv). The one expression it recognizes is
// `col = col + N` (spec.md §9); everything else is a literal.
func parseSetList(table *catalog.Table, argv []string, pos int, terminators ...string) ([]SetClause, int, error) {
	var sets []SetClause
	for pos < len(argv) {
		if isTerminator(argv[pos], terminators) {
			break
		}
		colName := strings.TrimSuffix(argv[pos], ",")
		pos++
		if pos >= len(argv) || argv[pos] != "=" {
			return nil, pos, errors.Wrap(ErrSyntax, "expected = in SET list")
		}
		pos++
		if pos >= len(argv) {
			return nil, pos, errors.Wrap(ErrSyntax, "expected value in SET list")
		}
		colIdx := columnIndexByName(table, colName)
		if colIdx < 0 {
			return nil, pos, errors.Wrap(ErrCatalogMiss, "unknown column "+colName)
		}
		if colIdx == table.LRUColumn && table.LRUColumn != catalog.NoColumn {
			return nil, pos, errors.Wrap(ErrConflict, ReplyUpdateLRU)
		}

		tok := strings.TrimSuffix(argv[pos], ",")
		var expr Expr
		if strings.EqualFold(tok, colName) && pos+2 < len(argv) && argv[pos+1] == "+" {
			delta, err := strconv.ParseInt(strings.TrimSuffix(argv[pos+2], ","), 10, 64)
			if err != nil {
				return nil, pos, errors.Wrap(ErrSyntax, "bad expression")
			}
			expr = AddExpr{Delta: delta}
			pos += 3
		} else {
			v, err := parseLiteral(table.Columns[colIdx].Type, tok)
			if err != nil {
				return nil, pos, errors.Wrap(ErrDomain, err.Error())
			}
			expr = LiteralExpr{Value: v}
			pos++
		}
		sets = append(sets, SetClause{Column: colIdx, Expr: expr})
	}
	if len(sets) == 0 {
		return nil, pos, errors.Wrap(ErrSyntax, "empty SET list")
	}
	return sets, pos, nil
}

func isTerminator(tok string, terminators []string) bool {
	for _, t := range terminators {
		if strings.EqualFold(tok, t) {
			return true
		}
	}
	return false
}

// parseWhere recognizes only `pk = value`; anything else is reported as a
// range predicate so the mutator can reject or defer to the (out of scope)
// range executor per spec.md §4.5.
func parseWhere(table *catalog.Table, argv []string, pos int) (Predicate, error) {
	if pos >= len(argv) {
		return Predicate{}, errors.Wrap(ErrSyntax, "expected where-clause")
	}
	if !strings.EqualFold(argv[pos], table.Columns[0].Name) {
		return Predicate{Kind: PredicateRange}, nil
	}
	pos++
	if pos >= len(argv) || argv[pos] != "=" {
		return Predicate{Kind: PredicateRange}, nil
	}
	pos++
	if pos >= len(argv) {
		return Predicate{}, errors.Wrap(ErrSyntax, "expected value after =")
	}
	v, err := parseLiteral(table.PKColumn().Type, strings.TrimSuffix(argv[pos], ","))
	if err != nil {
		return Predicate{}, errors.Wrap(ErrDomain, err.Error())
	}
	return Predicate{Kind: PredicatePK, PKValue: v}, nil
}
